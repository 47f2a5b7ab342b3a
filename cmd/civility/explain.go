package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"civility-hq/kernel/pkg/cli"
	"civility-hq/kernel/pkg/policy/explain"
)

var explainFlags struct {
	format        string
	noWeights     bool
	noCalibration bool
	memoryKeys    bool
}

var explainCmd = &cobra.Command{
	Use:   "explain [POLICY]",
	Short: "Describe a policy in plain language",
	Long: `Render a policy as a human-readable summary: the uncertainty threshold,
weight shares, calibration, constraints, and context rules.

Examples:
  # Plain text
  civility explain

  # Markdown for a pull request description
  civility explain policy.yaml --format markdown

  # Include the keys of the policy memory
  civility explain --memory-keys`,
	Args: cobra.MaximumNArgs(1),
	RunE: explainPolicy,
}

func init() {
	rootCmd.AddCommand(explainCmd)

	explainCmd.Flags().StringVar(&explainFlags.format, "format", "text", "output format: text, markdown, json")
	explainCmd.Flags().BoolVar(&explainFlags.noWeights, "no-weights", false, "omit the weights section")
	explainCmd.Flags().BoolVar(&explainFlags.noCalibration, "no-calibration", false, "omit the calibration section")
	explainCmd.Flags().BoolVar(&explainFlags.memoryKeys, "memory-keys", false, "list the keys of the policy memory")
}

// explainResult renders an explanation followed by its warnings.
type explainResult struct {
	explain.Explanation
}

func (r explainResult) WriteText(w io.Writer) error {
	if _, err := io.WriteString(w, r.String()); err != nil {
		return err
	}
	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "\nWarnings:")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "- %s\n", warn)
		}
	}
	return nil
}

func explainPolicy(cmd *cobra.Command, args []string) error {
	f, err := cli.ParseOutputFormat(explainFlags.format, cli.FormatText, cli.FormatMarkdown, cli.FormatJSON)
	if err != nil {
		return err
	}

	s := current
	p, err := s.loadCanonical(cmd.Context(), s.policyFile(args))
	if err != nil {
		return cli.NewCommandError("explain", err)
	}

	opts := explain.Options{
		Format:             explain.FormatText,
		IncludeWeights:     !explainFlags.noWeights,
		IncludeCalibration: !explainFlags.noCalibration,
		IncludeMemoryKeys:  explainFlags.memoryKeys,
	}
	if f == cli.FormatMarkdown {
		opts.Format = explain.FormatMarkdown
	}

	exp := explain.Policy(p, s.deps.Registry, opts)
	if f == cli.FormatJSON {
		return format(cmd, f, exp)
	}
	return format(cmd, f, explainResult{exp})
}
