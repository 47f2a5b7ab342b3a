package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"civility-hq/kernel/pkg/cli"
	"civility-hq/kernel/pkg/evidence/recorder"
	"civility-hq/kernel/pkg/policy/lint"
)

var lintFlags struct {
	strict bool
	format string
}

var lintCmd = &cobra.Command{
	Use:   "lint [POLICY]",
	Short: "Lint a policy",
	Long: `Canonicalize a policy and check it for mistakes.

The linter reports out-of-range thresholds, negative or all-zero weights,
weights without a scorer, unknown constraints, invalid constraint
parameters, duplicates, and context rules that both add and remove the
same constraint.

The policy is rejected (exit code 3) when any issue is an error, or when
any issue is a warning under --strict or lint.strict.

Examples:
  # Lint the configured policy
  civility lint

  # Strict mode (warnings as errors)
  civility lint policy.yaml --strict

  # JSON output for CI/CD
  civility lint policy.yaml --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: lintPolicy,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().BoolVar(&lintFlags.strict, "strict", false, "treat warnings as errors")
	lintCmd.Flags().StringVar(&lintFlags.format, "format", "text", "output format: text, json, yaml")
}

// LintResult is the outcome of linting one policy file.
type LintResult struct {
	File       string      `json:"file" yaml:"file"`
	Version    string      `json:"version" yaml:"version"`
	Hash       string      `json:"hash" yaml:"hash"`
	Strict     bool        `json:"strict" yaml:"strict"`
	Acceptable bool        `json:"acceptable" yaml:"acceptable"`
	Report     lint.Report `json:"report" yaml:"report"`
}

// WriteText prints the report the way reviewers read it in CI logs.
func (r LintResult) WriteText(w io.Writer) error {
	if len(r.Report.Issues) == 0 {
		fmt.Fprintln(w, "Lint report: OK")
	} else {
		fmt.Fprintln(w, "Lint report:")
		writeIssues(w, r.Report.Issues)
	}
	if !r.Acceptable {
		fmt.Fprintln(w, "\nPolicy is not acceptable.")
	}
	return nil
}

func lintPolicy(cmd *cobra.Command, args []string) error {
	f, err := cli.ParseOutputFormat(lintFlags.format, cli.FormatText, cli.FormatJSON, cli.FormatYAML)
	if err != nil {
		return err
	}

	s := current
	ctx := cmd.Context()
	path := s.policyFile(args)

	p, err := s.loadCanonical(ctx, path)
	if err != nil {
		return cli.NewCommandError("lint", err)
	}

	strict := s.strict(lintFlags.strict)
	report := s.lint(ctx, p)
	res := LintResult{
		File:       path,
		Version:    p.Version,
		Hash:       recorder.HashPolicy(p),
		Strict:     strict,
		Acceptable: acceptable(report, strict),
		Report:     report,
	}

	s.logger.InfoContext(ctx, "Policy linted",
		"path", path,
		"issues", len(report.Issues),
		"acceptable", res.Acceptable,
	)

	if err := format(cmd, f, res); err != nil {
		return cli.NewCommandError("lint", err)
	}
	if !res.Acceptable {
		return cli.NewCommandError("lint", cli.ErrRejected)
	}
	return nil
}
