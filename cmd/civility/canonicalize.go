package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"civility-hq/kernel/pkg/cli"
	"civility-hq/kernel/pkg/policy"
	"civility-hq/kernel/pkg/policy/loader"
)

var canonicalizeFlags struct {
	apply     bool
	writePrev string
	backup    bool
	format    string
}

var canonicalizeCmd = &cobra.Command{
	Use:   "canonicalize [POLICY]",
	Short: "Print or rewrite a policy in canonical form",
	Long: `Canonicalize a policy: constraints sorted by identity, parameters schema
parsed, context rules sorted by context.

The policy must pass lint first. Without --apply the canonical document is
printed; with --apply it replaces the policy file.

Examples:
  # Print the canonical form as JSON
  civility canonicalize policy.yaml --format json

  # Rewrite the file in place, keeping a backup
  civility canonicalize --apply --write-prev policy.prev.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: canonicalizePolicy,
}

func init() {
	rootCmd.AddCommand(canonicalizeCmd)

	canonicalizeCmd.Flags().BoolVar(&canonicalizeFlags.apply, "apply", false, "rewrite the policy file in canonical form")
	canonicalizeCmd.Flags().StringVar(&canonicalizeFlags.writePrev, "write-prev", "", "back up the current policy to this path before writing")
	canonicalizeCmd.Flags().BoolVar(&canonicalizeFlags.backup, "backup", false, "back up the current policy to policy.prev_path before writing")
	canonicalizeCmd.Flags().StringVar(&canonicalizeFlags.format, "format", "", "output format: json, yaml (default: by policy file extension)")
}

func canonicalizePolicy(cmd *cobra.Command, args []string) error {
	s := current
	ctx := cmd.Context()
	path := s.policyFile(args)
	out := cmd.OutOrStdout()

	docFormat := loader.FormatFor(path)
	if canonicalizeFlags.format != "" {
		f, err := cli.ParseOutputFormat(canonicalizeFlags.format, cli.FormatJSON, cli.FormatYAML)
		if err != nil {
			return err
		}
		docFormat = loader.Format(f)
	}

	p, err := s.loadCanonical(ctx, path)
	if err != nil {
		return cli.NewCommandError("canonicalize", err)
	}

	report := s.lint(ctx, p)
	if !acceptable(report, s.strict(false)) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Lint report:")
		writeIssues(cmd.ErrOrStderr(), report.Issues)
		fmt.Fprintln(cmd.ErrOrStderr(), "\nPolicy is not acceptable.")
		return cli.NewCommandError("canonicalize", cli.ErrRejected)
	}

	if !canonicalizeFlags.apply {
		data, err := loader.Encode(p, docFormat)
		if err != nil {
			return cli.NewCommandError("canonicalize", err)
		}
		_, err = out.Write(data)
		return err
	}

	if err := backupPolicy(cmd, s, p, canonicalizeFlags.writePrev, canonicalizeFlags.backup); err != nil {
		return cli.NewCommandError("canonicalize", err)
	}
	if err := loader.WritePolicy(path, p); err != nil {
		return cli.NewCommandError("canonicalize", err)
	}
	fmt.Fprintf(out, "Applied canonicalization. Wrote canonicalized policy to %s\n", path)
	return nil
}

// backupPolicy writes p to the --write-prev path, or to policy.prev_path
// when --backup is set. It does nothing when neither is given.
func backupPolicy(cmd *cobra.Command, s *session, p *policy.Policy, writePrev string, backup bool) error {
	target := writePrev
	if target == "" && backup {
		target = s.cfg.Policy.PrevPath
	}
	if target == "" {
		return nil
	}
	if err := loader.WritePolicy(target, p); err != nil {
		return fmt.Errorf("back up current policy: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Backed up current policy to %s\n", target)
	return nil
}

// fileExists reports whether path names an existing file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
