package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"civility-hq/kernel/pkg/cli"
	"civility-hq/kernel/pkg/policy"
	"civility-hq/kernel/pkg/policy/diff"
	"civility-hq/kernel/pkg/policy/loader"
)

var proposeFlags struct {
	apply     bool
	strict    bool
	writePrev string
	backup    bool
	mode      string
}

var proposeCmd = &cobra.Command{
	Use:   "propose PROPOSED",
	Short: "Review and apply a proposed policy",
	Long: `Lint a proposed policy, show how it differs from the current one, and
write it over the current policy once confirmed.

The proposed policy is canonicalized before it is linted and written. A
proposal that fails lint is never applied (exit code 3).

Examples:
  # Review interactively
  civility propose proposed.json

  # Apply without asking, keeping a backup
  civility propose proposed.json --apply --write-prev policy.prev.json

  # Review against a specific policy file
  civility propose proposed.yaml --policy team/policy.yaml --mode short`,
	Args: cobra.ExactArgs(1),
	RunE: proposePolicy,
}

func init() {
	rootCmd.AddCommand(proposeCmd)

	proposeCmd.Flags().BoolVar(&proposeFlags.apply, "apply", false, "apply without asking")
	proposeCmd.Flags().BoolVarP(&proposeFlags.apply, "yes", "y", false, "apply without asking (same as --apply)")
	proposeCmd.Flags().BoolVar(&proposeFlags.strict, "strict", false, "treat warnings as errors")
	proposeCmd.Flags().StringVar(&proposeFlags.writePrev, "write-prev", "", "back up the current policy to this path before writing")
	proposeCmd.Flags().BoolVar(&proposeFlags.backup, "backup", false, "back up the current policy to policy.prev_path before writing")
	proposeCmd.Flags().StringVar(&proposeFlags.mode, "mode", diffModeFull, "diff mode: short, full")
}

func proposePolicy(cmd *cobra.Command, args []string) error {
	mode, err := parseDiffMode(proposeFlags.mode)
	if err != nil {
		return err
	}

	s := current
	ctx := cmd.Context()
	path := s.cfg.Policy.Path

	cur, err := s.loadCanonical(ctx, path)
	if err != nil {
		return cli.NewCommandError("propose", err)
	}
	proposed, err := s.loadCanonical(ctx, args[0])
	if err != nil {
		return cli.NewCommandError("propose", err)
	}

	return cli.NewCommandError("propose", applyChange(ctx, cmd, s, change{
		path:      path,
		current:   cur,
		proposed:  proposed,
		strict:    s.strict(proposeFlags.strict),
		mode:      mode,
		apply:     proposeFlags.apply,
		writePrev: proposeFlags.writePrev,
		backup:    proposeFlags.backup,
	}))
}

// change is a candidate replacement of the policy at path.
type change struct {
	path      string
	current   *policy.Policy
	proposed  *policy.Policy
	strict    bool
	mode      string
	apply     bool
	writePrev string
	backup    bool
}

// applyChange lints the proposed policy, prints the diff, asks for
// confirmation unless c.apply is set, and writes the proposed policy.
func applyChange(ctx context.Context, cmd *cobra.Command, s *session, c change) error {
	out := cmd.OutOrStdout()

	report := s.lint(ctx, c.proposed)
	fmt.Fprintln(out, "Proposed policy lint:")
	if len(report.Issues) > 0 {
		writeIssues(out, report.Issues)
	} else {
		fmt.Fprintln(out, "OK")
	}
	if !acceptable(report, c.strict) {
		fmt.Fprintln(out, "\nProposed policy is not acceptable. Not applying.")
		return cli.ErrRejected
	}

	d := diff.Policies(c.current, c.proposed, s.deps.Registry)
	fmt.Fprintln(out, "\nProposed changes:")
	writeDiff(out, d, c.mode)
	if !d.Changed {
		return nil
	}

	if !c.apply {
		fmt.Fprintln(out)
		if !confirm(cmd, "Apply these changes?") {
			fmt.Fprintln(out, "Not applied.")
			return nil
		}
	}

	if err := backupPolicy(cmd, s, c.current, c.writePrev, c.backup); err != nil {
		return err
	}
	if err := loader.WritePolicy(c.path, c.proposed); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Policy updated",
		"path", c.path,
		"from_version", c.current.Version,
		"to_version", c.proposed.Version,
		"changes", len(d.Items),
	)
	fmt.Fprintf(out, "Applied. Wrote canonicalized policy to %s\n", c.path)
	return nil
}
