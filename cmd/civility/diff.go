package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"civility-hq/kernel/pkg/cli"
	"civility-hq/kernel/pkg/policy"
	"civility-hq/kernel/pkg/policy/canonical"
	"civility-hq/kernel/pkg/policy/diff"
	"civility-hq/kernel/pkg/policy/gitsource"
	"civility-hq/kernel/pkg/policy/loader"
)

var diffFlags struct {
	prev   string
	rev    string
	mode   string
	format string
}

var diffCmd = &cobra.Command{
	Use:   "diff [POLICY]",
	Short: "Show changes between a previous policy and the current one",
	Long: `Compare a previous version of a policy with the current one. Both sides
are canonicalized first, so reordering alone is never a change.

The previous version comes from --prev FILE, from --rev REV (the same file
at a git revision), or from policy.prev_path.

Short mode shows only constraint, threshold, and context rule changes and
counts the weight and calibration changes it hides.

Examples:
  # Compare with the backup written by propose --write-prev
  civility diff --prev policy.prev.json

  # Compare with the last commit
  civility diff --rev HEAD

  # Reviewer summary
  civility diff --rev main --mode short`,
	Args: cobra.MaximumNArgs(1),
	RunE: diffPolicy,
}

func init() {
	rootCmd.AddCommand(diffCmd)

	diffCmd.Flags().StringVar(&diffFlags.prev, "prev", "", "previous policy file (default: policy.prev_path)")
	diffCmd.Flags().StringVar(&diffFlags.rev, "rev", "", "git revision holding the previous version of the policy file")
	diffCmd.Flags().StringVar(&diffFlags.mode, "mode", diffModeFull, "diff mode: short, full")
	diffCmd.Flags().StringVar(&diffFlags.format, "format", "text", "output format: text, json, yaml")
	diffCmd.MarkFlagsMutuallyExclusive("prev", "rev")
}

// DiffResult is the comparison of two policy versions.
type DiffResult struct {
	From   string      `json:"from" yaml:"from"`
	To     string      `json:"to" yaml:"to"`
	Mode   string      `json:"mode" yaml:"mode"`
	Result diff.Result `json:"result" yaml:"result"`
}

func (r DiffResult) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "Diff %s -> %s:\n", r.From, r.To)
	writeDiff(w, r.Result, r.Mode)
	return nil
}

func diffPolicy(cmd *cobra.Command, args []string) error {
	mode, err := parseDiffMode(diffFlags.mode)
	if err != nil {
		return err
	}
	f, err := cli.ParseOutputFormat(diffFlags.format, cli.FormatText, cli.FormatJSON, cli.FormatYAML)
	if err != nil {
		return err
	}

	s := current
	ctx := cmd.Context()
	path := s.policyFile(args)

	cur, err := s.loadCanonical(ctx, path)
	if err != nil {
		return cli.NewCommandError("diff", err)
	}

	prev, from, err := loadPrevious(s, path)
	if err != nil {
		return cli.NewCommandError("diff", err)
	}

	res := DiffResult{
		From:   from,
		To:     path,
		Mode:   mode,
		Result: diff.Policies(prev, cur, s.deps.Registry),
	}
	s.logger.InfoContext(ctx, "Policies compared",
		"from", from,
		"to", path,
		"changes", len(res.Result.Items),
	)
	return format(cmd, f, res)
}

// loadPrevious loads the canonical previous version of the policy at path
// and names where it came from.
func loadPrevious(s *session, path string) (*policy.Policy, string, error) {
	if diffFlags.rev != "" {
		repo, err := gitsource.Open(filepath.Dir(path))
		if err != nil {
			return nil, "", err
		}
		p, info, err := repo.LoadPolicy(diffFlags.rev, path)
		if err != nil {
			return nil, "", err
		}
		s.logger.Debug("Loaded policy from git",
			"rev", diffFlags.rev,
			"commit", info.SHA,
			"author", info.Author,
		)
		return canonical.Policy(p, s.deps.Registry), fmt.Sprintf("%s@%s", path, shortSHA(info.SHA)), nil
	}

	prevPath := diffFlags.prev
	if prevPath == "" {
		prevPath = s.cfg.Policy.PrevPath
		if !fileExists(prevPath) {
			return nil, "", cli.NewConfigError("--prev", fmt.Sprintf("no previous policy at %s; pass --prev or --rev", prevPath))
		}
	}
	p, err := loader.LoadPolicy(prevPath)
	if err != nil {
		return nil, "", err
	}
	return canonical.Policy(p, s.deps.Registry), prevPath, nil
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
