package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"civility-hq/kernel/pkg/cli"
	"civility-hq/kernel/pkg/policy/gitsource"
)

var historyFlags struct {
	limit  int
	format string
}

var historyCmd = &cobra.Command{
	Use:   "history [POLICY]",
	Short: "List the git commits that changed a policy",
	Long: `List the commits that touched a policy file, newest first, with the
policy version recorded at each commit.

Any listed commit can be passed to "civility diff --rev".

Examples:
  civility history
  civility history team/policy.yaml --limit 5 --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: policyHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyFlags.limit, "limit", 20, "max commits (0 lists all)")
	historyCmd.Flags().StringVar(&historyFlags.format, "format", "text", "output format: text, json, yaml, csv")
}

// HistoryEntry is one commit that changed the policy.
type HistoryEntry struct {
	gitsource.CommitInfo `yaml:",inline"`

	// PolicyVersion is empty when the file did not parse at the commit.
	PolicyVersion string `json:"policyVersion,omitempty" yaml:"policyVersion,omitempty"`
}

// PolicyHistory lists the commits of one policy file.
type PolicyHistory struct {
	Path    string         `json:"path" yaml:"path"`
	Commits []HistoryEntry `json:"commits" yaml:"commits"`
}

func (h PolicyHistory) WriteText(w io.Writer) error {
	if len(h.Commits) == 0 {
		fmt.Fprintf(w, "No commits touch %s.\n", h.Path)
		return nil
	}
	fmt.Fprintf(w, "History of %s:\n", h.Path)
	for _, c := range h.Commits {
		version := c.PolicyVersion
		if version == "" {
			version = "?"
		}
		subject, _, _ := strings.Cut(c.Message, "\n")
		fmt.Fprintf(w, "%s  %s  v%-8s %s <%s>  %s\n",
			shortSHA(c.SHA),
			c.Timestamp.UTC().Format(time.RFC3339),
			version,
			c.Author,
			c.Email,
			subject,
		)
	}
	return nil
}

func (h PolicyHistory) Header() []string {
	return []string{"sha", "timestamp", "policy_version", "author", "email", "message"}
}

func (h PolicyHistory) Rows() [][]string {
	rows := make([][]string, 0, len(h.Commits))
	for _, c := range h.Commits {
		rows = append(rows, []string{
			c.SHA,
			c.Timestamp.UTC().Format(time.RFC3339),
			c.PolicyVersion,
			c.Author,
			c.Email,
			c.Message,
		})
	}
	return rows
}

func policyHistory(cmd *cobra.Command, args []string) error {
	f, err := cli.ParseOutputFormat(historyFlags.format, cli.FormatText, cli.FormatJSON, cli.FormatYAML, cli.FormatCSV)
	if err != nil {
		return err
	}
	if historyFlags.limit < 0 {
		return cli.NewConfigError("--limit", "must not be negative")
	}

	s := current
	path := s.policyFile(args)

	repo, err := gitsource.Open(filepath.Dir(path))
	if err != nil {
		return cli.NewCommandError("history", err)
	}
	commits, err := repo.History(path, historyFlags.limit)
	if err != nil {
		return cli.NewCommandError("history", err)
	}

	h := PolicyHistory{Path: path, Commits: make([]HistoryEntry, 0, len(commits))}
	for _, c := range commits {
		entry := HistoryEntry{CommitInfo: *c}
		if p, _, err := repo.LoadPolicy(c.SHA, path); err == nil {
			entry.PolicyVersion = p.Version
		} else {
			s.logger.Debug("Policy unreadable at commit", "commit", c.SHA, "error", err)
		}
		h.Commits = append(h.Commits, entry)
	}
	return format(cmd, f, h)
}
