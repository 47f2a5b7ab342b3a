package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"civility-hq/kernel/pkg/cli"
	"civility-hq/kernel/pkg/policy/diff"
	"civility-hq/kernel/pkg/policy/lint"
)

// Diff display modes.
const (
	diffModeFull  = "full"
	diffModeShort = "short"
)

// acceptable reports whether a lint report passes. Under strict mode
// warnings reject the policy too.
func acceptable(r lint.Report, strict bool) bool {
	return r.OK && !(strict && r.HasWarnings())
}

// writeIssues prints one line per issue: SEVERITY CODE (path): message.
func writeIssues(w io.Writer, issues []lint.Issue) {
	for _, is := range issues {
		where := ""
		if is.Path != "" {
			where = " (" + is.Path + ")"
		}
		fmt.Fprintf(w, "%s %s%s: %s\n", strings.ToUpper(string(is.Severity)), is.Code, where, is.Message)
	}
}

// shortKind reports whether a change kind is shown in short mode.
func shortKind(k diff.Kind) bool {
	s := string(k)
	return strings.HasPrefix(s, "constraint_") ||
		strings.HasPrefix(s, "threshold_") ||
		strings.HasPrefix(s, "context_rule_")
}

// writeDiff prints the change items of d. Short mode hides weight and
// calibration changes and says how many were hidden.
func writeDiff(w io.Writer, d diff.Result, mode string) {
	if !d.Changed {
		fmt.Fprintln(w, "No changes.")
		return
	}

	items := d.Items
	if mode == diffModeShort {
		items = nil
		for _, it := range d.Items {
			if shortKind(it.Kind) {
				items = append(items, it)
			}
		}
		if len(items) == 0 {
			fmt.Fprintf(w, "(Changes hidden in short mode. %d total changes.)\n", len(d.Items))
			return
		}
	}

	for _, it := range items {
		fmt.Fprintf(w, "- %s\n", it.Message)
	}
	if hidden := len(d.Items) - len(items); hidden > 0 {
		fmt.Fprintf(w, "... and %d other changes (weights/calibration).\n", hidden)
	}
}

func parseDiffMode(mode string) (string, error) {
	switch mode {
	case diffModeFull, diffModeShort:
		return mode, nil
	default:
		return "", cli.NewConfigError("--mode", fmt.Sprintf("%q is not one of short, full", mode))
	}
}

// confirm asks a yes/no question on the command's streams. Anything but an
// answer starting with y is a no.
func confirm(cmd *cobra.Command, question string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s (y/N) ", question)
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y")
}

// format writes data to the command output in format f.
func format(cmd *cobra.Command, f cli.OutputFormat, data any) error {
	return cli.NewFormatter(f).FormatTo(cmd.OutOrStdout(), data)
}
