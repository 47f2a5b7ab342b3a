package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"civility-hq/kernel/pkg/cli"
	"civility-hq/kernel/pkg/policy/feedback"
)

var feedbackFlags struct {
	events    string
	apply     bool
	yes       bool
	writePrev string
	backup    bool
	format    string
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback [POLICY]",
	Short: "Propose calibration changes from user feedback",
	Long: `Read a list of feedback events and propose calibration changes.

Three or more UNDO events lower initiative by 0.1. Two or more THUMBS_DOWN
events on the "concise" weight lower verbosity by 0.1. Five or more
THUMBS_DOWN events with no other proposal suggest asking the user to
clarify their preferences. Values never drop below 0.

Proposals are only printed unless --apply is given, which reviews the
patched policy like propose does.

Events file (JSON or YAML):
  [
    {"type": "UNDO", "timestamp": "2026-05-01T10:00:00Z"},
    {"type": "THUMBS_DOWN", "weightKey": "concise", "timestamp": "2026-05-01T10:05:00Z"}
  ]

Examples:
  civility feedback --events events.json
  civility feedback --events events.json --apply --yes --backup`,
	Args: cobra.MaximumNArgs(1),
	RunE: proposeFromFeedback,
}

func init() {
	rootCmd.AddCommand(feedbackCmd)

	feedbackCmd.Flags().StringVar(&feedbackFlags.events, "events", "", "feedback events file (required)")
	feedbackCmd.Flags().BoolVar(&feedbackFlags.apply, "apply", false, "review and apply the proposals")
	feedbackCmd.Flags().BoolVarP(&feedbackFlags.yes, "yes", "y", false, "apply without asking")
	feedbackCmd.Flags().StringVar(&feedbackFlags.writePrev, "write-prev", "", "back up the current policy to this path before writing")
	feedbackCmd.Flags().BoolVar(&feedbackFlags.backup, "backup", false, "back up the current policy to policy.prev_path before writing")
	feedbackCmd.Flags().StringVar(&feedbackFlags.format, "format", "text", "output format: text, json, yaml")
	_ = feedbackCmd.MarkFlagRequired("events")
}

// FeedbackResult lists the proposals derived from a feedback file.
type FeedbackResult struct {
	Events    int                 `json:"events" yaml:"events"`
	Proposals []feedback.Proposal `json:"proposals" yaml:"proposals"`
}

func (r FeedbackResult) WriteText(w io.Writer) error {
	if len(r.Proposals) == 0 {
		fmt.Fprintf(w, "No proposals from %d events.\n", r.Events)
		return nil
	}
	fmt.Fprintf(w, "Proposals from %d events:\n", r.Events)
	for _, p := range r.Proposals {
		fmt.Fprintf(w, "- %s\n", p.Reason)
		if cal := p.Patch.Calibration; cal != nil {
			if cal.Initiative != nil {
				fmt.Fprintf(w, "    calibration.initiative -> %.2f\n", *cal.Initiative)
			}
			if cal.Verbosity != nil {
				fmt.Fprintf(w, "    calibration.verbosity -> %.2f\n", *cal.Verbosity)
			}
			if cal.RiskTolerance != nil {
				fmt.Fprintf(w, "    calibration.riskTolerance -> %.2f\n", *cal.RiskTolerance)
			}
		}
	}
	return nil
}

func proposeFromFeedback(cmd *cobra.Command, args []string) error {
	f, err := cli.ParseOutputFormat(feedbackFlags.format, cli.FormatText, cli.FormatJSON, cli.FormatYAML)
	if err != nil {
		return err
	}

	s := current
	ctx := cmd.Context()
	path := s.policyFile(args)

	cur, err := s.loadCanonical(ctx, path)
	if err != nil {
		return cli.NewCommandError("feedback", err)
	}
	events, err := feedback.LoadEvents(feedbackFlags.events)
	if err != nil {
		return cli.NewCommandError("feedback", err)
	}

	proposals := feedback.Propose(cur, events)
	s.logger.InfoContext(ctx, "Feedback analyzed",
		"events", len(events),
		"proposals", len(proposals),
	)
	if err := format(cmd, f, FeedbackResult{Events: len(events), Proposals: proposals}); err != nil {
		return cli.NewCommandError("feedback", err)
	}
	if !feedbackFlags.apply || len(proposals) == 0 {
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout())
	return cli.NewCommandError("feedback", applyChange(ctx, cmd, s, change{
		path:      path,
		current:   cur,
		proposed:  feedback.ApplyAll(cur, proposals),
		strict:    s.strict(false),
		mode:      diffModeFull,
		apply:     feedbackFlags.yes,
		writePrev: feedbackFlags.writePrev,
		backup:    feedbackFlags.backup,
	}))
}
