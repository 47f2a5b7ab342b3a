package main

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"civility-hq/kernel/pkg/cli"
	"civility-hq/kernel/pkg/decision"
	"civility-hq/kernel/pkg/policy/loader"
)

var decideFlags struct {
	plans    string
	context  string
	annotate bool
	record   bool
	format   string
}

var decideCmd = &cobra.Command{
	Use:   "decide [POLICY]",
	Short: "Choose among candidate plans under a policy",
	Long: `Evaluate a batch of candidate plans under a policy and print the decision.

Every plan is checked against the hard constraints, the survivors are
scored, and the best one is chosen. When any plan's uncertainty exceeds the
policy threshold the outcome is ASK_USER; when no plan survives it is
NO_VALID_PLAN.

With --record the decision trace is stored as evidence in the configured
evidence store.

Plans file (JSON or YAML), a list of plans or {"plans": [...]}:
  [
    {"id": "A", "summary": "Book the 9am flight",
     "steps": [{"kind": "action", "detail": "purchase ticket"}],
     "meta": {"estimatedCost": 420, "estimatedTimeSec": 300}}
  ]

Examples:
  civility decide --plans plans.json --context travel
  civility decide --plans plans.yaml --context work --annotate --record
  civility decide --plans plans.json --context travel --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: decidePlans,
}

func init() {
	rootCmd.AddCommand(decideCmd)

	decideCmd.Flags().StringVar(&decideFlags.plans, "plans", "", "candidate plans file (required)")
	decideCmd.Flags().StringVar(&decideFlags.context, "context", "", "decision context, e.g. work or travel (required)")
	decideCmd.Flags().BoolVar(&decideFlags.annotate, "annotate", false, "derive plan tags from step details before deciding")
	decideCmd.Flags().BoolVar(&decideFlags.record, "record", false, "store the decision trace as evidence")
	decideCmd.Flags().StringVar(&decideFlags.format, "format", "text", "output format: text, json, yaml")
	_ = decideCmd.MarkFlagRequired("plans")
	_ = decideCmd.MarkFlagRequired("context")
}

// DecideResult is a decision as printed by the decide command.
type DecideResult struct {
	decision.Result `yaml:",inline"`
}

func (r DecideResult) WriteText(w io.Writer) error {
	t := r.Trace
	fmt.Fprintf(w, "Decision %s (context %s)\n", t.DecisionID, t.Context)
	fmt.Fprintf(w, "Outcome: %s\n", t.Outcome)
	if r.Chosen != nil {
		fmt.Fprintf(w, "Chosen: %s - %s\n", r.Chosen.ID, r.Chosen.Summary)
	}

	fmt.Fprintln(w, "\nCandidates:")
	for _, c := range t.Candidates {
		if !c.Eval.PassesConstraints {
			fmt.Fprintf(w, "  %s  rejected\n", c.Plan.ID)
			for _, v := range c.Eval.ViolatedConstraints {
				fmt.Fprintf(w, "      %s: %s\n", v.ID, v.Reason)
			}
			continue
		}
		fmt.Fprintf(w, "  %s  utility %s\n", c.Plan.ID, formatUtility(c.Eval.Utility))
		if len(c.Eval.Scores) > 0 {
			fmt.Fprintf(w, "      %s\n", formatScores(c.Eval.Scores))
		}
	}

	if len(t.Rationale) > 0 {
		fmt.Fprintln(w, "\nRationale:")
		for _, line := range t.Rationale {
			fmt.Fprintf(w, "- %s\n", line)
		}
	}
	if r.RecordID != "" {
		fmt.Fprintf(w, "\nRecorded as %s (trace hash %s)\n", r.RecordID, r.TraceHash)
	}
	return nil
}

func formatUtility(u float64) string {
	if math.IsInf(u, 0) || math.IsNaN(u) {
		return "-"
	}
	return fmt.Sprintf("%.4f", u)
}

func formatScores(scores map[string]float64) string {
	keys := make([]string, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%.2f", k, scores[k])
	}
	return strings.Join(parts, " ")
}

func decidePlans(cmd *cobra.Command, args []string) error {
	f, err := cli.ParseOutputFormat(decideFlags.format, cli.FormatText, cli.FormatJSON, cli.FormatYAML)
	if err != nil {
		return err
	}

	s := current
	ctx := cmd.Context()
	path := s.policyFile(args)

	p, err := s.loadCanonical(ctx, path)
	if err != nil {
		return cli.NewCommandError("decide", err)
	}
	plans, err := loader.LoadPlans(decideFlags.plans)
	if err != nil {
		return cli.NewCommandError("decide", err)
	}

	opts := []decision.Option{
		decision.WithTracer(s.tracer),
		decision.WithLogger(s.logger),
		decision.WithSourceName(path),
	}
	if decideFlags.record {
		store, err := s.openStorage()
		if err != nil {
			return cli.NewCommandError("decide", err)
		}
		opts = append(opts, decision.WithRecorder(s.newRecorder(store)))
	}

	svc := decision.New(s.newEngine(), decision.StaticSource{Policy: p}, opts...)
	res, err := svc.Decide(ctx, decision.Request{
		Context:  decideFlags.context,
		Plans:    plans,
		Annotate: decideFlags.annotate,
		Record:   decideFlags.record,
	})
	if err != nil && res.Trace.DecisionID == "" {
		return cli.NewCommandError("decide", err)
	}
	if ferr := format(cmd, f, DecideResult{res}); ferr != nil {
		return cli.NewCommandError("decide", ferr)
	}
	return cli.NewCommandError("decide", err)
}
