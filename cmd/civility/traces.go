package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"civility-hq/kernel/pkg/cli"
	"civility-hq/kernel/pkg/evidence"
	"civility-hq/kernel/pkg/evidence/export"
	"civility-hq/kernel/pkg/evidence/query"
	"civility-hq/kernel/pkg/evidence/recorder"
	"civility-hq/kernel/pkg/evidence/retention"
	"civility-hq/kernel/pkg/policy/engine"
)

var tracesFlags struct {
	timeRange     string
	decisionID    string
	context       string
	outcome       string
	chosenPlan    string
	policyVersion string
	limit         int
	offset        int
	sortBy        string
	sortOrder     string
	listFormat    string
	showFormat    string
	exportFormat  string
	exportLimit   int
	pretty        bool
	output        string
	maxAge        time.Duration
	maxRecords    int64
	archive       bool
}

var tracesCmd = &cobra.Command{
	Use:   "traces",
	Short: "Query recorded decision traces",
	Long: `Query, export, and prune the decision traces recorded as evidence.

Traces are written by "civility decide --record" and by the watch server
when a request asks for recording. Every record carries the SHA-256 hash
of its trace and of the policy it was decided under.

Subcommands:
  list    - List records matching filters
  show    - Show one record and verify its trace hash
  export  - Stream matching records as JSON or CSV
  prune   - Delete records past the retention limits

Examples:
  civility traces list --context travel --outcome ASK_USER
  civility traces show 5f0c1e9a-...
  civility traces export --format csv -o traces.csv
  civility traces prune --max-age 720h`,
}

var tracesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded decisions",
	Long: `List recorded decisions, newest first.

Time Range Format:
  RFC3339 interval format: "start/end"
  Example: "2026-05-01T00:00:00Z/2026-05-02T00:00:00Z"

Examples:
  civility traces list --time-range "2026-05-01T00:00:00Z/2026-05-02T00:00:00Z"
  civility traces list --outcome NO_VALID_PLAN --format json
  civility traces list --limit 20 --offset 20 --format csv`,
	Args: cobra.NoArgs,
	RunE: listTraces,
}

var tracesShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a recorded decision",
	Long: `Show one recorded decision with its full trace and check that the trace
still matches its stored hash.

A record whose trace no longer matches its hash fails with exit code 1.`,
	Args: cobra.ExactArgs(1),
	RunE: showTrace,
}

var tracesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recorded decisions",
	Long: `Stream recorded decisions matching the filters as a JSON array or CSV.

Examples:
  civility traces export -o traces.json
  civility traces export --context work --format csv -o work.csv`,
	Args: cobra.NoArgs,
	RunE: exportTraces,
}

var tracesPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete records past the retention limits",
	Long: `Delete records older than --max-age and the oldest records beyond
--max-records. Both default to evidence.retention in the configuration;
0 disables a limit.

With --archive, deleted records are first written to a JSON file under
evidence.retention.archive_path.`,
	Args: cobra.NoArgs,
	RunE: pruneTraces,
}

func init() {
	rootCmd.AddCommand(tracesCmd)
	tracesCmd.AddCommand(tracesListCmd, tracesShowCmd, tracesExportCmd, tracesPruneCmd)

	for _, c := range []*cobra.Command{tracesListCmd, tracesExportCmd} {
		c.Flags().StringVar(&tracesFlags.timeRange, "time-range", "", "decided time range (RFC3339 interval: start/end)")
		c.Flags().StringVar(&tracesFlags.decisionID, "decision-id", "", "filter by decision ID")
		c.Flags().StringVar(&tracesFlags.context, "context", "", "filter by decision context")
		c.Flags().StringVar(&tracesFlags.outcome, "outcome", "", "filter by outcome: EXECUTE, ASK_USER, NO_VALID_PLAN")
		c.Flags().StringVar(&tracesFlags.chosenPlan, "chosen-plan", "", "filter by chosen plan ID")
		c.Flags().StringVar(&tracesFlags.policyVersion, "policy-version", "", "filter by policy version")
		c.Flags().StringVar(&tracesFlags.sortBy, "sort-by", query.DefaultSortBy, "sort field: decided_time, recorded_time")
		c.Flags().StringVar(&tracesFlags.sortOrder, "sort-order", "desc", "sort order: asc, desc")
	}
	tracesListCmd.Flags().IntVar(&tracesFlags.limit, "limit", query.DefaultLimit, "max results")
	tracesListCmd.Flags().IntVar(&tracesFlags.offset, "offset", 0, "pagination offset")
	tracesListCmd.Flags().StringVar(&tracesFlags.listFormat, "format", "text", "output format: text, json, yaml, csv")

	tracesShowCmd.Flags().StringVar(&tracesFlags.showFormat, "format", "text", "output format: text, json, yaml")

	tracesExportCmd.Flags().IntVar(&tracesFlags.exportLimit, "limit", query.MaxLimit, "max records")
	tracesExportCmd.Flags().StringVar(&tracesFlags.exportFormat, "format", "json", "export format: json, csv")
	tracesExportCmd.Flags().BoolVar(&tracesFlags.pretty, "pretty", false, "indent JSON output")
	tracesExportCmd.Flags().StringVarP(&tracesFlags.output, "output", "o", "", "output file (default: stdout)")

	tracesPruneCmd.Flags().DurationVar(&tracesFlags.maxAge, "max-age", 0, "delete records older than this (default: evidence.retention.max_age)")
	tracesPruneCmd.Flags().Int64Var(&tracesFlags.maxRecords, "max-records", 0, "keep at most this many records (default: evidence.retention.max_records)")
	tracesPruneCmd.Flags().BoolVar(&tracesFlags.archive, "archive", false, "archive records before deleting them")
}

// traceQuery builds a validated query from the filter flags.
func traceQuery(limit, offset int) (*evidence.Query, error) {
	q := &evidence.Query{
		DecisionID:    tracesFlags.decisionID,
		Context:       tracesFlags.context,
		Outcome:       engine.Outcome(strings.ToUpper(tracesFlags.outcome)),
		ChosenPlanID:  tracesFlags.chosenPlan,
		PolicyVersion: tracesFlags.policyVersion,
		Limit:         limit,
		Offset:        offset,
		SortBy:        tracesFlags.sortBy,
		SortOrder:     tracesFlags.sortOrder,
	}

	if tracesFlags.timeRange != "" {
		parts := strings.Split(tracesFlags.timeRange, "/")
		if len(parts) != 2 {
			return nil, cli.NewConfigError("--time-range", "invalid time range format (expected: start/end)")
		}
		start, err := time.Parse(time.RFC3339, parts[0])
		if err != nil {
			return nil, cli.NewConfigError("--time-range", fmt.Sprintf("invalid start time: %v", err))
		}
		end, err := time.Parse(time.RFC3339, parts[1])
		if err != nil {
			return nil, cli.NewConfigError("--time-range", fmt.Sprintf("invalid end time: %v", err))
		}
		q.StartTime = &start
		q.EndTime = &end
	}

	if err := query.Validate(q); err != nil {
		return nil, cli.NewConfigError("query", err.Error())
	}
	query.ApplyDefaults(q)
	return q, nil
}

// TraceList is a page of recorded decisions.
type TraceList struct {
	Total   int64              `json:"total" yaml:"total"`
	Limit   int                `json:"limit" yaml:"limit"`
	Offset  int                `json:"offset" yaml:"offset"`
	Records []*evidence.Record `json:"records" yaml:"records"`
}

func (l TraceList) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "Total records: %d\n", l.Total)
	if len(l.Records) == 0 {
		fmt.Fprintln(w, "No records found.")
		return nil
	}
	fmt.Fprintln(w)
	for _, r := range l.Records {
		chosen := r.ChosenPlanID
		if chosen == "" {
			chosen = "-"
		}
		fmt.Fprintf(w, "%s  %s  %-8s %-13s %-8s %d/%d  v%s\n",
			r.ID,
			r.DecidedTime.UTC().Format(time.RFC3339),
			r.Context,
			r.Outcome,
			chosen,
			r.SurvivorCount,
			r.CandidateCount,
			r.PolicyVersion,
		)
	}
	if shown := int64(l.Offset + len(l.Records)); shown < l.Total {
		fmt.Fprintf(w, "\n... and %d more records\n", l.Total-shown)
		fmt.Fprintln(w, "Use --limit and --offset for pagination.")
	}
	return nil
}

func (l TraceList) Header() []string {
	return []string{"id", "decision_id", "decided_time", "context", "outcome", "chosen_plan_id", "survivors", "candidates", "policy_version"}
}

func (l TraceList) Rows() [][]string {
	rows := make([][]string, 0, len(l.Records))
	for _, r := range l.Records {
		rows = append(rows, []string{
			r.ID,
			r.DecisionID,
			r.DecidedTime.UTC().Format(time.RFC3339Nano),
			r.Context,
			string(r.Outcome),
			r.ChosenPlanID,
			strconv.Itoa(r.SurvivorCount),
			strconv.Itoa(r.CandidateCount),
			r.PolicyVersion,
		})
	}
	return rows
}

func listTraces(cmd *cobra.Command, args []string) error {
	f, err := cli.ParseOutputFormat(tracesFlags.listFormat, cli.FormatText, cli.FormatJSON, cli.FormatYAML, cli.FormatCSV)
	if err != nil {
		return err
	}
	q, err := traceQuery(tracesFlags.limit, tracesFlags.offset)
	if err != nil {
		return err
	}

	s := current
	ctx := cmd.Context()
	store, err := s.openStorage()
	if err != nil {
		return cli.NewCommandError("traces", err)
	}

	records, err := store.Query(ctx, q)
	if err != nil {
		return cli.NewCommandError("traces", fmt.Errorf("query failed: %w", err))
	}
	total, err := store.Count(ctx, q)
	if err != nil {
		return cli.NewCommandError("traces", fmt.Errorf("count failed: %w", err))
	}

	return format(cmd, f, TraceList{
		Total:   total,
		Limit:   q.Limit,
		Offset:  q.Offset,
		Records: records,
	})
}

// TraceDetail is one record and the result of checking its hash.
type TraceDetail struct {
	Record      *evidence.Record `json:"record" yaml:"record"`
	Verified    bool             `json:"verified" yaml:"verified"`
	VerifyError string           `json:"verifyError,omitempty" yaml:"verifyError,omitempty"`
}

func (d TraceDetail) WriteText(w io.Writer) error {
	r := d.Record
	fmt.Fprintf(w, "Record ID: %s\n", r.ID)
	fmt.Fprintf(w, "Decision ID: %s\n", r.DecisionID)
	fmt.Fprintf(w, "Decided: %s\n", r.DecidedTime.UTC().Format(time.RFC3339Nano))
	fmt.Fprintf(w, "Recorded: %s\n", r.RecordedTime.UTC().Format(time.RFC3339Nano))
	fmt.Fprintf(w, "Context: %s\n", r.Context)
	fmt.Fprintf(w, "Outcome: %s\n", r.Outcome)
	if r.ChosenPlanID != "" {
		fmt.Fprintf(w, "Chosen Plan: %s\n", r.ChosenPlanID)
	}
	fmt.Fprintf(w, "Candidates: %d (%d passed constraints)\n", r.CandidateCount, r.SurvivorCount)
	fmt.Fprintf(w, "Policy: v%s %s\n", r.PolicyVersion, r.PolicyHash)
	if r.PolicySource != "" {
		fmt.Fprintf(w, "Policy Source: %s\n", r.PolicySource)
	}
	fmt.Fprintf(w, "Trace Hash: %s\n", r.TraceHash)
	if d.Verified {
		fmt.Fprintln(w, "Integrity: OK")
	} else {
		fmt.Fprintf(w, "Integrity: FAILED (%s)\n", d.VerifyError)
	}

	if len(r.Trace.Rationale) > 0 {
		fmt.Fprintln(w, "\nRationale:")
		for _, line := range r.Trace.Rationale {
			fmt.Fprintf(w, "- %s\n", line)
		}
	}
	return nil
}

func showTrace(cmd *cobra.Command, args []string) error {
	f, err := cli.ParseOutputFormat(tracesFlags.showFormat, cli.FormatText, cli.FormatJSON, cli.FormatYAML)
	if err != nil {
		return err
	}

	s := current
	store, err := s.openStorage()
	if err != nil {
		return cli.NewCommandError("traces", err)
	}
	rec, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return cli.NewCommandError("traces", err)
	}

	detail := TraceDetail{Record: rec, Verified: true}
	verifyErr := recorder.Verify(rec)
	if verifyErr != nil {
		detail.Verified = false
		detail.VerifyError = verifyErr.Error()
	}
	if err := format(cmd, f, detail); err != nil {
		return cli.NewCommandError("traces", err)
	}
	return cli.NewCommandError("traces", verifyErr)
}

func exportTraces(cmd *cobra.Command, args []string) error {
	exporter, err := export.New(tracesFlags.exportFormat, tracesFlags.pretty)
	if err != nil {
		return cli.NewConfigError("--format", err.Error())
	}
	q, err := traceQuery(tracesFlags.exportLimit, 0)
	if err != nil {
		return err
	}

	s := current
	ctx := cmd.Context()
	store, err := s.openStorage()
	if err != nil {
		return cli.NewCommandError("traces", err)
	}

	total, err := store.Count(ctx, q)
	if err != nil {
		return cli.NewCommandError("traces", fmt.Errorf("count failed: %w", err))
	}
	if total > int64(q.Limit) {
		total = int64(q.Limit)
	}

	out := cmd.OutOrStdout()
	if tracesFlags.output != "" {
		file, err := os.Create(tracesFlags.output)
		if err != nil {
			return cli.NewCommandError("traces", fmt.Errorf("failed to create output file: %w", err))
		}
		defer file.Close()
		out = file
	}

	recordsCh, errCh, err := store.QueryStream(ctx, q)
	if err != nil {
		return cli.NewCommandError("traces", fmt.Errorf("query failed: %w", err))
	}

	progress := cli.NewProgressReporter(cmd.ErrOrStderr(), "records")
	progress.Start(total)
	counted := make(chan *evidence.Record)
	go func() {
		defer close(counted)
		for rec := range recordsCh {
			progress.Increment()
			counted <- rec
		}
	}()

	if err := exporter.ExportStream(ctx, counted, out); err != nil {
		progress.Error(err)
		for range counted {
		}
		return cli.NewCommandError("traces", fmt.Errorf("export failed: %w", err))
	}
	if err := <-errCh; err != nil {
		progress.Error(err)
		return cli.NewCommandError("traces", fmt.Errorf("query failed: %w", err))
	}
	progress.Finish()

	s.logger.InfoContext(ctx, "Traces exported",
		"format", tracesFlags.exportFormat,
		"records", total,
		"output", tracesFlags.output,
	)
	return nil
}

func pruneTraces(cmd *cobra.Command, args []string) error {
	s := current
	ctx := cmd.Context()
	ret := s.cfg.Evidence.Retention

	cfg := &retention.Config{
		MaxAge:              ret.MaxAge,
		MaxRecords:          ret.MaxRecords,
		ArchiveBeforeDelete: ret.ArchiveBeforeDelete || tracesFlags.archive,
		ArchivePath:         ret.ArchivePath,
	}
	if cmd.Flags().Changed("max-age") {
		cfg.MaxAge = tracesFlags.maxAge
	}
	if cmd.Flags().Changed("max-records") {
		cfg.MaxRecords = tracesFlags.maxRecords
	}
	if cfg.MaxAge < 0 || cfg.MaxRecords < 0 {
		return cli.NewConfigError("retention", "max-age and max-records must not be negative")
	}

	store, err := s.openStorage()
	if err != nil {
		return cli.NewCommandError("traces", err)
	}

	deleted, err := retention.NewPruner(store, cfg, s.logger).Prune(ctx)
	if err != nil {
		return cli.NewCommandError("traces", fmt.Errorf("prune failed: %w", err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d records.\n", deleted)
	return nil
}
