/*
Package cli provides helpers shared by the civility command.

Output Formatting:

Commands render results as text, markdown, JSON, YAML, or CSV. Results
that know how to print themselves implement TextWriter; tabular results
implement Table for CSV:

	format, err := cli.ParseOutputFormat(flags.format, cli.FormatText, cli.FormatJSON)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), report)

Errors:

Commands wrap failures with NewCommandError. ExitCode maps the result to a
process status: ErrRejected (a policy failed lint) exits 3, a ConfigError
exits 2, anything else exits 1.

Progress Reporting:

	progress := cli.NewProgressReporter(os.Stderr, "records")
	progress.Start(total)
	for range records {
		progress.Increment()
	}
	progress.Finish()

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()
*/
package cli
