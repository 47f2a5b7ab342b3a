package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"civility-hq/kernel/pkg/cli"
)

var (
	// Global flags
	cfgFile    string
	policyPath string
	verbose    bool
)

// annotationNoSession marks commands that run without loading config.
const annotationNoSession = "civility/no-session"

var rootCmd = &cobra.Command{
	Use:   "civility",
	Short: "Civility - preference policy engine for agent plans",
	Long: `Civility evaluates an agent's candidate plans against a preference policy
of hard constraints, soft weights, and context rules, and picks the plan to
execute, asks the user, or reports that no plan is valid.

The civility command manages the policy document itself:
  - Lint, canonicalize, explain and diff policies
  - Review and apply proposed policies and feedback-driven changes
  - Run decisions and keep an evidence trail of their traces
  - Serve decisions over HTTP while hot-reloading the policy

Exit codes: 0 success, 1 failure, 2 invalid flags or configuration,
3 policy rejected by lint.`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: startSession,
}

// Execute runs the root command and exits with the matching status.
func Execute() {
	ctx, cancel := cli.SetupSignalHandler(context.Background())
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

// run executes the command line in args and releases the session the
// command opened.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	current = nil
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if current != nil {
		if closeErr := current.close(err); closeErr != nil && err == nil {
			err = closeErr
		}
		current = nil
	}
	return err
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "civility.yaml", "config file path")
	rootCmd.PersistentFlags().StringVarP(&policyPath, "policy", "p", "", "policy file (overrides policy.path)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return cli.NewConfigError("flags", err.Error())
	})
}
