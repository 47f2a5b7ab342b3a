package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

type result struct {
	stdout string
	stderr string
	err    error
}

// execute runs the CLI with args, feeding stdin to prompts.
func execute(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr syncBuffer
	return executeContext(t, context.Background(), &stdout, &stderr, stdin, args...)
}

func executeContext(t *testing.T, ctx context.Context, stdout, stderr *syncBuffer, stdin string, args ...string) result {
	t.Helper()
	resetCommands(rootCmd)
	rootCmd.SetIn(strings.NewReader(stdin))
	err := run(ctx, args, stdout, stderr)
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// syncBuffer is a bytes.Buffer safe for the concurrent writes of watch
// callbacks.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// resetCommands restores every flag to its default and drops contexts
// left by earlier runs.
func resetCommands(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	cmd.SetContext(nil)
	for _, c := range cmd.Commands() {
		resetCommands(c)
	}
}

// workspace is a temp directory holding a config file and copies of
// testdata files.
type workspace struct {
	dir    string
	config string
}

func newWorkspace(t *testing.T, files ...string) *workspace {
	t.Helper()
	dir := t.TempDir()
	for _, name := range files {
		copyFile(t, filepath.Join("testdata", name), filepath.Join(dir, name))
	}

	ws := &workspace{dir: dir, config: filepath.Join(dir, "civility.yaml")}
	cfg := fmt.Sprintf(`policy:
  path: %s
  prev_path: %s
evidence:
  enabled: true
  backend: sqlite
  sqlite:
    path: %s
    wal_mode: false
  retention:
    archive_path: %s
telemetry:
  logging:
    level: error
`, ws.path("policy.json"), ws.path("policy.prev.json"), ws.path("traces.db"), ws.path("archives"))
	require.NoError(t, os.WriteFile(ws.config, []byte(cfg), 0o644))
	return ws
}

func (w *workspace) path(name string) string {
	return filepath.Join(w.dir, name)
}

// run executes the CLI against the workspace config.
func (w *workspace) run(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	return execute(t, stdin, append([]string{"--config", w.config}, args...)...)
}

func copyFile(t *testing.T, from, to string) {
	t.Helper()
	data, err := os.ReadFile(from)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(to, data, 0o644))
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}
