package gitsource

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// createTestRepo initializes a repository and commits each content in turn
// to policy.yaml.
func createTestRepo(t *testing.T, contents ...string) string {
	t.Helper()

	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("failed to init repo: %v", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}

	for i, content := range contents {
		if err := os.WriteFile(filepath.Join(dir, "policy.yaml"), []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write policy: %v", err)
		}
		if _, err := worktree.Add("policy.yaml"); err != nil {
			t.Fatalf("failed to add file: %v", err)
		}
		_, err = worktree.Commit("policy update", &gogit.CommitOptions{
			Author: &object.Signature{
				Name:  "Test User",
				Email: "test@example.com",
				When:  time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC),
			},
		})
		if err != nil {
			t.Fatalf("failed to commit: %v", err)
		}
	}
	return dir
}

const (
	policyV1 = "version: \"1\"\nweights:\n  efficiency: 1\nuncertaintyThreshold: 0.5\n"
	policyV2 = "version: \"2\"\nweights:\n  efficiency: 1\n  low_risk: 1\nuncertaintyThreshold: 0.3\n"
)

func TestOpen_NotRepository(t *testing.T) {
	_, err := Open(t.TempDir())
	if !errors.Is(err, ErrNotRepository) {
		t.Errorf("Open() error = %v, want ErrNotRepository", err)
	}
}

func TestOpen_DetectsParent(t *testing.T) {
	dir := createTestRepo(t, policyV1)
	sub := filepath.Join(dir, "nested", "deeper")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	repo, err := Open(sub)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	want, _ := filepath.EvalSymlinks(dir)
	if repo.Root() != want {
		t.Errorf("Root() = %q, want %q", repo.Root(), want)
	}
}

func TestRepository_LoadPolicy(t *testing.T) {
	dir := createTestRepo(t, policyV1, policyV2)
	repo, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	path := filepath.Join(dir, "policy.yaml")

	tests := []struct {
		rev         string
		wantVersion string
		wantThr     float64
	}{
		{"HEAD", "2", 0.3},
		{"HEAD~1", "1", 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.rev, func(t *testing.T) {
			p, info, err := repo.LoadPolicy(tt.rev, path)
			if err != nil {
				t.Fatalf("LoadPolicy() error = %v", err)
			}
			if p.Version != tt.wantVersion || p.UncertaintyThreshold != tt.wantThr {
				t.Errorf("LoadPolicy() = version %q threshold %v, want %q %v", p.Version, p.UncertaintyThreshold, tt.wantVersion, tt.wantThr)
			}
			if info == nil || len(info.SHA) != 40 || info.Message != "policy update" {
				t.Errorf("CommitInfo = %+v", info)
			}
		})
	}
}

func TestRepository_ReadFileErrors(t *testing.T) {
	dir := createTestRepo(t, policyV1)
	repo, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if _, _, err := repo.ReadFile("HEAD", filepath.Join(dir, "missing.yaml")); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("ReadFile(missing) error = %v, want ErrFileNotFound", err)
	}
	if _, _, err := repo.ReadFile("no-such-branch", filepath.Join(dir, "policy.yaml")); err == nil {
		t.Error("ReadFile(bad rev) error = nil, want error")
	}
	if _, _, err := repo.ReadFile("HEAD", filepath.Join(t.TempDir(), "policy.yaml")); !errors.Is(err, ErrOutsideRepository) {
		t.Errorf("ReadFile(outside) error = %v, want ErrOutsideRepository", err)
	}
}

func TestRepository_History(t *testing.T) {
	dir := createTestRepo(t, policyV1, policyV2, policyV1)
	repo, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	path := filepath.Join(dir, "policy.yaml")

	all, err := repo.History(path, 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("History() returned %d commits, want 3", len(all))
	}
	if !all[0].Timestamp.After(all[2].Timestamp) {
		t.Errorf("History() not newest first: %v then %v", all[0].Timestamp, all[2].Timestamp)
	}

	limited, err := repo.History(path, 2)
	if err != nil {
		t.Fatalf("History(limit) error = %v", err)
	}
	if len(limited) != 2 || limited[0].SHA != all[0].SHA {
		t.Errorf("History(limit) = %+v", limited)
	}
}
