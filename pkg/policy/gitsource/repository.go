package gitsource

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"civility-hq/kernel/pkg/policy"
	"civility-hq/kernel/pkg/policy/loader"
)

var (
	// ErrNotRepository is returned when no repository encloses the path.
	ErrNotRepository = errors.New("not a git repository")

	// ErrFileNotFound is returned when the file is absent at the revision.
	ErrFileNotFound = errors.New("file not found at revision")

	// ErrOutsideRepository is returned for paths outside the work tree.
	ErrOutsideRepository = errors.New("path is outside the repository")
)

// CommitInfo contains metadata about a git commit.
type CommitInfo struct {
	SHA       string    `json:"sha"`
	Author    string    `json:"author"`
	Email     string    `json:"email"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

func commitInfo(c *object.Commit) *CommitInfo {
	return &CommitInfo{
		SHA:       c.Hash.String(),
		Author:    c.Author.Name,
		Email:     c.Author.Email,
		Timestamp: c.Author.When,
		Message:   strings.TrimSpace(c.Message),
	}
}

// Repository is a local git repository holding policy files.
type Repository struct {
	repo *gogit.Repository
	root string
}

// Open opens the repository enclosing path, searching parent directories.
func Open(path string) (*Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotRepository, path)
		}
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}

	root, err := filepath.EvalSymlinks(wt.Filesystem.Root())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repository root: %w", err)
	}

	return &Repository{repo: repo, root: root}, nil
}

// Root returns the work tree root.
func (r *Repository) Root() string {
	return r.root
}

// RelPath converts path to a slash-separated path relative to the root.
func (r *Repository) RelPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	// the file may not exist in the work tree, so resolve its directory
	if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		abs = filepath.Join(dir, filepath.Base(abs))
	}

	rel, err := filepath.Rel(r.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRepository, path)
	}
	return filepath.ToSlash(rel), nil
}

// Resolve returns the commit a revision names, such as "HEAD", "HEAD~1",
// a branch, a tag, or a hash.
func (r *Repository) Resolve(rev string) (*CommitInfo, error) {
	c, err := r.commit(rev)
	if err != nil {
		return nil, err
	}
	return commitInfo(c), nil
}

func (r *Repository) commit(rev string) (*object.Commit, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve revision %q: %w", rev, err)
	}
	c, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get commit %s: %w", hash, err)
	}
	return c, nil
}

// ReadFile returns the contents of path at revision rev.
func (r *Repository) ReadFile(rev, path string) ([]byte, *CommitInfo, error) {
	rel, err := r.RelPath(path)
	if err != nil {
		return nil, nil, err
	}
	c, err := r.commit(rev)
	if err != nil {
		return nil, nil, err
	}

	f, err := c.File(rel)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return nil, nil, fmt.Errorf("%w: %s@%s", ErrFileNotFound, rel, rev)
		}
		return nil, nil, fmt.Errorf("failed to read %s@%s: %w", rel, rev, err)
	}
	contents, err := f.Contents()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s@%s: %w", rel, rev, err)
	}
	return []byte(contents), commitInfo(c), nil
}

// LoadPolicy decodes the policy stored at path in revision rev.
func (r *Repository) LoadPolicy(rev, path string) (*policy.Policy, *CommitInfo, error) {
	data, info, err := r.ReadFile(rev, path)
	if err != nil {
		return nil, nil, err
	}
	p, err := loader.ParsePolicy(data, loader.FormatFor(path), path+"@"+rev)
	if err != nil {
		return nil, nil, err
	}
	return p, info, nil
}

// History returns up to limit commits that touched path, newest first.
// A limit of zero or less returns every commit.
func (r *Repository) History(path string, limit int) ([]*CommitInfo, error) {
	rel, err := r.RelPath(path)
	if err != nil {
		return nil, err
	}
	head, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}

	iter, err := r.repo.Log(&gogit.LogOptions{From: head.Hash(), FileName: &rel})
	if err != nil {
		return nil, fmt.Errorf("failed to get commit log: %w", err)
	}
	defer iter.Close()

	var history []*CommitInfo
	err = iter.ForEach(func(c *object.Commit) error {
		if limit > 0 && len(history) >= limit {
			return storer.ErrStop
		}
		history = append(history, commitInfo(c))
		return nil
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return nil, fmt.Errorf("failed to iterate commits: %w", err)
	}
	return history, nil
}
