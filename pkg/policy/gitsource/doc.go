// Package gitsource reads policy documents from a git repository at a
// given revision, so a working-tree policy can be compared against the
// one committed at HEAD or any other revision.
//
// Usage:
//
//	repo, err := gitsource.Open(".")
//	if err != nil {
//	    return err
//	}
//	prev, commit, err := repo.LoadPolicy("HEAD", "policy.yaml")
//
// Paths may be absolute or relative to the current directory; they are
// resolved against the repository root.
package gitsource
