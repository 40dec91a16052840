// Package gitinfo captures the state of the project's git repository for
// release annotation. A project without a repository is fine; everything
// degrades to an empty Info.
package gitinfo

import (
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/felloworks/wheelwright/internal/errors"
)

// Info is a snapshot of the repository state at release time.
type Info struct {
	Present bool
	Commit  string
	Branch  string
	Tag     string // tag pointing exactly at HEAD, if any
	Dirty   bool
}

// Short returns the abbreviated commit hash.
func (i Info) Short() string {
	if len(i.Commit) < 8 {
		return i.Commit
	}
	return i.Commit[:8]
}

// Describe renders a compact human-readable summary for logs and reports.
func (i Info) Describe() string {
	if !i.Present {
		return "no repository"
	}
	state := "clean"
	if i.Dirty {
		state = "dirty"
	}
	if i.Tag != "" {
		return fmt.Sprintf("%s (%s, %s)", i.Tag, i.Short(), state)
	}
	return fmt.Sprintf("%s (%s)", i.Short(), state)
}

// Collect reads the repository containing root. A missing repository is
// not an error.
func Collect(root string) (Info, error) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if stderrors.Is(err, git.ErrRepositoryNotExists) {
			slog.Debug("No git repository found for project", slog.String("root", root))
			return Info{}, nil
		}
		return Info{}, errors.WrapError(err, errors.CategoryGit, "opening project repository").
			WithContext("root", root).
			Build()
	}

	head, err := repo.Head()
	if err != nil {
		// Fresh repository without commits: annotate as present but empty.
		if stderrors.Is(err, plumbing.ErrReferenceNotFound) {
			return Info{Present: true}, nil
		}
		return Info{}, errors.WrapError(err, errors.CategoryGit, "resolving HEAD").Build()
	}

	info := Info{
		Present: true,
		Commit:  head.Hash().String(),
	}
	if head.Name().IsBranch() {
		info.Branch = head.Name().Short()
	}

	if tag, err := tagAt(repo, head.Hash()); err == nil {
		info.Tag = tag
	}

	wt, err := repo.Worktree()
	if err != nil {
		return Info{}, errors.WrapError(err, errors.CategoryGit, "opening worktree").Build()
	}
	status, err := wt.Status()
	if err != nil {
		return Info{}, errors.WrapError(err, errors.CategoryGit, "reading worktree status").Build()
	}
	info.Dirty = !status.IsClean()

	return info, nil
}

// tagAt finds a tag whose peeled target is the given commit.
func tagAt(repo *git.Repository, hash plumbing.Hash) (string, error) {
	tags, err := repo.Tags()
	if err != nil {
		return "", err
	}
	defer tags.Close()

	var found string
	err = tags.ForEach(func(ref *plumbing.Reference) error {
		target, err := repo.ResolveRevision(plumbing.Revision(ref.Name()))
		if err != nil {
			return nil
		}
		if *target == hash {
			found = ref.Name().Short()
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return found, nil
}
