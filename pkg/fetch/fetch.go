// pkg/fetch/fetch.go

// Package fetch acquires git sources: the application tree and the ruby
// version-manager tooling.
package fetch

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	cerr "github.com/cockroachdb/errors"
	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/opsbrew/canvasup/pkg/cup_io"
	"github.com/opsbrew/canvasup/pkg/execute"
	"github.com/opsbrew/canvasup/pkg/shared"
)

// Application clones the Canvas source to its fixed path. An existing
// checkout is updated in place, never re-cloned over; this returns
// skipped=true so the caller can record the warning.
func Application(rc *cup_io.RuntimeContext) (skipped bool, err error) {
	logger := otelzap.Ctx(rc.Ctx)

	if err := ensureOwnedDir(rc, shared.CanvasDir); err != nil {
		return false, err
	}

	if _, err := os.Stat(filepath.Join(shared.CanvasDir, ".git")); err == nil {
		logger.Warn("Application checkout already present, fetching updates instead of cloning",
			zap.String("path", shared.CanvasDir))
		if err := update(rc, shared.CanvasDir, shared.CanvasRepoBranch); err != nil {
			return false, err
		}
		return true, nil
	}

	logger.Info("Cloning application source",
		zap.String("url", shared.CanvasRepoURL),
		zap.String("branch", shared.CanvasRepoBranch),
		zap.String("path", shared.CanvasDir))

	_, err = git.PlainCloneContext(rc.Ctx, shared.CanvasDir, false, &git.CloneOptions{
		URL:           shared.CanvasRepoURL,
		ReferenceName: plumbing.NewBranchReferenceName(shared.CanvasRepoBranch),
		SingleBranch:  true,
		Depth:         1,
	})
	if err != nil {
		return false, cerr.Wrap(err, "clone application source")
	}
	return false, nil
}

// CloneOrUpdate clones a repository to path, or pulls if already present.
// Used for the version-manager tooling under the installer's home.
func CloneOrUpdate(rc *cup_io.RuntimeContext, url, path string) error {
	logger := otelzap.Ctx(rc.Ctx)

	if _, err := os.Stat(filepath.Join(path, ".git")); err == nil {
		logger.Debug("Repository already present, updating", zap.String("path", path))
		return update(rc, path, "")
	}

	logger.Info("Cloning repository", zap.String("url", url), zap.String("path", path))
	_, err := git.PlainCloneContext(rc.Ctx, path, false, &git.CloneOptions{
		URL:   url,
		Depth: 1,
	})
	if err != nil {
		return cerr.Wrapf(err, "clone %s", url)
	}
	return nil
}

// update converges an existing checkout on the remote branch tip with
// fetch+reset. Pull is avoided: merging into a shallow clone is unreliable.
// An empty branch means the checkout's current branch.
func update(rc *cup_io.RuntimeContext, path, branch string) error {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return cerr.Wrapf(err, "open repository at %s", path)
	}

	if branch == "" {
		head, err := repo.Head()
		if err != nil {
			return cerr.Wrapf(err, "resolve HEAD of %s", path)
		}
		branch = head.Name().Short()
	}

	refspec := gitconfig.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/origin/%s", branch, branch))
	err = repo.FetchContext(rc.Ctx, &git.FetchOptions{
		RemoteName: "origin",
		RefSpecs:   []gitconfig.RefSpec{refspec},
		Depth:      1,
		Force:      true,
		Tags:       git.NoTags,
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return cerr.Wrapf(err, "fetch %s", path)
	}

	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err != nil {
		return cerr.Wrapf(err, "resolve origin/%s", branch)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return cerr.Wrap(err, "open worktree")
	}
	if err := wt.Reset(&git.ResetOptions{Mode: git.HardReset, Commit: remoteRef.Hash()}); err != nil {
		return cerr.Wrapf(err, "reset %s to origin/%s", path, branch)
	}
	return nil
}

// ensureOwnedDir creates a root-level directory and hands it to the invoking
// user so unprivileged git and build operations work inside it.
func ensureOwnedDir(rc *cup_io.RuntimeContext, dir string) error {
	current, err := user.Current()
	if err != nil {
		return cerr.Wrap(err, "resolve current user")
	}
	if err := execute.RunSudo(rc.Ctx, "mkdir", "-p", dir); err != nil {
		return cerr.Wrapf(err, "create %s", dir)
	}
	if err := execute.RunSudo(rc.Ctx, "chown", current.Username+":"+current.Username, dir); err != nil {
		return cerr.Wrapf(err, "chown %s", dir)
	}
	return nil
}
