package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/swarmd/internal/logging"
)

// GitWorkspaces materializes isolated task workspaces as git clones of a
// source repository, each on its own branch. Clones land under root, one
// directory per task id.
type GitWorkspaces struct {
	sourceURL string
	root      string
	logger    *logging.Logger
}

// NewGitWorkspaces creates a workspace manager cloning from sourceURL (a
// remote URL or local path) into root.
func NewGitWorkspaces(sourceURL, root string, logger *logging.Logger) *GitWorkspaces {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &GitWorkspaces{sourceURL: sourceURL, root: root, logger: logger.Named("workspace")}
}

// CreateIsolatedWorkspace clones the source repository at baseBranch and
// checks out a fresh branch. A failed clone leaves nothing behind.
func (g *GitWorkspaces) CreateIsolatedWorkspace(ctx context.Context, taskID, branch, baseBranch string) (string, error) {
	path := filepath.Join(g.root, taskID)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("worker: workspace for task %s already exists", taskID)
	}

	repo, err := git.PlainCloneContext(ctx, path, false, &git.CloneOptions{
		URL:           g.sourceURL,
		ReferenceName: plumbing.NewBranchReferenceName(baseBranch),
		SingleBranch:  true,
	})
	if err != nil {
		_ = os.RemoveAll(path)
		return "", fmt.Errorf("worker: clone for task %s: %w", taskID, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		_ = os.RemoveAll(path)
		return "", fmt.Errorf("worker: worktree for task %s: %w", taskID, err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Create: true,
	}); err != nil {
		_ = os.RemoveAll(path)
		return "", fmt.Errorf("worker: branch %s for task %s: %w", branch, taskID, err)
	}

	g.logger.Info(ctx, "workspace created",
		zap.String("task_id", taskID),
		zap.String("path", path),
		zap.String("branch", branch))
	return path, nil
}

// CommitWorkChanges stages and commits everything pending in the task's
// workspace. A clean worktree is a no-op.
func (g *GitWorkspaces) CommitWorkChanges(ctx context.Context, taskID, message string) error {
	path := filepath.Join(g.root, taskID)
	repo, err := git.PlainOpen(path)
	if err != nil {
		return fmt.Errorf("worker: open workspace for task %s: %w", taskID, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worker: worktree for task %s: %w", taskID, err)
	}

	status, err := wt.Status()
	if err != nil {
		return fmt.Errorf("worker: status for task %s: %w", taskID, err)
	}
	if status.IsClean() {
		return nil
	}

	if err := wt.AddGlob("."); err != nil {
		return fmt.Errorf("worker: stage changes for task %s: %w", taskID, err)
	}
	if _, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: "swarmd", Email: "swarmd@localhost", When: time.Now()},
	}); err != nil {
		return fmt.Errorf("worker: commit for task %s: %w", taskID, err)
	}
	g.logger.Info(ctx, "workspace committed", zap.String("task_id", taskID))
	return nil
}

// RemoveIsolatedWorkspace deletes the task's workspace directory. Removing
// a workspace that does not exist is not an error.
func (g *GitWorkspaces) RemoveIsolatedWorkspace(ctx context.Context, taskID string) error {
	path := filepath.Join(g.root, taskID)
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("worker: remove workspace for task %s: %w", taskID, err)
	}
	g.logger.Info(ctx, "workspace removed", zap.String("task_id", taskID))
	return nil
}
