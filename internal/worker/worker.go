// Package worker provides the dispatch layer for task workers: isolated
// per-task git workspaces, tracked worker sessions with transcripts, and
// the polling contract the orchestration loop drives.
package worker

import "context"

// Kind distinguishes the purpose of a dispatched worker.
type Kind string

const (
	// KindPrimary works the task itself.
	KindPrimary Kind = "primary"
	// KindHelper proposes alternatives after a self-reported impasse.
	KindHelper Kind = "helper"
	// KindDiagnostic analyzes a failure and proposes a root cause.
	KindDiagnostic Kind = "diagnostic"
)

// Status is the observed state of a tracked session.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusImpasse   Status = "impasse"
	StatusError     Status = "error"
)

// Poll is one observation of an in-flight session.
type Poll struct {
	Status  Status
	Message string
}

// WorkspaceManager creates and removes isolated per-task workspaces.
type WorkspaceManager interface {
	// CreateIsolatedWorkspace materializes a workspace for the task on a
	// fresh branch cut from baseBranch and returns its path.
	CreateIsolatedWorkspace(ctx context.Context, taskID, branch, baseBranch string) (string, error)
	RemoveIsolatedWorkspace(ctx context.Context, taskID string) error
}

// SessionManager tracks worker sessions bound to a workspace.
type SessionManager interface {
	CreateSession(ctx context.Context, taskID, path string) (string, error)
	StartWorkerInSession(ctx context.Context, sessionID string, kind Kind, prompt string) error
	KillSession(ctx context.Context, sessionID string) error
	GetSessionTranscript(ctx context.Context, sessionID string) (string, error)

	// PollSession reports the session's current status without blocking on
	// worker completion.
	PollSession(ctx context.Context, sessionID string) (Poll, error)
}

// Committer is the optional finalize hook: workspace managers that can
// commit a worker's pending changes before teardown implement it.
type Committer interface {
	CommitWorkChanges(ctx context.Context, taskID, message string) error
}

// Dispatcher is the full dispatch contract the orchestration loop consumes.
type Dispatcher interface {
	WorkspaceManager
	SessionManager
}
