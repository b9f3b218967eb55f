package worker

import (
	"context"
	"fmt"
	"sync"
)

// Fake is a programmable in-memory Dispatcher for tests. Each task's poll
// sequence is scripted with ProgramTask; unprogrammed tasks complete on the
// first poll.
type Fake struct {
	mu sync.Mutex

	// CreateWorkspaceErr and CreateSessionErr, when set, fail the
	// corresponding call.
	CreateWorkspaceErr error
	CreateSessionErr   error
	StartErr           error

	Workspaces map[string]string // taskID -> path
	Removed    []string          // taskIDs, in removal order
	Killed     []string          // sessionIDs, in kill order

	sessions map[string]*fakeSession // sessionID -> session
	programs map[string][]Poll       // taskID -> scripted polls
	cursors  map[string]int          // taskID -> script position
}

type fakeSession struct {
	taskID     string
	kind       Kind
	transcript string
	killed     bool
}

// NewFake creates an empty fake dispatcher.
func NewFake() *Fake {
	return &Fake{
		Workspaces: map[string]string{},
		sessions:   map[string]*fakeSession{},
		programs:   map[string][]Poll{},
		cursors:    map[string]int{},
	}
}

// ProgramTask scripts the poll sequence for a task across all of its
// sessions. The last entry repeats once the script is exhausted.
func (f *Fake) ProgramTask(taskID string, polls ...Poll) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.programs[taskID] = polls
	f.cursors[taskID] = 0
}

// SessionFor returns the session id created for a task, empty if none.
func (f *Fake) SessionFor(taskID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, s := range f.sessions {
		if s.taskID == taskID && !s.killed {
			return id
		}
	}
	return ""
}

// PromptFor returns the transcript recorded for a task's live session.
func (f *Fake) PromptFor(taskID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.taskID == taskID && !s.killed {
			return s.transcript
		}
	}
	return ""
}

func (f *Fake) CreateIsolatedWorkspace(_ context.Context, taskID, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateWorkspaceErr != nil {
		return "", f.CreateWorkspaceErr
	}
	path := "/fake/workspaces/" + taskID
	f.Workspaces[taskID] = path
	return path, nil
}

func (f *Fake) RemoveIsolatedWorkspace(_ context.Context, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Workspaces, taskID)
	f.Removed = append(f.Removed, taskID)
	return nil
}

func (f *Fake) CreateSession(_ context.Context, taskID, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateSessionErr != nil {
		return "", f.CreateSessionErr
	}
	id := fmt.Sprintf("sess-%s-%d", taskID, len(f.sessions))
	f.sessions[id] = &fakeSession{taskID: taskID}
	return id, nil
}

func (f *Fake) StartWorkerInSession(_ context.Context, sessionID string, kind Kind, prompt string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartErr != nil {
		return f.StartErr
	}
	s, ok := f.sessions[sessionID]
	if !ok {
		return fmt.Errorf("worker: unknown session %s", sessionID)
	}
	s.kind = kind
	s.transcript += prompt + "\n"
	return nil
}

func (f *Fake) PollSession(_ context.Context, sessionID string) (Poll, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok {
		return Poll{}, fmt.Errorf("worker: unknown session %s", sessionID)
	}
	script := f.programs[s.taskID]
	if len(script) == 0 {
		return Poll{Status: StatusCompleted}, nil
	}
	cursor := f.cursors[s.taskID]
	p := script[cursor]
	if cursor < len(script)-1 {
		f.cursors[s.taskID] = cursor + 1
	}
	return p, nil
}

func (f *Fake) KillSession(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok {
		return fmt.Errorf("worker: unknown session %s", sessionID)
	}
	s.killed = true
	f.Killed = append(f.Killed, sessionID)
	return nil
}

func (f *Fake) GetSessionTranscript(_ context.Context, sessionID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok {
		return "", fmt.Errorf("worker: unknown session %s", sessionID)
	}
	return s.transcript, nil
}
