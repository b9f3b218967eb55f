package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/swarmd/internal/llm"
	"github.com/fyrsmithlabs/swarmd/internal/logging"
)

// impasseMarker is the token a worker emits at the start of a line to
// self-report being stuck rather than failed.
const impasseMarker = "IMPASSE:"

type session struct {
	taskID string
	path   string
	cancel context.CancelFunc

	mu         sync.Mutex
	status     Status
	message    string
	transcript strings.Builder
}

func (s *session) observe() Poll {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Poll{Status: s.status, Message: s.message}
}

// LocalSessions runs workers in-process against an LLM client, one tracked
// session per worker, recording transcripts for seeding helpers and
// diagnostics.
type LocalSessions struct {
	client llm.Client
	opts   llm.Options
	logger *logging.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// NewLocalSessions creates a session manager over the given model client.
func NewLocalSessions(client llm.Client, opts llm.Options, logger *logging.Logger) *LocalSessions {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LocalSessions{
		client:   client,
		opts:     opts,
		logger:   logger.Named("sessions"),
		sessions: map[string]*session{},
	}
}

// CreateSession registers a tracked session bound to the task's workspace.
func (l *LocalSessions) CreateSession(_ context.Context, taskID, path string) (string, error) {
	id := uuid.NewString()
	l.mu.Lock()
	l.sessions[id] = &session{taskID: taskID, path: path, status: StatusRunning}
	l.mu.Unlock()
	return id, nil
}

func (l *LocalSessions) get(sessionID string) (*session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("worker: unknown session %s", sessionID)
	}
	return s, nil
}

// StartWorkerInSession launches the worker asynchronously. Completion,
// impasse and failure surface through PollSession, never as a panic or a
// blocked call.
func (l *LocalSessions) StartWorkerInSession(ctx context.Context, sessionID string, kind Kind, prompt string) error {
	s, err := l.get(sessionID)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.cancel = cancel
	s.transcript.WriteString(">>> " + string(kind) + " prompt\n")
	s.transcript.WriteString(prompt)
	s.transcript.WriteString("\n")
	s.mu.Unlock()

	go func() {
		defer cancel()
		reply, err := l.client.SendMessage(runCtx, prompt, l.opts)

		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			s.status = StatusError
			s.message = err.Error()
			return
		}
		s.transcript.WriteString("<<< " + string(kind) + " output\n")
		s.transcript.WriteString(reply.Content)
		s.transcript.WriteString("\n")
		if selfReportedImpasse(reply.Content) {
			s.status = StatusImpasse
			s.message = firstLine(reply.Content)
		} else {
			s.status = StatusCompleted
		}
	}()

	l.logger.Info(ctx, "worker started",
		zap.String("session_id", sessionID),
		zap.String("task_id", s.taskID),
		zap.String("kind", string(kind)))
	return nil
}

// PollSession reports the session's current state.
func (l *LocalSessions) PollSession(_ context.Context, sessionID string) (Poll, error) {
	s, err := l.get(sessionID)
	if err != nil {
		return Poll{}, err
	}
	return s.observe(), nil
}

// KillSession cancels any in-flight worker call and drops the session.
func (l *LocalSessions) KillSession(ctx context.Context, sessionID string) error {
	l.mu.Lock()
	s, ok := l.sessions[sessionID]
	delete(l.sessions, sessionID)
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("worker: unknown session %s", sessionID)
	}
	if s.cancel != nil {
		s.cancel()
	}
	l.logger.Info(ctx, "session killed", zap.String("session_id", sessionID))
	return nil
}

// GetSessionTranscript returns everything sent to and received from the
// session's workers so far.
func (l *LocalSessions) GetSessionTranscript(_ context.Context, sessionID string) (string, error) {
	s, err := l.get(sessionID)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.String(), nil
}

func selfReportedImpasse(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), impasseMarker) {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
