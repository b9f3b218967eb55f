package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/swarmd/internal/logging"
	"github.com/fyrsmithlabs/swarmd/internal/pheromone"
	"github.com/fyrsmithlabs/swarmd/internal/store"
	"github.com/fyrsmithlabs/swarmd/internal/worker"
)

// DefaultEscalationThreshold is the number of consecutive failures on the
// same task before it is routed to human review.
const DefaultEscalationThreshold = 3

// warnPheromoneTTL bounds how long failure diagnoses influence priming.
const warnPheromoneTTL = 7 * 24 * time.Hour

// auxSession tracks a diagnostic or helper worker spawned by the
// escalation controller. Its workspace id is distinct from the task's so
// both can exist at once.
type auxSession struct {
	kind        worker.Kind
	task        store.Task
	workspaceID string
	sessionID   string
	category    string
}

// FailureController implements the failure and impasse reactions: bounded
// retries, diagnostic worker spawns, warn pheromones, and the human-review
// escalation.
type FailureController struct {
	store     store.Store
	signals   *pheromone.Engine
	dispatch  worker.Dispatcher
	logger    *logging.Logger
	threshold int
	base      string
}

// NewFailureController creates a controller with the given retry threshold;
// zero or negative means DefaultEscalationThreshold.
func NewFailureController(s store.Store, signals *pheromone.Engine, dispatch worker.Dispatcher, baseBranch string, threshold int, logger *logging.Logger) *FailureController {
	if threshold <= 0 {
		threshold = DefaultEscalationThreshold
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FailureController{
		store:     s,
		signals:   signals,
		dispatch:  dispatch,
		logger:    logger.Named("escalation"),
		threshold: threshold,
		base:      baseBranch,
	}
}

// HandleFailure reacts to a worker failure: bump the retry counter, escalate
// to human review past the threshold, otherwise requeue the task and spawn a
// diagnostic worker seeded with the failure record and the origin
// transcript. The returned aux session is nil when the task escalated.
func (f *FailureController) HandleFailure(ctx context.Context, task store.Task, failure, transcript string) (*auxSession, error) {
	task.RetryCount++

	if task.RetryCount >= f.threshold {
		task.Status = store.TaskHumanReview
		task.Escalation = store.EscalationHumanReview
		if _, err := f.store.UpdateTask(ctx, task); err != nil {
			return nil, err
		}
		f.logger.Warn(ctx, "task escalated to human review",
			zap.String("task_id", task.ID),
			zap.Int("retry_count", task.RetryCount))
		return nil, nil
	}

	task.Status = store.TaskPending
	task.Escalation = store.EscalationRetrying
	if _, err := f.store.UpdateTask(ctx, task); err != nil {
		return nil, err
	}

	category := classifyFailure(failure)
	prompt := diagnosticPrompt(task, category, failure, transcript)
	aux, err := f.spawn(ctx, task, worker.KindDiagnostic, category, prompt)
	if err != nil {
		// The retry is already queued; a failed diagnostic spawn only costs
		// the warn pheromone.
		f.logger.Warn(ctx, "diagnostic spawn failed",
			zap.String("task_id", task.ID), zap.Error(err))
		return nil, nil
	}
	return aux, nil
}

// HandleImpasse reacts to a self-reported impasse: mark the stage and spawn
// a fresh helper worker seeded with the primary transcript, tasked with
// proposing alternatives.
func (f *FailureController) HandleImpasse(ctx context.Context, task store.Task, transcript string) (*auxSession, error) {
	task.Status = store.TaskImpasse
	task.Escalation = store.EscalationHelper
	if _, err := f.store.UpdateTask(ctx, task); err != nil {
		return nil, err
	}
	return f.spawn(ctx, task, worker.KindHelper, "", helperPrompt(task, transcript))
}

// FinishDiagnostic records the diagnostic worker's root-cause output as a
// warn pheromone tagged with the failure category.
func (f *FailureController) FinishDiagnostic(ctx context.Context, aux *auxSession, output string) {
	detail := strings.TrimSpace(output)
	if detail == "" {
		detail = "diagnostic worker produced no analysis"
	}
	if err := f.signals.EmitWarn(ctx, aux.category, detail, 0.7, warnPheromoneTTL); err != nil {
		f.logger.Warn(ctx, "warn pheromone dropped",
			zap.String("task_id", aux.task.ID), zap.Error(err))
	}
}

// FinishHelper records the helper's proposals as a guide pheromone and
// requeues the stuck task.
func (f *FailureController) FinishHelper(ctx context.Context, aux *auxSession, output string) error {
	detail := strings.TrimSpace(output)
	if detail != "" {
		_, err := f.signals.Deposit(ctx, store.Pheromone{
			Type:      store.PheromoneGuide,
			Strength:  0.7,
			Context:   detail,
			Metadata:  map[string]string{"task_id": aux.task.ID, "source": "helper"},
			ExpiresAt: time.Now().Add(warnPheromoneTTL),
		})
		if err != nil {
			f.logger.Warn(ctx, "helper guide dropped",
				zap.String("task_id", aux.task.ID), zap.Error(err))
		}
	}

	task, err := f.store.GetTask(ctx, aux.task.ID)
	if err != nil {
		return err
	}
	task.Status = store.TaskPending
	_, err = f.store.UpdateTask(ctx, *task)
	return err
}

// spawn creates an isolated workspace and session for an auxiliary worker,
// with compensation: a failed session create tears the workspace down.
func (f *FailureController) spawn(ctx context.Context, task store.Task, kind worker.Kind, category, prompt string) (*auxSession, error) {
	workspaceID := fmt.Sprintf("%s-%s-%d", task.ID, kind, task.RetryCount)
	branch := "swarm/" + workspaceID

	path, err := f.dispatch.CreateIsolatedWorkspace(ctx, workspaceID, branch, f.base)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %s workspace: %w", kind, err)
	}
	sessionID, err := f.dispatch.CreateSession(ctx, workspaceID, path)
	if err != nil {
		_ = f.dispatch.RemoveIsolatedWorkspace(ctx, workspaceID)
		return nil, fmt.Errorf("orchestrator: %s session: %w", kind, err)
	}
	if err := f.dispatch.StartWorkerInSession(ctx, sessionID, kind, prompt); err != nil {
		_ = f.dispatch.KillSession(ctx, sessionID)
		_ = f.dispatch.RemoveIsolatedWorkspace(ctx, workspaceID)
		return nil, fmt.Errorf("orchestrator: start %s: %w", kind, err)
	}

	f.logger.Info(ctx, "auxiliary worker spawned",
		zap.String("task_id", task.ID),
		zap.String("kind", string(kind)),
		zap.String("session_id", sessionID))
	return &auxSession{
		kind:        kind,
		task:        task,
		workspaceID: workspaceID,
		sessionID:   sessionID,
		category:    category,
	}, nil
}

// classifyFailure maps a failure message onto a coarse category used to tag
// warn pheromones.
func classifyFailure(message string) string {
	m := strings.ToLower(message)
	switch {
	case strings.Contains(m, "timeout") || strings.Contains(m, "deadline"):
		return "timeout"
	case strings.Contains(m, "test"):
		return "test_failure"
	case strings.Contains(m, "compile") || strings.Contains(m, "build"):
		return "build_failure"
	case strings.Contains(m, "contract") || strings.Contains(m, "schema"):
		return "contract_violation"
	default:
		return "unknown"
	}
}

func diagnosticPrompt(task store.Task, category, failure, transcript string) string {
	var b strings.Builder
	b.WriteString("A worker failed. Determine the root cause and propose a concrete fix.\n\n")
	fmt.Fprintf(&b, "Task: %s\n", task.Title)
	fmt.Fprintf(&b, "Failure category: %s\n", category)
	fmt.Fprintf(&b, "Failure: %s\n\n", failure)
	if transcript != "" {
		b.WriteString("Origin worker transcript:\n")
		b.WriteString(transcript)
		b.WriteString("\n")
	}
	return b.String()
}

func helperPrompt(task store.Task, transcript string) string {
	var b strings.Builder
	b.WriteString("The primary worker reported an impasse. Propose alternative approaches; do not redo its work.\n\n")
	fmt.Fprintf(&b, "Task: %s\n", task.Title)
	if task.Description != "" {
		fmt.Fprintf(&b, "%s\n", task.Description)
	}
	b.WriteString("\nPrimary worker transcript:\n")
	b.WriteString(transcript)
	b.WriteString("\n")
	return b.String()
}
