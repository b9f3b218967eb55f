package workflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/swarmd/internal/logging"
	"github.com/fyrsmithlabs/swarmd/internal/pheromone"
	"github.com/fyrsmithlabs/swarmd/internal/store"
)

// Severity classifies a critique of a phase artifact.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Blocking reports whether the severity pauses the task instead of
// advancing it.
func (s Severity) Blocking() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// Critique is the reviewed assessment of a phase artifact.
type Critique struct {
	Severity Severity
	Summary  string
}

// signalTTL bounds how long workflow signals stay relevant.
const signalTTL = 24 * time.Hour

// TaskWorkflow is the per-task pipeline position.
type TaskWorkflow struct {
	CurrentStep    Step
	CompletedSteps []Step
}

// Completed reports whether the given step has been completed.
func (w *TaskWorkflow) Completed(s Step) bool {
	for _, done := range w.CompletedSteps {
		if done == s {
			return true
		}
	}
	return false
}

// Machine tracks workflow state per task and applies critique gating.
//
// The state map is owned by the orchestration loop's goroutine; Machine
// methods are not safe for concurrent use.
type Machine struct {
	store   store.Store
	signals *pheromone.Engine
	logger  *logging.Logger
	states  map[string]*TaskWorkflow
}

// NewMachine creates a workflow machine over the given store and signal
// engine.
func NewMachine(s store.Store, signals *pheromone.Engine, logger *logging.Logger) *Machine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Machine{
		store:   s,
		signals: signals,
		logger:  logger.Named("workflow"),
		states:  map[string]*TaskWorkflow{},
	}
}

// StateFor returns the workflow state for a task, initializing a fresh
// pipeline position on first use.
func (m *Machine) StateFor(taskID string) *TaskWorkflow {
	w, ok := m.states[taskID]
	if !ok {
		w = &TaskWorkflow{CurrentStep: FirstStep()}
		m.states[taskID] = w
	}
	return w
}

// Ready reports whether the task may begin its current step: every required
// predecessor must be in its completed set. An unready task is simply not
// scheduled; it is not an error.
func (m *Machine) Ready(taskID string) bool {
	w := m.StateFor(taskID)
	for _, req := range RequiredPreviousSteps(w.CurrentStep) {
		if !w.Completed(req) {
			return false
		}
	}
	return true
}

// Done reports whether the task has reached the terminal step.
func (m *Machine) Done(taskID string) bool {
	return m.StateFor(taskID).CurrentStep == StepCompleted
}

// CompleteStep records the current step as completed and advances to the
// successor, emitting a success signal. Calling it on the terminal step is
// an error.
func (m *Machine) CompleteStep(ctx context.Context, task store.Task) (Step, error) {
	w := m.StateFor(task.ID)
	next, ok := Next(w.CurrentStep)
	if !ok {
		return "", fmt.Errorf("workflow: step %s has no successor", w.CurrentStep)
	}

	finished := w.CurrentStep
	w.CompletedSteps = append(w.CompletedSteps, finished)
	w.CurrentStep = next

	if err := m.signals.EmitSuccess(ctx, task.ID, string(finished), signalTTL); err != nil {
		// Signals are advisory; losing one never blocks the pipeline.
		m.logger.Warn(ctx, "success signal dropped", zap.String("task_id", task.ID), zap.Error(err))
	}
	m.logger.Info(ctx, "step completed",
		zap.String("task_id", task.ID),
		zap.String("step", string(finished)),
		zap.String("next", string(next)))
	return next, nil
}

// ApplyCritique gates the task's current step on a critique. High and
// critical severity pause the task and its transitive dependents and emit a
// pause signal tagged with the step; low and medium advance the step and
// emit a success signal. It returns whether the step advanced.
func (m *Machine) ApplyCritique(ctx context.Context, task store.Task, crit Critique) (bool, error) {
	w := m.StateFor(task.ID)
	step := w.CurrentStep

	if !crit.Severity.Blocking() {
		_, err := m.CompleteStep(ctx, task)
		return err == nil, err
	}

	if err := m.pauseWithDependents(ctx, task); err != nil {
		return false, err
	}
	if err := m.signals.EmitPause(ctx, task.ID, string(step), crit.Summary, signalTTL); err != nil {
		m.logger.Warn(ctx, "pause signal dropped", zap.String("task_id", task.ID), zap.Error(err))
	}
	m.logger.Warn(ctx, "critique paused task",
		zap.String("task_id", task.ID),
		zap.String("step", string(step)),
		zap.String("severity", string(crit.Severity)))
	return false, nil
}

// pauseWithDependents sets the task and every task transitively depending
// on it to paused.
func (m *Machine) pauseWithDependents(ctx context.Context, task store.Task) error {
	all, err := m.store.ListTasks(ctx, task.ProjectID)
	if err != nil {
		return err
	}

	// dependents[x] = tasks whose dependency list names x.
	dependents := make(map[string][]store.Task, len(all))
	for _, t := range all {
		for _, dep := range t.Dependencies {
			dependents[dep] = append(dependents[dep], t)
		}
	}

	toPause := []store.Task{task}
	seen := map[string]bool{task.ID: true}
	for i := 0; i < len(toPause); i++ {
		for _, t := range dependents[toPause[i].ID] {
			if !seen[t.ID] {
				seen[t.ID] = true
				toPause = append(toPause, t)
			}
		}
	}

	for _, t := range toPause {
		if t.Status == store.TaskCompleted || t.Status == store.TaskArchived {
			continue
		}
		t.Status = store.TaskPaused
		if _, err := m.store.UpdateTask(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// Resume puts a paused task back to pending. Resumption is an external
// remediation decision; nothing in the machine retries automatically.
func (m *Machine) Resume(ctx context.Context, taskID string) error {
	task, err := m.store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status != store.TaskPaused {
		return fmt.Errorf("workflow: task %s is %s, not paused", taskID, task.Status)
	}
	task.Status = store.TaskPending
	_, err = m.store.UpdateTask(ctx, *task)
	return err
}
