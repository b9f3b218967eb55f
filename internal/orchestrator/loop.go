package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/swarmd/internal/llm"
	"github.com/fyrsmithlabs/swarmd/internal/logging"
	"github.com/fyrsmithlabs/swarmd/internal/pheromone"
	"github.com/fyrsmithlabs/swarmd/internal/priming"
	"github.com/fyrsmithlabs/swarmd/internal/store"
	"github.com/fyrsmithlabs/swarmd/internal/telemetry"
	"github.com/fyrsmithlabs/swarmd/internal/worker"
	"github.com/fyrsmithlabs/swarmd/internal/workflow"
)

// TerminalState is how a loop run ended.
type TerminalState string

const (
	// TerminalCompleted means no pending, running or impasse task remains.
	TerminalCompleted TerminalState = "completed"
	// TerminalError means an unrecoverable infrastructure error aborted the
	// loop; the last failure message is preserved in the returned error.
	TerminalError TerminalState = "error"
	// TerminalBudgetStopped is the soft stop on reaching the token budget.
	TerminalBudgetStopped TerminalState = "budget-stopped"
	// TerminalStopped is the soft stop on operator shutdown.
	TerminalStopped TerminalState = "stopped"
)

// Config tunes the orchestration loop.
type Config struct {
	// TickInterval is the fixed inter-tick yield.
	TickInterval time.Duration
	// BaseBranch is the branch task workspaces are cut from.
	BaseBranch string
	// EscalationThreshold is the consecutive-failure count routing a task
	// to human review.
	EscalationThreshold int
	// Priming bounds the context fan-out per dispatch.
	Priming priming.Options
}

func (c *Config) withDefaults() {
	if c.TickInterval <= 0 {
		c.TickInterval = 200 * time.Millisecond
	}
	if c.BaseBranch == "" {
		c.BaseBranch = "main"
	}
	if c.EscalationThreshold <= 0 {
		c.EscalationThreshold = DefaultEscalationThreshold
	}
	if c.Priming == (priming.Options{}) {
		c.Priming = priming.DefaultOptions()
	}
}

// Deps are the collaborators the loop drives. Machine, Primer and Critic
// may be nil; defaults are built over Store, Signals and Client.
type Deps struct {
	Store    store.Store
	Signals  *pheromone.Engine
	Machine  *workflow.Machine
	Primer   *priming.Primer
	Dispatch worker.Dispatcher
	Client   llm.Client
	Critic   Critic
	Metrics  *telemetry.Metrics
	Logger   *logging.Logger
}

// inflightWorker tracks one dispatched primary worker.
type inflightWorker struct {
	task      store.Task
	sessionID string
	step      workflow.Step
}

// Loop is the single coordinating control flow: pick, dispatch, poll. All
// maps are owned by Run's goroutine; only Shutdown may be called from
// outside.
type Loop struct {
	cfg      Config
	store    store.Store
	signals  *pheromone.Engine
	machine  *workflow.Machine
	primer   *priming.Primer
	dispatch worker.Dispatcher
	client   llm.Client
	critic   Critic
	failures *FailureController
	metrics  *telemetry.Metrics
	logger   *logging.Logger

	limiter  *rate.Limiter
	shutdown atomic.Bool

	primaries  map[string]*inflightWorker // taskID -> worker
	auxiliary  map[string]*auxSession     // sessionID -> aux
	tokensSeen int
}

// New creates an orchestration loop.
func New(deps Deps, cfg Config) *Loop {
	cfg.withDefaults()
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("orchestrator")

	machine := deps.Machine
	if machine == nil {
		machine = workflow.NewMachine(deps.Store, deps.Signals, logger)
	}
	primer := deps.Primer
	if primer == nil {
		primer = priming.NewPrimer(deps.Store, deps.Signals, nil, nil, logger)
	}
	critic := deps.Critic
	if critic == nil {
		critic = NewLLMCritic(deps.Client, llm.Options{})
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}

	return &Loop{
		cfg:      cfg,
		store:    deps.Store,
		signals:  deps.Signals,
		machine:  machine,
		primer:   primer,
		dispatch: deps.Dispatch,
		client:   deps.Client,
		critic:   critic,
		failures: NewFailureController(deps.Store, deps.Signals, deps.Dispatch,
			cfg.BaseBranch, cfg.EscalationThreshold, logger),
		metrics:   metrics,
		logger:    logger,
		limiter:   rate.NewLimiter(rate.Every(cfg.TickInterval), 1),
		primaries: map[string]*inflightWorker{},
		auxiliary: map[string]*auxSession{},
	}
}

// Shutdown stops new dispatch; the running loop tears down every active
// session before returning. Safe to call from any goroutine.
func (l *Loop) Shutdown() {
	l.shutdown.Store(true)
}

// Run drives the loop until a terminal state: all work settled, budget
// ceiling reached, operator shutdown, or an unrecoverable error.
func (l *Loop) Run(ctx context.Context, projectID string) (TerminalState, error) {
	for {
		if err := l.limiter.Wait(ctx); err != nil {
			l.teardownAll(context.WithoutCancel(ctx))
			return TerminalStopped, nil
		}
		if l.shutdown.Load() {
			l.teardownAll(ctx)
			return TerminalStopped, nil
		}
		if llm.OverBudget(l.client) {
			l.logger.Info(ctx, "token budget reached, stopping",
				zap.Int("used", l.client.GetTokenUsage()),
				zap.Int("limit", l.client.GetBudgetLimit()))
			l.teardownAll(ctx)
			return TerminalBudgetStopped, nil
		}
		l.metrics.Ticks.Add(ctx, 1)

		tasks, err := l.store.ListTasks(ctx, projectID)
		if err != nil {
			l.teardownAll(ctx)
			return TerminalError, fmt.Errorf("orchestrator: list tasks: %w", err)
		}

		if l.settled(tasks) {
			return TerminalCompleted, nil
		}

		if err := l.dispatchNext(ctx, tasks); err != nil {
			l.teardownAll(ctx)
			return TerminalError, err
		}
		if err := l.pollPrimaries(ctx); err != nil {
			l.teardownAll(ctx)
			return TerminalError, err
		}
		l.pollAuxiliary(ctx)
	}
}

// settled reports whether no schedulable or in-flight work remains. Paused,
// failed and human-review tasks do not keep the loop alive.
func (l *Loop) settled(tasks []store.Task) bool {
	if len(l.primaries) > 0 || len(l.auxiliary) > 0 {
		return false
	}
	for _, t := range tasks {
		switch t.Status {
		case store.TaskPending, store.TaskRunning, store.TaskImpasse:
			return false
		}
	}
	return true
}

// dispatchNext dispatches at most one schedulable task: the first pending
// task in list order whose dependencies are all completed and whose
// workflow step is ready.
func (l *Loop) dispatchNext(ctx context.Context, tasks []store.Task) error {
	completed := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if t.Status == store.TaskCompleted || t.Status == store.TaskArchived {
			completed[t.ID] = true
		}
	}

	for _, t := range tasks {
		if t.Status != store.TaskPending {
			continue
		}
		if _, inflight := l.primaries[t.ID]; inflight {
			continue
		}
		if !allCompleted(t.Dependencies, completed) {
			continue
		}
		if !l.machine.Ready(t.ID) {
			continue
		}
		return l.dispatchTask(ctx, t)
	}
	return nil
}

func allCompleted(deps []string, completed map[string]bool) bool {
	for _, d := range deps {
		if !completed[d] {
			return false
		}
	}
	return true
}

// dispatchTask primes context and stands up workspace, session and worker
// for the task's current step. Workspace creation precedes session
// creation; a failed session create tears the workspace down before the
// error propagates.
func (l *Loop) dispatchTask(ctx context.Context, t store.Task) error {
	step := l.machine.StateFor(t.ID).CurrentStep
	role := workflow.RoleFor(step)

	primed := l.primer.PrimeContext(ctx, t, role, t.ProjectID, l.cfg.Priming)
	prompt := BuildPrompt(primed, step)

	branch := fmt.Sprintf("swarm/%s/%s", t.ID, strings.ToLower(string(step)))
	path, err := l.dispatch.CreateIsolatedWorkspace(ctx, t.ID, branch, l.cfg.BaseBranch)
	if err != nil {
		return fmt.Errorf("orchestrator: workspace for task %s: %w", t.ID, err)
	}
	sessionID, err := l.dispatch.CreateSession(ctx, t.ID, path)
	if err != nil {
		_ = l.dispatch.RemoveIsolatedWorkspace(ctx, t.ID)
		return fmt.Errorf("orchestrator: session for task %s: %w", t.ID, err)
	}
	if err := l.dispatch.StartWorkerInSession(ctx, sessionID, worker.KindPrimary, prompt); err != nil {
		_ = l.dispatch.KillSession(ctx, sessionID)
		_ = l.dispatch.RemoveIsolatedWorkspace(ctx, t.ID)
		return fmt.Errorf("orchestrator: start worker for task %s: %w", t.ID, err)
	}

	t.Status = store.TaskRunning
	updated, err := l.store.UpdateTask(ctx, t)
	if err != nil {
		_ = l.dispatch.KillSession(ctx, sessionID)
		_ = l.dispatch.RemoveIsolatedWorkspace(ctx, t.ID)
		return fmt.Errorf("orchestrator: mark task %s running: %w", t.ID, err)
	}

	l.primaries[t.ID] = &inflightWorker{task: *updated, sessionID: sessionID, step: step}
	l.metrics.Dispatches.Add(ctx, 1)
	l.logger.Info(ctx, "task dispatched",
		zap.String("task_id", t.ID),
		zap.String("step", string(step)),
		zap.String("role", string(role)))
	return nil
}

// pollPrimaries observes every in-flight primary and reacts to settled
// ones. Store failures on required updates propagate; session-level
// failures route through the escalation controller.
func (l *Loop) pollPrimaries(ctx context.Context) error {
	for _, taskID := range sortedKeys(l.primaries) {
		inf := l.primaries[taskID]
		poll, err := l.dispatch.PollSession(ctx, inf.sessionID)
		if err != nil {
			poll = worker.Poll{Status: worker.StatusError, Message: err.Error()}
		}

		switch poll.Status {
		case worker.StatusRunning:
			continue
		case worker.StatusCompleted:
			if err := l.reactCompleted(ctx, inf); err != nil {
				return err
			}
		case worker.StatusImpasse:
			if err := l.reactImpasse(ctx, inf, poll.Message); err != nil {
				return err
			}
		case worker.StatusError:
			if err := l.reactError(ctx, inf, poll.Message); err != nil {
				return err
			}
		}
	}
	return nil
}

// reactCompleted applies critique gating, advances the workflow, updates
// the task record and finalizes the dispatch.
func (l *Loop) reactCompleted(ctx context.Context, inf *inflightWorker) error {
	defer l.finalizePrimary(ctx, inf)

	transcript, err := l.dispatch.GetSessionTranscript(ctx, inf.sessionID)
	if err != nil {
		l.logger.Warn(ctx, "transcript unavailable",
			zap.String("task_id", inf.task.ID), zap.Error(err))
	}
	task, err := l.store.GetTask(ctx, inf.task.ID)
	if err != nil {
		return fmt.Errorf("orchestrator: load task %s: %w", inf.task.ID, err)
	}

	if workflow.CritiqueRequired(inf.step) {
		crit, err := l.critic.Review(ctx, *task, inf.step, transcript)
		if err != nil {
			l.logger.Warn(ctx, "critique unavailable, treating as low severity",
				zap.String("task_id", task.ID), zap.Error(err))
			crit = workflow.Critique{Severity: workflow.SeverityLow, Summary: "critique unavailable"}
		}
		advanced, err := l.machine.ApplyCritique(ctx, *task, crit)
		if err != nil {
			return fmt.Errorf("orchestrator: critique gate for task %s: %w", task.ID, err)
		}
		if !advanced {
			l.recordTokens(ctx)
			return nil
		}
	} else {
		if _, err := l.machine.CompleteStep(ctx, *task); err != nil {
			return fmt.Errorf("orchestrator: advance task %s: %w", task.ID, err)
		}
	}

	if l.machine.Done(task.ID) {
		task.Status = store.TaskCompleted
	} else {
		// Back to pending; the next step dispatches on a later tick.
		task.Status = store.TaskPending
	}
	// A finished step ends the failure streak: escalation counts
	// consecutive failures, not lifetime ones.
	task.RetryCount = 0
	task.Escalation = store.EscalationNone
	if _, err := l.store.UpdateTask(ctx, *task); err != nil {
		return fmt.Errorf("orchestrator: update task %s: %w", task.ID, err)
	}

	l.recordTokens(ctx)
	l.logger.Info(ctx, "step finished",
		zap.String("task_id", task.ID),
		zap.String("step", string(inf.step)),
		zap.String("status", string(task.Status)))
	return nil
}

func (l *Loop) reactImpasse(ctx context.Context, inf *inflightWorker, message string) error {
	defer l.finalizePrimary(ctx, inf)
	l.metrics.Impasses.Add(ctx, 1)

	transcript, err := l.dispatch.GetSessionTranscript(ctx, inf.sessionID)
	if err != nil {
		transcript = message
	}
	task, err := l.store.GetTask(ctx, inf.task.ID)
	if err != nil {
		return fmt.Errorf("orchestrator: load task %s: %w", inf.task.ID, err)
	}

	aux, err := l.failures.HandleImpasse(ctx, *task, transcript)
	if err != nil {
		// The helper is best-effort; the task stays impasse for a retry
		// decision by the operator.
		l.logger.Warn(ctx, "helper spawn failed",
			zap.String("task_id", task.ID), zap.Error(err))
		return nil
	}
	l.auxiliary[aux.sessionID] = aux
	return nil
}

func (l *Loop) reactError(ctx context.Context, inf *inflightWorker, message string) error {
	defer l.finalizePrimary(ctx, inf)
	l.metrics.WorkerFailures.Add(ctx, 1)

	transcript, err := l.dispatch.GetSessionTranscript(ctx, inf.sessionID)
	if err != nil {
		transcript = ""
	}
	task, err := l.store.GetTask(ctx, inf.task.ID)
	if err != nil {
		return fmt.Errorf("orchestrator: load task %s: %w", inf.task.ID, err)
	}

	aux, err := l.failures.HandleFailure(ctx, *task, message, transcript)
	if err != nil {
		return fmt.Errorf("orchestrator: failure handling for task %s: %w", task.ID, err)
	}
	if aux != nil {
		l.auxiliary[aux.sessionID] = aux
	} else if task.RetryCount+1 >= l.failures.threshold {
		l.metrics.Escalations.Add(ctx, 1)
	}
	l.logger.Warn(ctx, "worker failed",
		zap.String("task_id", task.ID),
		zap.String("step", string(inf.step)),
		zap.String("failure", message))
	return nil
}

// pollAuxiliary observes diagnostic and helper workers. Everything here is
// best-effort; errors are logged and swallowed.
func (l *Loop) pollAuxiliary(ctx context.Context) {
	for _, sessionID := range sortedKeys(l.auxiliary) {
		aux := l.auxiliary[sessionID]
		poll, err := l.dispatch.PollSession(ctx, sessionID)
		if err != nil {
			poll = worker.Poll{Status: worker.StatusError, Message: err.Error()}
		}
		if poll.Status == worker.StatusRunning {
			continue
		}

		if poll.Status == worker.StatusCompleted {
			output, err := l.dispatch.GetSessionTranscript(ctx, sessionID)
			if err != nil {
				output = ""
			}
			switch aux.kind {
			case worker.KindDiagnostic:
				l.failures.FinishDiagnostic(ctx, aux, output)
			case worker.KindHelper:
				if err := l.failures.FinishHelper(ctx, aux, output); err != nil {
					l.logger.Warn(ctx, "helper finish failed",
						zap.String("task_id", aux.task.ID), zap.Error(err))
				}
			}
		} else {
			l.logger.Warn(ctx, "auxiliary worker did not complete",
				zap.String("task_id", aux.task.ID),
				zap.String("kind", string(aux.kind)),
				zap.String("status", string(poll.Status)))
		}

		l.teardownSession(ctx, sessionID, aux.workspaceID)
		delete(l.auxiliary, sessionID)
	}
}

// finalizePrimary commits pending changes and tears down the dispatch.
// All of it is best-effort.
func (l *Loop) finalizePrimary(ctx context.Context, inf *inflightWorker) {
	if committer, ok := l.dispatch.(worker.Committer); ok {
		msg := fmt.Sprintf("%s: %s", strings.ToLower(string(inf.step)), inf.task.Title)
		if err := committer.CommitWorkChanges(ctx, inf.task.ID, msg); err != nil {
			l.logger.Warn(ctx, "workspace commit failed",
				zap.String("task_id", inf.task.ID), zap.Error(err))
		}
	}
	l.teardownSession(ctx, inf.sessionID, inf.task.ID)
	delete(l.primaries, inf.task.ID)
}

func (l *Loop) teardownSession(ctx context.Context, sessionID, workspaceID string) {
	if err := l.dispatch.KillSession(ctx, sessionID); err != nil {
		l.logger.Warn(ctx, "session close failed",
			zap.String("session_id", sessionID), zap.Error(err))
	}
	if err := l.dispatch.RemoveIsolatedWorkspace(ctx, workspaceID); err != nil {
		l.logger.Warn(ctx, "workspace removal failed",
			zap.String("workspace_id", workspaceID), zap.Error(err))
	}
}

// teardownAll synchronously tears down every active session.
func (l *Loop) teardownAll(ctx context.Context) {
	for _, taskID := range sortedKeys(l.primaries) {
		inf := l.primaries[taskID]
		l.teardownSession(ctx, inf.sessionID, inf.task.ID)
		delete(l.primaries, taskID)
	}
	for _, sessionID := range sortedKeys(l.auxiliary) {
		aux := l.auxiliary[sessionID]
		l.teardownSession(ctx, sessionID, aux.workspaceID)
		delete(l.auxiliary, sessionID)
	}
}

// recordTokens records the usage delta since the last observation.
func (l *Loop) recordTokens(ctx context.Context) {
	used := l.client.GetTokenUsage()
	if delta := used - l.tokensSeen; delta > 0 {
		l.metrics.TokensUsed.Add(ctx, int64(delta))
		l.tokensSeen = used
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
