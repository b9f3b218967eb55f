package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/swarmd/internal/pheromone"
	"github.com/fyrsmithlabs/swarmd/internal/store"
)

func newMachineFixture(t *testing.T) (*Machine, *store.Memory, string) {
	t.Helper()
	mem := store.NewMemory()
	p, err := mem.CreateProject(context.Background(), store.Project{Name: "billing"})
	require.NoError(t, err)
	m := NewMachine(mem, pheromone.NewEngine(mem, nil), nil)
	return m, mem, p.ID
}

func createTask(t *testing.T, mem *store.Memory, projectID, title string, deps ...string) store.Task {
	t.Helper()
	ctx := context.Background()
	task, err := mem.CreateTask(ctx, store.Task{ProjectID: projectID, Title: title})
	require.NoError(t, err)
	for _, dep := range deps {
		require.NoError(t, mem.AddTaskDependency(ctx, task.ID, dep))
	}
	got, err := mem.GetTask(ctx, task.ID)
	require.NoError(t, err)
	return *got
}

func TestReady_TracksCompletedPredecessors(t *testing.T) {
	m, mem, projectID := newMachineFixture(t)
	task := createTask(t, mem, projectID, "feature")

	assert.True(t, m.Ready(task.ID), "entry step has no predecessors")

	w := m.StateFor(task.ID)
	w.CompletedSteps = []Step{StepDefineRequirements}

	w.CurrentStep = StepFormalizeContracts
	assert.True(t, m.Ready(task.ID))

	w.CurrentStep = StepImplementCode
	assert.False(t, m.Ready(task.ID), "design not completed yet")
}

func TestCompleteStep_AdvancesAndEmitsSuccess(t *testing.T) {
	m, mem, projectID := newMachineFixture(t)
	task := createTask(t, mem, projectID, "feature")

	next, err := m.CompleteStep(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, StepFormalizeContracts, next)

	w := m.StateFor(task.ID)
	assert.Equal(t, []Step{StepDefineRequirements}, w.CompletedSteps)

	signals, err := mem.ListPheromonesByType(context.Background(), store.PheromoneSuccess, 0)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, string(StepDefineRequirements), signals[0].Metadata["step"])
}

func TestCompleteStep_TerminalErrors(t *testing.T) {
	m, mem, projectID := newMachineFixture(t)
	task := createTask(t, mem, projectID, "feature")
	m.StateFor(task.ID).CurrentStep = StepCompleted

	_, err := m.CompleteStep(context.Background(), task)
	assert.Error(t, err)
	assert.True(t, m.Done(task.ID))
}

func TestApplyCritique_LowSeverityAdvances(t *testing.T) {
	m, mem, projectID := newMachineFixture(t)
	task := createTask(t, mem, projectID, "feature")

	advanced, err := m.ApplyCritique(context.Background(), task, Critique{Severity: SeverityLow})
	require.NoError(t, err)
	assert.True(t, advanced)
	assert.Equal(t, StepFormalizeContracts, m.StateFor(task.ID).CurrentStep)
}

func TestApplyCritique_HighSeverityPausesTaskAndDependents(t *testing.T) {
	m, mem, projectID := newMachineFixture(t)
	ctx := context.Background()

	base := createTask(t, mem, projectID, "base")
	mid := createTask(t, mem, projectID, "mid", base.ID)
	leaf := createTask(t, mem, projectID, "leaf", mid.ID)
	unrelated := createTask(t, mem, projectID, "unrelated")

	m.StateFor(base.ID).CurrentStep = StepImplementCode
	advanced, err := m.ApplyCritique(ctx, base, Critique{Severity: SeverityHigh, Summary: "contract breach"})
	require.NoError(t, err)
	assert.False(t, advanced)
	assert.Equal(t, StepImplementCode, m.StateFor(base.ID).CurrentStep, "step did not advance")

	for _, id := range []string{base.ID, mid.ID, leaf.ID} {
		got, err := mem.GetTask(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, store.TaskPaused, got.Status)
	}
	got, err := mem.GetTask(ctx, unrelated.ID)
	require.NoError(t, err)
	assert.Equal(t, store.TaskPending, got.Status, "unrelated task untouched")

	signals, err := mem.ListPheromonesByType(ctx, store.PheromonePause, 0)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, string(StepImplementCode), signals[0].Metadata["step"])
	assert.Equal(t, "contract breach", signals[0].Context)
}

func TestApplyCritique_CompletedDependentNotPaused(t *testing.T) {
	m, mem, projectID := newMachineFixture(t)
	ctx := context.Background()

	base := createTask(t, mem, projectID, "base")
	done := createTask(t, mem, projectID, "done", base.ID)
	done.Status = store.TaskCompleted
	_, err := mem.UpdateTask(ctx, done)
	require.NoError(t, err)

	_, err = m.ApplyCritique(ctx, base, Critique{Severity: SeverityCritical, Summary: "unsound design"})
	require.NoError(t, err)

	got, err := mem.GetTask(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, store.TaskCompleted, got.Status)
}

func TestResume_RequiresPausedStatus(t *testing.T) {
	m, mem, projectID := newMachineFixture(t)
	ctx := context.Background()
	task := createTask(t, mem, projectID, "feature")

	assert.Error(t, m.Resume(ctx, task.ID), "pending task cannot resume")

	task.Status = store.TaskPaused
	_, err := mem.UpdateTask(ctx, task)
	require.NoError(t, err)
	require.NoError(t, m.Resume(ctx, task.ID))

	got, err := mem.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, store.TaskPending, got.Status)
}
