package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/swarmd/internal/pheromone"
	"github.com/fyrsmithlabs/swarmd/internal/store"
	"github.com/fyrsmithlabs/swarmd/internal/worker"
)

func newFailureFixture(t *testing.T) (*FailureController, *store.Memory, *worker.Fake, store.Task) {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	project, err := mem.CreateProject(ctx, store.Project{Name: "p"})
	require.NoError(t, err)
	task, err := mem.CreateTask(ctx, store.Task{ProjectID: project.ID, Title: "payments webhook"})
	require.NoError(t, err)

	fake := worker.NewFake()
	signals := pheromone.NewEngine(mem, nil)
	fc := NewFailureController(mem, signals, fake, "main", 3, nil)
	return fc, mem, fake, *task
}

func TestFailureController_RetryBelowThreshold(t *testing.T) {
	fc, mem, fake, task := newFailureFixture(t)
	ctx := context.Background()

	aux, err := fc.HandleFailure(ctx, task, "go test failed on TestWebhook", "worker transcript")
	require.NoError(t, err)
	require.NotNil(t, aux)
	assert.Equal(t, worker.KindDiagnostic, aux.kind)
	assert.Equal(t, "test_failure", aux.category)

	got, err := mem.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, store.TaskPending, got.Status, "task requeued for retry")
	assert.Equal(t, store.EscalationRetrying, got.Escalation)
	assert.Equal(t, 1, got.RetryCount)

	// Diagnostic runs in its own workspace, not the task's.
	assert.Contains(t, fake.Workspaces, task.ID+"-diagnostic-1")
	prompt := fake.PromptFor(task.ID + "-diagnostic-1")
	assert.Contains(t, prompt, "go test failed on TestWebhook")
	assert.Contains(t, prompt, "worker transcript")
}

func TestFailureController_ThresholdEscalatesToHumanReview(t *testing.T) {
	fc, mem, fake, task := newFailureFixture(t)
	ctx := context.Background()
	task.RetryCount = 2

	aux, err := fc.HandleFailure(ctx, task, "build broke again", "")
	require.NoError(t, err)
	assert.Nil(t, aux, "no diagnostic past the threshold")

	got, err := mem.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, store.TaskHumanReview, got.Status)
	assert.Equal(t, store.EscalationHumanReview, got.Escalation)
	assert.Equal(t, 3, got.RetryCount)
	assert.Empty(t, fake.Workspaces)
}

func TestFailureController_DiagnosticSpawnFailureKeepsRetry(t *testing.T) {
	fc, mem, fake, task := newFailureFixture(t)
	ctx := context.Background()
	fake.CreateSessionErr = errors.New("no capacity")

	aux, err := fc.HandleFailure(ctx, task, "timeout waiting for tests", "")
	require.NoError(t, err, "a failed spawn does not fail the retry")
	assert.Nil(t, aux)

	got, err := mem.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, store.TaskPending, got.Status)
	assert.Empty(t, fake.Workspaces, "workspace compensated after session failure")
	assert.Contains(t, fake.Removed, task.ID+"-diagnostic-1")
}

func TestFailureController_FinishDiagnosticEmitsWarn(t *testing.T) {
	fc, mem, _, task := newFailureFixture(t)
	ctx := context.Background()

	aux, err := fc.HandleFailure(ctx, task, "schema mismatch in contract", "")
	require.NoError(t, err)
	require.NotNil(t, aux)

	fc.FinishDiagnostic(ctx, aux, "the webhook payload omits the idempotency key")

	warns, err := mem.ListPheromonesByType(ctx, store.PheromoneWarn, 0)
	require.NoError(t, err)
	require.Len(t, warns, 1)
	assert.Equal(t, "contract_violation", warns[0].Metadata["category"])
	assert.InDelta(t, 0.7, warns[0].Strength, 1e-9)
	assert.Contains(t, warns[0].Context, "idempotency key")
}

func TestFailureController_ImpasseAndHelperRecovery(t *testing.T) {
	fc, mem, fake, task := newFailureFixture(t)
	ctx := context.Background()

	aux, err := fc.HandleImpasse(ctx, task, "IMPASSE: contract contradicts the plan")
	require.NoError(t, err)
	require.NotNil(t, aux)
	assert.Equal(t, worker.KindHelper, aux.kind)

	got, err := mem.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, store.TaskImpasse, got.Status)
	assert.Equal(t, store.EscalationHelper, got.Escalation)
	assert.Contains(t, fake.PromptFor(task.ID+"-helper-0"), "contract contradicts the plan")

	require.NoError(t, fc.FinishHelper(ctx, aux, "split the endpoint into two contracts"))

	got, err = mem.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, store.TaskPending, got.Status, "task requeued after helper proposals")

	guides, err := mem.ListPheromonesByType(ctx, store.PheromoneGuide, 0)
	require.NoError(t, err)
	require.Len(t, guides, 1)
	assert.Equal(t, "helper", guides[0].Metadata["source"])
	assert.Equal(t, task.ID, guides[0].Metadata["task_id"])
}

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"context deadline exceeded", "timeout"},
		{"TestRenderer failed", "test_failure"},
		{"compile error in handler.go", "build_failure"},
		{"response violates the OpenAPI schema", "contract_violation"},
		{"worker exited", "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyFailure(tt.message), tt.message)
	}
}
