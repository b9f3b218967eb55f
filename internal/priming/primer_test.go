package priming

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/swarmd/internal/logging"
	"github.com/fyrsmithlabs/swarmd/internal/pheromone"
	"github.com/fyrsmithlabs/swarmd/internal/roles"
	"github.com/fyrsmithlabs/swarmd/internal/store"
)

// failingDecisions wraps a store and rejects the decisions sub-fetch.
type failingDecisions struct {
	store.Store
}

func (f *failingDecisions) ListDecisions(context.Context, string) ([]store.Decision, error) {
	return nil, errors.New("decision backend down")
}

type staticWorkspace struct {
	files []WorkspaceFile
}

func (s *staticWorkspace) ListWorkspaceFiles(context.Context, string) ([]WorkspaceFile, error) {
	return s.files, nil
}

type staticSnippets struct {
	snippets []ContractSnippet
}

func (s *staticSnippets) ListContractSnippets(context.Context, string) ([]ContractSnippet, error) {
	return s.snippets, nil
}

func seedPrimingFixture(t *testing.T) (*store.Memory, store.Task, string) {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	p, err := mem.CreateProject(ctx, store.Project{Name: "billing"})
	require.NoError(t, err)
	task, err := mem.CreateTask(ctx, store.Task{
		ProjectID:   p.ID,
		Title:       "implement invoice endpoint",
		Description: "REST endpoint returning rendered invoices",
		Priority:    store.PriorityMedium,
		Agent:       roles.Coder,
	})
	require.NoError(t, err)

	_, err = mem.CreateDecision(ctx, store.Decision{ProjectID: p.ID, Title: "use REST"})
	require.NoError(t, err)
	_, err = mem.CreateCodeModule(ctx, store.CodeModule{
		ProjectID: p.ID, Name: "invoice renderer", Type: store.ModuleFunction,
		FilePath: "billing/invoice.go",
	})
	require.NoError(t, err)
	_, err = mem.CreateContract(ctx, store.Contract{
		ProjectID: p.ID, Name: "invoice api", Type: store.ContractOpenAPI, Specification: "{}",
	})
	require.NoError(t, err)
	_, err = mem.CreatePheromone(ctx, store.Pheromone{
		Type: store.PheromoneGuide, Strength: 0.8, Context: "invoice rendering needs timezone care",
		Metadata:  map[string]string{"role": "coder"},
		ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	_, err = mem.CreateTask(ctx, store.Task{ProjectID: p.ID, Title: "invoice listing endpoint"})
	require.NoError(t, err)

	return mem, *task, p.ID
}

func TestPrimeContext_PopulatesAllFields(t *testing.T) {
	mem, task, projectID := seedPrimingFixture(t)
	eng := pheromone.NewEngine(mem, nil)
	primer := NewPrimer(mem, eng, &staticWorkspace{files: []WorkspaceFile{
		{Path: "billing/invoice.go", ModTime: time.Now()},
	}}, &staticSnippets{snippets: []ContractSnippet{
		{File: "openapi.yaml", Description: "invoice endpoints", Content: "paths:"},
	}}, logging.NewTestLogger().Logger)

	got := primer.PrimeContext(context.Background(), task, roles.Coder, projectID, DefaultOptions())

	require.NotNil(t, got)
	assert.Equal(t, roles.Coder, got.Role)
	assert.NotEmpty(t, got.Keywords)
	assert.Len(t, got.Decisions, 1)
	assert.NotEmpty(t, got.CodeModules)
	assert.NotEmpty(t, got.Contracts)
	assert.NotZero(t, got.Pheromones.Total())
	assert.NotEmpty(t, got.WorkspaceFiles)
	assert.NotEmpty(t, got.ContractSnippets)
	assert.NotEmpty(t, got.SimilarTasks)
}

func TestPrimeContext_PartialFailureDegradesSingleField(t *testing.T) {
	mem, task, projectID := seedPrimingFixture(t)
	eng := pheromone.NewEngine(mem, nil)
	tl := logging.NewTestLogger()
	primer := NewPrimer(&failingDecisions{Store: mem}, eng, nil, nil, tl.Logger)

	got := primer.PrimeContext(context.Background(), task, roles.Coder, projectID, DefaultOptions())

	require.NotNil(t, got)
	assert.Empty(t, got.Decisions, "failing field degrades to empty")
	assert.NotEmpty(t, got.CodeModules, "other fields still populate")
	assert.NotEmpty(t, got.Contracts)
	tl.AssertLogged(t, zapcore.WarnLevel, "degraded")
}

func TestPrimeContext_RespectsMaxima(t *testing.T) {
	mem, task, projectID := seedPrimingFixture(t)
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		_, err := mem.CreateCodeModule(ctx, store.CodeModule{
			ProjectID: projectID, Name: "invoice helper", Type: store.ModuleFunction,
			FilePath: "billing/helper.go",
		})
		require.NoError(t, err)
	}
	eng := pheromone.NewEngine(mem, nil)
	primer := NewPrimer(mem, eng, nil, nil, nil)

	opts := DefaultOptions()
	opts.MaxCodeModules = 4
	got := primer.PrimeContext(ctx, task, roles.Coder, projectID, opts)
	assert.Len(t, got.CodeModules, 4)
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, 10, opts.MaxCodeModules)
	assert.Equal(t, 5, opts.MaxPheromones)
	assert.Equal(t, 3, opts.MaxSimilarTasks)
	assert.Equal(t, 15, opts.MaxWorkspaceFiles)
	assert.Equal(t, 8, opts.MaxContractSnippets)
	assert.True(t, opts.IncludeTests)
	assert.True(t, opts.IncludeDocs)
}
