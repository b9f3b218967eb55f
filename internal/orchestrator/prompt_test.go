package orchestrator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/swarmd/internal/pheromone"
	"github.com/fyrsmithlabs/swarmd/internal/priming"
	"github.com/fyrsmithlabs/swarmd/internal/roles"
	"github.com/fyrsmithlabs/swarmd/internal/store"
	"github.com/fyrsmithlabs/swarmd/internal/workflow"
)

func TestBuildPrompt_MinimalContext(t *testing.T) {
	primed := &priming.PrimedContext{
		Task:       store.Task{Title: "health endpoint"},
		Role:       roles.Coder,
		Complexity: priming.TierLow,
	}

	prompt := BuildPrompt(primed, workflow.StepImplementCode)

	profile, ok := roles.ProfileFor(roles.Coder)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(prompt, profile.PromptTemplate), "role template leads the prompt")
	assert.Contains(t, prompt, "Task: health endpoint")
	assert.Contains(t, prompt, "Complexity: low")
	assert.Contains(t, prompt, "Report IMPASSE:")

	// Empty sections stay out entirely.
	assert.NotContains(t, prompt, "Architectural decisions:")
	assert.NotContains(t, prompt, "Relevant contracts:")
	assert.NotContains(t, prompt, "Warnings from prior failures:")
}

func TestBuildPrompt_RendersPopulatedSections(t *testing.T) {
	primed := &priming.PrimedContext{
		Task:       store.Task{Title: "users API", Description: "CRUD over users"},
		Role:       roles.Formalizer,
		Complexity: priming.TierHigh,
		Decisions: []store.Decision{
			{Title: "Postgres", Description: "single relational store"},
		},
		Contracts: []priming.ScoredContract{
			{Contract: store.Contract{Name: "users-api", Type: store.ContractOpenAPI, Description: "user endpoints"}},
		},
		CodeModules: []priming.ScoredModule{
			{Module: store.CodeModule{Name: "users", FilePath: "internal/users/users.go"}},
		},
		Dependencies: []store.Task{
			{Title: "schema migration", Status: store.TaskCompleted},
		},
		Pheromones: pheromone.ContextPheromones{
			Guides:   []store.Pheromone{{Context: "reuse the pagination helper"}},
			Warnings: []store.Pheromone{{Context: "sqlite locks under concurrent writes"}},
		},
		SimilarTasks: []store.SimilarTask{
			{Task: store.Task{Title: "orders API", Status: store.TaskCompleted}},
		},
	}

	prompt := BuildPrompt(primed, workflow.StepFormalizeContracts)

	assert.Contains(t, prompt, "CRUD over users")
	assert.Contains(t, prompt, "Postgres: single relational store")
	assert.Contains(t, prompt, "users-api")
	assert.Contains(t, prompt, "internal/users/users.go")
	assert.Contains(t, prompt, "schema migration [completed]")
	assert.Contains(t, prompt, "reuse the pagination helper")
	assert.Contains(t, prompt, "sqlite locks under concurrent writes")
	assert.Contains(t, prompt, "orders API [completed]")

	// Guidance renders before warnings, warnings before similar tasks.
	guide := strings.Index(prompt, "Guidance from prior work:")
	warn := strings.Index(prompt, "Warnings from prior failures:")
	similar := strings.Index(prompt, "Similar past tasks:")
	require.True(t, guide >= 0 && warn >= 0 && similar >= 0)
	assert.Less(t, guide, warn)
	assert.Less(t, warn, similar)
}
