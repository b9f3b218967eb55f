package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/swarmd/internal/roles"
)

// clockStore is the subset of test hooks both implementations share.
type clockStore interface {
	Store
	SetClock(func() time.Time)
}

func openStores(t *testing.T) map[string]clockStore {
	t.Helper()
	sq, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })
	return map[string]clockStore{
		"memory": NewMemory(),
		"sqlite": sq,
	}
}

func seedProject(t *testing.T, s Store) *Project {
	t.Helper()
	p, err := s.CreateProject(context.Background(), Project{Name: "billing"})
	require.NoError(t, err)
	return p
}

func TestStore_ProjectRoundTrip(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := seedProject(t, s)
			assert.NotEmpty(t, p.ID)
			assert.False(t, p.CreatedAt.IsZero())

			got, err := s.GetProject(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, "billing", got.Name)

			_, err = s.GetProject(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_CreateProject_ValidatesName(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.CreateProject(context.Background(), Project{})
			require.Error(t, err)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestStore_TaskLifecycle(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := seedProject(t, s)

			created, err := s.CreateTask(ctx, Task{
				ProjectID:   p.ID,
				Title:       "implement invoices",
				Description: "invoice endpoint",
				Priority:    PriorityHigh,
				Agent:       roles.Coder,
			})
			require.NoError(t, err)
			assert.Equal(t, TaskPending, created.Status, "status defaults to pending")

			created.Status = TaskRunning
			updated, err := s.UpdateTask(ctx, *created)
			require.NoError(t, err)
			assert.Equal(t, TaskRunning, updated.Status)

			got, err := s.GetTask(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, TaskRunning, got.Status)
			assert.Equal(t, roles.Coder, got.Agent)
		})
	}
}

func TestStore_CreateTask_RejectsBadEnums(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := seedProject(t, s)

			_, err := s.CreateTask(ctx, Task{ProjectID: p.ID, Title: "x", Priority: Priority("urgent")})
			require.Error(t, err)
			assert.True(t, IsValidation(err))

			_, err = s.CreateTask(ctx, Task{ProjectID: p.ID, Title: "x", Agent: roles.Role("wizard")})
			require.Error(t, err)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestStore_TaskDependencies(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := seedProject(t, s)
			a, err := s.CreateTask(ctx, Task{ProjectID: p.ID, Title: "a"})
			require.NoError(t, err)
			b, err := s.CreateTask(ctx, Task{ProjectID: p.ID, Title: "b"})
			require.NoError(t, err)

			require.NoError(t, s.AddTaskDependency(ctx, b.ID, a.ID))
			// Duplicate links are ignored.
			require.NoError(t, s.AddTaskDependency(ctx, b.ID, a.ID))

			deps, err := s.GetTaskDependencies(ctx, b.ID)
			require.NoError(t, err)
			require.Len(t, deps, 1)
			assert.Equal(t, a.ID, deps[0].ID)

			err = s.AddTaskDependency(ctx, b.ID, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_ListTasks_PreservesInsertionOrder(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := seedProject(t, s)
			for _, title := range []string{"first", "second", "third"} {
				_, err := s.CreateTask(ctx, Task{ProjectID: p.ID, Title: title})
				require.NoError(t, err)
			}
			tasks, err := s.ListTasks(ctx, p.ID)
			require.NoError(t, err)
			require.Len(t, tasks, 3)
			assert.Equal(t, "first", tasks[0].Title)
			assert.Equal(t, "second", tasks[1].Title)
			assert.Equal(t, "third", tasks[2].Title)
		})
	}
}

func TestStore_PheromoneExpiryAndSweep(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
			now := base
			s.SetClock(func() time.Time { return now })

			_, err := s.CreatePheromone(ctx, Pheromone{
				Type: PheromoneGuide, Strength: 0.8, Context: "prefer table tests",
				ExpiresAt: base.Add(time.Hour),
			})
			require.NoError(t, err)
			_, err = s.CreatePheromone(ctx, Pheromone{
				Type: PheromoneGuide, Strength: 0.5, Context: "weaker guide",
				ExpiresAt: base.Add(time.Hour),
			})
			require.NoError(t, err)

			got, err := s.ListPheromonesByType(ctx, PheromoneGuide, 0)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.InDelta(t, 0.8, got[0].Strength, 1e-9, "ordered by strength desc")

			// After expiry the entries vanish from reads and the sweep purges them.
			now = base.Add(2 * time.Hour)
			got, err = s.ListPheromonesByType(ctx, PheromoneGuide, 0)
			require.NoError(t, err)
			assert.Empty(t, got)

			deleted, err := s.SweepExpiredPheromones(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, deleted)

			deleted, err = s.SweepExpiredPheromones(ctx)
			require.NoError(t, err)
			assert.Zero(t, deleted)
		})
	}
}

func TestStore_CreatePheromone_Validation(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			expires := time.Now().Add(time.Hour)

			_, err := s.CreatePheromone(ctx, Pheromone{Type: "smell", Strength: 0.5, Context: "x", ExpiresAt: expires})
			assert.True(t, IsValidation(err), "unknown type rejected")

			_, err = s.CreatePheromone(ctx, Pheromone{Type: PheromoneWarn, Strength: 1.2, Context: "x", ExpiresAt: expires})
			assert.True(t, IsValidation(err), "strength above 1 rejected")

			_, err = s.CreatePheromone(ctx, Pheromone{Type: PheromoneWarn, Strength: 0.5, Context: "x"})
			assert.True(t, IsValidation(err), "missing expiry rejected")

			// Legacy role-tagged guide types remain accepted.
			_, err = s.CreatePheromone(ctx, Pheromone{
				Type: LegacyGuideType(roles.Coder), Strength: 0.5, Context: "x", ExpiresAt: expires,
			})
			assert.NoError(t, err)
		})
	}
}

func TestStore_ContractVersioning(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := seedProject(t, s)

			c, err := s.CreateContract(ctx, Contract{
				ProjectID: p.ID, Name: "users-api", Type: ContractOpenAPI, Specification: "{}",
			})
			require.NoError(t, err)
			assert.Equal(t, 1, c.Version)

			c.Specification = `{"openapi":"3.0.0"}`
			updated, err := s.UpdateContract(ctx, *c)
			require.NoError(t, err)
			assert.Equal(t, 2, updated.Version)

			_, err = s.GetContract(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_RelationshipsAndReverseEdges(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := seedProject(t, s)
			c, err := s.CreateContract(ctx, Contract{ProjectID: p.ID, Name: "api", Type: ContractOpenAPI, Specification: "{}"})
			require.NoError(t, err)
			m, err := s.CreateCodeModule(ctx, CodeModule{ProjectID: p.ID, Name: "handler", Type: ModuleFunction, FilePath: "api/handler.go"})
			require.NoError(t, err)

			require.NoError(t, s.LinkRelationship(ctx, Relationship{
				FromID: m.ID, ToID: c.ID, Type: RelImplementsEndpoint,
				Properties: map[string]string{"path": "/users", "method": "GET", "function": "ListUsers"},
			}))

			rev, err := s.ListRelationshipsTo(ctx, c.ID, RelImplementsEndpoint)
			require.NoError(t, err)
			require.Len(t, rev, 1)
			assert.Equal(t, m.ID, rev[0].FromID)
			assert.Equal(t, "/users", rev[0].Properties["path"])

			fwd, err := s.ListRelationshipsFrom(ctx, m.ID, RelImplementsEndpoint)
			require.NoError(t, err)
			assert.Len(t, fwd, 1)

			// Endpoint edges without path+method are rejected.
			err = s.LinkRelationship(ctx, Relationship{FromID: m.ID, ToID: c.ID, Type: RelTestsEndpoint})
			assert.True(t, IsValidation(err))
		})
	}
}

func TestStore_KnowledgeGraphSnapshot(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := seedProject(t, s)
			task, err := s.CreateTask(ctx, Task{ProjectID: p.ID, Title: "t"})
			require.NoError(t, err)
			c, err := s.CreateContract(ctx, Contract{ProjectID: p.ID, Name: "api", Type: ContractOpenAPI, Specification: "{}"})
			require.NoError(t, err)
			require.NoError(t, s.LinkRelationship(ctx, Relationship{FromID: c.ID, ToID: task.ID, Type: RelDefines}))

			kg, err := s.GetProjectKnowledgeGraph(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, p.ID, kg.Project.ID)
			assert.Len(t, kg.Tasks, 1)
			assert.Len(t, kg.Contracts, 1)
			assert.Len(t, kg.Relationships, 1)

			_, err = s.GetProjectKnowledgeGraph(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_FindSimilarTasks(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := seedProject(t, s)
			origin, err := s.CreateTask(ctx, Task{ProjectID: p.ID, Title: "build invoice api"})
			require.NoError(t, err)
			_, err = s.CreateTask(ctx, Task{ProjectID: p.ID, Title: "invoice rendering", Description: "pdf invoice output"})
			require.NoError(t, err)
			_, err = s.CreateTask(ctx, Task{ProjectID: p.ID, Title: "user login"})
			require.NoError(t, err)

			similar, err := s.FindSimilarTasks(ctx, origin.ID, []string{"invoice", "api"})
			require.NoError(t, err)
			require.Len(t, similar, 1, "only the invoice task overlaps")
			assert.InDelta(t, 0.5, similar[0].Similarity, 1e-9)
			assert.Equal(t, []string{"invoice"}, similar[0].MatchedKeywords)

			_, err = s.FindSimilarTasks(ctx, "missing", []string{"x"})
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_FindSimilarTasks_CapsAtTen(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	p := seedProject(t, s)
	origin, err := s.CreateTask(ctx, Task{ProjectID: p.ID, Title: "payment gateway"})
	require.NoError(t, err)
	for i := 0; i < 15; i++ {
		_, err := s.CreateTask(ctx, Task{ProjectID: p.ID, Title: "payment retry handling"})
		require.NoError(t, err)
	}
	similar, err := s.FindSimilarTasks(ctx, origin.ID, []string{"payment"})
	require.NoError(t, err)
	assert.Len(t, similar, 10)
}

func TestValidationError_Shape(t *testing.T) {
	err := &ValidationError{Entity: "task", Field: "priority", Reason: "has unknown value"}
	assert.Contains(t, err.Error(), "task")
	assert.Contains(t, err.Error(), "priority")
	var target *ValidationError
	assert.True(t, errors.As(err, &target))
}
