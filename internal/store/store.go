package store

import "context"

// Store is the knowledge-store contract the orchestration core consumes.
// Every write returns the persisted entity. Relationship direction follows
// the edge names exactly: IMPLEMENTS points CodeModule -> Contract, TESTS
// points Test -> Contract, DEFINES points Contract -> Task.
type Store interface {
	// Projects
	CreateProject(ctx context.Context, p Project) (*Project, error)
	GetProject(ctx context.Context, id string) (*Project, error)

	// Tasks. Completed tasks are archived, never deleted.
	CreateTask(ctx context.Context, t Task) (*Task, error)
	GetTask(ctx context.Context, id string) (*Task, error)
	UpdateTask(ctx context.Context, t Task) (*Task, error)
	ListTasks(ctx context.Context, projectID string) ([]Task, error)
	AddTaskDependency(ctx context.Context, taskID, dependsOnID string) error
	GetTaskDependencies(ctx context.Context, taskID string) ([]Task, error)

	// Pheromones. Reads exclude expired entries and order by strength
	// descending; the sweep deletes expired entries and reports the count.
	CreatePheromone(ctx context.Context, p Pheromone) (*Pheromone, error)
	ListPheromonesByType(ctx context.Context, t PheromoneType, limit int) ([]Pheromone, error)
	ListPheromones(ctx context.Context, limit int) ([]Pheromone, error)
	SweepExpiredPheromones(ctx context.Context) (int, error)

	// Contracts
	CreateContract(ctx context.Context, c Contract) (*Contract, error)
	GetContract(ctx context.Context, id string) (*Contract, error)
	UpdateContract(ctx context.Context, c Contract) (*Contract, error)
	ListContracts(ctx context.Context, projectID string) ([]Contract, error)

	// Code modules and tests
	CreateCodeModule(ctx context.Context, m CodeModule) (*CodeModule, error)
	ListCodeModules(ctx context.Context, projectID string) ([]CodeModule, error)
	CreateTest(ctx context.Context, t Test) (*Test, error)
	ListTests(ctx context.Context, projectID string) ([]Test, error)

	// Architectural decisions
	CreateDecision(ctx context.Context, d Decision) (*Decision, error)
	ListDecisions(ctx context.Context, projectID string) ([]Decision, error)

	// Relationships. ListRelationshipsTo is the reverse-edge query coverage
	// analysis depends on.
	LinkRelationship(ctx context.Context, r Relationship) error
	ListRelationshipsFrom(ctx context.Context, fromID string, t RelationType) ([]Relationship, error)
	ListRelationshipsTo(ctx context.Context, toID string, t RelationType) ([]Relationship, error)

	// Aggregates
	GetProjectKnowledgeGraph(ctx context.Context, projectID string) (*KnowledgeGraph, error)

	// FindSimilarTasks returns tasks sharing keywords with the given task,
	// similarity = matched/len(keywords), sorted descending, capped at 10.
	FindSimilarTasks(ctx context.Context, taskID string, keywords []string) ([]SimilarTask, error)

	// Close releases the underlying connection.
	Close() error
}

// similarTaskCap bounds FindSimilarTasks results.
const similarTaskCap = 10
