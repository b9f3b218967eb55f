// Package store defines the knowledge-store contract for swarmd: the typed
// entities persisted across the pipeline (tasks, contracts, code modules,
// tests, pheromones, decisions) and the relationship edges connecting them.
package store

import (
	"strings"
	"time"

	"github.com/fyrsmithlabs/swarmd/internal/roles"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending     TaskStatus = "pending"
	TaskRunning     TaskStatus = "running"
	TaskPaused      TaskStatus = "paused"
	TaskImpasse     TaskStatus = "impasse"
	TaskFailed      TaskStatus = "failed"
	TaskHumanReview TaskStatus = "human_review"
	TaskCompleted   TaskStatus = "completed"
	TaskArchived    TaskStatus = "archived"
)

var taskStatuses = map[TaskStatus]bool{
	TaskPending: true, TaskRunning: true, TaskPaused: true, TaskImpasse: true,
	TaskFailed: true, TaskHumanReview: true, TaskCompleted: true, TaskArchived: true,
}

// Priority is the scheduling priority of a task or feature.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var priorities = map[Priority]bool{PriorityLow: true, PriorityMedium: true, PriorityHigh: true}

// EscalationStage tracks how far the failure controller has escalated a task.
type EscalationStage string

const (
	EscalationNone        EscalationStage = ""
	EscalationRetrying    EscalationStage = "retrying"
	EscalationHelper      EscalationStage = "helper_spawned"
	EscalationHumanReview EscalationStage = "human_review"
)

// Project is the root aggregate all other entities hang off.
type Project struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

// Task is one schedulable unit of work derived from a plan feature.
type Task struct {
	ID          string
	ProjectID   string
	Title       string
	Description string
	Status      TaskStatus
	Priority    Priority
	Agent       roles.Role

	// Dependencies are task IDs this task depends on (DEPENDS_ON edges).
	Dependencies []string

	// RetryCount and Escalation implement the bounded-retry policy of the
	// failure controller.
	RetryCount int
	Escalation EscalationStage

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PheromoneType tags the intent of a pheromone signal.
type PheromoneType string

const (
	PheromoneGuide   PheromoneType = "guide"
	PheromoneWarn    PheromoneType = "warn"
	PheromoneSuccess PheromoneType = "success"
	PheromonePause   PheromoneType = "pause"
)

// LegacyGuideType returns the role-tagged pheromone type emitted by earlier
// pipeline versions. The relevance engine backfills from these.
func LegacyGuideType(r roles.Role) PheromoneType {
	return PheromoneType(string(r) + "_guide")
}

// validPheromoneType accepts the closed set plus legacy role-tagged types.
func validPheromoneType(t PheromoneType) bool {
	switch t {
	case PheromoneGuide, PheromoneWarn, PheromoneSuccess, PheromonePause:
		return true
	}
	s := string(t)
	if strings.HasSuffix(s, "_guide") {
		_, err := roles.Parse(strings.TrimSuffix(s, "_guide"))
		return err == nil
	}
	return false
}

// Pheromone is a decaying, strength-weighted signal biasing future
// scheduling and context selection. Pheromones are immutable once created;
// they leave the store only through the expiry sweep.
type Pheromone struct {
	ID        string
	Type      PheromoneType
	Strength  float64 // in [0,1]
	Context   string
	Metadata  map[string]string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the pheromone is past its expiry at the given time.
func (p Pheromone) Expired(now time.Time) bool {
	return !p.ExpiresAt.After(now)
}

// ContractType identifies the formalism of a contract artifact.
type ContractType string

const (
	ContractOpenAPI    ContractType = "openapi"
	ContractJSONSchema ContractType = "json-schema"
	ContractProperty   ContractType = "property-definition"
)

var contractTypes = map[ContractType]bool{
	ContractOpenAPI: true, ContractJSONSchema: true, ContractProperty: true,
}

// Contract is a formal specification artifact used for coverage analysis.
type Contract struct {
	ID            string
	ProjectID     string
	Name          string
	Description   string
	Type          ContractType
	Version       int
	Specification string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CodeModuleType classifies a code module entity.
type CodeModuleType string

const (
	ModuleFunction  CodeModuleType = "function"
	ModuleClass     CodeModuleType = "class"
	ModuleModule    CodeModuleType = "module"
	ModuleComponent CodeModuleType = "component"
)

var codeModuleTypes = map[CodeModuleType]bool{
	ModuleFunction: true, ModuleClass: true, ModuleModule: true, ModuleComponent: true,
}

// CodeModule is a unit of implementation linked to the contracts it serves.
type CodeModule struct {
	ID        string
	ProjectID string
	Name      string
	Type      CodeModuleType
	Language  string
	FilePath  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TestType classifies a test entity.
type TestType string

const (
	TestUnit        TestType = "unit"
	TestIntegration TestType = "integration"
	TestE2E         TestType = "e2e"
	TestContract    TestType = "contract"
)

var testTypes = map[TestType]bool{
	TestUnit: true, TestIntegration: true, TestE2E: true, TestContract: true,
}

// Test is a validation artifact linked to what it validates.
type Test struct {
	ID        string
	ProjectID string
	Name      string
	Type      TestType
	Framework string
	FilePath  string
	CreatedAt time.Time
}

// Decision records an architectural decision influencing future work.
type Decision struct {
	ID          string
	ProjectID   string
	Title       string
	Description string
	Rationale   string
	CreatedAt   time.Time
}

// RelationType names a directed edge kind in the knowledge graph.
type RelationType string

const (
	RelDependsOn          RelationType = "DEPENDS_ON"
	RelAssignedTo         RelationType = "ASSIGNED_TO"
	RelInfluences         RelationType = "INFLUENCES"
	RelImplements         RelationType = "IMPLEMENTS"
	RelUses               RelationType = "USES"
	RelValidates          RelationType = "VALIDATES"
	RelTests              RelationType = "TESTS"
	RelImplementsEndpoint RelationType = "IMPLEMENTS_ENDPOINT"
	RelTestsEndpoint      RelationType = "TESTS_ENDPOINT"
	RelDefines            RelationType = "DEFINES"
)

var relationTypes = map[RelationType]bool{
	RelDependsOn: true, RelAssignedTo: true, RelInfluences: true,
	RelImplements: true, RelUses: true, RelValidates: true, RelTests: true,
	RelImplementsEndpoint: true, RelTestsEndpoint: true, RelDefines: true,
}

// Relationship is a directed, typed edge. Endpoint-tagged edges carry the
// path and method in Properties under "path" and "method".
type Relationship struct {
	FromID     string
	ToID       string
	Type       RelationType
	Properties map[string]string
}

// SimilarTask is a keyword-overlap search hit.
type SimilarTask struct {
	Task            Task
	Similarity      float64
	MatchedKeywords []string
}

// KnowledgeGraph is the full denormalized snapshot of a project.
type KnowledgeGraph struct {
	Project       Project
	Tasks         []Task
	Contracts     []Contract
	CodeModules   []CodeModule
	Tests         []Test
	Decisions     []Decision
	Pheromones    []Pheromone
	Relationships []Relationship
}
