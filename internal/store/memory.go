package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store used by tests and single-shot CLI runs.
type Memory struct {
	mu sync.RWMutex

	projects   map[string]Project
	tasks      map[string]Task
	taskOrder  []string
	pheromones map[string]Pheromone
	contracts  map[string]Contract
	modules    map[string]CodeModule
	tests      map[string]Test
	decisions  map[string]Decision
	edges      []Relationship

	now func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		projects:   make(map[string]Project),
		tasks:      make(map[string]Task),
		pheromones: make(map[string]Pheromone),
		contracts:  make(map[string]Contract),
		modules:    make(map[string]CodeModule),
		tests:      make(map[string]Test),
		decisions:  make(map[string]Decision),
		now:        time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) CreateProject(_ context.Context, p Project) (*Project, error) {
	if err := validateProject(p); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.now()
	}
	m.projects[p.ID] = p
	return &p, nil
}

func (m *Memory) GetProject(_ context.Context, id string) (*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return &p, nil
}

func (m *Memory) CreateTask(_ context.Context, t Task) (*Task, error) {
	if t.Status == "" {
		t.Status = TaskPending
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if err := validateTask(t); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = m.now()
	}
	t.UpdatedAt = t.CreatedAt
	m.tasks[t.ID] = t
	m.taskOrder = append(m.taskOrder, t.ID)
	return &t, nil
}

func (m *Memory) GetTask(_ context.Context, id string) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return &t, nil
}

func (m *Memory) UpdateTask(_ context.Context, t Task) (*Task, error) {
	if err := validateTask(t); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.tasks[t.ID]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", t.ID, ErrNotFound)
	}
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = m.now()
	m.tasks[t.ID] = t
	return &t, nil
}

func (m *Memory) ListTasks(_ context.Context, projectID string) ([]Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Task
	for _, id := range m.taskOrder {
		t := m.tasks[id]
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *Memory) AddTaskDependency(ctx context.Context, taskID, dependsOnID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if _, ok := m.tasks[dependsOnID]; !ok {
		return fmt.Errorf("task %s: %w", dependsOnID, ErrNotFound)
	}
	for _, d := range t.Dependencies {
		if d == dependsOnID {
			return nil
		}
	}
	t.Dependencies = append(t.Dependencies, dependsOnID)
	m.tasks[taskID] = t
	m.edges = append(m.edges, Relationship{FromID: taskID, ToID: dependsOnID, Type: RelDependsOn})
	return nil
}

func (m *Memory) GetTaskDependencies(_ context.Context, taskID string) ([]Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	deps := make([]Task, 0, len(t.Dependencies))
	for _, id := range t.Dependencies {
		if dep, ok := m.tasks[id]; ok {
			deps = append(deps, dep)
		}
	}
	return deps, nil
}

func (m *Memory) CreatePheromone(_ context.Context, p Pheromone) (*Pheromone, error) {
	if err := validatePheromone(p); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.now()
	}
	m.pheromones[p.ID] = p
	return &p, nil
}

func (m *Memory) ListPheromonesByType(_ context.Context, t PheromoneType, limit int) ([]Pheromone, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listPheromonesLocked(func(p Pheromone) bool { return p.Type == t }, limit), nil
}

func (m *Memory) ListPheromones(_ context.Context, limit int) ([]Pheromone, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listPheromonesLocked(func(Pheromone) bool { return true }, limit), nil
}

// listPheromonesLocked filters out expired entries and orders by strength
// descending. Callers hold at least a read lock.
func (m *Memory) listPheromonesLocked(match func(Pheromone) bool, limit int) []Pheromone {
	now := m.now()
	var out []Pheromone
	for _, p := range m.pheromones {
		if p.Expired(now) || !match(p) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Strength != out[j].Strength {
			return out[i].Strength > out[j].Strength
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *Memory) SweepExpiredPheromones(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	deleted := 0
	for id, p := range m.pheromones {
		if p.Expired(now) {
			delete(m.pheromones, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *Memory) CreateContract(_ context.Context, c Contract) (*Contract, error) {
	if err := validateContract(c); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Version == 0 {
		c.Version = 1
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = m.now()
	}
	c.UpdatedAt = c.CreatedAt
	m.contracts[c.ID] = c
	return &c, nil
}

func (m *Memory) GetContract(_ context.Context, id string) (*Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contracts[id]
	if !ok {
		return nil, fmt.Errorf("contract %s: %w", id, ErrNotFound)
	}
	return &c, nil
}

// UpdateContract bumps the version. Relationships persist across updates
// because edges reference the contract id, not the version.
func (m *Memory) UpdateContract(_ context.Context, c Contract) (*Contract, error) {
	if err := validateContract(c); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.contracts[c.ID]
	if !ok {
		return nil, fmt.Errorf("contract %s: %w", c.ID, ErrNotFound)
	}
	c.Version = existing.Version + 1
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = m.now()
	m.contracts[c.ID] = c
	return &c, nil
}

func (m *Memory) ListContracts(_ context.Context, projectID string) ([]Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Contract
	for _, c := range m.contracts {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) CreateCodeModule(_ context.Context, mod CodeModule) (*CodeModule, error) {
	if err := validateCodeModule(mod); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if mod.ID == "" {
		mod.ID = uuid.NewString()
	}
	if mod.CreatedAt.IsZero() {
		mod.CreatedAt = m.now()
	}
	if mod.UpdatedAt.IsZero() {
		mod.UpdatedAt = mod.CreatedAt
	}
	m.modules[mod.ID] = mod
	return &mod, nil
}

func (m *Memory) ListCodeModules(_ context.Context, projectID string) ([]CodeModule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []CodeModule
	for _, mod := range m.modules {
		if mod.ProjectID == projectID {
			out = append(out, mod)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) CreateTest(_ context.Context, t Test) (*Test, error) {
	if err := validateTest(t); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = m.now()
	}
	m.tests[t.ID] = t
	return &t, nil
}

func (m *Memory) ListTests(_ context.Context, projectID string) ([]Test, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Test
	for _, t := range m.tests {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) CreateDecision(_ context.Context, d Decision) (*Decision, error) {
	if err := validateDecision(d); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = m.now()
	}
	m.decisions[d.ID] = d
	return &d, nil
}

func (m *Memory) ListDecisions(_ context.Context, projectID string) ([]Decision, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Decision
	for _, d := range m.decisions {
		if d.ProjectID == projectID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) LinkRelationship(_ context.Context, r Relationship) error {
	if err := validateRelationship(r); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges = append(m.edges, r)
	return nil
}

func (m *Memory) ListRelationshipsFrom(_ context.Context, fromID string, t RelationType) ([]Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Relationship
	for _, e := range m.edges {
		if e.FromID == fromID && e.Type == t {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Memory) ListRelationshipsTo(_ context.Context, toID string, t RelationType) ([]Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Relationship
	for _, e := range m.edges {
		if e.ToID == toID && e.Type == t {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Memory) GetProjectKnowledgeGraph(ctx context.Context, projectID string) (*KnowledgeGraph, error) {
	m.mu.RLock()
	p, ok := m.projects[projectID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}

	tasks, _ := m.ListTasks(ctx, projectID)
	contracts, _ := m.ListContracts(ctx, projectID)
	modules, _ := m.ListCodeModules(ctx, projectID)
	tests, _ := m.ListTests(ctx, projectID)
	decisions, _ := m.ListDecisions(ctx, projectID)
	pheromones, _ := m.ListPheromones(ctx, 0)

	m.mu.RLock()
	edges := make([]Relationship, len(m.edges))
	copy(edges, m.edges)
	m.mu.RUnlock()

	return &KnowledgeGraph{
		Project:       p,
		Tasks:         tasks,
		Contracts:     contracts,
		CodeModules:   modules,
		Tests:         tests,
		Decisions:     decisions,
		Pheromones:    pheromones,
		Relationships: edges,
	}, nil
}

func (m *Memory) FindSimilarTasks(_ context.Context, taskID string, keywords []string) ([]SimilarTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.tasks[taskID]; !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	var candidates []Task
	for _, id := range m.taskOrder {
		if id != taskID {
			candidates = append(candidates, m.tasks[id])
		}
	}
	return rankSimilarTasks(candidates, keywords), nil
}

func (m *Memory) Close() error { return nil }

// rankSimilarTasks scores candidate tasks by keyword overlap against the
// task's title and description tokens. Shared by both store implementations.
func rankSimilarTasks(candidates []Task, keywords []string) []SimilarTask {
	if len(keywords) == 0 {
		return nil
	}
	var out []SimilarTask
	for _, t := range candidates {
		text := strings.ToLower(t.Title + " " + t.Description)
		var matched []string
		for _, kw := range keywords {
			if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
				matched = append(matched, kw)
			}
		}
		if len(matched) == 0 {
			continue
		}
		out = append(out, SimilarTask{
			Task:            t,
			Similarity:      float64(len(matched)) / float64(len(keywords)),
			MatchedKeywords: matched,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > similarTaskCap {
		out = out[:similarTaskCap]
	}
	return out
}
