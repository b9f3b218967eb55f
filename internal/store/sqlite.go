package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/fyrsmithlabs/swarmd/internal/roles"
)

// SQLite is a file-backed Store. The graph model maps to entity tables plus
// a single edges table; relationship queries are index scans on (from_id,
// type) and (to_id, type).
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	priority TEXT NOT NULL,
	agent TEXT NOT NULL DEFAULT '',
	retry_count INTEGER NOT NULL DEFAULT 0,
	escalation TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);
CREATE TABLE IF NOT EXISTS pheromones (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	strength REAL NOT NULL,
	context TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pheromones_type ON pheromones(type, expires_at);
CREATE TABLE IF NOT EXISTS contracts (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL,
	version INTEGER NOT NULL,
	specification TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_contracts_project ON contracts(project_id);
CREATE TABLE IF NOT EXISTS code_modules (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	name TEXT NOT NULL,
	type TEXT NOT NULL,
	language TEXT NOT NULL DEFAULT '',
	file_path TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_modules_project ON code_modules(project_id);
CREATE TABLE IF NOT EXISTS tests (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	name TEXT NOT NULL,
	type TEXT NOT NULL,
	framework TEXT NOT NULL DEFAULT '',
	file_path TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tests_project ON tests(project_id);
CREATE TABLE IF NOT EXISTS decisions (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	rationale TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_project ON decisions(project_id);
CREATE TABLE IF NOT EXISTS edges (
	from_id TEXT NOT NULL,
	to_id TEXT NOT NULL,
	type TEXT NOT NULL,
	properties TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(from_id, type);
CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_id, type);
`

// OpenSQLite opens (creating if needed) a sqlite-backed store at path.
// Use ":memory:" for an ephemeral store.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// modernc sqlite serializes on a single connection; avoid lock contention.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

// SetClock overrides the time source. Test hook.
func (s *SQLite) SetClock(now func() time.Time) { s.now = now }

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) CreateProject(ctx context.Context, p Project) (*Project, error) {
	if err := validateProject(p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, description, created_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.CreatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return &p, nil
}

func (s *SQLite) GetProject(ctx context.Context, id string) (*Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at FROM projects WHERE id = ?`, id)
	var p Project
	var created int64
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get project %s: %w", id, err)
	}
	p.CreatedAt = time.Unix(0, created)
	return &p, nil
}

func (s *SQLite) CreateTask(ctx context.Context, t Task) (*Task, error) {
	if t.Status == "" {
		t.Status = TaskPending
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if err := validateTask(t); err != nil {
		return nil, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	t.UpdatedAt = t.CreatedAt
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, project_id, title, description, status, priority, agent, retry_count, escalation, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectID, t.Title, t.Description, string(t.Status), string(t.Priority),
		string(t.Agent), t.RetryCount, string(t.Escalation), t.CreatedAt.UnixNano(), t.UpdatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	for _, dep := range t.Dependencies {
		if err := s.AddTaskDependency(ctx, t.ID, dep); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

func (s *SQLite) scanTask(row interface{ Scan(...any) error }) (Task, error) {
	var t Task
	var agent, status, priority, escalation string
	var created, updated int64
	err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &status, &priority,
		&agent, &t.RetryCount, &escalation, &created, &updated)
	if err != nil {
		return Task{}, err
	}
	t.Status = TaskStatus(status)
	t.Priority = Priority(priority)
	t.Agent = roles.Role(agent)
	t.Escalation = EscalationStage(escalation)
	t.CreatedAt = time.Unix(0, created)
	t.UpdatedAt = time.Unix(0, updated)
	return t, nil
}

func (s *SQLite) loadDependencies(ctx context.Context, taskID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT to_id FROM edges WHERE from_id = ? AND type = ? ORDER BY rowid`, taskID, string(RelDependsOn))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var deps []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		deps = append(deps, id)
	}
	return deps, rows.Err()
}

const taskColumns = `id, project_id, title, description, status, priority, agent, retry_count, escalation, created_at, updated_at`

func (s *SQLite) GetTask(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := s.scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	if t.Dependencies, err = s.loadDependencies(ctx, id); err != nil {
		return nil, fmt.Errorf("get task %s dependencies: %w", id, err)
	}
	return &t, nil
}

func (s *SQLite) UpdateTask(ctx context.Context, t Task) (*Task, error) {
	if err := validateTask(t); err != nil {
		return nil, err
	}
	t.UpdatedAt = s.now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?, agent = ?, retry_count = ?, escalation = ?, updated_at = ?
		 WHERE id = ?`,
		t.Title, t.Description, string(t.Status), string(t.Priority), string(t.Agent),
		t.RetryCount, string(t.Escalation), t.UpdatedAt.UnixNano(), t.ID)
	if err != nil {
		return nil, fmt.Errorf("update task %s: %w", t.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update task %s: %w", t.ID, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("task %s: %w", t.ID, ErrNotFound)
	}
	return s.GetTask(ctx, t.ID)
}

func (s *SQLite) ListTasks(ctx context.Context, projectID string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE project_id = ? ORDER BY rowid`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	var out []Task
	for rows.Next() {
		t, err := s.scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	for i := range out {
		if out[i].Dependencies, err = s.loadDependencies(ctx, out[i].ID); err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
	}
	return out, nil
}

func (s *SQLite) AddTaskDependency(ctx context.Context, taskID, dependsOnID string) error {
	for _, id := range []string{taskID, dependsOnID} {
		if _, err := s.GetTask(ctx, id); err != nil {
			return err
		}
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM edges WHERE from_id = ? AND to_id = ? AND type = ?`,
		taskID, dependsOnID, string(RelDependsOn)).Scan(&count)
	if err != nil {
		return fmt.Errorf("add dependency: %w", err)
	}
	if count > 0 {
		return nil
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO edges (from_id, to_id, type, properties) VALUES (?, ?, ?, '{}')`,
		taskID, dependsOnID, string(RelDependsOn))
	if err != nil {
		return fmt.Errorf("add dependency: %w", err)
	}
	return nil
}

func (s *SQLite) GetTaskDependencies(ctx context.Context, taskID string) ([]Task, error) {
	t, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	deps := make([]Task, 0, len(t.Dependencies))
	for _, id := range t.Dependencies {
		dep, err := s.GetTask(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		deps = append(deps, *dep)
	}
	return deps, nil
}

func (s *SQLite) CreatePheromone(ctx context.Context, p Pheromone) (*Pheromone, error) {
	if err := validatePheromone(p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	meta, err := json.Marshal(orEmpty(p.Metadata))
	if err != nil {
		return nil, fmt.Errorf("marshal pheromone metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pheromones (id, type, strength, context, metadata, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, string(p.Type), p.Strength, p.Context, string(meta),
		p.CreatedAt.UnixNano(), p.ExpiresAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("create pheromone: %w", err)
	}
	return &p, nil
}

func (s *SQLite) listPheromones(ctx context.Context, where string, args []any, limit int) ([]Pheromone, error) {
	q := `SELECT id, type, strength, context, metadata, created_at, expires_at FROM pheromones WHERE ` + where +
		` ORDER BY strength DESC, created_at ASC`
	if limit > 0 {
		q += fmt.Sprintf(` LIMIT %d`, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list pheromones: %w", err)
	}
	defer rows.Close()
	var out []Pheromone
	for rows.Next() {
		var p Pheromone
		var typ, meta string
		var created, expires int64
		if err := rows.Scan(&p.ID, &typ, &p.Strength, &p.Context, &meta, &created, &expires); err != nil {
			return nil, fmt.Errorf("list pheromones: %w", err)
		}
		p.Type = PheromoneType(typ)
		p.CreatedAt = time.Unix(0, created)
		p.ExpiresAt = time.Unix(0, expires)
		if err := json.Unmarshal([]byte(meta), &p.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal pheromone metadata: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLite) ListPheromonesByType(ctx context.Context, t PheromoneType, limit int) ([]Pheromone, error) {
	return s.listPheromones(ctx, `type = ? AND expires_at > ?`, []any{string(t), s.now().UnixNano()}, limit)
}

func (s *SQLite) ListPheromones(ctx context.Context, limit int) ([]Pheromone, error) {
	return s.listPheromones(ctx, `expires_at > ?`, []any{s.now().UnixNano()}, limit)
}

func (s *SQLite) SweepExpiredPheromones(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pheromones WHERE expires_at <= ?`, s.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("sweep pheromones: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep pheromones: %w", err)
	}
	return int(n), nil
}

func (s *SQLite) CreateContract(ctx context.Context, c Contract) (*Contract, error) {
	if err := validateContract(c); err != nil {
		return nil, err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Version == 0 {
		c.Version = 1
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	c.UpdatedAt = c.CreatedAt
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contracts (id, project_id, name, description, type, version, specification, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ProjectID, c.Name, c.Description, string(c.Type), c.Version, c.Specification,
		c.CreatedAt.UnixNano(), c.UpdatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("create contract: %w", err)
	}
	return &c, nil
}

func (s *SQLite) GetContract(ctx context.Context, id string) (*Contract, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, name, description, type, version, specification, created_at, updated_at
		 FROM contracts WHERE id = ?`, id)
	var c Contract
	var typ string
	var created, updated int64
	err := row.Scan(&c.ID, &c.ProjectID, &c.Name, &c.Description, &typ, &c.Version, &c.Specification, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("contract %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get contract %s: %w", id, err)
	}
	c.Type = ContractType(typ)
	c.CreatedAt = time.Unix(0, created)
	c.UpdatedAt = time.Unix(0, updated)
	return &c, nil
}

func (s *SQLite) UpdateContract(ctx context.Context, c Contract) (*Contract, error) {
	if err := validateContract(c); err != nil {
		return nil, err
	}
	existing, err := s.GetContract(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Version = existing.Version + 1
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = s.now()
	_, err = s.db.ExecContext(ctx,
		`UPDATE contracts SET name = ?, description = ?, type = ?, version = ?, specification = ?, updated_at = ? WHERE id = ?`,
		c.Name, c.Description, string(c.Type), c.Version, c.Specification, c.UpdatedAt.UnixNano(), c.ID)
	if err != nil {
		return nil, fmt.Errorf("update contract %s: %w", c.ID, err)
	}
	return &c, nil
}

func (s *SQLite) ListContracts(ctx context.Context, projectID string) ([]Contract, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, name, description, type, version, specification, created_at, updated_at
		 FROM contracts WHERE project_id = ? ORDER BY rowid`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	defer rows.Close()
	var out []Contract
	for rows.Next() {
		var c Contract
		var typ string
		var created, updated int64
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Name, &c.Description, &typ, &c.Version, &c.Specification, &created, &updated); err != nil {
			return nil, fmt.Errorf("list contracts: %w", err)
		}
		c.Type = ContractType(typ)
		c.CreatedAt = time.Unix(0, created)
		c.UpdatedAt = time.Unix(0, updated)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLite) CreateCodeModule(ctx context.Context, m CodeModule) (*CodeModule, error) {
	if err := validateCodeModule(m); err != nil {
		return nil, err
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO code_modules (id, project_id, name, type, language, file_path, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ProjectID, m.Name, string(m.Type), m.Language, m.FilePath,
		m.CreatedAt.UnixNano(), m.UpdatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("create code module: %w", err)
	}
	return &m, nil
}

func (s *SQLite) ListCodeModules(ctx context.Context, projectID string) ([]CodeModule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, name, type, language, file_path, created_at, updated_at
		 FROM code_modules WHERE project_id = ? ORDER BY rowid`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list code modules: %w", err)
	}
	defer rows.Close()
	var out []CodeModule
	for rows.Next() {
		var m CodeModule
		var typ string
		var created, updated int64
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Name, &typ, &m.Language, &m.FilePath, &created, &updated); err != nil {
			return nil, fmt.Errorf("list code modules: %w", err)
		}
		m.Type = CodeModuleType(typ)
		m.CreatedAt = time.Unix(0, created)
		m.UpdatedAt = time.Unix(0, updated)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLite) CreateTest(ctx context.Context, t Test) (*Test, error) {
	if err := validateTest(t); err != nil {
		return nil, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tests (id, project_id, name, type, framework, file_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectID, t.Name, string(t.Type), t.Framework, t.FilePath, t.CreatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("create test: %w", err)
	}
	return &t, nil
}

func (s *SQLite) ListTests(ctx context.Context, projectID string) ([]Test, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, name, type, framework, file_path, created_at
		 FROM tests WHERE project_id = ? ORDER BY rowid`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}
	defer rows.Close()
	var out []Test
	for rows.Next() {
		var t Test
		var typ string
		var created int64
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Name, &typ, &t.Framework, &t.FilePath, &created); err != nil {
			return nil, fmt.Errorf("list tests: %w", err)
		}
		t.Type = TestType(typ)
		t.CreatedAt = time.Unix(0, created)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLite) CreateDecision(ctx context.Context, d Decision) (*Decision, error) {
	if err := validateDecision(d); err != nil {
		return nil, err
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decisions (id, project_id, title, description, rationale, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.ProjectID, d.Title, d.Description, d.Rationale, d.CreatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("create decision: %w", err)
	}
	return &d, nil
}

func (s *SQLite) ListDecisions(ctx context.Context, projectID string) ([]Decision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, title, description, rationale, created_at
		 FROM decisions WHERE project_id = ? ORDER BY rowid`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()
	var out []Decision
	for rows.Next() {
		var d Decision
		var created int64
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.Title, &d.Description, &d.Rationale, &created); err != nil {
			return nil, fmt.Errorf("list decisions: %w", err)
		}
		d.CreatedAt = time.Unix(0, created)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLite) LinkRelationship(ctx context.Context, r Relationship) error {
	if err := validateRelationship(r); err != nil {
		return err
	}
	props, err := json.Marshal(orEmpty(r.Properties))
	if err != nil {
		return fmt.Errorf("marshal relationship properties: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO edges (from_id, to_id, type, properties) VALUES (?, ?, ?, ?)`,
		r.FromID, r.ToID, string(r.Type), string(props))
	if err != nil {
		return fmt.Errorf("link relationship: %w", err)
	}
	return nil
}

func (s *SQLite) listRelationships(ctx context.Context, where, id string, t RelationType) ([]Relationship, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT from_id, to_id, type, properties FROM edges WHERE `+where+` = ? AND type = ? ORDER BY rowid`,
		id, string(t))
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	defer rows.Close()
	var out []Relationship
	for rows.Next() {
		var r Relationship
		var typ, props string
		if err := rows.Scan(&r.FromID, &r.ToID, &typ, &props); err != nil {
			return nil, fmt.Errorf("list relationships: %w", err)
		}
		r.Type = RelationType(typ)
		if err := json.Unmarshal([]byte(props), &r.Properties); err != nil {
			return nil, fmt.Errorf("unmarshal relationship properties: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) ListRelationshipsFrom(ctx context.Context, fromID string, t RelationType) ([]Relationship, error) {
	return s.listRelationships(ctx, "from_id", fromID, t)
}

func (s *SQLite) ListRelationshipsTo(ctx context.Context, toID string, t RelationType) ([]Relationship, error) {
	return s.listRelationships(ctx, "to_id", toID, t)
}

func (s *SQLite) GetProjectKnowledgeGraph(ctx context.Context, projectID string) (*KnowledgeGraph, error) {
	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.ListTasks(ctx, projectID)
	if err != nil {
		return nil, err
	}
	contracts, err := s.ListContracts(ctx, projectID)
	if err != nil {
		return nil, err
	}
	modules, err := s.ListCodeModules(ctx, projectID)
	if err != nil {
		return nil, err
	}
	tests, err := s.ListTests(ctx, projectID)
	if err != nil {
		return nil, err
	}
	decisions, err := s.ListDecisions(ctx, projectID)
	if err != nil {
		return nil, err
	}
	pheromones, err := s.ListPheromones(ctx, 0)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT from_id, to_id, type, properties FROM edges ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	defer rows.Close()
	var edges []Relationship
	for rows.Next() {
		var r Relationship
		var typ, props string
		if err := rows.Scan(&r.FromID, &r.ToID, &typ, &props); err != nil {
			return nil, fmt.Errorf("list edges: %w", err)
		}
		r.Type = RelationType(typ)
		if err := json.Unmarshal([]byte(props), &r.Properties); err != nil {
			return nil, fmt.Errorf("unmarshal edge properties: %w", err)
		}
		edges = append(edges, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}

	return &KnowledgeGraph{
		Project:       *p,
		Tasks:         tasks,
		Contracts:     contracts,
		CodeModules:   modules,
		Tests:         tests,
		Decisions:     decisions,
		Pheromones:    pheromones,
		Relationships: edges,
	}, nil
}

func (s *SQLite) FindSimilarTasks(ctx context.Context, taskID string, keywords []string) ([]SimilarTask, error) {
	t, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	all, err := s.ListTasks(ctx, t.ProjectID)
	if err != nil {
		return nil, err
	}
	candidates := make([]Task, 0, len(all))
	for _, c := range all {
		if c.ID != taskID {
			candidates = append(candidates, c)
		}
	}
	return rankSimilarTasks(candidates, keywords), nil
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
