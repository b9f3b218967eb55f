package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/swarmd/internal/plan"
	"github.com/fyrsmithlabs/swarmd/internal/store"
)

// IngestPlan materializes a validated plan into the knowledge store: one
// project, one task per feature in dependency order, DEPENDS_ON edges, and
// one decision per declared architecture decision. Store errors abort the
// ingest; nothing is retried.
func IngestPlan(ctx context.Context, s store.Store, doc *plan.Document) (*store.Project, []store.Task, error) {
	project, err := s.CreateProject(ctx, store.Project{
		Name:        doc.Title,
		Description: doc.Overview,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("orchestrator: create project: %w", err)
	}

	idByFeature := make(map[string]string, len(doc.Features))
	tasks := make([]store.Task, 0, len(doc.Features))

	for _, f := range plan.DependencyOrder(doc.Features) {
		task, err := s.CreateTask(ctx, store.Task{
			ProjectID:   project.ID,
			Title:       f.Name,
			Description: featureDescription(f),
			Priority:    f.Priority,
			Agent:       f.Agent,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("orchestrator: create task %q: %w", f.Name, err)
		}
		idByFeature[f.Name] = task.ID

		// Dependency order guarantees every dependency already has an id.
		for _, dep := range f.Dependencies {
			if err := s.AddTaskDependency(ctx, task.ID, idByFeature[dep]); err != nil {
				return nil, nil, fmt.Errorf("orchestrator: dependency %q -> %q: %w", f.Name, dep, err)
			}
		}

		created, err := s.GetTask(ctx, task.ID)
		if err != nil {
			return nil, nil, err
		}
		tasks = append(tasks, *created)
	}

	for _, d := range doc.ArchitectureDecisions {
		if _, err := s.CreateDecision(ctx, store.Decision{
			ProjectID:   project.ID,
			Title:       d.Title,
			Description: d.Description,
		}); err != nil {
			return nil, nil, fmt.Errorf("orchestrator: create decision %q: %w", d.Title, err)
		}
	}

	return project, tasks, nil
}

// featureDescription folds the acceptance criteria and microtasks into the
// task description so keyword extraction and workers see them.
func featureDescription(f plan.Feature) string {
	var b strings.Builder
	b.WriteString(f.Description)
	if len(f.AcceptanceCriteria) > 0 {
		b.WriteString("\n\nAcceptance criteria:\n")
		for _, c := range f.AcceptanceCriteria {
			b.WriteString("- " + c + "\n")
		}
	}
	if len(f.Microtasks) > 0 {
		b.WriteString("\nMicrotasks:\n")
		for _, m := range f.Microtasks {
			b.WriteString("- " + m + "\n")
		}
	}
	return b.String()
}
