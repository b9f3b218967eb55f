package priming

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/swarmd/internal/logging"
	"github.com/fyrsmithlabs/swarmd/internal/pheromone"
	"github.com/fyrsmithlabs/swarmd/internal/roles"
	"github.com/fyrsmithlabs/swarmd/internal/store"
)

// Options bound each PrimeContext fan-out field.
type Options struct {
	MaxCodeModules      int
	MaxPheromones       int
	MaxSimilarTasks     int
	MaxWorkspaceFiles   int
	MaxContractSnippets int
	IncludeTests        bool
	IncludeDocs         bool
}

// DefaultOptions returns the standard priming bounds.
func DefaultOptions() Options {
	return Options{
		MaxCodeModules:      10,
		MaxPheromones:       5,
		MaxSimilarTasks:     3,
		MaxWorkspaceFiles:   15,
		MaxContractSnippets: 8,
		IncludeTests:        true,
		IncludeDocs:         true,
	}
}

// WorkspaceScanner lists candidate files from a task's isolated workspace.
type WorkspaceScanner interface {
	ListWorkspaceFiles(ctx context.Context, taskID string) ([]WorkspaceFile, error)
}

// SnippetSource lists contract excerpts available as prompt context.
type SnippetSource interface {
	ListContractSnippets(ctx context.Context, projectID string) ([]ContractSnippet, error)
}

// PrimedContext is everything handed to a worker prompt for one task+role.
type PrimedContext struct {
	Task       store.Task
	Role       roles.Role
	Complexity Tier
	Keywords   []string

	Decisions        []store.Decision
	CodeModules      []ScoredModule
	Contracts        []ScoredContract
	Pheromones       pheromone.ContextPheromones
	Dependencies     []store.Task
	WorkspaceFiles   []ScoredFile
	ContractSnippets []ScoredSnippet
	SimilarTasks     []store.SimilarTask
}

// Primer assembles prioritized context for worker dispatch.
type Primer struct {
	store      store.Store
	pheromones *pheromone.Engine
	workspace  WorkspaceScanner
	snippets   SnippetSource
	logger     *logging.Logger
	now        func() time.Time
}

// NewPrimer creates a context primer. workspace and snippets may be nil when
// no workspace exists yet for the task; the corresponding fields stay empty.
func NewPrimer(s store.Store, eng *pheromone.Engine, workspace WorkspaceScanner, snippets SnippetSource, logger *logging.Logger) *Primer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Primer{
		store:      s,
		pheromones: eng,
		workspace:  workspace,
		snippets:   snippets,
		logger:     logger.Named("priming"),
		now:        time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (p *Primer) SetClock(now func() time.Time) { p.now = now }

// PrimeContext fans out to every context source in parallel and applies the
// relevance scoring. A single failing sub-fetch degrades to an empty result
// for that field only; the call as a whole never fails.
func (p *Primer) PrimeContext(ctx context.Context, task store.Task, role roles.Role, projectID string, opts Options) *PrimedContext {
	keywords := ExtractKeywords(task.Title + " " + task.Description)
	tier := ClassifyComplexity(task)
	now := p.now()

	result := &PrimedContext{
		Task:       task,
		Role:       role,
		Complexity: tier,
		Keywords:   keywords,
	}

	freeText := task.Title + " " + task.Description

	var g errgroup.Group

	g.Go(func() error {
		decisions, err := p.store.ListDecisions(ctx, projectID)
		if err != nil {
			p.degraded(ctx, "decisions", err)
			return nil
		}
		result.Decisions = decisions
		return nil
	})

	g.Go(func() error {
		mods, err := p.store.ListCodeModules(ctx, projectID)
		if err != nil {
			p.degraded(ctx, "code_modules", err)
			return nil
		}
		result.CodeModules = ScoreCodeModules(mods, keywords, role, now, opts.MaxCodeModules)
		return nil
	})

	g.Go(func() error {
		contracts, err := p.store.ListContracts(ctx, projectID)
		if err != nil {
			p.degraded(ctx, "contracts", err)
			return nil
		}
		result.Contracts = ScoreContracts(contracts, keywords, role)
		return nil
	})

	g.Go(func() error {
		phers, err := p.pheromones.GetContextPheromones(ctx, role, freeText, string(tier), opts.MaxPheromones)
		if err != nil {
			p.degraded(ctx, "pheromones", err)
			return nil
		}
		result.Pheromones = phers
		return nil
	})

	g.Go(func() error {
		deps, err := p.store.GetTaskDependencies(ctx, task.ID)
		if err != nil {
			p.degraded(ctx, "dependencies", err)
			return nil
		}
		result.Dependencies = deps
		return nil
	})

	g.Go(func() error {
		if p.workspace == nil {
			return nil
		}
		files, err := p.workspace.ListWorkspaceFiles(ctx, task.ID)
		if err != nil {
			p.degraded(ctx, "workspace_files", err)
			return nil
		}
		result.WorkspaceFiles = ScoreWorkspaceFiles(files, keywords, role, now,
			opts.IncludeTests, opts.IncludeDocs, opts.MaxWorkspaceFiles)
		return nil
	})

	g.Go(func() error {
		if p.snippets == nil {
			return nil
		}
		snips, err := p.snippets.ListContractSnippets(ctx, projectID)
		if err != nil {
			p.degraded(ctx, "contract_snippets", err)
			return nil
		}
		result.ContractSnippets = ScoreSnippets(snips, keywords, opts.MaxContractSnippets)
		return nil
	})

	g.Go(func() error {
		similar, err := p.store.FindSimilarTasks(ctx, task.ID, keywords)
		if err != nil {
			p.degraded(ctx, "similar_tasks", err)
			return nil
		}
		if opts.MaxSimilarTasks > 0 && len(similar) > opts.MaxSimilarTasks {
			similar = similar[:opts.MaxSimilarTasks]
		}
		result.SimilarTasks = similar
		return nil
	})

	// Sub-fetches swallow their own errors; Wait only synchronizes.
	_ = g.Wait()

	return result
}

func (p *Primer) degraded(ctx context.Context, field string, err error) {
	p.logger.Warn(ctx, "context priming sub-fetch degraded to empty",
		zap.String("field", field), zap.Error(err))
}
