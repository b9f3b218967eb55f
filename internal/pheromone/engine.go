// Package pheromone implements the relevance engine over stored pheromone
// signals: expiry-filtered strength ranking, context-aware retrieval with a
// bounded warning share, and the explicit decay sweep.
//
// Decay is pull-based. Reads filter expired entries at query time and the
// sweep is a callable operation for an external scheduler; there is no
// background timer.
package pheromone

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/swarmd/internal/logging"
	"github.com/fyrsmithlabs/swarmd/internal/roles"
	"github.com/fyrsmithlabs/swarmd/internal/store"
)

// warningShare caps warnings at 30% of a context-aware request, floor
// rounded, prioritizing guides.
const warningShare = 0.3

// Engine ranks and retrieves pheromone signals.
type Engine struct {
	store  store.Store
	logger *logging.Logger
}

// NewEngine creates a relevance engine over the given store.
func NewEngine(s store.Store, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{store: s, logger: logger.Named("pheromone")}
}

// Strongest returns non-expired pheromones of the given type ordered by
// strength descending.
func (e *Engine) Strongest(ctx context.Context, t store.PheromoneType, limit int) ([]store.Pheromone, error) {
	return e.store.ListPheromonesByType(ctx, t, limit)
}

// ContextPheromones is the two-bucket result of context-aware retrieval.
type ContextPheromones struct {
	Guides   []store.Pheromone
	Warnings []store.Pheromone
}

// Total returns the combined result size.
func (c ContextPheromones) Total() int {
	return len(c.Guides) + len(c.Warnings)
}

// GetContextPheromones returns guides and warnings relevant to the role,
// free-text context and complexity tier. Warnings are capped at 30% of count;
// guides fill the remainder. If the relevant result is short of count, the
// engine backfills from legacy role-tagged guide pheromones, excluding ids
// already included, until satisfied or exhausted.
func (e *Engine) GetContextPheromones(ctx context.Context, role roles.Role, freeText string, tier string, count int) (ContextPheromones, error) {
	var result ContextPheromones
	if count <= 0 {
		return result, nil
	}

	guides, err := e.store.ListPheromonesByType(ctx, store.PheromoneGuide, 0)
	if err != nil {
		return result, err
	}
	warns, err := e.store.ListPheromonesByType(ctx, store.PheromoneWarn, 0)
	if err != nil {
		return result, err
	}

	relevantGuides := filterRelevant(guides, role, freeText, tier)
	relevantWarns := filterRelevant(warns, role, freeText, tier)

	maxWarnings := int(float64(count) * warningShare)
	if len(relevantWarns) > maxWarnings {
		relevantWarns = relevantWarns[:maxWarnings]
	}
	maxGuides := count - len(relevantWarns)
	if len(relevantGuides) > maxGuides {
		relevantGuides = relevantGuides[:maxGuides]
	}
	result.Guides = relevantGuides
	result.Warnings = relevantWarns

	if result.Total() < count {
		seen := make(map[string]bool, result.Total())
		for _, p := range result.Guides {
			seen[p.ID] = true
		}
		for _, p := range result.Warnings {
			seen[p.ID] = true
		}
		legacy, err := e.store.ListPheromonesByType(ctx, store.LegacyGuideType(role), 0)
		if err != nil {
			return result, err
		}
		for _, p := range legacy {
			if result.Total() >= count {
				break
			}
			if seen[p.ID] {
				continue
			}
			result.Guides = append(result.Guides, p)
			seen[p.ID] = true
		}
	}

	return result, nil
}

// filterRelevant keeps pheromones matching the role, context text or tier,
// preserving the store's strength-descending order.
func filterRelevant(ps []store.Pheromone, role roles.Role, freeText string, tier string) []store.Pheromone {
	text := strings.ToLower(freeText)
	var out []store.Pheromone
	for _, p := range ps {
		if relevant(p, role, text, tier) {
			out = append(out, p)
		}
	}
	return out
}

func relevant(p store.Pheromone, role roles.Role, loweredText string, tier string) bool {
	if r, ok := p.Metadata["role"]; ok && r != "" && r != string(role) {
		return false
	}
	if c, ok := p.Metadata["complexity"]; ok && c != "" && c == tier {
		return true
	}
	if p.Metadata["role"] == string(role) {
		return true
	}
	if loweredText == "" {
		return false
	}
	for _, tok := range strings.Fields(strings.ToLower(p.Context)) {
		if len(tok) > 2 && strings.Contains(loweredText, tok) {
			return true
		}
	}
	return false
}

// Sweep deletes every pheromone past expiry and returns the deleted count.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	deleted, err := e.store.SweepExpiredPheromones(ctx)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		e.logger.Info(ctx, "swept expired pheromones", zap.Int("deleted", deleted))
	}
	return deleted, nil
}

// Deposit creates a pheromone signal.
func (e *Engine) Deposit(ctx context.Context, p store.Pheromone) (*store.Pheromone, error) {
	return e.store.CreatePheromone(ctx, p)
}

// EmitSuccess deposits a success signal for a completed workflow step.
func (e *Engine) EmitSuccess(ctx context.Context, taskID, step string, ttl time.Duration) error {
	_, err := e.store.CreatePheromone(ctx, store.Pheromone{
		Type:     store.PheromoneSuccess,
		Strength: 0.6,
		Context:  "step " + step + " completed for task " + taskID,
		Metadata: map[string]string{"task_id": taskID, "step": step},
		ExpiresAt: time.Now().Add(ttl),
	})
	return err
}

// EmitPause deposits a pause signal tagged with the step that triggered it.
func (e *Engine) EmitPause(ctx context.Context, taskID, step, reason string, ttl time.Duration) error {
	_, err := e.store.CreatePheromone(ctx, store.Pheromone{
		Type:     store.PheromonePause,
		Strength: 0.9,
		Context:  reason,
		Metadata: map[string]string{"task_id": taskID, "step": step},
		ExpiresAt: time.Now().Add(ttl),
	})
	return err
}

// EmitWarn deposits a warning signal tagged with a failure category.
func (e *Engine) EmitWarn(ctx context.Context, category, detail string, strength float64, ttl time.Duration) error {
	_, err := e.store.CreatePheromone(ctx, store.Pheromone{
		Type:     store.PheromoneWarn,
		Strength: strength,
		Context:  detail,
		Metadata: map[string]string{"category": category},
		ExpiresAt: time.Now().Add(ttl),
	})
	return err
}
