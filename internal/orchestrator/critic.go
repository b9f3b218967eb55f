package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/swarmd/internal/llm"
	"github.com/fyrsmithlabs/swarmd/internal/store"
	"github.com/fyrsmithlabs/swarmd/internal/workflow"
)

// Critic classifies the severity of issues in a completed phase artifact.
type Critic interface {
	Review(ctx context.Context, task store.Task, step workflow.Step, transcript string) (workflow.Critique, error)
}

// CriticFunc adapts a function to the Critic interface.
type CriticFunc func(ctx context.Context, task store.Task, step workflow.Step, transcript string) (workflow.Critique, error)

func (f CriticFunc) Review(ctx context.Context, task store.Task, step workflow.Step, transcript string) (workflow.Critique, error) {
	return f(ctx, task, step, transcript)
}

// LLMCritic asks the model to classify the artifact severity.
type LLMCritic struct {
	client llm.Client
	opts   llm.Options
}

// NewLLMCritic creates a model-backed critic.
func NewLLMCritic(client llm.Client, opts llm.Options) *LLMCritic {
	return &LLMCritic{client: client, opts: opts}
}

// Review sends the transcript for classification. The reply's first line
// must start with one of low, medium, high or critical; anything else
// defaults to low.
func (c *LLMCritic) Review(ctx context.Context, task store.Task, step workflow.Step, transcript string) (workflow.Critique, error) {
	var b strings.Builder
	b.WriteString("Review the worker output below and classify the severity of any problems ")
	b.WriteString("as exactly one of: low, medium, high, critical. ")
	b.WriteString("Reply with the severity on the first line, then a one-paragraph summary.\n\n")
	fmt.Fprintf(&b, "Task: %s\nPhase: %s\n\n", task.Title, step)
	b.WriteString(transcript)

	reply, err := c.client.SendMessage(ctx, b.String(), c.opts)
	if err != nil {
		return workflow.Critique{}, err
	}
	return parseCritique(reply.Content), nil
}

func parseCritique(content string) workflow.Critique {
	trimmed := strings.TrimSpace(content)
	first := trimmed
	rest := ""
	if i := strings.IndexByte(trimmed, '\n'); i >= 0 {
		first = trimmed[:i]
		rest = strings.TrimSpace(trimmed[i+1:])
	}

	severity := workflow.SeverityLow
	switch {
	case strings.HasPrefix(strings.ToLower(first), "critical"):
		severity = workflow.SeverityCritical
	case strings.HasPrefix(strings.ToLower(first), "high"):
		severity = workflow.SeverityHigh
	case strings.HasPrefix(strings.ToLower(first), "medium"):
		severity = workflow.SeverityMedium
	}
	if rest == "" {
		rest = first
	}
	return workflow.Critique{Severity: severity, Summary: rest}
}
