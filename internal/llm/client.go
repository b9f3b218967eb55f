// Package llm defines the language-model collaborator contract the
// orchestration core consumes, with a langchaingo-backed implementation and
// a scripted fake for tests.
package llm

import "context"

// Unbounded marks a client without a token budget ceiling.
const Unbounded = 0

// Options tunes a single model call.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Reply is the result of one model call.
type Reply struct {
	Content    string
	TokenUsage int
}

// Client is the model collaborator contract. GetTokenUsage reports the
// cumulative token count across all calls; GetBudgetLimit returns Unbounded
// when no ceiling is configured.
type Client interface {
	SendMessage(ctx context.Context, prompt string, opts Options) (*Reply, error)
	GetTokenUsage() int
	GetBudgetLimit() int
}

// OverBudget reports whether the client's cumulative usage has reached its
// budget ceiling.
func OverBudget(c Client) bool {
	limit := c.GetBudgetLimit()
	return limit != Unbounded && c.GetTokenUsage() >= limit
}
