package llm

import (
	"context"
	"errors"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

// LangChain adapts a langchaingo model to the Client contract and tracks
// cumulative token usage against an optional budget.
type LangChain struct {
	model  llms.Model
	budget int

	mu   sync.Mutex
	used int
}

// NewLangChain wraps a langchaingo model. A budget of Unbounded disables the
// ceiling.
func NewLangChain(model llms.Model, budget int) *LangChain {
	return &LangChain{model: model, budget: budget}
}

// SendMessage sends a single-turn prompt and records its token usage.
func (c *LangChain) SendMessage(ctx context.Context, prompt string, opts Options) (*Reply, error) {
	var callOpts []llms.CallOption
	if opts.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}

	resp, err := c.model.GenerateContent(ctx,
		[]llms.MessageContent{llms.TextParts(schema.ChatMessageTypeHuman, prompt)},
		callOpts...)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("llm: model returned no choices")
	}
	choice := resp.Choices[0]

	usage := usageFrom(choice.GenerationInfo)
	if usage == 0 {
		usage = estimateTokens(prompt) + estimateTokens(choice.Content)
	}

	c.mu.Lock()
	c.used += usage
	c.mu.Unlock()

	return &Reply{Content: choice.Content, TokenUsage: usage}, nil
}

// GetTokenUsage returns the cumulative token count across all calls.
func (c *LangChain) GetTokenUsage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// GetBudgetLimit returns the configured ceiling, Unbounded if none.
func (c *LangChain) GetBudgetLimit() int {
	return c.budget
}

// usageFrom extracts the total token count from provider generation info.
// Providers disagree on key names; zero means unknown.
func usageFrom(info map[string]any) int {
	if info == nil {
		return 0
	}
	if total := intValue(info["TotalTokens"]); total > 0 {
		return total
	}
	return intValue(info["PromptTokens"]) + intValue(info["CompletionTokens"])
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// estimateTokens approximates usage at four characters per token for
// providers that report nothing.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}
