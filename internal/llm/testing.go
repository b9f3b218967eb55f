package llm

import (
	"context"
	"sync"
)

// ScriptedReply is one canned response for the Scripted client.
type ScriptedReply struct {
	Content    string
	TokenUsage int
	Err        error
}

// Scripted is a Client returning canned replies in order, for tests. Once
// the script is exhausted it repeats the last reply.
type Scripted struct {
	Budget int

	mu      sync.Mutex
	script  []ScriptedReply
	cursor  int
	used    int
	Prompts []string
}

// NewScripted creates a scripted client with the given replies.
func NewScripted(replies ...ScriptedReply) *Scripted {
	return &Scripted{script: replies}
}

func (s *Scripted) SendMessage(_ context.Context, prompt string, _ Options) (*Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Prompts = append(s.Prompts, prompt)

	if len(s.script) == 0 {
		s.used += estimateTokens(prompt)
		return &Reply{Content: "ok", TokenUsage: estimateTokens(prompt)}, nil
	}
	r := s.script[s.cursor]
	if s.cursor < len(s.script)-1 {
		s.cursor++
	}
	if r.Err != nil {
		return nil, r.Err
	}
	s.used += r.TokenUsage
	return &Reply{Content: r.Content, TokenUsage: r.TokenUsage}, nil
}

func (s *Scripted) GetTokenUsage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

func (s *Scripted) GetBudgetLimit() int { return s.Budget }
