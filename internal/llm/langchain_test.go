package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

// fakeModel is a canned langchaingo model that records what it was sent.
type fakeModel struct {
	content string
	info    map[string]any
	got     []llms.MessageContent
}

func (f *fakeModel) GenerateContent(_ context.Context, msgs []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.got = msgs
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{
		{Content: f.content, GenerationInfo: f.info},
	}}, nil
}

func (f *fakeModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return f.content, nil
}

func TestLangChain_UsesProviderTokenCounts(t *testing.T) {
	c := NewLangChain(&fakeModel{content: "done", info: map[string]any{"TotalTokens": 42}}, Unbounded)

	reply, err := c.SendMessage(context.Background(), "build it", Options{})
	require.NoError(t, err)
	assert.Equal(t, "done", reply.Content)
	assert.Equal(t, 42, reply.TokenUsage)
	assert.Equal(t, 42, c.GetTokenUsage())
}

func TestLangChain_SendsSingleHumanMessage(t *testing.T) {
	m := &fakeModel{content: "done"}
	c := NewLangChain(m, Unbounded)

	_, err := c.SendMessage(context.Background(), "build it", Options{})
	require.NoError(t, err)

	require.Len(t, m.got, 1)
	assert.Equal(t, schema.ChatMessageTypeHuman, m.got[0].Role)
	require.Len(t, m.got[0].Parts, 1)
	assert.Equal(t, llms.TextContent{Text: "build it"}, m.got[0].Parts[0])
}

func TestLangChain_SumsPromptAndCompletionTokens(t *testing.T) {
	c := NewLangChain(&fakeModel{content: "done", info: map[string]any{
		"PromptTokens": 10, "CompletionTokens": 5,
	}}, Unbounded)

	reply, err := c.SendMessage(context.Background(), "build it", Options{})
	require.NoError(t, err)
	assert.Equal(t, 15, reply.TokenUsage)
}

func TestLangChain_EstimatesWhenProviderReportsNothing(t *testing.T) {
	c := NewLangChain(&fakeModel{content: "12345678"}, Unbounded)

	reply, err := c.SendMessage(context.Background(), "abcd", Options{})
	require.NoError(t, err)
	// 4 chars prompt + 8 chars completion at 4 chars/token.
	assert.Equal(t, 3, reply.TokenUsage)
}

func TestLangChain_AccumulatesAcrossCalls(t *testing.T) {
	c := NewLangChain(&fakeModel{content: "x", info: map[string]any{"TotalTokens": 7}}, 20)

	for i := 0; i < 3; i++ {
		_, err := c.SendMessage(context.Background(), "p", Options{})
		require.NoError(t, err)
	}
	assert.Equal(t, 21, c.GetTokenUsage())
	assert.True(t, OverBudget(c))
}

func TestOverBudget_UnboundedNeverTrips(t *testing.T) {
	s := NewScripted(ScriptedReply{Content: "x", TokenUsage: 1 << 30})
	_, err := s.SendMessage(context.Background(), "p", Options{})
	require.NoError(t, err)
	assert.False(t, OverBudget(s))

	s.Budget = 100
	assert.True(t, OverBudget(s))
}
