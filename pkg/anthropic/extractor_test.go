package anthropic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potensiadev/reconciler/internal/gapfill"
	"github.com/potensiadev/reconciler/internal/model"
	"github.com/potensiadev/reconciler/internal/resilience"
)

type mockClient struct {
	reply string
	err   error
	reqs  []MessageRequest
}

func (m *mockClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	m.reqs = append(m.reqs, req)
	if m.err != nil {
		return nil, m.err
	}
	return &MessageResponse{
		Content: []ContentBlock{{Type: "text", Text: m.reply}},
		Usage:   TokenUsage{InputTokens: 900, OutputTokens: 60},
	}, nil
}

func newTestExtractor(client Client) *Extractor {
	e := NewExtractor(client, "claude-haiku-4-5-20251001", model.DefaultRegistry())
	e.retry = resilience.RetryConfig{MaxAttempts: 1}
	return e
}

func TestExtract_Success(t *testing.T) {
	mock := &mockClient{
		reply: "```json\n{\"data\":{\"name\":\"김철수\"},\"confidence\":{\"name\":0.92},\"evidence\":{\"name\":\"김철수\"}}\n```",
	}
	e := newTestExtractor(mock)

	result, err := e.Extract(context.Background(), "이력서 본문")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "claude", result.Provider)
	assert.Equal(t, "김철수", result.Data["name"])
	assert.Equal(t, 900, result.InputTokens)
	assert.Equal(t, 60, result.OutputTokens)

	require.Len(t, mock.reqs, 1)
	req := mock.reqs[0]
	require.Len(t, req.System, 1)
	// The shared system prompt carries a cache breakpoint.
	require.NotNil(t, req.System[0].CacheControl)
	assert.Equal(t, "5m", req.System[0].CacheControl.TTL)
}

func TestExtract_TransportError(t *testing.T) {
	e := newTestExtractor(&mockClient{err: errors.New("overloaded")})

	_, err := e.Extract(context.Background(), "이력서 본문")
	assert.Error(t, err)
}

func TestExtract_MalformedReplyIsSoftFailure(t *testing.T) {
	e := newTestExtractor(&mockClient{reply: "추출에 실패했습니다."})

	result, err := e.Extract(context.Background(), "이력서 본문")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, 900, result.InputTokens)
}

func TestExtractField_Success(t *testing.T) {
	mock := &mockClient{reply: `["Go", "Kubernetes"]`}
	e := newTestExtractor(mock)
	spec := model.DefaultRegistry().ByKey("skills")

	res := e.ExtractField(context.Background(), spec.GapFillPrompt, "이력서 본문", spec)
	assert.Equal(t, gapfill.OutcomeOK, res.Outcome)
	assert.Equal(t, []any{"Go", "Kubernetes"}, res.Value)
	assert.Equal(t, 900, res.InputTokens)
}

func TestExtractField_InvalidReply(t *testing.T) {
	e := newTestExtractor(&mockClient{reply: "null"})
	spec := model.DefaultRegistry().ByKey("name")

	res := e.ExtractField(context.Background(), spec.GapFillPrompt, "이력서 본문", spec)
	assert.Equal(t, gapfill.OutcomeInvalid, res.Outcome)
}

func TestExtractField_TransportError(t *testing.T) {
	e := newTestExtractor(&mockClient{err: errors.New("connection reset by peer")})
	spec := model.DefaultRegistry().ByKey("phone")

	res := e.ExtractField(context.Background(), spec.GapFillPrompt, "이력서 본문", spec)
	assert.Equal(t, gapfill.OutcomeTransportError, res.Outcome)
}

// cachedClient reports prompt-cache token usage alongside the reply.
type cachedClient struct {
	reply string
}

func (c *cachedClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	return &MessageResponse{
		Content: []ContentBlock{{Type: "text", Text: c.reply}},
		Usage: TokenUsage{
			InputTokens:              40,
			OutputTokens:             12,
			CacheCreationInputTokens: 800,
			CacheReadInputTokens:     1600,
		},
	}, nil
}

func TestExtractField_SurfacesCacheTokens(t *testing.T) {
	e := newTestExtractor(&cachedClient{reply: "010-1234-5678"})
	spec := model.DefaultRegistry().ByKey("phone")

	res := e.ExtractField(context.Background(), spec.GapFillPrompt, "이력서 본문", spec)
	require.Equal(t, gapfill.OutcomeOK, res.Outcome)
	assert.Equal(t, 40, res.InputTokens)
	assert.Equal(t, 800, res.CacheWriteTokens)
	assert.Equal(t, 1600, res.CacheReadTokens)
}

func TestResponseText(t *testing.T) {
	resp := &MessageResponse{Content: []ContentBlock{
		{Type: "text", Text: "앞"},
		{Type: "tool_use", Text: "ignored"},
		{Type: "text", Text: "뒤"},
	}}
	assert.Equal(t, "앞뒤", resp.Text())
}
