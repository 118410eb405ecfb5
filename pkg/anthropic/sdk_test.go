package anthropic

import (
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSDKMessage(t *testing.T) {
	msg := &sdk.Message{
		ID:    "msg_123",
		Model: "claude-haiku-4-5-20251001",
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: "안녕하세요"},
		},
		StopReason: "end_turn",
		Usage: sdk.Usage{
			InputTokens:          100,
			OutputTokens:         50,
			CacheReadInputTokens: 80,
		},
	}

	resp := fromSDKMessage(msg)
	assert.Equal(t, "msg_123", resp.ID)
	assert.Equal(t, "claude-haiku-4-5-20251001", resp.Model)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "안녕하세요", resp.Content[0].Text)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, int64(100), resp.Usage.InputTokens)
	assert.Equal(t, int64(80), resp.Usage.CacheReadInputTokens)
}

func TestFromSDKMessage_EmptyContent(t *testing.T) {
	resp := fromSDKMessage(&sdk.Message{ID: "msg_empty"})
	assert.Empty(t, resp.Content)
	assert.Empty(t, resp.Text())
}

func TestMessageResponse_Text_ConcatenatesTextBlocks(t *testing.T) {
	resp := &MessageResponse{
		Content: []ContentBlock{
			{Type: "text", Text: `{"data":`},
			{Type: "tool_use", Text: "ignored"},
			{Type: "text", Text: `{}}`},
		},
	}
	assert.Equal(t, `{"data":{}}`, resp.Text())
}

func TestToSDKMessages_Roles(t *testing.T) {
	msgs := toSDKMessages([]Message{
		{Role: "user", Content: "question"},
		{Role: "assistant", Content: "answer"},
		{Role: "weird", Content: "fallback"},
	})
	require.Len(t, msgs, 3)
	assert.Equal(t, sdk.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, sdk.MessageParamRoleAssistant, msgs[1].Role)
	assert.Equal(t, sdk.MessageParamRoleUser, msgs[2].Role)
}

func TestToSDKSystemBlocks_NoCacheControl(t *testing.T) {
	blocks := toSDKSystemBlocks([]SystemBlock{{Text: "plain"}})
	require.Len(t, blocks, 1)
	assert.Equal(t, "plain", blocks[0].Text)
}

func TestToSDKSystemBlocks_WithCacheControl(t *testing.T) {
	blocks := toSDKSystemBlocks([]SystemBlock{
		{Text: "cached", CacheControl: &CacheControl{TTL: "5m"}},
	})
	require.Len(t, blocks, 1)
	assert.Equal(t, sdk.CacheControlEphemeralTTL("5m"), blocks[0].CacheControl.TTL)
}

func TestNewClient_ReturnsNonNil(t *testing.T) {
	assert.NotNil(t, NewClient("test-key"))
}
