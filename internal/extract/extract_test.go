package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potensiadev/reconciler/internal/model"
)

func TestParsePayload_Plain(t *testing.T) {
	raw := `{"data":{"name":"김철수","exp_years":5},"confidence":{"name":0.9},"evidence":{"name":"김철수"}}`

	p, err := ParsePayload(raw)
	require.NoError(t, err)
	assert.Equal(t, "김철수", p.Data["name"])
	assert.Equal(t, 5.0, p.Data["exp_years"])
	assert.Equal(t, 0.9, p.Confidence["name"])
	assert.Equal(t, "김철수", p.Evidence["name"])
}

func TestParsePayload_FencedWithProse(t *testing.T) {
	raw := "추출 결과입니다:\n```json\n{\"data\":{\"name\":\"김철수\"},\"confidence\":{},\"evidence\":{}}\n```\n이상입니다."

	p, err := ParsePayload(raw)
	require.NoError(t, err)
	assert.Equal(t, "김철수", p.Data["name"])
}

func TestParsePayload_MissingMapsInitialized(t *testing.T) {
	p, err := ParsePayload(`{"data":{"name":"김철수"}}`)
	require.NoError(t, err)
	assert.NotNil(t, p.Confidence)
	assert.NotNil(t, p.Evidence)
}

func TestParsePayload_Invalid(t *testing.T) {
	_, err := ParsePayload("no json here")
	assert.Error(t, err)

	_, err = ParsePayload(`{"confidence":{}}`)
	assert.Error(t, err)
}

func TestParseFieldValue(t *testing.T) {
	registry := model.DefaultRegistry()

	tests := []struct {
		name    string
		field   string
		raw     string
		want    any
		wantErr bool
	}{
		{name: "bare string", field: "name", raw: "김철수", want: "김철수"},
		{name: "quoted string", field: "phone", raw: `"010-1234-5678"`, want: "010-1234-5678"},
		{name: "number", field: "exp_years", raw: "5", want: 5.0},
		{name: "quoted number", field: "exp_years", raw: `"5.5"`, want: 5.5},
		{name: "bad number", field: "exp_years", raw: "약 오년", wantErr: true},
		{name: "string list", field: "skills", raw: `["Go","Python"]`, want: []any{"Go", "Python"}},
		{name: "fenced list", field: "skills", raw: "```json\n[\"Go\"]\n```", want: []any{"Go"}},
		{name: "bad list", field: "skills", raw: "Go, Python", wantErr: true},
		{
			name: "record list", field: "careers",
			raw:  `[{"company":"네이버","is_current":true}]`,
			want: []any{map[string]any{"company": "네이버", "is_current": true}},
		},
		{name: "null reply", field: "name", raw: "null", wantErr: true},
		{name: "empty reply", field: "name", raw: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := registry.ByKey(tt.field)
			require.NotNil(t, spec)
			got, err := ParseFieldValue(tt.raw, spec)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUserPrompt_ListsFieldsAndSource(t *testing.T) {
	prompt := UserPrompt(model.DefaultRegistry(), "이력서 본문")
	assert.Contains(t, prompt, "- phone (string)")
	assert.Contains(t, prompt, "- careers (record_list)")
	assert.Contains(t, prompt, "이력서 본문")
}
