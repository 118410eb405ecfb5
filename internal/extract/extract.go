// Package extract builds the prompts sent to extraction providers and
// parses their JSON replies into the shapes the pipeline consumes.
package extract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/potensiadev/reconciler/internal/model"
)

// SystemPrompt instructs the provider to return the full-record payload.
const SystemPrompt = `당신은 이력서 정보 추출 시스템입니다. 주어진 이력서 텍스트에서 요청된 필드를 추출하여 JSON으로만 응답하세요.

응답 형식:
{
  "data": {"필드명": 값, ...},
  "confidence": {"필드명": 0.0~1.0, ...},
  "evidence": {"필드명": "원문에서 그대로 인용한 근거 문장", ...}
}

규칙:
- 원문에 없는 정보는 null로 두고 추측하지 마세요.
- evidence는 반드시 원문에 있는 문장을 그대로 인용하세요.
- 날짜는 YYYY-MM 형식을 사용하세요.`

// UserPrompt renders the field list and the document for one extraction
// call.
func UserPrompt(registry *model.FieldRegistry, sourceText string) string {
	var b strings.Builder
	b.WriteString("추출할 필드:\n")
	for _, f := range registry.Fields {
		fmt.Fprintf(&b, "- %s (%s)\n", f.Key, f.Kind)
	}
	b.WriteString("\n이력서 원문:\n")
	b.WriteString(sourceText)
	return b.String()
}

// Payload is the JSON shape every provider is asked to return.
type Payload struct {
	Data       map[string]any     `json:"data"`
	Confidence map[string]float64 `json:"confidence"`
	Evidence   map[string]string  `json:"evidence"`
}

// ParsePayload parses a provider reply, tolerating markdown fences and
// prose around the JSON object.
func ParsePayload(text string) (*Payload, error) {
	cleaned := cleanJSON(text)

	var p Payload
	if err := json.Unmarshal([]byte(cleaned), &p); err != nil {
		return nil, eris.Wrap(err, "extract: parse payload")
	}
	if p.Data == nil {
		return nil, eris.New("extract: payload missing data object")
	}
	if p.Confidence == nil {
		p.Confidence = make(map[string]float64)
	}
	if p.Evidence == nil {
		p.Evidence = make(map[string]string)
	}
	return &p, nil
}

// ParseFieldValue parses a single-field gap-fill reply according to the
// field's kind. Scalar fields accept bare text; list fields require JSON.
func ParseFieldValue(text string, spec *model.FieldSpec) (any, error) {
	cleaned := strings.TrimSpace(cleanJSON(text))
	if cleaned == "" || strings.EqualFold(cleaned, "null") {
		return nil, eris.Errorf("extract: empty reply for %s", spec.Key)
	}

	switch spec.Kind {
	case model.KindNumber:
		trimmed := strings.Trim(cleaned, `"`)
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "extract: parse number for %s", spec.Key)
		}
		return f, nil
	case model.KindStringList:
		var list []string
		if err := json.Unmarshal([]byte(cleaned), &list); err != nil {
			return nil, eris.Wrapf(err, "extract: parse string list for %s", spec.Key)
		}
		return toAnySlice(list), nil
	case model.KindRecordList:
		var list []map[string]any
		if err := json.Unmarshal([]byte(cleaned), &list); err != nil {
			return nil, eris.Wrapf(err, "extract: parse record list for %s", spec.Key)
		}
		out := make([]any, len(list))
		for i, m := range list {
			out[i] = m
		}
		return out, nil
	default:
		var s string
		if err := json.Unmarshal([]byte(cleaned), &s); err == nil {
			return s, nil
		}
		return strings.Trim(cleaned, `"`), nil
	}
}

// cleanJSON strips markdown fences and surrounding prose, keeping the
// outermost JSON value.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	trimmed := strings.TrimSpace(text)
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(trimmed, pair[0])
		end := strings.LastIndex(trimmed, pair[1])
		if start >= 0 && end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func toAnySlice(list []string) []any {
	out := make([]any, len(list))
	for i, s := range list {
		out[i] = s
	}
	return out
}
