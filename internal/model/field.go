package model

import (
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// FieldPriority ranks how much a field matters to record quality.
type FieldPriority string

const (
	PriorityCritical  FieldPriority = "critical"
	PriorityImportant FieldPriority = "important"
	PriorityOptional  FieldPriority = "optional"
)

// FieldKind is the closed set of value shapes a known field can take.
// Merge and validation dispatch on the field's kind instead of inspecting
// runtime types.
type FieldKind string

const (
	KindString     FieldKind = "string"
	KindNumber     FieldKind = "number"
	KindStringList FieldKind = "string_list"
	KindRecordList FieldKind = "record_list"
)

// FieldSpec describes one expected resume field: its shape, weight in
// coverage/quality scoring, keyword set for missing-reason search, and the
// prompt template used for targeted re-extraction. An empty GapFillPrompt
// means the field cannot be gap-filled.
type FieldSpec struct {
	Key           string        `yaml:"key"`
	Kind          FieldKind     `yaml:"kind"`
	Priority      FieldPriority `yaml:"priority"`
	Weight        float64       `yaml:"weight"`
	Required      bool          `yaml:"required"`
	CrossValidate bool          `yaml:"cross_validate"`
	Keywords      []string      `yaml:"keywords,omitempty"`
	GapFillPrompt string        `yaml:"gap_fill_prompt,omitempty"`
}

// FieldRegistry is an indexed collection of field specs.
type FieldRegistry struct {
	Fields   []FieldSpec
	byKey    map[string]*FieldSpec
	critical []*FieldSpec
	required []*FieldSpec
}

// NewFieldRegistry builds the lookup indexes over the given specs.
func NewFieldRegistry(fields []FieldSpec) *FieldRegistry {
	r := &FieldRegistry{
		Fields: fields,
		byKey:  make(map[string]*FieldSpec, len(fields)),
	}
	for i := range r.Fields {
		f := &r.Fields[i]
		r.byKey[f.Key] = f
		if f.Priority == PriorityCritical {
			r.critical = append(r.critical, f)
		}
		if f.Required {
			r.required = append(r.required, f)
		}
	}
	return r
}

// ByKey returns the spec for the given field key, or nil if unknown.
func (r *FieldRegistry) ByKey(key string) *FieldSpec {
	return r.byKey[key]
}

// Critical returns all critical-priority field specs.
func (r *FieldRegistry) Critical() []*FieldSpec {
	return r.critical
}

// Required returns all required field specs.
func (r *FieldRegistry) Required() []*FieldSpec {
	return r.required
}

// TotalWeight sums the weights of all known fields.
func (r *FieldRegistry) TotalWeight() float64 {
	var total float64
	for _, f := range r.Fields {
		total += f.Weight
	}
	return total
}

// gapFillOrder is the fixed priority walk for choosing gap-fill candidates.
var gapFillOrder = []string{
	"phone", "email", "skills", "careers",
	"educations", "current_company", "exp_years", "name",
}

// GapFillOrder returns the field keys in gap-fill candidate priority order,
// followed by any registry fields not named in the fixed walk.
func (r *FieldRegistry) GapFillOrder() []string {
	seen := make(map[string]bool, len(gapFillOrder))
	var out []string
	for _, key := range gapFillOrder {
		if r.byKey[key] != nil {
			out = append(out, key)
			seen[key] = true
		}
	}
	for _, f := range r.Fields {
		if !seen[f.Key] {
			out = append(out, f.Key)
		}
	}
	return out
}

// DefaultRegistry returns the built-in weighted field table for Korean
// resume records.
func DefaultRegistry() *FieldRegistry {
	return NewFieldRegistry([]FieldSpec{
		{
			Key: "name", Kind: KindString, Priority: PriorityCritical, Weight: 1.5,
			Required: true, CrossValidate: true,
			Keywords:      []string{"이름", "성명", "성함", "name"},
			GapFillPrompt: "이력서에서 지원자의 이름만 추출하세요. 이름 외 다른 텍스트는 포함하지 마세요.",
		},
		{
			Key: "phone", Kind: KindString, Priority: PriorityCritical, Weight: 1.5,
			Required: true, CrossValidate: true,
			Keywords:      []string{"연락처", "전화", "휴대폰", "핸드폰", "phone", "mobile", "tel"},
			GapFillPrompt: "이력서에서 지원자의 휴대폰 번호만 추출하세요. 형식: 010-XXXX-XXXX",
		},
		{
			Key: "email", Kind: KindString, Priority: PriorityCritical, Weight: 1.5,
			Required: true, CrossValidate: true,
			Keywords:      []string{"이메일", "메일", "email", "e-mail"},
			GapFillPrompt: "이력서에서 지원자의 이메일 주소만 추출하세요.",
		},
		{
			Key: "careers", Kind: KindRecordList, Priority: PriorityCritical, Weight: 2.0,
			CrossValidate: false,
			Keywords:      []string{"경력", "근무", "재직", "회사", "career", "experience", "work"},
			GapFillPrompt: "이력서에서 경력 사항을 JSON 배열로 추출하세요. 각 항목: company, title, start_date(YYYY-MM), end_date(YYYY-MM), is_current.",
		},
		{
			Key: "educations", Kind: KindRecordList, Priority: PriorityImportant, Weight: 1.5,
			Keywords:      []string{"학력", "대학", "학교", "졸업", "education", "university"},
			GapFillPrompt: "이력서에서 학력 사항을 JSON 배열로 추출하세요. 각 항목: school, major, degree, graduation_year.",
		},
		{
			Key: "skills", Kind: KindStringList, Priority: PriorityImportant, Weight: 1.0,
			Keywords:      []string{"기술", "스택", "스킬", "보유 기술", "skill", "stack", "tech"},
			GapFillPrompt: "이력서에서 보유 기술 목록을 JSON 문자열 배열로 추출하세요.",
		},
		{
			Key: "exp_years", Kind: KindNumber, Priority: PriorityImportant, Weight: 1.0,
			CrossValidate: true,
			Keywords:      []string{"경력", "연차", "년차", "years", "experience"},
			GapFillPrompt: "이력서에서 총 경력 연수를 숫자만으로 추출하세요.",
		},
		{
			Key: "current_company", Kind: KindString, Priority: PriorityImportant, Weight: 1.0,
			CrossValidate: true,
			Keywords:      []string{"현재", "재직중", "재직 중", "current", "present"},
			GapFillPrompt: "이력서에서 현재 재직 중인 회사명만 추출하세요.",
		},
		{
			Key: "birth_year", Kind: KindNumber, Priority: PriorityOptional, Weight: 0.5,
			CrossValidate: true,
			Keywords:      []string{"생년", "출생", "birth", "born"},
		},
		{
			Key: "address", Kind: KindString, Priority: PriorityOptional, Weight: 0.5,
			Keywords: []string{"주소", "거주지", "address"},
		},
		{
			Key: "summary", Kind: KindString, Priority: PriorityOptional, Weight: 0.5,
			Keywords: []string{"소개", "요약", "자기소개", "summary", "about"},
		},
	})
}

// registryOverride is the YAML shape for per-deployment registry tuning.
type registryOverride struct {
	Fields []FieldSpec `yaml:"fields"`
}

// RegistryFromYAML applies per-field overrides from a YAML document to a
// copy of the default registry. Overrides replace the spec for any field
// key they name and append unknown keys as new fields.
func RegistryFromYAML(data []byte) (*FieldRegistry, error) {
	var ov registryOverride
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return nil, eris.Wrap(err, "model: parse field registry yaml")
	}

	base := DefaultRegistry()
	merged := make([]FieldSpec, len(base.Fields))
	copy(merged, base.Fields)

	index := make(map[string]int, len(merged))
	for i, f := range merged {
		index[f.Key] = i
	}
	for _, f := range ov.Fields {
		if i, ok := index[f.Key]; ok {
			merged[i] = f
		} else {
			merged = append(merged, f)
		}
	}
	return NewFieldRegistry(merged), nil
}
