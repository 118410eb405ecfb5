package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potensiadev/reconciler/internal/model"
)

const sourceWithContacts = `
김철수
연락처: 010-1234-5678
이메일: kim@example.com
경력: 삼성전자 (2018-2021)
기술: Go, Python
학력: 서울대학교 컴퓨터공학 학사
`

const sourceWithoutContacts = `
김철수
경력: 삼성전자 (2018-2021)
기술: Go, Python
`

func confidentRecord() (map[string]any, map[string]float64) {
	record := map[string]any{
		"name":            "김철수",
		"phone":           "010-1234-5678",
		"email":           "kim@example.com",
		"careers":         []any{map[string]any{"company": "삼성전자"}},
		"educations":      []any{map[string]any{"school": "서울대학교"}},
		"skills":          []any{"Go", "Python"},
		"exp_years":       5.0,
		"current_company": "삼성전자",
		"birth_year":      1990,
		"address":         "서울",
		"summary":         "개발자",
	}
	confidence := make(map[string]float64, len(record))
	for k := range record {
		confidence[k] = 0.9
	}
	return record, confidence
}

func TestCalculate_FullConfidentRecord(t *testing.T) {
	calc := NewCalculator(model.DefaultRegistry())
	record, confidence := confidentRecord()

	report := calc.Calculate(record, confidence, nil, sourceWithContacts)
	assert.Equal(t, 1.0, report.Score)
	assert.Equal(t, 1.0, report.CriticalScore)
	assert.Equal(t, report.TotalWeight, report.AchievedWeight)
	assert.Empty(t, report.Candidates)
}

func TestCalculate_WeightConservation(t *testing.T) {
	registry := model.DefaultRegistry()
	calc := NewCalculator(registry)

	// Weight sum must match the registry total no matter how sparse the
	// record is.
	for _, record := range []map[string]any{
		{},
		{"name": "김철수"},
		func() map[string]any { r, _ := confidentRecord(); return r }(),
	} {
		report := calc.Calculate(record, nil, nil, sourceWithContacts)
		var sum float64
		for _, fc := range report.Fields {
			sum += fc.Weight
		}
		assert.InDelta(t, registry.TotalWeight(), sum, 1e-9)
		assert.InDelta(t, registry.TotalWeight(), report.TotalWeight, 1e-9)
	}
}

func TestCalculate_LowConfidenceNotAchieved(t *testing.T) {
	calc := NewCalculator(model.DefaultRegistry())
	record, confidence := confidentRecord()
	confidence["careers"] = 0.4

	report := calc.Calculate(record, confidence, nil, sourceWithContacts)
	fc := report.Fields["careers"]
	assert.True(t, fc.HasValue)
	assert.Less(t, report.Score, 1.0)
	// Present but low-confidence still counts toward total weight.
	assert.InDelta(t, report.TotalWeight-2.0, report.AchievedWeight, 1e-9)
	assert.Contains(t, report.Candidates, "careers")
}

func TestClassifyMissing_NotFoundInSource(t *testing.T) {
	calc := NewCalculator(model.DefaultRegistry())
	record, confidence := confidentRecord()
	delete(record, "phone")

	report := calc.Calculate(record, confidence, nil, sourceWithoutContacts)
	assert.Equal(t, model.MissingNotFoundInSource, report.Fields["phone"].MissingReason)
}

func TestClassifyMissing_PhonePatternCountsAsPresent(t *testing.T) {
	calc := NewCalculator(model.DefaultRegistry())
	record, confidence := confidentRecord()
	delete(record, "phone")

	// No phone keyword, but a bare number appears in the source.
	source := "김철수 010 9876 5432 경력 삼성전자"
	report := calc.Calculate(record, confidence, nil, source)
	assert.Equal(t, model.MissingParserError, report.Fields["phone"].MissingReason)
}

func TestClassifyMissing_ExtractionFailedVsParserError(t *testing.T) {
	calc := NewCalculator(model.DefaultRegistry())
	record, confidence := confidentRecord()
	delete(record, "email")

	withEvidence := calc.Calculate(record, confidence, map[string]string{"email": "이메일: kim@example.com"}, sourceWithContacts)
	assert.Equal(t, model.MissingExtractionFailed, withEvidence.Fields["email"].MissingReason)

	withoutEvidence := calc.Calculate(record, confidence, nil, sourceWithContacts)
	assert.Equal(t, model.MissingParserError, withoutEvidence.Fields["email"].MissingReason)
}

func TestSelectCandidates_OrderAndCap(t *testing.T) {
	calc := NewCalculator(model.DefaultRegistry())

	report := calc.Calculate(map[string]any{}, nil, nil, sourceWithoutContacts)
	require.Len(t, report.Candidates, 5)
	// Fixed walk order, capped at five.
	assert.Equal(t, []string{"phone", "email", "skills", "careers", "educations"}, report.Candidates)
}

func TestSelectCandidates_CriticalAppended(t *testing.T) {
	calc := NewCalculator(model.DefaultRegistry())
	record, confidence := confidentRecord()
	delete(record, "name")
	delete(record, "phone")

	report := calc.Calculate(record, confidence, nil, sourceWithContacts)
	// Both missing criticals appear even though name sits last in the walk.
	assert.Contains(t, report.Candidates, "phone")
	assert.Contains(t, report.Candidates, "name")
	assert.LessOrEqual(t, len(report.Candidates), 5)
}

func TestCalculate_MissingReasonEmptyWhenPresent(t *testing.T) {
	calc := NewCalculator(model.DefaultRegistry())
	record, confidence := confidentRecord()

	report := calc.Calculate(record, confidence, nil, sourceWithContacts)
	for key, fc := range report.Fields {
		assert.Equal(t, model.MissingNone, fc.MissingReason, "field %s", key)
	}
}
