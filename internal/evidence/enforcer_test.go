package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potensiadev/reconciler/internal/model"
)

const sourceText = `
김철수
연락처: 010-1234-5678 | 이메일: kim.chulsoo@example.com

경력
삼성전자 선임 연구원 (2018.03 ~ 2021.12)
네이버 백엔드 엔지니어 (2022.01 ~ 현재)

기술: Go, Python, Kubernetes
`

func newTestEnforcer() *Enforcer {
	return NewEnforcer(model.DefaultRegistry(), 0)
}

func TestCheckEvidence_ExactSubstringScoresOne(t *testing.T) {
	e := newTestEnforcer()

	check := e.CheckEvidence("phone", "010-1234-5678", "연락처: 010-1234-5678", sourceText)
	assert.True(t, check.Present)
	assert.True(t, check.Valid)
	assert.Equal(t, 1.0, check.Similarity)
	assert.Equal(t, 0.0, check.Penalty)
}

func TestCheckEvidence_SubstringAnyLength(t *testing.T) {
	e := newTestEnforcer()

	// Even a long excerpt scores 1.0 when it is a normalized substring.
	check := e.CheckEvidence("careers", []any{"x"}, "삼성전자 선임 연구원 (2018.03 ~ 2021.12)", sourceText)
	assert.Equal(t, 1.0, check.Similarity)
	assert.True(t, check.Valid)
}

func TestCheckEvidence_MissingCriticalPenalty(t *testing.T) {
	e := newTestEnforcer()

	check := e.CheckEvidence("phone", "010-1234-5678", "", sourceText)
	assert.False(t, check.Present)
	assert.False(t, check.Valid)
	assert.Equal(t, 0.2, check.Penalty)
}

func TestCheckEvidence_MissingOptionalNoPenalty(t *testing.T) {
	e := newTestEnforcer()

	check := e.CheckEvidence("summary", "백엔드 개발자", "", sourceText)
	assert.False(t, check.Present)
	assert.Equal(t, 0.0, check.Penalty)
}

func TestCheckEvidence_FabricatedExcerptPenalized(t *testing.T) {
	e := newTestEnforcer()

	check := e.CheckEvidence("current_company", "구글코리아", "구글코리아 수석 아키텍트 상하이 지사 근무 경력", sourceText)
	assert.True(t, check.Present)
	assert.False(t, check.Valid)
	assert.Less(t, check.Similarity, 0.6)
	assert.Equal(t, 0.5, check.Penalty)
}

func TestCheckEvidence_NearMatchPassesThreshold(t *testing.T) {
	e := newTestEnforcer()

	// Slightly reworded excerpt still close to the source line.
	check := e.CheckEvidence("careers", []any{"x"}, "삼성전자 선임 연구원 2018.03~2021.12", sourceText)
	assert.True(t, check.Valid, "similarity %f", check.Similarity)
}

func TestEnforce_AggregatesAndFlagsRetry(t *testing.T) {
	e := newTestEnforcer()
	record := map[string]any{
		"name":  "김철수",
		"phone": "010-1234-5678",
		"email": "kim.chulsoo@example.com",
	}
	evidenceMap := map[string]string{
		"name":  "김철수",
		"email": "이메일: kim.chulsoo@example.com",
		// phone evidence missing entirely
	}

	result := e.Enforce(record, evidenceMap, sourceText)
	require.Contains(t, result.Checks, "phone")
	assert.False(t, result.Checks["phone"].Present)
	assert.Contains(t, result.MissingCritical, "phone")
	assert.True(t, result.NeedsRetry)
	assert.InDelta(t, 2.0/3.0, result.BackedRatio, 1e-9)
}

func TestEnforce_SubEntryKeys(t *testing.T) {
	e := newTestEnforcer()
	record := map[string]any{
		"careers": []any{map[string]any{"company": "삼성전자"}},
	}
	evidenceMap := map[string]string{
		"careers":    "삼성전자 선임 연구원",
		"careers[0]": "삼성전자 선임 연구원 (2018.03 ~ 2021.12)",
	}

	result := e.Enforce(record, evidenceMap, sourceText)
	assert.Contains(t, result.Checks, "careers")
	assert.Contains(t, result.Checks, "careers[0]")
	assert.True(t, result.Checks["careers[0]"].Valid)
}

func TestApplyPenalties_FlooredAtMinimum(t *testing.T) {
	e := newTestEnforcer()
	confidence := map[string]float64{"phone": 0.9, "email": 0.2}
	result := &model.EvidenceResult{
		Checks: map[string]model.EvidenceCheck{
			"phone": {FieldKey: "phone", Present: true, Penalty: 0.5},
			"email": {FieldKey: "email", Penalty: 0.5},
			"name":  {FieldKey: "name", Present: true, Valid: true},
		},
	}

	e.ApplyPenalties(confidence, result)
	assert.InDelta(t, 0.4, confidence["phone"], 1e-9)
	assert.InDelta(t, 0.1, confidence["email"], 1e-9) // floored
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "연락처 01012345678", normalizeText("연락처: 010-1234-5678!"))
	assert.Equal(t, "go python", normalizeText("  Go,   Python.  "))
	assert.Equal(t, "", normalizeText("?!..,"))
}
