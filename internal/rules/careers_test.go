package rules

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potensiadev/reconciler/internal/model"
)

func TestValidateCareers_CurrentWithEndDateContradiction(t *testing.T) {
	v := newTestValidator()
	careers := []model.Career{
		{Company: "네이버", StartDate: "2019.3", EndDate: "2024.1", IsCurrent: true},
	}

	out, warnings := v.ValidateCareers(careers)
	require.Len(t, out, 1)
	assert.Empty(t, out[0].EndDate)
	assert.True(t, out[0].IsCurrent)

	found := false
	for _, w := range warnings {
		if strings.Contains(w, "is_current") && strings.Contains(w, "end_date") {
			found = true
		}
	}
	assert.True(t, found, "expected a contradiction warning, got %v", warnings)
}

func TestValidateCareers_DateOrderWarning(t *testing.T) {
	v := newTestValidator()
	careers := []model.Career{
		{Company: "카카오", StartDate: "2022-06", EndDate: "2020-01"},
	}

	out, warnings := v.ValidateCareers(careers)
	require.Len(t, out, 1)
	// Values are kept; only a warning is emitted.
	assert.Equal(t, "2022-06", out[0].StartDate)
	assert.Equal(t, "2020-01", out[0].EndDate)
	assert.NotEmpty(t, warnings)
}

func TestValidateCareers_NormalizesCompanyAndDates(t *testing.T) {
	v := newTestValidator()
	careers := []model.Career{
		{Company: "삼성 전자", Title: "선임  연구원", StartDate: "2018년 3월", EndDate: "2021.12"},
	}

	out, warnings := v.ValidateCareers(careers)
	require.Len(t, out, 1)
	assert.Equal(t, "삼성전자", out[0].Company)
	assert.Equal(t, "선임 연구원", out[0].Title)
	assert.Equal(t, "2018-03", out[0].StartDate)
	assert.Equal(t, "2021-12", out[0].EndDate)
	assert.Empty(t, warnings)
}

func TestValidateCareers_BareYearDateWarns(t *testing.T) {
	v := newTestValidator()
	careers := []model.Career{
		{Company: "쿠팡", StartDate: "2020"},
	}

	out, warnings := v.ValidateCareers(careers)
	require.Len(t, out, 1)
	assert.Equal(t, "2020-01", out[0].StartDate)
	assert.NotEmpty(t, warnings)
}

func TestValidateCareers_UnparseableDateKeptWithWarning(t *testing.T) {
	v := newTestValidator()
	careers := []model.Career{
		{Company: "스타트업", StartDate: "입사일 미상"},
	}

	out, warnings := v.ValidateCareers(careers)
	require.Len(t, out, 1)
	assert.Equal(t, "입사일 미상", out[0].StartDate)
	assert.NotEmpty(t, warnings)
}

func TestValidateEducations(t *testing.T) {
	v := newTestValidator()
	edus := []model.Education{
		{School: "서울  대학교", Major: "컴퓨터 공학", Degree: "Bachelor of Engineering", GraduationYear: float64(2018)},
		{School: "한국대학교", Degree: "수료"},
	}

	out, warnings := v.ValidateEducations(edus)
	require.Len(t, out, 2)
	assert.Equal(t, "서울 대학교", out[0].School)
	assert.Equal(t, "학사", out[0].Degree)
	assert.Equal(t, 2018, out[0].GraduationYear)
	// Unmatched degree passes through with a warning.
	assert.Equal(t, "수료", out[1].Degree)
	assert.NotEmpty(t, warnings)
}

func TestValidateEducations_BadGraduationYearWarns(t *testing.T) {
	v := newTestValidator()
	edus := []model.Education{
		{School: "서울대학교", GraduationYear: float64(1800)},
	}

	out, warnings := v.ValidateEducations(edus)
	require.Len(t, out, 1)
	assert.NotEmpty(t, warnings)
	// Original value kept when invalid.
	assert.Equal(t, float64(1800), out[0].GraduationYear)
}
