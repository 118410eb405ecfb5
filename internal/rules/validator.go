// Package rules applies field-specific normalization and validation to
// extracted resume values. Malformed values are never dropped: an invalid
// result keeps the original value alongside an error string.
package rules

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/potensiadev/reconciler/internal/model"
)

// Validator normalizes individual field values and whole sub-records.
// Run-scoped; the clock is injectable for year-bound checks.
type Validator struct {
	now time.Time
}

// NewValidator creates a validator using the wall clock.
func NewValidator() *Validator {
	return &Validator{now: time.Now()}
}

// WithNow sets a fixed time for testing.
func (v *Validator) WithNow(t time.Time) *Validator {
	v.now = t
	return v
}

// fieldRule normalizes one value in place on the FieldValidation.
type fieldRule func(v *Validator, value any, fv *model.FieldValidation)

// fieldRules dispatches by field name. Fields without an entry pass
// through unchanged. Assigned in init because the careers and educations
// rules re-enter ValidateAndNormalize for their sub-fields.
var fieldRules map[string]fieldRule

func init() {
	fieldRules = map[string]fieldRule{
		"start_date":      (*Validator).dateRule,
		"end_date":        (*Validator).dateRule,
		"graduation_year": (*Validator).graduationYearRule,
		"birth_year":      (*Validator).birthYearRule,
		"company":         (*Validator).companyRule,
		"current_company": (*Validator).companyRule,
		"degree":          (*Validator).degreeRule,
		"phone":           (*Validator).phoneRule,
		"email":           (*Validator).emailRule,
		"exp_years":       (*Validator).expYearsRule,
		"skills":          (*Validator).skillsRule,
		"careers":         (*Validator).careersRule,
		"educations":      (*Validator).educationsRule,
	}
}

// ValidateAndNormalize applies the field's rule and returns the result.
// A nil input is always valid and passed through unchanged.
func (v *Validator) ValidateAndNormalize(field string, value any) model.FieldValidation {
	fv := model.FieldValidation{
		FieldKey:   field,
		Original:   value,
		Normalized: value,
		Valid:      true,
	}
	if value == nil {
		return fv
	}
	if rule, ok := fieldRules[field]; ok {
		rule(v, value, &fv)
	}
	return fv
}

var (
	dateDotted = regexp.MustCompile(`^(\d{4})[./\-]\s?(\d{1,2})$`)
	dateKorean = regexp.MustCompile(`^(\d{4})년\s*(\d{1,2})월?$`)
	dateSix    = regexp.MustCompile(`^(\d{4})(\d{2})$`)
	dateYear   = regexp.MustCompile(`^(\d{4})$`)
)

// normalizeDate converts the accepted date spellings to canonical YYYY-MM.
// A bare year defaults to January with a warning.
func normalizeDate(s string) (normalized string, warning string, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "", true
	}

	var year, month string
	switch {
	case dateDotted.MatchString(s):
		m := dateDotted.FindStringSubmatch(s)
		year, month = m[1], m[2]
	case dateKorean.MatchString(s):
		m := dateKorean.FindStringSubmatch(s)
		year, month = m[1], m[2]
	case dateSix.MatchString(s):
		m := dateSix.FindStringSubmatch(s)
		year, month = m[1], m[2]
	case dateYear.MatchString(s):
		return s + "-01", fmt.Sprintf("date %q has no month, defaulted to January", s), true
	default:
		return s, "", false
	}

	mo, err := strconv.Atoi(month)
	if err != nil || mo < 1 || mo > 12 {
		return s, "", false
	}
	return fmt.Sprintf("%s-%02d", year, mo), "", true
}

func (v *Validator) dateRule(value any, fv *model.FieldValidation) {
	s, ok := asString(value)
	if !ok {
		fv.Valid = false
		fv.Errors = append(fv.Errors, fmt.Sprintf("%s: expected a date string, got %T", fv.FieldKey, value))
		return
	}
	normalized, warning, ok := normalizeDate(s)
	if !ok {
		fv.Valid = false
		fv.Errors = append(fv.Errors, fmt.Sprintf("%s: unrecognized date %q", fv.FieldKey, s))
		return
	}
	if warning != "" {
		fv.Warnings = append(fv.Warnings, warning)
	}
	setNormalized(fv, normalized)
}

func (v *Validator) graduationYearRule(value any, fv *model.FieldValidation) {
	year, ok := asInt(value)
	if !ok {
		fv.Valid = false
		fv.Errors = append(fv.Errors, fmt.Sprintf("graduation_year: %v is not a year", value))
		return
	}
	current := v.now.Year()
	if year < 1950 || year > current+5 {
		fv.Valid = false
		fv.Errors = append(fv.Errors, fmt.Sprintf("graduation_year %d out of range [1950, %d]", year, current+5))
		return
	}
	if year > current {
		fv.Warnings = append(fv.Warnings, fmt.Sprintf("graduation_year %d is in the future", year))
	}
	setNormalized(fv, year)
}

func (v *Validator) birthYearRule(value any, fv *model.FieldValidation) {
	year, ok := asInt(value)
	if !ok {
		fv.Valid = false
		fv.Errors = append(fv.Errors, fmt.Sprintf("birth_year: %v is not a year", value))
		return
	}
	if year < 1940 {
		fv.Valid = false
		fv.Errors = append(fv.Errors, fmt.Sprintf("birth_year %d below 1940", year))
		return
	}
	if v.now.Year()-year < 15 {
		fv.Valid = false
		fv.Errors = append(fv.Errors, fmt.Sprintf("birth_year %d implies age under 15", year))
		return
	}
	setNormalized(fv, year)
}

// companyAliases maps known spellings (lowercase, whitespace-collapsed) to
// canonical company names.
var companyAliases = map[string]string{
	"samsung":             "삼성전자",
	"samsung electronics": "삼성전자",
	"삼성 전자":               "삼성전자",
	"lg electronics":      "LG전자",
	"엘지전자":                "LG전자",
	"lg 전자":               "LG전자",
	"sk hynix":            "SK하이닉스",
	"sk 하이닉스":             "SK하이닉스",
	"하이닉스":                "SK하이닉스",
	"naver":               "네이버",
	"kakao":               "카카오",
	"hyundai motor":       "현대자동차",
	"현대 자동차":              "현대자동차",
	"coupang":             "쿠팡",
}

// normalizeCompany trims, collapses internal whitespace, and replaces known
// aliases with the canonical name.
func normalizeCompany(s string) string {
	s = collapseWhitespace(s)
	if canonical, ok := companyAliases[strings.ToLower(s)]; ok {
		return canonical
	}
	return s
}

func (v *Validator) companyRule(value any, fv *model.FieldValidation) {
	s, ok := asString(value)
	if !ok {
		fv.Valid = false
		fv.Errors = append(fv.Errors, fmt.Sprintf("%s: expected a string, got %T", fv.FieldKey, value))
		return
	}
	setNormalized(fv, normalizeCompany(s))
}

// degreeTable is checked in order; the first substring match wins.
var degreeTable = []struct {
	patterns  []string
	canonical string
}{
	{[]string{"ph.d", "phd", "doctor", "박사"}, "박사"},
	{[]string{"master", "석사"}, "석사"},
	{[]string{"bachelor", "학사", "대졸"}, "학사"},
	{[]string{"associate", "전문학사", "초대졸"}, "전문학사"},
	{[]string{"high school", "고졸", "고등학교"}, "고졸"},
}

// normalizeDegree maps a free-text degree to its canonical level. Unmatched
// values pass through; the second return reports whether a match was found.
func normalizeDegree(s string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(s))
	for _, entry := range degreeTable {
		for _, p := range entry.patterns {
			if strings.Contains(lower, p) {
				return entry.canonical, true
			}
		}
	}
	return strings.TrimSpace(s), false
}

func (v *Validator) degreeRule(value any, fv *model.FieldValidation) {
	s, ok := asString(value)
	if !ok {
		fv.Valid = false
		fv.Errors = append(fv.Errors, fmt.Sprintf("degree: expected a string, got %T", value))
		return
	}
	normalized, matched := normalizeDegree(s)
	if !matched {
		fv.Warnings = append(fv.Warnings, fmt.Sprintf("degree %q not in normalization table", s))
	}
	setNormalized(fv, normalized)
}

var (
	nonDigits   = regexp.MustCompile(`\D`)
	mobileDigit = regexp.MustCompile(`^01[016789]\d{7,8}$`)
)

// normalizePhone strips separators and reformats valid Korean mobile
// numbers with dashes. The second return is false for non-mobile numbers.
func normalizePhone(s string) (string, bool) {
	digits := nonDigits.ReplaceAllString(s, "")
	if !mobileDigit.MatchString(digits) {
		return s, false
	}
	if len(digits) == 11 {
		return digits[:3] + "-" + digits[3:7] + "-" + digits[7:], true
	}
	return digits[:3] + "-" + digits[3:6] + "-" + digits[6:], true
}

func (v *Validator) phoneRule(value any, fv *model.FieldValidation) {
	s, ok := asString(value)
	if !ok {
		fv.Valid = false
		fv.Errors = append(fv.Errors, fmt.Sprintf("phone: expected a string, got %T", value))
		return
	}
	normalized, ok := normalizePhone(s)
	if !ok {
		fv.Valid = false
		fv.Errors = append(fv.Errors, fmt.Sprintf("phone %q is not a Korean mobile number", s))
		return
	}
	setNormalized(fv, normalized)
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func (v *Validator) emailRule(value any, fv *model.FieldValidation) {
	s, ok := asString(value)
	if !ok {
		fv.Valid = false
		fv.Errors = append(fv.Errors, fmt.Sprintf("email: expected a string, got %T", value))
		return
	}
	normalized := strings.ToLower(strings.TrimSpace(s))
	setNormalized(fv, normalized)
	if !emailPattern.MatchString(normalized) {
		fv.Valid = false
		fv.Errors = append(fv.Errors, fmt.Sprintf("email %q is not a valid address", s))
	}
}

func (v *Validator) expYearsRule(value any, fv *model.FieldValidation) {
	years, ok := asFloat(value)
	if !ok {
		fv.Valid = false
		fv.Errors = append(fv.Errors, fmt.Sprintf("exp_years: %v is not a number", value))
		return
	}
	if years < 0 {
		fv.Valid = false
		fv.Errors = append(fv.Errors, fmt.Sprintf("exp_years %v is negative", value))
		return
	}
	if years > 50 {
		fv.Warnings = append(fv.Warnings, fmt.Sprintf("exp_years %.1f is unusually high", years))
	}
	setNormalized(fv, math.Round(years*10)/10)
}

func (v *Validator) skillsRule(value any, fv *model.FieldValidation) {
	list, ok := asStringList(value)
	if !ok {
		fv.Valid = false
		fv.Errors = append(fv.Errors, fmt.Sprintf("skills: expected a list, got %T", value))
		return
	}
	setNormalized(fv, dedupeSkills(list))
}

// dedupeSkills removes case-insensitive duplicates, preserving first-seen
// casing and order. Empty entries are dropped.
func dedupeSkills(skills []string) []string {
	seen := make(map[string]bool, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

func (v *Validator) careersRule(value any, fv *model.FieldValidation) {
	careers := model.AsCareers(value)
	if careers == nil {
		fv.Valid = false
		fv.Errors = append(fv.Errors, fmt.Sprintf("careers: expected a list of entries, got %T", value))
		return
	}
	normalized, warnings := v.ValidateCareers(careers)
	fv.Warnings = append(fv.Warnings, warnings...)
	setNormalized(fv, normalized)
}

func (v *Validator) educationsRule(value any, fv *model.FieldValidation) {
	edus := model.AsEducations(value)
	if edus == nil {
		fv.Valid = false
		fv.Errors = append(fv.Errors, fmt.Sprintf("educations: expected a list of entries, got %T", value))
		return
	}
	normalized, warnings := v.ValidateEducations(edus)
	fv.Warnings = append(fv.Warnings, warnings...)
	setNormalized(fv, normalized)
}

// setNormalized records the normalized value and a change note when it
// differs from the original.
func setNormalized(fv *model.FieldValidation, normalized any) {
	fv.Normalized = normalized
	if fmt.Sprintf("%v", fv.Original) != fmt.Sprintf("%v", normalized) {
		fv.Changes = append(fv.Changes, fmt.Sprintf("%s: %v → %v", fv.FieldKey, fv.Original, normalized))
	}
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func asString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		if x == math.Trunc(x) {
			return strconv.FormatInt(int64(x), 10), true
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	default:
		return "", false
	}
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		if x != math.Trunc(x) {
			return 0, false
		}
		return int(x), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func asStringList(v any) ([]string, bool) {
	switch x := v.(type) {
	case []string:
		return x, true
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
			// non-string entries dropped silently
		}
		return out, true
	default:
		return nil, false
	}
}
