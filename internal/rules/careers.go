package rules

import (
	"fmt"

	"github.com/potensiadev/reconciler/internal/model"
)

// ValidateCareers normalizes a career list in place and returns the
// normalized entries with any warnings. Entries are never dropped.
func (v *Validator) ValidateCareers(careers []model.Career) ([]model.Career, []string) {
	out := make([]model.Career, len(careers))
	var warnings []string

	for i, c := range careers {
		c.Company = normalizeCompany(c.Company)
		c.Title = collapseWhitespace(c.Title)

		if c.StartDate != "" {
			if normalized, warning, ok := normalizeDate(c.StartDate); ok {
				c.StartDate = normalized
				if warning != "" {
					warnings = append(warnings, fmt.Sprintf("careers[%d].start_date: %s", i, warning))
				}
			} else {
				warnings = append(warnings, fmt.Sprintf("careers[%d]: unrecognized start_date %q", i, c.StartDate))
			}
		}
		if c.EndDate != "" {
			if normalized, warning, ok := normalizeDate(c.EndDate); ok {
				c.EndDate = normalized
				if warning != "" {
					warnings = append(warnings, fmt.Sprintf("careers[%d].end_date: %s", i, warning))
				}
			} else {
				warnings = append(warnings, fmt.Sprintf("careers[%d]: unrecognized end_date %q", i, c.EndDate))
			}
		}

		// A currently-held position cannot have an end date.
		if c.IsCurrent && c.EndDate != "" {
			warnings = append(warnings, fmt.Sprintf(
				"careers[%d] (%s): is_current with end_date %s, end_date cleared", i, c.Company, c.EndDate))
			c.EndDate = ""
		}

		// Dates are YYYY-MM, so lexical order is chronological.
		if c.StartDate != "" && c.EndDate != "" && c.StartDate > c.EndDate {
			warnings = append(warnings, fmt.Sprintf(
				"careers[%d] (%s): start_date %s after end_date %s", i, c.Company, c.StartDate, c.EndDate))
		}

		out[i] = c
	}
	return out, warnings
}

// ValidateEducations normalizes an education list and returns the
// normalized entries with any warnings.
func (v *Validator) ValidateEducations(edus []model.Education) ([]model.Education, []string) {
	out := make([]model.Education, len(edus))
	var warnings []string

	for i, e := range edus {
		e.School = collapseWhitespace(e.School)
		e.Major = collapseWhitespace(e.Major)

		if e.Degree != "" {
			normalized, matched := normalizeDegree(e.Degree)
			if !matched {
				warnings = append(warnings, fmt.Sprintf("educations[%d]: degree %q not in normalization table", i, e.Degree))
			}
			e.Degree = normalized
		}

		if e.GraduationYear != nil {
			fv := v.ValidateAndNormalize("graduation_year", e.GraduationYear)
			if fv.Valid {
				e.GraduationYear = fv.Normalized
				warnings = append(warnings, prefixAll(fv.Warnings, fmt.Sprintf("educations[%d]: ", i))...)
			} else {
				warnings = append(warnings, prefixAll(fv.Errors, fmt.Sprintf("educations[%d]: ", i))...)
			}
		}

		out[i] = e
	}
	return out, warnings
}

func prefixAll(msgs []string, prefix string) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = prefix + m
	}
	return out
}
