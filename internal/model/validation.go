package model

// FieldValidation is the result of applying a normalization rule to one
// value. Invalid values keep their original value in Normalized so nothing
// is silently dropped.
type FieldValidation struct {
	FieldKey   string   `json:"field_key"`
	Original   any      `json:"original"`
	Normalized any      `json:"normalized"`
	Valid      bool     `json:"valid"`
	Changes    []string `json:"changes,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	Errors     []string `json:"errors,omitempty"`
}

// ValidationSummary holds the counts that survive after a record is
// finalized; individual FieldValidations are discarded.
type ValidationSummary struct {
	FieldsChecked int      `json:"fields_checked"`
	FieldsChanged int      `json:"fields_changed"`
	Invalid       int      `json:"invalid"`
	Warnings      []string `json:"warnings,omitempty"`
	Errors        []string `json:"errors,omitempty"`
}
