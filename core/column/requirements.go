package column

import "fmt"

// Requirement is a validator attached to a column, evaluated on write.
// present reports whether the incoming payload carried the column at all,
// so requirements can distinguish "absent" from "empty".
type Requirement interface {
	// Check returns an error message, or "" when the value satisfies the
	// requirement.
	Check(value any, present bool) string
}

// required fails when the column is absent, nil, or an empty string.
type required struct{}

// Required declares that a value must be provided on create.
func Required() Requirement { return required{} }

func (required) Check(value any, present bool) string {
	if !present || value == nil {
		return "value is required"
	}
	if s, ok := value.(string); ok && s == "" {
		return "value is required"
	}
	return ""
}

// maximumLength caps the length of string values.
type maximumLength struct {
	max int
}

// MaximumLength declares the maximum allowed string length.
func MaximumLength(max int) Requirement { return maximumLength{max: max} }

func (m maximumLength) Check(value any, present bool) string {
	if !present || value == nil {
		return ""
	}
	s, ok := value.(string)
	if !ok {
		return ""
	}
	if len(s) > m.max {
		return fmt.Sprintf("value must be at most %d characters", m.max)
	}
	return ""
}

// minimumLength enforces a lower bound on string length.
type minimumLength struct {
	min int
}

// MinimumLength declares the minimum allowed string length.
func MinimumLength(min int) Requirement { return minimumLength{min: min} }

func (m minimumLength) Check(value any, present bool) string {
	if !present || value == nil {
		return ""
	}
	s, ok := value.(string)
	if !ok {
		return ""
	}
	if len(s) < m.min {
		return fmt.Sprintf("value must be at least %d characters", m.min)
	}
	return ""
}
