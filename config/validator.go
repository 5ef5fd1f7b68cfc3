package config

import (
	"fmt"
	"strings"
)

// Validator accumulates configuration problems so Load can report every
// fatal misconfiguration at once instead of failing on the first field,
// adapted from the teacher's generic config.Validator.
type Validator struct {
	errors []string
}

// NewValidator creates an empty Validator.
func NewValidator() *Validator {
	return &Validator{errors: make([]string, 0)}
}

// RequireString records an error if value is empty.
func (v *Validator) RequireString(field, value string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
	}
}

// RequireURL records an error if value is empty or does not start with
// http:// or https://.
func (v *Validator) RequireURL(field, value string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
		return
	}
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		v.errors = append(v.errors, fmt.Sprintf("%s must be an absolute URL (http:// or https://)", field))
	}
}

// RequireOneOf records an error if value is not among allowed.
func (v *Validator) RequireOneOf(field, value string, allowed []string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
		return
	}
	for _, option := range allowed {
		if value == option {
			return
		}
	}
	v.errors = append(v.errors, fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", ")))
}

// Validate returns a single aggregated error if any check failed, nil
// otherwise.
func (v *Validator) Validate() error {
	if len(v.errors) == 0 {
		return nil
	}
	return fmt.Errorf("config: invalid configuration: %s", strings.Join(v.errors, "; "))
}
