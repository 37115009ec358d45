package lowcoder

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"
)

const (
	MinTableNameLength   = 3
	MinFieldNameLength   = 2
	MinProjectNameLength = 4
	MaxProjectNameLength = 100
	MinAdminNameLength   = 6
	MinPasswordLength    = 6
)

func checkMinLength(field, value string, min int) error {
	if utf8.RuneCountInString(strings.TrimSpace(value)) < min {
		return NewValidationError(field, ErrCodeNameTooShort,
			fmt.Sprintf("must be at least %d characters", min))
	}
	return nil
}

// Validate checks a table before it is persisted.
func (t *Table) Validate() error {
	if err := checkMinLength("name", t.Name, MinTableNameLength); err != nil {
		return err
	}
	if t.Index < 0 {
		return NewValidationError("index", ErrCodeValidationFailed, "must be positive")
	}
	return nil
}

// Validate checks a field before it is persisted.
func (f *Field) Validate() error {
	if err := checkMinLength("name", f.Name, MinFieldNameLength); err != nil {
		return err
	}
	if !f.Datatype.IsValid() {
		return NewValidationError("datatype", ErrCodeUnknownDatatype,
			fmt.Sprintf("unknown datatype %q", f.Datatype))
	}
	for name, v := range map[string]*int{
		"maxLength":     f.MaxLength,
		"maxDigits":     f.MaxDigits,
		"decimalPlaces": f.DecimalPlaces,
	} {
		if v != nil && *v < 0 {
			return NewValidationError(name, ErrCodeValidationFailed, "must not be negative")
		}
	}
	if f.Index < 0 {
		return NewValidationError("index", ErrCodeValidationFailed, "must be positive")
	}
	return nil
}

// Validate checks the project name bounds. Uniqueness is owned by the caller.
func (p *Project) Validate() error {
	if err := checkMinLength("name", p.Name, MinProjectNameLength); err != nil {
		return err
	}
	if utf8.RuneCountInString(p.Name) > MaxProjectNameLength {
		return NewValidationError("name", ErrCodeNameTooLong,
			fmt.Sprintf("must be at most %d characters", MaxProjectNameLength))
	}
	return nil
}

// Validate checks the deployment credentials.
func (s *ProjectSettings) Validate() error {
	if err := checkMinLength("adminName", s.AdminName, MinAdminNameLength); err != nil {
		return err
	}
	return checkMinLength("adminPassword", s.AdminPassword, MinPasswordLength)
}

// ValidateExtension rejects files whose extension is not in allowed.
func ValidateExtension(fileName string, allowed []string) error {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !slices.Contains(allowed, ext) {
		return NewValidationError("file", ErrCodeExtensionNotAllowed,
			fmt.Sprintf("extension %q not allowed, expected one of %s", ext, strings.Join(allowed, ", ")))
	}
	return nil
}
