package lowcoder

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Slugify lowercases s, folds accents to ASCII, drops anything that is not a
// letter, digit, underscore, space or hyphen, and joins words with hyphens.
func Slugify(s string) string {
	var ascii strings.Builder
	for _, r := range norm.NFKD.String(s) {
		if r < unicode.MaxASCII {
			ascii.WriteRune(r)
		}
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(ascii.String()) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			pendingDash = true
		}
	}
	return strings.Trim(b.String(), "-_")
}

// CamelCase turns a table name like "employee data" into "EmployeeData".
func CamelCase(s string) string {
	words := strings.FieldsFunc(Slugify(s), func(r rune) bool {
		return r == '-' || r == '_'
	})
	var b strings.Builder
	for _, w := range words {
		b.WriteString(strings.ToUpper(w[:1]))
		b.WriteString(w[1:])
	}
	if b.Len() > 0 && unicode.IsDigit(rune(b.String()[0])) {
		return "T" + b.String()
	}
	return b.String()
}

// VariableName turns a field name into a lower snake case identifier.
func VariableName(s string) string {
	name := strings.ReplaceAll(Slugify(s), "-", "_")
	if name != "" && unicode.IsDigit(rune(name[0])) {
		return "f_" + name
	}
	return name
}
