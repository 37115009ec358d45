package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixtureValidator(t *testing.T) {
	v, err := NewFixtureValidator()
	require.NoError(t, err)

	tests := []struct {
		name    string
		payload string
		valid   bool
	}{
		{"empty list", `[]`, true},
		{"record", `[{"model": "core.cars", "pk": 1, "fields": {"plate": "B-XY 12"}}]`, true},
		{"missing pk", `[{"model": "core.cars", "fields": {}}]`, false},
		{"pk below one", `[{"model": "core.cars", "pk": 0, "fields": {}}]`, false},
		{"model without app label", `[{"model": "Cars", "pk": 1, "fields": {}}]`, false},
		{"not a list", `{"model": "core.cars"}`, false},
		{"not json", `[`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate([]byte(tt.payload))
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
