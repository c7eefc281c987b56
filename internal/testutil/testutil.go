// Package testutil provides shared test helpers to reduce boilerplate across unit tests.
package testutil

import (
	"encoding/json"
	"strings"
	"testing"
)

// MustMarshalJSON marshals v to JSON, failing the test if marshaling fails.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// DecodeActions decodes an NCCO document into generic action maps so tests
// can assert on the exact wire field names.
func DecodeActions(t *testing.T, data []byte) []map[string]interface{} {
	t.Helper()
	var actions []map[string]interface{}
	if err := json.Unmarshal(data, &actions); err != nil {
		t.Fatalf("failed to decode NCCO %s: %v", data, err)
	}
	return actions
}

// AssertErrorContains asserts that err is non-nil and its message contains substr.
func AssertErrorContains(t *testing.T, err error, substr string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error containing %q, got nil", substr)
	}
	if !strings.Contains(err.Error(), substr) {
		t.Fatalf("expected error containing %q, got %q", substr, err.Error())
	}
}
