package secrets

import (
	"context"
	"strings"
	"testing"
)

func TestEnvResolver_Resolve_ValidRefEnvSet(t *testing.T) {
	t.Setenv("VOICEBRIDGE_TEST_PASSWORD", "hunter2")

	r := NewEnvResolver()
	got, err := r.Resolve(context.Background(), "env(VOICEBRIDGE_TEST_PASSWORD)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hunter2" {
		t.Errorf("got %q, want %q", got, "hunter2")
	}
}

func TestEnvResolver_Resolve_EnvNotSet(t *testing.T) {
	r := &EnvResolver{lookup: func(string) (string, bool) { return "", false }}
	_, err := r.Resolve(context.Background(), "env(REDIS_PASSWORD)")
	if err == nil {
		t.Fatal("expected error for unset env var, got nil")
	}
	if want := `environment variable "REDIS_PASSWORD" not set`; err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestEnvResolver_Resolve_MalformedRefs(t *testing.T) {
	r := NewEnvResolver()
	tests := []struct {
		ref  string
		want string
	}{
		{"notenv(VAR)", "unsupported secret reference format"},
		{"env(VAR", "unsupported secret reference format"},
		{"env()", "empty variable name"},
	}
	for _, tt := range tests {
		_, err := r.Resolve(context.Background(), tt.ref)
		if err == nil {
			t.Errorf("Resolve(%q) expected error, got nil", tt.ref)
			continue
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("Resolve(%q) error = %q, want it to contain %q", tt.ref, err.Error(), tt.want)
		}
	}
}

func TestIsRef(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"env(X)", true},
		{"env()", true},
		{"plain-password", false},
		{"", false},
		{"env(X", false},
	}
	for _, tt := range tests {
		if got := IsRef(tt.in); got != tt.want {
			t.Errorf("IsRef(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestResolveFields(t *testing.T) {
	r := &EnvResolver{lookup: func(name string) (string, bool) {
		if name == "PG_DSN" {
			return "postgres://u:p@db/x", true
		}
		return "", false
	}}

	dsn := "env(PG_DSN)"
	password := "literal-pass"
	empty := ""
	values, err := ResolveFields(context.Background(), r, &dsn, &password, &empty)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dsn != "postgres://u:p@db/x" {
		t.Errorf("dsn = %q, want it resolved", dsn)
	}
	if password != "literal-pass" {
		t.Errorf("password = %q, want literal kept", password)
	}
	if len(values) != 2 || values[0] != dsn || values[1] != password {
		t.Errorf("values = %v, want [dsn password]", values)
	}
}

func TestResolveFields_Error(t *testing.T) {
	r := &EnvResolver{lookup: func(string) (string, bool) { return "", false }}
	field := "env(MISSING)"
	if _, err := ResolveFields(context.Background(), r, &field); err == nil {
		t.Fatal("expected error for unresolvable reference, got nil")
	}
	if field != "env(MISSING)" {
		t.Errorf("field = %q, want it untouched on error", field)
	}
}
