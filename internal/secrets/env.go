package secrets

import (
	"context"
	"fmt"
	"os"
)

// EnvResolver resolves references of the form "env(VAR_NAME)" from the
// process environment.
type EnvResolver struct {
	lookup func(string) (string, bool)
}

// NewEnvResolver creates an environment variable secret resolver.
func NewEnvResolver() *EnvResolver {
	return &EnvResolver{lookup: os.LookupEnv}
}

// Resolve looks up an env() reference and returns the value.
func (r *EnvResolver) Resolve(_ context.Context, ref string) (string, error) {
	if !IsRef(ref) {
		return "", fmt.Errorf("unsupported secret reference format: %q (expected env(VAR_NAME))", ref)
	}

	name := ref[len("env(") : len(ref)-1]
	if name == "" {
		return "", fmt.Errorf("empty variable name in secret reference %q", ref)
	}

	value, ok := r.lookup(name)
	if !ok {
		return "", fmt.Errorf("environment variable %q not set", name)
	}
	return value, nil
}
