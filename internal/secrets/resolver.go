// Package secrets resolves secret references in configuration values and
// keeps the resolved values out of the logs.
package secrets

import (
	"context"
	"strings"
)

// Resolver resolves secret references to their values.
type Resolver interface {
	// Resolve looks up a secret reference such as "env(REDIS_PASSWORD)" and
	// returns its value.
	Resolve(ctx context.Context, ref string) (string, error)
}

// IsRef reports whether s is written as a secret reference rather than a
// literal value.
func IsRef(s string) bool {
	return strings.HasPrefix(s, "env(") && strings.HasSuffix(s, ")")
}

// ResolveFields replaces every referenced field with its resolved value and
// returns the non-empty values of all given fields, literal or resolved, so
// the caller can register them for redaction.
func ResolveFields(ctx context.Context, r Resolver, fields ...*string) ([]string, error) {
	var values []string
	for _, f := range fields {
		if IsRef(*f) {
			v, err := r.Resolve(ctx, *f)
			if err != nil {
				return nil, err
			}
			*f = v
		}
		if *f != "" {
			values = append(values, *f)
		}
	}
	return values, nil
}
