package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Middleware returns an HTTP middleware that requires apiKey on every
// request except those to skipPaths. An empty apiKey disables the check.
// Rejected requests are logged with the client address when logger is set.
func Middleware(apiKey string, skipPaths []string, logger *slog.Logger) func(http.Handler) http.Handler {
	skipSet := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skipSet[p] = true
	}

	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipSet[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			key := KeyFromRequest(r)
			if key == "" {
				reject(w, r, logger, "missing API key")
				return
			}
			if !ValidateKey(key, apiKey) {
				reject(w, r, logger, "invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func reject(w http.ResponseWriter, r *http.Request, logger *slog.Logger, message string) {
	if logger != nil {
		logger.Warn("webhook rejected",
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"reason", message,
		)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": message,
	})
}
