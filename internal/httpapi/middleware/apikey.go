package middleware

import (
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/kissvdb/kissvdb/internal/httpapi"
)

// APIKeyConfig configures static bearer API key authentication: the key
// is never stored in plaintext, only a bcrypt hash of it (adapted from
// fluxor's examples/todo-api/pkg/auth bcrypt.GenerateFromPassword /
// CompareHashAndPassword pair, generalized from a per-user password hash
// to a single shared operator key).
type APIKeyConfig struct {
	Hash      string
	SkipPaths []string
}

// APIKey validates a bearer token against a bcrypt hash on every request
// not in SkipPaths.
func APIKey(cfg APIKeyConfig) httpapi.Middleware {
	hash := []byte(cfg.Hash)
	return func(next httpapi.Handler) httpapi.Handler {
		return func(ctx *httpapi.RequestContext) error {
			path := string(ctx.Path())
			for _, skip := range cfg.SkipPaths {
				if path == skip || strings.HasPrefix(path, skip) {
					return next(ctx)
				}
			}

			authHeader := string(ctx.Request.Header.Peek("Authorization"))
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				return unauthorized(ctx)
			}
			if err := bcrypt.CompareHashAndPassword(hash, []byte(parts[1])); err != nil {
				return unauthorized(ctx)
			}
			return next(ctx)
		}
	}
}

// HashAPIKey bcrypt-hashes a plaintext key for storage in AuthConfig.APIKeyHash.
func HashAPIKey(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
