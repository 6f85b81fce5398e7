// Package middleware holds optional cross-cutting HTTP behavior (bearer
// auth, per-client rate limiting), adapted from fluxor's
// pkg/web/middleware/auth and pkg/web/middleware/security onto
// httpapi.RequestContext.
package middleware

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kissvdb/kissvdb/internal/httpapi"
)

const ClaimsKey = "jwt_claims"

// JWTConfig configures bearer-token authentication (spec §6 optional
// auth, off by default).
type JWTConfig struct {
	Secret    string
	SkipPaths []string
}

// JWT validates an HS256 bearer token on every request not in SkipPaths.
func JWT(cfg JWTConfig) httpapi.Middleware {
	secret := []byte(cfg.Secret)
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return secret, nil
	}

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

			token, err := jwt.ParseWithClaims(parts[1], jwt.MapClaims{}, keyFunc, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				return unauthorized(ctx)
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return unauthorized(ctx)
			}
			ctx.Set(ClaimsKey, claims)
			return next(ctx)
		}
	}
}

func unauthorized(ctx *httpapi.RequestContext) error {
	ctx.Response.Header.Set("WWW-Authenticate", `Bearer realm="kissvdb", error="invalid_token"`)
	return ctx.JSON(401, map[string]string{"error": "unauthorized", "message": "invalid or missing bearer token"})
}
