package httpx

import (
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/apperr"
	"github.com/ariefcatur/go-realtime-pos/internal/auth"
	"github.com/ariefcatur/go-realtime-pos/internal/logger"
	"github.com/go-chi/chi/v5/middleware"
)

// requestLogger scopes the logger to the request and logs its outcome. It runs
// after middleware.RequestID so the id is already set.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := log.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
			ctx = log.WithFields(ctx, map[string]any{"method": r.Method, "path": r.URL.Path})

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.Info(log.WithFields(ctx, map[string]any{
				"status":      status,
				"duration_ms": time.Since(start).Milliseconds(),
			}), "request.complete")
		})
	}
}

// identify attaches the bearer token's identity when one is sent. Requests
// without a token continue anonymously; a bad token is rejected.
func identify(v auth.Verifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			claims, err := v.Parse(token)
			if err != nil {
				writeError(r.Context(), log, w, apperr.Wrap(apperr.CodeUnauthorized, err, "invalid token"))
				return
			}
			ctx := auth.WithIdentity(r.Context(), auth.Identity{Subject: claims.Subject, Role: claims.Role})
			ctx = log.WithRole(ctx, string(claims.Role))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requireRole(log *logger.Logger, roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := allowed(auth.FromContext(r.Context()).Role, roles); err != nil {
				writeError(r.Context(), log, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func allowed(role auth.Role, roles []auth.Role) error {
	if role == auth.RoleNone {
		return apperr.New(apperr.CodeUnauthorized, "sign in required")
	}
	for _, want := range roles {
		if role == want {
			return nil
		}
	}
	return apperr.New(apperr.CodeForbidden, "role not allowed")
}
