package auth

import (
	"context"
	"net/http"
	"strings"

	"hyperadmin/internal/httpx"
)

type contextKey string

const adminContextKey contextKey = "hyperadmin_admin"

func WithAdmin(ctx context.Context, a *Admin) context.Context {
	return context.WithValue(ctx, adminContextKey, a)
}

func AdminFromContext(ctx context.Context) (*Admin, bool) {
	a, ok := ctx.Value(adminContextKey).(*Admin)
	return a, ok
}

// JWTMiddleware rejects requests without a valid bearer token before they
// reach any handler.
func JWTMiddleware(svc *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			scheme, token, ok := strings.Cut(h, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				unauthorized(w)
				return
			}
			claims, err := svc.ParseToken(strings.TrimSpace(token))
			if err != nil {
				unauthorized(w)
				return
			}
			admin := &Admin{
				ID:       claims.UserID,
				Username: claims.Username,
				Role:     claims.Role,
			}
			next.ServeHTTP(w, r.WithContext(WithAdmin(r.Context(), admin)))
		})
	}
}

// RequireRole admits only authenticated admins holding one of roles.
func RequireRole(roles ...Role) func(http.Handler) http.Handler {
	allowed := make(map[Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			admin, ok := AdminFromContext(r.Context())
			if !ok {
				unauthorized(w)
				return
			}
			if _, ok := allowed[admin.Role]; !ok {
				httpx.Error(w, http.StatusForbidden, ErrInsufficientRole.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	httpx.Error(w, http.StatusUnauthorized, ErrInvalidToken.Error())
}
