package middleware

import (
	"context"
	"net/http"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/Roygautam8852/SyncSpace/auth"
	"github.com/Roygautam8852/SyncSpace/config"
	"github.com/Roygautam8852/SyncSpace/internal/logx"
)

// Auth resolves the request identity. With no verifier configured the
// request passes through anonymous.
func Auth(v *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !v.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			id, err := v.Verify(r.Context(), auth.FromRequest(r))
			if err != nil {
				logx.From(r.Context()).Debug("auth rejected", zap.Error(err))
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), config.ContextUserIDKey, id.UserID)
			ctx = context.WithValue(ctx, config.ContextUserNameKey, id.Name)
			ctx = logx.With(ctx, zap.String("user", id.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFrom returns the identity Auth stored, empty when anonymous.
func UserFrom(ctx context.Context) (userID, name string) {
	userID, _ = ctx.Value(config.ContextUserIDKey).(string)
	name, _ = ctx.Value(config.ContextUserNameKey).(string)
	return userID, name
}

func CORS(allowed []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	return c.Handler
}
