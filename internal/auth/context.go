package auth

import (
	"context"

	"github.com/vidtube/backend/internal/models"
)

type ctxKeyUser struct{}

// WithUser stores the authenticated user on the context. Credential fields are
// cleared so downstream handlers never see them.
func WithUser(ctx context.Context, user models.User) context.Context {
	user.Password = ""
	user.RefreshToken = ""
	return context.WithValue(ctx, ctxKeyUser{}, user)
}

// UserFromContext returns the authenticated user attached by the session middleware.
func UserFromContext(ctx context.Context) (models.User, bool) {
	if ctx == nil {
		return models.User{}, false
	}
	user, ok := ctx.Value(ctxKeyUser{}).(models.User)
	return user, ok && user.ID != ""
}
