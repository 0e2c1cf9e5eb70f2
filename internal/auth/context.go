package auth

import (
	"context"

	"github.com/joao-fontenele/marketplace/internal/domain"
)

type actorKey struct{}

func WithActor(ctx context.Context, u *domain.User) context.Context {
	return context.WithValue(ctx, actorKey{}, u)
}

// ActorFrom returns the authenticated user attached to the context, if any.
func ActorFrom(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(actorKey{}).(*domain.User)
	return u, ok && u != nil
}
