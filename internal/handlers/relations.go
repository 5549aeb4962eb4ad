package handlers

import (
	"context"
	"errors"

	"github.com/vidtube/backend/internal/apierr"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/relations"
	"github.com/vidtube/backend/internal/repositories"
)

// NewRelationEngine registers the like and subscription kinds with their target
// resolvers so toggles report what was liked or subscribed to.
func NewRelationEngine(store relations.Store, videos VideoStore, comments CommentStore, tweets TweetStore, users UserStore) *relations.Engine {
	targets := map[relations.Kind]relations.Target{
		relations.KindVideo: {
			Message: "Video like toggled successfully",
			Resolve: func(ctx context.Context, id string) (any, error) {
				return resolved(videos.FindWithOwner(ctx, id))
			},
		},
		relations.KindComment: {
			Message: "Comment like toggled successfully",
			Resolve: func(ctx context.Context, id string) (any, error) {
				return resolved(comments.FindByID(ctx, id))
			},
		},
		relations.KindTweet: {
			Message: "Tweet like toggled successfully",
			Resolve: func(ctx context.Context, id string) (any, error) {
				return resolved(tweets.FindByID(ctx, id))
			},
		},
		relations.KindChannel: {
			Message:    "Subscription toggled successfully",
			ForbidSelf: true,
			Resolve: func(ctx context.Context, id string) (any, error) {
				user, err := users.FindByID(ctx, id)
				if err != nil {
					return resolved(user, err)
				}
				return user.Summary(), nil
			},
		},
	}
	return relations.NewEngine(store, targets, relations.Options{ValidID: models.IsValidID, NewID: models.NewID})
}

func resolved[T any](value T, err error) (any, error) {
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, relations.ErrTargetNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// toggleMessages holds the client-facing failures for one relation kind.
type toggleMessages struct {
	invalid  string
	notFound string
	self     string
}

func toggleRelation(ctx context.Context, toggler RelationToggler, actor string, kind relations.Kind, target string, msgs toggleMessages) (relations.Result, error) {
	if err := requireID(target, msgs.invalid); err != nil {
		return relations.Result{}, err
	}
	result, err := toggler.Toggle(ctx, actor, kind, target)
	switch {
	case err == nil:
	case errors.Is(err, relations.ErrInvalidIdentifier):
		return relations.Result{}, apierr.Validation(msgs.invalid)
	case errors.Is(err, relations.ErrSelfRelation):
		return relations.Result{}, apierr.Validation(msgs.self)
	case errors.Is(err, relations.ErrTargetNotFound):
		return relations.Result{}, apierr.NotFound(msgs.notFound)
	default:
		return relations.Result{}, err
	}

	state := "off"
	if result.Active {
		state = "on"
	}
	metrics.RelationTogglesTotal.WithLabelValues(string(kind), state).Inc()
	return result, nil
}
