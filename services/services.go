package services

import (
	"context"
	"errors"
	"log"

	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/apperrors"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/bus"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/models"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/bajrang-5734/Multiplayer-Quiz-Battle/services")

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan records err on span before ending it. Domain errors are marked
// as errors only when they are internal failures.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.SetAttributes(attribute.String("mcq.error_code", string(apperrors.CodeOf(err))))
		if apperrors.CodeOf(err) == apperrors.CodeInternal {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}

// notify publishes an event after the store mutation has committed.
// Failures are logged and never returned to the caller.
func notify(ctx context.Context, pub bus.Publisher, topic, event string, payload interface{}) {
	if err := pub.Publish(ctx, topic, event, payload); err != nil {
		log.Printf("Failed to publish %s on %s: %v", event, topic, err)
	}
}

// storeError converts a store failure into a domain error. ErrNotFound
// becomes NotFound with msg; anything else is internal.
func storeError(err error, msg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFound(msg)
	}
	return apperrors.Internal(err)
}

func getGame(ctx context.Context, st store.Store, gameID string) (*models.Game, error) {
	game, err := st.GetGame(ctx, gameID)
	if err != nil {
		return nil, storeError(err, "game not found")
	}
	return game, nil
}

// getHostedGame loads a game and checks that userID hosts it.
func getHostedGame(ctx context.Context, st store.Store, gameID, userID, action string) (*models.Game, error) {
	game, err := getGame(ctx, st, gameID)
	if err != nil {
		return nil, err
	}
	if game.HostID != userID {
		return nil, apperrors.Forbidden("only the game host can " + action)
	}
	return game, nil
}
