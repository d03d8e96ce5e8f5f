package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/goliatone/go-entity-repository/cache"
)

// LogHandler writes one structured entry per event.
func LogHandler(l *zap.Logger) Handler {
	if l == nil {
		l = zap.NewNop()
	}
	return HandlerFunc(func(ctx context.Context, ev Event) error {
		l.Info("ENTITY/"+string(ev.Kind),
			zap.String("event_id", ev.ID.String()),
			zap.String("entity", ev.EntityName),
			zap.Int64("entity_id", ev.EntityID),
			zap.Time("occurred_at", ev.OccurredAt),
		)
		return nil
	})
}

// CacheInvalidator drops every key cached for the mutated entity type under namespace.
func CacheInvalidator(svc cache.CacheService, namespace string) Handler {
	return HandlerFunc(func(ctx context.Context, ev Event) error {
		return svc.DeleteByPrefix(ctx, cache.Prefix(namespace, ev.EntityName))
	})
}
