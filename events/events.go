// Package events carries entity mutation notifications from repositories to
// whoever needs to react: loggers, cache invalidation, message brokers.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-entity-repository/cache"
)

// Publisher is notified synchronously after a mutation reached the store.
// A returned error surfaces to the repository caller; the mutation stays committed.
type Publisher interface {
	EntityInserted(ctx context.Context, entity any) error
	EntityUpdated(ctx context.Context, entity any) error
	EntityDeleted(ctx context.Context, entity any) error
}

// Kind names a mutation.
type Kind string

const (
	KindInserted Kind = "inserted"
	KindUpdated  Kind = "updated"
	KindDeleted  Kind = "deleted"
)

// Event describes one entity mutation.
type Event struct {
	ID         uuid.UUID
	Kind       Kind
	EntityName string
	EntityID   int64
	Entity     any
	OccurredAt time.Time
}

// Named lets an entity override the name derived from its type.
type Named interface {
	EntityName() string
}

type identified interface {
	GetID() int64
}

// NewEvent builds an Event for entity.
func NewEvent(kind Kind, entity any) Event {
	ev := Event{
		ID:         uuid.New(),
		Kind:       kind,
		Entity:     entity,
		EntityName: NameOf(entity),
		OccurredAt: time.Now().UTC(),
	}
	if e, ok := entity.(identified); ok {
		ev.EntityID = e.GetID()
	}
	return ev
}

// NameOf returns the entity name used in events and cache keys.
func NameOf(entity any) string {
	if n, ok := entity.(Named); ok {
		if name := n.EntityName(); name != "" {
			return name
		}
	}
	return cache.EntityName(entity)
}

// Nop discards every notification.
type Nop struct{}

func (Nop) EntityInserted(context.Context, any) error { return nil }

func (Nop) EntityUpdated(context.Context, any) error { return nil }

func (Nop) EntityDeleted(context.Context, any) error { return nil }
