package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	guardProvider = "stripe"
	guardDone     = "done"
)

// EventKeyStore is the Redis surface used to remember reconciled event ids.
type EventKeyStore interface {
	Get(context.Context, string) (string, error)
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	WebhookEventKey(provider, eventID string) string
}

// EventGuard remembers event ids whose reconciliation already committed, so
// redeliveries are acknowledged without reaching the database. Nothing is
// stored before the ledger call succeeds.
type EventGuard struct {
	store EventKeyStore
	ttl   time.Duration
}

func NewEventGuard(store EventKeyStore, ttl time.Duration) (*EventGuard, error) {
	if store == nil {
		return nil, errors.New("event key store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &EventGuard{store: store, ttl: ttl}, nil
}

// Completed reports whether eventID was already reconciled.
func (g *EventGuard) Completed(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	value, err := g.store.Get(ctx, g.store.WebhookEventKey(guardProvider, eventID))
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("read webhook event marker: %w", err)
	}
	return value == guardDone, nil
}

// MarkCompleted records eventID after its ledger row committed.
func (g *EventGuard) MarkCompleted(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	if _, err := g.store.SetNX(ctx, g.store.WebhookEventKey(guardProvider, eventID), guardDone, g.ttl); err != nil {
		return fmt.Errorf("mark webhook event: %w", err)
	}
	return nil
}
