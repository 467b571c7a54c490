// Package idempotency makes POST /orders safe to retry under an
// Idempotency-Key header.
package idempotency

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/apperr"
)

// Decision is the outcome of Claim. Exactly one of Claimed or Existing is set.
type Decision struct {
	Claimed  bool
	Existing *Record
}

// Guard wraps a Store. Bookkeeping failures after the order has been
// decided are logged, never surfaced.
type Guard struct {
	store Store
	log   logrus.FieldLogger
}

// NewGuard returns a Guard over store.
func NewGuard(store Store, log logrus.FieldLogger) *Guard {
	return &Guard{store: store, log: log}
}

// Claim tries to take key for a new attempt.
func (g *Guard) Claim(ctx context.Context, key string) (Decision, error) {
	created, err := g.store.CreateIfNotExists(ctx, key)
	if err != nil {
		return Decision{}, apperr.Upstream("idempotency", err)
	}
	if created {
		return Decision{Claimed: true}, nil
	}
	rec, err := g.store.Get(ctx, key)
	if err != nil {
		return Decision{}, apperr.Upstream("idempotency", err)
	}
	if rec == nil {
		// expired between the two calls
		return Decision{}, apperr.Upstream("idempotency", fmt.Errorf("record %s vanished", key))
	}
	return Decision{Existing: rec}, nil
}

// Done stores the replayable response of a successful attempt.
func (g *Guard) Done(ctx context.Context, key, orderID, body string, status int) {
	if err := g.store.MarkDone(ctx, key, orderID, body, status); err != nil {
		g.log.WithError(apperr.Upstream("idempotency", err)).WithField("idempotency_key", key).
			Warn("could not mark idempotency key done")
	}
}

// Fail releases key so the client may retry.
func (g *Guard) Fail(ctx context.Context, key, note string) {
	if err := g.store.MarkFailed(ctx, key, note); err != nil {
		g.log.WithError(apperr.Upstream("idempotency", err)).WithField("idempotency_key", key).
			Warn("could not mark idempotency key failed")
	}
}
