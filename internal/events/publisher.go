// Package events delivers committed ticket events to downstream consumers:
// an HTTP webhook, a Kafka topic and a Redis stream.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/eventpass/backend/internal/models"
)

// ErrPermanent marks a delivery failure that will not succeed on retry.
var ErrPermanent = errors.New("permanent delivery failure")

// Publisher sends one committed event somewhere. Implementations must be
// idempotent per event seq, since delivery is at least once.
type Publisher interface {
	Publish(ctx context.Context, ev models.Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ev models.Event) error

func (f PublisherFunc) Publish(ctx context.Context, ev models.Event) error { return f(ctx, ev) }

// Sink names a publisher so its delivery position can be tracked on its own.
type Sink struct {
	Name string
	Publisher
}

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(context.Context, models.Event) error { return nil })

// Encode returns the wire form shared by every publisher.
func Encode(ev models.Event) ([]byte, error) {
	return json.Marshal(ev)
}

// key is the partition/dedup key: events of one ticket stay ordered.
func key(ev models.Event) string {
	if ev.TicketID != 0 {
		return "ticket-" + strconv.FormatUint(uint64(ev.TicketID), 10)
	}
	return "admin"
}

// Multi publishes to every publisher in order and joins their errors. It
// suits synchronous delivery where no per-sink position is kept.
// The joined error is permanent only if every failure was; otherwise the
// ErrPermanent marker is dropped so the delivery is retried.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev models.Event) error {
	var errs []error
	permanent := true
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
			if !errors.Is(err, ErrPermanent) {
				permanent = false
			}
		}
	}
	switch {
	case len(errs) == 0:
		return nil
	case permanent:
		return errors.Join(errs...)
	default:
		return fmt.Errorf("%d of %d publishers failed: %v", len(errs), len(m), errors.Join(errs...))
	}
}
