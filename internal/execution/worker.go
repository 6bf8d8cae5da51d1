// Package execution runs the background job that delivers committed ticket
// events to the configured sinks.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/eventpass/backend/internal/events"
	"github.com/eventpass/backend/internal/models"
)

// QueueTicketEvents is served by exactly one worker so events leave in seq order.
const QueueTicketEvents = "ticket_events"

// DeliverEventArgs is enqueued in the same transaction that journals the event.
type DeliverEventArgs struct {
	Event models.Event `json:"event"`
}

func (DeliverEventArgs) Kind() string { return "deliver_ticket_event" }

// InsertOpts keeps one delivery job per event seq even if a commit is retried.
func (a DeliverEventArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       QueueTicketEvents,
		MaxAttempts: 10,
		UniqueOpts:  river.UniqueOpts{ByArgs: true},
	}
}

// Cursors records, per sink, the seq of the last event handed to it.
// Delivered reports ok=false for a sink that has never been advanced.
type Cursors interface {
	Delivered(ctx context.Context, sink string) (seq int64, ok bool, err error)
	Advance(ctx context.Context, sink string, seq int64) error
}

// DeliverEventWorker publishes each event to every sink in seq order. A sink
// that already has the event is skipped, so a retry after a partial failure
// only reaches the sinks that missed it. An event whose predecessor has not
// reached a sink yet is snoozed until it has.
type DeliverEventWorker struct {
	river.WorkerDefaults[DeliverEventArgs]
	sinks   []events.Sink
	cursors Cursors
	snooze  time.Duration
	logger  *slog.Logger
}

func NewDeliverEventWorker(sinks []events.Sink, cursors Cursors, logger *slog.Logger) *DeliverEventWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeliverEventWorker{sinks: sinks, cursors: cursors, snooze: 2 * time.Second, logger: logger}
}

func (w *DeliverEventWorker) Timeout(*river.Job[DeliverEventArgs]) time.Duration {
	return time.Minute
}

func (w *DeliverEventWorker) Work(ctx context.Context, job *river.Job[DeliverEventArgs]) error {
	ev := job.Args.Event
	final := job.Attempt >= job.MaxAttempts
	var failed []error
	for _, s := range w.sinks {
		last, ok, err := w.cursors.Delivered(ctx, s.Name)
		if err != nil {
			return fmt.Errorf("read %s cursor: %w", s.Name, err)
		}
		if !ok {
			// A new sink starts at the event in hand.
			last = ev.Seq - 1
		}
		if last >= ev.Seq {
			continue
		}
		if last < ev.Seq-1 {
			w.logger.DebugContext(ctx, "ticket event waiting for predecessor", "seq", ev.Seq, "sink", s.Name, "delivered", last)
			return river.JobSnooze(w.snooze)
		}

		err = s.Publish(ctx, ev)
		switch {
		case err == nil:
			w.logger.DebugContext(ctx, "ticket event delivered", "seq", ev.Seq, "kind", ev.Kind, "sink", s.Name, "attempt", job.Attempt)
		case errors.Is(err, events.ErrPermanent) || final:
			w.logger.ErrorContext(ctx, "ticket event dropped", "seq", ev.Seq, "kind", ev.Kind, "sink", s.Name, "attempt", job.Attempt, "error", err)
		default:
			w.logger.WarnContext(ctx, "ticket event delivery failed", "seq", ev.Seq, "kind", ev.Kind, "sink", s.Name, "attempt", job.Attempt, "error", err)
			failed = append(failed, fmt.Errorf("%s: %w", s.Name, err))
			continue
		}
		if err := w.cursors.Advance(ctx, s.Name, ev.Seq); err != nil {
			return fmt.Errorf("advance %s cursor: %w", s.Name, err)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("deliver event %d: %w", ev.Seq, errors.Join(failed...))
	}
	return nil
}
