// Package engine implements the ticket lifecycle: issuance, resale listing,
// resale purchase, validate-and-burn, price administration and the treasury.
//
// All mutating calls are serialized behind one writer lock. Each call checks
// every precondition first, then hands a single commit (event plus money
// transfers) to the journal, and only after the journal accepts it applies
// the event to memory. A rejected call or a journal failure leaves state
// untouched. Queries take the read lock and see the last committed state.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/eventpass/backend/internal/clock"
	"github.com/eventpass/backend/internal/models"
)

var tracer = otel.Tracer("github.com/eventpass/backend/internal/engine")

// Journal durably records a commit. Commit is called with the writer lock
// held, in commit order; a non-nil error aborts the call.
type Journal interface {
	Commit(ctx context.Context, c models.Commit) error
}

// Observer is notified of outcomes, typically to feed metrics.
type Observer interface {
	Committed(op Operation, ev models.Event)
	Rejected(op Operation, err error)
	TreasuryChanged(balance models.Amount)
}

type discardJournal struct{}

func (discardJournal) Commit(context.Context, models.Commit) error { return nil }

type nopObserver struct{}

func (nopObserver) Committed(Operation, models.Event) {}
func (nopObserver) Rejected(Operation, error)         {}
func (nopObserver) TreasuryChanged(models.Amount)     {}

// Option configures an Engine.
type Option func(*Engine)

func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithJournal(j Journal) Option {
	return func(e *Engine) { e.journal = j }
}

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.obs = o }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// Engine owns all ticket state. Create it with New.
type Engine struct {
	mu sync.RWMutex

	cfg     Config
	gated   map[Operation]bool
	clock   clock.Clock
	journal Journal
	obs     Observer
	log     *slog.Logger

	seq      int64
	prices   priceTable
	activity activityTracker
	tickets  ticketTable
	market   market
	treasury treasury
}

// New builds an engine with an empty ledger and cfg's price table.
func New(cfg Config, opts ...Option) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:      cfg,
		gated:    make(map[Operation]bool, len(cfg.CooldownScope)),
		clock:    clock.Real(),
		journal:  discardJournal{},
		obs:      nopObserver{},
		prices:   priceTable{prices: cfg.Prices},
		activity: newActivityTracker(),
		tickets:  newTicketTable(),
		market:   newMarket(),
	}
	for _, op := range cfg.CooldownScope {
		e.gated[op] = true
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// IsAdmin reports whether id is the administrative identity.
func (e *Engine) IsAdmin(id models.Identity) bool { return id == e.cfg.Admin }

func (e *Engine) startSpan(ctx context.Context, op Operation, caller models.Identity) (context.Context, trace.Span) {
	return tracer.Start(ctx, "engine."+string(op), trace.WithAttributes(
		attribute.String("eventpass.operation", string(op)),
		attribute.String("eventpass.caller", string(caller)),
	))
}

// reject records a failed precondition and returns err unchanged.
func (e *Engine) reject(span trace.Span, op Operation, err error) error {
	span.SetStatus(codes.Error, Kind(err))
	e.obs.Rejected(op, err)
	return err
}

// cooldownCheck returns ErrCooldownActive if op is gated and id is still cooling down.
// Must be called with the writer lock held.
func (e *Engine) cooldownCheck(op Operation, id models.Identity, now time.Time) error {
	if !e.gated[op] {
		return nil
	}
	if e.activity.canAct(id, now, e.cfg.Cooldown) {
		return nil
	}
	ready := e.activity.readyAt(id, e.cfg.Cooldown)
	return fmt.Errorf("%w: %s may act again in %s", ErrCooldownActive, id, ready.Sub(now).Round(time.Second))
}

// commit assigns the next sequence number, journals the event with its
// transfers and applies it. Must be called with the writer lock held.
func (e *Engine) commit(ctx context.Context, span trace.Span, op Operation, ev models.Event, transfers []models.Transfer) (models.Event, error) {
	ev.Seq = e.seq + 1
	for i := range transfers {
		transfers[i].EventSeq = ev.Seq
		transfers[i].CreatedAt = ev.At
	}
	if err := e.journal.Commit(ctx, models.Commit{Event: ev, Transfers: transfers}); err != nil {
		e.log.ErrorContext(ctx, "journal commit failed", "operation", op, "seq", ev.Seq, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "journal")
		return models.Event{}, fmt.Errorf("journal commit: %w", err)
	}
	if err := e.apply(ev); err != nil {
		// The event was validated above; failing here means the engine is corrupt.
		panic(fmt.Sprintf("engine: apply committed event %d: %v", ev.Seq, err))
	}
	span.SetAttributes(attribute.Int64("eventpass.seq", ev.Seq))
	e.obs.Committed(op, ev)
	return ev, nil
}

// apply mutates state for one committed event. It is shared by live calls
// and Restore, so replaying the journal reproduces the same state.
func (e *Engine) apply(ev models.Event) error {
	switch ev.Kind {
	case models.EventTicketPurchased:
		if !ev.Tier.Valid() {
			return fmt.Errorf("unknown tier %d", uint8(ev.Tier))
		}
		if ev.TicketID != e.tickets.nextID() {
			return fmt.Errorf("ticket id %d out of sequence, expected %d", ev.TicketID, e.tickets.nextID())
		}
		e.tickets.mint(models.Ticket{
			ID:            ev.TicketID,
			Tier:          ev.Tier,
			Owner:         ev.Actor,
			PurchasePrice: ev.Amount,
			MintedAt:      ev.At,
			Reference:     ev.Reference,
		})
		e.treasury.deposit(ev.Amount)
		e.touch(OpIssue, ev)
		e.obs.TreasuryChanged(e.treasury.balance)

	case models.EventTicketListed:
		if _, ok := e.tickets.live(ev.TicketID); !ok {
			return fmt.Errorf("listing unknown ticket %d", ev.TicketID)
		}
		e.market.put(models.Listing{TicketID: ev.TicketID, Seller: ev.Actor, Price: ev.Amount})
		e.touch(OpList, ev)

	case models.EventTicketResold:
		tk, ok := e.tickets.live(ev.TicketID)
		if !ok {
			return fmt.Errorf("reselling unknown ticket %d", ev.TicketID)
		}
		e.tickets.transfer(ev.TicketID, ev.Actor)
		tk.ResaleCount++
		e.market.deactivate(ev.TicketID)
		e.treasury.deposit(ev.Amount)
		e.touch(OpBuyResale, ev)
		e.obs.TreasuryChanged(e.treasury.balance)

	case models.EventTicketValidated:
		if _, ok := e.tickets.live(ev.TicketID); !ok {
			return fmt.Errorf("validating unknown ticket %d", ev.TicketID)
		}
		e.tickets.burn(ev.TicketID)
		e.market.deactivate(ev.TicketID)
		e.touch(OpValidate, ev)

	case models.EventPriceUpdated:
		if !ev.Tier.Valid() || ev.Amount < 0 {
			return fmt.Errorf("invalid price update %s=%d", ev.Tier, ev.Amount)
		}
		e.prices.set(ev.Tier, ev.Amount)

	case models.EventWithdrawn:
		if ev.Amount != e.treasury.balance {
			return fmt.Errorf("withdrawal of %d does not match treasury balance %d", ev.Amount, e.treasury.balance)
		}
		e.treasury.drain()
		e.obs.TreasuryChanged(0)

	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	e.seq = ev.Seq
	return nil
}

func (e *Engine) touch(op Operation, ev models.Event) {
	if e.gated[op] {
		e.activity.record(ev.Actor, ev.At)
	}
}
