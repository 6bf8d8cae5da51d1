package engine

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventpass/backend/internal/clock"
	"github.com/eventpass/backend/internal/models"
)

const (
	admin = models.Identity("admin")
	alice = models.Identity("alice")
	bob   = models.Identity("bob")
	carol = models.Identity("carol")

	early    = models.Amount(80_000_000)  // 0.08
	standard = models.Amount(100_000_000) // 0.10
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// recordingJournal keeps every commit and can be told to fail.
type recordingJournal struct {
	mu      sync.Mutex
	commits []models.Commit
	fail    error
}

func (j *recordingJournal) Commit(_ context.Context, c models.Commit) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.fail != nil {
		return j.fail
	}
	j.commits = append(j.commits, c)
	return nil
}

func (j *recordingJournal) events() []models.Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]models.Event, 0, len(j.commits))
	for _, c := range j.commits {
		out = append(out, c.Event)
	}
	return out
}

func newTestEngine(t *testing.T, mutate ...func(*Config)) (*Engine, *clock.Fake, *recordingJournal) {
	t.Helper()
	cfg := DefaultConfig(admin)
	for _, m := range mutate {
		m(&cfg)
	}
	clk := clock.NewFake(t0)
	j := &recordingJournal{}
	e, err := New(cfg, WithClock(clk), WithJournal(j))
	require.NoError(t, err)
	return e, clk, j
}

func issue(t *testing.T, e *Engine, who models.Identity, tier models.Tier, paid models.Amount) models.TicketID {
	t.Helper()
	r, err := e.Issue(context.Background(), who, tier, "ref", paid)
	require.NoError(t, err)
	return r.TicketID
}

// snapshot captures everything a query can observe.
type snapshot struct {
	Seq      int64
	Prices   [models.NumTiers]models.Amount
	Treasury models.Amount
	Holdings map[models.Identity][]models.Ticket
	Listings map[models.TicketID]models.Listing
}

func takeSnapshot(e *Engine, ids ...models.Identity) snapshot {
	s := snapshot{
		Seq:      e.Seq(),
		Prices:   e.Prices(),
		Treasury: e.TreasuryBalance(),
		Holdings: map[models.Identity][]models.Ticket{},
		Listings: map[models.TicketID]models.Listing{},
	}
	for _, id := range ids {
		s.Holdings[id] = e.TicketsOf(id)
	}
	for id := models.TicketID(1); id < e.tickets.nextID(); id++ {
		if l, err := e.Listing(id); err == nil {
			s.Listings[id] = l
		}
	}
	return s
}

func TestNew_RejectsBadConfig(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Admin: models.TreasuryIdentity})
	assert.Error(t, err)

	cfg := DefaultConfig(admin)
	cfg.CooldownScope = []Operation{OpWithdraw}
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestNew_AppliesDefaults(t *testing.T) {
	e, err := New(Config{Admin: admin, Prices: DefaultPrices()})
	require.NoError(t, err)
	cfg := e.Config()
	assert.Equal(t, DefaultCooldown, cfg.Cooldown)
	assert.Equal(t, DefaultLockPeriod, cfg.LockPeriod)
	assert.Equal(t, DefaultMaxPerWallet, cfg.MaxPerWallet)
	assert.ElementsMatch(t, DefaultCooldownScope(), cfg.CooldownScope)
	assert.True(t, e.IsAdmin(admin))
	assert.False(t, e.IsAdmin(alice))
}

func TestIssue_RefundsExcess(t *testing.T) {
	e, _, j := newTestEngine(t)

	r, err := e.Issue(context.Background(), alice, models.TierEarlyBird, "seat-12", 200_000_000)
	require.NoError(t, err)
	assert.Equal(t, models.TicketID(1), r.TicketID)
	assert.Equal(t, early, r.Price)
	assert.Equal(t, models.Amount(120_000_000), r.Refund)

	tk, err := e.Ticket(1)
	require.NoError(t, err)
	assert.Equal(t, alice, tk.Owner)
	assert.Equal(t, early, tk.PurchasePrice)
	assert.Equal(t, "seat-12", tk.Reference)
	assert.Equal(t, t0, tk.MintedAt)
	assert.Equal(t, early, e.TreasuryBalance())

	require.Len(t, j.commits, 1)
	c := j.commits[0]
	assert.Equal(t, models.EventTicketPurchased, c.Event.Kind)
	assert.Equal(t, int64(1), c.Event.Seq)
	require.Len(t, c.Transfers, 2)
	assert.Equal(t, models.TransferPayment, c.Transfers[0].EntryType)
	assert.Equal(t, models.Amount(200_000_000), c.Transfers[0].Amount)
	assert.Equal(t, models.TransferRefund, c.Transfers[1].EntryType)
	assert.Equal(t, models.Amount(120_000_000), c.Transfers[1].Amount)
	for _, tr := range c.Transfers {
		assert.Equal(t, int64(1), tr.EventSeq)
	}
}

func TestIssue_ExactPaymentHasNoRefund(t *testing.T) {
	e, _, j := newTestEngine(t)
	r, err := e.Issue(context.Background(), alice, models.TierStandard, "", standard)
	require.NoError(t, err)
	assert.Zero(t, r.Refund)
	require.Len(t, j.commits, 1)
	assert.Len(t, j.commits[0].Transfers, 1)
}

func TestIssue_InsufficientPayment(t *testing.T) {
	e, _, j := newTestEngine(t)
	_, err := e.Issue(context.Background(), alice, models.TierEarlyBird, "", early-1)
	assert.ErrorIs(t, err, ErrInsufficientPayment)
	assert.Equal(t, "insufficient_payment", Kind(err))
	assert.Empty(t, j.commits)
	assert.Zero(t, e.BalanceOf(alice))
	assert.True(t, e.CanAct(alice), "a rejected call must not start the cooldown")
}

func TestIssue_MonotoneIDs(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	var prev models.TicketID
	for _, who := range []models.Identity{alice, bob, carol, alice, bob} {
		id := issue(t, e, who, models.TierStandard, standard)
		assert.Greater(t, id, prev)
		prev = id
		clk.Advance(DefaultCooldown)
	}
	assert.Equal(t, models.TicketID(5), prev)
}

func TestIssue_WalletCap(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	for i := 0; i < DefaultMaxPerWallet; i++ {
		issue(t, e, alice, models.TierEarlyBird, early)
		clk.Advance(DefaultCooldown)
	}
	_, err := e.Issue(context.Background(), alice, models.TierEarlyBird, "", early)
	assert.ErrorIs(t, err, ErrWalletLimitExceeded)
	assert.Equal(t, DefaultMaxPerWallet, e.BalanceOf(alice))
}

func TestIssue_BurnFreesWalletSlotButNotID(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	for i := 0; i < DefaultMaxPerWallet; i++ {
		issue(t, e, alice, models.TierEarlyBird, early)
		clk.Advance(DefaultCooldown)
	}
	require.NoError(t, e.ValidateAndBurn(context.Background(), alice, 2))
	clk.Advance(DefaultCooldown)

	id := issue(t, e, alice, models.TierEarlyBird, early)
	assert.Equal(t, models.TicketID(5), id)
	assert.Equal(t, DefaultMaxPerWallet, e.BalanceOf(alice))

	_, err := e.Ticket(2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIssue_Cooldown(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	issue(t, e, alice, models.TierEarlyBird, early)

	clk.Advance(DefaultCooldown - time.Second)
	assert.False(t, e.CanAct(alice))
	_, err := e.Issue(context.Background(), alice, models.TierEarlyBird, "", early)
	assert.ErrorIs(t, err, ErrCooldownActive)

	// Other identities are unaffected.
	issue(t, e, bob, models.TierEarlyBird, early)

	clk.Advance(time.Second)
	assert.True(t, e.CanAct(alice))
	issue(t, e, alice, models.TierEarlyBird, early)
}

func TestIssue_UsesPriceAtCallTime(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	id := issue(t, e, alice, models.TierVIP, 250_000_000)

	require.NoError(t, e.UpdatePrice(context.Background(), admin, models.TierVIP, 300_000_000))
	clk.Advance(DefaultCooldown)

	_, err := e.Issue(context.Background(), alice, models.TierVIP, "", 250_000_000)
	assert.ErrorIs(t, err, ErrInsufficientPayment)

	tk, err := e.Ticket(id)
	require.NoError(t, err)
	assert.Equal(t, models.Amount(250_000_000), tk.PurchasePrice, "existing tickets keep their purchase price")
}

func TestIssue_InvalidTierPanics(t *testing.T) {
	e, _, _ := newTestEngine(t)
	assert.Panics(t, func() {
		_, _ = e.Issue(context.Background(), alice, models.Tier(9), "", early)
	})
}

func TestList_Lock(t *testing.T) {
	e, clk, _ := newTestEngine(t, func(c *Config) { c.Cooldown = time.Minute })
	id := issue(t, e, alice, models.TierEarlyBird, early)

	clk.Advance(DefaultLockPeriod - time.Second)
	ok, err := e.CanResell(id)
	require.NoError(t, err)
	assert.False(t, ok)
	err = e.List(context.Background(), alice, id, early)
	assert.ErrorIs(t, err, ErrStillLocked)

	clk.Advance(time.Second)
	ok, err = e.CanResell(id)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, e.List(context.Background(), alice, id, early))

	_, err = e.CanResell(99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_LockWinsOverCooldown(t *testing.T) {
	e, _, _ := newTestEngine(t)
	id := issue(t, e, alice, models.TierEarlyBird, early)
	// alice is also cooling down; the lock is reported first.
	err := e.List(context.Background(), alice, id, early)
	assert.ErrorIs(t, err, ErrStillLocked)
}

func TestList_MarkupCap(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	id := issue(t, e, alice, models.TierEarlyBird, early)
	clk.Advance(DefaultLockPeriod)

	err := e.List(context.Background(), alice, id, 100_000_000)
	assert.ErrorIs(t, err, ErrMarkupExceeded)

	err = e.List(context.Background(), alice, id, 96_000_001)
	assert.ErrorIs(t, err, ErrMarkupExceeded)

	require.NoError(t, e.List(context.Background(), alice, id, 96_000_000))
	l, err := e.Listing(id)
	require.NoError(t, err)
	assert.True(t, l.Active)
	assert.Equal(t, alice, l.Seller)
	assert.Equal(t, models.Amount(96_000_000), l.Price)
}

func TestList_BelowPurchasePriceAllowed(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	id := issue(t, e, alice, models.TierEarlyBird, early)
	clk.Advance(DefaultLockPeriod)
	require.NoError(t, e.List(context.Background(), alice, id, 0))
}

func TestList_Relist(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	id := issue(t, e, alice, models.TierEarlyBird, early)
	clk.Advance(DefaultLockPeriod)
	require.NoError(t, e.List(context.Background(), alice, id, 90_000_000))
	clk.Advance(DefaultCooldown)
	require.NoError(t, e.List(context.Background(), alice, id, 85_000_000))

	l, err := e.Listing(id)
	require.NoError(t, err)
	assert.Equal(t, models.Amount(85_000_000), l.Price)
}

func TestList_Rejections(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	id := issue(t, e, alice, models.TierEarlyBird, early)
	clk.Advance(DefaultLockPeriod)

	err := e.List(context.Background(), bob, id, early)
	assert.ErrorIs(t, err, ErrNotOwner)

	err = e.List(context.Background(), alice, 42, early)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Panics(t, func() { _ = e.List(context.Background(), alice, id, -1) })
}

func TestListing_NeverListed(t *testing.T) {
	e, _, _ := newTestEngine(t)
	id := issue(t, e, alice, models.TierEarlyBird, early)
	_, err := e.Listing(id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func listAndAge(t *testing.T, e *Engine, clk *clock.Fake, seller models.Identity, id models.TicketID, price models.Amount) {
	t.Helper()
	clk.Advance(DefaultLockPeriod)
	require.NoError(t, e.List(context.Background(), seller, id, price))
	clk.Advance(DefaultCooldown)
}

func TestBuyResale_TransfersAndRefunds(t *testing.T) {
	e, clk, j := newTestEngine(t)
	id := issue(t, e, alice, models.TierEarlyBird, early)
	listAndAge(t, e, clk, alice, id, 96_000_000)

	r, err := e.BuyResale(context.Background(), bob, id, 200_000_000)
	require.NoError(t, err)
	assert.Equal(t, id, r.TicketID)
	assert.Equal(t, models.Amount(96_000_000), r.Price)
	assert.Equal(t, models.Amount(104_000_000), r.Refund)

	owner, err := e.OwnerOf(id)
	require.NoError(t, err)
	assert.Equal(t, bob, owner)
	assert.Zero(t, e.BalanceOf(alice))
	assert.Equal(t, 1, e.BalanceOf(bob))

	l, err := e.Listing(id)
	require.NoError(t, err)
	assert.False(t, l.Active)

	tk, err := e.Ticket(id)
	require.NoError(t, err)
	assert.Equal(t, 1, tk.ResaleCount)
	assert.Equal(t, early, tk.PurchasePrice)

	assert.Equal(t, early+96_000_000, e.TreasuryBalance())

	last := j.commits[len(j.commits)-1]
	assert.Equal(t, models.EventTicketResold, last.Event.Kind)
	assert.Equal(t, bob, last.Event.Actor)
	assert.Equal(t, alice, last.Event.Counterparty)
}

func TestBuyResale_SingleResale(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	id := issue(t, e, alice, models.TierEarlyBird, early)
	listAndAge(t, e, clk, alice, id, early)
	_, err := e.BuyResale(context.Background(), bob, id, early)
	require.NoError(t, err)

	clk.Advance(DefaultLockPeriod)
	err = e.List(context.Background(), bob, id, early)
	assert.ErrorIs(t, err, ErrAlreadyResold)

	_, err = e.BuyResale(context.Background(), carol, id, early)
	assert.ErrorIs(t, err, ErrListingNotActive)
}

func TestBuyResale_Rejections(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	id := issue(t, e, alice, models.TierEarlyBird, early)

	_, err := e.BuyResale(context.Background(), bob, id, early)
	assert.ErrorIs(t, err, ErrListingNotActive)

	listAndAge(t, e, clk, alice, id, 90_000_000)

	_, err = e.BuyResale(context.Background(), bob, id, 89_999_999)
	assert.ErrorIs(t, err, ErrInsufficientPayment)

	for i := 0; i < DefaultMaxPerWallet; i++ {
		issue(t, e, carol, models.TierStandard, standard)
		clk.Advance(DefaultCooldown)
	}
	_, err = e.BuyResale(context.Background(), carol, id, 90_000_000)
	assert.ErrorIs(t, err, ErrWalletLimitExceeded)

	owner, err := e.OwnerOf(id)
	require.NoError(t, err)
	assert.Equal(t, alice, owner)
}

func TestBuyResale_SellerAtCapMayBuyBack(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	var first models.TicketID
	for i := 0; i < DefaultMaxPerWallet; i++ {
		id := issue(t, e, alice, models.TierEarlyBird, early)
		if i == 0 {
			first = id
		}
		clk.Advance(DefaultCooldown)
	}
	listAndAge(t, e, clk, alice, first, early)
	_, err := e.BuyResale(context.Background(), alice, first, early)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxPerWallet, e.BalanceOf(alice))
}

func TestBuyResale_BuyerCooldown(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	id := issue(t, e, alice, models.TierEarlyBird, early)
	listAndAge(t, e, clk, alice, id, early)

	issue(t, e, bob, models.TierEarlyBird, early)
	_, err := e.BuyResale(context.Background(), bob, id, early)
	assert.ErrorIs(t, err, ErrCooldownActive)
}

func TestValidateAndBurn(t *testing.T) {
	e, clk, j := newTestEngine(t)
	id := issue(t, e, alice, models.TierPremium, 150_000_000)
	clk.Advance(DefaultCooldown)

	err := e.ValidateAndBurn(context.Background(), bob, id)
	assert.ErrorIs(t, err, ErrNotOwner)
	assert.True(t, e.Exists(id))

	require.NoError(t, e.ValidateAndBurn(context.Background(), alice, id))
	assert.False(t, e.Exists(id))
	assert.Zero(t, e.BalanceOf(alice))
	assert.Empty(t, e.TicketsOf(alice))
	assert.Equal(t, models.EventTicketValidated, j.commits[len(j.commits)-1].Event.Kind)
	assert.Empty(t, j.commits[len(j.commits)-1].Transfers)

	// Revocation is final.
	clk.Advance(DefaultLockPeriod)
	_, err = e.OwnerOf(id)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.ReferenceOf(id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, e.ValidateAndBurn(context.Background(), alice, id), ErrNotFound)
	assert.ErrorIs(t, e.List(context.Background(), alice, id, early), ErrNotFound)
	_, err = e.CanResell(id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestValidateAndBurn_DeactivatesListing(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	id := issue(t, e, alice, models.TierEarlyBird, early)
	listAndAge(t, e, clk, alice, id, early)

	require.NoError(t, e.ValidateAndBurn(context.Background(), alice, id))
	l, err := e.Listing(id)
	require.NoError(t, err)
	assert.False(t, l.Active)

	_, err = e.BuyResale(context.Background(), bob, id, early)
	assert.ErrorIs(t, err, ErrListingNotActive)
}

func TestValidateAndBurn_CooldownScope(t *testing.T) {
	t.Run("gated by default", func(t *testing.T) {
		e, _, _ := newTestEngine(t)
		id := issue(t, e, alice, models.TierEarlyBird, early)
		assert.ErrorIs(t, e.ValidateAndBurn(context.Background(), alice, id), ErrCooldownActive)
	})
	t.Run("exempt when excluded", func(t *testing.T) {
		e, _, _ := newTestEngine(t, func(c *Config) {
			c.CooldownScope = []Operation{OpIssue, OpList, OpBuyResale}
		})
		id := issue(t, e, alice, models.TierEarlyBird, early)
		require.NoError(t, e.ValidateAndBurn(context.Background(), alice, id))
		// Validation does not refresh the window either.
		assert.False(t, e.CanAct(alice))
	})
}

func TestUpdatePrice(t *testing.T) {
	e, _, j := newTestEngine(t)

	err := e.UpdatePrice(context.Background(), alice, models.TierVIP, 1)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, models.Amount(250_000_000), e.Price(models.TierVIP))

	require.NoError(t, e.UpdatePrice(context.Background(), admin, models.TierVIP, 0))
	assert.Zero(t, e.Price(models.TierVIP))
	require.NoError(t, e.UpdatePrice(context.Background(), admin, models.TierVIP, 500_000_000))
	assert.Equal(t, models.Amount(500_000_000), e.Price(models.TierVIP))
	assert.Len(t, j.commits, 2)

	// Admin actions are never cooldown-gated.
	assert.True(t, e.CanAct(admin))

	assert.Panics(t, func() { _ = e.UpdatePrice(context.Background(), admin, models.Tier(4), 1) })
	assert.Panics(t, func() { _ = e.UpdatePrice(context.Background(), admin, models.TierVIP, -1) })
}

func TestWithdraw(t *testing.T) {
	e, clk, j := newTestEngine(t)
	issue(t, e, alice, models.TierEarlyBird, 200_000_000)
	issue(t, e, bob, models.TierStandard, standard)
	clk.Advance(time.Minute)

	_, err := e.Withdraw(context.Background(), alice)
	assert.ErrorIs(t, err, ErrUnauthorized)

	got, err := e.Withdraw(context.Background(), admin)
	require.NoError(t, err)
	assert.Equal(t, early+standard, got, "refunds never reach the treasury")
	assert.Zero(t, e.TreasuryBalance())
	assert.Equal(t, early+standard, e.TreasuryWithdrawn())

	last := j.commits[len(j.commits)-1]
	require.Len(t, last.Transfers, 1)
	assert.Equal(t, models.TransferWithdrawal, last.Transfers[0].EntryType)
	assert.Equal(t, admin, last.Transfers[0].To)

	got, err = e.Withdraw(context.Background(), admin)
	require.NoError(t, err)
	assert.Zero(t, got)
	assert.Empty(t, j.commits[len(j.commits)-1].Transfers)
}

func TestJournalFailure_LeavesStateUnchanged(t *testing.T) {
	e, clk, j := newTestEngine(t)
	id := issue(t, e, alice, models.TierEarlyBird, early)
	clk.Advance(DefaultLockPeriod)
	require.NoError(t, e.List(context.Background(), alice, id, early))
	clk.Advance(DefaultCooldown)

	before := takeSnapshot(e, alice, bob, admin)
	j.fail = errors.New("disk full")

	_, err := e.Issue(context.Background(), bob, models.TierEarlyBird, "", early)
	assert.ErrorContains(t, err, "disk full")
	_, err = e.BuyResale(context.Background(), bob, id, early)
	assert.Error(t, err)
	assert.Error(t, e.ValidateAndBurn(context.Background(), alice, id))
	assert.Error(t, e.UpdatePrice(context.Background(), admin, models.TierVIP, 1))
	_, err = e.Withdraw(context.Background(), admin)
	assert.Error(t, err)

	assert.Equal(t, before, takeSnapshot(e, alice, bob, admin))
	assert.True(t, e.CanAct(bob))
}

func TestRejectedCalls_LeaveStateUnchanged(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	id := issue(t, e, alice, models.TierEarlyBird, early)
	clk.Advance(DefaultLockPeriod)
	before := takeSnapshot(e, alice, bob)

	assert.Error(t, e.List(context.Background(), alice, id, 200_000_000))
	assert.Error(t, e.List(context.Background(), bob, id, early))
	_, err := e.BuyResale(context.Background(), bob, id, early)
	assert.Error(t, err)
	assert.Error(t, e.ValidateAndBurn(context.Background(), bob, id))
	_, err = e.Issue(context.Background(), bob, models.TierVIP, "", 1)
	assert.Error(t, err)

	assert.Equal(t, before, takeSnapshot(e, alice, bob))
}

func TestConcurrentIssue_RespectsWalletCap(t *testing.T) {
	e, _, j := newTestEngine(t, func(c *Config) { c.CooldownScope = []Operation{} })

	var wg sync.WaitGroup
	var mu sync.Mutex
	var ok, capped int
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Issue(context.Background(), alice, models.TierEarlyBird, "", early)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrWalletLimitExceeded):
				capped++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, DefaultMaxPerWallet, ok)
	assert.Equal(t, 20-DefaultMaxPerWallet, capped)
	assert.Equal(t, DefaultMaxPerWallet, e.BalanceOf(alice))
	for i, ev := range j.events() {
		assert.Equal(t, int64(i+1), ev.Seq)
		assert.Equal(t, models.TicketID(i+1), ev.TicketID)
	}
}

func TestRestore_ReproducesState(t *testing.T) {
	e, clk, j := newTestEngine(t)
	ctx := context.Background()

	a := issue(t, e, alice, models.TierEarlyBird, early)
	b := issue(t, e, bob, models.TierVIP, 300_000_000)
	listAndAge(t, e, clk, alice, a, 96_000_000)
	_, err := e.BuyResale(ctx, carol, a, 96_000_000)
	require.NoError(t, err)
	require.NoError(t, e.ValidateAndBurn(ctx, bob, b))
	require.NoError(t, e.UpdatePrice(ctx, admin, models.TierStandard, 110_000_000))
	_, err = e.Withdraw(ctx, admin)
	require.NoError(t, err)
	issue(t, e, alice, models.TierStandard, 110_000_000)

	replayed, err := New(DefaultConfig(admin), WithClock(clk))
	require.NoError(t, err)
	require.NoError(t, replayed.Restore(j.events()))

	ids := []models.Identity{alice, bob, carol, admin}
	assert.Equal(t, takeSnapshot(e, ids...), takeSnapshot(replayed, ids...))
	assert.Equal(t, e.CanAct(alice), replayed.CanAct(alice))
	assert.Equal(t, e.CanAct(carol), replayed.CanAct(carol))
}

func TestRestore_Rejects(t *testing.T) {
	e, _, j := newTestEngine(t)
	issue(t, e, alice, models.TierEarlyBird, early)

	assert.Error(t, e.Restore(j.events()), "engine already has state")

	fresh, err := New(DefaultConfig(admin))
	require.NoError(t, err)
	evs := j.events()
	evs[0].Seq = 2
	assert.Error(t, fresh.Restore(evs))

	bad := models.Event{Seq: 1, Kind: "mystery"}
	assert.Error(t, fresh.Restore([]models.Event{bad}))
}

func TestIssue_TreasuryOverflowJournalsNothing(t *testing.T) {
	huge := models.Amount(math.MaxInt64/2 + 1)
	e, _, j := newTestEngine(t, func(c *Config) { c.Prices[models.TierVIP] = huge })

	issue(t, e, alice, models.TierVIP, huge)
	before := takeSnapshot(e, alice, bob)

	_, err := e.Issue(context.Background(), bob, models.TierVIP, "ref", huge)
	require.ErrorIs(t, err, ErrTreasuryOverflow)
	assert.Equal(t, "", Kind(err))
	assert.Equal(t, before, takeSnapshot(e, alice, bob))
	require.Len(t, j.events(), 1)

	// The sequence stays contiguous and the journal still replays.
	issue(t, e, bob, models.TierEarlyBird, early)
	require.Len(t, j.events(), 2)
	assert.Equal(t, int64(2), e.Seq())

	replica, err := New(e.Config())
	require.NoError(t, err)
	require.NoError(t, replica.Restore(j.events()))
	assert.Equal(t, e.TreasuryBalance(), replica.TreasuryBalance())
}

func TestIssue_FreeTierMovesNoMoney(t *testing.T) {
	e, _, j := newTestEngine(t, func(c *Config) { c.Prices[models.TierEarlyBird] = 0 })

	r, err := e.Issue(context.Background(), alice, models.TierEarlyBird, "ref", 0)
	require.NoError(t, err)
	assert.Zero(t, r.Refund)
	assert.Zero(t, e.TreasuryBalance())
	assert.Empty(t, j.commits[0].Transfers)
}
