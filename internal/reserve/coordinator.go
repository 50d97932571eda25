package reserve

import (
	"context"
	"fmt"
	"time"

	"stockgate/internal/store"
)

// Clock supplies wall time for reservation timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Item is one line of a reservation request.
type Item struct {
	Key      string
	Quantity int64
}

// Coordinator orchestrates atomic multi-item reservations against the
// inventory and reservation ledgers.
//
// Every operation is a single transactional unit on the shared store:
// commit on success, rollback on any error path. The coordinator holds no
// state of its own, so several instances (or several processes) may operate
// on the same database concurrently.
type Coordinator struct {
	store *store.Store
	clock Clock
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock overrides the wall clock. Used by tests for deterministic
// created-at timestamps.
func WithClock(c Clock) Option {
	return func(co *Coordinator) { co.clock = c }
}

// New creates a Coordinator over the given store.
func New(s *store.Store, opts ...Option) *Coordinator {
	co := &Coordinator{
		store: s,
		clock: systemClock{},
	}
	for _, opt := range opts {
		opt(co)
	}
	return co
}

// Reserve atomically holds stock for every item in the request.
//
// Validation happens before any store mutation: an empty item list or a
// non-positive quantity fails with InvalidQuantityError and no side effect.
// Inside the transaction each item's stock is decremented conditionally
// (only when stock >= quantity); the first item that cannot be decremented
// aborts the whole transaction with InsufficientStockError, undoing the
// decrements of the items before it. On success one reservation line per
// item is written with status reserved and no session attached.
//
// No caller ever observes a state where only some items of the reservation
// decremented stock.
func (co *Coordinator) Reserve(ctx context.Context, reservationID string, items []Item) error {
	if len(items) == 0 {
		return &InvalidQuantityError{ItemKey: "", Quantity: 0}
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return &InvalidQuantityError{ItemKey: item.Key, Quantity: item.Quantity}
		}
	}

	tx, err := co.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("reserve: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	createdAt := co.clock.Now()

	for _, item := range items {
		applied, err := store.DecrementStock(ctx, tx, item.Key, item.Quantity)
		if err != nil {
			return fmt.Errorf("reserve: %w", err)
		}
		if !applied {
			// Rollback via defer undoes earlier decrements in this call.
			return &InsufficientStockError{ItemKey: item.Key}
		}
		if err := store.InsertReservationLine(ctx, tx, reservationID, item.Key, item.Quantity, createdAt); err != nil {
			return fmt.Errorf("reserve: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("reserve: commit: %w", err)
	}
	return nil
}

// Release undoes a reservation: every line still in reserved status has its
// quantity added back to stock and flips to released, all in one
// transaction.
//
// Idempotent: when no line is in reserved status (already released, already
// committed, or unknown ID) the call is a successful no-op. The external
// notifier may redeliver expiry events, so absence is never an error.
func (co *Coordinator) Release(ctx context.Context, reservationID string) error {
	tx, err := co.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("release: begin tx: %w", err)
	}
	defer tx.Rollback()

	lines, err := store.SelectReservedLines(ctx, tx, reservationID)
	if err != nil {
		return fmt.Errorf("release: %w", err)
	}

	for _, line := range lines {
		// The status condition guards the restore: if a concurrent commit
		// or duplicate release won the race on this line, the flip affects
		// zero rows and the stock must not be restored again.
		applied, err := store.TransitionLine(ctx, tx, line.ReservationID, line.ItemKey, store.StatusReleased)
		if err != nil {
			return fmt.Errorf("release: %w", err)
		}
		if !applied {
			continue
		}
		if err := store.RestoreStock(ctx, tx, line.ItemKey, line.Quantity); err != nil {
			return fmt.Errorf("release: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("release: commit: %w", err)
	}
	return nil
}

// CommitBySession finalizes the sale for every reserved line carrying the
// session: status flips to committed and stock stays permanently
// decremented. Returns the number of lines that transitioned.
//
// Idempotent: a redelivered confirmation affects zero rows and succeeds.
func (co *Coordinator) CommitBySession(ctx context.Context, sessionID string) (int64, error) {
	n, err := store.TransitionBySession(ctx, co.store.DB(), sessionID, store.StatusCommitted)
	if err != nil {
		return 0, fmt.Errorf("commit by session: %w", err)
	}
	return n, nil
}

// LinkToSession attaches the externally-issued session identifier to a
// reservation's lines. The session is only known once external session
// creation succeeds, which happens after the reservation itself, so the
// attachment is a separate one-shot step: lines that already carry a
// session are left untouched.
func (co *Coordinator) LinkToSession(ctx context.Context, sessionID, reservationID string) error {
	if err := store.AttachSession(ctx, co.store.DB(), sessionID, reservationID); err != nil {
		return fmt.Errorf("link to session: %w", err)
	}
	return nil
}

// FindReservedReservationIDBySession resolves a session identifier to its
// reservation, via any line still in reserved status. Used on expiry or
// failure notifications, where only the session is known. ok=false means
// nothing is currently reserved under the session.
func (co *Coordinator) FindReservedReservationIDBySession(ctx context.Context, sessionID string) (reservationID string, ok bool, err error) {
	reservationID, ok, err = store.FindReservedBySession(ctx, co.store.DB(), sessionID)
	if err != nil {
		return "", false, fmt.Errorf("find reservation by session: %w", err)
	}
	return reservationID, ok, nil
}

// SetStock writes an absolute stock value. Admin path only; rejects
// negative values.
func (co *Coordinator) SetStock(ctx context.Context, itemKey string, stock int64) error {
	if stock < 0 {
		return &InvalidQuantityError{ItemKey: itemKey, Quantity: stock}
	}
	return store.SetStock(ctx, co.store.DB(), itemKey, stock)
}

// GetStocks returns the stock per item key, defaulting unknown keys to 0.
func (co *Coordinator) GetStocks(ctx context.Context, itemKeys []string) (map[string]int64, error) {
	return store.GetStocks(ctx, co.store.DB(), itemKeys)
}

// Lines returns the full audit trail of a reservation, every line in every
// status.
func (co *Coordinator) Lines(ctx context.Context, reservationID string) ([]store.ReservationLine, error) {
	return store.SelectReservationLines(ctx, co.store.DB(), reservationID)
}
