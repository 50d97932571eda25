package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Status is the lifecycle state of a single reservation line.
//
// The state machine has one non-terminal state and two terminal ones:
//
//	reserved -> committed (sale finalized, stock stays decremented)
//	reserved -> released  (hold undone, stock restored)
//
// There is no transition out of committed or released. Transitions are
// enforced by conditional updates (WHERE status = 'reserved'), so an illegal
// transition affects zero rows instead of corrupting state.
type Status string

const (
	StatusReserved  Status = "reserved"
	StatusCommitted Status = "committed"
	StatusReleased  Status = "released"
)

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusReserved, StatusCommitted, StatusReleased:
		return true
	}
	return false
}

// Terminal reports whether s permits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCommitted, StatusReleased:
		return true
	case StatusReserved:
		return false
	}
	return false
}

// ReservationLine is one row of the reservation ledger. A reservation that
// spans several items has one line per item, all sharing the reservation ID.
type ReservationLine struct {
	ReservationID string
	ItemKey       string
	SessionID     string // empty until attached
	Quantity      int64
	Status        Status
	CreatedAt     time.Time
}

// InsertReservationLine appends one line to the reservation ledger with
// status reserved and no session attached.
func InsertReservationLine(ctx context.Context, db DBTX, reservationID, itemKey string, quantity int64, createdAt time.Time) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO reservations
		(reservation_id, item_key, session_id, quantity, status, created_at_ms)
		VALUES (?, ?, NULL, ?, ?, ?)
	`, reservationID, NormalizeKey(itemKey), quantity, string(StatusReserved), createdAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert reservation line: %w", err)
	}
	return nil
}

// SelectReservedLines returns all lines of a reservation still in reserved
// status, ordered by item key for deterministic processing.
// Returns an empty slice (not nil) when nothing matches.
func SelectReservedLines(ctx context.Context, db DBTX, reservationID string) ([]ReservationLine, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT reservation_id, item_key, COALESCE(session_id, ''), quantity, status, created_at_ms
		FROM reservations
		WHERE reservation_id = ? AND status = ?
		ORDER BY item_key ASC
	`, reservationID, string(StatusReserved))
	if err != nil {
		return nil, fmt.Errorf("select reserved lines: %w", err)
	}
	defer rows.Close()

	lines := []ReservationLine{}
	for rows.Next() {
		line, err := scanReservationLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select reserved lines: iterate: %w", err)
	}

	return lines, nil
}

// SelectReservationLines returns every line of a reservation regardless of
// status. Used for audit output; the ledger is append-style so this is the
// full history of the reservation.
func SelectReservationLines(ctx context.Context, db DBTX, reservationID string) ([]ReservationLine, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT reservation_id, item_key, COALESCE(session_id, ''), quantity, status, created_at_ms
		FROM reservations
		WHERE reservation_id = ?
		ORDER BY item_key ASC
	`, reservationID)
	if err != nil {
		return nil, fmt.Errorf("select reservation lines: %w", err)
	}
	defer rows.Close()

	lines := []ReservationLine{}
	for rows.Next() {
		line, err := scanReservationLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select reservation lines: iterate: %w", err)
	}

	return lines, nil
}

// TransitionLine flips a single line from reserved to the given terminal
// status. The update is conditioned on the line still being reserved, which
// guards against a race with a concurrent commit or duplicate release;
// applied=false means the line already reached a terminal state.
func TransitionLine(ctx context.Context, db DBTX, reservationID, itemKey string, to Status) (applied bool, err error) {
	if !to.Terminal() {
		return false, fmt.Errorf("transition line: %q is not a terminal status", to)
	}
	res, err := db.ExecContext(ctx, `
		UPDATE reservations
		SET status = ?
		WHERE reservation_id = ? AND item_key = ? AND status = ?
	`, string(to), reservationID, NormalizeKey(itemKey), string(StatusReserved))
	if err != nil {
		return false, fmt.Errorf("transition line: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition line: rows affected: %w", err)
	}
	return rows > 0, nil
}

// TransitionBySession flips every reserved line carrying the session to the
// given terminal status in one statement. Returns the number of lines that
// transitioned; zero is a successful no-op (redelivered event, unknown
// session, or already-terminal lines).
func TransitionBySession(ctx context.Context, db DBTX, sessionID string, to Status) (int64, error) {
	if !to.Terminal() {
		return 0, fmt.Errorf("transition by session: %q is not a terminal status", to)
	}
	res, err := db.ExecContext(ctx, `
		UPDATE reservations
		SET status = ?
		WHERE session_id = ? AND status = ?
	`, string(to), sessionID, string(StatusReserved))
	if err != nil {
		return 0, fmt.Errorf("transition by session: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("transition by session: rows affected: %w", err)
	}
	return rows, nil
}

// AttachSession sets the session on every line of a reservation that does
// not have one yet. The NULL condition makes the attachment one-shot:
// re-invoking with the same values affects zero rows and is a no-op.
func AttachSession(ctx context.Context, db DBTX, sessionID, reservationID string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE reservations
		SET session_id = ?
		WHERE reservation_id = ? AND session_id IS NULL
	`, sessionID, reservationID)
	if err != nil {
		return fmt.Errorf("attach session: %w", err)
	}
	return nil
}

// FindReservedBySession resolves a session to its reservation ID via any
// line still in reserved status. ok=false means no reserved line carries
// the session.
func FindReservedBySession(ctx context.Context, db DBTX, sessionID string) (reservationID string, ok bool, err error) {
	err = db.QueryRowContext(ctx, `
		SELECT reservation_id FROM reservations
		WHERE session_id = ? AND status = ?
		LIMIT 1
	`, sessionID, string(StatusReserved)).Scan(&reservationID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("find reserved by session: %w", err)
	}
	return reservationID, true, nil
}

// scanReservationLine reads one row from a reservation query.
func scanReservationLine(rows *sql.Rows) (ReservationLine, error) {
	var line ReservationLine
	var status string
	var createdAtMs int64
	if err := rows.Scan(&line.ReservationID, &line.ItemKey, &line.SessionID, &line.Quantity, &status, &createdAtMs); err != nil {
		return ReservationLine{}, fmt.Errorf("scan reservation line: %w", err)
	}
	line.Status = Status(status)
	line.CreatedAt = time.UnixMilli(createdAtMs).UTC()
	return line, nil
}
