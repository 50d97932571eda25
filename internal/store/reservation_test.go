package store

import (
	"context"
	"testing"
	"time"
)

var testCreatedAt = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func insertTestLine(t *testing.T, s *Store, reservationID, itemKey string, quantity int64) {
	t.Helper()
	if err := InsertReservationLine(context.Background(), s.DB(), reservationID, itemKey, quantity, testCreatedAt); err != nil {
		t.Fatalf("InsertReservationLine() failed: %v", err)
	}
}

func TestInsertReservationLine_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	insertTestLine(t, s, "r1", "p1", 3)

	lines, err := SelectReservedLines(context.Background(), s.DB(), "r1")
	if err != nil {
		t.Fatalf("SelectReservedLines() failed: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("got %d lines, expected 1", len(lines))
	}
	line := lines[0]
	if line.ReservationID != "r1" || line.ItemKey != "p1" || line.Quantity != 3 {
		t.Errorf("unexpected line %+v", line)
	}
	if line.Status != StatusReserved {
		t.Errorf("status = %q, expected reserved", line.Status)
	}
	if line.SessionID != "" {
		t.Errorf("session = %q, expected empty", line.SessionID)
	}
	if !line.CreatedAt.Equal(testCreatedAt) {
		t.Errorf("created at = %v, expected %v", line.CreatedAt, testCreatedAt)
	}
}

func TestSelectReservedLines_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)

	lines, err := SelectReservedLines(context.Background(), s.DB(), "ghost")
	if err != nil {
		t.Fatalf("SelectReservedLines() failed: %v", err)
	}
	if lines == nil {
		t.Error("expected empty slice, got nil")
	}
	if len(lines) != 0 {
		t.Errorf("got %d lines, expected 0", len(lines))
	}
}

func TestTransitionLine_ConditionalOnReserved(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	insertTestLine(t, s, "r1", "p1", 1)

	applied, err := TransitionLine(ctx, s.DB(), "r1", "p1", StatusReleased)
	if err != nil {
		t.Fatalf("TransitionLine() failed: %v", err)
	}
	if !applied {
		t.Fatal("first transition should apply")
	}

	// Terminal states admit no further transitions.
	applied, err = TransitionLine(ctx, s.DB(), "r1", "p1", StatusCommitted)
	if err != nil {
		t.Fatalf("TransitionLine() failed: %v", err)
	}
	if applied {
		t.Error("transition out of released should affect zero rows")
	}
}

func TestTransitionLine_RejectsNonTerminalTarget(t *testing.T) {
	s := createTestStore(t)
	insertTestLine(t, s, "r1", "p1", 1)

	if _, err := TransitionLine(context.Background(), s.DB(), "r1", "p1", StatusReserved); err == nil {
		t.Error("expected error for non-terminal target status")
	}
}

func TestAttachSession_OneShot(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	insertTestLine(t, s, "r1", "p1", 1)
	insertTestLine(t, s, "r1", "p2", 2)

	if err := AttachSession(ctx, s.DB(), "s1", "r1"); err != nil {
		t.Fatalf("AttachSession() failed: %v", err)
	}

	// A second attach with a different session must be a no-op: the NULL
	// condition no longer matches.
	if err := AttachSession(ctx, s.DB(), "s2", "r1"); err != nil {
		t.Fatalf("second AttachSession() failed: %v", err)
	}

	lines, err := SelectReservedLines(ctx, s.DB(), "r1")
	if err != nil {
		t.Fatalf("SelectReservedLines() failed: %v", err)
	}
	for _, line := range lines {
		if line.SessionID != "s1" {
			t.Errorf("line %s session = %q, expected s1", line.ItemKey, line.SessionID)
		}
	}
}

func TestTransitionBySession_IdempotentCount(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	insertTestLine(t, s, "r1", "p1", 1)
	insertTestLine(t, s, "r1", "p2", 2)
	if err := AttachSession(ctx, s.DB(), "s1", "r1"); err != nil {
		t.Fatalf("AttachSession() failed: %v", err)
	}

	n, err := TransitionBySession(ctx, s.DB(), "s1", StatusCommitted)
	if err != nil {
		t.Fatalf("TransitionBySession() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("transitioned %d lines, expected 2", n)
	}

	n, err = TransitionBySession(ctx, s.DB(), "s1", StatusCommitted)
	if err != nil {
		t.Fatalf("redelivered TransitionBySession() failed: %v", err)
	}
	if n != 0 {
		t.Errorf("redelivery transitioned %d lines, expected 0", n)
	}
}

func TestFindReservedBySession(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	insertTestLine(t, s, "r1", "p1", 1)
	if err := AttachSession(ctx, s.DB(), "s1", "r1"); err != nil {
		t.Fatalf("AttachSession() failed: %v", err)
	}

	id, ok, err := FindReservedBySession(ctx, s.DB(), "s1")
	if err != nil {
		t.Fatalf("FindReservedBySession() failed: %v", err)
	}
	if !ok || id != "r1" {
		t.Errorf("got (%q, %v), expected (r1, true)", id, ok)
	}

	// Once all lines are terminal the session no longer resolves.
	if _, err := TransitionBySession(ctx, s.DB(), "s1", StatusCommitted); err != nil {
		t.Fatalf("TransitionBySession() failed: %v", err)
	}
	_, ok, err = FindReservedBySession(ctx, s.DB(), "s1")
	if err != nil {
		t.Fatalf("FindReservedBySession() failed: %v", err)
	}
	if ok {
		t.Error("committed session should not resolve to a reservation")
	}
}

func TestStatus_Predicates(t *testing.T) {
	if !StatusReserved.Valid() || !StatusCommitted.Valid() || !StatusReleased.Valid() {
		t.Error("known statuses should be valid")
	}
	if Status("pending").Valid() {
		t.Error("unknown status should be invalid")
	}
	if StatusReserved.Terminal() {
		t.Error("reserved is not terminal")
	}
	if !StatusCommitted.Terminal() || !StatusReleased.Terminal() {
		t.Error("committed and released are terminal")
	}
}
