package harness

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"stockgate/internal/ratelimit"
	"stockgate/internal/reserve"
	"stockgate/internal/store"
	"stockgate/internal/testutil"
)

// harnessEpoch is the fixed starting instant of every run; scenarios move
// time with advance steps, so traces stay byte-identical across runs.
var harnessEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// TraceEvent records one executed step and its observed outcome.
type TraceEvent struct {
	Op        string `json:"op"`
	Target    string `json:"target,omitempty"`
	Outcome   string `json:"outcome"`
	Count     *int64 `json:"count,omitempty"`
	Remaining *int64 `json:"remaining,omitempty"`
	Found     string `json:"found,omitempty"`
}

// Snapshot is the full deterministic record of a scenario run, suitable
// for golden comparison.
type Snapshot struct {
	Scenario    string           `json:"scenario"`
	Trace       []TraceEvent     `json:"trace"`
	FinalStocks map[string]int64 `json:"final_stocks,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	Snapshot Snapshot
	// Failures lists expectation mismatches; empty means the scenario
	// passed.
	Failures []string
}

// Runner executes scenarios against a throwaway store.
type Runner struct {
	co      *reserve.Coordinator
	limiter ratelimit.Limiter
	clock   *testutil.ManualClock
}

// NewRunner builds a runner over a fresh SQLite database in dir.
func NewRunner(dir string) (*Runner, func() error, error) {
	s, err := store.Open(filepath.Join(dir, "harness.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("harness: %w", err)
	}

	clock := testutil.NewManualClock(harnessEpoch)
	r := &Runner{
		co:      reserve.New(s, reserve.WithClock(clock)),
		limiter: ratelimit.NewStoreLimiter(s, ratelimit.WithClock(clock)),
		clock:   clock,
	}
	return r, s.Close, nil
}

// Run executes one scenario and collects its trace and expectation
// failures. An error means the harness itself broke (store unreachable,
// malformed step); outcome mismatches are failures, not errors.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Result, error) {
	result := &Result{
		Snapshot: Snapshot{Scenario: sc.Name, Trace: []TraceEvent{}},
	}

	for _, step := range sc.Setup {
		if err := r.co.SetStock(ctx, step.Item, step.Stock); err != nil {
			return nil, fmt.Errorf("harness: setup %s: %w", step.Item, err)
		}
	}

	for i, step := range sc.Steps {
		event, err := r.runStep(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("harness: step %d (%s): %w", i, step.Op, err)
		}
		if event == nil {
			continue // clock step, not traced
		}
		result.Snapshot.Trace = append(result.Snapshot.Trace, *event)
		if step.Expect != "" && step.Expect != event.Outcome {
			result.Failures = append(result.Failures,
				fmt.Sprintf("step %d (%s): outcome %q, expected %q", i, step.Op, event.Outcome, step.Expect))
		}
	}

	if len(sc.FinalStocks) > 0 {
		keys := make([]string, 0, len(sc.FinalStocks))
		for key := range sc.FinalStocks {
			keys = append(keys, key)
		}
		stocks, err := r.co.GetStocks(ctx, keys)
		if err != nil {
			return nil, fmt.Errorf("harness: final stocks: %w", err)
		}
		result.Snapshot.FinalStocks = stocks
		for key, want := range sc.FinalStocks {
			if stocks[key] != want {
				result.Failures = append(result.Failures,
					fmt.Sprintf("final stock %s: %d, expected %d", key, stocks[key], want))
			}
		}
	}

	return result, nil
}

func (r *Runner) runStep(ctx context.Context, step Step) (*TraceEvent, error) {
	switch step.Op {
	case OpAdvance:
		r.clock.Advance(time.Duration(step.Ms) * time.Millisecond)
		return nil, nil

	case OpReserve:
		items := make([]reserve.Item, len(step.Items))
		for i, it := range step.Items {
			items[i] = reserve.Item{Key: it.Item, Quantity: it.Quantity}
		}
		outcome := "ok"
		switch err := r.co.Reserve(ctx, step.Reservation, items); {
		case err == nil:
		case reserve.IsInsufficientStock(err):
			outcome = "insufficient_stock"
		case reserve.IsInvalidQuantity(err):
			outcome = "invalid_quantity"
		default:
			return nil, err
		}
		return &TraceEvent{Op: step.Op, Target: step.Reservation, Outcome: outcome}, nil

	case OpRelease:
		if err := r.co.Release(ctx, step.Reservation); err != nil {
			return nil, err
		}
		return &TraceEvent{Op: step.Op, Target: step.Reservation, Outcome: "ok"}, nil

	case OpLink:
		if err := r.co.LinkToSession(ctx, step.Session, step.Reservation); err != nil {
			return nil, err
		}
		return &TraceEvent{Op: step.Op, Target: step.Session, Outcome: "ok"}, nil

	case OpCommit:
		n, err := r.co.CommitBySession(ctx, step.Session)
		if err != nil {
			return nil, err
		}
		return &TraceEvent{Op: step.Op, Target: step.Session, Outcome: "ok", Count: &n}, nil

	case OpFind:
		id, ok, err := r.co.FindReservedReservationIDBySession(ctx, step.Session)
		if err != nil {
			return nil, err
		}
		event := &TraceEvent{Op: step.Op, Target: step.Session, Outcome: "none"}
		if ok {
			event.Outcome = "found"
			event.Found = id
		}
		return event, nil

	case OpCheck:
		d, err := r.limiter.Check(ctx, step.Key, ratelimit.Policy{
			Capacity:       step.Capacity,
			RefillAmount:   step.RefillAmount,
			RefillInterval: time.Duration(step.RefillIntervalMs) * time.Millisecond,
		})
		if err != nil {
			return nil, err
		}
		outcome := "denied"
		if d.Allowed {
			outcome = "allowed"
		}
		remaining := d.Remaining
		return &TraceEvent{Op: step.Op, Target: step.Key, Outcome: outcome, Remaining: &remaining}, nil

	default:
		return nil, fmt.Errorf("unknown op %q", step.Op)
	}
}
