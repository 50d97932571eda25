// Package reserve implements the reservation coordinator: atomic
// multi-item stock holds with externally-confirmed commit or release.
//
// A reservation's lifecycle:
//
//	Reserve        - decrement stock + write reserved lines, all-or-nothing
//	LinkToSession  - one-shot attachment of the payment session identifier
//	CommitBySession / Release - terminal, idempotent
//
// Correctness under concurrency comes from the store, not from this
// package: conditional SQL updates and single-transaction units mean a
// lost race affects zero rows, and idempotence (not locking) makes
// redelivered external notifications safe.
package reserve
