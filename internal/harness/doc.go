// Package harness runs declarative YAML scenarios against a real
// coordinator, limiter, and store, and compares the resulting trace
// against golden fixtures.
package harness
