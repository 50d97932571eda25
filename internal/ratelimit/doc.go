// Package ratelimit implements keyed token-bucket rate limiting.
//
// Three Limiter backends share one refill semantic (whole-interval lazy
// refill, lastRefillAt advanced by consumed intervals so fractional
// progress is never lost):
//
//   - StoreLimiter: durable, over the shared SQLite store. The canonical
//     backend - limits hold across restarts and across instances.
//   - RedisLimiter: the same bucket as an atomic Lua script, for
//     deployments that keep throttling state off the ledger database.
//   - MemoryLimiter: process-local x/time/rate buckets, single-instance
//     deployments only.
//
// A denied check is a Decision with Allowed=false, never an error; errors
// mean the backing store could not be reached.
package ratelimit
