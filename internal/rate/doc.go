// Package rate implements the Redis-backed failed-login limiter.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes
// (after the configured namespace):
//   - al:  login per-username (lower-cased)
//   - ali: login per-IP
//
// A caller is blocked once the counter reaches MaxLoginAttempts and stays
// blocked until the window expires or a successful login resets it.
package rate
