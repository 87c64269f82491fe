// Package audit implements async event dispatching for security-relevant operations.
//
// # Components
//
//   - [Sink] is implemented by event consumers (channel, JSON writer, slog, no-op).
//   - [Dispatcher] is a buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event] is the structured record: timestamp, type, username, request and outcome.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; the Engine does.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import goGate or any sibling internal package.
//   - Record passwords, password hashes, or tokens.
package audit
