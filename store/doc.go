// Package store provides goGate.CredentialStore implementations.
//
// Every backend makes InsertIfAbsent atomic with the primitive the backend
// offers for it:
//
//   - Memory: a mutex around the map.
//   - Redis: SETNX on the principal key.
//   - SQLite and Postgres: a primary key on username with
//     INSERT ... ON CONFLICT DO NOTHING, decided by rows affected.
//
// Usernames are compared case-sensitively. FindByUsername returns
// goGate.ErrPrincipalNotFound only for an absent username; backend failures
// are returned wrapped so the engine can report them as internal errors.
// All implementations also satisfy goGate.PasswordUpdater.
package store
