// Package logging builds the structured slog logger shared by the goGate
// binaries.
package logging
