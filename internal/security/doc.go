// Package security derives the engine's security posture from its
// configuration: which protections are active and which settings fall
// below recommended minimums.
//
// It backs goGate.Engine.SecurityReport and the security/cmd tooling. It
// never sees secrets.
package security
