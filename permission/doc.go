// Package permission holds the role vocabulary principals are drawn from.
//
// The [Registry] is built during initialization, frozen, and then only read.
// It decides which role names registration accepts and which role a new
// principal receives when none is requested.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import goGate, jwt, or policy.
package permission
