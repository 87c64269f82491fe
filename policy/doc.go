// Package policy maps request paths and methods to the roles allowed to reach them.
//
// # Matching
//
// Patterns are exact paths or trailing-"/**" subtrees. When several rules
// match one request the winner is chosen by a fixed total order:
//
//  1. longer literal prefix
//  2. higher Priority
//  3. earlier declaration
//
// A request no rule matches needs an authenticated principal with any role.
// Role checks are any-of: holding one listed role is enough.
//
// # What this package must NOT do
//
//   - Validate tokens or look up principals.
//   - Mutate a Table after NewTable returns.
package policy
