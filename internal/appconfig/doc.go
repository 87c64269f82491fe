// Package appconfig loads the goGate server configuration.
//
// Values come from built-in defaults, then an optional YAML file, then
// GOGATE_* environment variables. GOGATE_JWT_SECRET should always be
// supplied through the environment in production.
package appconfig
