package internaldefs

import (
	goGate "github.com/MrEthical07/goGate"
)

// CounterDef binds a counter MetricID to its exported name.
type CounterDef struct {
	ID   goGate.MetricID
	Name string
	Help string
}

// HistogramDef binds a latency MetricID to its exported name.
type HistogramDef struct {
	ID   goGate.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: goGate.MetricLoginSuccess, Name: "gogate_login_success_total", Help: "Successful logins."},
	{ID: goGate.MetricLoginFailure, Name: "gogate_login_failure_total", Help: "Logins rejected with invalid credentials."},
	{ID: goGate.MetricLoginRateLimited, Name: "gogate_login_rate_limited_total", Help: "Logins refused by the failed-attempt budget."},
	{ID: goGate.MetricLoginInternalError, Name: "gogate_login_internal_error_total", Help: "Logins aborted by a backend failure."},
	{ID: goGate.MetricRegisterSuccess, Name: "gogate_register_success_total", Help: "Registered principals."},
	{ID: goGate.MetricRegisterDuplicate, Name: "gogate_register_duplicate_total", Help: "Registrations rejected for a taken username."},
	{ID: goGate.MetricRegisterInvalid, Name: "gogate_register_invalid_total", Help: "Registrations rejected for invalid input or role."},
	{ID: goGate.MetricGateAllowed, Name: "gogate_gate_allowed_total", Help: "Requests allowed by the gate."},
	{ID: goGate.MetricGateUnauthenticated, Name: "gogate_gate_unauthenticated_total", Help: "Requests denied for missing or invalid credentials."},
	{ID: goGate.MetricGateForbidden, Name: "gogate_gate_forbidden_total", Help: "Requests denied for lacking a required role."},
	{ID: goGate.MetricTokenMalformed, Name: "gogate_token_malformed_total", Help: "Presented tokens that could not be parsed."},
	{ID: goGate.MetricTokenBadSignature, Name: "gogate_token_bad_signature_total", Help: "Presented tokens with a signature mismatch."},
	{ID: goGate.MetricTokenExpired, Name: "gogate_token_expired_total", Help: "Presented tokens past their expiry."},
	{ID: goGate.MetricPasswordRehashed, Name: "gogate_password_rehashed_total", Help: "Stored hashes upgraded after login."},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: goGate.MetricLoginLatency, Name: "gogate_login_latency_seconds", Help: "Login latency histogram."},
	{ID: goGate.MetricGateLatency, Name: "gogate_gate_latency_seconds", Help: "Gate evaluation latency histogram."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix mirrors HistogramBounds in a form usable inside
// instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// AuditDroppedName is the counter for events the audit dispatcher discarded.
const AuditDroppedName = "gogate_audit_dropped_total"

// AuditDroppedHelp describes AuditDroppedName.
const AuditDroppedHelp = "Audit events dropped under dispatcher backpressure."

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
