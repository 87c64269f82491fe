package security

import (
	"fmt"
	"time"
)

// Minimums below which a setting is reported as a posture warning.
const (
	MinArgon2Memory  uint32 = 19 * 1024 // KB
	MinArgon2Time    uint32 = 2
	MaxAccessTTL            = 24 * time.Hour
	MinPasswordChars        = 6
)

// PasswordInput carries the Argon2id parameters in use.
type PasswordInput struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	MinLength   int
}

// ReportInput is everything the posture check looks at. It must never
// contain secrets.
type ReportInput struct {
	AccessTTL        time.Duration
	Leeway           time.Duration
	Password         PasswordInput
	PolicyRules      int
	PublicRules      int
	LoginThrottle    bool
	MaxLoginAttempts int
	LoginCooldown    time.Duration
	AuditEnabled     bool
}

// Report is the derived posture of one engine.
type Report struct {
	RateLimitingActive bool
	Warnings           []string
}

// BuildReport derives the posture flags and lists every setting that is
// weaker than the recommended minimum. Warnings are ordered and stable.
func BuildReport(input ReportInput) Report {
	rateLimiting := input.LoginThrottle &&
		input.MaxLoginAttempts > 0 &&
		input.LoginCooldown > 0

	var warnings []string
	if input.AccessTTL > MaxAccessTTL {
		warnings = append(warnings, fmt.Sprintf("access token ttl %s exceeds %s", input.AccessTTL, MaxAccessTTL))
	}
	if input.Leeway > time.Minute {
		warnings = append(warnings, fmt.Sprintf("token leeway %s is above one minute", input.Leeway))
	}
	if input.Password.Memory < MinArgon2Memory {
		warnings = append(warnings, fmt.Sprintf("argon2 memory %d KB is below %d KB", input.Password.Memory, MinArgon2Memory))
	}
	if input.Password.Time < MinArgon2Time {
		warnings = append(warnings, fmt.Sprintf("argon2 time %d is below %d", input.Password.Time, MinArgon2Time))
	}
	if input.Password.MinLength < MinPasswordChars {
		warnings = append(warnings, fmt.Sprintf("minimum password length %d is below %d", input.Password.MinLength, MinPasswordChars))
	}
	if !rateLimiting {
		warnings = append(warnings, "failed-login throttling is inactive")
	}
	if !input.AuditEnabled {
		warnings = append(warnings, "audit events are disabled")
	}
	if input.PolicyRules > 0 && input.PublicRules == input.PolicyRules {
		warnings = append(warnings, "every policy rule is public")
	}

	return Report{
		RateLimitingActive: rateLimiting,
		Warnings:           warnings,
	}
}
