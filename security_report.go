package goGate

import "github.com/MrEthical07/goGate/internal/security"

// SecurityReport summarizes the engine's active security settings for
// startup logs and operator tooling. It contains no secrets.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	rules := e.policy.Rules()
	public := 0
	for _, r := range rules {
		if r.Public {
			public++
		}
	}

	posture := security.BuildReport(security.ReportInput{
		AccessTTL: e.config.JWT.AccessTTL,
		Leeway:    e.config.JWT.Leeway,
		Password: security.PasswordInput{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			MinLength:   e.config.Account.MinPasswordLength,
		},
		PolicyRules:      len(rules),
		PublicRules:      public,
		LoginThrottle:    e.limiter != nil,
		MaxLoginAttempts: e.config.Security.MaxLoginAttempts,
		LoginCooldown:    e.config.Security.LoginCooldownDuration,
		AuditEnabled:     e.audit != nil,
	})

	return SecurityReport{
		SigningAlgorithm: "HS256",
		AccessTTL:        e.config.JWT.AccessTTL,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		MaxConcurrentHash:  e.config.Password.MaxConcurrent,
		PolicyRules:        len(rules),
		Roles:              e.roles.Names(),
		DefaultRole:        e.roles.Default(),
		RateLimitingActive: posture.RateLimitingActive,
		AuditActive:        e.audit != nil,
		MetricsActive:      e.metrics.Enabled(),
		Warnings:           posture.Warnings,
	}
}
