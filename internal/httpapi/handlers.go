package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/middleware"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	Type      string    `json:"type"`
	Username  string    `json:"username"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type registerResponse struct {
	Message  string   `json:"message"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

type meResponse struct {
	Username  string    `json:"username"`
	Roles     []string  `json:"roles"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type securityReportResponse struct {
	SigningAlgorithm   string   `json:"signingAlgorithm"`
	AccessTTL          string   `json:"accessTtl"`
	Argon2Memory       uint32   `json:"argon2MemoryKiB"`
	Argon2Time         uint32   `json:"argon2Time"`
	Argon2Parallelism  uint8    `json:"argon2Parallelism"`
	MaxConcurrentHash  int      `json:"maxConcurrentHash"`
	PolicyRules        int      `json:"policyRules"`
	Roles              []string `json:"roles"`
	DefaultRole        string   `json:"defaultRole"`
	RateLimitingActive bool     `json:"rateLimitingActive"`
	AuditActive        bool     `json:"auditActive"`
	MetricsActive      bool     `json:"metricsActive"`
	Warnings           []string `json:"warnings"`
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	res, err := s.engine.Login(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, loginResponse{
			Token:     res.Token,
			Type:      res.TokenType,
			Username:  res.Username,
			Roles:     res.Roles,
			ExpiresAt: res.ExpiresAt,
		})
	case errors.Is(err, goGate.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, msgInvalidCredentials)
	case errors.Is(err, goGate.ErrLoginRateLimited):
		writeError(w, http.StatusTooManyRequests, msgRateLimited)
	default:
		s.logger.ErrorContext(r.Context(), "login failed", "error", err)
		writeInternalError(w)
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	p, err := s.engine.Register(r.Context(), req.Username, req.Password, req.Role)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, registerResponse{
			Message:  msgRegistered,
			Username: p.Username,
			Roles:    p.Roles,
		})
	case errors.Is(err, goGate.ErrDuplicateUsername),
		errors.Is(err, goGate.ErrInvalidRole),
		errors.Is(err, goGate.ErrInvalidRegistration):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.ErrorContext(r.Context(), "registration failed", "error", err)
		writeInternalError(w)
	}
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r)
	writeJSON(w, http.StatusOK, meResponse{
		Username:  claims.Subject,
		Roles:     claims.Roles,
		IssuedAt:  claims.IssuedAt,
		ExpiresAt: claims.ExpiresAt,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}

func (s *Server) handleSecurityReport(w http.ResponseWriter, _ *http.Request) {
	rep := s.engine.SecurityReport()
	writeJSON(w, http.StatusOK, securityReportResponse{
		SigningAlgorithm:   rep.SigningAlgorithm,
		AccessTTL:          rep.AccessTTL.String(),
		Argon2Memory:       rep.Argon2.Memory,
		Argon2Time:         rep.Argon2.Time,
		Argon2Parallelism:  rep.Argon2.Parallelism,
		MaxConcurrentHash:  rep.MaxConcurrentHash,
		PolicyRules:        rep.PolicyRules,
		Roles:              rep.Roles,
		DefaultRole:        rep.DefaultRole,
		RateLimitingActive: rep.RateLimitingActive,
		AuditActive:        rep.AuditActive,
		MetricsActive:      rep.MetricsActive,
		Warnings:           rep.Warnings,
	})
}
