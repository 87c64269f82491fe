package store

import (
	"encoding/json"
	"errors"
	"fmt"

	goGate "github.com/MrEthical07/goGate"
)

var errInvalidPrincipal = errors.New("store: principal needs a username, a password hash and at least one role")

func checkPrincipal(p goGate.Principal) error {
	if p.Username == "" || p.PasswordHash == "" || len(p.Roles) == 0 {
		return errInvalidPrincipal
	}
	return nil
}

// record is the persisted form. Unlike Principal it serializes the hash.
type record struct {
	Username     string   `json:"username"`
	PasswordHash string   `json:"password_hash"`
	Roles        []string `json:"roles"`
}

func encodePrincipal(p goGate.Principal) ([]byte, error) {
	return json.Marshal(record(p))
}

func decodePrincipal(data []byte) (*goGate.Principal, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("store: decode principal: %w", err)
	}
	p := goGate.Principal(r)
	return &p, nil
}

func encodeRoles(roles []string) (string, error) {
	data, err := json.Marshal(roles)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeRoles(s string) ([]string, error) {
	var roles []string
	if err := json.Unmarshal([]byte(s), &roles); err != nil {
		return nil, fmt.Errorf("store: decode roles: %w", err)
	}
	return roles, nil
}
