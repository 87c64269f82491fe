package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	goGate "github.com/MrEthical07/goGate"
)

// Registrar is the part of the engine seeding needs.
type Registrar interface {
	Register(ctx context.Context, username, password, role string) (*goGate.Principal, error)
}

// Account is a principal to create at startup. An empty Password is
// replaced by a random one that Run hands back to the caller.
type Account struct {
	Username string
	Password string
	Role     string
}

// Defaults returns the admin and user demo accounts.
func Defaults(adminPassword, userPassword string) []Account {
	return []Account{
		{Username: "admin", Password: adminPassword, Role: "ADMIN"},
		{Username: "user", Password: userPassword, Role: "USER"},
	}
}

// Seeded is a principal Run created. GeneratedPassword is set only when
// Run made the password up; it never reaches the logger.
type Seeded struct {
	Username          string
	Role              string
	GeneratedPassword string
}

// Run registers every account that does not exist yet and returns the
// principals it created. Existing principals are left untouched, so Run is
// safe on every start and across replicas.
func Run(ctx context.Context, r Registrar, accounts []Account, logger *slog.Logger) ([]Seeded, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var created []Seeded
	for _, acct := range accounts {
		password := acct.Password
		generated := password == ""
		if generated {
			password = uuid.NewString()
		}

		_, err := r.Register(ctx, acct.Username, password, acct.Role)
		switch {
		case err == nil:
			s := Seeded{Username: acct.Username, Role: acct.Role}
			if generated {
				s.GeneratedPassword = password
				logger.Warn("seeded principal with generated password; change it",
					"username", acct.Username, "role", acct.Role)
			} else {
				logger.Info("seeded principal", "username", acct.Username, "role", acct.Role)
			}
			created = append(created, s)
		case errors.Is(err, goGate.ErrDuplicateUsername):
			logger.Debug("seed principal already present", "username", acct.Username)
		default:
			return created, fmt.Errorf("seeding %s: %w", acct.Username, err)
		}
	}
	return created, nil
}
