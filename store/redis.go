package store

import (
	"context"
	"errors"
	"fmt"

	goGate "github.com/MrEthical07/goGate"
	"github.com/redis/go-redis/v9"
)

// Redis stores one JSON document per principal under
// "<prefix>:principal:<username>".
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis returns a Redis-backed store. An empty prefix defaults to "gogate".
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "gogate"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(username string) string {
	return r.prefix + ":principal:" + username
}

func (r *Redis) FindByUsername(ctx context.Context, username string) (*goGate.Principal, error) {
	data, err := r.client.Get(ctx, r.key(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, goGate.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("redis get principal: %w", err)
	}
	return decodePrincipal(data)
}

func (r *Redis) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(username)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists principal: %w", err)
	}
	return n > 0, nil
}

// InsertIfAbsent relies on SETNX, so concurrent callers across processes
// agree on a single winner.
func (r *Redis) InsertIfAbsent(ctx context.Context, principal goGate.Principal) (bool, error) {
	if err := checkPrincipal(principal); err != nil {
		return false, err
	}
	data, err := encodePrincipal(principal)
	if err != nil {
		return false, err
	}
	ok, err := r.client.SetNX(ctx, r.key(principal.Username), data, 0).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx principal: %w", err)
	}
	return ok, nil
}

func (r *Redis) UpdatePasswordHash(ctx context.Context, username, hash string) error {
	key := r.key(username)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return goGate.ErrPrincipalNotFound
			}
			return err
		}
		p, err := decodePrincipal(data)
		if err != nil {
			return err
		}
		p.PasswordHash = hash
		updated, err := encodePrincipal(*p)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, redis.KeepTTL)
			return nil
		})
		return err
	}

	err := r.client.Watch(ctx, txf, key)
	if err != nil && !errors.Is(err, goGate.ErrPrincipalNotFound) {
		return fmt.Errorf("redis update principal: %w", err)
	}
	return err
}
