// Package lease provides a Redis-backed mutual exclusion lease so that only
// one sweep runs at a time across worker instances.
package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned when releasing or renewing a lease this holder does not own.
var ErrNotHeld = errors.New("lease: not held")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// Lease is a named lock owned by one holder token.
type Lease struct {
	client redis.UniversalClient
	key    string
	token  string
	ttl    time.Duration
}

// New creates a lease for key. Each Lease gets its own holder token.
func New(client redis.UniversalClient, key string, ttl time.Duration) *Lease {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Lease{client: client, key: key, token: uuid.NewString(), ttl: ttl}
}

// Acquire takes the lease if nobody holds it. It reports false when another holder has it.
func (l *Lease) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lease: acquire %s: %w", l.key, err)
	}
	return ok, nil
}

// Renew extends a held lease by its TTL.
func (l *Lease) Renew(ctx context.Context) error {
	n, err := renewScript.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("lease: renew %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// Release gives the lease up. Releasing a lease held by someone else is an error
// and leaves their lease in place.
func (l *Lease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("lease: release %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// TTL is how long an acquired or renewed lease lasts without renewal.
func (l *Lease) TTL() time.Duration { return l.ttl }

// Key returns the Redis key guarded by the lease.
func (l *Lease) Key() string { return l.key }
