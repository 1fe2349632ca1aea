package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

const defaultLockPrefix = "sercha:lock:"

// Lock implements DistributedLock with SET NX and a TTL. Each instance
// writes its own owner token so it can never release a lock it lost.
type Lock struct {
	client *redis.Client
	prefix string
	owner  string
}

// LockConfig holds configuration for a Redis lock.
type LockConfig struct {
	Client *redis.Client
	Prefix string // Key prefix (default: sercha:lock:)
	Owner  string // Owner token (default: hostname plus a random suffix)
}

// NewLock creates a Redis-backed distributed lock.
func NewLock(cfg LockConfig) *Lock {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultLockPrefix
	}
	owner := cfg.Owner
	if owner == "" {
		hostname, _ := os.Hostname()
		owner = hostname + "/" + uuid.NewString()
	}
	return &Lock{client: cfg.Client, prefix: prefix, owner: owner}
}

// Owner returns the token this instance writes into locks it holds.
func (l *Lock) Owner() string {
	return l.owner
}

// Acquire takes the named lock for ttl. Returns false if another owner holds it.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+name, l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	return ok, nil
}

// compareAndDelete removes KEYS[1] only while it still holds ARGV[1].
var compareAndDelete = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Release drops the named lock if this instance still owns it.
func (l *Lock) Release(ctx context.Context, name string) error {
	err := compareAndDelete.Run(ctx, l.client, []string{l.prefix + name}, l.owner).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (l *Lock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
