// Package draglock extends the reorder commit gate across server instances.
// A lease is a Redis key set with NX and a millisecond expiry; only the holder
// of the lease token may release or extend it.
package draglock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	defaultKeyPrefix = "rinkside:draglock:"
	defaultTTL       = 10 * time.Second
)

var (
	// ErrLocked is returned when another holder owns the scope.
	ErrLocked = errors.New("reorder scope is locked")
	// ErrLeaseLost is returned when the lease expired or was taken over.
	ErrLeaseLost = errors.New("reorder lease no longer held")
)

var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

var extendScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('PEXPIRE', KEYS[1], ARGV[2])
	end
	return 0
`)

// Config holds configuration for the Redis locker
type Config struct {
	RedisClient *redis.Client
	KeyPrefix   string
	TTL         time.Duration
}

type Locker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New validates the config and checks the connection.
func New(ctx context.Context, cfg *Config) (*Locker, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.RedisClient == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if err := cfg.RedisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	locker := &Locker{
		client: cfg.RedisClient,
		prefix: cfg.KeyPrefix,
		ttl:    cfg.TTL,
	}
	if locker.prefix == "" {
		locker.prefix = defaultKeyPrefix
	}
	if locker.ttl <= 0 {
		locker.ttl = defaultTTL
	}
	return locker, nil
}

// Lease is a held scope.
type Lease struct {
	locker *Locker
	key    string
	token  string
}

// Acquire takes the scope for the configured TTL or fails with ErrLocked.
func (l *Locker) Acquire(ctx context.Context, scope string) (*Lease, error) {
	key := l.prefix + scope
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		log.Ctx(ctx).Debug().Str("component", "draglock").Str("key", key).Msg("Reorder scope busy")
		return nil, fmt.Errorf("acquire %s: %w", key, ErrLocked)
	}
	return &Lease{locker: l, key: key, token: token}, nil
}

// Release frees the scope if this lease still holds it.
func (l *Lease) Release(ctx context.Context) error {
	res, err := releaseScript.Run(ctx, l.locker.client, []string{l.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	if res == 0 {
		return fmt.Errorf("release %s: %w", l.key, ErrLeaseLost)
	}
	return nil
}

// Extend resets the expiry to ttl if this lease still holds the scope.
func (l *Lease) Extend(ctx context.Context, ttl time.Duration) error {
	res, err := extendScript.Run(ctx, l.locker.client, []string{l.key}, l.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("extend %s: %w", l.key, err)
	}
	if res == 0 {
		return fmt.Errorf("extend %s: %w", l.key, ErrLeaseLost)
	}
	return nil
}

// Key is the Redis key backing the lease.
func (l *Lease) Key() string {
	return l.key
}
