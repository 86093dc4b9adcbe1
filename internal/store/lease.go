package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/google/uuid"

	"github.com/mrz1836/cadence/internal/errors"
)

// Leases grants exclusive campaign execution rights per campaign and
// environment pair.
type Leases interface {
	// Acquire takes the lease for campaignID on environment.
	// Returns ErrCampaignAlreadyRunning if another execution holds it.
	Acquire(ctx context.Context, campaignID, environment string) (Lease, error)
}

// Lease is a held campaign lease.
type Lease interface {
	// Release gives the lease back. Releasing twice returns ErrLockNotHeld.
	Release(ctx context.Context) error
}

// LeaseKey identifies the lease of a campaign on an environment.
func LeaseKey(campaignID, environment string) string {
	return campaignID + "@" + environment
}

// MemoryLeases grants leases within a single process.
type MemoryLeases struct {
	mu   sync.Mutex
	held map[string]string
}

var _ Leases = (*MemoryLeases)(nil)

// NewMemoryLeases creates an in-process lease table.
func NewMemoryLeases() *MemoryLeases {
	return &MemoryLeases{held: make(map[string]string)}
}

// Acquire takes the lease for campaignID on environment.
func (m *MemoryLeases) Acquire(_ context.Context, campaignID, environment string) (Lease, error) {
	key := LeaseKey(campaignID, environment)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[key]; ok {
		return nil, fmt.Errorf("%w: %s on %s", errors.ErrCampaignAlreadyRunning, campaignID, environment)
	}
	token := uuid.NewString()
	m.held[key] = token
	return &memoryLease{owner: m, key: key, token: token}, nil
}

type memoryLease struct {
	owner *MemoryLeases
	key   string
	token string
}

func (l *memoryLease) Release(_ context.Context) error {
	l.owner.mu.Lock()
	defer l.owner.mu.Unlock()
	if l.owner.held[l.key] != l.token {
		return fmt.Errorf("%w: %s", errors.ErrLockNotHeld, l.key)
	}
	delete(l.owner.held, l.key)
	return nil
}

// releaseScript deletes the key only while it still holds the caller's token.
//
//nolint:gochecknoglobals // compiled once, hashed by redigo
var releaseScript = redis.NewScript(1, `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLeases grants leases shared by every process connected to the same
// Redis server. Leases expire after ttl so a crashed process cannot block a
// campaign forever.
type RedisLeases struct {
	pool   *redis.Pool
	prefix string
	ttl    time.Duration
}

var _ Leases = (*RedisLeases)(nil)

// NewRedisPool creates a connection pool for address.
func NewRedisPool(address string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     4,
		IdleTimeout: 4 * time.Minute,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", address)
		},
	}
}

// NewRedisLeases creates leases stored under prefix in the pool's server.
func NewRedisLeases(pool *redis.Pool, prefix string, ttl time.Duration) *RedisLeases {
	return &RedisLeases{pool: pool, prefix: prefix, ttl: ttl}
}

// Acquire takes the lease for campaignID on environment.
func (r *RedisLeases) Acquire(ctx context.Context, campaignID, environment string) (Lease, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer func() { _ = conn.Close() }()

	key := r.prefix + LeaseKey(campaignID, environment)
	token := uuid.NewString()
	_, err = redis.String(conn.Do("SET", key, token, "NX", "PX", r.ttl.Milliseconds()))
	if stderrors.Is(err, redis.ErrNil) {
		return nil, fmt.Errorf("%w: %s on %s", errors.ErrCampaignAlreadyRunning, campaignID, environment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire campaign lease: %w", err)
	}
	return &redisLease{pool: r.pool, key: key, token: token}, nil
}

type redisLease struct {
	pool  *redis.Pool
	key   string
	token string
}

func (l *redisLease) Release(ctx context.Context) error {
	conn, err := l.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer func() { _ = conn.Close() }()

	n, err := redis.Int(releaseScript.Do(conn, l.key, l.token))
	if err != nil {
		return fmt.Errorf("failed to release campaign lease: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", errors.ErrLockNotHeld, l.key)
	}
	return nil
}
