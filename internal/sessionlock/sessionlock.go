// Package sessionlock serializes mutations of a single KYC session across
// request handlers and face-match workers.
package sessionlock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrBusy is returned when the lock could not be acquired before the wait
// budget ran out.
var ErrBusy = errors.New("session is locked by another operation")

const (
	keyPrefix = "kyc:session-lock:"

	defaultTTL     = 2 * time.Minute
	defaultWait    = 5 * time.Second
	defaultBackoff = 50 * time.Millisecond
)

// Unlock releases a held lock. It is safe to call more than once.
type Unlock func()

// Redis is a lease lock stored under one key per session. The lease expires
// after TTL so a crashed holder cannot wedge a session forever.
type Redis struct {
	client  *redis.Client
	ttl     time.Duration
	wait    time.Duration
	backoff time.Duration
}

// RedisOption configures a Redis lock.
type RedisOption func(*Redis)

// WithTTL sets the lease duration.
func WithTTL(d time.Duration) RedisOption {
	return func(r *Redis) { r.ttl = d }
}

// WithWait sets how long Lock polls before giving up with ErrBusy.
func WithWait(d time.Duration) RedisOption {
	return func(r *Redis) { r.wait = d }
}

// NewRedis constructs a Redis-backed lock.
func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{client: client, ttl: defaultTTL, wait: defaultWait, backoff: defaultBackoff}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// releaseScript deletes the key only while it still holds our token, so an
// expired lease that someone else re-acquired is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Lock acquires the lease for sessionID.
func (r *Redis) Lock(ctx context.Context, sessionID string) (Unlock, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	key := keyPrefix + sessionID
	deadline := time.Now().Add(r.wait)
	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire session lock: %w", err)
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() {
					// Release on a fresh context: the caller's may already be done.
					rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					_ = releaseScript.Run(rctx, r.client, []string{key}, token).Err()
				})
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrBusy
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.backoff):
		}
	}
}

func newToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("lock token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Local is an in-process lock for single-binary deployments and tests.
type Local struct {
	mu   sync.Mutex
	held map[string]chan struct{}
	wait time.Duration
}

// NewLocal returns a Local lock that waits up to wait for a busy session.
// A zero wait fails immediately with ErrBusy.
func NewLocal(wait time.Duration) *Local {
	return &Local{held: make(map[string]chan struct{}), wait: wait}
}

// Lock acquires the lock for sessionID.
func (l *Local) Lock(ctx context.Context, sessionID string) (Unlock, error) {
	var timeout <-chan time.Time
	if l.wait > 0 {
		t := time.NewTimer(l.wait)
		defer t.Stop()
		timeout = t.C
	}
	for {
		l.mu.Lock()
		released, busy := l.held[sessionID]
		if !busy {
			ch := make(chan struct{})
			l.held[sessionID] = ch
			l.mu.Unlock()
			var once sync.Once
			return func() {
				once.Do(func() {
					l.mu.Lock()
					delete(l.held, sessionID)
					l.mu.Unlock()
					close(ch)
				})
			}, nil
		}
		l.mu.Unlock()

		if timeout == nil {
			return nil, ErrBusy
		}
		select {
		case <-released:
		case <-timeout:
			return nil, ErrBusy
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
