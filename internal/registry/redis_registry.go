package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/waynekhien/social-media/internal/config"
	"github.com/waynekhien/social-media/pkg/log"
)

// RedisRegistry implements Registry on Redis. Keys are TTL'd and refreshed
// by a heartbeat so entries for crashed instances age out on their own.
type RedisRegistry struct {
	client            *redis.Client
	prefix            string
	keyTTL            time.Duration
	heartbeatInterval time.Duration
	managedKeys       map[string]string // key -> clientID owned by this instance
	mu                sync.RWMutex
	cancel            context.CancelFunc
}

// NewRedisRegistry creates a new RedisRegistry and verifies connectivity.
func NewRedisRegistry(cfg config.RedisConfig) (*RedisRegistry, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisRegistry{
		client:            client,
		prefix:            cfg.RegistryPrefix,
		keyTTL:            cfg.KeyTTL,
		heartbeatInterval: cfg.HeartbeatInterval,
		managedKeys:       make(map[string]string),
	}, nil
}

func (r *RedisRegistry) keyFor(userID string) string {
	return fmt.Sprintf("%s:user:%s", r.prefix, userID)
}

func (r *RedisRegistry) Register(ctx context.Context, userID, clientID string) error {
	key := r.keyFor(userID)

	if err := r.client.Set(ctx, key, clientID, r.keyTTL).Err(); err != nil {
		return fmt.Errorf("failed to register connection: %w", err)
	}

	r.mu.Lock()
	r.managedKeys[key] = clientID
	r.mu.Unlock()

	l := log.L()
	l.Info().Str(log.FieldUserID, userID).Str("client_id", clientID).Msg("registered connection")
	return nil
}

// Deregister removes the user's entry, but only if it still points at
// clientID. A stale disconnect must not evict a newer connection.
func (r *RedisRegistry) Deregister(ctx context.Context, userID, clientID string) error {
	key := r.keyFor(userID)

	current, err := r.client.Get(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to check connection entry: %w", err)
	}
	if err == nil && current == clientID {
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("failed to deregister connection: %w", err)
		}
	}

	r.mu.Lock()
	if owned, ok := r.managedKeys[key]; ok && owned == clientID {
		delete(r.managedKeys, key)
	}
	r.mu.Unlock()

	l := log.L()
	l.Info().Str(log.FieldUserID, userID).Str("client_id", clientID).Msg("deregistered connection")
	return nil
}

func (r *RedisRegistry) Lookup(ctx context.Context, userID string) (string, error) {
	clientID, err := r.client.Get(ctx, r.keyFor(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotConnected
	}
	if err != nil {
		return "", fmt.Errorf("failed to lookup connection: %w", err)
	}
	return clientID, nil
}

func (r *RedisRegistry) StartHeartbeat(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	go r.heartbeatLoop(ctx)
	l := log.L()
	l.Info().Dur("interval", r.heartbeatInterval).Dur("ttl", r.keyTTL).Msg("registry heartbeat started")
}

func (r *RedisRegistry) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshKeys(ctx)
		}
	}
}

func (r *RedisRegistry) refreshKeys(ctx context.Context) {
	r.mu.RLock()
	keys := make(map[string]string, len(r.managedKeys))
	for k, v := range r.managedKeys {
		keys[k] = v
	}
	r.mu.RUnlock()

	for key, clientID := range keys {
		if err := r.client.Set(ctx, key, clientID, r.keyTTL).Err(); err != nil {
			l := log.L()
			l.Error().Str("key", key).Err(err).Msg("failed to refresh key")
		}
	}
}

func (r *RedisRegistry) StopHeartbeat() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *RedisRegistry) Close() error {
	r.StopHeartbeat()
	return r.client.Close()
}

// Ensure interface is satisfied at compile time.
var _ Registry = (*RedisRegistry)(nil)
