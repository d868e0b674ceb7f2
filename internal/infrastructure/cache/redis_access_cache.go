package cache

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/govcon/backend/internal/domain/entitlement"
	"github.com/redis/go-redis/v9"
)

// RedisAccessCache implements the fast-access cache port on Redis. Entries
// live at "<family>:<normalized email>" as JSON; key presence is the access
// signal, so no TTLs are set.
type RedisAccessCache struct {
	client *redis.Client
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisAccessCache creates a Redis-backed access cache and verifies the
// connection
func NewRedisAccessCache(cfg RedisConfig) (*RedisAccessCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisAccessCache{client: client}, nil
}

// NewRedisAccessCacheWithClient creates a cache with an existing Redis client
func NewRedisAccessCacheWithClient(client *redis.Client) *RedisAccessCache {
	return &RedisAccessCache{client: client}
}

func accessKey(family entitlement.CacheFamily, email string) string {
	return string(family) + ":" + entitlement.NormalizeEmail(email)
}

// Grant writes entry unless one already exists; re-granting is a no-op.
// SETNX makes the check-and-set atomic across instances.
func (c *RedisAccessCache) Grant(ctx context.Context, family entitlement.CacheFamily, email string, entry entitlement.CacheEntry) error {
	entry.Email = entitlement.NormalizeEmail(email)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.client.SetNX(ctx, accessKey(family, email), payload, 0).Err()
}

// GrantDatabaseAccess ensures a contractor-database grant exists. The
// single-use token is minted only when no dbaccess entry is present yet;
// re-granting returns the existing token.
func (c *RedisAccessCache) GrantDatabaseAccess(ctx context.Context, email string) (string, bool, error) {
	existing, err := c.GetEntry(ctx, entitlement.FamilyDatabaseAccess, email)
	if err != nil {
		return "", false, err
	}
	if existing != nil {
		return existing.Token, false, nil
	}

	token := newAccessToken()
	now := time.Now()
	normalized := entitlement.NormalizeEmail(email)

	tokenEntry, err := json.Marshal(entitlement.CacheEntry{Email: normalized, Token: token, CreatedAt: now})
	if err != nil {
		return "", false, err
	}
	accessEntry, err := json.Marshal(entitlement.CacheEntry{Email: normalized, Token: token, CreatedAt: now})
	if err != nil {
		return "", false, err
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, accessKey(entitlement.FamilyDatabaseToken, token), tokenEntry, 0)
	pipe.SetNX(ctx, accessKey(entitlement.FamilyDatabaseAccess, email), accessEntry, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", false, err
	}
	return token, true, nil
}

// HasAccess reports whether an entry exists for email under family
func (c *RedisAccessCache) HasAccess(ctx context.Context, family entitlement.CacheFamily, email string) (bool, error) {
	n, err := c.client.Exists(ctx, accessKey(family, email)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetEntry returns the entry for email under family, or nil if absent
func (c *RedisAccessCache) GetEntry(ctx context.Context, family entitlement.CacheFamily, email string) (*entitlement.CacheEntry, error) {
	payload, err := c.client.Get(ctx, accessKey(family, email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var entry entitlement.CacheEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListFamily enumerates every entry under family via SCAN
func (c *RedisAccessCache) ListFamily(ctx context.Context, family entitlement.CacheFamily) ([]entitlement.CacheEntry, error) {
	var entries []entitlement.CacheEntry
	iter := c.client.Scan(ctx, 0, string(family)+":*", 100).Iterator()
	for iter.Next(ctx) {
		payload, err := c.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		var entry entitlement.CacheEntry
		if err := json.Unmarshal(payload, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

const tokenAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// newAccessToken mints a 24-character lowercase alphanumeric token for the
// single-use database access link
func newAccessToken() string {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	for i, b := range buf {
		buf[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}
	return string(buf)
}

// Ensure RedisAccessCache implements the cache port
var _ entitlement.AccessCache = (*RedisAccessCache)(nil)
