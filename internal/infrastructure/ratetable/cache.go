package ratetable

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/taxflow/backend/internal/domain/shared/valueobject"
	"github.com/taxflow/backend/internal/infrastructure/config"
)

const defaultRateKeyPrefix = "taxflow:rates:"

// CachedRateSource wraps a RateSource with a Redis read-through cache.
// Rate tables change rarely, so cached results are served until the TTL
// expires. Cache failures degrade to direct lookups.
type CachedRateSource struct {
	source    RateSource
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewCachedRateSource creates a cache around source using a new Redis
// connection.
func NewCachedRateSource(source RateSource, cfg config.RedisConfig, ttl time.Duration, logger *zap.Logger) (*CachedRateSource, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewCachedRateSourceWithClient(source, client, "", ttl, logger), nil
}

// NewCachedRateSourceWithClient creates a cache with an existing Redis
// client. This is useful for testing or when sharing a client across
// components.
func NewCachedRateSourceWithClient(source RateSource, client *redis.Client, keyPrefix string, ttl time.Duration, logger *zap.Logger) *CachedRateSource {
	if keyPrefix == "" {
		keyPrefix = defaultRateKeyPrefix
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedRateSource{
		source:    source,
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		logger:    logger,
	}
}

// RatesByPostal resolves rates from a country and postal code.
func (c *CachedRateSource) RatesByPostal(ctx context.Context, country, postalCode string) (*RateResult, error) {
	key := c.keyPrefix + "postal:" + strings.ToUpper(country) + ":" + postalCode
	return c.lookup(ctx, key, func(ctx context.Context) (*RateResult, error) {
		return c.source.RatesByPostal(ctx, country, postalCode)
	})
}

// RatesByAddress resolves rates from a full street address.
func (c *CachedRateSource) RatesByAddress(ctx context.Context, addr valueobject.Address) (*RateResult, error) {
	key := c.keyPrefix + "addr:" + strings.ToLower(strings.Join([]string{
		addr.Street(), addr.City(), addr.Region(), addr.PostalCode(), addr.Country(),
	}, "|"))
	return c.lookup(ctx, key, func(ctx context.Context) (*RateResult, error) {
		return c.source.RatesByAddress(ctx, addr)
	})
}

func (c *CachedRateSource) lookup(ctx context.Context, key string, fetch func(context.Context) (*RateResult, error)) (*RateResult, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached RateResult
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
		c.logger.Warn("discarding unreadable cached rate entry", zap.String("key", key))
	} else if err != redis.Nil {
		c.logger.Warn("rate cache read failed, falling back to source",
			zap.String("key", key), zap.Error(err))
	}

	result, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(result); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("rate cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return result, nil
}

// Client exposes the underlying Redis client, e.g. for health checks.
func (c *CachedRateSource) Client() *redis.Client {
	return c.client
}

// Close closes the Redis client.
func (c *CachedRateSource) Close() error {
	return c.client.Close()
}

var _ RateSource = (*CachedRateSource)(nil)
