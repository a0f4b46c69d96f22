package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohamedkhairy/coin-alerts/internal/config"
	"github.com/mohamedkhairy/coin-alerts/internal/models"
	"github.com/mohamedkhairy/coin-alerts/pkg/logger"
)

// cachedPrice is the JSON value stored per asset, key "price:<asset>"
type cachedPrice struct {
	Price float64 `json:"price"`
	TS    int64   `json:"ts"` // Unix milliseconds at capture
}

// RedisPriceCache is a Redis-backed implementation of PriceCache. Freshness
// is enforced by Redis key expiry, so everything Get returns is fresh.
type RedisPriceCache struct {
	client *redis.Client
}

// NewRedisPriceCache connects to Redis and returns a price cache backed by it
func NewRedisPriceCache(cfg config.RedisConfig) (*RedisPriceCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Connected to Redis price cache",
		logger.String("host", cfg.Host),
		logger.Int("port", cfg.Port),
	)

	return &RedisPriceCache{client: rdb}, nil
}

func priceKey(assetID string) string {
	return "price:" + models.NormalizeAssetID(assetID)
}

// Get returns fresh entries for the requested asset ids using a single
// pipeline round trip. Expired or missing keys are omitted.
func (c *RedisPriceCache) Get(ctx context.Context, assetIDs []string) (*models.PriceSnapshot, error) {
	snapshot := models.NewPriceSnapshot(time.Now())
	if len(assetIDs) == 0 {
		return snapshot, nil
	}

	pipe := c.client.Pipeline()
	cmds := make(map[string]*redis.StringCmd, len(assetIDs))
	for _, id := range assetIDs {
		normalized := models.NormalizeAssetID(id)
		cmds[normalized] = pipe.Get(ctx, priceKey(normalized))
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read price cache: %w", err)
	}

	for id, cmd := range cmds {
		raw, err := cmd.Result()
		if err != nil {
			continue // missing or expired
		}
		var cached cachedPrice
		if err := json.Unmarshal([]byte(raw), &cached); err != nil {
			logger.Warn("Discarding malformed cache entry",
				logger.ErrorField(err),
				logger.String("asset_id", id),
			)
			continue
		}
		snapshot.Prices[id] = cached.Price
	}

	return snapshot, nil
}

// Put stores every entry of the snapshot with the given TTL
func (c *RedisPriceCache) Put(ctx context.Context, snapshot *models.PriceSnapshot, ttl time.Duration) error {
	if len(snapshot.Prices) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for id, price := range snapshot.Prices {
		data, err := json.Marshal(cachedPrice{
			Price: price,
			TS:    snapshot.CapturedAt.UnixMilli(),
		})
		if err != nil {
			return fmt.Errorf("failed to marshal cache entry: %w", err)
		}
		pipe.Set(ctx, priceKey(id), data, ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write price cache: %w", err)
	}

	return nil
}

// Close closes the Redis connection
func (c *RedisPriceCache) Close() error {
	return c.client.Close()
}

// Compile-time interface check
var _ PriceCache = (*RedisPriceCache)(nil)
