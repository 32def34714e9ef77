package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache provides caching functionality using Redis
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to redisURL and pings it
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisCache{client: client}, nil
}

func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// ErrCacheMiss is returned by Get when the key does not exist
var ErrCacheMiss = errors.New("cache miss")

// Set stores a value in cache with expiration
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, expiration).Err()
}

// Get retrieves a value from cache
func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

// Delete removes a key from cache
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// CheckoutSnapshotTTL bounds how long a checkout summary outlives its payment redirect
const CheckoutSnapshotTTL = 2 * time.Hour

// CheckoutSnapshot is the display-only order summary kept across the gateway redirect.
// It is never used to change request state.
type CheckoutSnapshot struct {
	OrderNumber    string    `json:"order_number"`
	RequestID      uint      `json:"request_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Purpose        string    `json:"purpose"`
	Recipient      string    `json:"recipient"`
	Price          float64   `json:"price"`
	DiscountAmount float64   `json:"discount_amount"`
	FinalPrice     float64   `json:"final_price"`
	CouponCode     string    `json:"coupon_code,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// CheckoutStore keeps checkout snapshots keyed by order number
type CheckoutStore struct {
	cache *RedisCache
	ttl   time.Duration
}

func NewCheckoutStore(cache *RedisCache) *CheckoutStore {
	return &CheckoutStore{cache: cache, ttl: CheckoutSnapshotTTL}
}

func checkoutKey(orderNumber string) string {
	return "checkout:" + orderNumber
}

func (s *CheckoutStore) Save(ctx context.Context, snap CheckoutSnapshot) error {
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now()
	}
	return s.cache.Set(ctx, checkoutKey(snap.OrderNumber), snap, s.ttl)
}

// Load returns the snapshot, or nil when it expired or never existed
func (s *CheckoutStore) Load(ctx context.Context, orderNumber string) (*CheckoutSnapshot, error) {
	var snap CheckoutSnapshot
	if err := s.cache.Get(ctx, checkoutKey(orderNumber), &snap); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return &snap, nil
}

func (s *CheckoutStore) Delete(ctx context.Context, orderNumber string) error {
	return s.cache.Delete(ctx, checkoutKey(orderNumber))
}
