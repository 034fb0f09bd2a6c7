package adapters

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tidwall/gjson"
)

// RedisAdapter reads wait times from a Redis list that a queue system appends
// to (RPUSH), oldest element first. Elements are either plain numbers or JSON
// documents, in which case Field is a gjson path to the wait time.
type RedisAdapter struct {
	client *redis.Client

	// Key is the list holding the observations.
	Key string
	// Limit keeps only the newest Limit elements when > 0.
	Limit int
	// Field is the gjson path of the value inside JSON elements (optional).
	Field string
}

// NewRedisAdapter creates a Redis-backed adapter.
//
// Parameters:
//   - addr: Redis server address (e.g., "localhost:6379")
//   - password: Redis password (empty string for no auth)
//   - db: Redis database number (typically 0)
//   - key: list key, e.g. "queue:er:wait_minutes"
//
// The connection is established lazily on the first Collect.
func NewRedisAdapter(addr, password string, db int, key string) (*RedisAdapter, error) {
	if addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if db < 0 {
		return nil, errors.New("redis database number must be >= 0")
	}
	if key == "" {
		return nil, errors.New("redis list key cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	return &RedisAdapter{client: client, Key: key}, nil
}

func (r *RedisAdapter) Name() string { return "redis" }

// Collect implements Adapter. windowSeconds is ignored; use Limit to bound history.
func (r *RedisAdapter) Collect(ctx context.Context, _ int) (*DataFrame, error) {
	start := int64(0)
	if r.Limit > 0 {
		start = -int64(r.Limit)
	}

	items, err := r.client.LRange(ctx, r.Key, start, -1).Result()
	if err != nil {
		return &DataFrame{}, fmt.Errorf("redis adapter: lrange %s: %w", r.Key, err)
	}
	if len(items) == 0 {
		return &DataFrame{}, fmt.Errorf("redis adapter: list %q is empty or missing", r.Key)
	}

	rows := make([]Row, 0, len(items))
	for i, item := range items {
		v, err := r.parse(item)
		if err != nil {
			return &DataFrame{}, fmt.Errorf("redis adapter: element %d: %w", i, err)
		}
		rows = append(rows, Row{
			"index": i,
			"value": v,
		})
	}
	return &DataFrame{Rows: rows}, nil
}

func (r *RedisAdapter) parse(item string) (float64, error) {
	if r.Field == "" {
		return strconv.ParseFloat(strings.TrimSpace(item), 64)
	}
	if !gjson.Valid(item) {
		return 0, fmt.Errorf("invalid JSON %q", item)
	}
	res := gjson.Get(item, r.Field)
	if !res.Exists() {
		return 0, fmt.Errorf("field %q not found", r.Field)
	}
	if res.Type == gjson.String {
		return strconv.ParseFloat(res.Str, 64)
	}
	if res.Type != gjson.Number {
		return 0, fmt.Errorf("field %q is not numeric", r.Field)
	}
	return res.Float(), nil
}

// Close releases the Redis connection pool.
func (r *RedisAdapter) Close() error {
	return r.client.Close()
}
