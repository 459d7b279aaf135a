package predcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/pandemetrix/pandemetrix/internal/domain/predictor"
)

// ValkeyCache persists prediction results in a Valkey-compatible
// database so identical requests are served from cache across replicas.
type ValkeyCache struct {
	client valkey.Client
	prefix string
}

// NewValkeyCache constructs the cache.
func NewValkeyCache(client valkey.Client, prefix string) *ValkeyCache {
	if prefix == "" {
		prefix = "prediction"
	}
	return &ValkeyCache{client: client, prefix: prefix}
}

func (c *ValkeyCache) Get(ctx context.Context, key string) (predictor.Result, bool, error) {
	cmd := c.client.B().Get().Key(c.cacheKey(key)).Build()
	payload, err := c.client.Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return predictor.Result{}, false, nil
		}
		return predictor.Result{}, false, err
	}
	var result predictor.Result
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return predictor.Result{}, false, err
	}
	return result, true, nil
}

func (c *ValkeyCache) Set(ctx context.Context, key string, res predictor.Result, ttl time.Duration) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return err
	}
	builder := c.client.B().Set().Key(c.cacheKey(key)).Value(string(payload))
	if ttl > 0 {
		return c.client.Do(ctx, builder.Ex(ttl).Build()).Error()
	}
	return c.client.Do(ctx, builder.Build()).Error()
}

func (c *ValkeyCache) cacheKey(key string) string {
	return c.prefix + ":" + key
}
