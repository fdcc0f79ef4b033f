package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"casedesk/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Aside serves dest from key when cached, otherwise runs load (which must fill dest)
// and caches the result for ttl. Cache failures degrade to calling load.
// The result is only cached if the key is still empty afterwards, so a concurrent
// Invalidate wins over a load that read the old value.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, load func() error) error {
	if client == nil {
		return load()
	}

	ctx, span := observability.GetTraceLayer().TraceCache(ctx, "aside", key)
	defer span.End()

	raw, err := client.Get(ctx, key).Bytes()
	switch {
	case err == nil && string(raw) == tombstone:
		observability.CacheLookups.WithLabelValues("held").Inc()
		return load()
	case err == nil:
		if jsonErr := json.Unmarshal(raw, dest); jsonErr == nil {
			observability.CacheLookups.WithLabelValues("hit").Inc()
			return nil
		}
		client.Del(ctx, key)
	case !errors.Is(err, redis.Nil):
		slog.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	observability.CacheLookups.WithLabelValues("miss").Inc()

	if err := load(); err != nil {
		return err
	}

	data, err := json.Marshal(dest)
	if err != nil {
		return nil
	}
	if err := client.SetNX(ctx, key, data, ttl).Err(); err != nil {
		slog.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return nil
}
