package analytics

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trezcool/soko/core"
)

const (
	keyPrefix = "analytics:"

	// SharedActor keys reports that do not depend on who asks.
	SharedActor = "all_users"
)

// Cache time-to-lives per report kind.
var ttls = map[string]time.Duration{
	KindDashboardKPIs:      5 * time.Minute,
	KindSalesPipeline:      5 * time.Minute,
	KindSalesPerformance:   10 * time.Minute,
	KindCustomerEngagement: 10 * time.Minute,
	KindTaskCompletion:     10 * time.Minute,
	KindConversionRatios:   10 * time.Minute,
	KindUserActivity:       15 * time.Minute,
}

const defaultTTL = 5 * time.Minute

var (
	// ErrCacheMiss is returned by a Store when the key is absent or expired.
	ErrCacheMiss = errors.New("cache miss")

	cacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soko",
		Subsystem: "analytics_cache",
		Name:      "requests_total",
		Help:      "Analytics cache lookups by result (hit, miss, error).",
	}, []string{"result"})
)

type (
	// Store is a byte-oriented key/value store with expiry.
	Store interface {
		Get(ctx context.Context, key string) ([]byte, error)
		Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
		// DeletePrefix removes every key starting with prefix and returns how many were removed.
		DeletePrefix(ctx context.Context, prefix string) (int, error)
	}

	Codec interface {
		Marshal(v interface{}) ([]byte, error)
		Unmarshal(data []byte, v interface{}) error
	}

	JSONCodec struct{}
)

func (JSONCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

// TTL returns the cache lifetime of a report kind.
func TTL(kind string) time.Duration {
	if ttl, ok := ttls[kind]; ok {
		return ttl
	}
	return defaultTTL
}

// Key derives the cache key of a report: the same (actor, kind, params) always give the same key.
// Params are canonicalised through encoding/json (sorted map keys, struct field order).
func Key(actorID, kind string, params interface{}) (string, error) {
	canon, err := json.Marshal(params)
	if err != nil {
		return "", errors.Wrap(err, "canonicalising params")
	}
	sum := md5.Sum([]byte(actorID + ":" + kind + ":" + string(canon)))
	return keyPrefix + actorID + ":" + kind + ":" + hex.EncodeToString(sum[:]), nil
}

// CacheManager caches report results. Store failures are logged and treated as misses.
type CacheManager struct {
	store  Store
	codec  Codec
	logger core.Logger
}

func NewCacheManager(store Store, codec Codec, logger core.Logger) *CacheManager {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &CacheManager{store: store, codec: codec, logger: logger}
}

// Get decodes the cached value of key into dst and reports whether it was found.
func (cm *CacheManager) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	data, err := cm.store.Get(ctx, key)
	if err != nil {
		if errors.Cause(err) == ErrCacheMiss {
			cacheRequests.WithLabelValues("miss").Inc()
			return false, nil
		}
		cacheRequests.WithLabelValues("error").Inc()
		return false, errors.Wrap(err, "reading cache")
	}
	if err := cm.codec.Unmarshal(data, dst); err != nil {
		cacheRequests.WithLabelValues("error").Inc()
		return false, errors.Wrap(err, "decoding cached value")
	}
	cacheRequests.WithLabelValues("hit").Inc()
	return true, nil
}

func (cm *CacheManager) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := cm.codec.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "encoding value")
	}
	if err := cm.store.Set(ctx, key, data, ttl); err != nil {
		return errors.Wrap(err, "writing cache")
	}
	return nil
}

// ClearUser removes the cached reports of one actor.
func (cm *CacheManager) ClearUser(ctx context.Context, actorID string) (int, error) {
	n, err := cm.store.DeletePrefix(ctx, keyPrefix+actorID+":")
	return n, errors.Wrap(err, "clearing user cache")
}

// ClearAll removes every cached report.
func (cm *CacheManager) ClearAll(ctx context.Context) (int, error) {
	n, err := cm.store.DeletePrefix(ctx, keyPrefix)
	return n, errors.Wrap(err, "clearing cache")
}

// Cached returns the cached report of (actorID, kind, params), computing and storing it on a miss.
// Cache failures never fail the call.
func Cached[T any](ctx context.Context, cm *CacheManager, actorID, kind string, params interface{}, compute func() (T, error)) (T, error) {
	key, err := Key(actorID, kind, params)
	if err != nil {
		return compute()
	}

	var cached T
	ok, err := cm.Get(ctx, key, &cached)
	if err != nil {
		cm.logger.Warn("analytics cache read failed", err, map[string]interface{}{"key": key})
	}
	if ok {
		return cached, nil
	}

	val, err := compute()
	if err != nil {
		return val, err
	}
	if err := cm.Set(ctx, key, val, TTL(kind)); err != nil {
		cm.logger.Warn("analytics cache write failed", err, map[string]interface{}{"key": key})
	}
	return val, nil
}
