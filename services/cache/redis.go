package cachesvc

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/analytics"
)

const scanBatch = 500

// RedisStore is a Store backed by redis. Every call goes through a circuit breaker so a down
// server fails fast instead of stalling requests.
type RedisStore struct {
	client  redis.UniversalClient
	breaker *gobreaker.CircuitBreaker
}

var _ analytics.Store = (*RedisStore)(nil)

func NewRedisStore(conf core.RedisConfig, logger core.Logger) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Address,
		Password: conf.Password,
		DB:       conf.DB,
	})
	return newRedisStore(client, conf, logger)
}

func newRedisStore(client redis.UniversalClient, conf core.RedisConfig, logger core.Logger) *RedisStore {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-cache",
		MaxRequests: conf.BreakerMaxRequests,
		Interval:    conf.BreakerInterval,
		Timeout:     conf.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= conf.BreakerFailureThreshold
		},
		// a miss is not a failure
		IsSuccessful: func(err error) bool {
			return err == nil || err == redis.Nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", map[string]interface{}{
				"name": name,
				"from": from.String(),
				"to":   to.String(),
			})
		},
	})
	return &RedisStore{client: client, breaker: breaker}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	res, err := s.breaker.Execute(func() (interface{}, error) {
		return s.client.Get(ctx, key).Bytes()
	})
	if err != nil {
		if err == redis.Nil {
			return nil, analytics.ErrCacheMiss
		}
		return nil, errors.Wrap(err, "redis GET")
	}
	return res.([]byte), nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.client.Set(ctx, key, value, ttl).Err()
	})
	return errors.Wrap(err, "redis SET")
}

// DeletePrefix scans the keyspace for prefix* and deletes the matches batch by batch.
func (s *RedisStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	res, err := s.breaker.Execute(func() (interface{}, error) {
		var (
			cursor  uint64
			deleted int
		)
		for {
			keys, next, err := s.client.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
			if err != nil {
				return deleted, err
			}
			if len(keys) > 0 {
				n, err := s.client.Del(ctx, keys...).Result()
				if err != nil {
					return deleted, err
				}
				deleted += int(n)
			}
			if next == 0 {
				return deleted, nil
			}
			cursor = next
		}
	})
	if err != nil {
		return 0, errors.Wrap(err, "redis prefix delete")
	}
	return res.(int), nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
