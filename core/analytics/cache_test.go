package analytics

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type mapStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	failing bool
}

func newMapStore() *mapStore {
	return &mapStore{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

var errStoreDown = errors.New("store down")

func (s *mapStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, errStoreDown
	}
	v, ok := s.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

func (s *mapStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errStoreDown
	}
	s.data[key] = value
	s.ttls[key] = ttl
	return nil
}

func (s *mapStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return 0, errStoreDown
	}
	n := 0
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func TestKey(t *testing.T) {
	d := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	k1, err := Key("u1", KindSalesPerformance, Params{StartDate: &d, Grouping: GroupByDay})
	require.NoError(t, err)
	d2 := d
	k2, err := Key("u1", KindSalesPerformance, Params{StartDate: &d2, Grouping: GroupByDay})
	require.NoError(t, err)
	assert.Equal(t, k1, k2, "same inputs give the same key")
	assert.True(t, strings.HasPrefix(k1, "analytics:u1:sales_performance:"))

	others := []struct {
		actor, kind string
		params      interface{}
	}{
		{"u2", KindSalesPerformance, Params{StartDate: &d, Grouping: GroupByDay}},
		{"u1", KindTaskCompletion, Params{StartDate: &d, Grouping: GroupByDay}},
		{"u1", KindSalesPerformance, Params{StartDate: &d, Grouping: GroupByWeek}},
		{"u1", KindSalesPerformance, Params{Grouping: GroupByDay}},
	}
	for _, o := range others {
		k, err := Key(o.actor, o.kind, o.params)
		require.NoError(t, err)
		assert.NotEqual(t, k1, k)
	}

	m1, err := Key("u1", KindDashboardKPIs, map[string]interface{}{"b": 1, "a": "x"})
	require.NoError(t, err)
	m2, err := Key("u1", KindDashboardKPIs, map[string]interface{}{"a": "x", "b": 1})
	require.NoError(t, err)
	assert.Equal(t, m1, m2, "map params are order independent")
}

func TestTTL(t *testing.T) {
	assert.Equal(t, 5*time.Minute, TTL(KindDashboardKPIs))
	assert.Equal(t, 10*time.Minute, TTL(KindSalesPerformance))
	assert.Equal(t, 15*time.Minute, TTL(KindUserActivity))
	assert.Equal(t, defaultTTL, TTL("unknown"))
}

func TestCached(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	cm := NewCacheManager(store, nil, nopLogger{})

	calls := 0
	compute := func() (SalesSummary, error) {
		calls++
		return SalesSummary{TotalSales: calls, TotalAmount: decimal.RequireFromString("12.50")}, nil
	}

	got, err := Cached(ctx, cm, "u1", KindSalesPerformance, Params{Grouping: GroupByDay}, compute)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalSales)

	got, err = Cached(ctx, cm, "u1", KindSalesPerformance, Params{Grouping: GroupByDay}, compute)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalSales, "served from cache")
	assert.Equal(t, "12.5", got.TotalAmount.String())
	assert.Equal(t, 1, calls)

	key, _ := Key("u1", KindSalesPerformance, Params{Grouping: GroupByDay})
	assert.Equal(t, 10*time.Minute, store.ttls[key])

	_, err = Cached(ctx, cm, "u2", KindSalesPerformance, Params{Grouping: GroupByDay}, compute)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "keys are per actor")
}

func TestCached_computeError(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	cm := NewCacheManager(store, nil, nopLogger{})

	boom := errors.New("boom")
	_, err := Cached(ctx, cm, "u1", KindDashboardKPIs, nil, func() (KPIs, error) { return KPIs{}, boom })
	assert.Equal(t, boom, err)
	assert.Empty(t, store.data, "errors are not cached")
}

func TestCached_storeDown(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	store.failing = true
	cm := NewCacheManager(store, nil, nopLogger{})

	calls := 0
	for i := 0; i < 2; i++ {
		got, err := Cached(ctx, cm, "u1", KindDashboardKPIs, nil, func() (int, error) {
			calls++
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, got)
	}
	assert.Equal(t, 2, calls)
}

func TestCacheManager_Clear(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	cm := NewCacheManager(store, nil, nopLogger{})

	for _, actor := range []string{"u1", "u1", "u10", "u2", SharedActor} {
		for _, kind := range []string{KindDashboardKPIs, KindSalesPipeline} {
			key, err := Key(actor, kind, nil)
			require.NoError(t, err)
			require.NoError(t, cm.Set(ctx, key, 1, time.Minute))
		}
	}
	require.NoError(t, store.Set(ctx, "other:key", []byte("1"), time.Minute))

	n, err := cm.ClearUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "u10 is not u1")

	n, err = cm.ClearAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Len(t, store.data, 1, "foreign keys are kept")

	store.failing = true
	_, err = cm.ClearAll(ctx)
	assert.Equal(t, errStoreDown, errors.Cause(err))
}
