package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/apperr"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot(at time.Time) *Snapshot {
	flavors := []Flavor{
		{ID: "f-nat", Name: DefaultFlavorName, Price: decimal.Zero, IsActive: true, SortOrder: 1},
		{ID: "f-bbq", Name: "BBQ", Price: decimal.NewFromInt(15), IsActive: true, SortOrder: 2},
		{ID: "f-old", Name: "Mango", Price: decimal.NewFromInt(5), IsActive: false, SortOrder: 3},
	}
	styles := []Style{
		{ID: "s-asado", Name: StyleAsado, DisplayName: "Asado", IsActive: true, SortOrder: 1},
		{ID: "s-rost", Name: StyleRostizado, DisplayName: "Rostizado", IsActive: true, SortOrder: 2},
	}
	products := []Product{
		{ID: "p-2", Code: "medio_pollo", Name: "1/2 Pollo", Price: decimal.NewFromInt(100), IsActive: true, SortOrder: 2,
			FlavorIDs: []string{"f-nat", "f-bbq"}, StyleIDs: []string{"s-asado", "s-rost"}},
		{ID: "p-1", Code: "pollo", Name: "Pollo completo", Price: decimal.NewFromInt(200), IsActive: true, SortOrder: 1,
			FlavorIDs: []string{"f-nat", "f-bbq", "f-old"}, StyleIDs: []string{"s-asado", "s-rost"}},
		{ID: "p-9", Code: "lechon", Name: "Lechón", Price: decimal.NewFromInt(300), IsActive: false, SortOrder: 6},
	}
	return NewSnapshot(products, flavors, styles, at)
}

func TestSnapshotLookups(t *testing.T) {
	t.Parallel()
	s := sampleSnapshot(time.Now())

	p, ok := s.Product(" POLLO ")
	require.True(t, ok)
	assert.Equal(t, "p-1", p.ID)
	assert.True(t, p.HasStyles())

	_, ok = s.Product("alitas")
	assert.False(t, ok)

	byID, ok := s.ProductByID("p-2")
	require.True(t, ok)
	assert.Equal(t, "medio_pollo", byID.Code)

	f, ok := s.Flavor("", "bbq")
	require.True(t, ok)
	assert.Equal(t, "f-bbq", f.ID)

	f, ok = s.Flavor("f-nat", "ignored")
	require.True(t, ok)
	assert.Equal(t, DefaultFlavorName, f.Name)

	st, ok := s.Style("", "Rostizado")
	require.True(t, ok)
	assert.Equal(t, "s-rost", st.ID)
}

func TestActiveMenuFiltersAndSorts(t *testing.T) {
	t.Parallel()
	m := sampleSnapshot(time.Now()).ActiveMenu()

	require.Len(t, m.Products, 2)
	assert.Equal(t, "pollo", m.Products[0].Code)
	assert.Equal(t, "medio_pollo", m.Products[1].Code)
	assert.Len(t, m.Products[0].Flavors, 2, "inactive flavor must be hidden")
	assert.Len(t, m.Products[0].Styles, 2)
	assert.Len(t, m.Flavors, 2)
	assert.Len(t, m.Styles, 2)
}

func TestProductPatchApply(t *testing.T) {
	t.Parallel()

	price := decimal.NewFromInt(220)
	inactive := false
	patch := ProductPatch{Price: &price, IsActive: &inactive}
	require.False(t, patch.Empty())

	p := Product{Code: "pollo", Price: decimal.NewFromInt(200), IsActive: true}
	patch.Apply(&p)
	assert.True(t, p.Price.Equal(price))
	assert.False(t, p.IsActive)
	assert.True(t, ProductPatch{}.Empty())
}

type countingLoader struct {
	mu    sync.Mutex
	calls int
	now   func() time.Time
	err   error
}

func (l *countingLoader) LoadSnapshot(context.Context) (*Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return sampleSnapshot(l.now()), nil
}

func (l *countingLoader) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type fakeKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	sets   int
}

func newFakeKV() *fakeKV { return &fakeKV{data: map[string][]byte{}} }

func (f *fakeKV) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeKV) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	f.data[key] = value.([]byte)
	return redis.NewStatusResult("OK", nil)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestCacheServesWithinTTL(t *testing.T) {
	clk := &clock{t: time.Date(2026, 10, 19, 13, 0, 0, 0, time.UTC)}
	loader := &countingLoader{now: clk.Now}
	kv := newFakeKV()
	cache := NewCache(loader, kv, time.Minute, nil)
	cache.now = clk.Now

	ctx := context.Background()
	first, err := cache.Snapshot(ctx)
	require.NoError(t, err)
	second, err := cache.Snapshot(ctx)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, loader.Calls())
	assert.Equal(t, 1, kv.sets)

	clk.Advance(2 * time.Minute)
	_, err = cache.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, loader.Calls(), "expired entry must be reloaded")
}

func TestCacheReadsSharedRedisEntry(t *testing.T) {
	clk := &clock{t: time.Date(2026, 10, 19, 13, 0, 0, 0, time.UTC)}
	kv := newFakeKV()

	warm := NewCache(&countingLoader{now: clk.Now}, kv, time.Minute, nil)
	warm.now = clk.Now
	_, err := warm.Snapshot(context.Background())
	require.NoError(t, err)

	loader := &countingLoader{now: clk.Now}
	cold := NewCache(loader, kv, time.Minute, nil)
	cold.now = clk.Now
	snap, err := cold.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Zero(t, loader.Calls(), "second instance should hit redis")
	p, ok := snap.Product("pollo")
	require.True(t, ok, "decoded snapshot must be indexed")
	assert.True(t, p.Price.Equal(decimal.NewFromInt(200)))
}

func TestCacheFallsBackWhenRedisFails(t *testing.T) {
	clk := &clock{t: time.Now()}
	loader := &countingLoader{now: clk.Now}
	kv := newFakeKV()
	kv.getErr = errors.New("connection refused")

	cache := NewCache(loader, kv, time.Minute, nil)
	cache.now = clk.Now

	_, err := cache.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, loader.Calls())
}

func TestCacheLoaderFailureIsDependencyError(t *testing.T) {
	loader := &countingLoader{now: time.Now, err: errors.New("db down")}
	cache := NewCache(loader, nil, time.Minute, nil)

	_, err := cache.Snapshot(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.CodeDependency, apperr.CodeOf(err))
}
