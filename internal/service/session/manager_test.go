package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cakeshop-cart/internal/domain"
	"cakeshop-cart/internal/kvstore"
	cartsvc "cakeshop-cart/internal/service/cart"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type flakyKV struct {
	*kvstore.Memory
	failGet atomic.Bool
}

func (f *flakyKV) Get(ctx context.Context, key string) ([]byte, error) {
	if f.failGet.Load() {
		return nil, errors.New("connection reset")
	}
	return f.Memory.Get(ctx, key)
}

func newManager(t *testing.T, kv kvstore.Store) (*Manager, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	m := NewManager(kv, Config{
		TTL:       time.Hour,
		KeyPrefix: "cart",
		TaxRate:   decimal.RequireFromString("0.05"),
		Now:       clk.Now,
	})
	t.Cleanup(func() { _ = m.Close() })
	return m, clk
}

func addCake(t *testing.T, store *cartsvc.Store) {
	t.Helper()
	_, err := store.AddItem(context.Background(), cartsvc.AddItemInput{
		ProductID: "cake1",
		UnitPrice: decimal.NewFromInt(25),
		Quantity:  1,
	})
	require.NoError(t, err)
}

func TestIssueAndLookup(t *testing.T) {
	m, _ := newManager(t, kvstore.NewMemory())
	ctx := context.Background()

	s, err := m.Issue(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, s.AccessToken)
	require.NotEmpty(t, s.SessionID)

	id, err := m.Lookup(ctx, s.AccessToken)
	require.NoError(t, err)
	require.Equal(t, s.SessionID, id)

	_, err = m.Lookup(ctx, "not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
	require.Equal(t, 3600, m.TTLSeconds())
}

func TestLookupRejectsExpiredToken(t *testing.T) {
	m, clk := newManager(t, kvstore.NewMemory())
	ctx := context.Background()

	s, err := m.Issue(ctx)
	require.NoError(t, err)

	clk.Advance(time.Hour + time.Second)
	_, err = m.Lookup(ctx, s.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestCartIsOpenedOncePerSession(t *testing.T) {
	kv := kvstore.NewMemory()
	m, _ := newManager(t, kv)
	ctx := context.Background()

	first, err := m.Issue(ctx)
	require.NoError(t, err)
	second, err := m.Issue(ctx)
	require.NoError(t, err)

	a, err := m.CartForToken(ctx, first.AccessToken)
	require.NoError(t, err)
	again, err := m.CartForToken(ctx, first.AccessToken)
	require.NoError(t, err)
	require.Same(t, a, again)
	require.Equal(t, "cart:"+first.SessionID, a.Key())

	b, err := m.CartForToken(ctx, second.AccessToken)
	require.NoError(t, err)
	require.NotSame(t, a, b)

	addCake(t, a)
	require.Len(t, a.State().Items, 1)
	require.Empty(t, b.State().Items)

	_, err = kv.Get(ctx, "cart:"+first.SessionID)
	require.NoError(t, err)
	_, err = kv.Get(ctx, "cart:"+second.SessionID)
	require.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestConcurrentCartCallsShareOneStore(t *testing.T) {
	m, _ := newManager(t, kvstore.NewMemory())
	ctx := context.Background()
	s, err := m.Issue(ctx)
	require.NoError(t, err)

	const n = 16
	stores := make([]*cartsvc.Store, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st, err := m.Cart(ctx, s.SessionID)
			assert.NoError(t, err)
			stores[i] = st
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		require.Same(t, stores[0], stores[i])
	}
}

func TestCartOpenFailureIsRetried(t *testing.T) {
	kv := &flakyKV{Memory: kvstore.NewMemory()}
	m, _ := newManager(t, kv)
	ctx := context.Background()

	kv.failGet.Store(true)
	_, err := m.Cart(ctx, "s1")
	require.Error(t, err)

	kv.failGet.Store(false)
	store, err := m.Cart(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, cartsvc.RestoreEmpty, store.Restored())
}

func TestPruneClosesExpiredCarts(t *testing.T) {
	kv := kvstore.NewMemory()
	m, clk := newManager(t, kv)
	ctx := context.Background()

	old, err := m.Issue(ctx)
	require.NoError(t, err)
	store, err := m.CartForToken(ctx, old.AccessToken)
	require.NoError(t, err)
	addCake(t, store)

	clk.Advance(30 * time.Minute)
	fresh, err := m.Issue(ctx)
	require.NoError(t, err)
	_, err = m.CartForToken(ctx, fresh.AccessToken)
	require.NoError(t, err)

	clk.Advance(45 * time.Minute)
	require.Equal(t, 1, m.Prune())

	_, err = store.Clear(ctx)
	require.ErrorIs(t, err, domain.ErrStoreClosed)

	// the cart itself is kept
	_, err = kv.Get(ctx, "cart:"+old.SessionID)
	require.NoError(t, err)

	_, err = m.CartForToken(ctx, fresh.AccessToken)
	require.NoError(t, err)
}

func TestPruneClosesCartAfterExpiredLookup(t *testing.T) {
	kv := kvstore.NewMemory()
	m, clk := newManager(t, kv)
	ctx := context.Background()

	s, err := m.Issue(ctx)
	require.NoError(t, err)
	store, err := m.CartForToken(ctx, s.AccessToken)
	require.NoError(t, err)
	addCake(t, store)

	clk.Advance(2 * time.Hour)
	_, err = m.Lookup(ctx, s.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
	_, err = m.CartForToken(ctx, s.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)

	require.Equal(t, 1, m.Prune())
	_, err = store.Clear(ctx)
	require.ErrorIs(t, err, domain.ErrStoreClosed)
	require.Zero(t, m.Prune())

	// a later open of the same session restores from storage with a new store
	reopened, err := m.Cart(ctx, s.SessionID)
	require.NoError(t, err)
	require.NotSame(t, store, reopened)
	require.Equal(t, cartsvc.RestoreLoaded, reopened.Restored())
	require.Len(t, reopened.State().Items, 1)
}

func TestPruneClosesCartsWithoutToken(t *testing.T) {
	m, _ := newManager(t, kvstore.NewMemory())
	ctx := context.Background()

	orphan, err := m.Cart(ctx, "no-token")
	require.NoError(t, err)

	s, err := m.Issue(ctx)
	require.NoError(t, err)
	live, err := m.CartForToken(ctx, s.AccessToken)
	require.NoError(t, err)

	require.Equal(t, 1, m.Prune())
	_, err = orphan.Clear(ctx)
	require.ErrorIs(t, err, domain.ErrStoreClosed)
	_, err = live.Clear(ctx)
	require.NoError(t, err)
}

func TestCloseStopsAllCarts(t *testing.T) {
	m, _ := newManager(t, kvstore.NewMemory())
	ctx := context.Background()

	s, err := m.Issue(ctx)
	require.NoError(t, err)
	store, err := m.CartForToken(ctx, s.AccessToken)
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, err = store.Clear(ctx)
	require.ErrorIs(t, err, domain.ErrStoreClosed)

	_, err = m.Cart(ctx, s.SessionID)
	require.ErrorIs(t, err, domain.ErrStoreClosed)
}
