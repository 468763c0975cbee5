package session

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/checkout"
)

func newTestRegistry(ttl time.Duration) *Registry {
	factory := func(id string, c *cart.Store) *checkout.Orchestrator {
		return checkout.New(id, checkout.Deps{Cart: c})
	}
	return NewRegistry(factory, ttl, log.New(io.Discard, "", 0))
}

func TestCreateAndGet(t *testing.T) {
	r := newTestRegistry(time.Minute)
	defer r.Close()

	s := r.Create()
	require.NotEmpty(t, s.ID)
	assert.Equal(t, s.ID, s.Checkout.ID())

	got, err := r.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, 1, r.Len())
}

func TestSessionsAreIsolated(t *testing.T) {
	r := newTestRegistry(time.Minute)
	defer r.Close()

	a, b := r.Create(), r.Create()
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotSame(t, a.Cart, b.Cart)
}

func TestGetUnknown(t *testing.T) {
	r := newTestRegistry(time.Minute)
	_, err := r.Get("nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	r := newTestRegistry(time.Minute)
	s := r.Create()

	require.NoError(t, r.Delete(s.ID))
	require.ErrorIs(t, r.Delete(s.ID), ErrNotFound)
	_, err := r.Get(s.ID)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, checkout.ErrClosed, s.Checkout.SubmitCart(t.Context()))
}

func TestSweepExpiresIdleSessions(t *testing.T) {
	r := newTestRegistry(10 * time.Minute)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	stale := r.Create()
	now = now.Add(8 * time.Minute)
	fresh := r.Create()
	now = now.Add(5 * time.Minute)

	assert.Equal(t, 1, r.Sweep())
	_, err := r.Get(stale.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = r.Get(fresh.ID)
	require.NoError(t, err)
}

func TestGetRefreshesIdleTimer(t *testing.T) {
	r := newTestRegistry(10 * time.Minute)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	s := r.Create()
	now = now.Add(9 * time.Minute)
	_, err := r.Get(s.ID)
	require.NoError(t, err)
	now = now.Add(9 * time.Minute)

	assert.Zero(t, r.Sweep())
}

func TestSweeperStopsOnClose(t *testing.T) {
	r := newTestRegistry(time.Millisecond)
	r.Create()
	r.StartSweeper(2 * time.Millisecond)

	require.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
	r.Close()
	r.Close()
}
