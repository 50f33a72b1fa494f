package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Rows  []string `json:"rows"`
	Total string   `json:"total"`
}

func TestLedgerKey(t *testing.T) {
	assert.Equal(t, "customer:7:month:05:year:ALL", LedgerKey(7, "05", "ALL"))
}

func TestMemoryRoundTripAndInvalidate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	key, err := m.Key(ctx, "a")
	require.NoError(t, err)

	var got entry
	ok, err := m.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, key, entry{Rows: []string{"1"}, Total: "500"}))
	ok, err = m.Get(ctx, key, &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "500", got.Total)

	require.NoError(t, m.Invalidate(ctx))
	fresh, err := m.Key(ctx, "a")
	require.NoError(t, err)
	assert.NotEqual(t, key, fresh)
	ok, err = m.Get(ctx, fresh, &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemorySetUnderOldGenerationIsDropped(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	stale, err := m.Key(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, m.Invalidate(ctx))
	require.NoError(t, m.Set(ctx, stale, entry{Total: "old"}))

	current, err := m.Key(ctx, "a")
	require.NoError(t, err)
	var got entry
	ok, err := m.Get(ctx, current, &got)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = m.Get(ctx, stale, &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNoopNeverHits(t *testing.T) {
	var c LedgerCache = Noop{}
	key, err := c.Key(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "a", key)
	require.NoError(t, c.Set(context.Background(), key, entry{}))
	ok, err := c.Get(context.Background(), key, &entry{})
	require.NoError(t, err)
	assert.False(t, ok)
}
