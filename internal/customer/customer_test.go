package customer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/till/internal/pricing"
)

func TestMemory_Lookup(t *testing.T) {
	ctx := context.Background()
	dir := NewMemory(pricing.Customer{ID: "c1", PointsBalance: 120, Tier: "gold"})

	c, err := dir.Lookup(ctx, " c1 ")
	require.NoError(t, err)
	assert.Equal(t, int64(120), c.PointsBalance)

	c.PointsBalance = 0
	again, err := dir.Lookup(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(120), again.PointsBalance)

	_, err = dir.Lookup(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	dir := NewMemory()
	dir.Put(pricing.Customer{ID: "c2", Tier: "silver"})

	c, err := Resolve(ctx, dir, "")
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = Resolve(ctx, dir, "c2")
	require.NoError(t, err)
	assert.Equal(t, "silver", c.Tier)

	_, err = Resolve(ctx, dir, "c3")
	assert.ErrorIs(t, err, ErrNotFound)
}
