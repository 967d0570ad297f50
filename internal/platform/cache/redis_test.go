package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Code string `json:"code"`
	Kg   int    `json:"kg"`
}

func TestJSONRoundTripAndExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewJSON(client, "formula:", time.Minute)
	ctx := context.Background()

	var got sample
	require.ErrorIs(t, c.Get(ctx, "1", &got), ErrMiss)

	require.NoError(t, c.Set(ctx, "1", sample{Code: "B25", Kg: 350}))
	require.NoError(t, c.Get(ctx, "1", &got))
	require.Equal(t, sample{Code: "B25", Kg: 350}, got)

	mr.FastForward(2 * time.Minute)
	require.ErrorIs(t, c.Get(ctx, "1", &got), ErrMiss)
}

func TestNilClientAlwaysMisses(t *testing.T) {
	c := NewJSON(nil, "x:", time.Minute)
	require.NoError(t, c.Set(context.Background(), "k", 1))
	var v int
	require.ErrorIs(t, c.Get(context.Background(), "k", &v), ErrMiss)
}
