package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedisClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestClaimStore(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniRedisClient(t)
	claims := NewClaimStore(client, time.Hour)

	first, err := claims.Claim(ctx, "entry-1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := claims.Claim(ctx, "entry-1")
	require.NoError(t, err)
	assert.False(t, again)

	assert.Equal(t, time.Hour, mr.TTL(claimKeyPrefix+"entry-1"))

	mr.FastForward(2 * time.Hour)
	expired, err := claims.Claim(ctx, "entry-1")
	require.NoError(t, err)
	assert.True(t, expired)

	_, err = claims.Claim(ctx, "")
	assert.Error(t, err)
}

func TestConnect(t *testing.T) {
	mr, _ := newMiniRedisClient(t)

	client, err := Connect(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	_ = client.Close()

	mr.Close()
	_, err = Connect(context.Background(), mr.Addr(), "", 0)
	assert.Error(t, err)
}
