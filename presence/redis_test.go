package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// redisPair returns two trackers on one server, as two app processes would
// see it.
func redisPair(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *Redis, *Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	open := func() *Redis {
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		return newRedis(rdb, ttl)
	}
	return mr, open(), open()
}

func TestRedis_OnlineWhileAnyProcessHoldsASocket(t *testing.T) {
	ctx := context.Background()
	_, a, b := redisPair(t, time.Minute)
	u := primitive.NewObjectID()

	require.NoError(t, a.SetOnline(ctx, u))
	require.NoError(t, b.SetOnline(ctx, u))
	require.NoError(t, a.SetMessageBox(ctx, u, true))

	require.NoError(t, a.SetOffline(ctx, u))
	st, err := b.Status(ctx, u)
	require.NoError(t, err)
	assert.True(t, st.Online)
	assert.True(t, st.InMessageBox)

	require.NoError(t, b.SetOffline(ctx, u))
	st, err = a.Status(ctx, u)
	require.NoError(t, err)
	assert.False(t, st.Online)
	assert.False(t, st.LastSeen.IsZero())
}

func TestRedis_OfflineWithoutOnlineLeavesNoHash(t *testing.T) {
	ctx := context.Background()
	mr, a, _ := redisPair(t, time.Minute)
	u := primitive.NewObjectID()

	require.NoError(t, a.SetOffline(ctx, u))
	assert.False(t, mr.Exists(a.onlineKey(u)))

	require.NoError(t, a.SetOnline(ctx, u))
	st, err := a.Status(ctx, u)
	require.NoError(t, err)
	assert.True(t, st.Online)
}

func TestRedis_TouchRenewsAndRecreates(t *testing.T) {
	ctx := context.Background()
	mr, a, _ := redisPair(t, 90*time.Second)
	u := primitive.NewObjectID()

	require.NoError(t, a.SetOnline(ctx, u))
	mr.FastForward(60 * time.Second)
	require.NoError(t, a.Touch(ctx, u))
	mr.FastForward(60 * time.Second)
	st, err := a.Status(ctx, u)
	require.NoError(t, err)
	assert.True(t, st.Online)

	mr.FastForward(2 * time.Minute)
	st, _ = a.Status(ctx, u)
	assert.False(t, st.Online)

	require.NoError(t, a.Touch(ctx, u))
	st, err = a.Status(ctx, u)
	require.NoError(t, err)
	assert.True(t, st.Online)

	require.NoError(t, a.SetOffline(ctx, u))
	st, _ = a.Status(ctx, u)
	assert.False(t, st.Online)
}
