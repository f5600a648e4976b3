package session

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, store Store, expire func(time.Duration)) {
	t.Helper()
	ctx := context.Background()
	sid := NewID()

	_, err := store.Load(ctx, sid, KindRegistration)
	require.ErrorIs(t, err, ErrFlowNotFound)

	reg := Flow{Kind: KindRegistration, Phone: "0123456789", Username: "spongebob", PasswordHash: []byte("hash"), StartedAt: time.Now().UTC()}
	require.NoError(t, store.Save(ctx, sid, reg, time.Minute))
	require.NoError(t, store.Save(ctx, sid, Flow{Kind: KindOTPLogin, Phone: "0222222222"}, time.Minute))

	got, err := store.Load(ctx, sid, KindRegistration)
	require.NoError(t, err)
	require.Equal(t, "spongebob", got.Username)
	require.Equal(t, []byte("hash"), got.PasswordHash)

	login, err := store.Load(ctx, sid, KindOTPLogin)
	require.NoError(t, err)
	require.Equal(t, "0222222222", login.Phone)

	// Flows are scoped to their session id.
	_, err = store.Load(ctx, NewID(), KindRegistration)
	require.ErrorIs(t, err, ErrFlowNotFound)

	n, err := store.RecordFailure(ctx, sid, KindRegistration, time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	n, err = store.RecordFailure(ctx, sid, KindRegistration, time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	require.NoError(t, store.Delete(ctx, sid, KindRegistration))
	_, err = store.Load(ctx, sid, KindRegistration)
	require.ErrorIs(t, err, ErrFlowNotFound)

	// A fresh flow under the same id starts with a clean count.
	require.NoError(t, store.Save(ctx, sid, reg, time.Minute))
	n, err = store.RecordFailure(ctx, sid, KindRegistration, time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	require.NoError(t, store.Delete(ctx, sid, KindRegistration))

	expire(2 * time.Minute)
	_, err = store.Load(ctx, sid, KindOTPLogin)
	require.ErrorIs(t, err, ErrFlowNotFound)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	exerciseStore(t, store, func(d time.Duration) { now = now.Add(d) })
}

func TestRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	exerciseStore(t, NewRedisStore(client), mr.FastForward)
}
