package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("http://localhost:8080/")

	ok, err := store.Exists(ctx, "qr_menu/a.png")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Put(ctx, "qr_menu/a.png", []byte("png"), "image/png"))
	ok, err = store.Exists(ctx, "qr_menu/a.png")
	require.NoError(t, err)
	require.True(t, ok)

	data, err := store.Get(ctx, "qr_menu/a.png")
	require.NoError(t, err)
	require.Equal(t, []byte("png"), data)
	require.Equal(t, "http://localhost:8080/media/qr_menu/a.png", store.URL("qr_menu/a.png"))

	require.NoError(t, store.Delete(ctx, "qr_menu/a.png"))
	require.NoError(t, store.Delete(ctx, "qr_menu/a.png"))
	_, err = store.Get(ctx, "qr_menu/a.png")
	require.ErrorIs(t, err, ErrObjectNotFound)
	require.Zero(t, store.Len())
}
