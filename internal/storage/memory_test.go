package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	exists, err := s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = s.OpenRead(ctx, "k")
	assert.ErrorIs(t, err, ErrBlobNotFound)

	require.NoError(t, s.Write(ctx, "k", strings.NewReader("hello"), 5, "text/plain"))
	exists, err = s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 1, s.Len())

	rc, err := s.OpenRead(ctx, "k")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello", string(data))

	err = s.Write(ctx, "short", strings.NewReader("hello"), 99, "text/plain")
	assert.Error(t, err, "size mismatch must be rejected")

	require.NoError(t, s.Delete(ctx, "k"))
	require.NoError(t, s.Delete(ctx, "k"), "deleting an absent key is not an error")
	assert.Zero(t, s.Len())
}
