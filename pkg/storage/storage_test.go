package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStorageContract(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Read(ctx, "projects/missing.yaml")
	require.ErrorIs(t, err, ErrNotFound)

	exists, err := s.Exists(ctx, "projects/a.yaml")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.Write(ctx, "projects/b.yaml", []byte("b")))
	require.NoError(t, s.Write(ctx, "projects/a.yaml", []byte("a")))
	require.NoError(t, s.Write(ctx, "sessions/u1/s1.yaml", []byte("s1")))

	data, err := s.Read(ctx, "projects/a.yaml")
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))

	require.NoError(t, s.Write(ctx, "projects/a.yaml", []byte("a2")))
	data, err = s.Read(ctx, "projects/a.yaml")
	require.NoError(t, err)
	assert.Equal(t, "a2", string(data))

	paths, err := s.List(ctx, "projects")
	require.NoError(t, err)
	assert.Equal(t, []string{"projects/a.yaml", "projects/b.yaml"}, paths)

	// Nested documents are not direct children of "sessions".
	paths, err = s.List(ctx, "sessions")
	require.NoError(t, err)
	assert.Empty(t, paths)
	paths, err = s.List(ctx, "sessions/u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"sessions/u1/s1.yaml"}, paths)

	paths, err = s.List(ctx, "nothing")
	require.NoError(t, err)
	assert.Empty(t, paths)

	require.NoError(t, s.Delete(ctx, "projects/a.yaml"))
	require.ErrorIs(t, s.Delete(ctx, "projects/a.yaml"), ErrNotFound)
	exists, err = s.Exists(ctx, "projects/a.yaml")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStorage(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	testStorageContract(t, s)
}

func TestSQLiteStorage(t *testing.T) {
	s, err := NewSQLiteStorage(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	testStorageContract(t, s)
}

func TestSQLiteStorage_File(t *testing.T) {
	path := t.TempDir() + "/db/timeguild.db"
	s, err := NewSQLiteStorage(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	testStorageContract(t, s)
}
