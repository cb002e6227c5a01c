package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/pagegen/internal/database"
)

func exerciseStore(t *testing.T, s BlobStore) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "generator-state")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "generator-state", []byte(`{"stage":"outline"}`)))
	got, err := s.Get(ctx, "generator-state")
	require.NoError(t, err)
	require.JSONEq(t, `{"stage":"outline"}`, string(got))

	require.NoError(t, s.Set(ctx, "generator-state", []byte(`{"stage":"result"}`)))
	got, err = s.Get(ctx, "generator-state")
	require.NoError(t, err)
	require.JSONEq(t, `{"stage":"result"}`, string(got))

	require.NoError(t, s.Delete(ctx, "generator-state"))
	_, err = s.Get(ctx, "generator-state")
	require.ErrorIs(t, err, ErrNotFound)

	// deleting a missing key is not an error
	require.NoError(t, s.Delete(ctx, "generator-state"))
}

func TestMemoryStore(t *testing.T) {
	s := NewMemory()
	exerciseStore(t, s)
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	v := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", v))
	v[0] = 'x'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "abc", string(got))
	require.Equal(t, []string{"k"}, s.Keys())
}

func TestSQLiteStore(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "nested", "pagegen.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewSQLite(context.Background(), db)
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pagegen.db")

	db, err := database.Open(path)
	require.NoError(t, err)
	s, err := NewSQLite(ctx, db)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", []byte("v1")))
	require.NoError(t, db.Close())

	db, err = database.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s, err = NewSQLite(ctx, db)
	require.NoError(t, err)
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v1", string(got))
}
