package receiptcache_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/receiptkit/pkg/receiptcache"
)

func writeAged(t *testing.T, store *receiptcache.LocalStore, data string, mtime time.Time) receiptcache.CachedFile {
	t.Helper()
	f, err := store.Write(context.Background(), []byte(data))
	require.NoError(t, err)
	require.NoError(t, os.Chtimes(f.Path, mtime, mtime))
	f.ModTime = mtime
	return f
}

func names(files []receiptcache.CachedFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Name)
	}
	return out
}

func TestEvictor_KeepsNewestFive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newLocalStore(t)
	now := time.Now()
	evictor := receiptcache.NewEvictor(receiptcache.WithClock(func() time.Time { return now }))

	var written []receiptcache.CachedFile
	for i := range 7 {
		f := writeAged(t, store, "r", now.Add(time.Duration(i-7)*time.Minute))
		written = append(written, f)

		_, err := evictor.Enforce(ctx, store)
		require.NoError(t, err)
	}

	files, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, files, 5)
	assert.Equal(t, names(written[2:]), names(files))
}

func TestEvictor_KeepsLastWrittenOnEqualTimestamps(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newLocalStore(t)
	mtime := time.Now().Truncate(time.Second)
	evictor := receiptcache.NewEvictor(receiptcache.WithClock(func() time.Time { return mtime }))

	var written []receiptcache.CachedFile
	for range 7 {
		written = append(written, writeAged(t, store, "r", mtime))

		_, err := evictor.Enforce(ctx, store)
		require.NoError(t, err)
		assert.FileExists(t, written[len(written)-1].Path)
	}

	files, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, names(written[2:]), names(files))
}

func TestEvictor_MaxAge(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newLocalStore(t)
	now := time.Now()
	day := 24 * time.Hour

	old := writeAged(t, store, "old", now.Add(-31*day))
	recent := writeAged(t, store, "recent", now.Add(-29*day))

	report, err := receiptcache.NewEvictor(
		receiptcache.WithClock(func() time.Time { return now }),
	).Enforce(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Expired)
	assert.Equal(t, 0, report.Overflow)
	assert.Equal(t, 1, report.Kept)
	assert.Equal(t, 1, report.Removed())

	assert.NoFileExists(t, old.Path)
	assert.FileExists(t, recent.Path)
}

func TestEvictor_AgeBeforeCount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newLocalStore(t)
	now := time.Now()

	for i := range 3 {
		writeAged(t, store, "expired", now.Add(-40*24*time.Hour+time.Duration(i)*time.Minute))
	}
	for i := range 3 {
		writeAged(t, store, "fresh", now.Add(-time.Duration(i)*time.Minute))
	}

	report, err := receiptcache.NewEvictor(
		receiptcache.WithMaxFiles(3),
		receiptcache.WithClock(func() time.Time { return now }),
	).Enforce(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, receiptcache.Report{Expired: 3, Overflow: 0, Kept: 3}, report)
}

func TestEvictor_Defaults(t *testing.T) {
	t.Parallel()

	e := receiptcache.NewEvictor(receiptcache.WithMaxFiles(0), receiptcache.WithMaxAge(-1))
	assert.Equal(t, 5, e.MaxFiles())
	assert.Equal(t, 2_592_000*time.Second, e.MaxAge())
}

func TestEvictor_SweepsTemp(t *testing.T) {
	t.Parallel()

	store := newLocalStore(t)
	stale := filepath.Join(store.Dir(), ".receipt-dead.tmp")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o600))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(stale, past, past))

	report, err := receiptcache.NewEvictor().Enforce(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TempSwept)
	assert.NoFileExists(t, stale)
}

type failingStore struct {
	receiptcache.Store
	listErr   error
	removeErr error
}

func (s failingStore) List(ctx context.Context) ([]receiptcache.CachedFile, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.Store.List(ctx)
}

func (s failingStore) Remove(ctx context.Context, f receiptcache.CachedFile) error {
	if s.removeErr != nil {
		return s.removeErr
	}
	return s.Store.Remove(ctx, f)
}

func TestEvictor_Errors(t *testing.T) {
	t.Parallel()

	t.Run("list failure is returned", func(t *testing.T) {
		t.Parallel()
		store := failingStore{Store: newLocalStore(t), listErr: receiptcache.ErrListFailed}
		_, err := receiptcache.NewEvictor().Enforce(context.Background(), store)
		assert.ErrorIs(t, err, receiptcache.ErrListFailed)
	})

	t.Run("remove failure keeps entry", func(t *testing.T) {
		t.Parallel()
		local := newLocalStore(t)
		now := time.Now()
		f := writeAged(t, local, "x", now.Add(-60*24*time.Hour))

		store := failingStore{Store: local, removeErr: errors.New("read-only filesystem")}
		report, err := receiptcache.NewEvictor(
			receiptcache.WithClock(func() time.Time { return now }),
		).Enforce(context.Background(), store)
		require.NoError(t, err)
		assert.Equal(t, 0, report.Expired)
		assert.Equal(t, 1, report.Kept)
		assert.FileExists(t, f.Path)
	})
}
