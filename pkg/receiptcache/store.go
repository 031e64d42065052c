package receiptcache

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/receiptkit/pkg/receipt"
)

// CachedFile is one receipt awaiting delivery.
type CachedFile struct {
	// Name is the entry name, "<uuid v7>.bin".
	Name string
	// Path is the absolute file path or the object key.
	Path    string
	Size    int64
	ModTime time.Time
}

// Age returns how old the entry is at now.
func (f CachedFile) Age(now time.Time) time.Duration {
	return now.Sub(f.ModTime)
}

// Store is the durable receipt cache shared across invocations.
type Store interface {
	// Write atomically creates a new entry under a fresh name.
	Write(ctx context.Context, data []byte) (CachedFile, error)
	// Read returns ErrNotFound if the entry vanished.
	Read(ctx context.Context, file CachedFile) ([]byte, error)
	// List returns committed entries, oldest first. Entries may vanish after listing.
	List(ctx context.Context) ([]CachedFile, error)
	// Remove is best-effort; a missing entry is not an error.
	Remove(ctx context.Context, file CachedFile) error
}

// newEntryName builds "<uuid v7>.bin". Version 7 ids sort by creation time, so names order
// entries whose timestamps are equal at the store's precision.
func newEntryName() string {
	return fmt.Sprintf(receipt.CacheFileFormat, uuid.Must(uuid.NewV7()).String())
}

// validName accepts only bare "<something>.bin" names.
func validName(name string) error {
	if name == "" || name != path.Base(name) || strings.ContainsAny(name, `/\`) ||
		strings.HasPrefix(name, ".") || !strings.HasSuffix(name, receipt.CacheFileExt) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// sortOldestFirst orders by timestamp, then by name for a stable order on equal timestamps.
func sortOldestFirst(files []CachedFile) {
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].Name < files[j].Name
		}
		return files[i].ModTime.Before(files[j].ModTime)
	})
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
