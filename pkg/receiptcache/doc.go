// Package receiptcache stores pending display receipts as opaque blobs in storage shared by
// every invocation of the host process, and keeps that storage bounded.
//
// Invocations may run concurrently in separate processes, so no in-process lock protects the
// cache. Correctness relies on two properties instead:
//
//   - Writes are atomic. LocalStore writes to a hidden temporary file and renames it into place;
//     S3Store relies on PUT being atomic. A concurrent List never observes partial content.
//   - Reads and removals treat a missing entry as a normal outcome. Read returns ErrNotFound and
//     Remove returns nil, so two invocations racing to flush the same receipt both succeed.
//
// Every cache entry is named "<uuid>.bin" from a fresh random identifier, never from the receipt
// identifier, so concurrent writers cannot collide.
//
// # Backends
//
//   - LocalStore: a directory inside the shared app-group container.
//   - S3Store: a key prefix in an S3 (or S3-compatible) bucket for hosts whose invocations do not
//     share a filesystem.
//
// # Eviction
//
// Evictor brings the cache back within bounds: entries older than the maximum age are removed
// first, then the oldest entries until at most the maximum count remain. Age comes from the
// storage timestamp, not from the payload.
//
//	store, err := receiptcache.NewLocalStore(dir)
//	if err != nil {
//	    return err
//	}
//	evictor := receiptcache.NewEvictor(receiptcache.WithMaxFiles(5))
//
//	if _, err := store.Write(ctx, blob); err != nil {
//	    return err
//	}
//	_, _ = evictor.Enforce(ctx, store)
package receiptcache
