package receiptcache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/receiptkit/pkg/logger"
	"github.com/dmitrymomot/receiptkit/pkg/receipt"
)

// DefaultTempMaxAge is how old an abandoned temporary file must be before it is swept.
const DefaultTempMaxAge = time.Minute

// TempSweeper is implemented by stores that can leave temporary files behind.
type TempSweeper interface {
	SweepTemp(ctx context.Context, olderThan time.Duration) (int, error)
}

// Report summarises one eviction pass.
type Report struct {
	Expired   int // removed for exceeding the maximum age
	Overflow  int // removed to get back under the maximum count
	Kept      int
	TempSwept int
}

// Removed returns the number of committed entries deleted by the pass.
func (r Report) Removed() int {
	return r.Expired + r.Overflow
}

// EvictorOption configures Evictor.
type EvictorOption func(*Evictor)

// WithMaxFiles sets the maximum number of retained entries. Non-positive values are ignored.
func WithMaxFiles(n int) EvictorOption {
	return func(e *Evictor) {
		if n > 0 {
			e.maxFiles = n
		}
	}
}

// WithMaxAge sets the maximum entry age. Non-positive values are ignored.
func WithMaxAge(d time.Duration) EvictorOption {
	return func(e *Evictor) {
		if d > 0 {
			e.maxAge = d
		}
	}
}

// WithTempMaxAge sets the age after which temporary files count as abandoned.
func WithTempMaxAge(d time.Duration) EvictorOption {
	return func(e *Evictor) {
		if d > 0 {
			e.tempMaxAge = d
		}
	}
}

// WithClock overrides the time source used to compute entry age.
func WithClock(now func() time.Time) EvictorOption {
	return func(e *Evictor) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the logger for removal failures.
func WithLogger(l *slog.Logger) EvictorOption {
	return func(e *Evictor) {
		if l != nil {
			e.logger = l
		}
	}
}

// Evictor enforces the retention rules of a Store.
type Evictor struct {
	maxFiles   int
	maxAge     time.Duration
	tempMaxAge time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// NewEvictor creates an Evictor with the default bounds of 5 entries and 30 days.
func NewEvictor(opts ...EvictorOption) *Evictor {
	e := &Evictor{
		maxFiles:   receipt.DefaultMaxCacheFiles,
		maxAge:     receipt.DefaultMaxCacheAge,
		tempMaxAge: DefaultTempMaxAge,
		now:        time.Now,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxFiles returns the configured count bound.
func (e *Evictor) MaxFiles() int { return e.maxFiles }

// MaxAge returns the configured age bound.
func (e *Evictor) MaxAge() time.Duration { return e.maxAge }

// Enforce brings the store back within bounds. Entries older than the maximum age go first,
// then the oldest entries until at most the maximum count remain.
//
// Only a failing List is returned as an error. Individual removal failures are logged and the
// entry is counted as kept; the next pass retries it.
func (e *Evictor) Enforce(ctx context.Context, store Store) (Report, error) {
	var report Report

	if sweeper, ok := store.(TempSweeper); ok {
		n, err := sweeper.SweepTemp(ctx, e.tempMaxAge)
		if err != nil {
			e.logger.WarnContext(ctx, "failed to sweep temporary cache files", logger.Error(err))
		}
		report.TempSwept = n
	}

	files, err := store.List(ctx)
	if err != nil {
		return report, err
	}

	now := e.now()
	kept := make([]CachedFile, 0, len(files))
	for _, f := range files {
		if f.Age(now) <= e.maxAge {
			kept = append(kept, f)
			continue
		}
		if e.remove(ctx, store, f, "expired") {
			report.Expired++
		} else {
			kept = append(kept, f)
		}
	}

	// kept is still oldest first.
	for len(kept) > e.maxFiles {
		f := kept[0]
		kept = kept[1:]
		if e.remove(ctx, store, f, "overflow") {
			report.Overflow++
		} else {
			report.Kept++
		}
		if ctx.Err() != nil {
			break
		}
	}

	report.Kept += len(kept)
	return report, nil
}

func (e *Evictor) remove(ctx context.Context, store Store, f CachedFile, reason string) bool {
	if err := store.Remove(ctx, f); err != nil {
		if !errors.Is(err, ErrNotFound) {
			e.logger.WarnContext(ctx, "failed to evict cache entry",
				logger.CacheFile(f.Name),
				slog.String("reason", reason),
				logger.Error(err),
			)
			return false
		}
	}
	e.logger.DebugContext(ctx, "evicted cache entry",
		logger.CacheFile(f.Name),
		slog.String("reason", reason),
	)
	return true
}
