package displayreceipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/receiptkit/pkg/async"
	"github.com/dmitrymomot/receiptkit/pkg/lifecycle"
	"github.com/dmitrymomot/receiptkit/pkg/logger"
	"github.com/dmitrymomot/receiptkit/pkg/optout"
	"github.com/dmitrymomot/receiptkit/pkg/receipt"
	"github.com/dmitrymomot/receiptkit/pkg/receiptcache"
	"github.com/dmitrymomot/receiptkit/pkg/receiptsender"
)

// Sender performs one bounded delivery attempt.
type Sender interface {
	Send(ctx context.Context, body []byte) receiptsender.Result
}

// Option configures Pipeline.
type Option func(*Pipeline)

// WithOptOut sets the opt-out source. Default is never opted out.
func WithOptOut(src optout.Source) Option {
	return func(p *Pipeline) {
		if src != nil {
			p.optOut = src
		}
	}
}

// WithEvictor sets the cache retention policy.
func WithEvictor(e *receiptcache.Evictor) Option {
	return func(p *Pipeline) {
		if e != nil {
			p.evictor = e
		}
	}
}

// WithGuard shares an existing lifecycle guard instead of creating one.
func WithGuard(g *lifecycle.Guard) Option {
	return func(p *Pipeline) {
		if g != nil {
			p.guard = g
		}
	}
}

// WithReceiptKey sets the user-info key that carries receipt data.
func WithReceiptKey(key string) Option {
	return func(p *Pipeline) {
		if key != "" {
			p.receiptKey = key
		}
	}
}

// WithClock overrides the time source for receipt timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// Pipeline delivers the display receipt of each processed notification and flushes receipts
// cached by earlier invocations. One Pipeline serves one host process; its guard models that
// process's termination signal.
type Pipeline struct {
	store      receiptcache.Store
	sender     Sender
	evictor    *receiptcache.Evictor
	optOut     optout.Source
	guard      *lifecycle.Guard
	receiptKey string
	now        func() time.Time
	logger     *slog.Logger

	runs sync.WaitGroup
}

// New creates a pipeline over store and sender.
func New(store receiptcache.Store, sender Sender, opts ...Option) (*Pipeline, error) {
	if store == nil || sender == nil {
		return nil, fmt.Errorf("%w: store and sender are required", ErrInvalidConfig)
	}

	p := &Pipeline{
		store:      store,
		sender:     sender,
		evictor:    receiptcache.NewEvictor(),
		optOut:     optout.Static(false),
		receiptKey: DefaultReceiptKey,
		now:        time.Now,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.guard == nil {
		p.guard = lifecycle.New()
	}
	return p, nil
}

// Guard returns the lifecycle guard shared by all runs.
func (p *Pipeline) Guard() *lifecycle.Guard {
	return p.guard
}

// Process starts a run for content and returns its completion.
//
// The future resolves exactly once: when the run reaches Done, or as soon as TimeWillExpire is
// called, whichever happens first. It always carries the content; the error is nil unless the
// current receipt was rejected (ErrReceiptRejected), could not be kept after a transient failure
// (ErrReceiptNotPersisted), or was unusable (ErrInvalidReceipt). Opt-out is not an error.
//
// A run that loses the race to the termination signal keeps going in the background: an
// in-flight response is still honored and the cache is updated accordingly. Wait blocks until
// such runs are finished.
func (p *Pipeline) Process(ctx context.Context, content Content) *async.Future[Content] {
	future, resolve := async.NewPromise[Content]()

	p.runs.Add(1)
	go func() {
		defer p.runs.Done()
		resolve(content, p.run(ctx, content))
	}()

	go func() {
		select {
		case <-p.guard.Done():
			if resolve(content, nil) {
				p.logger.InfoContext(ctx, "completed early on termination signal",
					slog.String("notification_id", content.ID),
				)
			}
		case <-future.Done():
		}
	}()

	return future
}

// ProcessFunc is Process with a completion callback. The callback runs exactly once on its own
// goroutine.
func (p *Pipeline) ProcessFunc(ctx context.Context, content Content, done func(Content, error)) {
	p.Process(ctx, content).Then(done)
}

// DidReceiveNotification runs the pipeline and hands the content back through handler exactly
// once. Errors are logged, never surfaced, because the host only cares about the content.
func (p *Pipeline) DidReceiveNotification(ctx context.Context, content Content, handler func(Content)) {
	p.ProcessFunc(ctx, content, func(c Content, err error) {
		if err != nil {
			p.logger.WarnContext(ctx, "display receipt not delivered",
				slog.String("notification_id", content.ID),
				logger.Error(err),
			)
		}
		if handler != nil {
			handler(c)
		}
	})
}

// TimeWillExpire signals that the host is about to terminate the process. Pending completions
// resolve immediately, flush loops stop starting new sends, and receipts still being sent are
// cached. Safe to call more than once.
func (p *Pipeline) TimeWillExpire() {
	if p.guard.Expire() {
		p.logger.Info("termination signal received")
	}
}

// Wait blocks until every started run has finished its storage and network work, or ctx ends.
func (p *Pipeline) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.runs.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) run(ctx context.Context, content Content) error {
	log := p.logger.With(slog.String("notification_id", content.ID))
	sm := newRunMachine(log)
	fire := func(ev event) {
		if err := sm.Fire(ctx, ev); err != nil {
			log.ErrorContext(ctx, "pipeline transition failed", logger.Error(err))
		}
	}

	fire(eventStart)

	// The preference is read even when ctx is already canceled; cancellation alone says nothing
	// about the user's choice and the receipt can still be cached.
	optedOut, err := p.optOut.OptedOut(context.WithoutCancel(ctx))
	if err != nil {
		// Fail closed: an unreadable preference must not leak data.
		log.WarnContext(ctx, "failed to read opt-out flag, treating as opted out", logger.Error(err))
		optedOut = true
	}
	if optedOut {
		fire(eventOptedOut)
		return nil
	}

	var (
		runErr  error
		exclude string
	)

	rcpt, ok, err := extractReceipt(content, p.receiptKey, p.now())
	switch {
	case err != nil:
		log.WarnContext(ctx, "invalid receipt data", logger.Error(err))
		runErr = err
		fire(eventSkip)
	case !ok:
		fire(eventSkip)
	default:
		fire(eventSend)
		log = log.With(logger.ReceiptID(rcpt.ID))
		var cached *receiptcache.CachedFile
		cached, runErr = p.sendCurrent(ctx, log, rcpt)
		if cached != nil {
			exclude = cached.Name
		}
		fire(eventSent)
	}

	stats := p.flush(ctx, log, exclude)
	fire(eventFinish)

	log.InfoContext(ctx, "display receipt run finished",
		logger.Count("flush_attempted", stats.attempted),
		logger.Count("flush_delivered", stats.delivered),
		logger.Count("flush_discarded", stats.discarded),
		logger.Count("flush_kept", stats.kept),
		slog.Bool("expired", p.guard.Expiring()),
		logger.Error(runErr),
	)
	return runErr
}

// sendCurrent delivers the receipt of the notification being processed. It returns the cache
// entry the receipt ended up in, if any.
func (p *Pipeline) sendCurrent(ctx context.Context, log *slog.Logger, r receipt.Receipt) (*receiptcache.CachedFile, error) {
	blob, err := receipt.Encode(r)
	if err != nil {
		return nil, errors.Join(ErrInvalidReceipt, err)
	}

	if p.guard.Expiring() {
		log.InfoContext(ctx, "termination pending, caching receipt without sending")
		f, err := p.cache(ctx, log, blob)
		if err != nil {
			return nil, errors.Join(ErrReceiptNotPersisted, err)
		}
		return &f, nil
	}

	results := make(chan receiptsender.Result, 1)
	go func() {
		results <- p.sender.Send(ctx, blob)
	}()

	var (
		res   receiptsender.Result
		early *receiptcache.CachedFile
	)
	select {
	case res = <-results:
	case <-p.guard.Done():
		// The process may die before the response arrives; persist first, then keep waiting.
		if f, err := p.cache(ctx, log, blob); err != nil {
			log.WarnContext(ctx, "failed to cache receipt on termination signal", logger.Error(err))
		} else {
			early = &f
		}
		res = <-results
	}

	switch res.Outcome {
	case receipt.Delivered:
		p.discardEarly(ctx, log, early)
		return nil, nil

	case receipt.PermanentFailure:
		p.discardEarly(ctx, log, early)
		return nil, errors.Join(ErrReceiptRejected, res.Err)

	default:
		if early != nil {
			return early, nil
		}
		f, err := p.cache(ctx, log, blob)
		if err != nil {
			log.ErrorContext(ctx, "receipt lost: send failed and cache write failed",
				logger.Error(res.Err), slog.Any("cache_error", err))
			return nil, errors.Join(ErrReceiptNotPersisted, res.Err, err)
		}
		return &f, nil
	}
}

func (p *Pipeline) discardEarly(ctx context.Context, log *slog.Logger, early *receiptcache.CachedFile) {
	if early == nil {
		return
	}
	if err := p.store.Remove(context.WithoutCancel(ctx), *early); err != nil {
		log.WarnContext(ctx, "failed to remove early cached receipt",
			logger.CacheFile(early.Name), logger.Error(err))
	}
}

// cache writes blob and brings the cache back within bounds. Storage work ignores caller
// cancellation so a canceled run cannot lose the receipt.
func (p *Pipeline) cache(ctx context.Context, log *slog.Logger, blob []byte) (receiptcache.CachedFile, error) {
	storeCtx := context.WithoutCancel(ctx)

	f, err := p.store.Write(storeCtx, blob)
	if err != nil {
		return receiptcache.CachedFile{}, err
	}
	log.DebugContext(ctx, "receipt cached", logger.CacheFile(f.Name))

	p.evict(storeCtx, log)
	return f, nil
}

func (p *Pipeline) evict(ctx context.Context, log *slog.Logger) {
	report, err := p.evictor.Enforce(ctx, p.store)
	if err != nil {
		log.WarnContext(ctx, "cache eviction failed", logger.Error(err))
		return
	}
	if report.Removed() > 0 {
		log.InfoContext(ctx, "evicted cached receipts",
			logger.Count("expired", report.Expired),
			logger.Count("overflow", report.Overflow),
		)
	}
}

type flushStats struct {
	attempted int
	delivered int
	discarded int
	kept      int
}

// flush sends cached receipts oldest first, skipping exclude. It stops starting new sends once
// the guard expires; unprocessed entries stay cached.
func (p *Pipeline) flush(ctx context.Context, log *slog.Logger, exclude string) flushStats {
	var stats flushStats

	if p.guard.Expiring() {
		return stats
	}

	p.evict(ctx, log)

	files, err := p.store.List(ctx)
	if err != nil {
		log.WarnContext(ctx, "failed to list cached receipts", logger.Error(err))
		return stats
	}

	for _, f := range files {
		if f.Name == exclude {
			continue
		}
		if p.guard.Expiring() {
			log.InfoContext(ctx, "termination signal, leaving backlog for next invocation")
			break
		}
		if ctx.Err() != nil {
			break
		}

		switch p.flushOne(ctx, log.With(logger.CacheFile(f.Name)), f) {
		case flushDelivered:
			stats.attempted++
			stats.delivered++
		case flushDiscarded:
			stats.discarded++
		case flushRejected:
			stats.attempted++
			stats.discarded++
		case flushKept:
			stats.attempted++
			stats.kept++
		}
	}
	return stats
}

type flushResult int

const (
	flushSkipped flushResult = iota
	flushDelivered
	flushRejected
	flushDiscarded // undecodable, never sent
	flushKept
)

func (p *Pipeline) flushOne(ctx context.Context, log *slog.Logger, f receiptcache.CachedFile) flushResult {
	data, err := p.store.Read(ctx, f)
	if err != nil {
		if !errors.Is(err, receiptcache.ErrNotFound) {
			log.WarnContext(ctx, "failed to read cached receipt", logger.Error(err))
		}
		return flushSkipped
	}

	r, err := receipt.Decode(data)
	if err != nil {
		log.WarnContext(ctx, "discarding undecodable cached receipt", logger.Error(err))
		p.remove(ctx, log, f)
		return flushDiscarded
	}
	log = log.With(logger.ReceiptID(r.ID))

	body, err := receipt.Encode(r.AsReplay())
	if err != nil {
		log.WarnContext(ctx, "discarding cached receipt that cannot be re-encoded", logger.Error(err))
		p.remove(ctx, log, f)
		return flushDiscarded
	}

	res := p.sender.Send(ctx, body)
	switch res.Outcome {
	case receipt.Delivered:
		p.remove(ctx, log, f)
		return flushDelivered
	case receipt.PermanentFailure:
		log.WarnContext(ctx, "cached receipt rejected, discarding", logger.Error(res.Err))
		p.remove(ctx, log, f)
		return flushRejected
	default:
		return flushKept
	}
}

func (p *Pipeline) remove(ctx context.Context, log *slog.Logger, f receiptcache.CachedFile) {
	if err := p.store.Remove(context.WithoutCancel(ctx), f); err != nil {
		log.WarnContext(ctx, "failed to remove cached receipt", logger.Error(err))
	}
}
