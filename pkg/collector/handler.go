package collector

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/receiptkit/pkg/logger"
	"github.com/dmitrymomot/receiptkit/pkg/receipt"
)

const (
	// ReceiptsPath is where senders POST encoded receipts.
	ReceiptsPath = "/v1/display-receipts"
	HealthPath   = "/health"

	DefaultMaxBodyBytes = 64 << 10
)

// Response statuses.
const (
	StatusAccepted  = "accepted"
	StatusDuplicate = "duplicate"
)

type response struct {
	Status    string `json:"status,omitempty"`
	ReceiptID string `json:"receipt_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Option configures Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithMaxBodyBytes limits the request body size.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

// WithReadiness adds a named dependency check to the health endpoint.
func WithReadiness(name string, check func(*http.Request) error) Option {
	return func(h *Handler) {
		if check != nil {
			h.checks = append(h.checks, namedCheck{name: name, check: check})
		}
	}
}

type namedCheck struct {
	name  string
	check func(*http.Request) error
}

// Handler is the receipt collection endpoint. It accepts each (receipt id, schema version)
// once; later deliveries of the same receipt are acknowledged as duplicates.
type Handler struct {
	dedup   Deduplicator
	sink    Sink
	maxBody int64
	checks  []namedCheck
	logger  *slog.Logger
	router  chi.Router
}

// New creates a Handler.
func New(dedup Deduplicator, sink Sink, opts ...Option) (*Handler, error) {
	if dedup == nil || sink == nil {
		return nil, errors.Join(ErrInvalidConfig, errors.New("deduplicator and sink are required"))
	}

	h := &Handler{
		dedup:   dedup,
		sink:    sink,
		maxBody: DefaultMaxBodyBytes,
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Post(ReceiptsPath, h.collect)
	r.Get(HealthPath, h.health)
	h.router = r

	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) collect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.logger.With(slog.String("ext_version", r.Header.Get(receipt.HeaderExtensionVersion)))

	if v := r.Header.Get(receipt.HeaderProtocolVersion); v != receipt.SchemaVersion {
		log.WarnContext(ctx, "protocol version mismatch", slog.String("protocol_version", v))
		writeJSON(w, http.StatusBadRequest, response{Error: "unsupported protocol version"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, response{Error: "receipt too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, response{Error: "failed to read body"})
		return
	}

	rcpt, err := receipt.Decode(body)
	if err != nil {
		log.WarnContext(ctx, "rejecting undecodable receipt", logger.Error(err))
		writeJSON(w, http.StatusBadRequest, response{Error: err.Error()})
		return
	}
	log = log.With(logger.ReceiptID(rcpt.ID))

	key := rcpt.DedupKey()
	seen, err := h.dedup.MarkSeen(ctx, key)
	if err != nil {
		log.ErrorContext(ctx, "deduplication failed", logger.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, response{Error: ErrDedupUnavailable.Error()})
		return
	}
	if seen {
		log.DebugContext(ctx, "duplicate receipt", slog.Bool("replay", rcpt.Replay))
		writeJSON(w, http.StatusOK, response{Status: StatusDuplicate, ReceiptID: rcpt.ID})
		return
	}

	if err := h.sink.Accept(ctx, rcpt); err != nil {
		// Unmark so the sender's retry is not mistaken for a duplicate.
		if ferr := h.dedup.Forget(ctx, key); ferr != nil {
			log.ErrorContext(ctx, "failed to forget receipt after sink failure", logger.Error(ferr))
		}
		log.ErrorContext(ctx, "sink rejected receipt", logger.Error(err))
		writeJSON(w, http.StatusInternalServerError, response{Error: ErrSinkFailed.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, response{Status: StatusAccepted, ReceiptID: rcpt.ID})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	for _, c := range h.checks {
		if err := c.check(r); err != nil {
			h.logger.ErrorContext(r.Context(), "readiness check failed",
				logger.Component(c.name), logger.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, response{Status: "not_ready", Error: c.name})
			return
		}
	}
	writeJSON(w, http.StatusOK, response{Status: "ok"})
}

// RequestIDExtractor is a logger.ContextExtractor that adds the request id assigned by the
// router to records logged with a request context.
func RequestIDExtractor(ctx context.Context) (slog.Attr, bool) {
	id := middleware.GetReqID(ctx)
	if id == "" {
		return slog.Attr{}, false
	}
	return logger.RequestID(id), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
