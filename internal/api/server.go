// Package api exposes the scheduling core over a thin JSON HTTP surface.
// Handlers validate and translate; every decision lives in the core.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"orderslot/internal/booking"
	"orderslot/internal/models"
	"orderslot/internal/schedule"
	"orderslot/internal/slots"
)

// SlotQueries is the read/delete surface of the slot store used directly by
// the API.
type SlotQueries interface {
	FindByDate(ctx context.Context, date string) ([]*models.TimeSlot, error)
	FindByDateRange(ctx context.Context, start, end string, onlyAvailable bool) ([]*models.TimeSlot, error)
	DeleteSlot(ctx context.Context, slotID string) error
}

// ReportWriter renders the occupancy report for a date range.
type ReportWriter interface {
	WriteRange(ctx context.Context, start, end string, w io.Writer) error
}

// Options tunes the HTTP server.
type Options struct {
	Port           int
	RateLimitRPS   float64
	RateLimitBurst int
	BulkMaxDays    int
	StoreTimeout   time.Duration
}

// HTTPServer serves the scheduling API.
type HTTPServer struct {
	schedule  *schedule.Resolver
	generator *slots.Generator
	allocator *booking.Service
	store     SlotQueries
	report    ReportWriter
	opts      Options
	limiter   *rate.Limiter
	log       *zerolog.Logger
	server    *http.Server
}

// NewHTTPServer wires the API over the scheduling core.
func NewHTTPServer(
	resolver *schedule.Resolver,
	generator *slots.Generator,
	allocator *booking.Service,
	store SlotQueries,
	report ReportWriter,
	opts Options,
	logger *zerolog.Logger,
) *HTTPServer {
	if opts.Port == 0 {
		opts.Port = 8080
	}
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 50
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 100
	}
	if opts.BulkMaxDays <= 0 {
		opts.BulkMaxDays = 90
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}

	s := &HTTPServer{
		schedule:  resolver,
		generator: generator,
		allocator: allocator,
		store:     store,
		report:    report,
		opts:      opts,
		limiter:   rate.NewLimiter(rate.Limit(opts.RateLimitRPS), opts.RateLimitBurst),
		log:       logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/schedule", s.limit(s.handleSchedule))
	mux.HandleFunc("/api/schedule/exceptions", s.limit(s.handleExceptions))
	mux.HandleFunc("/api/schedule/effective", s.limit(s.handleEffectiveHours))
	mux.HandleFunc("/api/slots", s.limit(s.handleSlots))
	mux.HandleFunc("/api/slots/range", s.limit(s.handleSlotsRange))
	mux.HandleFunc("/api/slots/next", s.limit(s.handleNextSlot))
	mux.HandleFunc("/api/slots/status", s.limit(s.handleSlotStatus))
	mux.HandleFunc("/api/slots/generate", s.limit(s.handleGenerate))
	mux.HandleFunc("/api/slots/generate-bulk", s.limit(s.handleGenerateBulk))
	mux.HandleFunc("/api/orders/assign", s.limit(s.handleAssignOrder))
	mux.HandleFunc("/api/orders/remove", s.limit(s.handleRemoveOrder))
	mux.HandleFunc("/api/reports/occupancy", s.limit(s.handleOccupancyReport))

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler returns the configured handler, useful for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctxShutdown)
	}()

	s.log.Info().Str("addr", s.server.Addr).Msg("API server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.opts.StoreTimeout)
		defer cancel()
		next(w, r.WithContext(ctx))
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps a core failure onto an HTTP status.
func (s *HTTPServer) writeDomainError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, models.ErrScheduleNotConfigured),
		errors.Is(err, models.ErrSlotNotFound),
		errors.Is(err, models.ErrNoAvailableSlot):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrSlotFull),
		errors.Is(err, models.ErrSlotHasOrders),
		errors.Is(err, models.ErrOrderAlreadyAssigned):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrStoreTimeout):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		s.log.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func parseDateParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%s is required", name)
	}
	date, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s; expected YYYY-MM-DD", name)
	}
	return date, nil
}
