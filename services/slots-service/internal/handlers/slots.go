package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/agendaslug/agenda/libs/httpx"
	"github.com/agendaslug/agenda/services/slots-service/internal/availability"
	"github.com/agendaslug/agenda/services/slots-service/internal/backend"
	"github.com/agendaslug/agenda/services/slots-service/internal/events"
)

const msgNoAvailability = "no availability for this day"

// RuleSource loads every availability rule of a tenant.
type RuleSource interface {
	ListRules(ctx context.Context, sess backend.Session, tenant string) ([]availability.Rule, error)
}

type SlotsHandler struct {
	rules     RuleSource
	generator *availability.Generator
	events    events.Emitter
	logger    *slog.Logger
	loc       *time.Location
	now       func() time.Time
}

type SlotsOption func(*SlotsHandler)

// WithClock overrides the wall clock; tests use it to pin "today".
func WithClock(now func() time.Time) SlotsOption {
	return func(h *SlotsHandler) { h.now = now }
}

func NewSlotsHandler(rules RuleSource, generator *availability.Generator, emitter events.Emitter, logger *slog.Logger, loc *time.Location, opts ...SlotsOption) *SlotsHandler {
	if emitter == nil {
		emitter = events.Nop{}
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &SlotsHandler{
		rules:     rules,
		generator: generator,
		events:    emitter,
		logger:    logger,
		loc:       loc,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type slotsResponse struct {
	Tenant     string   `json:"tenant"`
	StaffID    string   `json:"staff_id"`
	LocationID string   `json:"location_id"`
	Date       string   `json:"date"`
	Slots      []string `json:"slots"`
	Available  bool     `json:"available"`
	Message    string   `json:"message,omitempty"`
}

func (h *SlotsHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	tenant := strings.TrimSpace(q.Get("tenant"))
	staffID := strings.TrimSpace(q.Get("staff_id"))
	locationID := strings.TrimSpace(q.Get("location_id"))
	dateStr := strings.TrimSpace(q.Get("date"))
	if tenant == "" || staffID == "" || locationID == "" || dateStr == "" {
		http.Error(w, "tenant, staff_id, location_id, and date are required", http.StatusBadRequest)
		return
	}
	if !validSlug(tenant) {
		http.Error(w, "invalid tenant", http.StatusBadRequest)
		return
	}

	date, err := availability.ParseDate(dateStr)
	if err != nil {
		http.Error(w, "invalid date (expected YYYY-MM-DD)", http.StatusBadRequest)
		return
	}
	now := h.now().In(h.loc)
	if date.Before(availability.DateOf(now)) {
		http.Error(w, "date must not be in the past", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	reqID := httpx.RequestIDFromContext(ctx)
	rules, err := h.rules.ListRules(ctx, backend.SessionFromRequest(r), tenant)
	if err != nil {
		h.logger.Error("availability lookup failed", "err", err, "tenant", tenant, "request_id", reqID)
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden) {
			http.Error(w, apiErr.Message, apiErr.Status)
			return
		}
		http.Error(w, "failed to load availability", http.StatusBadGateway)
		return
	}

	slots, err := h.generator.Generate(rules, availability.Request{
		StaffID:    staffID,
		LocationID: locationID,
		Date:       date,
		Now:        now,
	})
	resp := slotsResponse{
		Tenant:     tenant,
		StaffID:    staffID,
		LocationID: locationID,
		Date:       date.String(),
		Slots:      make([]string, 0, len(slots)),
	}
	switch {
	case err == nil:
		resp.Available = true
		for _, s := range slots {
			resp.Slots = append(resp.Slots, s.String())
		}
	case errors.Is(err, availability.ErrNoAvailability):
		resp.Message = msgNoAvailability
		h.logger.Debug("no availability", "tenant", tenant, "staff_id", staffID, "location_id", locationID, "date", resp.Date)
	case errors.Is(err, availability.ErrMalformedRule):
		h.logger.Error("malformed availability rule", "err", err, "tenant", tenant, "request_id", reqID)
		http.Error(w, "availability rule is malformed", http.StatusBadGateway)
		return
	default:
		h.logger.Error("slot generation failed", "err", err, "tenant", tenant, "request_id", reqID)
		http.Error(w, "failed to generate slots", http.StatusInternalServerError)
		return
	}

	h.events.Emit(ctx, events.SlotsGenerated{
		Tenant:      tenant,
		StaffID:     staffID,
		LocationID:  locationID,
		Date:        resp.Date,
		SlotCount:   len(resp.Slots),
		Available:   resp.Available,
		GeneratedAt: now.UTC(),
	})

	body, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// validSlug accepts the URL slugs tenants are identified by.
func validSlug(s string) bool {
	if len(s) > 128 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
