package analytics_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"wave-ticketing/internal/analytics"
	"wave-ticketing/internal/auth"
	"wave-ticketing/internal/inventory"
	"wave-ticketing/internal/logger"
	"wave-ticketing/internal/utils"
)

const maxBatchEvents = 50

// Handler handles analytics HTTP endpoints
type Handler struct {
	Service *analytics.Service
	Logger  *logger.Logger
}

func NewHandler(service *analytics.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// RegisterRoutes registers the admin analytics routes. auth.Middleware must
// already be applied.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/analytics", func(r chi.Router) {
		r.Use(auth.RequireRole(h.Logger, auth.RoleAdmin, auth.RoleSuperAdmin))

		r.Get("/events/{id}", h.GetEventAnalytics)
		r.Get("/events/{id}/orders", h.GetEventOrders)
		r.Post("/events/batch", h.GetBatchEventAnalytics)
	})
}

// GetEventAnalytics handles GET /api/analytics/events/{id}?status=
func (h *Handler) GetEventAnalytics(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")
	report, err := h.Service.GetEventAnalytics(r.Context(), eventID, r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Analytics retrieved", report)
}

// GetEventOrders handles GET /api/analytics/events/{id}/orders
func (h *Handler) GetEventOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := analytics.EventOrderOptions{
		Status:   q.Get("status"),
		SeatType: q.Get("seatType"),
		WaveID:   q.Get("waveId"),
		SortBy:   q.Get("sortBy"),
		SortDesc: strings.EqualFold(q.Get("sortDir"), "desc"),
	}

	var err error
	if opts.Limit, err = intParam(q.Get("limit")); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer", "INVALID_REQUEST")
		return
	}
	if opts.Offset, err = intParam(q.Get("offset")); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "offset must be a non-negative integer", "INVALID_REQUEST")
		return
	}

	orders, err := h.Service.GetEventOrders(r.Context(), chi.URLParam(r, "id"), opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Orders retrieved", orders)
}

type batchRequest struct {
	EventIDs []string `json:"eventIds"`
	Status   string   `json:"status"`
	PerEvent bool     `json:"perEvent"`
}

// GetBatchEventAnalytics handles POST /api/analytics/events/batch. With
// perEvent set it returns one full report per event instead of the sum.
func (h *Handler) GetBatchEventAnalytics(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request format", "INVALID_REQUEST")
		return
	}
	if len(req.EventIDs) == 0 {
		utils.WriteError(w, http.StatusBadRequest, "No event IDs provided", "INVALID_REQUEST")
		return
	}
	if len(req.EventIDs) > maxBatchEvents {
		utils.WriteError(w, http.StatusBadRequest, fmt.Sprintf("At most %d events per batch", maxBatchEvents), "INVALID_REQUEST")
		return
	}

	var (
		report interface{}
		err    error
	)
	if req.PerEvent {
		report, err = h.Service.GetBatchEventAnalyticsMap(r.Context(), req.EventIDs, req.Status)
	} else {
		report, err = h.Service.GetBatchEventAnalytics(r.Context(), req.EventIDs, req.Status)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Analytics retrieved", report)
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	return n, nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := inventory.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
	}
	utils.WriteError(w, status, inventory.Message(err), inventory.Code(err))
}
