package event_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"wave-ticketing/internal/auth"
	"wave-ticketing/internal/event"
	"wave-ticketing/internal/inventory"
	"wave-ticketing/internal/logger"
	"wave-ticketing/internal/sse"
	"wave-ticketing/internal/utils"
)

type Handler struct {
	EventService *event.Service
	Stream       *sse.Handler
	Logger       *logger.Logger
}

func NewHandler(svc *event.Service, stream *sse.Handler, log *logger.Logger) *Handler {
	return &Handler{EventService: svc, Stream: stream, Logger: log}
}

// RegisterPublicRoutes mounts the catalogue and availability reads.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/api/events", h.ListEvents)
	r.Get("/api/events/{id}", h.GetEvent)
	r.Get("/api/events/{id}/availability", h.GetAvailability)
	if h.Stream != nil {
		r.Get("/api/events/{id}/availability/stream", h.Stream.Stream(sse.KindAvailability, h.initialAvailability))
	}
}

// RegisterRoutes mounts the admin endpoints behind auth.Middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(h.Logger, auth.RoleAdmin, auth.RoleSuperAdmin))

		r.Post("/api/events", h.CreateEvent)
		r.Get("/api/events/all", h.ListAllEvents)
		r.Patch("/api/events/{id}/info", h.UpdateEventInfo)
		r.Delete("/api/events/{id}", h.DeactivateEvent)

		r.Post("/api/events/{id}/waves", h.AddWave)
		r.Patch("/api/events/{id}/waves/{waveId}", h.UpdateWave)
		r.Post("/api/events/{id}/waves/{waveId}/categories", h.AddCategory)
		r.Patch("/api/events/{id}/waves/{waveId}/categories/{categoryId}", h.UpdateCategory)
	})
}

func (h *Handler) initialAvailability(ctx context.Context, eventID string) (interface{}, error) {
	return h.EventService.Availability(ctx, eventID)
}

// ---------------- CATALOGUE ----------------

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.EventService.ListEvents(r.Context(), false)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Events retrieved", events)
}

func (h *Handler) ListAllEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.EventService.ListEvents(r.Context(), true)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Events retrieved", events)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.EventService.GetEvent(r.Context(), chi.URLParam(r, "id"), false)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Event retrieved", ev)
}

func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	snap, err := h.EventService.Availability(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Availability retrieved", snap)
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var in event.CreateEventInput
	if !h.decode(w, r, &in) {
		return
	}
	ev, err := h.EventService.CreateEvent(r.Context(), in, auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Event created", ev)
}

func (h *Handler) UpdateEventInfo(w http.ResponseWriter, r *http.Request) {
	var p event.EventInfoPatch
	if !h.decode(w, r, &p) {
		return
	}
	ev, err := h.EventService.UpdateInfo(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Event updated", ev)
}

func (h *Handler) DeactivateEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.EventService.Deactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Event deactivated", nil)
}

// ---------------- WAVES ----------------

func (h *Handler) AddWave(w http.ResponseWriter, r *http.Request) {
	var in inventory.WaveInput
	if !h.decode(w, r, &in) {
		return
	}
	ev, err := h.EventService.AddWave(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Wave added", ev)
}

func (h *Handler) UpdateWave(w http.ResponseWriter, r *http.Request) {
	var p inventory.WavePatch
	if !h.decode(w, r, &p) {
		return
	}
	ev, err := h.EventService.UpdateWave(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "waveId"), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Wave updated", ev)
}

func (h *Handler) AddCategory(w http.ResponseWriter, r *http.Request) {
	var in inventory.CategoryInput
	if !h.decode(w, r, &in) {
		return
	}
	ev, err := h.EventService.AddCategory(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "waveId"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Category added", ev)
}

func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var p inventory.CategoryPatch
	if !h.decode(w, r, &p) {
		return
	}
	ev, err := h.EventService.UpdateCategory(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "waveId"), chi.URLParam(r, "categoryId"), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Category updated", ev)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error(), "INVALID_REQUEST")
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := inventory.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
	}
	utils.WriteError(w, status, inventory.Message(err), inventory.Code(err))
}
