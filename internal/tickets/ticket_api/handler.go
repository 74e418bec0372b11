package ticket_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"wave-ticketing/internal/auth"
	"wave-ticketing/internal/logger"
	tickets "wave-ticketing/internal/tickets/service"
	"wave-ticketing/internal/utils"
)

type Handler struct {
	TicketService *tickets.TicketService
	Logger        *logger.Logger
}

func NewHandler(ticketService *tickets.TicketService, log *logger.Logger) *Handler {
	return &Handler{TicketService: ticketService, Logger: log}
}

// RegisterPublicRoutes mounts the unauthenticated ticket endpoints.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/api/tickets/count", h.GetTotalTicketsCount)
}

// RegisterRoutes mounts the ticket endpoints behind auth.Middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/tickets", func(r chi.Router) {
		r.Get("/my", h.ListMyTickets)
		r.With(auth.RequireRole(h.Logger, auth.RoleAdmin, auth.RoleSuperAdmin, auth.RoleScanner)).
			Post("/validate", h.ValidateTicket)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(h.Logger, auth.RoleAdmin, auth.RoleSuperAdmin))
			r.Get("/{code}", h.ViewTicket)
			r.Patch("/{code}/cancel", h.CancelTicket)
		})
	})
}

type TicketCountResponse struct {
	TotalCount int `json:"totalCount"`
}

func (h *Handler) GetTotalTicketsCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.TicketService.GetTotalTicketsCount(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Ticket count retrieved", TicketCountResponse{TotalCount: count})
}

func (h *Handler) ListMyTickets(w http.ResponseWriter, r *http.Request) {
	list, err := h.TicketService.GetTicketsByUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Tickets retrieved", list)
}

// ValidateTicket admits a ticket at the door.
// Expected POST body: {"ticketCode": "..."} or {"qrToken": "..."}
func (h *Handler) ValidateTicket(w http.ResponseWriter, r *http.Request) {
	var in tickets.ValidateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST")
		return
	}

	ticket, err := h.TicketService.Validate(r.Context(), in, auth.UserID(r.Context()))
	if errors.Is(err, tickets.ErrTicketAlreadyUsed) {
		resp := utils.ErrorResponse("Ticket already used", tickets.Code(err))
		resp.Data = map[string]interface{}{"alreadyUsed": true, "ticket": ticket}
		utils.WriteJSON(w, http.StatusBadRequest, resp)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Ticket validated", map[string]interface{}{"alreadyUsed": false, "ticket": ticket})
}

func (h *Handler) ViewTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.TicketService.GetTicket(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Ticket retrieved", ticket)
}

func (h *Handler) CancelTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.TicketService.CancelTicket(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Ticket cancelled", ticket)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := tickets.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.Logger.Error("TICKET", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
		msg = "Internal server error"
	}
	utils.WriteError(w, status, msg, tickets.Code(err))
}
