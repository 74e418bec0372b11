package order_api

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"wave-ticketing/internal/auth"
	"wave-ticketing/internal/inventory"
	"wave-ticketing/internal/logger"
	"wave-ticketing/internal/models"
	"wave-ticketing/internal/order"
	"wave-ticketing/internal/sse"
	"wave-ticketing/internal/utils"
)

type Handler struct {
	OrderService *order.OrderService
	Stream       *sse.Handler
	Logger       *logger.Logger
}

func NewHandler(orderService *order.OrderService, stream *sse.Handler, log *logger.Logger) *Handler {
	return &Handler{OrderService: orderService, Stream: stream, Logger: log}
}

// RegisterRoutes mounts the order endpoints behind auth.Middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	admin := auth.RequireRole(h.Logger, auth.RoleAdmin, auth.RoleSuperAdmin)

	r.Route("/api/orders", func(r chi.Router) {
		r.Post("/", h.PlaceOrder)
		r.Get("/", h.ListMyOrders)
		r.With(admin).Get("/all", h.ListAllOrders)
		r.Get("/{orderId}", h.GetOrder)
		if h.Stream != nil {
			r.With(admin).Get("/events/{id}/stream", h.Stream.Stream(sse.KindCheckout, nil))
		}
	})
}

// orderBody accepts quantity as a JSON number or a numeric string.
type orderBody struct {
	EventID  string      `json:"eventId"`
	SeatType string      `json:"seatType"`
	Quantity json.Number `json:"quantity"`
}

// quantity returns the whole number of seats asked for. Missing, fractional
// or non-numeric values are an invalid quantity.
func (b orderBody) quantity() (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(b.Quantity.String()), 64)
	if err != nil || f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %q is not a whole number", inventory.ErrInvalidQuantity, b.Quantity.String())
	}
	return int(f), nil
}

// PlaceOrder buys seats of one type for the caller.
// Expected POST body: {"eventId": "...", "seatType": "vip", "quantity": 2}
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var body orderBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST")
		return
	}
	qty, err := body.quantity()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	req := models.OrderRequest{EventID: body.EventID, SeatType: body.SeatType, Quantity: qty}

	userID := auth.UserID(r.Context())
	resp, err := h.OrderService.PlaceOrder(r.Context(), userID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Order placed", resp)
}

func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.OrderService.GetOrdersByUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Orders retrieved", orders)
}

// ListAllOrders accepts an optional ?eventId= filter.
func (h *Handler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.OrderService.ListOrders(r.Context(), r.URL.Query().Get("eventId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Orders retrieved", orders)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFrom(r.Context())
	isAdmin := claims != nil && claims.IsAdmin()

	orderData, err := h.OrderService.GetOrder(r.Context(), chi.URLParam(r, "orderId"), auth.UserID(r.Context()), isAdmin)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Order retrieved", orderData)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := order.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
	}
	utils.WriteError(w, status, order.Message(err), order.Code(err))
}
