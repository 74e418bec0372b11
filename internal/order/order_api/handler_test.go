package order_api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wave-ticketing/internal/auth"
	"wave-ticketing/internal/config"
	"wave-ticketing/internal/database/dbtest"
	"wave-ticketing/internal/event"
	eventdb "wave-ticketing/internal/event/db"
	"wave-ticketing/internal/inventory"
	"wave-ticketing/internal/logger"
	"wave-ticketing/internal/models"
	"wave-ticketing/internal/order"
	orderdb "wave-ticketing/internal/order/db"
	ticketdb "wave-ticketing/internal/tickets/db"
	qr "wave-ticketing/internal/tickets/qr_genrator"
	tickets "wave-ticketing/internal/tickets/service"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

type fixture struct {
	router   http.Handler
	verifier *auth.HMACVerifier
	eventID  string
}

func setup(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewWithWriter(io.Discard)
	db := dbtest.NewSQLite(t)
	store := &eventdb.DB{Bun: db}

	ev, err := event.NewService(store, nil, nil, log).CreateEvent(context.Background(), event.CreateEventInput{
		Name:       "Summer Fest",
		Date:       time.Date(2026, 7, 1, 18, 0, 0, 0, time.UTC),
		Venue:      "Arena",
		Categories: []inventory.CategoryInput{{Type: "vip", Label: "Gold", Price: 150, Seats: 4}},
	}, "admin-1")
	require.NoError(t, err)

	ticketSvc := tickets.NewTicketService(&ticketdb.DB{Bun: db}, qr.NewQRGenerator("k", "https://app.test"), log)
	svc := order.NewOrderService(store, &orderdb.DB{Bun: db}, ticketSvc,
		config.PurchaseConfig{MaxQuantity: 10, ConflictRetries: 1}, log)

	v := auth.NewHMACVerifier("secret")
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(v, log))
		NewHandler(svc, nil, log).RegisterRoutes(r)
	})
	return &fixture{router: r, verifier: v, eventID: ev.ID}
}

func (f *fixture) call(t *testing.T, method, path, sub string, roles []string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if sub != "" {
		tok, err := f.verifier.Sign(sub, "", time.Hour, roles...)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var out envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec.Code, out
}

func TestPlaceOrder(t *testing.T) {
	f := setup(t)

	status, out := f.call(t, http.MethodPost, "/api/orders", "user-1", nil,
		models.OrderRequest{EventID: f.eventID, SeatType: "vip", Quantity: 3})
	require.Equal(t, http.StatusCreated, status)

	var resp models.OrderResponse
	require.NoError(t, json.Unmarshal(out.Data, &resp))
	assert.Equal(t, 150.0, resp.PricePerTicket)
	assert.Equal(t, 450.0, resp.TotalPrice)
	assert.Equal(t, "Wave 1", *resp.WaveName)
	assert.Len(t, resp.TicketIDs, 3)
	assert.Equal(t, 1, resp.Attempts)

	status, out = f.call(t, http.MethodPost, "/api/orders", "user-2", nil,
		models.OrderRequest{EventID: f.eventID, SeatType: "vip", Quantity: 2})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INSUFFICIENT_INVENTORY", out.Code)
	assert.Equal(t, "Not enough vip seats available", out.Message)
}

func TestPlaceOrder_Errors(t *testing.T) {
	f := setup(t)

	cases := []struct {
		req    models.OrderRequest
		status int
		code   string
	}{
		{models.OrderRequest{EventID: f.eventID, SeatType: "vip", Quantity: 0}, http.StatusBadRequest, "INVALID_QUANTITY"},
		{models.OrderRequest{EventID: f.eventID, SeatType: "vip", Quantity: 11}, http.StatusBadRequest, "INVALID_QUANTITY"},
		{models.OrderRequest{EventID: f.eventID, SeatType: "box", Quantity: 1}, http.StatusBadRequest, "INVALID_SEAT_TYPE"},
		{models.OrderRequest{EventID: "nope", SeatType: "vip", Quantity: 1}, http.StatusNotFound, "EVENT_NOT_FOUND"},
	}
	for _, tc := range cases {
		status, out := f.call(t, http.MethodPost, "/api/orders", "user-1", nil, tc.req)
		assert.Equal(t, tc.status, status, tc.code)
		assert.Equal(t, tc.code, out.Code)
		assert.False(t, out.Success)
	}

	bad := []interface{}{2.5, "two", nil}
	for _, q := range bad {
		status, out := f.call(t, http.MethodPost, "/api/orders", "user-1", nil,
			map[string]interface{}{"eventId": f.eventID, "seatType": "vip", "quantity": q})
		assert.Equal(t, http.StatusBadRequest, status, "%v", q)
		if q == "two" {
			assert.Equal(t, "INVALID_REQUEST", out.Code)
			continue
		}
		assert.Equal(t, "INVALID_QUANTITY", out.Code, "%v", q)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPlaceOrder_NumericStringQuantity(t *testing.T) {
	f := setup(t)

	status, out := f.call(t, http.MethodPost, "/api/orders", "user-1", nil,
		map[string]interface{}{"eventId": f.eventID, "seatType": "vip", "quantity": "2"})
	require.Equal(t, http.StatusCreated, status)

	var resp models.OrderResponse
	require.NoError(t, json.Unmarshal(out.Data, &resp))
	assert.Equal(t, 2, resp.Quantity)
	assert.Len(t, resp.TicketIDs, 2)
}

func TestOrderQueries(t *testing.T) {
	f := setup(t)

	_, out := f.call(t, http.MethodPost, "/api/orders", "user-1", nil,
		models.OrderRequest{EventID: f.eventID, SeatType: "vip", Quantity: 1})
	var placed models.OrderResponse
	require.NoError(t, json.Unmarshal(out.Data, &placed))

	status, out := f.call(t, http.MethodGet, "/api/orders", "user-1", nil, nil)
	require.Equal(t, http.StatusOK, status)
	var mine []models.Order
	require.NoError(t, json.Unmarshal(out.Data, &mine))
	assert.Len(t, mine, 1)

	status, _ = f.call(t, http.MethodGet, "/api/orders/"+placed.OrderID, "user-2", nil, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, out = f.call(t, http.MethodGet, "/api/orders/"+placed.OrderID, "admin-1", []string{auth.RoleAdmin}, nil)
	require.Equal(t, http.StatusOK, status)
	var detail models.OrderWithTickets
	require.NoError(t, json.Unmarshal(out.Data, &detail))
	assert.Len(t, detail.Tickets, 1)

	status, _ = f.call(t, http.MethodGet, "/api/orders/all", "user-1", nil, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, out = f.call(t, http.MethodGet, "/api/orders/all?eventId="+f.eventID, "root", []string{auth.RoleSuperAdmin}, nil)
	require.Equal(t, http.StatusOK, status)
	var all []models.Order
	require.NoError(t, json.Unmarshal(out.Data, &all))
	assert.Len(t, all, 1)

	status, out = f.call(t, http.MethodGet, "/api/orders/missing", "user-1", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "ORDER_NOT_FOUND", out.Code)
}
