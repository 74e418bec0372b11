package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// OrderRequest is the purchase request body.
type OrderRequest struct {
	EventID  string `json:"eventId"`
	SeatType string `json:"seatType"`
	Quantity int    `json:"quantity"`
}

// Order records one purchase of Quantity seats of a single type. Price and
// wave fields are a snapshot taken at commit time and never change.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	OrderID        string    `bun:"order_id,pk" json:"orderId"`
	UserID         string    `bun:"user_id,notnull" json:"userId"`
	EventID        string    `bun:"event_id,notnull" json:"eventId"`
	SeatType       SeatType  `bun:"seat_type,notnull" json:"seatType"`
	Quantity       int       `bun:"quantity,notnull" json:"quantity"`
	PricePerTicket float64   `bun:"price_per_ticket,notnull" json:"pricePerTicket"`
	TotalPrice     float64   `bun:"total_price,notnull" json:"totalPrice"`
	PaymentStatus  string    `bun:"payment_status,notnull" json:"paymentStatus"`
	PaymentRef     string    `bun:"payment_ref,notnull" json:"paymentRef"`
	WaveID         *string   `bun:"wave_id" json:"waveId"`
	WaveName       *string   `bun:"wave_name" json:"waveName"`
	CategoryID     *string   `bun:"category_id" json:"categoryId"`
	CreatedAt      time.Time `bun:"created_at,notnull" json:"createdAt"`
}

// OrderResponse is returned to the purchaser after a successful commit.
type OrderResponse struct {
	OrderID        string   `json:"orderId"`
	EventID        string   `json:"eventId"`
	SeatType       SeatType `json:"seatType"`
	Quantity       int      `json:"quantity"`
	PricePerTicket float64  `json:"pricePerTicket"`
	TotalPrice     float64  `json:"totalPrice"`
	WaveName       *string  `json:"waveName"`
	PaymentRef     string   `json:"paymentRef"`
	TicketIDs      []string `json:"ticketIds"`
	TicketCodes    []string `json:"ticketCodes"`
	Attempts       int      `json:"attempts"`
}

// OrderWithTickets groups an order and the tickets it produced.
type OrderWithTickets struct {
	Order   Order    `json:"order"`
	Tickets []Ticket `json:"tickets"`
}
