package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	TicketStatusUnused    = "unused"
	TicketStatusUsed      = "used"
	TicketStatusCancelled = "cancelled"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	TicketID   string     `bun:"ticket_id,pk" json:"id"`
	TicketCode string     `bun:"ticket_code,unique,notnull" json:"ticketCode"`
	OrderID    string     `bun:"order_id,notnull" json:"orderId"`
	EventID    string     `bun:"event_id,notnull" json:"eventId"`
	UserID     string     `bun:"user_id,notnull" json:"userId"`
	SeatType   SeatType   `bun:"seat_type,notnull" json:"seatType"`
	Price      float64    `bun:"price,notnull" json:"price"`
	QRCode     []byte     `bun:"qr_code" json:"qrCode,omitempty"`
	Status     string     `bun:"status,notnull" json:"status"`
	UsedAt     *time.Time `bun:"used_at,nullzero" json:"usedAt,omitempty"`
	ScannedBy  *string    `bun:"scanned_by" json:"scannedBy,omitempty"`
	IssuedAt   time.Time  `bun:"issued_at,notnull" json:"issuedAt"`
}

// TicketWithOrder is the holder view of a ticket, carrying the wave and
// locked price of the order that produced it.
type TicketWithOrder struct {
	Ticket
	WaveName       *string `bun:"wave_name" json:"waveName"`
	PricePerTicket float64 `bun:"price_per_ticket" json:"pricePerTicket"`
}

// TicketClaim is the payload sealed into a ticket's QR token.
type TicketClaim struct {
	TicketCode string   `json:"code"`
	OrderID    string   `json:"order"`
	EventID    string   `json:"event"`
	SeatType   SeatType `json:"seat"`
}
