package analytics

import (
	"context"

	"github.com/uptrace/bun"

	"wave-ticketing/internal/models"
)

// DB runs the read-only sales queries.
type DB struct {
	Bun *bun.DB
}

func NewDB(db *bun.DB) *DB {
	return &DB{Bun: db}
}

// WaveSalesData is one (wave, seat type) group of orders.
type WaveSalesData struct {
	WaveID      *string         `bun:"wave_id"`
	WaveName    *string         `bun:"wave_name"`
	SeatType    models.SeatType `bun:"seat_type"`
	Orders      int             `bun:"order_count"`
	TicketsSold int             `bun:"tickets_sold"`
	Revenue     float64         `bun:"revenue"`
}

// TicketStatusData counts the tickets of the given events in one status.
type TicketStatusData struct {
	Status string `bun:"status"`
	Count  int    `bun:"ticket_count"`
}

// GetOrdersByEventIDs retrieves the orders of the given events, optionally
// filtered by payment status, oldest first.
func (db *DB) GetOrdersByEventIDs(ctx context.Context, eventIDs []string, status string) ([]models.Order, error) {
	orders := []models.Order{}
	q := db.Bun.NewSelect().
		Model(&orders).
		Where("event_id IN (?)", bun.In(eventIDs)).
		Order("created_at ASC")
	if status != "" {
		q = q.Where("payment_status = ?", status)
	}
	err := q.Scan(ctx)
	return orders, err
}

// GetSalesByWave groups the orders of the given events by the wave and
// seat type they were sold from. Legacy orders have no wave.
func (db *DB) GetSalesByWave(ctx context.Context, eventIDs []string, status string) ([]WaveSalesData, error) {
	var rows []WaveSalesData
	q := db.Bun.NewSelect().
		TableExpr("orders").
		ColumnExpr("wave_id, wave_name, seat_type").
		ColumnExpr("COUNT(*) AS order_count").
		ColumnExpr("SUM(quantity) AS tickets_sold").
		ColumnExpr("SUM(total_price) AS revenue").
		Where("event_id IN (?)", bun.In(eventIDs)).
		GroupExpr("wave_id, wave_name, seat_type")
	if status != "" {
		q = q.Where("payment_status = ?", status)
	}
	err := q.Scan(ctx, &rows)
	return rows, err
}

// GetTicketStatusCounts counts the issued tickets of the given events per
// status.
func (db *DB) GetTicketStatusCounts(ctx context.Context, eventIDs []string) ([]TicketStatusData, error) {
	var rows []TicketStatusData
	err := db.Bun.NewSelect().
		TableExpr("tickets").
		ColumnExpr("status").
		ColumnExpr("COUNT(*) AS ticket_count").
		Where("event_id IN (?)", bun.In(eventIDs)).
		GroupExpr("status").
		Scan(ctx, &rows)
	return rows, err
}

// GetTicketsByOrderIDs fetches the tickets of several orders in one query.
func (db *DB) GetTicketsByOrderIDs(ctx context.Context, orderIDs []string) ([]models.Ticket, error) {
	tickets := []models.Ticket{}
	if len(orderIDs) == 0 {
		return tickets, nil
	}
	err := db.Bun.NewSelect().
		Model(&tickets).
		ExcludeColumn("qr_code").
		Where("order_id IN (?)", bun.In(orderIDs)).
		Order("ticket_code ASC").
		Scan(ctx)
	return tickets, err
}
