package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"wave-ticketing/internal/database"
	"wave-ticketing/internal/models"
)

var ErrTicketNotFound = errors.New("ticket not found")

type DB struct {
	Bun *bun.DB
}

func (d *DB) conn(ctx context.Context) bun.IDB {
	return database.Conn(ctx, d.Bun)
}

// CreateTickets inserts the tickets of one order in a single statement.
func (d *DB) CreateTickets(ctx context.Context, tickets []models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	if _, err := d.conn(ctx).NewInsert().Model(&tickets).Exec(ctx); err != nil {
		return fmt.Errorf("insert tickets: %w", err)
	}
	return nil
}

func (d *DB) GetTicketByCode(ctx context.Context, code string) (*models.Ticket, error) {
	ticket := new(models.Ticket)
	err := d.conn(ctx).NewSelect().
		Model(ticket).
		Where("ticket_code = ?", code).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (d *DB) GetTicketsByOrder(ctx context.Context, orderID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.conn(ctx).NewSelect().
		Model(&tickets).
		Where("order_id = ?", orderID).
		Order("ticket_code ASC").
		Scan(ctx)
	return tickets, err
}

// GetTicketsByUser returns the holder's tickets joined with the wave and
// locked price of their orders, newest first.
func (d *DB) GetTicketsByUser(ctx context.Context, userID string) ([]models.TicketWithOrder, error) {
	var rows []models.TicketWithOrder
	err := d.conn(ctx).NewSelect().
		TableExpr("tickets AS t").
		ColumnExpr("t.*").
		ColumnExpr("o.wave_name, o.price_per_ticket").
		Join("JOIN orders AS o ON o.order_id = t.order_id").
		Where("t.user_id = ?", userID).
		OrderExpr("t.issued_at DESC, t.ticket_code ASC").
		Scan(ctx, &rows)
	return rows, err
}

// MarkUsed flips an unused ticket to used. It reports false when the
// ticket is missing or not unused.
func (d *DB) MarkUsed(ctx context.Context, code, scannedBy string, at time.Time) (bool, error) {
	res, err := d.conn(ctx).NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketStatusUsed).
		Set("used_at = ?", at).
		Set("scanned_by = ?", scannedBy).
		Where("ticket_code = ?", code).
		Where("status = ?", models.TicketStatusUnused).
		Exec(ctx)
	return affected(res, err)
}

// CancelTicket moves an unused or used ticket to cancelled.
func (d *DB) CancelTicket(ctx context.Context, code string) (bool, error) {
	res, err := d.conn(ctx).NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketStatusCancelled).
		Where("ticket_code = ?", code).
		Where("status IN (?)", bun.In([]string{models.TicketStatusUnused, models.TicketStatusUsed})).
		Exec(ctx)
	return affected(res, err)
}

// GetTotalTicketsCount returns the number of tickets ever issued.
func (d *DB) GetTotalTicketsCount(ctx context.Context) (int, error) {
	return d.conn(ctx).NewSelect().
		Model((*models.Ticket)(nil)).
		Count(ctx)
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
