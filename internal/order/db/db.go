package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"wave-ticketing/internal/database"
	"wave-ticketing/internal/models"
)

var ErrOrderNotFound = errors.New("order not found")

type DB struct {
	Bun *bun.DB
}

func (d *DB) conn(ctx context.Context) bun.IDB {
	return database.Conn(ctx, d.Bun)
}

// ---------------- ORDERS ----------------

func (d *DB) CreateOrder(ctx context.Context, order *models.Order) error {
	if _, err := d.conn(ctx).NewInsert().Model(order).Exec(ctx); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	order := new(models.Order)
	err := d.conn(ctx).NewSelect().
		Model(order).
		Where("order_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrdersByUser returns the user's orders, newest first.
func (d *DB) GetOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	orders := []models.Order{}
	err := d.conn(ctx).NewSelect().
		Model(&orders).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	return orders, err
}

// ListOrders returns every order, newest first, optionally for one event.
func (d *DB) ListOrders(ctx context.Context, eventID string) ([]models.Order, error) {
	orders := []models.Order{}
	q := d.conn(ctx).NewSelect().
		Model(&orders).
		Order("created_at DESC")
	if eventID != "" {
		q = q.Where("event_id = ?", eventID)
	}
	err := q.Scan(ctx)
	return orders, err
}
