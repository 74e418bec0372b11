package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"wave-ticketing/internal/database"
	"wave-ticketing/internal/inventory"
	"wave-ticketing/internal/models"
)

// DB is the inventory repository. Every method joins the transaction on
// ctx when there is one.
type DB struct {
	Bun *bun.DB
}

var _ inventory.CommitStore = (*DB)(nil)

func (d *DB) conn(ctx context.Context) bun.IDB {
	return database.Conn(ctx, d.Bun)
}

func (d *DB) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return database.WithTx(ctx, d.Bun, fn)
}

// ---------------- EVENTS ----------------

// InsertEvent stores an event with its waves and categories.
func (d *DB) InsertEvent(ctx context.Context, ev *models.Event) error {
	if _, err := d.conn(ctx).NewInsert().Model(ev).Exec(ctx); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	for _, w := range ev.Waves {
		if err := d.InsertWave(ctx, w); err != nil {
			return err
		}
	}
	return nil
}

// LoadEventTree returns the event with waves and categories in storage
// order, regardless of its active flag.
func (d *DB) LoadEventTree(ctx context.Context, id string) (*models.Event, error) {
	ev := new(models.Event)
	err := d.conn(ctx).NewSelect().
		Model(ev).
		Relation("Waves", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("?TableAlias.position ASC")
		}).
		Relation("Waves.Categories", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("?TableAlias.position ASC")
		}).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, inventory.ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// GetEvent returns the event row without its waves.
func (d *DB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	ev := new(models.Event)
	err := d.conn(ctx).NewSelect().
		Model(ev).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, inventory.ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// ListEvents returns active events by date ascending, or every event by
// date descending when includeInactive is set.
func (d *DB) ListEvents(ctx context.Context, includeInactive bool) ([]*models.Event, error) {
	var events []*models.Event
	q := d.conn(ctx).NewSelect().
		Model(&events).
		Relation("Waves", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("?TableAlias.position ASC")
		}).
		Relation("Waves.Categories", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("?TableAlias.position ASC")
		})
	if includeInactive {
		q = q.OrderExpr("?TableAlias.date DESC")
	} else {
		q = q.Where("?TableAlias.is_active = ?", true).OrderExpr("?TableAlias.date ASC")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

// UpdateEventInfo writes the given descriptive columns.
func (d *DB) UpdateEventInfo(ctx context.Context, ev *models.Event, columns ...string) error {
	columns = append(columns, "updated_at")
	_, err := d.conn(ctx).NewUpdate().
		Model(ev).
		Column(columns...).
		WherePK().
		Exec(ctx)
	return err
}

// DeactivateEvent flips isActive off. Events are never deleted.
func (d *DB) DeactivateEvent(ctx context.Context, id string) (bool, error) {
	res, err := d.conn(ctx).NewUpdate().
		Model((*models.Event)(nil)).
		Set("is_active = ?", false).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	return affected(res, err)
}

// TouchEvent locks the event row for an admin mutation.
func (d *DB) TouchEvent(ctx context.Context, id string) (bool, error) {
	res, err := d.conn(ctx).NewUpdate().
		Model((*models.Event)(nil)).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	return affected(res, err)
}

// SaveAggregates persists recomputed aggregates. soldCount is only ever
// changed by IncrementSoldCount.
func (d *DB) SaveAggregates(ctx context.Context, ev *models.Event) error {
	ev.UpdatedAt = time.Now()
	_, err := d.conn(ctx).NewUpdate().
		Model(ev).
		Column("vip_seats", "fan_pit_seats", "regular_seats",
			"vip_price", "fan_pit_price", "regular_price",
			"total_seats", "legacy_sold_seats", "is_sold_out", "updated_at").
		WherePK().
		Exec(ctx)
	return err
}

// ---------------- WAVES / CATEGORIES ----------------

func (d *DB) InsertWave(ctx context.Context, w *models.Wave) error {
	if _, err := d.conn(ctx).NewInsert().Model(w).Exec(ctx); err != nil {
		return fmt.Errorf("insert wave: %w", err)
	}
	if len(w.Categories) == 0 {
		return nil
	}
	if _, err := d.conn(ctx).NewInsert().Model(&w.Categories).Exec(ctx); err != nil {
		return fmt.Errorf("insert categories: %w", err)
	}
	return nil
}

func (d *DB) InsertCategory(ctx context.Context, c *models.WaveCategory) error {
	_, err := d.conn(ctx).NewInsert().Model(c).Exec(ctx)
	return err
}

func (d *DB) UpdateWave(ctx context.Context, w *models.Wave) error {
	_, err := d.conn(ctx).NewUpdate().
		Model(w).
		Column("name", "description", "release_date", "is_active", "updated_at").
		WherePK().
		Exec(ctx)
	return err
}

// UpdateCategory writes an admin edit. The seat columns are guarded so an
// edit computed from a stale read cannot push remaining below zero.
func (d *DB) UpdateCategory(ctx context.Context, c *models.WaveCategory) error {
	res, err := d.conn(ctx).NewUpdate().
		Model(c).
		Column("label", "price", "total_seats", "remaining_seats", "updated_at").
		WherePK().
		Where("sold_seats = ?", c.SoldSeats).
		Exec(ctx)
	ok, err := affected(res, err)
	if err != nil {
		return err
	}
	if !ok {
		return inventory.ErrConcurrentConflict
	}
	return nil
}

// ---------------- CONDITIONAL WRITES ----------------

// LockEvent touches an active event row.
func (d *DB) LockEvent(ctx context.Context, eventID string) (bool, error) {
	res, err := d.conn(ctx).NewUpdate().
		Model((*models.Event)(nil)).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", eventID).
		Where("is_active = ?", true).
		Exec(ctx)
	return affected(res, err)
}

func (d *DB) DecrementCategory(ctx context.Context, eventID, waveID, categoryID string, qty int) (bool, error) {
	res, err := d.conn(ctx).NewUpdate().
		Model((*models.WaveCategory)(nil)).
		Set("remaining_seats = remaining_seats - ?", qty).
		Set("sold_seats = sold_seats + ?", qty).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", categoryID).
		Where("wave_id = ?", waveID).
		Where("event_id = ?", eventID).
		Where("remaining_seats >= ?", qty).
		Where("EXISTS (SELECT 1 FROM waves WHERE waves.id = ? AND waves.is_active = ?)", waveID, true).
		Exec(ctx)
	return affected(res, err)
}

func (d *DB) IncrementSoldCount(ctx context.Context, eventID string, qty int) error {
	_, err := d.conn(ctx).NewUpdate().
		Model((*models.Event)(nil)).
		Set("sold_count = sold_count + ?", qty).
		Where("id = ?", eventID).
		Exec(ctx)
	return err
}

// DecrementLegacy also requires the event to still be wave-less, so a
// purchase racing the first wave cannot spend counters that were folded.
func (d *DB) DecrementLegacy(ctx context.Context, eventID string, t models.SeatType, qty int) (bool, error) {
	col, err := legacyColumn(t)
	if err != nil {
		return false, err
	}
	res, err := d.conn(ctx).NewUpdate().
		Model((*models.Event)(nil)).
		Set("? = ? - ?", bun.Ident(col), bun.Ident(col), qty).
		Set("sold_count = sold_count + ?", qty).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", eventID).
		Where("is_active = ?", true).
		Where("is_sold_out = ?", false).
		Where("? >= ?", bun.Ident(col), qty).
		Where("NOT EXISTS (SELECT 1 FROM waves WHERE waves.event_id = ?)", eventID).
		Exec(ctx)
	return affected(res, err)
}

func (d *DB) MarkLegacySoldOut(ctx context.Context, eventID string) error {
	_, err := d.conn(ctx).NewUpdate().
		Model((*models.Event)(nil)).
		Set("is_sold_out = ?", true).
		Where("id = ?", eventID).
		Where("vip_seats = 0 AND fan_pit_seats = 0 AND regular_seats = 0").
		Exec(ctx)
	return err
}

func legacyColumn(t models.SeatType) (string, error) {
	switch t {
	case models.SeatTypeVIP:
		return "vip_seats", nil
	case models.SeatTypeFanPit:
		return "fan_pit_seats", nil
	case models.SeatTypeRegular:
		return "regular_seats", nil
	}
	return "", inventory.ErrInvalidSeatType
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
