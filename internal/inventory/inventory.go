package inventory

import (
	"context"
	"fmt"
	"math"

	"wave-ticketing/internal/models"
)

// Allocation is the outcome of selection: where the seats come from and
// the price locked for them. Wave fields are nil for legacy events.
type Allocation struct {
	EventID        string
	SeatType       models.SeatType
	Quantity       int
	WaveID         *string
	WaveName       *string
	CategoryID     *string
	PricePerTicket float64
	TotalPrice     float64
}

// CommitStore is the conditional-write surface the committer needs. All
// calls are made with a transactional context.
type CommitStore interface {
	// LockEvent touches the event row so concurrent recomputations of the
	// same event serialise. It reports false when the event is gone or
	// inactive.
	LockEvent(ctx context.Context, eventID string) (bool, error)
	// DecrementCategory takes qty seats from one category only if it still
	// has them and its wave is active.
	DecrementCategory(ctx context.Context, eventID, waveID, categoryID string, qty int) (bool, error)
	// DecrementLegacy takes qty seats from the flat counter of a wave-less,
	// active, not sold out event and bumps its sold count.
	DecrementLegacy(ctx context.Context, eventID string, t models.SeatType, qty int) (bool, error)
	// MarkLegacySoldOut sets isSoldOut once all flat counters are zero.
	MarkLegacySoldOut(ctx context.Context, eventID string) error
	IncrementSoldCount(ctx context.Context, eventID string, qty int) error
	LoadEventTree(ctx context.Context, eventID string) (*models.Event, error)
	SaveAggregates(ctx context.Context, ev *models.Event) error
}

// Inventory is one of the two event representations.
type Inventory interface {
	// Select is advisory: it reads the loaded event and holds no lock.
	Select(t models.SeatType, qty int) (*Allocation, error)
	// Commit applies an allocation and returns the event as it stands
	// after the write. A lost race yields ErrConcurrentConflict.
	Commit(ctx context.Context, store CommitStore, a *Allocation) (*models.Event, error)
}

// ForEvent picks the representation for ev.
func ForEvent(ev *models.Event) Inventory {
	if ev.HasWaves() {
		return waveInventory{ev: ev}
	}
	return legacyInventory{ev: ev}
}

type waveInventory struct {
	ev *models.Event
}

func (w waveInventory) Select(t models.SeatType, qty int) (*Allocation, error) {
	for _, wave := range w.ev.Waves {
		if !wave.IsActive {
			continue
		}
		for _, c := range wave.Categories {
			if c.Type != t || c.RemainingSeats < qty {
				continue
			}
			waveID, waveName, catID := wave.ID, wave.Name, c.ID
			return &Allocation{
				EventID:        w.ev.ID,
				SeatType:       t,
				Quantity:       qty,
				WaveID:         &waveID,
				WaveName:       &waveName,
				CategoryID:     &catID,
				PricePerTicket: c.Price,
				TotalPrice:     total(c.Price, qty),
			}, nil
		}
	}
	return nil, insufficient(t)
}

func (w waveInventory) Commit(ctx context.Context, store CommitStore, a *Allocation) (*models.Event, error) {
	if a.WaveID == nil || a.CategoryID == nil {
		return nil, fmt.Errorf("wave allocation without category")
	}

	ok, err := store.LockEvent(ctx, a.EventID)
	if err != nil {
		return nil, fmt.Errorf("lock event: %w", err)
	}
	if !ok {
		return nil, ErrConcurrentConflict
	}

	ok, err = store.DecrementCategory(ctx, a.EventID, *a.WaveID, *a.CategoryID, a.Quantity)
	if err != nil {
		return nil, fmt.Errorf("decrement category: %w", err)
	}
	if !ok {
		return nil, ErrConcurrentConflict
	}

	if err := store.IncrementSoldCount(ctx, a.EventID, a.Quantity); err != nil {
		return nil, fmt.Errorf("increment sold count: %w", err)
	}

	ev, err := store.LoadEventTree(ctx, a.EventID)
	if err != nil {
		return nil, fmt.Errorf("reload event: %w", err)
	}
	Refresh(ev)
	if err := store.SaveAggregates(ctx, ev); err != nil {
		return nil, fmt.Errorf("save aggregates: %w", err)
	}
	return ev, nil
}

// legacyInventory treats the flat per-type counters as one implicit
// category per type.
type legacyInventory struct {
	ev *models.Event
}

func (l legacyInventory) Select(t models.SeatType, qty int) (*Allocation, error) {
	if l.ev.IsSoldOut || l.ev.SeatsFor(t) < qty {
		return nil, insufficient(t)
	}
	price := l.ev.PriceFor(t)
	return &Allocation{
		EventID:        l.ev.ID,
		SeatType:       t,
		Quantity:       qty,
		PricePerTicket: price,
		TotalPrice:     total(price, qty),
	}, nil
}

func (l legacyInventory) Commit(ctx context.Context, store CommitStore, a *Allocation) (*models.Event, error) {
	ok, err := store.DecrementLegacy(ctx, a.EventID, a.SeatType, a.Quantity)
	if err != nil {
		return nil, fmt.Errorf("decrement legacy seats: %w", err)
	}
	if !ok {
		return nil, ErrConcurrentConflict
	}
	if err := store.MarkLegacySoldOut(ctx, a.EventID); err != nil {
		return nil, fmt.Errorf("mark sold out: %w", err)
	}
	ev, err := store.LoadEventTree(ctx, a.EventID)
	if err != nil {
		return nil, fmt.Errorf("reload event: %w", err)
	}
	return ev, nil
}

func total(price float64, qty int) float64 {
	return math.Round(price*float64(qty)*100) / 100
}
