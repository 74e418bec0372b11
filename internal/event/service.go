package event

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"wave-ticketing/internal/event/db"
	"wave-ticketing/internal/inventory"
	"wave-ticketing/internal/logger"
	"wave-ticketing/internal/models"
)

type Cache interface {
	Get(ctx context.Context, eventID string) (*models.AvailabilitySnapshot, bool, error)
	Set(ctx context.Context, snap models.AvailabilitySnapshot) error
	Invalidate(ctx context.Context, eventID string) error
}

// InventoryNotifier fans availability changes out to other instances and
// stream subscribers. Delivery is best-effort.
type InventoryNotifier interface {
	InventoryUpdated(ctx context.Context, snap models.AvailabilitySnapshot)
}

type Service struct {
	DB       *db.DB
	Cache    Cache
	Notifier InventoryNotifier
	Logger   *logger.Logger
	Now      func() time.Time
}

func NewService(store *db.DB, cache Cache, notifier InventoryNotifier, log *logger.Logger) *Service {
	return &Service{
		DB:       store,
		Cache:    cache,
		Notifier: notifier,
		Logger:   log,
		Now:      time.Now,
	}
}

type CreateEventInput struct {
	Name           string                    `json:"name"`
	Date           time.Time                 `json:"date"`
	Venue          string                    `json:"venue"`
	Description    string                    `json:"description"`
	Image          string                    `json:"image"`
	ImagePositionX *float64                  `json:"imagePositionX"`
	ImagePositionY *float64                  `json:"imagePositionY"`
	ImageScale     *float64                  `json:"imageScale"`
	ImageOffsetX   *float64                  `json:"imageOffsetX"`
	ImageOffsetY   *float64                  `json:"imageOffsetY"`
	Categories     []inventory.CategoryInput `json:"categories"`
	inventory.LegacySeats
}

// EventInfoPatch edits descriptive fields only. Nil fields are left alone.
type EventInfoPatch struct {
	Name           *string    `json:"name"`
	Date           *time.Time `json:"date"`
	Venue          *string    `json:"venue"`
	Description    *string    `json:"description"`
	Image          *string    `json:"image"`
	ImagePositionX *float64   `json:"imagePositionX"`
	ImagePositionY *float64   `json:"imagePositionY"`
	ImageScale     *float64   `json:"imageScale"`
	ImageOffsetX   *float64   `json:"imageOffsetX"`
	ImageOffsetY   *float64   `json:"imageOffsetY"`
}

func floatOr(p *float64, def float64) float64 {
	if p != nil {
		return *p
	}
	return def
}

// CreateEvent stores a new event whose inventory starts as "Wave 1". A flat
// legacy body is normalised into Wave 1 categories.
func (s *Service) CreateEvent(ctx context.Context, in CreateEventInput, createdBy string) (*models.Event, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Venue) == "" || in.Date.IsZero() {
		return nil, fmt.Errorf("%w: name, date and venue are required", inventory.ErrInvalidEvent)
	}

	cats := in.Categories
	if len(cats) == 0 {
		cats = in.LegacySeats.Categories()
	}

	now := s.Now()
	ev := &models.Event{
		ID:             uuid.NewString(),
		Name:           strings.TrimSpace(in.Name),
		Date:           in.Date,
		Venue:          strings.TrimSpace(in.Venue),
		Description:    in.Description,
		Image:          in.Image,
		ImagePositionX: floatOr(in.ImagePositionX, 50),
		ImagePositionY: floatOr(in.ImagePositionY, 50),
		ImageScale:     floatOr(in.ImageScale, 1),
		ImageOffsetX:   floatOr(in.ImageOffsetX, 0),
		ImageOffsetY:   floatOr(in.ImageOffsetY, 0),
		IsActive:       true,
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if _, err := inventory.AddWave(ev, inventory.WaveInput{
		Name:        "Wave 1",
		Description: "Initial release",
		Categories:  cats,
	}, now); err != nil {
		return nil, err
	}
	inventory.Refresh(ev)

	if err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		return s.DB.InsertEvent(ctx, ev)
	}); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	s.Logger.LogInventory("CREATE", ev.ID, fmt.Sprintf("%q with %d categories, %d seats", ev.Name, len(cats), ev.TotalSeats))
	return ev, nil
}

func (s *Service) ListEvents(ctx context.Context, includeInactive bool) ([]*models.Event, error) {
	return s.DB.ListEvents(ctx, includeInactive)
}

// GetEvent returns the event tree. Inactive events are hidden unless
// includeInactive is set.
func (s *Service) GetEvent(ctx context.Context, id string, includeInactive bool) (*models.Event, error) {
	ev, err := s.DB.LoadEventTree(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ev.IsActive && !includeInactive {
		return nil, inventory.ErrEventNotFound
	}
	return ev, nil
}

func (s *Service) UpdateInfo(ctx context.Context, id string, p EventInfoPatch) (*models.Event, error) {
	ev, err := s.DB.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}

	var cols []string
	set := func(col string, apply func()) {
		apply()
		cols = append(cols, col)
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", inventory.ErrInvalidEvent)
		}
		set("name", func() { ev.Name = name })
	}
	if p.Date != nil {
		set("date", func() { ev.Date = *p.Date })
	}
	if p.Venue != nil {
		set("venue", func() { ev.Venue = strings.TrimSpace(*p.Venue) })
	}
	if p.Description != nil {
		set("description", func() { ev.Description = *p.Description })
	}
	if p.Image != nil {
		set("image", func() { ev.Image = *p.Image })
	}
	if p.ImagePositionX != nil {
		set("image_position_x", func() { ev.ImagePositionX = *p.ImagePositionX })
	}
	if p.ImagePositionY != nil {
		set("image_position_y", func() { ev.ImagePositionY = *p.ImagePositionY })
	}
	if p.ImageScale != nil {
		set("image_scale", func() { ev.ImageScale = *p.ImageScale })
	}
	if p.ImageOffsetX != nil {
		set("image_offset_x", func() { ev.ImageOffsetX = *p.ImageOffsetX })
	}
	if p.ImageOffsetY != nil {
		set("image_offset_y", func() { ev.ImageOffsetY = *p.ImageOffsetY })
	}
	if len(cols) == 0 {
		return s.DB.LoadEventTree(ctx, id)
	}

	ev.UpdatedAt = s.Now()
	if err := s.DB.UpdateEventInfo(ctx, ev, cols...); err != nil {
		return nil, fmt.Errorf("update event info: %w", err)
	}
	return s.DB.LoadEventTree(ctx, id)
}

// Deactivate hides the event and stops sales. Existing orders and tickets
// are untouched.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	ok, err := s.DB.DeactivateEvent(ctx, id)
	if err != nil {
		return fmt.Errorf("deactivate event: %w", err)
	}
	if !ok {
		return inventory.ErrEventNotFound
	}
	s.Logger.LogInventory("DEACTIVATE", id, "event deactivated")

	if ev, err := s.DB.GetEvent(ctx, id); err == nil {
		s.AvailabilityChanged(ctx, ev)
	}
	return nil
}

// AddWave appends a wave. The first wave added to a legacy event is
// preceded by a "Legacy release" wave holding the unsold flat counters.
func (s *Service) AddWave(ctx context.Context, eventID string, in inventory.WaveInput) (*models.Event, error) {
	return s.mutate(ctx, eventID, "ADD_WAVE", func(ctx context.Context, ev *models.Event) error {
		now := s.Now()
		if fold := inventory.FoldLegacy(ev, now); fold != nil {
			if err := s.DB.InsertWave(ctx, fold); err != nil {
				return err
			}
		}
		w, err := inventory.AddWave(ev, in, now)
		if err != nil {
			return err
		}
		return s.DB.InsertWave(ctx, w)
	})
}

func (s *Service) UpdateWave(ctx context.Context, eventID, waveID string, p inventory.WavePatch) (*models.Event, error) {
	return s.mutate(ctx, eventID, "UPDATE_WAVE", func(ctx context.Context, ev *models.Event) error {
		w := ev.FindWave(waveID)
		if w == nil {
			return inventory.ErrWaveNotFound
		}
		inventory.EditWave(w, p, s.Now())
		return s.DB.UpdateWave(ctx, w)
	})
}

func (s *Service) AddCategory(ctx context.Context, eventID, waveID string, in inventory.CategoryInput) (*models.Event, error) {
	return s.mutate(ctx, eventID, "ADD_CATEGORY", func(ctx context.Context, ev *models.Event) error {
		w := ev.FindWave(waveID)
		if w == nil {
			return inventory.ErrWaveNotFound
		}
		c, err := inventory.AddCategory(ev, w, in, s.Now())
		if err != nil {
			return err
		}
		return s.DB.InsertCategory(ctx, c)
	})
}

func (s *Service) UpdateCategory(ctx context.Context, eventID, waveID, categoryID string, p inventory.CategoryPatch) (*models.Event, error) {
	return s.mutate(ctx, eventID, "UPDATE_CATEGORY", func(ctx context.Context, ev *models.Event) error {
		w := ev.FindWave(waveID)
		if w == nil {
			return inventory.ErrWaveNotFound
		}
		c := w.FindCategory(categoryID)
		if c == nil {
			return inventory.ErrCategoryNotFound
		}
		if err := inventory.EditCategory(c, p, s.Now()); err != nil {
			return err
		}
		return s.DB.UpdateCategory(ctx, c)
	})
}

// mutate runs fn against the locked event tree and recomputes the
// aggregates in the same transaction.
func (s *Service) mutate(ctx context.Context, eventID, action string, fn func(ctx context.Context, ev *models.Event) error) (*models.Event, error) {
	var out *models.Event
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		ok, err := s.DB.TouchEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if !ok {
			return inventory.ErrEventNotFound
		}

		ev, err := s.DB.LoadEventTree(ctx, eventID)
		if err != nil {
			return err
		}
		if err := fn(ctx, ev); err != nil {
			return err
		}
		if inventory.Refresh(ev) {
			if err := s.DB.SaveAggregates(ctx, ev); err != nil {
				return fmt.Errorf("save aggregates: %w", err)
			}
		}
		out = ev
		return nil
	})
	if err != nil {
		s.Logger.Warn("INVENTORY", fmt.Sprintf("[%s] %s failed: %v", action, eventID, err))
		return nil, err
	}

	s.Logger.LogInventory(action, eventID, fmt.Sprintf("vip=%d fanPit=%d regular=%d total=%d soldOut=%t",
		out.VIPSeats, out.FanPitSeats, out.RegularSeats, out.TotalSeats, out.IsSoldOut))
	s.AvailabilityChanged(ctx, out)
	return out, nil
}

// Availability serves the aggregate snapshot of an active event,
// read-through the cache.
func (s *Service) Availability(ctx context.Context, eventID string) (*models.AvailabilitySnapshot, error) {
	if s.Cache != nil {
		snap, ok, err := s.Cache.Get(ctx, eventID)
		if err != nil {
			s.Logger.Warn("CACHE", fmt.Sprintf("availability lookup for %s failed: %v", eventID, err))
		} else if ok {
			if !snap.IsActive {
				return nil, inventory.ErrEventNotFound
			}
			return snap, nil
		}
	}

	ev, err := s.DB.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !ev.IsActive {
		return nil, inventory.ErrEventNotFound
	}
	snap := ev.Snapshot()

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, snap); err != nil {
			s.Logger.Warn("CACHE", fmt.Sprintf("availability store for %s failed: %v", eventID, err))
		}
	}
	return &snap, nil
}

// AvailabilityChanged drops the cached snapshot and notifies listeners.
// Called after every committed inventory change.
func (s *Service) AvailabilityChanged(ctx context.Context, ev *models.Event) {
	if s.Cache != nil {
		if err := s.Cache.Invalidate(ctx, ev.ID); err != nil {
			s.Logger.Warn("CACHE", fmt.Sprintf("invalidate %s failed: %v", ev.ID, err))
		}
	}
	if s.Notifier != nil {
		s.Notifier.InventoryUpdated(ctx, ev.Snapshot())
	}
}
