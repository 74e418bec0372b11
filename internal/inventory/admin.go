package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"wave-ticketing/internal/models"
)

const legacyWaveName = "Legacy release"

type CategoryInput struct {
	Type  string  `json:"type"`
	Label string  `json:"label"`
	Price float64 `json:"price"`
	Seats int     `json:"seats"`
}

// CategoryPatch edits a category. Nil fields are left alone.
type CategoryPatch struct {
	Label *string  `json:"label"`
	Price *float64 `json:"price"`
	Seats *int     `json:"seats"`
}

type WaveInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	ReleaseDate *time.Time      `json:"releaseDate"`
	Categories  []CategoryInput `json:"categories"`
}

// WavePatch edits a wave. Nil fields are left alone.
type WavePatch struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	ReleaseDate *time.Time `json:"releaseDate"`
	IsActive    *bool      `json:"isActive"`
}

// LegacySeats is the flat seat/price body older clients send.
type LegacySeats struct {
	VIPSeats     int     `json:"vipSeats"`
	VIPPrice     float64 `json:"vipPrice"`
	FanPitSeats  int     `json:"fanPitSeats"`
	FanPitPrice  float64 `json:"fanPitPrice"`
	RegularSeats int     `json:"regularSeats"`
	RegularPrice float64 `json:"regularPrice"`
}

// Categories turns a flat body into category inputs, one per seat type
// that has seats.
func (l LegacySeats) Categories() []CategoryInput {
	var out []CategoryInput
	add := func(t models.SeatType, seats int, price float64) {
		if seats > 0 {
			out = append(out, CategoryInput{Type: string(t), Price: price, Seats: seats})
		}
	}
	add(models.SeatTypeVIP, l.VIPSeats, l.VIPPrice)
	add(models.SeatTypeFanPit, l.FanPitSeats, l.FanPitPrice)
	add(models.SeatTypeRegular, l.RegularSeats, l.RegularPrice)
	return out
}

// ValidateCategory checks a category input without mutating anything.
func ValidateCategory(in CategoryInput) (models.SeatType, error) {
	t, err := ParseSeatType(in.Type)
	if err != nil {
		return "", err
	}
	if in.Price < 0 {
		return "", fmt.Errorf("%w: price must not be negative", ErrInvalidCategory)
	}
	if in.Seats < 0 {
		return "", fmt.Errorf("%w: seats must not be negative", ErrInvalidCategory)
	}
	return t, nil
}

// AddWave appends a new active wave (with optional categories) to ev.
// An empty name becomes "Wave <n>".
func AddWave(ev *models.Event, in WaveInput, now time.Time) (*models.Wave, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = fmt.Sprintf("Wave %d", len(ev.Waves)+1)
	}

	w := &models.Wave{
		ID:          uuid.NewString(),
		EventID:     ev.ID,
		Position:    nextWavePosition(ev),
		Name:        name,
		Description: in.Description,
		ReleaseDate: in.ReleaseDate,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, ci := range in.Categories {
		if _, err := AddCategory(ev, w, ci, now); err != nil {
			return nil, err
		}
	}

	ev.Waves = append(ev.Waves, w)
	return w, nil
}

// AddCategory appends a fresh category to w with remaining = total.
func AddCategory(ev *models.Event, w *models.Wave, in CategoryInput, now time.Time) (*models.WaveCategory, error) {
	t, err := ValidateCategory(in)
	if err != nil {
		return nil, err
	}

	pos := 0
	for _, c := range w.Categories {
		if c.Position >= pos {
			pos = c.Position + 1
		}
	}

	c := &models.WaveCategory{
		ID:             uuid.NewString(),
		WaveID:         w.ID,
		EventID:        ev.ID,
		Position:       pos,
		Type:           t,
		Label:          strings.TrimSpace(in.Label),
		Price:          in.Price,
		TotalSeats:     in.Seats,
		RemainingSeats: in.Seats,
		UpdatedAt:      now,
	}
	w.Categories = append(w.Categories, c)
	return c, nil
}

// EditCategory applies p to c. A seat change sets remaining to the new
// total minus what is already sold and is refused when that would be
// negative, leaving c untouched.
func EditCategory(c *models.WaveCategory, p CategoryPatch, now time.Time) error {
	if p.Price != nil && *p.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidCategory)
	}
	if p.Seats != nil {
		if *p.Seats < 0 {
			return fmt.Errorf("%w: seats must not be negative", ErrInvalidCategory)
		}
		if *p.Seats < c.SoldSeats {
			return fmt.Errorf("%w: %d sold, %d requested", ErrSeatReductionBelowSold, c.SoldSeats, *p.Seats)
		}
	}

	if p.Label != nil {
		c.Label = strings.TrimSpace(*p.Label)
	}
	if p.Price != nil {
		c.Price = *p.Price
	}
	if p.Seats != nil {
		c.TotalSeats = *p.Seats
		c.RemainingSeats = *p.Seats - c.SoldSeats
	}
	c.UpdatedAt = now
	return nil
}

func EditWave(w *models.Wave, p WavePatch, now time.Time) {
	if p.Name != nil {
		if name := strings.TrimSpace(*p.Name); name != "" {
			w.Name = name
		}
	}
	if p.Description != nil {
		w.Description = *p.Description
	}
	if p.ReleaseDate != nil {
		w.ReleaseDate = p.ReleaseDate
	}
	if p.IsActive != nil {
		w.IsActive = *p.IsActive
	}
	w.UpdatedAt = now
}

// FoldLegacy moves the remaining flat counters of a wave-less event into
// a leading "Legacy release" wave so they keep allocation priority once
// the event switches to waves. Seats already sold from the flat counters
// are kept in LegacySoldSeats. It returns nil when there is nothing to
// fold.
func FoldLegacy(ev *models.Event, now time.Time) *models.Wave {
	if ev.HasWaves() {
		return nil
	}
	if sold := ev.TotalSeats - ev.VIPSeats - ev.FanPitSeats - ev.RegularSeats; sold > 0 {
		ev.LegacySoldSeats = sold
	}
	flat := LegacySeats{
		VIPSeats:     ev.VIPSeats,
		VIPPrice:     ev.VIPPrice,
		FanPitSeats:  ev.FanPitSeats,
		FanPitPrice:  ev.FanPitPrice,
		RegularSeats: ev.RegularSeats,
		RegularPrice: ev.RegularPrice,
	}
	cats := flat.Categories()
	if len(cats) == 0 {
		return nil
	}

	w, err := AddWave(ev, WaveInput{Name: legacyWaveName, Categories: cats}, now)
	if err != nil {
		// flat counters are never negative, so categories always validate
		return nil
	}
	return w
}

func nextWavePosition(ev *models.Event) int {
	pos := 0
	for _, w := range ev.Waves {
		if w.Position >= pos {
			pos = w.Position + 1
		}
	}
	return pos
}
