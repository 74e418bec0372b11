package models

import (
	"time"

	"github.com/uptrace/bun"
)

// SeatType identifies the seat pool a category sells.
type SeatType string

const (
	SeatTypeVIP     SeatType = "vip"
	SeatTypeFanPit  SeatType = "fanPit"
	SeatTypeRegular SeatType = "regular"
)

// SeatTypes lists every seat type in display order.
var SeatTypes = []SeatType{SeatTypeVIP, SeatTypeFanPit, SeatTypeRegular}

// Event is the sole shared mutable inventory document. Waves and their
// categories are owned by the event and only addressed through it.
type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID          string    `bun:"id,pk" json:"id"`
	Name        string    `bun:"name,notnull" json:"name"`
	Date        time.Time `bun:"date,notnull" json:"date"`
	Venue       string    `bun:"venue,notnull" json:"venue"`
	Description string    `bun:"description" json:"description"`
	Image       string    `bun:"image" json:"image"`

	ImagePositionX float64 `bun:"image_position_x" json:"imagePositionX"`
	ImagePositionY float64 `bun:"image_position_y" json:"imagePositionY"`
	ImageScale     float64 `bun:"image_scale" json:"imageScale"`
	ImageOffsetX   float64 `bun:"image_offset_x" json:"imageOffsetX"`
	ImageOffsetY   float64 `bun:"image_offset_y" json:"imageOffsetY"`

	// Aggregates. For wave events these are derived from Waves; for legacy
	// events (no waves) the seat counters and prices are the inventory.
	VIPSeats     int     `bun:"vip_seats,notnull" json:"vipSeats"`
	FanPitSeats  int     `bun:"fan_pit_seats,notnull" json:"fanPitSeats"`
	RegularSeats int     `bun:"regular_seats,notnull" json:"regularSeats"`
	TotalSeats   int     `bun:"total_seats,notnull" json:"totalSeats"`
	SoldCount    int     `bun:"sold_count,notnull" json:"soldCount"`
	VIPPrice     float64 `bun:"vip_price,notnull" json:"vipPrice"`
	FanPitPrice  float64 `bun:"fan_pit_price,notnull" json:"fanPitPrice"`
	RegularPrice float64 `bun:"regular_price,notnull" json:"regularPrice"`

	// LegacySoldSeats keeps the seats a legacy event sold before its flat
	// counters were folded into waves, so TotalSeats never shrinks.
	LegacySoldSeats int `bun:"legacy_sold_seats,notnull" json:"-"`

	IsSoldOut bool `bun:"is_sold_out,notnull" json:"isSoldOut"`
	IsActive  bool `bun:"is_active,notnull" json:"isActive"`

	CreatedBy string    `bun:"created_by" json:"createdBy"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updatedAt"`

	Waves []*Wave `bun:"rel:has-many,join:id=event_id" json:"waves"`
}

// HasWaves reports whether the event uses wave-based inventory.
func (e *Event) HasWaves() bool {
	return len(e.Waves) > 0
}

// SeatsFor returns the flat seat counter for a seat type.
func (e *Event) SeatsFor(t SeatType) int {
	switch t {
	case SeatTypeVIP:
		return e.VIPSeats
	case SeatTypeFanPit:
		return e.FanPitSeats
	case SeatTypeRegular:
		return e.RegularSeats
	}
	return 0
}

// PriceFor returns the flat (or snapshot) price for a seat type.
func (e *Event) PriceFor(t SeatType) float64 {
	switch t {
	case SeatTypeVIP:
		return e.VIPPrice
	case SeatTypeFanPit:
		return e.FanPitPrice
	case SeatTypeRegular:
		return e.RegularPrice
	}
	return 0
}

// FindWave returns the wave with the given id, or nil.
func (e *Event) FindWave(id string) *Wave {
	for _, w := range e.Waves {
		if w.ID == id {
			return w
		}
	}
	return nil
}

// Wave is an ordered release batch of categories.
type Wave struct {
	bun.BaseModel `bun:"table:waves"`

	ID          string     `bun:"id,pk" json:"id"`
	EventID     string     `bun:"event_id,notnull" json:"eventId"`
	Position    int        `bun:"position,notnull" json:"position"`
	Name        string     `bun:"name,notnull" json:"name"`
	Description string     `bun:"description" json:"description"`
	ReleaseDate *time.Time `bun:"release_date,nullzero" json:"releaseDate,omitempty"`
	IsActive    bool       `bun:"is_active,notnull" json:"isActive"`
	CreatedAt   time.Time  `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull" json:"updatedAt"`

	Categories []*WaveCategory `bun:"rel:has-many,join:id=wave_id" json:"categories"`
}

// FindCategory returns the category with the given id, or nil.
func (w *Wave) FindCategory(id string) *WaveCategory {
	for _, c := range w.Categories {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// WaveCategory is a priced, countable seat pool of one type within a wave.
type WaveCategory struct {
	bun.BaseModel `bun:"table:wave_categories"`

	ID             string    `bun:"id,pk" json:"id"`
	WaveID         string    `bun:"wave_id,notnull" json:"waveId"`
	EventID        string    `bun:"event_id,notnull" json:"eventId"`
	Position       int       `bun:"position,notnull" json:"position"`
	Type           SeatType  `bun:"type,notnull" json:"type"`
	Label          string    `bun:"label" json:"label"`
	Price          float64   `bun:"price,notnull" json:"price"`
	TotalSeats     int       `bun:"total_seats,notnull" json:"totalSeats"`
	RemainingSeats int       `bun:"remaining_seats,notnull" json:"remainingSeats"`
	SoldSeats      int       `bun:"sold_seats,notnull" json:"soldSeats"`
	UpdatedAt      time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

// AvailabilitySnapshot is the public read model of an event's inventory.
type AvailabilitySnapshot struct {
	EventID      string    `json:"eventId"`
	VIPSeats     int       `json:"vipSeats"`
	FanPitSeats  int       `json:"fanPitSeats"`
	RegularSeats int       `json:"regularSeats"`
	VIPPrice     float64   `json:"vipPrice"`
	FanPitPrice  float64   `json:"fanPitPrice"`
	RegularPrice float64   `json:"regularPrice"`
	SoldCount    int       `json:"soldCount"`
	IsSoldOut    bool      `json:"isSoldOut"`
	IsActive     bool      `json:"isActive"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Snapshot builds the availability read model from the stored aggregates.
func (e *Event) Snapshot() AvailabilitySnapshot {
	return AvailabilitySnapshot{
		EventID:      e.ID,
		VIPSeats:     e.VIPSeats,
		FanPitSeats:  e.FanPitSeats,
		RegularSeats: e.RegularSeats,
		VIPPrice:     e.VIPPrice,
		FanPitPrice:  e.FanPitPrice,
		RegularPrice: e.RegularPrice,
		SoldCount:    e.SoldCount,
		IsSoldOut:    e.IsSoldOut,
		IsActive:     e.IsActive,
		UpdatedAt:    e.UpdatedAt,
	}
}
