package inventory

import "wave-ticketing/internal/models"

// Aggregates is the derived event-level view of a wave tree.
type Aggregates struct {
	VIPSeats     int
	FanPitSeats  int
	RegularSeats int
	VIPPrice     float64
	FanPitPrice  float64
	RegularPrice float64
	TotalSeats   int
	IsSoldOut    bool
}

// Recompute derives the aggregates of a wave event. Seat sums and price
// snapshots only look at active waves; TotalSeats counts every category
// plus the seats sold before a legacy event switched to waves.
// A seat type with no positive active price keeps the price currently
// stored on ev.
func Recompute(ev *models.Event) Aggregates {
	agg := Aggregates{
		VIPPrice:     ev.VIPPrice,
		FanPitPrice:  ev.FanPitPrice,
		RegularPrice: ev.RegularPrice,
		TotalSeats:   ev.LegacySoldSeats,
	}

	for _, w := range ev.Waves {
		for _, c := range w.Categories {
			agg.TotalSeats += c.TotalSeats
			if !w.IsActive {
				continue
			}
			switch c.Type {
			case models.SeatTypeVIP:
				agg.VIPSeats += c.RemainingSeats
				if c.Price > 0 {
					agg.VIPPrice = c.Price
				}
			case models.SeatTypeFanPit:
				agg.FanPitSeats += c.RemainingSeats
				if c.Price > 0 {
					agg.FanPitPrice = c.Price
				}
			case models.SeatTypeRegular:
				agg.RegularSeats += c.RemainingSeats
				if c.Price > 0 {
					agg.RegularPrice = c.Price
				}
			}
		}
	}

	agg.IsSoldOut = agg.VIPSeats == 0 && agg.FanPitSeats == 0 && agg.RegularSeats == 0
	return agg
}

// ApplyTo copies the aggregates onto ev.
func (a Aggregates) ApplyTo(ev *models.Event) {
	ev.VIPSeats = a.VIPSeats
	ev.FanPitSeats = a.FanPitSeats
	ev.RegularSeats = a.RegularSeats
	ev.VIPPrice = a.VIPPrice
	ev.FanPitPrice = a.FanPitPrice
	ev.RegularPrice = a.RegularPrice
	ev.TotalSeats = a.TotalSeats
	ev.IsSoldOut = a.IsSoldOut
}

// Refresh recomputes and applies the aggregates of a wave event. Legacy
// events are left untouched and Refresh reports false.
func Refresh(ev *models.Event) bool {
	if !ev.HasWaves() {
		return false
	}
	Recompute(ev).ApplyTo(ev)
	return true
}
