package analytics

import (
	"context"
	"fmt"
	"sort"

	"wave-ticketing/internal/logger"
	"wave-ticketing/internal/models"
)

// EventLoader reads the live wave tree of an event.
type EventLoader interface {
	LoadEventTree(ctx context.Context, id string) (*models.Event, error)
}

type Service struct {
	DB     *DB
	Events EventLoader
	Logger *logger.Logger
}

func NewService(db *DB, events EventLoader, log *logger.Logger) *Service {
	return &Service{DB: db, Events: events, Logger: log}
}

// EventAnalytics is the admin sales report for one event.
type EventAnalytics struct {
	EventID          string              `json:"eventId"`
	EventName        string              `json:"eventName"`
	TotalRevenue     float64             `json:"totalRevenue"`
	TotalTicketsSold int                 `json:"totalTicketsSold"`
	TotalOrders      int                 `json:"totalOrders"`
	SoldCount        int                 `json:"soldCount"`
	IsSoldOut        bool                `json:"isSoldOut"`
	Tickets          TicketStatusMetrics `json:"tickets"`
	SalesByWave      []WaveSalesMetrics  `json:"salesByWave"`
	DailySales       []DailySalesMetrics `json:"dailySales"`
	Inventory        []WaveInventory     `json:"inventory"`
}

// WaveSalesMetrics is what one wave sold of one seat type. WaveName is nil
// for sales from the flat legacy counters.
type WaveSalesMetrics struct {
	WaveID      *string         `json:"waveId"`
	WaveName    *string         `json:"waveName"`
	SeatType    models.SeatType `json:"seatType"`
	Orders      int             `json:"orders"`
	TicketsSold int             `json:"ticketsSold"`
	Revenue     float64         `json:"revenue"`
}

// DailySalesMetrics contains metrics for a single UTC day.
type DailySalesMetrics struct {
	Date        string  `json:"date"`
	Revenue     float64 `json:"revenue"`
	TicketsSold int     `json:"ticketsSold"`
	Orders      int     `json:"orders"`
}

type TicketStatusMetrics struct {
	Unused    int `json:"unused"`
	Used      int `json:"used"`
	Cancelled int `json:"cancelled"`
}

// WaveInventory is the live seat state of one wave.
type WaveInventory struct {
	WaveID     string              `json:"waveId"`
	Name       string              `json:"name"`
	Position   int                 `json:"position"`
	IsActive   bool                `json:"isActive"`
	Categories []CategoryInventory `json:"categories"`
}

type CategoryInventory struct {
	CategoryID     string          `json:"categoryId"`
	Type           models.SeatType `json:"type"`
	Label          string          `json:"label"`
	Price          float64         `json:"price"`
	TotalSeats     int             `json:"totalSeats"`
	SoldSeats      int             `json:"soldSeats"`
	RemainingSeats int             `json:"remainingSeats"`
}

// GetEventAnalytics builds the sales report for one event. status filters
// orders by payment status when set.
func (s *Service) GetEventAnalytics(ctx context.Context, eventID string, status string) (*EventAnalytics, error) {
	ev, err := s.Events.LoadEventTree(ctx, eventID)
	if err != nil {
		return nil, err
	}

	ids := []string{eventID}
	orders, err := s.DB.GetOrdersByEventIDs(ctx, ids, status)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	waves, err := s.DB.GetSalesByWave(ctx, ids, status)
	if err != nil {
		return nil, fmt.Errorf("load wave sales: %w", err)
	}
	counts, err := s.DB.GetTicketStatusCounts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load ticket counts: %w", err)
	}

	out := &EventAnalytics{
		EventID:     ev.ID,
		EventName:   ev.Name,
		TotalOrders: len(orders),
		SoldCount:   ev.SoldCount,
		IsSoldOut:   ev.IsSoldOut,
		Tickets:     ticketMetrics(counts),
		SalesByWave: waveMetrics(waves, ev),
		DailySales:  dailyMetrics(orders),
		Inventory:   inventoryOf(ev),
	}
	for _, o := range orders {
		out.TotalRevenue += o.TotalPrice
		out.TotalTicketsSold += o.Quantity
	}

	s.Logger.Debug("ANALYTICS", fmt.Sprintf("Event %s: %d orders, %d tickets, revenue %.2f",
		eventID, out.TotalOrders, out.TotalTicketsSold, out.TotalRevenue))
	return out, nil
}

func ticketMetrics(rows []TicketStatusData) TicketStatusMetrics {
	var m TicketStatusMetrics
	for _, r := range rows {
		switch r.Status {
		case models.TicketStatusUnused:
			m.Unused += r.Count
		case models.TicketStatusUsed:
			m.Used += r.Count
		case models.TicketStatusCancelled:
			m.Cancelled += r.Count
		}
	}
	return m
}

// waveMetrics orders the groups by wave position, legacy sales first, then
// by seat type.
func waveMetrics(rows []WaveSalesData, ev *models.Event) []WaveSalesMetrics {
	position := map[string]int{}
	for _, w := range ev.Waves {
		position[w.ID] = w.Position
	}
	rank := func(r WaveSalesData) int {
		if r.WaveID == nil {
			return -1
		}
		if p, ok := position[*r.WaveID]; ok {
			return p
		}
		return len(position)
	}
	seatRank := map[models.SeatType]int{}
	for i, t := range models.SeatTypes {
		seatRank[t] = i
	}

	sort.SliceStable(rows, func(i, j int) bool {
		ri, rj := rank(rows[i]), rank(rows[j])
		if ri != rj {
			return ri < rj
		}
		return seatRank[rows[i].SeatType] < seatRank[rows[j].SeatType]
	})

	out := make([]WaveSalesMetrics, 0, len(rows))
	for _, r := range rows {
		out = append(out, WaveSalesMetrics{
			WaveID:      r.WaveID,
			WaveName:    r.WaveName,
			SeatType:    r.SeatType,
			Orders:      r.Orders,
			TicketsSold: r.TicketsSold,
			Revenue:     r.Revenue,
		})
	}
	return out
}

// dailyMetrics buckets orders by UTC calendar day. orders must be sorted by
// creation time.
func dailyMetrics(orders []models.Order) []DailySalesMetrics {
	out := []DailySalesMetrics{}
	for _, o := range orders {
		day := o.CreatedAt.UTC().Format("2006-01-02")
		if n := len(out); n == 0 || out[n-1].Date != day {
			out = append(out, DailySalesMetrics{Date: day})
		}
		d := &out[len(out)-1]
		d.Revenue += o.TotalPrice
		d.TicketsSold += o.Quantity
		d.Orders++
	}
	return out
}

func inventoryOf(ev *models.Event) []WaveInventory {
	out := make([]WaveInventory, 0, len(ev.Waves))
	for _, w := range ev.Waves {
		wi := WaveInventory{
			WaveID:     w.ID,
			Name:       w.Name,
			Position:   w.Position,
			IsActive:   w.IsActive,
			Categories: make([]CategoryInventory, 0, len(w.Categories)),
		}
		for _, c := range w.Categories {
			wi.Categories = append(wi.Categories, CategoryInventory{
				CategoryID:     c.ID,
				Type:           c.Type,
				Label:          c.Label,
				Price:          c.Price,
				TotalSeats:     c.TotalSeats,
				SoldSeats:      c.SoldSeats,
				RemainingSeats: c.RemainingSeats,
			})
		}
		out = append(out, wi)
	}
	return out
}
