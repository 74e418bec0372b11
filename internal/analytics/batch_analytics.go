package analytics

import (
	"context"
	"fmt"

	"wave-ticketing/internal/models"
)

// BatchEventAnalytics represents aggregated analytics data for multiple events
type BatchEventAnalytics struct {
	EventIDs         []string               `json:"eventIds"`
	TotalRevenue     float64                `json:"totalRevenue"`
	TotalTicketsSold int                    `json:"totalTicketsSold"`
	TotalOrders      int                    `json:"totalOrders"`
	Tickets          TicketStatusMetrics    `json:"tickets"`
	SalesBySeatType  []SeatTypeSalesMetrics `json:"salesBySeatType"`
	DailySales       []DailySalesMetrics    `json:"dailySales"`
}

type SeatTypeSalesMetrics struct {
	SeatType    models.SeatType `json:"seatType"`
	TicketsSold int             `json:"ticketsSold"`
	Revenue     float64         `json:"revenue"`
}

// GetBatchEventAnalytics sums the sales of several events.
func (s *Service) GetBatchEventAnalytics(ctx context.Context, eventIDs []string, status string) (*BatchEventAnalytics, error) {
	result := &BatchEventAnalytics{
		EventIDs:        eventIDs,
		SalesBySeatType: []SeatTypeSalesMetrics{},
		DailySales:      []DailySalesMetrics{},
	}
	if len(eventIDs) == 0 {
		result.EventIDs = []string{}
		return result, nil
	}

	orders, err := s.DB.GetOrdersByEventIDs(ctx, eventIDs, status)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	counts, err := s.DB.GetTicketStatusCounts(ctx, eventIDs)
	if err != nil {
		return nil, fmt.Errorf("load ticket counts: %w", err)
	}

	bySeat := map[models.SeatType]*SeatTypeSalesMetrics{}
	for _, o := range orders {
		result.TotalRevenue += o.TotalPrice
		result.TotalTicketsSold += o.Quantity
		m, ok := bySeat[o.SeatType]
		if !ok {
			m = &SeatTypeSalesMetrics{SeatType: o.SeatType}
			bySeat[o.SeatType] = m
		}
		m.TicketsSold += o.Quantity
		m.Revenue += o.TotalPrice
	}
	for _, t := range models.SeatTypes {
		if m, ok := bySeat[t]; ok {
			result.SalesBySeatType = append(result.SalesBySeatType, *m)
		}
	}

	result.TotalOrders = len(orders)
	result.Tickets = ticketMetrics(counts)
	result.DailySales = dailyMetrics(orders)
	return result, nil
}

// BatchEventAnalyticsMap represents analytics data for individual events in a map
type BatchEventAnalyticsMap struct {
	EventAnalytics map[string]*EventAnalytics `json:"eventAnalytics"`
}

// GetBatchEventAnalyticsMap returns the full report of each event. Events
// that fail to load are logged and left out.
func (s *Service) GetBatchEventAnalyticsMap(ctx context.Context, eventIDs []string, status string) (*BatchEventAnalyticsMap, error) {
	result := &BatchEventAnalyticsMap{
		EventAnalytics: make(map[string]*EventAnalytics),
	}

	for _, eventID := range eventIDs {
		analytics, err := s.GetEventAnalytics(ctx, eventID, status)
		if err != nil {
			s.Logger.Warn("ANALYTICS", fmt.Sprintf("Skipping event %s in batch: %v", eventID, err))
			continue
		}
		result.EventAnalytics[eventID] = analytics
	}
	return result, nil
}
