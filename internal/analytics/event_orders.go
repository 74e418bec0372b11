package analytics

import (
	"context"
	"strings"

	"wave-ticketing/internal/models"
)

// OrderSortField defines the valid fields for sorting orders
type OrderSortField string

const (
	OrderSortByTotal     OrderSortField = "total_price"
	OrderSortByQuantity  OrderSortField = "quantity"
	OrderSortByCreatedAt OrderSortField = "created_at"
)

// EventOrderOptions filters, sorts and pages the order listing.
type EventOrderOptions struct {
	Status   string
	SeatType string
	WaveID   string
	SortBy   string
	SortDesc bool
	Limit    int
	Offset   int
}

// GetEventOrders returns the orders of an event with their tickets. QR
// images are left out of the listing.
func (s *Service) GetEventOrders(ctx context.Context, eventID string, options EventOrderOptions) ([]models.OrderWithTickets, error) {
	if _, err := s.Events.LoadEventTree(ctx, eventID); err != nil {
		return nil, err
	}

	q := s.DB.Bun.NewSelect().
		Model((*models.Order)(nil)).
		Where("event_id = ?", eventID)

	if options.Status != "" {
		q = q.Where("payment_status = ?", options.Status)
	}
	if options.SeatType != "" {
		q = q.Where("seat_type = ?", options.SeatType)
	}
	if options.WaveID != "" {
		q = q.Where("wave_id = ?", options.WaveID)
	}

	direction := "ASC"
	if options.SortDesc {
		direction = "DESC"
	}
	switch OrderSortField(strings.ToLower(options.SortBy)) {
	case OrderSortByTotal:
		q = q.Order("total_price " + direction)
	case OrderSortByQuantity:
		q = q.Order("quantity " + direction)
	case OrderSortByCreatedAt:
		q = q.Order("created_at " + direction)
	default:
		q = q.Order("created_at DESC")
	}

	if options.Limit > 0 {
		q = q.Limit(options.Limit)
	}
	if options.Offset > 0 {
		q = q.Offset(options.Offset)
	}

	var orders []models.Order
	if err := q.Scan(ctx, &orders); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return []models.OrderWithTickets{}, nil
	}

	orderIDs := make([]string, len(orders))
	for i, order := range orders {
		orderIDs[i] = order.OrderID
	}
	tickets, err := s.DB.GetTicketsByOrderIDs(ctx, orderIDs)
	if err != nil {
		return nil, err
	}

	byOrder := make(map[string][]models.Ticket)
	for _, t := range tickets {
		byOrder[t.OrderID] = append(byOrder[t.OrderID], t)
	}

	result := make([]models.OrderWithTickets, len(orders))
	for i, order := range orders {
		ts := byOrder[order.OrderID]
		if ts == nil {
			ts = []models.Ticket{}
		}
		result[i] = models.OrderWithTickets{Order: order, Tickets: ts}
	}
	return result, nil
}
