package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"wave-ticketing/internal/config"
	"wave-ticketing/internal/inventory"
	"wave-ticketing/internal/logger"
	"wave-ticketing/internal/models"
)

// InventoryStore is the event repository seen from the purchase flow.
type InventoryStore interface {
	inventory.CommitStore
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type DBLayer interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrdersByUser(ctx context.Context, userID string) ([]models.Order, error)
	ListOrders(ctx context.Context, eventID string) ([]models.Order, error)
}

type TicketIssuer interface {
	IssueTickets(ctx context.Context, order *models.Order) ([]models.Ticket, error)
	GetTicketsByOrder(ctx context.Context, orderID string) ([]models.Ticket, error)
}

// AvailabilityPublisher refreshes the availability read model after a
// committed change.
type AvailabilityPublisher interface {
	AvailabilityChanged(ctx context.Context, ev *models.Event)
}

type OrderNotifier interface {
	OrderCreated(ctx context.Context, order models.Order, ticketCodes []string)
}

type Guard interface {
	Acquire(ctx context.Context, userID, eventID, token string) (bool, error)
	Release(ctx context.Context, userID, eventID, token string) error
}

type OrderService struct {
	Inventory    InventoryStore
	DB           DBLayer
	Tickets      TicketIssuer
	Payments     PaymentGateway
	Availability AvailabilityPublisher
	Notifier     OrderNotifier
	Guard        Guard
	Config       config.PurchaseConfig
	logger       *logger.Logger
	now          func() time.Time
}

func NewOrderService(inv InventoryStore, db DBLayer, tickets TicketIssuer, cfg config.PurchaseConfig, log *logger.Logger) *OrderService {
	return &OrderService{
		Inventory: inv,
		DB:        db,
		Tickets:   tickets,
		Payments:  SandboxGateway{},
		Config:    cfg,
		logger:    log,
		now:       time.Now,
	}
}

// PlaceOrder runs the purchase flow: validate, select, then commit the seat
// decrement, the order and its tickets in one transaction. A lost race is
// retried from a fresh read up to Config.ConflictRetries times.
func (s *OrderService) PlaceOrder(ctx context.Context, userID string, req models.OrderRequest) (*models.OrderResponse, error) {
	if err := inventory.ValidateQuantity(req.Quantity, s.Config.MaxQuantity); err != nil {
		return nil, err
	}
	seatType, err := inventory.ParseSeatType(req.SeatType)
	if err != nil {
		return nil, err
	}
	eventID := strings.TrimSpace(req.EventID)
	if eventID == "" {
		return nil, inventory.ErrEventNotFound
	}

	if s.Guard != nil {
		token := uuid.NewString()
		ok, err := s.Guard.Acquire(ctx, userID, eventID, token)
		switch {
		case err != nil:
			s.logger.Warn("PURCHASE", fmt.Sprintf("Purchase guard unavailable for %s/%s: %v", userID, eventID, err))
		case !ok:
			return nil, ErrPurchaseInProgress
		default:
			defer func() {
				if err := s.Guard.Release(context.WithoutCancel(ctx), userID, eventID, token); err != nil {
					s.logger.Warn("PURCHASE", fmt.Sprintf("Failed to release purchase guard for %s/%s: %v", userID, eventID, err))
				}
			}()
		}
	}

	maxAttempts := 1 + s.Config.ConflictRetries
	for attempt := 1; ; attempt++ {
		res, err := s.attempt(ctx, userID, eventID, seatType, req.Quantity)
		if err == nil {
			res.resp.Attempts = attempt
			s.logger.LogPurchase("COMMITTED", eventID, fmt.Sprintf("order %s: %d x %s at %.2f (%s) after %d attempt(s)",
				res.order.OrderID, res.order.Quantity, seatType, res.order.PricePerTicket, waveLabel(res.order.WaveName), attempt))
			s.afterCommit(ctx, res)
			return res.resp, nil
		}
		if !errors.Is(err, inventory.ErrConcurrentConflict) || attempt >= maxAttempts {
			if errors.Is(err, inventory.ErrConcurrentConflict) {
				s.logger.LogPurchase("CONFLICT", eventID, fmt.Sprintf("%d x %s gave up after %d attempt(s)", req.Quantity, seatType, attempt))
			} else if inventory.Code(err) == inventory.CodeInternal {
				s.logger.Error("PURCHASE", fmt.Sprintf("Purchase on %s failed: %v", eventID, err))
			}
			return nil, err
		}
		s.logger.LogPurchase("RETRY", eventID, fmt.Sprintf("%d x %s lost a race on attempt %d", req.Quantity, seatType, attempt))
	}
}

type committed struct {
	event   *models.Event
	order   *models.Order
	tickets []models.Ticket
	resp    *models.OrderResponse
}

func (s *OrderService) attempt(ctx context.Context, userID, eventID string, seatType models.SeatType, qty int) (*committed, error) {
	ev, err := s.Inventory.LoadEventTree(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !ev.IsActive {
		return nil, inventory.ErrEventNotFound
	}

	inv := inventory.ForEvent(ev)
	alloc, err := inv.Select(seatType, qty)
	if err != nil {
		return nil, err
	}

	var out committed
	err = s.Inventory.WithTx(ctx, func(ctx context.Context) error {
		updated, err := inv.Commit(ctx, s.Inventory, alloc)
		if err != nil {
			return err
		}

		order := &models.Order{
			OrderID:        uuid.NewString(),
			UserID:         userID,
			EventID:        eventID,
			SeatType:       seatType,
			Quantity:       qty,
			PricePerTicket: alloc.PricePerTicket,
			TotalPrice:     alloc.TotalPrice,
			PaymentStatus:  models.PaymentStatusPending,
			WaveID:         alloc.WaveID,
			WaveName:       alloc.WaveName,
			CategoryID:     alloc.CategoryID,
			CreatedAt:      s.now(),
		}
		if err := s.Payments.Capture(ctx, order); err != nil {
			return fmt.Errorf("capture payment: %w", err)
		}
		if err := s.DB.CreateOrder(ctx, order); err != nil {
			return err
		}
		tickets, err := s.Tickets.IssueTickets(ctx, order)
		if err != nil {
			return fmt.Errorf("issue tickets: %w", err)
		}

		out = committed{event: updated, order: order, tickets: tickets}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out.resp = &models.OrderResponse{
		OrderID:        out.order.OrderID,
		EventID:        eventID,
		SeatType:       seatType,
		Quantity:       qty,
		PricePerTicket: out.order.PricePerTicket,
		TotalPrice:     out.order.TotalPrice,
		WaveName:       out.order.WaveName,
		PaymentRef:     out.order.PaymentRef,
		TicketIDs:      make([]string, 0, len(out.tickets)),
		TicketCodes:    make([]string, 0, len(out.tickets)),
	}
	for _, t := range out.tickets {
		out.resp.TicketIDs = append(out.resp.TicketIDs, t.TicketID)
		out.resp.TicketCodes = append(out.resp.TicketCodes, t.TicketCode)
	}
	return &out, nil
}

// afterCommit runs the best-effort side effects. Nothing here can undo the
// purchase.
func (s *OrderService) afterCommit(ctx context.Context, res *committed) {
	if s.Availability != nil {
		s.Availability.AvailabilityChanged(ctx, res.event)
	}
	if s.Notifier != nil {
		s.Notifier.OrderCreated(ctx, *res.order, res.resp.TicketCodes)
	}
}

func waveLabel(name *string) string {
	if name == nil {
		return "legacy"
	}
	return *name
}

// ---------------- QUERIES ----------------

// GetOrder returns the order with its tickets. Only the owner or an admin
// may read it.
func (s *OrderService) GetOrder(ctx context.Context, orderID, userID string, isAdmin bool) (*models.OrderWithTickets, error) {
	order, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID && !isAdmin {
		s.logger.LogSecurity("ORDER_ACCESS_DENIED", fmt.Sprintf("user %s requested order %s", userID, orderID))
		return nil, ErrForbidden
	}

	tickets, err := s.Tickets.GetTicketsByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &models.OrderWithTickets{Order: *order, Tickets: tickets}, nil
}

func (s *OrderService) GetOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	return s.DB.GetOrdersByUser(ctx, userID)
}

func (s *OrderService) ListOrders(ctx context.Context, eventID string) ([]models.Order, error) {
	return s.DB.ListOrders(ctx, eventID)
}
