package tickets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"wave-ticketing/internal/logger"
	"wave-ticketing/internal/models"
	ticketdb "wave-ticketing/internal/tickets/db"
	qr "wave-ticketing/internal/tickets/qr_genrator"
	"wave-ticketing/internal/utils"
)

var (
	ErrTicketNotFound      = ticketdb.ErrTicketNotFound
	ErrTicketAlreadyUsed   = errors.New("ticket already used")
	ErrTicketCancelled     = errors.New("ticket has been cancelled")
	ErrInvalidQRToken      = qr.ErrInvalidToken
	ErrMissingTicketRef    = errors.New("ticketCode or qrToken is required")
	ErrTicketTokenMismatch = errors.New("qr token does not belong to this ticket")
	ErrTicketAlreadyVoided = errors.New("ticket already cancelled")
)

// Code maps a ticket error to its external error code.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrTicketNotFound):
		return "TICKET_NOT_FOUND"
	case errors.Is(err, ErrTicketAlreadyUsed):
		return "TICKET_ALREADY_USED"
	case errors.Is(err, ErrTicketCancelled), errors.Is(err, ErrTicketAlreadyVoided):
		return "TICKET_CANCELLED"
	case errors.Is(err, ErrInvalidQRToken), errors.Is(err, ErrTicketTokenMismatch):
		return "INVALID_QR_TOKEN"
	case errors.Is(err, ErrMissingTicketRef):
		return "INVALID_REQUEST"
	}
	return "INTERNAL_ERROR"
}

func HTTPStatus(err error) int {
	switch Code(err) {
	case "TICKET_NOT_FOUND":
		return http.StatusNotFound
	case "INTERNAL_ERROR":
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

type TicketDBLayer interface {
	CreateTickets(ctx context.Context, tickets []models.Ticket) error
	GetTicketByCode(ctx context.Context, code string) (*models.Ticket, error)
	GetTicketsByOrder(ctx context.Context, orderID string) ([]models.Ticket, error)
	GetTicketsByUser(ctx context.Context, userID string) ([]models.TicketWithOrder, error)
	MarkUsed(ctx context.Context, code, scannedBy string, at time.Time) (bool, error)
	CancelTicket(ctx context.Context, code string) (bool, error)
	GetTotalTicketsCount(ctx context.Context) (int, error)
}

// QRSealer seals ticket claims into QR images and opens scanned tokens.
type QRSealer interface {
	GenerateEncryptedQR(claim models.TicketClaim) ([]byte, string, error)
	Open(token string) (*models.TicketClaim, error)
}

type TicketService struct {
	DB     TicketDBLayer
	QR     QRSealer
	Logger *logger.Logger
	Now    func() time.Time
}

func NewTicketService(db TicketDBLayer, qrGen QRSealer, log *logger.Logger) *TicketService {
	return &TicketService{DB: db, QR: qrGen, Logger: log, Now: time.Now}
}

// IssueTickets creates one ticket per seat of the order. It runs inside the
// caller's transaction, so a QR or insert failure rolls back the purchase.
func (s *TicketService) IssueTickets(ctx context.Context, order *models.Order) ([]models.Ticket, error) {
	now := s.Now()
	tickets := make([]models.Ticket, 0, order.Quantity)
	seen := make(map[string]bool, order.Quantity)

	for len(tickets) < order.Quantity {
		code := utils.GenerateTicketCode()
		if seen[code] {
			continue
		}
		seen[code] = true

		png, _, err := s.QR.GenerateEncryptedQR(models.TicketClaim{
			TicketCode: code,
			OrderID:    order.OrderID,
			EventID:    order.EventID,
			SeatType:   order.SeatType,
		})
		if err != nil {
			return nil, fmt.Errorf("generate qr for %s: %w", code, err)
		}

		tickets = append(tickets, models.Ticket{
			TicketID:   uuid.NewString(),
			TicketCode: code,
			OrderID:    order.OrderID,
			EventID:    order.EventID,
			UserID:     order.UserID,
			SeatType:   order.SeatType,
			Price:      order.PricePerTicket,
			QRCode:     png,
			Status:     models.TicketStatusUnused,
			IssuedAt:   now,
		})
	}

	if err := s.DB.CreateTickets(ctx, tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

// ValidateInput names the ticket by code, by scanned QR token, or both.
type ValidateInput struct {
	TicketCode string `json:"ticketCode"`
	QRToken    string `json:"qrToken"`
}

// Validate admits a ticket exactly once. For an already used ticket the
// stored ticket is returned together with ErrTicketAlreadyUsed.
func (s *TicketService) Validate(ctx context.Context, in ValidateInput, scannedBy string) (*models.Ticket, error) {
	code := strings.TrimSpace(in.TicketCode)
	if in.QRToken != "" {
		claim, err := s.QR.Open(in.QRToken)
		if err != nil {
			return nil, err
		}
		if code != "" && code != claim.TicketCode {
			return nil, ErrTicketTokenMismatch
		}
		code = claim.TicketCode
	}
	if code == "" {
		return nil, ErrMissingTicketRef
	}

	ok, err := s.DB.MarkUsed(ctx, code, scannedBy, s.Now())
	if err != nil {
		return nil, fmt.Errorf("mark ticket used: %w", err)
	}

	ticket, err := s.DB.GetTicketByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if ok {
		s.Logger.Info("TICKET", fmt.Sprintf("Ticket %s admitted by %s", code, scannedBy))
		return ticket, nil
	}

	switch ticket.Status {
	case models.TicketStatusUsed:
		s.Logger.LogSecurity("TICKET_REUSE", fmt.Sprintf("Ticket %s presented again by scanner %s", code, scannedBy))
		return ticket, ErrTicketAlreadyUsed
	case models.TicketStatusCancelled:
		return ticket, ErrTicketCancelled
	}
	return nil, fmt.Errorf("ticket %s in unexpected status %q", code, ticket.Status)
}

// CancelTicket voids a ticket. Seats are not returned to inventory.
func (s *TicketService) CancelTicket(ctx context.Context, code string) (*models.Ticket, error) {
	ok, err := s.DB.CancelTicket(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("cancel ticket: %w", err)
	}

	ticket, err := s.DB.GetTicketByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return ticket, ErrTicketAlreadyVoided
	}
	s.Logger.Info("TICKET", fmt.Sprintf("Ticket %s cancelled", code))
	return ticket, nil
}

func (s *TicketService) GetTicket(ctx context.Context, code string) (*models.Ticket, error) {
	return s.DB.GetTicketByCode(ctx, code)
}

func (s *TicketService) GetTicketsByOrder(ctx context.Context, orderID string) ([]models.Ticket, error) {
	return s.DB.GetTicketsByOrder(ctx, orderID)
}

func (s *TicketService) GetTicketsByUser(ctx context.Context, userID string) ([]models.TicketWithOrder, error) {
	return s.DB.GetTicketsByUser(ctx, userID)
}

func (s *TicketService) GetTotalTicketsCount(ctx context.Context) (int, error) {
	return s.DB.GetTotalTicketsCount(ctx)
}
