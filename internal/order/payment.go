package order

import (
	"context"
	"fmt"

	"wave-ticketing/internal/models"
	"wave-ticketing/internal/utils"
)

// PaymentGateway captures the order total. It runs inside the purchase
// transaction; an error rolls the purchase back.
type PaymentGateway interface {
	Capture(ctx context.Context, order *models.Order) error
}

// SandboxGateway approves every payment immediately.
type SandboxGateway struct{}

func (SandboxGateway) Capture(_ context.Context, order *models.Order) error {
	if order.TotalPrice < 0 {
		return fmt.Errorf("negative order total %.2f", order.TotalPrice)
	}
	order.PaymentStatus = models.PaymentStatusCompleted
	order.PaymentRef = utils.GeneratePaymentRef()
	return nil
}
