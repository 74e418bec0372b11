package inventory

import (
	"fmt"

	"wave-ticketing/internal/models"
)

// ParseSeatType accepts exactly vip, fanPit or regular.
func ParseSeatType(s string) (models.SeatType, error) {
	switch t := models.SeatType(s); t {
	case models.SeatTypeVIP, models.SeatTypeFanPit, models.SeatTypeRegular:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSeatType, s)
}

// ValidateQuantity checks 1 <= qty <= max.
func ValidateQuantity(qty, max int) error {
	if qty < 1 || qty > max {
		return fmt.Errorf("%w: quantity must be between 1 and %d", ErrInvalidQuantity, max)
	}
	return nil
}
