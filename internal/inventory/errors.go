package inventory

import (
	"errors"
	"fmt"
	"net/http"

	"wave-ticketing/internal/models"
)

var (
	ErrEventNotFound          = errors.New("event not found")
	ErrWaveNotFound           = errors.New("wave not found")
	ErrCategoryNotFound       = errors.New("category not found")
	ErrInvalidSeatType        = errors.New("invalid seat type")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInvalidCategory        = errors.New("invalid category")
	ErrInvalidEvent           = errors.New("invalid event")
	ErrInsufficientInventory  = errors.New("insufficient inventory")
	ErrConcurrentConflict     = errors.New("seats were taken, please try again")
	ErrSeatReductionBelowSold = errors.New("cannot reduce seats below the number already sold")
)

// External error codes.
const (
	CodeEventNotFound          = "EVENT_NOT_FOUND"
	CodeWaveNotFound           = "WAVE_NOT_FOUND"
	CodeCategoryNotFound       = "CATEGORY_NOT_FOUND"
	CodeInvalidSeatType        = "INVALID_SEAT_TYPE"
	CodeInvalidQuantity        = "INVALID_QUANTITY"
	CodeInvalidCategory        = "INVALID_CATEGORY"
	CodeInvalidEvent           = "INVALID_EVENT"
	CodeInsufficientInventory  = "INSUFFICIENT_INVENTORY"
	CodeConcurrentConflict     = "CONCURRENT_CONFLICT_RETRY"
	CodeSeatReductionBelowSold = "SEAT_REDUCTION_BELOW_SOLD"
	CodeInternal               = "INTERNAL_ERROR"
)

// InsufficientError names the seat type that ran out.
type InsufficientError struct {
	SeatType models.SeatType
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("Not enough %s seats available", e.SeatType)
}

func (e *InsufficientError) Is(target error) bool {
	return target == ErrInsufficientInventory
}

func insufficient(t models.SeatType) error {
	return &InsufficientError{SeatType: t}
}

var codes = []struct {
	err    error
	code   string
	status int
}{
	{ErrEventNotFound, CodeEventNotFound, http.StatusNotFound},
	{ErrWaveNotFound, CodeWaveNotFound, http.StatusNotFound},
	{ErrCategoryNotFound, CodeCategoryNotFound, http.StatusNotFound},
	{ErrInvalidSeatType, CodeInvalidSeatType, http.StatusBadRequest},
	{ErrInvalidQuantity, CodeInvalidQuantity, http.StatusBadRequest},
	{ErrInvalidCategory, CodeInvalidCategory, http.StatusBadRequest},
	{ErrInvalidEvent, CodeInvalidEvent, http.StatusBadRequest},
	{ErrSeatReductionBelowSold, CodeSeatReductionBelowSold, http.StatusBadRequest},
	{ErrInsufficientInventory, CodeInsufficientInventory, http.StatusConflict},
	{ErrConcurrentConflict, CodeConcurrentConflict, http.StatusConflict},
}

// Code maps err to its external error code. Unknown errors are internal.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// HTTPStatus maps err to the status returned to API callers.
func HTTPStatus(err error) int {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.status
		}
	}
	return http.StatusInternalServerError
}

// Message is the caller-facing text for err. Internal failures are not
// described.
func Message(err error) string {
	var ie *InsufficientError
	if errors.As(err, &ie) {
		return ie.Error()
	}
	if errors.Is(err, ErrConcurrentConflict) {
		return "Seats were taken, please try again"
	}
	if Code(err) == CodeInternal {
		return "Internal server error"
	}
	return err.Error()
}
