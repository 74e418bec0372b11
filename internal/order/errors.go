package order

import (
	"errors"
	"net/http"

	"wave-ticketing/internal/inventory"
	orderdb "wave-ticketing/internal/order/db"
)

var (
	ErrOrderNotFound      = orderdb.ErrOrderNotFound
	ErrPurchaseInProgress = errors.New("a purchase for this event is already in progress")
	ErrForbidden          = errors.New("order belongs to another user")
)

const (
	CodeOrderNotFound      = "ORDER_NOT_FOUND"
	CodePurchaseInProgress = "PURCHASE_IN_PROGRESS"
	CodeForbidden          = "FORBIDDEN"
)

// Code maps order errors first, then falls back to the inventory codes.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrOrderNotFound):
		return CodeOrderNotFound
	case errors.Is(err, ErrPurchaseInProgress):
		return CodePurchaseInProgress
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	}
	return inventory.Code(err)
}

func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrPurchaseInProgress):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	}
	return inventory.HTTPStatus(err)
}

func Message(err error) string {
	switch Code(err) {
	case CodeOrderNotFound, CodePurchaseInProgress, CodeForbidden:
		return err.Error()
	}
	return inventory.Message(err)
}
