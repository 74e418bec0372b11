package models

import "time"

// OrderCreatedMessage is published after a purchase commits.
type OrderCreatedMessage struct {
	Order       Order     `json:"order"`
	TicketCodes []string  `json:"ticketCodes"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// InventoryUpdatedMessage is published after any committed inventory
// change.
type InventoryUpdatedMessage struct {
	Availability AvailabilitySnapshot `json:"availability"`
	OccurredAt   time.Time            `json:"occurredAt"`
}
