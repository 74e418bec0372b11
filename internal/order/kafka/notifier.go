package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"wave-ticketing/internal/config"
	"wave-ticketing/internal/logger"
	"wave-ticketing/internal/models"
	"wave-ticketing/internal/sse"
)

// Publisher is the slice of the Kafka producer the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Notifier publishes purchase and inventory changes to Kafka in the
// background. Failures are logged and never surface to the caller.
type Notifier struct {
	Producer Publisher
	Topics   config.TopicConfig
	Logger   *logger.Logger
	Timeout  time.Duration

	wg sync.WaitGroup
}

func NewNotifier(p Publisher, topics config.TopicConfig, log *logger.Logger) *Notifier {
	return &Notifier{Producer: p, Topics: topics, Logger: log, Timeout: 5 * time.Second}
}

func (n *Notifier) OrderCreated(ctx context.Context, order models.Order, ticketCodes []string) {
	n.publish(ctx, n.Topics.OrderCreated, order.EventID, models.OrderCreatedMessage{
		Order:       order,
		TicketCodes: ticketCodes,
		OccurredAt:  time.Now().UTC(),
	})
}

func (n *Notifier) InventoryUpdated(ctx context.Context, snap models.AvailabilitySnapshot) {
	n.publish(ctx, n.Topics.InventoryUpdated, snap.EventID, models.InventoryUpdatedMessage{
		Availability: snap,
		OccurredAt:   time.Now().UTC(),
	})
}

// Wait blocks until every publish started so far has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) publish(ctx context.Context, topic, key string, payload interface{}) {
	value, err := json.Marshal(payload)
	if err != nil {
		n.Logger.Error("KAFKA", fmt.Sprintf("Failed to marshal %s payload: %v", topic, err))
		return
	}

	// detached from the request so neither a slow broker nor a client
	// disconnect holds up or drops the response
	base := context.WithoutCancel(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		pctx, cancel := context.WithTimeout(base, n.Timeout)
		defer cancel()

		if err := n.Producer.Publish(pctx, topic, []byte(key), value); err != nil {
			n.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish to %s for %s: %v", topic, key, err))
			return
		}
		n.Logger.LogKafka("PUBLISH", topic, key)
	}()
}

// LocalNotifier fans changes out to this instance's stream subscribers
// directly. Used when Kafka is disabled.
type LocalNotifier struct {
	Emitter *sse.Emitter
}

func (n *LocalNotifier) OrderCreated(_ context.Context, order models.Order, ticketCodes []string) {
	n.Emitter.Emit(sse.Message{Kind: sse.KindCheckout, EventID: order.EventID, Data: models.OrderCreatedMessage{
		Order:       order,
		TicketCodes: ticketCodes,
		OccurredAt:  time.Now().UTC(),
	}})
}

func (n *LocalNotifier) InventoryUpdated(_ context.Context, snap models.AvailabilitySnapshot) {
	n.Emitter.Emit(sse.Message{Kind: sse.KindAvailability, EventID: snap.EventID, Data: snap})
}

// Invalidator drops a cached availability snapshot.
type Invalidator interface {
	Invalidate(ctx context.Context, eventID string) error
}

// InventoryHandler consumes inventory updates from any instance: it drops
// the local cache entry and pushes the snapshot to stream subscribers.
func InventoryHandler(cache Invalidator, emitter *sse.Emitter) func(ctx context.Context, value []byte) error {
	return func(ctx context.Context, value []byte) error {
		var msg models.InventoryUpdatedMessage
		if err := json.Unmarshal(value, &msg); err != nil {
			return fmt.Errorf("decode inventory update: %w", err)
		}
		if msg.Availability.EventID == "" {
			return fmt.Errorf("inventory update without event id")
		}
		if cache != nil {
			if err := cache.Invalidate(ctx, msg.Availability.EventID); err != nil {
				return fmt.Errorf("invalidate %s: %w", msg.Availability.EventID, err)
			}
		}
		emitter.Emit(sse.Message{Kind: sse.KindAvailability, EventID: msg.Availability.EventID, Data: msg.Availability})
		return nil
	}
}

// CheckoutHandler consumes order-created messages and pushes them to the
// admin sales stream of the event.
func CheckoutHandler(emitter *sse.Emitter) func(ctx context.Context, value []byte) error {
	return func(_ context.Context, value []byte) error {
		var msg models.OrderCreatedMessage
		if err := json.Unmarshal(value, &msg); err != nil {
			return fmt.Errorf("decode order created: %w", err)
		}
		emitter.Emit(sse.Message{Kind: sse.KindCheckout, EventID: msg.Order.EventID, Data: msg})
		return nil
	}
}
