package sse

import (
	"context"
	"sync"
)

const (
	KindAvailability = "availability"
	KindCheckout     = "checkout"
)

const clientBuffer = 10

// Message is one server-sent event bound for the subscribers of an event.
type Message struct {
	Kind    string
	EventID string
	Data    interface{}
}

type topic struct {
	kind    string
	eventID string
}

// Emitter fans messages out to per-event subscribers. Slow clients miss
// messages rather than block the sender.
type Emitter struct {
	mu      sync.RWMutex
	clients map[topic][]chan Message
}

func NewEmitter() *Emitter {
	return &Emitter{clients: make(map[topic][]chan Message)}
}

// Subscribe registers a client until ctx is done. The returned channel is
// closed on unsubscribe.
func (e *Emitter) Subscribe(ctx context.Context, kind, eventID string) <-chan Message {
	ch := make(chan Message, clientBuffer)
	t := topic{kind: kind, eventID: eventID}

	e.mu.Lock()
	e.clients[t] = append(e.clients[t], ch)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(t, ch)
	}()

	return ch
}

// Emit delivers msg to every current subscriber of its topic.
func (e *Emitter) Emit(msg Message) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	// sends happen under the read lock so remove cannot close a channel
	// mid-send
	for _, ch := range e.clients[topic{kind: msg.Kind, eventID: msg.EventID}] {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (e *Emitter) remove(t topic, ch chan Message) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[t]
	for i, c := range clients {
		if c == ch {
			e.clients[t] = append(clients[:i], clients[i+1:]...)
			close(ch)
			break
		}
	}
	if len(e.clients[t]) == 0 {
		delete(e.clients, t)
	}
}

// ClientCount returns the number of subscribers of one topic.
func (e *Emitter) ClientCount(kind, eventID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[topic{kind: kind, eventID: eventID}])
}
