// Package eventbus fans published envelopes out to in-process subscribers.
package eventbus

import (
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/envelope"
)

// Bus delivers every published envelope to every subscriber. Delivery is
// non-blocking: a subscriber that stops draining its channel loses
// envelopes instead of stalling publishers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan *envelope.Envelope
}

func New() *Bus {
	return &Bus{
		subscribers: make(map[string]chan *envelope.Envelope),
	}
}

// Subscribe registers a buffered channel and returns its id for
// Unsubscribe. Size the buffer for the subscriber's worst-case lag.
func (b *Bus) Subscribe(bufSize int) (string, <-chan *envelope.Envelope) {
	id := ulid.Make().String()
	ch := make(chan *envelope.Envelope, bufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe closes the subscriber's channel. Safe to call twice.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Bus) Publish(env *envelope.Envelope) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- env:
		default:
			// buffer full, drop for this subscriber
		}
	}
}

// PublishNew wraps the payload in a fresh envelope and publishes it,
// returning the envelope so callers can echo its id and timestamp.
func (b *Bus) PublishNew(kind envelope.Kind, teamID string, payload any) (*envelope.Envelope, error) {
	env, err := envelope.New(kind, teamID, payload)
	if err != nil {
		return nil, err
	}
	b.Publish(env)
	return env, nil
}
