/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package duet

import "sync"

// Notifier is told about every persisted mutation of a session.
type Notifier interface {
	Publish(gameID string)
}

// Broker fans payload-free change signals out to subscribers of a session.
// Subscribers re-read the session through the service, which sanitizes it.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[chan struct{}]struct{})}
}

// Subscribe returns a channel that receives a value after each change of
// gameID, and a cancel func that closes it. Signals that arrive while one
// is already pending are coalesced.
func (b *Broker) Subscribe(gameID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	set, ok := b.subs[gameID]
	if !ok {
		set = make(map[chan struct{}]struct{})
		b.subs[gameID] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()

			if cur, ok := b.subs[gameID]; ok {
				delete(cur, ch)
				if len(cur) == 0 {
					delete(b.subs, gameID)
				}
			}
			close(ch)
		})
	}

	return ch, cancel
}

// Publish signals every subscriber of gameID without blocking.
func (b *Broker) Publish(gameID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs[gameID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions to gameID.
func (b *Broker) Subscribers(gameID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.subs[gameID])
}
