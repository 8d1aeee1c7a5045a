// Package notify fans completed ingestion cycles out to in-process
// subscribers.
package notify

import (
	"sync"
	"sync/atomic"

	"github.com/mr1hm/mta-alert-tracker/internal/models"
)

// subscriberBuffer is how many cycles a subscriber may fall behind before it
// starts missing them.
const subscriberBuffer = 16

type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[uint64]chan models.CycleResult
	nextID atomic.Uint64
	closed bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[uint64]chan models.CycleResult)}
}

// Subscribe registers a listener. The channel is closed by Unsubscribe or
// Close. After Close it is returned already closed.
func (b *Broadcaster) Subscribe() (uint64, <-chan models.CycleResult) {
	id := b.nextID.Add(1)
	ch := make(chan models.CycleResult, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return id, ch
	}
	b.subs[id] = ch
	return id, ch
}

// Unsubscribe is safe to call for an id that is already gone.
func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remove(id)
}

// Broadcast hands r to every subscriber without blocking and returns how
// many subscribers had a full buffer and missed it.
func (b *Broadcaster) Broadcast(r models.CycleResult) (missed int) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- r:
		default:
			missed++
		}
	}
	return missed
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends every subscription. Open SSE streams see their channel close
// and return.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id := range b.subs {
		b.remove(id)
	}
}

// remove must be called with mu held.
func (b *Broadcaster) remove(id uint64) {
	if ch, ok := b.subs[id]; ok {
		close(ch)
		delete(b.subs, id)
	}
}
