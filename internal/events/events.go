package events

import (
	"sync"

	"github.com/educlass/portal/internal/models"
)

// IdentityChange is published when a gateway session starts or ends.
// Principal is nil when the session was signed out, revoked or expired.
type IdentityChange struct {
	TokenID   string
	Principal *models.Principal
}

// Bus fans identity changes out to subscribers. Deliveries happen one at a
// time, in publish order per publisher.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[int]func(IdentityChange)

	dispatch sync.Mutex
}

func NewBus() *Bus {
	return &Bus{subs: map[int]func(IdentityChange){}}
}

// Subscribe registers fn and returns a func that removes it.
func (b *Bus) Subscribe(fn func(IdentityChange)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

func (b *Bus) Publish(c IdentityChange) {
	b.dispatch.Lock()
	defer b.dispatch.Unlock()

	b.mu.Lock()
	fns := make([]func(IdentityChange), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}
