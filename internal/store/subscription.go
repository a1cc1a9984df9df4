package store

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"

	"notesync/internal/domain"

	"go.uber.org/zap"
)

const subscriptionBuffer = 64

// Subscription delivers change events for one owner until cancelled.
// A subscriber that falls more than the buffer behind is dropped and its
// event sequence ends; Overflowed reports when that happened.
type Subscription struct {
	id      uint64
	ownerID string
	events  chan domain.ChangeEvent
	store   *Store

	stopCtx    func() bool
	once       sync.Once
	overflowed atomic.Bool
}

// Subscribe registers a subscription that also ends when ctx is done.
func (s *Store) Subscribe(ctx context.Context, ownerID string) *Subscription {
	s.subsMu.Lock()
	s.nextID++
	sub := &Subscription{
		id:      s.nextID,
		ownerID: ownerID,
		events:  make(chan domain.ChangeEvent, subscriptionBuffer),
		store:   s,
	}
	s.subs[sub.id] = sub
	s.subsMu.Unlock()

	sub.stopCtx = context.AfterFunc(ctx, sub.close)
	return sub
}

// Events is a lazy sequence over delivered events. It ends after Cancel.
func (sub *Subscription) Events() iter.Seq[domain.ChangeEvent] {
	return func(yield func(domain.ChangeEvent) bool) {
		for ev := range sub.events {
			if !yield(ev) {
				return
			}
		}
	}
}

// C exposes the raw channel for select loops.
func (sub *Subscription) C() <-chan domain.ChangeEvent {
	return sub.events
}

func (sub *Subscription) Cancel() {
	sub.stopCtx()
	sub.close()
}

func (sub *Subscription) close() {
	sub.once.Do(func() {
		sub.store.subsMu.Lock()
		defer sub.store.subsMu.Unlock()
		sub.store.drop(sub)
	})
}

func (sub *Subscription) Overflowed() bool {
	return sub.overflowed.Load()
}

// Notify fans an event out to the owner's subscribers without blocking.
func (s *Store) Notify(ev domain.ChangeEvent) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	for _, sub := range s.subs {
		if sub.ownerID != ev.Note.OwnerID {
			continue
		}
		select {
		case sub.events <- ev:
		default:
			s.logger.Warn("subscriber buffer full, closing subscription",
				zap.Uint64("subscription", sub.id),
				zap.String("owner_id", sub.ownerID),
			)
			sub.overflowed.Store(true)
			s.drop(sub)
		}
	}
}

// drop removes and closes a subscription. Callers hold subsMu.
func (s *Store) drop(sub *Subscription) {
	if _, ok := s.subs[sub.id]; !ok {
		return
	}
	delete(s.subs, sub.id)
	close(sub.events)
}
