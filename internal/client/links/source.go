package links

import (
	"context"
	"sync"
)

// LinkSource delivers the link the process was launched with and the links
// received while running.
type LinkSource interface {
	// InitialLink returns the cold-start link once; later calls report false.
	InitialLink() (string, bool)
	// Subscribe returns live links until cancel is called.
	Subscribe() (<-chan string, func())
}

// ChannelSource is an in-process LinkSource fed by Deliver.
type ChannelSource struct {
	mu      sync.Mutex
	initial string
	taken   bool
	subs    map[int]subscription
	nextSub int
}

// subscriberBuffer is how many undelivered links a subscriber may lag.
const subscriberBuffer = 8

type subscription struct {
	ch   chan string
	done chan struct{}
}

func NewChannelSource(initial string) *ChannelSource {
	return &ChannelSource{initial: initial, taken: initial == "", subs: make(map[int]subscription)}
}

func (s *ChannelSource) InitialLink() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.taken {
		return "", false
	}
	s.taken = true
	return s.initial, true
}

// Subscribe registers a live subscriber. The channel is never closed;
// cancel only stops deliveries to it.
func (s *ChannelSource) Subscribe() (<-chan string, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	sub := subscription{ch: make(chan string, subscriberBuffer), done: make(chan struct{})}
	s.subs[id] = sub

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			close(sub.done)
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
		})
	}
}

// Subscribers reports the number of live subscriptions.
func (s *ChannelSource) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Deliver hands link to every current subscriber. It blocks while a
// subscriber's buffer is full, until that subscriber cancels or ctx is done.
func (s *ChannelSource) Deliver(ctx context.Context, link string) error {
	s.mu.Lock()
	subs := make([]subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.ch <- link:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
