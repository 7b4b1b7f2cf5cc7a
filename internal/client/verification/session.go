package verification

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrijs2005/careercoach/internal/client/models"
)

var (
	ErrClosed      = errors.New("verification session is closed")
	ErrNotVerified = errors.New("verification session is not verified")
	ErrNoNavigator = errors.New("no navigator configured")
)

// Session is one mounted verification screen.
type Session struct {
	svc *Service

	mu      sync.Mutex
	snap    Snapshot
	payload models.LinkPayload
	closed  bool
	subs    map[int]chan Snapshot
	nextSub int
}

// Enter runs the entry logic for payload and blocks until the session is
// terminal. A session that is already terminal is not re-run: its snapshot
// is re-published as is. The error is non-nil only when ctx ends while
// waiting on another attempt or the session is closed; the snapshot then
// stays in StateVerifying.
func (s *Session) Enter(ctx context.Context, payload models.LinkPayload) (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		snap := s.snap
		s.mu.Unlock()
		return snap, ErrClosed
	}
	if s.snap.Terminal() {
		snap := s.snap
		s.publishLocked(snap)
		s.mu.Unlock()
		return snap, nil
	}
	s.payload = payload
	s.mu.Unlock()

	return s.run(ctx, payload)
}

// Retry starts a fresh attempt for the same payload. It only acts in
// StateError; in any other state it returns the current snapshot.
func (s *Session) Retry(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		snap := s.snap
		s.mu.Unlock()
		return snap, ErrClosed
	}
	if s.snap.State != StateError {
		snap := s.snap
		s.mu.Unlock()
		return snap, nil
	}
	payload := s.payload
	s.setLocked(verifying())
	s.mu.Unlock()

	s.svc.coord.Invalidate()
	s.svc.log.Info(ctx, "retrying verification", "op", "retry", "path", payload.Kind.String())

	return s.run(ctx, payload)
}

// Continue navigates to the resolved route. It is the only place that
// navigates; nothing happens automatically on success.
func (s *Session) Continue(ctx context.Context) error {
	snap := s.Snapshot()
	if snap.State != StateVerified {
		return ErrNotVerified
	}
	if s.svc.nav == nil {
		return ErrNoNavigator
	}
	return s.svc.nav.Navigate(ctx, snap.Route())
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Subscribe returns a channel that always holds the latest snapshot,
// starting with the current one. Intermediate snapshots may be skipped.
// The channel is closed by cancel or by Close.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	ch <- s.snap
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// Close unmounts the session. The shared result stays joinable for the
// coordinator's grace period. Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()

	s.svc.coord.Release()
}

func (s *Session) run(ctx context.Context, payload models.LinkPayload) (Snapshot, error) {
	s.set(verifying())

	res, err := s.svc.settle(ctx, payload)
	if err != nil {
		return s.Snapshot(), err
	}
	return s.set(settled(res)), nil
}

func (s *Session) set(snap Snapshot) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(snap)
	return snap
}

func (s *Session) setLocked(snap Snapshot) {
	s.snap = snap
	s.publishLocked(snap)
}

// publishLocked replaces whatever a subscriber has not read yet. Sends
// happen only under s.mu, so the send after the drain never blocks.
func (s *Session) publishLocked(snap Snapshot) {
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
