package store

import (
	"context"
	"sync"

	"royalcourt/court"
)

// hub fans committed sessions out to in-process subscribers. Each subscriber
// channel holds at most one pending record; a newer record replaces it.
type hub struct {
	mu     sync.Mutex
	subs   map[string]map[chan *court.Session]struct{}
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[chan *court.Session]struct{})}
}

func (h *hub) subscribe(ctx context.Context, code string) (<-chan *court.Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	ch := make(chan *court.Session, 1)
	if h.subs[code] == nil {
		h.subs[code] = make(map[chan *court.Session]struct{})
	}
	h.subs[code][ch] = struct{}{}

	go func() {
		<-ctx.Done()
		h.remove(code, ch)
	}()
	return ch, nil
}

func (h *hub) remove(code string, ch chan *court.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[code]
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	if len(set) == 0 {
		delete(h.subs, code)
	}
	close(ch)
}

func (h *hub) hasSubscribers(code string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[code]) > 0
}

func (h *hub) codes() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.subs))
	for code := range h.subs {
		out = append(out, code)
	}
	return out
}

func (h *hub) publish(s *court.Session) {
	if s == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[s.Code] {
		offerLatest(ch, s.Clone())
	}
}

// offerLatest replaces any pending value in ch with s without blocking.
// Callers must be the only sender on ch.
func offerLatest(ch chan *court.Session, s *court.Session) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for code, set := range h.subs {
		for ch := range set {
			close(ch)
		}
		delete(h.subs, code)
	}
}
