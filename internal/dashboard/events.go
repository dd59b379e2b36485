package dashboard

import "sync"

// statusHub fans bot liveness changes out to SSE subscribers.
type statusHub struct {
	mu   sync.Mutex
	subs map[chan bool]struct{}
}

func newStatusHub() *statusHub {
	return &statusHub{subs: make(map[chan bool]struct{})}
}

func (h *statusHub) subscribe() chan bool {
	ch := make(chan bool, 4)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *statusHub) unsubscribe(ch chan bool) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
	close(ch)
}

// broadcast never blocks: a subscriber with a full buffer misses the
// intermediate update and catches up on the next one.
func (h *statusHub) broadcast(running bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- running:
		default:
		}
	}
}
