package transport

import (
	"sync"
	"time"

	"github.com/abhisek/predtext/internal/event"
)

// LatencyTracker pairs suggestion requests with their replies and reports
// the round trip in milliseconds. Replies to unknown or already answered
// requests are ignored.
type LatencyTracker struct {
	mu      sync.Mutex
	sent    map[int]time.Time
	now     func() time.Time
	observe func(ms int64)
}

// NewLatencyTracker reports each measured round trip to observe.
func NewLatencyTracker(observe func(ms int64)) *LatencyTracker {
	return &LatencyTracker{sent: make(map[int]time.Time), now: time.Now, observe: observe}
}

// Sent records an outgoing rpc effect.
func (t *LatencyTracker) Sent(ev event.Event) {
	if !ev.IsRPC() {
		return
	}
	t.mu.Lock()
	t.sent[ev.RPC.RequestID] = t.now()
	t.mu.Unlock()
}

// Received matches a backend reply against its request.
func (t *LatencyTracker) Received(ev event.Event) {
	if ev.Type != event.TypeBackendReply || ev.Msg == nil {
		return
	}
	t.mu.Lock()
	at, ok := t.sent[ev.Msg.RequestID]
	if ok {
		delete(t.sent, ev.Msg.RequestID)
	}
	now := t.now()
	t.mu.Unlock()
	if ok && t.observe != nil {
		t.observe(now.Sub(at).Milliseconds())
	}
}

// Pending returns the number of unanswered requests.
func (t *LatencyTracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

// Tracked wraps a sender so every rpc effect it carries is recorded.
type Tracked struct {
	Sender interface{ Send(event.Event) }
	*LatencyTracker
}

// Send records ev and forwards it.
func (t Tracked) Send(ev event.Event) {
	t.Sent(ev)
	t.Sender.Send(ev)
}
