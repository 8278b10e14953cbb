package chat

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sentEvent records one directed emission from the matchmaker.
type sentEvent struct {
	connID string
	t      EventType
}

// fakeSender records events instead of writing sockets, and lets tests mark
// connections as gone.
type fakeSender struct {
	mu           sync.Mutex
	events       []sentEvent
	disconnected map[string]bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{disconnected: make(map[string]bool)}
}

func (s *fakeSender) SendTo(connID string, t EventType, payload any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disconnected[connID] {
		return false
	}
	s.events = append(s.events, sentEvent{connID: connID, t: t})
	return true
}

func (s *fakeSender) IsConnected(connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return !s.disconnected[connID]
}

func (s *fakeSender) drop(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disconnected[connID] = true
}

// take returns and clears the recorded events.
func (s *fakeSender) take() []sentEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.events
	s.events = nil
	return events
}

// countFor counts recorded events of type t addressed to connID.
func (s *fakeSender) countFor(connID string, t EventType) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, e := range s.events {
		if e.connID == connID && e.t == t {
			count++
		}
	}
	return count
}

// newTestMatchmaker replaces the grace-delay scheduler with a manual trigger.
func newTestMatchmaker(sender *fakeSender) (*Matchmaker, *[]func()) {
	m := NewMatchmaker(sender)

	pending := &[]func(){}
	m.schedule = func(d time.Duration, fn func()) {
		*pending = append(*pending, fn)
	}
	return m, pending
}

func runPending(pending *[]func()) {
	fns := *pending
	*pending = nil
	for _, fn := range fns {
		fn()
	}
}

func TestEnqueuePairsFIFO(t *testing.T) {
	sender := newFakeSender()
	m, _ := newTestMatchmaker(sender)

	m.Enqueue("a")
	assert.Equal(t, []sentEvent{{connID: "a", t: EventWaitingPartner}}, sender.take())
	assert.Equal(t, PairWaiting, m.State("a"))

	m.Enqueue("b")
	events := sender.take()
	require.Len(t, events, 2)
	assert.Equal(t, PairPaired, m.State("a"))
	assert.Equal(t, PairPaired, m.State("b"))
	for _, e := range events {
		assert.Equal(t, EventPartnerFound, e.t)
	}
}

func TestRelayOnlyWhenPaired(t *testing.T) {
	sender := newFakeSender()
	m, _ := newTestMatchmaker(sender)

	payload := json.RawMessage(`{"sdp":"offer"}`)

	// Unpaired: silently dropped.
	m.Relay("a", EventOffer, payload)
	assert.Empty(t, sender.take())

	m.Enqueue("a")
	m.Enqueue("b")
	sender.take()

	m.Relay("a", EventOffer, payload)
	assert.Equal(t, []sentEvent{{connID: "b", t: EventOffer}}, sender.take())
}

func TestLeaveAntiRematchPrefersThirdParty(t *testing.T) {
	sender := newFakeSender()
	m, pending := newTestMatchmaker(sender)

	m.Enqueue("a")
	m.Enqueue("b")
	sender.take()

	m.Leave("a")
	require.Equal(t, []sentEvent{{connID: "b", t: EventPartnerLeft}}, sender.take())

	// Seed the queue directly so both B and C are waiting, B at the head,
	// when A's grace delay fires.
	m.mu.Lock()
	m.queue = []string{"b", "c"}
	m.mu.Unlock()

	runPending(pending)

	// A must skip B (recent partner) and pair with C.
	assert.Equal(t, PairPaired, m.State("a"))
	assert.Equal(t, PairPaired, m.State("c"))
	assert.Equal(t, PairWaiting, m.State("b"))
	assert.Equal(t, 1, sender.countFor("a", EventPartnerFound))
	assert.Equal(t, 1, sender.countFor("c", EventPartnerFound))
	assert.Equal(t, 0, sender.countFor("b", EventPartnerFound))
}

func TestLeaveAloneWithRecentPartnerWaits(t *testing.T) {
	sender := newFakeSender()
	m, pending := newTestMatchmaker(sender)

	m.Enqueue("a")
	m.Enqueue("b")
	sender.take()

	m.Leave("a")
	sender.take()

	// Only the recent partner is waiting.
	m.mu.Lock()
	m.queue = []string{"b"}
	m.mu.Unlock()

	runPending(pending)

	// A must not re-pair with B; both end up waiting.
	assert.Equal(t, PairWaiting, m.State("a"))
	assert.Equal(t, PairWaiting, m.State("b"))
	assert.Equal(t, 1, sender.countFor("a", EventWaitingPartner))
}

func TestRecentPartnerMemoryConsumedAfterRequeue(t *testing.T) {
	sender := newFakeSender()
	m, pending := newTestMatchmaker(sender)

	m.Enqueue("a")
	m.Enqueue("b")
	sender.take()

	m.Leave("a")
	m.mu.Lock()
	m.queue = []string{"b"}
	m.mu.Unlock()
	runPending(pending)
	sender.take()

	// The anti-rematch memory was consumed; a later leave/requeue may pair
	// A and B again.
	m.Leave("a")
	runPending(pending)

	assert.Equal(t, PairPaired, m.State("a"))
	assert.Equal(t, PairPaired, m.State("b"))
}

func TestDisconnectNotifiesPartnerExactlyOnce(t *testing.T) {
	sender := newFakeSender()
	m, _ := newTestMatchmaker(sender)

	m.Enqueue("a")
	m.Enqueue("b")
	sender.take()

	m.Disconnect("a")

	assert.Equal(t, 1, sender.countFor("b", EventPartnerLeft))

	// B is unlinked but not re-queued.
	assert.Equal(t, PairIdle, m.State("b"))
	assert.Equal(t, PairIdle, m.State("a"))
	assert.Equal(t, 0, sender.countFor("b", EventWaitingPartner))
}

func TestDisconnectRemovesQueueResidue(t *testing.T) {
	sender := newFakeSender()
	m, _ := newTestMatchmaker(sender)

	m.Enqueue("a")
	sender.take()

	m.Disconnect("a")
	assert.Equal(t, PairIdle, m.State("a"))

	// The next entrant waits instead of pairing with the ghost.
	m.Enqueue("b")
	assert.Equal(t, []sentEvent{{connID: "b", t: EventWaitingPartner}}, sender.take())
}

func TestRequeueSkippedWhenConnectionGone(t *testing.T) {
	sender := newFakeSender()
	m, pending := newTestMatchmaker(sender)

	m.Enqueue("a")
	m.Enqueue("b")
	sender.take()

	m.Leave("a")
	m.Disconnect("a")
	sender.drop("a")

	runPending(pending)

	assert.Equal(t, PairIdle, m.State("a"))
	assert.Empty(t, sender.take())
}
