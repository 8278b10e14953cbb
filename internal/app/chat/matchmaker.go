/*
Package chat contains the real-time core: the connection hub, room assignment,
message fan-out, and 1:1 video-chat matchmaking.

This file defines the Matchmaker, a room-independent FIFO pairing service keyed
purely by connection ID. A reconnect is a new queue entrant.
*/
package chat

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"geochat/internal/pkg/logx"
)

// RequeueGraceDelay is the pause after a pairing ends before the departing
// side re-enters the queue. Without it, two recently separated connections
// sitting alone in the queue would immediately re-pair.
const RequeueGraceDelay = 500 * time.Millisecond

// PairState is the explicit per-connection matchmaking state.
type PairState int

const (
	// PairIdle means the connection is not using video chat.
	PairIdle PairState = iota

	// PairWaiting means the connection is enqueued with no partner.
	PairWaiting

	// PairPaired means the connection has an active partner.
	PairPaired
)

// PairSender is the emission surface the Matchmaker needs; the Hub implements
// it. Keeping it narrow lets tests record events instead of writing sockets.
type PairSender interface {
	SendTo(connID string, t EventType, payload any) bool
	IsConnected(connID string) bool
}

// Matchmaker holds the queue, the symmetric partner map, and the short-lived
// recent-partner memory. A single mutex serializes every mutation.
type Matchmaker struct {
	mu sync.Mutex

	// queue is the FIFO of waiting connection IDs.
	queue []string

	// partners maps connection ID to its current partner, symmetric while a
	// pairing is active.
	partners map[string]string

	// recent maps connection ID to its most recently departed partner,
	// consumed by the grace-delay re-queue.
	recent map[string]string

	sender PairSender

	// schedule defers the re-queue after an explicit leave. Tests replace it
	// to control timing.
	schedule func(d time.Duration, fn func())

	logger zerolog.Logger
}

// NewMatchmaker constructs a Matchmaker emitting through the given sender.
func NewMatchmaker(sender PairSender) *Matchmaker {
	return &Matchmaker{
		partners: make(map[string]string),
		recent:   make(map[string]string),
		sender:   sender,
		schedule: func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
		logger:   logx.Logger().With().Str("component", "Matchmaker").Logger(),
	}
}

// State returns the connection's current matchmaking state.
func (m *Matchmaker) State(connID string) PairState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.partners[connID]; ok {
		return PairPaired
	}
	for _, id := range m.queue {
		if id == connID {
			return PairWaiting
		}
	}
	return PairIdle
}

// Enqueue pairs the connection with the queue head when one is waiting,
// otherwise appends it to the tail.
func (m *Matchmaker) Enqueue(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.partners[connID]; ok {
		return
	}
	for _, id := range m.queue {
		if id == connID {
			return
		}
	}

	if len(m.queue) > 0 {
		partner := m.queue[0]
		m.queue = m.queue[1:]
		m.pairLocked(connID, partner)
		return
	}

	m.waitLocked(connID)
}

// pairLocked establishes the symmetric pairing and notifies both sides.
func (m *Matchmaker) pairLocked(a, b string) {
	m.partners[a] = b
	m.partners[b] = a

	m.sender.SendTo(a, EventPartnerFound, nil)
	m.sender.SendTo(b, EventPartnerFound, nil)

	m.logger.Debug().Str("conn_a", a).Str("conn_b", b).Msg("Pairing established.")
}

func (m *Matchmaker) waitLocked(connID string) {
	m.queue = append(m.queue, connID)
	m.sender.SendTo(connID, EventWaitingPartner, nil)
}

// Relay forwards a session-negotiation payload to the connection's current
// partner. Silently dropped when unpaired; the sender may have been unpaired
// concurrently.
func (m *Matchmaker) Relay(connID string, t EventType, payload json.RawMessage) {
	m.mu.Lock()
	partner, ok := m.partners[connID]
	m.mu.Unlock()

	if !ok {
		return
	}

	m.sender.SendTo(partner, t, payload)
}

// Leave ends the connection's pairing, remembers both sides to bias the
// re-match away from each other, and re-enqueues the leaver after the grace
// delay.
func (m *Matchmaker) Leave(connID string) {
	m.mu.Lock()

	if partner, ok := m.partners[connID]; ok {
		m.sender.SendTo(partner, EventPartnerLeft, nil)

		m.recent[connID] = partner
		m.recent[partner] = connID

		delete(m.partners, connID)
		delete(m.partners, partner)
	}

	m.mu.Unlock()

	m.schedule(RequeueGraceDelay, func() { m.requeue(connID) })
}

// requeue attempts to re-enter the queue, preferring any waiting connection
// other than the remembered recent partner. The recent-partner entry is
// consumed whether or not a match is found.
func (m *Matchmaker) requeue(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	last := m.recent[connID]
	delete(m.recent, connID)

	// The connection may have dropped or re-paired during the grace delay.
	if !m.sender.IsConnected(connID) {
		return
	}
	if _, ok := m.partners[connID]; ok {
		return
	}

	// Drop any waiting entry for this connection before rejoining, so it
	// cannot end up both paired and queued.
	for i, id := range m.queue {
		if id == connID {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			break
		}
	}

	for i, candidate := range m.queue {
		if candidate == last {
			continue
		}
		m.queue = append(m.queue[:i], m.queue[i+1:]...)
		m.pairLocked(connID, candidate)
		return
	}

	m.waitLocked(connID)
}

// Disconnect performs transport-teardown cleanup: the partner is notified and
// unlinked but not re-queued, and every queue or map residue for the
// connection is removed. No grace-delay re-queue on disconnect.
func (m *Matchmaker) Disconnect(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if partner, ok := m.partners[connID]; ok {
		m.sender.SendTo(partner, EventPartnerLeft, nil)
		delete(m.partners, partner)
	}
	delete(m.partners, connID)
	delete(m.recent, connID)

	for i, id := range m.queue {
		if id == connID {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			break
		}
	}
}
