package ws

import (
	"sync"
	"time"

	"match_coordinator/internal/domain"
	"match_coordinator/internal/logger"
	"match_coordinator/internal/metrics"
)

type bufferedFrame struct {
	data []byte
	at   time.Time
}

// Relay forwards negotiation frames between the two roles of one match
// without reading their content. Frames for a role with no open
// connection are held in a bounded buffer and dropped past the grace
// window.
type Relay struct {
	mu      sync.Mutex
	pending map[domain.Role][]bufferedFrame

	limit int
	grace time.Duration
}

func NewRelay(limit int, grace time.Duration) *Relay {
	return &Relay{
		pending: make(map[domain.Role][]bufferedFrame),
		limit:   limit,
		grace:   grace,
	}
}

// Forward delivers frame to the target role's connection, or buffers
// it when to is nil.
func (r *Relay) Forward(to *Client, role domain.Role, frame []byte) {
	if to != nil {
		to.enqueue(frame)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.dropExpiredLocked(role)
	if len(r.pending[role]) >= r.limit {
		metrics.RelayDropped.WithLabelValues("overflow").Inc()
		logger.Warn("relay: buffer full, dropping frame", "role", string(role))
		return
	}
	r.pending[role] = append(r.pending[role], bufferedFrame{data: frame, at: time.Now()})
}

// Flush delivers frames buffered for the role while it was offline.
func (r *Relay) Flush(to *Client, role domain.Role) {
	r.mu.Lock()
	r.dropExpiredLocked(role)
	frames := r.pending[role]
	delete(r.pending, role)
	r.mu.Unlock()

	for _, f := range frames {
		to.enqueue(f.data)
	}
}

func (r *Relay) dropExpiredLocked(role domain.Role) {
	cutoff := time.Now().Add(-r.grace)
	frames := r.pending[role]
	kept := frames[:0]
	for _, f := range frames {
		if f.at.After(cutoff) {
			kept = append(kept, f)
		} else {
			metrics.RelayDropped.WithLabelValues("expired").Inc()
		}
	}
	if len(kept) == 0 {
		delete(r.pending, role)
		return
	}
	r.pending[role] = kept
}
