package realtime

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"go-directchat/internal/infrastructure/metrics"
)

// Handle is one registered realtime link. Send must not block.
type Handle interface {
	ID() string
	Send(payload []byte) error
}

// closer is implemented by handles that can be shut down by the registry.
type closer interface {
	Close(code int, reason string)
}

// PresenceRegistry maps each online user to the set of its active handles.
// A user is online iff that set is non-empty. Every membership change is
// followed by a full snapshot broadcast to all registered handles, enqueued
// under the same lock so each handle sees snapshots in mutation order.
type PresenceRegistry struct {
	mu      sync.RWMutex
	users   map[string]map[string]Handle // userID -> handleID -> handle
	handles map[string]string            // handleID -> userID
	log     zerolog.Logger
}

// NewPresenceRegistry constructs an empty registry.
func NewPresenceRegistry(log zerolog.Logger) *PresenceRegistry {
	return &PresenceRegistry{
		users:   make(map[string]map[string]Handle),
		handles: make(map[string]string),
		log:     log.With().Str("component", "presence").Logger(),
	}
}

// Register adds h to userID's handle set. It is idempotent per handle; a handle
// previously bound to another user is moved.
func (r *PresenceRegistry) Register(userID string, h Handle) {
	if userID == "" || h == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if previous, ok := r.handles[h.ID()]; ok && previous != userID {
		r.removeLocked(h.ID())
	}

	set := r.users[userID]
	if set == nil {
		set = make(map[string]Handle)
		r.users[userID] = set
	}
	set[h.ID()] = h
	r.handles[h.ID()] = userID

	r.log.Debug().Str("user_id", userID).Str("handle_id", h.ID()).Msg("registered")
	r.broadcastLocked()
}

// Unregister removes h from whichever user holds it. It reports whether the
// handle was present; absent handles are a no-op.
func (r *PresenceRegistry) Unregister(h Handle) bool {
	if h == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.removeLocked(h.ID()) {
		return false
	}
	r.log.Debug().Str("handle_id", h.ID()).Msg("unregistered")
	r.broadcastLocked()
	return true
}

// Snapshot returns the online user ids, sorted and without duplicates.
func (r *PresenceRegistry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// IsOnline reports whether userID has at least one registered handle.
func (r *PresenceRegistry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// Lookup returns the handles currently registered for userID, in no
// particular order.
func (r *PresenceRegistry) Lookup(userID string) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.users[userID]
	out := make([]Handle, 0, len(set))
	for _, h := range set {
		out = append(out, h)
	}
	return out
}

// SendToUser writes payload to every handle of userID and returns how many
// accepted it. The read lock is held for the fan-out, so a handle that has
// been unregistered never receives anything afterwards.
func (r *PresenceRegistry) SendToUser(userID string, payload []byte) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	for _, h := range r.users[userID] {
		if err := h.Send(payload); err != nil {
			r.log.Debug().Err(err).Str("handle_id", h.ID()).Msg("send to handle failed")
			continue
		}
		delivered++
	}
	return delivered
}

// Close closes every closable handle and clears the registry.
func (r *PresenceRegistry) Close() {
	r.mu.Lock()
	handles := make([]Handle, 0, len(r.handles))
	for _, set := range r.users {
		for _, h := range set {
			handles = append(handles, h)
		}
	}
	r.users = make(map[string]map[string]Handle)
	r.handles = make(map[string]string)
	r.updateGaugesLocked()
	r.mu.Unlock()

	for _, h := range handles {
		if c, ok := h.(closer); ok {
			c.Close(1001, "server shutdown")
		}
	}
}

func (r *PresenceRegistry) removeLocked(handleID string) bool {
	userID, ok := r.handles[handleID]
	if !ok {
		return false
	}
	delete(r.handles, handleID)

	if set := r.users[userID]; set != nil {
		delete(set, handleID)
		if len(set) == 0 {
			delete(r.users, userID)
		}
	}
	return true
}

func (r *PresenceRegistry) snapshotLocked() []string {
	ids := make([]string, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *PresenceRegistry) broadcastLocked() {
	r.updateGaugesLocked()

	payload, err := Encode(EventGetUsers, r.snapshotLocked())
	if err != nil {
		r.log.Error().Err(err).Msg("encode presence snapshot")
		return
	}
	for _, set := range r.users {
		for _, h := range set {
			if err := h.Send(payload); err != nil {
				r.log.Debug().Err(err).Str("handle_id", h.ID()).Msg("presence broadcast to handle failed")
			}
		}
	}
	metrics.PresenceBroadcasts.Inc()
}

func (r *PresenceRegistry) updateGaugesLocked() {
	metrics.OnlineUsers.Set(float64(len(r.users)))
	metrics.RegisteredConnections.Set(float64(len(r.handles)))
}
