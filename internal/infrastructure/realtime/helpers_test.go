package realtime

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	id string

	mu     sync.Mutex
	frames []Envelope
	closed bool
}

func newFakeHandle(id string) *fakeHandle {
	return &fakeHandle{id: id}
}

func (h *fakeHandle) ID() string { return h.id }

func (h *fakeHandle) Send(payload []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrConnectionClosed
	}
	env, err := Decode(payload)
	if err != nil {
		return err
	}
	h.frames = append(h.frames, env)
	return nil
}

func (h *fakeHandle) Close(int, string) {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
}

func (h *fakeHandle) events(name string) []Envelope {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Envelope
	for _, f := range h.frames {
		if f.Event == name {
			out = append(out, f)
		}
	}
	return out
}

func (h *fakeHandle) lastPresence(t *testing.T) []string {
	t.Helper()
	frames := h.events(EventGetUsers)
	require.NotEmpty(t, frames, "handle %s received no presence frame", h.id)
	var ids []string
	require.NoError(t, frames[len(frames)-1].DecodeData(&ids))
	return ids
}

func (h *fakeHandle) messages(t *testing.T) []GetMessagePayload {
	t.Helper()
	var out []GetMessagePayload
	for _, f := range h.events(EventGetMessage) {
		var p GetMessagePayload
		require.NoError(t, f.DecodeData(&p))
		out = append(out, p)
	}
	return out
}

type failingHandle struct{ id string }

func (h failingHandle) ID() string        { return h.id }
func (h failingHandle) Send([]byte) error { return errors.New("broken pipe") }

func newTestRegistry() *PresenceRegistry {
	return NewPresenceRegistry(zerolog.Nop())
}
