package realtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu   sync.Mutex
	fail bool
	got  []string
}

func (c *fakeClient) Send(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return false
	}
	c.got = append(c.got, string(message))
	return true
}

func (c *fakeClient) Close() {}

func (c *fakeClient) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.got...)
}

func TestHub_BroadcastByNamespace(t *testing.T) {
	h := NewHub()
	sessions := &fakeClient{}
	tokens := &fakeClient{}
	all := &fakeClient{}
	h.Register("sessions", sessions)
	h.Register("tokens", tokens)
	h.Register(AllNamespaces, all)

	sent, _ := h.Broadcast("sessions", []byte("a"))
	require.Equal(t, 2, sent)
	sent, _ = h.Broadcast("tokens", []byte("b"))
	require.Equal(t, 2, sent)
	sent, _ = h.Broadcast("other", []byte("c"))
	require.Equal(t, 1, sent)

	require.Equal(t, []string{"a"}, sessions.messages())
	require.Equal(t, []string{"b"}, tokens.messages())
	require.Equal(t, []string{"a", "b", "c"}, all.messages())
}

func TestHub_Unregister(t *testing.T) {
	h := NewHub()
	c := &fakeClient{}
	h.Register("sessions", c)
	require.Equal(t, 1, h.Subscribers("sessions"))

	h.Unregister("sessions", c)
	require.Equal(t, 0, h.Subscribers("sessions"))
	sent, failed := h.Broadcast("sessions", []byte("x"))
	require.Zero(t, sent)
	require.Zero(t, failed)
	require.Empty(t, c.messages())

	// unknown clients and topics are ignored
	h.Unregister("missing", c)
}

func TestHub_FailedSendsAreReported(t *testing.T) {
	h := NewHub()
	h.Register("sessions", &fakeClient{fail: true})
	h.Register("sessions", &fakeClient{})

	sent, failed := h.Broadcast("sessions", []byte("x"))
	require.Equal(t, 1, sent)
	require.Equal(t, 1, failed)
}

func TestGetHub_Singleton(t *testing.T) {
	require.Same(t, GetHub(), GetHub())
}
