package node

import (
	"context"
	"sync"
	"testing"
	"time"

	"gossipchain/net"
)

// hub is an in-memory pub/sub network. A publish reaches every other member.
type hub struct {
	mu      sync.Mutex
	members map[string]*fakeTransport
}

func newHub() *hub {
	return &hub{members: make(map[string]*fakeTransport)}
}

type fakeTransport struct {
	id      string
	hub     *hub
	inbound chan net.Envelope
	peers   chan net.PeerEvent
	sent    chan net.Envelope
}

// join adds a member and announces it to everyone already present.
func (h *hub) join(id string) *fakeTransport {
	ft := &fakeTransport{
		id:      id,
		hub:     h,
		inbound: make(chan net.Envelope, 256),
		peers:   make(chan net.PeerEvent, 256),
		sent:    make(chan net.Envelope, 256),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for other, m := range h.members {
		m.peers <- net.PeerEvent{ID: id}
		ft.peers <- net.PeerEvent{ID: other}
	}
	h.members[id] = ft
	return ft
}

func (h *hub) leave(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.members, id)
	for _, m := range h.members {
		m.peers <- net.PeerEvent{ID: id, Gone: true}
	}
}

func (f *fakeTransport) ID() string { return f.id }

func (f *fakeTransport) Publish(ctx context.Context, topic string, data []byte) error {
	env := net.Envelope{Topic: topic, From: f.id, Data: data}
	f.sent <- env
	f.hub.mu.Lock()
	defer f.hub.mu.Unlock()
	for id, m := range f.hub.members {
		if id != f.id {
			m.inbound <- env
		}
	}
	return nil
}

func (f *fakeTransport) Inbound() <-chan net.Envelope { return f.inbound }

func (f *fakeTransport) PeerEvents() <-chan net.PeerEvent { return f.peers }

// inject delivers a payload as if a remote peer had published it.
func (f *fakeTransport) inject(from, topic string, data []byte) {
	f.inbound <- net.Envelope{Topic: topic, From: from, Data: data}
}

// expectSent waits for a publish on topic accepted by match, skipping others.
func (f *fakeTransport) expectSent(t *testing.T, topic string, match func(net.Message) bool) net.Message {
	t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case env := <-f.sent:
			if env.Topic != topic {
				continue
			}
			msg, err := net.Decode(env, "chains", "blocks")
			if err != nil {
				t.Fatalf("node published undecodable payload: %v", err)
			}
			if match == nil || match(msg) {
				return msg
			}
		case <-timeout:
			t.Fatalf("nothing matching published on %s", topic)
			return net.Message{}
		}
	}
}
