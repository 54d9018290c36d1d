// Package net implements the libp2p pub/sub transport and peer discovery.
package net

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	pb "github.com/libp2p/go-libp2p-pubsub/pb"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	mdns "github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/sha3"

	"gossipchain/core/config"
)

const (
	inboundBuffer   = 256
	peerEventBuffer = 256
)

// P2PNode is a libp2p host joined to the chain and block topics, with mDNS
// discovery on the local segment.
type P2PNode struct {
	Host   host.Host
	PubSub *pubsub.PubSub

	topics  map[string]*pubsub.Topic
	subs    []*pubsub.Subscription
	mdns    mdns.Service
	inbound chan Envelope
	peers   chan PeerEvent
	logger  *logrus.Entry

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// messageID content-addresses a pub/sub message by origin and payload.
func messageID(pmsg *pb.Message) string {
	h := sha3.New256()
	h.Write(pmsg.GetFrom())
	h.Write(pmsg.GetData())
	return hex.EncodeToString(h.Sum(nil))
}

// NewP2PNode creates a libp2p host, joins the configured topics with the
// configured router, and enables mDNS discovery.
func NewP2PNode(ctx context.Context, conf *config.Config) (*P2PNode, error) {
	logger := conf.Logger("p2p")

	h, err := libp2p.New(libp2p.ListenAddrStrings(
		fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", conf.ListenPort),
	))
	if err != nil {
		return nil, fmt.Errorf("create host: %w", err)
	}

	opts := []pubsub.Option{
		pubsub.WithMessageIdFn(messageID),
		pubsub.WithMaxMessageSize(maxWireMessage),
	}
	var ps *pubsub.PubSub
	switch conf.Router {
	case "gossip":
		ps, err = pubsub.NewGossipSub(ctx, h, opts...)
	case "flood", "":
		ps, err = pubsub.NewFloodSub(ctx, h, opts...)
	default:
		err = fmt.Errorf("unknown router %q", conf.Router)
	}
	if err != nil {
		h.Close()
		return nil, err
	}

	nctx, cancel := context.WithCancel(ctx)
	n := &P2PNode{
		Host:    h,
		PubSub:  ps,
		topics:  make(map[string]*pubsub.Topic),
		inbound: make(chan Envelope, inboundBuffer),
		peers:   make(chan PeerEvent, peerEventBuffer),
		logger:  logger,
		ctx:     nctx,
		cancel:  cancel,
	}

	for _, name := range []string{conf.ChainTopic, conf.BlockTopic} {
		if err := n.join(name); err != nil {
			n.Close()
			return nil, err
		}
	}

	h.Network().Notify(&network.NotifyBundle{
		ConnectedF: func(_ network.Network, c network.Conn) {
			n.emitPeer(PeerEvent{ID: c.RemotePeer().String()})
		},
		DisconnectedF: func(nw network.Network, c network.Conn) {
			if nw.Connectedness(c.RemotePeer()) != network.Connected {
				n.emitPeer(PeerEvent{ID: c.RemotePeer().String(), Gone: true})
			}
		},
	})

	n.mdns = mdns.NewMdnsService(h, conf.MDNSTag, &mdnsNotifee{node: n})
	if err := n.mdns.Start(); err != nil {
		n.Close()
		return nil, fmt.Errorf("start mdns: %w", err)
	}
	logger.WithField("tag", conf.MDNSTag).Info("mDNS peer discovery enabled")

	// Periodically log connected peers
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				logger.WithField("peers", n.Peers()).Debug("Connected peers")
			case <-nctx.Done():
				return
			}
		}
	}()

	return n, nil
}

func (n *P2PNode) join(name string) error {
	topic, err := n.PubSub.Join(name)
	if err != nil {
		return fmt.Errorf("join topic %s: %w", name, err)
	}
	sub, err := topic.Subscribe()
	if err != nil {
		return fmt.Errorf("subscribe topic %s: %w", name, err)
	}
	n.topics[name] = topic
	n.subs = append(n.subs, sub)
	n.wg.Add(1)
	go n.readLoop(name, sub)
	return nil
}

// readLoop forwards messages from other peers to Inbound.
func (n *P2PNode) readLoop(topic string, sub *pubsub.Subscription) {
	defer n.wg.Done()
	self := n.Host.ID()
	for {
		msg, err := sub.Next(n.ctx)
		if err != nil {
			if n.ctx.Err() == nil {
				n.logger.WithField("topic", topic).Errorf("Subscription error: %v", err)
			}
			return
		}
		from := msg.GetFrom()
		if from == self {
			continue
		}
		if len(msg.Data) > maxWireMessage {
			n.logger.WithFields(logrus.Fields{
				"topic": topic,
				"from":  from,
				"size":  len(msg.Data),
			}).Warn("Oversized message")
			continue
		}
		select {
		case n.inbound <- Envelope{Topic: topic, From: from.String(), Data: msg.Data}:
		case <-n.ctx.Done():
			return
		}
	}
}

func (n *P2PNode) emitPeer(ev PeerEvent) {
	select {
	case n.peers <- ev:
	default:
		n.logger.WithField("peer", ev.ID).Warn("Peer event dropped, consumer is behind")
	}
}

// ID returns the local peer identifier.
func (n *P2PNode) ID() string {
	return n.Host.ID().String()
}

// Publish sends data to every subscriber of topic.
func (n *P2PNode) Publish(ctx context.Context, topic string, data []byte) error {
	t, ok := n.topics[topic]
	if !ok {
		return fmt.Errorf("not joined to topic %s", topic)
	}
	if len(n.Host.Network().Peers()) == 0 {
		n.logger.WithField("topic", topic).Debug("No peers connected, publishing anyway")
	}
	return t.Publish(ctx, data)
}

// Inbound delivers payloads published by other peers.
func (n *P2PNode) Inbound() <-chan Envelope {
	return n.inbound
}

// PeerEvents delivers peer connect and disconnect notifications.
func (n *P2PNode) PeerEvents() <-chan PeerEvent {
	return n.peers
}

// Peers returns the identifiers of currently connected peers.
func (n *P2PNode) Peers() []string {
	ps := n.Host.Network().Peers()
	ids := make([]string, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.String())
	}
	return ids
}

// Connect dials a peer given as a full /p2p multiaddr.
func (n *P2PNode) Connect(ctx context.Context, addr string) error {
	maddr, err := ma.NewMultiaddr(addr)
	if err != nil {
		return fmt.Errorf("invalid multiaddr: %w", err)
	}
	pi, err := peer.AddrInfoFromP2pAddr(maddr)
	if err != nil {
		return fmt.Errorf("invalid AddrInfo: %w", err)
	}
	if err := n.Host.Connect(ctx, *pi); err != nil {
		return fmt.Errorf("connect %s: %w", pi.ID, err)
	}
	n.logger.WithField("peer", pi.ID.String()).Info("Connected to peer")
	return nil
}

// Addrs returns the full dialable addresses of the host.
func (n *P2PNode) Addrs() []string {
	var out []string
	for _, a := range n.Host.Addrs() {
		out = append(out, fmt.Sprintf("%s/p2p/%s", a, n.Host.ID()))
	}
	return out
}

// Close leaves every topic and shuts the host down.
func (n *P2PNode) Close() error {
	var err error
	n.closeOnce.Do(func() {
		n.cancel()
		if n.mdns != nil {
			n.mdns.Close()
		}
		for _, s := range n.subs {
			s.Cancel()
		}
		n.wg.Wait()
		for _, t := range n.topics {
			t.Close()
		}
		err = n.Host.Close()
	})
	return err
}

// mdnsNotifee dials every peer mDNS finds.
type mdnsNotifee struct {
	node *P2PNode
}

func (m *mdnsNotifee) HandlePeerFound(info peer.AddrInfo) {
	if info.ID == m.node.Host.ID() {
		return
	}
	m.node.logger.WithField("peer", info.ID.String()).Info("mDNS discovered peer")
	ctx, cancel := context.WithTimeout(m.node.ctx, 10*time.Second)
	defer cancel()
	if err := m.node.Host.Connect(ctx, info); err != nil {
		m.node.logger.WithField("peer", info.ID.String()).Warnf("Failed to connect to peer: %v", err)
	}
}
