// Package node runs the gossip event loop that owns the local ledger.
package node

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"gossipchain/core"
	"gossipchain/core/config"
	"gossipchain/miner"
	"gossipchain/net"
)

// ErrTransportClosed is returned by Run when the transport stops delivering.
var ErrTransportClosed = errors.New("transport closed")

// Transport is the pub/sub collaborator. *net.P2PNode satisfies it.
type Transport interface {
	ID() string
	Publish(ctx context.Context, topic string, data []byte) error
	Inbound() <-chan net.Envelope
	PeerEvents() <-chan net.PeerEvent
}

// Stats is a snapshot of the node state.
type Stats struct {
	ID      string
	Len     int
	Tip     *core.Block
	Peers   int
	Pending int
	Mining  bool
}

type job struct {
	parentHash string
	data       string
	cancel     context.CancelFunc
}

// Node composes local commands, mined blocks and inbound gossip into ledger
// operations. Every ledger access happens on the Run goroutine.
type Node struct {
	conf       *config.Config
	id         string
	chain      *core.Chain
	miner      *miner.Miner
	trans      Transport
	quarantine *core.QuarantineStore
	logger     *logrus.Entry

	peers    map[string]struct{}
	pending  []string
	job      *job
	commands chan Command
	// one job in flight at a time, so the miner never blocks on send
	mined    chan miner.Result
	faults   chan error
	rng      *rand.Rand
}

// NewNode creates a node whose ledger holds only the genesis block. quarantine
// may be nil.
func NewNode(conf *config.Config, trans Transport, quarantine *core.QuarantineStore) (*Node, error) {
	difficulty := core.Difficulty(conf.DifficultyBits)
	if difficulty > core.MaxDifficulty {
		return nil, errors.New("difficulty exceeds digest length")
	}
	validator := core.NewValidator(difficulty, conf.Logger("ledger"))
	chain := core.NewChain(validator, nil)
	if err := chain.AppendGenesis(); err != nil {
		return nil, err
	}
	return &Node{
		conf:       conf,
		id:         trans.ID(),
		chain:      chain,
		miner:      miner.New(difficulty, conf.ProgressInterval, conf.Logger("miner")),
		trans:      trans,
		quarantine: quarantine,
		logger:     conf.Logger("node"),
		peers:      make(map[string]struct{}),
		commands:   make(chan Command),
		mined:      make(chan miner.Result, 1),
		faults:     make(chan error, 16),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// ID returns the local peer identifier.
func (n *Node) ID() string { return n.id }

// Faults delivers irreconcilable-state errors for the operator.
func (n *Node) Faults() <-chan error { return n.faults }

func (n *Node) initDelay() time.Duration {
	d := n.conf.InitDelay
	if n.conf.InitJitter > 0 {
		d += time.Duration(n.rng.Int63n(int64(n.conf.InitJitter)))
	}
	return d
}

// Run processes events one at a time until ctx is done, the transport closes,
// or an irreconcilable state is hit with HaltOnIrreconcilable set.
func (n *Node) Run(ctx context.Context) error {
	delay := n.initDelay()
	initTimer := time.NewTimer(delay)
	defer initTimer.Stop()
	defer n.abandonJob()

	n.logger.WithFields(logrus.Fields{
		"id":         n.id,
		"init_delay": delay,
		"difficulty": n.chain.Validator().Difficulty().String(),
	}).Info("Node started")

	inbound := n.trans.Inbound()
	peerEvents := n.trans.PeerEvents()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-initTimer.C:
			n.handleInit(ctx)
		case cmd := <-n.commands:
			n.handleCommand(ctx, cmd)
		case res := <-n.mined:
			n.handleMined(ctx, res)
		case env, ok := <-inbound:
			if !ok {
				return ErrTransportClosed
			}
			if err := n.handleEnvelope(ctx, env); err != nil {
				return err
			}
		case ev, ok := <-peerEvents:
			if !ok {
				peerEvents = nil
				continue
			}
			n.handlePeerEvent(ev)
		}
	}
}

func (n *Node) handleInit(ctx context.Context) {
	n.logger.WithField("peers", len(n.peers)).Info("Sending init chain request")
	data, err := net.EncodeChainRequest(net.ChainRequest{RequestingPeer: n.id})
	if err != nil {
		n.logger.Errorf("Encode chain request: %v", err)
		return
	}
	n.publish(ctx, n.conf.ChainTopic, data)
}

func (n *Node) handlePeerEvent(ev net.PeerEvent) {
	if ev.ID == n.id {
		return
	}
	if ev.Gone {
		delete(n.peers, ev.ID)
		n.logger.WithField("peer", ev.ID).Info("Peer gone")
		return
	}
	if _, ok := n.peers[ev.ID]; !ok {
		n.peers[ev.ID] = struct{}{}
		n.logger.WithField("peer", ev.ID).Info("Peer appeared")
	}
}

func (n *Node) handleEnvelope(ctx context.Context, env net.Envelope) error {
	msg, err := net.Decode(env, n.conf.ChainTopic, n.conf.BlockTopic)
	if err != nil {
		n.logger.WithFields(logrus.Fields{
			"topic": env.Topic,
			"from":  env.From,
		}).Warnf("Dropping message: %v", err)
		return nil
	}
	switch msg.Kind {
	case net.KindChainRequest:
		n.handleChainRequest(ctx, msg)
	case net.KindChainResponse:
		return n.handleChainResponse(ctx, msg)
	case net.KindNewBlock:
		n.handleNewBlock(msg)
	}
	return nil
}

func (n *Node) handleChainRequest(ctx context.Context, msg net.Message) {
	req := msg.Request
	if req.Target != "" && req.Target != n.id {
		return
	}
	blocks := n.chain.Blocks()
	data, err := net.EncodeChainResponse(net.ChainResponse{
		Blocks:      blocks,
		AddressedTo: req.RequestingPeer,
	})
	if err != nil {
		n.logger.Errorf("Encode chain response: %v", err)
		return
	}
	n.logger.WithFields(logrus.Fields{
		"to":  req.RequestingPeer,
		"len": len(blocks),
	}).Info("Sending local chain")
	n.publish(ctx, n.conf.ChainTopic, data)
}

func (n *Node) handleChainResponse(ctx context.Context, msg net.Message) error {
	resp := msg.Response
	if resp.AddressedTo != n.id {
		return nil
	}
	n.logger.WithFields(logrus.Fields{
		"from": msg.From,
		"len":  len(resp.Blocks),
	}).Info("Received chain response")
	adopted, err := n.chain.Reconcile(resp.Blocks)
	if err != nil {
		return n.handleFault(resp.Blocks, err)
	}
	if adopted {
		n.chain.LogDiagnostics()
		n.tipChanged()
	}
	return nil
}

func (n *Node) handleNewBlock(msg net.Message) {
	if err := n.chain.TryAppend(msg.Block); err != nil {
		n.logger.WithFields(logrus.Fields{
			"from": msg.From,
			"id":   msg.Block.ID,
		}).Infof("Discarding announced block: %v", err)
		return
	}
	n.logger.WithFields(logrus.Fields{
		"from": msg.From,
		"id":   msg.Block.ID,
	}).Info("Received new block")
	n.tipChanged()
}

// handleFault reports an irreconcilable state. It returns the error only when
// the node is configured to halt.
func (n *Node) handleFault(remote []*core.Block, err error) error {
	n.logger.WithError(err).Error("Irreconcilable chains, keeping local ledger")
	if n.quarantine != nil {
		key, qerr := n.quarantine.SaveConflict(n.chain.Blocks(), remote, err)
		if qerr != nil {
			n.logger.Errorf("Quarantine failed: %v", qerr)
		} else {
			n.logger.WithField("key", key).Warn("Conflicting chains quarantined")
		}
	}
	select {
	case n.faults <- err:
	default:
		n.logger.Warn("Fault channel full, dropping fault")
	}
	if n.conf.HaltOnIrreconcilable {
		return err
	}
	return nil
}

// tipChanged cancels a mining job whose parent is no longer the tip. Its
// payload is requeued when the cancelled result comes back.
func (n *Node) tipChanged() {
	if n.job == nil {
		return
	}
	if tip := n.chain.Tip(); tip != nil && tip.Hash != n.job.parentHash {
		n.logger.WithField("tip", tip.ID).Info("Chain advanced, restarting mining on new tip")
		n.job.cancel()
	}
}

func (n *Node) startNextJob(ctx context.Context) {
	if n.job != nil || len(n.pending) == 0 {
		return
	}
	data := n.pending[0]
	n.pending = n.pending[1:]
	parent := n.chain.Tip()
	jctx, cancel := context.WithCancel(ctx)
	n.job = &job{parentHash: parent.Hash, data: data, cancel: cancel}
	n.miner.Start(jctx, miner.Job{Parent: parent, Data: data}, n.mined)
}

func (n *Node) requeue(data string) {
	n.pending = append([]string{data}, n.pending...)
}

func (n *Node) handleMined(ctx context.Context, res miner.Result) {
	if n.job != nil {
		n.job.cancel()
		n.job = nil
	}
	defer n.startNextJob(ctx)

	if res.Err != nil {
		if errors.Is(res.Err, context.Canceled) && ctx.Err() == nil {
			n.requeue(res.Job.Data)
			return
		}
		n.logger.WithField("data", res.Job.Data).Errorf("Mining failed: %v", res.Err)
		return
	}

	if err := n.chain.TryAppend(res.Block); err != nil {
		if errors.Is(err, core.ErrPreviousHash) || errors.Is(err, core.ErrID) {
			n.logger.WithField("id", res.Block.ID).Info("Mined block is stale, requeueing payload")
			n.requeue(res.Job.Data)
			return
		}
		n.logger.WithField("id", res.Block.ID).Errorf("Mined block rejected: %v", err)
		return
	}

	data, err := net.EncodeNewBlock(res.Block)
	if err != nil {
		n.logger.Errorf("Encode block: %v", err)
		return
	}
	n.logger.WithField("id", res.Block.ID).Info("Broadcasting new block")
	n.publish(ctx, n.conf.BlockTopic, data)
}

func (n *Node) publish(ctx context.Context, topic string, data []byte) {
	if err := n.trans.Publish(ctx, topic, data); err != nil {
		n.logger.WithField("topic", topic).Errorf("Publish failed: %v", err)
	}
}

// abandonJob cancels the running job and waits for its result, so no miner
// goroutine outlives Run.
func (n *Node) abandonJob() {
	if n.job == nil {
		return
	}
	n.job.cancel()
	n.job = nil
	<-n.mined
}

func (n *Node) peerList() []string {
	out := make([]string, 0, len(n.peers))
	for p := range n.peers {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (n *Node) stats() Stats {
	return Stats{
		ID:      n.id,
		Len:     n.chain.Len(),
		Tip:     n.chain.Tip(),
		Peers:   len(n.peers),
		Pending: len(n.pending),
		Mining:  n.job != nil,
	}
}
