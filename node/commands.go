package node

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"gossipchain/core"
)

// ErrInvalidPayload is returned for block payloads that are not valid UTF-8.
// Peers decode such text lossily and would reject the block hash.
var ErrInvalidPayload = errors.New("block payload is not valid UTF-8")

// CommandKind selects a local operator command.
type CommandKind int

const (
	CmdListPeers CommandKind = iota + 1
	CmdListChain
	CmdCreateBlock
	CmdStats
)

// Command is a request handled on the event loop. Reply must have room for
// one value.
type Command struct {
	Kind    CommandKind
	Payload string
	Reply   chan Reply
}

// Reply carries the result of a Command. Only the fields for its kind are set.
type Reply struct {
	Peers  []string
	Blocks []*core.Block
	Queued int
	Stats  Stats
	Err    error
}

func (n *Node) handleCommand(ctx context.Context, cmd Command) {
	var r Reply
	switch cmd.Kind {
	case CmdListPeers:
		r.Peers = n.peerList()
		n.logger.WithField("peers", len(r.Peers)).Info("Discovered peers")
	case CmdListChain:
		r.Blocks = n.chain.Blocks()
		n.logger.WithField("len", len(r.Blocks)).Info("Local chain")
	case CmdCreateBlock:
		if !utf8.ValidString(cmd.Payload) {
			r.Err = ErrInvalidPayload
			n.logger.WithField("payload", cmd.Payload).Warn("Refusing to mine invalid UTF-8 payload")
			break
		}
		n.pending = append(n.pending, cmd.Payload)
		n.startNextJob(ctx)
		r.Queued = len(n.pending)
		if n.job != nil {
			r.Queued++
		}
		n.logger.WithField("queued", r.Queued).Info("Block queued for mining")
	case CmdStats:
		r.Stats = n.stats()
	default:
		r.Err = fmt.Errorf("unknown command %d", cmd.Kind)
	}
	cmd.Reply <- r
}

// Submit hands cmd to the event loop and waits for the reply.
func (n *Node) Submit(ctx context.Context, cmd Command) (Reply, error) {
	if cmd.Reply == nil {
		cmd.Reply = make(chan Reply, 1)
	}
	select {
	case n.commands <- cmd:
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
	select {
	case r := <-cmd.Reply:
		return r, r.Err
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}

// ListPeers returns the sorted identifiers of known peers.
func (n *Node) ListPeers(ctx context.Context) ([]string, error) {
	r, err := n.Submit(ctx, Command{Kind: CmdListPeers})
	return r.Peers, err
}

// ListChain returns a copy of the local ledger.
func (n *Node) ListChain(ctx context.Context) ([]*core.Block, error) {
	r, err := n.Submit(ctx, Command{Kind: CmdListChain})
	return r.Blocks, err
}

// CreateBlock queues payload for mining and returns the number of jobs queued
// or running. Mining completes asynchronously.
func (n *Node) CreateBlock(ctx context.Context, payload string) (int, error) {
	r, err := n.Submit(ctx, Command{Kind: CmdCreateBlock, Payload: payload})
	return r.Queued, err
}

// Stats returns a snapshot of the node state.
func (n *Node) Stats(ctx context.Context) (Stats, error) {
	r, err := n.Submit(ctx, Command{Kind: CmdStats})
	return r.Stats, err
}
