package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"gossipchain/core"
	"gossipchain/net"
	"gossipchain/node"
)

// NewRunCmd returns the command that starts a node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runChaind,
	}

	AddRunFlags(cmd)

	return cmd
}

// AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {
	AddConfigFlags(cmd)

	cmd.Flags().Int("port", conf.ListenPort, "TCP port of the libp2p host (0 picks a free port)")
	cmd.Flags().String("peer", conf.PeerMultiaddr, "Multiaddr of a peer to dial at startup")
	cmd.Flags().String("mdns-tag", conf.MDNSTag, "mDNS service name for local discovery")
	cmd.Flags().String("router", conf.Router, "Pub/sub router: flood or gossip")
	cmd.Flags().String("chain-topic", conf.ChainTopic, "Topic for chain requests and responses")
	cmd.Flags().String("block-topic", conf.BlockTopic, "Topic for new block announcements")

	cmd.Flags().Uint("difficulty", conf.DifficultyBits, "Leading zero bits required in a block hash")
	cmd.Flags().Uint64("progress-interval", conf.ProgressInterval, "Nonces between miner progress lines")
	cmd.Flags().Duration("init-delay", conf.InitDelay, "Wait before the startup chain request")
	cmd.Flags().Duration("init-jitter", conf.InitJitter, "Random extra wait added to init-delay")

	cmd.Flags().Bool("halt-on-irreconcilable", conf.HaltOnIrreconcilable, "Stop when local and remote chains are both invalid")
	cmd.Flags().Bool("quarantine", conf.Quarantine, "Store irreconcilable chain pairs in the data directory")
}

func runChaind(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := conf.Logger("chaind")
	logger.WithField("difficulty", conf.DifficultyBits).Info("Starting node")

	p2p, err := net.NewP2PNode(ctx, conf)
	if err != nil {
		return err
	}
	defer p2p.Close()

	logger.WithField("id", p2p.ID()).Info("P2P node started")
	for _, addr := range p2p.Addrs() {
		logger.Infof("Listening on: %s", addr)
	}

	if conf.PeerMultiaddr != "" {
		if err := p2p.Connect(ctx, conf.PeerMultiaddr); err != nil {
			logger.Warnf("Failed to connect to peer: %v", err)
		}
	}

	var store *core.QuarantineStore
	if conf.Quarantine {
		store, err = core.OpenQuarantineStore(conf.DataDir, p2p.ID())
		if err != nil {
			logger.Warnf("Running without quarantine: %v", err)
			store = nil
		} else {
			defer store.Close()
		}
	}

	n, err := node.NewNode(conf, p2p, store)
	if err != nil {
		return err
	}

	go NewConsole(n, os.Stdin, os.Stdout).Run(ctx)

	go func() {
		for {
			select {
			case err := <-n.Faults():
				pterm.Error.Println(err.Error())
			case <-ctx.Done():
				return
			}
		}
	}()

	err = n.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("Shutting down...")
		return nil
	}
	return err
}
