package core

import (
	"github.com/sirupsen/logrus"
)

// Chain is the local ledger. It is owned by a single goroutine (the node event
// loop) and is not safe for concurrent use.
type Chain struct {
	blocks    []*Block
	validator *Validator
	logger    *logrus.Entry
}

// NewChain creates an empty ledger. Call AppendGenesis before use.
func NewChain(validator *Validator, logger *logrus.Entry) *Chain {
	if logger == nil {
		logger = validator.logger
	}
	return &Chain{validator: validator, logger: logger}
}

// Validator returns the rules this ledger enforces.
func (c *Chain) Validator() *Validator { return c.validator }

// AppendGenesis installs the hard-coded genesis block.
func (c *Chain) AppendGenesis() error {
	if len(c.blocks) != 0 {
		return ErrNotEmpty
	}
	g := NewGenesisBlock()
	c.blocks = append(c.blocks, g)
	c.logger.WithField("hash", g.Hash).Info("Created genesis block")
	return nil
}

// TryAppend validates candidate against the current tip and appends it. On
// failure the ledger is unchanged.
func (c *Chain) TryAppend(candidate *Block) error {
	if candidate == nil {
		return ErrMissingBlock
	}
	tip := c.Tip()
	if tip == nil {
		return ErrEmptyChain
	}
	if err := c.validator.ValidateBlock(candidate, tip); err != nil {
		c.logger.WithField("id", candidate.ID).WithError(err).Debug("Could not add block - invalid")
		return err
	}
	cp := *candidate
	c.blocks = append(c.blocks, &cp)
	c.logger.WithFields(logrus.Fields{
		"id":   cp.ID,
		"hash": cp.Hash,
	}).Info("Accepted block")
	return nil
}

// Reconcile runs fork choice between the local ledger and remote. It reports
// whether remote was adopted. On an *IrreconcilableError the ledger is left as
// it was.
func (c *Chain) Reconcile(remote []*Block) (bool, error) {
	takeRemote, err := c.validator.preferRemote(c.blocks, remote)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"local_len":  len(c.blocks),
			"remote_len": len(remote),
		}).Error(err.Error())
		return false, err
	}
	if !takeRemote {
		c.logger.WithFields(logrus.Fields{
			"local_len":  len(c.blocks),
			"remote_len": len(remote),
		}).Debug("Kept local chain")
		return false, nil
	}
	c.blocks = CloneBlocks(remote)
	c.logger.WithFields(logrus.Fields{
		"len": len(c.blocks),
		"tip": c.Tip().Hash,
	}).Info("Adopted remote chain")
	return true, nil
}

// Blocks returns a copy of the ledger.
func (c *Chain) Blocks() []*Block {
	return CloneBlocks(c.blocks)
}

// Len returns the number of blocks, genesis included.
func (c *Chain) Len() int { return len(c.blocks) }

// Tip returns a copy of the last block, or nil on an empty ledger.
func (c *Chain) Tip() *Block {
	if len(c.blocks) == 0 {
		return nil
	}
	cp := *c.blocks[len(c.blocks)-1]
	return &cp
}

// LogDiagnostics logs the ledger head.
func (c *Chain) LogDiagnostics() {
	tip := c.Tip()
	if tip == nil {
		c.logger.Debug("[DIAG] empty ledger")
		return
	}
	c.logger.WithFields(logrus.Fields{
		"len":  len(c.blocks),
		"tip":  tip.ID,
		"hash": tip.Hash,
	}).Debug("[DIAG] chain head")
}
