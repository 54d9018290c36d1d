// Package miner implements the proof-of-work nonce search.
package miner

import (
	"context"
	"encoding/hex"
	"errors"
	"math"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"gossipchain/core"
	"gossipchain/core/header"
)

// ErrExhausted is returned when every nonce has been tried.
var ErrExhausted = errors.New("nonce space exhausted")

// Miner searches for a nonce whose digest meets the difficulty.
type Miner struct {
	difficulty       core.Difficulty
	progressInterval uint64
	logger           *logrus.Entry
	now              func() time.Time
}

// New returns a miner. A zero progressInterval disables progress lines.
func New(difficulty core.Difficulty, progressInterval uint64, logger *logrus.Entry) *Miner {
	return &Miner{
		difficulty:       difficulty,
		progressInterval: progressInterval,
		logger:           logger,
		now:              time.Now,
	}
}

// Mine tries nonces from 0 upward until the digest of h satisfies the
// difficulty, and returns the nonce and hex hash. Cancellation is checked
// before every attempt.
func (m *Miner) Mine(ctx context.Context, h header.Header) (uint64, string, error) {
	m.logger.WithField("id", h.ID).Info("Mining block...")
	for nonce := uint64(0); ; nonce++ {
		if err := ctx.Err(); err != nil {
			m.logger.WithFields(logrus.Fields{"id": h.ID, "nonce": nonce}).Info("Mining cancelled")
			return 0, "", err
		}
		if m.progressInterval > 0 && nonce%m.progressInterval == 0 {
			m.logger.WithField("nonce", nonce).Debug("Mining progress")
		}
		h.Nonce = nonce
		digest := h.Digest()
		if m.difficulty.Satisfied(digest[:]) {
			hash := hex.EncodeToString(digest[:])
			m.logger.WithFields(logrus.Fields{
				"nonce":  nonce,
				"hash":   hash,
				"binary": core.BitString(digest[:]),
			}).Info("Mined!")
			return nonce, hash, nil
		}
		if nonce == math.MaxUint64 {
			return 0, "", ErrExhausted
		}
	}
}

// MineBlock seals a block carrying data on top of parent, stamped with the
// current time.
func (m *Miner) MineBlock(ctx context.Context, parent *core.Block, data string) (*core.Block, error) {
	h := header.Header{
		ID:           parent.ID + 1,
		Timestamp:    m.now().Unix(),
		PreviousHash: parent.Hash,
		Data:         data,
	}
	nonce, hash, err := m.Mine(ctx, h)
	if err != nil {
		return nil, err
	}
	h.Nonce = nonce
	return core.Seal(h, hash), nil
}

// Job is a request to mine Data on top of Parent.
type Job struct {
	Parent *core.Block
	Data   string
}

// Result is delivered once per started job.
type Result struct {
	Job   Job
	Block *core.Block
	Err   error
}

// Start mines job on its own goroutine and sends exactly one Result to out.
// The caller cancels ctx to abandon the job.
func (m *Miner) Start(ctx context.Context, job Job, out chan<- Result) {
	go func() {
		res := Result{Job: job}
		defer func() {
			if r := recover(); r != nil {
				m.logger.Errorf("[MINER] PANIC: %v\n%s", r, debug.Stack())
				res.Block = nil
				res.Err = errors.New("miner panicked")
			}
			out <- res
		}()
		res.Block, res.Err = m.MineBlock(ctx, job.Parent, job.Data)
	}()
}
