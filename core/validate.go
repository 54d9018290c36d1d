package core

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Validator owns the block and chain rules for a fixed difficulty.
type Validator struct {
	difficulty Difficulty
	logger     *logrus.Entry
}

// NewValidator returns a validator enforcing difficulty. A nil logger discards
// rule violations.
func NewValidator(difficulty Difficulty, logger *logrus.Entry) *Validator {
	if logger == nil {
		l := logrus.New()
		l.Out = io.Discard
		logger = logrus.NewEntry(l)
	}
	return &Validator{difficulty: difficulty, logger: logger}
}

// Difficulty returns the enforced number of leading zero bits.
func (v *Validator) Difficulty() Difficulty { return v.difficulty }

// ValidateBlock checks candidate against its predecessor. Rules run in a fixed
// order and the first violation is returned as a *BlockError.
func (v *Validator) ValidateBlock(candidate, prev *Block) error {
	err := checkBlock(v.difficulty, candidate, prev)
	if err != nil {
		v.logger.WithFields(logrus.Fields{
			"id":   candidate.ID,
			"rule": err.Rule.String(),
		}).Warn(err.Error())
		return err
	}
	return nil
}

func checkBlock(d Difficulty, candidate, prev *Block) *BlockError {
	fail := func(r Rule) *BlockError {
		return &BlockError{ID: candidate.ID, PrevID: prev.ID, Rule: r}
	}
	if candidate.PreviousHash != prev.Hash {
		return fail(RulePreviousHash)
	}
	if !d.SatisfiedHex(candidate.Hash) {
		return fail(RuleDifficulty)
	}
	if candidate.ID != prev.ID+1 {
		return fail(RuleID)
	}
	if candidate.Header().Hash() != candidate.Hash {
		return fail(RuleHash)
	}
	return nil
}

// ValidateChain accepts the genesis block as given and requires every later
// block to pass ValidateBlock against its predecessor.
func (v *Validator) ValidateChain(chain []*Block) error {
	if len(chain) == 0 {
		return ErrEmptyChain
	}
	for i, b := range chain {
		if b == nil {
			return &ChainError{Index: i, Err: ErrMissingBlock}
		}
	}
	for i := 1; i < len(chain); i++ {
		if err := v.ValidateBlock(chain[i], chain[i-1]); err != nil {
			return &ChainError{Index: i, Err: err}
		}
	}
	return nil
}
