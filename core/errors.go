package core

import (
	"errors"
	"fmt"
)

// Rule identifies one of the single-block validation rules.
type Rule int

const (
	RulePreviousHash Rule = iota + 1
	RuleDifficulty
	RuleID
	RuleHash
)

func (r Rule) String() string {
	switch r {
	case RulePreviousHash:
		return "wrong previous hash"
	case RuleDifficulty:
		return "invalid difficulty"
	case RuleID:
		return "not the next id"
	case RuleHash:
		return "invalid hash"
	default:
		return fmt.Sprintf("rule(%d)", int(r))
	}
}

// Sentinels matched by errors.Is against a *BlockError.
var (
	ErrPreviousHash = errors.New("wrong previous hash")
	ErrDifficulty   = errors.New("invalid difficulty")
	ErrID           = errors.New("not the next id")
	ErrHash         = errors.New("invalid hash")

	ErrEmptyChain     = errors.New("chain has no genesis block")
	ErrMissingBlock   = errors.New("chain contains a null block")
	ErrNotEmpty       = errors.New("genesis can only be installed on an empty ledger")
	ErrIrreconcilable = errors.New("local and remote chains are both invalid")
)

func (r Rule) sentinel() error {
	switch r {
	case RulePreviousHash:
		return ErrPreviousHash
	case RuleDifficulty:
		return ErrDifficulty
	case RuleID:
		return ErrID
	case RuleHash:
		return ErrHash
	}
	return nil
}

// BlockError reports the first rule a candidate block violates.
type BlockError struct {
	ID     uint64
	PrevID uint64
	Rule   Rule
}

func (e *BlockError) Error() string {
	if e.Rule == RuleID {
		return fmt.Sprintf("block with id %d is not the next block after the latest: %d", e.ID, e.PrevID)
	}
	return fmt.Sprintf("block with id %d has %s", e.ID, e.Rule)
}

// Is matches the rule sentinel.
func (e *BlockError) Is(target error) bool {
	s := e.Rule.sentinel()
	return s != nil && target == s
}

// ChainError reports the first invalid adjacent pair of a chain.
type ChainError struct {
	Index int
	Err   error
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("chain invalid at index %d: %v", e.Index, e.Err)
}

func (e *ChainError) Unwrap() error { return e.Err }

// IrreconcilableError carries the reasons both chains were rejected.
type IrreconcilableError struct {
	LocalLen  int
	RemoteLen int
	LocalErr  error
	RemoteErr error
}

func (e *IrreconcilableError) Error() string {
	return fmt.Sprintf("%v: local(len=%d): %v; remote(len=%d): %v",
		ErrIrreconcilable, e.LocalLen, e.LocalErr, e.RemoteLen, e.RemoteErr)
}

func (e *IrreconcilableError) Is(target error) bool { return target == ErrIrreconcilable }
