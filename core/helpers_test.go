package core

import (
	"encoding/hex"
	"fmt"
	"testing"

	"gossipchain/core/header"
)

const testDifficulty Difficulty = 8

// mineOn searches nonces for a child of parent carrying data.
func mineOn(t testing.TB, d Difficulty, parent *Block, data string) *Block {
	t.Helper()
	return mineHeader(t, d, header.Header{
		ID:           parent.ID + 1,
		Timestamp:    parent.Timestamp + 1,
		PreviousHash: parent.Hash,
		Data:         data,
	})
}

func mineHeader(t testing.TB, d Difficulty, h header.Header) *Block {
	t.Helper()
	for nonce := uint64(0); nonce < 1<<24; nonce++ {
		h.Nonce = nonce
		digest := h.Digest()
		if d.Satisfied(digest[:]) {
			return Seal(h, hex.EncodeToString(digest[:]))
		}
	}
	t.Fatalf("no nonce found for %q", h.Data)
	return nil
}

// buildChain returns genesis followed by n mined blocks tagged with tag.
func buildChain(t testing.TB, n int, tag string) []*Block {
	t.Helper()
	blocks := []*Block{NewGenesisBlock()}
	for i := 0; i < n; i++ {
		blocks = append(blocks, mineOn(t, testDifficulty, blocks[len(blocks)-1], fmt.Sprintf("%s-%d", tag, i)))
	}
	return blocks
}

func newTestChain(t testing.TB) *Chain {
	t.Helper()
	c := NewChain(NewValidator(testDifficulty, nil), nil)
	if err := c.AppendGenesis(); err != nil {
		t.Fatalf("AppendGenesis: %v", err)
	}
	return c
}
