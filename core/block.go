package core

import (
	"encoding/json"
	"fmt"

	"gossipchain/core/header"
)

// Genesis values are hard-coded and shared by every node.
const (
	GenesisPreviousHash = "genesis"
	GenesisData         = "genesis!"
	GenesisNonce        = 2863
	GenesisHash         = "0000f816a87f806bb0073dcf026a64fb40c946b5abee2573702828694d5b4c43"
	GenesisTimestamp    = 1640995200
)

// Block is a sealed ledger entry. The JSON shape is the wire format.
type Block struct {
	ID           uint64 `json:"id"`
	Hash         string `json:"hash"`
	PreviousHash string `json:"previous_hash"`
	Timestamp    int64  `json:"timestamp"`
	Data         string `json:"data"`
	Nonce        uint64 `json:"nonce"`
}

// NewGenesisBlock returns the trusted first block.
func NewGenesisBlock() *Block {
	return &Block{
		ID:           0,
		Hash:         GenesisHash,
		PreviousHash: GenesisPreviousHash,
		Timestamp:    GenesisTimestamp,
		Data:         GenesisData,
		Nonce:        GenesisNonce,
	}
}

// Header returns the fields covered by the block hash.
func (b *Block) Header() header.Header {
	return header.Header{
		ID:           b.ID,
		Timestamp:    b.Timestamp,
		PreviousHash: b.PreviousHash,
		Data:         b.Data,
		Nonce:        b.Nonce,
	}
}

// Seal builds a block from a mined header and its hex hash.
func Seal(h header.Header, hash string) *Block {
	return &Block{
		ID:           h.ID,
		Hash:         hash,
		PreviousHash: h.PreviousHash,
		Timestamp:    h.Timestamp,
		Data:         h.Data,
		Nonce:        h.Nonce,
	}
}

func (b *Block) String() string {
	return fmt.Sprintf("Block{ID: %d, Hash: %.12s, Prev: %.12s, Data: %q}", b.ID, b.Hash, b.PreviousHash, b.Data)
}

// Encode serializes the block to JSON for storage/transmission.
func (b *Block) Encode() ([]byte, error) {
	return json.Marshal(b)
}

// DecodeBlock deserializes a block from JSON.
func DecodeBlock(data []byte) (*Block, error) {
	var block Block
	if err := json.Unmarshal(data, &block); err != nil {
		return nil, fmt.Errorf("decode block: %w", err)
	}
	return &block, nil
}

// CloneBlocks returns a copy of the slice and of every block in it.
func CloneBlocks(blocks []*Block) []*Block {
	out := make([]*Block, len(blocks))
	for i, b := range blocks {
		if b == nil {
			continue
		}
		cp := *b
		out[i] = &cp
	}
	return out
}
