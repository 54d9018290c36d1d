// Package core implements the ledger, its validation rules and fork choice.
package core

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Difficulty is the number of leading zero bits a block digest must carry.
type Difficulty uint

// MaxDifficulty is the bit length of a SHA-256 digest.
const MaxDifficulty Difficulty = 256

// BitString renders the digest with every byte padded to eight bits.
func BitString(digest []byte) string {
	var sb strings.Builder
	sb.Grow(len(digest) * 8)
	for _, b := range digest {
		fmt.Fprintf(&sb, "%08b", b)
	}
	return sb.String()
}

// Satisfied reports whether digest begins with d zero bits.
func (d Difficulty) Satisfied(digest []byte) bool {
	if uint(d) > uint(len(digest))*8 {
		return false
	}
	full := int(d / 8)
	for i := 0; i < full; i++ {
		if digest[i] != 0 {
			return false
		}
	}
	rem := d % 8
	if rem == 0 {
		return true
	}
	return digest[full]>>(8-rem) == 0
}

// SatisfiedHex is Satisfied for a hex encoded digest. Undecodable input never
// satisfies the predicate.
func (d Difficulty) SatisfiedHex(hash string) bool {
	digest, err := hex.DecodeString(hash)
	if err != nil || len(digest) == 0 {
		return false
	}
	return d.Satisfied(digest)
}

func (d Difficulty) String() string {
	return fmt.Sprintf("%d bits", uint(d))
}
