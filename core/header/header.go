// Package header defines the canonical digest input of a ledger block.
package header

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"unicode/utf8"

	"github.com/ugorji/go/codec"
)

// Header is the set of block fields covered by the block hash.
// The hash itself is not part of the header.
type Header struct {
	ID           uint64
	Timestamp    int64
	PreviousHash string
	Data         string
	Nonce        uint64
}

// jsonHandle encodes maps with sorted keys and leaves <, > and & unescaped,
// so the preimage is the compact sorted-key JSON object every peer produces.
var jsonHandle = func() *codec.JsonHandle {
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	jh.HTMLCharsAsIs = true
	return jh
}()

// Encode returns the canonical preimage of the header:
//
//	{"data":..,"id":..,"nonce":..,"previous_hash":..,"timestamp":..}
func (h Header) Encode() ([]byte, error) {
	fields := map[string]interface{}{
		"id":            h.ID,
		"timestamp":     h.Timestamp,
		"previous_hash": h.PreviousHash,
		"data":          h.Data,
		"nonce":         h.Nonce,
	}
	var out []byte
	if err := codec.NewEncoderBytes(&out, jsonHandle).Encode(fields); err != nil {
		return nil, fmt.Errorf("encode header %d: %w", h.ID, err)
	}
	return rawLineSeparators(out), nil
}

// rawLineSeparators undoes the codec's \u2028 and \u2029 escapes so those
// characters appear as plain UTF-8, like any other non-ASCII text.
func rawLineSeparators(enc []byte) []byte {
	if !bytes.Contains(enc, []byte(`\u202`)) {
		return enc
	}
	out := make([]byte, 0, len(enc))
	for i := 0; i < len(enc); i++ {
		if enc[i] != '\\' || i+1 == len(enc) {
			out = append(out, enc[i])
			continue
		}
		if i+5 < len(enc) && string(enc[i+1:i+5]) == "u202" && (enc[i+5] == '8' || enc[i+5] == '9') {
			r := '\u2028'
			if enc[i+5] == '9' {
				r = '\u2029'
			}
			out = utf8.AppendRune(out, r)
			i += 5
			continue
		}
		// any other escape, including an escaped backslash, is copied whole
		out = append(out, enc[i], enc[i+1])
		i++
	}
	return out
}

// Digest returns the SHA-256 of the canonical encoding.
func (h Header) Digest() [32]byte {
	pre, err := h.Encode()
	if err != nil {
		// Only strings and integers are encoded; failure means the codec is broken.
		panic(err)
	}
	return sha256.Sum256(pre)
}

// Hash returns the lowercase hex form of Digest.
func (h Header) Hash() string {
	d := h.Digest()
	return hex.EncodeToString(d[:])
}
