package header

import (
	"testing"
)

func TestEncodeSortedKeys(t *testing.T) {
	cases := []struct {
		name string
		h    Header
		pre  string
		hash string
	}{
		{
			name: "plain",
			h:    Header{ID: 1, Timestamp: 100, PreviousHash: "abc", Data: "hello", Nonce: 7},
			pre:  `{"data":"hello","id":1,"nonce":7,"previous_hash":"abc","timestamp":100}`,
			hash: "a85cc56f9c13b68456923fc4fb7c951cc439c74aadf53ee3f76fc02beff6b409",
		},
		{
			name: "html chars kept",
			h:    Header{ID: 1, Timestamp: 100, PreviousHash: "abc", Data: "<a&b>", Nonce: 7},
			pre:  `{"data":"<a&b>","id":1,"nonce":7,"previous_hash":"abc","timestamp":100}`,
			hash: "52aec0ca96d387af1b66c92dc9e6b01b38f8a2f88efffe6c5586bc4b91f2fc44",
		},
		{
			name: "non-ascii kept",
			h:    Header{ID: 1, Timestamp: 100, PreviousHash: "abc", Data: "h\u00e9llo \u4e16\u754c", Nonce: 7},
			pre:  "{\"data\":\"h\u00e9llo \u4e16\u754c\",\"id\":1,\"nonce\":7,\"previous_hash\":\"abc\",\"timestamp\":100}",
			hash: "d08953ca7e5d1d94ae2cdd25ccdb4bcf3289e31e033dfd027aca524f69c391db",
		},
		{
			name: "line separators kept",
			h:    Header{ID: 1, Timestamp: 100, PreviousHash: "abc", Data: "a\u2028b\u2029c", Nonce: 7},
			pre:  "{\"data\":\"a\u2028b\u2029c\",\"id\":1,\"nonce\":7,\"previous_hash\":\"abc\",\"timestamp\":100}",
			hash: "a2e58f83d8f293e6f85a4d5b41fe5c54d982b32456a3edc7d1d3a6998e315279",
		},
		{
			name: "escaped backslash before u2028",
			h:    Header{ID: 1, Timestamp: 100, PreviousHash: "abc", Data: `x\u2028`, Nonce: 7},
			pre:  `{"data":"x\\u2028","id":1,"nonce":7,"previous_hash":"abc","timestamp":100}`,
			hash: "3eab210c6e47870b1e46b2c428f98c6adedbe0197e9d7f9c74fb6abe20a13a0d",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			pre, err := c.h.Encode()
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if string(pre) != c.pre {
				t.Fatalf("preimage = %s, want %s", pre, c.pre)
			}
			if got := c.h.Hash(); got != c.hash {
				t.Fatalf("Hash = %s, want %s", got, c.hash)
			}
		})
	}
}

func TestHashDeterministic(t *testing.T) {
	h := Header{ID: 42, Timestamp: 1700000000, PreviousHash: "00ff", Data: "payload", Nonce: 99}
	first := h.Hash()
	for i := 0; i < 10; i++ {
		if got := h.Hash(); got != first {
			t.Fatalf("hash changed between calls: %s != %s", got, first)
		}
	}
	if len(first) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(first))
	}
}

func TestHashCoversEveryField(t *testing.T) {
	base := Header{ID: 1, Timestamp: 100, PreviousHash: "abc", Data: "hello", Nonce: 7}
	variants := []Header{
		{ID: 2, Timestamp: 100, PreviousHash: "abc", Data: "hello", Nonce: 7},
		{ID: 1, Timestamp: 101, PreviousHash: "abc", Data: "hello", Nonce: 7},
		{ID: 1, Timestamp: 100, PreviousHash: "abd", Data: "hello", Nonce: 7},
		{ID: 1, Timestamp: 100, PreviousHash: "abc", Data: "hellO", Nonce: 7},
		{ID: 1, Timestamp: 100, PreviousHash: "abc", Data: "hello", Nonce: 8},
	}
	for i, v := range variants {
		if v.Hash() == base.Hash() {
			t.Fatalf("variant %d hashes like the base header", i)
		}
	}
}
