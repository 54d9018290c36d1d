package net

import (
	"errors"
	"strings"
	"testing"

	"gossipchain/core"
)

const (
	chainTopic = "chains"
	blockTopic = "blocks"
)

func TestDecodeChainTopic(t *testing.T) {
	genesis := core.NewGenesisBlock()
	resp, err := EncodeChainResponse(ChainResponse{Blocks: []*core.Block{genesis}, AddressedTo: "peer-b"})
	if err != nil {
		t.Fatalf("EncodeChainResponse: %v", err)
	}
	req, err := EncodeChainRequest(ChainRequest{RequestingPeer: "peer-a"})
	if err != nil {
		t.Fatalf("EncodeChainRequest: %v", err)
	}
	targeted, err := EncodeChainRequest(ChainRequest{RequestingPeer: "peer-a", Target: "peer-c"})
	if err != nil {
		t.Fatalf("EncodeChainRequest: %v", err)
	}

	msg, err := Decode(Envelope{Topic: chainTopic, From: "peer-x", Data: resp}, chainTopic, blockTopic)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if msg.Kind != KindChainResponse || msg.From != "peer-x" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.Response.AddressedTo != "peer-b" || len(msg.Response.Blocks) != 1 || msg.Response.Blocks[0].Hash != core.GenesisHash {
		t.Fatalf("unexpected response %+v", msg.Response)
	}

	msg, err = Decode(Envelope{Topic: chainTopic, Data: req}, chainTopic, blockTopic)
	if err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if msg.Kind != KindChainRequest || msg.Request.RequestingPeer != "peer-a" || msg.Request.Target != "" {
		t.Fatalf("unexpected request %+v", msg.Request)
	}

	msg, err = Decode(Envelope{Topic: chainTopic, Data: targeted}, chainTopic, blockTopic)
	if err != nil {
		t.Fatalf("decode targeted request: %v", err)
	}
	if msg.Request.Target != "peer-c" {
		t.Fatalf("target lost: %+v", msg.Request)
	}
}

func TestEncodeEmptyResponse(t *testing.T) {
	data, err := EncodeChainResponse(ChainResponse{AddressedTo: "peer-b"})
	if err != nil {
		t.Fatalf("EncodeChainResponse: %v", err)
	}
	if !strings.Contains(string(data), `"blocks":[]`) {
		t.Fatalf("nil blocks not encoded as an empty list: %s", data)
	}
	msg, err := DecodeChainMessage(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Kind != KindChainResponse || len(msg.Response.Blocks) != 0 {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestDecodeBlockTopic(t *testing.T) {
	data, err := EncodeNewBlock(core.NewGenesisBlock())
	if err != nil {
		t.Fatalf("EncodeNewBlock: %v", err)
	}
	msg, err := Decode(Envelope{Topic: blockTopic, From: "peer-y", Data: data}, chainTopic, blockTopic)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Kind != KindNewBlock || msg.Block.Hash != core.GenesisHash || msg.Block.Data != core.GenesisData {
		t.Fatalf("unexpected block %+v", msg.Block)
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := []struct {
		name  string
		topic string
		data  string
	}{
		{"not json", chainTopic, "hello"},
		{"empty object", chainTopic, `{}`},
		{"unknown field", chainTopic, `{"requesting_peer":"a","extra":1}`},
		{"null blocks", chainTopic, `{"blocks":null,"addressed_to":"a"}`},
		{"null block entry", chainTopic, `{"blocks":[null],"addressed_to":"a"}`},
		{"response without recipient", chainTopic, `{"blocks":[]}`},
		{"trailing data", chainTopic, `{"requesting_peer":"a"}{}`},
		{"block without hash", blockTopic, `{"id":1,"previous_hash":"x","timestamp":1,"data":"d","nonce":0}`},
		{"block wrong type", blockTopic, `{"id":"one","hash":"ab"}`},
		{"request on block topic", blockTopic, `{"requesting_peer":"a"}`},
		{"unknown topic", "other", `{"requesting_peer":"a"}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Decode(Envelope{Topic: c.topic, Data: []byte(c.data)}, chainTopic, blockTopic)
			if !errors.Is(err, ErrUndecodable) {
				t.Fatalf("expected ErrUndecodable, got %v", err)
			}
		})
	}
}

func TestDecodeOversized(t *testing.T) {
	data := make([]byte, maxWireMessage+1)
	if _, err := DecodeChainMessage(data); !errors.Is(err, ErrOversized) {
		t.Fatalf("expected ErrOversized, got %v", err)
	}
	if _, err := DecodeBlockMessage(data); !errors.Is(err, ErrOversized) {
		t.Fatalf("expected ErrOversized, got %v", err)
	}
}

func TestKindString(t *testing.T) {
	if KindChainResponse.String() != "ChainResponse" || Kind(9).String() != "Kind(9)" {
		t.Fatalf("unexpected Kind strings")
	}
}
