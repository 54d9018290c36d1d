package net

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gossipchain/core"
)

// maxWireMessage bounds a single gossip payload. A full ledger snapshot rides
// in one ChainResponse.
const maxWireMessage = 4 << 20

var (
	ErrUndecodable = errors.New("undecodable gossip payload")
	ErrOversized   = errors.New("oversized gossip payload")
)

// ChainRequest asks peers to reveal their ledger. An empty Target addresses
// every peer.
type ChainRequest struct {
	RequestingPeer string `json:"requesting_peer"`
	Target         string `json:"target,omitempty"`
}

// ChainResponse is a full ledger snapshot addressed to one peer.
type ChainResponse struct {
	Blocks      []*core.Block `json:"blocks"`
	AddressedTo string        `json:"addressed_to"`
}

// Kind discriminates decoded gossip messages.
type Kind int

const (
	KindChainRequest Kind = iota + 1
	KindChainResponse
	KindNewBlock
)

func (k Kind) String() string {
	switch k {
	case KindChainRequest:
		return "ChainRequest"
	case KindChainResponse:
		return "ChainResponse"
	case KindNewBlock:
		return "NewBlock"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Message is a decoded gossip payload. Exactly one of the pointer fields is
// set, matching Kind.
type Message struct {
	Kind     Kind
	From     string
	Request  *ChainRequest
	Response *ChainResponse
	Block    *core.Block
}

// Envelope is a raw payload received on a topic.
type Envelope struct {
	Topic string
	From  string
	Data  []byte
}

// PeerEvent reports a peer appearing or going away.
type PeerEvent struct {
	ID   string
	Gone bool
}

// EncodeChainRequest serializes a request for the chain topic.
func EncodeChainRequest(req ChainRequest) ([]byte, error) {
	return json.Marshal(req)
}

// EncodeChainResponse serializes a ledger snapshot for the chain topic. A nil
// block list is sent as an empty array.
func EncodeChainResponse(resp ChainResponse) ([]byte, error) {
	if resp.Blocks == nil {
		resp.Blocks = []*core.Block{}
	}
	return json.Marshal(resp)
}

// EncodeNewBlock serializes a freshly mined block for the block topic.
func EncodeNewBlock(b *core.Block) ([]byte, error) {
	return b.Encode()
}

// strictUnmarshal rejects unknown fields so that the chain-topic shapes
// cannot be mistaken for each other.
func strictUnmarshal(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data")
	}
	return nil
}

// DecodeChainMessage decodes a payload from the chain topic. Decoders are
// tried in a fixed order: ChainResponse, then ChainRequest.
func DecodeChainMessage(data []byte) (Message, error) {
	if len(data) > maxWireMessage {
		return Message{}, ErrOversized
	}
	var resp ChainResponse
	respErr := strictUnmarshal(data, &resp)
	if respErr == nil && resp.Blocks != nil && resp.AddressedTo != "" {
		for i, b := range resp.Blocks {
			if b == nil {
				return Message{}, fmt.Errorf("%w: null block at index %d", ErrUndecodable, i)
			}
		}
		return Message{Kind: KindChainResponse, Response: &resp}, nil
	}
	var req ChainRequest
	reqErr := strictUnmarshal(data, &req)
	if reqErr == nil && req.RequestingPeer != "" {
		return Message{Kind: KindChainRequest, Request: &req}, nil
	}
	if respErr == nil {
		respErr = errors.New("missing fields")
	}
	return Message{}, fmt.Errorf("%w: %v", ErrUndecodable, respErr)
}

// DecodeBlockMessage decodes a NewBlock payload from the block topic.
func DecodeBlockMessage(data []byte) (Message, error) {
	if len(data) > maxWireMessage {
		return Message{}, ErrOversized
	}
	var b core.Block
	if err := strictUnmarshal(data, &b); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if b.Hash == "" {
		return Message{}, fmt.Errorf("%w: block without hash", ErrUndecodable)
	}
	return Message{Kind: KindNewBlock, Block: &b}, nil
}

// Decode dispatches on the topic the envelope arrived on.
func Decode(env Envelope, chainTopic, blockTopic string) (Message, error) {
	var (
		msg Message
		err error
	)
	switch env.Topic {
	case chainTopic:
		msg, err = DecodeChainMessage(env.Data)
	case blockTopic:
		msg, err = DecodeBlockMessage(env.Data)
	default:
		return Message{}, fmt.Errorf("%w: unknown topic %q", ErrUndecodable, env.Topic)
	}
	if err != nil {
		return Message{}, err
	}
	msg.From = env.From
	return msg, nil
}
