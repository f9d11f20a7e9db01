// Package packet defines the envelope and payload kinds exchanged between
// meshnet nodes. Packets are in-memory values; byte encoding is outside of
// this module's contract.
package packet

import (
	"fmt"

	"github.com/skyfleet/meshnet/pkg/routing"
)

// Kind enumerates the payload carried by a Packet.
type Kind uint8

const (
	// KindFragment is a data-plane message fragment.
	KindFragment Kind = iota

	// KindAck acknowledges a fragment.
	KindAck

	// KindNack reports a delivery failure for a fragment.
	KindNack

	// KindFloodRequest is a topology discovery broadcast.
	KindFloodRequest

	// KindFloodResponse carries a collected path trace back to the
	// flood initiator.
	KindFloodResponse
)

// String implements fmt.Stringer for Kind.
func (k Kind) String() string {
	switch k {
	case KindFragment:
		return "Fragment"
	case KindAck:
		return "Ack"
	case KindNack:
		return "Nack"
	case KindFloodRequest:
		return "FloodRequest"
	case KindFloodResponse:
		return "FloodResponse"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(k))
	}
}

// Packet is the envelope routed through the mesh. Exactly one payload
// field matching Kind is set. SessionID correlates fragments of one
// transfer and is opaque to relays.
type Packet struct {
	Kind      Kind
	Header    routing.SourceRoutingHeader
	SessionID uint64

	Fragment      *Fragment
	Ack           *Ack
	Nack          *Nack
	FloodRequest  *FloodRequest
	FloodResponse *FloodResponse
}

// NewFragment constructs a Fragment packet.
func NewFragment(header routing.SourceRoutingHeader, sessionID uint64, frag Fragment) Packet {
	return Packet{Kind: KindFragment, Header: header, SessionID: sessionID, Fragment: &frag}
}

// NewAck constructs an Ack packet for the given fragment index.
func NewAck(header routing.SourceRoutingHeader, sessionID, fragIndex uint64) Packet {
	return Packet{Kind: KindAck, Header: header, SessionID: sessionID, Ack: &Ack{FragmentIndex: fragIndex}}
}

// NewNack constructs a Nack packet.
func NewNack(header routing.SourceRoutingHeader, sessionID uint64, nack Nack) Packet {
	return Packet{Kind: KindNack, Header: header, SessionID: sessionID, Nack: &nack}
}

// NewFloodRequest constructs a FloodRequest packet. Flood requests are
// broadcast, not source-routed, so the header is left empty.
func NewFloodRequest(sessionID uint64, req FloodRequest) Packet {
	return Packet{Kind: KindFloodRequest, SessionID: sessionID, FloodRequest: &req}
}

// NewFloodResponse constructs a FloodResponse packet.
func NewFloodResponse(header routing.SourceRoutingHeader, sessionID uint64, res FloodResponse) Packet {
	return Packet{Kind: KindFloodResponse, Header: header, SessionID: sessionID, FloodResponse: &res}
}

// String implements fmt.Stringer for Packet.
func (p Packet) String() string {
	return fmt.Sprintf("%s %s session %d", p.Kind, p.Header, p.SessionID)
}

// Summary describes a packet for event records and the monitor API.
type Summary struct {
	Kind      string          `json:"kind"`
	Hops      []routing.NodeID `json:"hops"`
	HopIndex  int             `json:"hop_index"`
	SessionID uint64          `json:"session_id"`
	Detail    string          `json:"detail,omitempty"`
}

// Summarize produces a Summary of the packet.
func (p Packet) Summarize() Summary {
	s := Summary{
		Kind:      p.Kind.String(),
		Hops:      p.Header.Hops,
		HopIndex:  p.Header.HopIndex,
		SessionID: p.SessionID,
	}
	switch p.Kind {
	case KindFragment:
		if p.Fragment != nil {
			s.Detail = fmt.Sprintf("fragment %d/%d", p.Fragment.Index, p.Fragment.Total)
		}
	case KindAck:
		if p.Ack != nil {
			s.Detail = fmt.Sprintf("ack %d", p.Ack.FragmentIndex)
		}
	case KindNack:
		if p.Nack != nil {
			s.Detail = fmt.Sprintf("nack %d %s", p.Nack.FragmentIndex, p.Nack.Type)
		}
	case KindFloodRequest:
		if p.FloodRequest != nil {
			s.Detail = fmt.Sprintf("flood %d from %d", p.FloodRequest.FloodID, p.FloodRequest.InitiatorID)
		}
	case KindFloodResponse:
		if p.FloodResponse != nil {
			s.Detail = fmt.Sprintf("flood %d trace %v", p.FloodResponse.FloodID, p.FloodResponse.PathTrace)
		}
	}
	return s
}
