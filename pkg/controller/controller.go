// Package controller defines the out-of-band surface between relays and
// their supervisor: commands delivered on a dedicated queue and events
// emitted on the notification sink.
package controller

import (
	"github.com/skyfleet/meshnet/pkg/packet"
	"github.com/skyfleet/meshnet/pkg/routing"
)

// Command is an out-of-band instruction to a running relay.
type Command interface {
	isCommand()
}

// Crash instructs the relay to stop its run loop. Receipt must be
// observable; drain semantics belong to the broader supervisor protocol.
type Crash struct{}

// AddSender attaches an outbound queue for a new neighbor.
type AddSender struct {
	ID     routing.NodeID
	Sender chan<- packet.Packet
}

// RemoveSender detaches the outbound queue of a neighbor.
type RemoveSender struct {
	ID routing.NodeID
}

// SetPacketDropRate replaces the relay's drop probability.
type SetPacketDropRate struct {
	Rate float64
}

func (Crash) isCommand()             {}
func (AddSender) isCommand()         {}
func (RemoveSender) isCommand()      {}
func (SetPacketDropRate) isCommand() {}

// Event is a fact a relay surfaces to its observer. Emission is
// fire-and-forget: relays never block on the observer.
type Event interface {
	EventPacket() packet.Packet
}

// PacketSent reports a packet placed on an outbound queue, whether
// forwarded or self-generated.
type PacketSent struct {
	Packet packet.Packet
}

// PacketDropped reports a fragment discarded by fault injection. It
// carries the original fragment with its header unadvanced.
type PacketDropped struct {
	Packet packet.Packet
}

// EventPacket returns the sent packet.
func (e PacketSent) EventPacket() packet.Packet { return e.Packet }

// EventPacket returns the dropped packet.
func (e PacketDropped) EventPacket() packet.Packet { return e.Packet }
