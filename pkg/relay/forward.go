package relay

import (
	"github.com/skyfleet/meshnet/pkg/controller"
	"github.com/skyfleet/meshnet/pkg/packet"
)

// forward runs the data-plane engine for Fragment, Ack and Nack packets.
// Failures answer the origin with a Nack along the reversed traversed
// prefix; none of them halt the relay.
func (r *Relay) forward(p packet.Packet) {
	if !p.Header.At(r.id) {
		r.Logger.Debugf("Relay %d is not the recipient of %s", r.id, p)
		r.replyNack(p, packet.Nack{
			FragmentIndex: fragmentIndex(p),
			Type:          packet.UnexpectedRecipient,
			Recipient:     r.id,
		})
		return
	}

	next, ok := p.Header.NextHop()
	if !ok {
		// The sender routed the packet to terminate here, but a relay
		// is not a valid data endpoint.
		if p.Kind == packet.KindFragment {
			r.replyNack(p, packet.Nack{
				FragmentIndex: fragmentIndex(p),
				Type:          packet.DestinationIsRelay,
			})
			return
		}
		r.Logger.Warnf("Relay %d dropping %s: path terminates at a relay", r.id, p)
		return
	}

	if _, known := r.neighbors[next]; !known {
		r.replyNack(p, packet.Nack{
			FragmentIndex: fragmentIndex(p),
			Type:          packet.ErrorInRouting,
		})
		return
	}

	// Only fragments are subject to fault injection; control responses
	// always get through.
	if p.Kind == packet.KindFragment && r.rng.Float64() < r.dropRate {
		r.emit(controller.PacketDropped{Packet: p})
		r.replyNack(p, packet.Nack{
			FragmentIndex: fragmentIndex(p),
			Type:          packet.Dropped,
		})
		return
	}

	p.Header.Advance()
	r.deliver(p)
}

// forwardFloodResponse retraces a flood response one hop toward its
// initiator. Responses are never deduplicated and never dropped.
func (r *Relay) forwardFloodResponse(p packet.Packet) {
	p.Header.Advance()
	r.deliver(p)
}

// replyNack abandons the current forwarding attempt and reports the
// failure to the origin over the reversed traversed prefix.
func (r *Relay) replyNack(orig packet.Packet, nack packet.Nack) {
	header := orig.Header.ReversedPrefix()
	if len(header.Hops) < 2 {
		r.Logger.Warnf("Relay %d cannot nack %s: no return path", r.id, orig)
		return
	}
	r.deliver(packet.NewNack(header, orig.SessionID, nack))
}

func fragmentIndex(p packet.Packet) uint64 {
	if p.Kind == packet.KindFragment && p.Fragment != nil {
		return p.Fragment.Index
	}
	return 0
}
