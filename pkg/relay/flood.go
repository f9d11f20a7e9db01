package relay

import (
	"github.com/skyfleet/meshnet/pkg/controller"
	"github.com/skyfleet/meshnet/pkg/packet"
	"github.com/skyfleet/meshnet/pkg/routing"
)

// floodKey tracks floods per initiator: two initiators reusing a flood
// id stay independent.
type floodKey struct {
	initiator routing.NodeID
	floodID   uint64
}

// handleFloodRequest implements the deduplicating flood. A request seen
// for the first time fans out to every neighbor except the sender; a
// repeated request, or one arriving at a dead end, is answered with a
// FloodResponse retracing the collected path.
func (r *Relay) handleFloodRequest(p packet.Packet) {
	if p.FloodRequest == nil {
		r.Logger.Warnf("Relay %d dropping flood request without payload", r.id)
		return
	}

	req := *p.FloodRequest
	sender, hasSender := req.Sender()
	key := floodKey{initiator: req.InitiatorID, floodID: req.FloodID}
	_, known := r.seen[key]
	if !known {
		r.seen[key] = struct{}{}
	}

	updated := req.WithHop(r.id, routing.TypeRelay)

	if known || !r.hasNeighborBesides(sender, hasSender) {
		r.answerFlood(p.SessionID, updated)
		return
	}

	// Fan out the trace-updated request, unchanged in routing. Flood
	// requests carry no routing header; they are broadcast.
	fwd := p
	fwd.FloodRequest = &updated
	for id, out := range r.neighbors {
		if hasSender && id == sender {
			continue
		}
		out <- fwd
		r.emit(controller.PacketSent{Packet: fwd})
	}
}

// answerFlood synthesizes a FloodResponse from the trace collected so
// far and sends it back toward the initiator. The response hops are the
// reversed trace ids, terminated at the initiator.
func (r *Relay) answerFlood(sessionID uint64, req packet.FloodRequest) {
	hops := make([]routing.NodeID, 0, len(req.PathTrace)+1)
	for i := len(req.PathTrace) - 1; i >= 0; i-- {
		hops = append(hops, req.PathTrace[i].ID)
	}
	if len(hops) == 0 || hops[len(hops)-1] != req.InitiatorID {
		hops = append(hops, req.InitiatorID)
	}

	header := routing.SourceRoutingHeader{Hops: hops, HopIndex: 1}
	res := packet.NewFloodResponse(header, sessionID, packet.FloodResponse{
		FloodID:   req.FloodID,
		PathTrace: req.PathTrace,
	})
	r.deliver(res)
}

// hasNeighborBesides reports whether a flood can fan out anywhere. With
// no recorded predecessor the sender cannot be excluded, so a relay with
// a single neighbor is treated as a dead end and answers through it.
func (r *Relay) hasNeighborBesides(sender routing.NodeID, hasSender bool) bool {
	if !hasSender {
		return len(r.neighbors) > 1
	}
	for id := range r.neighbors {
		if id != sender {
			return true
		}
	}
	return false
}
