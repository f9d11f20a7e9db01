package packet

import "github.com/skyfleet/meshnet/pkg/routing"

// FloodRequest is a topology discovery broadcast. PathTrace is the
// append-only record of nodes the request physically crossed.
type FloodRequest struct {
	FloodID     uint64
	InitiatorID routing.NodeID
	PathTrace   []routing.TraceEntry
}

// WithHop returns a copy of the request with one trace entry appended.
// The trace is copied so concurrent fan-out copies never alias.
func (fr FloodRequest) WithHop(id routing.NodeID, typ routing.NodeType) FloodRequest {
	trace := make([]routing.TraceEntry, len(fr.PathTrace), len(fr.PathTrace)+1)
	copy(trace, fr.PathTrace)
	fr.PathTrace = append(trace, routing.TraceEntry{ID: id, Type: typ})
	return fr
}

// Sender returns the node the request most recently crossed. ok is false
// for a trace with no recorded predecessor.
func (fr FloodRequest) Sender() (id routing.NodeID, ok bool) {
	if len(fr.PathTrace) == 0 {
		return 0, false
	}
	return fr.PathTrace[len(fr.PathTrace)-1].ID, true
}

// FloodResponse retraces a collected path trace back to the initiator.
type FloodResponse struct {
	FloodID   uint64
	PathTrace []routing.TraceEntry
}
