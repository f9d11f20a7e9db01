package routing

import (
	"fmt"
	"strings"
)

// SourceRoutingHeader carries the full hop sequence chosen by the sender
// together with a cursor naming the position just processed. Relays advance
// the cursor in place and never reorder the hops.
type SourceRoutingHeader struct {
	Hops     []NodeID `json:"hops"`
	HopIndex int      `json:"hop_index"`
}

// MakeHeader constructs a SourceRoutingHeader from a hop sequence.
func MakeHeader(hopIndex int, hops ...NodeID) SourceRoutingHeader {
	return SourceRoutingHeader{Hops: hops, HopIndex: hopIndex}
}

// At reports whether the cursor currently names the given node.
func (h *SourceRoutingHeader) At(id NodeID) bool {
	if h.HopIndex < 0 || h.HopIndex >= len(h.Hops) {
		return false
	}
	return h.Hops[h.HopIndex] == id
}

// NextHop returns the hop after the cursor. ok is false when the cursor
// already names the final hop.
func (h *SourceRoutingHeader) NextHop() (next NodeID, ok bool) {
	if h.HopIndex+1 >= len(h.Hops) {
		return 0, false
	}
	return h.Hops[h.HopIndex+1], true
}

// AtDestination reports whether the cursor names the final hop.
func (h *SourceRoutingHeader) AtDestination() bool {
	return len(h.Hops) > 0 && h.HopIndex == len(h.Hops)-1
}

// Advance moves the cursor one hop forward.
func (h *SourceRoutingHeader) Advance() {
	h.HopIndex++
}

// ReversedPrefix returns a new header walking the traversed prefix
// backwards: Hops[0..HopIndex] reversed, cursor reset to 1. It is the
// return path used for self-generated Nacks.
func (h *SourceRoutingHeader) ReversedPrefix() SourceRoutingHeader {
	n := h.HopIndex + 1
	if n > len(h.Hops) {
		n = len(h.Hops)
	}
	hops := make([]NodeID, n)
	for i := 0; i < n; i++ {
		hops[i] = h.Hops[n-1-i]
	}
	return SourceRoutingHeader{Hops: hops, HopIndex: 1}
}

// Copy returns a deep copy of the header.
func (h *SourceRoutingHeader) Copy() SourceRoutingHeader {
	hops := make([]NodeID, len(h.Hops))
	copy(hops, h.Hops)
	return SourceRoutingHeader{Hops: hops, HopIndex: h.HopIndex}
}

// String implements fmt.Stringer for SourceRoutingHeader.
func (h SourceRoutingHeader) String() string {
	hops := make([]string, len(h.Hops))
	for i, hop := range h.Hops {
		hops[i] = fmt.Sprintf("%d", hop)
	}
	return fmt.Sprintf("[%s]@%d", strings.Join(hops, ">"), h.HopIndex)
}
