package packet

import (
	"fmt"

	"github.com/skyfleet/meshnet/pkg/routing"
)

// PayloadSize is the fixed size of a fragment payload.
const PayloadSize = 128

// Fragment is one piece of a fragmented transfer. Data is opaque to
// relays; Length names how many bytes of Data are meaningful.
type Fragment struct {
	Index  uint64
	Total  uint64
	Length uint8
	Data   [PayloadSize]byte
}

// String implements fmt.Stringer for Fragment.
func (f Fragment) String() string {
	return fmt.Sprintf("fragment %d of %d (%d bytes)", f.Index, f.Total, f.Length)
}

// Ack acknowledges delivery of one fragment.
type Ack struct {
	FragmentIndex uint64
}

// NackType classifies a delivery failure. The taxonomy is closed.
type NackType uint8

const (
	// ErrorInRouting reports a next hop that is not a known neighbor or
	// an otherwise malformed header.
	ErrorInRouting NackType = iota

	// DestinationIsRelay reports a fragment whose final hop names a
	// relay, which is not a valid data endpoint.
	DestinationIsRelay

	// Dropped reports a fragment discarded by fault injection.
	Dropped

	// UnexpectedRecipient reports a packet whose cursor names a node
	// other than the one that received it.
	UnexpectedRecipient
)

// String implements fmt.Stringer for NackType.
func (nt NackType) String() string {
	switch nt {
	case ErrorInRouting:
		return "ErrorInRouting"
	case DestinationIsRelay:
		return "DestinationIsRelay"
	case Dropped:
		return "Dropped"
	case UnexpectedRecipient:
		return "UnexpectedRecipient"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(nt))
	}
}

// Nack reports a delivery failure back to the packet origin. Recipient
// is meaningful only for UnexpectedRecipient and names the node that
// actually received the misrouted packet.
type Nack struct {
	FragmentIndex uint64
	Type          NackType
	Recipient     routing.NodeID
}
