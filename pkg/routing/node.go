// Package routing defines node identities and the source routing header
// shared by all meshnet packets.
package routing

import "fmt"

// NodeID identifies an endpoint or relay within a mesh.
type NodeID uint8

// NodeType tags a NodeID in flood path traces.
type NodeType uint8

const (
	// TypeClient marks a traffic-originating endpoint.
	TypeClient NodeType = iota

	// TypeRelay marks a forwarding node.
	TypeRelay

	// TypeServer marks a traffic-terminating endpoint.
	TypeServer
)

// String implements fmt.Stringer for NodeType.
func (nt NodeType) String() string {
	switch nt {
	case TypeClient:
		return "client"
	case TypeRelay:
		return "relay"
	case TypeServer:
		return "server"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(nt))
	}
}

// MarshalText implements encoding.TextMarshaler for NodeType.
func (nt NodeType) MarshalText() ([]byte, error) {
	if nt > TypeServer {
		return nil, fmt.Errorf("invalid node type %d", uint8(nt))
	}
	return []byte(nt.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for NodeType.
func (nt *NodeType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "client":
		*nt = TypeClient
	case "relay":
		*nt = TypeRelay
	case "server":
		*nt = TypeServer
	default:
		return fmt.Errorf("invalid node type %q", text)
	}
	return nil
}

// TraceEntry records one physical hop of a flood message.
type TraceEntry struct {
	ID   NodeID   `json:"id"`
	Type NodeType `json:"type"`
}

// String implements fmt.Stringer for TraceEntry.
func (te TraceEntry) String() string {
	return fmt.Sprintf("%d/%s", te.ID, te.Type)
}
