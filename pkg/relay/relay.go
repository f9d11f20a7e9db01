// Package relay implements the meshnet forwarding node: a relay consumes
// packets and supervisor commands from two queues, forwards data along
// sender-specified paths, participates in flood discovery and reports
// every send or drop to its observer.
package relay

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/skycoin/skycoin/src/util/logging"

	"github.com/skyfleet/meshnet/pkg/controller"
	"github.com/skyfleet/meshnet/pkg/packet"
	"github.com/skyfleet/meshnet/pkg/routing"
)

// ErrInvalidDropRate is returned by New for a drop rate outside [0, 1].
var ErrInvalidDropRate = errors.New("packet drop rate must be within [0, 1]")

// Node is a runnable relay. The harness is generic over this capability
// so any conformant implementation can be wired into a mesh.
type Node interface {
	// Run services the packet and command queues until told to crash.
	// It does not return on the happy path.
	Run()
}

// Factory constructs a Node from the canonical relay inputs.
type Factory func(
	id routing.NodeID,
	events chan<- controller.Event,
	commands <-chan controller.Command,
	packets <-chan packet.Packet,
	neighbors map[routing.NodeID]chan<- packet.Packet,
	dropRate float64,
) (Node, error)

// Relay is the reference Node implementation. All protocol state is
// private to the relay; coordination with the rest of the mesh happens
// only through the queues it was constructed with.
type Relay struct {
	Logger *logging.Logger

	id        routing.NodeID
	events    chan<- controller.Event
	commands  <-chan controller.Command
	packets   <-chan packet.Packet
	neighbors map[routing.NodeID]chan<- packet.Packet
	dropRate  float64
	rng       *rand.Rand

	// seen grows monotonically for the relay's lifetime; the protocol
	// defines no expiry for flood memory.
	seen map[floodKey]struct{}
}

// New constructs a Relay. neighbors is copied; the caller keeps ownership
// of its map. events may be nil, in which case emissions are discarded.
func New(
	id routing.NodeID,
	events chan<- controller.Event,
	commands <-chan controller.Command,
	packets <-chan packet.Packet,
	neighbors map[routing.NodeID]chan<- packet.Packet,
	dropRate float64,
) (*Relay, error) {
	if dropRate < 0 || dropRate > 1 {
		return nil, ErrInvalidDropRate
	}

	nbs := make(map[routing.NodeID]chan<- packet.Packet, len(neighbors))
	for nid, out := range neighbors {
		nbs[nid] = out
	}

	return &Relay{
		Logger:    logging.MustGetLogger(fmt.Sprintf("relay.%d", id)),
		id:        id,
		events:    events,
		commands:  commands,
		packets:   packets,
		neighbors: nbs,
		dropRate:  dropRate,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano() + int64(id))),
		seen:      make(map[floodKey]struct{}),
	}, nil
}

// NewNode adapts New to the Factory signature.
func NewNode(
	id routing.NodeID,
	events chan<- controller.Event,
	commands <-chan controller.Command,
	packets <-chan packet.Packet,
	neighbors map[routing.NodeID]chan<- packet.Packet,
	dropRate float64,
) (Node, error) {
	return New(id, events, commands, packets, neighbors, dropRate)
}

// ID returns the relay's node id.
func (r *Relay) ID() routing.NodeID { return r.id }

// Run services both queues until a Crash command arrives or the packet
// queue is closed. Neither queue can starve the other: a single select
// draws from whichever is ready.
func (r *Relay) Run() {
	r.Logger.Infof("Relay %d running with %d neighbors", r.id, len(r.neighbors))

	for {
		select {
		case cmd, ok := <-r.commands:
			if !ok {
				r.commands = nil
				continue
			}
			if stop := r.handleCommand(cmd); stop {
				return
			}
		case p, ok := <-r.packets:
			if !ok {
				r.Logger.Infof("Relay %d packet queue closed", r.id)
				return
			}
			r.handlePacket(p)
		}
	}
}

func (r *Relay) handleCommand(cmd controller.Command) (stop bool) {
	switch c := cmd.(type) {
	case controller.Crash:
		r.Logger.Infof("Relay %d received crash command", r.id)
		return true
	case controller.AddSender:
		r.neighbors[c.ID] = c.Sender
		r.Logger.Debugf("Relay %d attached neighbor %d", r.id, c.ID)
	case controller.RemoveSender:
		delete(r.neighbors, c.ID)
		r.Logger.Debugf("Relay %d detached neighbor %d", r.id, c.ID)
	case controller.SetPacketDropRate:
		if c.Rate < 0 || c.Rate > 1 {
			r.Logger.Warnf("Relay %d ignoring drop rate %f", r.id, c.Rate)
			return false
		}
		r.dropRate = c.Rate
	default:
		r.Logger.Warnf("Relay %d ignoring unknown command %T", r.id, cmd)
	}
	return false
}

func (r *Relay) handlePacket(p packet.Packet) {
	switch p.Kind {
	case packet.KindFloodRequest:
		r.handleFloodRequest(p)
	case packet.KindFloodResponse:
		r.forwardFloodResponse(p)
	default:
		r.forward(p)
	}
}

// deliver places p on the queue of the node its cursor names and emits
// a PacketSent. Delivery fails only on a malformed header or an unknown
// destination, both implementation defects rather than runtime faults.
func (r *Relay) deliver(p packet.Packet) bool {
	if p.Header.HopIndex < 0 || p.Header.HopIndex >= len(p.Header.Hops) {
		r.Logger.Warnf("Relay %d dropping %s: cursor out of bounds", r.id, p)
		return false
	}

	dest := p.Header.Hops[p.Header.HopIndex]
	out, ok := r.neighbors[dest]
	if !ok {
		r.Logger.Warnf("Relay %d dropping %s: %d is not a neighbor", r.id, p, dest)
		return false
	}

	out <- p
	r.emit(controller.PacketSent{Packet: p})
	return true
}

// emit notifies the observer without ever blocking the run loop. With no
// observer, or a saturated sink, the event is discarded.
func (r *Relay) emit(ev controller.Event) {
	if r.events == nil {
		return
	}
	select {
	case r.events <- ev:
	default:
		r.Logger.Debugf("Relay %d observer sink full, event discarded", r.id)
	}
}
