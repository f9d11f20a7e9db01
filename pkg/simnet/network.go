package simnet

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/skycoin/skycoin/src/util/logging"

	"github.com/skyfleet/meshnet/pkg/controller"
	"github.com/skyfleet/meshnet/pkg/packet"
	"github.com/skyfleet/meshnet/pkg/relay"
	"github.com/skyfleet/meshnet/pkg/routing"
)

var (
	// ErrUnknownNode is returned for operations naming a node the
	// topology does not contain.
	ErrUnknownNode = errors.New("unknown node")

	// ErrNotNeighbor is returned when an endpoint sends toward a node
	// it has no link to.
	ErrNotNeighbor = errors.New("destination is not a neighbor")

	// ErrAlreadyStarted is returned when starting a running network.
	ErrAlreadyStarted = errors.New("network already started")
)

const commandQueueSize = 16

type relayHandle struct {
	node     relay.Node
	commands chan controller.Command
}

// Network owns the queues of a simulated mesh and the goroutines of its
// relays. Clients and servers are surfaced as Endpoint taps.
type Network struct {
	Logger *logging.Logger

	conf      Config
	events    chan controller.Event
	relays    map[routing.NodeID]*relayHandle
	endpoints map[routing.NodeID]*Endpoint
	recorder  *Recorder

	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup
}

// New builds a Network from a topology using the reference relay.
func New(conf Config) (*Network, error) {
	return NewWithFactory(conf, relay.NewNode)
}

// NewWithFactory builds a Network running any conformant relay
// implementation.
func NewWithFactory(conf Config, factory relay.Factory) (*Network, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	n := &Network{
		Logger:    logging.MustGetLogger("simnet"),
		conf:      conf,
		events:    make(chan controller.Event, conf.eventBuffer()),
		relays:    make(map[routing.NodeID]*relayHandle),
		endpoints: make(map[routing.NodeID]*Endpoint),
	}

	queues := make(map[routing.NodeID]chan packet.Packet, len(conf.Nodes))
	for _, nc := range conf.Nodes {
		queues[nc.ID] = make(chan packet.Packet, conf.queueSize())
	}

	for _, nc := range conf.Nodes {
		peers := make(map[routing.NodeID]chan<- packet.Packet)
		for _, adj := range conf.neighborsOf(nc.ID) {
			peers[adj] = queues[adj]
		}

		if nc.Type != routing.TypeRelay {
			n.endpoints[nc.ID] = &Endpoint{id: nc.ID, typ: nc.Type, in: queues[nc.ID], peers: peers}
			continue
		}

		commands := make(chan controller.Command, commandQueueSize)
		node, err := factory(nc.ID, n.events, commands, queues[nc.ID], peers, nc.DropRate)
		if err != nil {
			return nil, fmt.Errorf("relay %d: %s", nc.ID, err)
		}
		n.relays[nc.ID] = &relayHandle{node: node, commands: commands}
	}

	return n, nil
}

// AttachRecorder drains the observer feed into the given store. Must be
// called before Start.
func (n *Network) AttachRecorder(store EventStore) *Recorder {
	n.recorder = NewRecorder(store, n.events)
	return n.recorder
}

// Start spawns one goroutine per relay plus the recorder, when attached.
func (n *Network) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.started {
		return ErrAlreadyStarted
	}
	n.started = true

	if n.recorder != nil {
		go n.recorder.Run()
	}

	for id, h := range n.relays {
		n.wg.Add(1)
		go func(id routing.NodeID, h *relayHandle) {
			defer n.wg.Done()
			h.node.Run()
		}(id, h)
	}

	n.Logger.Infof("Mesh started: %d relays, %d endpoints", len(n.relays), len(n.endpoints))
	return nil
}

// Stop crashes every relay, waits for their goroutines and closes the
// observer feed so an attached recorder drains and finishes.
func (n *Network) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.started {
		return
	}
	n.started = false

	for _, h := range n.relays {
		h.commands <- controller.Crash{}
	}
	n.wg.Wait()

	close(n.events)
	if n.recorder != nil {
		n.recorder.Wait()
	}

	n.Logger.Info("Mesh stopped")
}

// Command delivers an out-of-band command to a relay.
func (n *Network) Command(id routing.NodeID, cmd controller.Command) error {
	h, ok := n.relays[id]
	if !ok {
		return ErrUnknownNode
	}
	h.commands <- cmd
	return nil
}

// Endpoint returns the tap of a client or server node.
func (n *Network) Endpoint(id routing.NodeID) (*Endpoint, error) {
	ep, ok := n.endpoints[id]
	if !ok {
		return nil, ErrUnknownNode
	}
	return ep, nil
}

// Topology returns the configuration the mesh was built from.
func (n *Network) Topology() Config { return n.conf }

// Endpoint is the harness-owned tap of a client or server: an inbound
// queue plus outbound queues toward each linked relay.
type Endpoint struct {
	id    routing.NodeID
	typ   routing.NodeType
	in    chan packet.Packet
	peers map[routing.NodeID]chan<- packet.Packet
}

// ID returns the endpoint's node id.
func (e *Endpoint) ID() routing.NodeID { return e.id }

// Type returns the endpoint's node type.
func (e *Endpoint) Type() routing.NodeType { return e.typ }

// Send enqueues a packet on a linked node's inbound queue.
func (e *Endpoint) Send(to routing.NodeID, p packet.Packet) error {
	out, ok := e.peers[to]
	if !ok {
		return ErrNotNeighbor
	}
	out <- p
	return nil
}

// Recv waits for an inbound packet with a bounded wait. ok is false on
// timeout, which signals definitive absence rather than "retry".
func (e *Endpoint) Recv(timeout time.Duration) (p packet.Packet, ok bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case p = <-e.in:
		return p, true
	case <-timer.C:
		return packet.Packet{}, false
	}
}
