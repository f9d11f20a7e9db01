// Package simnet wires relays into a simulated mesh: every link is a
// pair of in-memory queues, clients and servers are harness-owned taps,
// and the observer feed is recorded for inspection.
package simnet

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/skyfleet/meshnet/pkg/routing"
)

const (
	// DefaultQueueSize is the per-node packet queue capacity.
	DefaultQueueSize = 512

	// DefaultEventBuffer is the observer sink capacity. Relays never
	// block on the sink, so it must hold a scenario's worth of events.
	DefaultEventBuffer = 1024
)

// ErrNoNodes is returned when validating an empty topology.
var ErrNoNodes = errors.New("topology has no nodes")

// NodeConfig describes one mesh node.
type NodeConfig struct {
	ID   routing.NodeID   `json:"id"`
	Type routing.NodeType `json:"type"`

	// DropRate is the probability a relay discards a fragment to
	// simulate a lossy link. Ignored for clients and servers.
	DropRate float64 `json:"drop_rate,omitempty"`
}

// Link joins two nodes. Links are bidirectional: each side gets an
// outbound queue toward the other.
type Link [2]routing.NodeID

// Config describes a mesh topology.
type Config struct {
	Nodes       []NodeConfig `json:"nodes"`
	Links       []Link       `json:"links"`
	QueueSize   int          `json:"queue_size,omitempty"`
	EventBuffer int          `json:"event_buffer,omitempty"`
}

// ReadConfig decodes a JSON topology.
func ReadConfig(r io.Reader) (Config, error) {
	var conf Config
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&conf); err != nil {
		return Config{}, fmt.Errorf("config: %s", err)
	}
	return conf, conf.Validate()
}

// Validate checks the topology for duplicate ids, dangling or self
// links and drop rates outside [0, 1].
func (c *Config) Validate() error {
	if len(c.Nodes) == 0 {
		return ErrNoNodes
	}

	ids := make(map[routing.NodeID]struct{}, len(c.Nodes))
	for _, n := range c.Nodes {
		if _, ok := ids[n.ID]; ok {
			return fmt.Errorf("duplicate node id %d", n.ID)
		}
		if n.DropRate < 0 || n.DropRate > 1 {
			return fmt.Errorf("node %d: drop rate %f outside [0, 1]", n.ID, n.DropRate)
		}
		ids[n.ID] = struct{}{}
	}

	for _, l := range c.Links {
		if l[0] == l[1] {
			return fmt.Errorf("node %d linked to itself", l[0])
		}
		for _, id := range l {
			if _, ok := ids[id]; !ok {
				return fmt.Errorf("link references unknown node %d", id)
			}
		}
	}

	return nil
}

func (c *Config) queueSize() int {
	if c.QueueSize <= 0 {
		return DefaultQueueSize
	}
	return c.QueueSize
}

func (c *Config) eventBuffer() int {
	if c.EventBuffer <= 0 {
		return DefaultEventBuffer
	}
	return c.EventBuffer
}

// neighborsOf returns the ids adjacent to the given node.
func (c *Config) neighborsOf(id routing.NodeID) []routing.NodeID {
	var adj []routing.NodeID
	for _, l := range c.Links {
		switch id {
		case l[0]:
			adj = append(adj, l[1])
		case l[1]:
			adj = append(adj, l[0])
		}
	}
	return adj
}
