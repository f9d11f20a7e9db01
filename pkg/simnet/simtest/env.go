// Package simtest provides a mesh test environment and the bounded-wait
// assertions scenario tests are built from.
package simtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfleet/meshnet/pkg/packet"
	"github.com/skyfleet/meshnet/pkg/routing"
	"github.com/skyfleet/meshnet/pkg/simnet"
)

// Timeout bounds every expectation. Hitting it signals definitive
// absence of the expected message, not a reason to retry.
const Timeout = 400 * time.Millisecond

// Env contains a mesh test environment.
type Env struct {
	Net *simnet.Network
	Rec *simnet.Recorder

	teardown func()
}

// NewEnv builds and starts a mesh from the topology, with an in-memory
// event recorder attached.
func NewEnv(t *testing.T, conf simnet.Config) *Env {
	t.Helper()

	net, err := simnet.New(conf)
	require.NoError(t, err)

	rec := net.AttachRecorder(simnet.InMemoryEventStore())
	require.NoError(t, net.Start())

	return &Env{
		Net: net,
		Rec: rec,
		teardown: func() {
			net.Stop()
		},
	}
}

// Teardown shuts the Env down.
func (e *Env) Teardown() { e.teardown() }

// Endpoint returns the tap of a client or server node.
func (e *Env) Endpoint(t *testing.T, id routing.NodeID) *simnet.Endpoint {
	t.Helper()

	ep, err := e.Net.Endpoint(id)
	require.NoError(t, err)
	return ep
}

// Recv requires a packet to arrive at the endpoint within Timeout.
func Recv(t *testing.T, ep *simnet.Endpoint) packet.Packet {
	t.Helper()

	p, ok := ep.Recv(Timeout)
	require.True(t, ok, "no packet arrived at node %d within %s", ep.ID(), Timeout)
	return p
}

// RecvNone requires that nothing arrives at the endpoint within Timeout.
func RecvNone(t *testing.T, ep *simnet.Endpoint) {
	t.Helper()

	p, ok := ep.Recv(Timeout)
	require.False(t, ok, "unexpected packet at node %d: %s", ep.ID(), p)
}

// RequireOneOf asserts that got matches one of the candidates. Fan-out
// order is unspecified, so concurrent outcomes are verified by set
// membership rather than a fixed sequence.
func RequireOneOf(t *testing.T, got packet.Packet, candidates ...packet.Packet) {
	t.Helper()

	for _, want := range candidates {
		if assert.ObjectsAreEqual(want, got) {
			return
		}
	}
	require.Failf(t, "packet matches no valid outcome", "got %s of %d candidates", got, len(candidates))
}
