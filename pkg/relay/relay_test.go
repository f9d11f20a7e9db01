package relay_test

import (
	"log"
	"os"
	"testing"
	"time"

	"github.com/skycoin/skycoin/src/util/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfleet/meshnet/internal/testhelpers"
	"github.com/skyfleet/meshnet/pkg/controller"
	"github.com/skyfleet/meshnet/pkg/packet"
	"github.com/skyfleet/meshnet/pkg/relay"
	"github.com/skyfleet/meshnet/pkg/routing"
)

const timeout = 400 * time.Millisecond

func TestMain(m *testing.M) {
	loggingLevel, ok := os.LookupEnv("TEST_LOGGING_LEVEL")
	if ok {
		lvl, err := logging.LevelFromString(loggingLevel)
		if err != nil {
			log.Fatal(err)
		}
		logging.SetLevel(lvl)
	} else {
		logging.Disable()
	}

	os.Exit(m.Run())
}

type harness struct {
	events   chan controller.Event
	commands chan controller.Command
	in       chan packet.Packet
}

// startRelay spawns a relay over fresh queues. The relay is crashed on
// test cleanup.
func startRelay(t *testing.T, id routing.NodeID, neighbors map[routing.NodeID]chan<- packet.Packet, dropRate float64) *harness {
	t.Helper()

	h := &harness{
		events:   make(chan controller.Event, 64),
		commands: make(chan controller.Command, 4),
		in:       make(chan packet.Packet, 64),
	}

	r, err := relay.New(id, h.events, h.commands, h.in, neighbors, dropRate)
	require.NoError(t, err)

	go r.Run()
	t.Cleanup(func() { h.commands <- controller.Crash{} })
	return h
}

func onesPayload() (data [packet.PayloadSize]byte) {
	for i := range data {
		data[i] = 1
	}
	return data
}

func sampleFragment(hopIndex int, hops ...routing.NodeID) packet.Packet {
	return packet.NewFragment(routing.MakeHeader(hopIndex, hops...), 1, packet.Fragment{
		Index:  1,
		Total:  1,
		Length: packet.PayloadSize,
		Data:   onesPayload(),
	})
}

func sampleAck(hopIndex int, hops ...routing.NodeID) packet.Packet {
	return packet.NewAck(routing.MakeHeader(hopIndex, hops...), 1, 1)
}

func sampleNack(nack packet.Nack, hopIndex int, hops ...routing.NodeID) packet.Packet {
	return packet.NewNack(routing.MakeHeader(hopIndex, hops...), 1, nack)
}

func requirePacket(t *testing.T, ch <-chan packet.Packet, want packet.Packet) {
	t.Helper()

	got, ok := testhelpers.RecvTimeout(ch, timeout)
	require.True(t, ok, "expected %s, got nothing within %s", want, timeout)
	require.Equal(t, want, got)
}

func requireNoPacket(t *testing.T, ch <-chan packet.Packet) {
	t.Helper()

	got, ok := testhelpers.RecvTimeout(ch, timeout)
	require.False(t, ok, "expected silence, got %s", got)
}

func requireEvent(t *testing.T, ch <-chan controller.Event, want controller.Event) {
	t.Helper()

	got, ok := testhelpers.RecvTimeout(ch, timeout)
	require.True(t, ok, "expected %T event, got nothing within %s", want, timeout)
	require.Equal(t, want, got)
}

func TestFragmentForward(t *testing.T) {
	d2 := make(chan packet.Packet, 64)
	h := startRelay(t, 11, map[routing.NodeID]chan<- packet.Packet{12: d2}, 0)

	msg := sampleFragment(1, 1, 11, 12, 21)
	h.in <- msg

	want := msg
	want.Header = routing.MakeHeader(2, 1, 11, 12, 21)

	requirePacket(t, d2, want)
	requireEvent(t, h.events, controller.PacketSent{Packet: want})
}

func TestFragmentDrop(t *testing.T) {
	c := make(chan packet.Packet, 64)
	d2 := make(chan packet.Packet, 64)
	h := startRelay(t, 11, map[routing.NodeID]chan<- packet.Packet{1: c, 12: d2}, 1)

	msg := sampleFragment(1, 1, 11, 12, 21)
	h.in <- msg

	nack := sampleNack(packet.Nack{FragmentIndex: 1, Type: packet.Dropped}, 1, 11, 1)
	requirePacket(t, c, nack)
	requireNoPacket(t, d2)

	// Exactly one PacketDropped carrying the unadvanced original, then
	// one PacketSent for the generated Nack.
	requireEvent(t, h.events, controller.PacketDropped{Packet: msg})
	requireEvent(t, h.events, controller.PacketSent{Packet: nack})
}

func TestAckForward(t *testing.T) {
	d2 := make(chan packet.Packet, 64)
	h := startRelay(t, 11, map[routing.NodeID]chan<- packet.Packet{12: d2}, 0)

	ack := sampleAck(1, 1, 11, 12, 21)
	h.in <- ack

	want := ack
	want.Header = routing.MakeHeader(2, 1, 11, 12, 21)

	requirePacket(t, d2, want)
	requireEvent(t, h.events, controller.PacketSent{Packet: want})
}

func TestNackForward(t *testing.T) {
	d2 := make(chan packet.Packet, 64)
	h := startRelay(t, 11, map[routing.NodeID]chan<- packet.Packet{12: d2}, 0)

	nack := sampleNack(packet.Nack{FragmentIndex: 1, Type: packet.Dropped}, 1, 1, 11, 12, 21)
	h.in <- nack

	want := nack
	want.Header = routing.MakeHeader(2, 1, 11, 12, 21)

	requirePacket(t, d2, want)
	requireEvent(t, h.events, controller.PacketSent{Packet: want})
}

func TestAckNeverDropped(t *testing.T) {
	d2 := make(chan packet.Packet, 64)
	h := startRelay(t, 11, map[routing.NodeID]chan<- packet.Packet{12: d2}, 1)

	ack := sampleAck(1, 1, 11, 12, 21)
	h.in <- ack

	want := ack
	want.Header = routing.MakeHeader(2, 1, 11, 12, 21)
	requirePacket(t, d2, want)
}

func TestDestinationIsRelay(t *testing.T) {
	c := make(chan packet.Packet, 64)
	h := startRelay(t, 11, map[routing.NodeID]chan<- packet.Packet{1: c}, 0)

	h.in <- sampleFragment(1, 1, 11)

	want := sampleNack(packet.Nack{FragmentIndex: 1, Type: packet.DestinationIsRelay}, 1, 11, 1)
	requirePacket(t, c, want)
}

func TestErrorInRouting(t *testing.T) {
	c := make(chan packet.Packet, 64)
	h := startRelay(t, 11, map[routing.NodeID]chan<- packet.Packet{1: c}, 0)

	// Next hop 12 is not a neighbor of 11.
	h.in <- sampleFragment(1, 1, 11, 12, 21)

	want := sampleNack(packet.Nack{FragmentIndex: 1, Type: packet.ErrorInRouting}, 1, 11, 1)
	requirePacket(t, c, want)
}

func TestUnexpectedRecipient(t *testing.T) {
	c := make(chan packet.Packet, 64)
	h := startRelay(t, 11, map[routing.NodeID]chan<- packet.Packet{1: c}, 0)

	// The cursor names 45, not the receiving relay 11.
	h.in <- sampleFragment(1, 1, 45, 12, 21)

	want := sampleNack(packet.Nack{
		FragmentIndex: 1,
		Type:          packet.UnexpectedRecipient,
		Recipient:     11,
	}, 1, 45, 1)
	requirePacket(t, c, want)
}

func TestDropRateLaws(t *testing.T) {
	const trials = 100

	t.Run("zero never drops", func(t *testing.T) {
		d2 := make(chan packet.Packet, trials)
		h := startRelay(t, 11, map[routing.NodeID]chan<- packet.Packet{12: d2}, 0)

		for i := 0; i < trials; i++ {
			h.in <- sampleFragment(1, 1, 11, 12, 21)
		}
		for i := 0; i < trials; i++ {
			got, ok := testhelpers.RecvTimeout(d2, timeout)
			require.True(t, ok, "fragment %d never forwarded", i)
			require.Equal(t, packet.KindFragment, got.Kind)
		}
	})

	t.Run("one always drops", func(t *testing.T) {
		c := make(chan packet.Packet, trials)
		d2 := make(chan packet.Packet, trials)
		h := startRelay(t, 11, map[routing.NodeID]chan<- packet.Packet{1: c, 12: d2}, 1)

		for i := 0; i < trials; i++ {
			h.in <- sampleFragment(1, 1, 11, 12, 21)
		}
		for i := 0; i < trials; i++ {
			got, ok := testhelpers.RecvTimeout(c, timeout)
			require.True(t, ok, "nack %d never arrived", i)
			require.Equal(t, packet.KindNack, got.Kind)
			require.Equal(t, packet.Dropped, got.Nack.Type)
		}
		requireNoPacket(t, d2)
	})
}

func TestChainFragmentDrop(t *testing.T) {
	c := make(chan packet.Packet, 64)
	s := make(chan packet.Packet, 64)
	d11 := make(chan packet.Packet, 64)
	d12 := make(chan packet.Packet, 64)

	r11, err := relay.New(11, nil, make(chan controller.Command, 1), d11,
		map[routing.NodeID]chan<- packet.Packet{1: c, 12: d12}, 0)
	require.NoError(t, err)
	r12, err := relay.New(12, nil, make(chan controller.Command, 1), d12,
		map[routing.NodeID]chan<- packet.Packet{11: d11, 21: s}, 1)
	require.NoError(t, err)

	go r11.Run()
	go r12.Run()

	d11 <- sampleFragment(1, 1, 11, 12, 21)

	want := sampleNack(packet.Nack{FragmentIndex: 1, Type: packet.Dropped}, 2, 12, 11, 1)
	requirePacket(t, c, want)
	requireNoPacket(t, s)
}

func TestChainFragmentAck(t *testing.T) {
	c := make(chan packet.Packet, 64)
	s := make(chan packet.Packet, 64)
	d11 := make(chan packet.Packet, 64)
	d12 := make(chan packet.Packet, 64)

	r11, err := relay.New(11, nil, make(chan controller.Command, 1), d11,
		map[routing.NodeID]chan<- packet.Packet{1: c, 12: d12}, 0)
	require.NoError(t, err)
	r12, err := relay.New(12, nil, make(chan controller.Command, 1), d12,
		map[routing.NodeID]chan<- packet.Packet{11: d11, 21: s}, 0)
	require.NoError(t, err)

	go r11.Run()
	go r12.Run()

	msg := sampleFragment(1, 1, 11, 12, 21)
	d11 <- msg

	want := msg
	want.Header = routing.MakeHeader(3, 1, 11, 12, 21)
	requirePacket(t, s, want)

	// Server acknowledges along the reverse path.
	d12 <- sampleAck(1, 21, 12, 11, 1)
	requirePacket(t, c, sampleAck(3, 21, 12, 11, 1))
}

func TestCrashCommand(t *testing.T) {
	d2 := make(chan packet.Packet, 64)
	events := make(chan controller.Event, 64)
	commands := make(chan controller.Command, 4)
	in := make(chan packet.Packet, 64)

	r, err := relay.New(11, events, commands, in, map[routing.NodeID]chan<- packet.Packet{12: d2}, 0)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		r.Run()
		close(done)
	}()

	commands <- controller.Crash{}

	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("relay did not observe the crash command")
	}

	// A crashed relay forwards nothing further.
	in <- sampleFragment(1, 1, 11, 12, 21)
	requireNoPacket(t, d2)
}

func TestAddRemoveSender(t *testing.T) {
	c := make(chan packet.Packet, 64)
	d2 := make(chan packet.Packet, 64)
	h := startRelay(t, 11, map[routing.NodeID]chan<- packet.Packet{1: c}, 0)

	h.commands <- controller.AddSender{ID: 12, Sender: d2}
	time.Sleep(50 * time.Millisecond) // let the command land before the packet
	h.in <- sampleFragment(1, 1, 11, 12, 21)

	want := sampleFragment(2, 1, 11, 12, 21)
	requirePacket(t, d2, want)

	h.commands <- controller.RemoveSender{ID: 12}
	time.Sleep(50 * time.Millisecond)
	h.in <- sampleFragment(1, 1, 11, 12, 21)

	nack := sampleNack(packet.Nack{FragmentIndex: 1, Type: packet.ErrorInRouting}, 1, 11, 1)
	requirePacket(t, c, nack)
}

func TestSetPacketDropRate(t *testing.T) {
	c := make(chan packet.Packet, 64)
	d2 := make(chan packet.Packet, 64)
	h := startRelay(t, 11, map[routing.NodeID]chan<- packet.Packet{1: c, 12: d2}, 0)

	h.in <- sampleFragment(1, 1, 11, 12, 21)
	requirePacket(t, d2, sampleFragment(2, 1, 11, 12, 21))

	h.commands <- controller.SetPacketDropRate{Rate: 1}
	time.Sleep(50 * time.Millisecond)
	h.in <- sampleFragment(1, 1, 11, 12, 21)

	nack := sampleNack(packet.Nack{FragmentIndex: 1, Type: packet.Dropped}, 1, 11, 1)
	requirePacket(t, c, nack)
}

func TestNewValidation(t *testing.T) {
	_, err := relay.New(11, nil, nil, nil, nil, -0.1)
	assert.Equal(t, relay.ErrInvalidDropRate, err)

	_, err = relay.New(11, nil, nil, nil, nil, 1.1)
	assert.Equal(t, relay.ErrInvalidDropRate, err)
}

func TestNilObserver(t *testing.T) {
	d2 := make(chan packet.Packet, 64)
	commands := make(chan controller.Command, 4)
	in := make(chan packet.Packet, 64)

	r, err := relay.New(11, nil, commands, in, map[routing.NodeID]chan<- packet.Packet{12: d2}, 0)
	testhelpers.NoErrorN(t, err)

	go r.Run()
	t.Cleanup(func() { commands <- controller.Crash{} })

	in <- sampleFragment(1, 1, 11, 12, 21)
	requirePacket(t, d2, sampleFragment(2, 1, 11, 12, 21))
}

func TestSaturatedObserver(t *testing.T) {
	d2 := make(chan packet.Packet, 64)
	commands := make(chan controller.Command, 4)
	in := make(chan packet.Packet, 64)
	events := make(chan controller.Event, 1) // nobody drains this

	r, err := relay.New(11, events, commands, in, map[routing.NodeID]chan<- packet.Packet{12: d2}, 0)
	require.NoError(t, err)

	go r.Run()
	t.Cleanup(func() { commands <- controller.Crash{} })

	// The second event overflows the sink; forwarding must not stall.
	for i := 0; i < 3; i++ {
		in <- sampleFragment(1, 1, 11, 12, 21)
		requirePacket(t, d2, sampleFragment(2, 1, 11, 12, 21))
	}
}
