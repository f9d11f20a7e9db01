package simnet

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/skycoin/skycoin/src/util/logging"

	"github.com/skyfleet/meshnet/pkg/controller"
	"github.com/skyfleet/meshnet/pkg/packet"
)

// Record is one observed relay event.
type Record struct {
	Run    uuid.UUID      `json:"run"`
	Seq    uint64         `json:"seq"`
	Time   time.Time      `json:"time"`
	Kind   string         `json:"kind"`
	Packet packet.Summary `json:"packet"`
}

// Event record kinds.
const (
	RecordSent    = "sent"
	RecordDropped = "dropped"
)

// Recorder drains the observer feed into an EventStore. One Recorder
// serves a whole mesh; events are sequenced in arrival order.
type Recorder struct {
	log    *logging.Logger
	run    uuid.UUID
	store  EventStore
	events <-chan controller.Event
	seq    uint64
	done   chan struct{}
}

// NewRecorder constructs a Recorder over an event feed.
func NewRecorder(store EventStore, events <-chan controller.Event) *Recorder {
	return &Recorder{
		log:    logging.MustGetLogger("recorder"),
		run:    uuid.New(),
		store:  store,
		events: events,
		done:   make(chan struct{}),
	}
}

// RunID identifies this recording run.
func (r *Recorder) RunID() uuid.UUID { return r.run }

// Run consumes the feed until it is closed.
func (r *Recorder) Run() {
	defer close(r.done)

	for ev := range r.events {
		rec := Record{
			Run:    r.run,
			Seq:    atomic.AddUint64(&r.seq, 1),
			Time:   time.Now(),
			Packet: ev.EventPacket().Summarize(),
		}
		switch ev.(type) {
		case controller.PacketDropped:
			rec.Kind = RecordDropped
		default:
			rec.Kind = RecordSent
		}

		if err := r.store.Append(rec); err != nil {
			r.log.Warnf("Failed to store event %d: %s", rec.Seq, err)
		}
	}
}

// Wait blocks until the feed is closed and fully drained.
func (r *Recorder) Wait() {
	<-r.done
}

// Records returns everything stored so far.
func (r *Recorder) Records() ([]Record, error) {
	return r.store.Records()
}

// Count returns the number of events observed.
func (r *Recorder) Count() uint64 {
	return atomic.LoadUint64(&r.seq)
}
