package simnet

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfleet/meshnet/pkg/packet"
	"github.com/skyfleet/meshnet/pkg/routing"
)

func eventStoreSuite(t *testing.T, store EventStore) {
	t.Helper()

	recs, err := store.Records()
	require.NoError(t, err)
	assert.Empty(t, recs)

	run := uuid.New()
	first := Record{
		Run:  run,
		Seq:  1,
		Time: time.Now().UTC(),
		Kind: RecordSent,
		Packet: packet.Summary{
			Kind:      "Fragment",
			Hops:      []routing.NodeID{1, 11, 21},
			HopIndex:  2,
			SessionID: 1,
			Detail:    "fragment 1/1",
		},
	}
	require.NoError(t, store.Append(first))
	require.NoError(t, store.Append(Record{Run: run, Seq: 2, Kind: RecordDropped}))

	recs, err = store.Records()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, RecordSent, recs[0].Kind)
	assert.Equal(t, RecordDropped, recs[1].Kind)
	assert.Equal(t, first.Packet, recs[0].Packet)
}

func TestInMemoryEventStore(t *testing.T) {
	store := InMemoryEventStore()
	defer func() { require.NoError(t, store.Close()) }()

	eventStoreSuite(t, store)
}

func TestBoltEventStore(t *testing.T) {
	store, err := BoltEventStore(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close()) }()

	eventStoreSuite(t, store)
}
