package indexer

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tezoscommons/geopin/internal/geopin/db"
	"github.com/tezoscommons/geopin/internal/geopin/model"
	"github.com/tezoscommons/geopin/internal/geopin/network"
	"github.com/tezoscommons/geopin/internal/geopin/pinkey"
)

func setup(t *testing.T) (*Indexer, *db.StormDB) {
	logger, _ := test.NewNullLogger()
	l := logrus.NewEntry(logger)
	journal, err := db.OpenStormDB(filepath.Join(t.TempDir(), "journal.db"), l)
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })
	return newIndexer(l, network.NewMemoryHub().Join("me"), journal), journal
}

func message(t *testing.T, from string, e *model.Event) *network.PubSubMessage {
	data, err := json.Marshal(e)
	require.NoError(t, err)
	return &network.PubSubMessage{Id: e.ID, Kind: network.EventMessageKind, From: from, Data: data}
}

func TestHandleJournalsRemoteUnpinned(t *testing.T) {
	i, journal := setup(t)
	k := pinkey.Pack(pinkey.Fields{Latitude: 1, Longitude: 2, Altitude: 3, Timestamp: 4})

	require.NoError(t, i.handle(message(t, "peer-1", &model.Event{
		ID:        "u1",
		Kind:      model.KindUnpinned,
		Latitude:  1,
		Longitude: 2,
		Altitude:  3,
		Timestamp: 4,
	})))

	events, err := journal.EventsForKey(k)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "peer-1", events[0].Origin)
	assert.Equal(t, k, events[0].PinKey())

	peers := i.Peers()
	require.Len(t, peers, 1)
	assert.Equal(t, "peer-1", peers[0].PeerId)
	assert.Equal(t, 1, peers[0].Events)
}

func TestHandleRejectsGarbage(t *testing.T) {
	i, _ := setup(t)
	err := i.handle(&network.PubSubMessage{Kind: network.EventMessageKind, From: "p", Data: []byte("{")})
	assert.Error(t, err)
}

func TestSubscribeOverHub(t *testing.T) {
	logger, _ := test.NewNullLogger()
	l := logrus.NewEntry(logger)
	journal, err := db.OpenStormDB(filepath.Join(t.TempDir(), "journal.db"), l)
	require.NoError(t, err)
	defer journal.Close()

	hub := network.NewMemoryHub()
	remote := hub.Join("remote")
	i := NewIndexer(l, hub.Join("local"), journal)
	require.NotNil(t, i)

	k := pinkey.Pack(pinkey.Fields{Latitude: 9, Timestamp: 9})
	require.NoError(t, remote.SendMessage(&network.PubSubMessage{Kind: "other", Data: []byte("x")}))
	require.NoError(t, remote.SendMessage(message(t, "", &model.Event{ID: "p1", Kind: model.KindPinned, Key: &k})))

	assert.Eventually(t, func() bool {
		events, err := journal.EventsForKey(k)
		return err == nil && len(events) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPurgePeers(t *testing.T) {
	i, _ := setup(t)
	now := time.Unix(10000, 0)
	i.now = func() time.Time { return now }
	k := pinkey.Pack(pinkey.Fields{Timestamp: 1})
	require.NoError(t, i.handle(message(t, "old", &model.Event{ID: "a", Kind: model.KindPinned, Key: &k})))

	now = now.Add(peerTimeout + time.Second)
	i.purge()
	assert.Empty(t, i.Peers())
}

func TestNewIndexerWithoutNetwork(t *testing.T) {
	logger, _ := test.NewNullLogger()
	assert.Nil(t, NewIndexer(logrus.NewEntry(logger), nil, nil))
}
