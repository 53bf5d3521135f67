package notify

import (
	"encoding/json"
	"github.com/sirupsen/logrus"
	"github.com/tezoscommons/geopin/internal/geopin/db"
	"github.com/tezoscommons/geopin/internal/geopin/model"
	"github.com/tezoscommons/geopin/internal/geopin/network"
)

type LogSink struct {
	log *logrus.Entry
}

func NewLogSink(l *logrus.Entry) *LogSink {
	return &LogSink{log: l.WithField("source", "events")}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(e *model.Event) error {
	s.log.WithField("kind", e.Kind).
		WithField("seq", e.Seq).
		WithField("key", e.PinKey().Hex()).
		WithField("actor", e.Actor.Hex()).
		Debug("event")
	return nil
}

type JournalSink struct {
	db *db.StormDB
}

func NewJournalSink(d *db.StormDB) *JournalSink {
	return &JournalSink{db: d}
}

func (s *JournalSink) Name() string { return "journal" }

func (s *JournalSink) Send(e *model.Event) error {
	return s.db.SaveEvent(e, "")
}

// NetworkSink publishes events on the pubsub topic for remote indexers.
type NetworkSink struct {
	net network.NetworkInterface
}

func NewNetworkSink(net network.NetworkInterface) *NetworkSink {
	return &NetworkSink{net: net}
}

func (s *NetworkSink) Name() string { return "network" }

func (s *NetworkSink) Send(e *model.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.net.SendMessage(&network.PubSubMessage{
		Id:   e.ID,
		Kind: network.EventMessageKind,
		Data: data,
	})
}
