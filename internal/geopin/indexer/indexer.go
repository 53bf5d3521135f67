package indexer

import (
	"encoding/json"
	"github.com/sirupsen/logrus"
	"github.com/tezoscommons/geopin/internal/geopin/db"
	"github.com/tezoscommons/geopin/internal/geopin/model"
	"github.com/tezoscommons/geopin/internal/geopin/network"
	"sync"
	"time"
)

const peerTimeout = 10 * time.Minute

type PeerInfo struct {
	PeerId   string
	LastSeen time.Time
	Events   int
}

/*
 * Indexer journals registry events published by other nodes and keeps
 * track of which peers have been publishing.
 */
type Indexer struct {
	net   network.NetworkInterface
	db    *db.StormDB
	log   *logrus.Entry
	l     *sync.Mutex
	peers map[string]*PeerInfo
	now   func() time.Time
}

func NewIndexer(l *logrus.Entry, net network.NetworkInterface, d *db.StormDB) *Indexer {
	if net == nil {
		l.Info("Indexer disabled, no network")
		return nil
	}
	i := newIndexer(l, net, d)
	go i.subscribe(net.Subscribe())
	go i.purgePeers()
	return i
}

func newIndexer(l *logrus.Entry, net network.NetworkInterface, d *db.StormDB) *Indexer {
	return &Indexer{
		net:   net,
		db:    d,
		log:   l.WithField("source", "indexer"),
		l:     &sync.Mutex{},
		peers: map[string]*PeerInfo{},
		now:   time.Now,
	}
}

func (i *Indexer) subscribe(ch chan *network.PubSubMessage) {
	for msg := range ch {
		if msg.Kind != network.EventMessageKind {
			continue
		}
		if err := i.handle(msg); err != nil {
			i.log.WithField("origin", msg.From).Warn(err)
		}
	}
}

func (i *Indexer) handle(msg *network.PubSubMessage) error {
	e := model.Event{}
	if err := json.Unmarshal(msg.Data, &e); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = msg.Id
	}
	i.log.WithField("origin", msg.From).WithField("kind", e.Kind).WithField("key", e.PinKey().Hex()).Trace("remote event")

	i.l.Lock()
	p, ok := i.peers[msg.From]
	if !ok {
		p = &PeerInfo{PeerId: msg.From}
		i.peers[msg.From] = p
	}
	p.LastSeen = i.now()
	p.Events++
	i.l.Unlock()

	return i.db.SaveEvent(&e, msg.From)
}

func (i *Indexer) purgePeers() {
	for {
		time.Sleep(time.Minute)
		i.purge()
	}
}

func (i *Indexer) purge() {
	i.l.Lock()
	defer i.l.Unlock()
	for id, p := range i.peers {
		if i.now().Add(-1 * peerTimeout).After(p.LastSeen) {
			delete(i.peers, id)
		}
	}
}

// Peers returns the peers that published events recently.
func (i *Indexer) Peers() []PeerInfo {
	i.l.Lock()
	defer i.l.Unlock()
	res := []PeerInfo{}
	for _, p := range i.peers {
		res = append(res, *p)
	}
	return res
}
