package network

import (
	"context"
	"encoding/json"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/libp2p/go-libp2p"
	connmgr "github.com/libp2p/go-libp2p-connmgr"
	"github.com/libp2p/go-libp2p-core/crypto"
	"github.com/libp2p/go-libp2p-core/host"
	"github.com/libp2p/go-libp2p-core/peer"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	libp2pquic "github.com/libp2p/go-libp2p-quic-transport"
	"github.com/multiformats/go-multiaddr"
	"github.com/sirupsen/logrus"
	"github.com/tezoscommons/geopin/internal/geopin/config"
	"io"
	"sync"
	"time"
)

const protectTag = "geopin"

/*
 * Lightclient is an embedded libp2p node used when no external IPFS API is
 * configured. It only speaks gossipsub; it stores no content.
 */
type Lightclient struct {
	log              *logrus.Entry
	privkey          []byte
	listen           []string
	topicName        string
	h                host.Host
	connected        map[string]bool
	pubsub           *pubsub.PubSub
	topic            *pubsub.Topic
	pubsubscriptions []chan *PubSubMessage
	msgcache         *lru.Cache
	cm               *connmgr.BasicConnMgr
	l                *sync.Mutex
}

func NewLightclient(c *config.Config, privkey []byte, log *logrus.Entry) *Lightclient {
	l := Lightclient{}
	l.privkey = privkey
	l.listen = c.Network.Listen
	l.topicName = c.GetTopic()
	l.connected = map[string]bool{}
	l.l = &sync.Mutex{}
	l.log = log.WithField("source", "light_client")
	return &l
}

func (l *Lightclient) Setup() {
	ctx := context.Background()
	cm := connmgr.NewConnManager(20, 50, time.Minute)
	priv, err := crypto.UnmarshalPrivateKey(l.privkey)
	if err != nil {
		l.log.Fatal(err)
	}
	h, err := libp2p.New(ctx,
		libp2p.Identity(priv),
		libp2p.ListenAddrStrings(l.listen...),
		libp2p.ConnectionManager(cm),
		libp2p.Transport(libp2pquic.NewTransport),
		libp2p.DefaultTransports,
		libp2p.NATPortMap(),
		libp2p.EnableNATService(),
	)
	if err != nil {
		l.log.Fatal(err)
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		l.log.Fatal(err)
	}
	topic, err := ps.Join(l.topicName)
	if err != nil {
		l.log.Fatal(err)
	}
	l.h = h
	l.cm = cm
	l.pubsub = ps
	l.topic = topic
	l.msgcache, _ = lru.New(1500)
	go l.listenPubsub()

	l.log.Info("My peerID is: ", h.ID().String())
}

// Connect dials peers given as multiaddrs ending in /p2p/<id>.
func (l *Lightclient) Connect(peers []string) error {
	ctx := context.Background()
	var wg sync.WaitGroup
	for _, peerString := range peers {
		ma, err := multiaddr.NewMultiaddr(peerString)
		if err != nil {
			l.log.Warn("can not parse peer address: ", err)
			continue
		}
		pinfo, err := peer.AddrInfoFromP2pAddr(ma)
		if err != nil {
			l.log.Warn("error creating pinfo: ", err)
			continue
		}
		if pinfo.ID == l.h.ID() || l.cm.IsProtected(pinfo.ID, protectTag) {
			continue
		}
		l.cm.Protect(pinfo.ID, protectTag)

		wg.Add(1)
		go func(pinfo peer.AddrInfo) {
			defer wg.Done()
			err := l.h.Connect(ctx, pinfo)
			if err != nil {
				l.log.Warn(err)
				return
			}
			l.l.Lock()
			if _, ok := l.connected[pinfo.ID.String()]; !ok {
				l.log.Info("Connected with ", pinfo.ID)
				l.connected[pinfo.ID.String()] = true
			}
			l.l.Unlock()
		}(*pinfo)
	}
	wg.Wait()
	return nil
}

func (l *Lightclient) SendMessage(msg *PubSubMessage) error {
	if msg.Id == "" {
		msg.Id = uuid.New().String()
	}
	l.msgcache.Add(msg.Id, true)
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return l.topic.Publish(context.Background(), data)
}

func (l *Lightclient) listenPubsub() {
	s, e := l.topic.Subscribe()
	if e != nil {
		l.log.Fatal(e)
	}
	for {
		msg, e := s.Next(context.Background())
		if e != nil {
			l.log.Warn(e)
			continue
		}
		p, err := peer.IDFromBytes(msg.From)
		if err != nil || p == l.h.ID() {
			continue
		}
		psmg := PubSubMessage{}
		if err := json.Unmarshal(msg.Data, &psmg); err != nil {
			l.log.Trace("dropping malformed message: ", err)
			continue
		}

		if _, ok := l.msgcache.Get(psmg.Id); !ok {
			l.msgcache.Add(psmg.Id, true)
			psmg.From = p.String()
			l.l.Lock()
			for _, c := range l.pubsubscriptions {
				c <- &psmg
			}
			l.l.Unlock()
		}
	}
}

func (l *Lightclient) Subscribe() chan *PubSubMessage {
	res := make(chan *PubSubMessage, 10)
	l.l.Lock()
	l.pubsubscriptions = append(l.pubsubscriptions, res)
	l.l.Unlock()
	return res
}

func (l *Lightclient) ID() string {
	return l.h.ID().String()
}

func (l *Lightclient) UploadAndPin(file io.Reader) (string, error) {
	l.log.Error("attempted to upload content through the lightclient")
	return "", ErrNoContentStore
}
