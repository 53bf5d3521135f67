package network

import (
	"context"
	"encoding/json"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	shell "github.com/ipfs/go-ipfs-api"
	"github.com/sirupsen/logrus"
	"github.com/tezoscommons/geopin/internal/geopin/config"
	"io"
	"sync"
	"time"
)

type IPFS struct {
	sh               *shell.Shell
	log              *logrus.Entry
	topic            string
	connected        map[string]bool
	pubsubscriptions []chan *PubSubMessage
	id               string
	msgcache         *lru.Cache
	l                *sync.Mutex
}

func NewIPFS(c *config.Config, l *logrus.Entry) *IPFS {
	url := c.GetIpfsAPI()
	if url == nil {
		return nil
	}
	r := IPFS{}
	r.connected = map[string]bool{}
	r.pubsubscriptions = []chan *PubSubMessage{}
	r.l = &sync.Mutex{}
	r.topic = c.GetTopic()
	r.log = l.WithField("source", "ipfs-wrapper")
	r.log.Info("Connecting to external IPFS Node....")
	sh := shell.NewShell(*url)
	if sh == nil {
		r.log.Fatal("Can not connect to IPFS via " + *url)
	}
	r.sh = sh
	r.msgcache, _ = lru.New(1500)
	pi, err := r.sh.ID()
	if err != nil {
		r.log.Fatal("Can not reach IPFS via "+*url+": ", err)
	}
	r.id = pi.ID
	go r.listenPubSub()
	return &r
}

func (i *IPFS) Connect(peers []string) error {
	ctx := context.Background()
	for _, a := range peers {
		pi, err := i.sh.FindPeer(a)
		if err != nil {
			i.log.Trace("can not parse peerID: ", err)
			continue
		}
		for _, pa := range pi.Addrs {
			err = i.sh.SwarmConnect(ctx, pa+"/p2p/"+pi.ID)
			if err != nil {
				i.log.Trace("can not connect to: ", err)
				continue
			}
			i.l.Lock()
			if _, ok := i.connected[pi.ID]; !ok {
				i.log.Info("Connected with ", pi.ID)
				i.connected[pi.ID] = true
			}
			i.l.Unlock()
		}
	}
	return nil
}

func (i *IPFS) SendMessage(msg *PubSubMessage) error {
	if msg.Id == "" {
		msg.Id = uuid.New().String()
	}
	i.msgcache.Add(msg.Id, true)
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return i.sh.PubSubPublish(i.topic, string(data))
}

func (i *IPFS) listenPubSub() {
	for {
		s, e := i.sh.PubSubSubscribe(i.topic)
		if e != nil {
			i.log.Error(e)
			time.Sleep(5 * time.Second)
			continue
		}
		for {
			msg, e := s.Next()
			if e != nil {
				i.log.Warn("Error getting PubSub: " + e.Error())
				break
			}
			psmg := PubSubMessage{}
			if err := json.Unmarshal(msg.Data, &psmg); err != nil {
				i.log.Trace("dropping malformed message: ", err)
				continue
			}
			if _, ok := i.msgcache.Get(psmg.Id); ok {
				continue
			}
			i.msgcache.Add(psmg.Id, true)
			psmg.From = msg.From.String()
			if psmg.From != i.id {
				i.dispatch(&psmg)
			}
		}
		s.Cancel()
	}
}

func (i *IPFS) dispatch(msg *PubSubMessage) {
	i.l.Lock()
	defer i.l.Unlock()
	for _, c := range i.pubsubscriptions {
		c <- msg
	}
}

func (i *IPFS) Subscribe() chan *PubSubMessage {
	res := make(chan *PubSubMessage, 10)
	i.l.Lock()
	i.pubsubscriptions = append(i.pubsubscriptions, res)
	i.l.Unlock()
	return res
}

func (i *IPFS) UploadAndPin(file io.Reader) (string, error) {
	cid, err := i.sh.Add(file)
	if err != nil {
		return cid, err
	}
	err = i.sh.Pin(cid)
	return cid, err
}

func (i *IPFS) ID() string {
	return i.id
}
