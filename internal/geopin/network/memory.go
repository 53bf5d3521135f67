package network

import (
	"bytes"
	"crypto/sha256"
	"github.com/google/uuid"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"io"
	"sync"
)

// MemoryHub connects MemoryNetwork peers inside one process.
type MemoryHub struct {
	l     *sync.Mutex
	peers []*MemoryNetwork
}

func NewMemoryHub() *MemoryHub {
	return &MemoryHub{l: &sync.Mutex{}}
}

// Join adds a peer with the given id to the hub.
func (h *MemoryHub) Join(id string) *MemoryNetwork {
	n := &MemoryNetwork{hub: h, id: id, l: &sync.Mutex{}, files: map[string][]byte{}}
	h.l.Lock()
	h.peers = append(h.peers, n)
	h.l.Unlock()
	return n
}

/*
 * MemoryNetwork is an in-process NetworkInterface. Messages go to every
 * other peer on the hub; uploads are kept in memory under a CIDv0.
 */
type MemoryNetwork struct {
	hub              *MemoryHub
	id               string
	l                *sync.Mutex
	pubsubscriptions []chan *PubSubMessage
	sent             []*PubSubMessage
	files            map[string][]byte
}

func (n *MemoryNetwork) Connect(peers []string) error {
	return nil
}

func (n *MemoryNetwork) SendMessage(msg *PubSubMessage) error {
	if msg.Id == "" {
		msg.Id = uuid.New().String()
	}
	n.l.Lock()
	n.sent = append(n.sent, msg)
	n.l.Unlock()

	n.hub.l.Lock()
	peers := append([]*MemoryNetwork{}, n.hub.peers...)
	n.hub.l.Unlock()
	for _, p := range peers {
		if p == n {
			continue
		}
		cp := *msg
		cp.From = n.id
		p.deliver(&cp)
	}
	return nil
}

func (n *MemoryNetwork) deliver(msg *PubSubMessage) {
	n.l.Lock()
	defer n.l.Unlock()
	for _, c := range n.pubsubscriptions {
		c <- msg
	}
}

func (n *MemoryNetwork) Subscribe() chan *PubSubMessage {
	res := make(chan *PubSubMessage, 100)
	n.l.Lock()
	n.pubsubscriptions = append(n.pubsubscriptions, res)
	n.l.Unlock()
	return res
}

// Sent returns the messages this peer published.
func (n *MemoryNetwork) Sent() []*PubSubMessage {
	n.l.Lock()
	defer n.l.Unlock()
	return append([]*PubSubMessage{}, n.sent...)
}

func (n *MemoryNetwork) UploadAndPin(file io.Reader) (string, error) {
	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, file); err != nil {
		return "", err
	}
	sum := sha256.Sum256(buf.Bytes())
	mh, err := multihash.Encode(sum[:], multihash.SHA2_256)
	if err != nil {
		return "", err
	}
	c := cid.NewCidV0(mh).String()
	n.l.Lock()
	n.files[c] = buf.Bytes()
	n.l.Unlock()
	return c, nil
}

func (n *MemoryNetwork) ID() string {
	return n.id
}

func (n *MemoryNetwork) File(cid string) ([]byte, bool) {
	n.l.Lock()
	defer n.l.Unlock()
	b, ok := n.files[cid]
	return b, ok
}
