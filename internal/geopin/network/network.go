package network

import (
	"errors"
	"io"
)

// EventMessageKind marks pubsub messages carrying registry events.
const EventMessageKind = "geopin_event"

var ErrNoContentStore = errors.New("no content store available on this network")

type NetworkInterface interface {
	Connect(peers []string) error
	SendMessage(msg *PubSubMessage) error
	Subscribe() chan *PubSubMessage
	UploadAndPin(file io.Reader) (string, error)
	ID() string
}

type PubSubMessage struct {
	Id   string
	Data []byte
	Kind string
	From string
}
