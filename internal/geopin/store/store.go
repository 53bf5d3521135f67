package store

import (
	"errors"
	"fmt"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/tezoscommons/geopin/internal/geopin/config"
	"github.com/tezoscommons/geopin/internal/geopin/pinkey"
)

var ErrReadOnly = errors.New("write in read-only transaction")

// Tx is one view of the pin aggregate. Reads never fail; writes only fail on
// I/O errors of the backend.
type Tx interface {
	GetFile(k pinkey.Key) common.Hash
	GetOwner(k pinkey.Key) common.Address
	Exists(k pinkey.Key) bool
	Count() int
	ForEachLive(fn func(k pinkey.Key) error) error

	SetFile(k pinkey.Key, h common.Hash) error
	SetOwner(k pinkey.Key, owner common.Address) error
	AddLive(k pinkey.Key) error
	RemoveLive(k pinkey.Key) error
}

// Store runs transactions against the pin aggregate. Update commits the
// writes of fn only if fn returns nil.
type Store interface {
	View(fn func(tx Tx) error) error
	Update(fn func(tx Tx) error) error
	Close() error
}

func NewStore(c *config.Config, l *logrus.Entry) (Store, error) {
	log := l.WithField("source", "store")
	switch c.Registry.Store {
	case "", "memory":
		log.Info("Using in-memory pin store")
		return NewMemoryStore(), nil
	case "bolt":
		log.WithField("path", c.DB.Bolt).Info("Using bolt pin store")
		return NewBoltStore(c.DB.Bolt)
	default:
		return nil, fmt.Errorf("unknown store backend %q", c.Registry.Store)
	}
}
