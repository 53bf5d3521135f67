package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/tezoscommons/geopin/internal/geopin/pinkey"
	"time"
)

type Pin struct {
	Key       pinkey.Key     `json:"key"`
	Latitude  uint64         `json:"latitude,string"`
	Longitude uint64         `json:"longitude,string"`
	Altitude  uint64         `json:"altitude,string"`
	Timestamp uint64         `json:"timestamp,string"`
	FileHash  common.Hash    `json:"fileHash"`
	Owner     common.Address `json:"owner"`
	Locked    bool           `json:"locked"`
}

func NewPin(k pinkey.Key, hash common.Hash, owner common.Address) Pin {
	f := k.Fields()
	return Pin{
		Key:       k,
		Latitude:  f.Latitude,
		Longitude: f.Longitude,
		Altitude:  f.Altitude,
		Timestamp: f.Timestamp,
		FileHash:  hash,
		Owner:     owner,
		Locked:    k.Locked(),
	}
}

type Snapshot struct {
	Created time.Time `json:"created"`
	Count   int       `json:"count"`
	Pins    []Pin     `json:"pins"`
}

type EventKind string

const (
	KindPinned       EventKind = "Pinned"
	KindUnpinned     EventKind = "Unpinned"
	KindLockedPin    EventKind = "LockedPin"
	KindChangedOwner EventKind = "ChangedOwner"
	KindChangedFile  EventKind = "ChangedFile"
)

/*
 * Event is the notification emitted after every committed mutation.
 * Unpinned events carry only the parsed fields, never the key; use
 * PinKey to rebuild it.
 */
type Event struct {
	ID     string         `json:"id"`
	Seq    uint64         `json:"seq"`
	Kind   EventKind      `json:"kind"`
	Time   uint64         `json:"time"`
	Actor  common.Address `json:"actor"`
	Origin string         `json:"origin,omitempty"`

	Key    *pinkey.Key `json:"key,omitempty"`
	NewKey *pinkey.Key `json:"newKey,omitempty"`

	Latitude  uint64 `json:"latitude,string,omitempty"`
	Longitude uint64 `json:"longitude,string,omitempty"`
	Altitude  uint64 `json:"altitude,string,omitempty"`
	Timestamp uint64 `json:"timestamp,string,omitempty"`

	FileHash    *common.Hash    `json:"fileHash,omitempty"`
	OldFileHash *common.Hash    `json:"oldFileHash,omitempty"`
	Owner       *common.Address `json:"owner,omitempty"`
	OldOwner    *common.Address `json:"oldOwner,omitempty"`
}

// PinKey returns the key the event is about.
func (e *Event) PinKey() pinkey.Key {
	if e.Key != nil {
		return *e.Key
	}
	return pinkey.Pack(pinkey.Fields{
		Latitude:  e.Latitude,
		Longitude: e.Longitude,
		Altitude:  e.Altitude,
		Timestamp: e.Timestamp,
	})
}
