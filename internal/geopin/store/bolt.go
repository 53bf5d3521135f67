package store

import (
	"github.com/boltdb/bolt"
	"github.com/ethereum/go-ethereum/common"
	"github.com/tezoscommons/geopin/internal/geopin/pinkey"
	"time"
)

var (
	bucketFiles  = []byte("Files")
	bucketOwners = []byte("Owners")
	bucketLive   = []byte("Live")

	liveMarker = []byte{1}
)

/*
 * BoltStore keeps the aggregate in three buckets keyed by the raw 32 byte
 * pin key: Files (key -> hash), Owners (key -> address), Live (key -> marker).
 * Zero hashes and zero owners are stored as absent entries.
 */
type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketFiles, bucketOwners, bucketLive} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) View(fn func(tx Tx) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(&boltTx{tx: tx})
	})
}

func (s *BoltStore) Update(fn func(tx Tx) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&boltTx{tx: tx})
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

type boltTx struct {
	tx *bolt.Tx
}

func (t *boltTx) GetFile(k pinkey.Key) common.Hash {
	return common.BytesToHash(t.tx.Bucket(bucketFiles).Get(k[:]))
}

func (t *boltTx) GetOwner(k pinkey.Key) common.Address {
	return common.BytesToAddress(t.tx.Bucket(bucketOwners).Get(k[:]))
}

func (t *boltTx) Exists(k pinkey.Key) bool {
	return t.tx.Bucket(bucketLive).Get(k[:]) != nil
}

func (t *boltTx) Count() int {
	n := 0
	c := t.tx.Bucket(bucketLive).Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n
}

func (t *boltTx) ForEachLive(fn func(k pinkey.Key) error) error {
	return t.tx.Bucket(bucketLive).ForEach(func(raw, _ []byte) error {
		var k pinkey.Key
		copy(k[:], raw)
		return fn(k)
	})
}

func (t *boltTx) SetFile(k pinkey.Key, h common.Hash) error {
	if !t.tx.Writable() {
		return ErrReadOnly
	}
	if t.GetFile(k) == h {
		return nil
	}
	b := t.tx.Bucket(bucketFiles)
	if h == (common.Hash{}) {
		return b.Delete(k[:])
	}
	return b.Put(k[:], h.Bytes())
}

func (t *boltTx) SetOwner(k pinkey.Key, owner common.Address) error {
	if !t.tx.Writable() {
		return ErrReadOnly
	}
	b := t.tx.Bucket(bucketOwners)
	if owner == (common.Address{}) {
		return b.Delete(k[:])
	}
	return b.Put(k[:], owner.Bytes())
}

func (t *boltTx) AddLive(k pinkey.Key) error {
	if !t.tx.Writable() {
		return ErrReadOnly
	}
	return t.tx.Bucket(bucketLive).Put(k[:], liveMarker)
}

func (t *boltTx) RemoveLive(k pinkey.Key) error {
	if !t.tx.Writable() {
		return ErrReadOnly
	}
	return t.tx.Bucket(bucketLive).Delete(k[:])
}
