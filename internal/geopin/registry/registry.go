package registry

import (
	"errors"
	"fmt"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tezoscommons/geopin/internal/geopin/config"
	"github.com/tezoscommons/geopin/internal/geopin/model"
	"github.com/tezoscommons/geopin/internal/geopin/notify"
	"github.com/tezoscommons/geopin/internal/geopin/pinkey"
	"github.com/tezoscommons/geopin/internal/geopin/store"
	"sync"
	"time"
)

// Emitter receives one event per committed mutation, in commit order.
type Emitter interface {
	Emit(e *model.Event)
}

/*
 * Registry owns the pin aggregate. Every operation runs under one
 * exclusive lock and inside one store transaction, so it either commits
 * all of its writes and its event or nothing.
 */
type Registry struct {
	store    store.Store
	clock    Clock
	emitter  Emitter
	window   uint64
	log      *logrus.Entry
	l        *sync.Mutex
	lastTime uint64
	seq      uint64
}

func New(s store.Store, clock Clock, emitter Emitter, window time.Duration, l *logrus.Entry) *Registry {
	return &Registry{
		store:   s,
		clock:   clock,
		emitter: emitter,
		window:  uint64(window / time.Second),
		log:     l.WithField("source", "registry"),
		l:       &sync.Mutex{},
	}
}

func NewRegistry(c *config.Config, s store.Store, d *notify.Dispatcher, l *logrus.Entry) *Registry {
	r := New(s, RealClock{}, d, c.Registry.Window(), l)
	if n, err := r.Count(); err == nil {
		livePins.Set(float64(n))
		r.log.WithField("pins", n).Info("Registry loaded")
	}
	return r
}

// now reads the host clock as Unix seconds. The stream handed out is
// non-decreasing; the sentinel value is never returned.
func (r *Registry) now() (uint64, error) {
	t := r.clock.Now().Unix()
	if t < 0 || uint64(t) == pinkey.Sentinel {
		r.log.WithField("clock", t).Error("host clock produced an unusable timestamp")
		return 0, ErrInvalidClock
	}
	ts := uint64(t)
	if ts < r.lastTime {
		ts = r.lastTime
	}
	r.lastTime = ts
	return ts, nil
}

func (r *Registry) emit(e *model.Event, now uint64) {
	r.seq++
	e.ID = uuid.New().String()
	e.Seq = r.seq
	e.Time = now
	if r.emitter != nil {
		r.emitter.Emit(e)
	}
}

func (r *Registry) committed(tx store.Tx) {
	livePins.Set(float64(tx.Count()))
}

func occupied(tx store.Tx) pinkey.Occupied {
	return func(k pinkey.Key) bool {
		return tx.Exists(k) || tx.GetFile(k) != (common.Hash{})
	}
}

// Pin creates a new pin owned by caller and returns its key.
func (r *Registry) Pin(caller common.Address, fileHash common.Hash, lat, lon, alt uint64) (k pinkey.Key, err error) {
	defer func() { observe("pin", err) }()
	if fileHash == (common.Hash{}) {
		return k, ErrInvalidFileHash
	}

	r.l.Lock()
	defer r.l.Unlock()
	now, err := r.now()
	if err != nil {
		return k, err
	}

	probes := 0
	err = r.store.Update(func(tx store.Tx) error {
		var err error
		k, probes, err = pinkey.Derive(pinkey.Fields{
			Latitude:  lat,
			Longitude: lon,
			Altitude:  alt,
			Timestamp: now,
		}, occupied(tx))
		if err != nil {
			return err
		}
		if err = tx.SetFile(k, fileHash); err != nil {
			return err
		}
		if err = tx.SetOwner(k, caller); err != nil {
			return err
		}
		if err = tx.AddLive(k); err != nil {
			return err
		}
		r.committed(tx)
		return nil
	})
	if err != nil {
		return pinkey.Key{}, err
	}
	if probes > 0 {
		collisionProbesTotal.Add(float64(probes))
		r.log.WithField("key", k.Hex()).WithField("probes", probes).Debug("resolved key collision")
	}

	key, hash, owner := k, fileHash, caller
	f := k.Fields()
	r.emit(&model.Event{
		Kind:      model.KindPinned,
		Actor:     caller,
		Key:       &key,
		Latitude:  f.Latitude,
		Longitude: f.Longitude,
		Altitude:  f.Altitude,
		Timestamp: f.Timestamp,
		FileHash:  &hash,
		Owner:     &owner,
	}, now)
	r.log.WithField("key", k.Hex()).WithField("owner", caller.Hex()).WithField("hash", fileHash.Hex()).Info("pinned")
	return k, nil
}

// PinAt pins at altitude zero.
func (r *Registry) PinAt(caller common.Address, fileHash common.Hash, lat, lon uint64) (pinkey.Key, error) {
	return r.Pin(caller, fileHash, lat, lon, 0)
}

// Unpin removes a live pin. Locked pins can never be removed.
func (r *Registry) Unpin(caller common.Address, k pinkey.Key) (err error) {
	defer func() { observe("unpin", err) }()
	r.l.Lock()
	defer r.l.Unlock()
	now, err := r.now()
	if err != nil {
		return err
	}

	err = r.store.Update(func(tx store.Tx) error {
		if !tx.Exists(k) {
			return ErrPinNotFound
		}
		if err := checkOwner(tx, k, caller, now, r.window); err != nil {
			return err
		}
		if err := checkNotLocked(k); err != nil {
			return err
		}
		if err := tx.SetFile(k, common.Hash{}); err != nil {
			return err
		}
		if err := tx.SetOwner(k, common.Address{}); err != nil {
			return err
		}
		if err := tx.RemoveLive(k); err != nil {
			return err
		}
		r.committed(tx)
		return nil
	})
	if err != nil {
		return err
	}

	f := k.Fields()
	r.emit(&model.Event{
		Kind:      model.KindUnpinned,
		Actor:     caller,
		Latitude:  f.Latitude,
		Longitude: f.Longitude,
		Altitude:  f.Altitude,
		Timestamp: f.Timestamp,
	}, now)
	r.log.WithField("key", k.Hex()).WithField("caller", caller.Hex()).Info("unpinned")
	return nil
}

// LockPin re-keys a live pin under the sentinel timestamp and returns the
// new key. The old key stops being live.
func (r *Registry) LockPin(caller common.Address, k pinkey.Key) (locked pinkey.Key, err error) {
	defer func() { observe("lock", err) }()
	r.l.Lock()
	defer r.l.Unlock()
	now, err := r.now()
	if err != nil {
		return locked, err
	}

	var hash common.Hash
	var owner common.Address
	probes := 0
	err = r.store.Update(func(tx store.Tx) error {
		if !tx.Exists(k) {
			return ErrPinNotFound
		}
		if err := checkNotLocked(k); err != nil {
			return err
		}
		var err error
		locked, probes, err = pinkey.DeriveLocked(k, occupied(tx))
		if err != nil {
			return err
		}
		hash, owner = tx.GetFile(k), tx.GetOwner(k)

		if err = tx.SetFile(locked, hash); err != nil {
			return err
		}
		if err = tx.SetOwner(locked, owner); err != nil {
			return err
		}
		if err = tx.AddLive(locked); err != nil {
			return err
		}
		if err = tx.SetFile(k, common.Hash{}); err != nil {
			return err
		}
		if err = tx.SetOwner(k, common.Address{}); err != nil {
			return err
		}
		if err = tx.RemoveLive(k); err != nil {
			return err
		}
		r.committed(tx)
		return nil
	})
	if err != nil {
		return pinkey.Key{}, err
	}
	if probes > 0 {
		collisionProbesTotal.Add(float64(probes))
	}

	oldKey, newKey := k, locked
	r.emit(&model.Event{
		Kind:     model.KindLockedPin,
		Actor:    caller,
		Key:      &oldKey,
		NewKey:   &newKey,
		FileHash: &hash,
		Owner:    &owner,
	}, now)
	r.log.WithField("key", k.Hex()).WithField("locked", locked.Hex()).WithField("caller", caller.Hex()).Info("locked pin")
	return locked, nil
}

func (r *Registry) SetOwner(caller common.Address, k pinkey.Key, newOwner common.Address) (err error) {
	defer func() { observe("set_owner", err) }()
	r.l.Lock()
	defer r.l.Unlock()
	now, err := r.now()
	if err != nil {
		return err
	}

	var old common.Address
	err = r.store.Update(func(tx store.Tx) error {
		if !tx.Exists(k) {
			return ErrPinNotFound
		}
		if err := checkOwner(tx, k, caller, now, r.window); err != nil {
			return err
		}
		old = tx.GetOwner(k)
		return tx.SetOwner(k, newOwner)
	})
	if err != nil {
		return err
	}

	key, owner := k, newOwner
	r.emit(&model.Event{
		Kind:     model.KindChangedOwner,
		Actor:    caller,
		Key:      &key,
		Owner:    &owner,
		OldOwner: &old,
	}, now)
	r.log.WithField("key", k.Hex()).WithField("owner", newOwner.Hex()).Info("changed owner")
	return nil
}

func (r *Registry) SetFile(caller common.Address, k pinkey.Key, newHash common.Hash) (err error) {
	defer func() { observe("set_file", err) }()
	if newHash == (common.Hash{}) {
		return ErrInvalidFileHash
	}
	r.l.Lock()
	defer r.l.Unlock()
	now, err := r.now()
	if err != nil {
		return err
	}

	var old common.Hash
	err = r.store.Update(func(tx store.Tx) error {
		if !tx.Exists(k) {
			return ErrPinNotFound
		}
		if err := checkOwner(tx, k, caller, now, r.window); err != nil {
			return err
		}
		old = tx.GetFile(k)
		return tx.SetFile(k, newHash)
	})
	if err != nil {
		return err
	}

	key, hash := k, newHash
	r.emit(&model.Event{
		Kind:        model.KindChangedFile,
		Actor:       caller,
		Key:         &key,
		FileHash:    &hash,
		OldFileHash: &old,
	}, now)
	r.log.WithField("key", k.Hex()).WithField("hash", newHash.Hex()).Info("changed file")
	return nil
}

// RequireLocked fails with ErrPinNotLocked unless k is a live locked pin.
func (r *Registry) RequireLocked(k pinkey.Key) error {
	return r.store.View(func(tx store.Tx) error {
		if !tx.Exists(k) {
			return ErrPinNotFound
		}
		return checkLocked(k)
	})
}

func (r *Registry) Get(k pinkey.Key) (*model.Pin, error) {
	var p model.Pin
	err := r.store.View(func(tx store.Tx) error {
		if !tx.Exists(k) {
			return ErrPinNotFound
		}
		p = model.NewPin(k, tx.GetFile(k), tx.GetOwner(k))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Registry) GetFile(k pinkey.Key) (h common.Hash, err error) {
	err = r.store.View(func(tx store.Tx) error {
		h = tx.GetFile(k)
		return nil
	})
	return h, err
}

func (r *Registry) GetOwner(k pinkey.Key) (o common.Address, err error) {
	err = r.store.View(func(tx store.Tx) error {
		o = tx.GetOwner(k)
		return nil
	})
	return o, err
}

func (r *Registry) Exists(k pinkey.Key) (ok bool, err error) {
	err = r.store.View(func(tx store.Tx) error {
		ok = tx.Exists(k)
		return nil
	})
	return ok, err
}

func (r *Registry) Count() (n int, err error) {
	err = r.store.View(func(tx store.Tx) error {
		n = tx.Count()
		return nil
	})
	return n, err
}

// List returns every live pin in key order.
func (r *Registry) List() ([]model.Pin, error) {
	pins := []model.Pin{}
	err := r.store.View(func(tx store.Tx) error {
		return tx.ForEachLive(func(k pinkey.Key) error {
			pins = append(pins, model.NewPin(k, tx.GetFile(k), tx.GetOwner(k)))
			return nil
		})
	})
	return pins, err
}

func (r *Registry) Snapshot() (*model.Snapshot, error) {
	r.l.Lock()
	defer r.l.Unlock()
	pins, err := r.List()
	if err != nil {
		return nil, err
	}
	return &model.Snapshot{
		Created: r.clock.Now().UTC(),
		Count:   len(pins),
		Pins:    pins,
	}, nil
}

// Restore loads a snapshot into an empty registry. No events are emitted.
func (r *Registry) Restore(s *model.Snapshot) error {
	r.l.Lock()
	defer r.l.Unlock()
	err := r.store.Update(func(tx store.Tx) error {
		if tx.Count() != 0 {
			return ErrNotEmpty
		}
		for _, p := range s.Pins {
			if tx.Exists(p.Key) {
				return fmt.Errorf("duplicate key %s in snapshot", p.Key.Hex())
			}
			if p.FileHash == (common.Hash{}) {
				return fmt.Errorf("%w: key %s", ErrInvalidFileHash, p.Key.Hex())
			}
			if err := tx.SetFile(p.Key, p.FileHash); err != nil {
				return err
			}
			if err := tx.SetOwner(p.Key, p.Owner); err != nil {
				return err
			}
			if err := tx.AddLive(p.Key); err != nil {
				return err
			}
		}
		r.committed(tx)
		return nil
	})
	if err != nil && !errors.Is(err, ErrNotEmpty) {
		r.log.WithError(err).Error("restore failed")
	}
	if err == nil {
		r.log.WithField("pins", len(s.Pins)).Info("restored snapshot")
	}
	return err
}
