package store

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/tezoscommons/geopin/internal/geopin/pinkey"
	"sort"
	"sync"
)

type MemoryStore struct {
	l      *sync.RWMutex
	files  map[pinkey.Key]common.Hash
	owners map[pinkey.Key]common.Address
	live   map[pinkey.Key]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		l:      &sync.RWMutex{},
		files:  map[pinkey.Key]common.Hash{},
		owners: map[pinkey.Key]common.Address{},
		live:   map[pinkey.Key]struct{}{},
	}
}

func (m *MemoryStore) View(fn func(tx Tx) error) error {
	m.l.RLock()
	defer m.l.RUnlock()
	return fn(&memoryTx{base: m})
}

func (m *MemoryStore) Update(fn func(tx Tx) error) error {
	m.l.Lock()
	defer m.l.Unlock()
	tx := &memoryTx{
		base:     m,
		writable: true,
		files:    map[pinkey.Key]common.Hash{},
		owners:   map[pinkey.Key]common.Address{},
		live:     map[pinkey.Key]bool{},
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

/*
 * memoryTx stages writes in an overlay on top of the base maps.
 * Nothing touches the base until commit.
 */
type memoryTx struct {
	base     *MemoryStore
	writable bool
	files    map[pinkey.Key]common.Hash
	owners   map[pinkey.Key]common.Address
	live     map[pinkey.Key]bool
}

func (t *memoryTx) GetFile(k pinkey.Key) common.Hash {
	if h, ok := t.files[k]; ok {
		return h
	}
	return t.base.files[k]
}

func (t *memoryTx) GetOwner(k pinkey.Key) common.Address {
	if o, ok := t.owners[k]; ok {
		return o
	}
	return t.base.owners[k]
}

func (t *memoryTx) Exists(k pinkey.Key) bool {
	if v, ok := t.live[k]; ok {
		return v
	}
	_, ok := t.base.live[k]
	return ok
}

func (t *memoryTx) Count() int {
	n := len(t.base.live)
	for k, v := range t.live {
		_, inBase := t.base.live[k]
		if v && !inBase {
			n++
		}
		if !v && inBase {
			n--
		}
	}
	return n
}

func (t *memoryTx) ForEachLive(fn func(k pinkey.Key) error) error {
	keys := make([]pinkey.Key, 0, t.Count())
	for k := range t.base.live {
		if v, ok := t.live[k]; ok && !v {
			continue
		}
		keys = append(keys, k)
	}
	for k, v := range t.live {
		if _, inBase := t.base.live[k]; v && !inBase {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Compare(keys[j]) < 0 })
	for _, k := range keys {
		if err := fn(k); err != nil {
			return err
		}
	}
	return nil
}

func (t *memoryTx) SetFile(k pinkey.Key, h common.Hash) error {
	if !t.writable {
		return ErrReadOnly
	}
	if t.GetFile(k) == h {
		return nil
	}
	t.files[k] = h
	return nil
}

func (t *memoryTx) SetOwner(k pinkey.Key, owner common.Address) error {
	if !t.writable {
		return ErrReadOnly
	}
	t.owners[k] = owner
	return nil
}

func (t *memoryTx) AddLive(k pinkey.Key) error {
	if !t.writable {
		return ErrReadOnly
	}
	t.live[k] = true
	return nil
}

func (t *memoryTx) RemoveLive(k pinkey.Key) error {
	if !t.writable {
		return ErrReadOnly
	}
	t.live[k] = false
	return nil
}

func (t *memoryTx) commit() {
	b := t.base
	for k, h := range t.files {
		if h == (common.Hash{}) {
			delete(b.files, k)
		} else {
			b.files[k] = h
		}
	}
	for k, o := range t.owners {
		if o == (common.Address{}) {
			delete(b.owners, k)
		} else {
			b.owners[k] = o
		}
	}
	for k, v := range t.live {
		if v {
			b.live[k] = struct{}{}
		} else {
			delete(b.live, k)
		}
	}
}
