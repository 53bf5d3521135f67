package archive

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tezoscommons/geopin/internal/geopin/config"
	"github.com/tezoscommons/geopin/internal/geopin/model"
	"github.com/tezoscommons/geopin/internal/geopin/pinkey"
)

type memArchive struct {
	mu    sync.Mutex
	items map[string]*model.Snapshot
}

func (m *memArchive) Store(name string, s *model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[name] = s
	return nil
}

func (m *memArchive) Load(name string) (*model.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.items[name]
	if !ok {
		return nil, errors.New("not found")
	}
	return s, nil
}

func (m *memArchive) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

type fixedSnapshotter struct {
	snap *model.Snapshot
	err  error
}

func (f fixedSnapshotter) Snapshot() (*model.Snapshot, error) { return f.snap, f.err }

func snapshot() *model.Snapshot {
	k := pinkey.Pack(pinkey.Fields{Latitude: 1, Timestamp: 2})
	return &model.Snapshot{
		Created: time.Unix(1700000000, 0).UTC(),
		Count:   1,
		Pins:    []model.Pin{model.NewPin(k, common.Hash{1}, common.Address{2})},
	}
}

func TestSave(t *testing.T) {
	a := &memArchive{items: map[string]*model.Snapshot{}}
	name, err := Save(a, fixedSnapshotter{snap: snapshot()})
	require.NoError(t, err)
	assert.Equal(t, "geopin-1700000000.json", name)

	latest, err := a.Load(LatestName)
	require.NoError(t, err)
	assert.Equal(t, 1, latest.Count)
	stamped, err := a.Load(name)
	require.NoError(t, err)
	assert.Equal(t, latest, stamped)
}

func TestSavePropagatesSnapshotError(t *testing.T) {
	a := &memArchive{items: map[string]*model.Snapshot{}}
	_, err := Save(a, fixedSnapshotter{err: errors.New("store closed")})
	assert.Error(t, err)
	assert.Equal(t, 0, a.count())
}

func TestRunStops(t *testing.T) {
	logger, _ := test.NewNullLogger()
	a := &memArchive{items: map[string]*model.Snapshot{}}
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		Run(a, fixedSnapshotter{snap: snapshot()}, 5*time.Millisecond, logrus.NewEntry(logger), stop)
		close(done)
	}()

	assert.Eventually(t, func() bool { return a.count() == 2 }, time.Second, 5*time.Millisecond)
	close(stop)
	<-done
}

func TestNewS3ArchiveDisabledWithoutBucket(t *testing.T) {
	logger, _ := test.NewNullLogger()
	assert.Nil(t, NewS3Archive(&config.Config{}, logrus.NewEntry(logger)))
}
