package crypto

import (
	"encoding/base64"
	"path/filepath"
	"testing"

	"github.com/libp2p/go-libp2p-core/crypto"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tezoscommons/geopin/internal/geopin/db"
)

func TestGetPrivateKeyPersists(t *testing.T) {
	logger, _ := test.NewNullLogger()
	l := logrus.NewEntry(logger)
	d, err := db.OpenStormDB(filepath.Join(t.TempDir(), "journal.db"), l)
	require.NoError(t, err)
	defer d.Close()

	first := GetPrivateKey(d, l)
	_, err = crypto.UnmarshalPrivateKey(first)
	require.NoError(t, err)

	second := GetPrivateKey(d, l)
	assert.Equal(t, first, second)
}

func TestGetPrivateKeyFromEnv(t *testing.T) {
	logger, _ := test.NewNullLogger()
	l := logrus.NewEntry(logger)
	d, err := db.OpenStormDB(filepath.Join(t.TempDir(), "journal.db"), l)
	require.NoError(t, err)
	defer d.Close()

	key, err := GenerateKey()
	require.NoError(t, err)
	t.Setenv("P2P_SECRETKEY", base64.StdEncoding.EncodeToString(key))

	assert.Equal(t, key, GetPrivateKey(d, l))
}
