package crypto

import (
	"encoding/base64"
	"github.com/libp2p/go-libp2p-core/crypto"
	"github.com/sirupsen/logrus"
	"github.com/tezoscommons/geopin/internal/geopin/db"
	"os"
)

var (
	configBucket = []byte("Config")
	privKeyName  = []byte("libp2p_private_key")
)

// GetPrivateKey returns the node's libp2p key from the environment, the
// journal db, or a freshly generated one that is then saved.
func GetPrivateKey(db *db.StormDB, l *logrus.Entry) []byte {
	log := l.WithField("source", "config")
	if val, ok := os.LookupEnv("P2P_SECRETKEY"); ok {
		log.Info("Using private key from env")
		valb, err := base64.StdEncoding.DecodeString(val)
		if err != nil {
			log.Fatal("P2P_SECRETKEY is not valid base64: ", err)
		}
		return valb
	}

	val, ok := db.Get(configBucket, privKeyName)
	if ok >= 1 {
		log.Info("Using private key from StormDB")
		return val
	}

	b, err := GenerateKey()
	if err != nil {
		log.Fatal(err)
	}
	if err := db.Write(configBucket, privKeyName, b); err != nil {
		log.Fatal(err)
	}
	log.Info("Generated new private key")
	return b
}

func GenerateKey() ([]byte, error) {
	priv, _, err := crypto.GenerateKeyPair(crypto.Ed25519, 256)
	if err != nil {
		return nil, err
	}
	return crypto.MarshalPrivateKey(priv)
}
