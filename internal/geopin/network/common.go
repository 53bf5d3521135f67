package network

import (
	"github.com/tezoscommons/geopin/internal/geopin/config"
)

// GetNetwork returns the transport events are published on, or nil if
// networking is disabled.
func GetNetwork(c *config.Config, ipfsClient *IPFS, lightclient *Lightclient) NetworkInterface {
	if !c.NetworkEnabled {
		return nil
	}
	var net NetworkInterface
	if ipfsClient == nil {
		lightclient.Setup()
		net = lightclient
	} else {
		net = ipfsClient
	}
	if len(c.Network.TrustedPeers) > 0 {
		go net.Connect(c.Network.TrustedPeers)
	}
	return net
}
