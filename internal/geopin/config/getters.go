package config

// GetIpfsAPI returns the external IPFS node to publish through, or nil
// in which case we run our own libp2p instance.
func (c *Config) GetIpfsAPI() *string {
	if !c.NetworkEnabled || c.Network.IPFS == "" {
		return nil
	}
	res := c.Network.IPFS
	return &res
}

func (c *Config) GetTopic() string {
	if c.Network.Topic == "" {
		return "GEOPIN"
	}
	return c.Network.Topic
}
