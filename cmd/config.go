package cmd

import (
	"encoding/base64"
	"fmt"
	"github.com/libp2p/go-libp2p-core/crypto"
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tezoscommons/geopin/internal/geopin/config"
	"go.uber.org/dig"
	"gopkg.in/yaml.v2"
)

func GetConfigCommand(c *dig.Container) *cobra.Command {
	var root = &cobra.Command{
		Use:   "config",
		Short: "inspect configuration and node identity",
	}
	root.AddCommand(GetConfigShowCommand(c), GetPeerIdCommand(c), GetPublicKeyCommand(c))
	return root
}

func GetConfigShowCommand(c *dig.Container) *cobra.Command {
	var root = &cobra.Command{
		Use: "show",
		Run: func(cmd *cobra.Command, args []string) {
			err := c.Invoke(func(c *config.Config) {
				yb, err := yaml.Marshal(c)
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), err)
					return
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(yb))
			})
			if err != nil {
				fmt.Println(err)
			}
		},
	}
	return root
}

func publicKey(privkey []byte) (crypto.PubKey, error) {
	priv, err := crypto.UnmarshalPrivateKey(privkey)
	if err != nil {
		return nil, err
	}
	return priv.GetPublic(), nil
}

func GetPeerIdCommand(c *dig.Container) *cobra.Command {
	var root = &cobra.Command{
		Use: "peerId",
		Run: func(cmd *cobra.Command, args []string) {
			err := c.Invoke(func(privkey []byte, log *logrus.Entry) {
				pub, err := publicKey(privkey)
				if err != nil {
					log.Fatal(err)
				}
				identity, err := peer.IDFromPublicKey(pub)
				if err != nil {
					log.Fatal(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), identity.String())
				fmt.Fprintln(cmd.OutOrStdout(), "\nPlease note:\nWith an external IPFS node configured, events are published under its identity instead!")
			})
			if err != nil {
				fmt.Println(err)
			}
		},
	}
	return root
}

func GetPublicKeyCommand(c *dig.Container) *cobra.Command {
	var root = &cobra.Command{
		Use: "pubkey",
		Run: func(cmd *cobra.Command, args []string) {
			err := c.Invoke(func(privkey []byte, log *logrus.Entry) {
				pub, err := publicKey(privkey)
				if err != nil {
					log.Fatal(err)
				}
				pubBytes, err := crypto.MarshalPublicKey(pub)
				if err != nil {
					log.Fatal(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), base64.StdEncoding.EncodeToString(pubBytes))
			})
			if err != nil {
				fmt.Println(err)
			}
		},
	}
	return root
}
