package cmd

import (
	"encoding/base64"
	"fmt"
	"github.com/libp2p/go-libp2p-core/crypto"
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tezoscommons/geopin/internal/geopin/archive"
	geocrypto "github.com/tezoscommons/geopin/internal/geopin/crypto"
	"github.com/tezoscommons/geopin/internal/geopin/model"
	"github.com/tezoscommons/geopin/internal/geopin/pinkey"
	"github.com/tezoscommons/geopin/internal/geopin/registry"
	"go.uber.org/dig"
	"strconv"
	"time"
)

func GetToolsCommand(c *dig.Container) *cobra.Command {
	var root = &cobra.Command{
		Use:   "tools",
		Short: "offline helpers",
	}
	root.AddCommand(GetDeriveCommand(), GetParseCommand(), GetCIDCommand())
	root.AddCommand(GetGenKeysCommand(c), GetSnapshotCommand(c))
	return root
}

func GetDeriveCommand() *cobra.Command {
	var lat, lon, alt, ts string
	var root = &cobra.Command{
		Use:   "derive",
		Short: "pack coordinates and a timestamp into a pin key",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := pinkey.Fields{}
			var err error
			for _, p := range []struct {
				name string
				in   string
				out  *uint64
			}{
				{"lat", lat, &f.Latitude},
				{"lon", lon, &f.Longitude},
				{"alt", alt, &f.Altitude},
				{"time", ts, &f.Timestamp},
			} {
				if *p.out, err = pinkey.ParseField(p.in); err != nil {
					return fmt.Errorf("--%s: %w", p.name, err)
				}
			}
			// no registry is consulted, so nothing is occupied
			k, _, err := pinkey.Derive(f, func(pinkey.Key) bool { return false })
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), k.Hex())
			return nil
		},
	}
	root.Flags().StringVar(&lat, "lat", "0", "latitude field")
	root.Flags().StringVar(&lon, "lon", "0", "longitude field")
	root.Flags().StringVar(&alt, "alt", "0", "altitude field")
	root.Flags().StringVar(&ts, "time", strconv.FormatInt(time.Now().Unix(), 10), "unix timestamp")
	return root
}

func GetParseCommand() *cobra.Command {
	var root = &cobra.Command{
		Use:   "parse <key>",
		Short: "split a pin key into its fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := pinkey.FromHex(args[0])
			if err != nil {
				return err
			}
			f := k.Fields()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "latitude:  %d\n", f.Latitude)
			fmt.Fprintf(out, "longitude: %d\n", f.Longitude)
			fmt.Fprintf(out, "altitude:  %d\n", f.Altitude)
			fmt.Fprintf(out, "timestamp: %d\n", f.Timestamp)
			fmt.Fprintf(out, "locked:    %t\n", k.Locked())
			return nil
		},
	}
	return root
}

func GetCIDCommand() *cobra.Command {
	var root = &cobra.Command{
		Use:   "cid <hash>",
		Short: "convert between a file hash and its CIDv0",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := model.ParseFileHash(args[0])
			if err != nil {
				return err
			}
			cid, err := model.FileCID(h)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h.Hex())
			fmt.Fprintln(cmd.OutOrStdout(), cid)
			return nil
		},
	}
	return root
}

func GetGenKeysCommand(c *dig.Container) *cobra.Command {
	var root = &cobra.Command{
		Use: "genkeys",
		RunE: func(cmd *cobra.Command, args []string) error {
			bpriv, err := geocrypto.GenerateKey()
			if err != nil {
				return err
			}
			priv, err := crypto.UnmarshalPrivateKey(bpriv)
			if err != nil {
				return err
			}
			bpub, _ := crypto.MarshalPublicKey(priv.GetPublic())
			identity, _ := peer.IDFromPublicKey(priv.GetPublic())

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "\nIdentity:")
			fmt.Fprintln(out, identity)

			fmt.Fprintln(out, "\nPublicKey:")
			fmt.Fprintln(out, base64.StdEncoding.EncodeToString(bpub))

			fmt.Fprintln(out, "\nPrivateKey:")
			fmt.Fprintln(out, base64.StdEncoding.EncodeToString(bpriv))
			return nil
		},
	}
	return root
}

func GetSnapshotCommand(c *dig.Container) *cobra.Command {
	var root = &cobra.Command{
		Use:   "snapshot",
		Short: "store a snapshot of the registry in the archive",
		Run: func(cmd *cobra.Command, args []string) {
			err := c.Invoke(func(r *registry.Registry, a *archive.S3Archive, log *logrus.Entry) {
				if a == nil {
					log.Fatal("no archive bucket configured")
				}
				name, err := archive.Save(a, r)
				if err != nil {
					log.Fatal(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), name)
			})
			if err != nil {
				fmt.Println(err)
			}
		},
	}
	return root
}
