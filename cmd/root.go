package cmd

import (
	"errors"
	"fmt"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tezoscommons/geopin/internal/geopin/app"
	"github.com/tezoscommons/geopin/internal/geopin/archive"
	"github.com/tezoscommons/geopin/internal/geopin/config"
	"github.com/tezoscommons/geopin/internal/geopin/indexer"
	"github.com/tezoscommons/geopin/internal/geopin/notify"
	"github.com/tezoscommons/geopin/internal/geopin/registry"
	"github.com/tezoscommons/geopin/internal/geopin/store"
	"go.uber.org/dig"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func GetRootCommand(c *dig.Container) *cobra.Command {
	var root = &cobra.Command{
		Use:   "geopin",
		Short: "registry of files pinned to a place and a moment",
	}

	root.AddCommand(GetConfigCommand(c), GetRunCommand(c))
	root.AddCommand(GetToolsCommand(c))
	return root
}

type runDeps struct {
	dig.In
	Config     *config.Config
	Log        *logrus.Entry
	Store      store.Store
	Registry   *registry.Registry
	Dispatcher *notify.Dispatcher
	API        *app.API
	Indexer    *indexer.Indexer
	Archive    *archive.S3Archive
}

func GetRunCommand(c *dig.Container) *cobra.Command {
	restore := false
	var root = &cobra.Command{
		Use:   "run",
		Short: "serve the registry",
		Run: func(cmd *cobra.Command, args []string) {
			err := c.Invoke(func(d runDeps) {
				log := d.Log.WithField("source", "run")
				if restore {
					restoreLatest(d, log)
				}
				if d.API != nil {
					go d.API.Run()
				}
				if d.Indexer != nil {
					log.Info("indexing remote events")
				}

				stop := make(chan struct{})
				if d.Archive != nil && d.Config.Archive.Interval > 0 {
					go archive.Run(d.Archive, d.Registry, time.Duration(d.Config.Archive.Interval)*time.Second, d.Log, stop)
				}

				signal_channel := make(chan os.Signal, 1)
				signal.Notify(signal_channel, os.Interrupt, syscall.SIGTERM)
				<-signal_channel

				log.Info("shutting down")
				close(stop)
				d.Dispatcher.Close()
				if err := d.Store.Close(); err != nil {
					log.Error(err)
				}
			})

			if err != nil {
				fmt.Println(err)
			}
		},
	}
	root.Flags().BoolVar(&restore, "restore", false, "load the latest archived snapshot into an empty registry")
	return root
}

func restoreLatest(d runDeps, log *logrus.Entry) {
	if d.Archive == nil {
		log.Warn("no archive configured, nothing to restore")
		return
	}
	snap, err := d.Archive.Load(archive.LatestName)
	if err != nil {
		log.WithError(err).Error("unable to load latest snapshot")
		return
	}
	err = d.Registry.Restore(snap)
	if errors.Is(err, registry.ErrNotEmpty) {
		log.Info("registry not empty, skipping restore")
		return
	}
	if err != nil {
		log.Fatal(err)
	}
}
