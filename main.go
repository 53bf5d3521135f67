package main

import (
	"fmt"
	"github.com/olivere/elastic/v7"
	"github.com/sirupsen/logrus"
	"github.com/tezoscommons/geopin/cmd"
	"github.com/tezoscommons/geopin/internal/geopin/app"
	"github.com/tezoscommons/geopin/internal/geopin/archive"
	"github.com/tezoscommons/geopin/internal/geopin/config"
	"github.com/tezoscommons/geopin/internal/geopin/crypto"
	"github.com/tezoscommons/geopin/internal/geopin/db"
	"github.com/tezoscommons/geopin/internal/geopin/indexer"
	"github.com/tezoscommons/geopin/internal/geopin/network"
	"github.com/tezoscommons/geopin/internal/geopin/notify"
	"github.com/tezoscommons/geopin/internal/geopin/registry"
	"github.com/tezoscommons/geopin/internal/geopin/store"
	"go.uber.org/dig"
	"gopkg.in/sohlich/elogrus.v7"
	"io"
	"log"
	"os"
	"time"
)

func main() {
	c := dig.New()
	c.Provide(config.NewConfig)
	c.Provide(GetLog)
	c.Provide(db.NewStormDB)
	c.Provide(crypto.GetPrivateKey)
	c.Provide(store.NewStore)
	c.Provide(network.NewIPFS)
	c.Provide(network.NewLightclient)
	c.Provide(network.GetNetwork)
	c.Provide(notify.NewEventDispatcher)
	c.Provide(registry.NewRegistry)
	c.Provide(indexer.NewIndexer)
	c.Provide(archive.NewS3Archive)
	c.Provide(app.NewAPI)

	rootCmd := cmd.GetRootCommand(c)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func GetLog(c *config.Config) *logrus.Entry {
	l := logrus.New()
	if c.Log.Elasticsearch != "" {
		client, err := elastic.NewClient(elastic.SetURL(c.Log.Elasticsearch), elastic.SetSniff(false))
		if err != nil {
			log.Fatal(err)
		}
		host, _ := os.Hostname()
		hook, err := elogrus.NewAsyncElasticHook(client, host, logrus.DebugLevel, "geopin")
		if err != nil {
			log.Fatal(err)
		}
		l.AddHook(hook)
	}

	if c.Log.File != "" {
		logFile, e := os.OpenFile(c.Log.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if e != nil {
			fmt.Println(e)
		} else {
			l.SetOutput(io.MultiWriter(os.Stdout, logFile))
		}
	}
	if level, err := logrus.ParseLevel(c.Log.Level); err == nil {
		l.SetLevel(level)
	}
	if c.Log.Format == "text" {
		l.SetFormatter(&logrus.TextFormatter{})
	}
	if c.Log.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	return l.WithField("starttime", time.Now().Unix())
}
