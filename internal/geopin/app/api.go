package app

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/tezoscommons/geopin/internal/geopin/config"
	"github.com/tezoscommons/geopin/internal/geopin/db"
	"github.com/tezoscommons/geopin/internal/geopin/indexer"
	"github.com/tezoscommons/geopin/internal/geopin/network"
	"github.com/tezoscommons/geopin/internal/geopin/registry"
	"strconv"
	"sync"
	"time"
)

type API struct {
	log          *logrus.Entry
	c            *config.Config
	registry     *registry.Registry
	net          network.NetworkInterface
	journal      *db.StormDB
	indexer      *indexer.Indexer
	accessTokens []config.AccessTokens
	l            *sync.Mutex
}

func NewAPI(c *config.Config, r *registry.Registry, net network.NetworkInterface, journal *db.StormDB, idx *indexer.Indexer, l *logrus.Entry) *API {
	if !c.APIEnabled {
		l.Info("HTTP API disabled")
		return nil
	}
	a := API{
		log:          l.WithField("source", "api"),
		c:            c,
		registry:     r,
		net:          net,
		journal:      journal,
		indexer:      idx,
		accessTokens: c.API.AccessTokens,
		l:            &sync.Mutex{},
	}
	if a.c.API.Port <= 1 {
		a.log.Panic("Invalid API port")
	}
	if len(a.accessTokens) == 0 {
		a.log.Warn("No access tokens configured, trusting the Caller header")
	}
	go a.watchConfig(c)
	return &a
}

func (a *API) watchConfig(c *config.Config) {
	ch := c.GetUpdates()
	for {
		n := <-ch
		a.l.Lock()
		a.log.Info("updating access tokens")
		a.accessTokens = n.API.AccessTokens
		a.l.Unlock()
	}
}

func (a *API) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	if len(a.c.API.CORS.AllowedDomains) >= 1 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     a.c.API.CORS.AllowedDomains,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Token", "Caller"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			// max age of prefilght cache
			MaxAge: 12 * time.Hour,
		}))
	}

	r.GET("/pins", a.listRoute)
	r.POST("/pins", a.pinRoute)
	r.POST("/uploads", a.uploadRoute)
	r.GET("/pins/:key", a.getRoute)
	r.DELETE("/pins/:key", a.unpinRoute)
	r.POST("/pins/:key/lock", a.lockRoute)
	r.GET("/pins/:key/locked", a.lockedRoute)
	r.PUT("/pins/:key/owner", a.ownerRoute)
	r.PUT("/pins/:key/file", a.fileRoute)
	r.GET("/events", a.eventsRoute)
	r.GET("/events/:key", a.keyEventsRoute)
	r.GET("/network", a.networkRoute)
	r.GET("/id", a.idRoute)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func (a *API) Run() {
	addr := a.c.API.Host + ":" + strconv.Itoa(a.c.API.Port)
	a.log.Info("Starting api on: " + addr)
	gin.SetMode(gin.ReleaseMode)
	if err := a.Router().Run(addr); err != nil {
		a.log.Error(err)
	}
}
