package app

import (
	"github.com/gin-gonic/gin"
	"github.com/tezoscommons/geopin/internal/geopin/indexer"
	"github.com/tezoscommons/geopin/internal/geopin/model"
	"strconv"
)

const defaultPageSize = 50

type NetworkResponse struct {
	PeerId string
	Peers  []indexer.PeerInfo
}

func (a *API) eventsRoute(c *gin.Context) {
	if a.journal == nil {
		c.JSON(503, errorBody("no event journal"))
		return
	}
	if kind := c.Query("kind"); kind != "" {
		events, err := a.journal.EventsByKind(model.EventKind(kind))
		if err != nil {
			a.fail(c, err)
			return
		}
		c.JSON(200, events)
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.JSON(400, errorBody("invalid page"))
		return
	}
	pagesize, err := strconv.Atoi(c.DefaultQuery("pagesize", strconv.Itoa(defaultPageSize)))
	if err != nil || pagesize < 1 {
		c.JSON(400, errorBody("invalid pagesize"))
		return
	}
	events, err := a.journal.Events(pagesize, page)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(200, events)
}

func (a *API) keyEventsRoute(c *gin.Context) {
	if a.journal == nil {
		c.JSON(503, errorBody("no event journal"))
		return
	}
	k, ok := a.keyParam(c)
	if !ok {
		return
	}
	events, err := a.journal.EventsForKey(k)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(200, events)
}

func (a *API) networkRoute(c *gin.Context) {
	res := NetworkResponse{Peers: []indexer.PeerInfo{}}
	if a.net != nil {
		res.PeerId = a.net.ID()
	}
	if a.indexer != nil {
		res.Peers = a.indexer.Peers()
	}
	c.JSON(200, res)
}

func (a *API) idRoute(c *gin.Context) {
	if a.net == nil {
		c.String(503, "network disabled")
		return
	}
	c.String(200, a.net.ID())
}
