package app

import (
	"fmt"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/tezoscommons/geopin/internal/geopin/model"
	"github.com/tezoscommons/geopin/internal/geopin/pinkey"
)

type PinRequest struct {
	Latitude  string `json:"latitude" binding:"required"`
	Longitude string `json:"longitude" binding:"required"`
	Altitude  string `json:"altitude"`
	FileHash  string `json:"fileHash" binding:"required"`
}

type OwnerRequest struct {
	Owner string `json:"owner" binding:"required"`
}

type FileRequest struct {
	FileHash string `json:"fileHash" binding:"required"`
}

type PinResponse struct {
	model.Pin
	Cid string `json:"cid,omitempty"`
}

func pinResponse(p model.Pin) PinResponse {
	cid, _ := model.FileCID(p.FileHash)
	return PinResponse{Pin: p, Cid: cid}
}

type coordinates struct {
	lat, lon, alt uint64
}

func parseCoordinates(lat, lon, alt string) (coordinates, error) {
	var res coordinates
	var err error
	if res.lat, err = pinkey.ParseField(lat); err != nil {
		return res, fmt.Errorf("%w: latitude: %s", pinkey.ErrInvalidKey, err)
	}
	if res.lon, err = pinkey.ParseField(lon); err != nil {
		return res, fmt.Errorf("%w: longitude: %s", pinkey.ErrInvalidKey, err)
	}
	if alt == "" {
		return res, nil
	}
	if res.alt, err = pinkey.ParseField(alt); err != nil {
		return res, fmt.Errorf("%w: altitude: %s", pinkey.ErrInvalidKey, err)
	}
	return res, nil
}

func (a *API) keyParam(c *gin.Context) (pinkey.Key, bool) {
	k, err := pinkey.FromHex(c.Param("key"))
	if err != nil {
		c.JSON(400, errorBody(err.Error()))
		return k, false
	}
	return k, true
}

// respondPin writes the current state of k, or the error if it vanished in between.
func (a *API) respondPin(c *gin.Context, status int, k pinkey.Key) {
	p, err := a.registry.Get(k)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(status, pinResponse(*p))
}

func (a *API) pinRoute(c *gin.Context) {
	caller, ok := a.caller(c)
	if !ok {
		return
	}
	req := PinRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, errorBody(err.Error()))
		return
	}
	co, err := parseCoordinates(req.Latitude, req.Longitude, req.Altitude)
	if err != nil {
		a.fail(c, err)
		return
	}
	hash, err := model.ParseFileHash(req.FileHash)
	if err != nil {
		a.fail(c, err)
		return
	}
	k, err := a.registry.Pin(caller, hash, co.lat, co.lon, co.alt)
	if err != nil {
		a.fail(c, err)
		return
	}
	a.respondPin(c, 201, k)
}

func (a *API) listRoute(c *gin.Context) {
	pins, err := a.registry.List()
	if err != nil {
		a.fail(c, err)
		return
	}
	res := make([]PinResponse, 0, len(pins))
	for _, p := range pins {
		res = append(res, pinResponse(p))
	}
	c.JSON(200, res)
}

func (a *API) getRoute(c *gin.Context) {
	k, ok := a.keyParam(c)
	if !ok {
		return
	}
	a.respondPin(c, 200, k)
}

func (a *API) unpinRoute(c *gin.Context) {
	caller, ok := a.caller(c)
	if !ok {
		return
	}
	k, ok := a.keyParam(c)
	if !ok {
		return
	}
	if err := a.registry.Unpin(caller, k); err != nil {
		a.fail(c, err)
		return
	}
	c.Status(204)
}

func (a *API) lockRoute(c *gin.Context) {
	caller, ok := a.caller(c)
	if !ok {
		return
	}
	k, ok := a.keyParam(c)
	if !ok {
		return
	}
	locked, err := a.registry.LockPin(caller, k)
	if err != nil {
		a.fail(c, err)
		return
	}
	a.respondPin(c, 200, locked)
}

func (a *API) lockedRoute(c *gin.Context) {
	k, ok := a.keyParam(c)
	if !ok {
		return
	}
	if err := a.registry.RequireLocked(k); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(200, gin.H{"key": k.Hex(), "locked": true})
}

func (a *API) ownerRoute(c *gin.Context) {
	caller, ok := a.caller(c)
	if !ok {
		return
	}
	k, ok := a.keyParam(c)
	if !ok {
		return
	}
	req := OwnerRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, errorBody(err.Error()))
		return
	}
	if !common.IsHexAddress(req.Owner) {
		c.JSON(400, errorBody("invalid owner address"))
		return
	}
	if err := a.registry.SetOwner(caller, k, common.HexToAddress(req.Owner)); err != nil {
		a.fail(c, err)
		return
	}
	a.respondPin(c, 200, k)
}

func (a *API) fileRoute(c *gin.Context) {
	caller, ok := a.caller(c)
	if !ok {
		return
	}
	k, ok := a.keyParam(c)
	if !ok {
		return
	}
	req := FileRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, errorBody(err.Error()))
		return
	}
	hash, err := model.ParseFileHash(req.FileHash)
	if err != nil {
		a.fail(c, err)
		return
	}
	if err := a.registry.SetFile(caller, k, hash); err != nil {
		a.fail(c, err)
		return
	}
	a.respondPin(c, 200, k)
}
