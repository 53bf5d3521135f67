package app

import (
	"bytes"
	"errors"
	"github.com/gin-gonic/gin"
	"github.com/h2non/filetype"
	"github.com/tezoscommons/geopin/internal/geopin/model"
	"github.com/tezoscommons/geopin/internal/geopin/network"
	"io"
)

// filetype only inspects the leading bytes of a file
const sniffLength = 261

type UploadResponse struct {
	PinResponse
	Mime string `json:"mime,omitempty"`
}

func (a *API) uploadRoute(c *gin.Context) {
	if !a.c.API.Uploads.Enabled {
		c.JSON(404, errorBody("uploads disabled"))
		return
	}
	caller, ok := a.caller(c)
	if !ok {
		return
	}
	if a.net == nil {
		c.JSON(503, errorBody(network.ErrNoContentStore.Error()))
		return
	}
	co, err := parseCoordinates(c.PostForm("latitude"), c.PostForm("longitude"), c.PostForm("altitude"))
	if err != nil {
		a.fail(c, err)
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(400, errorBody(err.Error()))
		return
	}
	if max := a.c.API.Uploads.MaxSize; max > 0 && file.Size > max {
		c.JSON(413, errorBody("file too large"))
		return
	}
	f, err := file.Open()
	if err != nil {
		a.fail(c, err)
		return
	}
	defer f.Close()

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		a.fail(c, err)
		return
	}
	head = head[:n]
	mime := ""
	if kind, err := filetype.Match(head); err == nil && kind != filetype.Unknown {
		mime = kind.MIME.Value
	}

	cid, err := a.net.UploadAndPin(io.MultiReader(bytes.NewReader(head), f))
	if err != nil {
		if errors.Is(err, network.ErrNoContentStore) {
			c.JSON(503, errorBody(err.Error()))
			return
		}
		a.fail(c, err)
		return
	}
	hash, err := model.ParseFileHash(cid)
	if err != nil {
		a.fail(c, err)
		return
	}
	a.log.WithField("cid", cid).WithField("mime", mime).Info("stored upload")

	k, err := a.registry.Pin(caller, hash, co.lat, co.lon, co.alt)
	if err != nil {
		a.fail(c, err)
		return
	}
	p, err := a.registry.Get(k)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(201, UploadResponse{PinResponse: pinResponse(*p), Mime: mime})
}
