package app

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tezoscommons/geopin/internal/geopin/config"
	"github.com/tezoscommons/geopin/internal/geopin/db"
	"github.com/tezoscommons/geopin/internal/geopin/model"
	"github.com/tezoscommons/geopin/internal/geopin/network"
	"github.com/tezoscommons/geopin/internal/geopin/notify"
	"github.com/tezoscommons/geopin/internal/geopin/pinkey"
	"github.com/tezoscommons/geopin/internal/geopin/registry"
	"github.com/tezoscommons/geopin/internal/geopin/store"
)

const (
	alice  = "0x00000000000000000000000000000000000000a1"
	bob    = "0x00000000000000000000000000000000000000b0"
	hashA  = "0x1111111111111111111111111111111111111111111111111111111111111111"
	hashB  = "0x2222222222222222222222222222222222222222222222222222222222222222"
	window = 100 * time.Second
)

type fixture struct {
	api     *API
	router  *gin.Engine
	clock   *registry.StubClock
	net     *network.MemoryNetwork
	journal *db.StormDB
	events  *notify.Dispatcher
}

func setup(t *testing.T, tokens ...config.AccessTokens) *fixture {
	gin.SetMode(gin.TestMode)
	logger, _ := test.NewNullLogger()
	l := logrus.NewEntry(logger)

	journal, err := db.OpenStormDB(filepath.Join(t.TempDir(), "journal.db"), l)
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })

	events := notify.NewDispatcher(64, l, notify.NewJournalSink(journal))
	t.Cleanup(events.Close)

	clock := registry.UnixClock(1000)
	net := network.NewMemoryHub().Join("node-1")
	c := &config.Config{}
	c.API.Uploads.Enabled = true
	c.API.Uploads.MaxSize = 1 << 20
	a := &API{
		log:          l,
		c:            c,
		registry:     registry.New(store.NewMemoryStore(), clock, events, window, l),
		net:          net,
		journal:      journal,
		accessTokens: tokens,
		l:            &sync.Mutex{},
	}
	return &fixture{api: a, router: a.Router(), clock: clock, net: net, journal: journal, events: events}
}

func (f *fixture) do(method, path, caller string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set("Caller", caller)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodePin(t *testing.T, w *httptest.ResponseRecorder) PinResponse {
	res := PinResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res), w.Body.String())
	return res
}

func (f *fixture) pin(t *testing.T, caller string) pinkey.Key {
	w := f.do("POST", "/pins", caller, PinRequest{Latitude: "1", Longitude: "2", Altitude: "3", FileHash: hashA})
	require.Equal(t, 201, w.Code, w.Body.String())
	return decodePin(t, w).Key
}

func TestPinLifecycle(t *testing.T) {
	f := setup(t)
	k := f.pin(t, alice)
	assert.Equal(t, pinkey.Pack(pinkey.Fields{Latitude: 1, Longitude: 2, Altitude: 3, Timestamp: 1000}), k)

	w := f.do("GET", "/pins/"+k.Hex(), "", nil)
	require.Equal(t, 200, w.Code)
	p := decodePin(t, w)
	assert.Equal(t, common.HexToAddress(alice), p.Owner)
	assert.Equal(t, common.HexToHash(hashA), p.FileHash)
	assert.NotEmpty(t, p.Cid)
	assert.False(t, p.Locked)

	// bob is locked out while the ownership window is open
	w = f.do("PUT", "/pins/"+k.Hex()+"/file", bob, FileRequest{FileHash: hashB})
	assert.Equal(t, 403, w.Code)

	f.clock.Advance(window)
	w = f.do("PUT", "/pins/"+k.Hex()+"/file", bob, FileRequest{FileHash: hashB})
	require.Equal(t, 200, w.Code, w.Body.String())
	assert.Equal(t, common.HexToHash(hashB), decodePin(t, w).FileHash)

	w = f.do("PUT", "/pins/"+k.Hex()+"/owner", bob, OwnerRequest{Owner: bob})
	require.Equal(t, 200, w.Code)
	assert.Equal(t, common.HexToAddress(bob), decodePin(t, w).Owner)

	w = f.do("GET", "/pins/"+k.Hex()+"/locked", "", nil)
	assert.Equal(t, 409, w.Code)

	w = f.do("POST", "/pins/"+k.Hex()+"/lock", alice, nil)
	require.Equal(t, 200, w.Code, w.Body.String())
	locked := decodePin(t, w)
	assert.True(t, locked.Locked)
	assert.Equal(t, pinkey.Sentinel, locked.Timestamp)

	w = f.do("GET", "/pins/"+k.Hex(), "", nil)
	assert.Equal(t, 404, w.Code)
	w = f.do("GET", "/pins/"+locked.Key.Hex()+"/locked", "", nil)
	assert.Equal(t, 200, w.Code)

	w = f.do("DELETE", "/pins/"+locked.Key.Hex(), bob, nil)
	assert.Equal(t, 409, w.Code)
}

func TestUnpin(t *testing.T) {
	f := setup(t)
	k := f.pin(t, alice)

	w := f.do("DELETE", "/pins/"+k.Hex(), bob, nil)
	assert.Equal(t, 403, w.Code)
	w = f.do("DELETE", "/pins/"+k.Hex(), alice, nil)
	assert.Equal(t, 204, w.Code)
	w = f.do("DELETE", "/pins/"+k.Hex(), alice, nil)
	assert.Equal(t, 404, w.Code)

	w = f.do("GET", "/pins", "", nil)
	require.Equal(t, 200, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestCollisionOverHTTP(t *testing.T) {
	f := setup(t)
	first := f.pin(t, alice)
	second := f.pin(t, bob)
	next, ok := first.Next()
	require.True(t, ok)
	assert.Equal(t, next, second)

	w := f.do("GET", "/pins", "", nil)
	require.Equal(t, 200, w.Code)
	var list []PinResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, first, list[0].Key)
	assert.Equal(t, second, list[1].Key)
}

func TestBadRequests(t *testing.T) {
	f := setup(t)
	k := f.pin(t, alice)

	cases := []struct {
		name   string
		method string
		path   string
		caller string
		body   interface{}
		status int
	}{
		{"no caller", "POST", "/pins", "", PinRequest{Latitude: "1", Longitude: "2", FileHash: hashA}, 401},
		{"garbage caller", "POST", "/pins", "alice", PinRequest{Latitude: "1", Longitude: "2", FileHash: hashA}, 401},
		{"missing hash", "POST", "/pins", alice, PinRequest{Latitude: "1", Longitude: "2"}, 400},
		{"zero hash", "POST", "/pins", alice, PinRequest{Latitude: "1", Longitude: "2", FileHash: "0x" + string(bytes.Repeat([]byte("0"), 64))}, 400},
		{"bad latitude", "POST", "/pins", alice, PinRequest{Latitude: "north", Longitude: "2", FileHash: hashA}, 400},
		{"short key", "GET", "/pins/0x1234", "", nil, 400},
		{"absent key", "GET", "/pins/" + pinkey.Pack(pinkey.Fields{Timestamp: 5}).Hex(), "", nil, 404},
		{"bad owner", "PUT", "/pins/" + k.Hex() + "/owner", alice, OwnerRequest{Owner: "bob"}, 400},
		{"bad file", "PUT", "/pins/" + k.Hex() + "/file", alice, FileRequest{FileHash: "Qmnope"}, 400},
		{"lock absent", "POST", "/pins/" + pinkey.Pack(pinkey.Fields{Timestamp: 5}).Hex() + "/lock", alice, nil, 404},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(tc.method, tc.path, tc.caller, tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}
}

func TestFileHashAsCID(t *testing.T) {
	f := setup(t)
	cid, err := model.FileCID(common.HexToHash(hashB))
	require.NoError(t, err)

	w := f.do("POST", "/pins", alice, PinRequest{Latitude: "0x10", Longitude: "0x20", FileHash: cid})
	require.Equal(t, 201, w.Code, w.Body.String())
	p := decodePin(t, w)
	assert.Equal(t, common.HexToHash(hashB), p.FileHash)
	assert.Equal(t, uint64(16), p.Latitude)
	assert.Equal(t, cid, p.Cid)
}

func TestAccessTokens(t *testing.T) {
	f := setup(t, config.AccessTokens{Name: "alice", Token: "secret", Address: alice})
	body := PinRequest{Latitude: "1", Longitude: "2", FileHash: hashA}

	send := func(token string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		json.NewEncoder(&buf).Encode(body)
		req := httptest.NewRequest("POST", "/pins", &buf)
		req.Header.Set("Content-Type", "application/json")
		// the Caller header is ignored once tokens are configured
		req.Header.Set("Caller", bob)
		if token != "" {
			req.Header.Set("Token", token)
		}
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, 401, send("").Code)
	assert.Equal(t, 401, send("wrong").Code)
	w := send("secret")
	require.Equal(t, 201, w.Code)
	assert.Equal(t, common.HexToAddress(alice), decodePin(t, w).Owner)
}

func TestUpload(t *testing.T) {
	f := setup(t)
	content := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{7}, 512)...)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("latitude", "7"))
	require.NoError(t, mw.WriteField("longitude", "8"))
	fw, err := mw.CreateFormFile("file", "map.png")
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Caller", alice)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, 201, w.Code, w.Body.String())

	res := UploadResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "image/png", res.Mime)
	stored, ok := f.net.File(res.Cid)
	require.True(t, ok)
	assert.Equal(t, content, stored)
	assert.Equal(t, uint64(7), res.Latitude)
}

func TestUploadDisabled(t *testing.T) {
	f := setup(t)
	f.api.c.API.Uploads.Enabled = false
	req := httptest.NewRequest("POST", "/uploads", nil)
	req.Header.Set("Caller", alice)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, 404, w.Code)
}

func TestEventsJournal(t *testing.T) {
	f := setup(t)
	k := f.pin(t, alice)
	require.Equal(t, 200, f.do("PUT", "/pins/"+k.Hex()+"/file", alice, FileRequest{FileHash: hashB}).Code)
	require.Equal(t, 204, f.do("DELETE", "/pins/"+k.Hex(), alice, nil).Code)
	f.events.Close()

	w := f.do("GET", "/events/"+k.Hex(), "", nil)
	require.Equal(t, 200, w.Code)
	var events []model.Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	require.Len(t, events, 3)
	assert.Equal(t, model.KindPinned, events[0].Kind)
	assert.Equal(t, model.KindChangedFile, events[1].Kind)
	assert.Equal(t, model.KindUnpinned, events[2].Kind)
	assert.Nil(t, events[2].Key)

	w = f.do("GET", "/events?page=1&pagesize=2", "", nil)
	require.Equal(t, 200, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	require.Len(t, events, 2)
	assert.Equal(t, model.KindUnpinned, events[0].Kind)

	w = f.do("GET", "/events?kind=Pinned", "", nil)
	require.Equal(t, 200, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	require.Len(t, events, 1)

	assert.Equal(t, 400, f.do("GET", "/events?page=0", "", nil).Code)
}

func TestNetworkAndID(t *testing.T) {
	f := setup(t)
	w := f.do("GET", "/id", "", nil)
	require.Equal(t, 200, w.Code)
	assert.Equal(t, "node-1", w.Body.String())

	w = f.do("GET", "/network", "", nil)
	require.Equal(t, 200, w.Code)
	res := NetworkResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "node-1", res.PeerId)
	assert.Empty(t, res.Peers)

	w = f.do("GET", "/metrics", "", nil)
	assert.Equal(t, 200, w.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, 404, statusFor(registry.ErrPinNotFound))
	assert.Equal(t, 403, statusFor(registry.ErrNotAuthorized))
	assert.Equal(t, 409, statusFor(registry.ErrPinLocked))
	assert.Equal(t, 409, statusFor(registry.ErrPinNotLocked))
	assert.Equal(t, 400, statusFor(registry.ErrInvalidFileHash))
	assert.Equal(t, 507, statusFor(registry.ErrKeySpaceExhausted))
	assert.Equal(t, 500, statusFor(registry.ErrInvalidClock))
}
