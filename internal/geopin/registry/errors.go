package registry

import (
	"errors"
	"github.com/tezoscommons/geopin/internal/geopin/model"
	"github.com/tezoscommons/geopin/internal/geopin/pinkey"
)

var (
	ErrNotAuthorized     = errors.New("not authorized")
	ErrPinNotFound       = errors.New("pin not found")
	ErrPinLocked         = errors.New("pin is locked")
	ErrPinNotLocked      = errors.New("pin is not locked")
	ErrKeySpaceExhausted = pinkey.ErrKeySpaceExhausted
	ErrInvalidFileHash   = model.ErrInvalidFileHash
	ErrInvalidClock      = errors.New("clock produced a reserved or negative timestamp")
	ErrNotEmpty          = errors.New("registry is not empty")
)
