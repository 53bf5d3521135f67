package registry

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/tezoscommons/geopin/internal/geopin/pinkey"
	"github.com/tezoscommons/geopin/internal/geopin/store"
	"math"
)

/*
 * Ownership window: from the creation time encoded in the key until
 * creation+window, only the recorded owner may mutate the pin. After that
 * anyone may. The sum saturates, so locked pins (sentinel timestamp) never
 * leave the window.
 */
func windowEnd(k pinkey.Key, window uint64) uint64 {
	created := k.Timestamp()
	if created > math.MaxUint64-window {
		return math.MaxUint64
	}
	return created + window
}

func checkOwner(tx store.Tx, k pinkey.Key, caller common.Address, now, window uint64) error {
	if now < windowEnd(k, window) && tx.GetOwner(k) != caller {
		return ErrNotAuthorized
	}
	return nil
}

// checkNotLocked refuses sentinel keys. Read-only.
func checkNotLocked(k pinkey.Key) error {
	if k.Locked() {
		return ErrPinLocked
	}
	return nil
}

// checkLocked is the inverse: it refuses keys that are not locked.
func checkLocked(k pinkey.Key) error {
	if !k.Locked() {
		return ErrPinNotLocked
	}
	return nil
}
