package model

import (
	"errors"
	"fmt"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"strings"
)

var ErrInvalidFileHash = errors.New("invalid file hash")

// ParseFileHash accepts a 0x prefixed 32 byte hex string or a sha2-256 CID.
func ParseFileHash(s string) (common.Hash, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		b, err := hexutil.Decode(s)
		if err != nil {
			return common.Hash{}, fmt.Errorf("%w: %s", ErrInvalidFileHash, err)
		}
		if len(b) != common.HashLength {
			return common.Hash{}, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidFileHash, common.HashLength, len(b))
		}
		return common.BytesToHash(b), nil
	}

	c, err := cid.Decode(s)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %s", ErrInvalidFileHash, err)
	}
	dec, err := multihash.Decode(c.Hash())
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %s", ErrInvalidFileHash, err)
	}
	if dec.Code != multihash.SHA2_256 || len(dec.Digest) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: only sha2-256 CIDs are supported", ErrInvalidFileHash)
	}
	return common.BytesToHash(dec.Digest), nil
}

// FileCID renders a file hash as the CIDv0 of its sha2-256 digest.
func FileCID(h common.Hash) (string, error) {
	mh, err := multihash.Encode(h.Bytes(), multihash.SHA2_256)
	if err != nil {
		return "", err
	}
	return cid.NewCidV0(mh).String(), nil
}
