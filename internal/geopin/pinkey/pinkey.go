package pinkey

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"math"
	"strconv"
	"strings"
)

const (
	Size      = 32
	FieldSize = 8

	// Sentinel is the timestamp reserved for locked pins.
	Sentinel uint64 = math.MaxUint64
)

var (
	ErrKeySpaceExhausted = errors.New("key space exhausted")
	ErrSentinelTimestamp = errors.New("timestamp equals the locked sentinel")
	ErrInvalidKey        = errors.New("invalid pin key")
)

/*
 * Key is the 32 byte pin identifier:
 * latitude | longitude | altitude | timestamp, 8 bytes each, big-endian.
 */
type Key [Size]byte

type Fields struct {
	Latitude  uint64
	Longitude uint64
	Altitude  uint64
	Timestamp uint64
}

func Pack(f Fields) Key {
	var k Key
	binary.BigEndian.PutUint64(k[0:8], f.Latitude)
	binary.BigEndian.PutUint64(k[8:16], f.Longitude)
	binary.BigEndian.PutUint64(k[16:24], f.Altitude)
	binary.BigEndian.PutUint64(k[24:32], f.Timestamp)
	return k
}

func Parse(k Key) Fields {
	return Fields{
		Latitude:  binary.BigEndian.Uint64(k[0:8]),
		Longitude: binary.BigEndian.Uint64(k[8:16]),
		Altitude:  binary.BigEndian.Uint64(k[16:24]),
		Timestamp: binary.BigEndian.Uint64(k[24:32]),
	}
}

func (k Key) Fields() Fields {
	return Parse(k)
}

func (k Key) Timestamp() uint64 {
	return binary.BigEndian.Uint64(k[24:32])
}

func (k Key) Locked() bool {
	return k.Timestamp() == Sentinel
}

func (k Key) IsZero() bool {
	return k == Key{}
}

func (k Key) Compare(o Key) int {
	return bytes.Compare(k[:], o[:])
}

// WithTimestamp returns a copy of k carrying ts in the timestamp field.
func (k Key) WithTimestamp(ts uint64) Key {
	binary.BigEndian.PutUint64(k[24:32], ts)
	return k
}

// Next treats the key as an unsigned 256 bit integer and adds one.
// ok is false when the addition wraps.
func (k Key) Next() (next Key, ok bool) {
	v := new(uint256.Int).SetBytes32(k[:])
	_, overflow := v.AddOverflow(v, new(uint256.Int).SetUint64(1))
	if overflow {
		return k, false
	}
	return Key(v.Bytes32()), true
}

// NextPrefix adds one to the 24 byte latitude/longitude/altitude prefix and
// keeps the timestamp field as it is.
func (k Key) NextPrefix() (next Key, ok bool) {
	v := new(uint256.Int).SetBytes(k[:24])
	v.AddUint64(v, 1)
	if v.BitLen() > 24*8 {
		return k, false
	}
	b := v.Bytes32()
	copy(next[:24], b[8:])
	copy(next[24:], k[24:])
	return next, true
}

func (k Key) Hex() string {
	return hexutil.Encode(k[:])
}

func (k Key) String() string {
	return k.Hex()
}

func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.Hex()), nil
}

func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := FromHex(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func FromHex(s string) (Key, error) {
	var k Key
	b, err := hexutil.Decode(s)
	if err != nil {
		return k, fmt.Errorf("%w: %s", ErrInvalidKey, err)
	}
	if len(b) != Size {
		return k, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidKey, Size, len(b))
	}
	copy(k[:], b)
	return k, nil
}

// ParseField reads one fixed-width field, either 0x prefixed hex or decimal.
func ParseField(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}
