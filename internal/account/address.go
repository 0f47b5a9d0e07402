package account

import (
	"bytes"
	"crypto/sha512"
	"encoding/base32"
	"encoding/hex"
	"errors"
	"fmt"
)

const (
	// AddressLen is the length of the raw account key.
	AddressLen = 32

	checksumLen = 4
	// EncodedLen is the length of the textual address form.
	EncodedLen = 58
)

// ErrInvalidAddress is returned when a textual address cannot be decoded.
var ErrInvalidAddress = errors.New("invalid address")

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Address identifies a participant. It is the participant's ed25519 public key.
type Address [AddressLen]byte

// Zero is the empty address.
var Zero Address

// FromKey builds an address from a raw 32 byte public key.
func FromKey(key []byte) (Address, error) {
	var a Address
	if len(key) != AddressLen {
		return a, fmt.Errorf("%w: key length %d", ErrInvalidAddress, len(key))
	}
	copy(a[:], key)
	return a, nil
}

// Parse decodes the base32 text form and validates its checksum.
func Parse(s string) (Address, error) {
	var a Address
	if len(s) != EncodedLen {
		return a, fmt.Errorf("%w: length %d", ErrInvalidAddress, len(s))
	}
	raw, err := encoding.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != AddressLen+checksumLen {
		return a, fmt.Errorf("%w: decoded length %d", ErrInvalidAddress, len(raw))
	}
	copy(a[:], raw[:AddressLen])
	if !bytes.Equal(a.checksum(), raw[AddressLen:]) {
		return Address{}, fmt.Errorf("%w: checksum mismatch", ErrInvalidAddress)
	}
	return a, nil
}

func (a Address) checksum() []byte {
	sum := sha512.Sum512_256(a[:])
	return sum[len(sum)-checksumLen:]
}

// String returns the checksummed base32 form.
func (a Address) String() string {
	buf := make([]byte, 0, AddressLen+checksumLen)
	buf = append(buf, a[:]...)
	buf = append(buf, a.checksum()...)
	return encoding.EncodeToString(buf)
}

// Hex is used as the advisory lock key and in log lines.
func (a Address) Hex() string {
	return hex.EncodeToString(a[:])
}

// Bytes returns a copy of the raw key.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLen)
	copy(out, a[:])
	return out
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a == Zero
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
