package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// ZenPrefix is the human-readable part of every account address. A single
// prefix covers both user and treasury accounts; the reward token itself is
// referenced by symbol, not by address.
const ZenPrefix = "zen"

// AddressLength is the raw byte width of an account address.
const AddressLength = 20

// Address represents a 20-byte account address rendered as bech32 with the
// zen prefix.
type Address struct {
	bytes [AddressLength]byte
}

// NewAddress wraps a raw 20-byte value.
func NewAddress(b [AddressLength]byte) Address {
	return Address{bytes: b}
}

// AddressFromBytes validates the slice length and wraps it.
func AddressFromBytes(b []byte) (Address, error) {
	if len(b) != AddressLength {
		return Address{}, fmt.Errorf("crypto: address must be %d bytes, got %d", AddressLength, len(b))
	}
	var raw [AddressLength]byte
	copy(raw[:], b)
	return Address{bytes: raw}, nil
}

// String encodes the address as bech32.
func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(ZenPrefix, conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Bytes returns the raw 20-byte form.
func (a Address) Bytes() [AddressLength]byte {
	return a.bytes
}

// IsZero reports whether the address is the zero value.
func (a Address) IsZero() bool {
	return a.bytes == [AddressLength]byte{}
}

// DecodeAddress parses a bech32 string and enforces the zen prefix.
func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(strings.TrimSpace(addrStr))
	if err != nil {
		return Address{}, fmt.Errorf("crypto: invalid bech32 string: %w", err)
	}
	if prefix != ZenPrefix {
		return Address{}, fmt.Errorf("crypto: unexpected address prefix %q", prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("crypto: error converting bits: %w", err)
	}
	return AddressFromBytes(conv)
}

// MustDecodeAddress is DecodeAddress for trusted compiled-in constants.
func MustDecodeAddress(addrStr string) Address {
	addr, err := DecodeAddress(addrStr)
	if err != nil {
		panic(err)
	}
	return addr
}

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

func (k *PublicKey) Address() Address {
	var raw [AddressLength]byte
	copy(raw[:], crypto.PubkeyToAddress(*k.PublicKey).Bytes())
	return NewAddress(raw)
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// PrivateKeyFromHex parses a hex-encoded private key, tolerating a 0x prefix.
func PrivateKeyFromHex(raw string) (*PrivateKey, error) {
	cleaned := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	b, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid hex key: %w", err)
	}
	return PrivateKeyFromBytes(b)
}
