package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix is the human-readable part of a bech32 encoded address.
type AddressPrefix string

// Prefix used for all otcvault account addresses.
const Prefix AddressPrefix = "otc"

// Address wraps a 20-byte account identifier together with its bech32 prefix.
type Address struct {
	prefix AddressPrefix
	bytes  [20]byte
}

// NewAddress builds an address from a raw 20-byte payload.
func NewAddress(prefix AddressPrefix, b [20]byte) Address {
	return Address{prefix: prefix, bytes: b}
}

// MustNewAddress builds an address from an arbitrary byte slice and panics on
// malformed input. Intended for fixtures and hard-wired configuration.
func MustNewAddress(prefix AddressPrefix, b []byte) Address {
	if len(b) != 20 {
		panic("address payload must be 20 bytes")
	}
	var raw [20]byte
	copy(raw[:], b)
	return Address{prefix: prefix, bytes: raw}
}

// String renders the bech32 form of the address.
func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Bytes returns the raw 20-byte payload.
func (a Address) Bytes() [20]byte { return a.bytes }

// DecodeAddress parses a bech32 encoded address and validates its length.
func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != 20 {
		return Address{}, fmt.Errorf("address payload must be 20 bytes, got %d", len(conv))
	}
	var raw [20]byte
	copy(raw[:], conv)
	return Address{prefix: AddressPrefix(prefix), bytes: raw}, nil
}

// PrivateKey is a secp256k1 signing key.
type PrivateKey struct {
	*ecdsa.PrivateKey
}

// PublicKey is the verification half of a secp256k1 key pair.
type PublicKey struct {
	*ecdsa.PublicKey
}

// GeneratePrivateKey creates a fresh secp256k1 key pair.
func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(ethcrypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// PubKey returns the public half of the key.
func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

// Address derives the account address from the public key: the last 20 bytes
// of the keccak256 hash of the uncompressed key.
func (k *PublicKey) Address() Address {
	hashed := ethcrypto.Keccak256(ethcrypto.FromECDSAPub(k.PublicKey)[1:])
	var raw [20]byte
	copy(raw[:], hashed[12:])
	return NewAddress(Prefix, raw)
}
