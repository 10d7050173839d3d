package models

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/crypto/blake2b"
)

const (
	// HashSize is the byte length of every content hash
	HashSize = blake2b.Size256

	hashVersion    byte = 0x00
	addressVersion byte = 0x00
)

// ErrInvalidHash is returned when a text hash cannot be decoded
var ErrInvalidHash = errors.New("invalid base58check hash")

// Hash is a blake2b-256 content hash rendered as base58check text
type Hash [HashSize]byte

// NewHash hashes data
func NewHash(data []byte) Hash {
	return blake2b.Sum256(data)
}

// ParseHash decodes the base58check text form of a hash
func ParseHash(s string) (Hash, error) {
	var h Hash
	raw, version, err := base58.CheckDecode(s)
	if err != nil {
		return h, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	if version != hashVersion || len(raw) != HashSize {
		return h, ErrInvalidHash
	}
	copy(h[:], raw)
	return h, nil
}

func (h Hash) String() string {
	return base58.CheckEncode(h[:], hashVersion)
}

func (h Hash) Bytes() []byte {
	return h[:]
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Compare orders hashes by their raw bytes
func (h Hash) Compare(other Hash) int {
	return bytes.Compare(h[:], other[:])
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// BlockId identifies a block by the hash of its header
type BlockId struct{ Hash }

// OperationId identifies an operation by the hash of its content and signature
type OperationId struct{ Hash }

// EndorsementId identifies an endorsement by the hash of its content and signature
type EndorsementId struct{ Hash }

func ParseBlockId(s string) (BlockId, error) {
	h, err := ParseHash(s)
	return BlockId{h}, err
}

// Address is the base58check encoding of the hash of a public key
type Address string

// AddressFromPublicKey derives the address owning the given public key
func AddressFromPublicKey(publicKey []byte) Address {
	h := NewHash(publicKey)
	return Address(base58.CheckEncode(h[:], addressVersion))
}

// Validate checks that the address decodes to a full hash
func (a Address) Validate() error {
	raw, version, err := base58.CheckDecode(string(a))
	if err != nil {
		return fmt.Errorf("address %q: %v", string(a), err)
	}
	if version != addressVersion || len(raw) != HashSize {
		return fmt.Errorf("address %q: unexpected payload", string(a))
	}
	return nil
}

// DecodeBase58 decodes a plain base58 string such as a public key or a signature.
// An empty result means the input was empty or malformed.
func DecodeBase58(s string) []byte {
	return base58.Decode(s)
}

// EncodeBase58 is the inverse of DecodeBase58
func EncodeBase58(b []byte) string {
	return base58.Encode(b)
}
