// Package lang implements the graph interpreter: the deterministic runtime
// that executes skill graphs over a fixed vocabulary of built-in operations.
package lang

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Hash is an opaque content identity: the SHA-256 digest of some byte
// sequence. It is never constructed from anything but HashBytes/HashJSON,
// so two equal Hash values are a guarantee that their inputs were byte-equal.
type Hash [32]byte

// ZeroHash is the hash with all bytes zero, used as a sentinel for "no
// content" rather than a valid identity.
var ZeroHash Hash

// HashBytes computes the content hash of an arbitrary byte sequence.
func HashBytes(b []byte) Hash {
	return Hash(sha256.Sum256(b))
}

// HashString computes the content hash of a string's UTF-8 bytes.
func HashString(s string) Hash {
	return HashBytes([]byte(s))
}

// HashJSON canonically marshals v and hashes the result. Go's encoding/json
// sorts map keys during marshaling, so this is stable across calls for
// semantically equal values.
func HashJSON(v any) (Hash, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Hash{}, err
	}
	return HashBytes(b), nil
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// Hex returns the lowercase hex encoding of h.
func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) String() string {
	return h.Hex()
}

// HashFromHex parses a 64-character hex string into a Hash.
func HashFromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, err
	}
	var h Hash
	if len(b) != len(h) {
		return Hash{}, errWrongHashLength(len(b))
	}
	copy(h[:], b)
	return h, nil
}

type errWrongHashLength int

func (e errWrongHashLength) Error() string {
	return fmt.Sprintf("lang: hash must be 32 bytes, got %d", int(e))
}

// MarshalJSON renders the hash as its hex string so it round-trips through
// the same wire format PCAs and skill metadata expect.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Hex())
}

func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := HashFromHex(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
