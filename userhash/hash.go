// Package userhash pseudonymizes users per server.
//
// A userhash identifies the same user consistently within one server, but
// hashes of one user in different servers are not related. Hashes are keyed
// HMAC-SHA3 over the user and server IDs. The key must be preserved across
// program instances for hashes to remain comparable.
package userhash

import (
	"crypto/hmac"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"
)

// Size is the size of a userhash in bytes.
const Size = 28

// ErrShortHash is the error when parsing a userhash of the wrong length.
var ErrShortHash = errors.New("wrong userhash length")

// Hash is an obfuscated hash identifying a user in a server.
type Hash [Size]byte

// String formats the hash as hex.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Parse parses a hex-encoded userhash.
func Parse(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("couldn't parse userhash: %w", err)
	}
	if copy(h[:], b) != Size || len(b) != Size {
		return h, ErrShortHash
	}
	return h, nil
}

// A Hasher creates Hash values. It is safe to use concurrently.
type Hasher struct {
	key []byte
}

// New creates a Hasher with a pseudorandom key.
func New(prk []byte) Hasher {
	return Hasher{key: prk}
}

// Derive expands a secret into a key for New. Different infos give
// unrelated keys.
func Derive(secret, info []byte) ([]byte, error) {
	k := make([]byte, 32)
	r := hkdf.New(sha3.New256, secret, nil, info)
	if _, err := io.ReadFull(r, k); err != nil {
		return nil, fmt.Errorf("couldn't derive key: %w", err)
	}
	return k, nil
}

// Hash computes a userhash and writes it into dst.
func (h Hasher) Hash(dst *Hash, user, server string) *Hash {
	mac := hmac.New(sha3.New224, h.key)
	b := make([]byte, 0, len(user)+1+len(server))
	b = append(b, user...)
	b = append(b, 0)
	b = append(b, server...)
	mac.Write(b)
	return (*Hash)(mac.Sum(dst[:0]))
}
