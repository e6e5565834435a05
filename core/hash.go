package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
)

// Hash is a raw 32-byte SHA-256 digest, transported as a hex string in JSON
// for readability.
type Hash [32]byte

// HashBytes returns H(b) = SHA256(b).
func HashBytes(b []byte) Hash {
	return sha256.Sum256(b)
}

func (h Hash) Bytes() []byte { return h[:] }

func (h Hash) Hex() string { return hex.EncodeToString(h[:]) }

func (h Hash) String() string { return h.Hex() }

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Hex())
}

func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(b) != 32 {
		return errors.New("core: hash must decode to exactly 32 bytes")
	}
	copy(h[:], b)
	return nil
}
