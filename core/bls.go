package core

// BLS12-381 signing with the message-augmentation scheme: the signer
// prepends its own serialized public key to the message before hashing to
// G2, which rules out rogue-key attacks without requiring a separate
// proof-of-possession step. Built on github.com/herumi/bls-eth-go-binary,
// using AggregateVerifyNoCheck to verify one aggregate signature against
// distinct per-signer augmented messages.

import (
	"encoding/hex"
	"encoding/json"

	bls "github.com/herumi/bls-eth-go-binary/bls"
)

func init() {
	if err := bls.Init(bls.BLS12_381); err != nil {
		panic("core: bls init: " + err.Error())
	}
}

// SecretKey is a BLS12-381 scalar.
type SecretKey struct{ inner bls.SecretKey }

// PublicKey is a BLS12-381 G1 point.
type PublicKey struct{ inner bls.PublicKey }

// Signature is a BLS12-381 G2 point produced under message augmentation.
type Signature struct{ inner bls.Sign }

// AggregateSignature sums multiple Signatures that each sign the same
// logical message (but distinct augmented messages, since each signer
// prepends its own public key).
type AggregateSignature struct{ inner bls.Sign }

// GenerateKeyPair draws a fresh BLS key pair from the process CSPRNG.
func GenerateKeyPair() (SecretKey, PublicKey) {
	var sk SecretKey
	sk.inner.SetByCSPRNG()
	pk := PublicKey{inner: *sk.inner.GetPublicKey()}
	return sk, pk
}

// PublicKey derives the public key for sk.
func (sk SecretKey) PublicKey() PublicKey {
	return PublicKey{inner: *sk.inner.GetPublicKey()}
}

func augment(pk PublicKey, msg []byte) []byte {
	pub := pk.inner.Serialize()
	out := make([]byte, 0, len(pub)+len(msg))
	out = append(out, pub...)
	out = append(out, msg...)
	return out
}

// Sign signs msg under message augmentation: the signature covers
// (public_key || msg), not msg alone.
func (sk SecretKey) Sign(msg []byte) Signature {
	pk := sk.PublicKey()
	sig := sk.inner.SignByte(augment(pk, msg))
	return Signature{inner: *sig}
}

// Verify checks that sig is pk's message-augmented signature over msg.
func (pk PublicKey) Verify(sig Signature, msg []byte) bool {
	return sig.inner.VerifyByte(&pk.inner, augment(pk, msg))
}

// ID returns the fixed-size canonical encoding of pk, used uniformly as a
// map key in place of the raw (non-hashable) group element — see DESIGN.md's
// "ad-hoc hashable public keys" note.
func (pk PublicKey) ID() PubKeyID {
	var id PubKeyID
	copy(id[:], pk.inner.Serialize())
	return id
}

func (pk PublicKey) Equal(other PublicKey) bool { return pk.ID() == other.ID() }

func (pk PublicKey) Bytes() []byte { return pk.inner.Serialize() }

func (pk PublicKey) String() string { return hex.EncodeToString(pk.Bytes()) }

func (pk PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(pk.String())
}

func (pk *PublicKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	return pk.inner.Deserialize(b)
}

func (sig Signature) Bytes() []byte { return sig.inner.Serialize() }

func (sig Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(sig.Bytes()))
}

func (sig *Signature) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	return sig.inner.Deserialize(b)
}

func (sk SecretKey) Bytes() []byte { return sk.inner.Serialize() }

func (sk SecretKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(sk.Bytes()))
}

func (sk *SecretKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	return sk.inner.Deserialize(b)
}

// AggregateSignatures sums sigs into a single AggregateSignature. All of
// sigs must sign the same logical message (the caller's responsibility);
// construction itself only requires a non-empty slice.
func AggregateSignatures(sigs []Signature) (AggregateSignature, error) {
	if len(sigs) == 0 {
		return AggregateSignature{}, ErrAggregateError
	}
	agg := sigs[0].inner
	for _, s := range sigs[1:] {
		agg.Add(&s.inner)
	}
	return AggregateSignature{inner: agg}, nil
}

// SignedMessage pairs a signer's public key with the logical message it
// signed, for aggregate verification.
type SignedMessage struct {
	PublicKey PublicKey
	Message   []byte
}

// Verify checks that the aggregate signature certifies every (pk, msg) pair
// in pairs under message augmentation, succeeding iff each individual
// signature would have verified.
func (agg AggregateSignature) Verify(pairs []SignedMessage) bool {
	if len(pairs) == 0 {
		return false
	}
	pubVec := make([]bls.PublicKey, len(pairs))
	msgVec := make([][]byte, len(pairs))
	for i, p := range pairs {
		pubVec[i] = p.PublicKey.inner
		msgVec[i] = augment(p.PublicKey, p.Message)
	}
	return agg.inner.AggregateVerifyNoCheck(pubVec, msgVec)
}

func (agg AggregateSignature) Bytes() []byte { return agg.inner.Serialize() }

func (agg AggregateSignature) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(agg.Bytes()))
}

func (agg *AggregateSignature) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	return agg.inner.Deserialize(b)
}
