package core

import "encoding/hex"

// PubKeyID is the canonical, comparable, hashable encoding of a PublicKey
// (its compressed serialization). BLS public keys are opaque group elements
// and are not directly usable as stable map keys across library versions;
// every map keyed by signer uses PubKeyID, never a raw PublicKey or group
// element, per DESIGN.md's "ad-hoc hashable public keys" re-architecture
// note.
type PubKeyID [48]byte

func (id PubKeyID) String() string { return hex.EncodeToString(id[:]) }
