package core

// TransactionProof is a Merkle inclusion proof binding a sender's batch to
// a round's root.
type TransactionProof struct {
	ProofHashes []Hash            `json:"proof_hashes"`
	Root        Hash              `json:"root"`
	Batch       TransactionBatch  `json:"batch"`
	Index       uint32            `json:"index"`
	TotalLeaves uint32            `json:"total_leaves"`
}

// Verify recomputes the Merkle root from the batch hash and proof hashes
// and compares it to Root.
func (p TransactionProof) Verify() (bool, error) {
	leaf, err := p.Batch.Hash()
	if err != nil {
		return false, err
	}
	return VerifyMerklePath(p.Root, leaf, p.ProofHashes, int(p.Index), int(p.TotalLeaves)), nil
}

// TransferBlockSignatureKind discriminates the two representations a
// TransferBlockSignature can take.
type TransferBlockSignatureKind uint8

const (
	// SignatureIndividual is used when exactly one sender participated in
	// the round: an aggregate of one signature is not guaranteed
	// representable, so the single signature is carried directly.
	SignatureIndividual TransferBlockSignatureKind = iota + 1
	// SignatureAggregated is used for two or more senders.
	SignatureAggregated
)

// TransferBlockSignature is a sum type over the two signature shapes a
// either a single signer's signature, or an aggregate over two or more.
type TransferBlockSignature struct {
	Kind TransferBlockSignatureKind `json:"kind"`

	IndividualSig Signature   `json:"individual_sig,omitempty"`
	IndividualPK  PublicKey   `json:"individual_pk,omitempty"`

	AggregateSig AggregateSignature `json:"aggregate_sig,omitempty"`
	Signers      []PublicKey        `json:"signers,omitempty"`
}

// NewTransferBlockSignature builds the correct variant from a set of
// per-signer signatures over the same root: Individual for exactly one
// signer, Aggregated for two or more.
func NewTransferBlockSignature(sigsByPK []SignerSignature) (TransferBlockSignature, error) {
	switch len(sigsByPK) {
	case 0:
		return TransferBlockSignature{}, ErrNoSignatures
	case 1:
		return TransferBlockSignature{
			Kind:          SignatureIndividual,
			IndividualSig: sigsByPK[0].Signature,
			IndividualPK:  sigsByPK[0].PublicKey,
		}, nil
	default:
		sigs := make([]Signature, len(sigsByPK))
		signers := make([]PublicKey, len(sigsByPK))
		for i, s := range sigsByPK {
			sigs[i] = s.Signature
			signers[i] = s.PublicKey
		}
		agg, err := AggregateSignatures(sigs)
		if err != nil {
			return TransferBlockSignature{}, ErrAggregateError
		}
		return TransferBlockSignature{
			Kind:         SignatureAggregated,
			AggregateSig: agg,
			Signers:      signers,
		}, nil
	}
}

// SignerSignature pairs a signer's public key with its signature over a
// shared root.
type SignerSignature struct {
	PublicKey PublicKey
	Signature Signature
}

// SignerKeys returns the set of public keys certified by this signature,
// regardless of variant.
func (s TransferBlockSignature) SignerKeys() []PublicKey {
	if s.Kind == SignatureIndividual {
		return []PublicKey{s.IndividualPK}
	}
	return s.Signers
}

// Verify checks that the signature (individual or aggregate) certifies
// every listed public key as having signed exactly root.
func (s TransferBlockSignature) Verify(root Hash) bool {
	switch s.Kind {
	case SignatureIndividual:
		return s.IndividualPK.Verify(s.IndividualSig, root[:])
	case SignatureAggregated:
		if len(s.Signers) < 2 {
			return false
		}
		pairs := make([]SignedMessage, len(s.Signers))
		for i, pk := range s.Signers {
			pairs[i] = SignedMessage{PublicKey: pk, Message: root[:]}
		}
		return s.AggregateSig.Verify(pairs)
	default:
		return false
	}
}

// TransferBlock is the on-chain record emitted at round finalisation.
type TransferBlock struct {
	MerkleRoot Hash                    `json:"merkle_root"`
	Signature  TransferBlockSignature  `json:"signature"`
}

// Verify succeeds iff the signature certifies each listed public key as
// signing exactly MerkleRoot.
func (tb TransferBlock) Verify() bool {
	return tb.Signature.Verify(tb.MerkleRoot)
}

// HasSigner reports whether pk is among the block's certified signers.
func (tb TransferBlock) HasSigner(pk PublicKey) bool {
	for _, k := range tb.Signature.SignerKeys() {
		if k.Equal(pk) {
			return true
		}
	}
	return false
}
