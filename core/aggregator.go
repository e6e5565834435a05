package core

import "sync"

// AggregatorState is the per-round lifecycle of an Aggregator.
type AggregatorState uint8

const (
	StateOpen AggregatorState = iota + 1
	StateCollectingSignatures
	StateFinalised
)

// Aggregator accepts at most one batch per sender for a single round, binds
// them under one Merkle root, collects per-sender signatures over that root,
// and finalises a TransferBlock. An Aggregator is single-use: once
// Finalised, the coordinator must replace it with a fresh instance for the
// next round rather than resetting it in place.
//
// This generalises a ledger-persisted optimistic-rollup batch/challenge/
// finalize flow to an in-memory per-round signature-collection flow with
// no challenge period.
type Aggregator struct {
	mu sync.Mutex

	state AggregatorState

	order    []PubKeyID
	batches  map[PubKeyID]TransactionBatch
	leaves   []Hash
	indexOf  map[PubKeyID]int

	signatures map[PubKeyID]Signature

	finalBlock *TransferBlock
}

// NewAggregator starts a fresh round in the Open state.
func NewAggregator() *Aggregator {
	return &Aggregator{
		state:      StateOpen,
		batches:    make(map[PubKeyID]TransactionBatch),
		indexOf:    make(map[PubKeyID]int),
		signatures: make(map[PubKeyID]Signature),
	}
}

// State returns the aggregator's current lifecycle state.
func (ag *Aggregator) State() AggregatorState {
	ag.mu.Lock()
	defer ag.mu.Unlock()
	return ag.state
}

// AddBatch accepts one batch for the round. The leaf index assigned equals
// the number of leaves already present, and is stable thereafter.
func (ag *Aggregator) AddBatch(batch TransactionBatch) (index int, err error) {
	if err := batch.Validate(); err != nil {
		return 0, err
	}
	ag.mu.Lock()
	defer ag.mu.Unlock()

	if ag.state != StateOpen {
		return 0, ErrWrongState
	}
	id := batch.From.ID()
	if _, exists := ag.batches[id]; exists {
		return 0, ErrDuplicateSender
	}
	leaf, err := batch.Hash()
	if err != nil {
		return 0, err
	}
	idx := len(ag.leaves)
	ag.leaves = append(ag.leaves, leaf)
	ag.batches[id] = batch
	ag.order = append(ag.order, id)
	ag.indexOf[id] = idx
	aggregatorLog.WithField("sender", id.String()).WithField("index", idx).Debug("batch accepted")
	return idx, nil
}

// StartCollectingSignatures freezes the leaf set (at least one batch must
// have been added) and transitions to CollectingSignatures.
func (ag *Aggregator) StartCollectingSignatures() error {
	ag.mu.Lock()
	defer ag.mu.Unlock()
	if ag.state != StateOpen {
		return ErrWrongState
	}
	if len(ag.leaves) == 0 {
		return ErrEmpty
	}
	ag.state = StateCollectingSignatures
	return nil
}

// Root returns the current Merkle root over the accepted batches.
func (ag *Aggregator) Root() (Hash, error) {
	ag.mu.Lock()
	defer ag.mu.Unlock()
	if len(ag.leaves) == 0 {
		return Hash{}, ErrEmptyTree
	}
	return MerkleRoot(ag.leaves)
}

// GenerateProofForPubkey builds the TransactionProof for pk's batch against
// the current (frozen) root.
func (ag *Aggregator) GenerateProofForPubkey(pk PublicKey) (TransactionProof, error) {
	ag.mu.Lock()
	defer ag.mu.Unlock()
	if ag.state != StateCollectingSignatures {
		return TransactionProof{}, ErrWrongState
	}
	id := pk.ID()
	idx, ok := ag.indexOf[id]
	if !ok {
		return TransactionProof{}, ErrNotFound
	}
	proofHashes, root, err := MerkleProofFor(ag.leaves, idx)
	if err != nil {
		return TransactionProof{}, err
	}
	return TransactionProof{
		ProofHashes: proofHashes,
		Root:        root,
		Batch:       ag.batches[id],
		Index:       uint32(idx),
		TotalLeaves: uint32(len(ag.leaves)),
	}, nil
}

// AddSignature records pk's signature over the round's root, after
// verifying it.
func (ag *Aggregator) AddSignature(pk PublicKey, sig Signature) error {
	ag.mu.Lock()
	defer ag.mu.Unlock()
	if ag.state != StateCollectingSignatures {
		return ErrWrongState
	}
	id := pk.ID()
	if _, ok := ag.indexOf[id]; !ok {
		return ErrNotFound
	}
	root, err := MerkleRoot(ag.leaves)
	if err != nil {
		return err
	}
	if !pk.Verify(sig, root[:]) {
		return ErrBadSignature
	}
	ag.signatures[id] = sig
	return nil
}

// Finalise builds a TransferBlock over the signatures collected so far —
// not every added batch's sender, just whoever signed — and transitions to
// Finalised. The aggregator never blocks waiting for stragglers: unsigned
// senders simply do not appear in the resulting block.
func (ag *Aggregator) Finalise() (TransferBlock, error) {
	ag.mu.Lock()
	defer ag.mu.Unlock()
	if ag.state != StateCollectingSignatures {
		return TransferBlock{}, ErrWrongState
	}
	if len(ag.signatures) == 0 {
		return TransferBlock{}, ErrNoSignatures
	}
	root, err := MerkleRoot(ag.leaves)
	if err != nil {
		return TransferBlock{}, err
	}

	signed := make([]SignerSignature, 0, len(ag.signatures))
	for _, id := range ag.order {
		sig, ok := ag.signatures[id]
		if !ok {
			continue
		}
		signed = append(signed, SignerSignature{PublicKey: ag.batches[id].From, Signature: sig})
	}
	tbs, err := NewTransferBlockSignature(signed)
	if err != nil {
		return TransferBlock{}, err
	}
	block := TransferBlock{MerkleRoot: root, Signature: tbs}
	ag.state = StateFinalised
	ag.finalBlock = &block
	aggregatorLog.WithField("root", root.Hex()).WithField("signers", len(signed)).Info("round finalised")
	return block, nil
}
