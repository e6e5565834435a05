package core

import (
	"context"
	"path/filepath"
	"testing"
)

// settleAndSign builds a one-sender transfer block for batch, signs it with
// sk, and appends it to store, returning the resulting TransactionProof for
// the sender's own bookkeeping.
func settleAndSign(t *testing.T, ctx context.Context, store *FileSettlementStore, sk SecretKey, batch TransactionBatch) TransactionProof {
	t.Helper()
	leaf, err := batch.Hash()
	if err != nil {
		t.Fatal(err)
	}
	root, err := MerkleRoot([]Hash{leaf})
	if err != nil {
		t.Fatal(err)
	}
	sig := sk.Sign(root[:])
	tbs, err := NewTransferBlockSignature([]SignerSignature{{PublicKey: sk.PublicKey(), Signature: sig}})
	if err != nil {
		t.Fatal(err)
	}
	block := TransferBlock{MerkleRoot: root, Signature: tbs}
	if err := store.AddTransferBlock(ctx, block); err != nil {
		t.Fatal(err)
	}
	return TransactionProof{
		ProofHashes: nil,
		Root:        root,
		Batch:       batch,
		Index:       0,
		TotalLeaves: 1,
	}
}

func TestValidateBalanceProofSimpleChain(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileSettlementStore(filepath.Join(dir, "settlement.json"))
	if err != nil {
		t.Fatal(err)
	}

	alice := newParty(t)
	bob := newParty(t)

	if err := store.AddDeposit(ctx, alice.pk, 100); err != nil {
		t.Fatal(err)
	}

	batch := makeBatch(t, alice.pk, bob.pk, 40)
	proof := settleAndSign(t, ctx, store, alice.sk, batch)

	bp := make(BalanceProof)
	bp.Set(proof.Root, alice.pk, proof)

	balances, err := ValidateBalanceProof(ctx, bp, store)
	if err != nil {
		t.Fatal(err)
	}
	if balances[alice.pk.ID()] != 60 {
		t.Fatalf("expected alice to retain 60, got %d", balances[alice.pk.ID()])
	}
	if balances[bob.pk.ID()] != 40 {
		t.Fatalf("expected bob to receive 40, got %d", balances[bob.pk.ID()])
	}
}

func TestValidateBalanceProofTenHopChain(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileSettlementStore(filepath.Join(dir, "settlement.json"))
	if err != nil {
		t.Fatal(err)
	}

	const hops = 10
	parties := make([]partyFixture, hops+1)
	for i := range parties {
		parties[i] = newParty(t)
	}
	if err := store.AddDeposit(ctx, parties[0].pk, 1024); err != nil {
		t.Fatal(err)
	}

	bp := make(BalanceProof)
	amount := uint64(1024)
	for i := 0; i < hops; i++ {
		send := amount / 2
		batch := makeBatch(t, parties[i].pk, parties[i+1].pk, send)
		proof := settleAndSign(t, ctx, store, parties[i].sk, batch)
		bp.Set(proof.Root, parties[i].pk, proof)
		amount = send
	}

	balances, err := ValidateBalanceProof(ctx, bp, store)
	if err != nil {
		t.Fatal(err)
	}
	if balances[parties[hops].pk.ID()] != amount {
		t.Fatalf("final holder should have %d, got %d", amount, balances[parties[hops].pk.ID()])
	}
}

func TestValidateBalanceProofRejectsMissingTransferBlock(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileSettlementStore(filepath.Join(dir, "settlement.json"))
	if err != nil {
		t.Fatal(err)
	}

	alice := newParty(t)
	bob := newParty(t)
	batch := makeBatch(t, alice.pk, bob.pk, 10)
	leaf, err := batch.Hash()
	if err != nil {
		t.Fatal(err)
	}
	root, err := MerkleRoot([]Hash{leaf})
	if err != nil {
		t.Fatal(err)
	}
	// Never appended to the settlement view.
	proof := TransactionProof{Root: root, Batch: batch, Index: 0, TotalLeaves: 1}

	bp := make(BalanceProof)
	bp.Set(root, alice.pk, proof)

	_, err = ValidateBalanceProof(ctx, bp, store)
	if err == nil {
		t.Fatal("expected an error for a proof with no matching transfer block")
	}
	var witnessErr *BatchNotInTransferBlockError
	if !asBatchNotInTransferBlockError(err, &witnessErr) {
		t.Fatalf("expected BatchNotInTransferBlockError, got %v (%T)", err, err)
	}
}

func asBatchNotInTransferBlockError(err error, target **BatchNotInTransferBlockError) bool {
	e, ok := err.(*BatchNotInTransferBlockError)
	if ok {
		*target = e
	}
	return ok
}

func TestValidateBalanceProofRejectsInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileSettlementStore(filepath.Join(dir, "settlement.json"))
	if err != nil {
		t.Fatal(err)
	}

	alice := newParty(t)
	bob := newParty(t)

	// Alice never deposited, but signs a transfer anyway: delta{alice}=-10,
	// no deposits to offset it.
	batch := makeBatch(t, alice.pk, bob.pk, 10)
	proof := settleAndSign(t, ctx, store, alice.sk, batch)

	bp := make(BalanceProof)
	bp.Set(proof.Root, alice.pk, proof)

	_, err = ValidateBalanceProof(ctx, bp, store)
	if err != ErrBalanceNegative {
		t.Fatalf("expected ErrBalanceNegative, got %v", err)
	}
}

func TestValidateBalanceProofReceiveThenSendOrderIndependent(t *testing.T) {
	// A wallet's balance proof can contain a receive and a subsequent send
	// whose net effect is non-negative even though processing order (map
	// iteration) is unspecified; the signed accumulator must not produce a
	// spurious transient underflow either way.
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileSettlementStore(filepath.Join(dir, "settlement.json"))
	if err != nil {
		t.Fatal(err)
	}

	alice := newParty(t)
	bob := newParty(t)
	carol := newParty(t)

	if err := store.AddDeposit(ctx, alice.pk, 50); err != nil {
		t.Fatal(err)
	}

	receiveBatch := makeBatch(t, alice.pk, bob.pk, 50)
	receiveProof := settleAndSign(t, ctx, store, alice.sk, receiveBatch)

	sendBatch := makeBatch(t, bob.pk, carol.pk, 20)
	sendProof := settleAndSign(t, ctx, store, bob.sk, sendBatch)

	bp := make(BalanceProof)
	bp.Set(receiveProof.Root, alice.pk, receiveProof)
	bp.Set(sendProof.Root, bob.pk, sendProof)

	balances, err := ValidateBalanceProof(ctx, bp, store)
	if err != nil {
		t.Fatal(err)
	}
	if balances[bob.pk.ID()] != 30 {
		t.Fatalf("expected bob to hold 30 after receiving 50 and sending 20, got %d", balances[bob.pk.ID()])
	}
}
