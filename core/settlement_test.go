package core

import (
	"context"
	"path/filepath"
	"testing"
)

func TestFileSettlementStoreRoundTrip(t *testing.T) {
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
	if err := store.AddDeposit(ctx, bob.pk, 20); err != nil {
		t.Fatal(err)
	}
	if err := store.AddWithdraw(ctx, bob.pk, 10); err != nil {
		t.Fatal(err)
	}

	deposits, err := store.GetDepositTotals(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if deposits[alice.pk.ID()] != 100 {
		t.Fatalf("expected alice deposit 100, got %d", deposits[alice.pk.ID()])
	}

	withdrawals, err := store.GetWithdrawTotals(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if withdrawals[bob.pk.ID()] != 10 {
		t.Fatalf("expected bob withdrawal 10, got %d", withdrawals[bob.pk.ID()])
	}

	batch := makeBatch(t, alice.pk, bob.pk, 5)
	leaf, err := batch.Hash()
	if err != nil {
		t.Fatal(err)
	}
	root, err := MerkleRoot([]Hash{leaf})
	if err != nil {
		t.Fatal(err)
	}
	sig := alice.sk.Sign(root[:])
	tbs, err := NewTransferBlockSignature([]SignerSignature{{PublicKey: alice.pk, Signature: sig}})
	if err != nil {
		t.Fatal(err)
	}
	block := TransferBlock{MerkleRoot: root, Signature: tbs}
	if err := store.AddTransferBlock(ctx, block); err != nil {
		t.Fatal(err)
	}

	blocks, err := store.GetTransferBlocks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 1 || blocks[0].MerkleRoot != root {
		t.Fatalf("expected one transfer block with matching root, got %+v", blocks)
	}

	// A freshly opened store over the same path observes persisted state.
	reopened, err := NewFileSettlementStore(filepath.Join(dir, "settlement.json"))
	if err != nil {
		t.Fatal(err)
	}
	reopenedBlocks, err := reopened.GetTransferBlocks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(reopenedBlocks) != 1 {
		t.Fatalf("expected persisted transfer block to survive reopen, got %d", len(reopenedBlocks))
	}
}

func TestFileSettlementStoreAddWithdrawRejectsExceedingDeposit(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileSettlementStore(filepath.Join(dir, "settlement.json"))
	if err != nil {
		t.Fatal(err)
	}

	alice := newParty(t)
	if err := store.AddDeposit(ctx, alice.pk, 50); err != nil {
		t.Fatal(err)
	}
	if err := store.AddWithdraw(ctx, alice.pk, 50); err != nil {
		t.Fatal(err)
	}
	if err := store.AddWithdraw(ctx, alice.pk, 1); err == nil {
		t.Fatal("expected a withdrawal exceeding the deposit total to be rejected")
	}

	withdrawals, err := store.GetWithdrawTotals(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if withdrawals[alice.pk.ID()] != 50 {
		t.Fatalf("rejected withdrawal should not have been recorded, got %d", withdrawals[alice.pk.ID()])
	}
}

func TestGetTransferBlockForMerkleRootAndPubkey(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileSettlementStore(filepath.Join(dir, "settlement.json"))
	if err != nil {
		t.Fatal(err)
	}

	alice := newParty(t)
	bob := newParty(t)
	batch := makeBatch(t, alice.pk, bob.pk, 5)
	leaf, err := batch.Hash()
	if err != nil {
		t.Fatal(err)
	}
	root, err := MerkleRoot([]Hash{leaf})
	if err != nil {
		t.Fatal(err)
	}
	sig := alice.sk.Sign(root[:])
	tbs, err := NewTransferBlockSignature([]SignerSignature{{PublicKey: alice.pk, Signature: sig}})
	if err != nil {
		t.Fatal(err)
	}
	block := TransferBlock{MerkleRoot: root, Signature: tbs}
	if err := store.AddTransferBlock(ctx, block); err != nil {
		t.Fatal(err)
	}

	found, err := GetTransferBlockForMerkleRootAndPubkey(ctx, store, root, alice.pk)
	if err != nil {
		t.Fatal(err)
	}
	if found == nil {
		t.Fatal("expected to find the transfer block")
	}

	notFound, err := GetTransferBlockForMerkleRootAndPubkey(ctx, store, root, bob.pk)
	if err != nil {
		t.Fatal(err)
	}
	if notFound != nil {
		t.Fatal("bob did not sign this block and should not be found as its signer")
	}
}
