package core

import "testing"

func TestNewTransactionRejectsSelfSendAndZeroAmount(t *testing.T) {
	_, pk := GenerateKeyPair()
	if _, err := NewTransaction(pk, pk, 10); err != ErrSelfSend {
		t.Fatalf("expected ErrSelfSend, got %v", err)
	}
	_, other := GenerateKeyPair()
	if _, err := NewTransaction(pk, other, 0); err != ErrZeroAmount {
		t.Fatalf("expected ErrZeroAmount, got %v", err)
	}
}

func TestTransactionHashDeterministicPerInstance(t *testing.T) {
	_, from := GenerateKeyPair()
	_, to := GenerateKeyPair()
	tx, err := NewTransaction(from, to, 5)
	if err != nil {
		t.Fatal(err)
	}
	h1, err := tx.Hash()
	if err != nil {
		t.Fatal(err)
	}
	h2, err := tx.Hash()
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatal("hashing the same transaction twice should be deterministic")
	}
}

func TestTransactionHashDiffersBySalt(t *testing.T) {
	_, from := GenerateKeyPair()
	_, to := GenerateKeyPair()
	tx1, err := NewTransaction(from, to, 5)
	if err != nil {
		t.Fatal(err)
	}
	tx2, err := NewTransaction(from, to, 5)
	if err != nil {
		t.Fatal(err)
	}
	h1, err := tx1.Hash()
	if err != nil {
		t.Fatal(err)
	}
	h2, err := tx2.Hash()
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Fatal("two separately constructed transactions should have distinct salts and hashes")
	}
}

func TestTransactionBatchValidateRejectsWrongSender(t *testing.T) {
	_, from := GenerateKeyPair()
	_, to := GenerateKeyPair()
	_, impostor := GenerateKeyPair()
	tx, err := NewTransaction(impostor, to, 5)
	if err != nil {
		t.Fatal(err)
	}
	batch := TransactionBatch{From: from, Transactions: []Transaction{tx}}
	if err := batch.Validate(); err != ErrWrongSender {
		t.Fatalf("expected ErrWrongSender, got %v", err)
	}
}
