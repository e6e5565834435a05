package core

import "testing"

func TestBalanceProofMergeIsCommutative(t *testing.T) {
	alice := newParty(t)
	bob := newParty(t)
	carol := newParty(t)

	batch1 := makeBatch(t, alice.pk, bob.pk, 10)
	leaf1, err := batch1.Hash()
	if err != nil {
		t.Fatal(err)
	}
	root1, err := MerkleRoot([]Hash{leaf1})
	if err != nil {
		t.Fatal(err)
	}
	proof1 := TransactionProof{Root: root1, Batch: batch1, Index: 0, TotalLeaves: 1}

	batch2 := makeBatch(t, bob.pk, carol.pk, 5)
	leaf2, err := batch2.Hash()
	if err != nil {
		t.Fatal(err)
	}
	root2, err := MerkleRoot([]Hash{leaf2})
	if err != nil {
		t.Fatal(err)
	}
	proof2 := TransactionProof{Root: root2, Batch: batch2, Index: 0, TotalLeaves: 1}

	a := make(BalanceProof)
	a.Set(root1, alice.pk, proof1)
	b := make(BalanceProof)
	b.Set(root2, bob.pk, proof2)

	mergedAB := a.Clone()
	mergedAB.Merge(b)
	mergedBA := b.Clone()
	mergedBA.Merge(a)

	if len(mergedAB) != len(mergedBA) {
		t.Fatalf("merge should be commutative in resulting size: %d vs %d", len(mergedAB), len(mergedBA))
	}
	for k, v := range mergedAB {
		other, ok := mergedBA[k]
		if !ok {
			t.Fatalf("key %+v missing from the other merge order", k)
		}
		if v.Root != other.Root {
			t.Fatalf("merged entries for %+v disagree", k)
		}
	}
}

func TestBalanceProofMergeIsIdempotent(t *testing.T) {
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
	proof := TransactionProof{Root: root, Batch: batch, Index: 0, TotalLeaves: 1}

	bp := make(BalanceProof)
	bp.Set(root, alice.pk, proof)
	before := len(bp)
	bp.Merge(bp.Clone())
	if len(bp) != before {
		t.Fatalf("merging a balance proof with itself should not change its size")
	}
}

func TestBalanceProofJSONRoundTrip(t *testing.T) {
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
	proof := TransactionProof{Root: root, Batch: batch, Index: 0, TotalLeaves: 1}

	bp := make(BalanceProof)
	bp.Set(root, alice.pk, proof)

	raw, err := bp.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	var decoded BalanceProof
	if err := decoded.UnmarshalJSON(raw); err != nil {
		t.Fatal(err)
	}
	got, ok := decoded.Get(root, alice.pk)
	if !ok {
		t.Fatal("expected decoded balance proof to contain the original entry")
	}
	if got.Root != proof.Root {
		t.Fatal("round-tripped proof root mismatch")
	}
}
