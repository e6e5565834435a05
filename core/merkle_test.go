package core

import "testing"

func leafFromByte(b byte) Hash {
	var h Hash
	h[0] = b
	return HashBytes(h[:])
}

func TestMerkleRootEmpty(t *testing.T) {
	if _, err := MerkleRoot(nil); err != ErrEmptyTree {
		t.Fatalf("expected ErrEmptyTree, got %v", err)
	}
}

func TestMerkleRootSingleLeafIsLeafItself(t *testing.T) {
	leaf := leafFromByte(1)
	root, err := MerkleRoot([]Hash{leaf})
	if err != nil {
		t.Fatal(err)
	}
	if root != leaf {
		t.Fatalf("single-leaf root should equal the leaf, got %x want %x", root, leaf)
	}
}

func TestMerkleProofRoundTrip(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 5, 7, 8, 16, 17} {
		leaves := make([]Hash, n)
		for i := range leaves {
			leaves[i] = leafFromByte(byte(i + 1))
		}
		root, err := MerkleRoot(leaves)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		for i := range leaves {
			proof, proofRoot, err := MerkleProofFor(leaves, i)
			if err != nil {
				t.Fatalf("n=%d i=%d: %v", n, i, err)
			}
			if proofRoot != root {
				t.Fatalf("n=%d i=%d: proof root mismatch", n, i)
			}
			if !VerifyMerklePath(root, leaves[i], proof, i, n) {
				t.Fatalf("n=%d i=%d: verification failed", n, i)
			}
		}
	}
}

func TestMerkleProofRejectsWrongLeaf(t *testing.T) {
	leaves := []Hash{leafFromByte(1), leafFromByte(2), leafFromByte(3)}
	root, err := MerkleRoot(leaves)
	if err != nil {
		t.Fatal(err)
	}
	proof, _, err := MerkleProofFor(leaves, 0)
	if err != nil {
		t.Fatal(err)
	}
	if VerifyMerklePath(root, leafFromByte(99), proof, 0, len(leaves)) {
		t.Fatal("verification should fail for a substituted leaf")
	}
}

func TestMerkleProofForOutOfRange(t *testing.T) {
	leaves := []Hash{leafFromByte(1)}
	if _, _, err := MerkleProofFor(leaves, 5); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
