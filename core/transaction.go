package core

import (
	crand "crypto/rand"
	"encoding/json"
)

// Transaction is a single off-chain payment from one wallet to another,
// identified by BLS public keys and a random salt rather than a nonce.
type Transaction struct {
	To     PublicKey `json:"to"`
	From   PublicKey `json:"from"`
	Amount uint64    `json:"amount"`
	Salt   [32]byte  `json:"salt"`
}

// canonicalTx is the stable JSON form hashed to derive tx_hash; it excludes
// Salt, which is concatenated separately when hashing.
type canonicalTx struct {
	To     PublicKey `json:"to"`
	From   PublicKey `json:"from"`
	Amount uint64    `json:"amount"`
}

// NewTransaction builds a Transaction with a fresh cryptographically strong
// salt, enforcing the from != to and amount > 0 invariants.
func NewTransaction(from, to PublicKey, amount uint64) (Transaction, error) {
	if from.Equal(to) {
		return Transaction{}, ErrSelfSend
	}
	if amount == 0 {
		return Transaction{}, ErrZeroAmount
	}
	var salt [32]byte
	if _, err := crand.Read(salt[:]); err != nil {
		return Transaction{}, err
	}
	return Transaction{To: to, From: from, Amount: amount, Salt: salt}, nil
}

// Hash computes tx_hash = SHA256(SHA256(canonical_bytes(tx)) || salt).
func (t Transaction) Hash() (Hash, error) {
	canon, err := json.Marshal(canonicalTx{To: t.To, From: t.From, Amount: t.Amount})
	if err != nil {
		return Hash{}, err
	}
	inner := HashBytes(canon)
	buf := make([]byte, 0, 64)
	buf = append(buf, inner[:]...)
	buf = append(buf, t.Salt[:]...)
	return HashBytes(buf), nil
}

// TransactionBatch is the unit of Merkle leaf: every transaction shares the
// same sender, in a fixed order.
type TransactionBatch struct {
	From         PublicKey     `json:"from"`
	Transactions []Transaction `json:"transactions"`
}

// Validate checks the batch invariant that every transaction's From equals
// the batch's From.
func (b TransactionBatch) Validate() error {
	for _, tx := range b.Transactions {
		if !tx.From.Equal(b.From) {
			return ErrWrongSender
		}
	}
	return nil
}

// Hash computes batch_hash = SHA256(concat(tx_hash_i)) in batch order.
func (b TransactionBatch) Hash() (Hash, error) {
	var buf []byte
	for _, tx := range b.Transactions {
		h, err := tx.Hash()
		if err != nil {
			return Hash{}, err
		}
		buf = append(buf, h[:]...)
	}
	return HashBytes(buf), nil
}
