package core

import (
	"context"
	"sync"
)

// Wallet is the per-account state machine: it produces batches, signs
// inclusion proofs, and maintains the transitive balance proof that
// justifies its own non-negative balance, backed by a single BLS12-381
// key pair.
type Wallet struct {
	mu sync.Mutex

	name string
	sk   SecretKey
	pk   PublicKey

	balance uint64

	batch          TransactionBatch
	batchIsPending bool

	balanceProof BalanceProof

	store *WalletStore // nil for ephemeral (unnamed) wallets
}

// NewWallet generates a fresh BLS key pair. If name is non-empty, the
// wallet is hydrated from (and thereafter persists to) a named file-backed
// store; an empty name makes the wallet purely in-memory.
func NewWallet(name string, dir string) (*Wallet, error) {
	w := &Wallet{
		name:         name,
		balanceProof: make(BalanceProof),
	}
	if name == "" {
		w.sk, w.pk = GenerateKeyPair()
		return w, nil
	}
	store, err := OpenWalletStore(dir, name)
	if err != nil {
		return nil, err
	}
	w.store = store
	blob, err := store.Load()
	if err != nil {
		return nil, err
	}
	if blob == nil {
		w.sk, w.pk = GenerateKeyPair()
		if err := w.persistLocked(); err != nil {
			return nil, err
		}
		return w, nil
	}
	w.sk = blob.SecretKey
	w.pk = blob.SecretKey.PublicKey()
	w.balanceProof = blob.BalanceProof
	if w.balanceProof == nil {
		w.balanceProof = make(BalanceProof)
	}
	return w, nil
}

// PublicKey returns the wallet's public key.
func (w *Wallet) PublicKey() PublicKey {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pk
}

// Balance returns the wallet's last-synced balance.
func (w *Wallet) Balance() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balance
}

// BalanceProof returns a copy of the wallet's balance proof.
func (w *Wallet) BalanceProof() BalanceProof {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balanceProof.Clone()
}

// persistLocked writes the wallet's key and balance proof to disk. Caller
// must hold w.mu.
func (w *Wallet) persistLocked() error {
	if w.store == nil {
		return nil
	}
	return w.store.Save(WalletBlob{SecretKey: w.sk, BalanceProof: w.balanceProof})
}

// SyncWithSettlement recomputes the wallet's balance from its balance proof
// (or, if it holds no inbound proofs yet, from deposits minus withdrawals)
// and validates the balance proof as a side effect.
func (w *Wallet) SyncWithSettlement(ctx context.Context, view SettlementView) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.balanceProof) == 0 {
		deposits, err := GetAccountDepositAmount(ctx, view, w.pk)
		if err != nil {
			return err
		}
		withdrawals, err := GetAccountWithdrawAmount(ctx, view, w.pk)
		if err != nil {
			return err
		}
		if withdrawals > deposits {
			return ErrBalanceNegative
		}
		w.balance = deposits - withdrawals
		return nil
	}

	balances, err := ValidateBalanceProof(ctx, w.balanceProof, view)
	if err != nil {
		return err
	}
	w.balance = balances[w.pk.ID()]
	walletLog.WithField("pubkey", w.pk.ID().String()).WithField("balance", w.balance).Debug("synced with settlement")
	return nil
}

// AppendTransactionToBatch appends a new transaction to the wallet's open
// batch, deducting amount from the in-memory balance immediately so a
// wallet cannot overspend across several appends before producing a batch.
func (w *Wallet) AppendTransactionToBatch(to PublicKey, amount uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.batchIsPending {
		return ErrBatchPending
	}
	if to.Equal(w.pk) {
		return ErrSelfSend
	}
	if amount == 0 {
		return ErrZeroAmount
	}
	if amount > w.balance {
		return ErrInsufficient
	}
	tx, err := NewTransaction(w.pk, to, amount)
	if err != nil {
		return err
	}
	if len(w.batch.Transactions) == 0 {
		w.batch.From = w.pk
	}
	w.batch.Transactions = append(w.batch.Transactions, tx)
	w.balance -= amount
	return nil
}

// ProduceBatch marks the current batch pending and returns a copy of it
// for submission to an aggregator.
func (w *Wallet) ProduceBatch() (TransactionBatch, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.batchIsPending {
		return TransactionBatch{}, ErrBatchPending
	}
	if len(w.batch.Transactions) == 0 {
		return TransactionBatch{}, ErrEmpty
	}
	w.batchIsPending = true
	out := w.batch
	out.Transactions = append([]Transaction(nil), w.batch.Transactions...)
	return out, nil
}

// ValidateAndSignProof checks an inclusion proof returned by the
// aggregator for the wallet's own pending batch, signs its root, folds the
// resulting TransactionProof into the wallet's own balance proof (so future
// receivers can see this wallet as a provenance link), and resets the
// pending batch. On any failure the wallet is left in its pre-call state so
// the caller can retry with a corrected proof.
func (w *Wallet) ValidateAndSignProof(proof TransactionProof) (Signature, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.batchIsPending {
		return Signature{}, ErrNoBatch
	}
	pendingHash, err := w.batch.Hash()
	if err != nil {
		return Signature{}, err
	}
	proofBatchHash, err := proof.Batch.Hash()
	if err != nil {
		return Signature{}, err
	}
	if pendingHash != proofBatchHash {
		return Signature{}, ErrMismatch
	}
	if !proof.Batch.From.Equal(w.pk) {
		return Signature{}, ErrWrongSender
	}
	ok, err := proof.Verify()
	if err != nil {
		return Signature{}, err
	}
	if !ok {
		return Signature{}, ErrInvalidProof
	}

	sig := w.sk.Sign(proof.Root[:])
	prev := w.balanceProof
	updated := w.balanceProof.Clone()
	updated.Set(proof.Root, w.pk, proof)
	w.balanceProof = updated
	if err := w.persistLocked(); err != nil {
		w.balanceProof = prev
		return Signature{}, err
	}
	w.batch = TransactionBatch{}
	w.batchIsPending = false
	walletLog.WithField("root", proof.Root.Hex()).Debug("signed inclusion proof")
	return sig, nil
}

// AddReceivingTransaction integrates a received payment: proof must name
// this wallet as a recipient, verify, and have a matching entry in the
// sender's own balance proof; on success the sender's balance proof is
// merged in and the validator of C5 is re-run to adopt the resulting
// self-balance.
func (w *Wallet) AddReceivingTransaction(ctx context.Context, proof TransactionProof, senderProof BalanceProof, view SettlementView) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	addressedToUs := false
	for _, tx := range proof.Batch.Transactions {
		if tx.To.Equal(w.pk) {
			addressedToUs = true
			break
		}
	}
	if !addressedToUs {
		return ErrNotForUs
	}
	ok, err := proof.Verify()
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidProof
	}
	if _, found := senderProof.Get(proof.Root, proof.Batch.From); !found {
		return ErrNotInSenderProof
	}

	merged := w.balanceProof.Clone()
	merged.Merge(senderProof)
	merged.Set(proof.Root, proof.Batch.From, proof)

	balances, err := ValidateBalanceProof(ctx, merged, view)
	if err != nil {
		return err
	}
	w.balanceProof = merged
	w.balance = balances[w.pk.ID()]
	if err := w.persistLocked(); err != nil {
		return err
	}
	walletLog.WithField("pubkey", w.pk.ID().String()).WithField("balance", w.balance).Info("received transaction")
	return nil
}

// BatchIsPending reports whether the wallet currently has a batch awaiting
// a signed inclusion proof.
func (w *Wallet) BatchIsPending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.batchIsPending
}

// CurrentBatchHash returns the hash of the wallet's current (possibly
// pending) batch, for the sync loop to match against observed transfer
// blocks.
func (w *Wallet) CurrentBatchHash() (Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.batch.Hash()
}
