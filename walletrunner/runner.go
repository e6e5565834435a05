// Package walletrunner wires a core.Wallet to a settlement view and a
// transport.Client: the automatic sync loop, the inclusion-proof and
// receive-transaction callbacks, and the interactive CLI surface. The
// background loop follows a ticker/context pattern generalised from
// periodic ledger-height broadcast to periodic settlement resync and
// forward-to-receivers fan-out.
package walletrunner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/synnergy-labs/rollupnet/core"
	"github.com/synnergy-labs/rollupnet/transport"
)

// Runner binds one wallet to its coordinator connection and settlement
// view, and drives the automatic sync loop in the background.
type Runner struct {
	Wallet *core.Wallet
	View   core.SettlementView
	Client *transport.Client
	Log    *logrus.Logger

	interval time.Duration

	mu           sync.Mutex
	seenBlocks   map[core.Hash]bool
	lastSyncSnap *syncSnapshot
	cancel       context.CancelFunc
}

// syncSnapshot is the cheap per-tick fingerprint of settlement-view state
// for this wallet's account: deposit total, withdraw total, and transfer
// block count. A full resync is only worth its cost when one of these
// three numbers has actually moved since the previous tick.
type syncSnapshot struct {
	depositTotal  uint64
	withdrawTotal uint64
	blockCount    int
}

// NewRunner constructs a Runner and wires the client's server-originated
// message callbacks to the wallet's signing and receiving operations.
func NewRunner(w *core.Wallet, view core.SettlementView, client *transport.Client, interval time.Duration, log *logrus.Logger) *Runner {
	if log == nil {
		log = logrus.New()
	}
	r := &Runner{
		Wallet:     w,
		View:       view,
		Client:     client,
		Log:        log,
		interval:   interval,
		seenBlocks: make(map[core.Hash]bool),
	}
	client.OnInclusionProof = r.handleInclusionProof
	client.OnReceiveTransaction = r.handleReceiveTransaction
	return r
}

// handleInclusionProof signs a just-pushed inclusion proof for the
// wallet's own pending batch and returns the signature to the coordinator.
func (r *Runner) handleInclusionProof(proof core.TransactionProof) {
	sig, err := r.Wallet.ValidateAndSignProof(proof)
	if err != nil {
		r.Log.WithError(err).Warn("failed to sign inclusion proof")
		return
	}
	if err := r.Client.SendTransactionBatchSignature(r.Wallet.PublicKey(), sig); err != nil {
		r.Log.WithError(err).Warn("failed to return signature")
	}
}

// handleReceiveTransaction integrates an incoming payment forwarded by the
// coordinator.
func (r *Runner) handleReceiveTransaction(proof core.TransactionProof, senderProof core.BalanceProof) {
	ctx := context.Background()
	if err := r.Wallet.AddReceivingTransaction(ctx, proof, senderProof, r.View); err != nil {
		r.Log.WithError(err).Warn("failed to add receiving transaction")
	}
}

// Start launches the background sync loop. Calling Start twice has no
// effect.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()

	go r.loop(ctx)
}

// Stop cancels the sync loop.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (r *Runner) loop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// snapshotSync reads the cheap per-account counters that tick compares
// against the previous round to decide whether a full resync is needed.
func (r *Runner) snapshotSync(ctx context.Context, pk core.PublicKey) (syncSnapshot, []core.TransferBlock, error) {
	blocks, err := core.GetAccountTransferBlocks(ctx, r.View, pk)
	if err != nil {
		return syncSnapshot{}, nil, err
	}
	deposit, err := core.GetAccountDepositAmount(ctx, r.View, pk)
	if err != nil {
		return syncSnapshot{}, nil, err
	}
	withdraw, err := core.GetAccountWithdrawAmount(ctx, r.View, pk)
	if err != nil {
		return syncSnapshot{}, nil, err
	}
	return syncSnapshot{depositTotal: deposit, withdrawTotal: withdraw, blockCount: len(blocks)}, blocks, nil
}

// tick performs one iteration of the automatic sync loop: a cheap snapshot
// comparison gates the expensive balance-proof-validating resync, then any
// newly-committed self batch is forwarded to its receivers.
func (r *Runner) tick(ctx context.Context) {
	pk := r.Wallet.PublicKey()

	snap, blocks, err := r.snapshotSync(ctx, pk)
	if err != nil {
		r.Log.WithError(err).Debug("failed to snapshot settlement state")
		return
	}

	r.mu.Lock()
	unchanged := r.lastSyncSnap != nil && *r.lastSyncSnap == snap
	r.lastSyncSnap = &snap
	r.mu.Unlock()

	if unchanged {
		return
	}

	if err := r.Wallet.SyncWithSettlement(ctx, r.View); err != nil {
		r.Log.WithError(err).Debug("sync_with_settlement failed")
	}

	for _, block := range blocks {
		r.mu.Lock()
		seen := r.seenBlocks[block.MerkleRoot]
		if !seen {
			r.seenBlocks[block.MerkleRoot] = true
		}
		r.mu.Unlock()
		if seen {
			continue
		}

		proof, ok := r.Wallet.BalanceProof().Get(block.MerkleRoot, pk)
		if !ok {
			continue
		}
		if !proof.Batch.From.Equal(pk) {
			continue
		}
		if err := r.Client.SendBatchToReceivers(proof, r.Wallet.BalanceProof()); err != nil {
			r.Log.WithError(err).Warn("failed to forward batch to receivers")
		}
	}
}

// AppendTx is the append_tx CLI command: append a transaction to the
// wallet's open batch. The caller parses the target and amount.
func (r *Runner) AppendTx(to core.PublicKey, amount uint64) error {
	return r.Wallet.AppendTransactionToBatch(to, amount)
}

// SendBatch is the send_batch CLI command: produce the pending batch and
// submit it to the coordinator.
func (r *Runner) SendBatch() error {
	batch, err := r.Wallet.ProduceBatch()
	if err != nil {
		return err
	}
	return r.Client.SendTransactionBatch(batch)
}

// Balance is the balance CLI command.
func (r *Runner) Balance() uint64 {
	return r.Wallet.Balance()
}

// Deposit is the test-only deposit CLI command; it requires the
// settlement view to expose the mock store's write helper.
func (r *Runner) Deposit(ctx context.Context, amount uint64) error {
	mock, ok := r.View.(*core.FileSettlementStore)
	if !ok {
		return fmt.Errorf("walletrunner: deposit is only available against a mock settlement store")
	}
	return mock.AddDeposit(ctx, r.Wallet.PublicKey(), amount)
}
