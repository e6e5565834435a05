package core

import "context"

// ValidateBalanceProof reconstructs per-account balances from a balance
// proof against a settlement view, rejecting double-spends, unsigned
// transfers, or missing transfer blocks (C5).
//
// The accumulator is a signed arbitrary-precision delta per account (big128,
// backed by math/big), wider than the u64 balances it adjusts, so that the unspecified iteration order over
// the balance proof's map cannot produce a spurious transient underflow
// (e.g. a send-then-receive pair processed receive-first). Only the final
// value — delta + deposits - withdrawals — is range-checked against zero.
func ValidateBalanceProof(ctx context.Context, bp BalanceProof, view SettlementView) (map[PubKeyID]uint64, error) {
	delta := make(map[PubKeyID]*big128)

	add := func(id PubKeyID, amount uint64, negative bool) {
		d, ok := delta[id]
		if !ok {
			d = &big128{}
			delta[id] = d
		}
		if negative {
			d.subU64(amount)
		} else {
			d.addU64(amount)
		}
	}

	for _, proof := range bp {
		ok, err := proof.Verify()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrInvalidProof
		}

		block, err := GetTransferBlockForMerkleRootAndPubkey(ctx, view, proof.Root, proof.Batch.From)
		if err != nil {
			return nil, err
		}
		if block == nil {
			return nil, &BatchNotInTransferBlockError{Batch: proof.Batch}
		}
		if !block.Verify() {
			return nil, ErrBadTransferBlock
		}

		for _, tx := range proof.Batch.Transactions {
			add(proof.Batch.From.ID(), tx.Amount, true)
			add(tx.To.ID(), tx.Amount, false)
		}
	}

	deposits, err := view.GetDepositTotals(ctx)
	if err != nil {
		return nil, err
	}
	withdrawals, err := view.GetWithdrawTotals(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[PubKeyID]uint64, len(delta))
	for id, d := range delta {
		final := d.clone()
		final.addU64(deposits[id])
		final.subU64(withdrawals[id])
		balance, negative := final.toUint64()
		if negative {
			validatorLog.WithField("pubkey", id.String()).Warn("reconstructed balance is negative")
			return nil, ErrBalanceNegative
		}
		out[id] = balance
	}
	return out, nil
}
