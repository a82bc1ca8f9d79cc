package ledger

import (
	"encoding/hex"
	"math/big"

	"github.com/tecnovert/particl-coldstakepool/internal/codec"
	"github.com/tecnovert/particl-coldstakepool/internal/store"
)

// PayoutCandidate is one participant whose accumulated reward has
// crossed the payout threshold, computed by CollectPayoutCandidates
// under a read snapshot and carried, unmodified, across an RPC send
// performed outside any store lock.
type PayoutCandidate struct {
	AddrBytes []byte
	Address   string
	AmountSat uint64
}

// CollectPayoutCandidates scans every ParticipantBalance under a
// read-only snapshot and returns the ones whose floored accumulated
// reward meets thresholdSat, without mutating anything. It is the read
// phase of the three-phase payout dispatch: the caller must perform the
// RPC send entirely outside the store mutex, then apply the result with
// ApplyPayoutGroup in a fresh write phase.
func CollectPayoutCandidates(r *store.Reader, thresholdSat uint64) ([]PayoutCandidate, error) {
	var candidates []PayoutCandidate
	err := r.IteratePrefix([]byte{codec.TagParticipant}, false, func(key, value []byte) error {
		rec := store.DecodeParticipant(value)
		payout := new(big.Int).Quo(rec.Accumulated, big.NewInt(codec.COIN))
		if payout.Cmp(new(big.Int).SetUint64(thresholdSat)) < 0 {
			return nil
		}
		addrBytes := append([]byte(nil), key[1:]...)
		candidates = append(candidates, PayoutCandidate{
			AddrBytes: addrBytes,
			Address:   encodeRewardAddr(addrBytes),
			AmountSat: payout.Uint64(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

// ApplyPayoutGroup is the write phase for one chunk of a payout run
// that was successfully dispatched as txid, debiting each candidate's
// accumulated balance by amount*COIN and crediting pending, then
// recording the chunk's PendingPayout and adding its fee to pool_fees.
// It must be called with the exact candidates that were included in
// the dispatched group — a failed later chunk must not roll this one
// back, so each successfully-sent chunk gets its own call and its own
// sub-batch from the caller.
func ApplyPayoutGroup(b *store.Batch, group []PayoutCandidate, txid string, feeSat uint64, counters *store.Counters) error {
	var totalDisbursed uint64
	for _, cand := range group {
		rec, err := loadParticipant(b, cand.AddrBytes)
		if err != nil {
			return err
		}
		debit := new(big.Int).Mul(new(big.Int).SetUint64(cand.AmountSat), big.NewInt(codec.COIN))
		rec.Accumulated = new(big.Int).Sub(rec.Accumulated, debit)
		rec.Pending += cand.AmountSat
		if err := saveParticipant(b, cand.AddrBytes, rec); err != nil {
			return err
		}
		totalDisbursed += cand.AmountSat
	}

	var txidArr [32]byte
	if raw, err := hex.DecodeString(txid); err == nil && len(raw) == 32 {
		copy(txidArr[:], raw)
	}
	if err := b.Put(store.PendingPayoutKey(txidArr), store.EncodePendingPayout(store.PendingPayoutRecord{
		Disbursed: totalDisbursed,
		Fee:       feeSat,
	})); err != nil {
		return err
	}

	counters.PoolFees += feeSat
	return nil
}
