package engine

import (
	"context"

	"github.com/tecnovert/particl-coldstakepool/internal/codec"
	"github.com/tecnovert/particl-coldstakepool/internal/ledger"
	"github.com/tecnovert/particl-coldstakepool/internal/rpc"
	"github.com/tecnovert/particl-coldstakepool/internal/store"
)

// runPayments is §4.5.3's process_payments, split into the three-phase
// read/RPC/write pattern established by ledger.CollectPayoutCandidates/
// ApplyPayoutGroup: no RPC send is ever issued while the store mutex is
// held.
func (s *Scheduler) runPayments(ctx context.Context, h int32) error {
	ok, err := s.tipNotAhead(ctx, h)
	if err != nil {
		return err
	}
	if !ok {
		s.logf("skipping payment dispatch at height %d, node tip is ahead", h)
		return nil
	}

	live := s.Engine.Params.Live()
	var candidates []ledger.PayoutCandidate
	if err := s.Store.View(func(r *store.Reader) error {
		var err error
		candidates, err = ledger.CollectPayoutCandidates(r, live.PayoutThreshold)
		return err
	}); err != nil {
		return err
	}

	if len(candidates) == 0 {
		return s.Store.Update(func(b *store.Batch) error {
			s.Counters.LastPaymentRun = h
			return store.SaveCounters(b, s.Counters)
		})
	}

	maxPerTx := s.MaxOutputsPerTx
	if maxPerTx <= 0 {
		maxPerTx = 48
	}
	for start := 0; start < len(candidates); start += maxPerTx {
		end := start + maxPerTx
		if end > len(candidates) {
			end = len(candidates)
		}
		group := candidates[start:end]

		outputs := make([]rpc.SendTypeToOutput, len(group))
		for i, c := range group {
			outputs[i] = rpc.SendTypeToOutput{Address: c.Address, Amount: codec.FormatSatoshi(int64(c.AmountSat))}
		}

		opts := rpc.SendTypeToOpts{RingSize: 4, InputsPerSig: 64, ChangeAddress: s.Engine.RewardAddr}
		if live.TxFeePerKb != nil {
			opts.FeeRate = *live.TxFeePerKb
		}
		txid, feeSat, err := s.Engine.RPC.SendTypeTo(ctx, s.RewardWallet, outputs, opts)
		if err != nil {
			s.logf("payment dispatch chunk failed at height %d: %v", h, err)
			break
		}

		if err := s.Store.Update(func(b *store.Batch) error {
			return ledger.ApplyPayoutGroup(b, group, txid, uint64(feeSat), s.Counters)
		}); err != nil {
			return err
		}
	}

	return s.Store.Update(func(b *store.Batch) error {
		s.Counters.LastPaymentRun = h
		return store.SaveCounters(b, s.Counters)
	})
}
