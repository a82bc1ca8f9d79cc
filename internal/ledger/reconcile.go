package ledger

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/tecnovert/particl-coldstakepool/internal/codec"
	"github.com/tecnovert/particl-coldstakepool/internal/rpc"
	"github.com/tecnovert/particl-coldstakepool/internal/store"
)

// FindPayments reconciles what the node actually paid out of the
// reward address at height h against the pending/accumulated balances
// this ledger is tracking. It must run before ProcessPoolBlock credits
// a new win at the same height, so a payout transaction mined in the
// same block a new win is found never double-counts against the new
// win's bonus accounting.
func (e *Engine) FindPayments(ctx context.Context, h int32, coinstakeTxid string, b *store.Batch, counters *store.Counters) error {
	deltas, err := e.RPC.GetAddressDeltas(ctx, rpc.AddressDeltasRequest{
		Addresses: []string{e.RewardAddr},
		Start:     h,
		End:       h,
	})
	if err != nil {
		return fmt.Errorf("ledger: getaddressdeltas at %d: %w", h, err)
	}

	txids := make(map[string]bool)
	for _, d := range deltas {
		if d.TxID == coinstakeTxid {
			if d.Satoshis < 0 {
				e.logf("WARNING: pool reward coin spent in coinstake %s", coinstakeTxid)
			}
			continue
		}
		txids[d.TxID] = true
	}
	if len(txids) == 0 {
		return nil
	}

	for txid := range txids {
		if err := e.findPaymentsInTx(ctx, h, txid, b, counters); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) findPaymentsInTx(ctx context.Context, h int32, txid string, b *store.Batch, counters *store.Counters) error {
	tx, err := e.RPC.GetRawTransaction(ctx, txid, true)
	if err != nil {
		return fmt.Errorf("ledger: getrawtransaction %s: %w", txid, err)
	}

	var haveBlinded bool
	var totalInput, totalOutput int64
	for n, in := range tx.Vin {
		if in.Prevout == nil {
			e.logf("WARNING: could not get prevout value input %s.%d", txid, n)
			continue
		}
		if in.Prevout.Type == "blind" {
			haveBlinded = true
			continue
		}
		totalInput += rpc.ToSatoshi(in.Prevout.Value)
	}

	var totalDisbursed uint64
	for i := range tx.Vout {
		out := &tx.Vout[i]
		switch out.Type {
		case "data":
			continue
		case "blind":
			e.logf("WARNING: found txn %s paying to blinded output", txid)
			haveBlinded = true
			continue
		case "anon":
			e.logf("WARNING: found txn %s paying to anon output", txid)
			haveBlinded = true
			continue
		}

		v := out.Satoshi()
		totalOutput += v

		if len(out.Addresses) == 0 {
			e.logf("WARNING: found txn %s paying to unknown address", txid)
			continue
		}
		address := out.Addresses[0]
		if address == e.RewardAddr {
			// Change output returning to the pool's own reward address.
			continue
		}

		disbursed, err := e.applyObservedPayout(h, txid, out.N, address, uint64(v), b, counters)
		if err != nil {
			return err
		}
		totalDisbursed += disbursed
	}

	if totalDisbursed > 0 {
		var txidArr [32]byte
		if raw, err := hex.DecodeString(txid); err == nil && len(raw) == 32 {
			copy(txidArr[:], raw)
		}
		if err := b.Put(store.SettledPayoutKey(h, txidArr), store.EncodeSettledPayout(totalDisbursed)); err != nil {
			return err
		}
		if err := b.Delete(store.PendingPayoutKey(txidArr)); err != nil {
			return err
		}
		counters.PoolDisbursed += totalDisbursed
	}

	var fee int64
	if haveBlinded && len(tx.Vout) > 0 {
		fee = tx.Vout[0].FeeSatoshi()
	} else {
		fee = totalInput - totalOutput
	}
	e.logf("payout tx %s, input %s, output %s, fee %s", txid, codec.FormatSatoshi(totalInput), codec.FormatSatoshi(totalOutput), codec.FormatSatoshi(fee))
	counters.PoolFeesDetected += uint64(fee)
	return nil
}

// applyObservedPayout applies one non-change output of an observed
// payout transaction to either a participant's balance (debiting
// pending, crediting paid_out) or, if the address is not a known
// participant, to the operator's withdrawn total. It returns the
// satoshi amount that counted toward this transaction's total
// disbursed figure (zero for an operator withdrawal, which is tracked
// separately).
func (e *Engine) applyObservedPayout(h int32, txid string, voutN int, address string, v uint64, b *store.Batch, counters *store.Counters) (uint64, error) {
	addrBytes := decodeRewardAddr(address)
	if addrBytes == nil {
		e.logf("WARNING: found txn %s paying to undecodable address %q", txid, address)
		return 0, nil
	}

	key := store.ParticipantKey(addrBytes)
	raw, err := b.Get(key)
	if err == store.ErrNotFound {
		e.logf("withdrawal detected from pool reward balance %s %d %s", txid, voutN, codec.FormatSatoshi(int64(v)))
		counters.PoolWithdrawn += v
		e.Debug.Withdrawal(h, txid, voutN, address, v)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	rec := store.DecodeParticipant(raw)
	pendingBefore := rec.Pending
	rec.PaidOut += v

	if v > pendingBefore {
		overpay := v - pendingBefore
		e.logf("WARNING: txn %s overpays address %s more than pending payout, pending: %d, paid: %s", txid, address, pendingBefore, codec.FormatSatoshi(int64(v)))
		overpaySub := new(big.Int).Mul(new(big.Int).SetUint64(overpay), big.NewInt(codec.COIN))
		if rec.Accumulated.Cmp(overpaySub) >= 0 {
			rec.Accumulated = new(big.Int).Sub(rec.Accumulated, overpaySub)
		} else {
			e.logf("WARNING: txn %s overpays address %s more than accumulated reward, overpay %s, paid: %s", txid, address, codec.FormatSatoshi(int64(overpay)), codec.FormatSatoshi(int64(v)))
			rec.Accumulated = big.NewInt(0)
		}
		rec.Pending = 0
	} else {
		rec.Pending = pendingBefore - v
	}

	if err := saveParticipant(b, addrBytes, rec); err != nil {
		return 0, err
	}
	e.Debug.Payout(h, address, v, txid, rec.Accumulated)
	return v, nil
}
