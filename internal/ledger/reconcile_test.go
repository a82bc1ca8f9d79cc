package ledger

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tecnovert/particl-coldstakepool/internal/codec"
	"github.com/tecnovert/particl-coldstakepool/internal/params"
	"github.com/tecnovert/particl-coldstakepool/internal/rpc"
	"github.com/tecnovert/particl-coldstakepool/internal/store"
)

// stubReconcileNode answers getaddressdeltas and getrawtransaction with
// fixed canned responses for the FindPayments tests below.
func stubReconcileNode(t *testing.T, deltas []rpc.AddressDelta, tx *rpc.RawTransaction) *rpc.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		method, _ := raw["method"].(string)
		id := int64(raw["id"].(float64))

		var result interface{}
		switch method {
		case "getaddressdeltas":
			result = deltas
		case "getrawtransaction":
			result = tx
		default:
			t.Fatalf("unexpected rpc method %q", method)
		}
		resultBytes, err := json.Marshal(result)
		require.NoError(t, err)
		body, err := json.Marshal(struct {
			ID     int64           `json:"id"`
			Result json.RawMessage `json:"result"`
		}{ID: id, Result: resultBytes})
		require.NoError(t, err)
		w.Write(body)
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return rpc.NewClient(u.Hostname(), port, "user", "pass", 5*time.Second)
}

func newReconcileEngine(t *testing.T, deltas []rpc.AddressDelta, tx *rpc.RawTransaction, rewardAddr string) (*Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	sched := params.NewSchedule([]params.Parameter{{Height: 0, PoolFeePercent: 3, StakeBonusPercent: 0, MinOutputValue: 10}})
	sched.ApplyThrough(0)

	poolAddr := codec.Bech32Encode("rtpw", make([]byte, 20))
	e, err := New(stubReconcileNode(t, deltas, tx), sched, "rtpw", poolAddr, rewardAddr, nil, nil)
	require.NoError(t, err)
	return e, s
}

// TestFindPaymentsS5OverpayRecovery covers S5: an observed payout
// credits more than was pending, clamping pending to zero and pulling
// the overpay out of the sub-satoshi accumulated balance.
func TestFindPaymentsS5OverpayRecovery(t *testing.T) {
	addr := testAddr(7)
	rewardAddr := testAddr(99)
	payoutTxid := "ab" + stringsRepeat("00", 31)

	tx := &rpc.RawTransaction{
		TxID: payoutTxid,
		Vin: []rpc.RawTxVin{{
			Prevout: &struct {
				Value decimal.Decimal `json:"value"`
				Type  string          `json:"type"`
			}{Value: decimal.RequireFromString("1.00000000"), Type: "standard"},
		}},
		Vout: []rpc.RawTxVout{
			{N: 0, Value: decimal.RequireFromString("0.00001003"), Type: "standard", Addresses: []string{addr}},
			{N: 1, Value: decimal.RequireFromString("0.99998990"), Type: "standard", Addresses: []string{rewardAddr}},
		},
	}
	deltas := []rpc.AddressDelta{{TxID: payoutTxid, Satoshis: 1003}}

	e, s := newReconcileEngine(t, deltas, tx, rewardAddr)

	addrRaw := codec.Base58CheckDecode(addr)
	require.NotNil(t, addrRaw)

	err := s.Update(func(b *store.Batch) error {
		rec := store.ParticipantRecord{
			Accumulated: new(big.Int).Mul(big.NewInt(1000), big.NewInt(codec.COIN)), // 1000 sat worth of sub-sat accumulator
			Pending:     1000,
		}
		return b.Put(store.ParticipantKey(addrRaw), store.EncodeParticipant(rec))
	})
	require.NoError(t, err)

	err = s.Update(func(b *store.Batch) error {
		counters := &store.Counters{}
		return e.FindPayments(context.Background(), 600, "coinstake-not-in-deltas", b, counters)
	})
	require.NoError(t, err)

	raw, err := s.Get(store.ParticipantKey(addrRaw))
	require.NoError(t, err)
	rec := store.DecodeParticipant(raw)
	require.Equal(t, uint64(0), rec.Pending)
	require.Equal(t, uint64(1003), rec.PaidOut)
	// overpay of 3 sat removed from the sub-satoshi accumulator.
	require.Equal(t, new(big.Int).Mul(big.NewInt(997), big.NewInt(codec.COIN)), rec.Accumulated)
}

// TestFindPaymentsOperatorWithdrawal covers an observed payout to an
// address with no tracked ParticipantBalance: it must be treated as an
// operator withdrawal, crediting pool_withdrawn rather than any
// participant.
func TestFindPaymentsOperatorWithdrawal(t *testing.T) {
	unknownAddr := testAddr(55)
	rewardAddr := testAddr(99)
	payoutTxid := "cd" + stringsRepeat("00", 31)

	tx := &rpc.RawTransaction{
		TxID: payoutTxid,
		Vin: []rpc.RawTxVin{{
			Prevout: &struct {
				Value decimal.Decimal `json:"value"`
				Type  string          `json:"type"`
			}{Value: decimal.RequireFromString("0.50000000"), Type: "standard"},
		}},
		Vout: []rpc.RawTxVout{
			{N: 0, Value: decimal.RequireFromString("0.49990000"), Type: "standard", Addresses: []string{unknownAddr}},
		},
	}
	deltas := []rpc.AddressDelta{{TxID: payoutTxid, Satoshis: 49990000}}

	e, s := newReconcileEngine(t, deltas, tx, rewardAddr)

	var counters store.Counters
	err := s.Update(func(b *store.Batch) error {
		return e.FindPayments(context.Background(), 601, "coinstake-not-in-deltas", b, &counters)
	})
	require.NoError(t, err)

	require.Equal(t, uint64(49990000), counters.PoolWithdrawn)

	addrRaw := codec.Base58CheckDecode(unknownAddr)
	_, err = s.Get(store.ParticipantKey(addrRaw))
	require.ErrorIs(t, err, store.ErrNotFound)
}

func stringsRepeat(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
