package readapi

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
	"github.com/tecnovert/particl-coldstakepool/internal/config"
	"github.com/tecnovert/particl-coldstakepool/internal/ledger"
	"github.com/tecnovert/particl-coldstakepool/internal/params"
	"github.com/tecnovert/particl-coldstakepool/internal/rpc"
	"github.com/tecnovert/particl-coldstakepool/internal/store"
)

// testAddr builds a 33-byte payload address (1-byte version + 32-byte
// hash, the width AddressSummary requires — see its len(raw) != 33
// check) distinguished by tag so callers can build distinct addresses.
func testAddr(tag byte) string {
	payload := make([]byte, 33)
	payload[0] = 0x76
	payload[1] = tag
	return codec.Base58CheckEncode(payload)
}

// stubReadNode answers every RPC method ReadAPI can call: getstakinginfo,
// getwalletinfo, listunspent, getnetworkinfo, getblockhash,
// getblockheader — all with small fixed, deterministic values.
func stubReadNode(t *testing.T) *rpc.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		method, _ := raw["method"].(string)
		id := int64(raw["id"].(float64))

		var result interface{}
		switch method {
		case "getstakinginfo":
			result = rpc.StakingInfo{Enabled: true, Staking: true, Weight: 12345}
		case "getwalletinfo":
			result = rpc.WalletInfo{
				WatchOnlyTotalBalance:  decimal.RequireFromString("500.00000000"),
				WatchOnlyStakedBalance: decimal.RequireFromString("400.00000000"),
			}
		case "listunspent":
			result = []rpc.Unspent{{TxID: "utxo1", Vout: 0, Amount: decimal.RequireFromString("10.00000000")}}
		case "getnetworkinfo":
			result = rpc.NetworkInfo{Version: 23000100, SubVersion: "/Particl:23.0.1/", ProtocolVersion: 90025}
		case "getblockhash":
			result = "hash-at-height"
		case "getblockheader":
			result = rpc.BlockHeader{Time: 1700000000}
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

func newTestAPI(t *testing.T) (*ReadAPI, *store.Store, string) {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	rewardAddr := testAddr(1)
	sched := params.NewSchedule([]params.Parameter{{
		Height: 0, PoolFeePercent: 3, StakeBonusPercent: 0,
		PayoutThreshold: 1_000_000_000, MinBlocksBetweenPayments: 1000, MinOutputValue: 10,
	}})
	sched.ApplyThrough(0)

	poolAddr := codec.Bech32Encode("rtpw", make([]byte, 20))
	eng, err := ledger.New(stubReadNode(t), sched, "rtpw", poolAddr, rewardAddr, nil, nil)
	require.NoError(t, err)

	api := &ReadAPI{
		Store:        s,
		Engine:       eng,
		Mode:         config.ModeMaster,
		StakeWallet:  "pool_stake",
		RewardWallet: "pool_reward",
		Version:      "1.0.0-test",
	}
	return api, s, rewardAddr
}

func TestSummaryReadsCountersAndRecentBlocks(t *testing.T) {
	api, s, rewardAddr := newTestAPI(t)

	require.NoError(t, s.Update(func(b *store.Batch) error {
		c := &store.Counters{CurrentHeight: 100, BlocksFound: 2, PoolFees: 500}
		if err := store.SaveCounters(b, c); err != nil {
			return err
		}
		rec := store.PoolBlockRecord{BlockReward: 200_000_000, PoolCoinTotal: 194_000_000}
		if err := b.Put(store.PoolBlockKey(100), store.EncodePoolBlock(rec)); err != nil {
			return err
		}
		return b.Put(store.PoolRewardKey(codec.Base58CheckDecode(rewardAddr)), codec.PackUint64(6_000_000))
	}))

	summary, err := api.Summary(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(100), summary.PoolHeight)
	require.Equal(t, int32(2), summary.BlocksFound)
	require.Equal(t, uint64(500), summary.PoolFeesTotal)
	require.Equal(t, uint64(6_000_000), summary.PoolRewardTotal)
	require.Len(t, summary.LastBlocks, 1)
	require.Equal(t, int32(100), summary.LastBlocks[0].Height)
	require.Equal(t, uint64(12345), summary.StakeWeight)
	require.Equal(t, uint64(50_000_000_000), summary.WalletBalance)
}

func TestAddressSummaryUnknownAddressStillReportsCurrentTotal(t *testing.T) {
	api, _, _ := newTestAPI(t)
	spendAddr := testAddr(7)

	summary, err := api.AddressSummary(context.Background(), spendAddr)
	require.NoError(t, err)
	require.False(t, summary.Known)
	require.Equal(t, uint64(1_000_000_000), summary.CurrentTotal) // 10 PART
}

func TestAddressSummaryKnownAddress(t *testing.T) {
	api, s, _ := newTestAPI(t)
	spendAddr := testAddr(7)
	raw := codec.Base58CheckDecode(spendAddr)

	require.NoError(t, s.Update(func(b *store.Batch) error {
		return b.Put(store.ParticipantKey(raw), store.EncodeParticipant(store.ParticipantRecord{
			Accumulated:     big.NewInt(97_000_000_000_000),
			Pending:         1000,
			PaidOut:         2000,
			LastStakeWeight: 3000,
		}))
	}))

	summary, err := api.AddressSummary(context.Background(), spendAddr)
	require.NoError(t, err)
	require.True(t, summary.Known)
	require.Equal(t, uint64(1000), summary.RewardPending)
	require.Equal(t, uint64(2000), summary.RewardPaidOut)
	require.Equal(t, uint64(3000), summary.LastStakeWeight)
}

func TestAddressSummaryRejectsInvalidAddress(t *testing.T) {
	api, _, _ := newTestAPI(t)
	_, err := api.AddressSummary(context.Background(), "not-an-address")
	require.Error(t, err)
}

func TestMetricsReturnsMostRecentFirstCappedAt12(t *testing.T) {
	api, s, _ := newTestAPI(t)

	require.NoError(t, s.Update(func(b *store.Batch) error {
		for y := 2024; y <= 2025; y++ {
			for m := 1; m <= 12; m++ {
				ym := monthKey(y, m)
				rec := store.MonthMetricRecord{Blocks: 2, PoolCoinTotalSum: big.NewInt(400), DisbursedSum: 10}
				if err := b.Put(store.MonthMetricKey(ym), store.EncodeMonthMetric(rec)); err != nil {
					return err
				}
			}
		}
		return nil
	}))

	months, err := api.Metrics()
	require.NoError(t, err)
	require.Len(t, months, 12)
	require.Equal(t, "2025-12", months[0].Month)
	require.Equal(t, big.NewInt(200), months[0].AvgPoolCoinTotal)
}

func monthKey(y, m int) string {
	return time.Date(y, time.Month(m), 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

func TestPendingExpandDetailListsNonZeroParticipantsOnly(t *testing.T) {
	api, s, _ := newTestAPI(t)
	addrA := testAddr(10)
	addrB := testAddr(11)

	require.NoError(t, s.Update(func(b *store.Batch) error {
		if err := b.Put(store.ParticipantKey(codec.Base58CheckDecode(addrA)), store.EncodeParticipant(store.ParticipantRecord{
			Accumulated: big.NewInt(0), Pending: 500,
		})); err != nil {
			return err
		}
		return b.Put(store.ParticipantKey(codec.Base58CheckDecode(addrB)), store.EncodeParticipant(store.ParticipantRecord{
			Accumulated: big.NewInt(0), Pending: 0,
		}))
	}))

	groups, participants, err := api.Pending(false)
	require.NoError(t, err)
	require.Empty(t, groups)
	require.Nil(t, participants)

	_, participants, err = api.Pending(true)
	require.NoError(t, err)
	require.Len(t, participants, 1)
	require.Equal(t, addrA, participants[0].Address)
}

func TestVersionsAndVotingInfo(t *testing.T) {
	api, _, _ := newTestAPI(t)

	v, err := api.Versions(context.Background())
	require.NoError(t, err)
	require.Equal(t, "1.0.0-test", v.PoolVersion)
	require.Equal(t, "/Particl:23.0.1/", v.NodeSubVersion)

	vi, err := api.VotingInfo(context.Background())
	require.NoError(t, err)
	require.True(t, vi.StakingEnabled)
	require.Equal(t, uint64(12345), vi.StakeWeight)
}
