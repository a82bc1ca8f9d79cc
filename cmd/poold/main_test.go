package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tecnovert/particl-coldstakepool/internal/config"
)

func TestFloatCoinToSatoshiFloors(t *testing.T) {
	require.Equal(t, uint64(10_000_000), floatCoinToSatoshi(0.1))
	require.Equal(t, uint64(0), floatCoinToSatoshi(0))
	require.Equal(t, uint64(0), floatCoinToSatoshi(-5))
}

func TestBuildParamScheduleConvertsEveryField(t *testing.T) {
	txFee := 0.0002
	cfg := &config.Settings{
		StartHeight: 100,
		Parameters: []config.ParameterSettings{
			{Height: 0, PoolFeePercent: 3, StakeBonusPercent: 1, PayoutThreshold: 1.0, MinBlocksBetweenPayments: 500, MinOutputValue: 0.01, TxFeePerKb: &txFee},
			{Height: 200, PoolFeePercent: 4, PayoutThreshold: 2.0, MinBlocksBetweenPayments: 1000, MinOutputValue: 0.02},
		},
	}

	sched := buildParamSchedule(cfg)
	live := sched.Live()
	require.Equal(t, 3.0, live.PoolFeePercent)
	require.Equal(t, uint64(100_000_000), live.PayoutThreshold)
	require.Equal(t, int32(500), live.MinBlocksBetweenPayments)
	require.NotNil(t, live.TxFeePerKb)
	require.Equal(t, txFee, *live.TxFeePerKb)

	sched.ApplyThrough(200)
	live = sched.Live()
	require.Equal(t, 4.0, live.PoolFeePercent)
	require.Equal(t, uint64(200_000_000), live.PayoutThreshold)
}

func TestResolveRPCAuthSplitsUserPass(t *testing.T) {
	user, pass, err := resolveRPCAuth(&config.Settings{RpcAuth: "alice:s3cret"})
	require.NoError(t, err)
	require.Equal(t, "alice", user)
	require.Equal(t, "s3cret", pass)
}

func TestResolveRPCAuthRejectsMalformedAuth(t *testing.T) {
	_, _, err := resolveRPCAuth(&config.Settings{RpcAuth: "no-colon-here"})
	require.Error(t, err)
}

func TestResolveRPCAuthFallsBackToCookieFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".cookie"), []byte("bob:hunter2"), 0o600))

	user, pass, err := resolveRPCAuth(&config.Settings{RpcCookieDir: dir})
	require.NoError(t, err)
	require.Equal(t, "bob", user)
	require.Equal(t, "hunter2", pass)
}

func TestDestinationAddressesAndWithdrawalConfigFromSingleAddress(t *testing.T) {
	cfg := &config.Settings{
		PoolOwnerWithdrawal: config.PoolOwnerWithdrawalSettings{
			Address:   "RSomeOwnerAddress",
			Reserve:   10,
			Threshold: 1,
			Frequency: 2000,
		},
		BlockBuffer: 5,
	}

	addrs := destinationAddresses(cfg)
	require.Equal(t, []string{"RSomeOwnerAddress"}, addrs)

	wc := buildWithdrawalConfig(cfg)
	require.True(t, wc.HaveWithdrawalInfo())
	require.Equal(t, uint64(1_000_000_000), wc.Reserve)
	require.Equal(t, uint64(100_000_000), wc.Threshold)
	require.Equal(t, int32(2000), wc.MinBlocksBetweenWithdrawals)
	require.Equal(t, int32(5), wc.BlockBuffer)
	require.Len(t, wc.Destinations, 1)
	require.Equal(t, uint64(1), wc.Destinations[0].Weight)
}

func TestDestinationAddressesFromWeightedDestinations(t *testing.T) {
	cfg := &config.Settings{
		PoolOwnerWithdrawal: config.PoolOwnerWithdrawalSettings{
			Destinations: []config.WithdrawalDestinationSettings{
				{Address: "addrA", Weight: 2},
				{Address: "addrB", Weight: 1},
			},
		},
	}

	addrs := destinationAddresses(cfg)
	require.Equal(t, []string{"addrA", "addrB"}, addrs)

	wc := buildWithdrawalConfig(cfg)
	require.True(t, wc.HaveWithdrawalInfo())
	require.Len(t, wc.Destinations, 2)
}

func TestBuildWithdrawalConfigNotConfigured(t *testing.T) {
	wc := buildWithdrawalConfig(&config.Settings{})
	require.False(t, wc.HaveWithdrawalInfo())
}
