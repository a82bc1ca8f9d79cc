package sanity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tecnovert/particl-coldstakepool/internal/rpc"
)

type walletSettingsCall struct {
	wallet   string
	settings map[string]interface{}
}

// stubSanityNode answers walletsettings per-wallet from responses, and
// records every walletsettings call (including any pushed settings) in
// calls for assertions. validAddrs, if non-nil, restricts
// validateaddress to report isvalid only for listed addresses.
func stubSanityNode(t *testing.T, responses map[string]map[string]interface{}, calls *[]walletSettingsCall, validAddrs map[string]bool) *rpc.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wallet := ""
		if strings.HasPrefix(r.URL.Path, "/wallet/") {
			wallet = strings.TrimPrefix(r.URL.Path, "/wallet/")
		}
		var raw map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		method, _ := raw["method"].(string)
		id := int64(raw["id"].(float64))
		params, _ := raw["params"].([]interface{})

		var result interface{}
		switch method {
		case "walletsettings":
			if len(params) > 1 {
				settings, _ := params[1].(map[string]interface{})
				*calls = append(*calls, walletSettingsCall{wallet: wallet, settings: settings})
				result = map[string]interface{}{"stakingoptions": settings}
			} else {
				result = responses[wallet]
			}
		case "validateaddress":
			addr, _ := params[0].(string)
			isValid := validAddrs == nil || validAddrs[addr]
			result = map[string]interface{}{"isvalid": isValid}
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

func TestRunPushesStakingOptionsOnMismatch(t *testing.T) {
	var calls []walletSettingsCall
	client := stubSanityNode(t, map[string]map[string]interface{}{
		"pool_reward": {"stakingoptions": map[string]interface{}{"enabled": false}},
	}, &calls, nil)

	c := &Checker{RPC: client, StakeWallet: "pool_stake", RewardWallet: "pool_reward", RewardAddr: "rWantedAddr"}
	opts := &stakingOptions{}
	opts.StakingOptions.RewardAddress = "rStaleAddr"

	err := c.Run(context.Background(), opts, nil)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	require.Equal(t, "pool_stake", calls[0].wallet)
	require.Equal(t, "rWantedAddr", calls[0].settings["rewardaddress"])
}

func TestRunNoPushWhenAddressMatches(t *testing.T) {
	var calls []walletSettingsCall
	client := stubSanityNode(t, map[string]map[string]interface{}{
		"pool_reward": {"stakingoptions": map[string]interface{}{"enabled": false}},
	}, &calls, nil)

	c := &Checker{RPC: client, StakeWallet: "pool_stake", RewardWallet: "pool_reward", RewardAddr: "rWantedAddr"}
	opts := &stakingOptions{}
	opts.StakingOptions.RewardAddress = "rWantedAddr"

	err := c.Run(context.Background(), opts, nil)
	require.NoError(t, err)
	require.Empty(t, calls)
}

func TestRunValidatesWithdrawalDestinations(t *testing.T) {
	client := stubSanityNode(t, map[string]map[string]interface{}{
		"pool_reward": {"stakingoptions": map[string]interface{}{"enabled": false}},
	}, &[]walletSettingsCall{}, map[string]bool{"rGood": true})

	c := &Checker{RPC: client, StakeWallet: "pool_stake", RewardWallet: "pool_reward", RewardAddr: "rWantedAddr"}
	opts := &stakingOptions{}
	opts.StakingOptions.RewardAddress = "rWantedAddr"

	require.NoError(t, c.Run(context.Background(), opts, []string{"rGood"}))
	require.Error(t, c.Run(context.Background(), opts, []string{"rBad"}))
	require.Error(t, c.Run(context.Background(), opts, []string{"rGood", "rGood"}))
}

func TestWaitForDaemonRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		var raw map[string]interface{}
		json.NewDecoder(r.Body).Decode(&raw)
		id := int64(raw["id"].(float64))
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		result, _ := json.Marshal(map[string]interface{}{
			"stakingoptions": map[string]interface{}{"rewardaddress": "rWantedAddr"},
		})
		body, _ := json.Marshal(struct {
			ID     int64           `json:"id"`
			Result json.RawMessage `json:"result"`
		}{ID: id, Result: result})
		w.Write(body)
	}))
	t.Cleanup(srv.Close)

	u, _ := url.Parse(srv.URL)
	port, _ := strconv.Atoi(u.Port())
	client := rpc.NewClient(u.Hostname(), port, "user", "pass", 5*time.Second)

	var slept []time.Duration
	c := &Checker{RPC: client, StakeWallet: "pool_stake", Sleep: func(d time.Duration) { slept = append(slept, d) }}

	opts, err := c.WaitForDaemon(context.Background())
	require.NoError(t, err)
	require.Equal(t, "rWantedAddr", opts.StakingOptions.RewardAddress)
	require.Len(t, slept, 2)
	require.Equal(t, 1*time.Second, slept[0])
	require.Equal(t, 2*time.Second, slept[1])
}

func TestWaitForDaemonFailsAfter20Attempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	u, _ := url.Parse(srv.URL)
	port, _ := strconv.Atoi(u.Port())
	client := rpc.NewClient(u.Hostname(), port, "user", "pass", 5*time.Second)

	var slept int
	c := &Checker{RPC: client, StakeWallet: "pool_stake", Sleep: func(d time.Duration) { slept++ }}

	opts, err := c.WaitForDaemon(context.Background())
	require.Error(t, err)
	require.Nil(t, opts)
	require.Equal(t, 20, slept)
}
