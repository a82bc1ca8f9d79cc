package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	c := NewClient("", 0, "user", "pass", time.Second)
	c.baseURL = srv.URL
	return c, srv.Close
}

func TestCallReturnsNodeResult(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "user", user)
		assert.Equal(t, "pass", pass)
		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "getblockchaininfo", req.Method)
		w.Write([]byte(`{"id":1,"result":{"blocks":42,"chain":"mainnet"},"error":null}`))
	})
	defer closeFn()

	info, err := c.GetBlockChainInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), info.Blocks)
	assert.Equal(t, "mainnet", info.Chain)
}

func TestCallSurfacesNodeError(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":1,"result":null,"error":{"code":-5,"message":"bad address"}}`))
	})
	defer closeFn()

	_, err := c.ValidateAddress(context.Background(), "bogus")
	require.Error(t, err)
	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, ErrNode, rpcErr.Kind)
	assert.Equal(t, "validateaddress", rpcErr.Method)
}

func TestCallWalletRouting(t *testing.T) {
	var gotPath string
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"id":1,"result":{},"error":null}`))
	})
	defer closeFn()

	_, err := c.GetWalletInfo(context.Background(), "pool_reward")
	require.NoError(t, err)
	assert.Equal(t, "/wallet/pool_reward", gotPath)
}

func TestCallConnectFailureClassified(t *testing.T) {
	c := NewClient("127.0.0.1", 1, "u", "p", 50*time.Millisecond)
	c.baseURL = "http://127.0.0.1:1"
	_, err := c.GetBlockChainInfo(context.Background())
	require.Error(t, err)
	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, ErrConnect, rpcErr.Kind)
}

func TestSendTypeToFloorsFeeToSatoshi(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":1,"result":{"txid":"abc","fee":0.00012345},"error":null}`))
	})
	defer closeFn()

	txid, fee, err := c.SendTypeTo(context.Background(), "pool_reward", []SendTypeToOutput{{Address: "a", Amount: "1.0"}}, SendTypeToOpts{RingSize: 4, InputsPerSig: 64})
	require.NoError(t, err)
	assert.Equal(t, "abc", txid)
	assert.Equal(t, int64(12345), fee)
}
