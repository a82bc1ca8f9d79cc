package rpc

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// satoshiPerCoin mirrors codec.COIN without importing the codec
// package, keeping rpc free of a dependency on the store/codec layer.
var satoshiPerCoin = decimal.NewFromInt(100_000_000)

// toSatoshi floors a decimal coin amount to an integer satoshi count;
// every Satoshi method of the typed results below converts through it.
func toSatoshi(d decimal.Decimal) int64 {
	return d.Mul(satoshiPerCoin).Floor().IntPart()
}

// ToSatoshi exports the same floor conversion for callers outside this
// package that hold a decimal.Decimal value read from a raw transaction
// (e.g. a vin's echoed prevout) rather than through a typed result.
func ToSatoshi(d decimal.Decimal) int64 {
	return toSatoshi(d)
}

// BlockChainInfo is the subset of getblockchaininfo consulted by the
// Scheduler to learn the node's current tip.
type BlockChainInfo struct {
	Blocks int64  `json:"blocks"`
	Chain  string `json:"chain"`
}

func (c *Client) GetBlockChainInfo(ctx context.Context) (*BlockChainInfo, error) {
	var out BlockChainInfo
	if err := c.callTo(ctx, "getblockchaininfo", []interface{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// KernelScript names the staking output that produced the block's proof.
type KernelScript struct {
	SpendAddr string `json:"spendaddr"`
}

// BlockRewardOutput is one output of the coinstake that produced a block.
type BlockRewardOutput struct {
	Address string          `json:"address"`
	Value   decimal.Decimal `json:"value"`
}

// Satoshi returns Value in integer satoshi, floored.
func (o *BlockRewardOutput) Satoshi() int64 {
	return toSatoshi(o.Value)
}

// BlockReward describes the node's view of a coinstake at a height, the
// Ledger's starting point for crediting a pool win (the eligible pooled
// outputs come from listcoldstakeunspent).
type BlockReward struct {
	BlockHash    string              `json:"blockhash"`
	BlockReward  decimal.Decimal     `json:"blockreward"`
	BlockTime    int64               `json:"blocktime"`
	CoinstakeTxn string              `json:"coinstake_txid"`
	KernelScript KernelScript        `json:"kernelscript"`
	Outputs      []BlockRewardOutput `json:"outputs"`
}

// Satoshi returns BlockReward in integer satoshi, floored.
func (b *BlockReward) Satoshi() int64 {
	return toSatoshi(b.BlockReward)
}

func (c *Client) GetBlockReward(ctx context.Context, height int32) (*BlockReward, error) {
	var out BlockReward
	if err := c.callTo(ctx, "getblockreward", []interface{}{height}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type BlockHeader struct {
	Hash   string `json:"hash"`
	Height int32  `json:"height"`
	Time   int64  `json:"time"`
}

func (c *Client) GetBlockHeader(ctx context.Context, hash string) (*BlockHeader, error) {
	var out BlockHeader
	if err := c.callTo(ctx, "getblockheader", []interface{}{hash}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetBlockHash(ctx context.Context, height int32) (string, error) {
	var out string
	if err := c.callTo(ctx, "getblockhash", []interface{}{height}, &out); err != nil {
		return "", err
	}
	return out, nil
}

type NetworkInfo struct {
	Version         int64  `json:"version"`
	SubVersion      string `json:"subversion"`
	ProtocolVersion int64  `json:"protocolversion"`
}

func (c *Client) GetNetworkInfo(ctx context.Context) (*NetworkInfo, error) {
	var out NetworkInfo
	if err := c.callTo(ctx, "getnetworkinfo", []interface{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RawTxVin is one input of a raw transaction, with the prevout echoed
// back by verbose=true so fee detection does not need a second RPC.
type RawTxVin struct {
	TxID    string `json:"txid"`
	Vout    int    `json:"vout"`
	Prevout *struct {
		Value decimal.Decimal `json:"value"`
		Type  string          `json:"type"`
	} `json:"prevout"`
}

// RawTxVout is one output of a raw transaction.
type RawTxVout struct {
	N         int             `json:"n"`
	Value     decimal.Decimal `json:"value"`
	Type      string          `json:"type"` // "standard", "blind", "anon", "data"
	CTFee     decimal.Decimal `json:"ct_fee"`
	Addresses []string        `json:"addresses"`
}

// Satoshi returns Value in integer satoshi, floored.
func (o *RawTxVout) Satoshi() int64 {
	return toSatoshi(o.Value)
}

// FeeSatoshi returns CTFee in integer satoshi, floored.
func (o *RawTxVout) FeeSatoshi() int64 {
	return toSatoshi(o.CTFee)
}

type RawTransaction struct {
	TxID          string      `json:"txid"`
	Confirmations int         `json:"confirmations"`
	Vin           []RawTxVin  `json:"vin"`
	Vout          []RawTxVout `json:"vout"`
}

func (c *Client) GetRawTransaction(ctx context.Context, txid string, verbose bool) (*RawTransaction, error) {
	var out RawTransaction
	if err := c.callTo(ctx, "getrawtransaction", []interface{}{txid, verbose}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type AddressDelta struct {
	Address  string `json:"address"`
	TxID     string `json:"txid"`
	Height   int32  `json:"height"`
	Satoshis int64  `json:"satoshis"`
}

type AddressDeltasRequest struct {
	Addresses []string `json:"addresses"`
	Start     int32    `json:"start"`
	End       int32    `json:"end"`
}

func (c *Client) GetAddressDeltas(ctx context.Context, req AddressDeltasRequest) ([]AddressDelta, error) {
	var out []AddressDelta
	if err := c.callTo(ctx, "getaddressdeltas", []interface{}{req}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ColdStakeUnspent is one pooled output eligible to share a win's reward.
type ColdStakeUnspent struct {
	TxID          string          `json:"txid"`
	Vout          int             `json:"vout"`
	Value         decimal.Decimal `json:"amount"`
	SpendAddr     string          `json:"address_spend"`
	Confirmations int             `json:"confirmations"`
}

// Satoshi returns Value in integer satoshi, floored.
func (u *ColdStakeUnspent) Satoshi() int64 {
	return toSatoshi(u.Value)
}

type ListColdStakeUnspentOpts struct {
	MatureOnly bool `json:"mature_only"`
	AllStaked  bool `json:"all_staked"`
}

func (c *Client) ListColdStakeUnspent(ctx context.Context, poolAddr string, height int32, opts ListColdStakeUnspentOpts) ([]ColdStakeUnspent, error) {
	var out []ColdStakeUnspent
	if err := c.callTo(ctx, "listcoldstakeunspent", []interface{}{poolAddr, height, opts}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type Unspent struct {
	TxID    string          `json:"txid"`
	Vout    int             `json:"vout"`
	Address string          `json:"address"`
	Amount  decimal.Decimal `json:"amount"`
}

func (c *Client) ListUnspent(ctx context.Context, minConf, maxConf int, addresses []string, includeUnsafe bool, includeImmature bool) ([]Unspent, error) {
	var out []Unspent
	opts := map[string]interface{}{"include_immature": includeImmature}
	if err := c.callTo(ctx, "listunspent", []interface{}{minConf, maxConf, addresses, includeUnsafe, opts}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type ValidateAddressResult struct {
	IsValid bool `json:"isvalid"`
}

func (c *Client) ValidateAddress(ctx context.Context, addr string) (*ValidateAddressResult, error) {
	var out ValidateAddressResult
	if err := c.callTo(ctx, "validateaddress", []interface{}{addr}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WalletSettings reads or, when settings is non-nil, writes the named
// wallet setting (e.g. "stakingoptions") on the given wallet.
func (c *Client) WalletSettings(ctx context.Context, wallet, name string, settings map[string]interface{}) (json.RawMessage, error) {
	params := []interface{}{name}
	if settings != nil {
		params = append(params, settings)
	}
	return c.Call(ctx, wallet, "walletsettings", params)
}

type WalletInfo struct {
	Balance               decimal.Decimal `json:"balance"`
	UnconfirmedBalance    decimal.Decimal `json:"unconfirmed_balance"`
	WatchOnlyTotalBalance decimal.Decimal `json:"watchonly_total_balance"`
	WatchOnlyStakedBalance decimal.Decimal `json:"watchonly_staked_balance"`
	RewardAddress         string          `json:"reward_address"`
}

func (c *Client) GetWalletInfo(ctx context.Context, wallet string) (*WalletInfo, error) {
	var out WalletInfo
	if err := c.callWalletTo(ctx, wallet, "getwalletinfo", []interface{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type StakingInfo struct {
	Enabled bool   `json:"enabled"`
	Staking bool   `json:"staking"`
	Weight  uint64 `json:"weight"`
}

func (c *Client) GetStakingInfo(ctx context.Context, wallet string) (*StakingInfo, error) {
	var out StakingInfo
	if err := c.callWalletTo(ctx, wallet, "getstakinginfo", []interface{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendTypeToOutput is one destination of a sendtypeto call.
type SendTypeToOutput struct {
	Address string `json:"address"`
	Amount  string `json:"amount"` // formatted via codec.FormatSatoshi
}

type SendTypeToOpts struct {
	RingSize      int     `json:"ringsize"`
	InputsPerSig  int     `json:"inputs_per_sig"`
	TestFee       bool    `json:"test_fee"`
	ShowFee       bool    `json:"show_fee"`
	FeeRate       float64 `json:"feerate,omitempty"`
	ChangeAddress string  `json:"changeaddress,omitempty"`
}

type SendTypeToResult struct {
	TxID string          `json:"txid"`
	Fee  decimal.Decimal `json:"fee"`
}

// SendTypeTo dispatches a part->part send against the given wallet and
// returns the resulting txid and fee in satoshi.
func (c *Client) SendTypeTo(ctx context.Context, wallet string, outputs []SendTypeToOutput, opts SendTypeToOpts) (txid string, feeSat int64, err error) {
	opts.ShowFee = true
	params := []interface{}{"part", "part", outputs, "", "", opts.RingSize, opts.InputsPerSig, opts.TestFee, opts}
	var out SendTypeToResult
	if err := c.callWalletTo(ctx, wallet, "sendtypeto", params, &out); err != nil {
		return "", 0, err
	}
	return out.TxID, toSatoshi(out.Fee), nil
}
