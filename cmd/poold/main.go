// Command poold runs the cold-stake pool engine: it follows the
// node's chain via ZMQ hashblock notifications, credits and
// reconciles pool wins and payouts block by block, dispatches payout
// and owner-withdrawal batches on their configured cadence, and serves
// the ReadAPI over HTTP. Flags and configuration loading follow the
// teacher's own cmd/*/main.go shape: a single flag for the config
// file, stdlib log for every startup/shutdown message, and an exit
// code distinguishing a clean shutdown from a startup failure.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/tecnovert/particl-coldstakepool/internal/config"
	"github.com/tecnovert/particl-coldstakepool/internal/engine"
	"github.com/tecnovert/particl-coldstakepool/internal/ingest"
	"github.com/tecnovert/particl-coldstakepool/internal/ledger"
	"github.com/tecnovert/particl-coldstakepool/internal/metrics"
	"github.com/tecnovert/particl-coldstakepool/internal/params"
	"github.com/tecnovert/particl-coldstakepool/internal/readapi"
	"github.com/tecnovert/particl-coldstakepool/internal/rpc"
	"github.com/tecnovert/particl-coldstakepool/internal/sanity"
	"github.com/tecnovert/particl-coldstakepool/internal/store"
)

// version is stamped at release build time via -ldflags; "dev" is what
// any build that does not set it reports.
var version = "dev"

// Hardcoded per the node's own wallet-naming convention: the stake
// wallet holds the cold-stake outputs and reports stakinginfo, the
// reward wallet receives the pool's share and dispatches payouts.
const (
	stakeWalletName  = "pool_stake"
	rewardWalletName = "pool_reward"
)

func main() {
	os.Exit(run())
}

// run contains the full startup/serve/shutdown sequence, returning the
// process exit code: 0 on a clean shutdown, 1 if configuration/storage
// failed to load or the node could not be reached at start, per §5.
func run() int {
	configFile := flag.String("config", "", "path to the pool's YAML configuration file")
	flag.Parse()

	logger := log.New(os.Stdout, "", log.LstdFlags)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Printf("configuration error: %v", err)
		return 1
	}

	sched := buildParamSchedule(cfg)

	s, err := store.Open(cfg.DataDir + "/stakepooldb")
	if err != nil {
		logger.Printf("store open error: %v", err)
		return 1
	}
	defer s.Close()

	user, pass, err := resolveRPCAuth(cfg)
	if err != nil {
		logger.Printf("rpc auth error: %v", err)
		return 1
	}
	client := rpc.NewClient(cfg.RpcHost, cfg.RpcPort, user, pass, 60*time.Second)

	eng, err := ledger.New(client, sched, "rtpw", cfg.PoolAddress, cfg.RewardAddress, nil, logger)
	if err != nil {
		logger.Printf("ledger engine error: %v", err)
		return 1
	}

	registry := prometheus.NewRegistry()
	poolMetrics := metrics.NewPoolMetrics("coldstakepool", registry)

	checker := &sanity.Checker{
		RPC:               client,
		StakeWallet:       stakeWalletName,
		RewardWallet:      rewardWalletName,
		RewardAddr:        cfg.RewardAddress,
		SmsgFeeRateTarget: sched.Live().SmsgFeeRateTarget,
		Log:               logger,
	}

	ctx := context.Background()
	opts, err := checker.WaitForDaemon(ctx)
	if err != nil {
		logger.Printf("%v", err)
		return 1
	}
	destAddrs := destinationAddresses(cfg)
	if err := checker.Run(ctx, opts, destAddrs); err != nil {
		logger.Printf("sanity check error: %v", err)
		return 1
	}

	zmq, err := ingest.Dial(cfg.ZmqHost, cfg.ZmqPort)
	if err != nil {
		logger.Printf("zmq dial error: %v", err)
		return 1
	}
	defer zmq.Close()

	sch := &engine.Scheduler{
		Store:               s,
		Engine:              eng,
		Metrics:             poolMetrics,
		Sanity:              checker,
		Mode:                cfg.Mode,
		RewardWallet:        rewardWalletName,
		BlockBuffer:         cfg.BlockBuffer,
		MaxOutputsPerTx:     cfg.MaxOutputsPerTx,
		Withdrawal:          buildWithdrawalConfig(cfg),
		WithdrawalDestAddrs: destAddrs,
		ZMQ:                 zmq,
		Log:                 logger,
	}
	if err := sch.Open(); err != nil {
		logger.Printf("scheduler open error: %v", err)
		return 1
	}

	api := &readapi.ReadAPI{
		Store:        s,
		Engine:       eng,
		Mode:         cfg.Mode,
		StakeWallet:  stakeWalletName,
		RewardWallet: rewardWalletName,
		Version:      version,
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	statusServer := readapi.NewServer(api, cfg)
	statusServer.Router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	addr := fmt.Sprintf("%s:%d", cfg.HtmlHost, cfg.HtmlPort)
	httpSrv := &http.Server{Addr: addr, Handler: statusServer.Router}
	go func() {
		logger.Printf("status server listening on %s", addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("status server error: %v", err)
		}
	}()

	lifecycle := &engine.Lifecycle{
		Scheduler:    sch,
		Log:          logger,
		PollInterval: time.Second,
	}
	if err := lifecycle.Start(ctx); err != nil {
		logger.Printf("lifecycle start error: %v", err)
		return 1
	}
	runErr := lifecycle.Run(context.Background())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)

	if runErr != nil {
		logger.Printf("lifecycle error: %v", runErr)
		return 1
	}
	logger.Println("shutdown complete")
	return 0
}

// buildParamSchedule converts the configured `parameters[]` array,
// field-for-field, into a *params.Schedule — config.Settings is kept
// free of an internal/params dependency, so this conversion happens at
// the wiring boundary in main rather than inside config.Load.
func buildParamSchedule(cfg *config.Settings) *params.Schedule {
	records := make([]params.Parameter, 0, len(cfg.Parameters))
	for _, p := range cfg.Parameters {
		records = append(records, params.Parameter{
			Height:                   p.Height,
			PoolFeePercent:           p.PoolFeePercent,
			StakeBonusPercent:        p.StakeBonusPercent,
			PayoutThreshold:          floatCoinToSatoshi(p.PayoutThreshold),
			MinBlocksBetweenPayments: p.MinBlocksBetweenPayments,
			MinOutputValue:           floatCoinToSatoshi(p.MinOutputValue),
			TxFeePerKb:               p.TxFeePerKb,
			SmsgFeeRateTarget:        p.SmsgFeeRateTarget,
		})
	}
	sched := params.NewSchedule(records)
	sched.ApplyThrough(cfg.StartHeight)
	return sched
}

// resolveRPCAuth splits a configured "user:pass" rpcauth string, or
// falls back to reading the node's auth cookie from rpccookiedir when
// rpcauth is unset, mirroring the original's fallback between a
// configured credential and the node-managed cookie file.
func resolveRPCAuth(cfg *config.Settings) (user, pass string, err error) {
	if cfg.RpcAuth != "" {
		parts := strings.SplitN(cfg.RpcAuth, ":", 2)
		if len(parts) != 2 {
			return "", "", fmt.Errorf("rpcauth must be \"user:pass\"")
		}
		return parts[0], parts[1], nil
	}
	return rpc.LoadAuthCookie(cfg.RpcCookieDir, 20, 500*time.Millisecond)
}

// destinationAddresses extracts the bare address list from the
// configured withdrawal destinations, for sanity.Checker.Run's
// validate/uniqueness pass.
func destinationAddresses(cfg *config.Settings) []string {
	resolved := cfg.PoolOwnerWithdrawal.ResolvedDestinations()
	addrs := make([]string, 0, len(resolved))
	for _, d := range resolved {
		addrs = append(addrs, d.Address)
	}
	return addrs
}

func buildWithdrawalConfig(cfg *config.Settings) ledger.WithdrawalConfig {
	resolved := cfg.PoolOwnerWithdrawal.ResolvedDestinations()
	dests := make([]ledger.WithdrawalDestination, 0, len(resolved))
	for _, d := range resolved {
		dests = append(dests, ledger.WithdrawalDestination{Address: d.Address, Weight: d.Weight})
	}
	return ledger.WithdrawalConfig{
		Destinations:                dests,
		Reserve:                     floatCoinToSatoshi(cfg.PoolOwnerWithdrawal.Reserve),
		Threshold:                   floatCoinToSatoshi(cfg.PoolOwnerWithdrawal.Threshold),
		MinBlocksBetweenWithdrawals: cfg.PoolOwnerWithdrawal.Frequency,
		BlockBuffer:                 cfg.BlockBuffer,
	}
}

// floatCoinToSatoshi floors a configured decimal coin amount (YAML
// parses these as float64) to integer satoshi via the same
// decimal-based floor conversion the RPC layer uses for node-reported
// amounts, rather than a raw float64 multiply, which can round the
// wrong way for values like 0.1.
func floatCoinToSatoshi(f float64) uint64 {
	sat := rpc.ToSatoshi(decimal.NewFromFloat(f))
	if sat < 0 {
		return 0
	}
	return uint64(sat)
}
