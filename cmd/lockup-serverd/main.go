// Command lockup-serverd runs the token-lockup and vesting engine as an
// HTTP daemon. Wiring sequence grounded on the teacher's
// cmd/lumera-supply/main.go: flags/env, config load, collaborator
// construction, computation-layer construction, server construction.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/lumera-labs/lockup-vesting/internal/config"
	"github.com/lumera-labs/lockup-vesting/internal/engine"
	"github.com/lumera-labs/lockup-vesting/internal/httpapi"
	"github.com/lumera-labs/lockup-vesting/internal/store"
	"github.com/lumera-labs/lockup-vesting/pkg/rpcclient"
)

var (
	GitTag    = "dev"
	GitCommit = "unknown"
)

func main() {
	var (
		addr       = flag.String("addr", getEnv("LOCKUP_HTTP_ADDR", ":8080"), "HTTP listen address")
		configPath = flag.String("config", getEnv("LOCKUP_CONFIG_PATH", "config.json"), "Path to bootstrap config JSON file")
		storePath  = flag.String("store", getEnv("LOCKUP_STORE_PATH", "lockup.db"), "Path to pebble store directory")
		ledgerURL  = flag.String("ledger", getEnv("LOCKUP_LEDGER_URL", "http://localhost:9090"), "Token ledger service base URL")
		exchURL    = flag.String("exchange", getEnv("LOCKUP_EXCHANGE_URL", "http://localhost:9091"), "Exchange service base URL")
		ratePerMin = flag.Int("rate-per-min", 600, "Per-client-IP request rate limit")
		burst      = flag.Int("burst", 120, "Per-client-IP burst allowance")
	)
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("zap init: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("config load warning, continuing without bootstrap config", zap.Error(err))
		cfg = &config.Config{}
	}
	if cfg.StorePath != "" {
		*storePath = cfg.StorePath
	}
	if cfg.HTTPAddr != "" {
		*addr = cfg.HTTPAddr
	}

	s, err := store.Open(*storePath)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer s.Close()

	ledgerClient := rpcclient.NewLedgerClient(*ledgerURL, &http.Client{Timeout: 5 * time.Second})
	exchangeClient := rpcclient.NewExchangeClient(*exchURL, &http.Client{Timeout: 5 * time.Second})

	contract, err := engine.New(s, ledgerClient, exchangeClient, logger)
	if err != nil {
		logger.Fatal("construct engine", zap.Error(err))
	}

	if cfg.TokenAccountID != "" {
		if err := contract.Bootstrap(cfg.TokenAccountID, cfg.InitialDepositWhitelist, cfg.PoolWhitelist()); err != nil {
			logger.Info("bootstrap skipped", zap.Error(err))
		}
	}

	rate := *ratePerMin
	if cfg.RatePerMin != 0 {
		rate = cfg.RatePerMin
	}
	burstN := *burst
	if cfg.Burst != 0 {
		burstN = cfg.Burst
	}

	srv := httpapi.New(httpapi.Config{
		Contract:   contract,
		RatePerMin: rate,
		Burst:      burstN,
		GitTag:     GitTag,
		GitCommit:  GitCommit,
		Log:        logger,
	})

	logger.Info("lockup-serverd listening", zap.String("addr", *addr), zap.String("ledger", *ledgerURL), zap.String("exchange", *exchURL))
	if err := http.ListenAndServe(*addr, srv.Mux()); err != nil {
		logger.Fatal("serve", zap.Error(err))
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
