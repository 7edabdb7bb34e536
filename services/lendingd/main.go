package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"lendex/native/lending"
	"lendex/native/oracle"
	"lendex/observability/logging"
	"lendex/services/lendingd/config"
	"lendex/services/lendingd/server"
	"lendex/storage/ledgerstore"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/lendingd/config.yaml", "path to lendingd config")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("LENDEX_ENV"))
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logging.Setup("lendingd", env, logging.Options{}).Error("load config", "err", err)
		os.Exit(1)
	}
	if env == "" {
		env = cfg.Environment
	}
	logger := logging.Setup("lendingd", env, logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	store, err := ledgerstore.Open(cfg.DatabasePath, nil)
	if err != nil {
		logger.Error("open ledger store", "path", cfg.DatabasePath, "err", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	now := time.Now().Unix()
	quotes := make([]oracle.Quote, 0, len(cfg.Oracle.Quotes))
	for _, q := range cfg.Oracle.Quotes {
		quotes = append(quotes, oracle.Quote{
			Symbol:      q.Symbol,
			Price:       q.Price,
			Exponent:    q.Exponent,
			PublishTime: now,
		})
	}
	source := oracle.NewStaticSource(quotes...)
	gateway, err := oracle.NewGateway(source, store, cfg.Oracle.MaxAgeSeconds)
	if err != nil {
		logger.Error("configure oracle gateway", "err", err)
		os.Exit(1)
	}

	engine := lending.NewEngine(store, gateway)
	for _, q := range cfg.Oracle.Quotes {
		if err := engine.StoreSymbolFeedID(q.Symbol, q.FeedID); err != nil {
			logger.Error("register feed", "symbol", q.Symbol, "err", err)
			os.Exit(1)
		}
	}
	if err := bootstrapBanks(engine, cfg.Banks, logger); err != nil {
		logger.Error("bootstrap banks", "err", err)
		os.Exit(1)
	}

	var limiter *server.RateLimiter
	if cfg.RateLimit.RequestsPerMinute > 0 {
		limiter = server.NewRateLimiter(server.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		}, logger)
	}
	srv, err := server.New(engine, logger, limiter)
	if err != nil {
		logger.Error("construct server", "err", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("lendingd listening", "addr", cfg.ListenAddress)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown", "err", err)
		}
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve", "err", err)
			os.Exit(1)
		}
	}
}

// bootstrapBanks creates any configured banks that do not exist yet.
// Existing banks are left untouched so restarts never reset pool state.
func bootstrapBanks(engine *lending.Engine, banks []config.BankConfig, logger *slog.Logger) error {
	for _, b := range banks {
		_, err := engine.InitBank(lending.InitBankParams{
			Authority:              b.Authority,
			MintAddress:            b.MintAddress,
			Symbol:                 b.Symbol,
			Name:                   b.Name,
			Description:            b.Description,
			DepositInterestRate:    b.DepositInterestRate,
			BorrowInterestRate:     b.BorrowInterestRate,
			InterestAccrualPeriod:  b.InterestAccrualPeriod,
			LiquidationThreshold:   b.LiquidationThreshold,
			LiquidationBonus:       b.LiquidationBonus,
			LiquidationCloseFactor: b.LiquidationCloseFactor,
			MaxLTV:                 b.MaxLTV,
			DepositFee:             b.DepositFee,
			WithdrawalFee:          b.WithdrawalFee,
			MinDeposit:             b.MinDeposit,
		})
		switch {
		case err == nil:
			logger.Info("bank bootstrapped", "mint", b.MintAddress, "symbol", b.Symbol)
		case errors.Is(err, lending.ErrDuplicateBank):
			continue
		default:
			return err
		}
	}
	return nil
}
