package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lendex/native/lending"
	"lendex/observability/logging"
	"lendex/observability/metrics"
)

const maxRequestBytes = 1 << 20 // 1 MiB

// Server exposes the ledger operations over HTTP.
type Server struct {
	engine  *lending.Engine
	logger  *slog.Logger
	metrics *metrics.LendingMetrics
	limiter *RateLimiter
}

// New constructs the HTTP server around a wired engine.
func New(engine *lending.Engine, logger *slog.Logger, limiter *RateLimiter) (*Server, error) {
	if engine == nil {
		return nil, errors.New("engine required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:  engine,
		logger:  logger,
		metrics: metrics.Lending(),
		limiter: limiter,
	}, nil
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(requestID)

		r.Get("/banks", s.listBanks)
		r.Get("/banks/{mint}", s.getBank)
		r.Get("/users/{owner}/positions", s.listPositions)
		r.Get("/users/{owner}/health", s.getHealth)

		r.Group(func(r chi.Router) {
			if s.limiter != nil {
				r.Use(s.limiter.Middleware)
			}
			r.Post("/banks", s.createBank)
			r.Post("/banks/{mint}/accrue", s.accrueBank)
			r.Post("/users", s.createUser)
			r.Post("/feeds", s.registerFeed)
			r.Post("/deposit", s.deposit)
			r.Post("/withdraw", s.withdraw)
			r.Post("/borrow", s.borrow)
			r.Post("/repay", s.repay)
			r.Post("/liquidate", s.liquidate)
		})
	})
	return r
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(data) == 0 {
		return errors.New("request body is empty")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// observe records one completed operation in the metrics registry.
func (s *Server) observe(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		if code := lending.CodeOf(err); code != "" {
			outcome = code
		} else {
			outcome = "internal"
		}
	}
	s.metrics.ObserveOperation(operation, outcome, time.Since(start).Seconds())
}

func (s *Server) publishBank(bank *lending.Bank) {
	if bank == nil {
		return
	}
	s.metrics.SetBankTotals(bank.MintAddress, bank.TotalDeposited, bank.TotalBorrowed)
}

func (s *Server) createBank(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var params lending.InitBankParams
	if err := s.decode(w, r, &params); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	bank, err := s.engine.InitBank(params)
	s.observe("init_bank", start, err)
	if err != nil {
		s.logger.Warn("init bank failed", "mint", params.MintAddress, "err", err)
		if lending.CodeOf(err) == "" {
			writeBadRequest(w, err.Error())
			return
		}
		writeLedgerError(w, err)
		return
	}
	s.logger.Info("bank created", "mint", bank.MintAddress, "symbol", bank.Symbol)
	s.publishBank(bank)
	writeJSON(w, http.StatusCreated, bank)
}

func (s *Server) listBanks(w http.ResponseWriter, _ *http.Request) {
	banks, err := s.engine.Banks()
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"banks": banks})
}

func (s *Server) getBank(w http.ResponseWriter, r *http.Request) {
	bank, err := s.engine.Bank(chi.URLParam(r, "mint"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bank)
}

func (s *Server) accrueBank(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	bank, err := s.engine.Accrue(chi.URLParam(r, "mint"))
	s.observe("accrue", start, err)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	s.metrics.ObserveAccrual()
	s.publishBank(bank)
	writeJSON(w, http.StatusOK, bank)
}

type userRequest struct {
	Owner       string `json:"owner"`
	MintAddress string `json:"mintAddress"`
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req userRequest
	if err := s.decode(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	position, err := s.engine.InitUser(req.Owner, req.MintAddress)
	s.observe("init_user", start, err)
	if err != nil {
		if lending.CodeOf(err) == "" {
			writeBadRequest(w, err.Error())
			return
		}
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, position)
}

func (s *Server) listPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.engine.Positions(chi.URLParam(r, "owner"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": positions})
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	health, err := s.engine.Health(chi.URLParam(r, "owner"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, health)
}

type feedRequest struct {
	Symbol string `json:"symbol"`
	FeedID string `json:"feedId"`
}

func (s *Server) registerFeed(w http.ResponseWriter, r *http.Request) {
	var req feedRequest
	if err := s.decode(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := s.engine.StoreSymbolFeedID(req.Symbol, req.FeedID); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	s.logger.Info("feed registered", "symbol", strings.ToUpper(strings.TrimSpace(req.Symbol)))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type amountRequest struct {
	Owner       string `json:"owner"`
	MintAddress string `json:"mintAddress"`
	Amount      uint64 `json:"amount"`
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req amountRequest
	if err := s.decode(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	res, err := s.engine.Deposit(req.Owner, req.MintAddress, req.Amount)
	s.observe("deposit", start, err)
	if err != nil {
		s.logger.Warn("deposit failed", "owner", logging.MaskOwner(req.Owner), "mint", req.MintAddress, "err", err)
		writeLedgerError(w, err)
		return
	}
	s.logger.Info("deposit", "owner", logging.MaskOwner(req.Owner), "mint", req.MintAddress, "amount", req.Amount, "shares", res.MintedShares)
	s.publishBank(res.Bank)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req amountRequest
	if err := s.decode(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	res, err := s.engine.Withdraw(req.Owner, req.MintAddress, req.Amount)
	s.observe("withdraw", start, err)
	if err != nil {
		s.logger.Warn("withdraw failed", "owner", logging.MaskOwner(req.Owner), "mint", req.MintAddress, "err", err)
		writeLedgerError(w, err)
		return
	}
	s.logger.Info("withdraw", "owner", logging.MaskOwner(req.Owner), "mint", req.MintAddress, "payout", res.Payout, "shares", res.BurnedShares)
	s.publishBank(res.Bank)
	writeJSON(w, http.StatusOK, res)
}

type borrowRequest struct {
	Owner          string `json:"owner"`
	BorrowMint     string `json:"borrowMint"`
	CollateralMint string `json:"collateralMint"`
	Amount         uint64 `json:"amount"`
}

func (s *Server) borrow(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req borrowRequest
	if err := s.decode(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	res, err := s.engine.Borrow(req.Owner, req.BorrowMint, req.CollateralMint, req.Amount)
	s.observe("borrow", start, err)
	if err != nil {
		s.logger.Warn("borrow failed", "owner", logging.MaskOwner(req.Owner), "mint", req.BorrowMint, "err", err)
		writeLedgerError(w, err)
		return
	}
	s.logger.Info("borrow", "owner", logging.MaskOwner(req.Owner), "mint", req.BorrowMint, "amount", req.Amount, "shares", res.MintedShares)
	s.publishBank(res.Bank)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) repay(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req borrowRequest
	if err := s.decode(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	res, err := s.engine.Repay(req.Owner, req.BorrowMint, req.CollateralMint, req.Amount)
	s.observe("repay", start, err)
	if err != nil {
		s.logger.Warn("repay failed", "owner", logging.MaskOwner(req.Owner), "mint", req.BorrowMint, "err", err)
		writeLedgerError(w, err)
		return
	}
	s.logger.Info("repay", "owner", logging.MaskOwner(req.Owner), "mint", req.BorrowMint, "repaid", res.Repaid)
	s.publishBank(res.Bank)
	writeJSON(w, http.StatusOK, res)
}

type liquidateRequest struct {
	Liquidator     string `json:"liquidator"`
	Borrower       string `json:"borrower"`
	BorrowMint     string `json:"borrowMint"`
	CollateralMint string `json:"collateralMint"`
	Amount         uint64 `json:"amount"`
}

func (s *Server) liquidate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req liquidateRequest
	if err := s.decode(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	res, err := s.engine.Liquidate(req.Liquidator, req.Borrower, req.BorrowMint, req.CollateralMint, req.Amount)
	s.observe("liquidate", start, err)
	if err != nil {
		s.logger.Warn("liquidate failed", "borrower", logging.MaskOwner(req.Borrower), "mint", req.BorrowMint, "err", err)
		if lending.CodeOf(err) == "" {
			writeBadRequest(w, err.Error())
			return
		}
		writeLedgerError(w, err)
		return
	}
	s.metrics.ObserveLiquidation()
	s.logger.Info("liquidate", "liquidator", logging.MaskOwner(req.Liquidator), "borrower", logging.MaskOwner(req.Borrower),
		"repaid", res.Repaid, "seized", res.SeizedCollateral)
	writeJSON(w, http.StatusOK, res)
}
