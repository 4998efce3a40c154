package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PoscoMonitorAPI/internal/config"
	"PoscoMonitorAPI/internal/logger"
)

type SweepResult struct {
	LedgerExpired  int           `json:"ledger_expired"`
	LedgerEvicted  int           `json:"ledger_evicted"`
	HistoryRemoved int           `json:"history_removed"`
	RawTrimmed     int           `json:"raw_trimmed"`
	TokensExpired  int           `json:"tokens_expired"`
	RanAt          time.Time     `json:"ran_at"`
	Duration       time.Duration `json:"duration"`
}

func (r SweepResult) Total() int {
	return r.LedgerExpired + r.LedgerEvicted + r.HistoryRemoved + r.RawTrimmed + r.TokensExpired
}

// Sweeper garbage-collects the in-memory stores on a fixed interval.
type Sweeper struct {
	engine *Engine
	tokens *TokenRegistry
	ledger *Ledger
	cfg    config.AlertingConfig
	now    Clock
	log    *logger.Logger

	mu   sync.Mutex
	last *SweepResult

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSweeper(engine *Engine, tokens *TokenRegistry, ledger *Ledger, cfg config.AlertingConfig, log *logger.Logger, now Clock) *Sweeper {
	if now == nil {
		now = time.Now
	}
	return &Sweeper{
		engine: engine,
		tokens: tokens,
		ledger: ledger,
		cfg:    cfg,
		now:    now,
		log:    log.Named("cleanup"),
	}
}

// Sweep runs one pass. A ledger backend error is returned, but the in-memory
// stores are still swept.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	start := time.Now()
	res := SweepResult{RanAt: now}

	expired, evicted, ledgerErr := s.ledger.Sweep(ctx, now, s.cfg.Retention, s.cfg.MaxLedgerEntries)
	res.LedgerExpired = expired
	res.LedgerEvicted = evicted

	res.HistoryRemoved, res.RawTrimmed = s.engine.Sweep(now)
	res.TokensExpired = s.tokens.Sweep(now)
	res.Duration = time.Since(start)

	s.mu.Lock()
	s.last = &res
	s.mu.Unlock()

	if ledgerErr != nil {
		return res, fmt.Errorf("ledger sweep failed: %w", ledgerErr)
	}
	return res, nil
}

// LastResult returns the most recent sweep, if any.
func (s *Sweeper) LastResult() (SweepResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return SweepResult{}, false
	}
	return *s.last, true
}

func (s *Sweeper) Start(parent context.Context) {
	s.ctx, s.cancel = context.WithCancel(parent)

	s.wg.Add(1)
	go s.loop()

	s.log.Info("memory cleanup scheduled every %s (retention %s)", s.cfg.CleanupInterval, s.cfg.Retention)
}

func (s *Sweeper) Shutdown() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.log.Info("memory cleanup stopped")
}

func (s *Sweeper) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

// runOnce never lets a failed pass stop the schedule.
func (s *Sweeper) runOnce() {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("cleanup panicked: %v", r)
		}
	}()

	res, err := s.Sweep(s.ctx, s.now())
	if err != nil {
		s.log.Error("cleanup pass failed: %v", err)
	}
	if res.Total() > 0 {
		s.log.Info("cleanup removed ledger=%d+%d history=%d raw=%d tokens=%d in %s",
			res.LedgerExpired, res.LedgerEvicted, res.HistoryRemoved, res.RawTrimmed, res.TokensExpired, res.Duration)
	}
}
