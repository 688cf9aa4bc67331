package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/relaygate/authbridge/internal/bridge/store"
)

// HousekeepingService sweeps expired transactions, codes, and tokens on a
// fixed interval. Reads already treat expired rows as absent; the sweep
// just keeps the tables from growing.
type HousekeepingService struct {
	store    store.Store
	logger   *slog.Logger
	interval time.Duration

	stop chan struct{}
	done sync.WaitGroup
	once sync.Once
}

// NewHousekeepingService wires a sweeper. A non-positive interval
// defaults to five minutes.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &HousekeepingService{
		store:    st,
		logger:   logger,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (s *HousekeepingService) Start(ctx context.Context) {
	s.done.Add(1)
	go func() {
		defer s.done.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
}

// Stop terminates the loop and waits for an in-flight sweep to finish.
func (s *HousekeepingService) Stop() {
	s.once.Do(func() { close(s.stop) })
	s.done.Wait()
}

// Sweep removes every expired row in one pass.
func (s *HousekeepingService) Sweep(ctx context.Context) {
	now := time.Now()

	transactions, err := s.store.Transactions().DeleteExpired(ctx, now)
	if err != nil {
		s.logger.WarnContext(ctx, "sweep transactions failed", slog.String("error", err.Error()))
	}
	codes, err := s.store.ClientCodes().DeleteExpired(ctx, now)
	if err != nil {
		s.logger.WarnContext(ctx, "sweep client codes failed", slog.String("error", err.Error()))
	}
	tokens, err := s.store.Tokens().DeleteExpired(ctx, now)
	if err != nil {
		s.logger.WarnContext(ctx, "sweep tokens failed", slog.String("error", err.Error()))
	}

	if transactions+codes+tokens > 0 {
		s.logger.InfoContext(ctx, "housekeeping sweep",
			slog.Int64("transactions", transactions),
			slog.Int64("client_codes", codes),
			slog.Int64("tokens", tokens),
		)
	}
}
