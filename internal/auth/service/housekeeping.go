package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/twostep/internal/auth/store"
	"github.com/aussiebroadwan/twostep/pkg/clock"
)

// DefaultReapInterval is how often expired records are swept when no
// interval is configured.
const DefaultReapInterval = time.Minute

// HousekeepingService periodically deletes expired pending verifications
// and signing keys. Expired records are already unusable; this only
// bounds storage.
type HousekeepingService struct {
	Nonces   *NonceStore
	Store    store.Store
	Clock    clock.Clock
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a reaper over nonces and st. A zero
// interval means DefaultReapInterval.
func NewHousekeepingService(nonces *NonceStore, st store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = DefaultReapInterval
	}

	return &HousekeepingService{
		Nonces:   nonces,
		Store:    st,
		Clock:    clock.Real(),
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the sweep loop in the background until Stop.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop ends the loop and waits for an in-progress sweep.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Sweep(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Sweep deletes expired records once. A failure in one table does not
// stop the other.
func (s *HousekeepingService) Sweep(ctx context.Context) {
	var verifications, keys int64

	n, err := s.Nonces.Reap(ctx)
	if err != nil {
		s.Logger.Error("failed to delete expired verifications", "error", err)
	} else {
		verifications = n
	}

	n, err = s.Store.SigningKeys().DeleteExpiredSigningKeys(ctx, s.Clock.Now())
	if err != nil {
		s.Logger.Error("failed to delete expired signing keys", "error", err)
	} else {
		keys = n
	}

	if verifications > 0 || keys > 0 {
		s.Logger.Info("housekeeping sweep completed",
			"verifications", verifications,
			"signing_keys", keys,
		)
	} else {
		s.Logger.Debug("housekeeping sweep completed")
	}
}
