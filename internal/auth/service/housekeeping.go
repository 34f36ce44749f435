package service

import (
	"context"
	"log/slog"
	"time"
)

// HousekeepingService periodically sweeps expired OTP challenges, stale
// request-log rows and abandoned pending 2FA logins so the tables do not
// grow without bound.
type HousekeepingService struct {
	OTP      *OTPEngine
	TwoFA    *TwoFAService
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates the sweeper. A non-positive interval
// defaults to 15 minutes.
func NewHousekeepingService(otp *OTPEngine, twofa *TwoFAService, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &HousekeepingService{
		OTP:      otp,
		TwoFA:    twofa,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the background worker; call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping started", "interval", s.Interval)
}

// Stop blocks until any in-progress sweep has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.cleanup()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup runs each sweep independently; one failing does not stop the
// others. Sweeps are idempotent and safe to run concurrently with live
// generation and validation.
func (s *HousekeepingService) cleanup() {
	ctx := context.Background()

	if err := s.OTP.CleanupExpired(ctx); err != nil {
		s.Logger.Error("failed to sweep expired otp challenges", "error", err)
	}
	if err := s.TwoFA.CleanupExpired(ctx); err != nil {
		s.Logger.Error("failed to sweep expired pending 2fa logins", "error", err)
	}
}
