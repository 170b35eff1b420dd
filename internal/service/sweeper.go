package service

import (
	"context"
	"sync"
	"time"

	"github.com/devricklin/feishu-request-relay/internal/logging"
)

// sweepable is implemented by RelayService
type sweepable interface {
	Sweep() (limiter, dedup int)
}

// Sweeper periodically purges idle rate limiter and dedup entries
type Sweeper struct {
	target   sweepable
	interval time.Duration
	log      logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a sweeper; interval <= 0 defaults to one minute
func NewSweeper(target sweepable, interval time.Duration, log logging.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		target:   target,
		interval: interval,
		log:      log,
	}
}

// Start starts the sweep loop
func (s *Sweeper) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.loop()

	s.log.WithField("interval", s.interval.String()).Info("Sweeper started")
}

// Stop stops the sweeper and waits for the loop to exit
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.log.Info("Sweeper stopped")
}

func (s *Sweeper) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}

// SweepOnce runs a single sweep
func (s *Sweeper) SweepOnce() {
	limiter, dedup := s.target.Sweep()
	if limiter > 0 || dedup > 0 {
		s.log.WithFields(logging.Fields{
			"rate_limiter": limiter,
			"dedup":        dedup,
		}).Debug("Swept idle sender state")
	}
}
