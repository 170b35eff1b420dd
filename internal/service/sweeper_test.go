package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/devricklin/feishu-request-relay/internal/logging"
)

type countingSweepable struct {
	calls atomic.Int32
}

func (c *countingSweepable) Sweep() (int, int) {
	c.calls.Add(1)
	return 1, 0
}

func TestSweeper_SweepOnce(t *testing.T) {
	target := &countingSweepable{}
	s := NewSweeper(target, 0, logging.Discard())

	if s.interval != time.Minute {
		t.Errorf("Expected default interval of one minute, got %v", s.interval)
	}
	s.SweepOnce()
	if target.calls.Load() != 1 {
		t.Errorf("Expected one sweep, got %d", target.calls.Load())
	}
}

func TestSweeper_StartStop(t *testing.T) {
	target := &countingSweepable{}
	s := NewSweeper(target, 5*time.Millisecond, logging.Discard())

	s.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for target.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()

	if target.calls.Load() == 0 {
		t.Fatal("Expected the loop to sweep at least once")
	}
	after := target.calls.Load()
	time.Sleep(20 * time.Millisecond)
	if target.calls.Load() != after {
		t.Error("Expected no sweeps after Stop")
	}
}
