package usecase

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/devricklin/feishu-request-relay/internal/biz/domain"
	"github.com/devricklin/feishu-request-relay/internal/clock"
)

// FlushTrigger records why an album was flushed
type FlushTrigger string

const (
	FlushSingle   FlushTrigger = "single"
	FlushDebounce FlushTrigger = "debounce"
	FlushMaxParts FlushTrigger = "max_parts"
	FlushShutdown FlushTrigger = "shutdown"
)

// UnitHandler receives units flushed by the aggregator's timers
type UnitHandler func(unit *domain.LogicalUnit, trigger FlushTrigger)

// AlbumConfig configures the album aggregator
type AlbumConfig struct {
	Debounce time.Duration
	MaxParts int
}

// AlbumAggregator buffers multi-part submissions per (sender, grouping key)
// and emits them as one LogicalUnit once Debounce has elapsed since the
// first part. The deadline is never pushed back by later parts.
type AlbumAggregator struct {
	clock    clock.Clock
	debounce time.Duration
	maxParts int
	buffers  *shardedMap[*albumBuffer]
	seq      atomic.Uint64

	mu      sync.RWMutex
	onFlush UnitHandler

	// closed is set before Close drains the shards, and read under the
	// shard lock, so no buffer opens after its shard was drained
	closed atomic.Bool
}

type albumBuffer struct {
	parts []*domain.Submission
	timer clock.Timer
}

// NewAlbumAggregator creates an aggregator
func NewAlbumAggregator(clk clock.Clock, cfg AlbumConfig) *AlbumAggregator {
	if clk == nil {
		clk = clock.System()
	}
	if cfg.MaxParts <= 0 {
		cfg.MaxParts = 10
	}
	return &AlbumAggregator{
		clock:    clk,
		debounce: cfg.Debounce,
		maxParts: cfg.MaxParts,
		buffers:  newShardedMap[*albumBuffer](0),
	}
}

// OnFlush sets the handler for timer-driven and shutdown flushes
func (a *AlbumAggregator) OnFlush(h UnitHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onFlush = h
}

// Ingest adds a submission. It returns a unit that is ready now when the
// submission is ungrouped or fills the album to MaxParts; otherwise the
// part is buffered and the unit is later delivered to the OnFlush handler.
func (a *AlbumAggregator) Ingest(sub *domain.Submission) (*domain.LogicalUnit, FlushTrigger, bool) {
	sub.Seq = a.seq.Add(1)
	single := &domain.LogicalUnit{Parts: []*domain.Submission{sub}}

	if !sub.IsGrouped() || a.debounce <= 0 {
		return single, FlushSingle, true
	}

	key := albumKey(sub.SenderID, sub.GroupingKey)
	var full []*domain.Submission
	closed := false

	a.buffers.with(key, func(items map[string]*albumBuffer) {
		if a.closed.Load() {
			closed = true
			return
		}
		buf, ok := items[key]
		if !ok {
			buf = &albumBuffer{}
			items[key] = buf
			buf.timer = a.clock.AfterFunc(a.debounce, func() { a.fire(key, buf) })
		}
		buf.parts = append(buf.parts, sub)

		if len(buf.parts) >= a.maxParts {
			delete(items, key)
			buf.timer.Stop()
			full = buf.parts
			buf.parts = nil
		}
	})

	if closed {
		return single, FlushSingle, true
	}
	if full != nil {
		return newUnit(full), FlushMaxParts, true
	}
	return nil, "", false
}

// Pending returns how many parts are buffered for (sender, grouping key)
func (a *AlbumAggregator) Pending(senderID, groupingKey string) int {
	key := albumKey(senderID, groupingKey)
	n := 0
	a.buffers.with(key, func(items map[string]*albumBuffer) {
		if buf, ok := items[key]; ok {
			n = len(buf.parts)
		}
	})
	return n
}

// Close flushes every open album to the handler and makes later
// grouped submissions flush immediately.
func (a *AlbumAggregator) Close() {
	a.closed.Store(true)

	var flushed [][]*domain.Submission
	a.buffers.each(func(items map[string]*albumBuffer) {
		for key, buf := range items {
			delete(items, key)
			buf.timer.Stop()
			if len(buf.parts) > 0 {
				flushed = append(flushed, buf.parts)
				buf.parts = nil
			}
		}
	})

	for _, parts := range flushed {
		a.emit(newUnit(parts), FlushShutdown)
	}
}

// fire runs on the timer. A buffer that was already flushed or replaced
// is left alone.
func (a *AlbumAggregator) fire(key string, buf *albumBuffer) {
	var parts []*domain.Submission
	a.buffers.with(key, func(items map[string]*albumBuffer) {
		if items[key] != buf || len(buf.parts) == 0 {
			return
		}
		delete(items, key)
		parts = buf.parts
		buf.parts = nil
	})

	if parts == nil {
		return
	}
	a.emit(newUnit(parts), FlushDebounce)
}

func (a *AlbumAggregator) emit(unit *domain.LogicalUnit, trigger FlushTrigger) {
	a.mu.RLock()
	h := a.onFlush
	a.mu.RUnlock()
	if h != nil {
		h(unit, trigger)
	}
}

// newUnit orders parts by receive time, then by arrival sequence
func newUnit(parts []*domain.Submission) *domain.LogicalUnit {
	sort.SliceStable(parts, func(i, j int) bool {
		if !parts[i].ReceivedAt.Equal(parts[j].ReceivedAt) {
			return parts[i].ReceivedAt.Before(parts[j].ReceivedAt)
		}
		return parts[i].Seq < parts[j].Seq
	})
	return &domain.LogicalUnit{Parts: parts}
}

func albumKey(senderID, groupingKey string) string {
	return senderID + "\x00" + groupingKey
}
