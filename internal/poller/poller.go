package poller

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Poller runs one poll at a time on a single worker goroutine. Triggers come
// from a fixed-interval ticker and from RefreshNow; a trigger that arrives
// while a poll is running is dropped, the running poll's data is fresh
// enough.
type Poller struct {
	interval time.Duration
	poll     func() error
	clk      clock.Clock
	log      *zap.Logger

	trigger  chan struct{}
	done     chan struct{}
	inFlight atomic.Bool
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(interval time.Duration, poll func() error, clk clock.Clock, log *zap.Logger) *Poller {
	return &Poller{
		interval: interval,
		poll:     poll,
		clk:      clk,
		log:      log,
		trigger:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start launches the ticker and the worker.
func (p *Poller) Start() {
	p.wg.Add(2)
	go p.tick()
	go p.work()
}

func (p *Poller) tick() {
	defer p.wg.Done()
	ticker := p.clk.Ticker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.RefreshNow()
		case <-p.done:
			return
		}
	}
}

// RefreshNow requests a poll outside the schedule. Dropped when a poll is
// already queued or running. The in-flight claim is taken here, before the
// worker dequeues, so a duplicate cannot slip into the handoff window.
func (p *Poller) RefreshNow() {
	if !p.inFlight.CompareAndSwap(false, true) {
		return
	}
	select {
	case p.trigger <- struct{}{}:
	default:
		// the worker is gone and left the slot full
		p.inFlight.Store(false)
	}
}

func (p *Poller) work() {
	defer p.wg.Done()
	for {
		select {
		case <-p.trigger:
			p.runOne()
		case <-p.done:
			return
		}
	}
}

// runOne executes a claimed poll; the claim was taken in RefreshNow and is
// released here once the poll finishes.
func (p *Poller) runOne() {
	defer p.inFlight.Store(false)
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("poll panicked", zap.Any("panic", r))
		}
	}()
	if err := p.poll(); err != nil {
		p.log.Warn("poll failed", zap.Error(err))
	}
}

// Stop halts the ticker and worker and waits for an in-flight poll to
// finish. Idempotent.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
}
