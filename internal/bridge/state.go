package bridge

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/xivstats/collector/internal/core/event"
)

// State is the connection lifecycle of one bridge.
type State int

const (
	Idle State = iota
	Probing
	Connected
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Probing:
		return "probing"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ConnectorConfig tunes the probe schedule.
type ConnectorConfig struct {
	SubsystemName  string
	ProbeBase      time.Duration
	ProbeIncrement time.Duration
	MaxAttempts    int
}

// Connector drives one bridge from Idle to Connected through timed probes.
// A probe locates the subsystem by name and runs the connect callback, which
// shape-checks the exported capabilities. Any failure reschedules with a
// linearly growing delay; after MaxAttempts the connector parks in Failed
// with a single warning. The subsystem's own ready signal short-circuits the
// schedule at any point.
type Connector struct {
	cfg      ConnectorConfig
	resolver *Resolver
	clk      clock.Clock
	log      *zap.Logger

	// connect shape-checks the handle and swaps the live implementation in.
	// disconnect reverts dependents to stand-ins.
	connect    func(*Handle) error
	disconnect func()

	mu       sync.Mutex
	state    State
	attempts int
	timer    *clock.Timer
	unsub    func()
	stopped  bool
}

func NewConnector(cfg ConnectorConfig, resolver *Resolver, bus *event.Bus, clk clock.Clock, log *zap.Logger, connect func(*Handle) error, disconnect func()) *Connector {
	c := &Connector{
		cfg:        cfg,
		resolver:   resolver,
		clk:        clk,
		log:        log.With(zap.String("subsystem", cfg.SubsystemName)),
		connect:    connect,
		disconnect: disconnect,
	}
	c.unsub = event.Subscribe(bus, func(ev event.SubsystemReady) {
		if ev.Name == cfg.SubsystemName {
			c.NotifyReady()
		}
	})
	return c
}

// Start schedules the first probe immediately.
func (c *Connector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.state == Connected {
		return
	}
	c.scheduleLocked(0)
}

// NotifyReady short-circuits the backoff and probes now. A no-op while
// already connected, while a probe is in flight, or after Stop.
func (c *Connector) NotifyReady() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.state == Connected || c.state == Probing {
		return
	}
	// A parked connector comes back when the subsystem announces itself.
	if c.state == Failed {
		c.state = Idle
		c.attempts = 0
	}
	c.scheduleLocked(0)
}

// Stop cancels any pending probe and reverts dependents to stand-ins.
// Idempotent.
func (c *Connector) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	wasConnected := c.state == Connected
	c.state = Idle
	c.mu.Unlock()

	c.unsub()
	if wasConnected && c.disconnect != nil {
		c.disconnect()
	}
}

// State reports the current lifecycle state.
func (c *Connector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connector) scheduleLocked(delay time.Duration) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = c.clk.AfterFunc(delay, c.probe)
}

func (c *Connector) probe() {
	c.mu.Lock()
	if c.stopped || c.state == Connected {
		c.mu.Unlock()
		return
	}
	c.state = Probing
	c.attempts++
	attempt := c.attempts
	c.mu.Unlock()

	err := c.tryConnect()

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		// Stop raced the probe. A connect that just succeeded has already
		// swapped the live implementation in; revert it.
		if err == nil && c.disconnect != nil {
			c.disconnect()
		}
		return
	}
	defer c.mu.Unlock()
	if err == nil {
		c.state = Connected
		c.log.Info("subsystem connected", zap.Int("attempts", attempt))
		return
	}
	if attempt >= c.cfg.MaxAttempts {
		c.state = Failed
		c.log.Warn("subsystem unavailable, giving up",
			zap.Int("attempts", attempt), zap.Error(err))
		return
	}
	c.state = Idle
	delay := c.cfg.ProbeBase + time.Duration(attempt)*c.cfg.ProbeIncrement
	c.log.Debug("probe failed, rescheduling",
		zap.Int("attempt", attempt), zap.Duration("retry_in", delay), zap.Error(err))
	c.scheduleLocked(delay)
}

func (c *Connector) tryConnect() error {
	handle, ok := c.resolver.TryLocate(c.cfg.SubsystemName)
	if !ok {
		return ErrMissingCapability
	}
	return c.connect(handle)
}
