package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"shuttle/internal/logging"
)

// windowSize is the number of samples averaged into the reported load.
const windowSize = 4

// EventKind distinguishes threshold transitions.
type EventKind int

const (
	// High fires when an instantaneous sample exceeds the limit after the
	// monitor had been behaving for more than its probation count.
	High EventKind = iota
	// Low fires when the behaving counter reaches exactly the probation count.
	Low
)

func (k EventKind) String() string {
	if k == High {
		return "high"
	}
	return "low"
}

// Event describes a single threshold transition.
type Event struct {
	Name    string
	Kind    EventKind
	Sample  float64
	Average float64
}

// Config parameterizes a Monitor instance.
type Config struct {
	Name      string
	Limit     float64
	Probation int
	Interval  time.Duration
}

// Sample produces one reading of the monitored resource.
type Sample func() (float64, error)

// Monitor watches one resource through periodic sampling.
type Monitor struct {
	cfg    Config
	sample Sample
	logger *slog.Logger
	events chan Event

	mu       sync.Mutex
	window   [windowSize]float64
	filled   int
	next     int
	behaving int
	high     bool
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// New constructs a monitor. The monitor starts in the behaving (low) state so
// an idle host admits work immediately; the first live samples take over from
// there.
func New(cfg Config, sample Sample, logger *slog.Logger) (*Monitor, error) {
	if sample == nil {
		return nil, errors.New("monitor requires a sample function")
	}
	if cfg.Probation <= 0 {
		return nil, errors.New("monitor probation must be positive")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("monitor interval must be positive")
	}
	return &Monitor{
		cfg:      cfg,
		sample:   sample,
		logger:   logging.NewComponentLogger(logger, "monitor-"+cfg.Name),
		events:   make(chan Event, 8),
		behaving: cfg.Probation + 1,
	}, nil
}

// Events returns the transition event channel. Events are dropped, not
// blocked on, when the consumer falls behind.
func (m *Monitor) Events() <-chan Event {
	return m.events
}

// Load reports the current rolling-window average.
func (m *Monitor) Load() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.averageLocked()
}

// IsHigh reports whether the monitor is currently in the high state.
func (m *Monitor) IsHigh() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.high
}

// Start launches the sampling loop. Each tick runs to completion before the
// next is scheduled, so ticks never overlap.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("monitor already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true
	done := m.done
	m.mu.Unlock()

	go func() {
		defer close(done)
		timer := time.NewTimer(m.cfg.Interval)
		defer timer.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-timer.C:
			}
			m.Tick()
			timer.Reset(m.cfg.Interval)
		}
	}()
	return nil
}

// Stop terminates the sampling loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	done := m.done
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	<-done
}

// Tick takes one sample and applies the hysteresis transitions. Exposed so
// tests and callers can drive the monitor without its timer.
func (m *Monitor) Tick() {
	value, err := m.sample()
	if err != nil {
		m.logger.Warn("sample failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "monitor_sample_failed"),
			logging.String(logging.FieldErrorHint, "check /proc availability"),
		)
		return
	}
	m.Observe(value)
}

// Observe pushes one sample into the window and fires transition events.
func (m *Monitor) Observe(value float64) {
	m.mu.Lock()

	m.window[m.next] = value
	m.next = (m.next + 1) % windowSize
	if m.filled < windowSize {
		m.filled++
	}
	average := m.averageLocked()

	var fire *Event
	if value > m.cfg.Limit {
		if m.behaving > m.cfg.Probation {
			m.high = true
			fire = &Event{Name: m.cfg.Name, Kind: High, Sample: value, Average: average}
		}
		m.behaving = 0
	} else {
		m.behaving++
		if m.behaving == m.cfg.Probation {
			m.high = false
			fire = &Event{Name: m.cfg.Name, Kind: Low, Sample: value, Average: average}
		}
		// Clamp so the counter cannot wrap on a long-quiet host.
		if m.behaving > m.cfg.Probation {
			m.behaving = m.cfg.Probation + 1
		}
	}
	m.mu.Unlock()

	if fire == nil {
		return
	}
	select {
	case m.events <- *fire:
	default:
		m.logger.Warn("event channel full, transition dropped",
			logging.String("kind", fire.Kind.String()),
			logging.String(logging.FieldEventType, "monitor_event_dropped"),
			logging.String(logging.FieldImpact, "admission control may react late"),
		)
	}
	m.logger.Info("load transition",
		logging.String("kind", fire.Kind.String()),
		logging.Float64("sample", fire.Sample),
		logging.Float64("average", fire.Average),
		logging.Float64("limit", m.cfg.Limit),
	)
}

func (m *Monitor) averageLocked() float64 {
	if m.filled == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < m.filled; i++ {
		sum += m.window[i]
	}
	return sum / float64(m.filled)
}
