// Package netmon tracks connectivity and qualitative link quality. It is the
// sole writer of the process-wide NetworkState; every other component reads
// it, or subscribes for push notification on change.
package netmon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hackfest/syncengine/internal/core/domain"
)

// Prober measures one round trip against the backend. An error means the
// backend is unreachable.
type Prober func(ctx context.Context) (time.Duration, error)

// Listener receives the new state on every transition.
type Listener func(domain.NetworkState)

// Monitor is the Online(fast)/Online(slow)/Offline state machine. Transitions
// come from host connectivity events (SetOnline) and periodic link-quality
// sampling through the prober.
type Monitor struct {
	prober        Prober
	interval      time.Duration
	slowThreshold time.Duration
	log           *slog.Logger

	mu          sync.RWMutex
	state       domain.NetworkState
	listeners   map[int]Listener
	reconnects  map[int]func()
	nextID      int
	stopCh      chan struct{}
	stopOnce    sync.Once
	sampling    bool
}

// Option configures the monitor.
type Option func(*Monitor)

// WithInterval sets the sampling interval.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) { m.interval = d }
}

// WithSlowThreshold sets the RTT above which the link counts as slow.
func WithSlowThreshold(d time.Duration) Option {
	return func(m *Monitor) { m.slowThreshold = d }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Monitor) { m.log = log }
}

// New creates a monitor that starts in the Online(fast) state. A nil prober
// disables sampling; transitions then come only from SetOnline.
func New(prober Prober, opts ...Option) *Monitor {
	m := &Monitor{
		prober:        prober,
		interval:      30 * time.Second,
		slowThreshold: 1500 * time.Millisecond,
		log:           slog.Default(),
		state:         domain.NetworkState{Online: true, Quality: domain.QualityFast},
		listeners:     make(map[int]Listener),
		reconnects:    make(map[int]func()),
		stopCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current connectivity snapshot.
func (m *Monitor) State() domain.NetworkState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// SetOnline feeds a host connectivity event into the state machine. Going
// online without a recent RTT sample assumes a fast link until the next probe
// says otherwise.
func (m *Monitor) SetOnline(online bool) {
	if online {
		m.transition(domain.NetworkState{Online: true, Quality: domain.QualityFast})
	} else {
		m.transition(domain.Offline())
	}
}

// Subscribe registers a listener pushed on every state change. The returned
// function detaches it.
func (m *Monitor) Subscribe(fn Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// OnReconnect registers a hook fired only on the Offline -> Online
// transition: the explicit recovery sweep, not a blanket notification.
func (m *Monitor) OnReconnect(fn func()) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.reconnects[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.reconnects, id)
		m.mu.Unlock()
	}
}

// Start begins periodic link sampling until ctx is canceled or Stop is
// called. No-op without a prober.
func (m *Monitor) Start(ctx context.Context) {
	if m.prober == nil {
		return
	}
	m.mu.Lock()
	if m.sampling {
		m.mu.Unlock()
		return
	}
	m.sampling = true
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.Sample(ctx)
			}
		}
	}()
}

// Stop ends sampling. Subscriptions stay attached until detached by their
// owners.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// Sample takes one probe round trip and feeds the result into the state
// machine.
func (m *Monitor) Sample(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rtt, err := m.prober(probeCtx)
	if err != nil {
		m.transition(domain.Offline())
		return
	}

	quality := domain.QualityFast
	if rtt > m.slowThreshold {
		quality = domain.QualitySlow
	}
	m.transition(domain.NetworkState{Online: true, Quality: quality, RTT: rtt})
}

func (m *Monitor) transition(next domain.NetworkState) {
	m.mu.Lock()
	prev := m.state
	if prev.Online == next.Online && prev.Quality == next.Quality && prev.RTT == next.RTT {
		m.mu.Unlock()
		return
	}
	m.state = next

	listeners := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	var hooks []func()
	if !prev.Online && next.Online {
		hooks = make([]func(), 0, len(m.reconnects))
		for _, fn := range m.reconnects {
			hooks = append(hooks, fn)
		}
	}
	m.mu.Unlock()

	m.log.Info("network state changed",
		"online", next.Online, "quality", next.Quality, "rtt", next.RTT)

	// Callbacks run outside the lock; they may read State or touch the cache.
	for _, fn := range listeners {
		fn(next)
	}
	for _, fn := range hooks {
		fn()
	}
}
