// Package connectivity tracks whether the server API is reachable and
// notifies listeners on transitions. Three signals feed the monitor: periodic
// health probes against the API, an offline marker file watched with
// fsnotify, and manual overrides from the CLI.
package connectivity

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/viberater/viberater/internal/application/ports"
	"github.com/viberater/viberater/internal/infrastructure/logging"
)

// HealthProber is the probe the monitor uses to test API reachability. The
// remote API client satisfies it.
type HealthProber interface {
	Health(ctx context.Context) error
}

// Config holds monitor settings.
type Config struct {
	// ProbeInterval is how often the health endpoint is probed. Zero disables
	// probing; state then changes only via the marker file or SetOnline.
	ProbeInterval time.Duration
	// ProbeTimeout bounds a single probe.
	ProbeTimeout time.Duration
	// Debounce coalesces marker-file event bursts into one state check.
	Debounce time.Duration
	// OfflineMarker is the path of the file whose presence forces offline
	// mode. Empty disables the watcher.
	OfflineMarker string
}

// Monitor implements ports.ConnectivityPort.
type Monitor struct {
	prober HealthProber
	cfg    Config
	logger *logging.Logger

	mu        sync.RWMutex
	online    bool
	forced    bool       // marker file present, overrides probe results
	onOnline  []func()
	onOffline []func()
	notifyMu  sync.Mutex // serializes callback dispatch
	started   bool
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewMonitor creates a monitor. The initial state is offline until the first
// probe or an explicit SetOnline; a facade can therefore boot from cache and
// let the first successful probe trigger a replay.
func NewMonitor(prober HealthProber, cfg Config, logger *logging.Logger) *Monitor {
	if logger == nil {
		logger = logging.Discard()
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = 250 * time.Millisecond
	}
	return &Monitor{
		prober: prober,
		cfg:    cfg,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// IsOnline returns the current connectivity state.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// OfflineMarker returns the path of the file that pins the monitor offline.
func (m *Monitor) OfflineMarker() string {
	return m.cfg.OfflineMarker
}

// OnOnline registers a callback for offline-to-online transitions.
func (m *Monitor) OnOnline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOnline = append(m.onOnline, fn)
}

// OnOffline registers a callback for online-to-offline transitions.
func (m *Monitor) OnOffline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOffline = append(m.onOffline, fn)
}

// SetOnline forces the connectivity state, firing transition callbacks if the
// state changed. Used by the CLI's manual online/offline switches and by
// tests.
func (m *Monitor) SetOnline(online bool) {
	m.transition(online)
}

// transition flips the state and dispatches callbacks on change. Dispatch
// holds notifyMu, not mu, so callbacks may call IsOnline; holding notifyMu
// across the whole dispatch serializes overlapping transitions and keeps
// each callback run whole.
func (m *Monitor) transition(online bool) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	var callbacks []func()
	if online {
		callbacks = append(callbacks, m.onOnline...)
	} else {
		callbacks = append(callbacks, m.onOffline...)
	}
	m.mu.Unlock()

	if online {
		m.logger.Info("connectivity restored")
	} else {
		m.logger.Warn("connectivity lost")
	}
	for _, fn := range callbacks {
		fn()
	}
}

// Start launches the probe loop and, if configured, the marker file watcher.
// It probes once immediately so the startup state settles quickly.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}

	var watcher *fsnotify.Watcher
	if m.cfg.OfflineMarker != "" {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			m.mu.Unlock()
			return err
		}
		// Watch the directory; the marker file itself may not exist yet.
		dir := filepath.Dir(m.cfg.OfflineMarker)
		if err := os.MkdirAll(dir, 0750); err != nil {
			w.Close()
			m.mu.Unlock()
			return err
		}
		if err := w.Add(dir); err != nil {
			w.Close()
			m.mu.Unlock()
			return err
		}
		watcher = w
	}

	// started flips only after setup succeeds; a failed Start leaves the
	// monitor in its never-started state and Close returns immediately.
	m.started = true
	ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	if watcher != nil {
		m.refreshForced()
	}
	go m.run(ctx, watcher)
	return nil
}

// Close stops the monitor's goroutine and waits for it to exit.
func (m *Monitor) Close() error {
	m.mu.Lock()
	cancel := m.cancel
	started := m.started
	m.mu.Unlock()
	if !started {
		return nil
	}
	if cancel != nil {
		cancel()
	}
	m.closeOnce.Do(func() { <-m.done })
	return nil
}

func (m *Monitor) run(ctx context.Context, watcher *fsnotify.Watcher) {
	defer close(m.done)
	if watcher != nil {
		defer watcher.Close()
	}

	var ticker *time.Ticker
	var tick <-chan time.Time
	if m.prober != nil && m.cfg.ProbeInterval > 0 {
		ticker = time.NewTicker(m.cfg.ProbeInterval)
		defer ticker.Stop()
		tick = ticker.C
		m.probe(ctx)
	}

	var events <-chan fsnotify.Event
	var errs <-chan error
	if watcher != nil {
		events = watcher.Events
		errs = watcher.Errors
	}

	// Debounce timer for marker file bursts. Editors and rm/touch sequences
	// produce several events per logical change.
	var debounce *time.Timer
	var debounced <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case <-tick:
			m.probe(ctx)

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(ev.Name) != filepath.Clean(m.cfg.OfflineMarker) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(m.cfg.Debounce)
				debounced = debounce.C
			} else {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(m.cfg.Debounce)
			}

		case <-debounced:
			debounce = nil
			debounced = nil
			m.refreshForced()
			m.probe(ctx)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			m.logger.Warn("marker watcher error", "error", err)
		}
	}
}

// refreshForced re-reads the marker file's presence.
func (m *Monitor) refreshForced() {
	_, err := os.Stat(m.cfg.OfflineMarker)
	forced := err == nil

	m.mu.Lock()
	changed := m.forced != forced
	m.forced = forced
	m.mu.Unlock()

	if changed && forced {
		m.logger.Info("offline marker present, forcing offline mode", "path", m.cfg.OfflineMarker)
		m.transition(false)
	}
}

// probe hits the health endpoint and transitions state on the result. A
// present marker file pins the state offline regardless of probe outcome.
func (m *Monitor) probe(ctx context.Context) {
	if m.prober == nil {
		return
	}
	m.mu.RLock()
	forced := m.forced
	m.mu.RUnlock()
	if forced {
		m.transition(false)
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()
	if err := m.prober.Health(probeCtx); err != nil {
		m.transition(false)
		return
	}
	m.transition(true)
}

var _ ports.ConnectivityPort = (*Monitor)(nil)
