// Package shutdown provides idle monitoring for scale-to-zero deployments.
package shutdown

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// BusyChecker reports whether background work is in progress. Screening jobs
// hold the server open even when no HTTP request is active.
type BusyChecker func() bool

// IdleMonitor tracks request activity and signals when the server has been
// idle long enough to stop. Platforms that scale to zero restart the machine
// on the next request.
type IdleMonitor struct {
	timeout      time.Duration
	logger       *slog.Logger
	excludePaths []string
	busyCheck    BusyChecker

	checkInterval time.Duration

	activeRequests int64
	mu             sync.RWMutex
	lastActivity   time.Time

	shutdownChan chan struct{}
	stopChan     chan struct{}
}

// Config holds idle monitor configuration.
type Config struct {
	Timeout      time.Duration // Zero disables the monitor
	Logger       *slog.Logger
	ExcludePaths []string // Paths that do not count as activity, such as probes
	BusyCheck    BusyChecker
}

// NewIdleMonitor creates an idle monitor.
func NewIdleMonitor(cfg Config) *IdleMonitor {
	return &IdleMonitor{
		timeout:       cfg.Timeout,
		logger:        cfg.Logger.With("component", "idle_monitor"),
		excludePaths:  cfg.ExcludePaths,
		busyCheck:     cfg.BusyCheck,
		checkInterval: min(max(cfg.Timeout/6, 5*time.Second), 30*time.Second),
		lastActivity:  time.Now(),
		shutdownChan:  make(chan struct{}),
		stopChan:      make(chan struct{}),
	}
}

// Start begins watching for idle periods. No-op when disabled.
func (m *IdleMonitor) Start() {
	if m.timeout <= 0 {
		return
	}
	m.logger.Info("idle monitoring started", "timeout", m.timeout)
	go m.run()
}

// Stop halts the monitor.
func (m *IdleMonitor) Stop() {
	if m.timeout <= 0 {
		return
	}
	close(m.stopChan)
}

// ShutdownChan is closed when the idle timeout elapses.
func (m *IdleMonitor) ShutdownChan() <-chan struct{} {
	return m.shutdownChan
}

// Middleware tracks request activity, skipping excluded paths so probe
// traffic cannot keep the server alive.
func (m *IdleMonitor) Middleware(next http.Handler) http.Handler {
	if m.timeout <= 0 {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracked := true
		for _, prefix := range m.excludePaths {
			if strings.HasPrefix(r.URL.Path, prefix) {
				tracked = false
				break
			}
		}

		if tracked {
			atomic.AddInt64(&m.activeRequests, 1)
			m.touch()
			defer func() {
				atomic.AddInt64(&m.activeRequests, -1)
				m.touch()
			}()
		}

		next.ServeHTTP(w, r)
	})
}

func (m *IdleMonitor) touch() {
	m.mu.Lock()
	m.lastActivity = time.Now()
	m.mu.Unlock()
}

func (m *IdleMonitor) run() {
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			active := atomic.LoadInt64(&m.activeRequests)
			busy := m.busyCheck != nil && m.busyCheck()

			// Active requests or running jobs reset the idle clock so a
			// full grace period follows the work.
			if active > 0 || busy {
				m.touch()
				continue
			}

			m.mu.RLock()
			idleTime := time.Since(m.lastActivity)
			m.mu.RUnlock()

			if idleTime >= m.timeout {
				m.logger.Info("idle timeout reached, signaling shutdown",
					"idle_time", idleTime,
					"timeout", m.timeout,
				)
				close(m.shutdownChan)
				return
			}
		}
	}
}
