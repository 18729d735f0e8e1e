package finalizer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"recital/internal/config"
	"recital/internal/logging"
	"recital/internal/notifications"
	"recital/internal/recitals"
)

// Manager drains ended sessions from the store and finalizes them one at a
// time. Work is discovered two ways: an explicit Schedule call wakes the
// loop immediately, and a poll interval catches sessions left over from
// crashes or missed wakeups.
type Manager struct {
	cfg      *config.Config
	store    *recitals.Store
	notifier notifications.Service
	logger   *slog.Logger

	pollInterval time.Duration
	jobTimeout   time.Duration
	wake         chan struct{}

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// NewManager constructs a finalizer manager.
func NewManager(cfg *config.Config, store *recitals.Store, notifier notifications.Service, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewNop()
	}
	return &Manager{
		cfg:          cfg,
		store:        store,
		notifier:     notifier,
		logger:       logging.WithComponent(logger, "finalizer"),
		pollInterval: time.Duration(cfg.Finalizer.PollInterval) * time.Second,
		jobTimeout:   time.Duration(cfg.Finalizer.JobTimeout) * time.Second,
		wake:         make(chan struct{}, 1),
	}
}

// Schedule wakes the processing loop. Multiple calls before the loop runs
// coalesce into a single wakeup; the loop drains every pending session
// regardless of how many times it was woken.
func (m *Manager) Schedule(string) {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("finalizer already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for the in-flight job.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// LastError reports the most recent processing failure, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	for {
		m.drain(ctx)

		select {
		case <-ctx.Done():
			return
		case <-m.wake:
		case <-time.After(m.pollInterval):
		}
	}
}

// drain finalizes pending sessions until none remain. A failing session is
// left in place and retried on the next cycle rather than blocking shutdown.
func (m *Manager) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		session, err := m.store.NextEndedSession(ctx)
		if err != nil {
			m.setLastError(err)
			m.logger.Error("failed to fetch next ended session", logging.Error(err))
			return
		}
		if session == nil {
			return
		}

		jobCtx, cancel := context.WithTimeout(ctx, m.jobTimeout)
		err = m.Finalize(jobCtx, session)
		cancel()
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
			m.logger.Error("finalize failed",
				logging.String(logging.FieldSession, session.ID),
				logging.Error(err))
			if notifyErr := m.notifier.NotifyError(ctx, err, "finalizer"); notifyErr != nil {
				m.logger.Warn("error notification failed", logging.Error(notifyErr))
			}
			return
		}
	}
}
