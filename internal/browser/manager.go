package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

var (
	// ErrLoginFailed is returned when the WING login flow does not reach the
	// post-login marker. Terminal for the whole job.
	ErrLoginFailed = errors.New("wing login failed")
)

// SessionKey scopes one browser context/page pair to one workflow
// invocation. Concurrent jobs for different stores or job ids never share
// browser state; retries and sub-steps of the same job reuse one session.
type SessionKey struct {
	Store   string
	JobID   string
	Variant string
}

func (k SessionKey) String() string {
	if k.Variant == "" {
		return k.Store + ":" + k.JobID
	}
	return k.Store + ":" + k.JobID + ":" + k.Variant
}

// Config holds browser and admin console settings
type Config struct {
	LoginURL     string
	BaseURL      string
	Username     string
	Password     string
	UserAgent    string
	Headless     bool
	SelectorWait time.Duration
	ScrollStep   int
	ScrollDelay  time.Duration
}

// launchFunc starts a browser and returns a logged-out page plus its
// teardown. Overridable so manager behavior is testable without Chrome.
type launchFunc func(cfg Config, logger *slog.Logger) (*WingPage, func(), error)

// Manager owns browser context/page lifecycle keyed by session key
type Manager struct {
	cfg    Config
	logger *slog.Logger
	launch launchFunc
	login  func(ctx context.Context, page *WingPage) error

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager
func NewManager(cfg Config, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		logger:   logger,
		launch:   launchChrome,
		login: func(ctx context.Context, page *WingPage) error {
			return page.Login(ctx)
		},
		sessions: make(map[string]*Session),
	}
}

// Acquire returns the live session for key, launching a fresh browser and
// running the WING login flow on first use. A login failure tears the
// browser down and returns ErrLoginFailed.
func (m *Manager) Acquire(ctx context.Context, key SessionKey) (*Session, error) {
	m.mu.Lock()
	if s, ok := m.sessions[key.String()]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	m.logger.Info("Launching browser session",
		slog.String("session_key", key.String()),
	)

	page, cancel, err := m.launch(m.cfg, m.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	if err := m.login(ctx, page); err != nil {
		cancel()
		m.logger.Error("WING login failed",
			slog.String("session_key", key.String()),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}

	s := &Session{
		key:     key,
		page:    page,
		cancel:  cancel,
		manager: m,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[key.String()]; ok {
		// Lost a race to another acquisition of the same key; keep the
		// first session and discard this one.
		cancel()
		return existing, nil
	}
	m.sessions[key.String()] = s

	m.logger.Info("Browser session ready",
		slog.String("session_key", key.String()),
	)

	return s, nil
}

func (m *Manager) remove(key SessionKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key.String())
}

// Active returns the number of live sessions
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Session is one exclusively-owned browser context/page pair
type Session struct {
	key     SessionKey
	page    *WingPage
	cancel  func()
	manager *Manager
	once    sync.Once
}

// Key returns the session key
func (s *Session) Key() SessionKey {
	return s.key
}

// Page returns the console page handle
func (s *Session) Page() *WingPage {
	return s.page
}

// Release tears the underlying browser context down. Idempotent: the
// teardown runs exactly once no matter how many exit paths reach it.
func (s *Session) Release() {
	s.once.Do(func() {
		s.manager.remove(s.key)
		s.cancel()
		s.manager.logger.Info("Browser session released",
			slog.String("session_key", s.key.String()),
		)
	})
}

// launchChrome starts a fresh headless Chrome for one session
func launchChrome(cfg Config, logger *slog.Logger) (*WingPage, func(), error) {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	cancel := func() {
		browserCancel()
		allocatorCancel()
	}

	// Eagerly start the browser so launch failures surface here instead of
	// on the first navigation.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	return NewWingPage(browserCtx, cfg, logger), cancel, nil
}
