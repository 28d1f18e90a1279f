package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Source reads the configuration document from wherever it is kept. Load
// returns ErrNotFound while the document does not exist.
type Source interface {
	Load(ctx context.Context) ([]byte, error)
}

// Watcher is implemented by sources that can signal changes. The channel
// receives a value after the document may have changed and is closed when
// ctx is done.
type Watcher interface {
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// Writer is implemented by sources that accept new documents.
type Writer interface {
	Store(ctx context.Context, doc []byte) error
}

// FetchInitial waits until src has a document and parses it. It polls src
// every poll interval and fails with ErrConfigTimeout once timeout has
// elapsed. A document that exists but does not parse fails immediately.
func FetchInitial(ctx context.Context, src Source, timeout, poll time.Duration) (*Snapshot, error) {
	s, _, err := fetchInitial(ctx, src, timeout, poll)
	return s, err
}

func fetchInitial(ctx context.Context, src Source, timeout, poll time.Duration) (*Snapshot, []byte, error) {
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	timer := time.NewTimer(0)
	defer timer.Stop()
	var lastErr error
	for {
		select {
		case <-ctx.Done():
			if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, nil, ctx.Err()
			}
			if lastErr == nil {
				lastErr = ctx.Err()
			}
			return nil, nil, fmt.Errorf("%w after %s: %v", ErrConfigTimeout, timeout, lastErr)
		case <-timer.C:
		}

		b, err := src.Load(ctx)
		if err == nil {
			s, err := Parse(b)
			if err != nil {
				return nil, nil, err
			}
			return s, b, nil
		}
		lastErr = err
		timer.Reset(poll)
	}
}

// ManagerConfig is the configuration passed to NewManager.
type ManagerConfig struct {
	// Source is required.
	Source Source
	// InitialTimeout bounds Start's wait for the first document. Defaults
	// to 30s.
	InitialTimeout time.Duration
	// PollInterval is how often Start retries while waiting. Defaults to
	// 100ms.
	PollInterval time.Duration
	// RefreshInterval is how often the document is re-read after start.
	// Sources implementing Watcher are also re-read on every change
	// notification. Defaults to 10s.
	RefreshInterval time.Duration
	Logger          *zap.Logger
}

type published struct {
	snapshot *Snapshot
	raw      []byte
}

// Manager owns the live snapshot. Current never blocks; a refresh replaces
// the whole snapshot with a single atomic swap.
type Manager struct {
	src    Source
	cfg    ManagerConfig
	logger *zap.Logger

	current atomic.Pointer[published]
	mu      sync.Mutex // serializes writers

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager returns a manager publishing the default snapshot until Start
// succeeds.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("config: Source must be set in ManagerConfig")
	}
	if cfg.InitialTimeout <= 0 {
		cfg.InitialTimeout = 30 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	m := &Manager{
		src:    cfg.Source,
		cfg:    cfg,
		logger: cfg.Logger,
	}
	m.current.Store(&published{snapshot: Default()})
	return m, nil
}

// Current returns the snapshot in effect.
func (m *Manager) Current() *Snapshot {
	return m.current.Load().snapshot
}

// Publish replaces the live snapshot.
func (m *Manager) Publish(s *Snapshot) error {
	raw, err := s.Marshal()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.Store(&published{snapshot: s, raw: raw})
	return nil
}

// Start fetches the initial document, publishes it and keeps refreshing it
// in the background until ctx is done or Close is called. It fails with
// ErrConfigTimeout when no document shows up within InitialTimeout.
func (m *Manager) Start(ctx context.Context) error {
	s, raw, err := fetchInitial(ctx, m.src, m.cfg.InitialTimeout, m.cfg.PollInterval)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.current.Store(&published{snapshot: s, raw: raw})
	m.mu.Unlock()
	m.logger.Info("Loaded cache configuration",
		zap.Int("buffer_capacity", s.BufferCapacity),
		zap.Int("rules", s.Ruleset.Len()))

	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	var changes <-chan struct{}
	if w, ok := m.src.(Watcher); ok {
		changes, err = w.Watch(ctx)
		if err != nil {
			m.logger.Warn("Config change notifications unavailable, polling only", zap.Error(err))
		}
	}
	go m.refreshLoop(ctx, changes)
	return nil
}

// Close stops the background refresh started by Start.
func (m *Manager) Close() error {
	if m.cancel == nil {
		return nil
	}
	m.cancel()
	<-m.done
	return nil
}

func (m *Manager) refreshLoop(ctx context.Context, changes <-chan struct{}) {
	defer close(m.done)

	ticker := time.NewTicker(m.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
		}
		if _, err := m.Refresh(ctx); err != nil {
			m.logger.Warn("Config refresh failed, keeping current snapshot", zap.Error(err))
		}
	}
}

// Refresh re-reads the document and publishes it if it changed. It reports
// whether a new snapshot was published. A missing document keeps the
// current snapshot.
func (m *Manager) Refresh(ctx context.Context) (bool, error) {
	b, err := m.src.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if bytes.Equal(b, m.current.Load().raw) {
		return false, nil
	}
	s, err := Parse(b)
	if err != nil {
		return false, err
	}
	m.current.Store(&published{snapshot: s, raw: b})
	m.logger.Info("Cache configuration updated",
		zap.Int("buffer_capacity", s.BufferCapacity),
		zap.Int("rules", s.Ruleset.Len()))
	return true, nil
}
