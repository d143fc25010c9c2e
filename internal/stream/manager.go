package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/voxgate/internal/observe"
	"github.com/MrWong99/voxgate/pkg/audio"
)

// ErrUnknownStream is returned when a stream ID does not match an open
// session.
var ErrUnknownStream = errors.New("stream: unknown stream")

// SessionInfo is a point-in-time snapshot of one open session.
type SessionInfo struct {
	ID        string
	Name      string
	Format    audio.Format
	BlockSize int
	OpenedAt  time.Time
	Speaking  bool
}

// Manager tracks open sessions by ID and keeps the active-stream gauge in
// step with opens and closes. All methods are safe for concurrent use.
type Manager struct {
	metrics *observe.Metrics

	mu       sync.Mutex
	sessions map[string]managedSession
}

type managedSession struct {
	sess *Session
	name string
}

// NewManager creates an empty manager. Metrics may be nil.
func NewManager(metrics *observe.Metrics) *Manager {
	return &Manager{
		metrics:  metrics,
		sessions: make(map[string]managedSession),
	}
}

// Open creates a session for a named stream and registers it. The manager
// assigns the session ID and metrics sink; those fields of cfg are
// ignored.
func (m *Manager) Open(name string, cfg SessionConfig, opts ...SessionOption) (*Session, error) {
	if name == "" {
		name = "stream"
	}
	cfg.ID = fmt.Sprintf("stream-%s-%s", sanitizeName(name), uuid.NewString()[:8])
	cfg.Metrics = m.metrics

	sess, err := NewSession(cfg, opts...)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[sess.ID()] = managedSession{sess: sess, name: name}
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ActiveStreams.Add(context.Background(), 1,
			metric.WithAttributes(observe.Attr("stream", sess.ID())))
	}
	slog.Info("stream opened",
		"stream", sess.ID(),
		"format", cfg.Format.String(),
		"block_size", cfg.BlockSize,
	)
	return sess, nil
}

// Get returns the open session with the given ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return ms.sess, true
}

// Close closes the session with the given ID and removes it from the
// manager. Returns [ErrUnknownStream] if no such session is open.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	ms, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStream, id)
	}
	return m.closeSession(ms)
}

// CloseAll closes every open session and returns the joined errors.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	all := make([]managedSession, 0, len(m.sessions))
	for _, ms := range m.sessions {
		all = append(all, ms)
	}
	m.sessions = make(map[string]managedSession)
	m.mu.Unlock()

	var errs []error
	for _, ms := range all {
		if err := m.closeSession(ms); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// List returns snapshots of all open sessions, oldest first.
func (m *Manager) List() []SessionInfo {
	m.mu.Lock()
	infos := make([]SessionInfo, 0, len(m.sessions))
	for _, ms := range m.sessions {
		infos = append(infos, SessionInfo{
			ID:        ms.sess.ID(),
			Name:      ms.name,
			Format:    ms.sess.Format(),
			BlockSize: ms.sess.BlockSize(),
			OpenedAt:  ms.sess.openedAt,
			Speaking:  ms.sess.Speaking(),
		})
	}
	m.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].OpenedAt.Equal(infos[j].OpenedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].OpenedAt.Before(infos[j].OpenedAt)
	})
	return infos
}

func (m *Manager) closeSession(ms managedSession) error {
	err := ms.sess.Close()
	if m.metrics != nil {
		m.metrics.ActiveStreams.Add(context.Background(), -1,
			metric.WithAttributes(observe.Attr("stream", ms.sess.ID())))
	}
	slog.Info("stream closed",
		"stream", ms.sess.ID(),
		"blocks", ms.sess.BlocksProcessed(),
		"segments", len(ms.sess.Segments()),
		"dropped", ms.sess.Dropped(),
	)
	return err
}

// sanitizeName replaces spaces with hyphens and lowercases a name for use
// in stream IDs.
func sanitizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " ", "-")
	return name
}
