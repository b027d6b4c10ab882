package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/openfleet/tracking-backend-go/internal/clock"
	"github.com/openfleet/tracking-backend-go/internal/models"
	"github.com/openfleet/tracking-backend-go/internal/timewindow"
)

// CreateOptions seeds a new session's time window.
type CreateOptions struct {
	Date        string           `json:"date"`
	Shift       models.ShiftMode `json:"shift"`
	CustomStart string           `json:"customStart"`
	CustomEnd   string           `json:"customEnd"`
}

// SessionManager owns every live session.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	svc             *TrackingService
	clk             clock.Clock
	refreshInterval time.Duration
	logger          *log.Entry
}

// NewSessionManager creates a new session manager.
func NewSessionManager(svc *TrackingService, clk clock.Clock, refreshInterval time.Duration) *SessionManager {
	return &SessionManager{
		sessions:        make(map[string]*Session),
		svc:             svc,
		clk:             clk,
		refreshInterval: refreshInterval,
		logger:          log.WithField("component", "sessions"),
	}
}

// Create builds a session, runs its initial load and starts its
// refresh loop.
func (m *SessionManager) Create(ctx context.Context, opts CreateOptions) (*Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, err
	}
	if opts.Shift == "" {
		opts.Shift = models.ShiftDay
	}
	window := timewindow.Resolve(opts.Date, opts.Shift, opts.CustomStart, opts.CustomEnd)

	s := newSession(id, window, m.svc, m.clk, m.refreshInterval)
	s.start(ctx)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.logger.WithFields(log.Fields{
		"session": id,
		"window":  fmt.Sprintf("%s..%s", window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339)),
	}).Info("session created")
	return s, nil
}

// Get returns a session by id.
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete closes and removes a session.
func (m *SessionManager) Delete(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.Close()
		m.logger.WithField("session", id).Info("session closed")
	}
	return ok
}

// Count reports the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close shuts down every session.
func (m *SessionManager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

func newSessionID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
