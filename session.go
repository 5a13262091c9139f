package aurora

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownSession is returned when a session id is not active, either
// because it never existed or because it has been destroyed.
var ErrUnknownSession = errors.New("unknown session")

// Session tracks one client connection on a streaming transport. Adapters
// hold only the id; the struct itself is owned by the SessionManager.
type Session struct {
	ID        string
	Transport TransportKind
	CreatedAt time.Time

	// lastActivity is unix nanoseconds, updated on every touch without
	// taking the session map's locks.
	lastActivity atomic.Int64

	closeMu   sync.Mutex
	closeFn   func()
	closeOnce sync.Once
}

func newSession(id string, kind TransportKind, closeFn func()) *Session {
	s := &Session{
		ID:        id,
		Transport: kind,
		CreatedAt: time.Now(),
		closeFn:   closeFn,
	}
	s.touch()
	return s
}

// LastActivity returns the time of the session's most recent touch.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// setCloseFunc rebinds the resource-release callback, e.g. when a client
// reconnects its event stream to an existing session.
func (s *Session) setCloseFunc(fn func()) {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	s.closeFn = fn
}

// close runs the release callback exactly once.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.closeMu.Lock()
		fn := s.closeFn
		s.closeMu.Unlock()

		if fn != nil {
			fn()
		}
	})
}

// SessionManager owns every live session. The map is concurrency-safe and
// per-key, so unrelated sessions never contend; touches go through a
// per-session atomic rather than the map.
type SessionManager struct {
	logger   *slog.Logger
	sessions sync.Map // session id -> *Session
	count    atomic.Int64
}

// NewSessionManager creates an empty session manager.
func NewSessionManager(logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		logger: logger.With(slog.String("component", "sessions")),
	}
}

// Create registers a new session with a generated id. closeFn, if non-nil,
// releases transport-held resources (such as an open event stream) and runs
// exactly once, when the session is destroyed.
func (m *SessionManager) Create(kind TransportKind, closeFn func()) *Session {
	sess := newSession(uuid.New().String(), kind, closeFn)
	m.sessions.Store(sess.ID, sess)
	m.count.Add(1)
	m.logger.Debug("session created",
		slog.String("sessionID", sess.ID),
		slog.String("transport", string(kind)))
	return sess
}

// Ensure returns the session registered under id, creating it if absent. An
// existing session is touched and has its close callback rebound to closeFn;
// transports use this when a client reconnects with an id it was handed
// earlier.
func (m *SessionManager) Ensure(id string, kind TransportKind, closeFn func()) *Session {
	sess := newSession(id, kind, closeFn)
	actual, loaded := m.sessions.LoadOrStore(id, sess)
	if !loaded {
		m.count.Add(1)
		m.logger.Debug("session created",
			slog.String("sessionID", id),
			slog.String("transport", string(kind)))
		return sess
	}

	existing, _ := actual.(*Session)
	existing.setCloseFunc(closeFn)
	existing.touch()
	return existing
}

// Get returns the session registered under id.
func (m *SessionManager) Get(id string) (*Session, bool) {
	v, ok := m.sessions.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Touch marks the session as active now.
func (m *SessionManager) Touch(id string) error {
	v, ok := m.sessions.Load(id)
	if !ok {
		return fmt.Errorf("session %q: %w", id, ErrUnknownSession)
	}
	v.(*Session).touch()
	return nil
}

// Destroy removes the session and runs its close callback. It reports
// whether the session existed. In-flight requests attached to the session are
// not interrupted; their responses are dropped at delivery time by the
// transport.
func (m *SessionManager) Destroy(id string) bool {
	v, ok := m.sessions.LoadAndDelete(id)
	if !ok {
		return false
	}

	sess := v.(*Session)
	sess.close()
	m.count.Add(-1)
	m.logger.Debug("session destroyed", slog.String("sessionID", id))
	return true
}

// Reap destroys every session idle for longer than idleThreshold and returns
// how many it destroyed. It snapshots candidate ids first and re-checks each
// one's activity before eviction, so a sweep never blocks request traffic and
// never evicts a session touched mid-sweep.
func (m *SessionManager) Reap(idleThreshold time.Duration) int {
	cutoff := time.Now().Add(-idleThreshold)

	var stale []string
	m.sessions.Range(func(key, value any) bool {
		if value.(*Session).LastActivity().Before(cutoff) {
			stale = append(stale, key.(string))
		}
		return true
	})

	reaped := 0
	for _, id := range stale {
		v, ok := m.sessions.Load(id)
		if !ok {
			continue
		}
		sess := v.(*Session)
		if !sess.LastActivity().Before(cutoff) {
			continue
		}
		if m.Destroy(id) {
			m.logger.Info("reaped idle session",
				slog.String("sessionID", id),
				slog.String("transport", string(sess.Transport)),
				slog.Time("lastActivity", sess.LastActivity()))
			reaped++
		}
	}
	return reaped
}

// DestroyAll force-closes every remaining session, returning how many were
// destroyed. Used during shutdown after the grace period.
func (m *SessionManager) DestroyAll() int {
	var ids []string
	m.sessions.Range(func(key, _ any) bool {
		ids = append(ids, key.(string))
		return true
	})

	destroyed := 0
	for _, id := range ids {
		if m.Destroy(id) {
			destroyed++
		}
	}
	return destroyed
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	return int(m.count.Load())
}
