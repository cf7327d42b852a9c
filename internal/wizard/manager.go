package wizard

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/contaflow/proposal-app/internal/draft"
)

var ErrSessionNotFound = errors.New("session not found")

type managed struct {
	sess *Session
	ctrl *draft.Controller
}

// Manager holds the live wizard sessions, one autosave controller per session,
// and a background loop that purges stale drafts and evicts idle sessions.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*managed

	store    draft.Store
	saveFn   draft.SaveFunc
	autosave draft.Config
	idleAge  time.Duration
	draftTTL time.Duration
	log      *zap.Logger
	stop     chan struct{}
}

func NewManager(store draft.Store, saveFn draft.SaveFunc, autosave draft.Config, idleAge, draftTTL time.Duration, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	if idleAge <= 0 {
		idleAge = time.Hour
	}
	if draftTTL <= 0 {
		draftTTL = draft.DefaultTTL
	}
	m := &Manager{
		sessions: make(map[string]*managed),
		store:    store,
		saveFn:   saveFn,
		autosave: autosave,
		idleAge:  idleAge,
		draftTTL: draftTTL,
		log:      log,
		stop:     make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.stop:
			return
		}
	}
}

// cleanup evicts sessions idle past the configured age and purges stale drafts.
// Evicted sessions keep their drafts; they remain resumable until the drafts age
// out at the store's TTL.
func (m *Manager) cleanup() {
	if n, err := m.store.PurgeStale(m.draftTTL); err != nil {
		m.log.Warn("stale draft purge failed", zap.Error(err))
	} else if n > 0 {
		m.log.Info("purged stale drafts", zap.Int("count", n))
	}

	cutoff := time.Now().Add(-m.idleAge)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.sessions {
		if e.sess.UpdatedAt().Before(cutoff) {
			e.ctrl.Close()
			delete(m.sessions, id)
			m.log.Info("evicted idle wizard session", zap.String("session", id))
		}
	}
}

func (m *Manager) register(s *Session) *managed {
	ctrl := draft.NewController(s.ID, m.store, m.saveFn, m.autosave, m.log)
	s.SetObserver(func(step Step, payload any) {
		ctrl.NotifyChange(int(step), payload)
	})
	e := &managed{sess: s, ctrl: ctrl}
	m.sessions[s.ID] = e
	return e
}

// Create starts an empty wizard session with autosave wired in.
func (m *Manager) Create() *Session {
	s := NewSession("")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.register(s)
	return s
}

// Resume returns the live session if present, otherwise hydrates it from its
// persisted drafts.
func (m *Manager) Resume(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[id]; ok {
		return e.sess, nil
	}
	s, err := Hydrate(m.store, id, m.draftTTL)
	if err != nil {
		return nil, err
	}
	m.register(s)
	return s, nil
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return e.sess, true
}

func (m *Manager) Controller(id string) (*draft.Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return e.ctrl, true
}

// Discard drops a session and purges its drafts. Used for explicit "new
// proposal" and after successful finalization.
func (m *Manager) Discard(id string) error {
	m.mu.Lock()
	if e, ok := m.sessions[id]; ok {
		e.ctrl.Close()
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	return m.store.DeletePrefix(draft.SessionPrefix(id))
}

// Close stops the cleanup loop and all controllers.
func (m *Manager) Close() {
	close(m.stop)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.sessions {
		e.ctrl.Close()
		delete(m.sessions, id)
	}
}
