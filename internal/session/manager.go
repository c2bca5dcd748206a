package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"dialout-picker/internal/audit"
	"dialout-picker/internal/auth"
	"dialout-picker/internal/catalog"
	"dialout-picker/internal/dispatch"
	"dialout-picker/internal/targets"
	"dialout-picker/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("session: not found")
	ErrBusy          = errors.New("session: batch already in progress")
	ErrUnknownTarget = errors.New("session: unknown destination")
	ErrTooMany       = errors.New("session: too many open sessions")
)

const (
	// DefaultIdleTTL is how long an untouched session survives.
	DefaultIdleTTL = 30 * time.Minute
	// DefaultMaxPerUser bounds the open sessions of one user.
	DefaultMaxPerUser = 10
)

// Options wires a Manager. Source may be nil (fallback list only). Lock and
// Audit default to in-memory implementations.
type Options struct {
	Conference string
	Source     catalog.Source
	Fallback   []targets.CallTarget
	Dispatcher *dispatch.Dispatcher
	Lock       BatchLock
	Audit      *audit.Service

	// IdleTTL closes sessions nobody has used for this long.
	IdleTTL time.Duration
	// MaxPerUser caps open sessions per authenticated user.
	MaxPerUser int
}

// Manager owns the live picker sessions of this process.
type Manager struct {
	opts  Options
	clock func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(opts Options) *Manager {
	if opts.Lock == nil {
		opts.Lock = NewMemoryLock()
	}
	if opts.Audit == nil {
		opts.Audit = audit.NewService(audit.NewMemoryRepo(), opts.Conference)
	}
	if opts.Fallback == nil {
		opts.Fallback = targets.DefaultFallback()
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultIdleTTL
	}
	if opts.MaxPerUser <= 0 {
		opts.MaxPerUser = DefaultMaxPerUser
	}
	return &Manager{opts: opts, clock: time.Now, sessions: make(map[string]*Session)}
}

// Create opens a session and loads its catalog once. A user already at
// MaxPerUser open sessions gets ErrTooMany.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	if m.opts.Dispatcher == nil {
		return nil, errors.New("session: dispatcher not configured")
	}
	owner, _ := auth.UserID(ctx)

	m.mu.Lock()
	full := m.atLimitLocked(owner)
	m.mu.Unlock()
	if full {
		return nil, ErrTooMany
	}

	id := uuid.NewString()
	ctx = logger.WithFields(ctx, "session_id", id)
	cat := catalog.Load(ctx, m.opts.Source, m.opts.Fallback)

	s := newSession(id, m.clock, cat, m.opts)
	s.owner = owner

	m.mu.Lock()
	if m.atLimitLocked(owner) {
		m.mu.Unlock()
		return nil, ErrTooMany
	}
	m.sessions[id] = s
	m.mu.Unlock()

	logger.From(ctx).Info("picker session opened", "targets", cat.Len(), "from_fallback", cat.FromFallback)
	return s, nil
}

func (m *Manager) atLimitLocked(owner string) bool {
	if owner == "" {
		return false
	}
	n := 0
	for _, s := range m.sessions {
		if s.owner == owner {
			n++
		}
	}
	return n >= m.opts.MaxPerUser
}

// Get returns a live session and marks it used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.touch(m.clock())
	return s, nil
}

// Close discards a session and its catalog. A batch that is still running
// finishes its list; its results are dropped.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.close()
	return nil
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep closes every session idle for longer than IdleTTL. Sessions with a
// batch in flight are kept. It returns how many sessions were closed.
func (m *Manager) Sweep() int {
	now := m.clock()

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.idleSince(now) > m.opts.IdleTTL {
			delete(m.sessions, id)
			expired = append(expired, s)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.close()
	}
	return len(expired)
}

// Run sweeps idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = m.opts.IdleTTL / 4
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Sweep(); n > 0 {
				logger.From(ctx).Info("idle picker sessions closed", "closed", n, "live", m.Len())
			}
		}
	}
}
