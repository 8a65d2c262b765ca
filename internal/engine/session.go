package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"duck-gateway/internal/domain"
	"duck-gateway/internal/sqlguard"
)

// Conn is the subset of *sql.DB the session uses.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// State is the lifecycle state of a Session.
type State int

// Session states. Failed is terminal.
const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// Session owns the single engine connection of the process and its one-time
// initialization.
type Session struct {
	conn   Conn
	plan   Plan
	opts   Options
	guard  *sqlguard.Guard
	logger *slog.Logger

	group singleflight.Group

	mu    sync.Mutex
	state State
	err   error
}

// NewSession creates an uninitialized session. Nothing runs against conn
// until EnsureReady.
func NewSession(conn Conn, plan Plan, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		conn:   conn,
		plan:   plan,
		opts:   opts,
		guard:  sqlguard.New(sqlguard.Policy{LocalFilesystemDisabled: plan.LocalFilesystemDisabled}),
		logger: logger.With("component", "engine"),
	}
}

// Plan returns the attachment plan the session initializes with.
func (s *Session) Plan() Plan { return s.plan }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// EnsureReady initializes the engine on first use. Concurrent first callers
// share one in-flight initialization. A failed initialization is permanent:
// every later call returns the same *domain.InitError without running any
// statement again.
func (s *Session) EnsureReady(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateReady:
		s.mu.Unlock()
		return nil
	case StateFailed:
		err := s.err
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	_, err, _ := s.group.Do("init", func() (any, error) {
		s.mu.Lock()
		switch s.state {
		case StateReady:
			s.mu.Unlock()
			return nil, nil
		case StateFailed:
			err := s.err
			s.mu.Unlock()
			return nil, err
		}
		s.state = StateInitializing
		s.mu.Unlock()

		// Initialization outlives the request that triggered it.
		err := s.initialize(context.WithoutCancel(ctx))

		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			s.state = StateFailed
			s.err = err
			return nil, err
		}
		s.state = StateReady
		return nil, nil
	})
	return err
}

func (s *Session) initialize(ctx context.Context) error {
	steps, err := Sequence(s.plan, s.opts)
	if err != nil {
		return &domain.InitError{Step: "build init sequence", Err: err}
	}

	s.logger.Info("initializing engine",
		"backend", s.plan.Backend.String(),
		"steps", len(steps),
		"local_fs_disabled", s.plan.LocalFilesystemDisabled)

	for _, step := range steps {
		if step.Kind == StepPreflight {
			if err := s.opts.Preflight(ctx); err != nil {
				s.logger.Error("init step failed", "step", step.Description, "error", err)
				return &domain.InitError{Step: step.Description, Err: err}
			}
			continue
		}
		s.logger.Debug("init step", "step", step.Description, "sql", step.Redacted())
		if _, err := s.conn.ExecContext(ctx, step.SQL); err != nil {
			s.logger.Error("init step failed", "step", step.Description, "error", err)
			return &domain.InitError{Step: step.Description, Err: err}
		}
	}

	s.logger.Info("engine ready", "default_catalog", s.plan.DefaultCatalog)
	return nil
}

// Query initializes the session if needed, filters text and executes it.
func (s *Session) Query(ctx context.Context, text string) ([]Row, error) {
	if err := s.EnsureReady(ctx); err != nil {
		return nil, err
	}
	filtered, err := s.guard.Filter(text, true)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, filtered)
}

func (s *Session) requireReady() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateReady:
		return nil
	case StateFailed:
		return s.err
	default:
		return fmt.Errorf("engine session is %s", s.state)
	}
}

type sessionKey struct{}

// WithSession stores a Session in the context.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext extracts the Session from the context.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}
