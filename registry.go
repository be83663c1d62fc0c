package switchctrl

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nanoncore/nano-switchctrl/model"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultParallelism bounds the fan-out of registry-wide operations
const DefaultParallelism = 8

// Registry owns the sessions of all managed switches. Sessions are not safe
// for concurrent use; Do serializes callers per switch while different
// switches proceed in parallel.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*registered
	logger   *zap.Logger
	limit    int
}

type registered struct {
	mu      sync.Mutex
	session SwitchSession
}

// NewRegistry creates an empty registry
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*registered),
		logger:   logger.Named("registry"),
		limit:    DefaultParallelism,
	}
}

// SetParallelism bounds how many switches registry-wide operations touch at once
func (r *Registry) SetParallelism(n int) {
	if n > 0 {
		r.limit = n
	}
}

// Register adds a session under its name
func (r *Registry) Register(s SwitchSession) error {
	name := s.Name()
	if name == "" {
		return fmt.Errorf("session has no name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[name]; ok {
		return fmt.Errorf("switch %q is already registered", name)
	}
	r.sessions[name] = &registered{session: s}
	r.logger.Debug("switch registered", zap.String("switch", name))
	return nil
}

// Get returns the session registered under name
func (r *Registry) Get(name string) (SwitchSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[name]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// Names returns the registered switch names in order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sessions))
	for name := range r.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Deregister disconnects and removes a session
func (r *Registry) Deregister(ctx context.Context, name string) error {
	r.mu.Lock()
	e, ok := r.sessions[name]
	delete(r.sessions, name)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("switch %q is not registered", name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Disconnect(ctx)
}

// Do runs fn with exclusive use of the named session, connecting it first
// when needed
func (r *Registry) Do(ctx context.Context, name string, fn func(ctx context.Context, s SwitchSession) error) error {
	r.mu.RLock()
	e, ok := r.sessions[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("switch %q is not registered", name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.session.IsConnected() {
		if err := e.session.Connect(ctx, nil); err != nil {
			return err
		}
	}
	return fn(ctx, e.session)
}

// each runs fn on every session in parallel and combines all errors
func (r *Registry) each(ctx context.Context, fn func(ctx context.Context, s SwitchSession) error) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
	)
	g.SetLimit(r.limit)
	for _, name := range r.Names() {
		g.Go(func() error {
			err := r.Do(ctx, name, fn)
			if err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// ConnectAll connects every registered session
func (r *Registry) ConnectAll(ctx context.Context) error {
	return r.each(ctx, func(ctx context.Context, s SwitchSession) error { return nil })
}

// RefreshAll keeps every session alive, reconnecting dead ones
func (r *Registry) RefreshAll(ctx context.Context) error {
	return r.each(ctx, func(ctx context.Context, s SwitchSession) error { return s.Refresh(ctx) })
}

// RebuildRefTables rebuilds the reference tables of every session that
// resolves interface indices. The first failure cancels the remaining walks.
func (r *Registry) RebuildRefTables(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.limit)
	for _, name := range r.Names() {
		s, ok := r.Get(name)
		if !ok {
			continue
		}
		if _, ok := s.(RefTableBuilder); !ok {
			continue
		}
		g.Go(func() error {
			return r.Do(gctx, name, func(ctx context.Context, s SwitchSession) error {
				if err := s.(RefTableBuilder).RebuildRefTables(ctx); err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				return nil
			})
		})
	}
	return g.Wait()
}

// Close disconnects every session and empties the registry
func (r *Registry) Close(ctx context.Context) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
	)
	g.SetLimit(r.limit)

	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*registered)
	r.mu.Unlock()

	for name, e := range sessions {
		g.Go(func() error {
			e.mu.Lock()
			defer e.mu.Unlock()
			if err := e.session.Disconnect(ctx); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	r.logger.Info("all switch sessions closed", zap.Int("switches", len(sessions)))
	return errs
}

// TeardownPort removes a port from a VLAN and destroys the VLAN once no
// member port is left. A VLAN this session never provisioned is left in
// place. It reports whether the VLAN was removed.
func (r *Registry) TeardownPort(ctx context.Context, name string, port model.Port, vlan int) (bool, error) {
	removed := false
	err := r.Do(ctx, name, func(ctx context.Context, s SwitchSession) error {
		known := s.KnowsVLAN(vlan)
		if err := s.RemovePortFromVLAN(ctx, port, vlan); err != nil {
			return err
		}
		if !known {
			r.logger.Info("VLAN membership unknown to this session, VLAN kept",
				zap.String("switch", name), zap.Int("vlan", vlan))
			return nil
		}
		if !s.IsVLANEmpty(vlan) {
			return nil
		}
		if err := s.RemoveVLAN(ctx, vlan); err != nil {
			return err
		}
		removed = true
		return nil
	})
	return removed, err
}
