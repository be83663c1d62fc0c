// Package provision runs lock, mutate, commit and unlock transactions against
// a switch and keeps the switch's VLAN membership maps in step with what was
// committed.
package provision

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nanoncore/nano-switchctrl/metrics"
	"github.com/nanoncore/nano-switchctrl/types"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Hooks bracket every mutating operation on a switch
type Hooks interface {
	// PreAction acquires the exclusive configuration lock
	PreAction(ctx context.Context) error

	// PostAction releases the lock without committing
	PostAction(ctx context.Context) error

	// PostActionWithCommit commits the candidate configuration, then releases the lock
	PostActionWithCommit(ctx context.Context) error
}

// State is the position of a switch in the transaction state machine
type State int

const (
	StateIdle State = iota
	StateLocked
	StateMutated
	StateCommitting
	StateUnlocking
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLocked:
		return "locked"
	case StateMutated:
		return "mutated"
	case StateCommitting:
		return "committing"
	case StateUnlocking:
		return "unlocking"
	default:
		return "unknown"
	}
}

// Tracker follows the transaction state of one switch
type Tracker struct {
	mu       sync.Mutex
	state    State
	locks    int
	releases int
	history  []State
}

func (t *Tracker) set(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch s {
	case StateLocked:
		t.locks++
	case StateCommitting, StateUnlocking:
		t.releases++
	}
	t.state = s
	t.history = append(t.history, s)
}

// State returns the current state
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Counts returns how many locks were acquired and how many release paths ran
func (t *Tracker) Counts() (locks, releases int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.locks, t.releases
}

// History returns every state entered, in order
func (t *Tracker) History() []State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]State(nil), t.history...)
}

// Transaction describes one bracketed operation on a switch
type Transaction struct {
	Switch  string
	Vendor  types.Vendor
	Op      types.Operation
	Logger  *zap.Logger
	Tracker *Tracker
}

// Run acquires the lock, runs mutate, and then releases the lock exactly once:
// with commit when mutate succeeded, without commit otherwise. A panic in
// mutate still releases the lock before propagating.
func (t Transaction) Run(ctx context.Context, h Hooks, mutate func(ctx context.Context) error) (err error) {
	logger := t.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tracker := t.Tracker
	if tracker == nil {
		tracker = &Tracker{}
	}
	logger = logger.With(zap.String("txn", uuid.NewString()), zap.String("op", string(t.Op)))

	start := time.Now()
	defer func() {
		err = types.WithSwitch(err, t.Switch)
		metrics.ObserveTransaction(t.Vendor, t.Op, err, time.Since(start))
	}()

	if err := h.PreAction(ctx); err != nil {
		logger.Warn("configuration lock not acquired", zap.Error(err))
		return err
	}
	tracker.set(StateLocked)
	logger.Debug("configuration locked")

	released := false
	defer func() {
		if released {
			return
		}
		r := recover()
		tracker.set(StateUnlocking)
		if uerr := h.PostAction(ctx); uerr != nil {
			metrics.LockReleaseFailed(t.Vendor, t.Switch)
			logger.Error("unlock after panic failed", zap.Error(uerr))
		}
		tracker.set(StateIdle)
		if r != nil {
			panic(r)
		}
	}()

	if merr := mutate(ctx); merr != nil {
		released = true
		tracker.set(StateUnlocking)
		if uerr := h.PostAction(ctx); uerr != nil {
			metrics.LockReleaseFailed(t.Vendor, t.Switch)
			merr = multierr.Append(merr, uerr)
		}
		tracker.set(StateIdle)
		logger.Warn("operation rolled back", zap.Error(merr))
		return merr
	}
	tracker.set(StateMutated)

	released = true
	tracker.set(StateCommitting)
	err = h.PostActionWithCommit(ctx)
	tracker.set(StateIdle)
	if err != nil {
		logger.Warn("commit failed", zap.Error(err))
		return err
	}
	logger.Info("operation committed")
	return nil
}

// CommitThenUnlock commits, then always attempts to unlock. A failed unlock
// after a failed commit is appended to the commit error; the result is a
// failure whenever the commit failed.
func CommitThenUnlock(ctx context.Context, commit, unlock func(ctx context.Context) error) error {
	cerr := commit(ctx)
	uerr := unlock(ctx)
	if cerr != nil {
		return multierr.Append(cerr, uerr)
	}
	return uerr
}
