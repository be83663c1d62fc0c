package provision

import (
	"context"
	"errors"
	"testing"

	"github.com/nanoncore/nano-switchctrl/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHooks records the lock hooks called on it
type fakeHooks struct {
	calls     []string
	lockErr   error
	unlockErr error
	commitErr error
}

func (h *fakeHooks) PreAction(ctx context.Context) error {
	h.calls = append(h.calls, "lock")
	return h.lockErr
}

func (h *fakeHooks) PostAction(ctx context.Context) error {
	h.calls = append(h.calls, "unlock")
	return h.unlockErr
}

func (h *fakeHooks) PostActionWithCommit(ctx context.Context) error {
	h.calls = append(h.calls, "commit+unlock")
	return h.commitErr
}

func TestRunLockPairing(t *testing.T) {
	deviceErr := types.Errorf(types.KindReplyFailure, "load", "statement not found")

	tests := []struct {
		name      string
		hooks     *fakeHooks
		mutateErr error
		wantCalls []string
		wantErr   bool
		wantKind  types.ErrorKind
	}{
		{
			name:      "success commits",
			hooks:     &fakeHooks{},
			wantCalls: []string{"lock", "mutate", "commit+unlock"},
		},
		{
			name:      "mutation failure unlocks without commit",
			hooks:     &fakeHooks{},
			mutateErr: deviceErr,
			wantCalls: []string{"lock", "mutate", "unlock"},
			wantErr:   true,
			wantKind:  types.KindReplyFailure,
		},
		{
			name:      "lock failure skips everything",
			hooks:     &fakeHooks{lockErr: types.Errorf(types.KindReplyFailure, "lock", "configuration database locked")},
			wantCalls: []string{"lock"},
			wantErr:   true,
			wantKind:  types.KindReplyFailure,
		},
		{
			name:      "commit failure is reported",
			hooks:     &fakeHooks{commitErr: types.Errorf(types.KindReplyFailure, "commit", "commit check failed")},
			wantCalls: []string{"lock", "mutate", "commit+unlock"},
			wantErr:   true,
			wantKind:  types.KindReplyFailure,
		},
		{
			name:      "unlock failure after mutation failure keeps the mutation error",
			hooks:     &fakeHooks{unlockErr: types.Errorf(types.KindTimeout, "unlock", "no reply")},
			mutateErr: deviceErr,
			wantCalls: []string{"lock", "mutate", "unlock"},
			wantErr:   true,
			wantKind:  types.KindReplyFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := &Tracker{}
			txn := Transaction{Switch: "sw1", Vendor: types.VendorMock, Op: types.OpMoveTagged, Tracker: tracker}

			err := txn.Run(context.Background(), tt.hooks, func(ctx context.Context) error {
				tt.hooks.calls = append(tt.hooks.calls, "mutate")
				return tt.mutateErr
			})

			assert.Equal(t, tt.wantCalls, tt.hooks.calls)
			if !tt.wantErr {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, types.KindOf(err))
			}

			locks, releases := tracker.Counts()
			assert.Equal(t, locks, releases, "every lock must be released exactly once")
			assert.Equal(t, StateIdle, tracker.State())
		})
	}
}

func TestRunReleasesOnPanic(t *testing.T) {
	hooks := &fakeHooks{}
	tracker := &Tracker{}
	txn := Transaction{Op: types.OpCreateVLAN, Tracker: tracker}

	assert.Panics(t, func() {
		_ = txn.Run(context.Background(), hooks, func(ctx context.Context) error {
			panic("boom")
		})
	})
	assert.Equal(t, []string{"lock", "unlock"}, hooks.calls)
	locks, releases := tracker.Counts()
	assert.Equal(t, 1, locks)
	assert.Equal(t, 1, releases)
}

func TestRunStateHistory(t *testing.T) {
	tracker := &Tracker{}
	txn := Transaction{Op: types.OpAddPort, Tracker: tracker}

	require.NoError(t, txn.Run(context.Background(), &fakeHooks{}, func(ctx context.Context) error { return nil }))
	assert.Equal(t, []State{StateLocked, StateMutated, StateCommitting, StateIdle}, tracker.History())

	tracker = &Tracker{}
	txn.Tracker = tracker
	require.Error(t, txn.Run(context.Background(), &fakeHooks{}, func(ctx context.Context) error { return errors.New("nope") }))
	assert.Equal(t, []State{StateLocked, StateUnlocking, StateIdle}, tracker.History())
}

func TestCommitThenUnlock(t *testing.T) {
	commitErr := types.Errorf(types.KindReplyFailure, "commit", "commit failed")
	unlockErr := types.Errorf(types.KindTimeout, "unlock", "no reply")

	tests := []struct {
		name       string
		commit     error
		unlock     error
		wantErr    bool
		wantUnlock bool
		wantKind   types.ErrorKind
	}{
		{"both succeed", nil, nil, false, true, 0},
		{"commit fails, unlock still attempted", commitErr, nil, true, true, types.KindReplyFailure},
		{"both fail, commit error first", commitErr, unlockErr, true, true, types.KindReplyFailure},
		{"unlock fails alone", nil, unlockErr, true, true, types.KindTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unlocked := false
			err := CommitThenUnlock(context.Background(),
				func(ctx context.Context) error { return tt.commit },
				func(ctx context.Context) error { unlocked = true; return tt.unlock },
			)
			assert.Equal(t, tt.wantUnlock, unlocked)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, types.KindOf(err))
			if tt.commit != nil && tt.unlock != nil {
				assert.ErrorIs(t, err, types.ErrTimeout, "unlock failure must be kept in the diagnostic")
			}
		})
	}
}
