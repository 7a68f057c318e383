package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/muurk/climanode/internal/device"
	"github.com/muurk/climanode/internal/state"
)

type fakeServer struct {
	store  *state.Store
	starts atomic.Int32
	err    error
}

func (f *fakeServer) Start() error {
	f.starts.Add(1)
	if f.err != nil {
		return f.err
	}
	return f.store.SetWebserverRunning(true)
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name        string
		running     bool
		startErr    error
		wantRestart bool
		wantStarts  int32
	}{
		{"running", true, nil, false, 0},
		{"stopped", false, nil, true, 1},
		{"restart fails", false, errors.New("address in use"), false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := state.New(device.DeviceConfig{WebserverRunning: tt.running})
			srv := &fakeServer{store: store, err: tt.startErr}
			s := New(store, srv, time.Second, nil)

			if got := s.Check(); got != tt.wantRestart {
				t.Errorf("Check() = %v, want %v", got, tt.wantRestart)
			}
			if srv.starts.Load() != tt.wantStarts {
				t.Errorf("starts = %d, want %d", srv.starts.Load(), tt.wantStarts)
			}
		})
	}
}

func TestRunRestartsOnce(t *testing.T) {
	store := state.New(device.DeviceConfig{})
	srv := &fakeServer{store: store}
	s := New(store, srv, 5*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	_ = s.Run(ctx)

	if srv.starts.Load() != 1 {
		t.Errorf("starts = %d, want 1", srv.starts.Load())
	}
}
