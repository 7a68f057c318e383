// Package supervisor keeps the UI server running.
package supervisor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/climanode/internal/logging"
	"github.com/muurk/climanode/internal/metrics"
	"github.com/muurk/climanode/internal/state"
)

const DefaultInterval = 5 * time.Second

// Starter is a restartable server.
type Starter interface {
	Start() error
}

// Supervisor restarts the UI server whenever the store reports it stopped.
type Supervisor struct {
	store    *state.Store
	server   Starter
	interval time.Duration
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func New(store *state.Store, server Starter, interval time.Duration, m *metrics.Metrics) *Supervisor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Supervisor{
		store:    store,
		server:   server,
		interval: interval,
		metrics:  m,
		log:      logging.Named("supervisor"),
	}
}

// Run checks on every tick until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Check()
		}
	}
}

// Check restarts the server if it is not running. A busy store is treated
// as unknown and nothing is done. It reports whether a restart happened.
func (s *Supervisor) Check() bool {
	running, err := s.store.WebserverRunning()
	if err != nil {
		s.metrics.LockTimeout("supervisor")
		s.log.Debug("Webserver state unknown", zap.Error(err))
		return false
	}
	if running {
		return false
	}

	s.log.Info("UI server not running, restarting")
	if err := s.server.Start(); err != nil {
		s.log.Error("UI server restart failed", zap.Error(err))
		return false
	}
	return true
}
