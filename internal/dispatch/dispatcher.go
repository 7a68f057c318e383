// Package dispatch consumes the command queue and applies each command to the
// board, maintaining the override flags and publishing one result per command.
package dispatch

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/muurk/climanode/internal/actuator"
	"github.com/muurk/climanode/internal/bus"
	"github.com/muurk/climanode/internal/device"
	"github.com/muurk/climanode/internal/logging"
	"github.com/muurk/climanode/internal/metrics"
	"github.com/muurk/climanode/internal/state"
)

// Config wires a Dispatcher to its collaborators.
type Config struct {
	Queue   *bus.Queue
	Hub     *bus.Hub
	Store   *state.Store
	Board   *actuator.Board
	Metrics *metrics.Metrics

	// AllowRelease enables ActionRelease commands. When false they are
	// rejected.
	AllowRelease bool
}

// Dispatcher is the single consumer of the command queue.
type Dispatcher struct {
	cfg Config
	log *zap.Logger
}

func New(cfg Config) *Dispatcher {
	return &Dispatcher{cfg: cfg, log: logging.Named("dispatch")}
}

// Run consumes commands until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.Info("Dispatcher started", zap.Int("queue_capacity", d.cfg.Queue.Cap()))
	for {
		cmd, err := d.cfg.Queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				d.log.Info("Dispatcher stopped")
				return nil
			}
			return err
		}
		d.cfg.Metrics.SetQueueDepth(d.cfg.Queue.Len())
		d.cfg.Hub.Publish(d.Handle(cmd))
	}
}

// Handle applies one command and returns its result without publishing it.
func (d *Dispatcher) Handle(cmd device.Command) device.Result {
	res := device.Result{
		Target:        cmd.Target,
		NewState:      cmd.DesiredState,
		Origin:        cmd.Origin,
		CorrelationID: cmd.CorrelationID,
	}

	log := d.log.With(
		zap.String("target", cmd.Target.String()),
		zap.String("action", cmd.Action.String()),
		zap.String("origin", cmd.Origin.String()),
		zap.String("correlation_id", cmd.CorrelationID),
	)

	if cmd.Action == device.ActionRelease {
		return d.release(cmd, res, log)
	}

	if !cmd.Target.Overridable() {
		err := d.cfg.Board.Exclusive(cmd.Target, func() error {
			return d.cfg.Board.Apply(cmd.Target, cmd.DesiredState)
		})
		if err != nil {
			log.Warn("Actuation failed", zap.Error(err))
			res.NewState = d.cfg.Board.Level(cmd.Target)
			return res
		}
		res.Accepted = true
		log.Info("Command applied", zap.Bool("state", cmd.DesiredState))
		return res
	}

	prev, err := d.cfg.Store.Override(cmd.Target)
	if err != nil {
		d.cfg.Metrics.LockTimeout("dispatch")
		log.Warn("Could not read previous override, assuming automatic", zap.Error(err))
		prev = false
	}

	// The override is raised before the write so the controller stops
	// competing for the output.
	if err := d.cfg.Store.SetOverride(cmd.Target, true); err != nil {
		d.cfg.Metrics.LockTimeout("dispatch")
		log.Warn("Command rejected, override not set", zap.Error(err))
		res.NewState = d.cfg.Board.Level(cmd.Target)
		return res
	}
	d.cfg.Metrics.SetOverride(cmd.Target, true)

	err = d.cfg.Board.Exclusive(cmd.Target, func() error {
		return d.cfg.Board.Apply(cmd.Target, cmd.DesiredState)
	})
	if err != nil {
		log.Warn("Actuation failed, restoring override", zap.Error(err), zap.Bool("override", prev))
		if rerr := d.cfg.Store.SetOverride(cmd.Target, prev); rerr != nil {
			log.Error("Failed to restore override", zap.Error(rerr))
		} else {
			d.cfg.Metrics.SetOverride(cmd.Target, prev)
		}
		res.NewState = d.cfg.Board.Level(cmd.Target)
		return res
	}

	res.Accepted = true
	log.Info("Command applied", zap.Bool("state", cmd.DesiredState))
	return res
}

// release hands the target back to its controller. The result reports
// NewState true, which both channels render as automatic mode.
func (d *Dispatcher) release(cmd device.Command, res device.Result, log *zap.Logger) device.Result {
	res.NewState = true
	if !d.cfg.AllowRelease || !cmd.Target.Overridable() {
		log.Warn("Release rejected")
		res.NewState = d.cfg.Board.Level(cmd.Target)
		return res
	}
	if err := d.cfg.Store.SetOverride(cmd.Target, false); err != nil {
		d.cfg.Metrics.LockTimeout("dispatch")
		log.Warn("Release failed", zap.Error(err))
		res.NewState = d.cfg.Board.Level(cmd.Target)
		return res
	}
	d.cfg.Metrics.SetOverride(cmd.Target, false)
	res.Accepted = true
	log.Info("Override released")
	return res
}
