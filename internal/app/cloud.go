package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/climanode/internal/device"
	"github.com/muurk/climanode/internal/gateway"
)

var errCloudDisabled = errors.New("cloud session not established")

// cloudTransport is the part of the MQTT transport a session uses.
type cloudTransport interface {
	gateway.Publisher
	Connect(ctx context.Context) error
	Inbound() <-chan gateway.Inbound
	Close()
}

// cloudPublisher forwards to the current session's transport so the cloud
// adapter and telemetry sink survive reconnects with new settings.
type cloudPublisher struct {
	mu sync.RWMutex
	t  cloudTransport
}

func (p *cloudPublisher) set(t cloudTransport) {
	p.mu.Lock()
	p.t = t
	p.mu.Unlock()
}

func (p *cloudPublisher) Publish(topic string, payload []byte) error {
	p.mu.RLock()
	t := p.t
	p.mu.RUnlock()
	if t == nil {
		return errCloudDisabled
	}
	return t.Publish(topic, payload)
}

// runCloud keeps one cloud session alive at a time. A settings change
// tears the session down and starts another from the store's current
// connection fields.
func (n *Node) runCloud(ctx context.Context) error {
	for {
		sessCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			n.cloudSession(sessCtx)
		}()

		select {
		case <-ctx.Done():
			cancel()
			<-done
			return nil
		case <-n.restart:
			n.log.Info("Cloud settings changed, restarting session")
			cancel()
			<-done
		}
	}
}

func (n *Node) cloudSession(ctx context.Context) {
	n.cfgMu.Lock()
	retry := n.cfg.Cloud.RetryInterval
	n.cfgMu.Unlock()

	// A busy store only delays the session.
	snap, err := n.snapshot()
	for device.IsLockTimeout(err) {
		n.log.Warn("Cloud settings busy, retrying", zap.Duration("retry_in", retry))
		select {
		case <-ctx.Done():
			return
		case <-time.After(retry):
		}
		snap, err = n.snapshot()
	}
	if err != nil {
		n.log.Warn("Cloud settings unavailable, session not started", zap.Error(err))
		return
	}
	if snap.CloudToken == "" || snap.CloudServer == "" {
		n.log.Warn("Cloud disabled: no access token or server configured")
		return
	}

	t := n.dial(gateway.MQTTConfig{
		Server:        snap.CloudServer,
		Port:          snap.CloudPort,
		Token:         snap.CloudToken,
		RetryInterval: retry,
	})
	defer t.Close()

	n.cloudPub.set(t)
	defer n.cloudPub.set(nil)

	go func() {
		if err := t.Connect(ctx); err != nil && ctx.Err() == nil {
			n.log.Error("Cloud connection failed", zap.Error(err))
		}
	}()

	_ = n.Cloud.Run(ctx, t.Inbound())
}
