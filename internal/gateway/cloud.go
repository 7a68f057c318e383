package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/climanode/internal/bus"
	"github.com/muurk/climanode/internal/device"
	"github.com/muurk/climanode/internal/logging"
	"github.com/muurk/climanode/internal/metrics"
	"github.com/muurk/climanode/internal/state"
)

// RPC method names.
const (
	MethodSetLED   = "setValueLED_GPIO"
	MethodSetNeo   = "setValueNEO_GPIO"
	MethodGetLED   = "getValueLED_GPIO"
	MethodGetNeo   = "getValueNEO_GPIO"
	MethodClearLED = "clearOverrideLED_GPIO"
	MethodClearNeo = "clearOverrideNEO_GPIO"
)

// Inbound is one message received from the cloud transport.
type Inbound struct {
	Topic   string
	Payload []byte
}

// Publisher sends a payload on a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

type rpcRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type rpcResult struct {
	Result bool `json:"result"`
}

type rpcError struct {
	Error string `json:"error"`
}

// AdapterConfig holds what both adapters need to turn wire requests into
// commands.
type AdapterConfig struct {
	Queue          *bus.Queue
	Hub            *bus.Hub
	Store          *state.Store
	Metrics        *metrics.Metrics
	Pins           device.PinMap
	AllowRelease   bool
	EnqueueTimeout time.Duration
}

// Cloud is the cloud RPC adapter.
type Cloud struct {
	cfg AdapterConfig
	pub Publisher
	log *zap.Logger
}

func NewCloud(cfg AdapterConfig, pub Publisher) *Cloud {
	return &Cloud{cfg: cfg, pub: pub, log: logging.Named("gateway.cloud")}
}

// Run answers requests from inbound and pushes results as attributes until
// ctx is cancelled or inbound is closed.
func (c *Cloud) Run(ctx context.Context, inbound <-chan Inbound) error {
	sub := c.cfg.Hub.Subscribe("cloud", 0)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case in, ok := <-inbound:
			if !ok {
				return nil
			}
			c.handle(ctx, in)
		case res := <-sub.C():
			c.pushResult(res)
		}
	}
}

func (c *Cloud) handle(ctx context.Context, in Inbound) {
	logging.LogRPC("received", in.Topic, in.Payload)

	id, ok := strings.CutPrefix(in.Topic, TopicRPCRequestPfx)
	if !ok || id == "" || strings.Contains(id, "/") {
		c.log.Warn("Ignoring message on unexpected topic", zap.String("topic", in.Topic))
		return
	}

	payload := c.Handle(ctx, id, in.Payload)
	topic := TopicRPCResponse + id
	logging.LogRPC("sent", topic, payload)
	if err := c.pub.Publish(topic, payload); err != nil {
		c.log.Error("Failed to publish RPC response", zap.String("request_id", id), zap.Error(err))
	}
}

// Handle decodes one RPC request and returns the response payload. Every
// request gets a response.
func (c *Cloud) Handle(ctx context.Context, requestID string, payload []byte) []byte {
	var req rpcRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.Method == "" {
		c.log.Warn("Malformed RPC request", zap.String("request_id", requestID), zap.Error(err))
		return encodeError("malformed message")
	}

	log := c.log.With(zap.String("request_id", requestID), zap.String("method", req.Method))

	switch req.Method {
	case MethodSetLED:
		return c.set(ctx, log, device.Led, requestID, req.Params)
	case MethodSetNeo:
		return c.set(ctx, log, device.NeoPixel, requestID, req.Params)
	case MethodGetLED:
		return c.get(log, device.Led)
	case MethodGetNeo:
		return c.get(log, device.NeoPixel)
	case MethodClearLED, MethodClearNeo:
		if !c.cfg.AllowRelease {
			break
		}
		target := device.Led
		if req.Method == MethodClearNeo {
			target = device.NeoPixel
		}
		return c.clear(ctx, log, target, requestID)
	}

	log.Warn("Unknown RPC method")
	return encodeError("unknown method")
}

func (c *Cloud) set(ctx context.Context, log *zap.Logger, target device.ActuatorID, id string, params json.RawMessage) []byte {
	// Missing and null params are rejected alike.
	var v *bool
	if json.Unmarshal(params, &v) != nil || v == nil {
		log.Warn("RPC params are not boolean", zap.ByteString("params", params))
		return encodeError("invalid params")
	}
	desired := *v

	cmd := device.Command{
		Target:        target,
		DesiredState:  desired,
		Action:        device.ActionSet,
		Origin:        device.ChannelCloud,
		CorrelationID: id,
	}
	if err := c.cfg.Queue.Enqueue(ctx, cmd, c.cfg.EnqueueTimeout); err != nil {
		c.cfg.Metrics.Backpressure(device.ChannelCloud)
		log.Warn("Command not queued", zap.Error(err))
		return encodeError(device.WireMessage(err))
	}
	c.cfg.Metrics.SetQueueDepth(c.cfg.Queue.Len())
	log.Info("Command queued", zap.Bool("state", desired))
	return encodeResult(desired)
}

// get reports true while the output is under automatic control.
func (c *Cloud) get(log *zap.Logger, target device.ActuatorID) []byte {
	on, err := c.cfg.Store.Override(target)
	if err != nil {
		c.cfg.Metrics.LockTimeout("gateway")
		log.Warn("Override read failed", zap.Error(err))
		return encodeError(device.WireMessage(err))
	}
	return encodeResult(!on)
}

func (c *Cloud) clear(ctx context.Context, log *zap.Logger, target device.ActuatorID, id string) []byte {
	cmd := device.Command{
		Target:        target,
		Action:        device.ActionRelease,
		Origin:        device.ChannelCloud,
		CorrelationID: id,
	}
	if err := c.cfg.Queue.Enqueue(ctx, cmd, c.cfg.EnqueueTimeout); err != nil {
		c.cfg.Metrics.Backpressure(device.ChannelCloud)
		log.Warn("Release not queued", zap.Error(err))
		return encodeError(device.WireMessage(err))
	}
	return encodeResult(true)
}

func (c *Cloud) pushResult(res device.Result) {
	payload, err := json.Marshal(map[string]bool{attributeKey(res.Target): res.NewState})
	if err != nil {
		c.log.Error("Failed to encode attribute", zap.Error(err))
		return
	}
	if err := c.pub.Publish(TopicAttributes, payload); err != nil {
		c.log.Warn("Failed to push attribute", zap.String("target", res.Target.String()), zap.Error(err))
	}
}

func encodeResult(v bool) []byte {
	b, _ := json.Marshal(rpcResult{Result: v})
	return b
}

func encodeError(msg string) []byte {
	b, _ := json.Marshal(rpcError{Error: msg})
	return b
}
