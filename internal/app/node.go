// Package app assembles a running node from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/climanode/internal/actuator"
	"github.com/muurk/climanode/internal/bus"
	"github.com/muurk/climanode/internal/config"
	"github.com/muurk/climanode/internal/control"
	"github.com/muurk/climanode/internal/device"
	"github.com/muurk/climanode/internal/discovery"
	"github.com/muurk/climanode/internal/dispatch"
	"github.com/muurk/climanode/internal/gateway"
	"github.com/muurk/climanode/internal/logging"
	"github.com/muurk/climanode/internal/metrics"
	"github.com/muurk/climanode/internal/sensor"
	"github.com/muurk/climanode/internal/state"
	"github.com/muurk/climanode/internal/supervisor"
	"github.com/muurk/climanode/internal/telemetry"
	"github.com/muurk/climanode/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Node owns every component of a running node.
type Node struct {
	Store      *state.Store
	Queue      *bus.Queue
	Hub        *bus.Hub
	Board      *actuator.Board
	Dispatcher *dispatch.Dispatcher
	LED        *control.LEDController
	Pixel      *control.PixelController
	Cloud      *gateway.Cloud
	UI         *gateway.UI
	Server     *gateway.Server
	Telemetry  *telemetry.Publisher
	Monitor    *sensor.Monitor
	Supervisor *supervisor.Supervisor
	Metrics    *metrics.Metrics

	cfgMu   sync.Mutex
	cfg     *config.Config
	cfgPath string

	source   sensor.Source
	influx   *telemetry.InfluxSink
	cloudPub *cloudPublisher
	restart  chan struct{}
	dial     func(gateway.MQTTConfig) cloudTransport
	snapshot func() (device.DeviceConfig, error)
	log      *zap.Logger
}

// Option customizes New.
type Option func(*options)

type options struct {
	configPath string
	driver     actuator.Driver
	source     sensor.Source
	dial       func(gateway.MQTTConfig) cloudTransport
}

// WithConfigPath sets where UI settings are saved. Empty means the default
// location.
func WithConfigPath(path string) Option {
	return func(o *options) { o.configPath = path }
}

// WithDriver replaces the driver selected by the gpio section.
func WithDriver(d actuator.Driver) Option {
	return func(o *options) { o.driver = d }
}

// WithSource replaces the sensor source selected by the sensor section.
func WithSource(s sensor.Source) Option {
	return func(o *options) { o.source = s }
}

// New builds a node. Nothing runs until Run.
func New(cfg *config.Config, opts ...Option) (*Node, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	n := &Node{
		cfg:      cfg,
		cfgPath:  o.configPath,
		Metrics:  metrics.New(),
		cloudPub: &cloudPublisher{},
		restart:  make(chan struct{}, 1),
		dial:     o.dial,
		log:      logging.Named("node"),
	}
	if n.dial == nil {
		n.dial = func(c gateway.MQTTConfig) cloudTransport { return gateway.NewMQTTTransport(c, n.Metrics) }
	}

	driver := o.driver
	if driver == nil {
		var err error
		if driver, err = openDriver(cfg.GPIO); err != nil {
			return nil, err
		}
	}

	n.source = o.source
	if n.source == nil {
		var err error
		if n.source, err = openSource(cfg.Sensor); err != nil {
			_ = driver.Close()
			return nil, err
		}
	}

	n.Store = state.New(cfg.DeviceConfig(), state.WithLockTimeout(cfg.Store.LockTimeout))
	n.snapshot = n.Store.Snapshot
	n.Queue = bus.NewQueue(cfg.Bus.Capacity, cfg.Bus.EnqueueTimeout)
	n.Hub = bus.NewHub(n.Metrics)
	n.Board = actuator.NewBoard(driver, cfg.Control.ManualColor)

	n.Dispatcher = dispatch.New(dispatch.Config{
		Queue:        n.Queue,
		Hub:          n.Hub,
		Store:        n.Store,
		Board:        n.Board,
		Metrics:      n.Metrics,
		AllowRelease: cfg.Control.OverrideRelease,
	})

	n.LED = control.NewLEDController(control.LEDConfig{
		Store:        n.Store,
		Board:        n.Board,
		Metrics:      n.Metrics,
		Thresholds:   cfg.Control.Temperature,
		Blinks:       cfg.Control.Blinks,
		OverridePoll: cfg.Control.OverridePoll,
	})
	n.Pixel = control.NewPixelController(control.PixelConfig{
		Store:        n.Store,
		Board:        n.Board,
		Metrics:      n.Metrics,
		Thresholds:   cfg.Control.Humidity,
		Colors:       control.DefaultColors(),
		Interval:     cfg.Control.PixelInterval,
		OverridePoll: cfg.Control.OverridePoll,
	})

	adapter := gateway.AdapterConfig{
		Queue:          n.Queue,
		Hub:            n.Hub,
		Store:          n.Store,
		Metrics:        n.Metrics,
		Pins:           cfg.Pins,
		AllowRelease:   cfg.Control.OverrideRelease,
		EnqueueTimeout: cfg.Bus.EnqueueTimeout,
	}
	n.Cloud = gateway.NewCloud(adapter, n.cloudPub)
	n.UI = gateway.NewUI(adapter, originChecker(cfg.UI.Origins))
	n.UI.OnSettings(n.saveSettings)
	n.Server = gateway.NewServer(gateway.ServerConfig{
		Host:           cfg.UI.Host,
		Port:           cfg.UI.Port,
		CertPath:       cfg.UI.Cert,
		KeyPath:        cfg.UI.Key,
		AllowedOrigins: cfg.UI.Origins,
		CommandWait:    cfg.UI.CommandWait,
		Classification: cfg.Sensor.Classification,
	}, adapter, n.UI, n.Board)

	sinks := []telemetry.Sink{telemetry.NewMQTTSink(n.cloudPub), telemetry.NewUISink(n.UI)}
	if cfg.Telemetry.Influx.Enabled() {
		n.influx = telemetry.NewInfluxSink(telemetry.InfluxConfig{
			URL:    cfg.Telemetry.Influx.URL,
			Token:  cfg.Telemetry.Influx.Token,
			Org:    cfg.Telemetry.Influx.Org,
			Bucket: cfg.Telemetry.Influx.Bucket,
			Device: cfg.Node.Name,
		})
		sinks = append(sinks, n.influx)
	}
	n.Telemetry = telemetry.NewPublisher(n.Store, cfg.Telemetry.Interval, cfg.Sensor.Classification, n.Metrics, sinks...)
	n.Monitor = sensor.NewMonitor(n.source, n.Store, n.Metrics, cfg.Sensor.Interval, cfg.Sensor.Classification)
	n.Supervisor = supervisor.New(n.Store, n.Server, cfg.UI.SuperviseInterval, n.Metrics)

	return n, nil
}

func openDriver(cfg config.GPIOConfig) (actuator.Driver, error) {
	if cfg.Chip == "" {
		logging.Info("Using simulated outputs (gpio.chip not set)")
		return actuator.NewSimulated(), nil
	}
	chip, err := actuator.OpenChip(actuator.ChipConfig{
		Chip:      cfg.Chip,
		LED:       cfg.LED,
		PixelRGB:  cfg.PixelRGB,
		ActiveLow: cfg.ActiveLow,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open GPIO chip: %w", err)
	}
	return chip, nil
}

func openSource(cfg config.SensorConfig) (sensor.Source, error) {
	if cfg.Source == config.SourceSerial {
		s, err := sensor.OpenSerial(sensor.SerialConfig{Port: cfg.Port, BaudRate: cfg.Baud})
		if err != nil {
			return nil, fmt.Errorf("failed to open sensor: %w", err)
		}
		return s, nil
	}
	return sensor.NewSimulated(device.Reading{Temperature: 25, Humidity: 50}, uint64(time.Now().UnixNano())), nil
}

// originChecker accepts requests without an Origin header and those whose
// origin is listed. An empty list or "*" accepts everything.
func originChecker(origins []string) func(*http.Request) bool {
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails. The UI server is shut down before Run returns.
func (n *Node) Run(ctx context.Context) error {
	if err := n.Server.Start(); err != nil {
		n.log.Warn("UI server did not start, supervisor will retry", zap.Error(err))
	}

	var adv *discovery.Advertiser
	if n.cfg.Discovery.Enabled {
		var err error
		adv, err = discovery.Advertise(n.cfg.Node.Name, n.cfg.UI.Port,
			discovery.NodeText(version.Short(), n.cfg.Pins.LED, n.cfg.Pins.Neo))
		if err != nil {
			n.log.Warn("mDNS advertisement disabled", zap.Error(err))
		}
	}

	n.log.Info("Node started",
		zap.String("name", n.cfg.Node.Name),
		zap.String("version", version.Full()),
		zap.Bool("override_release", n.cfg.Control.OverrideRelease),
	)

	g, ctx := errgroup.WithContext(ctx)
	supervisorDone := make(chan struct{})

	g.Go(func() error { return n.Dispatcher.Run(ctx) })
	g.Go(func() error { return n.LED.Run(ctx) })
	g.Go(func() error { return n.Pixel.Run(ctx) })
	g.Go(func() error { return n.UI.Run(ctx) })
	g.Go(func() error { return n.Monitor.Run(ctx) })
	g.Go(func() error { return n.Telemetry.Run(ctx) })
	g.Go(func() error { return n.runCloud(ctx) })
	g.Go(func() error {
		defer close(supervisorDone)
		return n.Supervisor.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		// The supervisor must not restart the server after shutdown.
		<-supervisorDone
		adv.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := n.Server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			n.log.Warn("UI server shutdown", zap.Error(err))
		}
		return nil
	})

	err := g.Wait()
	n.log.Info("Node stopped")
	return err
}

// Close releases hardware and client resources. Call it after Run returns.
func (n *Node) Close() error {
	if n.influx != nil {
		n.influx.Close()
	}
	var errs []error
	if c, ok := n.source.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	errs = append(errs, n.Board.Close())
	return errors.Join(errs...)
}

// Config returns a copy of the current configuration.
func (n *Node) Config() config.Config {
	n.cfgMu.Lock()
	defer n.cfgMu.Unlock()
	return *n.cfg
}

// saveSettings persists settings accepted from the UI and restarts the
// cloud session when its connection settings changed.
func (n *Node) saveSettings(v gateway.SettingValue) error {
	snap, err := n.Store.Snapshot()
	if err != nil {
		return err
	}

	n.cfgMu.Lock()
	n.cfg.ApplyDeviceConfig(snap)
	err = n.cfg.Save(n.cfgPath)
	n.cfgMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	if v.Token != "" || v.Server != "" || v.Port != "" {
		select {
		case n.restart <- struct{}{}:
		default:
		}
	}
	return nil
}
