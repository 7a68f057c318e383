package telemetry

import (
	"context"
	"encoding/json"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/muurk/climanode/internal/gateway"
)

// MQTTSink publishes to the cloud telemetry topic.
type MQTTSink struct {
	pub gateway.Publisher
}

func NewMQTTSink(pub gateway.Publisher) *MQTTSink {
	return &MQTTSink{pub: pub}
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Publish(_ context.Context, sample Sample) error {
	payload, err := json.Marshal(sample.Reading)
	if err != nil {
		return err
	}
	return s.pub.Publish(gateway.TopicTelemetry, payload)
}

// UISink pushes the sensor page to WebSocket clients.
type UISink struct {
	ui *gateway.UI
}

func NewUISink(ui *gateway.UI) *UISink {
	return &UISink{ui: ui}
}

func (s *UISink) Name() string { return "ui" }

func (s *UISink) Publish(_ context.Context, sample Sample) error {
	return s.ui.BroadcastSensor(sample.Reading, sample.State.String())
}

// InfluxConfig locates the InfluxDB bucket.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
	Device string
}

// InfluxSink writes an "environment" point per sample.
type InfluxSink struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
	device string
}

// NewInfluxSink creates the client. Writes are blocking so failures surface
// on the publishing cycle that caused them.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxSink{
		client: client,
		write:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		device: cfg.Device,
	}
}

func (s *InfluxSink) Name() string { return "influx" }

func (s *InfluxSink) Publish(ctx context.Context, sample Sample) error {
	p := influxdb2.NewPoint(
		"environment",
		map[string]string{"device": s.device},
		map[string]interface{}{
			"temperature": sample.Reading.Temperature,
			"humidity":    sample.Reading.Humidity,
			"state":       sample.State.String(),
		},
		sample.Time,
	)
	if err := s.write.WritePoint(ctx, p); err != nil {
		return fmt.Errorf("error writing to InfluxDB: %w", err)
	}
	return nil
}

// Close releases the client.
func (s *InfluxSink) Close() {
	if s.client != nil {
		s.client.Close()
	}
}
