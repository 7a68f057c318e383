package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/muurk/climanode/internal/device"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveResult(device.Result{Target: device.Led, Accepted: true})
	m.Backpressure(device.ChannelCloud)
	m.LockTimeout("telemetry")
	m.SetQueueDepth(3)
	m.ObserveReading(device.DefaultReading())
	m.SinkError("influx")
	m.SetCloudConnected(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("nil handler status = %d, want 404", rec.Code)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveResult(device.Result{Target: device.Led, NewState: true, Accepted: true, Origin: device.ChannelCloud})
	m.ObserveReading(device.Reading{Temperature: 23.5, Humidity: 41})
	m.Backpressure(device.ChannelUI)

	srv := httptest.NewServer(m.WrapHandler("/metrics", m.Handler()))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`climanode_commands_total{accepted="true",origin="cloud",target="led"} 1`,
		`climanode_actuator_state{target="led"} 1`,
		`climanode_temperature_celsius 23.5`,
		`climanode_command_backpressure_total{origin="ui"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestActuatorStateFollowsAcceptedResults(t *testing.T) {
	m := New()
	m.ObserveResult(device.Result{Target: device.Led, NewState: true, Accepted: true, Origin: device.ChannelUI})
	m.ObserveResult(device.Result{Target: device.Led, NewState: false, Accepted: false, Origin: device.ChannelUI})
	m.ObserveResult(device.Result{Target: device.NeoPixel, NewState: false, Accepted: true, Origin: device.ChannelCloud})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`climanode_actuator_state{target="led"} 1`,
		`climanode_actuator_state{target="neopixel"} 0`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
