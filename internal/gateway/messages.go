package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/muurk/climanode/internal/device"
)

// MQTT topics of the cloud RPC protocol.
const (
	TopicRPCRequest    = "v1/devices/me/rpc/request/+"
	TopicRPCRequestPfx = "v1/devices/me/rpc/request/"
	TopicRPCResponse   = "v1/devices/me/rpc/response/"
	TopicAttributes    = "v1/devices/me/attributes"
	TopicTelemetry     = "v1/devices/me/telemetry"
)

// UI page names.
const (
	PageDevice       = "device"
	PageDeviceUpdate = "device_update"
	PageSensor       = "sensor"
	PageSetting      = "setting"
	PageError        = "error"
)

// Output status strings shared by the UI and the REST API.
const (
	StatusOn   = "ON"
	StatusOff  = "OFF"
	StatusAuto = "AUTO"
)

// UIMessage is the WebSocket envelope.
type UIMessage struct {
	Page  string          `json:"page"`
	Value json.RawMessage `json:"value"`
}

// DeviceValue addresses one output by wire pin.
type DeviceValue struct {
	GPIO   int    `json:"gpio"`
	Status string `json:"status"`
}

// SensorValue is the sensor push payload.
type SensorValue struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	State       string  `json:"state"`
}

// ErrorValue is sent to a single UI connection.
type ErrorValue struct {
	Message string `json:"message"`
}

// SettingValue updates connection settings from the UI. Empty fields are
// left unchanged.
type SettingValue struct {
	SSID     string `json:"ssid,omitempty"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
	Server   string `json:"server,omitempty"`
	Port     string `json:"port,omitempty"`
}

// EncodeUI builds a UI message.
func EncodeUI(page string, value any) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(UIMessage{Page: page, Value: raw})
}

// StateResponse is returned by GET /api/state.
type StateResponse struct {
	Sensor           SensorValue     `json:"sensor"`
	Outputs          []OutputState   `json:"outputs"`
	WebserverRunning bool            `json:"webserver_running"`
	ReleaseEnabled   bool            `json:"release_enabled"`
	Cloud            CloudConnection `json:"cloud"`
	Version          string          `json:"version"`
}

// OutputState describes one named output.
type OutputState struct {
	Name     string `json:"name"`
	GPIO     int    `json:"gpio"`
	On       bool   `json:"on"`
	Override bool   `json:"override"`
}

// CloudConnection summarizes cloud settings without credentials.
type CloudConnection struct {
	Server   string `json:"server"`
	Port     string `json:"port"`
	HasToken bool   `json:"has_token"`
}

// CommandRequest is the body of POST /api/command.
type CommandRequest struct {
	GPIO   int    `json:"gpio"`
	Status string `json:"status"`
}

// CommandResponse reports the dispatched outcome of an API command.
type CommandResponse struct {
	GPIO          int    `json:"gpio"`
	Status        string `json:"status"`
	Accepted      bool   `json:"accepted"`
	Pending       bool   `json:"pending,omitempty"`
	CorrelationID string `json:"correlation_id"`
}

// ErrorResponse is the JSON error body of the REST API.
type ErrorResponse struct {
	Error string `json:"error"`
}

// commandFor maps a wire pin and status to a command. AUTO is only valid for
// named outputs when release is allowed.
func commandFor(pins device.PinMap, gpio int, status string, allowRelease bool) (device.Command, error) {
	target := pins.Resolve(gpio)
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case StatusOn:
		return device.Command{Target: target, DesiredState: true, Action: device.ActionSet}, nil
	case StatusOff:
		return device.Command{Target: target, DesiredState: false, Action: device.ActionSet}, nil
	case StatusAuto:
		if !allowRelease || !target.Overridable() {
			return device.Command{}, device.NewMalformedError("invalid status", nil)
		}
		return device.Command{Target: target, Action: device.ActionRelease}, nil
	default:
		return device.Command{}, device.NewMalformedError(fmt.Sprintf("invalid status %q", status), nil)
	}
}

// attributeKey is the client attribute a result is pushed under.
func attributeKey(id device.ActuatorID) string {
	switch id.Kind {
	case device.KindLed:
		return "LED_GPIO"
	case device.KindNeoPixel:
		return "NEO_GPIO"
	default:
		return fmt.Sprintf("GPIO_%d", id.Pin)
	}
}
