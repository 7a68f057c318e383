// Package device defines the data model shared by every climanode component.
//
// It holds the sensor Reading, the actuator identifiers, the normalized
// Command produced by the remote gateways and the Result published by the
// dispatcher, plus the typed errors the core recovers from.
//
// # Actuators
//
// Three actuator kinds exist:
//
//   - Led: the binary LED driven by the temperature controller
//   - NeoPixel: the addressable RGB pixel driven by the humidity controller
//   - GenericGpio(pin): a stateless pass-through output with no autonomous owner
//
// Led and NeoPixel are identified by kind alone. The GPIO numbers shown on the
// wire are resolved through a PinMap so that override bookkeeping never
// depends on board wiring.
//
// # Commands
//
// A Command is created once by a gateway adapter and consumed exactly once by
// the dispatcher. It is a plain value and is never mutated after creation.
package device
