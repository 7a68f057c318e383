// Package actuator drives the node's physical outputs.
//
// A Driver talks to hardware (or simulates it). A Board wraps a Driver with
// per-actuator exclusion: every write to an output happens inside
// Board.Exclusive for that output, which lets the autonomous controllers
// re-check the override flag and write as one step with respect to the
// dispatcher.
//
// Two drivers ship with the package:
//
//   - Simulated records every write in memory and can inject failures. It is
//     the default on hosts without a GPIO character device and in tests.
//   - Chip drives Linux GPIO lines through the gpiocdev character device API.
//     The pixel is wired as three lines (red, green, blue) of a common
//     cathode RGB LED; a channel is lit when its component is non-zero.
package actuator
