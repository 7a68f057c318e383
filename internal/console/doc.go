// Package console implements the live operator console: a Bubble Tea view of
// one node's sensor readings and output states, fed by the node's UI
// WebSocket.
//
// The console speaks the same page protocol as the browser UI. It receives
// "sensor" and "device_update" pages and sends "device" pages when the
// operator toggles an output:
//
//	l  toggle the LED
//	n  toggle the pixel
//	a  hand both outputs back to the controllers (when the node allows it)
//	q  quit
package console
