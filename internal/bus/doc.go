// Package bus carries commands from the gateway adapters to the dispatcher
// and results back from the dispatcher to whoever is listening.
//
// Queue is a bounded FIFO. Producers wait at most a fixed timeout for a free
// slot and get device.ErrBackpressure otherwise; the single consumer blocks
// until a command arrives or its context is cancelled.
//
// Hub fans results out. It supports two kinds of listener:
//
//   - Subscribe returns a durable subscription that receives every result in
//     publish order (the gateway adapters use these).
//   - Await registers a one-shot waiter keyed by correlation id that receives
//     only the matching result and is then removed (the operator API uses it
//     to answer a request with its outcome).
package bus
