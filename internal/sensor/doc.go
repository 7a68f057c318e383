// Package sensor acquires temperature and humidity readings and stores them
// in the state store.
//
// A Source produces readings: Simulated performs a bounded random walk and
// Serial reads lines from a microcontroller over a serial port. Monitor polls
// a Source on a fixed interval. A failed read is stored as NaN so the store
// keeps the last good value for the affected fields.
//
// Classify maps a reading to the display state shown by the UI.
package sensor
