// Package control implements the autonomous controllers that drive the LED
// from temperature and the pixel from humidity.
//
// Both controllers classify a reading into one of three bands with
// SelectBand. A controller never writes while its actuator is overridden:
// the override flag is re-read inside the actuator's exclusion guard right
// before every write, so a remote command that raised the override first is
// never undone by a late autonomous write.
package control
