// Package mock provides in-memory peripheral backends: scriptable targets
// for the uart/spi/i2c engines and a GPIO pin matrix with external drive and
// wired-AND semantics. They serve unit tests and the capcon console board;
// none of them are safe for concurrent use, matching the single-caller
// contract of the capabilities they back.
package mock
