// Package periph holds the types shared by every peripheral capability:
// pin addressing and transfer timeout budgets.
//
// A capability is an interface describing the operation set of one
// peripheral class (gpio.Conn, uart.Conn, spi.Conn, i2c.Conn). Drivers for
// higher peripherals are written generically over "anything satisfying the
// lower capability":
//
//	type Master[G gpio.Conn] struct{ ... }
//
// Instantiated with a concrete type the compiler monomorphises and inlines
// every call; instantiated with the capability interface itself the same
// source dispatches through the interface table. Both bindings come from one
// driver source, so test doubles, run-time composition and nested drivers
// (a bit-banged bus whose pins belong to another driver) need no special
// casing. Conformance of a concrete driver is checked where the driver is
// authored, with the usual compile-time assertions:
//
//	var _ gpio.Conn = (*Matrix)(nil)
//
// or, equivalently, by instantiating the capability's Verify function.
package periph
