// Package device defines the BLE transport abstraction the session drives
// and the errors every backend reports through it.
//
// A backend implements Transport (discovery), Peripheral (a found box),
// Server (a live GATT link), Service, Characteristic and Subscription.
// Backend errors are mapped onto ConnectionError and NotFoundError with
// NormalizeError so callers can use errors.Is regardless of the stack.
//
// UUID helpers accept both 16-bit short forms and 128-bit forms and compare
// them after normalization.
package device
