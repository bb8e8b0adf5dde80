// Package bus is the transport layer that kickstart modules are published on.
//
// A Bus exports Objects at object paths and claims well-known service names.
// Conn is the D-Bus implementation backed by godbus; MemoryBus is an
// in-process stand-in for the message bus daemon used by tests.
//
// An Object describes a single D-Bus interface as plain Go values: a method
// table, a table of read-only property getters and, optionally, the signals
// it emits. The same tables are used to answer org.freedesktop.DBus.Properties
// and org.freedesktop.DBus.Introspectable calls, so an Object never needs to
// know which transport it is exported on.
package bus
