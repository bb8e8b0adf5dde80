// Package module contains the building blocks of a kickstart module: the
// capability set every module implements, the Base that carries the shared
// lifecycle, and the Interface adapter that exposes a module on the bus.
//
// A module moves through Unpublished, Published and Stopped. Publish is the
// only way into Published and Stop (or Quit over the bus) the only way out.
// Everything except the static kickstart capability listings requires the
// Published state.
package module
