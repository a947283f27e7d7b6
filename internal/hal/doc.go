// Package hal talks to the platform audio hardware through its
// property-query protocol.
//
// Every attribute of an audio object is addressed by a PropertyKey (a
// selector, scope and element triple). Reads are two-phase: the size of
// the value is queried first and the value is then fetched into a
// buffer of exactly that size. Writes are a single step.
//
// The package follows a types / native / stub split:
//   - hal.go, address.go, codec.go, errors.go: common protocol types
//   - coreaudio_darwin.go: CoreAudio implementation (darwin, cgo)
//   - portaudio.go: PortAudio emulation of the protocol (other cgo platforms)
//   - stub.go: fallback without cgo
//   - fake.go: in-memory subsystem used by tests and simulation mode
package hal
