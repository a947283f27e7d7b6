// Package audio enumerates audio devices and applies volume, mute and
// default-device commands through the hal property protocol.
package audio

import (
	"slices"

	"github.com/petems/iotray/internal/hal"
)

// Device is one entry of a published device list. It is a value: a
// refresh replaces the whole list instead of editing entries. IDs are
// only meaningful within the refresh that produced them.
type Device struct {
	ID        hal.ObjectID
	Name      string
	Direction hal.Direction
	Volume    float32 // always within [0,1]
	Muted     bool
	IsDefault bool
}

// Snapshot is the published state: one list per direction, in hardware
// enumeration order.
type Snapshot struct {
	Outputs []Device
	Inputs  []Device
}

// List returns the list for dir.
func (s Snapshot) List(dir hal.Direction) []Device {
	if dir == hal.Input {
		return s.Inputs
	}
	return s.Outputs
}

// Find returns the device with id in dir's list.
func (s Snapshot) Find(dir hal.Direction, id hal.ObjectID) (Device, bool) {
	for _, d := range s.List(dir) {
		if d.ID == id {
			return d, true
		}
	}
	return Device{}, false
}

// Default returns the device marked default in dir's list.
func (s Snapshot) Default(dir hal.Direction) (Device, bool) {
	for _, d := range s.List(dir) {
		if d.IsDefault {
			return d, true
		}
	}
	return Device{}, false
}

func (s Snapshot) clone() Snapshot {
	return Snapshot{
		Outputs: slices.Clone(s.Outputs),
		Inputs:  slices.Clone(s.Inputs),
	}
}

// Equal reports whether both snapshots hold the same devices in the same order.
func (s Snapshot) Equal(o Snapshot) bool {
	return slices.Equal(s.Outputs, o.Outputs) && slices.Equal(s.Inputs, o.Inputs)
}
