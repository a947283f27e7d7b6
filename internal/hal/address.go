package hal

// Direction is the audio scope a device list, command or query refers to.
type Direction int

const (
	Output Direction = iota
	Input
)

func (d Direction) String() string {
	if d == Input {
		return "input"
	}
	return "output"
}

// Scope maps a direction to the hardware scope code.
func (d Direction) Scope() Scope {
	if d == Input {
		return ScopeInput
	}
	return ScopeOutput
}

// DevicesKey addresses the list of all device ids on the system object.
func DevicesKey() PropertyKey {
	return PropertyKey{SelectorDevices, ScopeGlobal, ElementMain}
}

// DefaultDeviceKey addresses the default device for d on the system object.
func DefaultDeviceKey(d Direction) PropertyKey {
	sel := SelectorDefaultOutputDevice
	if d == Input {
		sel = SelectorDefaultInputDevice
	}
	return PropertyKey{sel, ScopeGlobal, ElementMain}
}

func StreamsKey(d Direction) PropertyKey {
	return PropertyKey{SelectorStreams, d.Scope(), ElementMain}
}

func VolumeKey(d Direction) PropertyKey {
	return PropertyKey{SelectorVirtualMainVolume, d.Scope(), ElementMain}
}

func MuteKey(d Direction) PropertyKey {
	return PropertyKey{SelectorMute, d.Scope(), ElementMain}
}

func NameKey() PropertyKey {
	return PropertyKey{SelectorDeviceNameCFString, ScopeGlobal, ElementMain}
}
