package audio

import (
	"github.com/petems/iotray/internal/hal"
	"github.com/rs/zerolog"
)

// Fallbacks for properties a device does not expose or fails to report.
const (
	fallbackVolume float32 = 1.0
	fallbackMuted          = false
)

// Enumerator builds device lists from live hardware. It keeps no state
// between calls.
type Enumerator struct {
	codec hal.Codec
	log   zerolog.Logger
}

func NewEnumerator(hw hal.Hardware, log zerolog.Logger) Enumerator {
	return Enumerator{codec: hal.NewCodec(hw), log: log}
}

// ListDeviceIDs returns every device id in hardware enumeration order.
// A failed query yields no ids.
func (e Enumerator) ListDeviceIDs() []hal.ObjectID {
	ids, err := e.codec.ReadObjectIDs(hal.SystemObject, hal.DevicesKey())
	if err != nil {
		e.log.Debug().Err(err).Msg("Failed to list audio devices")
		return nil
	}
	return ids
}

// HasStreams reports whether id has at least one stream in dir.
func (e Enumerator) HasStreams(id hal.ObjectID, dir hal.Direction) bool {
	size, err := e.codec.PropertySize(id, hal.StreamsKey(dir))
	return err == nil && size > 0
}

// ResolveDefault returns the current default device for dir.
func (e Enumerator) ResolveDefault(dir hal.Direction) (hal.ObjectID, bool) {
	id, err := e.codec.ReadObjectID(hal.SystemObject, hal.DefaultDeviceKey(dir))
	if err != nil {
		e.log.Debug().Err(err).Stringer("direction", dir).Msg("Failed to resolve default device")
		return hal.UnknownObject, false
	}
	return id, id != hal.UnknownObject
}

// Name returns the device's name; false means it has none.
func (e Enumerator) Name(id hal.ObjectID) (string, bool) {
	name, err := e.codec.ReadString(id, hal.NameKey())
	if err != nil {
		return "", false
	}
	return name, true
}

// Volume returns the clamped main volume, or 1.0 when unavailable.
func (e Enumerator) Volume(id hal.ObjectID, dir hal.Direction) float32 {
	v, err := e.codec.ReadFloat32(id, hal.VolumeKey(dir))
	if err != nil {
		return fallbackVolume
	}
	return hal.ClampVolume(v)
}

// Muted returns the mute state, or false when unavailable.
func (e Enumerator) Muted(id hal.ObjectID, dir hal.Direction) bool {
	v, err := e.codec.ReadUint32(id, hal.MuteKey(dir))
	if err != nil {
		return fallbackMuted
	}
	return v != 0
}

// Devices builds the list for dir: devices without streams in dir and
// devices without a name are skipped, the default is resolved once.
func (e Enumerator) Devices(dir hal.Direction) []Device {
	ids := e.ListDeviceIDs()
	defaultID, hasDefault := e.ResolveDefault(dir)

	devices := make([]Device, 0, len(ids))
	for _, id := range ids {
		if !e.HasStreams(id, dir) {
			continue
		}
		name, ok := e.Name(id)
		if !ok {
			e.log.Debug().Uint32("id", uint32(id)).Msg("Skipping device without a name")
			continue
		}
		devices = append(devices, Device{
			ID:        id,
			Name:      name,
			Direction: dir,
			Volume:    e.Volume(id, dir),
			Muted:     e.Muted(id, dir),
			IsDefault: hasDefault && id == defaultID,
		})
	}
	return devices
}
