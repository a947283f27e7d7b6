//go:build !darwin && cgo

package hal

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// objectBase offsets PortAudio device indexes past UnknownObject and
// SystemObject.
const objectBase = 2

// portAudio emulates the property protocol on top of PortAudio's device
// list. PortAudio exposes no volume, mute or default-device control and
// no change notifications, so those reads fail as unsupported and
// listeners are accepted but never fire.
type portAudio struct {
	mu        sync.Mutex
	listeners map[uint64]ListenerToken
	nextID    uint64
}

// New initializes PortAudio and returns the backend.
func New() (Backend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &portAudio{listeners: make(map[uint64]ListenerToken)}, nil
}

func (p *portAudio) Name() string { return "portaudio" }

func (p *portAudio) Close() error {
	return portaudio.Terminate()
}

func (p *portAudio) device(obj ObjectID) (*portaudio.DeviceInfo, bool) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, false
	}
	idx := int(obj) - objectBase
	if idx < 0 || idx >= len(devices) {
		return nil, false
	}
	return devices[idx], true
}

// value builds the payload for key. A nil slice with no error is an
// absent property.
func (p *portAudio) value(op string, obj ObjectID, key PropertyKey) ([]byte, error) {
	if obj == SystemObject {
		switch key {
		case DevicesKey():
			devices, err := portaudio.Devices()
			if err != nil {
				return nil, &HardwareQueryError{Op: op, Object: obj, Key: key, Err: fmt.Errorf("%w: %v", ErrQueryFailed, err)}
			}
			buf := make([]byte, 0, len(devices)*scalarSize)
			for _, d := range devices {
				buf = binary.LittleEndian.AppendUint32(buf, uint32(d.Index+objectBase))
			}
			return buf, nil
		case DefaultDeviceKey(Output), DefaultDeviceKey(Input):
			get := portaudio.DefaultOutputDevice
			if key.Selector == SelectorDefaultInputDevice {
				get = portaudio.DefaultInputDevice
			}
			id := uint32(UnknownObject)
			if d, err := get(); err == nil && d != nil {
				id = uint32(d.Index + objectBase)
			}
			return encodeUint32(id), nil
		}
		return nil, queryError(op, obj, key, statusUnknownProperty)
	}

	d, ok := p.device(obj)
	if !ok {
		return nil, queryError(op, obj, key, statusBadObject)
	}
	switch key {
	case NameKey():
		return []byte(d.Name), nil
	case StreamsKey(Output):
		return streamIDs(obj, d.MaxOutputChannels), nil
	case StreamsKey(Input):
		return streamIDs(obj, d.MaxInputChannels), nil
	}
	return nil, queryError(op, obj, key, statusUnknownProperty)
}

// streamIDs reports a single synthetic stream when the device has channels.
func streamIDs(obj ObjectID, channels int) []byte {
	if channels <= 0 {
		return nil
	}
	return encodeUint32(uint32(obj) << 8)
}

func (p *portAudio) PropertyDataSize(obj ObjectID, key PropertyKey) (uint32, error) {
	v, err := p.value("size", obj, key)
	if err != nil {
		return 0, err
	}
	return uint32(len(v)), nil
}

func (p *portAudio) PropertyData(obj ObjectID, key PropertyKey, buf []byte) (int, error) {
	v, err := p.value("read", obj, key)
	if err != nil {
		return 0, err
	}
	return copy(buf, v), nil
}

func (p *portAudio) SetPropertyData(obj ObjectID, key PropertyKey, data []byte) error {
	if _, err := p.value("write", obj, key); err != nil {
		return err
	}
	return queryError("write", obj, key, statusIllegalOp)
}

func (p *portAudio) AddListener(obj ObjectID, key PropertyKey, fn func()) (ListenerToken, error) {
	if _, err := p.value("listen", obj, key); err != nil {
		return ListenerToken{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	tok := ListenerToken{Object: obj, Key: key, ID: p.nextID}
	p.listeners[tok.ID] = tok
	return tok, nil
}

func (p *portAudio) RemoveListener(tok ListenerToken) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if reg, ok := p.listeners[tok.ID]; !ok || reg != tok {
		return queryError("unlisten", tok.Object, tok.Key, statusIllegalOp)
	}
	delete(p.listeners, tok.ID)
	return nil
}
