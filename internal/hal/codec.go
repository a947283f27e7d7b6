package hal

import (
	"encoding/binary"
	"math"
)

// scalarSize is the size of every fixed-size scalar payload (object ids,
// Float32 volumes, UInt32 mute flags).
const scalarSize = 4

// Codec reads and writes typed property values. It holds no state of its
// own beyond the Hardware it talks to.
type Codec struct {
	hw Hardware
}

func NewCodec(hw Hardware) Codec {
	return Codec{hw: hw}
}

// PropertySize runs only the first phase of a read.
func (c Codec) PropertySize(obj ObjectID, key PropertyKey) (uint32, error) {
	return c.hw.PropertyDataSize(obj, key)
}

// ReadProperty performs the two-phase read: it queries the size of the
// value, then fetches into a buffer of exactly that size. A size of 0
// means the property is absent and returns (nil, nil).
func (c Codec) ReadProperty(obj ObjectID, key PropertyKey) ([]byte, error) {
	size, err := c.hw.PropertyDataSize(obj, key)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}

	buf := make([]byte, size)
	n, err := c.hw.PropertyData(obj, key, buf)
	if err != nil {
		return nil, err
	}
	// The value may shrink between the two phases (a device vanished
	// from the list), never grow past the buffer.
	return buf[:n], nil
}

// WriteProperty sends data in a single step.
func (c Codec) WriteProperty(obj ObjectID, key PropertyKey, data []byte) error {
	return c.hw.SetPropertyData(obj, key, data)
}

// ReadObjectIDs decodes an array of object ids.
func (c Codec) ReadObjectIDs(obj ObjectID, key PropertyKey) ([]ObjectID, error) {
	data, err := c.ReadProperty(obj, key)
	if err != nil {
		return nil, err
	}

	ids := make([]ObjectID, 0, len(data)/scalarSize)
	for len(data) >= scalarSize {
		ids = append(ids, ObjectID(binary.LittleEndian.Uint32(data)))
		data = data[scalarSize:]
	}
	return ids, nil
}

func (c Codec) ReadObjectID(obj ObjectID, key PropertyKey) (ObjectID, error) {
	v, err := c.ReadUint32(obj, key)
	return ObjectID(v), err
}

func (c Codec) ReadUint32(obj ObjectID, key PropertyKey) (uint32, error) {
	data, err := c.readScalar(obj, key)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

// ReadFloat32 decodes a Float32 scalar. Volume readers clamp the result
// with ClampVolume.
func (c Codec) ReadFloat32(obj ObjectID, key PropertyKey) (float32, error) {
	v, err := c.ReadUint32(obj, key)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadString returns the UTF-8 value of a string property. An absent
// value is reported as ErrUnsupportedProperty.
func (c Codec) ReadString(obj ObjectID, key PropertyKey) (string, error) {
	data, err := c.ReadProperty(obj, key)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", &HardwareQueryError{Op: "read", Object: obj, Key: key, Err: ErrUnsupportedProperty}
	}
	return string(data), nil
}

func (c Codec) WriteObjectID(obj ObjectID, key PropertyKey, id ObjectID) error {
	return c.WriteProperty(obj, key, encodeUint32(uint32(id)))
}

// WriteVolume clamps v to [0,1] before sending it.
func (c Codec) WriteVolume(obj ObjectID, key PropertyKey, v float32) error {
	return c.WriteProperty(obj, key, encodeUint32(math.Float32bits(ClampVolume(v))))
}

// WriteMute encodes muted as a 0/1 UInt32.
func (c Codec) WriteMute(obj ObjectID, key PropertyKey, muted bool) error {
	var v uint32
	if muted {
		v = 1
	}
	return c.WriteProperty(obj, key, encodeUint32(v))
}

func (c Codec) readScalar(obj ObjectID, key PropertyKey) ([]byte, error) {
	data, err := c.ReadProperty(obj, key)
	if err != nil {
		return nil, err
	}
	if len(data) < scalarSize {
		return nil, &HardwareQueryError{Op: "read", Object: obj, Key: key, Status: statusBadPropertySize, Err: ErrUnsupportedProperty}
	}
	return data, nil
}

// ClampVolume bounds v to [0,1]. NaN becomes 0.
func ClampVolume(v float32) float32 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func encodeUint32(v uint32) []byte {
	b := make([]byte, scalarSize)
	binary.LittleEndian.PutUint32(b, v)
	return b
}
