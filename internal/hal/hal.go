package hal

import "fmt"

// ObjectID identifies an audio object (the system object or a device).
// Device ids are assigned by the platform, are not stable across
// reconnects and may be reused for a different device.
type ObjectID uint32

const (
	// UnknownObject is the id the platform reports when there is no object.
	UnknownObject ObjectID = 0
	// SystemObject is the root object owning the device list and defaults.
	SystemObject ObjectID = 1
)

// Selector names the attribute a property key addresses.
type Selector uint32

// Scope partitions an object's properties by direction.
type Scope uint32

// Element addresses a channel of an object; ElementMain is the whole object.
type Element uint32

// Four-char codes, bit-exact with the platform's property addressing scheme.
const (
	SelectorDevices             Selector = 'd'<<24 | 'e'<<16 | 'v'<<8 | '#'
	SelectorDefaultOutputDevice Selector = 'd'<<24 | 'O'<<16 | 'u'<<8 | 't'
	SelectorDefaultInputDevice  Selector = 'd'<<24 | 'I'<<16 | 'n'<<8 | ' '
	SelectorStreams             Selector = 's'<<24 | 't'<<16 | 'm'<<8 | '#'
	SelectorVirtualMainVolume   Selector = 'v'<<24 | 'm'<<16 | 'v'<<8 | 'c'
	SelectorMute                Selector = 'm'<<24 | 'u'<<16 | 't'<<8 | 'e'
	SelectorDeviceNameCFString  Selector = 'l'<<24 | 'n'<<16 | 'a'<<8 | 'm'
	ScopeGlobal                 Scope    = 'g'<<24 | 'l'<<16 | 'o'<<8 | 'b'
	ScopeInput                  Scope    = 'i'<<24 | 'n'<<16 | 'p'<<8 | 't'
	ScopeOutput                 Scope    = 'o'<<24 | 'u'<<16 | 't'<<8 | 'p'
	ElementMain                 Element  = 0
)

// PropertyKey addresses one hardware-exposed attribute.
type PropertyKey struct {
	Selector Selector
	Scope    Scope
	Element  Element
}

func (k PropertyKey) String() string {
	return fmt.Sprintf("%s/%s/%d", fourCC(uint32(k.Selector)), fourCC(uint32(k.Scope)), k.Element)
}

func fourCC(v uint32) string {
	b := []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return fmt.Sprintf("0x%08x", v)
		}
	}
	return "'" + string(b) + "'"
}

// ListenerToken is the handle returned when a listener is added. It
// carries the exact object and key used at registration so the listener
// can be removed with the same address.
type ListenerToken struct {
	Object ObjectID
	Key    PropertyKey
	ID     uint64
}

// Hardware is the raw property protocol of an audio subsystem.
//
// Listener callbacks may be invoked on any thread, concurrently with
// other calls.
type Hardware interface {
	PropertyDataSize(obj ObjectID, key PropertyKey) (uint32, error)
	PropertyData(obj ObjectID, key PropertyKey, buf []byte) (int, error)
	SetPropertyData(obj ObjectID, key PropertyKey, data []byte) error
	AddListener(obj ObjectID, key PropertyKey, fn func()) (ListenerToken, error)
	RemoveListener(tok ListenerToken) error
}

// Backend is a Hardware owning platform resources.
type Backend interface {
	Hardware
	Name() string
	Close() error
}
