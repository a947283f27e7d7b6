package hal

import (
	"encoding/binary"
	"math"
	"slices"
	"sync"
)

// FakeDevice describes a simulated device for Fake.AddDevice.
type FakeDevice struct {
	ID      ObjectID
	Name    string // empty: the name property is absent
	Outputs int    // number of output streams
	Inputs  int    // number of input streams

	OutputVolume float32
	InputVolume  float32
	OutputMuted  bool
	InputMuted   bool

	// NoVolume and NoMute hide the controls, as on devices without
	// hardware volume or mute.
	NoVolume bool
	NoMute   bool
}

type fakeListener struct {
	obj ObjectID
	key PropertyKey
	fn  func()
}

// FakeStats counts listener bookkeeping on a Fake.
type FakeStats struct {
	Added      int
	Removed    int
	BadRemoves int // removals for tokens that were never added or already removed
	Live       int
}

// Fake is an in-memory audio subsystem speaking the same property
// protocol as the platform. Listener callbacks are delivered on their
// own goroutines, like notifications from a platform thread.
type Fake struct {
	mu        sync.Mutex
	order     []ObjectID
	props     map[ObjectID]map[PropertyKey][]byte
	listeners map[uint64]fakeListener
	nextID    uint64
	stats     FakeStats
	rejects   map[PropertyKey]error
	pending   sync.WaitGroup
	closed    bool

	// OnWrite, if set, runs after every accepted write, outside the lock.
	OnWrite func(obj ObjectID, key PropertyKey)
}

// NewFake returns an empty simulated subsystem with no defaults set.
func NewFake() *Fake {
	f := &Fake{
		props:     make(map[ObjectID]map[PropertyKey][]byte),
		listeners: make(map[uint64]fakeListener),
		rejects:   make(map[PropertyKey]error),
	}
	f.props[SystemObject] = map[PropertyKey][]byte{
		DevicesKey():             nil,
		DefaultDeviceKey(Output): encodeUint32(uint32(UnknownObject)),
		DefaultDeviceKey(Input):  encodeUint32(uint32(UnknownObject)),
	}
	return f
}

// NewDemoFake returns a Fake populated with a few typical devices.
func NewDemoFake() *Fake {
	f := NewFake()
	f.AddDevice(FakeDevice{ID: 41, Name: "MacBook Pro Speakers", Outputs: 1, OutputVolume: 0.6})
	f.AddDevice(FakeDevice{ID: 52, Name: "MacBook Pro Microphone", Inputs: 1, InputVolume: 0.8})
	f.AddDevice(FakeDevice{ID: 67, Name: "USB Audio Interface", Outputs: 2, Inputs: 2, OutputVolume: 0.4, InputVolume: 0.5})
	f.AddDevice(FakeDevice{ID: 73, Name: "HDMI Display", Outputs: 1, NoVolume: true, NoMute: true})
	f.SetDefault(Output, 41)
	f.SetDefault(Input, 52)
	return f
}

func (f *Fake) Name() string { return "simulated" }

// Close stops delivering notifications.
func (f *Fake) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.pending.Wait()
	return nil
}

// AddDevice attaches a device at the end of the enumeration order and
// notifies device-list listeners.
func (f *Fake) AddDevice(d FakeDevice) {
	f.mu.Lock()
	props := make(map[PropertyKey][]byte)
	if d.Name != "" {
		props[NameKey()] = []byte(d.Name)
	}
	f.addScope(props, Output, d.Outputs, d.OutputVolume, d.OutputMuted, d)
	f.addScope(props, Input, d.Inputs, d.InputVolume, d.InputMuted, d)
	f.props[d.ID] = props
	if !slices.Contains(f.order, d.ID) {
		f.order = append(f.order, d.ID)
	}
	f.syncDeviceListLocked()
	f.notifyLocked(SystemObject, DevicesKey())
	f.mu.Unlock()
}

func (f *Fake) addScope(props map[PropertyKey][]byte, dir Direction, streams int, vol float32, muted bool, d FakeDevice) {
	if streams <= 0 {
		return
	}
	ids := make([]byte, 0, streams*scalarSize)
	for i := 0; i < streams; i++ {
		ids = binary.LittleEndian.AppendUint32(ids, uint32(d.ID)<<8|uint32(i))
	}
	props[StreamsKey(dir)] = ids
	if !d.NoVolume {
		props[VolumeKey(dir)] = encodeUint32(math.Float32bits(vol))
	}
	if !d.NoMute {
		m := uint32(0)
		if muted {
			m = 1
		}
		props[MuteKey(dir)] = encodeUint32(m)
	}
}

// RemoveDevice detaches a device. Defaults pointing at it are reset to
// UnknownObject, as the platform does when the default device vanishes.
func (f *Fake) RemoveDevice(id ObjectID) {
	f.mu.Lock()
	delete(f.props, id)
	f.order = slices.DeleteFunc(f.order, func(o ObjectID) bool { return o == id })
	f.syncDeviceListLocked()
	f.notifyLocked(SystemObject, DevicesKey())
	for _, dir := range []Direction{Output, Input} {
		key := DefaultDeviceKey(dir)
		if ObjectID(binary.LittleEndian.Uint32(f.props[SystemObject][key])) == id {
			f.props[SystemObject][key] = encodeUint32(uint32(UnknownObject))
			f.notifyLocked(SystemObject, key)
		}
	}
	f.mu.Unlock()
}

// SetDefault changes the default device from the hardware side.
func (f *Fake) SetDefault(dir Direction, id ObjectID) {
	f.mu.Lock()
	f.props[SystemObject][DefaultDeviceKey(dir)] = encodeUint32(uint32(id))
	f.notifyLocked(SystemObject, DefaultDeviceKey(dir))
	f.mu.Unlock()
}

// Reject makes every write to key fail with err until cleared with a nil err.
func (f *Fake) Reject(key PropertyKey, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.rejects, key)
		return
	}
	f.rejects[key] = err
}

// Fire delivers a notification for key to its listeners, as the
// platform would for a change not made through this Fake.
func (f *Fake) Fire(obj ObjectID, key PropertyKey) {
	f.mu.Lock()
	f.notifyLocked(obj, key)
	f.mu.Unlock()
}

// Flush waits until every delivered notification callback has returned.
func (f *Fake) Flush() {
	f.pending.Wait()
}

func (f *Fake) Stats() FakeStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.stats
	s.Live = len(f.listeners)
	return s
}

// Float32 returns the raw stored Float32 value of a property, for tests.
func (f *Fake) Float32(obj ObjectID, key PropertyKey) (float32, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.props[obj][key]
	if !ok || len(v) < scalarSize {
		return 0, false
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(v)), true
}

// SetRaw stores an arbitrary value, bypassing validation.
func (f *Fake) SetRaw(obj ObjectID, key PropertyKey, data []byte) {
	f.mu.Lock()
	if f.props[obj] == nil {
		f.props[obj] = make(map[PropertyKey][]byte)
	}
	f.props[obj][key] = slices.Clone(data)
	f.mu.Unlock()
}

func (f *Fake) syncDeviceListLocked() {
	ids := make([]byte, 0, len(f.order)*scalarSize)
	for _, id := range f.order {
		ids = binary.LittleEndian.AppendUint32(ids, uint32(id))
	}
	f.props[SystemObject][DevicesKey()] = ids
}

func (f *Fake) notifyLocked(obj ObjectID, key PropertyKey) {
	if f.closed {
		return
	}
	for _, l := range f.listeners {
		if l.obj != obj || l.key != key {
			continue
		}
		f.pending.Add(1)
		go func(fn func()) {
			defer f.pending.Done()
			fn()
		}(l.fn)
	}
}

func (f *Fake) lookupLocked(op string, obj ObjectID, key PropertyKey) ([]byte, error) {
	props, ok := f.props[obj]
	if !ok {
		return nil, queryError(op, obj, key, statusBadObject)
	}
	v, ok := props[key]
	if !ok {
		return nil, queryError(op, obj, key, statusUnknownProperty)
	}
	return v, nil
}

func (f *Fake) PropertyDataSize(obj ObjectID, key PropertyKey) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, err := f.lookupLocked("size", obj, key)
	if err != nil {
		return 0, err
	}
	return uint32(len(v)), nil
}

func (f *Fake) PropertyData(obj ObjectID, key PropertyKey, buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, err := f.lookupLocked("read", obj, key)
	if err != nil {
		return 0, err
	}
	return copy(buf, v), nil
}

func (f *Fake) SetPropertyData(obj ObjectID, key PropertyKey, data []byte) error {
	f.mu.Lock()
	cur, err := f.lookupLocked("write", obj, key)
	if err == nil {
		err = f.rejects[key]
	}
	if err == nil && len(data) != len(cur) {
		err = queryError("write", obj, key, statusBadPropertySize)
	}
	if err == nil && obj == SystemObject && (key.Selector == SelectorDefaultOutputDevice || key.Selector == SelectorDefaultInputDevice) {
		err = f.checkDefaultLocked(key, ObjectID(binary.LittleEndian.Uint32(data)))
	}
	if err != nil {
		f.mu.Unlock()
		return err
	}
	f.props[obj][key] = slices.Clone(data)
	f.notifyLocked(obj, key)
	hook := f.OnWrite
	f.mu.Unlock()

	if hook != nil {
		hook(obj, key)
	}
	return nil
}

// checkDefaultLocked accepts only devices with streams in the key's direction.
func (f *Fake) checkDefaultLocked(key PropertyKey, id ObjectID) error {
	dir := Output
	if key.Selector == SelectorDefaultInputDevice {
		dir = Input
	}
	props, ok := f.props[id]
	if !ok || id == SystemObject {
		return queryError("write", SystemObject, key, statusIllegalOp)
	}
	if len(props[StreamsKey(dir)]) == 0 {
		return queryError("write", SystemObject, key, statusIllegalOp)
	}
	return nil
}

func (f *Fake) AddListener(obj ObjectID, key PropertyKey, fn func()) (ListenerToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.lookupLocked("listen", obj, key); err != nil {
		return ListenerToken{}, err
	}
	f.nextID++
	tok := ListenerToken{Object: obj, Key: key, ID: f.nextID}
	f.listeners[tok.ID] = fakeListener{obj: obj, key: key, fn: fn}
	f.stats.Added++
	return tok, nil
}

func (f *Fake) RemoveListener(tok ListenerToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.listeners[tok.ID]
	if !ok || l.obj != tok.Object || l.key != tok.Key {
		f.stats.BadRemoves++
		return queryError("unlisten", tok.Object, tok.Key, statusIllegalOp)
	}
	delete(f.listeners, tok.ID)
	f.stats.Removed++
	return nil
}
