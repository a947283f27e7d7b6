package video

import (
	"errors"
	"slices"
	"sync"
)

type fakeSub struct {
	ev Event
	fn func()
}

// Fake is an in-memory capture subsystem. Notifications are delivered
// on their own goroutines.
type Fake struct {
	mu         sync.Mutex
	devices    []CaptureDevice
	defaultID  string
	subs       map[uint64]fakeSub
	next       uint64
	failList   error
	added      int
	removed    int
	badRemoves int
	pending    sync.WaitGroup
}

func NewFake() *Fake {
	return &Fake{subs: make(map[uint64]fakeSub)}
}

// NewDemoFake returns a Fake with a built-in and an external camera.
func NewDemoFake() *Fake {
	f := NewFake()
	f.Connect(CaptureDevice{ID: "0x1420000005ac8600", Name: "FaceTime HD Camera"})
	f.Connect(CaptureDevice{ID: "0x14100000046d0892", Name: "HD Pro Webcam C920"})
	f.SetDefault("0x1420000005ac8600")
	return f
}

func (f *Fake) Name() string { return "simulated" }

func (f *Fake) Close() error {
	f.pending.Wait()
	return nil
}

// Connect appends a camera and notifies Connected subscribers.
func (f *Fake) Connect(d CaptureDevice) {
	f.mu.Lock()
	f.devices = slices.DeleteFunc(f.devices, func(c CaptureDevice) bool { return c.ID == d.ID })
	f.devices = append(f.devices, d)
	f.notifyLocked(Connected)
	f.mu.Unlock()
}

// Disconnect removes a camera and notifies Disconnected subscribers.
func (f *Fake) Disconnect(id string) {
	f.mu.Lock()
	f.devices = slices.DeleteFunc(f.devices, func(c CaptureDevice) bool { return c.ID == id })
	if f.defaultID == id {
		f.defaultID = ""
	}
	f.notifyLocked(Disconnected)
	f.mu.Unlock()
}

// SetInUse flips the exclusive-access flag without a notification, as
// the platform does.
func (f *Fake) SetInUse(id string, inUse bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.devices {
		if f.devices[i].ID == id {
			f.devices[i].InUse = inUse
		}
	}
}

func (f *Fake) SetDefault(id string) {
	f.mu.Lock()
	f.defaultID = id
	f.mu.Unlock()
}

// FailDevices makes Devices return err until cleared with nil.
func (f *Fake) FailDevices(err error) {
	f.mu.Lock()
	f.failList = err
	f.mu.Unlock()
}

// Flush waits for delivered notifications to return.
func (f *Fake) Flush() {
	f.pending.Wait()
}

// Subscriptions returns the number of adds, removes, rejected removes
// and live subscriptions.
func (f *Fake) Subscriptions() (added, removed, badRemoves, live int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.added, f.removed, f.badRemoves, len(f.subs)
}

func (f *Fake) notifyLocked(ev Event) {
	for _, s := range f.subs {
		if s.ev != ev {
			continue
		}
		f.pending.Add(1)
		go func(fn func()) {
			defer f.pending.Done()
			fn()
		}(s.fn)
	}
}

func (f *Fake) Devices() ([]CaptureDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList != nil {
		return nil, f.failList
	}
	return slices.Clone(f.devices), nil
}

func (f *Fake) DefaultDeviceID() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.defaultID, f.defaultID != ""
}

func (f *Fake) Subscribe(ev Event, fn func()) (func() error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := f.next
	f.subs[id] = fakeSub{ev: ev, fn: fn}
	f.added++

	return func() error {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.subs[id]; !ok {
			f.badRemoves++
			return errors.New("subscription already removed")
		}
		delete(f.subs, id)
		f.removed++
		return nil
	}, nil
}
