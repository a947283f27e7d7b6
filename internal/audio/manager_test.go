package audio

import (
	"errors"
	"sync"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/petems/iotray/internal/coord"
	"github.com/petems/iotray/internal/hal"
	"github.com/rs/zerolog"
)

func newTestManager(t *testing.T, hw hal.Hardware) (*Manager, *coord.Loop) {
	t.Helper()
	loop := coord.New(zerolog.Nop())
	m, err := New(Config{Hardware: hw, Loop: loop, Logger: zerolog.Nop()})
	if err != nil {
		loop.Close()
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		m.Close()
		loop.Close()
	})
	return m, loop
}

// settle waits until every hardware notification has been delivered and
// the resyncs it posted have run.
func settle(t *testing.T, f *hal.Fake, loop *coord.Loop) {
	t.Helper()
	f.Flush()
	if err := loop.Do(func() {}); err != nil {
		t.Fatal(err)
	}
}

func abFake() *hal.Fake {
	f := hal.NewFake()
	f.AddDevice(hal.FakeDevice{ID: 10, Name: "A", Outputs: 1, OutputVolume: 0.8})
	f.AddDevice(hal.FakeDevice{ID: 11, Name: "B", Outputs: 1, OutputVolume: 0.3})
	f.SetDefault(hal.Output, 10)
	return f
}

func TestSetVolumeScenario(t *testing.T) {
	f := abFake()
	m, _ := newTestManager(t, f)

	m.SetVolume(hal.Output, 11, 0.5)
	m.Refresh()

	want := []Device{
		{ID: 10, Name: "A", Direction: hal.Output, Volume: 0.8, IsDefault: true},
		{ID: 11, Name: "B", Direction: hal.Output, Volume: 0.5},
	}
	got := m.Outputs()
	if len(got) != len(want) {
		t.Fatalf("outputs = %s", spew.Sdump(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("outputs[%d] = %s, want %s", i, spew.Sdump(got[i]), spew.Sdump(want[i]))
		}
	}
}

func TestSetVolumeClamps(t *testing.T) {
	f := abFake()
	m, _ := newTestManager(t, f)

	for _, v := range []float32{1.7, -0.2, 0.65} {
		m.SetVolume(hal.Output, 10, v)
		for _, d := range m.Outputs() {
			if d.Volume < 0 || d.Volume > 1 {
				t.Fatalf("after SetVolume(%v) published %s", v, spew.Sdump(d))
			}
		}
	}

	m.SetVolume(hal.Output, 10, 1.7)
	if d, _ := m.Device(hal.Output, 10); d.Volume != 1 {
		t.Errorf("SetVolume(1.7) published %v, want 1", d.Volume)
	}
	if raw, _ := f.Float32(10, hal.VolumeKey(hal.Output)); raw != 1 {
		t.Errorf("hardware received %v, want 1", raw)
	}
}

func TestSetVolumeUnknownDeviceIgnored(t *testing.T) {
	f := hal.NewDemoFake()
	m, _ := newTestManager(t, f)
	writes := 0
	f.OnWrite = func(hal.ObjectID, hal.PropertyKey) { writes++ }

	// 52 is an input; it is not in the output list.
	m.SetVolume(hal.Output, 52, 0.1)
	m.SetMute(hal.Output, 999, true)
	m.ToggleMute(hal.Input, 41)
	if writes != 0 {
		t.Errorf("commands for unknown devices wrote %d times", writes)
	}
}

func TestSetDefault(t *testing.T) {
	f := hal.NewDemoFake()
	m, _ := newTestManager(t, f)

	m.SetDefault(67, hal.Output)
	m.Refresh()
	assertSingleDefault(t, m.Outputs(), 67)

	// The microphone has no output streams; hardware refuses it.
	m.SetDefault(52, hal.Output)
	m.Refresh()
	assertSingleDefault(t, m.Outputs(), 67)

	m.SetDefault(67, hal.Input)
	assertSingleDefault(t, m.Inputs(), 67)
}

func TestSetDefaultRejectedKeepsPrevious(t *testing.T) {
	f := hal.NewDemoFake()
	f.Reject(hal.DefaultDeviceKey(hal.Output), hal.ErrQueryFailed)
	m, _ := newTestManager(t, f)

	m.SetDefault(67, hal.Output)
	assertSingleDefault(t, m.Outputs(), 41)
}

func assertSingleDefault(t *testing.T, devices []Device, want hal.ObjectID) {
	t.Helper()
	var defaults []hal.ObjectID
	for _, d := range devices {
		if d.IsDefault {
			defaults = append(defaults, d.ID)
		}
	}
	if len(defaults) != 1 || defaults[0] != want {
		t.Errorf("defaults = %v, want [%d]\n%s", defaults, want, spew.Sdump(devices))
	}
}

func TestRefreshIdempotent(t *testing.T) {
	f := hal.NewDemoFake()
	m, _ := newTestManager(t, f)

	m.Refresh()
	first := m.Snapshot()
	m.Refresh()
	second := m.Snapshot()
	if !first.Equal(second) {
		t.Errorf("refresh changed the lists:\n%s\n%s", spew.Sdump(first), spew.Sdump(second))
	}
}

func TestToggleMuteInvolution(t *testing.T) {
	f := hal.NewDemoFake()
	m, _ := newTestManager(t, f)

	for _, dir := range []hal.Direction{hal.Output, hal.Input} {
		before, _ := m.Device(dir, 67)
		m.ToggleMute(dir, 67)
		mid, _ := m.Device(dir, 67)
		m.ToggleMute(dir, 67)
		after, _ := m.Device(dir, 67)

		if mid.Muted == before.Muted {
			t.Errorf("%s: first toggle did not change mute", dir)
		}
		if after.Muted != before.Muted {
			t.Errorf("%s: two toggles changed mute from %v to %v", dir, before.Muted, after.Muted)
		}
	}
}

func TestToggleMuteReadsHardware(t *testing.T) {
	f := hal.NewDemoFake()
	m, _ := newTestManager(t, f)

	// Muted behind the manager's back, without a notification.
	hal.NewCodec(f).WriteMute(52, hal.MuteKey(hal.Input), true)
	m.ToggleMute(hal.Input, 52)

	if d, _ := m.Device(hal.Input, 52); d.Muted {
		t.Error("toggle should have unmuted the hardware-muted device")
	}
}

func TestHardwareChangesRepublish(t *testing.T) {
	f := hal.NewDemoFake()
	m, loop := newTestManager(t, f)

	var mu sync.Mutex
	published := 0
	m.OnChange(func(Snapshot) {
		mu.Lock()
		published++
		mu.Unlock()
	})

	f.AddDevice(hal.FakeDevice{ID: 90, Name: "AirPods", Outputs: 1, Inputs: 1, OutputVolume: 0.5, InputVolume: 0.5})
	settle(t, f, loop)
	if _, ok := m.Device(hal.Output, 90); !ok {
		t.Fatalf("new device not published: %s", spew.Sdump(m.Snapshot()))
	}

	f.SetDefault(hal.Input, 90)
	settle(t, f, loop)
	assertSingleDefault(t, m.Inputs(), 90)

	f.RemoveDevice(90)
	settle(t, f, loop)
	if _, ok := m.Device(hal.Output, 90); ok {
		t.Error("removed device still published")
	}
	if _, ok := m.DefaultDevice(hal.Input); ok {
		t.Error("default input should be gone with its device")
	}

	mu.Lock()
	defer mu.Unlock()
	if published < 3 {
		t.Errorf("observers saw %d publications, want at least 3", published)
	}
}

func TestEventDuringSetVolume(t *testing.T) {
	f := abFake()
	m, loop := newTestManager(t, f)

	once := sync.Once{}
	f.OnWrite = func(obj hal.ObjectID, key hal.PropertyKey) {
		if key != hal.VolumeKey(hal.Output) {
			return
		}
		once.Do(func() {
			f.RemoveDevice(10)
			f.AddDevice(hal.FakeDevice{ID: 12, Name: "C", Outputs: 1, OutputVolume: 0.9})
		})
	}

	m.SetVolume(hal.Output, 11, 0.5)
	settle(t, f, loop)

	e := NewEnumerator(f, zerolog.Nop())
	want := Snapshot{Outputs: e.Devices(hal.Output), Inputs: e.Devices(hal.Input)}
	got := m.Snapshot()
	if !got.Equal(want) {
		t.Fatalf("published state diverged from hardware:\ngot %s\nwant %s", spew.Sdump(got), spew.Sdump(want))
	}
	if d, ok := got.Find(hal.Output, 11); !ok || d.Volume != 0.5 {
		t.Errorf("B = %s", spew.Sdump(d))
	}
	if _, ok := got.Find(hal.Output, 10); ok {
		t.Error("removed device A still published")
	}
}

func TestConcurrentCommandsKeepInvariants(t *testing.T) {
	f := hal.NewDemoFake()
	m, loop := newTestManager(t, f)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				m.SetVolume(hal.Output, 41, float32(i)/10-0.5)
				m.ToggleMute(hal.Input, 52)
				if i%5 == 0 {
					f.Fire(hal.SystemObject, hal.DevicesKey())
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			s := m.Snapshot()
			for _, d := range append(s.Outputs, s.Inputs...) {
				if d.Volume < 0 || d.Volume > 1 {
					t.Errorf("published out-of-range volume %s", spew.Sdump(d))
					return
				}
			}
			if n := countDefaults(s.Outputs); n > 1 {
				t.Errorf("%d default outputs published", n)
				return
			}
		}
	}()
	wg.Wait()
	settle(t, f, loop)
}

func countDefaults(devices []Device) int {
	n := 0
	for _, d := range devices {
		if d.IsDefault {
			n++
		}
	}
	return n
}

func TestListenerTeardownBalanced(t *testing.T) {
	f := hal.NewDemoFake()
	loop := coord.New(zerolog.Nop())
	defer loop.Close()

	m, err := New(Config{Hardware: f, Loop: loop, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatal(err)
	}
	if st := f.Stats(); st.Live != 3 {
		t.Fatalf("expected 3 live listeners, got %+v", st)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	m.Close()

	st := f.Stats()
	if st.Added != st.Removed || st.Live != 0 || st.BadRemoves != 0 {
		t.Errorf("listener bookkeeping unbalanced: %+v", st)
	}

	// Commands after Close are ignored.
	m.SetVolume(hal.Output, 41, 0)
	if v, _ := f.Float32(41, hal.VolumeKey(hal.Output)); v == 0 {
		t.Error("command ran after Close")
	}
}

// flakyListeners refuses to register a listener for one key.
type flakyListeners struct {
	*hal.Fake
	refuse hal.PropertyKey
}

func (h *flakyListeners) AddListener(obj hal.ObjectID, key hal.PropertyKey, fn func()) (hal.ListenerToken, error) {
	if key == h.refuse {
		return hal.ListenerToken{}, errors.New("listener refused")
	}
	return h.Fake.AddListener(obj, key, fn)
}

func TestNewRollsBackListeners(t *testing.T) {
	f := hal.NewDemoFake()
	hw := &flakyListeners{Fake: f, refuse: hal.DefaultDeviceKey(hal.Input)}
	loop := coord.New(zerolog.Nop())
	defer loop.Close()

	if _, err := New(Config{Hardware: hw, Loop: loop, Logger: zerolog.Nop()}); err == nil {
		t.Fatal("New should fail when a listener cannot be registered")
	}
	st := f.Stats()
	if st.Added != 2 || st.Removed != 2 || st.Live != 0 || st.BadRemoves != 0 {
		t.Errorf("partial registration not rolled back: %+v", st)
	}
}

func TestNewOnClosedLoop(t *testing.T) {
	f := hal.NewDemoFake()
	loop := coord.New(zerolog.Nop())
	loop.Close()

	if _, err := New(Config{Hardware: f, Loop: loop, Logger: zerolog.Nop()}); !errors.Is(err, coord.ErrClosed) {
		t.Fatalf("New on closed loop: got %v", err)
	}
	if st := f.Stats(); st.Live != 0 || st.Added != st.Removed {
		t.Errorf("listeners leaked: %+v", st)
	}
}

func TestEveryObserverSeesEachPublication(t *testing.T) {
	f := hal.NewDemoFake()
	m, loop := newTestManager(t, f)

	var first, second []Snapshot
	m.OnChange(func(s Snapshot) {
		first = append(first, s)
		for i := range s.Outputs {
			s.Outputs[i].Name = "changed by observer"
		}
	})
	m.OnChange(func(s Snapshot) { second = append(second, s) })

	m.SetVolume(hal.Output, 41, 0.2)
	settle(t, f, loop)

	if len(first) == 0 || len(first) != len(second) {
		t.Fatalf("observers called %d and %d times", len(first), len(second))
	}
	for _, s := range second {
		if d, _ := s.Find(hal.Output, 41); d.Name != "MacBook Pro Speakers" {
			t.Errorf("observers share a snapshot: %s", spew.Sdump(d))
		}
	}
	if d, _ := m.Device(hal.Output, 41); d.Name != "MacBook Pro Speakers" || d.Volume != 0.2 {
		t.Errorf("published device = %s", spew.Sdump(d))
	}
}
