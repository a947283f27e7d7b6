package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/petems/iotray/internal/audio"
	"github.com/petems/iotray/internal/config"
	"github.com/petems/iotray/internal/coord"
	"github.com/petems/iotray/internal/hal"
	"github.com/petems/iotray/internal/permissions"
	"github.com/petems/iotray/internal/video"
	"github.com/rs/zerolog"
)

type testRig struct {
	app    *App
	audio  *hal.Fake
	camera *video.Fake
}

func newTestApp(t *testing.T, gate permissions.Gate, cfg *config.Config) *testRig {
	t.Helper()

	loop := coord.New(zerolog.Nop())
	t.Cleanup(loop.Close)

	hw := hal.NewDemoFake()
	cams := video.NewDemoFake()

	am, err := audio.New(audio.Config{Hardware: hw, Loop: loop, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("audio.New: %v", err)
	}
	vm, err := video.New(video.Config{Hardware: cams, Loop: loop, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("video.New: %v", err)
	}

	if cfg == nil {
		cfg = &config.Config{ShowInput: true, ShowCamera: true, VolumeStep: 0.25}
	}
	a := New(Config{
		Audio:       am,
		Video:       vm,
		Permissions: gate,
		Config:      cfg,
		Logger:      zerolog.Nop(),
	})
	t.Cleanup(func() { a.Shutdown(context.Background()) })
	return &testRig{app: a, audio: hw, camera: cams}
}

func TestToggleInputMute(t *testing.T) {
	rig := newTestApp(t, permissions.Static{}, nil)

	rig.app.OnHotkey(true)
	rig.app.hotkeys.Wait()
	d, ok := rig.app.audio.Device(hal.Input, 52)
	if !ok || !d.Muted {
		t.Fatalf("expected default input muted after hotkey, got %s", spew.Sdump(d))
	}

	// Releases are ignored.
	rig.app.OnHotkey(false)
	rig.app.hotkeys.Wait()
	if d, _ := rig.app.audio.Device(hal.Input, 52); !d.Muted {
		t.Error("key release should not toggle mute")
	}

	rig.app.ToggleInputMute()
	if d, _ := rig.app.audio.Device(hal.Input, 52); d.Muted {
		t.Error("second toggle should unmute")
	}
}

func TestToggleInputMuteWithoutDefault(t *testing.T) {
	rig := newTestApp(t, permissions.Static{}, nil)

	rig.audio.SetDefault(hal.Input, hal.UnknownObject)
	rig.app.Refresh()

	rig.app.ToggleInputMute()
	for _, d := range rig.app.Inputs() {
		if d.Muted {
			t.Errorf("no device should be muted: %s", spew.Sdump(d))
		}
	}
}

func TestSectionsFollowPermissions(t *testing.T) {
	gate := permissions.Static{
		permissions.Microphone: permissions.Denied,
		permissions.Camera:     permissions.NotDetermined,
	}
	rig := newTestApp(t, gate, nil)

	if got := rig.app.Inputs(); got != nil {
		t.Errorf("inputs without microphone access: %s", spew.Sdump(got))
	}
	if got := rig.app.Cameras(); got != nil {
		t.Errorf("cameras without camera access: %s", spew.Sdump(got))
	}
	if got := len(rig.app.Outputs()); got != 3 {
		t.Errorf("expected 3 outputs, got %d", got)
	}

	report := rig.app.Report()
	for _, want := range []string{"(microphone access denied)", "(camera access not-determined)"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
}

func TestSectionsFollowConfig(t *testing.T) {
	cfg := &config.Config{ShowInput: false, ShowCamera: false}
	rig := newTestApp(t, permissions.Static{}, cfg)

	if rig.app.Inputs() != nil || rig.app.Cameras() != nil {
		t.Fatal("hidden sections should be empty")
	}
	if strings.Count(rig.app.Report(), "(hidden)") != 2 {
		t.Errorf("expected two hidden sections:\n%s", rig.app.Report())
	}
}

func TestReport(t *testing.T) {
	rig := newTestApp(t, permissions.Static{}, nil)

	rig.camera.SetInUse("0x14100000046d0892", true)
	rig.app.SetMute(hal.Output, 67, true)
	rig.app.Refresh()

	report := rig.app.Report()
	lines := strings.Split(strings.TrimRight(report, "\n"), "\n")

	want := []string{
		"Output devices",
		"  * MacBook Pro Speakers     60%",
		"    USB Audio Interface      40%  muted",
		"    HDMI Display            100%",
		"Input devices",
		"  * MacBook Pro Microphone   80%",
		"    USB Audio Interface      50%",
		"Cameras",
		"  * FaceTime HD Camera",
		"    HD Pro Webcam C920      in use",
	}
	if len(lines) != len(want) {
		t.Fatalf("report has %d lines, want %d:\n%s", len(lines), len(want), report)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestCommandsReachManagers(t *testing.T) {
	rig := newTestApp(t, permissions.Static{}, nil)

	rig.app.SetDefault(hal.Output, 67)
	rig.app.SetVolume(hal.Output, 67, 0.25)
	rig.app.SelectCamera("0x14100000046d0892")

	d, ok := rig.app.audio.DefaultDevice(hal.Output)
	if !ok || d.ID != 67 || d.Volume != 0.25 {
		t.Errorf("unexpected default output: %s", spew.Sdump(d))
	}
	if id, _ := rig.app.video.SelectedID(); id != "0x14100000046d0892" {
		t.Errorf("selected camera = %q", id)
	}
}

func TestShutdownReleasesListeners(t *testing.T) {
	rig := newTestApp(t, permissions.Static{}, nil)

	if err := rig.app.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if st := rig.audio.Stats(); st.Live != 0 || st.Added != st.Removed {
		t.Errorf("audio listeners not balanced: %+v", st)
	}
	if _, _, bad, live := rig.camera.Subscriptions(); live != 0 || bad != 0 {
		t.Errorf("camera subscriptions not released: live=%d bad=%d", live, bad)
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		in   float32
		want int
	}{
		{0, 0},
		{0.6, 60},
		{0.125, 13},
		{1, 100},
	}
	for _, tt := range tests {
		if got := Percent(tt.in); got != tt.want {
			t.Errorf("Percent(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

// uiThread serves work the way a menu bar toolkit's main thread does:
// callers hand it a function and wait for it to run.
type uiThread struct {
	work chan func()
	stop chan struct{}
}

func newUIThread() *uiThread {
	u := &uiThread{work: make(chan func()), stop: make(chan struct{})}
	go func() {
		for {
			select {
			case fn := <-u.work:
				fn()
			case <-u.stop:
				return
			}
		}
	}()
	return u
}

// sync runs fn on the thread and waits for it.
func (u *uiThread) sync(fn func()) {
	done := make(chan struct{})
	select {
	case u.work <- func() { fn(); close(done) }:
	case <-u.stop:
		return
	}
	select {
	case <-done:
	case <-u.stop:
	}
}

func TestHotkeyOnUIThread(t *testing.T) {
	rig := newTestApp(t, permissions.Static{}, nil)
	ui := newUIThread()
	defer close(ui.stop)

	// Redraw synchronously on the UI thread for every publication.
	rig.app.OnChange(func() { ui.sync(func() {}) })

	returned := make(chan struct{})
	go ui.sync(func() {
		rig.app.OnHotkey(true)
		close(returned)
	})
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("hotkey handler blocked the UI thread")
	}

	waited := make(chan struct{})
	go func() {
		rig.app.hotkeys.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("mute toggle never finished")
	}
	if d, _ := rig.app.audio.Device(hal.Input, 52); !d.Muted {
		t.Error("hotkey did not mute the default input")
	}
}
