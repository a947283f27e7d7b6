// Package app composes the device managers, the permission gate and the
// config into the command surface used by the tray, the hotkey and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
	"github.com/petems/iotray/internal/audio"
	"github.com/petems/iotray/internal/config"
	"github.com/petems/iotray/internal/hal"
	"github.com/petems/iotray/internal/permissions"
	"github.com/petems/iotray/internal/video"
	"github.com/rs/zerolog"
)

const maxNameWidth = 36

type Config struct {
	Audio       *audio.Manager
	Video       *video.Manager
	Permissions permissions.Gate
	Config      *config.Config
	Logger      zerolog.Logger
}

type App struct {
	audio *audio.Manager
	video *video.Manager
	perms permissions.Gate
	cfg   *config.Config
	log   zerolog.Logger

	hotkeys sync.WaitGroup // in-flight hotkey toggles
}

func New(cfg Config) *App {
	return &App{
		audio: cfg.Audio,
		video: cfg.Video,
		perms: cfg.Permissions,
		cfg:   cfg.Config,
		log:   cfg.Logger.With().Str("component", "app").Logger(),
	}
}

// OnChange registers fn to run after either manager publishes. fn runs
// on the coordination loop and must not issue commands synchronously.
func (a *App) OnChange(fn func()) {
	a.audio.OnChange(func(audio.Snapshot) { fn() })
	a.video.OnChange(func([]video.Device) { fn() })
}

// OnHotkey toggles the default input's mute on key press. It returns
// at once: hotkeys may be delivered on the UI main thread, which the
// toggle's redraw needs.
func (a *App) OnHotkey(pressed bool) {
	if !pressed {
		return
	}
	a.hotkeys.Add(1)
	go func() {
		defer a.hotkeys.Done()
		a.ToggleInputMute()
	}()
}

// ToggleInputMute flips mute on the current default input device.
func (a *App) ToggleInputMute() {
	d, ok := a.audio.DefaultDevice(hal.Input)
	if !ok {
		a.log.Info().Msg("No default input device to mute")
		return
	}
	a.audio.ToggleMute(hal.Input, d.ID)
	if now, ok := a.audio.Device(hal.Input, d.ID); ok {
		a.log.Info().Str("device", now.Name).Bool("muted", now.Muted).Msg("Toggled input mute")
	}
}

// Outputs returns the published output devices.
func (a *App) Outputs() []audio.Device {
	return a.audio.Outputs()
}

// Inputs returns the input devices, or nil when the input section is
// disabled or microphone access is not granted.
func (a *App) Inputs() []audio.Device {
	if !a.cfg.ShowInput || !a.perms.IsAuthorized(permissions.Microphone) {
		return nil
	}
	return a.audio.Inputs()
}

// Cameras returns the cameras, or nil when the camera section is
// disabled or camera access is not granted.
func (a *App) Cameras() []video.Device {
	if !a.cfg.ShowCamera || !a.perms.IsAuthorized(permissions.Camera) {
		return nil
	}
	return a.video.Cameras()
}

func (a *App) SetDefault(dir hal.Direction, id hal.ObjectID) {
	a.audio.SetDefault(id, dir)
}

func (a *App) SetVolume(dir hal.Direction, id hal.ObjectID, v float32) {
	a.audio.SetVolume(dir, id, v)
}

func (a *App) SetMute(dir hal.Direction, id hal.ObjectID, muted bool) {
	a.audio.SetMute(dir, id, muted)
}

func (a *App) ToggleMute(dir hal.Direction, id hal.ObjectID) {
	a.audio.ToggleMute(dir, id)
}

func (a *App) SelectCamera(id string) {
	a.video.SelectPreferred(id)
}

// Refresh re-enumerates audio and video hardware.
func (a *App) Refresh() {
	a.audio.Refresh()
	a.video.Refresh()
}

// Permission returns the gate's status for kind.
func (a *App) Permission(kind permissions.Kind) permissions.Status {
	return a.perms.Status(kind)
}

// RequestAccess asks for kind and refreshes once the user has answered.
// Undetermined access prompts; denied access opens the system settings.
func (a *App) RequestAccess(kind permissions.Kind) {
	if permissions.IsDenied(a.perms, kind) {
		if err := a.perms.OpenSettings(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to open privacy settings")
		}
		return
	}
	a.perms.RequestAccess(kind, func(granted bool) {
		a.log.Info().Stringer("kind", kind).Bool("granted", granted).Msg("Access answered")
		go a.Refresh()
	})
}

// OpenSettings opens the system privacy settings.
func (a *App) OpenSettings() error {
	return a.perms.OpenSettings()
}

// Report renders the current devices as aligned text, one section per
// device class. The default device is marked with '*'.
func (a *App) Report() string {
	var b strings.Builder

	outputs := a.Outputs()
	inputs := a.Inputs()
	cameras := a.Cameras()

	width := 0
	for _, d := range outputs {
		width = max(width, runewidth.StringWidth(d.Name))
	}
	for _, d := range inputs {
		width = max(width, runewidth.StringWidth(d.Name))
	}
	for _, d := range cameras {
		width = max(width, runewidth.StringWidth(d.Name))
	}
	width = min(width, maxNameWidth)

	b.WriteString("Output devices\n")
	a.writeAudio(&b, outputs, width, "")

	b.WriteString("Input devices\n")
	a.writeAudio(&b, inputs, width, a.unavailable(a.cfg.ShowInput, permissions.Microphone))

	b.WriteString("Cameras\n")
	if len(cameras) == 0 {
		writeEmpty(&b, a.unavailable(a.cfg.ShowCamera, permissions.Camera))
	}
	for _, d := range cameras {
		line := fmt.Sprintf("  %s %s", marker(d.IsDefault), fit(d.Name, width))
		if d.InUse {
			line += "  in use"
		}
		b.WriteString(strings.TrimRight(line, " ") + "\n")
	}
	return b.String()
}

func (a *App) writeAudio(b *strings.Builder, devices []audio.Device, width int, why string) {
	if len(devices) == 0 {
		writeEmpty(b, why)
		return
	}
	for _, d := range devices {
		line := fmt.Sprintf("  %s %s  %3d%%", marker(d.IsDefault), fit(d.Name, width), Percent(d.Volume))
		if d.Muted {
			line += "  muted"
		}
		b.WriteString(line + "\n")
	}
}

// unavailable explains an empty section hidden by config or permission.
func (a *App) unavailable(enabled bool, kind permissions.Kind) string {
	if !enabled {
		return "hidden"
	}
	if !a.perms.IsAuthorized(kind) {
		return kind.String() + " access " + a.perms.Status(kind).String()
	}
	return ""
}

func writeEmpty(b *strings.Builder, why string) {
	if why == "" {
		why = "none"
	}
	b.WriteString("  (" + why + ")\n")
}

func marker(isDefault bool) string {
	if isDefault {
		return "*"
	}
	return " "
}

func fit(name string, width int) string {
	if runewidth.StringWidth(name) > width {
		name = runewidth.Truncate(name, width, "…")
	}
	return runewidth.FillRight(name, width)
}

// Percent converts a scalar volume to a whole percentage.
func Percent(v float32) int {
	return int(math.Round(float64(v) * 100))
}

// Shutdown releases both managers' hardware listeners.
func (a *App) Shutdown(ctx context.Context) error {
	a.log.Info().Msg("Releasing device listeners")
	done := make(chan error, 1)
	go func() {
		a.hotkeys.Wait()
		done <- errors.Join(a.audio.Close(), a.video.Close())
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
