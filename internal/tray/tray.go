package tray

import (
	"context"
	"fmt"
	"sync"

	"github.com/atotto/clipboard"
	"github.com/getlantern/systray"
	"github.com/petems/iotray/internal/app"
	"github.com/petems/iotray/internal/audio"
	"github.com/petems/iotray/internal/config"
	"github.com/petems/iotray/internal/hal"
	"github.com/petems/iotray/internal/permissions"
	"github.com/petems/iotray/internal/video"
	"github.com/rs/zerolog"
)

// Menus are built once with a fixed number of slots per section; slots
// are retitled and shown or hidden as devices come and go.
const slotsPerSection = 8

// audioSlot is one device entry with its submenu.
type audioSlot struct {
	item       *systray.MenuItem
	setDefault *systray.MenuItem
	mute       *systray.MenuItem
	presets    []*systray.MenuItem

	mu sync.Mutex
	id hal.ObjectID // zero while hidden
}

func (s *audioSlot) current() hal.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

type cameraSlot struct {
	item *systray.MenuItem

	mu sync.Mutex
	id string
}

func (s *cameraSlot) current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

type UI struct {
	app     *app.App
	cfg     *config.Config
	version string
	commit  string
	log     zerolog.Logger

	// dirty holds at most one pending redraw; redraws run on the
	// tray's own goroutine, never on the coordination loop.
	dirty chan struct{}
	quit  chan struct{}

	outputs   []*audioSlot
	inputs    []*audioSlot
	cameras   []*cameraSlot
	noOutputs *systray.MenuItem
	noInputs  *systray.MenuItem
	noCameras *systray.MenuItem
	micAccess *systray.MenuItem
	camAccess *systray.MenuItem
}

func New(application *app.App, cfg *config.Config, log zerolog.Logger, version, commit string) *UI {
	u := &UI{
		app:     application,
		cfg:     cfg,
		version: version,
		commit:  commit,
		log:     log.With().Str("component", "tray").Logger(),
		dirty:   make(chan struct{}, 1),
		quit:    make(chan struct{}),
	}
	application.OnChange(u.markDirty)
	return u
}

// markDirty requests a redraw without waiting for it.
func (u *UI) markDirty() {
	select {
	case u.dirty <- struct{}{}:
	default:
	}
}

// renderLoop redraws once per burst of changes until the tray exits.
func (u *UI) renderLoop() {
	for {
		select {
		case <-u.dirty:
			u.render()
		case <-u.quit:
			return
		}
	}
}

// Run blocks running the menu bar loop. It must be called from the main
// goroutine.
func (u *UI) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		systray.Quit()
	}()
	systray.Run(u.onReady, u.onExit)
	return nil
}

func (u *UI) onReady() {
	systray.SetTitle(titleFor(nil))
	systray.SetTooltip(fmt.Sprintf("iotray %s (%s)", u.version, u.commit))

	header("Output")
	u.noOutputs = placeholder("No output devices")
	u.outputs = u.buildAudioSlots(hal.Output)
	systray.AddSeparator()

	header("Input")
	u.micAccess = systray.AddMenuItem("", "")
	u.micAccess.Hide()
	u.noInputs = placeholder("No input devices")
	u.inputs = u.buildAudioSlots(hal.Input)
	systray.AddSeparator()

	header("Camera")
	u.camAccess = systray.AddMenuItem("", "")
	u.camAccess.Hide()
	u.noCameras = placeholder("No cameras")
	u.cameras = u.buildCameraSlots()
	systray.AddSeparator()

	mRefresh := systray.AddMenuItem("Refresh", "Re-scan devices")
	mReport := systray.AddMenuItem("Copy Device Report", "Copy the device list to the clipboard")
	mSettings := systray.AddMenuItem("Open Privacy Settings", "Manage microphone and camera access")
	mQuit := systray.AddMenuItem("Quit", "Exit application")

	go u.handleEvents(mRefresh, mReport, mSettings, mQuit)

	u.markDirty()
	go u.renderLoop()
}

func header(title string) {
	systray.AddMenuItem(title, "").Disable()
}

func placeholder(title string) *systray.MenuItem {
	item := systray.AddMenuItem(title, "")
	item.Disable()
	item.Hide()
	return item
}

func (u *UI) buildAudioSlots(dir hal.Direction) []*audioSlot {
	presets := u.cfg.VolumePresets()
	slots := make([]*audioSlot, slotsPerSection)
	for i := range slots {
		s := &audioSlot{item: systray.AddMenuItem("", "")}
		s.setDefault = s.item.AddSubMenuItem("Set as Default", "")
		s.mute = s.item.AddSubMenuItem("Mute", "")
		for _, v := range presets {
			p := s.item.AddSubMenuItem(presetLabel(v), "")
			s.presets = append(s.presets, p)
			go u.watch(p, func() {
				if id := s.current(); id != hal.UnknownObject {
					u.app.SetVolume(dir, id, v)
				}
			})
		}
		s.item.Hide()
		slots[i] = s

		go u.watch(s.setDefault, func() {
			if id := s.current(); id != hal.UnknownObject {
				u.app.SetDefault(dir, id)
			}
		})
		go u.watch(s.mute, func() {
			if id := s.current(); id != hal.UnknownObject {
				u.app.ToggleMute(dir, id)
			}
		})
	}
	return slots
}

func (u *UI) buildCameraSlots() []*cameraSlot {
	slots := make([]*cameraSlot, slotsPerSection)
	for i := range slots {
		s := &cameraSlot{item: systray.AddMenuItem("", "")}
		s.item.Hide()
		slots[i] = s
		go u.watch(s.item, func() {
			if id := s.current(); id != "" {
				u.app.SelectCamera(id)
			}
		})
	}
	return slots
}

// watch runs fn for every click on item.
func (u *UI) watch(item *systray.MenuItem, fn func()) {
	for range item.ClickedCh {
		fn()
	}
}

func (u *UI) handleEvents(mRefresh, mReport, mSettings, mQuit *systray.MenuItem) {
	for {
		select {
		case <-mRefresh.ClickedCh:
			u.app.Refresh()
		case <-mReport.ClickedCh:
			u.copyReport()
		case <-mSettings.ClickedCh:
			if err := u.app.OpenSettings(); err != nil {
				u.log.Error().Err(err).Msg("Failed to open privacy settings")
			}
		case <-u.micAccess.ClickedCh:
			u.app.RequestAccess(permissions.Microphone)
		case <-u.camAccess.ClickedCh:
			u.app.RequestAccess(permissions.Camera)
		case <-mQuit.ClickedCh:
			systray.Quit()
			return
		}
	}
}

func (u *UI) copyReport() {
	if err := clipboard.WriteAll(u.app.Report()); err != nil {
		u.log.Error().Err(err).Msg("Failed to copy device report")
		return
	}
	u.log.Info().Msg("Copied device report to clipboard")
}

// render redraws every section from the published lists.
func (u *UI) render() {
	outputs := u.app.Outputs()
	systray.SetTitle(titleFor(outputs))
	u.renderAudio(u.outputs, u.noOutputs, outputs)

	micOK := u.renderAccess(u.micAccess, permissions.Microphone, u.cfg.ShowInput)
	u.renderAudio(u.inputs, u.noInputs, u.app.Inputs())
	if !micOK {
		u.noInputs.Hide()
	}

	camOK := u.renderAccess(u.camAccess, permissions.Camera, u.cfg.ShowCamera)
	u.renderCameras(u.app.Cameras())
	if !camOK {
		u.noCameras.Hide()
	}
}

func (u *UI) renderAudio(slots []*audioSlot, empty *systray.MenuItem, devices []audio.Device) {
	plan, overflow := planAudio(len(slots), devices, u.cfg.VolumePresets())
	if overflow > 0 {
		u.log.Warn().Int("devices", len(devices)).Int("hidden", overflow).Msg("More devices than menu slots")
	}
	showIf(empty, len(devices) == 0)

	for i, s := range slots {
		p := plan[i]
		s.mu.Lock()
		s.id = p.ID
		s.mu.Unlock()
		if !p.Visible {
			s.item.Hide()
			continue
		}

		s.item.SetTitle(p.Title)
		setChecked(s.item, p.Default)
		setChecked(s.mute, p.Muted)
		if p.Default {
			s.setDefault.Disable()
		} else {
			s.setDefault.Enable()
		}
		for j, item := range s.presets {
			setChecked(item, j < len(p.Presets) && p.Presets[j])
		}
		s.item.Show()
	}
}

func (u *UI) renderCameras(cameras []video.Device) {
	plan, overflow := planCameras(len(u.cameras), cameras)
	if overflow > 0 {
		u.log.Warn().Int("cameras", len(cameras)).Int("hidden", overflow).Msg("More cameras than menu slots")
	}
	showIf(u.noCameras, len(cameras) == 0)

	for i, s := range u.cameras {
		p := plan[i]
		s.mu.Lock()
		s.id = p.ID
		s.mu.Unlock()
		if !p.Visible {
			s.item.Hide()
			continue
		}
		s.item.SetTitle(p.Title)
		setChecked(s.item, p.Selected)
		s.item.Show()
	}
}

// renderAccess updates the permission prompt of a section and reports
// whether the section's devices can be listed.
func (u *UI) renderAccess(item *systray.MenuItem, kind permissions.Kind, enabled bool) bool {
	label, show := permissionLabel(kind, u.app.Permission(kind))
	item.SetTitle(label)
	showIf(item, enabled && show)
	return enabled && !show
}

func (u *UI) onExit() {
	close(u.quit)
	u.log.Info().Msg("Tray exited")
}

func showIf(item *systray.MenuItem, show bool) {
	if show {
		item.Show()
	} else {
		item.Hide()
	}
}

func setChecked(item *systray.MenuItem, checked bool) {
	if checked {
		item.Check()
	} else {
		item.Uncheck()
	}
}

// titleFor shows the default output's volume in the menu bar.
func titleFor(outputs []audio.Device) string {
	for _, d := range outputs {
		if !d.IsDefault {
			continue
		}
		if d.Muted {
			return "🔇"
		}
		return fmt.Sprintf("🔊 %d%%", app.Percent(d.Volume))
	}
	return "🔈"
}

func deviceLabel(d audio.Device) string {
	label := fmt.Sprintf("%s (%d%%)", d.Name, app.Percent(d.Volume))
	if d.Muted {
		label += " 🔇"
	}
	return label
}

func cameraLabel(d video.Device) string {
	if d.InUse {
		return d.Name + " (in use)"
	}
	return d.Name
}

func presetLabel(v float32) string {
	return fmt.Sprintf("%d%%", app.Percent(v))
}

// permissionLabel returns the prompt shown in place of a section when
// access is missing, and whether to show it.
func permissionLabel(kind permissions.Kind, status permissions.Status) (string, bool) {
	name := "Microphone"
	if kind == permissions.Camera {
		name = "Camera"
	}
	switch status {
	case permissions.Authorized:
		return "", false
	case permissions.Denied, permissions.Restricted:
		return fmt.Sprintf("%s access %s: open Settings…", name, status), true
	}
	return fmt.Sprintf("Allow %s Access…", name), true
}
