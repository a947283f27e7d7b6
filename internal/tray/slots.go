package tray

import (
	"github.com/petems/iotray/internal/app"
	"github.com/petems/iotray/internal/audio"
	"github.com/petems/iotray/internal/hal"
	"github.com/petems/iotray/internal/video"
)

// audioSlotState is what one audio menu slot shows. Hidden slots carry
// UnknownObject so clicks on them are ignored.
type audioSlotState struct {
	ID      hal.ObjectID
	Visible bool
	Title   string
	Default bool
	Muted   bool
	Presets []bool // check mark per volume preset
}

type cameraSlotState struct {
	ID       string
	Visible  bool
	Title    string
	Selected bool
}

// planAudio maps devices onto slots in list order. It returns one state
// per slot and the number of devices that did not fit.
func planAudio(slots int, devices []audio.Device, presets []float32) ([]audioSlotState, int) {
	plan := make([]audioSlotState, slots)
	for i := range plan {
		if i >= len(devices) {
			continue
		}
		d := devices[i]
		checks := make([]bool, len(presets))
		for j, v := range presets {
			checks[j] = app.Percent(d.Volume) == app.Percent(v)
		}
		plan[i] = audioSlotState{
			ID:      d.ID,
			Visible: true,
			Title:   deviceLabel(d),
			Default: d.IsDefault,
			Muted:   d.Muted,
			Presets: checks,
		}
	}
	return plan, max(len(devices)-slots, 0)
}

func planCameras(slots int, cameras []video.Device) ([]cameraSlotState, int) {
	plan := make([]cameraSlotState, slots)
	for i := range plan {
		if i >= len(cameras) {
			continue
		}
		d := cameras[i]
		plan[i] = cameraSlotState{
			ID:       d.ID,
			Visible:  true,
			Title:    cameraLabel(d),
			Selected: d.IsDefault,
		}
	}
	return plan, max(len(cameras)-slots, 0)
}
