package hotkey

import (
	"errors"
	"fmt"
	"strings"
)

// Manager defines the interface for global hotkey management
type Manager interface {
	Register(accel string, callback func(pressed bool)) error
	Unregister(accel string) error
	Close() error
}

// ErrUnsupported is returned by Register on platforms without global hotkeys.
var ErrUnsupported = errors.New("global hotkeys are not supported on this platform")

// Modifier is a bit set of modifier keys.
type Modifier uint8

const (
	ModCtrl Modifier = 1 << iota
	ModAlt
	ModShift
	ModSuper
)

// Accelerator is a parsed hotkey such as "Ctrl+Alt+M".
type Accelerator struct {
	Mods Modifier
	Key  string // upper-case letter or digit, or "Space"
}

// ParseAccelerator parses "Mod+Mod+Key". Modifier names are case
// insensitive; Option and Cmd are accepted as macOS aliases.
func ParseAccelerator(accel string) (Accelerator, error) {
	parts := strings.Split(accel, "+")
	if len(parts) < 2 {
		return Accelerator{}, fmt.Errorf("hotkey %q needs at least one modifier", accel)
	}

	var a Accelerator
	for _, p := range parts[:len(parts)-1] {
		switch strings.ToLower(strings.TrimSpace(p)) {
		case "ctrl", "control":
			a.Mods |= ModCtrl
		case "alt", "option", "opt":
			a.Mods |= ModAlt
		case "shift":
			a.Mods |= ModShift
		case "super", "cmd", "command", "win":
			a.Mods |= ModSuper
		default:
			return Accelerator{}, fmt.Errorf("unknown modifier %q in hotkey %q", p, accel)
		}
	}

	key := strings.TrimSpace(parts[len(parts)-1])
	switch {
	case strings.EqualFold(key, "space"):
		a.Key = "Space"
	case len(key) == 1 && (key[0] >= '0' && key[0] <= '9' || key[0] >= 'a' && key[0] <= 'z' || key[0] >= 'A' && key[0] <= 'Z'):
		a.Key = strings.ToUpper(key)
	default:
		return Accelerator{}, fmt.Errorf("unsupported key %q in hotkey %q", key, accel)
	}
	return a, nil
}
