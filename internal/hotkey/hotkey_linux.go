//go:build linux && cgo

package hotkey

/*
#cgo pkg-config: x11
#include <X11/Xlib.h>
#include <X11/keysym.h>
#include <stdlib.h>

static Display* displayPtr = NULL;

static int openDisplay(void) {
    if (displayPtr == NULL) {
        displayPtr = XOpenDisplay(NULL);
    }
    return displayPtr != NULL;
}

static int keycodeFor(const char* name) {
    KeySym sym = XStringToKeysym(name);
    if (sym == NoSymbol) return 0;
    return XKeysymToKeycode(displayPtr, sym);
}

static void grabKey(int keycode, int modifiers) {
    Window root = DefaultRootWindow(displayPtr);
    XGrabKey(displayPtr, keycode, modifiers, root, False, GrabModeAsync, GrabModeAsync);
    XSelectInput(displayPtr, root, KeyPressMask | KeyReleaseMask);
    XSync(displayPtr, False);
}

static void ungrabKey(int keycode, int modifiers) {
    XUngrabKey(displayPtr, keycode, modifiers, DefaultRootWindow(displayPtr));
    XSync(displayPtr, False);
}

static int checkEvent(int* keycode, int* state, int* pressed) {
    XEvent event;
    if (XPending(displayPtr) > 0) {
        XNextEvent(displayPtr, &event);
        if (event.type == KeyPress || event.type == KeyRelease) {
            *keycode = event.xkey.keycode;
            *state = event.xkey.state;
            *pressed = (event.type == KeyPress) ? 1 : 0;
            return 1;
        }
    }
    return 0;
}
*/
import "C"

import (
	"fmt"
	"sync"
	"time"
	"unsafe"
)

// X11 modifier masks.
const (
	shiftMask    = 1 << 0
	controlMask  = 1 << 2
	mod1Mask     = 1 << 3
	mod4Mask     = 1 << 6
	relevantMask = shiftMask | controlMask | mod1Mask | mod4Mask
)

func x11Modifiers(m Modifier) int {
	var mods int
	if m&ModShift != 0 {
		mods |= shiftMask
	}
	if m&ModCtrl != 0 {
		mods |= controlMask
	}
	if m&ModAlt != 0 {
		mods |= mod1Mask
	}
	if m&ModSuper != 0 {
		mods |= mod4Mask
	}
	return mods
}

type grab struct {
	keycode   int
	modifiers int
}

type linuxManager struct {
	mu        sync.Mutex // guards the X display and the maps
	callbacks map[grab]func(bool)
	byName    map[string]grab
	stop      chan struct{}
	stopOnce  sync.Once
}

// New creates a new Linux hotkey manager using X11
func New() (Manager, error) {
	if C.openDisplay() == 0 {
		return nil, fmt.Errorf("failed to open X display")
	}

	mgr := &linuxManager{
		callbacks: make(map[grab]func(bool)),
		byName:    make(map[string]grab),
		stop:      make(chan struct{}),
	}

	go mgr.eventLoop()

	return mgr, nil
}

func (m *linuxManager) Register(accel string, callback func(pressed bool)) error {
	a, err := ParseAccelerator(accel)
	if err != nil {
		return err
	}
	name := a.Key
	if name == "Space" {
		name = "space"
	}
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.byName[accel]; dup {
		return fmt.Errorf("hotkey %q already registered", accel)
	}

	keycode := int(C.keycodeFor(cname))
	if keycode == 0 {
		return fmt.Errorf("no keycode for %q", a.Key)
	}
	g := grab{keycode: keycode, modifiers: x11Modifiers(a.Mods)}
	C.grabKey(C.int(g.keycode), C.int(g.modifiers))

	m.callbacks[g] = callback
	m.byName[accel] = g
	return nil
}

func (m *linuxManager) eventLoop() {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			var keycode, state, pressed C.int
			m.mu.Lock()
			got := C.checkEvent(&keycode, &state, &pressed) != 0
			cb := m.callbacks[grab{keycode: int(keycode), modifiers: int(state) & relevantMask}]
			m.mu.Unlock()
			if got && cb != nil {
				cb(pressed == 1)
			}
		}
	}
}

func (m *linuxManager) Unregister(accel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.byName[accel]
	if !ok {
		return fmt.Errorf("hotkey %q not registered", accel)
	}
	C.ungrabKey(C.int(g.keycode), C.int(g.modifiers))
	delete(m.callbacks, g)
	delete(m.byName, accel)
	return nil
}

func (m *linuxManager) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })

	m.mu.Lock()
	defer m.mu.Unlock()
	for accel, g := range m.byName {
		C.ungrabKey(C.int(g.keycode), C.int(g.modifiers))
		delete(m.callbacks, g)
		delete(m.byName, accel)
	}
	return nil
}
