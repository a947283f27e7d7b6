//go:build darwin && cgo

package hotkey

/*
#cgo LDFLAGS: -framework Carbon
#include <Carbon/Carbon.h>

// Forward declaration for Go callback
extern void goHotkeyCallback(UInt32 id, int pressed);

static EventHandlerRef handlerRef = NULL;

// Event handler for hotkeys
static OSStatus hotkeyHandler(EventHandlerCallRef nextHandler, EventRef theEvent, void* userData) {
    EventHotKeyID hkID;
    GetEventParameter(theEvent, kEventParamDirectObject, typeEventHotKeyID, NULL, sizeof(hkID), NULL, &hkID);

    UInt32 eventKind = GetEventKind(theEvent);
    int pressed = (eventKind == kEventHotKeyPressed) ? 1 : 0;

    goHotkeyCallback(hkID.id, pressed);

    return noErr;
}

static int installHandler(void) {
    if (handlerRef != NULL) {
        return 1;
    }
    EventTypeSpec eventTypes[2];
    eventTypes[0].eventClass = kEventClassKeyboard;
    eventTypes[0].eventKind = kEventHotKeyPressed;
    eventTypes[1].eventClass = kEventClassKeyboard;
    eventTypes[1].eventKind = kEventHotKeyReleased;

    OSStatus status = InstallApplicationEventHandler(NewEventHandlerUPP(hotkeyHandler), 2, eventTypes, NULL, &handlerRef);
    return (status == noErr) ? 1 : 0;
}

// Register hotkey with Carbon
static int registerHotkey(UInt32 keyCode, UInt32 modifiers, UInt32 id, EventHotKeyRef *out) {
    EventHotKeyID hotKeyID;
    hotKeyID.signature = 'iotr';
    hotKeyID.id = id;

    OSStatus status = RegisterEventHotKey(keyCode, modifiers, hotKeyID, GetApplicationEventTarget(), 0, out);
    return (status == noErr) ? 1 : 0;
}

static void unregisterHotkey(EventHotKeyRef ref) {
    UnregisterEventHotKey(ref);
}
*/
import "C"

import (
	"fmt"
	"sync"
)

// Carbon virtual key codes (ANSI layout).
var darwinKeyCodes = map[string]C.UInt32{
	"A": 0, "S": 1, "D": 2, "F": 3, "H": 4, "G": 5, "Z": 6, "X": 7, "C": 8, "V": 9,
	"B": 11, "Q": 12, "W": 13, "E": 14, "R": 15, "Y": 16, "T": 17,
	"1": 18, "2": 19, "3": 20, "4": 21, "6": 22, "5": 23, "9": 25, "7": 26, "8": 28, "0": 29,
	"O": 31, "U": 32, "I": 34, "P": 35, "L": 37, "J": 38, "K": 40, "N": 45, "M": 46,
	"Space": 49,
}

func darwinModifiers(m Modifier) C.UInt32 {
	var mods C.UInt32
	if m&ModSuper != 0 {
		mods |= 0x100 // cmdKey
	}
	if m&ModShift != 0 {
		mods |= 0x200 // shiftKey
	}
	if m&ModAlt != 0 {
		mods |= 0x800 // optionKey
	}
	if m&ModCtrl != 0 {
		mods |= 0x1000 // controlKey
	}
	return mods
}

type darwinHotkey struct {
	ref      C.EventHotKeyRef
	callback func(bool)
}

type darwinManager struct {
	mu     sync.Mutex
	byID   map[C.UInt32]*darwinHotkey
	byName map[string]C.UInt32
	nextID C.UInt32
}

var (
	globalMu      sync.Mutex
	globalManager *darwinManager
)

// New creates a new macOS hotkey manager using Carbon
func New() (Manager, error) {
	if C.installHandler() == 0 {
		return nil, fmt.Errorf("failed to install hotkey handler")
	}
	mgr := &darwinManager{
		byID:   make(map[C.UInt32]*darwinHotkey),
		byName: make(map[string]C.UInt32),
	}
	globalMu.Lock()
	globalManager = mgr
	globalMu.Unlock()
	return mgr, nil
}

//export goHotkeyCallback
func goHotkeyCallback(id C.UInt32, pressed C.int) {
	globalMu.Lock()
	m := globalManager
	globalMu.Unlock()
	if m == nil {
		return
	}

	m.mu.Lock()
	hk := m.byID[id]
	m.mu.Unlock()
	if hk != nil && hk.callback != nil {
		hk.callback(pressed == 1)
	}
}

func (m *darwinManager) Register(accel string, callback func(pressed bool)) error {
	a, err := ParseAccelerator(accel)
	if err != nil {
		return err
	}
	keyCode, ok := darwinKeyCodes[a.Key]
	if !ok {
		return fmt.Errorf("no key code for %q", a.Key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.byName[accel]; dup {
		return fmt.Errorf("hotkey %q already registered", accel)
	}

	m.nextID++
	var ref C.EventHotKeyRef
	if C.registerHotkey(keyCode, darwinModifiers(a.Mods), m.nextID, &ref) == 0 {
		return fmt.Errorf("failed to register hotkey %q", accel)
	}
	m.byID[m.nextID] = &darwinHotkey{ref: ref, callback: callback}
	m.byName[accel] = m.nextID
	return nil
}

func (m *darwinManager) Unregister(accel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byName[accel]
	if !ok {
		return fmt.Errorf("hotkey %q not registered", accel)
	}
	C.unregisterHotkey(m.byID[id].ref)
	delete(m.byID, id)
	delete(m.byName, accel)
	return nil
}

func (m *darwinManager) Close() error {
	m.mu.Lock()
	for accel, id := range m.byName {
		C.unregisterHotkey(m.byID[id].ref)
		delete(m.byID, id)
		delete(m.byName, accel)
	}
	m.mu.Unlock()

	globalMu.Lock()
	if globalManager == m {
		globalManager = nil
	}
	globalMu.Unlock()
	return nil
}
