//go:build darwin && cgo

package hal

/*
#cgo LDFLAGS: -framework CoreAudio -framework CoreFoundation
#include <stdint.h>
#include <CoreAudio/CoreAudio.h>
#include <CoreFoundation/CoreFoundation.h>

extern void goPropertyListener(uintptr_t id);

static OSStatus listenerProc(AudioObjectID obj, UInt32 count, const AudioObjectPropertyAddress *addrs, void *clientData) {
    goPropertyListener((uintptr_t)clientData);
    return noErr;
}

static OSStatus halGetSize(AudioObjectID obj, UInt32 sel, UInt32 scope, UInt32 elem, UInt32 *size) {
    AudioObjectPropertyAddress addr = {sel, scope, elem};
    *size = 0;
    if (!AudioObjectHasProperty(obj, &addr)) {
        return kAudioHardwareUnknownPropertyError;
    }
    return AudioObjectGetPropertyDataSize(obj, &addr, 0, NULL, size);
}

static OSStatus halGetData(AudioObjectID obj, UInt32 sel, UInt32 scope, UInt32 elem, UInt32 *size, void *out) {
    AudioObjectPropertyAddress addr = {sel, scope, elem};
    if (!AudioObjectHasProperty(obj, &addr)) {
        return kAudioHardwareUnknownPropertyError;
    }
    return AudioObjectGetPropertyData(obj, &addr, 0, NULL, size, out);
}

static OSStatus halSetData(AudioObjectID obj, UInt32 sel, UInt32 scope, UInt32 elem, UInt32 size, const void *data) {
    AudioObjectPropertyAddress addr = {sel, scope, elem};
    Boolean settable = false;
    if (!AudioObjectHasProperty(obj, &addr)) {
        return kAudioHardwareUnknownPropertyError;
    }
    OSStatus st = AudioObjectIsPropertySettable(obj, &addr, &settable);
    if (st != noErr) {
        return st;
    }
    if (!settable) {
        return kAudioHardwareIllegalOperationError;
    }
    return AudioObjectSetPropertyData(obj, &addr, 0, NULL, size, data);
}

// String properties are CFStrings; they cross the boundary as UTF-8.
static OSStatus halCopyString(AudioObjectID obj, UInt32 sel, UInt32 scope, UInt32 elem, CFStringRef *out) {
    AudioObjectPropertyAddress addr = {sel, scope, elem};
    UInt32 size = sizeof(CFStringRef);
    *out = NULL;
    if (!AudioObjectHasProperty(obj, &addr)) {
        return kAudioHardwareUnknownPropertyError;
    }
    return AudioObjectGetPropertyData(obj, &addr, 0, NULL, &size, out);
}

static OSStatus halStringData(AudioObjectID obj, UInt32 sel, UInt32 scope, UInt32 elem, UInt8 *buf, UInt32 cap, UInt32 *written) {
    CFStringRef s = NULL;
    CFIndex used = 0;
    OSStatus st = halCopyString(obj, sel, scope, elem, &s);
    *written = 0;
    if (st != noErr) {
        return st;
    }
    if (s == NULL) {
        return noErr;
    }
    CFStringGetBytes(s, CFRangeMake(0, CFStringGetLength(s)), kCFStringEncodingUTF8, 0, false, buf, (CFIndex)cap, &used);
    CFRelease(s);
    *written = (UInt32)used;
    return noErr;
}

static OSStatus halAddListener(AudioObjectID obj, UInt32 sel, UInt32 scope, UInt32 elem, uintptr_t id) {
    AudioObjectPropertyAddress addr = {sel, scope, elem};
    return AudioObjectAddPropertyListener(obj, &addr, listenerProc, (void *)id);
}

static OSStatus halRemoveListener(AudioObjectID obj, UInt32 sel, UInt32 scope, UInt32 elem, uintptr_t id) {
    AudioObjectPropertyAddress addr = {sel, scope, elem};
    return AudioObjectRemovePropertyListener(obj, &addr, listenerProc, (void *)id);
}
*/
import "C"

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// liveListeners maps the client data passed to CoreAudio to the Go
// callback. A notification racing a removal finds no entry and is dropped.
var (
	liveListeners sync.Map // uint64 -> func()
	nextListener  atomic.Uint64
)

//export goPropertyListener
func goPropertyListener(id C.uintptr_t) {
	if fn, ok := liveListeners.Load(uint64(id)); ok {
		fn.(func())()
	}
}

type coreAudio struct {
	mu     sync.Mutex
	tokens map[uint64]ListenerToken
}

// New returns the CoreAudio backend.
func New() (Backend, error) {
	return &coreAudio{tokens: make(map[uint64]ListenerToken)}, nil
}

func (c *coreAudio) Name() string { return "coreaudio" }

func (c *coreAudio) Close() error {
	c.mu.Lock()
	toks := make([]ListenerToken, 0, len(c.tokens))
	for _, t := range c.tokens {
		toks = append(toks, t)
	}
	c.mu.Unlock()

	for _, t := range toks {
		_ = c.RemoveListener(t)
	}
	return nil
}

func isStringKey(key PropertyKey) bool {
	return key.Selector == SelectorDeviceNameCFString
}

func status(st C.OSStatus) int32 {
	return int32(st)
}

func (c *coreAudio) PropertyDataSize(obj ObjectID, key PropertyKey) (uint32, error) {
	if isStringKey(key) {
		// The UTF-8 length is only known after transcoding, so the size
		// phase fetches the string once.
		var n C.UInt32
		st := C.halStringData(C.AudioObjectID(obj), C.UInt32(key.Selector), C.UInt32(key.Scope), C.UInt32(key.Element), nil, 0, &n)
		if st != 0 {
			return 0, queryError("size", obj, key, status(st))
		}
		return uint32(n), nil
	}

	var size C.UInt32
	st := C.halGetSize(C.AudioObjectID(obj), C.UInt32(key.Selector), C.UInt32(key.Scope), C.UInt32(key.Element), &size)
	if st != 0 {
		return 0, queryError("size", obj, key, status(st))
	}
	return uint32(size), nil
}

func (c *coreAudio) PropertyData(obj ObjectID, key PropertyKey, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	if isStringKey(key) {
		var n C.UInt32
		st := C.halStringData(C.AudioObjectID(obj), C.UInt32(key.Selector), C.UInt32(key.Scope), C.UInt32(key.Element),
			(*C.UInt8)(unsafe.Pointer(&buf[0])), C.UInt32(len(buf)), &n)
		if st != 0 {
			return 0, queryError("read", obj, key, status(st))
		}
		return int(n), nil
	}

	size := C.UInt32(len(buf))
	st := C.halGetData(C.AudioObjectID(obj), C.UInt32(key.Selector), C.UInt32(key.Scope), C.UInt32(key.Element), &size, unsafe.Pointer(&buf[0]))
	if st != 0 {
		return 0, queryError("read", obj, key, status(st))
	}
	return int(size), nil
}

func (c *coreAudio) SetPropertyData(obj ObjectID, key PropertyKey, data []byte) error {
	if len(data) == 0 || isStringKey(key) {
		return queryError("write", obj, key, statusIllegalOp)
	}
	st := C.halSetData(C.AudioObjectID(obj), C.UInt32(key.Selector), C.UInt32(key.Scope), C.UInt32(key.Element), C.UInt32(len(data)), unsafe.Pointer(&data[0]))
	if st != 0 {
		return queryError("write", obj, key, status(st))
	}
	return nil
}

func (c *coreAudio) AddListener(obj ObjectID, key PropertyKey, fn func()) (ListenerToken, error) {
	id := nextListener.Add(1)
	liveListeners.Store(id, fn)

	st := C.halAddListener(C.AudioObjectID(obj), C.UInt32(key.Selector), C.UInt32(key.Scope), C.UInt32(key.Element), C.uintptr_t(id))
	if st != 0 {
		liveListeners.Delete(id)
		return ListenerToken{}, queryError("listen", obj, key, status(st))
	}

	tok := ListenerToken{Object: obj, Key: key, ID: id}
	c.mu.Lock()
	c.tokens[id] = tok
	c.mu.Unlock()
	return tok, nil
}

func (c *coreAudio) RemoveListener(tok ListenerToken) error {
	c.mu.Lock()
	reg, ok := c.tokens[tok.ID]
	delete(c.tokens, tok.ID)
	c.mu.Unlock()
	if !ok || reg != tok {
		return queryError("unlisten", tok.Object, tok.Key, statusIllegalOp)
	}

	liveListeners.Delete(tok.ID)
	st := C.halRemoveListener(C.AudioObjectID(tok.Object), C.UInt32(tok.Key.Selector), C.UInt32(tok.Key.Scope), C.UInt32(tok.Key.Element), C.uintptr_t(tok.ID))
	if st != 0 {
		return queryError("unlisten", tok.Object, tok.Key, status(st))
	}
	return nil
}
