//go:build darwin && cgo

package permissions

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework AVFoundation -framework Cocoa
#include <stdint.h>
#import <AVFoundation/AVFoundation.h>
#import <Cocoa/Cocoa.h>

extern void goAccessAnswered(uintptr_t token, int granted);

static AVMediaType mediaType(int camera) {
    return camera ? AVMediaTypeVideo : AVMediaTypeAudio;
}

static int checkPermission(int camera) {
    AVAuthorizationStatus status = [AVCaptureDevice authorizationStatusForMediaType:mediaType(camera)];
    return (int)status;
}

static void requestPermission(int camera, uintptr_t token) {
    [AVCaptureDevice requestAccessForMediaType:mediaType(camera) completionHandler:^(BOOL granted) {
        goAccessAnswered(token, granted ? 1 : 0);
    }];
}

static void openPrivacySettings(void) {
    @autoreleasepool {
        NSURL *url = [NSURL URLWithString:@"x-apple.systempreferences:com.apple.preference.security?Privacy"];
        [[NSWorkspace sharedWorkspace] openURL:url];
    }
}
*/
import "C"

import (
	"sync"
	"sync/atomic"
)

var (
	pending   sync.Map // uint64 -> func(bool)
	nextToken atomic.Uint64
)

//export goAccessAnswered
func goAccessAnswered(token C.uintptr_t, granted C.int) {
	if cb, ok := pending.LoadAndDelete(uint64(token)); ok {
		cb.(func(bool))(granted == 1)
	}
}

type avGate struct{}

// New returns the AVFoundation permission gate.
func New() Gate {
	return avGate{}
}

func cameraFlag(kind Kind) C.int {
	if kind == Camera {
		return 1
	}
	return 0
}

func (avGate) Status(kind Kind) Status {
	return Status(C.checkPermission(cameraFlag(kind)))
}

func (g avGate) IsAuthorized(kind Kind) bool {
	return g.Status(kind) == Authorized
}

func (avGate) RequestAccess(kind Kind, cb func(granted bool)) {
	if cb == nil {
		cb = func(bool) {}
	}
	token := nextToken.Add(1)
	pending.Store(token, cb)
	C.requestPermission(cameraFlag(kind), C.uintptr_t(token))
}

func (avGate) OpenSettings() error {
	C.openPrivacySettings()
	return nil
}
