//go:build darwin && cgo

package video

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework AVFoundation -framework Foundation
#include <stdint.h>
#include <string.h>
#import <AVFoundation/AVFoundation.h>

#define CAM_FIELD_LEN 256
#define CAM_MAX 32

typedef struct {
    char uid[CAM_FIELD_LEN];
    char name[CAM_FIELD_LEN];
    int inUse;
} camInfo;

extern void goCaptureEvent(uintptr_t token);

static NSArray *camDevices() {
    NSMutableArray *types = [NSMutableArray arrayWithObject:AVCaptureDeviceTypeBuiltInWideAngleCamera];
    if (@available(macOS 14.0, *)) {
        [types addObject:AVCaptureDeviceTypeExternal];
    } else {
        [types addObject:AVCaptureDeviceTypeExternalUnknown];
    }
    AVCaptureDeviceDiscoverySession *session =
        [AVCaptureDeviceDiscoverySession discoverySessionWithDeviceTypes:types
                                                               mediaType:AVMediaTypeVideo
                                                                position:AVCaptureDevicePositionUnspecified];
    return session.devices;
}

static int camList(camInfo *out, int max) {
    int n = 0;
    @autoreleasepool {
        for (AVCaptureDevice *d in camDevices()) {
            if (n >= max) {
                break;
            }
            strlcpy(out[n].uid, [d.uniqueID UTF8String], CAM_FIELD_LEN);
            strlcpy(out[n].name, [d.localizedName UTF8String], CAM_FIELD_LEN);
            out[n].inUse = d.isInUseByAnotherApplication ? 1 : 0;
            n++;
        }
    }
    return n;
}

static int camDefault(char *uid, int cap) {
    int ok = 0;
    @autoreleasepool {
        AVCaptureDevice *d = [AVCaptureDevice defaultDeviceWithMediaType:AVMediaTypeVideo];
        if (d != nil) {
            strlcpy(uid, [d.uniqueID UTF8String], cap);
            ok = 1;
        }
    }
    return ok;
}

static uintptr_t camObserve(int disconnected, uintptr_t token) {
    id observer = nil;
    @autoreleasepool {
        NSNotificationName name = disconnected ? AVCaptureDeviceWasDisconnectedNotification : AVCaptureDeviceWasConnectedNotification;
        observer = [[NSNotificationCenter defaultCenter] addObserverForName:name
                                                                     object:nil
                                                                      queue:nil
                                                                 usingBlock:^(NSNotification *note) {
            goCaptureEvent(token);
        }];
        [observer retain];
    }
    return (uintptr_t)observer;
}

static void camUnobserve(uintptr_t observer) {
    id obs = (id)observer;
    [[NSNotificationCenter defaultCenter] removeObserver:obs];
    [obs release];
}
*/
import "C"

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	liveObservers sync.Map // uint64 -> func()
	nextObserver  atomic.Uint64
)

//export goCaptureEvent
func goCaptureEvent(token C.uintptr_t) {
	if fn, ok := liveObservers.Load(uint64(token)); ok {
		fn.(func())()
	}
}

type avFoundation struct{}

// NewBackend returns the AVFoundation backend.
func NewBackend() (Backend, error) {
	return avFoundation{}, nil
}

func (avFoundation) Name() string { return "avfoundation" }

func (avFoundation) Close() error { return nil }

func (avFoundation) Devices() ([]CaptureDevice, error) {
	var infos [C.CAM_MAX]C.camInfo
	n := int(C.camList(&infos[0], C.CAM_MAX))

	devices := make([]CaptureDevice, 0, n)
	for i := 0; i < n; i++ {
		devices = append(devices, CaptureDevice{
			ID:    C.GoString(&infos[i].uid[0]),
			Name:  C.GoString(&infos[i].name[0]),
			InUse: infos[i].inUse != 0,
		})
	}
	return devices, nil
}

func (avFoundation) DefaultDeviceID() (string, bool) {
	var uid [C.CAM_FIELD_LEN]C.char
	if C.camDefault(&uid[0], C.CAM_FIELD_LEN) == 0 {
		return "", false
	}
	return C.GoString(&uid[0]), true
}

func (avFoundation) Subscribe(ev Event, fn func()) (func() error, error) {
	id := nextObserver.Add(1)
	liveObservers.Store(id, fn)

	disconnected := C.int(0)
	if ev == Disconnected {
		disconnected = 1
	}
	observer := C.camObserve(disconnected, C.uintptr_t(id))
	if observer == 0 {
		liveObservers.Delete(id)
		return nil, errors.New("failed to add capture device observer")
	}

	var once sync.Once
	return func() error {
		once.Do(func() {
			liveObservers.Delete(id)
			C.camUnobserve(observer)
		})
		return nil
	}, nil
}
