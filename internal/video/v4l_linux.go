//go:build linux

package video

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

const (
	sysfsRoot = "/sys/class/video4linux"
	devRoot   = "/dev"
)

type v4lSub struct {
	ev Event
	fn func()
}

// v4l lists Video4Linux capture nodes from sysfs and watches /dev for
// nodes appearing and disappearing. Linux has no exclusive-access
// indicator, so InUse is always false.
type v4l struct {
	sysfs   string
	dev     string
	watcher *fsnotify.Watcher

	mu   sync.Mutex
	subs map[uint64]v4lSub
	next uint64
	done chan struct{}
}

// NewBackend returns the Video4Linux backend.
func NewBackend() (Backend, error) {
	return newV4L(sysfsRoot, devRoot)
}

func newV4L(sysfs, dev string) (*v4l, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create device watcher: %w", err)
	}
	if err := w.Add(dev); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dev, err)
	}

	v := &v4l{
		sysfs:   sysfs,
		dev:     dev,
		watcher: w,
		subs:    make(map[uint64]v4lSub),
		done:    make(chan struct{}),
	}
	go v.watch()
	return v, nil
}

func (v *v4l) Name() string { return "v4l" }

func (v *v4l) Close() error {
	err := v.watcher.Close()
	<-v.done
	return err
}

func (v *v4l) watch() {
	defer close(v.done)
	for {
		select {
		case e, ok := <-v.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasPrefix(filepath.Base(e.Name), "video") {
				continue
			}
			switch {
			case e.Has(fsnotify.Create):
				v.dispatch(Connected)
			case e.Has(fsnotify.Remove):
				v.dispatch(Disconnected)
			}
		case _, ok := <-v.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (v *v4l) dispatch(ev Event) {
	v.mu.Lock()
	var fns []func()
	for _, s := range v.subs {
		if s.ev == ev {
			fns = append(fns, s.fn)
		}
	}
	v.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (v *v4l) Subscribe(ev Event, fn func()) (func() error, error) {
	v.mu.Lock()
	v.next++
	id := v.next
	v.subs[id] = v4lSub{ev: ev, fn: fn}
	v.mu.Unlock()

	return func() error {
		v.mu.Lock()
		defer v.mu.Unlock()
		if _, ok := v.subs[id]; !ok {
			return fmt.Errorf("capture subscription %d already removed", id)
		}
		delete(v.subs, id)
		return nil
	}, nil
}

func (v *v4l) Devices() ([]CaptureDevice, error) {
	entries, err := os.ReadDir(v.sysfs)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	stable := v.stableIDs()
	var devices []CaptureDevice
	for _, e := range entries {
		node := e.Name()
		if !strings.HasPrefix(node, "video") {
			continue
		}
		// Index 0 is the capture node; higher indexes are metadata nodes
		// of the same camera.
		if idx, err := readTrimmed(filepath.Join(v.sysfs, node, "index")); err == nil && idx != "0" {
			continue
		}
		name, err := readTrimmed(filepath.Join(v.sysfs, node, "name"))
		if err != nil || name == "" {
			continue
		}
		id := node
		if s, ok := stable[node]; ok {
			id = s
		}
		devices = append(devices, CaptureDevice{ID: id, Name: name})
	}
	return devices, nil
}

func (v *v4l) DefaultDeviceID() (string, bool) {
	devices, err := v.Devices()
	if err != nil || len(devices) == 0 {
		return "", false
	}
	return devices[0].ID, true
}

// stableIDs maps device nodes to their /dev/v4l/by-id names, which
// survive reconnects while node numbers do not.
func (v *v4l) stableIDs() map[string]string {
	dir := filepath.Join(v.dev, "v4l", "by-id")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	ids := make(map[string]string, len(entries))
	for _, e := range entries {
		target, err := os.Readlink(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		ids[filepath.Base(target)] = e.Name()
	}
	return ids
}

func readTrimmed(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
