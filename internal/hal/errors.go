package hal

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownObject means the object id is stale or was never valid.
	ErrUnknownObject = errors.New("unknown audio object")
	// ErrUnsupportedProperty means the object does not expose the property.
	ErrUnsupportedProperty = errors.New("property not supported")
	// ErrQueryFailed covers every other failed read or write.
	ErrQueryFailed = errors.New("hardware query failed")
)

// Platform status codes.
const (
	statusOK              int32 = 0
	statusBadObject       int32 = '!'<<24 | 'o'<<16 | 'b'<<8 | 'j'
	statusUnknownProperty int32 = 'w'<<24 | 'h'<<16 | 'o'<<8 | '?'
	statusBadPropertySize int32 = '!'<<24 | 's'<<16 | 'i'<<8 | 'z'
	statusIllegalOp       int32 = 'n'<<24 | 'o'<<16 | 'p'<<8 | 'e'
)

// HardwareQueryError is returned by every failed property read or write.
// It is never fatal: callers fall back to a safe default or drop the device.
type HardwareQueryError struct {
	Op     string
	Object ObjectID
	Key    PropertyKey
	Status int32
	Err    error
}

func (e *HardwareQueryError) Error() string {
	if e.Status != statusOK {
		return fmt.Sprintf("%s object %d %s: %v (status %s)", e.Op, e.Object, e.Key, e.Err, fourCC(uint32(e.Status)))
	}
	return fmt.Sprintf("%s object %d %s: %v", e.Op, e.Object, e.Key, e.Err)
}

func (e *HardwareQueryError) Unwrap() error {
	return e.Err
}

// queryError classifies a platform status into a HardwareQueryError.
func queryError(op string, obj ObjectID, key PropertyKey, status int32) error {
	var kind error
	switch status {
	case statusBadObject:
		kind = ErrUnknownObject
	case statusUnknownProperty, statusIllegalOp:
		kind = ErrUnsupportedProperty
	default:
		kind = ErrQueryFailed
	}
	return &HardwareQueryError{Op: op, Object: obj, Key: key, Status: status, Err: kind}
}

// IsStale reports whether err means the object no longer exists.
func IsStale(err error) bool {
	return errors.Is(err, ErrUnknownObject)
}
