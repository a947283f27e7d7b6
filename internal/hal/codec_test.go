package hal

import (
	"errors"
	"math"
	"testing"

	"github.com/davecgh/go-spew/spew"
)

// countingHardware records the calls a Codec makes.
type countingHardware struct {
	*Fake
	sizeCalls int
	dataCalls int
	lastBuf   int
}

func (c *countingHardware) PropertyDataSize(obj ObjectID, key PropertyKey) (uint32, error) {
	c.sizeCalls++
	return c.Fake.PropertyDataSize(obj, key)
}

func (c *countingHardware) PropertyData(obj ObjectID, key PropertyKey, buf []byte) (int, error) {
	c.dataCalls++
	c.lastBuf = len(buf)
	return c.Fake.PropertyData(obj, key, buf)
}

func TestReadPropertyTwoPhase(t *testing.T) {
	hw := &countingHardware{Fake: NewDemoFake()}
	codec := NewCodec(hw)

	ids, err := codec.ReadObjectIDs(SystemObject, DevicesKey())
	if err != nil {
		t.Fatalf("ReadObjectIDs: %v", err)
	}
	want := []ObjectID{41, 52, 67, 73}
	if len(ids) != len(want) {
		t.Fatalf("ReadObjectIDs = %s", spew.Sdump(ids))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %d, want %d", i, ids[i], want[i])
		}
	}
	if hw.sizeCalls != 1 || hw.dataCalls != 1 {
		t.Errorf("expected one size and one data call, got %d and %d", hw.sizeCalls, hw.dataCalls)
	}
	if hw.lastBuf != 16 {
		t.Errorf("data buffer = %d bytes, want exactly the reported size 16", hw.lastBuf)
	}
}

func TestReadPropertyAbsent(t *testing.T) {
	hw := &countingHardware{Fake: NewFake()}
	codec := NewCodec(hw)

	data, err := codec.ReadProperty(SystemObject, DevicesKey())
	if err != nil || data != nil {
		t.Fatalf("ReadProperty on empty list = %v, %v; want nil, nil", data, err)
	}
	if hw.dataCalls != 0 {
		t.Errorf("size 0 must skip the data phase, got %d data calls", hw.dataCalls)
	}

	ids, err := codec.ReadObjectIDs(SystemObject, DevicesKey())
	if err != nil || len(ids) != 0 {
		t.Errorf("ReadObjectIDs on empty list = %v, %v", ids, err)
	}
}

func TestReadString(t *testing.T) {
	f := NewFake()
	f.AddDevice(FakeDevice{ID: 5, Name: "Studio Display", Outputs: 1})
	f.AddDevice(FakeDevice{ID: 6, Outputs: 1})
	codec := NewCodec(f)

	name, err := codec.ReadString(5, NameKey())
	if err != nil || name != "Studio Display" {
		t.Errorf("ReadString = %q, %v", name, err)
	}

	_, err = codec.ReadString(6, NameKey())
	if !errors.Is(err, ErrUnsupportedProperty) {
		t.Errorf("unnamed device: got %v, want ErrUnsupportedProperty", err)
	}

	f.SetRaw(6, NameKey(), []byte{})
	_, err = codec.ReadString(6, NameKey())
	if !errors.Is(err, ErrUnsupportedProperty) {
		t.Errorf("empty name: got %v, want ErrUnsupportedProperty", err)
	}
}

func TestReadScalarTooShort(t *testing.T) {
	f := NewFake()
	f.AddDevice(FakeDevice{ID: 5, Name: "Speakers", Outputs: 1, OutputVolume: 0.5})
	f.SetRaw(5, VolumeKey(Output), []byte{1, 2})

	_, err := NewCodec(f).ReadFloat32(5, VolumeKey(Output))
	var qe *HardwareQueryError
	if !errors.As(err, &qe) || qe.Status != statusBadPropertySize {
		t.Fatalf("short scalar: got %s", spew.Sdump(err))
	}
	if !errors.Is(err, ErrUnsupportedProperty) {
		t.Errorf("short scalar should classify as unsupported, got %v", err)
	}
}

func TestErrorClassification(t *testing.T) {
	f := NewDemoFake()
	codec := NewCodec(f)

	_, err := codec.ReadFloat32(999, VolumeKey(Output))
	if !errors.Is(err, ErrUnknownObject) || !IsStale(err) {
		t.Errorf("unknown object: got %v", err)
	}

	_, err = codec.ReadFloat32(73, VolumeKey(Output))
	if !errors.Is(err, ErrUnsupportedProperty) {
		t.Errorf("missing volume: got %v", err)
	}
	if IsStale(err) {
		t.Error("missing property is not stale")
	}

	tests := []struct {
		status int32
		want   error
	}{
		{statusBadObject, ErrUnknownObject},
		{statusUnknownProperty, ErrUnsupportedProperty},
		{statusIllegalOp, ErrUnsupportedProperty},
		{statusBadPropertySize, ErrQueryFailed},
		{-50, ErrQueryFailed},
	}
	for _, tt := range tests {
		err := queryError("read", 1, VolumeKey(Output), tt.status)
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: got %v, want %v", tt.status, err, tt.want)
		}
	}
}

func TestClampVolume(t *testing.T) {
	nan := float32(math.NaN())
	tests := []struct {
		in, want float32
	}{
		{-0.5, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{1.7, 1},
		{float32(math.Inf(1)), 1},
		{float32(math.Inf(-1)), 0},
		{nan, 0},
	}
	for _, tt := range tests {
		if got := ClampVolume(tt.in); got != tt.want {
			t.Errorf("ClampVolume(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWriteVolumeClamps(t *testing.T) {
	f := NewDemoFake()
	codec := NewCodec(f)

	for _, tt := range []struct{ in, want float32 }{{1.7, 1}, {-3, 0}, {0.3, 0.3}} {
		if err := codec.WriteVolume(41, VolumeKey(Output), tt.in); err != nil {
			t.Fatalf("WriteVolume(%v): %v", tt.in, err)
		}
		got, _ := f.Float32(41, VolumeKey(Output))
		if got != tt.want {
			t.Errorf("after WriteVolume(%v) stored %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWriteMuteEncoding(t *testing.T) {
	f := NewDemoFake()
	codec := NewCodec(f)

	for _, muted := range []bool{true, false, true} {
		if err := codec.WriteMute(67, MuteKey(Input), muted); err != nil {
			t.Fatalf("WriteMute(%v): %v", muted, err)
		}
		raw, err := codec.ReadProperty(67, MuteKey(Input))
		if err != nil {
			t.Fatal(err)
		}
		want := []byte{0, 0, 0, 0}
		if muted {
			want[0] = 1
		}
		if string(raw) != string(want) {
			t.Errorf("mute %v encoded as %v, want %v", muted, raw, want)
		}
	}
}

func TestWriteDefaultDevice(t *testing.T) {
	f := NewDemoFake()
	codec := NewCodec(f)

	if err := codec.WriteObjectID(SystemObject, DefaultDeviceKey(Output), 67); err != nil {
		t.Fatalf("set default output to a device with output streams: %v", err)
	}
	id, err := codec.ReadObjectID(SystemObject, DefaultDeviceKey(Output))
	if err != nil || id != 67 {
		t.Errorf("default output = %d, %v", id, err)
	}

	// The microphone has no output streams.
	err = codec.WriteObjectID(SystemObject, DefaultDeviceKey(Output), 52)
	if !errors.Is(err, ErrUnsupportedProperty) {
		t.Errorf("rejected default: got %v", err)
	}
	if id, _ := codec.ReadObjectID(SystemObject, DefaultDeviceKey(Output)); id != 67 {
		t.Errorf("rejected write changed default to %d", id)
	}
}

func TestPropertyKeyString(t *testing.T) {
	if got := VolumeKey(Output).String(); got != "'vmvc'/'outp'/0" {
		t.Errorf("VolumeKey(Output).String() = %q", got)
	}
}
