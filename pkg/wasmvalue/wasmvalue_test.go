package wasmvalue

import "testing"

func TestSlicePackUnpack(t *testing.T) {
	s := Slice{Ptr: 0x12345678, Len: 0x1000}
	v := s.Pack()
	want := uint64(0x12345678)<<32 | 0x1000
	if v != want {
		t.Fatalf("Pack() = 0x%016x, want 0x%016x", v, want)
	}
	got := UnpackSlice(v)
	if got != s {
		t.Fatalf("UnpackSlice(Pack(s)) = %+v, want %+v", got, s)
	}
}

func TestResultOkRoundTrip(t *testing.T) {
	s := Slice{Ptr: 42, Len: 7}
	r := ReturnOk(s)
	v := r.Pack()
	got := UnpackResult(v)
	if !got.OK {
		t.Fatal("expected OK result")
	}
	if got.Slice != s {
		t.Fatalf("slice = %+v, want %+v", got.Slice, s)
	}
}

func TestResultErrRoundTrip(t *testing.T) {
	s := Slice{Ptr: 1, Len: 2}
	r := ReturnErr(s)
	v := r.Pack()
	got := UnpackResult(v)
	if got.OK {
		t.Fatal("expected non-OK result")
	}
	if got.Slice != s {
		t.Fatalf("slice = %+v, want %+v", got.Slice, s)
	}
}

func TestResultPackSetsBit63OnlyOnError(t *testing.T) {
	s := Slice{Ptr: 0x12345678, Len: 0x1000}
	okPacked := ReturnOk(s).Pack()
	if okPacked&(uint64(1)<<63) != 0 {
		t.Fatalf("ok result packed as 0x%016x, want bit 63 clear", okPacked)
	}
	errPacked := ReturnErr(s).Pack()
	if errPacked&(uint64(1)<<63) == 0 {
		t.Fatalf("err result packed as 0x%016x, want bit 63 set", errPacked)
	}
}

func TestResultHighBitDoesNotLeakIntoPointer(t *testing.T) {
	// A pointer with its own top bit set must not be confused with the ok-bit.
	s := Slice{Ptr: 0xFFFFFFFF, Len: 0xFFFFFFFF}
	for _, ok := range []bool{true, false} {
		r := Result{OK: ok, Slice: s}
		got := UnpackResult(r.Pack())
		if got.OK != ok || got.Slice != s {
			t.Fatalf("ok=%v: got %+v, want OK=%v Slice=%+v", ok, got, ok, s)
		}
	}
}
