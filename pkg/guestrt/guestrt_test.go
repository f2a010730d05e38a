package guestrt

import (
	"testing"

	"github.com/orama-labs/wasmrt/pkg/wasmvalue"
)

func TestGuestAllocateReturnsUsableAddress(t *testing.T) {
	GuestResetArena()
	ptr := GuestAllocate(16)
	if ptr == 0 {
		t.Fatal("GuestAllocate returned a null pointer")
	}
	b := bytesAt(ptr, 16)
	if len(b) != 16 {
		t.Fatalf("bytesAt returned %d bytes, want 16", len(b))
	}
	b[0] = 0xAB
	// A second read of the same region must observe the write, confirming
	// the address is real and not an arena-relative offset.
	again := bytesAt(ptr, 16)
	if again[0] != 0xAB {
		t.Fatal("write through bytesAt address was not observed on re-read")
	}
}

func TestReturnOkProducesDecodableEnvelope(t *testing.T) {
	GuestResetArena()
	packed := ReturnOk([]byte("hello"))
	result := wasmvalue.UnpackResult(packed)
	if !result.OK {
		t.Fatal("expected OK result")
	}

	payload, err := DecodeCall(result.Slice.Ptr, result.Slice.Len)
	if err != nil {
		t.Fatalf("DecodeCall: %v", err)
	}
	if string(payload) != "hello" {
		t.Fatalf("payload = %q, want %q", payload, "hello")
	}
}

func TestReturnErrSetsNotOK(t *testing.T) {
	GuestResetArena()
	packed := ReturnErr("boom")
	result := wasmvalue.UnpackResult(packed)
	if result.OK {
		t.Fatal("expected non-OK result")
	}
	payload, err := DecodeCall(result.Slice.Ptr, result.Slice.Len)
	if err != nil {
		t.Fatalf("DecodeCall: %v", err)
	}
	if string(payload) != "boom" {
		t.Fatalf("payload = %q, want %q", payload, "boom")
	}
}

func TestReturnPtrRoundTripsThroughMsgpack(t *testing.T) {
	GuestResetArena()
	type greeting struct {
		Message string `msgpack:"message"`
	}
	packed := ReturnPtr(greeting{Message: "hi"})
	result := wasmvalue.UnpackResult(packed)
	if !result.OK {
		t.Fatal("expected OK result")
	}

	got, err := DecodeCallAs[greeting](result.Slice.Ptr, result.Slice.Len)
	if err != nil {
		t.Fatalf("DecodeCallAs: %v", err)
	}
	if got.Message != "hi" {
		t.Fatalf("Message = %q, want %q", got.Message, "hi")
	}
}

func TestResetArenaInvalidatesSubsequentAllocationsFromStart(t *testing.T) {
	GuestResetArena()
	GuestAllocate(8)
	firstLen := arena.Len()
	if firstLen != 8 {
		t.Fatalf("arena.Len() = %d, want 8", firstLen)
	}
	GuestResetArena()
	if arena.Len() != 0 {
		t.Fatalf("arena.Len() after reset = %d, want 0", arena.Len())
	}
}
