package guestarena

import (
	"bytes"
	"testing"
)

func TestAllocateBumpsPointer(t *testing.T) {
	a := New()
	p1, err := a.Allocate(16)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	p2, err := a.Allocate(32)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if p2 != p1+16 {
		t.Fatalf("p2 = %d, want %d", p2, p1+16)
	}
}

func TestResetReclaimsSpace(t *testing.T) {
	a := NewWithCapacity(64)
	if _, err := a.Allocate(64); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if a.Len() != 64 {
		t.Fatalf("Len() = %d, want 64", a.Len())
	}
	a.Reset()
	if a.Len() != 0 {
		t.Fatalf("Len() after Reset = %d, want 0", a.Len())
	}
	p, err := a.Allocate(8)
	if err != nil {
		t.Fatalf("Allocate after Reset: %v", err)
	}
	if p != 0 {
		t.Fatalf("first pointer after Reset = %d, want 0", p)
	}
}

func TestAllocateFailsPastFixedCapacity(t *testing.T) {
	a := NewWithCapacity(4)
	if a.Cap() != 4 {
		t.Fatalf("Cap() = %d, want 4", a.Cap())
	}
	if _, err := a.Allocate(100); err == nil {
		t.Fatal("expected an error allocating past fixed capacity")
	}
	// Capacity must not have changed: this arena never grows.
	if a.Cap() != 4 {
		t.Fatalf("Cap() = %d after failed allocation, want unchanged 4", a.Cap())
	}
}

func TestBasePtrStableAcrossAllocations(t *testing.T) {
	a := NewWithCapacity(64)
	before := a.BasePtr()
	if _, err := a.Allocate(8); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if _, err := a.Allocate(8); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if a.BasePtr() != before {
		t.Fatal("BasePtr must stay stable across allocations: the arena never moves its backing buffer")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	a := New()
	data := []byte("hello world")
	ptr, err := a.AllocateBytes(data)
	if err != nil {
		t.Fatalf("AllocateBytes: %v", err)
	}
	got, err := a.Read(ptr, uint32(len(data)))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("got %q, want %q", got, data)
	}
}

func TestReadPastAllocatedRegionFails(t *testing.T) {
	a := New()
	if _, err := a.Allocate(8); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if _, err := a.Read(0, 9); err == nil {
		t.Fatal("expected an error reading past the allocated region")
	}
}

func TestDeallocateIsNoOp(t *testing.T) {
	a := New()
	ptr, err := a.Allocate(8)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	a.Deallocate(ptr, 8)
	if a.Len() != 8 {
		t.Fatalf("Len() after Deallocate = %d, want 8 (deallocate must be a no-op)", a.Len())
	}
}

func TestZeroSizeAllocation(t *testing.T) {
	a := New()
	p1, err := a.Allocate(0)
	if err != nil {
		t.Fatalf("Allocate(0): %v", err)
	}
	p2, err := a.Allocate(0)
	if err != nil {
		t.Fatalf("Allocate(0): %v", err)
	}
	if p1 != p2 {
		t.Fatalf("two zero-size allocations returned different pointers: %d vs %d", p1, p2)
	}
}
