package guestrt

import "testing"

func TestLogRoundTripsThroughHostImportStub(t *testing.T) {
	GuestResetArena()
	if err := Log("hello from the guest"); err != nil {
		t.Fatalf("Log: %v", err)
	}
}
