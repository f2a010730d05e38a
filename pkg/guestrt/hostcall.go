package guestrt

import (
	"github.com/orama-labs/wasmrt/pkg/envelope"
	"github.com/orama-labs/wasmrt/pkg/wasmvalue"
)

// Log sends message to the host's demonstration logging import, framed as
// an envelope exactly like any host-issued call. It is the guest-side half
// of pkg/wasmengine.LogHostFunctions: the symmetric direction of the call
// protocol, where the guest places a request in its own arena and the host
// writes its response into that same arena rather than the guest writing
// into the host's memory.
func Log(message string) error {
	out := envelope.New([]byte(message), 0).Encode()
	ptr, err := arena.AllocateBytes(out)
	if err != nil {
		return err
	}
	packed := hostLog(offsetToAddr(ptr), uint32(len(out)))
	result := wasmvalue.UnpackResult(packed)
	if !result.OK {
		return errFromSlice(result.Slice)
	}
	return nil
}

// errFromSlice decodes an error envelope the host wrote into the arena and
// turns its payload into a Go error.
func errFromSlice(slice wasmvalue.Slice) error {
	raw, err := arena.Read(addrToOffset(slice.Ptr), slice.Len)
	if err != nil {
		return err
	}
	env, err := envelope.Decode(raw)
	if err != nil {
		return err
	}
	return &hostCallError{message: string(env.Payload)}
}

type hostCallError struct{ message string }

func (e *hostCallError) Error() string { return e.message }
