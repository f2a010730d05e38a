package guestrt

import "github.com/vmihailenco/msgpack/v5"

// ReturnPtr is the optional MessagePack convenience layer described for
// handlers that would rather return a Go value than hand-build an
// envelope payload. It marshals value and passes the bytes to ReturnOk,
// so it produces exactly the same envelope any other ReturnOk caller
// would: there is only ever one wire protocol in flight, this is just a
// more convenient way to produce it.
func ReturnPtr[T any](value T) uint64 {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return ReturnErr(err.Error())
	}
	return ReturnOk(data)
}

// DecodeCallAs decodes the call payload at (ptr, length) as MessagePack
// into a T, the mirror image of ReturnPtr on the inbound side.
func DecodeCallAs[T any](ptr, length uint32) (T, error) {
	var out T
	payload, err := DecodeCall(ptr, length)
	if err != nil {
		return out, err
	}
	if err := msgpack.Unmarshal(payload, &out); err != nil {
		return out, err
	}
	return out, nil
}
