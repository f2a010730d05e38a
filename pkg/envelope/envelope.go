// Package envelope implements the wire framing used for every host-guest
// call: a fixed 12-byte header followed by a payload.
package envelope

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// Magic identifies a well-formed envelope header.
const Magic uint16 = 0x4149

// Version is the current header version; Decode accepts any version up to
// and including it.
const Version uint8 = 1

// HeaderSize is the fixed byte length of an encoded header.
const HeaderSize = 12

// Flags is a bitfield carried in the header.
type Flags uint8

const (
	FlagCompressed     Flags = 1 << 0
	FlagEncrypted      Flags = 1 << 1
	FlagExpectsResponse Flags = 1 << 2
	FlagIsError        Flags = 1 << 3
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Header is the fixed-size prologue of every envelope.
type Header struct {
	Magic      uint16
	Version    uint8
	Flags      Flags
	PayloadLen uint32
	Checksum   uint32
}

// Envelope is a decoded header paired with its payload bytes.
type Envelope struct {
	Header  Header
	Payload []byte
}

// New builds an envelope over payload, computing the checksum and payload
// length automatically. The caller supplies any flags other than the length
// and checksum fields, which are always derived.
func New(payload []byte, flags Flags) Envelope {
	return Envelope{
		Header: Header{
			Magic:      Magic,
			Version:    Version,
			Flags:      flags,
			PayloadLen: uint32(len(payload)),
			Checksum:   crc32.ChecksumIEEE(payload),
		},
		Payload: payload,
	}
}

// Encode serializes the envelope to its little-endian wire form.
func (e Envelope) Encode() []byte {
	buf := make([]byte, HeaderSize+len(e.Payload))
	binary.LittleEndian.PutUint16(buf[0:2], e.Header.Magic)
	buf[2] = e.Header.Version
	buf[3] = byte(e.Header.Flags)
	binary.LittleEndian.PutUint32(buf[4:8], e.Header.PayloadLen)
	binary.LittleEndian.PutUint32(buf[8:12], e.Header.Checksum)
	copy(buf[HeaderSize:], e.Payload)
	return buf
}

// Decode parses and validates an envelope from the wire.
//
// It checks the magic number, the version, the declared payload length
// against the actual remaining bytes, and the checksum over the payload.
// A structural mismatch is reported as a *FormatError and a checksum
// mismatch as a *ChecksumError. The returned Payload aliases buf rather
// than copying it.
func Decode(buf []byte) (Envelope, error) {
	if len(buf) < HeaderSize {
		return Envelope{}, &FormatError{Reason: fmt.Sprintf("buffer too short: got %d bytes, need at least %d", len(buf), HeaderSize)}
	}

	h := Header{
		Magic:      binary.LittleEndian.Uint16(buf[0:2]),
		Version:    buf[2],
		Flags:      Flags(buf[3]),
		PayloadLen: binary.LittleEndian.Uint32(buf[4:8]),
		Checksum:   binary.LittleEndian.Uint32(buf[8:12]),
	}

	if h.Magic != Magic {
		return Envelope{}, &FormatError{Reason: fmt.Sprintf("bad magic: got 0x%04x, want 0x%04x", h.Magic, Magic)}
	}
	if h.Version > Version {
		return Envelope{}, &FormatError{Reason: fmt.Sprintf("unsupported version: got %d, want at most %d", h.Version, Version)}
	}

	rest := buf[HeaderSize:]
	if uint32(len(rest)) != h.PayloadLen {
		return Envelope{}, &FormatError{Reason: fmt.Sprintf("payload length mismatch: header says %d, have %d", h.PayloadLen, len(rest))}
	}

	payload := rest

	if sum := crc32.ChecksumIEEE(payload); sum != h.Checksum {
		return Envelope{}, &ChecksumError{Expected: h.Checksum, Actual: sum}
	}

	return Envelope{Header: h, Payload: payload}, nil
}

// FormatError reports a structurally invalid envelope (bad magic, version,
// or length).
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string { return "envelope: " + e.Reason }

// ChecksumError reports a payload whose CRC32 does not match the header.
type ChecksumError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("envelope: checksum mismatch: header says 0x%08x, computed 0x%08x", e.Expected, e.Actual)
}
