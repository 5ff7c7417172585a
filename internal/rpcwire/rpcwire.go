// Package rpcwire implements the length-prefixed framing shared by the
// master lease-allocation RPC and the admin control server, and the
// protobuf-encoded messages the RPC carries inside it.
//
// A companion rpcwire.proto (not compiled by any build step in this
// module, since no protoc toolchain is available) documents the wire
// messages below field-for-field; ClientRequest and ClientResponse
// are hand-encoded with protowire directly against that layout.
package rpcwire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/AdguardTeam/golibs/errors"
)

// MaxBodyLen is the largest permitted RPC body, per spec.md §6.
const MaxBodyLen = 2048

// ErrBodyTooLarge is returned when a frame's declared length exceeds
// [MaxBodyLen].
const ErrBodyTooLarge errors.Error = "rpc body exceeds maximum length"

// ReadFrame reads one 2-byte-big-endian-length-prefixed body from r.
func ReadFrame(r io.Reader) (body []byte, err error) {
	var lenBuf [2]byte
	if _, err = io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("reading frame length: %w", err)
	}

	n := binary.BigEndian.Uint16(lenBuf[:])
	if int(n) > MaxBodyLen {
		return nil, ErrBodyTooLarge
	}

	body = make([]byte, n)
	if _, err = io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("reading frame body: %w", err)
	}

	return body, nil
}

// WriteFrame writes body to w prefixed by its 2-byte big-endian
// length.
func WriteFrame(w io.Writer, body []byte) error {
	if len(body) > MaxBodyLen {
		return ErrBodyTooLarge
	}

	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(body)))

	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("writing frame length: %w", err)
	}

	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("writing frame body: %w", err)
	}

	return nil
}
