/*
 * horcrux: authenticated n-of-m encrypted file splitting
 * Copyright (C) 2024 Laharah
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

// Package framing implements horcrux's on-disk wire format: every record is
// a base-128 little-endian varint length prefix followed by that many
// bytes of a flat tag-length-value message body.
//
// The outer length-prefix idiom is the same one the teacher's
// internal/schema package uses to wrap a Shard in a versioned envelope
// before marshaling it as JSON; here the inner body is a compact binary
// TLV schema instead of JSON, since horcrux's wire format needs to be
// streamed one record at a time rather than parsed as a single document.
// The varint primitives (tag encoding, value encoding, bounds-checked
// decoding) are reused from google.golang.org/protobuf/encoding/protowire
// rather than hand-rolled, since several repos in the retrieved example
// pack already carry a protobuf dependency for exactly this kind of
// wire-compatible varint; the message schema itself is small and fixed
// enough that generating a full .proto file for it would be overkill.
package framing

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed is returned whenever a record violates the wire format:
// a truncated varint, a length prefix that runs past EOF, an unknown
// field tag, or a field of the wrong wire type.
var ErrMalformed = errors.New("framing: malformed record")

// ByteReader is the minimal interface framing needs to read records: a
// plain io.Reader for bulk payload bytes, plus io.ByteReader so the outer
// varint length prefix can be decoded one byte at a time without
// over-reading into the next record. *bufio.Reader satisfies this, and
// pkg/horcrux constructs exactly one per open horcrux file and reuses it
// across every ReadX call so no bytes are ever double-buffered or lost
// between records.
type ByteReader interface {
	io.Reader
	io.ByteReader
}

// NewByteReader wraps r in a *bufio.Reader if it is not already a
// ByteReader.
func NewByteReader(r io.Reader) ByteReader {
	if br, ok := r.(ByteReader); ok {
		return br
	}
	return bufio.NewReader(r)
}

// Field tags of the wire schema's messages.
const (
	tagShareHeaderID        = 1
	tagShareHeaderThreshold = 2
	tagShareHeaderPoint     = 3

	tagPointX = 1
	tagPointY = 2

	tagStreamHeaderHeader            = 1
	tagStreamHeaderEncryptedFilename = 3

	tagBlockIDID = 1

	tagBlockDataData = 2
)

// writeRecord emits the outer varint(len) || bytes(len) framing around an
// already-marshaled message body.
func writeRecord(w io.Writer, body []byte) error {
	prefix := protowire.AppendVarint(nil, uint64(len(body)))
	if _, err := w.Write(prefix); err != nil {
		return errors.Wrap(err, "write record length prefix")
	}
	if _, err := w.Write(body); err != nil {
		return errors.Wrap(err, "write record body")
	}
	return nil
}

// readRecord consumes one outer varint(len) || bytes(len) record and
// returns the raw body bytes, ready for field-level parsing.
func readRecord(r ByteReader) ([]byte, error) {
	length, err := readUvarint(r)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrap(ErrMalformed, "read record length: "+err.Error())
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, errors.Wrap(ErrMalformed, "read record body: "+err.Error())
	}
	return body, nil
}

// readUvarint reads a base-128 little-endian varint one byte at a time.
// protowire only decodes varints out of an already-materialized byte
// slice, so the outer length prefix -- which must be read from a live
// stream before its own length is known -- is decoded by hand here using
// the same format protowire.AppendVarint writes.
func readUvarint(r io.ByteReader) (uint64, error) {
	v, _, err := readUvarintCounted(r)
	return v, err
}

// readUvarintCounted is readUvarint but also reports how many bytes the
// varint occupied on the wire, which PeekBlockDataLength needs to reconcile an
// outer record length against the inner tag+length header it peeks.
func readUvarintCounted(r io.ByteReader) (value uint64, n int, err error) {
	var x uint64
	var s uint
	for i := 0; i < 10; i++ {
		b, err := r.ReadByte()
		if err != nil {
			if i == 0 {
				return 0, 0, io.EOF
			}
			return 0, 0, err
		}
		if b < 0x80 {
			if i == 9 && b > 1 {
				return 0, 0, errors.New("varint overflows 64 bits")
			}
			return x | uint64(b)<<s, i + 1, nil
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
	return 0, 0, errors.New("varint too long")
}

func consumeTag(data []byte, wantNum protowire.Number, wantType protowire.Type) ([]byte, error) {
	num, typ, n := protowire.ConsumeTag(data)
	if n < 0 {
		return nil, errors.Wrap(ErrMalformed, "consume field tag")
	}
	if num != wantNum || typ != wantType {
		return nil, errors.Wrapf(ErrMalformed, "unexpected field tag %d (wire type %d)", num, typ)
	}
	return data[n:], nil
}

func consumeVarintField(data []byte, tag protowire.Number) (uint64, []byte, error) {
	rest, err := consumeTag(data, tag, protowire.VarintType)
	if err != nil {
		return 0, nil, err
	}
	v, n := protowire.ConsumeVarint(rest)
	if n < 0 {
		return 0, nil, errors.Wrap(ErrMalformed, "consume varint field value")
	}
	return v, rest[n:], nil
}

func consumeBytesField(data []byte, tag protowire.Number) ([]byte, []byte, error) {
	rest, err := consumeTag(data, tag, protowire.BytesType)
	if err != nil {
		return nil, nil, err
	}
	v, n := protowire.ConsumeBytes(rest)
	if n < 0 {
		return nil, nil, errors.Wrap(ErrMalformed, "consume bytes field value")
	}
	return v, rest[n:], nil
}

// peekTag reports the field number and wire type of the next field in
// data without consuming it, or ok=false if data is exhausted.
func peekTag(data []byte) (num protowire.Number, typ protowire.Type, ok bool) {
	if len(data) == 0 {
		return 0, 0, false
	}
	num, typ, n := protowire.ConsumeTag(data)
	if n < 0 {
		return 0, 0, false
	}
	return num, typ, true
}
