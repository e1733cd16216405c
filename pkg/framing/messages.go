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

package framing

import (
	"io"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Point mirrors field.Point on the wire: an X coordinate in [0, 255] and a
// big-endian Y value of up to 32 bytes. Y is stored without its leading
// zero bytes (standard protobuf bytes-field behavior), so the unmarshaler
// re-pads it to 32 bytes for the caller.
type Point struct {
	X uint16
	Y [32]byte
}

func marshalPoint(p Point) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, tagPointX, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(p.X))
	buf = protowire.AppendTag(buf, tagPointY, protowire.BytesType)
	buf = protowire.AppendBytes(buf, trimLeadingZeros(p.Y[:]))
	return buf
}

func unmarshalPoint(data []byte) (Point, error) {
	var p Point
	x, rest, err := consumeVarintField(data, tagPointX)
	if err != nil {
		return p, errors.Wrap(err, "Point.X")
	}
	if x > 255 {
		return p, errors.Wrap(ErrMalformed, "Point.X out of range")
	}
	p.X = uint16(x)

	y, rest, err := consumeBytesField(rest, tagPointY)
	if err != nil {
		return p, errors.Wrap(err, "Point.Y")
	}
	if len(y) > len(p.Y) {
		return p, errors.Wrap(ErrMalformed, "Point.Y longer than 32 bytes")
	}
	if len(rest) != 0 {
		return p, errors.Wrap(ErrMalformed, "Point has trailing data")
	}
	copy(p.Y[len(p.Y)-len(y):], y)
	return p, nil
}

// ShareHeader is the first record of every horcrux file: the salt shared
// by every share of the split, the reconstruction threshold, and this
// horcrux's point on the secret-sharing polynomial.
type ShareHeader struct {
	ID        [16]byte
	Threshold uint8
	Point     Point
}

// WriteShareHeader marshals and writes a ShareHeader record.
func WriteShareHeader(w io.Writer, h ShareHeader) error {
	var buf []byte
	buf = protowire.AppendTag(buf, tagShareHeaderID, protowire.BytesType)
	buf = protowire.AppendBytes(buf, h.ID[:])
	buf = protowire.AppendTag(buf, tagShareHeaderThreshold, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(h.Threshold))
	buf = protowire.AppendTag(buf, tagShareHeaderPoint, protowire.BytesType)
	buf = protowire.AppendBytes(buf, marshalPoint(h.Point))
	return writeRecord(w, buf)
}

// ReadShareHeader reads and unmarshals a ShareHeader record.
func ReadShareHeader(r ByteReader) (ShareHeader, error) {
	var h ShareHeader
	data, err := readRecord(r)
	if err != nil {
		return h, err
	}

	id, rest, err := consumeBytesField(data, tagShareHeaderID)
	if err != nil {
		return h, errors.Wrap(err, "ShareHeader.ID")
	}
	if len(id) != 16 {
		return h, errors.Wrap(ErrMalformed, "ShareHeader.ID must be 16 bytes")
	}
	copy(h.ID[:], id)

	threshold, rest, err := consumeVarintField(rest, tagShareHeaderThreshold)
	if err != nil {
		return h, errors.Wrap(err, "ShareHeader.Threshold")
	}
	if threshold < 2 || threshold > 253 {
		return h, errors.Wrap(ErrMalformed, "ShareHeader.Threshold out of range")
	}
	h.Threshold = uint8(threshold)

	pointBytes, rest, err := consumeBytesField(rest, tagShareHeaderPoint)
	if err != nil {
		return h, errors.Wrap(err, "ShareHeader.Point")
	}
	if len(rest) != 0 {
		return h, errors.Wrap(ErrMalformed, "ShareHeader has trailing data")
	}
	point, err := unmarshalPoint(pointBytes)
	if err != nil {
		return h, errors.Wrap(err, "ShareHeader.Point")
	}
	h.Point = point
	return h, nil
}

// StreamHeader is the second record of every horcrux file: the
// secretstream header produced by streamcipher.InitEncrypt, and
// optionally a sealed filename (streamcipher.SealFilename).
type StreamHeader struct {
	Header            [24]byte
	HasFilename       bool
	EncryptedFilename []byte
}

// WriteStreamHeader marshals and writes a StreamHeader record.
func WriteStreamHeader(w io.Writer, h StreamHeader) error {
	var buf []byte
	buf = protowire.AppendTag(buf, tagStreamHeaderHeader, protowire.BytesType)
	buf = protowire.AppendBytes(buf, h.Header[:])
	if h.HasFilename {
		buf = protowire.AppendTag(buf, tagStreamHeaderEncryptedFilename, protowire.BytesType)
		buf = protowire.AppendBytes(buf, h.EncryptedFilename)
	}
	return writeRecord(w, buf)
}

// ReadStreamHeader reads and unmarshals a StreamHeader record. The
// filename field is optional; its presence (not its length) distinguishes
// "no filename" from "empty filename", per spec.md's note on §4.5's
// EncryptedFilename framing.
func ReadStreamHeader(r ByteReader) (StreamHeader, error) {
	var h StreamHeader
	data, err := readRecord(r)
	if err != nil {
		return h, err
	}

	headerBytes, rest, err := consumeBytesField(data, tagStreamHeaderHeader)
	if err != nil {
		return h, errors.Wrap(err, "StreamHeader.Header")
	}
	if len(headerBytes) != 24 {
		return h, errors.Wrap(ErrMalformed, "StreamHeader.Header must be 24 bytes")
	}
	copy(h.Header[:], headerBytes)

	if num, _, ok := peekTag(rest); ok && num == tagStreamHeaderEncryptedFilename {
		filename, tail, err := consumeBytesField(rest, tagStreamHeaderEncryptedFilename)
		if err != nil {
			return h, errors.Wrap(err, "StreamHeader.EncryptedFilename")
		}
		h.HasFilename = true
		h.EncryptedFilename = filename
		rest = tail
	}
	if len(rest) != 0 {
		return h, errors.Wrap(ErrMalformed, "StreamHeader has trailing data")
	}
	return h, nil
}

// BlockID is the first of a pair of records written before each block's
// payload, so a reader can peek the upcoming block's id without
// materializing its data.
type BlockID struct {
	ID uint64
}

// WriteBlockID marshals and writes a BlockID record.
func WriteBlockID(w io.Writer, id uint64) error {
	var buf []byte
	buf = protowire.AppendTag(buf, tagBlockIDID, protowire.VarintType)
	buf = protowire.AppendVarint(buf, id)
	return writeRecord(w, buf)
}

// ReadBlockID reads and unmarshals a BlockID record. io.EOF is returned
// (unwrapped) when the stream ends cleanly at a record boundary.
func ReadBlockID(r ByteReader) (uint64, error) {
	data, err := readRecord(r)
	if err != nil {
		return 0, err
	}
	id, rest, err := consumeVarintField(data, tagBlockIDID)
	if err != nil {
		return 0, errors.Wrap(err, "BlockID.ID")
	}
	if len(rest) != 0 {
		return 0, errors.Wrap(ErrMalformed, "BlockID has trailing data")
	}
	return id, nil
}

// WriteBlockData marshals and writes a BlockData record.
func WriteBlockData(w io.Writer, data []byte) error {
	var buf []byte
	buf = protowire.AppendTag(buf, tagBlockDataData, protowire.BytesType)
	buf = protowire.AppendBytes(buf, data)
	return writeRecord(w, buf)
}

// ReadBlockData reads and unmarshals a BlockData record.
func ReadBlockData(r ByteReader) ([]byte, error) {
	data, err := readRecord(r)
	if err != nil {
		return nil, err
	}
	body, rest, err := consumeBytesField(data, tagBlockDataData)
	if err != nil {
		return nil, errors.Wrap(err, "BlockData.Data")
	}
	if len(rest) != 0 {
		return nil, errors.Wrap(ErrMalformed, "BlockData has trailing data")
	}
	return body, nil
}

// PeekBlockDataLength reads just enough of the next BlockData record's
// header (the outer length prefix and the inner field tag + length) to
// learn how many payload bytes follow, without reading the payload
// itself. The caller (pkg/horcrux's SkipBlock) is then free to either
// io.CopyN the remaining bytes to io.Discard, or Seek past them when the
// underlying source is seekable -- this is what lets skipping a block be
// O(header) instead of O(block size).
func PeekBlockDataLength(r ByteReader) (int, error) {
	recordLen, err := readUvarint(r)
	if err != nil {
		if err == io.EOF {
			return 0, io.EOF
		}
		return 0, errors.Wrap(ErrMalformed, "skip block: read record length: "+err.Error())
	}
	if recordLen == 0 {
		return 0, errors.Wrap(ErrMalformed, "skip block: empty BlockData record")
	}

	tagByte, err := r.ReadByte()
	if err != nil {
		return 0, errors.Wrap(ErrMalformed, "skip block: read field tag: "+err.Error())
	}
	num := protowire.Number(tagByte >> 3)
	typ := protowire.Type(tagByte & 0x7)
	if num != tagBlockDataData || typ != protowire.BytesType {
		return 0, errors.Wrapf(ErrMalformed, "skip block: unexpected field tag %d", tagByte)
	}

	dataLen, lenSize, err := readUvarintCounted(r)
	if err != nil {
		return 0, errors.Wrap(ErrMalformed, "skip block: read data length: "+err.Error())
	}
	if expected := uint64(1 + lenSize) + dataLen; expected != recordLen {
		return 0, errors.Wrap(ErrMalformed, "skip block: record length does not match header")
	}
	return int(dataLen), nil
}

func trimLeadingZeros(b []byte) []byte {
	i := 0
	for i < len(b) && b[i] == 0 {
		i++
	}
	return b[i:]
}
