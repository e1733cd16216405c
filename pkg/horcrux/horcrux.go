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

// Package horcrux implements the per-file read/write half of the horcrux
// format: a Reader and Writer pair that speak the record sequence
// ShareHeader, StreamHeader, (BlockID, BlockData)* defined by pkg/framing.
//
// It is grounded directly on the reference implementation's Horcrux class
// (_examples/original_source/horcrux/io.py): InitRead/ReadBlock/SkipBlock
// and the next_block_id "peek" field all mirror that class's method names
// and sequencing, translated from a single combined read/write object into
// Go's Reader/Writer split so each side's zero value carries only the
// state it needs.
package horcrux

import (
	"io"

	"github.com/pkg/errors"

	"github.com/Laharah/horcrux/pkg/framing"
)

// ErrMalformed is returned when the underlying stream violates the wire
// format; it is the same value as framing.ErrMalformed, so callers can
// match on either.
var ErrMalformed = framing.ErrMalformed

// Reader reads one horcrux file: its share header and stream header, then
// a sequence of (BlockID, BlockData) pairs.
//
// Reader always peeks one block ahead: after InitRead and after every
// ReadBlock/SkipBlock, NextBlockID reports the id of the next pending
// block, or ok=false if the file ends cleanly at a record boundary. This
// lets a caller managing several horcruxes (internal/combine) compare
// next ids across files without consuming a block it isn't ready for yet.
type Reader struct {
	source       io.Reader
	seeker       io.Seeker // non-nil when source also implements io.Seeker
	br           framing.ByteReader
	Share        framing.ShareHeader
	CryptoHeader [24]byte
	HasFilename  bool
	Filename     []byte // sealed; caller decrypts with streamcipher.OpenFilename

	nextBlockID    uint64
	atEnd          bool
	pendingDataLen int // not set or read by any method
}

// ErrEnd is a sentinel identifying clean end-of-stream at a BlockID
// boundary, distinct from a truncated/malformed file.
var ErrEnd = errors.New("horcrux: end of block stream")

// NewReader constructs a Reader over source. If source also implements
// io.Seeker, SkipBlock will seek past block payloads instead of reading
// and discarding them.
func NewReader(source io.Reader) *Reader {
	r := &Reader{source: source}
	if s, ok := source.(io.Seeker); ok {
		r.seeker = s
	}
	r.br = framing.NewByteReader(source)
	return r
}

// InitRead consumes the ShareHeader and StreamHeader records, populating
// Share, CryptoHeader, HasFilename, and Filename, then primes the first
// NextBlockID.
func (r *Reader) InitRead() error {
	share, err := framing.ReadShareHeader(r.br)
	if err != nil {
		return errors.Wrap(err, "horcrux: read share header")
	}
	r.Share = share

	stream, err := framing.ReadStreamHeader(r.br)
	if err != nil {
		return errors.Wrap(err, "horcrux: read stream header")
	}
	r.CryptoHeader = stream.Header
	r.HasFilename = stream.HasFilename
	r.Filename = stream.EncryptedFilename

	return r.primeNext()
}

// NextBlockID returns the id of the block that the next ReadBlock or
// SkipBlock call will consume, and whether one is pending. false means
// the file has ended cleanly.
func (r *Reader) NextBlockID() (id uint64, ok bool) {
	return r.nextBlockID, !r.atEnd
}

// ReadBlock consumes the pending BlockData record, returning the id it
// was peeked under (the one most recently reported by NextBlockID) and
// its decoded bytes, then re-primes NextBlockID for the following pair.
func (r *Reader) ReadBlock() (id uint64, data []byte, err error) {
	if r.atEnd {
		return 0, nil, errors.Wrap(ErrEnd, "horcrux: ReadBlock called past end of stream")
	}
	id = r.nextBlockID
	data, err = framing.ReadBlockData(r.br)
	if err != nil {
		return 0, nil, errors.Wrap(err, "horcrux: read block data")
	}
	if err := r.primeNext(); err != nil {
		return 0, nil, err
	}
	return id, data, nil
}

// SkipBlock discards the pending BlockData record without decoding it,
// seeking past its payload when the underlying source supports it, then
// re-primes NextBlockID.
func (r *Reader) SkipBlock() error {
	if r.atEnd {
		return errors.Wrap(ErrEnd, "horcrux: SkipBlock called past end of stream")
	}
	n, err := framing.PeekBlockDataLength(r.br)
	if err != nil {
		return errors.Wrap(err, "horcrux: peek block data length")
	}
	if err := r.discard(int64(n)); err != nil {
		return errors.Wrap(err, "horcrux: discard block data")
	}
	return r.primeNext()
}

// discard skips n bytes forward, via Seek when available, otherwise via a
// read-and-throw-away copy through the buffered reader.
func (r *Reader) discard(n int64) error {
	if n == 0 {
		return nil
	}
	if r.seeker != nil {
		// r.br (a *bufio.Reader wrapping the seekable source) may already
		// hold buffered bytes read ahead of the seeker's file position.
		// Consume those from the buffer first -- they're already in
		// memory, no I/O needed -- then Seek the remainder directly on
		// the underlying source so large payloads never get copied
		// through user space.
		if br, ok := r.br.(interface{ Buffered() int }); ok {
			buffered := int64(br.Buffered())
			if buffered > n {
				buffered = n
			}
			if buffered > 0 {
				if _, err := io.CopyN(io.Discard, r.br, buffered); err != nil {
					return err
				}
				n -= buffered
			}
		}
		if n == 0 {
			return nil
		}
		_, err := r.seeker.Seek(n, io.SeekCurrent)
		return err
	}
	_, err := io.CopyN(io.Discard, r.br, n)
	return err
}

// primeNext reads the next BlockID record (if any) to prepare
// NextBlockID/atEnd for the caller.
func (r *Reader) primeNext() error {
	id, err := framing.ReadBlockID(r.br)
	if err == io.EOF {
		r.atEnd = true
		r.nextBlockID = 0
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "horcrux: read block id")
	}
	r.nextBlockID = id
	r.atEnd = false
	return nil
}

// Writer writes one horcrux file: its share header and stream header,
// then a sequence of (BlockID, BlockData) pairs via WriteBlock.
type Writer struct {
	sink io.Writer
}

// NewWriter constructs a Writer over sink.
func NewWriter(sink io.Writer) *Writer {
	return &Writer{sink: sink}
}

// InitWrite emits the ShareHeader and StreamHeader records. filename, if
// non-nil, is written as StreamHeader's optional encrypted_filename field
// (already sealed by the caller via streamcipher.SealFilename); nil means
// the field is omitted entirely.
func (w *Writer) InitWrite(share framing.ShareHeader, cryptoHeader [24]byte, filename []byte) error {
	if err := framing.WriteShareHeader(w.sink, share); err != nil {
		return errors.Wrap(err, "horcrux: write share header")
	}
	sh := framing.StreamHeader{Header: cryptoHeader}
	if filename != nil {
		sh.HasFilename = true
		sh.EncryptedFilename = filename
	}
	if err := framing.WriteStreamHeader(w.sink, sh); err != nil {
		return errors.Wrap(err, "horcrux: write stream header")
	}
	return nil
}

// WriteBlock emits a BlockID record followed by a BlockData record.
func (w *Writer) WriteBlock(id uint64, data []byte) error {
	if err := framing.WriteBlockID(w.sink, id); err != nil {
		return errors.Wrap(err, "horcrux: write block id")
	}
	if err := framing.WriteBlockData(w.sink, data); err != nil {
		return errors.Wrap(err, "horcrux: write block data")
	}
	return nil
}
