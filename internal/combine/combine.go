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

// Package combine drives the multi-horcrux merge: given a set of already
// header-initialized horcrux.Readers sharing one cursor, it walks block
// ids in order, reading from whichever live horcrux is positioned at the
// current cursor and skipping ahead on the others, until every horcrux
// has reached end of stream.
//
// Grounded on _examples/original_source/horcrux/combine.py's
// from_streams: the live/dead handle partition and the
// read-if-at-cursor/skip-if-behind/retire-if-ended loop are carried over
// directly, translated from Python sets (which iterate in insertion
// order in CPython, but are not ordered by the language) into an
// explicit slice so Go's iteration order is well defined without relying
// on map semantics.
package combine

import (
	"io"

	"github.com/pkg/errors"

	"github.com/Laharah/horcrux/pkg/horcrux"
	"github.com/Laharah/horcrux/pkg/streamcipher"
)

// DecryptionError is returned when a block fails AEAD authentication. It
// carries the 1-based index (among the readers passed to Merge) of the
// offending horcrux and the block id, per spec.md §4.8 step 5 and §7's
// DecryptionError{horcrux_id}.
type DecryptionError struct {
	HorcruxID int
	BlockID   uint64
	Err       error
}

func (e *DecryptionError) Error() string {
	return errors.Wrapf(e.Err, "combine: horcrux %d, block %d: decryption failed", e.HorcruxID, e.BlockID).Error()
}

// Unwrap exposes streamcipher.ErrDecryption so callers can match with
// errors.Is(err, streamcipher.ErrDecryption).
func (e *DecryptionError) Unwrap() error {
	return e.Err
}

// ErrStalled is the sentinel a MissingBlockError wraps; callers that only
// care whether the merge stalled (and not which block) can compare with
// errors.Is(err, ErrStalled).
var ErrStalled = errors.New("combine: no progress possible; supplied horcruxes do not cover the next block")

// MissingBlockError is returned when a full pass over every live horcrux
// makes no progress -- neither reading a block at the cursor nor
// skipping a lagging one -- which means the supplied horcruxes don't
// actually cover the next block id, per spec.md §4.8 step 4's
// MissingBlock(cursor). Cursor is the block id that could not be found;
// LiveHorcruxes lists the 1-based indices of the horcruxes still in play
// when the stall was detected. This is not a situation the reference
// implementation guards against explicitly (it would simply loop
// forever), but failing fast with a clear error is more useful than
// hanging.
type MissingBlockError struct {
	Cursor        uint64
	LiveHorcruxes []int
}

func (e *MissingBlockError) Error() string {
	return errors.Wrapf(ErrStalled, "combine: missing block %d (live horcruxes: %v)", e.Cursor, e.LiveHorcruxes).Error()
}

// Unwrap exposes ErrStalled so callers can match with errors.Is(err, ErrStalled).
func (e *MissingBlockError) Unwrap() error {
	return ErrStalled
}

// Merge reads blocks from readers in id order, decrypting each with
// cipher and writing the plaintext to w, until every reader has reached
// end of stream. readers must already have had InitRead called. A gap
// before some later block is reported as a MissingBlockError; blocks
// missing after the last block any reader holds are not detected, since
// the stream records no total block count.
func Merge(readers []*horcrux.Reader, cipher *streamcipher.Stream, w io.Writer) error {
	live := make([]*horcrux.Reader, len(readers))
	copy(live, readers)
	index := make(map[*horcrux.Reader]int, len(readers))
	for i, r := range readers {
		index[r] = i + 1 // 1-based, for error annotations
	}

	var cursor uint64
	for len(live) > 0 {
		progressed := false
		next := live[:0]
		for _, r := range live {
			id, ok := r.NextBlockID()
			switch {
			case !ok:
				// End of stream for this horcrux; drop it from the live
				// set.
				progressed = true
				continue
			case id == cursor:
				_, ciphertext, err := r.ReadBlock()
				if err != nil {
					return errors.Wrapf(err, "combine: read block %d from horcrux %d", cursor, index[r])
				}
				plaintext, _, err := cipher.Decrypt(ciphertext)
				if err != nil {
					return &DecryptionError{HorcruxID: index[r], BlockID: cursor, Err: err}
				}
				if _, err := w.Write(plaintext); err != nil {
					return errors.Wrap(err, "combine: write plaintext")
				}
				cursor++
				progressed = true
				next = append(next, r)
			case id < cursor:
				if err := r.SkipBlock(); err != nil {
					return errors.Wrapf(err, "combine: skip block in horcrux %d", index[r])
				}
				progressed = true
				next = append(next, r)
			default: // id > cursor: this horcrux is ahead, leave it for now
				next = append(next, r)
			}
		}
		live = next
		if !progressed && len(live) > 0 {
			liveIdxs := make([]int, len(live))
			for i, r := range live {
				liveIdxs[i] = index[r]
			}
			return &MissingBlockError{Cursor: cursor, LiveHorcruxes: liveIdxs}
		}
	}
	return nil
}
