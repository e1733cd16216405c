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

// Package split drives the end-to-end process of carving a plaintext
// stream into encrypted blocks and handing each block to the horcrux
// writers the planner selects for it. It owns the monotonic block-id
// counter and the mode-selection-per-chunk-boundary logic, grounded on
// _examples/original_source/horcrux/split.py's Stream class (distribute,
// _smart_distribute, _round_robin_distribute, _full_distribute).
package split

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"github.com/Laharah/horcrux/pkg/horcrux"
	"github.com/Laharah/horcrux/pkg/planner"
	"github.com/Laharah/horcrux/pkg/streamcipher"
)

// Splitter drives one split operation across n pre-initialized horcrux
// writers.
type Splitter struct {
	writers []*horcrux.Writer
	n, k    int
	cipher  *streamcipher.Stream

	blockCounter uint64
	roundRobin   *planner.Cycler // lazily created, reused across chunk boundaries
}

// New constructs a Splitter. writers must already have had InitWrite
// called on them (ShareHeader/StreamHeader already emitted); cipher must
// already have had InitEncrypt called.
func New(writers []*horcrux.Writer, n, k int, cipher *streamcipher.Stream) *Splitter {
	return &Splitter{writers: writers, n: n, k: k, cipher: cipher}
}

// Run consumes r to completion, distributing encrypted blocks across the
// Splitter's writers. sizeHint, if > 0, is used to pick a single ideal
// block size and run smart distribution over the entire stream directly;
// otherwise (or if the hint doesn't yield a usable block size) r is
// processed in planner.MaxChunkSize chunks, each independently choosing a
// distribution mode.
func (s *Splitter) Run(r io.Reader, sizeHint int64) error {
	if sizeHint > 0 {
		ibs := planner.IdealBlockSize(sizeHint, s.n, s.k)
		if ibs >= planner.MinBlockSize && ibs <= planner.MaxChunkSize {
			return s.smartDistribute(r, ibs)
		}
	}
	return s.chunkedDistribute(r)
}

func (s *Splitter) chunkedDistribute(r io.Reader) error {
	buf := make([]byte, planner.MaxChunkSize)
	for {
		n, rerr := readUpTo(r, buf)
		if n > 0 {
			chunkSize := int64(n)
			mode, blockSize := planner.SelectChunkMode(chunkSize, s.n, s.k)
			chunk := bytes.NewReader(buf[:n])
			var err error
			switch mode {
			case planner.ModeSmart:
				err = s.smartDistribute(chunk, blockSize)
			case planner.ModeRoundRobin:
				err = s.roundRobinDistribute(chunk, blockSize)
			case planner.ModeFullReplicate:
				err = s.fullDistribute(chunk)
			}
			if err != nil {
				return err
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return nil
			}
			return errors.Wrap(rerr, "split: read chunk")
		}
	}
}

// smartDistribute implements ModeSmart: every (n-k+1)-combination of
// horcruxes is enumerated in turn and receives exactly one block, so that
// any k horcruxes between them cover every block id.
func (s *Splitter) smartDistribute(r io.Reader, blockSize int64) error {
	dist := planner.NewSmartDistribution(s.n, s.k)
	block := make([]byte, blockSize)
	for {
		n, rerr := readUpTo(r, block)
		if n > 0 {
			if err := s.writeBlock(dist, block[:n]); err != nil {
				return err
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				break
			}
			return errors.Wrap(rerr, "split: read smart-mode block")
		}
	}
	// The chunk must have yielded exactly C(n, n-k+1) blocks (the last one
	// possibly shorter than blockSize): if the combination iterator still
	// has unconsumed combinations, some
	// (n-k+1)-subset of horcruxes never received a block, so the
	// K-reconstruction guarantee for this chunk does not hold.
	if !dist.Exhausted() {
		return errors.Wrap(planner.ErrDistributionIncomplete, "smart-mode chunk ended before every combination received a block")
	}
	return nil
}

func (s *Splitter) writeBlock(dist *planner.SmartDistribution, plaintext []byte) error {
	ciphertext, err := s.cipher.Encrypt(plaintext)
	if err != nil {
		return errors.Wrap(err, "split: encrypt block")
	}
	id := s.nextID()
	indices, ok := dist.Next()
	if !ok {
		// More plaintext arrived than the chunk's planned block count
		// anticipated (a mismatched size hint); this violates the same
		// coverage guarantee an under-full chunk would.
		return errors.Wrap(planner.ErrDistributionIncomplete, "more blocks produced than planned combinations")
	}
	for _, idx := range indices {
		if err := s.writers[idx].WriteBlock(id, ciphertext); err != nil {
			return errors.Wrapf(err, "split: write block %d to horcrux %d", id, idx)
		}
	}
	return nil
}

// roundRobinDistribute implements ModeRoundRobin: successive blocks go to
// successive groups of (n-k+1) horcruxes in a fixed cyclic rotation. The
// Cycler is created once and reused across chunk boundaries so a
// mid-stream switch between modes doesn't restart the rotation.
func (s *Splitter) roundRobinDistribute(r io.Reader, blockSize int64) error {
	if s.roundRobin == nil {
		s.roundRobin = planner.NewCycler(s.n, s.n-s.k+1)
	}
	block := make([]byte, blockSize)
	for {
		n, rerr := readUpTo(r, block)
		if n > 0 {
			ciphertext, err := s.cipher.Encrypt(block[:n])
			if err != nil {
				return errors.Wrap(err, "split: encrypt round-robin block")
			}
			id := s.nextID()
			for _, idx := range s.roundRobin.Next() {
				if err := s.writers[idx].WriteBlock(id, ciphertext); err != nil {
					return errors.Wrapf(err, "split: write round-robin block %d to horcrux %d", id, idx)
				}
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return nil
			}
			return errors.Wrap(rerr, "split: read round-robin block")
		}
	}
}

// fullDistribute implements ModeFullReplicate: the entire (small) chunk
// is encrypted as a single block and written to every horcrux.
func (s *Splitter) fullDistribute(r io.Reader) error {
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "split: read full-replicate chunk")
	}
	if len(plaintext) == 0 {
		return nil
	}
	ciphertext, err := s.cipher.Encrypt(plaintext)
	if err != nil {
		return errors.Wrap(err, "split: encrypt full-replicate chunk")
	}
	id := s.nextID()
	for _, idx := range planner.FullReplicateTargets(s.n) {
		if err := s.writers[idx].WriteBlock(id, ciphertext); err != nil {
			return errors.Wrapf(err, "split: write full-replicate block %d to horcrux %d", id, idx)
		}
	}
	return nil
}

func (s *Splitter) nextID() uint64 {
	id := s.blockCounter
	s.blockCounter++
	return id
}

// readUpTo reads up to len(buf) bytes from r, returning n>0 with err==nil
// when buf was filled completely (more may follow), n>0 with err==io.EOF
// for a final partial read, or n==0 with err==io.EOF at a clean
// end-of-stream.
func readUpTo(r io.Reader, buf []byte) (int, error) {
	n, err := io.ReadFull(r, buf)
	switch err {
	case nil:
		return n, nil
	case io.ErrUnexpectedEOF:
		return n, io.EOF
	default:
		return n, err
	}
}
