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

// Package planner decides how a stream of plaintext is carved into
// blocks and which horcruxes each block is written to, so that any K of
// the N horcruxes can reconstruct the whole stream. It is grounded on
// _examples/original_source/horcrux/split.py: IdealBlockSize mirrors
// _ideal_block_size, the mode thresholds mirror distribute()'s selection
// logic, and the three distribution strategies mirror
// _smart_distribute/_round_robin_distribute/_full_distribute.
package planner

import (
	"math/big"

	"github.com/pkg/errors"
)

// Size thresholds from spec.md §4.7, carried over unchanged from the
// reference implementation's split.py constants.
const (
	MinBlockSize     = 20
	DefaultBlockSize = 4096
	MaxChunkSize     = 100 * 1024 * 1024 // 100 MiB
)

// ErrDistributionIncomplete is returned by the splitter when a smart-mode
// chunk ends before its combination iterator is exhausted: the chunk was
// shorter than IdealBlockSize * C(n, n-k+1) predicted, so some
// (N-K+1)-combination of horcruxes never received a block, and the
// K-reconstruction guarantee for that chunk no longer holds.
var ErrDistributionIncomplete = errors.New("planner: distribution incomplete, not every horcrux combination received a block")

// Mode identifies which distribution strategy a chunk should use.
type Mode int

const (
	// ModeSmart enumerates every (n-k+1)-combination of horcruxes and
	// gives each successive block to one combination. It is the
	// preferred mode: it guarantees the K-reconstruction property with
	// the least total ciphertext written across all horcruxes.
	ModeSmart Mode = iota
	// ModeRoundRobin hands successive blocks to successive groups of
	// (n-k+1) horcruxes in a fixed cyclic rotation. Used when C(n, n-k+1)
	// is so large relative to the chunk that the ideal smart block size
	// falls below MinBlockSize, but the chunk is at least DefaultBlockSize.
	ModeRoundRobin
	// ModeFullReplicate writes the entire chunk, as a single block, to
	// every horcrux. Used for chunks too small to usefully split at all.
	ModeFullReplicate
)

// binomial returns C(n, r) as computed by math/big, since N can be as
// large as planner/shamir's MaxHorcruxes (253) and C(253, 127) overflows
// a 64-bit integer.
func binomial(n, r int) *big.Int {
	if r < 0 || r > n {
		return big.NewInt(0)
	}
	return new(big.Int).Binomial(int64(n), int64(r))
}

// IdealBlockSize returns the block size that makes a smart-mode
// distribution of a size-byte chunk use exactly C(n, n-k+1) blocks -- one
// per combination the smart distributor will enumerate.
func IdealBlockSize(size int64, n, k int) int64 {
	combos := binomial(n, n-k+1)
	if combos.Sign() <= 0 {
		return size
	}
	sizeBig := big.NewInt(size)
	// ceil(size / combos)
	num := new(big.Int).Add(sizeBig, new(big.Int).Sub(combos, big.NewInt(1)))
	return new(big.Int).Div(num, combos).Int64()
}

// SelectChunkMode decides how a single chunk of chunkSize bytes should be
// distributed, mirroring the elif chain in the reference implementation's
// per-chunk loop (the branch taken when the whole stream's ideal block
// size didn't already clear MinBlockSize up front). It returns the mode
// and the block size callers should use when driving that mode's
// distribution strategy.
func SelectChunkMode(chunkSize int64, n, k int) (mode Mode, blockSize int64) {
	ibs := IdealBlockSize(chunkSize, n, k)
	switch {
	case ibs >= MinBlockSize:
		return ModeSmart, ibs
	case chunkSize < DefaultBlockSize:
		return ModeFullReplicate, chunkSize
	default:
		return ModeRoundRobin, DefaultBlockSize
	}
}

// SmartDistribution drives the ModeSmart strategy: each call to Next
// returns the set of horcrux indices that should receive the next block.
type SmartDistribution struct {
	combos *CombinationIterator
}

// NewSmartDistribution constructs a SmartDistribution over n horcruxes
// with a threshold of k, enumerating (n-k+1)-combinations.
func NewSmartDistribution(n, k int) *SmartDistribution {
	return &SmartDistribution{combos: NewCombinationIterator(n, n-k+1)}
}

// Next returns the horcrux indices for the next block, or ok=false if
// every combination has already been consumed.
func (s *SmartDistribution) Next() (indices []int, ok bool) {
	return s.combos.Next()
}

// Exhausted reports whether every (n-k+1)-combination has been consumed.
// The splitter calls this once plaintext runs out, to detect
// ErrDistributionIncomplete.
func (s *SmartDistribution) Exhausted() bool {
	return s.combos.Exhausted()
}

// RoundRobinDistribution drives the ModeRoundRobin strategy.
type RoundRobinDistribution struct {
	cycler *Cycler
}

// NewRoundRobinDistribution constructs a RoundRobinDistribution over n
// horcruxes, handing out groups of n-k+1 indices per block.
func NewRoundRobinDistribution(n, k int) *RoundRobinDistribution {
	return &RoundRobinDistribution{cycler: NewCycler(n, n-k+1)}
}

// Next returns the horcrux indices for the next block. Round-robin
// distribution never runs out -- it is always ready for another block.
func (rr *RoundRobinDistribution) Next() []int {
	return rr.cycler.Next()
}

// FullReplicateTargets returns the indices of all n horcruxes, for the
// single block a ModeFullReplicate chunk produces.
func FullReplicateTargets(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
