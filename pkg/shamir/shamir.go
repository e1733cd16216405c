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

// Package shamir implements horcrux's Shamir-style secret sharing over the
// fixed 256-bit prime field in pkg/field. It is a deliberately narrow
// variant of the general scheme described in the teacher package this was
// adapted from (cyphar/paperback's pkg/shamir, which shares an arbitrary
// blob across N chunked polynomials): horcrux always shares exactly one
// 32-byte secret, and folds a verification point into the same polynomial
// so Combine can detect corrupt or forged shares without a second trusted
// channel.
//
// The construction follows a modified SLIP-0039 outline (see
// _examples/original_source/horcrux/sss.py): a degree-(K-1) polynomial is
// pinned at two reserved X coordinates -- 255 holds the secret itself, 254
// holds a keyed digest of the secret -- with the remaining K-2 points
// chosen at random. The N shares handed out to callers are all on X values
// in [0, N), which never collides with the two reserved anchors.
package shamir

import (
	"crypto/rand"

	"github.com/pkg/errors"

	"github.com/Laharah/horcrux/internal/zeroize"
	"github.com/Laharah/horcrux/pkg/field"
	"github.com/Laharah/horcrux/pkg/pwhash"
)

// Reserved X coordinates. They are never handed out as part of a
// distributed share.
const (
	DigestIndex  = 254
	SecretIndex  = 255
	MaxHorcruxes = 253 // N must be < DigestIndex
)

// Sentinel errors returned by Split and Combine. They are wrapped with
// additional context via github.com/pkg/errors as they propagate, so
// callers should compare with errors.Is/errors.Cause rather than direct
// equality.
var (
	// ErrInvalidThreshold is returned when K is out of the range [2, N] or
	// N exceeds MaxHorcruxes.
	ErrInvalidThreshold = errors.New("shamir: threshold must satisfy 2 <= k <= n <= 253")

	// ErrIDMismatch is returned by Combine when the supplied shares do not
	// all carry the same salt -- they are from different splits.
	ErrIDMismatch = errors.New("shamir: shares do not share the same id (salt)")

	// ErrNotEnoughShares is returned by Combine when fewer than threshold
	// distinct points were supplied.
	ErrNotEnoughShares = errors.New("shamir: not enough distinct shares to meet threshold")

	// ErrInvalidDigest is returned by Combine when the reconstructed
	// secret's keyed digest does not match the embedded digest point --
	// the shares are corrupt, forged, or from an incompatible scheme.
	ErrInvalidDigest = errors.New("shamir: reconstructed secret failed digest check")
)

// Point is a single coordinate of a horcrux's share of the secret:
// (X, Y) with X in [0, 255] and Y a big-endian unsigned integer less than
// field.Prime.
type Point struct {
	X uint16
	Y [32]byte
}

// Share is one of the N outputs of Split: a salt shared by every share in
// the split (also used as the Argon2id salt for the digest point), the
// threshold K required to reconstruct, and this share's Point.
type Share struct {
	ID        [16]byte
	Threshold uint8
	Point     Point
}

// Secret is a 32-byte master secret. It is a named type (rather than a bare
// []byte) so that Zero is always one call away at the point where the
// secret has served its purpose.
type Secret [32]byte

// Zero overwrites the secret with zero bytes in place.
func (s *Secret) Zero() {
	zeroize.Bytes(s[:])
}

// Split constructs N shares of secret such that any K of them (and no
// fewer) can reconstruct it. salt must be 16 bytes of fresh randomness; it
// becomes both the shares' common ID and the Argon2id salt for the digest
// point, and is also used (by callers of shamir) as the horcrux file set's
// shared identifier.
//
// Per the historical ambiguity in the reference implementation's argument
// order (some versions took (shares, threshold, ...), others the reverse),
// Split pins down the secret-sharing-terminology order: shares (N) before
// threshold (K).
func Split(n, k uint8, secret Secret, salt [16]byte) ([]Share, error) {
	if k < 2 || k > n || n > MaxHorcruxes {
		return nil, ErrInvalidThreshold
	}

	digest := pwhash.Hash(secret[:], salt[:])

	anchors := make([]field.Point, 0, k)
	for i := uint8(0); i < k-2; i++ {
		y, err := rand.Int(rand.Reader, field.Prime)
		if err != nil {
			return nil, errors.Wrap(err, "generate random anchor coefficient")
		}
		anchors = append(anchors, field.NewPoint(int64(i), y))
	}
	anchors = append(anchors,
		field.NewPoint(DigestIndex, bytesToBig(digest[:])),
		field.NewPoint(SecretIndex, bytesToBig(secret[:])),
	)

	shares := make([]Share, n)
	for i := uint8(0); i < n; i++ {
		y, err := field.Interpolate(bigFromInt(int64(i)), anchors)
		if err != nil {
			return nil, errors.Wrapf(err, "interpolate share %d", i)
		}
		var yBytes [32]byte
		putBigBE(yBytes[:], y)
		shares[i] = Share{
			ID:        salt,
			Threshold: k,
			Point: Point{
				X: uint16(i),
				Y: yBytes,
			},
		}
	}
	return shares, nil
}

// Combine reconstructs the secret from a set of shares, all of which must
// originate from the same Split call. It requires at least Threshold
// distinct points (by X); duplicate Xs beyond the first are ignored. The
// reconstructed secret is verified against the embedded digest point before
// being returned, so a successful Combine call is proof the shares were not
// tampered with (barring a hash collision).
func Combine(shares []Share) (Secret, error) {
	var zero Secret
	if len(shares) == 0 {
		return zero, ErrNotEnoughShares
	}

	id := shares[0].ID
	threshold := shares[0].Threshold
	seen := make(map[uint16]field.Point)
	for _, s := range shares {
		if s.ID != id {
			return zero, ErrIDMismatch
		}
		if _, ok := seen[s.Point.X]; !ok {
			seen[s.Point.X] = field.NewPoint(int64(s.Point.X), bytesToBig(s.Point.Y[:]))
		}
	}
	if uint8(len(seen)) < threshold {
		return zero, ErrNotEnoughShares
	}

	points := make([]field.Point, 0, threshold)
	for _, p := range seen {
		points = append(points, p)
		if uint8(len(points)) == threshold {
			break
		}
	}

	secretY, err := field.Interpolate(bigFromInt(SecretIndex), points)
	if err != nil {
		return zero, errors.Wrap(err, "interpolate secret point")
	}
	digestY, err := field.Interpolate(bigFromInt(DigestIndex), points)
	if err != nil {
		return zero, errors.Wrap(err, "interpolate digest point")
	}

	var secret Secret
	putBigBE(secret[:], secretY)

	var wantDigest [32]byte
	putBigBE(wantDigest[:], digestY)
	gotDigest := pwhash.Hash(secret[:], id[:])
	if gotDigest != wantDigest {
		secret.Zero()
		return zero, ErrInvalidDigest
	}
	return secret, nil
}
