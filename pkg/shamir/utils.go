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

package shamir

import "math/big"

// bytesToBig interprets b as a big-endian unsigned integer.
func bytesToBig(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

// bigFromInt is a small convenience wrapper so call sites that pass a
// reserved index (DigestIndex, SecretIndex) or a horcrux's X value don't
// need to spell out big.NewInt(int64(...)) inline.
func bigFromInt(x int64) *big.Int {
	return big.NewInt(x)
}

// putBigBE writes x into dst as a big-endian unsigned integer, left-padded
// with zero bytes. x must fit within len(dst) bytes (true by construction
// here, since every value handled by this package is already reduced mod
// field.Prime, which fits in 32 bytes).
func putBigBE(dst []byte, x *big.Int) {
	b := x.Bytes()
	if len(b) > len(dst) {
		// Should be unreachable given field.Prime's size, but truncating
		// silently would corrupt the secret, so panic instead.
		panic("shamir: value does not fit in destination buffer")
	}
	copy(dst[len(dst)-len(b):], b)
}
