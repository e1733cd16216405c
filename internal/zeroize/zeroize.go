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

// Package zeroize provides a single helper for explicitly scrubbing
// sensitive buffers (master keys, secrets) once they've been consumed.
//
// Go's garbage collector gives no guarantee about when (or whether) memory
// is actually overwritten, so relying on "the buffer goes out of scope" is
// not enough for key material that lived in a []byte the caller might still
// be holding a reference to. Bytes is the minimal, dependency-free
// primitive every other package in this module calls as soon as it is done
// with a key.
package zeroize

// Bytes overwrites every byte of b with zero. It is safe to call on a nil
// or empty slice.
func Bytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
