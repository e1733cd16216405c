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

// Package pwhash implements the Argon2id keyed digest function used as the
// integrity checkpoint inside horcrux's secret sharing scheme. It is
// deliberately tiny: horcrux only ever calls Hash once per split (to
// compute the digest point) and once per combine (to verify it), so there
// is no need for the richer key-derivation surface a general password
// hashing library would expose.
package pwhash

import (
	"golang.org/x/crypto/argon2"
)

// Parameters matching libsodium's crypto_pwhash_argon2id "interactive"
// limits (OPSLIMIT_INTERACTIVE=2, MEMLIMIT_INTERACTIVE=67108864 bytes),
// since horcrux's on-disk format is designed to be combine-compatible with
// the reference implementation's choice of limits.
const (
	opsLimit    = 2
	memLimitKiB = 65536 // 67108864 bytes
	threads     = 1
	outputLen   = 32
)

// Hash computes the Argon2id digest of secret, salted with salt. It is
// deterministic: the same (secret, salt) pair always yields the same
// 32-byte output, which is what lets horcrux's digest point double as an
// integrity check without a second trusted channel.
func Hash(secret, salt []byte) [32]byte {
	sum := argon2.IDKey(secret, salt, opsLimit, memLimitKiB, threads, outputLen)
	var out [32]byte
	copy(out[:], sum)
	return out
}
