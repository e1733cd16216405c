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

package streamcipher

import (
	"crypto/rand"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"
)

// ErrFilenameDecryption is returned by OpenFilename when the sealed box
// fails to authenticate.
var ErrFilenameDecryption = errors.New("streamcipher: filename failed authentication")

// SealFilename encrypts a UTF-8 filename under key with a single-shot
// NaCl secretbox (XSalsa20-Poly1305), independent of any secretstream in
// progress -- a horcrux's embedded filename is small enough, and rare
// enough, that libsodium's general-purpose box is a better fit than
// threading it through the streaming construction above. The returned
// blob is self-contained: a fresh 24-byte nonce followed by the sealed
// box, so OpenFilename needs nothing but key to invert it.
func SealFilename(key [32]byte, filename string) ([]byte, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, errors.Wrap(err, "generate filename nonce")
	}
	sealed := secretbox.Seal(nonce[:], []byte(filename), &nonce, &key)
	return sealed, nil
}

// OpenFilename inverts SealFilename.
func OpenFilename(key [32]byte, sealed []byte) (string, error) {
	if len(sealed) < 24 {
		return "", errors.Wrap(ErrFilenameDecryption, "sealed filename shorter than nonce")
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	plain, ok := secretbox.Open(nil, sealed[24:], &nonce, &key)
	if !ok {
		return "", ErrFilenameDecryption
	}
	return string(plain), nil
}
