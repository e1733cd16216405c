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

// Package streamcipher implements horcrux's authenticated stream encryption:
// an XChaCha20-Poly1305 "secretstream" construction, in the spirit of
// libsodium's crypto_secretstream_xchacha20poly1305 API (push/pull, a
// 24-byte header, per-message tags, automatic rekeying) built directly on
// golang.org/x/crypto/chacha20poly1305, the same AEAD the teacher package
// (cyphar/paperback's pkg/crypto) uses for its single-shot Packet
// construction. No Go binding for libsodium's secretstream itself was
// available in the example pack, so this reproduces the construction from
// its published description rather than vendoring a C binding.
//
// Every message is tagged with one of four single-byte tags (matching
// libsodium's numbering so the scheme "reads" the same way): Message, Push,
// Rekey, and Final. The tag is authenticated as associated data and is also
// carried in the clear alongside the ciphertext, giving each wire message
// 17 bytes of overhead over the plaintext (16-byte Poly1305 tag + 1-byte
// message tag). horcrux's default tag is Rekey: every block triggers a
// fresh subkey derivation, so a multi-gigabyte stream never reuses a single
// key for more than one message.
package streamcipher

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/Laharah/horcrux/internal/zeroize"
)

// Tag identifies the purpose of a single secretstream message.
type Tag byte

// Tag values, numbered to match libsodium's
// crypto_secretstream_xchacha20poly1305_TAG_* constants.
const (
	TagMessage Tag = 0x00
	TagPush    Tag = 0x01
	TagRekey   Tag = 0x02
	TagFinal   Tag = 0x03
)

// HeaderSize is the length, in bytes, of the opaque header produced by
// InitEncrypt and required by InitDecrypt.
const HeaderSize = 24

// overhead is the number of bytes a ciphertext carries beyond the
// plaintext: a 16-byte Poly1305 tag plus the 1-byte message tag.
const overhead = chacha20poly1305.Overhead + 1

// ErrEmptyMessage is returned by Encrypt when asked to encrypt a zero-byte
// plaintext -- horcrux's block producer never does this (every read from
// the source yields at least one byte), so hitting this is a caller bug.
var ErrEmptyMessage = errors.New("streamcipher: cannot encrypt an empty message")

// ErrDecryption is returned by Decrypt when the AEAD authentication check
// fails -- the ciphertext (or its tag byte) was tampered with or corrupted.
var ErrDecryption = errors.New("streamcipher: message failed authentication")

// Stream holds the mutable state of one direction (encrypt xor decrypt) of
// a secretstream. A Stream is single-use: construct a fresh one for each
// horcrux split or combine operation.
type Stream struct {
	key        [32]byte
	nonce      [24]byte
	aead       sealer
	defaultTag Tag
}

// sealer is the subset of cipher.AEAD that Stream needs; kept as its own
// interface purely so tests can stub it out without pulling in the real
// AEAD construction.
type sealer interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

// New constructs a Stream whose messages default to tag, when the caller
// doesn't specify one explicitly via EncryptTagged. horcrux always uses
// TagRekey as the default, per the package doc.
func New(defaultTag Tag) *Stream {
	return &Stream{defaultTag: defaultTag}
}

// InitEncrypt resets s for pushing, deriving state from key, and returns
// the 24-byte header that a decrypting Stream will need to InitDecrypt.
// key is not retained by value beyond what's needed for the first
// subkey derivation; callers should zero their own copy once every
// key-consuming initialization (InitEncrypt, shamir.Split, filename
// sealing) has completed.
func (s *Stream) InitEncrypt(key [32]byte) (header [24]byte, err error) {
	if _, err := io.ReadFull(rand.Reader, header[:]); err != nil {
		return header, errors.Wrap(err, "generate stream header")
	}
	s.key = key
	s.nonce = header
	if err := s.rebuildAEAD(); err != nil {
		return header, err
	}
	return header, nil
}

// InitDecrypt resets s for pulling, given the header produced by the
// encrypting side's InitEncrypt and the shared key.
func (s *Stream) InitDecrypt(header [24]byte, key [32]byte) error {
	s.key = key
	s.nonce = header
	return s.rebuildAEAD()
}

func (s *Stream) rebuildAEAD() error {
	aead, err := chacha20poly1305.NewX(s.key[:])
	if err != nil {
		return errors.Wrap(err, "construct xchacha20poly1305 aead")
	}
	s.aead = aead
	return nil
}

// Encrypt seals plaintext with the default tag configured via New.
func (s *Stream) Encrypt(plaintext []byte) ([]byte, error) {
	return s.EncryptTagged(plaintext, s.defaultTag)
}

// EncryptTagged seals plaintext, authenticating tag as associated data and
// carrying it alongside the ciphertext on the wire. The output is
// len(plaintext) + 17 bytes: 1 tag byte followed by the AEAD sealed box.
func (s *Stream) EncryptTagged(plaintext []byte, tag Tag) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, ErrEmptyMessage
	}
	sealed := s.aead.Seal(nil, s.nonce[:], plaintext, []byte{byte(tag)})
	out := make([]byte, 0, len(sealed)+1)
	out = append(out, byte(tag))
	out = append(out, sealed...)
	s.advance(tag)
	return out, nil
}

// Decrypt opens a message previously produced by Encrypt/EncryptTagged,
// returning the plaintext and the tag it was sealed with.
func (s *Stream) Decrypt(ciphertext []byte) (plaintext []byte, tag Tag, err error) {
	if len(ciphertext) < 1 {
		return nil, 0, errors.Wrap(ErrDecryption, "ciphertext shorter than tag byte")
	}
	tag = Tag(ciphertext[0])
	body := ciphertext[1:]
	plaintext, err = s.aead.Open(nil, s.nonce[:], body, []byte{byte(tag)})
	if err != nil {
		return nil, 0, errors.Wrap(ErrDecryption, err.Error())
	}
	s.advance(tag)
	return plaintext, tag, nil
}

// advance moves the stream state forward after a successful message: the
// nonce always increments (so no two messages under the same key ever
// reuse a nonce), and a TagRekey message additionally derives a fresh
// subkey via HKDF-SHA256 over the current key and nonce, so a corrupted or
// replayed message can never roll the state backwards.
func (s *Stream) advance(tag Tag) {
	incrementNonce(&s.nonce)
	if tag == TagRekey {
		s.rekey()
	}
}

func (s *Stream) rekey() {
	kdf := hkdf.New(sha256.New, s.key[:], s.nonce[:], []byte("horcrux-secretstream-rekey"))
	var newKey [32]byte
	if _, err := io.ReadFull(kdf, newKey[:]); err != nil {
		// hkdf.Read only fails if asked for more output than SHA-256's
		// expansion limit allows, which 32 bytes never comes close to.
		panic("streamcipher: hkdf expansion failed unexpectedly: " + err.Error())
	}
	zeroize.Bytes(s.key[:])
	s.key = newKey
	if err := s.rebuildAEAD(); err != nil {
		panic("streamcipher: rebuild aead after rekey: " + err.Error())
	}
}

// incrementNonce treats nonce as a little-endian counter and adds one.
func incrementNonce(nonce *[24]byte) {
	for i := range nonce {
		nonce[i]++
		if nonce[i] != 0 {
			break
		}
	}
}

// Zero scrubs the Stream's current key from memory. Call this once the
// Stream is no longer needed.
func (s *Stream) Zero() {
	zeroize.Bytes(s.key[:])
}

// GenerateKey returns a fresh, random 32-byte secretstream key.
func GenerateKey() ([32]byte, error) {
	var key [32]byte
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return key, errors.Wrap(err, "generate secretstream key")
	}
	return key, nil
}
