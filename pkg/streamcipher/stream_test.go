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
	"bytes"
	"crypto/rand"
	"testing"
)

func randomKey(t *testing.T) [32]byte {
	t.Helper()
	var key [32]byte
	if _, err := rand.Read(key[:]); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	return key
}

func TestStreamEncryptDecryptRoundTrip(t *testing.T) {
	key := randomKey(t)
	plaintexts := [][]byte{
		[]byte("a"),
		bytes.Repeat([]byte{0x42}, 4096),
		[]byte("the quick brown fox jumps over the lazy dog"),
	}

	enc := New(TagRekey)
	header, err := enc.InitEncrypt(key)
	if err != nil {
		t.Fatalf("InitEncrypt: %v", err)
	}

	dec := New(TagRekey)
	if err := dec.InitDecrypt(header, key); err != nil {
		t.Fatalf("InitDecrypt: %v", err)
	}

	for i, pt := range plaintexts {
		ct, err := enc.Encrypt(pt)
		if err != nil {
			t.Fatalf("message %d: Encrypt: %v", i, err)
		}
		if len(ct) != len(pt)+overhead {
			t.Errorf("message %d: ciphertext length = %d, want %d", i, len(ct), len(pt)+overhead)
		}
		// A one-byte plaintext appears somewhere in 17 random bytes about
		// 6% of the time, so the check only applies to longer messages.
		if len(pt) > 1 && bytes.Contains(ct, pt) {
			t.Errorf("message %d: ciphertext contains plaintext", i)
		}

		got, tag, err := dec.Decrypt(ct)
		if err != nil {
			t.Fatalf("message %d: Decrypt: %v", i, err)
		}
		if tag != TagRekey {
			t.Errorf("message %d: tag = %v, want TagRekey", i, tag)
		}
		if !bytes.Equal(got, pt) {
			t.Errorf("message %d: Decrypt = %q, want %q", i, got, pt)
		}
	}
}

func TestStreamMixedTagsStayInSync(t *testing.T) {
	key := randomKey(t)
	enc := New(TagMessage)
	header, err := enc.InitEncrypt(key)
	if err != nil {
		t.Fatalf("InitEncrypt: %v", err)
	}
	dec := New(TagMessage)
	if err := dec.InitDecrypt(header, key); err != nil {
		t.Fatalf("InitDecrypt: %v", err)
	}

	sequence := []Tag{TagMessage, TagPush, TagMessage, TagRekey, TagMessage, TagFinal}
	for i, tag := range sequence {
		pt := []byte{byte(i), byte(i + 1), byte(i + 2)}
		ct, err := enc.EncryptTagged(pt, tag)
		if err != nil {
			t.Fatalf("message %d: EncryptTagged: %v", i, err)
		}
		got, gotTag, err := dec.Decrypt(ct)
		if err != nil {
			t.Fatalf("message %d: Decrypt: %v", i, err)
		}
		if gotTag != tag {
			t.Errorf("message %d: tag = %v, want %v", i, gotTag, tag)
		}
		if !bytes.Equal(got, pt) {
			t.Errorf("message %d: Decrypt = %v, want %v", i, got, pt)
		}
	}
}

func TestStreamEmptyMessageRejected(t *testing.T) {
	enc := New(TagRekey)
	if _, err := enc.InitEncrypt(randomKey(t)); err != nil {
		t.Fatalf("InitEncrypt: %v", err)
	}
	if _, err := enc.Encrypt(nil); err != ErrEmptyMessage {
		t.Errorf("Encrypt(nil) = %v, want ErrEmptyMessage", err)
	}
	if _, err := enc.Encrypt([]byte{}); err != ErrEmptyMessage {
		t.Errorf("Encrypt([]byte{}) = %v, want ErrEmptyMessage", err)
	}
}

// TestStreamModificationProtection mirrors the teacher package's style of testing
// AEAD tamper-resistance: a list of mutations, each applied to a fresh copy
// of a valid ciphertext, every one of which must cause decryption to fail.
func TestStreamModificationProtection(t *testing.T) {
	key := randomKey(t)
	enc := New(TagRekey)
	header, err := enc.InitEncrypt(key)
	if err != nil {
		t.Fatalf("InitEncrypt: %v", err)
	}
	plaintext := []byte("a message worth protecting")
	ciphertext, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	modifiers := []struct {
		name   string
		modify func([]byte) []byte
	}{
		{"flip a body bit", func(ct []byte) []byte {
			out := append([]byte(nil), ct...)
			out[len(out)-1] ^= 0x01
			return out
		}},
		{"flip the tag byte", func(ct []byte) []byte {
			out := append([]byte(nil), ct...)
			out[0] ^= 0x01
			return out
		}},
		{"truncate", func(ct []byte) []byte {
			return ct[:len(ct)-1]
		}},
		{"append a byte", func(ct []byte) []byte {
			return append(append([]byte(nil), ct...), 0x00)
		}},
		{"prepend a byte", func(ct []byte) []byte {
			return append([]byte{0x00}, ct...)
		}},
		{"empty", func(ct []byte) []byte {
			return nil
		}},
	}

	for _, m := range modifiers {
		t.Run(m.name, func(t *testing.T) {
			dec := New(TagRekey)
			if err := dec.InitDecrypt(header, key); err != nil {
				t.Fatalf("InitDecrypt: %v", err)
			}
			tampered := m.modify(ciphertext)
			if _, _, err := dec.Decrypt(tampered); err == nil {
				t.Errorf("Decrypt succeeded on tampered input (%s)", m.name)
			}
		})
	}
}

func TestStreamWrongKeyFails(t *testing.T) {
	enc := New(TagRekey)
	header, err := enc.InitEncrypt(randomKey(t))
	if err != nil {
		t.Fatalf("InitEncrypt: %v", err)
	}
	ciphertext, err := enc.Encrypt([]byte("secret payload"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	dec := New(TagRekey)
	if err := dec.InitDecrypt(header, randomKey(t)); err != nil {
		t.Fatalf("InitDecrypt: %v", err)
	}
	if _, _, err := dec.Decrypt(ciphertext); err == nil {
		t.Error("Decrypt succeeded under the wrong key")
	}
}

func TestFilenameSealRoundTrip(t *testing.T) {
	key := randomKey(t)
	name := "quarterly-report-final-v3.docx"

	sealed, err := SealFilename(key, name)
	if err != nil {
		t.Fatalf("SealFilename: %v", err)
	}
	if bytes.Contains(sealed, []byte(name)) {
		t.Error("sealed filename contains the plaintext name")
	}

	got, err := OpenFilename(key, sealed)
	if err != nil {
		t.Fatalf("OpenFilename: %v", err)
	}
	if got != name {
		t.Errorf("OpenFilename = %q, want %q", got, name)
	}
}

func TestFilenameSealTamperDetected(t *testing.T) {
	key := randomKey(t)
	sealed, err := SealFilename(key, "secret-plan.txt")
	if err != nil {
		t.Fatalf("SealFilename: %v", err)
	}

	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0xFF
	if _, err := OpenFilename(key, tampered); err != ErrFilenameDecryption {
		t.Errorf("OpenFilename(tampered) = %v, want ErrFilenameDecryption", err)
	}

	wrongKey := randomKey(t)
	if _, err := OpenFilename(wrongKey, sealed); err != ErrFilenameDecryption {
		t.Errorf("OpenFilename(wrong key) = %v, want ErrFilenameDecryption", err)
	}
}
