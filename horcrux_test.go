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

package horcrux

import (
	"bytes"
	"crypto/rand"
	"errors"
	"io"
	"testing"

	"github.com/Laharah/horcrux/internal/combine"
	"github.com/Laharah/horcrux/pkg/shamir"
)

// memSink and memSource let the end-to-end tests exercise Split/Combine
// through the same WriterSink/ReaderSource interfaces cmd/horcrux uses for
// real files, without touching a filesystem.
type memSink struct{ buf bytes.Buffer }

func (s *memSink) Write(p []byte) (int, error) { return s.buf.Write(p) }
func (s *memSink) Close() error                { return nil }

type memSource struct{ r *bytes.Reader }

func newMemSource(b []byte) *memSource   { return &memSource{r: bytes.NewReader(b)} }
func (s *memSource) Read(p []byte) (int, error) { return s.r.Read(p) }
func (s *memSource) Close() error               { return nil }

func splitToMemory(t *testing.T, plaintext []byte, sizeHint int64, filename string, n, k int) []*memSink {
	t.Helper()
	sinks := make([]*memSink, n)
	ifaceSinks := make([]WriterSink, n)
	for i := range sinks {
		sinks[i] = &memSink{}
		ifaceSinks[i] = sinks[i]
	}
	if err := Split(bytes.NewReader(plaintext), sizeHint, filename, ifaceSinks, n, k); err != nil {
		t.Fatalf("Split: %v", err)
	}
	return sinks
}

func sourcesFrom(sinks []*memSink, idxs []int) []ReaderSource {
	sources := make([]ReaderSource, len(idxs))
	for i, idx := range idxs {
		sources[i] = newMemSource(sinks[idx].buf.Bytes())
	}
	return sources
}

// S1: P = bytes[i%256 for i in 0..10000], N=4,K=2. Combine any 2 of the 4
// resulting horcruxes recovers the original.
func TestScenarioS1SplitAndCombineAnyPair(t *testing.T) {
	plaintext := make([]byte, 10000)
	for i := range plaintext {
		plaintext[i] = byte(i % 256)
	}
	sinks := splitToMemory(t, plaintext, int64(len(plaintext)), "", 4, 2)

	pairs := [][2]int{{0, 1}, {0, 3}, {1, 2}, {2, 3}}
	for _, pair := range pairs {
		var out bytes.Buffer
		_, err := Combine(sourcesFrom(sinks, []int{pair[0], pair[1]}), &out)
		if err != nil {
			t.Fatalf("Combine(%v): %v", pair, err)
		}
		if !bytes.Equal(out.Bytes(), plaintext) {
			t.Errorf("Combine(%v) did not recover original plaintext", pair)
		}
	}
}

// S2: a 1 MiB stream, N=5,K=3, with an embedded filename. Combining any 3
// horcruxes recovers both the data and the filename.
func TestScenarioS2LargeStreamWithFilename(t *testing.T) {
	plaintext := make([]byte, 1<<20)
	if _, err := rand.Read(plaintext); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	sinks := splitToMemory(t, plaintext, int64(len(plaintext)), "data.bin", 5, 3)

	var out bytes.Buffer
	filename, err := Combine(sourcesFrom(sinks, []int{0, 2, 4}), &out)
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if filename != "data.bin" {
		t.Errorf("filename = %q, want %q", filename, "data.bin")
	}
	if !bytes.Equal(out.Bytes(), plaintext) {
		t.Error("recovered data does not match original")
	}
}

// S3: N=2,K=2, tiny plaintext. Corrupting a data byte in one horcrux makes
// Combine fail with a DecryptionError naming that horcrux.
func TestScenarioS3TamperedHorcruxFailsDecryption(t *testing.T) {
	sinks := splitToMemory(t, []byte("hi"), 2, "", 2, 2)

	corrupted := append([]byte(nil), sinks[0].buf.Bytes()...)
	offset := 313
	if offset >= len(corrupted) {
		offset = len(corrupted) - 1
	}
	corrupted[offset] ^= 0xFF

	sources := []ReaderSource{newMemSource(corrupted), newMemSource(sinks[1].buf.Bytes())}
	var out bytes.Buffer
	_, err := Combine(sources, &out)
	if err == nil {
		t.Fatal("Combine succeeded despite tampered horcrux")
	}
	var decErr *combine.DecryptionError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected a *combine.DecryptionError, got %v", err)
	}
	if decErr.HorcruxID != 1 {
		t.Errorf("DecryptionError.HorcruxID = %d, want 1 (the tampered horcrux, 1-based)", decErr.HorcruxID)
	}
}

// S4: N=5,K=3; supplying only 2 horcruxes fails with NotEnoughShares.
func TestScenarioS4TooFewHorcruxesFails(t *testing.T) {
	sinks := splitToMemory(t, []byte("some plaintext data"), 19, "", 5, 3)

	var out bytes.Buffer
	_, err := Combine(sourcesFrom(sinks, []int{0, 1}), &out)
	if !errors.Is(err, shamir.ErrNotEnoughShares) {
		t.Errorf("Combine with 2 of 3 required = %v, want ErrNotEnoughShares", err)
	}
}

// S5: N=30,K=5 split of a raw 32-byte secret via shamir directly (no file
// framing). Every-other share (15 of 30) meets the threshold and recovers
// the secret; the last 2 alone do not.
func TestScenarioS5RawSecretSharingThreshold(t *testing.T) {
	var secret shamir.Secret
	if _, err := rand.Read(secret[:]); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}

	shares, err := shamir.Split(30, 5, secret, salt)
	if err != nil {
		t.Fatalf("shamir.Split: %v", err)
	}

	everyOther := make([]shamir.Share, 0, 15)
	for i := 0; i < len(shares); i += 2 {
		everyOther = append(everyOther, shares[i])
	}
	recovered, err := shamir.Combine(everyOther)
	if err != nil {
		t.Fatalf("shamir.Combine(15 shares): %v", err)
	}
	if recovered != secret {
		t.Error("recovered secret does not match original")
	}

	lastTwo := shares[len(shares)-2:]
	if _, err := shamir.Combine(lastTwo); !errors.Is(err, shamir.ErrNotEnoughShares) {
		t.Errorf("shamir.Combine(2 shares) = %v, want ErrNotEnoughShares", err)
	}
}

// S6: two independent splits of the same plaintext, N=5,K=3. Mixing one
// share from each split fails with IdMismatch.
func TestScenarioS6CrossSplitMixingFailsIdMismatch(t *testing.T) {
	plaintext := []byte("the quick brown fox jumps over the lazy dog, twice over")
	sinksA := splitToMemory(t, plaintext, int64(len(plaintext)), "", 5, 3)
	sinksB := splitToMemory(t, plaintext, int64(len(plaintext)), "", 5, 3)

	sources := []ReaderSource{
		newMemSource(sinksA[0].buf.Bytes()),
		newMemSource(sinksB[1].buf.Bytes()),
		newMemSource(sinksA[2].buf.Bytes()),
	}
	var out bytes.Buffer
	_, err := Combine(sources, &out)
	if !errors.Is(err, shamir.ErrIDMismatch) {
		t.Errorf("Combine(mixed splits) = %v, want ErrIDMismatch", err)
	}
}

// Property 9: combine returns "" when no filename was embedded.
func TestFilenameOmittedWhenNotProvided(t *testing.T) {
	sinks := splitToMemory(t, []byte("no filename here"), 16, "", 3, 2)

	var out bytes.Buffer
	filename, err := Combine(sourcesFrom(sinks, []int{0, 1}), &out)
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if filename != "" {
		t.Errorf("filename = %q, want empty", filename)
	}
}

// Property 1 (round-trip), sampled across a range of K/N and plaintext
// sizes rather than exhaustively -- the full space is far too large for a
// single test run.
func TestRoundTripAcrossSizesAndThresholds(t *testing.T) {
	cases := []struct {
		size int
		n, k int
	}{
		{1, 2, 2},
		{100, 3, 2},
		{4095, 5, 3},
		{4096, 5, 3},
		{4097, 7, 4},
		{200_000, 10, 6},
	}
	for _, c := range cases {
		plaintext := make([]byte, c.size)
		if _, err := rand.Read(plaintext); err != nil {
			t.Fatalf("rand.Read: %v", err)
		}
		sinks := splitToMemory(t, plaintext, int64(c.size), "", c.n, c.k)

		var out bytes.Buffer
		_, err := Combine(sourcesFrom(sinks, firstK(c.k)), &out)
		if err != nil {
			t.Fatalf("size=%d n=%d k=%d: Combine: %v", c.size, c.n, c.k, err)
		}
		if !bytes.Equal(out.Bytes(), plaintext) {
			t.Errorf("size=%d n=%d k=%d: round-trip mismatch", c.size, c.n, c.k)
		}
	}
}

func firstK(k int) []int {
	idxs := make([]int, k)
	for i := range idxs {
		idxs[i] = i
	}
	return idxs
}

var _ io.Closer = (*memSink)(nil)
var _ io.Closer = (*memSource)(nil)
