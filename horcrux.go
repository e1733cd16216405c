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

// Package horcrux splits a byte stream into N encrypted "horcrux"
// artifacts such that any K of them (2 ≤ K ≤ N ≤ 253) reconstruct the
// original, while fewer than K reveal nothing about the plaintext. It is
// the root package of the module: the public Split and Combine entry
// points compose pkg/shamir, pkg/streamcipher, pkg/framing, pkg/horcrux,
// pkg/planner, internal/split, and internal/combine.
//
// Opening and closing files, prompting before overwrite, and resolving
// output paths are all left to callers (cmd/horcrux); this package only
// ever reads from and writes to the io.Reader/io.Writer/io.Closer
// handles it is given.
package horcrux

import (
	"crypto/rand"
	"io"

	"github.com/pkg/errors"

	"github.com/Laharah/horcrux/internal/combine"
	"github.com/Laharah/horcrux/internal/split"
	horcruxio "github.com/Laharah/horcrux/pkg/horcrux"
	"github.com/Laharah/horcrux/pkg/framing"
	"github.com/Laharah/horcrux/pkg/shamir"
	"github.com/Laharah/horcrux/pkg/streamcipher"
)

// WriterSink is one horcrux output destination. Split only ever calls
// Write on it; Close is exposed so callers can manage the handle's
// lifetime with a single defer regardless of what kind of sink it is.
type WriterSink interface {
	io.Writer
	io.Closer
}

// ReaderSource is one horcrux input. Combine only ever calls Read (and,
// opportunistically, Seek if the concrete type supports it) on it; Close
// is exposed for the same reason as WriterSink's.
type ReaderSource interface {
	io.Reader
	io.Closer
}

// ErrInconsistentHeader is returned by Combine when the supplied horcruxes
// don't all carry the same secretstream header -- they claim to be part
// of the same split (shamir.Combine accepted their shares) but disagree
// on the crypto header, which should never happen for honest shares from
// one split.
var ErrInconsistentHeader = errors.New("horcrux: horcruxes disagree on stream header")

// Split reads all of r, encrypts it, and distributes it across
// len(sinks) horcrux files such that any k of them can later reconstruct
// it via Combine. sizeHint, if known and positive, lets the planner pick
// a single ideal block size up front instead of re-deciding per chunk;
// pass a value <= 0 (canonically -1) if the size of r is unknown, e.g.
// when r is stdin. filename, if non-empty, is sealed and embedded so
// Combine can recover it; pass "" to omit it.
func Split(r io.Reader, sizeHint int64, filename string, sinks []WriterSink, n, k int) error {
	if len(sinks) != n {
		return errors.Errorf("horcrux: need %d sinks, got %d", n, len(sinks))
	}

	key, err := streamcipher.GenerateKey()
	if err != nil {
		return errors.Wrap(err, "horcrux: generate master key")
	}

	cipher := streamcipher.New(streamcipher.TagRekey)
	cryptoHeader, err := cipher.InitEncrypt(key)
	if err != nil {
		return errors.Wrap(err, "horcrux: init stream cipher")
	}

	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return errors.Wrap(err, "horcrux: generate salt")
	}
	secret := shamir.Secret(key)
	shares, err := shamir.Split(uint8(n), uint8(k), secret, salt)
	secret.Zero()
	if err != nil {
		return errors.Wrap(err, "horcrux: split secret")
	}

	var sealedFilename []byte
	if filename != "" {
		sealedFilename, err = streamcipher.SealFilename(key, filename)
		if err != nil {
			return errors.Wrap(err, "horcrux: seal filename")
		}
	}
	zeroKey(&key)

	writers := make([]*horcruxio.Writer, n)
	for i, sink := range sinks {
		w := horcruxio.NewWriter(sink)
		header := framing.ShareHeader{
			ID:        shares[i].ID,
			Threshold: shares[i].Threshold,
			Point: framing.Point{
				X: shares[i].Point.X,
				Y: shares[i].Point.Y,
			},
		}
		if err := w.InitWrite(header, cryptoHeader, sealedFilename); err != nil {
			return errors.Wrapf(err, "horcrux: init horcrux %d", i)
		}
		writers[i] = w
	}

	splitter := split.New(writers, n, k, cipher)
	err = splitter.Run(r, sizeHint)
	cipher.Zero()
	return err
}

// Combine reads headers and shares from every source, reconstructs the
// master key, and writes the decrypted, reassembled plaintext to w. It
// returns the recovered filename, or "" if the split didn't embed one.
// len(sources) must be >= k, though Combine itself doesn't know k ahead
// of time -- it fails with shamir.ErrNotEnoughShares if too few distinct
// shares were supplied.
func Combine(sources []ReaderSource, w io.Writer) (filename string, err error) {
	if len(sources) == 0 {
		return "", errors.Wrap(shamir.ErrNotEnoughShares, "horcrux: no sources supplied")
	}

	readers := make([]*horcruxio.Reader, len(sources))
	shares := make([]shamir.Share, len(sources))
	for i, src := range sources {
		r := horcruxio.NewReader(src)
		if err := r.InitRead(); err != nil {
			return "", errors.Wrapf(err, "horcrux: init horcrux %d", i+1)
		}
		readers[i] = r
		shares[i] = shamir.Share{
			ID:        r.Share.ID,
			Threshold: r.Share.Threshold,
			Point: shamir.Point{
				X: r.Share.Point.X,
				Y: r.Share.Point.Y,
			},
		}
	}

	secret, err := shamir.Combine(shares)
	if err != nil {
		return "", errors.Wrap(err, "horcrux: combine shares")
	}
	key := [32]byte(secret)
	secret.Zero()

	first := readers[0]
	for i, r := range readers[1:] {
		if r.CryptoHeader != first.CryptoHeader {
			zeroKey(&key)
			return "", errors.Wrapf(ErrInconsistentHeader, "horcrux %d", i+2)
		}
	}

	if first.HasFilename {
		filename, err = streamcipher.OpenFilename(key, first.Filename)
		if err != nil {
			zeroKey(&key)
			return "", errors.Wrap(err, "horcrux: decrypt filename")
		}
	}

	cipher := streamcipher.New(streamcipher.TagRekey)
	if err := cipher.InitDecrypt(first.CryptoHeader, key); err != nil {
		zeroKey(&key)
		return "", errors.Wrap(err, "horcrux: init stream decryption")
	}
	zeroKey(&key)

	if err := combine.Merge(readers, cipher, w); err != nil {
		cipher.Zero()
		return "", err
	}
	cipher.Zero()
	return filename, nil
}

func zeroKey(key *[32]byte) {
	for i := range key {
		key[i] = 0
	}
}
