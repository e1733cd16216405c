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

// Package field implements modular arithmetic and Lagrange interpolation
// over the fixed 256-bit prime field used by horcrux's secret sharing
// scheme.
//
// Unlike a general-purpose secret sharing library, horcrux does not
// generate a fresh prime per split: the field is fixed at
//
//	P = 2^256 - 189
//
// so that every horcrux in existence shares the same arithmetic, and
// shares from one split can never be silently combined with the field
// parameters of another. All values in the field are represented as
// big-endian 32-byte unsigned integers on the wire (see pkg/framing), and
// as *big.Int internally.
package field

import (
	"math/big"

	"github.com/pkg/errors"
)

// Prime is P = 2^256 - 189, the modulus of the field horcrux operates in.
var Prime = func() *big.Int {
	p := new(big.Int).Lsh(big.NewInt(1), 256)
	p.Sub(p, big.NewInt(189))
	return p
}()

// ErrDuplicateX is returned by Interpolate when two of the supplied points
// share an X coordinate (Lagrange interpolation requires distinct points).
var ErrDuplicateX = errors.New("field: duplicate X coordinate in interpolation points")

// Point is a single (x, y) pair on the polynomial used for secret sharing.
// X is small (it indexes a horcrux, or one of the two reserved anchors) but
// is stored as *big.Int so it composes directly with field arithmetic; Y is
// always reduced modulo Prime.
type Point struct {
	X *big.Int
	Y *big.Int
}

// NewPoint builds a Point from a small integer X and a Y already reduced
// mod Prime.
func NewPoint(x int64, y *big.Int) Point {
	return Point{X: big.NewInt(x), Y: new(big.Int).Mod(y, Prime)}
}

// Add returns (a + b) mod Prime.
func Add(a, b *big.Int) *big.Int {
	r := new(big.Int).Add(a, b)
	return r.Mod(r, Prime)
}

// Sub returns (a - b) mod Prime.
func Sub(a, b *big.Int) *big.Int {
	r := new(big.Int).Sub(a, b)
	return r.Mod(r, Prime)
}

// Mul returns (a * b) mod Prime.
func Mul(a, b *big.Int) *big.Int {
	r := new(big.Int).Mul(a, b)
	return r.Mod(r, Prime)
}

// Inverse returns the modular multiplicative inverse of a mod Prime, via
// Fermat's little theorem (a^(p-2) mod p). Prime is, well, prime, so a has
// an inverse for every a not congruent to 0.
func Inverse(a *big.Int) (*big.Int, error) {
	a = new(big.Int).Mod(a, Prime)
	if a.Sign() == 0 {
		return nil, errors.New("field: no inverse of 0")
	}
	exp := new(big.Int).Sub(Prime, big.NewInt(2))
	return new(big.Int).Exp(a, exp, Prime), nil
}

// Interpolate evaluates, at x0, the unique polynomial of degree
// len(points)-1 that passes through the given points, using Lagrange
// interpolation over GF(Prime):
//
//	f(x0) = sum_i y_i * prod_{j!=i} (x0-x_j)/(x_i-x_j)  (mod Prime)
//
// To keep the number of modular inversions bounded at one-per-term (rather
// than one per pair), each term's product is accumulated as a running
// numerator and denominator, and only the final per-term denominator is
// inverted.
func Interpolate(x0 *big.Int, points []Point) (*big.Int, error) {
	if err := checkDistinctX(points); err != nil {
		return nil, err
	}

	result := new(big.Int)
	for i, pi := range points {
		num := new(big.Int).Set(pi.Y)
		den := big.NewInt(1)
		for j, pj := range points {
			if i == j {
				continue
			}
			num = Mul(num, Sub(x0, pj.X))
			den = Mul(den, Sub(pi.X, pj.X))
		}
		denInv, err := Inverse(den)
		if err != nil {
			return nil, errors.Wrapf(err, "invert denominator for term %d", i)
		}
		term := Mul(num, denInv)
		result = Add(result, term)
	}
	return result, nil
}

// checkDistinctX returns ErrDuplicateX if any two points share an X value.
func checkDistinctX(points []Point) error {
	seen := make(map[string]struct{}, len(points))
	for _, p := range points {
		key := p.X.String()
		if _, ok := seen[key]; ok {
			return ErrDuplicateX
		}
		seen[key] = struct{}{}
	}
	return nil
}
