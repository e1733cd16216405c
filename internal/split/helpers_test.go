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

package split

import (
	"math/big"

	"github.com/Laharah/horcrux/pkg/framing"
)

func shareHeaderFor(id [16]byte, x uint8) framing.ShareHeader {
	return framing.ShareHeader{
		ID:        id,
		Threshold: 2,
		Point:     framing.Point{X: uint16(x)},
	}
}

func binomialForTest(n, r int) int64 {
	return new(big.Int).Binomial(int64(n), int64(r)).Int64()
}
