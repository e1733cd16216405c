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

// Command horcrux splits a file into N encrypted shards ("horcruxes") and
// later recombines any K of them back into the original. See the horcrux
// package for the underlying Split/Combine implementation; this command is
// a thin consumer of it that handles argument parsing, path resolution,
// overwrite confirmation, and progress logging.
package main

import (
	"os"

	"github.com/Laharah/horcrux/cmd/horcrux/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(2)
	}
}
