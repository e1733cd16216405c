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

// Package cli implements the horcrux command-line interface: argument
// parsing, output-path resolution, overwrite confirmation, and progress
// logging around the horcrux package's Split and Combine.
package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// log is the package-level logger used for progress and diagnostic
// messages. The core horcrux packages never log themselves -- only this
// command layer does.
var log = logrus.New()

var rootCmd = &cobra.Command{
	Use:   "horcrux",
	Short: "Split a file into n encrypted horcruxes, or recombine them",
	Long: `horcrux splits a file into N encrypted shards, any K of which can later
be recombined to recover the original. Fewer than K reveal nothing about
the contents.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	rootCmd.AddCommand(newSplitCmd())
	rootCmd.AddCommand(newCombineCmd())
}

// Execute runs the root command and logs any returned error to stderr
// itself: SilenceErrors stops cobra from printing the error, and
// SilenceUsage stops it from printing usage on error.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		return err
	}
	return nil
}
