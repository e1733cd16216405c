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

package cli

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Laharah/horcrux"
)

var splitFilename string

func newSplitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split <in_file|-> <output> <threshold> <n>",
		Short: "Split a file into N encrypted horcruxes",
		Args:  cobra.ExactArgs(4),
		RunE:  runSplit,
	}
	cmd.Flags().StringVarP(&splitFilename, "filename", "f", "",
		"name to embed for the reassembled file (useful when reading from a stream)")
	return cmd
}

func runSplit(_ *cobra.Command, args []string) error {
	inPath, output, thresholdArg, nArg := args[0], args[1], args[2], args[3]

	threshold, err := strconv.Atoi(thresholdArg)
	if err != nil {
		return errors.Wrap(err, "invalid threshold")
	}
	n, err := strconv.Atoi(nArg)
	if err != nil {
		return errors.Wrap(err, "invalid n")
	}

	var (
		in            *os.File
		sizeHint      int64 = -1
		inputBasename string
	)
	if inPath == "-" {
		in = os.Stdin
	} else {
		in, err = os.Open(inPath)
		if err != nil {
			return errors.Wrapf(err, "could not open %s", inPath)
		}
		defer in.Close()
		if stat, statErr := in.Stat(); statErr == nil && stat.Mode().IsRegular() {
			sizeHint = stat.Size()
		}
		inputBasename = filepath.Base(inPath)
	}

	filename := splitFilename
	if filename == "" {
		filename = inputBasename
	}

	dir, title, err := resolveSplitOutput(output, inputBasename)
	if err != nil {
		return err
	}

	sinks := make([]horcrux.WriterSink, n)
	files := make([]*os.File, 0, n)
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}
	for i := 1; i <= n; i++ {
		path := horcruxPath(dir, title, i, n)
		f, err := os.Create(path)
		if err != nil {
			closeAll()
			return errors.Wrapf(err, "could not create %s", path)
		}
		files = append(files, f)
		sinks[i-1] = f
	}
	defer closeAll()

	log.Infof("splitting into %d horcruxes (threshold %d)...", n, threshold)
	if err := horcrux.Split(in, sizeHint, filename, sinks, n, threshold); err != nil {
		return errors.Wrap(err, "split failed")
	}
	log.Infof("wrote %d horcrux files to %s", n, dir)
	return nil
}
