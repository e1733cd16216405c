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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// osStat is os.Stat, indirected so tests can stub filesystem state without
// touching disk.
var osStat = os.Stat

// defaultTitle returns a timestamp-based title for splits that have no
// input filename to derive one from (e.g. reading from stdin without
// --filename).
func defaultTitle() string {
	ts := strings.ReplaceAll(time.Now().UTC().Format(time.RFC3339), ":", "-")
	return "Horcrux_" + ts
}

// resolveSplitOutput decides the directory and file-name title the N
// horcrux shards will be written under, following
// _examples/original_source/horcrux/cli.py's _resolve_files_split: output
// may name an existing directory (title derived from the input filename or
// a timestamp default), or may itself be the desired title (with its
// parent as the directory).
func resolveSplitOutput(output, inputBasename string) (dir, title string, err error) {
	info, statErr := osStat(output)
	switch {
	case statErr == nil && info.IsDir():
		dir = output
		if inputBasename != "" {
			title = strings.TrimSuffix(inputBasename, filepath.Ext(inputBasename))
		} else {
			title = defaultTitle()
		}
	case statErr == nil:
		// output exists and is a regular file: treat it as the title.
		dir = filepath.Dir(output)
		title = filepath.Base(output)
	default:
		parent := filepath.Dir(output)
		if pInfo, pErr := osStat(parent); pErr == nil && pInfo.IsDir() {
			dir = parent
			title = filepath.Base(output)
		} else {
			return "", "", errors.Errorf("output directory %s does not exist", parent)
		}
	}
	return dir, title, nil
}

// horcruxPath builds the path for the i'th (1-based) of n horcrux shards
// under dir/title, zero-padding i to the decimal width of n per
// spec.md §6: <title>_<i>.hrcx.
func horcruxPath(dir, title string, i, n int) string {
	width := len(strconv.Itoa(n))
	name := fmt.Sprintf("%s_%0*d.hrcx", title, width, i)
	return filepath.Join(dir, name)
}

// resolveCombineOutput mirrors _resolve_files_combine: --output may name an
// existing directory (filename recovered from the split's embedded
// filename), an existing file, or a not-yet-existing path whose parent
// exists (used verbatim as the destination file).
func resolveCombineOutput(output string) (dir, explicitName string, err error) {
	info, statErr := osStat(output)
	switch {
	case statErr == nil && info.IsDir():
		return output, "", nil
	case statErr == nil:
		return filepath.Dir(output), filepath.Base(output), nil
	default:
		parent := filepath.Dir(output)
		if pInfo, pErr := osStat(parent); pErr == nil && pInfo.IsDir() {
			return parent, filepath.Base(output), nil
		}
		return "", "", errors.Errorf("output directory %s does not exist", parent)
	}
}
