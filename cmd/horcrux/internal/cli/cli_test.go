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
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// runCLI invokes the root command with args, capturing nothing from
// stdout/stderr beyond what the logger already writes (tests assert on
// filesystem effects, not console output).
func runCLI(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	// cobra commands are package-level singletons and flags are not reset
	// between runs; every test uses distinct temp dirs, so flag state
	// leaking between tests is harmless for these read-mostly flags.
	return err
}

func TestSplitThenCombineRoundTrip(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()
	combinedDir := t.TempDir()

	plaintext := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 200)
	inPath := filepath.Join(srcDir, "payload.txt")
	if err := os.WriteFile(inPath, plaintext, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := runCLI(t, "split", inPath, outDir, "2", "4"); err != nil {
		t.Fatalf("split: %v", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("got %d horcrux files, want 4", len(entries))
	}

	var shardPaths []string
	for _, e := range entries {
		shardPaths = append(shardPaths, filepath.Join(outDir, e.Name()))
	}

	combineArgs := append([]string{"combine", shardPaths[0], shardPaths[2],
		"--output", combinedDir, "--overwrite"})
	if err := runCLI(t, combineArgs...); err != nil {
		t.Fatalf("combine: %v", err)
	}

	combinedEntries, err := os.ReadDir(combinedDir)
	if err != nil {
		t.Fatalf("ReadDir(combined): %v", err)
	}
	if len(combinedEntries) != 1 {
		t.Fatalf("got %d files in combined dir, want 1", len(combinedEntries))
	}
	got, err := os.ReadFile(filepath.Join(combinedDir, combinedEntries[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Error("combined output does not match original plaintext")
	}
	if combinedEntries[0].Name() != "payload.txt" {
		t.Errorf("recovered filename = %q, want %q", combinedEntries[0].Name(), "payload.txt")
	}
}

func TestCombineTooFewInputsRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "only_one.hrcx")
	if err := os.WriteFile(path, []byte("not a real horcrux"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := runCLI(t, "combine", path); err == nil {
		t.Error("expected an error for fewer than 2 input files")
	}
}
