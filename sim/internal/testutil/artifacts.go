// Package testutil provides shared test infrastructure for the droplet
// driver. It consolidates artifact readers and assertion helpers used across
// sim/ and its sub-package tests.
package testutil

import (
	"bufio"
	"math"
	"testing"

	"github.com/go-git/go-billy/v5"
)

// ReadLines returns the lines of name on fs, failing the test on any error.
func ReadLines(t *testing.T, fs billy.Filesystem, name string) []string {
	t.Helper()

	f, err := fs.Open(name)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", name, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("Failed to read %s: %v", name, err)
	}
	return lines
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
