// Package fwversion implements the build-side firmware version scheme:
// a "MM.mm" base kept in a VERSION file plus an incrementing build number,
// producing short versions like "01.02.125".
package fwversion

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultBase is used when the VERSION file is missing or malformed.
const DefaultBase = "01.00"

// SanitizeBase converts free-form text like "1.2" or "01.02.7" into the
// zero-padded "MM.mm" base. Anything unparsable becomes DefaultBase.
func SanitizeBase(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return DefaultBase
	}
	parts := strings.Split(text, ".")
	if len(parts) < 2 {
		return DefaultBase
	}
	major, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return DefaultBase
	}
	minor, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return DefaultBase
	}
	return fmt.Sprintf("%02d.%02d", major, minor)
}

// Short returns the short firmware version for a base and a build number.
func Short(base string, build int) string {
	return fmt.Sprintf("%s.%d", SanitizeBase(base), build)
}

// ReadBase reads and sanitizes the base version from a VERSION file.
func ReadBase(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return DefaultBase
	}
	return SanitizeBase(string(b))
}

// ReadBuildNumber reads the build counter file. A missing or malformed
// file counts as build 0.
func ReadBuildNumber(path string) int {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0
	}
	return n
}

// IncrementBuildNumber increments the build counter file and returns the
// new build number. The file is created if missing.
func IncrementBuildNumber(path string) (int, error) {
	build := ReadBuildNumber(path) + 1
	if err := os.WriteFile(path, []byte(strconv.Itoa(build)), 0644); err != nil {
		return 0, fmt.Errorf("unable to write build number file '%s': %w", path, err)
	}
	return build, nil
}

// Compare compares two dot-separated versions segment by segment. Segments
// which are both numeric are compared as numbers, anything else as strings;
// a version which is a prefix of the other is the smaller one.
//
// Returns -1, 0 or 1.
func Compare(a, b string) int {
	aParts := strings.Split(strings.TrimSpace(a), ".")
	bParts := strings.Split(strings.TrimSpace(b), ".")
	for idx := 0; idx < len(aParts) && idx < len(bParts); idx++ {
		if c := compareSegment(aParts[idx], bParts[idx]); c != 0 {
			return c
		}
	}
	switch {
	case len(aParts) < len(bParts):
		return -1
	case len(aParts) > len(bParts):
		return 1
	}
	return 0
}

func compareSegment(a, b string) int {
	aNum, aErr := strconv.ParseUint(a, 10, 64)
	bNum, bErr := strconv.ParseUint(b, 10, 64)
	if aErr == nil && bErr == nil {
		switch {
		case aNum < bNum:
			return -1
		case aNum > bNum:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}
