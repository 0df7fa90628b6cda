// Package release describes the single firmware release the publisher
// serves: a version string and the firmware image it belongs to.
package release

import (
	"strings"
)

// DefaultVersion is reported when no release was published yet, or when the
// stored version record is empty.
const DefaultVersion = "0.0.0"

// Release is a firmware image together with its version.
type Release struct {
	Version  string
	Firmware []byte
}

// New returns a Release with the version normalized.
func New(version string, firmware []byte) Release {
	return Release{
		Version:  NormalizeVersion(version),
		Firmware: firmware,
	}
}

// versionCutset is what is trimmed around a version: ASCII blanks and NUL.
// Unicode spaces like NBSP are part of the version.
const versionCutset = " \t\n\r\x00\x0b"

// NormalizeVersion returns the version in the form it is stored and
// reported in.
func NormalizeVersion(version string) string {
	return strings.Trim(version, versionCutset)
}

// EncodeVersionRecord returns the on-disk form of a version record: the
// normalized version followed by a newline.
func EncodeVersionRecord(version string) []byte {
	return []byte(NormalizeVersion(version) + "\n")
}

// DecodeVersionRecord parses the on-disk form of a version record. An empty
// record yields DefaultVersion.
func DecodeVersionRecord(b []byte) string {
	version := NormalizeVersion(string(b))
	if version == "" {
		return DefaultVersion
	}
	return version
}
