// Copyright 2023 Meta Platforms, Inc. and affiliates.
//
// Redistribution and use in source and binary forms, with or without modification, are permitted provided that the following conditions are met:
//
// 1. Redistributions of source code must retain the above copyright notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright notice, this list of conditions and the following disclaimer in the documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its contributors may be used to endorse or promote products derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

// Package releasestore persists the published firmware release: the version
// record and the firmware image.
//
// Backends are selected by URL (see New). None of them coordinates
// concurrent writers: two concurrent WriteRelease calls may interleave.
package releasestore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// Store is the storage of the single published firmware release.
type Store interface {
	io.Closer

	// ReadVersion returns the stored version (trimmed; release.DefaultVersion
	// if the record is empty). Returns ErrNotFound if nothing was published yet.
	ReadVersion(ctx context.Context) (string, error)

	// WriteRelease overwrites the firmware image and then the version record.
	//
	// Returns ErrSaveFirmware or ErrWriteVersion depending on which of the
	// two could not be persisted.
	WriteRelease(ctx context.Context, version string, firmware []byte) error

	// ReadFirmware returns the stored firmware image. Returns ErrNotFound if
	// nothing was published yet.
	ReadFirmware(ctx context.Context) ([]byte, error)
}

// New returns a Store given its URL:
//
//	fs://<dir>          version.txt and firmware.bin in <dir>, plain overwrites
//	fs+atomic://<dir>   the same layout, each file replaced by a rename
//	bolt://<path>       bbolt database file
//	mysql://<DSN>       MySQL, DSN in go-sql-driver/mysql format, versions up to 16MiB
func New(urlString string) (Store, error) {
	scheme, rest, ok := strings.Cut(urlString, "://")
	if !ok {
		return nil, fmt.Errorf("unable to parse URL '%s': no scheme", urlString)
	}

	switch scheme {
	case "mysql":
		// A DSN like "user:pass@tcp(host:3306)/db" is not a valid URL
		// authority, so it is passed through as is.
		return newMySQL(rest)
	}

	parsedURL, err := url.Parse(urlString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse URL '%s': %w", urlString, err)
	}
	path := parsedURL.Host + parsedURL.Path
	if path == "" {
		return nil, fmt.Errorf("no path in URL '%s'", urlString)
	}

	switch scheme {
	case "fs":
		return newFS(path, false)
	case "fs+atomic":
		return newFS(path, true)
	case "bolt":
		return newBolt(path)
	default:
		return nil, ErrUnknownScheme{Scheme: scheme}
	}
}
