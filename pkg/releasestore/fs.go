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

package releasestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/google/uuid"

	"github.com/immune-gmbh/firmware-publisher/pkg/release"
)

const (
	// VersionFileName is the name of the version record file.
	VersionFileName = "version.txt"

	// FirmwareFileName is the name of the firmware image file.
	FirmwareFileName = "firmware.bin"

	publishedFileMode = 0644
)

// FS keeps the release as two files in RootDir.
//
// If Atomic is false, files are overwritten in place, so a reader (or a
// crash) may observe a half-written file. If Atomic is true each file is
// staged next to the target and renamed over it. In both modes the firmware
// is written before the version record, and the two files are not updated
// atomically with respect to each other.
type FS struct {
	RootDir string
	Atomic  bool
}

var _ Store = (*FS)(nil)

func newFS(rootDir string, atomic bool) (*FS, error) {
	err := os.MkdirAll(rootDir, 0750)
	if err != nil {
		return nil, fmt.Errorf("unable to create the rootdir '%s': %w", rootDir, err)
	}
	return &FS{
		RootDir: rootDir,
		Atomic:  atomic,
	}, nil
}

// VersionPath returns the path of the version record file.
func (fs *FS) VersionPath() string {
	return filepath.Join(fs.RootDir, VersionFileName)
}

// FirmwarePath returns the path of the firmware image file.
func (fs *FS) FirmwarePath() string {
	return filepath.Join(fs.RootDir, FirmwareFileName)
}

func (fs *FS) ReadVersion(ctx context.Context) (string, error) {
	b, err := fs.readFile(fs.VersionPath())
	if err != nil {
		return "", err
	}
	return release.DecodeVersionRecord(b), nil
}

func (fs *FS) ReadFirmware(ctx context.Context) ([]byte, error) {
	return fs.readFile(fs.FirmwarePath())
}

func (fs *FS) readFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, ErrNotFound{}
	case err != nil:
		return nil, ErrRead{What: path, Err: err}
	}
	return b, nil
}

func (fs *FS) WriteRelease(ctx context.Context, version string, firmware []byte) error {
	if err := fs.writeFile(fs.FirmwarePath(), firmware); err != nil {
		return ErrSaveFirmware{Err: err}
	}
	if err := fs.writeFile(fs.VersionPath(), release.EncodeVersionRecord(version)); err != nil {
		return ErrWriteVersion{Err: err}
	}

	// best effort: the files could be pre-created by somebody else with
	// a stricter mode, and we might be not permitted to change it.
	for _, path := range []string{fs.FirmwarePath(), fs.VersionPath()} {
		if err := os.Chmod(path, publishedFileMode); err != nil {
			logger.FromCtx(ctx).Debugf("unable to chmod '%s': %v", path, err)
		}
	}
	return nil
}

func (fs *FS) writeFile(path string, b []byte) error {
	if !fs.Atomic {
		return os.WriteFile(path, b, publishedFileMode)
	}

	tmpPath := filepath.Join(filepath.Dir(path), fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.New()))
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, publishedFileMode)
	if err != nil {
		return fmt.Errorf("unable to create a staging file: %w", err)
	}

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := f.Write(b); err != nil {
		f.Close()
		return fmt.Errorf("unable to write the staging file '%s': %w", tmpPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("unable to close the staging file '%s': %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("unable to rename '%s' to '%s': %w", tmpPath, path, err)
	}

	success = true
	return nil
}

// Watch calls onChange with the file name each time the version record or
// the firmware image is changed, including changes made by other processes.
func (fs *FS) Watch(ctx context.Context, onChange func(fileName string)) error {
	return watchDir(ctx, fs.RootDir, []string{VersionFileName, FirmwareFileName}, onChange)
}

func (fs *FS) Close() error {
	return nil
}
