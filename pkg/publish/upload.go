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

package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/facebookincubator/go-belt/tool/logger"
)

// UploadErrorCode is the outcome of receiving a single uploaded file. The
// values follow the numbering upload clients traditionally expect.
type UploadErrorCode int

const (
	UploadOK           = UploadErrorCode(0)
	UploadErrTooLarge  = UploadErrorCode(1)
	UploadErrPartial   = UploadErrorCode(3)
	UploadErrNoFile    = UploadErrorCode(4)
	UploadErrNoTmpDir  = UploadErrorCode(6)
	UploadErrCantWrite = UploadErrorCode(7)
)

func (code UploadErrorCode) String() string {
	switch code {
	case UploadOK:
		return "ok"
	case UploadErrTooLarge:
		return "file too large"
	case UploadErrPartial:
		return "partially uploaded"
	case UploadErrNoFile:
		return "no file"
	case UploadErrNoTmpDir:
		return "upload directory is missing"
	case UploadErrCantWrite:
		return "unable to write the upload"
	}
	return fmt.Sprintf("unknown_upload_error_%d", int(code))
}

// ErrValueTooLong means a form value does not fit into the limit of the
// non-file part of the body.
type ErrValueTooLong struct {
	Name  string
	Limit int
}

func (err ErrValueTooLong) Error() string {
	if err.Name == "" {
		return fmt.Sprintf("the form is longer than %d bytes", err.Limit)
	}
	return fmt.Sprintf("value '%s' is longer than %d bytes", err.Name, err.Limit)
}

// uploadedFile is a file part of a request body spooled to the upload directory.
type uploadedFile struct {
	FileName  string
	Path      string
	Size      int64
	ErrorCode UploadErrorCode
}

// uploadForm is a parsed request body.
type uploadForm struct {
	Values url.Values
	Files  map[string]*uploadedFile

	// ParseErr is the reason parsing stopped early, Values and Files
	// contain everything parsed before that.
	ParseErr error

	uploadDir string
	spooled   map[string]struct{}
}

func newUploadForm(uploadDir string) *uploadForm {
	return &uploadForm{
		Values:    url.Values{},
		Files:     map[string]*uploadedFile{},
		uploadDir: filepath.Clean(uploadDir),
		spooled:   map[string]struct{}{},
	}
}

// parseUploadForm reads the request body as multipart or urlencoded form.
// Any other body is ignored.
func parseUploadForm(
	ctx context.Context,
	response http.ResponseWriter,
	request *http.Request,
	cfg config,
) *uploadForm {
	form := newUploadForm(cfg.UploadDir)
	if request.Body == nil {
		return form
	}
	body := http.MaxBytesReader(response, request.Body, cfg.MaxUploadSize+maxFormOverhead)

	mediaType, params, err := mime.ParseMediaType(request.Header.Get("Content-Type"))
	if err != nil {
		logger.FromCtx(ctx).Debugf("unable to parse the content type: %v", err)
		return form
	}

	switch mediaType {
	case "multipart/form-data":
		form.readMultipart(ctx, multipart.NewReader(body, params["boundary"]), cfg.MaxUploadSize)
	case "application/x-www-form-urlencoded":
		form.readURLEncoded(body)
	default:
		logger.FromCtx(ctx).Debugf("ignoring a body of type '%s'", mediaType)
	}
	return form
}

func (form *uploadForm) readURLEncoded(body io.Reader) {
	b, err := io.ReadAll(io.LimitReader(body, maxFormOverhead+1))
	if err != nil {
		form.ParseErr = err
		return
	}
	if len(b) > maxFormOverhead {
		// only the pairs which are complete before the limit are kept
		b = b[:maxFormOverhead]
		if idx := bytes.LastIndexByte(b, '&'); idx >= 0 {
			b = b[:idx]
		} else {
			b = nil
		}
		form.ParseErr = ErrValueTooLong{Limit: maxFormOverhead}
	}
	values, err := url.ParseQuery(string(b))
	form.Values = values
	if form.ParseErr == nil {
		form.ParseErr = err
	}
}

// readValue reads a non-file part, a value longer than the limit is
// an error and is not returned at all.
func readValue(part io.Reader, name string) (string, error) {
	value, err := io.ReadAll(io.LimitReader(part, maxFormOverhead+1))
	if err != nil {
		return "", err
	}
	if len(value) > maxFormOverhead {
		return "", ErrValueTooLong{Name: name, Limit: maxFormOverhead}
	}
	return string(value), nil
}

func (form *uploadForm) readMultipart(ctx context.Context, reader *multipart.Reader, maxSize int64) {
	for {
		part, err := reader.NextPart()
		// a truncated body is reported as a wrapped io.EOF
		if err == io.EOF {
			return
		}
		if err != nil {
			form.ParseErr = fmt.Errorf("unable to read the next part: %w", err)
			return
		}

		name := part.FormName()
		fileName, isFile := partFileName(part)
		switch {
		case name == "":
			_, err = io.Copy(io.Discard, part)
		case isFile:
			file := form.spool(ctx, part, fileName, maxSize)
			form.Files[name] = file
			if file.ErrorCode == UploadErrPartial {
				err = fmt.Errorf("file '%s' is incomplete", name)
			}
		default:
			var value string
			value, err = readValue(part, name)
			if err == nil {
				form.Values.Add(name, value)
			}
		}
		part.Close()
		if err != nil {
			form.ParseErr = fmt.Errorf("unable to read part '%s': %w", name, err)
			return
		}
	}
}

// partFileName returns the file name of a part, isFile is true if the
// part has a "filename" parameter at all, even an empty one.
func partFileName(part *multipart.Part) (string, bool) {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return "", false
	}
	fileName, isFile := params["filename"]
	return fileName, isFile
}

type readErrRecorder struct {
	io.Reader
	Err error
}

func (r *readErrRecorder) Read(b []byte) (int, error) {
	n, err := r.Reader.Read(b)
	if err != nil && !errors.Is(err, io.EOF) {
		r.Err = err
	}
	return n, err
}

func (form *uploadForm) spool(
	ctx context.Context,
	part io.Reader,
	fileName string,
	maxSize int64,
) *uploadedFile {
	file := &uploadedFile{FileName: fileName}

	// a broken body is reported by the next call of NextPart
	drain := func(code UploadErrorCode) *uploadedFile {
		file.ErrorCode = code
		_, _ = io.Copy(io.Discard, part)
		return file
	}

	if fileName == "" {
		return drain(UploadErrNoFile)
	}

	f, err := os.CreateTemp(form.uploadDir, "fwupload-*")
	if err != nil {
		logger.FromCtx(ctx).Errorf("unable to create a file in the upload directory '%s': %v", form.uploadDir, err)
		if errors.Is(err, fs.ErrNotExist) {
			return drain(UploadErrNoTmpDir)
		}
		return drain(UploadErrCantWrite)
	}
	path := f.Name()
	form.spooled[path] = struct{}{}

	src := &readErrRecorder{Reader: io.LimitReader(part, maxSize+1)}
	n, copyErr := io.Copy(f, src)
	closeErr := f.Close()
	switch {
	case src.Err != nil:
		file.ErrorCode = UploadErrPartial
	case copyErr != nil || closeErr != nil:
		logger.FromCtx(ctx).Errorf("unable to write the upload to '%s': %v; %v", path, copyErr, closeErr)
		file.ErrorCode = UploadErrCantWrite
	case n > maxSize:
		drain(UploadErrTooLarge)
	default:
		file.Path = path
		file.Size = n
		return file
	}

	form.remove(ctx, path)
	return file
}

func (form *uploadForm) remove(ctx context.Context, path string) {
	delete(form.spooled, path)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.FromCtx(ctx).Warnf("unable to remove the spooled upload '%s': %v", path, err)
	}
}

// IsSpooled returns true only if the path is a regular file created by this form
// in the upload directory.
func (form *uploadForm) IsSpooled(path string) bool {
	if _, ok := form.spooled[path]; !ok {
		return false
	}
	if filepath.Dir(path) != form.uploadDir {
		return false
	}
	info, err := os.Lstat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// Value returns the last value sent for the field.
func (form *uploadForm) Value(name string) (string, bool) {
	values, ok := form.Values[name]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[len(values)-1], true
}

// RemoveAll removes every file spooled by this form.
func (form *uploadForm) RemoveAll(ctx context.Context) {
	for path := range form.spooled {
		form.remove(ctx, path)
	}
}
