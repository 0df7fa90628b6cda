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
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/facebookincubator/go-belt/tool/experimental/tracer"
	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/immune-gmbh/firmware-publisher/pkg/release"
	"github.com/immune-gmbh/firmware-publisher/pkg/releasestore"
)

const (
	FormFieldFirmwareVersion = `firmware_version`
	FormFieldFile            = `file`
)

// publishRequest is the state of a single POST passed through the steps.
type publishRequest struct {
	Request  *http.Request
	Response http.ResponseWriter
	Endpoint *Endpoint

	Version string
	File    *uploadedFile
	Release release.Release

	form *uploadForm
}

// Form parses the request body on the first call.
func (req *publishRequest) Form(ctx context.Context) *uploadForm {
	if req.form == nil {
		req.form = parseUploadForm(ctx, req.Response, req.Request, req.Endpoint.cfg)
		if req.form.ParseErr != nil {
			logger.FromCtx(ctx).Warnf("the request body was parsed partially: %v", req.form.ParseErr)
		}
	}
	return req.form
}

// Close removes everything spooled for the request.
func (req *publishRequest) Close(ctx context.Context) {
	if req.form != nil {
		req.form.RemoveAll(ctx)
	}
}

// step is a single check of a publish request, a non-nil Failure stops
// the processing of the request.
type step func(ctx context.Context, req *publishRequest) *Failure

// publishSteps are executed in this exact order.
var publishSteps = []step{
	checkToken,
	checkVersionPresent,
	checkVersionNotEmpty,
	checkFilePresent,
	checkUploadError,
	checkGenuineUpload,
	persistRelease,
}

func checkToken(ctx context.Context, req *publishRequest) *Failure {
	authorizer := req.Endpoint.Authorizer
	if !authorizer.Enabled() {
		return nil
	}

	// the header is used even if empty, the body is not read for a wrong header
	credential, ok := headerCredential(req.Request)
	if !ok {
		credential, _ = req.Form(ctx).Value(FormFieldToken)
	}
	if !authorizer.Authorize(credential) {
		return newFailure(KindUnauthorized, MessageUnauthorized)
	}
	return nil
}

func checkVersionPresent(ctx context.Context, req *publishRequest) *Failure {
	version, ok := req.Form(ctx).Value(FormFieldFirmwareVersion)
	if !ok {
		return newFailure(KindBadRequest, MessageMissingFirmwareVersion)
	}
	req.Version = version
	return nil
}

func checkVersionNotEmpty(ctx context.Context, req *publishRequest) *Failure {
	req.Version = release.NormalizeVersion(req.Version)
	if req.Version == "" {
		return newFailure(KindBadRequest, MessageEmptyFirmwareVersion)
	}
	return nil
}

func checkFilePresent(ctx context.Context, req *publishRequest) *Failure {
	file, ok := req.Form(ctx).Files[FormFieldFile]
	if !ok || file == nil {
		return newFailure(KindBadRequest, MessageMissingFile)
	}
	req.File = file
	return nil
}

func checkUploadError(ctx context.Context, req *publishRequest) *Failure {
	if req.File.ErrorCode == UploadOK {
		return nil
	}
	code := req.File.ErrorCode
	return &Failure{
		Kind:    KindBadRequest,
		Message: MessageUploadError,
		Code:    &code,
	}
}

func checkGenuineUpload(ctx context.Context, req *publishRequest) *Failure {
	if !req.Form(ctx).IsSpooled(req.File.Path) {
		return newFailure(KindBadRequest, MessageInvalidUpload)
	}
	return nil
}

func persistRelease(ctx context.Context, req *publishRequest) *Failure {
	span, ctx := tracer.StartChildSpanFromCtx(ctx, "persistRelease")
	defer span.Finish()

	firmware, err := os.ReadFile(req.File.Path)
	if err != nil {
		return &Failure{Kind: KindInternal, Message: MessageSaveFirmware, Err: err}
	}
	req.Release = release.New(req.Version, firmware)

	err = req.Endpoint.Store.WriteRelease(ctx, req.Release.Version, req.Release.Firmware)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &releasestore.ErrWriteVersion{}):
		return &Failure{Kind: KindInternal, Message: MessageWriteVersion, Err: err}
	default:
		return &Failure{Kind: KindInternal, Message: MessageSaveFirmware, Err: err}
	}
}
