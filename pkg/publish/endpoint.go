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
	"errors"
	"net/http"

	"github.com/facebookincubator/go-belt/beltctx"
	"github.com/facebookincubator/go-belt/tool/experimental/errmon"
	"github.com/facebookincubator/go-belt/tool/experimental/metrics"
	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/immune-gmbh/firmware-publisher/pkg/release"
	"github.com/immune-gmbh/firmware-publisher/pkg/releasestore"
)

// Endpoint serves the current firmware version (GET) and accepts a new
// release (POST). Requests are not coordinated with each other, concurrent
// publishes are resolved by the Store.
type Endpoint struct {
	Store      releasestore.Store
	Authorizer TokenAuthorizer

	cfg config
}

var _ http.Handler = (*Endpoint)(nil)

// New returns an Endpoint backed by the store.
func New(store releasestore.Store, opts ...Option) *Endpoint {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	return &Endpoint{
		Store:      store,
		Authorizer: TokenAuthorizer{Token: cfg.AuthToken},
		cfg:        cfg,
	}
}

// ServeHTTP implements http.Handler.
func (e *Endpoint) ServeHTTP(response http.ResponseWriter, request *http.Request) {
	switch request.Method {
	case http.MethodGet:
		e.serveVersion(response, request)
	case http.MethodPost:
		e.servePublish(response, request)
	default:
		response.Header().Set("Allow", "GET, POST")
		e.replyFailure(response, request, newFailure(KindMethodNotAllowed, MessageMethodNotAllowed))
	}
}

func (e *Endpoint) serveVersion(response http.ResponseWriter, request *http.Request) {
	ctx := request.Context()

	version, err := e.Store.ReadVersion(ctx)
	if err != nil {
		if !errors.As(err, &releasestore.ErrNotFound{}) {
			logger.FromCtx(ctx).Warnf("unable to read the version, replying the default one: %v", err)
		}
		version = release.DefaultVersion
	}
	if version == "" {
		version = release.DefaultVersion
	}

	replyText(ctx, response, http.StatusOK, version)
}

func (e *Endpoint) servePublish(response http.ResponseWriter, request *http.Request) {
	ctx := request.Context()

	req := &publishRequest{
		Request:  request,
		Response: response,
		Endpoint: e,
	}
	defer req.Close(ctx)

	for _, step := range publishSteps {
		if failure := step(ctx, req); failure != nil {
			e.replyFailure(response, request, failure)
			return
		}
	}

	ctx = beltctx.WithField(ctx, "firmware_version", req.Release.Version)
	logger.FromCtx(ctx).Infof("published firmware '%s' of %d bytes", req.File.FileName, len(req.Release.Firmware))
	metrics.FromCtx(ctx).Count("publish_ok").Add(1)

	replyJSON(ctx, response, http.StatusOK, Response{
		OK:      true,
		Version: req.Release.Version,
	})
}

func (e *Endpoint) replyFailure(response http.ResponseWriter, request *http.Request, failure *Failure) {
	ctx := request.Context()

	metrics.FromCtx(ctx).Count("publish_failed_" + failure.Kind.String()).Add(1)
	switch failure.Kind {
	case KindInternal:
		logger.FromCtx(ctx).Errorf("%s request failed: %v", request.Method, failure)
		errmon.ObserveErrorCtx(ctx, failure)
	default:
		logger.FromCtx(ctx).Infof("%s request rejected: %v", request.Method, failure)
	}

	replyJSON(ctx, response, failure.Kind.StatusCode(), Response{
		Error: failure.Message,
		Code:  failure.Code,
	})
}
