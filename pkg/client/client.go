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

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/facebookincubator/go-belt/beltctx"
	"github.com/facebookincubator/go-belt/tool/experimental/tracer"
	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/immune-gmbh/firmware-publisher/pkg/httputils/clienthelpers"
	"github.com/immune-gmbh/firmware-publisher/pkg/httputils/servermiddleware"
)

const (
	// DefaultTimeout is the default timeout of a request. Uploading a
	// firmware image over a slow link may take a while.
	DefaultTimeout = 5 * time.Minute

	maxErrorBodySize = 4096
)

// Client talks to a firmware publish endpoint.
type Client struct {
	BaseURL    *url.URL
	HTTPClient *http.Client
	Config     initConfig
}

// response mirrors the JSON replied by the endpoint.
type response struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Code    *int   `json:"code"`
	Version string `json:"version"`
}

// New returns a client of the endpoint at baseURL, which is either the
// directory the endpoint is served at (like "https://example.com/fw/") or the
// script itself (like "https://example.com/fw/index.php").
func New(baseURL string, opts ...Option) (*Client, error) {
	cfg := initConfig{
		RemoteLogLevel: logger.LevelUndefined,
	}
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse URL '%s': %w", baseURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, fmt.Errorf("unsupported scheme '%s' in URL '%s'", u.Scheme, baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") && !strings.HasSuffix(u.Path, ".php") {
		u.Path += "/"
	}

	return &Client{
		BaseURL:    u,
		HTTPClient: cfg.HTTPClient,
		Config:     cfg,
	}, nil
}

// FirmwareURL returns the URL the published firmware image is downloadable at.
func (c *Client) FirmwareURL() *url.URL {
	return c.BaseURL.ResolveReference(&url.URL{Path: "firmware.bin"})
}

func (c *Client) newRequest(ctx context.Context, method string, u *url.URL, body io.Reader) (*http.Request, error) {
	request, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("unable to create a request to '%s': %w", u, err)
	}
	clienthelpers.SetHeaders(request, c.Config.RemoteLogLevel)
	if c.Config.LogLocalHostname != "" {
		request.Header.Set(servermiddleware.HTTPHeaderNameLogClientHostname, c.Config.LogLocalHostname)
	}
	return request, nil
}

func (c *Client) do(ctx context.Context, request *http.Request) (*http.Response, error) {
	span, ctx := tracer.StartChildSpanFromCtx(ctx, request.Method+" "+request.URL.Path)
	defer span.Finish()

	ctx = beltctx.WithField(ctx, "url", request.URL.String())
	logger.FromCtx(ctx).Debugf("sending a %s request", request.Method)

	resp, err := c.HTTPClient.Do(request)
	if err != nil {
		return nil, ErrRequest{URL: request.URL.String(), Err: err}
	}
	logger.FromCtx(ctx).Debugf("received status %d", resp.StatusCode)
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		return nil, remoteError(resp)
	}
	return resp, nil
}

func remoteError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	result := ErrRemote{StatusCode: resp.StatusCode}

	var reply response
	if err := json.Unmarshal(b, &reply); err == nil && reply.Error != "" {
		result.Message = reply.Error
		result.Code = reply.Code
		return result
	}
	result.Message = strings.TrimSpace(string(b))
	return result
}

// Version returns the currently published firmware version.
func (c *Client) Version(ctx context.Context) (string, error) {
	request, err := c.newRequest(ctx, http.MethodGet, c.BaseURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.do(ctx, request)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil {
		return "", ErrRequest{URL: request.URL.String(), Err: err}
	}
	return strings.TrimSpace(string(b)), nil
}

// Publish uploads the firmware image as the given version and returns the
// version accepted by the server.
func (c *Client) Publish(ctx context.Context, version, fileName string, firmware io.Reader) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("firmware_version", version); err != nil {
		return "", fmt.Errorf("unable to write field 'firmware_version': %w", err)
	}
	fileWriter, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return "", fmt.Errorf("unable to create field 'file': %w", err)
	}
	if _, err := io.Copy(fileWriter, firmware); err != nil {
		return "", fmt.Errorf("unable to read the firmware image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("unable to finalize the request body: %w", err)
	}

	request, err := c.newRequest(ctx, http.MethodPost, c.BaseURL, &body)
	if err != nil {
		return "", err
	}
	request.Header.Set("Content-Type", writer.FormDataContentType())
	if c.Config.APIKey != "" {
		request.Header.Set("X-Api-Key", c.Config.APIKey)
	}

	resp, err := c.do(ctx, request)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var reply response
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", ErrRequest{URL: request.URL.String(), Err: fmt.Errorf("unable to decode the reply: %w", err)}
	}
	if !reply.OK {
		return "", ErrRemote{StatusCode: resp.StatusCode, Message: reply.Error, Code: reply.Code}
	}
	return reply.Version, nil
}

// Firmware downloads the published firmware image into w.
func (c *Client) Firmware(ctx context.Context, w io.Writer) (int64, error) {
	request, err := c.newRequest(ctx, http.MethodGet, c.FirmwareURL(), nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.do(ctx, request)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, ErrRequest{URL: request.URL.String(), Err: err}
	}
	return n, nil
}
