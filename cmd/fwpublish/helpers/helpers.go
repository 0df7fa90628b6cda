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

package helpers

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/immune-gmbh/firmware-publisher/pkg/client"
	"github.com/immune-gmbh/firmware-publisher/pkg/commands"
)

const (
	// EnvURL is the environment variable with the default endpoint URL.
	EnvURL = "HTTP_PUBLISH_URL"

	// EnvAPIKey is the environment variable with the default API key.
	EnvAPIKey = "HTTP_PUBLISH_TOKEN"
)

// EnvFileNames are the files LoadEnvFiles reads, in order of precedence.
var EnvFileNames = []string{".env.local", ".env"}

// LoadEnvFiles sets environment variables from ".env.local" and ".env" in
// the directory. A variable which is already set to a non-empty value is not
// overridden, missing files are skipped.
func LoadEnvFiles(dir string) error {
	for _, name := range EnvFileNames {
		path := filepath.Join(dir, name)
		values, err := godotenv.Read(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("unable to read '%s': %w", path, err)
		}
		for key, value := range values {
			if os.Getenv(key) != "" {
				continue
			}
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("unable to set %s: %w", key, err)
			}
		}
	}
	return nil
}

// AskAPIKey reads the API key from the terminal without echoing it.
func AskAPIKey(in *os.File, out io.Writer) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("unable to ask for the API key: '%s' is not a terminal", in.Name())
	}
	_, _ = fmt.Fprint(out, "API key: ")
	b, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("unable to read the API key: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// NewClient returns a client of the endpoint configured by the global options.
func NewClient(cfg commands.Config) (*client.Client, error) {
	if cfg.URL == "" {
		return nil, commands.ErrArgs{Err: fmt.Errorf("the endpoint URL is not set, use option --url or variable %s", EnvURL)}
	}
	opts := []client.Option{
		client.OptionAPIKey(cfg.APIKey),
		client.OptionRemoteLogLevel(cfg.RemoteLogLevel),
	}
	if cfg.Hostname != "" {
		opts = append(opts, client.OptionLogLocalHostname(cfg.Hostname))
	}
	return client.New(cfg.URL, opts...)
}

// ErrUnauthorized is returned when the server rejected the API key.
type ErrUnauthorized struct {
	Err error
}

func (err ErrUnauthorized) Error() string {
	return fmt.Sprintf("unauthorized: %v", err.Err)
}

func (err ErrUnauthorized) Unwrap() error {
	return err.Err
}

// Description implements commands.Descriptioner.
func (err ErrUnauthorized) Description() string {
	return fmt.Sprintf("the server requires an API key: pass it with --api-key or --ask-api-key, or set %s (also in .env.local or .env)", EnvAPIKey)
}

// WrapRemoteError makes errors of the server more user friendly.
func WrapRemoteError(err error) error {
	var errRemote client.ErrRemote
	if errors.As(err, &errRemote) && errRemote.IsUnauthorized() {
		return ErrUnauthorized{Err: err}
	}
	return err
}
