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

package push

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/immune-gmbh/firmware-publisher/cmd/fwpublish/helpers"
	"github.com/immune-gmbh/firmware-publisher/pkg/commands"
	"github.com/immune-gmbh/firmware-publisher/pkg/fwversion"
)

// Command is the implementation of `commands.Command`.
type Command struct {
	version         *string
	versionFile     *string
	buildNumberFile *string
	fileName        *string
}

// Usage prints the syntax of arguments for this command
func (cmd Command) Usage() string {
	return "<path to firmware>"
}

// Description explains what this verb commands to do
func (cmd Command) Description() string {
	return "publish a firmware image with its version"
}

// SetupFlagSet is called to allow the command implementation
// to setup which option flags it has.
func (cmd *Command) SetupFlagSet(flag *pflag.FlagSet) {
	cmd.version = flag.String("version", "", "the version to publish; if empty then it is composed from --version-file and --build-number-file")
	cmd.versionFile = flag.String("version-file", "VERSION", "the file with the base version (like '01.02')")
	cmd.buildNumberFile = flag.String("build-number-file", ".buildnumber", "the file with the build counter")
	cmd.fileName = flag.String("file-name", "", "the file name reported to the server (default is the base name of the path)")
}

// Version returns the version to publish.
func (cmd Command) Version() string {
	if cmd.version != nil && *cmd.version != "" {
		return *cmd.version
	}
	return fwversion.Short(
		fwversion.ReadBase(*cmd.versionFile),
		fwversion.ReadBuildNumber(*cmd.buildNumberFile),
	)
}

// Execute is the main function here. It is responsible to
// start the execution of the command.
//
// `args` are the arguments left unused by verb itself and options.
func (cmd Command) Execute(ctx context.Context, cfg commands.Config, args []string) error {
	if len(args) < 1 {
		return commands.ErrArgs{Err: fmt.Errorf("error: no path to the firmware is specified")}
	}
	if len(args) > 1 {
		return commands.ErrArgs{Err: fmt.Errorf("error: too many parameters")}
	}
	path := args[0]

	fileName := *cmd.fileName
	if fileName == "" {
		fileName = filepath.Base(path)
	}

	c, err := helpers.NewClient(cfg)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("unable to open the firmware '%s': %w", path, err)
	}
	defer f.Close()

	version := cmd.Version()
	logger.FromCtx(ctx).Debugf("publishing '%s' as '%s' with version %s to %s", path, fileName, version, cfg.URL)

	published, err := c.Publish(ctx, version, fileName, f)
	if err != nil {
		return fmt.Errorf("unable to publish version %s: %w", version, helpers.WrapRemoteError(err))
	}

	if !cfg.IsQuiet {
		_, _ = color.New(color.FgGreen).Fprintf(color.Output, "published firmware version %s\n", published)
	}
	return nil
}
