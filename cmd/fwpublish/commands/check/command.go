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

package check

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/immune-gmbh/firmware-publisher/cmd/fwpublish/helpers"
	"github.com/immune-gmbh/firmware-publisher/pkg/commands"
	"github.com/immune-gmbh/firmware-publisher/pkg/fwversion"
)

// ExitCodeUpdateAvailable is the exit code when the published version is
// newer than the current one.
const ExitCodeUpdateAvailable = 10

// Command is the implementation of `commands.Command`.
type Command struct {
	current *string
}

// Usage prints the syntax of arguments for this command
func (cmd Command) Usage() string {
	return "--current <version>"
}

// Description explains what this verb commands to do
func (cmd Command) Description() string {
	return fmt.Sprintf("compare the published version with the current one (exit code %d if an update is available)", ExitCodeUpdateAvailable)
}

// SetupFlagSet is called to allow the command implementation
// to setup which option flags it has.
func (cmd *Command) SetupFlagSet(flag *pflag.FlagSet) {
	cmd.current = flag.String("current", "", "the version running on the device")
}

// Execute is the main function here. It is responsible to
// start the execution of the command.
//
// `args` are the arguments left unused by verb itself and options.
func (cmd Command) Execute(ctx context.Context, cfg commands.Config, args []string) error {
	if len(args) != 0 {
		return commands.ErrArgs{Err: fmt.Errorf("error: too many parameters")}
	}
	if *cmd.current == "" {
		return commands.ErrArgs{Err: fmt.Errorf("error: --current is not specified")}
	}

	c, err := helpers.NewClient(cfg)
	if err != nil {
		return err
	}

	published, err := c.Version(ctx)
	if err != nil {
		return fmt.Errorf("unable to get the published version: %w", helpers.WrapRemoteError(err))
	}

	if fwversion.Compare(published, *cmd.current) <= 0 {
		if !cfg.IsQuiet {
			fmt.Printf("up to date: %s\n", *cmd.current)
		}
		return nil
	}

	if !cfg.IsQuiet {
		_, _ = color.New(color.FgYellow).Fprintf(color.Output, "update available: %s -> %s\n", *cmd.current, published)
	}
	return commands.SilentError{Err: commands.ErrExitCode{
		Code:   ExitCodeUpdateAvailable,
		Reason: fmt.Sprintf("update available: %s", published),
	}}
}
