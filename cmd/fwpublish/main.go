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

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/facebookincubator/go-belt/beltctx"
	"github.com/facebookincubator/go-belt/tool/experimental/errmon"
	"github.com/facebookincubator/go-belt/tool/experimental/tracer"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/spf13/pflag"

	"github.com/immune-gmbh/firmware-publisher/cmd/fwpublish/commands/bump"
	"github.com/immune-gmbh/firmware-publisher/cmd/fwpublish/commands/check"
	"github.com/immune-gmbh/firmware-publisher/cmd/fwpublish/commands/fetch"
	"github.com/immune-gmbh/firmware-publisher/cmd/fwpublish/commands/push"
	"github.com/immune-gmbh/firmware-publisher/cmd/fwpublish/commands/version"
	"github.com/immune-gmbh/firmware-publisher/cmd/fwpublish/helpers"
	"github.com/immune-gmbh/firmware-publisher/pkg/commands"
	"github.com/immune-gmbh/firmware-publisher/pkg/config"
	"github.com/immune-gmbh/firmware-publisher/pkg/observability"
)

var (
	knownCommands = map[string]commands.Command{
		"bump":    &bump.Command{},
		"check":   &check.Command{},
		"fetch":   &fetch.Command{},
		"push":    &push.Command{},
		"version": &version.Command{},
	}
	exitCode = 0
)

func usage(flagSet *pflag.FlagSet) {
	flagSet.Usage()
	exitCode = 2 // the standard Go's exit-code on invalid flags
}

type flags struct {
	isQuiet            *bool
	loggingLevel       config.LogLevel
	remoteLoggingLevel config.LogLevel
	logFormat          observability.LogFormat
	tracePrefix        *string
	url                *string
	apiKey             *string
	askAPIKey          *bool
	envDir             *string
}

func setupFlag() (*pflag.FlagSet, *flags) {
	var f flags

	flagSet := pflag.NewFlagSet("fwpublish", pflag.ExitOnError)
	flagSet.SetInterspersed(false)
	flagSet.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "syntax: fwpublish [options] <command> [command options] {arguments}\n")
		_, _ = fmt.Fprintf(os.Stderr, "\nPossible commands:\n")

		// sort commands
		var commandList []string
		for commandName := range knownCommands {
			commandList = append(commandList, commandName)
		}
		sort.Strings(commandList)

		// display commands
		for _, commandName := range commandList {
			command := knownCommands[commandName]
			_, _ = fmt.Fprintf(os.Stderr, "    fwpublish %-36s %s\n",
				fmt.Sprintf("%s %s", commandName, command.Usage()), command.Description())
		}
		_, _ = fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flagSet.PrintDefaults()
	}

	f.loggingLevel.Level = logger.LevelWarning // the default value
	flagSet.Var(&f.loggingLevel, "log-level", "logging level")
	f.remoteLoggingLevel.Level = logger.LevelWarning // the default value
	flagSet.Var(&f.remoteLoggingLevel, "remote-log-level", "logging level used by the server to process the request")
	f.logFormat = observability.LogFormatText
	flagSet.Var(&f.logFormat, "log-format", "logging format: text or json")
	f.isQuiet = flagSet.BoolP("quiet", "q", false, "suppress stdout")
	f.tracePrefix = flagSet.String("trace-prefix", "", "prepend traceID with this value; it is useful to understand which automation was responsible for this run")
	f.url = flagSet.String("url", "", "the URL of the publish endpoint (default is $"+helpers.EnvURL+")")
	f.apiKey = flagSet.String("api-key", "", "the API key of the publish endpoint (default is $"+helpers.EnvAPIKey+")")
	f.askAPIKey = flagSet.Bool("ask-api-key", false, "read the API key from the terminal")
	f.envDir = flagSet.String("env-dir", ".", "the directory with the .env.local and .env files")
	return flagSet, &f
}

func main() {
	ctx, endFunc := context.WithCancel(context.Background())
	defer func() {
		// We want both: custom exitcode (which could be set only via `os.Exit`)
		// and working `defer`-s. So we have to put os.Exit into a defer.

		// Though we do not want to avoid printing panics, so:
		if event := errmon.ObserveRecoverCtx(ctx, recover()); event != nil {
			endFunc()
			beltctx.Flush(ctx)
			panic(event.PanicValue)
		}

		logger.FromCtx(ctx).Debugf("exitcode is %d", exitCode)
		endFunc()
		beltctx.Flush(ctx)
		os.Exit(exitCode)
	}()

	// Parse arguments

	flagSet, flags := setupFlag()
	_ = flagSet.Parse(os.Args[1:])

	if flagSet.NArg() < 1 {
		_, _ = fmt.Fprintf(os.Stderr, "error: no command specified\n\n")
		usage(flagSet)
		return
	}

	// Initialize everything
	ctx = observability.WithBelt(
		ctx,
		flags.loggingLevel.Level,
		flags.logFormat,
		*flags.tracePrefix,
		true,
	)

	if err := helpers.LoadEnvFiles(*flags.envDir); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		exitCode = 2
		return
	}

	commandName := flagSet.Arg(0)
	args := flagSet.Args()[1:]

	span, ctx := tracer.StartChildSpanFromCtx(ctx, commandName)
	defer span.Finish()

	cfg := commands.Config{
		IsQuiet:        *flags.isQuiet,
		URL:            *flags.url,
		APIKey:         *flags.apiKey,
		RemoteLogLevel: flags.remoteLoggingLevel.Level,
	}
	if !flagSet.Changed("url") {
		cfg.URL = os.Getenv(helpers.EnvURL)
	}
	if !flagSet.Changed("api-key") {
		cfg.APIKey = os.Getenv(helpers.EnvAPIKey)
	}
	if *flags.askAPIKey {
		apiKey, err := helpers.AskAPIKey(os.Stdin, os.Stderr)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
			exitCode = 2
			return
		}
		cfg.APIKey = apiKey
	}
	if hostname, err := os.Hostname(); err == nil {
		cfg.Hostname = hostname
	}

	logger.FromCtx(ctx).Debugf("cmd: '%s'; url: '%s'; has API key: %v; args: %v", commandName, cfg.URL, cfg.APIKey != "", args)

	// Execute the command

	command := knownCommands[commandName]
	if command == nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: unknown command '%s'\n\n", commandName)
		usage(flagSet)
		return
	}

	flagSet = pflag.NewFlagSet(commandName, pflag.ExitOnError)
	flagSet.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "syntax: fwpublish %s [options] %s\n\nOptions:\n",
			commandName, command.Usage())
		flagSet.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\n")
	}

	command.SetupFlagSet(flagSet)
	_ = flagSet.Parse(args)
	err := command.Execute(ctx, cfg, flagSet.Args())

	// Process the error
	if err == nil {
		return
	}

	isSilentError := false
	exitCode = 3
	nestedErr := err
setExitCodeLoop:
	for nestedErr != nil {
		switch nestedErr := nestedErr.(type) {
		case commands.ErrArgs:
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", nestedErr)
			usage(flagSet)
			return
		case commands.SilentError:
			isSilentError = true
		case commands.ExitCoder:
			exitCode = nestedErr.ExitCode()
			break setExitCodeLoop
		}
		nestedErr = errors.Unwrap(nestedErr)
	}
	if isSilentError {
		return
	}
	_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)

	var descriptioner commands.Descriptioner
	if errors.As(err, &descriptioner) {
		_, _ = fmt.Fprintf(os.Stderr, "\n%s\n", descriptioner.Description())
	}
}
