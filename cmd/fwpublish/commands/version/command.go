package version

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/immune-gmbh/firmware-publisher/cmd/fwpublish/helpers"
	"github.com/immune-gmbh/firmware-publisher/pkg/commands"
)

// Command is the implementation of `commands.Command`.
type Command struct{}

// Usage prints the syntax of arguments for this command
func (cmd Command) Usage() string {
	return ""
}

// Description explains what this verb commands to do
func (cmd Command) Description() string {
	return "print the currently published firmware version"
}

// SetupFlagSet is called to allow the command implementation
// to setup which option flags it has.
func (cmd *Command) SetupFlagSet(flag *pflag.FlagSet) {}

// Execute is the main function here. It is responsible to
// start the execution of the command.
//
// `args` are the arguments left unused by verb itself and options.
func (cmd Command) Execute(ctx context.Context, cfg commands.Config, args []string) error {
	if len(args) != 0 {
		return commands.ErrArgs{Err: fmt.Errorf("error: too many parameters")}
	}

	c, err := helpers.NewClient(cfg)
	if err != nil {
		return err
	}

	version, err := c.Version(ctx)
	if err != nil {
		return fmt.Errorf("unable to get the published version: %w", helpers.WrapRemoteError(err))
	}

	if !cfg.IsQuiet {
		fmt.Println(version)
	}
	return nil
}
