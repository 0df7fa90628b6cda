package fetch

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/pflag"

	"github.com/immune-gmbh/firmware-publisher/cmd/fwpublish/helpers"
	"github.com/immune-gmbh/firmware-publisher/pkg/commands"
)

// Command is the implementation of `commands.Command`.
type Command struct {
	outputFlag *string
}

// Usage prints the syntax of arguments for this command
func (cmd Command) Usage() string {
	return ""
}

// Description explains what this verb commands to do
func (cmd Command) Description() string {
	return "download the published firmware image"
}

// SetupFlagSet is called to allow the command implementation
// to setup which option flags it has.
func (cmd *Command) SetupFlagSet(flag *pflag.FlagSet) {
	cmd.outputFlag = flag.StringP("output", "o", "", "the path to save the image by; if empty then the image will be printed to stdout")
}

// Execute is the main function here. It is responsible to
// start the execution of the command.
//
// `args` are the arguments left unused by verb itself and options.
func (cmd Command) Execute(ctx context.Context, cfg commands.Config, args []string) (err error) {
	if len(args) != 0 {
		return commands.ErrArgs{Err: fmt.Errorf("error: too many parameters")}
	}

	c, err := helpers.NewClient(cfg)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if *cmd.outputFlag != "" {
		f, createErr := os.Create(*cmd.outputFlag)
		if createErr != nil {
			return fmt.Errorf("unable to create file '%s': %w", *cmd.outputFlag, createErr)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil {
				err = multierror.Append(err, fmt.Errorf("unable to close file '%s': %w", *cmd.outputFlag, closeErr))
			}
		}()
		w = f
	}

	n, err := c.Firmware(ctx, w)
	if err != nil {
		return fmt.Errorf("unable to download the firmware: %w", helpers.WrapRemoteError(err))
	}

	if *cmd.outputFlag != "" && !cfg.IsQuiet {
		fmt.Printf("saved %d bytes to '%s'\n", n, *cmd.outputFlag)
	}
	return nil
}
