package commands

import (
	"context"

	"github.com/spf13/pflag"
)

// Command is a subcommand of fwpublish.
type Command interface {
	// Usage returns the syntax of the arguments (without options).
	Usage() string

	// Description returns a one-line explanation of the command.
	Description() string

	// SetupFlagSet registers the options of the command.
	SetupFlagSet(flagSet *pflag.FlagSet)

	// Execute runs the command with the arguments left after parsing the options.
	Execute(ctx context.Context, cfg Config, args []string) error
}
