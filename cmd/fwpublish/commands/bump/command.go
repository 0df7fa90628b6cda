package bump

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/immune-gmbh/firmware-publisher/pkg/commands"
	"github.com/immune-gmbh/firmware-publisher/pkg/fwversion"
)

// Command is the implementation of `commands.Command`.
type Command struct {
	versionFile     *string
	buildNumberFile *string
}

// Usage prints the syntax of arguments for this command
func (cmd Command) Usage() string {
	return ""
}

// Description explains what this verb commands to do
func (cmd Command) Description() string {
	return "increment the local build number and print the resulting version"
}

// SetupFlagSet is called to allow the command implementation
// to setup which option flags it has.
func (cmd *Command) SetupFlagSet(flag *pflag.FlagSet) {
	cmd.versionFile = flag.String("version-file", "VERSION", "the file with the base version (like '01.02')")
	cmd.buildNumberFile = flag.String("build-number-file", ".buildnumber", "the file with the build counter")
}

// Execute is the main function here. It is responsible to
// start the execution of the command.
//
// `args` are the arguments left unused by verb itself and options.
func (cmd Command) Execute(ctx context.Context, cfg commands.Config, args []string) error {
	if len(args) != 0 {
		return commands.ErrArgs{Err: fmt.Errorf("error: too many parameters")}
	}

	build, err := fwversion.IncrementBuildNumber(*cmd.buildNumberFile)
	if err != nil {
		return err
	}

	if !cfg.IsQuiet {
		fmt.Println(fwversion.Short(fwversion.ReadBase(*cmd.versionFile), build))
	}
	return nil
}
