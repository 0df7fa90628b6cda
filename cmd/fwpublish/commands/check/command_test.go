package check

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/immune-gmbh/firmware-publisher/pkg/client"
	"github.com/immune-gmbh/firmware-publisher/pkg/commands"
	"github.com/immune-gmbh/firmware-publisher/pkg/publish"
	"github.com/immune-gmbh/firmware-publisher/pkg/releasestore"
)

func TestCheck(t *testing.T) {
	ctx := context.Background()

	stor, err := releasestore.New("fs://" + filepath.Join(t.TempDir(), "release"))
	require.NoError(t, err)
	defer stor.Close()
	srv := httptest.NewServer(publish.NewRouter(publish.New(stor, publish.OptionUploadDir(t.TempDir()))))
	defer srv.Close()

	c, err := client.New(srv.URL)
	require.NoError(t, err)
	_, err = c.Publish(ctx, "01.02.10", "firmware.bin", strings.NewReader("firmware"))
	require.NoError(t, err)

	cfg := commands.Config{IsQuiet: true, URL: srv.URL}
	run := func(args ...string) error {
		cmd := &Command{}
		flagSet := pflag.NewFlagSet("check", pflag.ContinueOnError)
		cmd.SetupFlagSet(flagSet)
		require.NoError(t, flagSet.Parse(args))
		return cmd.Execute(ctx, cfg, flagSet.Args())
	}

	require.NoError(t, run("--current", "01.02.10"))
	require.NoError(t, run("--current", "01.02.11"))

	err = run("--current", "01.02.9")
	require.ErrorAs(t, err, &commands.SilentError{})
	var exitCoder commands.ExitCoder
	require.True(t, errors.As(err, &exitCoder))
	require.Equal(t, ExitCodeUpdateAvailable, exitCoder.ExitCode())

	require.ErrorAs(t, run(), &commands.ErrArgs{})
}
