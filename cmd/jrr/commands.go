package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"jrr/config"
	"jrr/convert"
	"jrr/misc"
	"jrr/state"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:            misc.GetAppName(),
		Usage:           "decrypts purchased store books and packages them as EPUB, PDF or audio book",
		Version:         misc.GetVersion() + " (" + runtime.Version() + ") : " + misc.GetGitHash(),
		HideHelpCommand: true,
		Before:          setup,
		After:           teardown,
		OnUsageError:    passUsageError,
		ExitErrHandler:  logError,
		CommandNotFound: unknownCommand,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, DefaultText: "", Usage: "load configuration from `FILE` (YAML)"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "changes program behavior to help troubleshooting, produces report archive"},
		},
		Commands: []*cli.Command{
			{
				Name:         "generate",
				Usage:        "Decrypts downloaded book and produces EPUB, PDF or audio book",
				OnUsageError: passUsageError,
				Action:       convert.Run,
				Flags:        append(bookFlags(), &cli.BoolFlag{Name: "keep", Usage: "keep downloaded archive and extracted files"}),
				ArgsUsage:    "[SOURCE [DESTINATION]]",
				CustomHelpTemplate: fmt.Sprintf(`%s
SOURCE:
    downloaded archive (archive body for books with header), if absent
    it is expected to be in work directory already

DESTINATION:
    output directory, if absent - configured one
`, cli.CommandHelpTemplate),
			},
			{
				Name:         "decrypt",
				Usage:        "Extracts and decrypts downloaded book into work directory",
				OnUsageError: passUsageError,
				Action:       convert.Decrypt,
				Flags:        bookFlags(),
				ArgsUsage:    "[SOURCE]",
			},
			{
				Name:         "combine",
				Usage:        "Restores book archive from downloaded body and encrypted header, prints book key",
				OnUsageError: passUsageError,
				Action:       convert.Combine,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "header", Usage: "base64 encoded `HEADER` from store listing"},
					&cli.StringFlag{Name: "token", Usage: "session access `TOKEN`, cached one is used when absent"},
				},
				ArgsUsage: "BODY ARCHIVE",
			},
			{
				Name:         "books",
				Usage:        "Lists cached library",
				OnUsageError: passUsageError,
				Action:       convert.ListBooks,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "import", Usage: "replace cached library with store listing from `FILE` (JSON)"},
				},
			},
			{
				Name:         "logout",
				Usage:        "Forgets cached session",
				OnUsageError: passUsageError,
				Action:       convert.Logout,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Usage: "forget cached library as well"},
				},
			},
			{
				Name:         "dumpconfig",
				Usage:        "Dumps either default or actual configuration (YAML)",
				OnUsageError: passUsageError,
				Action:       dumpConfiguration,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "default", Usage: "output default embedded configuration"},
				},
				ArgsUsage: "DESTINATION",
				CustomHelpTemplate: fmt.Sprintf(`%s

DESTINATION:
    file name to write configuration to, if absent - STDOUT

Actual configuration is composition of defaults and values from configuration
file. Use --default to see defaults embedded into the program.
`, cli.CommandHelpTemplate),
			},
		},
	}
}

func bookFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "id", Usage: "book `ID` in cached library"},
		&cli.StringFlag{Name: "book", Usage: "book snapshot `FILE` (JSON) to use instead of cached library"},
		&cli.StringFlag{Name: "token", Usage: "session access `TOKEN` for books with header, cached one is used when absent"},
		&cli.BoolFlag{Name: "overwrite", Aliases: []string{"ow"}, Usage: "replace existing output"},
	}
}

func dumpConfiguration(ctx context.Context, cmd *cli.Command) (err error) {
	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() > 1 {
		env.Log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	var (
		data []byte
		kind = "actual"
	)
	if cmd.Bool("default") {
		kind = "default"
		data, err = config.Prepare()
	} else {
		data, err = config.Dump(env.Cfg)
	}
	if err != nil {
		return fmt.Errorf("unable to get configuration: %w", err)
	}

	var out io.Writer = os.Stdout
	fname := cmd.Args().Get(0)
	if fname != "" {
		f, err := os.Create(fname)
		if err != nil {
			return fmt.Errorf("unable to create destination file '%s': %w", fname, err)
		}
		defer func() {
			if er := f.Close(); er != nil && err == nil {
				err = er
			}
		}()
		out = f
	} else {
		fname = "STDOUT"
	}
	env.Log.Info("Outputing configuration", zap.String("state", kind), zap.String("file", fname))

	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("unable to write configuration: %w", err)
	}
	return nil
}
