package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"jrr/common"
	"jrr/config"
	"jrr/misc"
	"jrr/state"
)

// setup runs after command line is parsed and before any command: it loads
// configuration, starts debug report and builds logger.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.NArg() == 0 {
		// help will be shown
		return ctx, nil
	}

	env := state.EnvFromContext(ctx)

	var err error
	configFile := cmd.String("config")
	if env.Cfg, err = config.LoadConfiguration(configFile); err != nil {
		return ctx, fmt.Errorf("unable to prepare configuration: %w", err)
	}

	if cmd.Bool("debug") {
		if env.Rpt, err = env.Cfg.Reporting.Prepare(); err != nil {
			return ctx, fmt.Errorf("unable to prepare debug reporter: %w", err)
		}
		if configFile != "" {
			// secrets are masked by Dump
			if data, err := config.Dump(env.Cfg); err == nil {
				env.Rpt.StoreData("config/"+filepath.Base(configFile), data)
			}
		}
	}

	if env.Log, err = env.Cfg.Logging.Prepare(env.Rpt); err != nil {
		return ctx, fmt.Errorf("unable to prepare logs: %w", err)
	}
	env.RedirectStdLog()

	env.Log.Debug("Program started",
		zap.Strings("args", os.Args),
		zap.String("ver", misc.GetVersion()),
		zap.String("runtime", runtime.Version()),
		zap.String("hash", misc.GetGitHash()))
	if env.Rpt != nil {
		env.Log.Info("Creating debug report", zap.String("location", env.Rpt.Name()))
	}
	if configFile == "" {
		env.Log.Info("Using defaults (no configuration file)")
	}
	return ctx, nil
}

// teardown releases everything setup and commands acquired. Order matters:
// settings first, then logging, then report which may include log files.
func teardown(ctx context.Context, cmd *cli.Command) (err error) {
	env := state.EnvFromContext(ctx)

	if env.Log != nil {
		env.Log.Debug("Program ended", zap.Duration("elapsed", env.Uptime()), zap.Strings("parsed args", cmd.Args().Slice()))
	}
	if er := env.Close(); er != nil {
		err = multierr.Append(err, fmt.Errorf("unable to close settings: %w", er))
	}
	env.RestoreStdLog()

	// from here on errors could only go to stderr
	if er := env.Rpt.Close(); er != nil {
		err = multierr.Append(err, fmt.Errorf("unable to close debug report: %w", er))
	}
	if env.Cfg != nil && env.Cfg.Logging.FileLogger.Destination != "" {
		debug.SetCrashOutput(nil, debug.CrashOptions{})
		name := env.Cfg.Logging.PanicLogName()
		if fi, er := os.Stat(name); er == nil && fi.Size() == 0 {
			if er := os.Remove(name); er != nil {
				err = multierr.Append(err, fmt.Errorf("unable to remove empty panic log file '%s': %w", name, er))
			}
		}
	}
	return err
}

// errLogged is set when command error already went to the log, so it is not
// printed second time on exit.
var errLogged bool

// logError replaces cli.Exit based handling: commands return plain errors,
// they are logged here while logger is still available.
func logError(ctx context.Context, _ *cli.Command, err error) {
	env := state.EnvFromContext(ctx)
	if env.Log == nil {
		return
	}
	fields := []zap.Field{zap.Error(err)}
	if kind := common.KindOf(err); kind != 0 {
		fields = append(fields, zap.String("code", kind.Code()))
	}
	env.Log.Error("Program ended with error", fields...)
	errLogged = true
}

// passUsageError leaves reporting to logError or to main.
func passUsageError(_ context.Context, _ *cli.Command, err error, _ bool) error {
	return err
}

func unknownCommand(ctx context.Context, _ *cli.Command, name string) {
	if log := state.EnvFromContext(ctx).Log; log != nil {
		log.Warn("Unknown command, nothing to do", zap.String("command", name))
	}
}

func main() {
	// commands check context between entries and chapters, interrupt stops
	// processing of the current book cleanly
	ctx, stop := signal.NotifyContext(state.ContextWithEnv(context.Background()), os.Interrupt, syscall.SIGTERM)

	err := newApp().Run(ctx, os.Args)
	stop()
	if err == nil {
		return
	}
	if !errLogged {
		fmt.Fprintf(os.Stderr, "Program ended with error: %v\n", err)
	}
	if errors.Is(err, context.Canceled) {
		os.Exit(130)
	}
	os.Exit(1)
}
