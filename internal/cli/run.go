// Package cli implements the gb command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/greenbox/internal/config"
	"github.com/calvinalkan/greenbox/pkg/greenbox"
)

// errNameRequired is returned by commands that operate on one box.
var errNameRequired = errors.New("box name is required")

// Run is the main entry point. Returns exit code.
//
// A value on sigCh cancels the context passed to the command, which is how
// long-running commands (read --follow, write --hold) stop cleanly.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	globals := flag.NewFlagSet("gb", flag.ContinueOnError)
	globals.SetInterspersed(false)
	globals.SetOutput(io.Discard)

	workDir := globals.StringP("cwd", "C", "", "Run as if started in `dir`")
	configPath := globals.StringP("config", "c", "", "Use specified config `file`")
	dir := globals.String("dir", "", "Region directory (overrides config and "+config.EnvDir+")")
	blockSize := globals.Int("block-size", 0, "Slot payload size in bytes, terminator included")
	blockCount := globals.Int("block-count", 0, "Number of slots")
	verbose := globals.BoolP("verbose", "v", false, "Log debug events to stderr")
	help := globals.BoolP("help", "h", false, "Show help")

	if len(args) > 0 {
		args = args[1:]
	}

	err := globals.Parse(args)
	if err != nil {
		fprintln(errOut, "error:", err)
		printUsage(errOut, globals, nil)

		return 1
	}

	rest := globals.Args()

	if *help || len(rest) == 0 {
		printUsage(out, globals, allCommands(config.Default(), nil))

		return 0
	}

	cfg, err := config.Load(config.LoadInput{
		WorkDir:    *workDir,
		ConfigPath: *configPath,
		Env:        env,
		Overrides: config.Overrides{
			Dir:        *dir,
			BlockSize:  *blockSize,
			BlockCount: *blockCount,
		},
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	name := rest[0]

	for _, cmd := range allCommands(cfg, logger) {
		if cmd.Name() == name {
			return cmd.Run(ctx, NewIO(in, out, errOut), rest[1:])
		}
	}

	fprintln(errOut, "error: unknown command:", name)
	printUsage(errOut, globals, allCommands(cfg, logger))

	return 1
}

func allCommands(cfg config.Config, logger *slog.Logger) []*Command {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return []*Command{
		WriteCmd(cfg, logger),
		ReadCmd(cfg, logger),
		ReplCmd(cfg, logger),
		RecordCmd(cfg, logger),
		HistoryCmd(cfg),
		InfoCmd(cfg),
		LsCmd(cfg),
		PrintConfigCmd(cfg),
	}
}

// boxOptions builds handle options for box name from the resolved config.
func boxOptions(cfg config.Config, name string, logger *slog.Logger) greenbox.Options {
	return greenbox.Options{
		Dir:             cfg.Dir,
		Name:            name,
		BlockSize:       cfg.BlockSize,
		BlockCount:      cfg.BlockCount,
		PollInterval:    time.Duration(cfg.PollInterval),
		MaxPollInterval: time.Duration(cfg.MaxPollInterval),
		Logger:          logger,
	}
}

func requireName(args []string) (string, error) {
	if len(args) == 0 {
		return "", errNameRequired
	}

	if len(args) > 1 {
		return "", fmt.Errorf("unexpected arguments: %v", args[1:])
	}

	return args[0], nil
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, globals *flag.FlagSet, cmds []*Command) {
	fprintln(w, `gb - single-writer, multi-reader shared-memory message boxes

Usage: gb [options] <command> [args]

Options:`)

	globals.SetOutput(w)
	globals.PrintDefaults()
	globals.SetOutput(io.Discard)

	if len(cmds) == 0 {
		return
	}

	fprintln(w)
	fprintln(w, "Commands:")

	for _, cmd := range cmds {
		fprintln(w, cmd.HelpLine())
	}
}
