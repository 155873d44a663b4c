package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/greenbox/internal/config"
	"github.com/calvinalkan/greenbox/pkg/greenbox"
)

const replHistoryFile = ".gb_history"

// ReplCmd returns the repl command.
func ReplCmd(cfg config.Config, logger *slog.Logger) *Command {
	flags := flag.NewFlagSet("repl", flag.ContinueOnError)

	return &Command{
		Flags: flags,
		Usage: "repl <name>",
		Short: "Create a box and put messages interactively",
		Long: `Create box <name> as its single writer and put each line typed at the
prompt as one message. Lines starting with ':' are commands; type :help to
list them. The box is removed on exit.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			name, err := requireName(args)
			if err != nil {
				return err
			}

			w, err := greenbox.Create(boxOptions(cfg, name, logger))
			if err != nil {
				return err
			}

			repl := &replSession{w: w, o: o}

			return errors.Join(repl.run(ctx), w.Close())
		},
	}
}

// replSession is the interactive writer loop.
type replSession struct {
	w     *greenbox.Writer
	o     *IO
	liner *liner.State
}

func replHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, replHistoryFile)
}

func (r *replSession) run(ctx context.Context) error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(replCompleter)

	if f, err := os.Open(replHistoryPath()); err == nil {
		_, _ = r.liner.ReadHistory(f)
		_ = f.Close()
	}

	defer r.saveHistory()

	layout := r.w.Layout()
	r.o.Printf("gb repl - %s (block_size=%d, block_count=%d, max message %d bytes)\n",
		r.w.Path(), layout.BlockSize(), layout.BlockCount(), layout.MaxMessage())
	r.o.Println("Every line is put as a message. Type :help for commands.")

	for ctx.Err() == nil {
		line, err := r.liner.Prompt("gb> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				r.o.Println()

				return nil
			}

			return fmt.Errorf("reading input: %w", err)
		}

		if strings.TrimSpace(line) != "" {
			r.liner.AppendHistory(line)
		}

		if r.handle(line) {
			return nil
		}
	}

	return nil
}

// handle processes one input line. It returns true when the session should
// end.
func (r *replSession) handle(line string) bool {
	cmd, isCmd := strings.CutPrefix(line, ":")
	if !isCmd {
		err := r.w.PutString(line)
		if err != nil {
			r.o.Println("error:", err)
		}

		return false
	}

	// "::text" puts ":text".
	if strings.HasPrefix(cmd, ":") {
		err := r.w.PutString(cmd)
		if err != nil {
			r.o.Println("error:", err)
		}

		return false
	}

	switch strings.TrimSpace(cmd) {
	case "q", "quit", "exit":
		return true
	case "help", "?":
		r.o.Println(`Commands:
  :stats    Show the number of messages put
  :info     Show box metadata
  :help     Show this help
  :quit     Remove the box and exit
Lines starting with "::" put the line minus its first ':'.`)
	case "stats":
		r.o.Printf("puts=%d\n", r.w.Puts())
	case "info":
		meta := r.w.Meta()
		r.o.Printf("path=%s\nwriter_id=%s\npid=%d\ncreated_at=%s\n",
			r.w.Path(), meta.WriterID, meta.PID, meta.CreatedAt.UTC().Format(timeFormat))
	default:
		r.o.Printf("unknown command: :%s (type :help)\n", strings.TrimSpace(cmd))
	}

	return false
}

func (r *replSession) saveHistory() {
	path := replHistoryPath()
	if path == "" {
		return
	}

	f, err := os.Create(path)
	if err != nil {
		return
	}

	_, _ = r.liner.WriteHistory(f)
	_ = f.Close()
}

var replCommands = []string{":help", ":info", ":quit", ":stats"}

func replCompleter(line string) []string {
	if !strings.HasPrefix(line, ":") {
		return nil
	}

	var out []string

	for _, c := range replCommands {
		if strings.HasPrefix(c, line) {
			out = append(out, c)
		}
	}

	return out
}
