package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/greenbox/internal/config"
	"github.com/calvinalkan/greenbox/pkg/greenbox"
	"github.com/calvinalkan/greenbox/pkg/ring"
)

// WriteCmd returns the write command.
func WriteCmd(cfg config.Config, logger *slog.Logger) *Command {
	flags := flag.NewFlagSet("write", flag.ContinueOnError)
	hold := flags.Bool("hold", false, "Keep the box open after input ends, until interrupted")
	skipInvalid := flags.Bool("skip-invalid", false, "Warn about and skip lines that do not fit a slot")

	return &Command{
		Flags: flags,
		Usage: "write <name> [flags]",
		Short: "Create a box and put stdin lines into it",
		Long: `Create box <name> as its single writer and put every line read from stdin
as one message (without the trailing newline).

Lines longer than block_size-1 bytes are rejected. The box is removed when
the command exits; use --hold to keep it available to readers until
interrupted.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			name, err := requireName(args)
			if err != nil {
				return err
			}

			return execWrite(ctx, o, boxOptions(cfg, name, logger), *hold, *skipInvalid)
		},
	}
}

func execWrite(ctx context.Context, o *IO, opts greenbox.Options, hold, skipInvalid bool) (err error) {
	w, err := greenbox.Create(opts)
	if err != nil {
		return err
	}

	defer func() {
		closeErr := w.Close()
		if closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close box: %w", closeErr))
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines, readErr := readLines(ctx, o.In())

	lineNo := 0

	for done := false; !done; {
		select {
		case <-ctx.Done():
			done = true
		case line, ok := <-lines:
			if !ok {
				err = <-readErr
				if err != nil {
					return fmt.Errorf("read input: %w", err)
				}

				done = true

				break
			}

			lineNo++

			putErr := w.Put(line)
			if putErr == nil {
				break
			}

			if skipInvalid && errors.Is(putErr, ring.ErrCapacity) {
				o.Warn(fmt.Sprintf("line %d skipped", lineNo), putErr.Error())

				break
			}

			return fmt.Errorf("line %d: %w", lineNo, putErr)
		}
	}

	o.Printf("wrote %d messages to %s\n", w.Puts(), w.Path())

	if hold && ctx.Err() == nil {
		opts.Logger.Info("holding box open until interrupted", "path", w.Path())
		<-ctx.Done()
	}

	return nil
}

// readLines streams newline-terminated lines from r without their trailing
// "\n" or "\r\n". The lines channel closes at EOF, on a read error, or when
// ctx is done; the error channel then yields the read error or nil.
func readLines(ctx context.Context, r io.Reader) (<-chan []byte, <-chan error) {
	lines := make(chan []byte)
	errc := make(chan error, 1)

	go func() {
		defer close(lines)

		br := bufio.NewReader(r)

		for {
			line, err := br.ReadBytes('\n')
			if len(line) > 0 {
				line = bytes.TrimSuffix(line, []byte{'\n'})
				line = bytes.TrimSuffix(line, []byte{'\r'})

				select {
				case lines <- line:
				case <-ctx.Done():
					errc <- nil

					return
				}
			}

			if err != nil {
				if errors.Is(err, io.EOF) {
					err = nil
				}

				errc <- err

				return
			}
		}
	}()

	return lines, errc
}
