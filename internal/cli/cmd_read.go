package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/greenbox/internal/config"
	"github.com/calvinalkan/greenbox/pkg/greenbox"
	"github.com/calvinalkan/greenbox/pkg/ring"
)

// ReadCmd returns the read command.
func ReadCmd(cfg config.Config, logger *slog.Logger) *Command {
	flags := flag.NewFlagSet("read", flag.ContinueOnError)
	follow := flags.BoolP("follow", "f", false, "Wait for new messages until interrupted, following writer restarts")
	limit := flags.IntP("count", "n", 0, "Stop after `N` messages (0 means no limit)")
	stats := flags.Bool("stats", false, "Print read statistics to stderr on exit")

	return &Command{
		Flags: flags,
		Usage: "read <name> [flags]",
		Short: "Print messages from a box",
		Long: `Attach to box <name> as a new reader and print messages, one per line,
starting at slot 0.

Without --follow, read prints what is available right now and exits.
With --follow, read waits for the writer (also if it has not created the box
yet) and re-attaches when a new writer replaces the box.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			name, err := requireName(args)
			if err != nil {
				return err
			}

			if *limit < 0 {
				return fmt.Errorf("--count must be >= 0, got %d", *limit)
			}

			return execRead(ctx, o, boxOptions(cfg, name, logger), readOptions{
				follow: *follow,
				limit:  *limit,
				stats:  *stats,
			})
		},
	}
}

type readOptions struct {
	follow bool
	limit  int
	stats  bool
}

func execRead(ctx context.Context, o *IO, opts greenbox.Options, ro readOptions) error {
	var (
		r     *greenbox.Reader
		err   error
		total greenbox.Stats
	)

	if ro.follow {
		r, err = attachWhenReady(ctx, opts)
	} else {
		r, err = greenbox.Attach(opts)
	}

	if err != nil {
		if ctx.Err() != nil {
			return nil
		}

		return err
	}

	detach := func() {
		if r != nil {
			total = addStats(total, r.Stats())
			_ = r.Close()
			r = nil
		}
	}

	defer func() {
		detach()

		if ro.stats {
			o.ErrPrintln(fmt.Sprintf("delivered=%d busy=%d torn=%d empty=%d",
				total.Delivered, total.Busy, total.Torn, total.Empty))
		}
	}()

	for delivered := 0; ro.limit == 0 || delivered < ro.limit; delivered++ {
		if !ro.follow {
			msg, ok := r.Get()
			if !ok {
				return nil
			}

			o.Printf("%s\n", msg)

			continue
		}

		msg, err := r.Next(ctx)
		for errors.Is(err, greenbox.ErrReplaced) {
			opts.Logger.Warn("box replaced by a new writer, re-attaching", "name", opts.Name)
			detach()

			r, err = attachWhenReady(ctx, opts)
			if err != nil {
				break
			}

			msg, err = r.Next(ctx)
		}

		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return err
		}

		o.Printf("%s\n", msg)
	}

	return nil
}

// attachWhenReady attaches to the box, retrying while the writer has not
// created it, until ctx is done.
func attachWhenReady(ctx context.Context, opts greenbox.Options) (*greenbox.Reader, error) {
	for {
		r, err := greenbox.Attach(opts)
		if err == nil {
			return r, nil
		}

		if !errors.Is(err, ring.ErrSizeMismatch) {
			return nil, err
		}

		opts.Logger.Debug("waiting for writer", "name", opts.Name, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.MaxPollInterval):
		}
	}
}

func addStats(a, b greenbox.Stats) greenbox.Stats {
	return greenbox.Stats{
		Delivered: a.Delivered + b.Delivered,
		Busy:      a.Busy + b.Busy,
		Torn:      a.Torn + b.Torn,
		Empty:     a.Empty + b.Empty,
	}
}
