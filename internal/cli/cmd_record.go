package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/greenbox/internal/config"
	"github.com/calvinalkan/greenbox/pkg/archive"
	"github.com/calvinalkan/greenbox/pkg/greenbox"
)

const (
	defaultRecordBatch = 256
	recordFlushEvery   = 200 * time.Millisecond
)

var errArchiveRequired = errors.New("no archive database: pass --db or set \"archive\" in the config")

// RecordCmd returns the record command.
func RecordCmd(cfg config.Config, logger *slog.Logger) *Command {
	flags := flag.NewFlagSet("record", flag.ContinueOnError)
	db := flags.String("db", cfg.Archive, "SQLite archive `file`")
	batch := flags.Int("batch", defaultRecordBatch, "Messages per archive transaction")

	return &Command{
		Flags: flags,
		Usage: "record <name> [flags]",
		Short: "Follow a box and archive its messages in SQLite",
		Long: `Attach to box <name> like "read --follow" and append every delivered
message to a SQLite archive, until interrupted. Re-attaches when a new writer
replaces the box. Messages are committed in batches, and whenever the box is idle.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			name, err := requireName(args)
			if err != nil {
				return err
			}

			if *db == "" {
				return errArchiveRequired
			}

			if *batch < 1 {
				return fmt.Errorf("--batch must be >= 1, got %d", *batch)
			}

			return execRecord(ctx, o, boxOptions(cfg, name, logger), *db, *batch)
		},
	}
}

func execRecord(ctx context.Context, o *IO, opts greenbox.Options, dbPath string, batchSize int) (err error) {
	// The archive outlives ctx so the final flush still commits.
	arc, err := archive.Open(context.WithoutCancel(ctx), dbPath)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, arc.Close())
	}()

	var (
		pending []archive.Record
		total   int
	)

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}

		appendErr := arc.Append(context.WithoutCancel(ctx), pending)
		if appendErr != nil {
			return appendErr
		}

		total += len(pending)
		opts.Logger.Debug("archived batch", "box", opts.Name, "count", len(pending))
		pending = pending[:0]

		return nil
	}

	r, err := attachWhenReady(ctx, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}

		return err
	}

	defer func() {
		if r != nil {
			_ = r.Close()
		}
	}()

	// Next must run long enough to reach its backoff cap, where it notices
	// a replaced box.
	wait := max(recordFlushEvery, 4*opts.MaxPollInterval)

	for {
		waitCtx, cancel := context.WithTimeout(ctx, wait)
		slot := r.Cursor()
		msg, nextErr := r.Next(waitCtx)

		cancel()

		switch {
		case nextErr == nil:
			pending = append(pending, archive.Record{
				Box:      opts.Name,
				WriterID: r.Meta().WriterID,
				Slot:     slot,
				Payload:  msg,
			})

			if len(pending) < batchSize {
				continue
			}

		case errors.Is(nextErr, greenbox.ErrReplaced):
			err = flush()
			if err != nil {
				return err
			}

			opts.Logger.Warn("box replaced by a new writer, re-attaching", "name", opts.Name)
			_ = r.Close()
			r = nil

			r, err = attachWhenReady(ctx, opts)
			if err != nil {
				if ctx.Err() != nil {
					o.Printf("archived %d messages to %s\n", total, arc.Path())

					return nil
				}

				return err
			}

			continue

		case ctx.Err() != nil:
			err = flush()
			if err != nil {
				return err
			}

			o.Printf("archived %d messages to %s\n", total, arc.Path())

			return nil

		case !errors.Is(nextErr, context.DeadlineExceeded):
			return errors.Join(nextErr, flush())
		}

		err = flush()
		if err != nil {
			return err
		}
	}
}

// HistoryCmd returns the history command.
func HistoryCmd(cfg config.Config) *Command {
	flags := flag.NewFlagSet("history", flag.ContinueOnError)
	db := flags.String("db", cfg.Archive, "SQLite archive `file`")
	limit := flags.IntP("count", "n", 0, "Show only the last `N` messages (0 means all)")
	long := flags.BoolP("long", "l", false, "Prefix each message with id, writer, slot and time")

	return &Command{
		Flags: flags,
		Usage: "history [name] [flags]",
		Short: "Print archived messages",
		Long:  "Print messages archived by \"gb record\", oldest first, optionally for one box only.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if *db == "" {
				return errArchiveRequired
			}

			if len(args) > 1 {
				return fmt.Errorf("unexpected arguments: %v", args[1:])
			}

			if *limit < 0 {
				return fmt.Errorf("--count must be >= 0, got %d", *limit)
			}

			q := archive.Query{Limit: *limit}
			if len(args) == 1 {
				q.Box = args[0]
			}

			return execHistory(ctx, o, *db, q, *long)
		},
	}
}

func execHistory(ctx context.Context, o *IO, dbPath string, q archive.Query, long bool) error {
	arc, err := archive.Open(ctx, dbPath)
	if err != nil {
		return err
	}

	defer func() { _ = arc.Close() }()

	recs, err := arc.Query(ctx, q)
	if err != nil {
		return err
	}

	for _, r := range recs {
		if !long {
			o.Printf("%s\n", r.Payload)

			continue
		}

		o.Println(strconv.FormatInt(r.ID, 10) + "\t" + r.Box + "\t" + r.WriterID + "\t" +
			strconv.Itoa(r.Slot) + "\t" + r.ReceivedAt.UTC().Format(timeFormat) + "\t" + string(r.Payload))
	}

	return nil
}
