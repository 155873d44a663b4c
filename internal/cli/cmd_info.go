package cli

import (
	"context"
	"errors"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/greenbox/internal/config"
	"github.com/calvinalkan/greenbox/pkg/shmregion"
)

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// InfoCmd returns the info command.
func InfoCmd(cfg config.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("info", flag.ContinueOnError),
		Usage: "info <name>",
		Short: "Show box metadata and whether its writer is live",
		Long: `Show the metadata the writer of box <name> published, and whether a writer
currently holds the box. Readers must use the same block_size and
block_count shown here.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			name, err := requireName(args)
			if err != nil {
				return err
			}

			return execInfo(o, cfg.Dir, name)
		},
	}
}

func execInfo(o *IO, dir, name string) error {
	meta, err := shmregion.ReadMeta(dir, name)
	if err != nil {
		if errors.Is(err, shmregion.ErrNotExist) {
			return errors.New("no such box: " + name)
		}

		return err
	}

	alive, err := shmregion.WriterAlive(dir, name)
	if err != nil {
		return err
	}

	o.Println("name=" + meta.Name)
	o.Println("path=" + shmregion.RegionPath(dir, name))
	o.Printf("block_size=%d\n", meta.BlockSize)
	o.Printf("block_count=%d\n", meta.BlockCount)
	o.Printf("region_size=%d\n", meta.RegionSize)
	o.Printf("max_message=%d\n", meta.BlockSize-1)
	o.Println("writer_id=" + meta.WriterID)
	o.Printf("writer_pid=%d\n", meta.PID)
	o.Printf("writer_live=%t\n", alive)
	o.Println("created_at=" + meta.CreatedAt.UTC().Format(timeFormat))

	if !alive {
		o.Warn("writer not live", "box "+name+" is left over from a writer that exited without removing it")
	}

	return nil
}

// LsCmd returns the ls command.
func LsCmd(cfg config.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("ls", flag.ContinueOnError),
		Usage: "ls",
		Short: "List boxes in the region directory",
		Long:  "List boxes that have published metadata, one per line: name, layout, writer pid, state and age.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) > 0 {
				return errors.New("ls takes no arguments")
			}

			return execLs(o, cfg.Dir)
		},
	}
}

func execLs(o *IO, dir string) error {
	metas, err := shmregion.List(dir)
	if err != nil {
		return err
	}

	for _, meta := range metas {
		alive, err := shmregion.WriterAlive(dir, meta.Name)
		if err != nil {
			return err
		}

		state := "stale"
		if alive {
			state = "live"
		}

		o.Printf("%s\t%dx%d\tpid=%d\t%s\t%s\n",
			meta.Name, meta.BlockSize, meta.BlockCount, meta.PID, state,
			time.Since(meta.CreatedAt).Truncate(time.Second))
	}

	return nil
}
