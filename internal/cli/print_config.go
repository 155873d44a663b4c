package cli

import (
	"context"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/greenbox/internal/config"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(cfg config.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("print-config", flag.ContinueOnError),
		Usage: "print-config",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and which sources it was loaded from.",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			execPrintConfig(o, cfg)

			return nil
		},
	}
}

func execPrintConfig(o *IO, cfg config.Config) {
	o.Println("dir=" + cfg.Dir)
	o.Printf("block_size=%d\n", cfg.BlockSize)
	o.Printf("block_count=%d\n", cfg.BlockCount)
	o.Println("poll_interval=" + time.Duration(cfg.PollInterval).String())
	o.Println("max_poll_interval=" + time.Duration(cfg.MaxPollInterval).String())

	o.Println("")
	o.Println("# sources")

	src := cfg.Sources
	if src.Global == "" && src.Project == "" && !src.Env {
		o.Println("(defaults only)")

		return
	}

	if src.Global != "" {
		o.Println("global_config=" + src.Global)
	}

	if src.Project != "" {
		o.Println("project_config=" + src.Project)
	}

	if src.Env {
		o.Println("env=" + config.EnvDir)
	}
}
