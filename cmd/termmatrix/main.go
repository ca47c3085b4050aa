package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/errors"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newApp().RunContext(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "termmatrix: %v\n", err)
		os.Exit(apperrors.ExitCode(err))
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "termmatrix",
		Usage: "build a document-term frequency matrix over a group of workers",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, EnvVars: []string{"TM_CONFIG"}, Usage: "YAML config file"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "log-format", Usage: "text or json"},
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "build the matrix with an in-process group of workers",
				ArgsUsage: "FILES... [--out PATH]",
				Flags: append([]cli.Flag{
					&cli.IntFlag{Name: "workers", Aliases: []string{"n"}, Usage: "number of workers"},
				}, buildFlags()...),
				Action: runAction,
			},
			{
				Name:      "worker",
				Usage:     "run one rank of a multi-process build",
				ArgsUsage: "FILES... (read on rank 0 only)",
				Flags: append([]cli.Flag{
					&cli.IntFlag{Name: "rank", Usage: "this process's rank; 0 is the coordinator"},
					&cli.IntFlag{Name: "size", Usage: "number of ranks"},
					&cli.StringFlag{Name: "transport", Usage: "tcp or redis"},
					&cli.StringFlag{Name: "addr", Usage: "coordinator address (tcp)"},
				}, buildFlags()...),
				Action: workerAction,
			},
			{
				Name:   "check",
				Usage:  "probe the configured transport, sink and event broker",
				Action: checkAction,
			},
			{
				Name:   "events",
				Usage:  "follow run-completion events",
				Action: eventsAction,
			},
		},
	}
}

// buildFlags returns fresh flag values for each command that builds a matrix.
func buildFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "encoding", Usage: "row encoding shared by all ranks: dense or sparse"},
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output CSV path (default out/matriz.csv)"},
		&cli.StringFlag{Name: "run-id", Usage: "identifier shared by every rank of the run"},
		&cli.BoolFlag{Name: "verify-vocabulary", Usage: "cross-check the vocabulary digest on every rank"},
		&cli.BoolFlag{Name: "strip-html", Usage: "tokenize only the visible text of .html/.htm documents"},
	}
}
