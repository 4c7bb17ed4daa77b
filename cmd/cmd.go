// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

func tokenFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "token",
		Aliases: []string{"t"},
		Usage:   "Catalog bearer token (defaults to a client-credentials token)",
		Sources: cli.EnvVars("JUKEBOX_TOKEN"),
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and database",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write the default config.toml",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Create the database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// serveCommand runs the HTTP surface
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the round pipeline and maintenance endpoints over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (overrides server.host and server.port)",
			},
			&cli.BoolFlag{
				Name:  "await-healing",
				Usage: "Block tick responses until healing actions finish",
			},
		},
		Action: r.Serve,
	}
}

// tickCommand runs one maintenance pass from the command line
func tickCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tick",
		Usage: "Run one deadline-bound maintenance pass",
		Flags: []cli.Flag{
			tokenFlag(),
			&cli.BoolFlag{
				Name:  "await",
				Usage: "Wait for healing actions before reporting",
				Value: true,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Hide progress updates",
			},
		},
		Action: r.Tick,
	}
}

// roundCommand runs the two pipeline stages against request files
func roundCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "round",
		Usage: "Run a pipeline stage against a JSON request",
		Commands: []*cli.Command{
			{
				Name:  "stage1",
				Usage: "Resolve the candidate artists of a round",
				Flags: []cli.Flag{
					tokenFlag(),
					&cli.StringFlag{
						Name:     "request",
						Aliases:  []string{"r"},
						Usage:    "Path to a Stage 1 request (- for stdin)",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.RoundStage1,
			},
			{
				Name:  "stage2",
				Usage: "Assemble the candidate track pool",
				Flags: []cli.Flag{
					tokenFlag(),
					&cli.StringFlag{
						Name:     "request",
						Aliases:  []string{"r"},
						Usage:    "Path to a Stage 2 request (- for stdin)",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the pool to a .csv, .md or .txt file",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.RoundStage2,
			},
		},
	}
}

// zonesCommand explains how gravities are classified
func zonesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "zones",
		Usage:     "Classify gravities into influence zones",
		ArgsUsage: "[gravity...]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "round",
				Usage: "Round number, for phase and injection",
			},
		},
		Action: r.Zones,
	}
}

// queueCommand inspects and prunes the work queues
func queueCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "queue",
		Usage: "Inspect the lazy update and healing queues",
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Count queued items by status",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}},
				Action: r.QueueStats,
			},
			{
				Name:  "clear",
				Usage: "Delete completed lazy updates",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "Only delete items completed before this long ago",
						Value: 24 * time.Hour,
					},
				},
				Action: r.QueueClear,
			},
		},
	}
}
