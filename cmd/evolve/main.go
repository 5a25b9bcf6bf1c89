package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "evolve",
		HelpName: "evolve",
		Usage:    "Evolve trading strategy genomes against historical market data",
		Version:  GetFullVersion(),
		Commands: []*cli.Command{
			{
				Name:     "run",
				HelpName: "run",
				Usage:    "Start a new evolution run",
				Flags:    concatFlags(commonFlags(), seedFlags(), sessionFlags()),
				Action:   runAction,
			},
			{
				Name:     "resume",
				HelpName: "resume",
				Usage:    "Continue an interrupted evolution run from its last persisted generation",
				Flags: concatFlags(commonFlags(), sessionFlags(), []cli.Flag{
					&cli.StringFlag{
						Name:     "run-id",
						Aliases:  []string{"r"},
						Usage:    "id of the run to resume",
						Required: true,
					},
				}),
				Action: resumeAction,
			},
			{
				Name:     "runs",
				HelpName: "runs",
				Usage:    "List the evolution runs stored in the configured store",
				Flags:    commonFlags(),
				Action:   runsAction,
			},
			{
				Name:     "version",
				HelpName: "version",
				Usage:    "Print version information",
				Action: func(c *cli.Context) error {
					PrintVersion(c.App.Writer, c.App.Name)
					return nil
				},
			},
		},
	}
}
