// Package cmd implements the snatch command line interface.
package cmd

import (
	"github.com/urfave/cli"
)

const version = "0.1.0"

// Execute runs the snatch CLI with the given process arguments.
func Execute(args []string) error {
	app := cli.App{
		Name:      "Snatch",
		HelpName:  "snatch",
		Usage:     "a concurrent download scheduler",
		Version:   version,
		UsageText: "snatch <command> [arguments...]",
		Commands: []cli.Command{
			{
				Name:                   "get",
				Aliases:                []string{"g"},
				Usage:                  "download one or more urls",
				Action:                 get,
				Flags:                  getFlags,
				UseShortOptionHandling: true,
			},
		},
	}
	return app.Run(args)
}
