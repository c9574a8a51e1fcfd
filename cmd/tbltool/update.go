package main

import (
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/wippyai/tbl/errors"
)

func updateCommand() *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Fetch and update schema",
		ArgsUsage: "<game>",
		Action: func(c *cli.Context) (err error) {
			if c.Bool("offline") {
				return errors.InvalidInput(errors.PhaseFetch, "update cannot run with --offline")
			}
			ws, err := openStores(c, c.Args().Get(0))
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, ws.Close()) }()
			return ws.update(c)
		},
	}
}
