package main

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/tbl/codec"
	"github.com/wippyai/tbl/document"
	"github.com/wippyai/tbl/errors"
)

func tbl2jsonCommand() *cli.Command {
	return &cli.Command{
		Name:      "tbl2json",
		Usage:     "Convert TBL to JSON",
		ArgsUsage: "<game> <tblfile> [outputfile]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Value: "json", Usage: "Output format (json, msgpack)", EnvVars: []string{"TBL_FORMAT"}},
		},
		Action: runTBL2JSON,
	}
}

func json2tblCommand() *cli.Command {
	return &cli.Command{
		Name:      "json2tbl",
		Usage:     "Convert JSON to TBL",
		ArgsUsage: "<game> <jsonfile> [outputfile]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Usage: "Input format (json, msgpack); taken from the file extension when empty"},
		},
		Action: runJSON2TBL,
	}
}

func runTBL2JSON(c *cli.Context) (err error) {
	input := c.Args().Get(1)
	if input == "" {
		return errors.InvalidInput(errors.PhaseIO, "missing <tblfile> argument")
	}
	format, err := document.ParseFormat(c.String("format"))
	if err != nil {
		return err
	}
	output := c.Args().Get(2)
	if output == "" {
		output = replaceExt(input, format.Ext())
	}

	ws, err := openWorkspace(c, c.Args().Get(0))
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, ws.Close()) }()

	data, err := os.ReadFile(input)
	if err != nil {
		return errors.Wrap(errors.PhaseIO, errors.KindNotFound, err, "read "+input)
	}
	start := time.Now()
	tables, err := ws.codec.Decode(c.Context, data)
	if err != nil {
		return err
	}
	ws.observe(codec.DirectionDecode, start)

	if err := writeDocument(output, format, tables); err != nil {
		return err
	}
	logger.Info("converted",
		zap.String("input", input),
		zap.String("output", output),
		zap.Int("tables", len(tables)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func runJSON2TBL(c *cli.Context) (err error) {
	input := c.Args().Get(1)
	if input == "" {
		return errors.InvalidInput(errors.PhaseIO, "missing <jsonfile> argument")
	}
	format := document.FormatFromPath(input)
	if f := c.String("format"); f != "" {
		if format, err = document.ParseFormat(f); err != nil {
			return err
		}
	}
	output := c.Args().Get(2)
	if output == "" {
		output = replaceExt(input, ".tbl")
	}

	ws, err := openWorkspace(c, c.Args().Get(0))
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, ws.Close()) }()

	tables, err := readDocument(input, format)
	if err != nil {
		return err
	}
	start := time.Now()
	data, err := ws.codec.Encode(c.Context, tables)
	if err != nil {
		return err
	}
	ws.observe(codec.DirectionEncode, start)

	if err := os.WriteFile(output, data, 0o644); err != nil {
		return errors.Wrap(errors.PhaseIO, errors.KindInvalidData, err, "write "+output)
	}
	logger.Info("converted",
		zap.String("input", input),
		zap.String("output", output),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// replaceExt swaps the final extension of path for ext.
func replaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

func writeDocument(path string, format document.Format, tables []*codec.Table) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.PhaseIO, errors.KindInvalidData, err, "create "+path)
	}
	defer func() { err = multierr.Append(err, f.Close()) }()

	w := bufio.NewWriter(f)
	if err := document.Write(w, format, tables); err != nil {
		return err
	}
	return w.Flush()
}

func readDocument(path string, format document.Format) (_ []*codec.Table, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseIO, errors.KindNotFound, err, "open "+path)
	}
	defer func() { err = multierr.Append(err, f.Close()) }()
	return document.Read(bufio.NewReader(f), format)
}
