package main

import (
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/tbl"
	"github.com/wippyai/tbl/codec"
	"github.com/wippyai/tbl/errors"
	"github.com/wippyai/tbl/internal/metrics"
	"github.com/wippyai/tbl/schema"
	"github.com/wippyai/tbl/schema/remote"
)

// schemaCacheSize bounds parsed schemas kept per namespace.
const schemaCacheSize = 1024

type namespace interface {
	tbl.Store
	tbl.Putter
	Exists() bool
}

// workspace is the state a command needs: schema stores for one game, a
// configured codec and optional metrics.
type workspace struct {
	game        string
	codec       *codec.Codec
	db          *schema.BoltStore
	metrics     *metrics.Collector
	metricsFile string
	root        string
}

// openStores resolves the game and opens its schema stores.
func openStores(c *cli.Context, gameArg string) (*workspace, error) {
	if gameArg == "" {
		return nil, errors.InvalidInput(errors.PhaseLoad, "missing <game> argument")
	}
	ws := &workspace{
		game:        schema.ResolveGame(gameArg),
		root:        c.String("schema-dir"),
		metricsFile: c.String("metrics-file"),
	}
	if path := c.String("schema-db"); path != "" {
		db, err := schema.OpenBoltStore(path)
		if err != nil {
			return nil, err
		}
		ws.db = db
	}
	return ws, nil
}

// openWorkspace opens the game's stores, downloads its schemas when they
// are missing and builds the codec.
func openWorkspace(c *cli.Context, gameArg string) (*workspace, error) {
	ws, err := openStores(c, gameArg)
	if err != nil {
		return nil, err
	}

	if !ws.namespace(ws.game).Exists() {
		if c.Bool("offline") {
			logger.Warn("no schemas for game; tables decode as raw bytes", zap.String("game", ws.game))
		} else {
			logger.Info("schemas not downloaded, downloading", zap.String("game", ws.game))
			if err := ws.update(c); err != nil {
				return nil, multierr.Append(err, ws.Close())
			}
		}
	}

	ws.codec = &codec.Codec{
		Tables: schema.NewCachedStore(ws.namespace(ws.game), schemaCacheSize),
		Common: schema.NewCachedStore(ws.namespace(tbl.CommonNamespace), schemaCacheSize),
		Options: codec.Options{
			Jobs:     c.Int("jobs"),
			MaxDepth: c.Int("max-depth"),
		},
	}
	if ws.metricsFile != "" {
		ws.metrics = metrics.New()
		ws.codec.Observer = ws.metrics
	}
	return ws, nil
}

func (ws *workspace) namespace(ns string) namespace {
	if ws.db != nil {
		return ws.db.Namespace(ns)
	}
	return schema.NewDirStore(ws.root, ns)
}

func (ws *workspace) update(c *cli.Context) error {
	f := remote.New()
	f.BaseURL = c.String("schema-url")
	f.Token = c.String("github-token")
	n, err := f.UpdateGame(c.Context, ws.game, func(ns string) tbl.Putter {
		return ws.namespace(ns)
	})
	if err != nil {
		return err
	}
	logger.Info("schemas updated", zap.String("game", ws.game), zap.Int("documents", n))
	return nil
}

func (ws *workspace) observe(dir codec.Direction, start time.Time) {
	if ws.metrics != nil {
		ws.metrics.Since(dir, start)
	}
}

// Close writes metrics and closes the schema database.
func (ws *workspace) Close() error {
	var err error
	if ws.metrics != nil {
		err = multierr.Append(err, ws.metrics.WriteTextfile(ws.metricsFile))
	}
	if ws.db != nil {
		err = multierr.Append(err, ws.db.Close())
	}
	return err
}
