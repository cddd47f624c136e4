package cmd

import (
	"context"
	"database/sql"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/oakwood-commons/dumpx/internal/history"
	"github.com/oakwood-commons/dumpx/internal/sqlfmt"
	"github.com/oakwood-commons/dumpx/pkg/core"
	"github.com/oakwood-commons/dumpx/pkg/inspect"
	"github.com/oakwood-commons/dumpx/pkg/loader"
)

// loadValue reads path ("-" for stdin), then applies --decode, --expr and
// the record window, in that order.
func (a *app) loadValue(cmd *cobra.Command, path string) (any, error) {
	f, err := loader.ParseFormat(a.inputFormat)
	if err != nil {
		return nil, err
	}
	var v any
	switch {
	case path == "" || path == "-":
		v, err = loader.LoadReader(cmd.InOrStdin(), f)
	case f == loader.FormatAuto:
		v, err = loader.LoadFile(path)
	default:
		var fh *os.File
		if fh, err = os.Open(path); err != nil {
			return nil, errors.Wrapf(err, "open %s", path)
		}
		defer fh.Close()
		v, err = loader.LoadReader(fh, f)
	}
	if err != nil {
		return nil, err
	}
	a.log.V(1).Info("input loaded", "path", path, "format", string(f))

	if a.decode {
		v = loader.Expand(v)
	}
	if expr := a.run.Input.Expr; expr != "" {
		if v, err = a.engine.Evaluate(expr, v); err != nil {
			return nil, errors.Wrapf(err, "evaluate %q", expr)
		}
	}
	if err := a.window.Validate(); err != nil {
		return nil, err
	}
	if a.window.IsActive() {
		v = a.window.Apply(v)
		a.log.V(1).Info("window applied", "limit", a.window.Limit, "offset", a.window.Offset, "tail", a.window.Tail)
	}
	return v, nil
}

// explainer opens the --sqlite database, if any. The returned func closes
// it.
func (a *app) explainer() (sqlfmt.Explainer, func(), error) {
	noop := func() {}
	if a.sqlitePath == "" {
		return nil, noop, nil
	}
	if _, err := os.Stat(a.sqlitePath); err != nil {
		return nil, noop, errors.Wrapf(err, "sqlite database %s", a.sqlitePath)
	}
	db, err := sql.Open("sqlite", a.sqlitePath)
	if err != nil {
		return nil, noop, errors.Wrapf(err, "open sqlite %s", a.sqlitePath)
	}
	return sqlfmt.DBExplainer{DB: db, Dialect: "sqlite"}, func() { _ = db.Close() }, nil
}

// open builds the engine every command renders through: merged options, a
// Dumper logging via the CLI logger and, with --sqlite, explaining detected
// SQL. The returned func releases the database.
func (a *app) open(cmd *cobra.Command) (func(), error) {
	o, err := a.options(cmd)
	if err != nil {
		return nil, err
	}
	ex, closeDB, err := a.explainer()
	if err != nil {
		return nil, err
	}
	dopts := []inspect.Option{inspect.WithLogger(a.log)}
	if ex != nil {
		dopts = append(dopts, inspect.WithExplainer(ex))
	}
	eng, err := core.New(core.WithDumper(inspect.New(dopts...)), core.WithOptions(o))
	if err != nil {
		closeDB()
		return nil, errors.Wrap(err, "cel environment")
	}
	a.engine = eng
	a.explain = ex
	return closeDB, nil
}

// trackHistory stores v under --history-key. When a previous snapshot
// exists it returns the rendered diff and true; on first use it returns
// false and the caller renders v as usual.
func (a *app) trackHistory(ctx context.Context, v any) (string, bool, error) {
	h := a.cfg.History
	store, err := history.Open(ctx, history.Options{
		Backend:   h.Backend,
		Dir:       h.Dir,
		RedisAddr: h.RedisAddr,
		TTL:       h.TTL,
	})
	if err != nil {
		return "", false, errors.Wrap(err, "open history")
	}
	defer store.Close()

	prev, cur, err := history.Track(ctx, store, a.run.HistoryKey, v)
	if err != nil {
		return "", false, err
	}
	if prev == nil {
		a.log.Info("first snapshot stored", "key", a.run.HistoryKey)
		return "", false, nil
	}
	a.log.V(1).Info("diffing against snapshot", "key", prev.Key, "taken", prev.Taken)
	ch, err := a.channel()
	if err != nil {
		return "", false, err
	}
	out, err := a.engine.Diff(ctx, prev.Value, cur, ch)
	if err != nil {
		return "", false, err
	}
	return out, true, nil
}
