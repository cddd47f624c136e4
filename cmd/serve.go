package cmd

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/oakwood-commons/dumpx/internal/server"
	"github.com/oakwood-commons/dumpx/internal/watch"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	var watchFile bool
	c := &cobra.Command{
		Use:   "serve <file|->",
		Short: "Serve the web rendering of a document over HTTP",
		Long: `serve renders the document as an HTML page at /, its redacted JSON at /raw
and a liveness probe at /healthz. Query parameters on / override options,
for example /?maxDepth=2&theme=dark. With --watch the page follows edits
to the file.`,
		Example: `  dumpx serve order.json
  dumpx serve order.json --addr :9000 --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.run.Input.Path = args[0]
			if watchFile && a.run.Input.FromStdin() {
				return errWatchStdin
			}
			closeDB, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer closeDB()

			srv := server.New(a.engine.Dumper, a.engine.Options, a.log)
			srv.SetTitle(a.title())
			load := func() error {
				v, err := a.loadValue(cmd, a.run.Input.Path)
				if err != nil {
					return err
				}
				srv.Set(v)
				return nil
			}
			if !cmd.Flags().Changed("addr") {
				addr = a.cfg.Server.Addr
			}

			if err := load(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			if !watchFile {
				return srv.ListenAndServe(ctx, addr, a.cfg.Server.ReadTimeout)
			}
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.ListenAndServe(gctx, addr, a.cfg.Server.ReadTimeout) })
			g.Go(func() error { return watch.File(gctx, a.run.Input.Path, watch.DefaultDebounce, a.log, load) })
			return g.Wait()
		},
	}
	c.Flags().StringVar(&addr, "addr", "", "listen address (default from config server.addr)")
	c.Flags().BoolVarP(&watchFile, "watch", "w", false, "reload the document when the file changes")
	c.Flags().StringVarP(&a.run.Input.Expr, "expr", "e", "", "CEL expression selecting what to serve")
	c.Flags().StringVar(&a.inputFormat, "input-format", "auto", "input format: auto|json|ndjson|yaml|toml")
	c.Flags().BoolVar(&a.decode, "decode", false, "expand strings holding JSON or YAML documents")
	return c
}
