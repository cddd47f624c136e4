package cmd

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/oakwood-commons/dumpx/internal/pager"
	"github.com/oakwood-commons/dumpx/internal/render/html"
	"github.com/oakwood-commons/dumpx/pkg/inspect"
)

// emit renders v for --format and, with --html, a web copy alongside it.
// The two renderings run concurrently.
func (a *app) emit(cmd *cobra.Command, v any) error {
	ch, err := a.channel()
	if err != nil {
		return err
	}
	var primary, page string
	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		s, err := a.engine.Render(ctx, v, ch)
		primary = s
		return err
	})
	if a.htmlOut != "" {
		g.Go(func() error {
			s, err := a.engine.Render(ctx, v, inspect.ChannelWeb)
			page = s
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if a.htmlOut != "" {
		if err := writeFile(a.htmlOut, html.Document(a.title(), page)); err != nil {
			return err
		}
		a.log.V(1).Info("web copy written", "path", a.htmlOut)
	}
	return a.write(cmd, a.title(), primary)
}

// write sends rendered output to --out, the pager or stdout. Web output is
// wrapped in a standalone page.
func (a *app) write(cmd *cobra.Command, title, body string) error {
	if a.run.Format == string(inspect.ChannelWeb) {
		body = html.Document(title, body)
	}
	switch {
	case a.run.OutPath != "":
		if err := writeFile(a.run.OutPath, body); err != nil {
			return err
		}
		a.log.V(1).Info("output written", "path", a.run.OutPath)
		return nil
	case a.run.Interactive && a.run.Format != string(inspect.ChannelWeb):
		return a.page(cmd, title, body)
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), body)
	return err
}

func writeFile(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// page runs the pager. When the document came from stdin, keys are read from
// the controlling terminal instead.
func (a *app) page(cmd *cobra.Command, title, body string) error {
	var in io.Reader = cmd.InOrStdin()
	var out io.Writer = cmd.OutOrStdout()
	if a.run.Input.FromStdin() {
		ttyIn, ttyOut, err := a.openTTY()
		if err != nil {
			a.log.Info("no terminal for the pager, printing instead", "error", err.Error())
			_, err = fmt.Fprintln(out, body)
			return err
		}
		defer ttyIn.Close()
		if ttyOut != nil {
			defer ttyOut.Close()
			out = ttyOut
		}
		in = ttyIn
	}
	return pager.Run(cmd.Context(), title, body, in, out)
}

func openTerminalIO() (io.ReadCloser, io.WriteCloser, error) {
	inName, outName := terminalDeviceNames(runtime.GOOS)
	input, err := os.OpenFile(inName, os.O_RDWR, 0)
	if err != nil {
		return nil, nil, err
	}
	if !term.IsTerminal(int(input.Fd())) {
		_ = input.Close()
		return nil, nil, errors.Newf("%s is not a terminal", inName)
	}
	if outName == inName {
		return input, nil, nil
	}
	output, err := os.OpenFile(outName, os.O_RDWR, 0)
	if err != nil {
		_ = input.Close()
		return nil, nil, err
	}
	return input, output, nil
}

func terminalDeviceNames(goos string) (input string, output string) {
	if goos == "windows" {
		return "CONIN$", "CONOUT$"
	}
	return "/dev/tty", "/dev/tty"
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
