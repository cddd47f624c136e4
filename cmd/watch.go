package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/oakwood-commons/dumpx/internal/watch"
)

// clearScreen homes the cursor and clears the terminal between renders.
const clearScreen = "\x1b[H\x1b[2J"

// watch re-renders the input file on change until interrupted.
func (a *app) watch(cmd *cobra.Command, render func() error) error {
	if a.run.Interactive {
		return errors.New("--watch and --interactive cannot be combined")
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	clearFirst := a.run.OutPath == "" && a.run.Format != "web" && isTerminal(cmd.OutOrStdout())
	a.log.Info("watching", "path", a.run.Input.Path)
	return watch.File(ctx, a.run.Input.Path, watch.DefaultDebounce, a.log, func() error {
		if clearFirst {
			fmt.Fprint(cmd.OutOrStdout(), clearScreen)
		}
		return render()
	})
}
