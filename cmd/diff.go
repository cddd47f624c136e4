package cmd

import (
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func newDiffCmd(a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "diff <old> <new>",
		Short: "Show the structural difference between two documents",
		Long: `diff loads two documents and renders which keys were added, removed or
modified. Either path may be "-" for stdin. --expr selects the same
sub-value from both sides before comparing.`,
		Example: `  dumpx diff before.json after.json
  dumpx diff v1.yaml v2.yaml -e '_.spec' --format web -o spec.html`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "-" && args[1] == "-" {
				return errors.New("only one side of a diff can be read from stdin")
			}
			closeDB, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer closeDB()
			ch, err := a.channel()
			if err != nil {
				return err
			}
			sides := make([]any, 2)
			for i, p := range args {
				if sides[i], err = a.loadValue(cmd, p); err != nil {
					return err
				}
			}
			out, err := a.engine.Diff(cmd.Context(), sides[0], sides[1], ch)
			if err != nil {
				return err
			}
			return a.write(cmd, filepath.Base(args[0])+" → "+filepath.Base(args[1]), out)
		},
	}
	f := c.Flags()
	f.StringVarP(&a.run.Input.Expr, "expr", "e", "", "CEL expression applied to both documents before comparing")
	f.StringVar(&a.inputFormat, "input-format", "auto", "input format: auto|json|ndjson|yaml|toml")
	f.BoolVar(&a.decode, "decode", false, "expand strings holding JSON or YAML documents before comparing")
	return c
}
