package cmd

import (
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/oakwood-commons/dumpx/internal/sqlfmt"
	"github.com/oakwood-commons/dumpx/pkg/tree"
)

func newSQLCmd(a *app) *cobra.Command {
	var named, positional []string
	c := &cobra.Command{
		Use:   "sql <query|->",
		Short: "Format an SQL statement, optionally with bindings and a query plan",
		Long: `sql pretty-prints a statement with one clause per line. --bind fills named
placeholders (:name, @name, $name) and --arg fills positional ones (?) in
order; values are parsed as YAML scalars, so 42 is a number and 'x' a string.
With --sqlite the plan from EXPLAIN QUERY PLAN is shown under the statement.`,
		Example: `  dumpx sql "select * from users where id = :id" --bind id=42
  dumpx sql "select name from users where age > ? and active = ?" --arg 30 --arg true
  dumpx sql "select * from orders where user_id = 7" --sqlite shop.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := args[0]
			if query == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return errors.Wrap(err, "read query")
				}
				query = string(b)
			}
			query = strings.TrimSpace(query)
			if query == "" {
				return errors.New("empty query")
			}
			bindings, err := parseBindings(named, positional)
			if err != nil {
				return err
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

			n := sqlfmt.Transform(cmd.Context(), query, bindings, a.explain, a.log)
			tr := &tree.Tree{Channel: string(ch), Nodes: []*tree.Node{n}}
			out, err := a.engine.Dumper.Serialize(tr, ch, a.engine.Options)
			if err != nil {
				return err
			}
			return a.write(cmd, "sql", out)
		},
	}
	c.Flags().StringArrayVar(&named, "bind", nil, "named binding name=value; repeatable")
	c.Flags().StringArrayVar(&positional, "arg", nil, "positional binding value; repeatable")
	return c
}

// parseBindings returns a map for named bindings or a list for positional
// ones. Mixing the two is an error.
func parseBindings(named, positional []string) (any, error) {
	if len(named) > 0 && len(positional) > 0 {
		return nil, errors.New("use either --bind or --arg, not both")
	}
	if len(positional) > 0 {
		out := make([]any, len(positional))
		for i, p := range positional {
			out[i] = scalar(p)
		}
		return out, nil
	}
	if len(named) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(named))
	for _, kv := range named {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, errors.Newf("invalid binding %q: expected name=value", kv)
		}
		out[strings.TrimLeft(k, ":@$")] = scalar(v)
	}
	return out, nil
}

// scalar parses s as a YAML scalar. Anything that is not a plain scalar
// stays a string.
func scalar(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	switch v.(type) {
	case nil:
		if strings.TrimSpace(s) == "" {
			return s
		}
		return nil
	case bool, int, int64, uint64, float64, string:
		return v
	}
	return s
}
