package sqlfmt

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/go-logr/logr"
	"github.com/olekukonko/tablewriter"

	"github.com/oakwood-commons/dumpx/pkg/tree"
)

// Plan is the tabular output of an EXPLAIN statement.
type Plan struct {
	Columns []string
	Rows    [][]string
}

// Table renders the plan as a borderless text table.
func (p Plan) Table() string {
	var buf bytes.Buffer
	tw := tablewriter.NewWriter(&buf)
	tw.SetHeader(p.Columns)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.SetBorder(false)
	tw.AppendBulk(p.Rows)
	tw.Render()
	return buf.String()
}

// Records returns the plan as one map per row, for JSON payloads.
func (p Plan) Records() []any {
	out := make([]any, 0, len(p.Rows))
	for _, r := range p.Rows {
		rec := make(map[string]any, len(p.Columns))
		for i, c := range p.Columns {
			if i < len(r) {
				rec[c] = r[i]
			}
		}
		out = append(out, rec)
	}
	return out
}

// Explainer produces a query plan for a statement.
type Explainer interface {
	Explain(ctx context.Context, query string) (Plan, error)
}

// DBExplainer runs EXPLAIN against a database/sql handle. Dialect "sqlite"
// uses EXPLAIN QUERY PLAN; anything else uses plain EXPLAIN.
type DBExplainer struct {
	DB      *sql.DB
	Dialect string
}

// Explain implements Explainer.
func (e DBExplainer) Explain(ctx context.Context, query string) (Plan, error) {
	if e.DB == nil {
		return Plan{}, errors.New("explain: no database handle")
	}
	prefix := "EXPLAIN "
	if e.Dialect == "sqlite" {
		prefix = "EXPLAIN QUERY PLAN "
	}
	rows, err := e.DB.QueryContext(ctx, prefix+query)
	if err != nil {
		return Plan{}, errors.Wrap(err, "explain")
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Plan{}, errors.Wrap(err, "explain columns")
	}
	plan := Plan{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Plan{}, errors.Wrap(err, "explain scan")
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			switch t := v.(type) {
			case nil:
				row[i] = "NULL"
			case []byte:
				row[i] = string(t)
			default:
				row[i] = fmt.Sprint(t)
			}
		}
		plan.Rows = append(plan.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return Plan{}, errors.Wrap(err, "explain rows")
	}
	return plan, nil
}

// Transform builds an sql node holding the formatted statement. With an
// explainer, a sql-explain child carries the plan; explain failures are
// logged and leave the node without a plan.
func Transform(ctx context.Context, raw string, bindings any, ex Explainer, log logr.Logger) *tree.Node {
	formatted := Format(raw, bindings)
	n := tree.New(tree.KindSQL, formatted).
		Set(tree.MetaRaw, raw).
		Set(tree.MetaJSONValue, raw).
		Set(tree.MetaCollapsible, true)
	if ex == nil {
		return n
	}
	plan, err := ex.Explain(ctx, formatted)
	if err != nil {
		log.V(1).Info("explain failed", "error", err.Error())
		return n
	}
	child := tree.New(tree.KindSQLExplain, plan.Table()).
		Set(tree.MetaPlan, plan.Records()).
		Set(tree.MetaCount, len(plan.Rows))
	n.Append(child)
	return n
}
