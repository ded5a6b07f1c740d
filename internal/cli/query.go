package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PseudoDevs/IamJohnDevORM/internal/builder"
	"github.com/PseudoDevs/IamJohnDevORM/internal/queryir"
)

// QueryFlags are the clause flags shared by compile and query.
type QueryFlags struct {
	Select []string
	Where  []string // "column op value"
	Order  string
	Group  string
	Limit  int // -1 means unset
	Offset int // -1 means unset
	Inline bool
	Count  bool
	First  bool
	Last   bool
}

func (q *QueryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&q.Select, "select", nil, "columns to project (comma-separated)")
	cmd.Flags().StringArrayVar(&q.Where, "where", nil, `condition "column op value", repeatable; IN takes a comma-separated list`)
	cmd.Flags().StringVar(&q.Order, "order", "", `ordering "column [ASC|DESC]"`)
	cmd.Flags().StringVar(&q.Group, "group", "", "grouping column")
	cmd.Flags().IntVar(&q.Limit, "limit", -1, "maximum rows")
	cmd.Flags().IntVar(&q.Offset, "offset", -1, "rows to skip (requires --limit)")
	cmd.Flags().BoolVar(&q.Inline, "inline", false, "write limit and offset as literals instead of parameters")
	cmd.Flags().BoolVar(&q.Count, "count", false, "count matching rows")
	cmd.Flags().BoolVar(&q.First, "first", false, "first row of the table (ignores clauses)")
	cmd.Flags().BoolVar(&q.Last, "last", false, "row with the highest id (ignores clauses)")
	cmd.MarkFlagsMutuallyExclusive("count", "first", "last")
}

// apply configures b from the flags. Structural errors surface through
// b.Err and the terminal call.
func (q *QueryFlags) apply(b *builder.Builder) (*builder.Builder, error) {
	if len(q.Select) > 0 {
		b.Select(q.Select...)
	}
	for _, w := range q.Where {
		col, op, value, err := parseWhere(w)
		if err != nil {
			return b, err
		}
		b.Where(col, op, value)
	}
	if q.Group != "" {
		b.GroupBy(q.Group)
	}
	if q.Order != "" {
		b.OrderBy(q.Order)
	}
	if q.Limit >= 0 {
		b.Limit(q.Limit)
	}
	if q.Offset >= 0 {
		b.Offset(q.Offset)
	}
	return b, b.Err()
}

// parseWhere splits "column op value". The value is the remainder of the
// string and may contain spaces.
func parseWhere(expr string) (string, string, any, error) {
	fields := strings.Fields(expr)
	if len(fields) < 3 {
		return "", "", nil, queryir.NewArgumentError(expr, `where must be "column op value"`)
	}
	col, op := fields[0], fields[1]

	rest := strings.TrimSpace(expr)
	rest = strings.TrimSpace(strings.TrimPrefix(rest, col))
	rest = strings.TrimSpace(strings.TrimPrefix(rest, op))

	if strings.EqualFold(op, string(queryir.OpIn)) {
		parts := strings.Split(rest, ",")
		values := make([]any, len(parts))
		for i, p := range parts {
			values[i] = parseLiteral(strings.TrimSpace(p))
		}
		return col, op, values, nil
	}
	return col, op, parseLiteral(rest), nil
}

// parseLiteral reads an integer, a float or a string. Quoted values are
// always strings.
func parseLiteral(s string) any {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// StatementOutput is the JSON shape of a compiled statement.
type StatementOutput struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params"`
}

func (s StatementOutput) String() string {
	return fmt.Sprintf("%s\n-- params: %v", s.SQL, s.Params)
}

// RowsOutput is the result of a query. Text output prints one line per row
// with columns in sorted order.
type RowsOutput struct {
	Rows []queryir.Row `json:"rows"`
}

func (r RowsOutput) String() string {
	if len(r.Rows) == 0 {
		return "(no rows)"
	}
	var b strings.Builder
	for i, row := range r.Rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(formatRow(row))
	}
	return b.String()
}

// CountOutput is the result of a count query.
type CountOutput struct {
	Count int64 `json:"count"`
}

func (c CountOutput) String() string {
	return strconv.FormatInt(c.Count, 10)
}

func formatRow(row queryir.Row) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, row[k])
	}
	return strings.Join(parts, " ")
}
