package cli

import (
	"github.com/spf13/cobra"

	"github.com/PseudoDevs/IamJohnDevORM/internal/builder"
	"github.com/PseudoDevs/IamJohnDevORM/internal/querysql"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Query QueryFlags
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <table>",
		Short: "Print the SQL a query compiles to",
		Long: `Compile query flags into SQL and positional parameters without
touching a database.

Example:
  ijdorm compile users --where "age >= 18" --where "role IN admin,staff" --order "name DESC" --limit 10
  ijdorm compile users --count --group team`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	opts.Query.register(cmd)
	return cmd
}

func runCompile(opts *CompileOptions, table string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	b, err := opts.Query.apply(builder.New(nil, table))
	if err != nil {
		return formatter.Fail(ExitCommandError, "invalid query", err)
	}

	stmt, err := compileFor(b, opts.Query)
	if err != nil {
		return formatter.Fail(ExitCommandError, "invalid query", err)
	}

	formatter.VerboseLog("Compiled %d placeholder(s) for %s", len(stmt.Params), b.Table())
	return formatter.Success(StatementOutput{SQL: stmt.SQL, Params: stmt.Args()})
}

// compileFor picks the statement the query command would run.
func compileFor(b *builder.Builder, q QueryFlags) (querysql.Statement, error) {
	c := querysql.NewSQLCompiler()
	switch {
	case q.Count:
		return b.ToCountSQL()
	case q.First:
		return c.CompileFirst(b.Table())
	case q.Last:
		return c.CompileLast(b.Table())
	case q.Inline:
		return b.ToInlineSQL()
	default:
		return b.ToSQL()
	}
}
