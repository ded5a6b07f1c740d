package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/PseudoDevs/IamJohnDevORM/internal/builder"
	"github.com/PseudoDevs/IamJohnDevORM/internal/queryir"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Query QueryFlags
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <table>",
		Short: "Run a query and print the matching rows",
		Long: `Run a query built from flags against the configured database.

Without --count, --first or --last every matching row is printed. Limit and
offset are bound as parameters unless --inline is given.

Example:
  ijdorm query users --db app.db --where "age > 30" --order "name" --limit 5
  ijdorm query users --db app.db --count --where "role = admin"
  ijdorm query users --db app.db --last --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	opts.Query.register(cmd)
	return cmd
}

func runQuery(opts *QueryOptions, table string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd)

	sess, err := openSession(ctx, opts.RootOptions, cmd, formatter)
	if err != nil {
		return err
	}
	defer sess.Close()

	b, err := opts.Query.apply(sess.builder(table))
	if err != nil {
		return formatter.Fail(ExitCommandError, "invalid query", err)
	}

	switch {
	case opts.Query.Count:
		n, err := b.Count(ctx)
		if err != nil {
			return formatter.Fail(ExitCommandError, "count failed", err)
		}
		return formatter.Success(CountOutput{Count: n})

	case opts.Query.First, opts.Query.Last:
		var row queryir.Row
		if opts.Query.First {
			row, err = b.First(ctx)
		} else {
			row, err = b.Last(ctx)
		}
		return outputRow(formatter, row, err)

	default:
		var rows []queryir.Row
		if opts.Query.Inline {
			rows, err = b.All(ctx)
		} else {
			rows, err = b.Get(ctx)
		}
		if err != nil {
			return formatter.Fail(ExitCommandError, "query failed", err)
		}
		if rows == nil {
			rows = []queryir.Row{}
		}
		return formatter.Success(RowsOutput{Rows: rows})
	}
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "find <table> <id>",
		Short: "Print the row with the given id",
		Long: `Print the row whose id column equals <id>. Exits 1 when there is none.

Example:
  ijdorm find users 42 --db app.db`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			formatter := newFormatter(rootOpts, cmd)

			sess, err := openSession(ctx, rootOpts, cmd, formatter)
			if err != nil {
				return err
			}
			defer sess.Close()

			row, err := sess.builder(args[0]).Find(ctx, parseID(args[1]))
			return outputRow(formatter, row, err)
		},
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <table> <id>",
		Short: "Delete the row with the given id",
		Long: `Delete the row whose id column equals <id>. Exits 1 when no row was
deleted.

Example:
  ijdorm delete users 42 --db app.db`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			formatter := newFormatter(rootOpts, cmd)

			sess, err := openSession(ctx, rootOpts, cmd, formatter)
			if err != nil {
				return err
			}
			defer sess.Close()

			res, err := sess.builder(args[0]).Delete(ctx, parseID(args[1]))
			if err != nil {
				return formatter.Fail(ExitCommandError, "delete failed", err)
			}
			return outputWrite(formatter, "deleted", res)
		},
	}
}

// RowOutput is a single row.
type RowOutput struct {
	Row queryir.Row `json:"row"`
}

func (r RowOutput) String() string {
	return formatRow(r.Row)
}

func outputRow(f *OutputFormatter, row queryir.Row, err error) error {
	if errors.Is(err, builder.ErrNoRows) {
		_ = f.Error(ErrCodeNotFound, "no matching row", nil)
		return WrapExitError(ExitFailure, ErrCodeNotFound, err)
	}
	if err != nil {
		return f.Fail(ExitCommandError, "query failed", err)
	}
	return f.Success(RowOutput{Row: row})
}
