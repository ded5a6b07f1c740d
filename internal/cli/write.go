package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PseudoDevs/IamJohnDevORM/internal/builder"
	"github.com/PseudoDevs/IamJohnDevORM/internal/validation"
)

// WriteOptions holds flags for the create and update commands.
type WriteOptions struct {
	*RootOptions
	DataFile  string
	RulesFile string
}

func (o *WriteOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.DataFile, "data", "", "record file (.json, .yaml or .cue) (required)")
	cmd.Flags().StringVar(&o.RulesFile, "rules", "", "rule set file (.json, .yaml or .cue)")
	_ = cmd.MarkFlagRequired("data")
}

// load reads the record and, when given, the rule set.
func (o *WriteOptions) load(f *OutputFormatter) (map[string]any, validation.Rules, error) {
	data, err := LoadRecord(o.DataFile)
	if err != nil {
		return nil, nil, f.Fail(ExitCommandError, "cannot load data", err)
	}
	if o.RulesFile == "" {
		return data, nil, nil
	}
	rules, err := LoadRules(o.RulesFile)
	if err != nil {
		return nil, nil, f.Fail(ExitCommandError, "cannot load rules", err)
	}
	return data, rules, nil
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WriteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <table>",
		Short: "Validate a record and insert it",
		Long: `Insert the record in --data as one row of <table>.

With --rules the record is validated first; if validation fails the
errors are printed, nothing is written and the command exits 1.

Example:
  ijdorm create users --db app.db --data ada.yaml --rules users.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(opts, cmd, args[0], "created", func(b *builder.Builder, data map[string]any, rules validation.Rules) (builder.WriteResult, error) {
				return b.Create(cmd.Context(), data, rules)
			})
		},
	}

	opts.register(cmd)
	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WriteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <table> <id>",
		Short: "Validate fields and update a row",
		Long: `Set every field of --data on the row whose id equals <id>.

With --rules the fields are validated first; if validation fails the
errors are printed, nothing is written and the command exits 1.

Example:
  ijdorm update users 42 --db app.db --data patch.json --rules users.yaml`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := parseID(args[1])
			return runWrite(opts, cmd, args[0], "updated", func(b *builder.Builder, data map[string]any, rules validation.Rules) (builder.WriteResult, error) {
				return b.Update(cmd.Context(), id, data, rules)
			})
		},
	}

	opts.register(cmd)
	return cmd
}

type writeFunc func(b *builder.Builder, data map[string]any, rules validation.Rules) (builder.WriteResult, error)

func runWrite(opts *WriteOptions, cmd *cobra.Command, table, verb string, write writeFunc) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	data, rules, err := opts.load(formatter)
	if err != nil {
		return err
	}
	formatter.VerboseLog("Loaded %d field(s), %d rule spec(s)", len(data), len(rules))

	sess, err := openSession(cmd.Context(), opts.RootOptions, cmd, formatter)
	if err != nil {
		return err
	}
	defer sess.Close()

	res, err := write(sess.builder(table), data, rules)
	if err != nil {
		return formatter.Fail(ExitCommandError, "write failed", err)
	}
	return outputWrite(formatter, verb, res)
}

// WriteOutput is the result of create, update and delete.
type WriteOutput struct {
	builder.WriteResult
	verb string
}

func (w WriteOutput) String() string {
	return fmt.Sprintf("%s %d row(s)", w.verb, w.RowsAffected)
}

// outputWrite prints res. Validation errors and zero affected rows exit 1.
func outputWrite(f *OutputFormatter, verb string, res builder.WriteResult) error {
	if res.Errors != nil {
		if f.Format == "json" {
			_ = f.Error(ErrCodeValidationFailed, "record failed validation", res.Errors)
		} else {
			printValidationErrors(f, res.Errors)
		}
		return NewExitError(ExitFailure, ErrCodeValidationFailed)
	}

	if err := f.Success(WriteOutput{WriteResult: res, verb: verb}); err != nil {
		return err
	}
	if !res.Success {
		return NewExitError(ExitFailure, "no rows affected")
	}
	return nil
}
