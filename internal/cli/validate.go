package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/PseudoDevs/IamJohnDevORM/internal/form"
	"github.com/PseudoDevs/IamJohnDevORM/internal/validation"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	DataFile  string
	FormFile  string
	RulesFile string
	Files     map[string]string // field -> local path of an upload
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a record against a rule set",
		Long: `Validate the record in --data, or the URL-encoded request body in
--form, against the rule set in --rules without touching a database.

Rule sets map field names to rule specs such as "required|min:3|max:20".
The unique and exists rules need a database: pass --db to enable them.
The file rules see the uploads given with --files field=path.

Exits 0 when the record is valid, 1 when it is not, 2 on command errors.

Example:
  ijdorm validate --data signup.yaml --rules signup.cue
  ijdorm validate --data signup.json --rules signup.json --db app.db --format json
  ijdorm validate --form body.txt --files avatar=me.png --rules profile.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DataFile, "data", "", "record file (.json, .yaml or .cue)")
	cmd.Flags().StringVar(&opts.FormFile, "form", "", "URL-encoded request body file")
	cmd.Flags().StringVar(&opts.RulesFile, "rules", "", "rule set file (.json, .yaml or .cue) (required)")
	cmd.Flags().StringToStringVar(&opts.Files, "files", nil, "uploaded files as field=path pairs")
	_ = cmd.MarkFlagRequired("rules")
	cmd.MarkFlagsOneRequired("data", "form")
	cmd.MarkFlagsMutuallyExclusive("data", "form")

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd)

	req, data, err := loadRequest(opts)
	if err != nil {
		return formatter.Fail(ExitCommandError, "cannot load data", err)
	}
	rules, err := LoadRules(opts.RulesFile)
	if err != nil {
		return formatter.Fail(ExitCommandError, "cannot load rules", err)
	}
	formatter.VerboseLog("Validating %d field(s) and %d upload(s) against %d rule spec(s)", len(data), len(req.Files()), len(rules))

	engine := validation.New(validation.WithLogger(newLogger(opts.RootOptions, cmd.ErrOrStderr())))

	// Store-backed rules are only available with a database.
	if opts.Database != "" {
		sess, err := openSession(ctx, opts.RootOptions, cmd, formatter)
		if err != nil {
			return err
		}
		defer sess.Close()
		engine = engine.With(validation.WithLookup(func(ctx context.Context, table, column string, value any) (bool, error) {
			if table == "" {
				return false, fmt.Errorf("rule on %s needs a table parameter outside a write", column)
			}
			n, err := sess.builder(table).Where(column, "=", value).Count(ctx)
			return n > 0, err
		}))
	}

	var res validation.Result
	if opts.FormFile != "" {
		res, err = req.Validate(ctx, engine, rules)
	} else {
		res, err = engine.With(validation.WithFiles(req.Files())).Validate(ctx, data, rules)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, "validation aborted", err)
	}

	if !res.Valid {
		if formatter.Format == "json" {
			_ = formatter.Error(ErrCodeValidationFailed, "record failed validation", res.Errors)
		} else {
			printValidationErrors(formatter, res.Errors)
		}
		if opts.FormFile != "" {
			logOldInput(formatter, form.NewOld(data))
		}
		return NewExitError(ExitFailure, ErrCodeValidationFailed)
	}

	if formatter.Format == "json" {
		return formatter.Success(res)
	}
	formatter.Mark(true, "Record valid")
	return nil
}

// loadRequest reads the submitted input and the record to validate. A
// --form body is its own record. A --data record keeps its decoded types
// and gains the upload file names the way a form record does.
func loadRequest(opts *ValidateOptions) (*form.Request, map[string]any, error) {
	if opts.FormFile != "" {
		req, err := LoadForm(opts.FormFile, opts.Files)
		if err != nil {
			return nil, nil, err
		}
		return req, req.Record(), nil
	}

	rec, err := LoadRecord(opts.DataFile)
	if err != nil {
		return nil, nil, err
	}
	uploads, err := LoadUploads(opts.Files)
	if err != nil {
		return nil, nil, err
	}
	for field, f := range uploads {
		if _, taken := rec[field]; !taken {
			rec[field] = f.Name
		}
	}
	return form.NewRequest(nil, uploads), rec, nil
}

// logOldInput lists, in verbose mode, the escaped values a form would be
// refilled with after a rejected submission.
func logOldInput(f *OutputFormatter, old form.Old) {
	for _, field := range old.Fields() {
		v, _ := old.Get(field)
		f.VerboseLog("old %s=%s", field, v)
	}
}

// printValidationErrors writes one marked line per failed rule, fields and
// rules in sorted order.
func printValidationErrors(f *OutputFormatter, errs validation.Errors) {
	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		rules := make([]string, 0, len(errs[field]))
		for rule := range errs[field] {
			rules = append(rules, rule)
		}
		sort.Strings(rules)
		for _, rule := range rules {
			f.Mark(false, fmt.Sprintf("%s (%s): %s", field, rule, errs[field][rule]))
		}
	}
}
