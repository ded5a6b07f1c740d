package cli

import (
	"context"
	"io"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/PseudoDevs/IamJohnDevORM/internal/builder"
	"github.com/PseudoDevs/IamJohnDevORM/internal/config"
	"github.com/PseudoDevs/IamJohnDevORM/internal/store"
)

// session is the per-command state of commands that talk to a store.
type session struct {
	store  *store.Store
	logger *slog.Logger
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// newLogger returns a text logger at Info, or Debug when verbose, and
// installs it as the slog default.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// openSession loads configuration, applies flag overrides and opens the
// store. Errors are already written to f.
func openSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command, f *OutputFormatter) (*session, error) {
	logger := newLogger(opts, cmd.ErrOrStderr())

	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		_ = f.Error(ErrCodeConfig, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, ErrCodeConfig, err)
	}
	if opts.Driver != "" {
		cfg.Driver = opts.Driver
	}
	if opts.Database != "" {
		cfg.DSN = opts.Database
	}
	if cfg.DSN == "" {
		err := NewExitError(ExitCommandError, "no database: set --db or "+config.EnvDSN)
		_ = f.Error(ErrCodeConfig, err.Message, nil)
		return nil, err
	}

	sc := cfg.StoreConfig()
	sc.Logger = logger
	logger.Debug("opening store", "driver", sc.Driver)
	st, err := store.Open(ctx, sc)
	if err != nil {
		_ = f.Error(ErrCodeStoreOpen, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, ErrCodeStoreOpen, err)
	}

	return &session{store: st, logger: logger}, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

func (s *session) builder(table string) *builder.Builder {
	return builder.New(s.store, table, builder.WithLogger(s.logger))
}

// parseID returns id as an int64 when it is a whole number, else as is.
func parseID(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}
