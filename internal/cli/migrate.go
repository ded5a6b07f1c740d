package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// MigrateOutput is the result of the migrate command.
type MigrateOutput struct {
	Version int `json:"version"`
	Scripts int `json:"scripts"`
}

func (m MigrateOutput) String() string {
	return fmt.Sprintf("schema at version %d (%d script(s))", m.Version, m.Scripts)
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <script.sql>...",
		Short: "Apply schema scripts in order",
		Long: `Apply SQL scripts to the configured database. The n-th script brings the
schema to version n; scripts already applied are skipped, so the same list
can be run repeatedly.

Example:
  ijdorm migrate --db app.db schema/001_users.sql schema/002_posts.sql`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			formatter := newFormatter(rootOpts, cmd)

			scripts := make([]string, len(args))
			for i, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					code := ErrCodeLoadFailed
					if os.IsNotExist(err) {
						code = ErrCodeNotFound
					}
					_ = formatter.Error(code, err.Error(), nil)
					return WrapExitError(ExitCommandError, code, err)
				}
				scripts[i] = string(data)
			}

			sess, err := openSession(ctx, rootOpts, cmd, formatter)
			if err != nil {
				return err
			}
			defer sess.Close()

			version, err := sess.store.Migrate(ctx, scripts)
			if err != nil {
				return formatter.Fail(ExitCommandError, "migration failed", err)
			}
			return formatter.Success(MigrateOutput{Version: version, Scripts: len(scripts)})
		},
	}
}
