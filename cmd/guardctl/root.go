package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bryanwahyu/advisor-guard/internal/config"
	"github.com/bryanwahyu/advisor-guard/internal/infra/db"
	"github.com/bryanwahyu/advisor-guard/internal/infra/db/sqlrepo"
)

var (
	cfg        *config.Config
	configPath string
)

var rootCmd = &cobra.Command{
	Use:           "guardctl",
	Short:         "Operate the advisor answer guard",
	Long:          "Offline answer validation, audit statistics and data seeding for the advisor answer guard.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.Path()
		}
		c, err := config.Load(path)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		return config.InitLogger(cfg.Log)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $CONFIG_PATH or ./config.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Stderr.WriteString("guardctl: " + err.Error() + "\n") //nolint:errcheck
		os.Exit(1)
	}
}

func openDB(ctx context.Context) (*sql.DB, sqlrepo.Dialect, error) {
	return db.Open(ctx, cfg.DBOptions())
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
