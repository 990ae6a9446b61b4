package main

import (
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	appMaintenance "github.com/gameshelf/gameshelf/internal/application/maintenance"
	"github.com/gameshelf/gameshelf/internal/config"
	"github.com/gameshelf/gameshelf/internal/infrastructure/postgres"
)

// Config keys; each is also readable from the environment with the
// GAMESHELF_ prefix (e.g. GAMESHELF_DATABASE_URL).
const (
	cfgKeyDatabaseURL = "database_url"
	cfgKeyChunkSize   = "chunk_size"
)

// Global flag values.
var (
	flagDatabaseURL string
	flagChunkSize   int
)

// Initialized by PersistentPreRunE so all subcommands can use them.
var (
	pool   *pgxpool.Pool
	maint  *appMaintenance.Service
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "gameshelf-maint",
	Short: "Operator tools for the game state exclusivity engine",
	Long: `gameshelf-maint runs the maintenance pipeline for the tracking sets:
conflict auditing, pre-resolution backups, chunked conflict resolution,
and soft/hard rollback of the exclusivity guard.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

		v := viper.New()
		v.SetEnvPrefix("GAMESHELF")
		v.AutomaticEnv()
		v.SetDefault(cfgKeyChunkSize, 1000)
		if err := v.BindPFlag(cfgKeyDatabaseURL, cmd.Flags().Lookup("database-url")); err != nil {
			return err
		}
		if err := v.BindPFlag(cfgKeyChunkSize, cmd.Flags().Lookup("chunk-size")); err != nil {
			return err
		}

		dsn := v.GetString(cfgKeyDatabaseURL)
		if dsn == "" {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			dsn = cfg.DatabaseURL
		}

		p, err := postgres.NewPool(cmd.Context(), dsn, 0)
		if err != nil {
			return err
		}
		pool = p

		if err := postgres.RunMigrations(cmd.Context(), pool); err != nil {
			pool.Close()
			return err
		}

		maint = appMaintenance.NewService(postgres.NewResolutionStore(pool), v.GetInt(cfgKeyChunkSize), logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if pool != nil {
			pool.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDatabaseURL, "database-url", "", "postgres connection string (default: GAMESHELF_DATABASE_URL or POSTGRES_* env)")
	rootCmd.PersistentFlags().IntVar(&flagChunkSize, "chunk-size", 1000, "conflicting pairs resolved per transaction")

	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(pipelineCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(reinstateCmd)
	rootCmd.AddCommand(enforcementCmd)
	rootCmd.AddCommand(conflictLogCmd)
}
