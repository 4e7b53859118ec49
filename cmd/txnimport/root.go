package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/txnimport/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "dev"

// app carries the per-invocation configuration shared by every command.
type app struct {
	v       *viper.Viper
	cfgFile string
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "txnimport",
		Short: "Import CSV and XLSX transaction files",
		Long: `txnimport validates transaction files row by row, resolves accounts and
categories by name, skips transactions that already exist and reports
every row it could not import.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.initConfig,
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: $HOME/.config/txnimport/config.yaml)")
	flags.String("driver", "sqlite", "database driver (sqlite, postgres)")
	flags.String("db", "", "SQLite file path or PostgreSQL URL")
	flags.Int64("tenant", 0, "tenant id")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")

	// Bind flags to viper
	_ = a.v.BindPFlag("database.driver", flags.Lookup("driver"))
	_ = a.v.BindPFlag("database.dsn", flags.Lookup("db"))
	_ = a.v.BindPFlag("tenant", flags.Lookup("tenant"))
	_ = a.v.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("logging.format", flags.Lookup("log-format"))
	a.v.SetDefault("import.default_currency", "EUR")

	// Add commands
	cmd.AddCommand(a.importCmd())
	cmd.AddCommand(a.historyCmd())
	cmd.AddCommand(a.migrateCmd())
	cmd.AddCommand(a.tenantsCmd())
	cmd.AddCommand(a.accountsCmd())
	cmd.AddCommand(a.categoriesCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

func (a *app) initConfig(cmd *cobra.Command, _ []string) error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(filepath.Join(home, ".config", "txnimport"))
		}
		a.v.AddConfigPath(".")
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
	}

	// Environment variables: TXNIMPORT_DATABASE_DSN, TXNIMPORT_TENANT, ...
	a.v.SetEnvPrefix("TXNIMPORT")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Logs go to stderr so stdout stays parseable.
	slog.SetDefault(logging.New(cmd.ErrOrStderr(),
		a.v.GetString("logging.level"),
		a.v.GetString("logging.format"),
	))
	return nil
}

// tenantID returns the configured tenant or an error when none is set.
func (a *app) tenantID() (int64, error) {
	id := a.v.GetInt64("tenant")
	if id <= 0 {
		return 0, errors.New("tenant is required (--tenant or TXNIMPORT_TENANT)")
	}
	return id, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "txnimport %s\n", version)
		},
	}
}
