package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/terraconstructs/authresolve/internal/config"
)

var (
	cfg     *config.Config
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "authd",
	Short: "Identity and permission resolution service",
	Long: `authd resolves the caller of a request from its session cookies, persistent
login token or API token, and computes the caller's effective roles and
permissions across every configured grant source.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config file: %w", err)
			}
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		if cfg.Debug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to a YAML config file")
	flags.String("db-url", "", "Database connection URL (env: AUTHRESOLVE_DATABASE_URL)")
	flags.String("server-addr", "", "Server bind address (env: AUTHRESOLVE_SERVER_ADDR)")
	flags.String("session-backend", "", "Session store backend: sql, redis, bolt, memory (env: AUTHRESOLVE_SESSION_BACKEND)")
	flags.Bool("debug", false, "Enable debug logging (env: AUTHRESOLVE_DEBUG)")

	bindFlag("database_url", "db-url")
	bindFlag("server_addr", "server-addr")
	bindFlag("session.backend", "session-backend")
	bindFlag("debug", "debug")
}

// bindFlag makes an explicitly set flag override env and file values.
func bindFlag(key, flag string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag, err))
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
