package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ppiankov/factstrip/internal/model"
)

// version is overridden at build time with -ldflags "-X ...cli.version=..."
var version = "v0.1.0"

var (
	cfgFile string
	verbose bool
	logger  = zap.NewNop()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "factstrip",
	Short: "FactStrip - check a statement and get a comic-strip verdict",
	Long: `FactStrip sends a statement to a verification backend and shows the
verdict, confidence, mood and comic strip it returns.

Every successful check is kept in a bounded local history (newest first)
together with simple analytics: how many checks came back true, false or
unverified.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		l, err := newLogger(cfg.Log, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "factstrip %s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.factstrip/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().String("backend", "", "verification backend base URL")
	rootCmd.PersistentFlags().String("storage", "", "history storage driver (file, sqlite, redis, memory)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("backend.url", rootCmd.PersistentFlags().Lookup("backend"))
	_ = viper.BindPFlag("storage.driver", rootCmd.PersistentFlags().Lookup("storage"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads .env, the config file and FACTSTRIP_* variables
func initConfig() {
	// a missing .env is normal
	_ = godotenv.Load()

	configureViper(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".factstrip"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// configureViper registers defaults and the FACTSTRIP_ env mapping on v.
// backend.url is read from FACTSTRIP_BACKEND_URL.
func configureViper(v *viper.Viper) {
	v.SetEnvPrefix("FACTSTRIP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := model.DefaultConfig()
	v.SetDefault("backend.url", d.Backend.URL)
	v.SetDefault("backend.timeout_seconds", d.Backend.TimeoutSeconds)
	v.SetDefault("backend.rate_per_second", d.Backend.RatePerSecond)
	v.SetDefault("backend.burst", d.Backend.Burst)
	v.SetDefault("backend.user_agent", d.Backend.UserAgent)
	v.SetDefault("backend.http_proxy", d.Backend.HTTPProxy)
	v.SetDefault("backend.https_proxy", d.Backend.HTTPSProxy)
	v.SetDefault("backend.no_proxy", d.Backend.NoProxy)

	v.SetDefault("explain.provider", d.Explain.Provider)
	v.SetDefault("explain.url", d.Explain.URL)
	v.SetDefault("explain.model", d.Explain.Model)
	v.SetDefault("explain.api_key", d.Explain.APIKey)
	v.SetDefault("explain.base_url", d.Explain.BaseURL)
	v.SetDefault("explain.timeout_seconds", d.Explain.TimeoutSeconds)
	v.SetDefault("explain.rate_per_second", d.Explain.RatePerSecond)
	v.SetDefault("explain.burst", d.Explain.Burst)
	v.SetDefault("explain.fill_missing", d.Explain.FillMissing)

	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.redis_url", d.Storage.RedisURL)
	v.SetDefault("storage.key", d.Storage.Key)
	v.SetDefault("storage.quota_bytes", d.Storage.QuotaBytes)

	v.SetDefault("history.capacity", d.History.Capacity)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.allow_origins", d.Server.AllowOrigins)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// loadConfig decodes the effective configuration out of v
func loadConfig(v *viper.Viper) (model.Config, error) {
	var cfg model.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if cfg.History.Capacity <= 0 {
		return cfg, fmt.Errorf("history.capacity must be positive, got %d", cfg.History.Capacity)
	}
	if cfg.Backend.URL == "" {
		return cfg, fmt.Errorf("backend.url is required")
	}
	return cfg, nil
}

// newLogger builds the process logger. Logs go to stderr so stdout stays clean for --json.
func newLogger(cfg model.LogConfig, verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	config.Level = zap.NewAtomicLevelAt(level)

	switch cfg.Format {
	case "", "console":
		config.Encoding = "console"
		config.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	case "json":
	default:
		return nil, fmt.Errorf("log.format: unknown format %q (json, console)", cfg.Format)
	}
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	return config.Build()
}
