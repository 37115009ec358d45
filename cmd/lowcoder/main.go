package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/lychee-technology/lowcoder"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	cfgFile  string
	logLevel string
	version  = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "lowcoder",
	Short: "LowCoder: spreadsheets in, generated web applications out",
	Long: `LowCoder imports spreadsheets into an editable project schema and
generates a runnable Django application from it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return setupLogger(cfg.Logging)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", getenvDefault("LOWCODER_CONFIG", ""), "config file (yaml or json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides logging.level")
}

func main() {
	_ = godotenv.Load()

	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogger(lc lowcoder.LoggingConfig) error {
	level := lc.Level
	if level == "" {
		level = "info"
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	if strings.EqualFold(lc.Format, lowcoder.LogFormatConsole) {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return nil
}

// loadConfig reads the config file and applies environment overrides. A
// non-empty --log-level wins over LOG_LEVEL and logging.level.
func loadConfig() (*lowcoder.Config, error) {
	cfg, err := lowcoder.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	db := &cfg.Database
	db.Host = getenvDefault("DB_HOST", db.Host)
	db.Port = getenvDefaultInt("DB_PORT", db.Port)
	db.Database = getenvDefault("DB_NAME", db.Database)
	db.Username = getenvDefault("DB_USER", db.Username)
	db.Password = getenvDefault("DB_PASSWORD", db.Password)
	db.SSLMode = getenvDefault("DB_SSL_MODE", db.SSLMode)

	st := &cfg.Storage
	st.Backend = getenvDefault("STORAGE_BACKEND", st.Backend)
	st.S3Bucket = getenvDefault("S3_BUCKET", st.S3Bucket)
	st.S3Endpoint = getenvDefault("S3_ENDPOINT", st.S3Endpoint)
	st.S3AccessKey = getenvDefault("AWS_ACCESS_KEY_ID", st.S3AccessKey)
	st.S3SecretKey = getenvDefault("AWS_SECRET_ACCESS_KEY", st.S3SecretKey)

	lg := &cfg.Logging
	lg.Level = getenvDefault("LOG_LEVEL", lg.Level)
	lg.Format = getenvDefault("LOG_FORMAT", lg.Format)
	if logLevel != "" {
		lg.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getenvDefaultInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}
