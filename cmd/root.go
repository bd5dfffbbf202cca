package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/folio/internal/config"
	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/metrics"
	"github.com/conneroisu/folio/internal/plugins"
	"github.com/conneroisu/folio/internal/siteconfig"
)

var (
	cfgFile string
	envFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "A static site generator for academic personal sites",
	Long: `folio builds a source tree of HTML and Markdown pages, layouts and data
files into a static site. BibTeX data files become APA bibliographies.

Quick Start:
  folio serve      Build, watch and serve with live reload
  folio build      Build the site into _site/

Set ELEVENTY_PRODUCTION=1 for a minified production build.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.SetGlobalNormalizationFunc(normalizeFlagName)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .folio.yml, can also use FOLIO_CONFIG_FILE env var)")
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.String("input", "src", "input directory")
	flags.String("output", "_site", "output directory")
	flags.Bool("production", false, "build for production (same as ELEVENTY_PRODUCTION=1)")

	viper.BindPFlag("log.level", flags.Lookup("log-level"))
	viper.BindPFlag("log.format", flags.Lookup("log-format"))
	viper.BindPFlag("dir.input", flags.Lookup("input"))
	viper.BindPFlag("dir.output", flags.Lookup("output"))
}

// normalizeFlagName accepts "_" and "." as word separators, so that
// --log_level and --log.level both mean --log-level.
func normalizeFlagName(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.NewReplacer("_", "-", ".", "-").Replace(name))
}

// initConfig loads the dotenv file, locates the config file and binds the
// environment. The --production flag is applied only when given, so an
// unset flag never masks ELEVENTY_PRODUCTION.
func initConfig() {
	if err := config.LoadDotEnv(envFile); err != nil {
		fmt.Fprintln(os.Stderr, "Warning:", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("FOLIO_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".folio")
	}

	if err := config.BindEnv(viper.GetViper()); err != nil {
		fmt.Fprintln(os.Stderr, "Warning:", err)
	}

	if f := rootCmd.PersistentFlags().Lookup("production"); f != nil && f.Changed {
		if f.Value.String() == "true" {
			viper.Set("production", "1")
		} else {
			viper.Set("production", "")
		}
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// site is everything a command needs to build or serve
type site struct {
	cfg      *config.Config
	logger   logging.Logger
	registry *plugins.Registry
	metrics  *metrics.Recorder
	result   *siteconfig.Result
}

// loadSite resolves the configuration and applies the site configuration
// to a fresh registry.
func loadSite() (*site, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})

	reg := plugins.NewRegistry()
	rec := metrics.NewRecorder()
	result, err := siteconfig.Apply(cfg, reg, logger, rec)
	if err != nil {
		return nil, err
	}

	return &site{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		metrics:  rec,
		result:   result,
	}, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
