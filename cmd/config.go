package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/folio/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration",
	Long: `Print the configuration after flags, environment, .env and the config
file have been applied, including the build mode and path prefix.`,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

// resolvedConfig adds the derived fields that Config keeps out of YAML
type resolvedConfig struct {
	Mode          string `yaml:"mode"`
	PathPrefix    string `yaml:"pathPrefix"`
	config.Config `yaml:",inline"`
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(resolvedConfig{
		Mode:       cfg.Mode.String(),
		PathPrefix: cfg.PathPrefix,
		Config:     *cfg,
	})
}
