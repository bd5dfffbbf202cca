package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/folio/internal/build"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Build the site",
	Long: `Build the site from the input directory into the output directory.

Examples:
  folio build                          # Development build
  ELEVENTY_PRODUCTION=1 folio build    # Minified production build
  GITHUB_REPOSITORY=jane/site folio build --production`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	s, err := loadSite()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := build.NewBuilder(s.cfg, s.registry, s.logger, s.metrics).Build(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d pages and copied %d files to %s in %s (%s)\n",
		len(result.Pages), result.Copied, s.cfg.Dir.Output, result.Duration.Round(time.Millisecond), s.cfg.Mode)
	return nil
}
