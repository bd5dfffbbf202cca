package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/folio/internal/build"
	"github.com/conneroisu/folio/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s", "dev"},
	Short:   "Build, watch and serve the site",
	Long: `Build the site, serve the output directory and rebuild on change.

Open pages reload over a WebSocket after each rebuild. Requests for
missing files are answered with the built 404 page.

Examples:
  folio serve                  # Serve on localhost:8080
  folio serve --port 3000      # Serve on a custom port
  folio serve --host 0.0.0.0   # Listen on all interfaces`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")

	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
}

func runServe(cmd *cobra.Command, args []string) error {
	s, err := loadSite()
	if err != nil {
		return err
	}
	if s.cfg.IsProduction() {
		s.logger.Warn(commandContext(cmd), nil, "serving a production build; live reload and the 404 fallback are disabled")
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	builder := build.NewBuilder(s.cfg, s.registry, s.logger, s.metrics)
	srv := server.New(s.cfg, s.registry, builder, s.logger, s.metrics)

	prefix := "/"
	if s.result.PathPrefix != "" {
		prefix = "/" + s.result.PathPrefix + "/"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s at http://%s:%d%s\n",
		s.cfg.Dir.Output, s.cfg.Server.Host, s.cfg.Server.Port, prefix)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
