package cmd

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List the hooks the site configuration registers",
	Long: `List plugins, transforms, filters, data extensions, passthrough copies
and watch targets registered for the current mode.

Examples:
  folio plugins                             # Development hooks
  ELEVENTY_PRODUCTION=1 folio plugins       # Production hooks`,
	RunE: runPlugins,
}

func init() {
	rootCmd.AddCommand(pluginsCmd)
}

func runPlugins(cmd *cobra.Command, args []string) error {
	s, err := loadSite()
	if err != nil {
		return err
	}
	reg := s.registry

	transforms := make([]string, 0, len(reg.Transforms()))
	for _, t := range reg.Transforms() {
		transforms = append(transforms, t.Name)
	}
	filters := make([]string, 0, len(reg.Filters()))
	for name := range reg.Filters() {
		filters = append(filters, name)
	}
	sort.Strings(filters)
	copies := make([]string, 0, len(reg.PassthroughCopies()))
	for _, p := range reg.PassthroughCopies() {
		copies = append(copies, p.Source+" -> "+p.Dest)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Mode\t%s\n", s.cfg.Mode)
	fmt.Fprintf(w, "Plugins\t%s\n", list(reg.PluginNames()))
	fmt.Fprintf(w, "Transforms\t%s\n", list(transforms))
	fmt.Fprintf(w, "Filters\t%s\n", list(filters))
	fmt.Fprintf(w, "Data extensions\t%s\n", list(reg.DataExtensions()))
	fmt.Fprintf(w, "Passthrough\t%s\n", list(copies))
	fmt.Fprintf(w, "Watch targets\t%s\n", list(reg.WatchTargets()))
	fmt.Fprintf(w, "Ready callbacks\t%d\n", len(reg.ReadyFuncs()))
	return w.Flush()
}

func list(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
