package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/shellcache/internal/app"
)

func (c *CLI) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the caching proxy in front of the origin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			watch, _ := cmd.Flags().GetBool("watch")
			return c.app.Serve(cmd.Context(), app.ServeOptions{
				ConfigOptions: c.configOptions(),
				Watch:         watch,
			})
		},
	}
	cmd.Flags().BoolP("watch", "w", false, "Install a new version when the config file changes")
	return cmd
}
