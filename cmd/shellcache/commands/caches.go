package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.trai.ch/shellcache/internal/app"
	"go.trai.ch/shellcache/internal/ui/style"
)

func (c *CLI) newCachesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "caches",
		Short: "Inspect and clean cache generations",
	}
	cmd.AddCommand(c.newCachesListCmd())
	cmd.AddCommand(c.newCachesCleanCmd())
	return cmd
}

func (c *CLI) newCachesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cache generations, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos, err := c.app.ListCaches(cmd.Context(), c.configOptions())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(infos) == 0 {
				_, _ = fmt.Fprintln(out, "no caches")
				return nil
			}
			for _, info := range infos {
				_, _ = fmt.Fprintf(out, "%s %s (%d entries)\n", style.Active(info.Active), info.Name, info.Entries)
			}
			return nil
		},
	}
}

func (c *CLI) newCachesCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete cache generations the active version does not use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, _ := cmd.Flags().GetBool("all")
			return c.app.CleanCaches(cmd.Context(), app.CleanOptions{
				ConfigOptions: c.configOptions(),
				All:           all,
			})
		},
	}
	cmd.Flags().BoolP("all", "a", false, "Delete every generation and forget the active version")
	return cmd
}
