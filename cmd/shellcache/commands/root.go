// Package commands implements the CLI commands for shellcache.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/shellcache/internal/app"
	"go.trai.ch/shellcache/internal/build"
	"go.trai.ch/shellcache/internal/core/domain"
)

// CLI represents the command line interface for shellcache.
type CLI struct {
	app     Application
	logs    app.LogSettings
	rootCmd *cobra.Command

	configPath string
	origin     string
	listen     string
}

// Application represents the application logic interface.
type Application interface {
	Serve(ctx context.Context, opts app.ServeOptions) error
	Install(ctx context.Context, opts app.ConfigOptions) error
	ListCaches(ctx context.Context, opts app.ConfigOptions) ([]domain.GenerationInfo, error)
	CleanCaches(ctx context.Context, opts app.CleanOptions) error
}

// Option configures a CLI.
type Option func(*CLI)

// WithLogSettings lets the global flags switch the logger mode.
func WithLogSettings(logs app.LogSettings) Option {
	return func(c *CLI) {
		c.logs = logs
	}
}

// New creates a new CLI instance with the given app.
func New(a Application, opts ...Option) *CLI {
	rootCmd := &cobra.Command{
		Use:           "shellcache",
		Short:         "An offline caching proxy for web app shells",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}
	for _, opt := range opts {
		opt(c)
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "Path to "+domain.ConfigFileName)
	flags.StringVar(&c.origin, "origin", "", "Upstream origin, overrides the config file")
	flags.StringVar(&c.listen, "listen", "", "Proxy listen address, overrides the config file")
	flags.Bool("log-json", false, "Write logs as JSON")
	flags.BoolP("verbose", "v", false, "Enable debug logging")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		if c.logs == nil {
			return
		}
		jsonLogs, _ := cmd.Flags().GetBool("log-json")
		verbose, _ := cmd.Flags().GetBool("verbose")
		c.logs.SetJSON(jsonLogs)
		c.logs.SetVerbose(verbose)
	}

	rootCmd.AddCommand(c.newServeCmd())
	rootCmd.AddCommand(c.newInstallCmd())
	rootCmd.AddCommand(c.newCachesCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// configOptions collects the global configuration flags.
func (c *CLI) configOptions() app.ConfigOptions {
	return app.ConfigOptions{
		ConfigPath: c.configPath,
		Origin:     c.origin,
		Listen:     c.listen,
	}
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}
