// Package cli provides the rollcast command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/rollcast/pkg/log"
)

// CLI holds the command tree and its configuration. Each instance owns its
// own viper so that tests can run commands side by side.
type CLI struct {
	version  string
	cfgFile  string
	v        *viper.Viper
	rootCmd  *cobra.Command
	output   io.Writer
	errorOut io.Writer
}

// NewCLI creates the command tree writing to stdout and stderr.
func NewCLI(version string) *CLI {
	return NewCLIWithOutput(version, os.Stdout, os.Stderr)
}

// NewCLIWithOutput creates a CLI with custom output writers.
func NewCLIWithOutput(version string, output, errorOut io.Writer) *CLI {
	c := &CLI{
		version:  version,
		v:        newViper(),
		output:   output,
		errorOut: errorOut,
	}
	c.setupCommands()
	return c
}

// Execute runs the CLI with args.
func (c *CLI) Execute(ctx context.Context, args []string) error {
	c.rootCmd.SetArgs(args)
	return c.rootCmd.ExecuteContext(ctx)
}

func (c *CLI) setupCommands() {
	c.rootCmd = &cobra.Command{
		Use:   "rollcast",
		Short: "Rolling per-key time-series forecasts and tabular model training",
		Long: `rollcast forecasts every key of a long-format table with a rolling
window of auto-selected autoregressive models, scores the forecasts and
trains gradient-boosted or random-forest point predictors.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.initializeConfig,
	}
	c.rootCmd.SetOut(c.output)
	c.rootCmd.SetErr(c.errorOut)

	flags := c.rootCmd.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (default: ./rollcast.yaml)")
	flags.StringP("log-level", "l", defaultLogLevel, "log level (debug, info, warn, error)")
	_ = c.v.BindPFlag(keyLogLevel, flags.Lookup("log-level"))

	c.rootCmd.AddCommand(
		c.newForecastCmd(),
		c.newEvaluateCmd(),
		c.newTrainCmd(),
		c.newPredictCmd(),
		c.newPlotCmd(),
		c.newVersionCmd(),
	)
}

func (c *CLI) initializeConfig(cmd *cobra.Command, args []string) error {
	if err := loadConfig(c.v, c.cfgFile); err != nil {
		return err
	}
	if err := log.SetupLogger(c.v.GetString(keyLogLevel), c.errorOut); err != nil {
		return err
	}
	if used := c.v.ConfigFileUsed(); used != "" {
		log.GetLoggerWithName("cli").Debug("Using config file", "path", used)
	}
	return nil
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(c.output, "rollcast %s\n", c.version)
			return nil
		},
	}
}

// Status lines go to errorOut so that tables written to stdout stay clean.

func (c *CLI) printSuccess(format string, a ...interface{}) {
	fmt.Fprintf(c.errorOut, "%s %s\n", color.GreenString("[rollcast]"), fmt.Sprintf(format, a...))
}

func (c *CLI) printInfo(format string, a ...interface{}) {
	fmt.Fprintf(c.errorOut, "%s %s\n", color.CyanString("[rollcast]"), fmt.Sprintf(format, a...))
}

func (c *CLI) printWarning(format string, a ...interface{}) {
	fmt.Fprintf(c.errorOut, "%s %s\n", color.YellowString("[rollcast]"), fmt.Sprintf(format, a...))
}

// PrintError writes err as a red status line.
func (c *CLI) PrintError(err error) {
	fmt.Fprintf(c.errorOut, "%s %s\n", color.RedString("[rollcast]"), err)
}
