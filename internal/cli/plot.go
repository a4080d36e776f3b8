package cli

import (
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/rollcast/frame"
	"github.com/YuminosukeSato/rollcast/report"
)

func (c *CLI) newPlotCmd() *cobra.Command {
	var input, forecastPath, outDir string
	var cols report.Columns

	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Draw actual and forecast values of every key as PNG files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := frame.ReadCSVFile(input)
			if err != nil {
				return err
			}
			preds, err := frame.ReadCSVFile(forecastPath)
			if err != nil {
				return err
			}
			paths, err := report.SaveForecastPlots(table, preds, cols, outDir)
			if err != nil {
				return err
			}
			c.printSuccess("Wrote %d plots to %s", len(paths), outDir)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&input, "input", "i", "", "input CSV file")
	flags.StringVar(&forecastPath, "forecast", "", "forecast CSV written by the forecast command")
	flags.StringVar(&cols.Value, "value", "", "value column")
	flags.StringVar(&cols.Key, "key", "", "key column")
	flags.StringVar(&cols.Pred, "column", "pred", "prediction column of the forecast file")
	flags.StringVar(&outDir, "out-dir", "plots", "directory for the PNG files")
	for _, name := range []string{"input", "forecast", "value", "key"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
