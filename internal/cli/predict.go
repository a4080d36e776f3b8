package cli

import (
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/rollcast/frame"
	"github.com/YuminosukeSato/rollcast/training"
)

func (c *CLI) newPredictCmd() *cobra.Command {
	var input, modelPath, column, output, format string

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict a CSV table with a model written by train",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			artifact, err := training.LoadModel(modelPath)
			if err != nil {
				return err
			}
			table, err := frame.ReadCSVFile(input)
			if err != nil {
				return err
			}
			pred, err := artifact.Predict(table)
			if err != nil {
				return err
			}
			out := frame.NewWithIndex(table.Index())
			if err := out.AddFloat(column, pred); err != nil {
				return err
			}
			if err := c.writeTable(out, output, format); err != nil {
				return err
			}
			c.printSuccess("Predicted %d rows with %s model %s", table.Len(), artifact.Kind, artifact.RunID)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&input, "input", "i", "", "input CSV file")
	flags.StringVar(&modelPath, "model-file", "", "model file written by train --model-out")
	flags.StringVar(&column, "column", "pred", "name of the prediction column")
	flags.StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	flags.StringVar(&format, "format", "", "output format: csv or json (default: from extension)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("model-file")
	return cmd
}
