package cli

import (
	"math"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/rollcast/frame"
	"github.com/YuminosukeSato/rollcast/metrics"
)

type evaluateOptions struct {
	input    string
	forecast string
	pred     string
	target   string
	group    string
	output   string
}

// groupError is one row of the per-group error report.
type groupError struct {
	Group string   `json:"group"`
	Error *float64 `json:"error"`
}

// evaluation is the JSON written by the evaluate command. Undefined errors
// are written as null.
type evaluation struct {
	Rows              int          `json:"rows"`
	MeanAbsoluteError *float64     `json:"mean_absolute_error"`
	Groups            []groupError `json:"groups,omitempty"`
}

func (c *CLI) newEvaluateCmd() *cobra.Command {
	var o evaluateOptions

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Compute the mean absolute error of predictions",
		Long: `Compute the mean absolute error between a prediction column and a
target column, overall and optionally per group. Predictions can come from the
input itself or from a forecast file written by the forecast command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runEvaluate(o)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&o.input, "input", "i", "", "input CSV file")
	flags.StringVar(&o.forecast, "forecast", "", "forecast CSV joined to the input by row index")
	flags.StringVar(&o.pred, "pred", "pred", "prediction column")
	flags.StringVar(&o.target, "target", "", "target column")
	flags.StringVar(&o.group, "group", "", "column to aggregate the error by")
	flags.StringVarP(&o.output, "output", "o", "", "output JSON file (default: stdout)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func (c *CLI) runEvaluate(o evaluateOptions) error {
	table, err := frame.ReadCSVFile(o.input)
	if err != nil {
		return err
	}
	if o.forecast != "" {
		preds, err := frame.ReadCSVFile(o.forecast)
		if err != nil {
			return err
		}
		if table, err = attachPredictions(table, preds, o.pred); err != nil {
			return err
		}
	}

	overall, groups, err := metrics.ComputeError(table, o.pred, o.target, o.group)
	if err != nil {
		return err
	}

	res := evaluation{Rows: table.Len(), MeanAbsoluteError: defined(overall)}
	if groups != nil {
		errs, err := groups.Floats(metrics.ErrorColumn)
		if err != nil {
			return err
		}
		keys, err := groups.Column(o.group)
		if err != nil {
			return err
		}
		for i, e := range errs {
			res.Groups = append(res.Groups, groupError{Group: keys.String(i), Error: defined(e)})
		}
	}
	if err := c.writeJSON(res, o.output); err != nil {
		return err
	}
	c.printSuccess("Mean absolute error %s over %d rows", frame.FormatFloat(overall), table.Len())
	return nil
}

func defined(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
