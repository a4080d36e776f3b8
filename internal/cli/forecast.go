package cli

import (
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/rollcast/forecast"
	"github.com/YuminosukeSato/rollcast/frame"
	"github.com/YuminosukeSato/rollcast/metrics"
)

type forecastOptions struct {
	input   string
	value   string
	key     string
	column  string
	output  string
	format  string
	summary bool
}

func (c *CLI) newForecastCmd() *cobra.Command {
	var o forecastOptions

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Run the rolling forecast over every key of a CSV table",
		Long: `Read a long-format CSV, forecast each key with a rolling window of
auto-selected autoregressive models and write the predictions indexed by the
input row index. Rows without a forecast are written empty.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runForecast(cmd, o)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&o.input, "input", "i", "", "input CSV file")
	flags.StringVar(&o.value, "value", "", "value column to forecast")
	flags.StringVar(&o.key, "key", "", "key column identifying each series")
	flags.StringVar(&o.column, "column", "pred", "name of the prediction column")
	flags.StringVarP(&o.output, "output", "o", "", "output file (default: stdout)")
	flags.StringVar(&o.format, "format", "", "output format: csv or json (default: from extension)")
	flags.BoolVar(&o.summary, "summary", false, "print the mean absolute error of the forecasts")
	flags.Int("min-len", forecast.DefaultMinLen, "history required before the first fit")
	flags.Int("pred-period", forecast.DefaultPredPeriod, "horizon forecast after each refit")
	flags.Int("workers", 1, "keys forecast concurrently")
	flags.String("method", "arima", "window model: arima, stepwise or trend")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("value")
	_ = cmd.MarkFlagRequired("key")
	_ = c.v.BindPFlag(keyForecastMinLen, flags.Lookup("min-len"))
	_ = c.v.BindPFlag(keyForecastPredPer, flags.Lookup("pred-period"))
	_ = c.v.BindPFlag(keyForecastWorkers, flags.Lookup("workers"))
	_ = c.v.BindPFlag(keyForecastMethod, flags.Lookup("method"))
	return cmd
}

func (c *CLI) runForecast(cmd *cobra.Command, o forecastOptions) error {
	s := c.settings()
	table, err := frame.ReadCSVFile(o.input)
	if err != nil {
		return err
	}

	forecaster, err := forecast.ForecasterByName(s.Method)
	if err != nil {
		return err
	}
	engine, err := forecast.NewEngine(
		forecast.WithForecaster(forecaster),
		forecast.WithMinLen(s.MinLen),
		forecast.WithPredPeriod(s.PredPeriod),
		forecast.WithWorkers(s.Workers),
	)
	if err != nil {
		return err
	}
	run, err := engine.Run(cmd.Context(), table, o.value, o.key)
	if err != nil {
		return err
	}
	preds, err := run.Table(o.column)
	if err != nil {
		return err
	}

	for _, f := range run.Failures {
		c.printWarning("key %q: %v", f.Key, f.Err)
	}
	if run.SkippedRows > 0 {
		c.printWarning("%d rows without a %s value were not forecast", run.SkippedRows, o.key)
	}
	if err := c.writeTable(preds, o.output, o.format); err != nil {
		return err
	}
	c.printSuccess("Forecast %d keys (%d failed) in %s", run.Keys, len(run.Failures), run.Duration.Round(time.Millisecond))

	if o.summary {
		joined, err := attachPredictions(table, preds, o.column)
		if err != nil {
			return err
		}
		overall, _, err := metrics.ComputeError(joined, o.column, o.value, "")
		if err != nil {
			return err
		}
		c.printInfo("Mean absolute error: %s", frame.FormatFloat(overall))
	}
	return nil
}

// attachPredictions adds column to a copy of table, taking for every row
// the last prediction produced for its index label. Rows without one get NaN.
func attachPredictions(table, preds *frame.Table, column string) (*frame.Table, error) {
	values, err := preds.Floats(column)
	if err != nil {
		return nil, err
	}
	byIndex := make(map[int]float64, len(values))
	for i, v := range values {
		byIndex[preds.IndexAt(i)] = v
	}

	out := table.Take(allRows(table.Len()))
	col := make([]float64, table.Len())
	for i := range col {
		v, ok := byIndex[table.IndexAt(i)]
		if !ok {
			v = math.NaN()
		}
		col[i] = v
	}
	if err := out.AddFloat(column, col); err != nil {
		return nil, err
	}
	return out, nil
}

func allRows(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}
