package cli

import (
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/rollcast/frame"
	"github.com/YuminosukeSato/rollcast/training"
)

type trainOptions struct {
	input       string
	target      string
	predictors  []string
	catCols     []string
	splitColumn string
	splitValues []string
	model       string
	modelOut    string
	report      string
	predictions string
	format      string
}

func (c *CLI) newTrainCmd() *cobra.Command {
	var o trainOptions

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a point-prediction model with hyperparameter search",
		Long: `Train an xgb, rf or catboost model on a CSV table. Categorical
predictors are one-hot encoded, rows matching the split values form the test
set, and the best model of the hyperparameter search is refit on the training
rows. The YAML report goes to --report or stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTrain(cmd, o)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&o.input, "input", "i", "", "input CSV file")
	flags.StringVar(&o.target, "target", "", "target column")
	flags.StringSliceVar(&o.predictors, "predictors", nil, "predictor columns")
	flags.StringSliceVar(&o.catCols, "cat-cols", nil, "categorical predictor columns")
	flags.StringVar(&o.splitColumn, "split-column", "", "column selecting the test rows")
	flags.StringSliceVar(&o.splitValues, "split-values", nil, "values of --split-column that form the test set")
	flags.StringVarP(&o.model, "model", "m", training.XGBoost.String(), "model kind: xgb, rf or catboost")
	flags.StringVar(&o.modelOut, "model-out", "", "write the trained model to this file")
	flags.StringVar(&o.report, "report", "", "YAML report file (default: stdout)")
	flags.StringVar(&o.predictions, "predictions", "", "write test-set predictions to this file")
	flags.StringVar(&o.format, "format", "", "predictions format: csv or json (default: from extension)")
	flags.Int("n-iter", 0, "randomized search iterations (0: model default)")
	flags.Int("cv", 0, "cross-validation folds (0: model default)")
	flags.Uint64("seed", 0, "random seed")
	flags.Int("n-jobs", 1, "candidates evaluated concurrently")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("predictors")
	_ = c.v.BindPFlag(keyTrainNIter, flags.Lookup("n-iter"))
	_ = c.v.BindPFlag(keyTrainCV, flags.Lookup("cv"))
	_ = c.v.BindPFlag(keyTrainSeed, flags.Lookup("seed"))
	_ = c.v.BindPFlag(keyTrainNJobs, flags.Lookup("n-jobs"))
	return cmd
}

func (c *CLI) runTrain(cmd *cobra.Command, o trainOptions) error {
	kind, err := training.ParseModelKind(o.model)
	if err != nil {
		return err
	}
	s := c.settings()
	trainer, err := training.NewTrainer(training.Config{
		Target:      o.target,
		Predictors:  o.predictors,
		CatCols:     o.catCols,
		SplitColumn: o.splitColumn,
		SplitValues: o.splitValues,
		CV:          s.CV,
		NIter:       s.NIter,
		NJobs:       s.NJobs,
		Seed:        s.Seed,
	})
	if err != nil {
		return err
	}
	table, err := frame.ReadCSVFile(o.input)
	if err != nil {
		return err
	}

	c.printInfo("Training %s on %d rows", kind, table.Len())
	res, err := trainer.Train(cmd.Context(), table, kind)
	if err != nil {
		return err
	}

	if o.modelOut != "" {
		if err := training.SaveResult(res, o.modelOut); err != nil {
			return err
		}
		c.printSuccess("Model written to %s", o.modelOut)
	}
	if o.predictions != "" {
		if err := c.writeTestPredictions(res, o.predictions, o.format); err != nil {
			return err
		}
	}
	if o.report != "" {
		if err := training.WriteReportFile(res, o.report); err != nil {
			return err
		}
	} else if err := training.WriteReport(res, c.output); err != nil {
		return err
	}
	c.printSuccess("Best score %s with %v", frame.FormatFloat(res.BestScore), res.BestParams)
	return nil
}

func (c *CLI) writeTestPredictions(res *training.TrainResult, path, format string) error {
	if res.Test == nil || res.Test.Len() == 0 {
		c.printWarning("No test rows, predictions not written")
		return nil
	}
	pred, err := res.PredictEncoded(res.Test)
	if err != nil {
		return err
	}
	out := res.Test.Take(allRows(res.Test.Len()))
	if err := out.AddFloat("pred", pred); err != nil {
		return err
	}
	if err := c.writeTable(out, path, format); err != nil {
		return err
	}
	c.printSuccess("Test predictions written to %s", path)
	return nil
}
