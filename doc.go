// Package rollcast produces per-key time-series forecasts for long-format
// tables and trains tabular point-prediction models.
//
// # Packages
//
//   - forecast: the rolling-window engine. Each key is refit on a growing,
//     then sliding, window and forecast a fixed horizon ahead.
//   - timeseries/arima: the automatically ordered autoregressive model used
//     on every window.
//   - metrics: absolute error aggregation overall and per group, plus R².
//   - training: one-hot encoding, train/test split and hyperparameter search
//     for the xgb, rf and catboost model kinds.
//   - sklearn/tree, sklearn/ensemble, sklearn/model_selection: the tree
//     learners and the cross-validated searches behind training.
//   - frame: the small in-memory table shared by all of the above.
//   - report: PNG charts of actual and forecast values.
//
// # Quick Start
//
//	table, err := frame.ReadCSVFile("sales.csv")
//	if err != nil {
//	    return err
//	}
//	engine, err := forecast.NewEngine(forecast.WithWorkers(4))
//	if err != nil {
//	    return err
//	}
//	preds, err := engine.Forecast(ctx, table, "sales", "store", "pred")
//
// The rollcast command wraps the same operations:
//
//	rollcast forecast -i sales.csv --value sales --key store -o pred.csv
//	rollcast evaluate -i sales.csv --forecast pred.csv --target sales --group store
//	rollcast train -i sales.csv --target sales --predictors x,store --cat-cols store -m rf
//
// # Logging
//
// Library code logs through pkg/log. Call log.SetupLogger once at startup to
// choose the level and destination.
package rollcast
