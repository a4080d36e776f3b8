package training

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rollcast/core/model"
	"github.com/YuminosukeSato/rollcast/sklearn/ensemble"
	ms "github.com/YuminosukeSato/rollcast/sklearn/model_selection"
)

// Searcher is a hyperparameter search that refits its best estimator.
type Searcher interface {
	Fit(ctx context.Context, X, y mat.Matrix) error
	Best() (model.Regressor, map[string]interface{}, float64)
}

// SearchFactory builds the search for a model kind.
type SearchFactory func(kind ModelKind, cfg Config) (Searcher, error)

// Default search settings per kind.
const (
	DefaultXGBoostCV    = 4
	DefaultXGBoostNIter = 100
	DefaultForestCV     = 4
	DefaultForestNIter  = 10
	DefaultCatBoostCV   = 3
)

// XGBoostDistributions is the randomized search space of the XGBoost model.
func XGBoostDistributions() ms.ParamDistributions {
	return ms.ParamDistributions{
		"nthread":          ms.Values(4),
		"objective":        ms.Values("reg:squarederror"),
		"learning_rate":    ms.Uniform{Loc: 0.03, Scale: 0.1},
		"max_depth":        ms.Values(3, 5, 6, 7, 9),
		"min_child_weight": ms.Values(4),
		"subsample":        ms.Uniform{Loc: 0.5, Scale: 0.4},
		"colsample_bytree": ms.Uniform{Loc: 0.5, Scale: 0.4},
		"n_estimators":     ms.RandInt{Low: 100, High: 500},
		"gamma":            ms.Values(0.1, 0.5, 1, 1.5),
		"lambda":           ms.Values(0.01, 0.5, 1, 2),
		"seed":             ms.Values(1),
	}
}

// ForestDistributions is the randomized search space of the random forest.
func ForestDistributions() ms.ParamDistributions {
	return ms.ParamDistributions{
		"criterion":             ms.Values("mse"),
		"max_depth":             ms.Values(5, 6, 7),
		"min_samples_leaf":      ms.Values(5, 10),
		"min_impurity_decrease": ms.Values(0.001, 0.005, 0.01),
		"max_features":          ms.Values("sqrt", "log2"),
		"n_estimators":          ms.Values(100, 500),
		"ccp_alpha":             ms.Values(0.01, 0.05, 0.1),
		"random_state":          ms.Values(1),
	}
}

// CatBoostGrid is the exhaustive search space of the CatBoost model.
func CatBoostGrid() ms.ParamGrid {
	return ms.ParamGrid{
		"depth":         {6, 8, 10},
		"learning_rate": {0.01, 0.05, 0.1},
		"iterations":    {30, 50, 100},
		"random_seed":   {1},
	}
}

// DefaultSearch builds the search of each kind. Config.CV and Config.NIter
// override the per-kind defaults when positive.
func DefaultSearch(kind ModelKind, cfg Config) (Searcher, error) {
	pick := func(v, def int) int {
		if v > 0 {
			return v
		}
		return def
	}

	switch kind {
	case XGBoost:
		rs := ms.NewRandomizedSearchCV(ensemble.NewGradientBoostingRegressor(),
			XGBoostDistributions(), pick(cfg.CV, DefaultXGBoostCV))
		rs.NIter = pick(cfg.NIter, DefaultXGBoostNIter)
		rs.Seed = cfg.Seed
		rs.NJobs = cfg.NJobs
		return rs, nil
	case RandomForest:
		rs := ms.NewRandomizedSearchCV(ensemble.NewRandomForestRegressor(),
			ForestDistributions(), pick(cfg.CV, DefaultForestCV))
		rs.NIter = pick(cfg.NIter, DefaultForestNIter)
		rs.Seed = cfg.Seed
		rs.NJobs = cfg.NJobs
		return rs, nil
	case CatBoost:
		gs := ms.NewGridSearchCV(ensemble.NewCatBoostRegressor(),
			CatBoostGrid(), pick(cfg.CV, DefaultCatBoostCV))
		gs.NJobs = cfg.NJobs
		return gs, nil
	default:
		return nil, ErrUnknownModelKind
	}
}
