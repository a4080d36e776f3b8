package model_selection

import (
	"context"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/rollcast/core/model"
	"github.com/YuminosukeSato/rollcast/pkg/errors"
	"github.com/YuminosukeSato/rollcast/pkg/log"
)

// CandidateResult holds the cross-validated scores of one parameter setting.
type CandidateResult struct {
	Params     map[string]interface{}
	FoldScores []float64
	// MeanScore は fold の R² の平均。いずれかの fold が失敗した場合は NaN
	MeanScore float64
	StdScore  float64
	Rank      int
}

// search is the state shared by GridSearchCV and RandomizedSearchCV.
type search struct {
	Estimator model.Regressor
	CV        int
	// NJobs bounds the concurrent fits (<= 0 で CPU 数)
	NJobs  int
	Logger log.Logger

	Results       []CandidateResult
	BestIndex     int
	BestParams    map[string]interface{}
	BestScore     float64
	BestEstimator model.Regressor
}

type foldData struct {
	xTrain, yTrain, xTest, yTest *mat.Dense
}

// fit scores every candidate on every fold, ranks them by mean score and
// refits the best one on all rows.
func (s *search) fit(ctx context.Context, name string, X, y mat.Matrix, candidates []map[string]interface{}) error {
	if s.Estimator == nil {
		return errors.NewValueError(name+".Fit", "estimator is nil")
	}
	if len(candidates) == 0 {
		return errors.NewValidationError("param_grid", "no parameter settings to evaluate", 0)
	}
	if r, _ := y.Dims(); r > 0 {
		if rx, _ := X.Dims(); rx != r {
			return errors.NewDimensionError(name+".Fit", rx, r, 0)
		}
	}
	logger := s.Logger
	if logger == nil {
		logger = log.GetLoggerWithName("model_selection")
	}

	folds, err := NewKFold(s.CV, false, 0).Split(X)
	if err != nil {
		return err
	}
	data := make([]foldData, len(folds))
	for i, f := range folds {
		data[i] = foldData{
			xTrain: TakeRows(X, f.TrainIndices),
			yTrain: TakeRows(y, f.TrainIndices),
			xTest:  TakeRows(X, f.TestIndices),
			yTest:  TakeRows(y, f.TestIndices),
		}
	}

	logger.Info("Fitting folds for each candidate",
		"n_folds", len(folds),
		"n_candidates", len(candidates),
		"n_fits", len(folds)*len(candidates),
	)

	scores := make([][]float64, len(candidates))
	for i := range scores {
		scores[i] = make([]float64, len(folds))
	}

	jobs := s.NJobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for c, p := range candidates {
		for f := range data {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				score, err := s.score(p, data[f])
				if err != nil {
					return err
				}
				if math.IsNaN(score) {
					logger.Warn("Candidate fit failed, score set to NaN",
						log.HyperParamsKey, p,
						"fold", f,
					)
				}
				scores[c][f] = score
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	results := make([]CandidateResult, len(candidates))
	for i, p := range candidates {
		mean, std := math.NaN(), math.NaN()
		if !hasNaN(scores[i]) {
			mean, std = stat.PopMeanStdDev(scores[i], nil)
		}
		results[i] = CandidateResult{Params: p, FoldScores: scores[i], MeanScore: mean, StdScore: std}
	}
	best := rank(results)
	if best < 0 {
		return errors.NewModelError(name+".Fit", "all candidate fits failed", errors.ErrNoValidCandidate)
	}

	est := s.Estimator.Clone()
	if err := est.SetParams(results[best].Params); err != nil {
		return err
	}
	if err := est.Fit(X, y); err != nil {
		return errors.Wrap(err, name+": refit of the best candidate failed")
	}

	s.Results = results
	s.BestIndex = best
	s.BestParams = results[best].Params
	s.BestScore = results[best].MeanScore
	s.BestEstimator = est

	logger.Info("Search finished",
		log.ScoreKey, s.BestScore,
		log.HyperParamsKey, s.BestParams,
	)
	return nil
}

// score fits a clone with params p on one fold and returns its test R².
// Invalid parameters are fatal; fit failures score NaN.
func (s *search) score(p map[string]interface{}, d foldData) (float64, error) {
	est := s.Estimator.Clone()
	if err := est.SetParams(p); err != nil {
		return 0, err
	}
	var score float64
	err := errors.SafeExecute("search.score", func() error {
		if err := est.Fit(d.xTrain, d.yTrain); err != nil {
			return err
		}
		var err error
		score, err = est.Score(d.xTest, d.yTest)
		return err
	})
	if err != nil {
		return math.NaN(), nil
	}
	return score, nil
}

func hasNaN(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}

// rank assigns scikit-learn style ranks (ties share the lowest rank, NaN
// last) and returns the first candidate of rank 1, or -1 if all are NaN.
func rank(results []CandidateResult) int {
	order := make([]int, len(results))
	for i := range order {
		order[i] = i
	}
	key := func(i int) float64 {
		if m := results[i].MeanScore; !math.IsNaN(m) {
			return m
		}
		return math.Inf(-1)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return key(order[a]) > key(order[b])
	})
	for pos, i := range order {
		if pos > 0 && key(i) == key(order[pos-1]) {
			results[i].Rank = results[order[pos-1]].Rank
		} else {
			results[i].Rank = pos + 1
		}
	}
	if math.IsNaN(results[order[0]].MeanScore) {
		return -1
	}
	return order[0]
}

// GridSearchCV evaluates every combination of ParamGrid.
type GridSearchCV struct {
	search
	ParamGrid ParamGrid
}

// NewGridSearchCV creates an exhaustive search with cv folds.
func NewGridSearchCV(estimator model.Regressor, grid ParamGrid, cv int) *GridSearchCV {
	return &GridSearchCV{
		search:    search{Estimator: estimator, CV: cv, NJobs: 1},
		ParamGrid: grid,
	}
}

// Fit runs the search.
func (gs *GridSearchCV) Fit(ctx context.Context, X, y mat.Matrix) error {
	return gs.fit(ctx, "GridSearchCV", X, y, gs.ParamGrid.Combinations())
}

// RandomizedSearchCV evaluates NIter settings drawn from Distributions.
type RandomizedSearchCV struct {
	search
	Distributions ParamDistributions
	NIter         int
	Seed          uint64
}

// NewRandomizedSearchCV creates a randomized search with cv folds and
// scikit-learn's default of 10 iterations.
func NewRandomizedSearchCV(estimator model.Regressor, dist ParamDistributions, cv int) *RandomizedSearchCV {
	return &RandomizedSearchCV{
		search:        search{Estimator: estimator, CV: cv, NJobs: 1},
		Distributions: dist,
		NIter:         10,
	}
}

// Fit draws the settings and runs the search.
func (rs *RandomizedSearchCV) Fit(ctx context.Context, X, y mat.Matrix) error {
	if rs.NIter < 1 {
		return errors.NewValidationError("n_iter", "must be at least 1", rs.NIter)
	}
	return rs.fit(ctx, "RandomizedSearchCV", X, y, rs.Distributions.Sample(rs.NIter, rs.Seed))
}

// Best returns the refit best estimator, its parameters and mean score.
func (s *search) Best() (model.Regressor, map[string]interface{}, float64) {
	return s.BestEstimator, s.BestParams, s.BestScore
}
