// Package arima implements the automatically ordered autoregressive
// forecaster refit by the rolling forecast engine.
//
// AutoARIMA picks the differencing order d with repeated KPSS tests and the
// autoregressive order p by an information criterion, then estimates an
// ARIMA(p, d, 0) model with an intercept by ordinary least squares on the
// differenced series. The procedure has no random component, so repeated
// fits of the same window give identical forecasts.
package arima

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/rollcast/pkg/errors"
	"github.com/YuminosukeSato/rollcast/pkg/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// minVariance keeps the log-likelihood finite for perfect fits.
const minVariance = 1e-10

// Criterion selects the information criterion used to rank candidate orders.
type Criterion string

const (
	AIC  Criterion = "aic"
	AICc Criterion = "aicc"
	BIC  Criterion = "bic"
)

// Config holds the search bounds of AutoARIMA.
type Config struct {
	MaxP      int       // 最大AR次数 (default: 3)
	MaxD      int       // 最大差分次数 (default: 2)
	Alpha     float64   // KPSS検定の有意水準 (default: 0.05)
	Criterion Criterion // default: AICc
	// SuppressWarnings disables ConvergenceWarning for rejected candidates.
	SuppressWarnings bool
}

// DefaultConfig returns the configuration used by the forecast engine.
func DefaultConfig() Config {
	return Config{
		MaxP:             3,
		MaxD:             2,
		Alpha:            0.05,
		Criterion:        AICc,
		SuppressWarnings: true,
	}
}

// Order is the (p, d) order of a fitted model.
type Order struct {
	P int
	D int
}

func (o Order) String() string {
	return fmt.Sprintf("ARIMA(%d,%d,0)", o.P, o.D)
}

// AutoARIMA fits ARIMA(p, d, 0) models with automatic order selection.
type AutoARIMA struct {
	cfg    Config
	logger log.Logger
}

// New creates an AutoARIMA. Zero fields of cfg take their defaults.
func New(cfg Config) *AutoARIMA {
	def := DefaultConfig()
	if cfg.MaxP <= 0 {
		cfg.MaxP = def.MaxP
	}
	if cfg.MaxD < 0 {
		cfg.MaxD = 0
	}
	if cfg.Alpha <= 0 || cfg.Alpha >= 1 {
		cfg.Alpha = def.Alpha
	}
	if cfg.Criterion == "" {
		cfg.Criterion = def.Criterion
	}
	return &AutoARIMA{cfg: cfg, logger: log.GetLoggerWithName("arima")}
}

// Model is a fitted ARIMA(p, d, 0) model.
type Model struct {
	Order     Order
	Intercept float64
	ARCoeffs  []float64
	Sigma2    float64
	LogLik    float64
	AIC       float64
	AICc      float64
	BIC       float64
	NObs      int

	// lastLevels[k] は k 回差分した系列の末尾の値
	lastLevels []float64
	// history は d 回差分した系列の末尾 p 個
	history []float64
}

// Fit selects and estimates a model on series. NaN values are dropped.
// It fails when fewer than two observations remain or when no candidate
// order can be estimated.
func (a *AutoARIMA) Fit(series []float64) (m *Model, err error) {
	defer errors.Recover(&err, "AutoARIMA.Fit")

	obs := make([]float64, 0, len(series))
	for _, v := range series {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			obs = append(obs, v)
		}
	}
	if len(obs) < 2 {
		return nil, errors.NewModelError("AutoARIMA.Fit", "insufficient observations", errors.ErrEmptyData)
	}

	d := NDiffs(obs, a.cfg.Alpha, a.cfg.MaxD)
	levels := make([]float64, d)
	z := obs
	for k := 0; k < d; k++ {
		levels[k] = z[len(z)-1]
		z = diff(z)
	}

	var best *Model
	for p := 0; p <= a.cfg.MaxP; p++ {
		// AICc が定義できる標本数がなければ打ち切り
		if len(z)-p < p+3 && p > 0 {
			break
		}
		cand, err := fitAR(z, p)
		if err != nil {
			if !a.cfg.SuppressWarnings {
				errors.Warn(errors.NewConvergenceWarning("AutoARIMA", p, err.Error()))
			}
			a.logger.Debug("candidate rejected", log.OrderKey, Order{P: p, D: d}.String(), log.ErrAttrKey, err)
			continue
		}
		if best == nil || a.score(cand) < a.score(best) {
			best = cand
		}
	}
	if best == nil {
		return nil, errors.NewModelError("AutoARIMA.Fit", "no candidate order could be estimated", errors.ErrSingularMatrix)
	}

	best.Order.D = d
	best.lastLevels = levels
	a.logger.Debug("model selected",
		log.OrderKey, best.Order.String(),
		log.SamplesKey, len(obs),
		"aicc", best.AICc,
	)
	return best, nil
}

func (a *AutoARIMA) score(m *Model) float64 {
	switch a.cfg.Criterion {
	case AIC:
		return m.AIC
	case BIC:
		return m.BIC
	default:
		return m.AICc
	}
}

// fitAR estimates z[t] = c + sum_i phi_i z[t-i] + e[t] by least squares.
func fitAR(z []float64, p int) (*Model, error) {
	rows := len(z) - p
	cols := p + 1
	if rows < cols || rows < 1 {
		return nil, errors.NewDimensionError("fitAR", cols, rows, 0)
	}

	x := mat.NewDense(rows, cols, nil)
	y := mat.NewVecDense(rows, nil)
	for r := 0; r < rows; r++ {
		t := r + p
		x.Set(r, 0, 1)
		for i := 1; i <= p; i++ {
			x.Set(r, i, z[t-i])
		}
		y.SetVec(r, z[t])
	}

	beta, err := solveOLS(x, y)
	if err != nil {
		return nil, err
	}

	var fitted mat.VecDense
	fitted.MulVec(x, beta)
	resid := make([]float64, rows)
	floats.SubTo(resid, y.RawVector().Data, fitted.RawVector().Data)
	sse := floats.Dot(resid, resid)
	if err := errors.CheckScalar("fitAR.sse", sse, p); err != nil {
		return nil, err
	}

	m := &Model{
		Order:     Order{P: p},
		Intercept: beta.AtVec(0),
		ARCoeffs:  make([]float64, p),
		NObs:      rows,
	}
	for i := 0; i < p; i++ {
		m.ARCoeffs[i] = beta.AtVec(i + 1)
	}
	if err := errors.CheckNumericalStability("fitAR.coefficients", m.ARCoeffs, p); err != nil {
		return nil, err
	}

	m.Sigma2 = math.Max(sse/float64(rows), minVariance)
	n := float64(rows)
	k := float64(cols)
	m.LogLik = -n / 2 * (math.Log(2*math.Pi*m.Sigma2) + 1)
	m.AIC = -2*m.LogLik + 2*k
	if n-k-1 > 0 {
		m.AICc = m.AIC + 2*k*(k+1)/(n-k-1)
	} else {
		m.AICc = math.Inf(1)
	}
	m.BIC = -2*m.LogLik + k*math.Log(n)

	m.history = make([]float64, p)
	copy(m.history, z[len(z)-p:])
	return m, nil
}

// solveOLS solves min ||x b - y|| with a QR factorization and rejects
// rank-deficient designs.
func solveOLS(x *mat.Dense, y *mat.VecDense) (*mat.VecDense, error) {
	var qr mat.QR
	qr.Factorize(x)

	var r mat.Dense
	qr.RTo(&r)
	_, cols := x.Dims()
	maxDiag := 0.0
	for i := 0; i < cols; i++ {
		maxDiag = math.Max(maxDiag, math.Abs(r.At(i, i)))
	}
	for i := 0; i < cols; i++ {
		if math.Abs(r.At(i, i)) <= 1e-10*math.Max(maxDiag, 1) {
			return nil, errors.Wrapf(errors.ErrSingularMatrix, "design column %d is collinear", i)
		}
	}

	beta := mat.NewVecDense(cols, nil)
	if err := qr.SolveVecTo(beta, false, y); err != nil {
		return nil, errors.Wrap(err, "least squares")
	}
	return beta, nil
}

// Predict forecasts h steps ahead on the original scale. A non-positive h
// yields an empty slice.
func (m *Model) Predict(h int) ([]float64, error) {
	if h <= 0 {
		return []float64{}, nil
	}
	p := m.Order.P

	ext := make([]float64, p, p+h)
	copy(ext, m.history)
	for step := 0; step < h; step++ {
		t := len(ext)
		pred := m.Intercept
		for i := 1; i <= p; i++ {
			pred += m.ARCoeffs[i-1] * ext[t-i]
		}
		ext = append(ext, pred)
	}
	out := ext[p:]

	// 差分を戻す (深い階層から順に累積和)
	for k := m.Order.D - 1; k >= 0; k-- {
		prev := m.lastLevels[k]
		for i := range out {
			out[i] += prev
			prev = out[i]
		}
	}
	if err := errors.CheckNumericalStability("Model.Predict", out, h); err != nil {
		return nil, err
	}
	return out, nil
}
