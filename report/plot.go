// Package report renders forecast results as charts.
package report

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"regexp"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/rollcast/frame"
	"github.com/YuminosukeSato/rollcast/pkg/errors"
	"github.com/YuminosukeSato/rollcast/pkg/log"
)

// Plot size of one key.
var (
	PlotWidth  = 8 * vg.Inch
	PlotHeight = 4 * vg.Inch
)

// Columns names the columns a forecast plot reads.
type Columns struct {
	Value string
	Key   string
	// Pred is the prediction column of the forecast table.
	Pred string
}

// ForecastSeries returns the observed values of key and the defined
// forecasts for it, both against the position of the row within the key.
// Forecast rows are matched to input rows by index label; missing values
// and sentinels are skipped.
func ForecastSeries(input, forecast *frame.Table, cols Columns, key string) (actual, predicted plotter.XYs, err error) {
	groups, err := input.GroupBy(cols.Key)
	if err != nil {
		return nil, nil, err
	}
	values, err := input.Floats(cols.Value)
	if err != nil {
		return nil, nil, err
	}
	preds, err := forecast.Floats(cols.Pred)
	if err != nil {
		return nil, nil, err
	}

	var rows []int
	for _, g := range groups {
		if g.Key == key {
			rows = g.Rows
			break
		}
	}
	if rows == nil {
		return nil, nil, errors.NewValueError("report.ForecastSeries", fmt.Sprintf("key %q not found", key))
	}

	pos := make(map[int]int, len(rows))
	for p, r := range rows {
		pos[input.IndexAt(r)] = p
		if v := values[r]; !math.IsNaN(v) {
			actual = append(actual, plotter.XY{X: float64(p), Y: v})
		}
	}
	for i, v := range preds {
		p, ok := pos[forecast.IndexAt(i)]
		if !ok || math.IsNaN(v) {
			continue
		}
		predicted = append(predicted, plotter.XY{X: float64(p), Y: v})
	}
	return actual, predicted, nil
}

// PlotForecast draws the observed series of key as a line and its
// forecasts as points.
func PlotForecast(input, forecast *frame.Table, cols Columns, key string) (*plot.Plot, error) {
	actual, predicted, err := ForecastSeries(input, forecast, cols, key)
	if err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s = %s", cols.Key, key)
	p.X.Label.Text = "t"
	p.Y.Label.Text = cols.Value
	p.Add(plotter.NewGrid())

	if len(actual) > 0 {
		line, points, err := plotter.NewLinePoints(actual)
		if err != nil {
			return nil, err
		}
		line.Color = color.RGBA{R: 120, G: 120, B: 120, A: 255}
		points.GlyphStyle.Radius = vg.Points(1.8)
		p.Add(line, points)
		p.Legend.Add("actual", line, points)
	}
	if len(predicted) > 0 {
		sc, err := plotter.NewScatter(predicted)
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle.Color = color.RGBA{R: 20, G: 80, B: 200, A: 220}
		sc.GlyphStyle.Radius = vg.Points(2.8)
		p.Add(sc)
		p.Legend.Add("forecast", sc)
	}
	return p, nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// FileName returns the PNG file name used for key.
func FileName(key string) string {
	name := unsafeName.ReplaceAllString(key, "_")
	if name == "" {
		name = "_"
	}
	return name + ".png"
}

// SaveForecastPlots writes one PNG per key of input into outDir and
// returns the written paths in first-seen key order.
func SaveForecastPlots(input, forecast *frame.Table, cols Columns, outDir string) ([]string, error) {
	groups, err := input.GroupBy(cols.Key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create plot directory")
	}

	logger := log.GetLoggerWithName("report")
	paths := make([]string, 0, len(groups))
	for _, g := range groups {
		p, err := PlotForecast(input, forecast, cols, g.Key)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(outDir, FileName(g.Key))
		if err := p.Save(PlotWidth, PlotHeight, path); err != nil {
			return paths, errors.Wrapf(err, "failed to save plot for key %q", g.Key)
		}
		logger.Debug("Forecast plot written", log.SeriesKeyKey, g.Key, "path", path)
		paths = append(paths, path)
	}
	return paths, nil
}
