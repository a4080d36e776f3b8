package report

import (
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/plotter"

	"github.com/YuminosukeSato/rollcast/frame"
)

var cols = Columns{Value: "sales", Key: "store", Pred: "pred"}

// store a は6行 (1つ欠損), store b/c は3行
func inputTable(t *testing.T) *frame.Table {
	t.Helper()
	tbl := frame.New(9)
	require.NoError(t, tbl.AddString("store", []string{"a", "a", "a", "a", "a", "a", "b/c", "b/c", "b/c"}))
	require.NoError(t, tbl.AddFloat("sales", []float64{1, 2, math.NaN(), 4, 5, 6, 7, 8, 9}))
	return tbl
}

func forecastTable(t *testing.T) *frame.Table {
	t.Helper()
	nan := math.NaN()
	tbl := frame.NewWithIndex([]int{0, 1, 2, 3, 4, 4, 5, 6, 7, 8})
	require.NoError(t, tbl.AddFloat("pred", []float64{nan, nan, nan, nan, nan, 5.5, 6.5, nan, nan, nan}))
	return tbl
}

func TestForecastSeries(t *testing.T) {
	actual, predicted, err := ForecastSeries(inputTable(t), forecastTable(t), cols, "a")
	require.NoError(t, err)

	assert.Equal(t, plotter.XYs{{X: 0, Y: 1}, {X: 1, Y: 2}, {X: 3, Y: 4}, {X: 4, Y: 5}, {X: 5, Y: 6}}, actual)
	assert.Equal(t, plotter.XYs{{X: 4, Y: 5.5}, {X: 5, Y: 6.5}}, predicted)

	actual, predicted, err = ForecastSeries(inputTable(t), forecastTable(t), cols, "b/c")
	require.NoError(t, err)
	assert.Len(t, actual, 3)
	assert.Empty(t, predicted)

	_, _, err = ForecastSeries(inputTable(t), forecastTable(t), cols, "z")
	assert.Error(t, err)

	_, _, err = ForecastSeries(inputTable(t), forecastTable(t), Columns{Value: "sales", Key: "store", Pred: "x"}, "a")
	assert.Error(t, err)
}

func TestPlotForecast(t *testing.T) {
	p, err := PlotForecast(inputTable(t), forecastTable(t), cols, "a")
	require.NoError(t, err)
	assert.Equal(t, "store = a", p.Title.Text)
	assert.Equal(t, "sales", p.Y.Label.Text)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "a.png", FileName("a"))
	assert.Equal(t, "b_c.png", FileName("b/c"))
	assert.Equal(t, "_.png", FileName(""))
}

func TestSaveForecastPlots(t *testing.T) {
	dir := t.TempDir()
	paths, err := SaveForecastPlots(inputTable(t), forecastTable(t), cols, dir)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	for _, path := range paths {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, []byte("\x89PNG"), data[:4])
	}
}
