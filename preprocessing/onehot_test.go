package preprocessing

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/rollcast/core/model"
	"github.com/YuminosukeSato/rollcast/frame"
	"github.com/YuminosukeSato/rollcast/pkg/errors"
)

func storeTable(t *testing.T, stores []string) *frame.Table {
	t.Helper()
	tbl := frame.New(len(stores))
	require.NoError(t, tbl.AddString("store", stores))
	x := make([]float64, len(stores))
	for i := range x {
		x[i] = float64(i)
	}
	require.NoError(t, tbl.AddFloat("x", x))
	return tbl
}

func TestOneHotEncoderFitTransform(t *testing.T) {
	tbl := storeTable(t, []string{"tokyo", "osaka", "tokyo", "nagoya"})

	enc := NewOneHotEncoder()
	out, cols, err := enc.FitTransform(tbl, []string{"store"})
	require.NoError(t, err)

	assert.Equal(t, []string{"store_1", "store_2", "store_3"}, cols)
	assert.Equal(t, []string{"x", "store_1", "store_2", "store_3"}, out.Names())
	assert.Equal(t, []string{"tokyo", "osaka", "nagoya"}, enc.Categories["store"])

	s1, err := out.Floats("store_1")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 1, 0}, s1)
	s3, err := out.Floats("store_3")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 1}, s3)
}

func TestOneHotEncoderUnseenCategory(t *testing.T) {
	enc := NewOneHotEncoder()
	require.NoError(t, enc.Fit(storeTable(t, []string{"a", "b"}), []string{"store"}))

	out, cols, err := enc.Transform(storeTable(t, []string{"b", "z"}))
	require.NoError(t, err)
	require.Len(t, cols, 2)

	// 未知カテゴリは全て0
	for _, c := range cols {
		v, err := out.Floats(c)
		require.NoError(t, err)
		assert.Equal(t, 0.0, v[1])
	}
	v, err := out.Floats("store_2")
	require.NoError(t, err)
	assert.Equal(t, 1.0, v[0])
}

func TestOneHotEncoderNumericColumn(t *testing.T) {
	tbl := frame.New(3)
	require.NoError(t, tbl.AddFloat("year", []float64{2019, 2020, 2019}))

	enc := NewOneHotEncoder()
	_, cols, err := enc.FitTransform(tbl, []string{"year"})
	require.NoError(t, err)
	assert.Equal(t, []string{"year_1", "year_2"}, cols)
	assert.Equal(t, []string{"2019", "2020"}, enc.Categories["year"])
}

func TestOneHotEncoderErrors(t *testing.T) {
	enc := NewOneHotEncoder()
	_, _, err := enc.Transform(storeTable(t, []string{"a"}))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	err = enc.Fit(storeTable(t, []string{"a"}), []string{"missing"})
	var colErr *errors.ColumnError
	assert.True(t, errors.As(err, &colErr))

	err = enc.Fit(frame.New(0), []string{"store"})
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
}

func TestOneHotEncoderPersistence(t *testing.T) {
	enc := NewOneHotEncoder()
	require.NoError(t, enc.Fit(storeTable(t, []string{"a", "b", "a"}), []string{"store"}))

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(enc, &buf))
	var loaded OneHotEncoder
	require.NoError(t, model.LoadModelFromReader(&loaded, &buf))

	assert.True(t, loaded.IsFitted())
	assert.Equal(t, enc.FeatureNames(), loaded.FeatureNames())
}

func TestReplaceColumns(t *testing.T) {
	got := ReplaceColumns([]string{"x", "store", "y"}, []string{"store"}, []string{"store_1", "store_2"})
	assert.Equal(t, []string{"x", "y", "store_1", "store_2"}, got)
}
