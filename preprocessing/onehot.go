// Package preprocessing はモデル入力の前処理を提供します。
package preprocessing

import (
	"fmt"

	"github.com/YuminosukeSato/rollcast/core/model"
	"github.com/YuminosukeSato/rollcast/frame"
	"github.com/YuminosukeSato/rollcast/pkg/errors"
)

// OneHotEncoder はカテゴリ列を 0/1 のダミー列に展開するエンコーダー
//
// 各列のカテゴリは学習時に現れた順で番号付けされ、列名は "<列名>_<番号>"
// (番号は1始まり) になる。学習時に見ていないカテゴリは全て0に変換される。
// 欠損値 ("") もひとつのカテゴリとして扱う。
type OneHotEncoder struct {
	model.BaseEstimator

	// Cols は変換対象の列名
	Cols []string

	// Categories は列ごとのカテゴリ (出現順)
	Categories map[string][]string
}

// NewOneHotEncoder は新しいOneHotEncoderを作成する
//
// 使用例:
//
//	enc := preprocessing.NewOneHotEncoder()
//	err := enc.Fit(table, []string{"store", "region"})
//	encoded, cols, err := enc.Transform(table)
func NewOneHotEncoder() *OneHotEncoder {
	return &OneHotEncoder{Categories: make(map[string][]string)}
}

// Fit は各列のカテゴリを学習する
//
// パラメータ:
//   - table: 学習データ
//   - cols: エンコードする列名
//
// 戻り値:
//   - error: 列が存在しない場合
func (e *OneHotEncoder) Fit(table *frame.Table, cols []string) error {
	if table == nil || table.Len() == 0 {
		return errors.NewModelError("OneHotEncoder.Fit", "empty data", errors.ErrEmptyData)
	}

	categories := make(map[string][]string, len(cols))
	for _, col := range cols {
		values, err := table.Strings(col)
		if err != nil {
			return err
		}
		seen := make(map[string]bool)
		var cats []string
		for _, v := range values {
			if !seen[v] {
				seen[v] = true
				cats = append(cats, v)
			}
		}
		categories[col] = cats
	}

	e.Cols = append([]string(nil), cols...)
	e.Categories = categories
	e.SetFitted()
	return nil
}

// FeatureNames は変換後のダミー列名を列順に返す
func (e *OneHotEncoder) FeatureNames() []string {
	var names []string
	for _, col := range e.Cols {
		for i := range e.Categories[col] {
			names = append(names, dummyName(col, i))
		}
	}
	return names
}

func dummyName(col string, i int) string {
	return fmt.Sprintf("%s_%d", col, i+1)
}

// Transform はカテゴリ列をダミー列に置き換えたテーブルを返す
//
// 戻り値:
//   - *frame.Table: カテゴリ列以外の列の後にダミー列を並べたテーブル
//   - []string: 追加したダミー列名
//   - error: 未学習、または列が存在しない場合
func (e *OneHotEncoder) Transform(table *frame.Table) (*frame.Table, []string, error) {
	if !e.IsFitted() {
		return nil, nil, errors.NewNotFittedError("OneHotEncoder", "Transform")
	}

	out := table.Drop(e.Cols...)
	var added []string
	for _, col := range e.Cols {
		values, err := table.Strings(col)
		if err != nil {
			return nil, nil, err
		}
		cats := e.Categories[col]
		pos := make(map[string]int, len(cats))
		for i, c := range cats {
			pos[c] = i
		}

		dummies := make([][]float64, len(cats))
		for i := range dummies {
			dummies[i] = make([]float64, len(values))
		}
		for r, v := range values {
			if i, ok := pos[v]; ok {
				dummies[i][r] = 1
			}
		}
		for i := range cats {
			name := dummyName(col, i)
			if err := out.AddFloat(name, dummies[i]); err != nil {
				return nil, nil, err
			}
			added = append(added, name)
		}
	}
	return out, added, nil
}

// FitTransform はFitとTransformを続けて実行する
func (e *OneHotEncoder) FitTransform(table *frame.Table, cols []string) (*frame.Table, []string, error) {
	if err := e.Fit(table, cols); err != nil {
		return nil, nil, err
	}
	return e.Transform(table)
}

// ReplaceColumns は predictors からエンコード対象の列を除き、ダミー列を後ろに足す
func ReplaceColumns(predictors, encodedFrom, dummies []string) []string {
	drop := make(map[string]bool, len(encodedFrom))
	for _, c := range encodedFrom {
		drop[c] = true
	}
	out := make([]string, 0, len(predictors)+len(dummies))
	for _, p := range predictors {
		if !drop[p] {
			out = append(out, p)
		}
	}
	return append(out, dummies...)
}
