package training

import (
	"strings"

	"github.com/YuminosukeSato/rollcast/pkg/errors"
)

// ErrUnknownModelKind is returned for a model selector other than
// "xgb", "rf" or "catboost".
var ErrUnknownModelKind = errors.New("model selected is not available")

// ModelKind selects the regressor family a Trainer fits.
type ModelKind int

const (
	// XGBoost is depth-wise second-order gradient boosting.
	XGBoost ModelKind = iota
	// RandomForest is a bagged forest of CART trees.
	RandomForest
	// CatBoost is gradient boosting of symmetric trees.
	CatBoost
)

var kindNames = map[ModelKind]string{
	XGBoost:      "xgb",
	RandomForest: "rf",
	CatBoost:     "catboost",
}

// String returns the selector of k.
func (k ModelKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Valid reports whether k is one of the known kinds.
func (k ModelKind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseModelKind parses a selector, case-insensitively.
func ParseModelKind(s string) (ModelKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, v := range kindNames {
		if v == name {
			return k, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownModelKind, "%q", s)
}
