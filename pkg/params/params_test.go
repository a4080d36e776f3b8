package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/rollcast/pkg/errors"
)

type config struct {
	depth int
	rate  float64
	seed  uint64
	mode  string
}

func (c *config) setters() map[string]Setter {
	return map[string]Setter{
		"max_depth":     Int(&c.depth),
		"learning_rate": Float(&c.rate),
		"seed":          Uint64(&c.seed),
		"max_features":  String(&c.mode),
		"nthread":       Ignore(),
	}
}

func TestApply(t *testing.T) {
	var c config
	err := Apply(map[string]interface{}{
		"max_depth":     float64(6),
		"learning_rate": 1,
		"seed":          int64(1),
		"max_features":  "sqrt",
		"nthread":       4,
	}, c.setters())
	require.NoError(t, err)

	assert.Equal(t, 6, c.depth)
	assert.Equal(t, 1.0, c.rate)
	assert.Equal(t, uint64(1), c.seed)
	assert.Equal(t, "sqrt", c.mode)
}

func TestApplyUnknownParameter(t *testing.T) {
	var c config
	err := Apply(map[string]interface{}{"colour": "red"}, c.setters())

	var verr *errors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "colour", verr.ParamName)
}

func TestApplyBadValue(t *testing.T) {
	var c config
	err := Apply(map[string]interface{}{"max_depth": "deep"}, c.setters())

	var verr *errors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "max_depth", verr.ParamName)
}
