// Package params applies scikit-learn style hyperparameter maps to typed
// struct fields. Values are converted with spf13/cast, so a search space
// may hold ints, floats or strings for any numeric parameter.
package params

import (
	"sort"

	"github.com/spf13/cast"

	"github.com/YuminosukeSato/rollcast/pkg/errors"
)

// Setter converts and stores one parameter value.
type Setter func(v interface{}) error

// Apply sets every entry of p through the setter of the same name.
// Unknown names fail with a ValidationError. Keys are applied in sorted
// order so that errors are deterministic.
func Apply(p map[string]interface{}, setters map[string]Setter) error {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		set, ok := setters[k]
		if !ok {
			return errors.NewValidationError(k, "unknown parameter", p[k])
		}
		if err := set(p[k]); err != nil {
			return errors.NewValidationError(k, err.Error(), p[k])
		}
	}
	return nil
}

// Int stores into an int field.
func Int(dst *int) Setter {
	return func(v interface{}) error {
		n, err := cast.ToIntE(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

// Float stores into a float64 field.
func Float(dst *float64) Setter {
	return func(v interface{}) error {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return err
		}
		*dst = f
		return nil
	}
}

// Uint64 stores into a uint64 field (seeds).
func Uint64(dst *uint64) Setter {
	return func(v interface{}) error {
		n, err := cast.ToUint64E(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

// String stores into a string field.
func String(dst *string) Setter {
	return func(v interface{}) error {
		s, err := cast.ToStringE(v)
		if err != nil {
			return err
		}
		*dst = s
		return nil
	}
}

// Ignore accepts and discards a parameter, for names kept only for
// compatibility with search spaces written for other libraries.
func Ignore() Setter {
	return func(interface{}) error { return nil }
}

// Bool stores into a bool field.
func Bool(dst *bool) Setter {
	return func(v interface{}) error {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}
