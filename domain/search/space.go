package search

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Param is one dimension of a hyperparameter space. The concrete kinds are
// FixedValue, IntRange, FloatRange and CategoricalSet.
type Param interface {
	isParam()
	String() string
}

// FixedValue pins a parameter to one value.
type FixedValue struct {
	Value any
}

// IntRange is an inclusive integer interval.
type IntRange struct {
	Lo, Hi int
}

// FloatRange is an inclusive real interval.
type FloatRange struct {
	Lo, Hi float64
}

// CategoricalSet is a finite set of named options.
type CategoricalSet struct {
	Options []string
}

func (FixedValue) isParam()     {}
func (IntRange) isParam()       {}
func (FloatRange) isParam()     {}
func (CategoricalSet) isParam() {}

func (p FixedValue) String() string     { return fmt.Sprintf("fixed(%v)", p.Value) }
func (p IntRange) String() string       { return fmt.Sprintf("int[%d, %d]", p.Lo, p.Hi) }
func (p FloatRange) String() string     { return fmt.Sprintf("float[%g, %g]", p.Lo, p.Hi) }
func (p CategoricalSet) String() string { return "{" + strings.Join(p.Options, ", ") + "}" }

// Space maps parameter names to their search domain.
type Space map[string]Param

// Names returns parameter names in sorted order. All iteration over a space uses this order.
func (s Space) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every range is well formed.
func (s Space) Validate() error {
	for _, name := range s.Names() {
		switch p := s[name].(type) {
		case IntRange:
			if p.Lo > p.Hi {
				return fmt.Errorf("%s: lower bound %d above upper bound %d", name, p.Lo, p.Hi)
			}
		case FloatRange:
			if math.IsNaN(p.Lo) || math.IsNaN(p.Hi) || p.Lo > p.Hi {
				return fmt.Errorf("%s: invalid interval [%g, %g]", name, p.Lo, p.Hi)
			}
		case CategoricalSet:
			if len(p.Options) == 0 {
				return fmt.Errorf("%s: categorical set is empty", name)
			}
		case FixedValue:
			if p.Value == nil {
				return fmt.Errorf("%s: fixed value is nil", name)
			}
		case nil:
			return fmt.Errorf("%s: missing domain", name)
		}
	}
	return nil
}

// Assignment is one concrete point of a space: int, float64 or string values.
type Assignment map[string]any

// Int returns an integer value, accepting integral floats.
func (a Assignment) Int(name string) (int, bool) {
	v, ok := a[name]
	if !ok {
		return 0, false
	}
	return AsInt(v)
}

// Float returns a real value, accepting ints.
func (a Assignment) Float(name string) (float64, bool) {
	v, ok := a[name]
	if !ok {
		return 0, false
	}
	return AsFloat(v)
}

// String returns a string value.
func (a Assignment) String(name string) (string, bool) {
	v, ok := a[name].(string)
	return v, ok
}

// Clone returns a shallow copy.
func (a Assignment) Clone() Assignment {
	out := make(Assignment, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// AsInt converts numeric values decoded from JSON or YAML.
func AsInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

// AsFloat converts numeric values decoded from JSON or YAML.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
