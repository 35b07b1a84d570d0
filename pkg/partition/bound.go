package partition

import "github.com/tablekit/partgen/pkg/datum"

// BoundKind distinguishes concrete bound values from the open-ended
// sentinels.
type BoundKind int

const (
	BoundValue BoundKind = iota
	BoundMinValue
	BoundMaxValue
)

// Bound is one range bound datum: a concrete value, or a MINVALUE or
// MAXVALUE sentinel ordered below and above every value.
type Bound struct {
	Kind  BoundKind
	Value datum.Value
}

// ValueBound wraps a concrete value.
func ValueBound(v datum.Value) Bound { return Bound{Kind: BoundValue, Value: v} }

// MinValueBound is the always-least sentinel.
func MinValueBound() Bound { return Bound{Kind: BoundMinValue} }

// MaxValueBound is the always-greatest sentinel.
func MaxValueBound() Bound { return Bound{Kind: BoundMaxValue} }

func (b Bound) String() string {
	switch b.Kind {
	case BoundMinValue:
		return "MINVALUE"
	case BoundMaxValue:
		return "MAXVALUE"
	default:
		if b.Value == nil {
			return "NULL"
		}
		return b.Value.String()
	}
}

// compareBound orders two bounds of the same key column. Sentinels
// compare below/above every concrete value; both bounds hold values of
// the column type, so the datum comparison cannot fail.
func compareBound(a, b Bound, col KeyColumn) int {
	switch {
	case a.Kind == BoundMinValue:
		if b.Kind == BoundMinValue {
			return 0
		}
		return -1
	case b.Kind == BoundMinValue:
		return 1
	case a.Kind == BoundMaxValue:
		if b.Kind == BoundMaxValue {
			return 0
		}
		return 1
	case b.Kind == BoundMaxValue:
		return -1
	}
	c, err := datum.Compare(a.Value, b.Value, col.Collation)
	if err != nil {
		return 0
	}
	return c
}

// compareBounds applies compareBound column-by-column and returns the
// first non-zero result.
func compareBounds(a, b []Bound, col KeyColumn) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := compareBound(a[i], b[i], col); c != 0 {
			return c
		}
	}
	return 0
}
