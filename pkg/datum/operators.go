package datum

import (
	"fmt"
	"math"
	"sync"
)

// OutOfRangeError reports arithmetic or a cast exceeding the target
// type's representable range.
type OutOfRangeError struct {
	TypeName string
}

func (e *OutOfRangeError) Error() string {
	return e.TypeName + " out of range"
}

// AddOp is a resolved binary "+" operator: the function and its result
// type before any assignment cast back to the column type.
type AddOp struct {
	Result Type
	Fn     func(l, r Value) (Value, error)
}

type opKey struct {
	left, right Type
}

var (
	plusMu  sync.RWMutex
	plusOps = map[opKey]AddOp{}
)

// RegisterPlus installs or replaces the "+" operator for a pair of
// operand types. The built-in table is installed at package init;
// embedders may extend it for additional column types.
func RegisterPlus(left, right Type, op AddOp) {
	plusMu.Lock()
	defer plusMu.Unlock()
	plusOps[opKey{left, right}] = op
}

// ResolvePlus finds the "+" operator for the operand types.
func ResolvePlus(left, right Type) (AddOp, error) {
	plusMu.RLock()
	op, ok := plusOps[opKey{left, right}]
	plusMu.RUnlock()
	if !ok {
		return AddOp{}, fmt.Errorf("operator does not exist: %s + %s", left.SQLName(), right.SQLName())
	}
	return op, nil
}

func init() {
	ints := []Type{TypeInt2, TypeInt4, TypeInt8}
	for _, l := range ints {
		for _, r := range ints {
			res := widerInt(l, r)
			RegisterPlus(l, r, AddOp{Result: res, Fn: intPlus(res)})
		}
	}
	RegisterPlus(TypeFloat8, TypeFloat8, AddOp{Result: TypeFloat8, Fn: floatPlus})
	RegisterPlus(TypeFloat8, TypeInt4, AddOp{Result: TypeFloat8, Fn: floatPlus})
	RegisterPlus(TypeInt4, TypeFloat8, AddOp{Result: TypeFloat8, Fn: floatPlus})

	RegisterPlus(TypeDate, TypeInt4, AddOp{Result: TypeDate, Fn: datePlusDays})
	RegisterPlus(TypeInt4, TypeDate, AddOp{Result: TypeDate, Fn: func(l, r Value) (Value, error) {
		return datePlusDays(r, l)
	}})
	RegisterPlus(TypeDate, TypeInterval, AddOp{Result: TypeTimestamp, Fn: datePlusInterval})
	RegisterPlus(TypeInterval, TypeDate, AddOp{Result: TypeTimestamp, Fn: func(l, r Value) (Value, error) {
		return datePlusInterval(r, l)
	}})
	RegisterPlus(TypeTimestamp, TypeInterval, AddOp{Result: TypeTimestamp, Fn: timestampPlusInterval})
	RegisterPlus(TypeInterval, TypeTimestamp, AddOp{Result: TypeTimestamp, Fn: func(l, r Value) (Value, error) {
		return timestampPlusInterval(r, l)
	}})
	RegisterPlus(TypeTimestampTZ, TypeInterval, AddOp{Result: TypeTimestampTZ, Fn: timestamptzPlusInterval})
	RegisterPlus(TypeInterval, TypeTimestampTZ, AddOp{Result: TypeTimestampTZ, Fn: func(l, r Value) (Value, error) {
		return timestamptzPlusInterval(r, l)
	}})
	RegisterPlus(TypeInterval, TypeInterval, AddOp{Result: TypeInterval, Fn: intervalPlus})
}

func widerInt(l, r Type) Type {
	rank := map[Type]int{TypeInt2: 1, TypeInt4: 2, TypeInt8: 3}
	if rank[l] >= rank[r] {
		return l
	}
	return r
}

func intPlus(result Type) func(l, r Value) (Value, error) {
	return func(l, r Value) (Value, error) {
		a, _ := toInt64(l)
		b, _ := toInt64(r)
		sum := a + b
		// Overflow when operand signs match and the sum's sign flips.
		if (a > 0 && b > 0 && sum < 0) || (a < 0 && b < 0 && sum >= 0) {
			return nil, &OutOfRangeError{TypeName: result.SQLName()}
		}
		return castInt(sum, result)
	}
}

func castInt(n int64, t Type) (Value, error) {
	switch t {
	case TypeInt2:
		if n < math.MinInt16 || n > math.MaxInt16 {
			return nil, &OutOfRangeError{TypeName: t.SQLName()}
		}
		return Int2{V: int16(n)}, nil
	case TypeInt4:
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, &OutOfRangeError{TypeName: t.SQLName()}
		}
		return Int4{V: int32(n)}, nil
	default:
		return Int8{V: n}, nil
	}
}

func floatPlus(l, r Value) (Value, error) {
	return Float8{V: toFloat64(l) + toFloat64(r)}, nil
}

func datePlusDays(l, r Value) (Value, error) {
	d := l.(Date)
	n, _ := toInt64(r)
	return DateOf(d.Time().AddDate(0, 0, int(n))), nil
}

func datePlusInterval(l, r Value) (Value, error) {
	d := l.(Date)
	iv := r.(Interval)
	return Timestamp{T: addTimeInterval(d.Time(), iv)}, nil
}

func timestampPlusInterval(l, r Value) (Value, error) {
	ts := l.(Timestamp)
	iv := r.(Interval)
	return Timestamp{T: addTimeInterval(ts.T, iv)}, nil
}

func timestamptzPlusInterval(l, r Value) (Value, error) {
	ts := l.(TimestampTZ)
	iv := r.(Interval)
	return TimestampTZ{T: addTimeInterval(ts.T, iv)}, nil
}

func intervalPlus(l, r Value) (Value, error) {
	a := l.(Interval)
	b := r.(Interval)
	return Interval{Months: a.Months + b.Months, Days: a.Days + b.Days, Micros: a.Micros + b.Micros}, nil
}

// CanAssignCast reports whether values of one type are assignable to
// another under the rules AssignCast implements.
func CanAssignCast(from, to Type) bool {
	if from == to {
		return true
	}
	numeric := func(t Type) bool {
		return t == TypeInt2 || t == TypeInt4 || t == TypeInt8 || t == TypeFloat8
	}
	timeFamily := func(t Type) bool {
		return t == TypeDate || t == TypeTimestamp || t == TypeTimestampTZ
	}
	switch {
	case numeric(to):
		return numeric(from)
	case timeFamily(to):
		return timeFamily(from)
	}
	return false
}

// AssignCast coerces a value to the column type under assignment cast
// rules: integer widths range-check, timestamps truncate to date, dates
// widen to midnight timestamps. Identity casts return the value as is.
func AssignCast(v Value, to Type) (Value, error) {
	if v.Type() == to {
		return v, nil
	}
	switch to {
	case TypeInt2, TypeInt4, TypeInt8:
		if n, ok := toInt64(v); ok {
			return castInt(n, to)
		}
		if f, ok := v.(Float8); ok {
			r := math.RoundToEven(f.V)
			if math.IsNaN(r) || r < math.MinInt64 || r >= math.MaxInt64 {
				return nil, &OutOfRangeError{TypeName: to.SQLName()}
			}
			return castInt(int64(r), to)
		}
	case TypeFloat8:
		if isNumeric(v) {
			return Float8{V: toFloat64(v)}, nil
		}
	case TypeDate:
		if t, ok := toTime(v); ok {
			return DateOf(t), nil
		}
	case TypeTimestamp:
		if t, ok := toTime(v); ok {
			return Timestamp{T: t}, nil
		}
	case TypeTimestampTZ:
		if t, ok := toTime(v); ok {
			return TimestampTZ{T: t}, nil
		}
	}
	return nil, fmt.Errorf("cannot cast type %s to %s", v.Type().SQLName(), to.SQLName())
}
