package partition

import (
	"github.com/tablekit/partgen/pkg/datum"
)

// boundIterator is the forward-only cursor over the successive
// [start, end) sub-ranges of one range element. Without EVERY it
// produces a single range covering whatever bounds were given. With
// EVERY it steps the upper bound by the compiled step expression until
// END is reached, clamping the final range to END exactly.
type boundIterator struct {
	col        KeyColumn
	step       *stepEvaluator
	endVal     datum.Value
	currStart  datum.Value
	currEnd    datum.Value
	called     bool
	endReached bool
	partName   string
	endLoc     Location
	everyLoc   Location
}

func newBoundIterator(col KeyColumn, start, end *Expr, endIncl bool, every *Expr, partName string) (*boundIterator, error) {
	it := &boundIterator{col: col, partName: partName}

	if start != nil {
		v, err := transformBoundValue(col, start, partName)
		if err != nil {
			return nil, err
		}
		it.currEnd = v
	}

	if end != nil {
		v, err := transformBoundValue(col, end, partName)
		if err != nil {
			return nil, err
		}
		if endIncl {
			v, err = widenInclusiveEnd(col, v, end.Loc, partName)
			if err != nil {
				return nil, err
			}
		}
		it.endVal = v
		it.endLoc = end.Loc
	}

	if every != nil {
		if start == nil || end == nil {
			return nil, &SpecError{
				Kind:      ErrInvalidSpec,
				Message:   "EVERY clause requires START and END",
				Partition: partName,
				Loc:       every.Loc,
			}
		}
		step, err := compileStep(col, every, partName)
		if err != nil {
			return nil, err
		}
		it.step = step
		it.everyLoc = every.Loc
	}

	return it, nil
}

// widenInclusiveEnd converts an inclusive END into the exclusive form
// by evaluating end + 1 through the regular step machinery. The unit
// step is the integer literal 1 whatever the column type, which holds
// up for integer and date columns and fails the compile for types
// whose "+" does not accept an integer.
func widenInclusiveEnd(col KeyColumn, end datum.Value, loc Location, partName string) (datum.Value, error) {
	one, err := compileStep(col, &Expr{Value: datum.Int4{V: 1}, Loc: loc}, partName)
	if err != nil {
		return nil, err
	}
	defer one.Close()
	widened, err := one.Eval(end)
	if err != nil {
		return nil, &SpecError{
			Kind:      ErrArithmeticDomain,
			Message:   err.Error(),
			Partition: partName,
			Loc:       loc,
			Err:       err,
		}
	}
	return widened, nil
}

// next advances to the following sub-range. It reports false once the
// iterator is exhausted; the current range is then [currStart,currEnd).
func (it *boundIterator) next() (bool, error) {
	firstcall := !it.called
	it.called = true

	if it.step == nil {
		// Without EVERY there is exactly one range covering everything
		// the element specified.
		if !firstcall {
			return false, nil
		}
		it.currStart = it.currEnd
		it.currEnd = it.endVal
		return true, nil
	}

	if it.endReached {
		return false, nil
	}

	next, err := it.step.Eval(it.currEnd)
	if err != nil {
		return false, &SpecError{
			Kind:      ErrArithmeticDomain,
			Message:   err.Error(),
			Partition: it.partName,
			Loc:       it.everyLoc,
			Err:       err,
		}
	}

	it.currStart = it.currEnd

	cmp, err := datum.Compare(next, it.endVal, it.col.Collation)
	if err != nil {
		return false, &SpecError{
			Kind:      ErrTypeMismatch,
			Message:   err.Error(),
			Partition: it.partName,
			Loc:       it.everyLoc,
			Err:       err,
		}
	}
	if cmp >= 0 {
		// The step passed END; clamp this final range to END exactly.
		it.endReached = true
		it.currEnd = it.endVal
		return true, nil
	}

	// The next bound must advance strictly, or the progression is
	// degenerate: a zero-or-negative step on the first call, numeric
	// wraparound on any later one.
	back, err := datum.Compare(it.currEnd, next, it.col.Collation)
	if err != nil {
		return false, &SpecError{
			Kind:      ErrTypeMismatch,
			Message:   err.Error(),
			Partition: it.partName,
			Loc:       it.everyLoc,
			Err:       err,
		}
	}
	if back >= 0 {
		if firstcall {
			return false, &SpecError{
				Kind:      ErrArithmeticDomain,
				Message:   "EVERY parameter too small",
				Partition: it.partName,
				Loc:       it.everyLoc,
			}
		}
		return false, &SpecError{
			Kind:      ErrArithmeticDomain,
			Message:   "END parameter not reached before type overflows",
			Partition: it.partName,
			Loc:       it.endLoc,
		}
	}

	it.currEnd = next
	return true, nil
}

// Close releases the compiled step evaluator. Safe when no EVERY
// clause was present.
func (it *boundIterator) Close() {
	if it.step != nil {
		it.step.Close()
	}
}
