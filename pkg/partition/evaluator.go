package partition

import (
	"errors"

	"github.com/tablekit/partgen/pkg/datum"
)

// stepEvaluator is a compiled "current + step" function over the
// partition key column. The addition operator and the assignment cast
// back to the column type are resolved once at compile time; each Eval
// call rebinds the current-value parameter. The evaluator is a scoped
// resource: Close releases it, after which Eval fails.
type stepEvaluator struct {
	col      KeyColumn
	step     datum.Value
	op       datum.AddOp
	needCast bool
	released bool
}

// errEvaluatorReleased is an internal misuse guard, not a user error.
var errEvaluatorReleased = errors.New("step evaluator used after release")

// compileStep resolves the "+" operator between the column type and the
// step value's type. An explicit non-default collation on the step must
// match the column's collation, and the addition result must be
// assignment-castable back to the column type.
func compileStep(col KeyColumn, step *Expr, partName string) (*stepEvaluator, error) {
	if step.Value == nil {
		return nil, &SpecError{
			Kind:      ErrNullBound,
			Message:   "cannot use NULL with range partition specification",
			Partition: partName,
			Loc:       step.Loc,
		}
	}
	if step.Collate != datum.CollationDefault && step.Collate != col.Collation {
		return nil, &SpecError{
			Kind:      ErrTypeMismatch,
			Message:   `collation of partition bound value for column "` + col.Name + `" does not match partition key collation "` + string(col.Collation) + `"`,
			Partition: partName,
			Loc:       step.Loc,
		}
	}
	op, err := datum.ResolvePlus(col.Type, step.Value.Type())
	if err != nil {
		return nil, &SpecError{
			Kind:      ErrTypeMismatch,
			Message:   err.Error(),
			Partition: partName,
			Loc:       step.Loc,
			Err:       err,
		}
	}
	if !datum.CanAssignCast(op.Result, col.Type) {
		return nil, &SpecError{
			Kind:      ErrTypeMismatch,
			Message:   "specified value cannot be cast to type " + col.Type.SQLName() + ` for column "` + col.Name + `"`,
			Partition: partName,
			Loc:       step.Loc,
		}
	}
	return &stepEvaluator{
		col:      col,
		step:     step.Value,
		op:       op,
		needCast: op.Result != col.Type,
	}, nil
}

// Eval computes current + step and casts the result back to the column
// type.
func (e *stepEvaluator) Eval(current datum.Value) (datum.Value, error) {
	if e.released {
		return nil, errEvaluatorReleased
	}
	next, err := e.op.Fn(current, e.step)
	if err != nil {
		return nil, err
	}
	if !e.needCast {
		return next, nil
	}
	return datum.AssignCast(next, e.col.Type)
}

// Close releases the evaluator. Further Eval calls fail.
func (e *stepEvaluator) Close() {
	e.released = true
}

// transformBoundValue validates and coerces one bound literal to the
// key column type: NULL is rejected, an explicit mismatched collation
// is rejected, and the value is assignment-cast to the column type.
func transformBoundValue(col KeyColumn, e *Expr, partName string) (datum.Value, error) {
	if e.Value == nil {
		return nil, &SpecError{
			Kind:      ErrNullBound,
			Message:   "cannot use NULL with range partition specification",
			Partition: partName,
			Loc:       e.Loc,
		}
	}
	if e.Collate != datum.CollationDefault && e.Collate != col.Collation {
		return nil, &SpecError{
			Kind:      ErrTypeMismatch,
			Message:   `collation of partition bound value for column "` + col.Name + `" does not match partition key collation "` + string(col.Collation) + `"`,
			Partition: partName,
			Loc:       e.Loc,
		}
	}
	v, err := datum.AssignCast(e.Value, col.Type)
	if err != nil {
		return nil, &SpecError{
			Kind:      ErrTypeMismatch,
			Message:   "specified value cannot be cast to type " + col.Type.SQLName() + ` for column "` + col.Name + `"`,
			Partition: partName,
			Loc:       e.Loc,
			Err:       err,
		}
	}
	return v, nil
}
