package planspec

import (
	"fmt"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/arclabs/causalchain/internal/ir"
)

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError converts a CUE error into a CompileError with position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	positions := cueerrors.Positions(err)
	pos := token.NoPos
	if len(positions) > 0 {
		pos = positions[0]
	}
	return &CompileError{
		Field:   "cue",
		Message: cueerrors.Details(err, nil),
		Pos:     pos,
	}
}

// Compile parses a CUE value into a PlanSpec and validates it.
//
// The CUE value should hold the plan struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`plan: { id: "p1", ... }`)
//	spec, err := planspec.Compile(v.LookupPath(cue.ParsePath("plan")))
func Compile(v cue.Value) (*PlanSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if !v.Exists() {
		return nil, &CompileError{Field: "plan", Message: "plan struct not found"}
	}

	spec := &PlanSpec{}

	var err error
	if spec.PlanID, err = requiredString(v, "id"); err != nil {
		return nil, err
	}
	if spec.IntentID, err = requiredString(v, "intent"); err != nil {
		return nil, err
	}

	stepsVal := v.LookupPath(cue.ParsePath("step"))
	if stepsVal.Exists() {
		iter, err := stepsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		// Fields iterates in declaration order, which fixes step order.
		for iter.Next() {
			step, err := compileStep(iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			spec.Steps = append(spec.Steps, step)
		}
	}

	if errs := Validate(spec); len(errs) > 0 {
		return nil, &CompileError{
			Field:   errs[0].Field,
			Message: errs[0].Message,
			Pos:     v.Pos(),
		}
	}
	return spec, nil
}

func compileStep(name string, v cue.Value) (StepSpec, error) {
	step := StepSpec{StepID: name}

	var err error
	if step.Call, err = requiredString(v, "call"); err != nil {
		return step, err
	}
	if step.Effect, err = optionalBool(v, "effect"); err != nil {
		return step, err
	}
	if step.Pure, err = optionalBool(v, "pure"); err != nil {
		return step, err
	}
	if step.IdempotencyKey, err = optionalString(v, "key"); err != nil {
		return step, err
	}
	if step.Error, err = optionalString(v, "error"); err != nil {
		return step, err
	}
	if step.CostMicros, err = optionalInt(v, "cost"); err != nil {
		return step, err
	}
	if step.DurationMS, err = optionalInt(v, "duration_ms"); err != nil {
		return step, err
	}

	if step.Args, err = valueList(v, "args"); err != nil {
		return step, err
	}
	if step.Result, err = valueList(v, "result"); err != nil {
		return step, err
	}

	resVal := v.LookupPath(cue.ParsePath("resources"))
	if resVal.Exists() {
		iter, err := resVal.List()
		if err != nil {
			return step, formatCUEError(err)
		}
		for iter.Next() {
			r, err := iter.Value().String()
			if err != nil {
				return step, formatCUEError(err)
			}
			step.Resources = append(step.Resources, r)
		}
	}
	return step, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: fmt.Sprintf("%s is required", field),
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalBool(v cue.Value, field string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func optionalInt(v cue.Value, field string) (int64, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, nil
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return n, nil
}

func valueList(v cue.Value, field string) (ir.VArray, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	iter, err := fv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out ir.VArray
	for iter.Next() {
		val, err := cueToValue(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, val)
	}
	return out, nil
}

// cueToValue converts a concrete CUE value to a ledger value. Floats are
// rejected; the ledger's canonical form has no float encoding.
func cueToValue(v cue.Value) (ir.Value, error) {
	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.VString(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.VInt(n), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.VBool(b), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var arr ir.VArray
		for iter.Next() {
			item, err := cueToValue(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, item)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := make(ir.VObject)
		for iter.Next() {
			item, err := cueToValue(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = item
		}
		return obj, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   "value",
			Message: "float values are not supported in plan scripts",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   "value",
			Message: fmt.Sprintf("unsupported value kind %s", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}
