package morph

import (
	"github.com/starkandwayne/goutils/ansi"

	"github.com/wayneeseguin/morph/log"
)

// OptimizeReport summarizes one optimizer run.
type OptimizeReport struct {
	Original  int
	Optimized int
	Removed   int
	Percent   float64
}

// Render returns the one-line human form of the report.
func (r OptimizeReport) Render() string {
	return ansi.Sprintf("optimizer: @c{%d} -> @c{%d} actions (removed @g{%d}, @g{%.1f%%})",
		r.Original, r.Optimized, r.Removed, r.Percent)
}

// Optimize runs the fixed pass pipeline over an action list. Every pass
// preserves the program's semantics.
func Optimize(m Migration) (Migration, OptimizeReport) {
	actions := append([]Action(nil), m.Actions...)
	original := len(actions)

	actions = removeNoopRenames(actions)
	actions = collapseRenameChains(actions)
	actions = cancelAddDrop(actions)
	actions = rewriteDropAdd(actions)

	report := OptimizeReport{
		Original:  original,
		Optimized: len(actions),
		Removed:   original - len(actions),
	}
	if original > 0 {
		report.Percent = float64(report.Removed) / float64(original) * 100
	}
	log.DEBUG("%s", report.Render())
	return Migration{Actions: actions}, report
}

// removeNoopRenames drops renames whose source and target names agree.
func removeNoopRenames(actions []Action) []Action {
	out := actions[:0]
	for _, a := range actions {
		if r, ok := a.(Rename); ok && r.From == r.To {
			continue
		}
		out = append(out, a)
	}
	return out
}

// collapseRenameChains merges consecutive renames at the same path:
// A->B then B->C becomes A->C, and a cycle back to the original name
// disappears entirely.
func collapseRenameChains(actions []Action) []Action {
	var out []Action
	for _, a := range actions {
		r, ok := a.(Rename)
		if !ok {
			out = append(out, a)
			continue
		}
		if len(out) > 0 {
			if prev, ok := out[len(out)-1].(Rename); ok && EqualOptic(prev.Path, r.Path) && prev.To == r.From {
				out = out[:len(out)-1]
				if prev.From != r.To {
					out = append(out, Rename{Path: r.Path, From: prev.From, To: r.To})
				}
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// cancelAddDrop removes an AddField immediately followed by the DropField
// of the same field.
func cancelAddDrop(actions []Action) []Action {
	var out []Action
	for _, a := range actions {
		if d, ok := a.(DropField); ok && len(out) > 0 {
			if add, ok := out[len(out)-1].(AddField); ok && EqualOptic(add.Path, d.Path) && add.Name == d.Name {
				out = out[:len(out)-1]
				continue
			}
		}
		out = append(out, a)
	}
	return out
}

// rewriteDropAdd turns a DropField immediately followed by an AddField of
// the same field into TransformValue(p.n, default, Identity). An AddField
// default evaluates against the parent record, but a TransformValue runs
// against the field's own old value, so the rewrite is only sound when the
// default never reads its input; context-dependent defaults stay as the
// drop/add pair. The rewritten field also keeps its original position
// instead of moving to the end of the record.
func rewriteDropAdd(actions []Action) []Action {
	var out []Action
	for _, a := range actions {
		if add, ok := a.(AddField); ok && len(out) > 0 {
			if drop, ok := out[len(out)-1].(DropField); ok && EqualOptic(drop.Path, add.Path) && drop.Name == add.Name && inputFree(add.Default) {
				out = out[:len(out)-1]
				out = append(out, TransformValue{
					Path:      add.Path.Field(add.Name),
					Transform: add.Default,
					Inverse:   Identity{},
				})
				continue
			}
		}
		out = append(out, a)
	}
	return out
}

// inputFree reports whether an expression can never observe its input. The
// input flows in only through Identity, OpticAccess and Calc; everything
// else is input-free when its sub-expressions are. A Compose only needs an
// input-free inner: the outer runs on the inner's result, not the input.
func inputFree(r Resolved) bool {
	switch e := r.(type) {
	case nil:
		return true
	case Literal, Fail, DefaultValue, RootAccess:
		return true
	case Identity, OpticAccess, Calc:
		return false
	case FieldAccess:
		return inputFree(e.Inner)
	case Convert:
		return inputFree(e.Inner)
	case SplitString:
		return inputFree(e.Inner)
	case At:
		return inputFree(e.Inner)
	case WrapSome:
		return inputFree(e.Inner)
	case Head:
		return inputFree(e.Inner)
	case JoinStrings:
		return inputFree(e.Inner)
	case UnwrapOption:
		return inputFree(e.Inner) && inputFree(e.Fallback)
	case Compose:
		return inputFree(e.Inner)
	case Concat:
		for _, p := range e.Parts {
			if !inputFree(p) {
				return false
			}
		}
		return true
	case Construct:
		for _, f := range e.Fields {
			if !inputFree(f.Value) {
				return false
			}
		}
		return true
	case ConstructSeq:
		for _, el := range e.Elements {
			if !inputFree(el) {
				return false
			}
		}
		return true
	case Coalesce:
		for _, alt := range e.Alts {
			if !inputFree(alt) {
				return false
			}
		}
		return true
	case GetOrElse:
		return inputFree(e.Primary) && inputFree(e.Fallback)
	}
	return false
}
