package morph

import (
	"github.com/cppforlife/go-patch/patch"
	"github.com/pkg/errors"
)

// FromGoPatch converts a go-patch ops list (the BOSH ops-file format) into
// a morph patch. Replace becomes Set (or a sequence append for the `/-`
// form), remove of a sequence index becomes a sequence delete. Remove of a
// record field has no patch operation and is rejected, as are all other op
// types.
func FromGoPatch(ops patch.Ops) (Patch, error) {
	out := EmptyPatch()
	for _, op := range ops {
		switch o := op.(type) {
		case patch.ReplaceOp:
			value, err := FromInterface(o.Value)
			if err != nil {
				return Patch{}, err
			}
			path, appendToSeq, err := opticFromPointer(o.Path)
			if err != nil {
				return Patch{}, err
			}
			if appendToSeq {
				out = out.Append(path, SequenceEdit{Ops: []SeqOp{SeqAppend{Values: []DynamicValue{value}}}})
				continue
			}
			out = out.Append(path, Set{Value: value})

		case patch.RemoveOp:
			path, appendToSeq, err := opticFromPointer(o.Path)
			if err != nil {
				return Patch{}, err
			}
			if appendToSeq {
				return Patch{}, errors.New("go-patch: cannot remove the after-last element")
			}
			parent, last := path.Parent()
			switch n := last.(type) {
			case AtIndex:
				out = out.Append(parent, SequenceEdit{Ops: []SeqOp{SeqDelete{Index: n.Index, Count: 1}}})
			case Field:
				// Field removal has no patch operation; a set of the parent
				// without the field would need the document. Rejected.
				return Patch{}, errors.Errorf("go-patch: remove of field '%s' is not expressible as a patch op", n.Name)
			default:
				return Patch{}, errors.New("go-patch: unsupported remove target")
			}

		default:
			return Patch{}, errors.Errorf("go-patch: unsupported op %T", op)
		}
	}
	return out, nil
}

// opticFromPointer maps a go-patch pointer to an optic. The second result
// is true when the pointer addressed the after-last slot (`/-`).
func opticFromPointer(ptr patch.Pointer) (Optic, bool, error) {
	o := Root()
	tokens := ptr.Tokens()
	for i, tok := range tokens {
		switch t := tok.(type) {
		case patch.RootToken:
			// leading '/'
		case patch.KeyToken:
			o = o.Field(t.Key)
		case patch.IndexToken:
			o = o.AtIndex(t.Index)
		case patch.AfterLastIndexToken:
			if i != len(tokens)-1 {
				return Optic{}, false, errors.New("go-patch: '-' must be the last token")
			}
			return o, true, nil
		default:
			return Optic{}, false, errors.Errorf("go-patch: unsupported token %T", tok)
		}
	}
	return o, false, nil
}
