package runtime

// UpdateWith merges a transformed sequence back into the original one
// for in-place rewrites. Positions whose original is a document value
// follow the merge rules: non-representable results (None, functions,
// empty documents) keep the original, fragments splice, other documents
// replace, scalars overwrite the original's text in place, arrays and
// dicts fan the slot out into one rewritten node per element.
func UpdateWith(original, transformed []Value) []Value {
	out := make([]Value, 0, len(original))
	for i, current := range original {
		if i >= len(transformed) {
			out = append(out, current)
			continue
		}
		out = append(out, updateOne(current, transformed[i]))
	}
	return out
}

func updateOne(current, updated Value) Value {
	md, ok := current.(*MarkdownValue)
	if !ok {
		return updated
	}
	switch v := updated.(type) {
	case NoneValue, *FunctionValue, NativeFunctionValue:
		return current
	case *MarkdownValue:
		if v.Node.IsEmpty() && !v.Node.IsFragment() {
			return current
		}
		if v.Node.IsFragment() {
			merged := md.Node.Clone()
			merged.ApplyFragment(v.Node)
			return &MarkdownValue{Node: merged, Index: md.Index, HasIndex: md.HasIndex}
		}
		return v
	case StringValue:
		return md.WithText(v.Val)
	case BoolValue:
		return md.WithText(ToString(v))
	case NumberValue:
		return md.WithText(ToString(v))
	case SymbolValue:
		return md.WithText(ToString(v))
	case *ArrayValue:
		elements := make([]Value, 0, len(v.Elements))
		for _, el := range v.Elements {
			if IsNone(el) {
				continue
			}
			elements = append(elements, md.WithText(ToString(el)))
		}
		return &ArrayValue{Elements: elements}
	case *DictValue:
		dict := NewDict()
		for _, key := range v.Keys() {
			entry, _ := v.Get(key)
			if IsNone(entry) || IsEmpty(entry) {
				continue
			}
			dict.Set(key, md.WithText(ToString(entry)))
		}
		return dict
	default:
		return updated
	}
}
