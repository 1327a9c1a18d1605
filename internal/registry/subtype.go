package registry

// ExtendsOrRestrict implements the subtyping relation of spec.md
// §4.6.4: the reflexive-free transitive closure of declared
// alias/restriction/extends parent links, plus the structural
// composite rules for arrays, records, and unions.
func (r *Registry) ExtendsOrRestrict(childSpec, parentSpec string) bool {
	if childSpec == parentSpec {
		return false
	}
	child, ok1 := r.resolveEntry(childSpec)
	parent, ok2 := r.resolveEntry(parentSpec)
	if !ok1 || !ok2 {
		return false
	}
	if r.parentChainContains(child, parent.CanonicalSpec) {
		return true
	}

	switch {
	case child.Kind == KindArray && parent.Kind == KindArray:
		return r.extendsOrEqual(child.ElemSpec, parent.ElemSpec)
	case child.Kind == KindRecord && parent.Kind == KindRecord:
		return r.recordExtends(child, parent)
	case child.Kind == KindUnion && parent.Kind == KindUnion:
		return unionSubset(child.UnionSpecs, parent.UnionSpecs)
	case child.Kind == KindUnion && parent.Kind != KindUnion:
		return r.unionExtendsNonUnion(child, parent.CanonicalSpec)
	case child.Kind != KindUnion && parent.Kind == KindUnion:
		return r.typeExtendsUnion(child.CanonicalSpec, parent)
	}
	return false
}

// extendsOrEqual is the non-strict companion used by the structural
// rules ("A extends_or_equal B").
func (r *Registry) extendsOrEqual(a, b string) bool {
	return a == b || r.ExtendsOrRestrict(a, b)
}

func (r *Registry) resolveEntry(nameOrSpec string) (*ParserEntry, bool) {
	if e, ok := r.Lookup(nameOrSpec); ok {
		return e, true
	}
	e, err := r.ParseType(nameOrSpec)
	if err != nil {
		return nil, false
	}
	return e, true
}

func (r *Registry) parentChainContains(e *ParserEntry, target string) bool {
	cur := e.ParentSpec
	for cur != "" {
		if cur == target {
			return true
		}
		next, ok := r.resolveEntry(cur)
		if !ok || next.ParentSpec == cur {
			return false
		}
		cur = next.ParentSpec
	}
	return false
}

func (r *Registry) recordExtends(child, parent *ParserEntry) bool {
	childFields := map[string]string{}
	for _, f := range child.FieldSpecs {
		childFields[f.Name] = f.Spec
	}
	for _, pf := range parent.FieldSpecs {
		cf, ok := childFields[pf.Name]
		if !ok {
			return false
		}
		if !r.extendsOrEqual(cf, pf.Spec) {
			return false
		}
	}
	return true
}

func unionSubset(child, parent []string) bool {
	parentSet := make(map[string]bool, len(parent))
	for _, m := range parent {
		parentSet[m] = true
	}
	for _, m := range child {
		if !parentSet[m] {
			return false
		}
	}
	return true
}

func (r *Registry) unionExtendsNonUnion(union *ParserEntry, target string) bool {
	for _, m := range union.UnionSpecs {
		if m == "nil" {
			return false
		}
		if !r.extendsOrEqual(m, target) {
			return false
		}
	}
	return true
}

func (r *Registry) typeExtendsUnion(childSpec string, union *ParserEntry) bool {
	for _, m := range union.UnionSpecs {
		if childSpec == m || r.ExtendsOrRestrict(childSpec, m) {
			return true
		}
	}
	return false
}
