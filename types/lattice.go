package types

// IsSubtype reports whether a is a subtype of b.
func (ts *TypeSystem) IsSubtype(a, b Type) bool {
	if a == b || a.IsBot() || b.IsTop() {
		return true
	}
	if a.IsTop() || b.IsBot() {
		return false
	}

	switch {
	case a.kind == KindUnion:
		for _, m := range ts.Members(a) {
			if !ts.IsSubtype(m, b) {
				return false
			}
		}
		return true
	case b.kind == KindIntersection:
		for _, m := range ts.Members(b) {
			if !ts.IsSubtype(a, m) {
				return false
			}
		}
		return true
	case b.kind == KindUnion:
		for _, m := range ts.Members(b) {
			if ts.IsSubtype(a, m) {
				return true
			}
		}
		return false
	case a.kind == KindIntersection:
		for _, m := range ts.Members(a) {
			if ts.IsSubtype(m, b) {
				return true
			}
		}
		return false
	}

	switch {
	case a.kind == KindBuiltin && b.kind == KindBuiltin:
		return BuiltinSubtype(a.builtin, b.builtin)
	case a.kind == KindClass && b.kind == KindBuiltin:
		return classBelowBuiltin(a.class, b.builtin)
	case a.kind == KindBuiltin && b.kind == KindClass:
		return a.builtin == NullReference
	default:
		return ts.ClassSubtype(a.class, b.class)
	}
}

// classBelowBuiltin reports whether every instance of c is of builtin type b.
func classBelowBuiltin(c Class, b Builtin) bool {
	switch b {
	case Top, Reference, Object:
		return true
	case Array:
		return c.IsArray()
	default:
		return false
	}
}

// builtinUppers returns the builtin supertypes of a builtin or of an
// intersection made only of builtins.
func (ts *TypeSystem) builtinUppers(t Type) (builtinSet, bool) {
	switch t.kind {
	case KindBuiltin:
		return supersOf[t.builtin], true
	case KindIntersection:
		var s builtinSet
		for _, m := range ts.Members(t) {
			if m.kind != KindBuiltin {
				return 0, false
			}
			s |= supersOf[m.builtin]
		}
		return s, true
	default:
		return 0, false
	}
}

func (ts *TypeSystem) fromBuiltinSet(s builtinSet) Type {
	var members []Type
	s.each(func(b Builtin) { members = append(members, b.Type()) })
	if len(members) == 0 {
		return Top.Type()
	}
	return ts.intern(KindIntersection, members)
}

// Join returns the least upper bound of a and b. Joining primitive with
// reference values yields Top, which marks the result inconsistent.
func (ts *TypeSystem) Join(a, b Type) Type {
	if ts.IsSubtype(a, b) {
		return b
	}
	if ts.IsSubtype(b, a) {
		return a
	}
	if ua, ok := ts.builtinUppers(a); ok {
		if ub, ok := ts.builtinUppers(b); ok {
			return ts.fromBuiltinSet(minimalOf(ua & ub))
		}
	}

	var cands []Type
	for _, t := range [2]Type{a, b} {
		if t.kind == KindUnion {
			cands = append(cands, ts.Members(t)...)
		} else {
			cands = append(cands, t)
		}
	}

	prim, ref := false, false
	for _, m := range cands {
		switch {
		case ts.IsSubtype(m, Primitive.Type()):
			prim = true
		case ts.IsSubtype(m, Reference.Type()):
			ref = true
		default:
			return Top.Type()
		}
	}
	if prim && ref {
		return Top.Type()
	}

	return ts.intern(KindUnion, ts.maximal(dedup(cands)))
}

// maximal drops every candidate that is a subtype of another candidate.
func (ts *TypeSystem) maximal(cands []Type) []Type {
	out := make([]Type, 0, len(cands))
	for i, m := range cands {
		redundant := false
		for j, n := range cands {
			if i != j && ts.IsSubtype(m, n) {
				redundant = true
				break
			}
		}
		if !redundant {
			out = append(out, m)
		}
	}
	return out
}

// minimal drops every candidate that is a supertype of another candidate.
func (ts *TypeSystem) minimal(cands []Type) []Type {
	out := make([]Type, 0, len(cands))
	for i, m := range cands {
		redundant := false
		for j, n := range cands {
			if i != j && ts.IsSubtype(n, m) {
				redundant = true
				break
			}
		}
		if !redundant {
			out = append(out, m)
		}
	}
	return out
}

func dedup(in []Type) []Type {
	out := in[:0:0]
	for _, t := range in {
		seen := false
		for _, o := range out {
			if o == t {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, t)
		}
	}
	return out
}

// Meet returns the greatest lower bound of a and b, or Bot when no value can
// have both types.
func (ts *TypeSystem) Meet(a, b Type) Type {
	if ts.IsSubtype(a, b) {
		return a
	}
	if ts.IsSubtype(b, a) {
		return b
	}

	if a.kind == KindUnion || b.kind == KindUnion {
		u, other := a, b
		if u.kind != KindUnion {
			u, other = b, a
		}
		result := Bot.Type()
		for _, m := range ts.Members(u) {
			result = ts.Join(result, ts.Meet(m, other))
		}
		return result
	}

	var atoms []Type
	for _, t := range [2]Type{a, b} {
		if t.kind == KindIntersection {
			atoms = append(atoms, ts.Members(t)...)
		} else {
			atoms = append(atoms, t)
		}
	}
	return ts.intersect(dedup(atoms))
}

// intersect builds the intersection of atoms, or Bot when it is not
// reasonable.
func (ts *TypeSystem) intersect(atoms []Type) Type {
	common := allBuiltins
	var builtins []Builtin
	var classes []Class
	for _, t := range atoms {
		switch t.kind {
		case KindBuiltin:
			if t.builtin == Bot {
				return Bot.Type()
			}
			common &= subsOf[t.builtin]
			builtins = append(builtins, t.builtin)
		case KindClass:
			classes = append(classes, t.class)
		}
	}
	if len(builtins) > 0 && common&^bit(Bot) == 0 {
		return Bot.Type()
	}

	for _, c := range classes {
		for _, b := range builtins {
			if classBelowBuiltin(c, b) || b == NullReference {
				continue
			}
			if c.IsInterface() && (b == Array || b == ClassClass) {
				continue
			}
			return Bot.Type()
		}
	}

	kept := ts.minimal(atoms)
	if len(kept) > 1 {
		nonInterface := 0
		for _, t := range kept {
			if t.kind != KindClass {
				continue
			}
			if t.class.IsFinal() {
				return Bot.Type()
			}
			if !t.class.IsInterface() {
				nonInterface++
			}
		}
		if nonInterface > 1 {
			return Bot.Type()
		}
	}
	return ts.intern(KindIntersection, kept)
}

// Normalize maps t to its representative under the language's primitive
// widening rules.
func (ts *TypeSystem) Normalize(t Type) Type {
	switch t.kind {
	case KindBuiltin:
		return ts.norm.NormalizeType(t.builtin).Type()
	case KindIntersection:
		r := Top.Type()
		for _, m := range ts.Members(t) {
			r = ts.Meet(r, ts.Normalize(m))
		}
		return r
	case KindUnion:
		r := Bot.Type()
		for _, m := range ts.Members(t) {
			r = ts.Join(r, ts.Normalize(m))
		}
		return r
	default:
		return t
	}
}

// IsPrimitive reports whether t is a subtype of Primitive.
func (ts *TypeSystem) IsPrimitive(t Type) bool {
	return !t.IsBot() && ts.IsSubtype(t, Primitive.Type())
}

// IsReference reports whether t is a subtype of Reference.
func (ts *TypeSystem) IsReference(t Type) bool {
	return !t.IsBot() && ts.IsSubtype(t, Reference.Type())
}
