package typechecker

// Subst maps type-variable ids to their resolved type. Unification grows
// a Subst rather than mutating types in place, so an inference attempt
// can be rolled back by discarding the returned map (spec.md section 4.4).
type Subst map[int]Type

// Apply recursively resolves every TVar in t through s.
func (s Subst) Apply(t Type) Type {
	switch v := t.(type) {
	case *TVar:
		if bound, ok := s[v.ID]; ok {
			return s.Apply(bound)
		}

		return v
	case *TCon:
		if len(v.Args) == 0 {
			return v
		}

		args := make([]Type, len(v.Args))
		for i, a := range v.Args {
			args[i] = s.Apply(a)
		}

		return &TCon{Name: v.Name, Args: args}
	case *TFunc:
		params := make([]Type, len(v.Params))
		for i, p := range v.Params {
			params[i] = s.Apply(p)
		}

		return &TFunc{Params: params, Result: s.Apply(v.Result)}
	case *TTuple:
		elems := make([]Type, len(v.Elements))
		for i, e := range v.Elements {
			elems[i] = s.Apply(e)
		}

		return &TTuple{Elements: elems}
	default:
		return t
	}
}

// occurs reports whether v occurs free in t under s, preventing infinite
// types from unification.
func occurs(s Subst, v *TVar, t Type) bool {
	switch tt := s.Apply(t).(type) {
	case *TVar:
		return tt.ID == v.ID
	case *TCon:
		for _, a := range tt.Args {
			if occurs(s, v, a) {
				return true
			}
		}

		return false
	case *TFunc:
		for _, p := range tt.Params {
			if occurs(s, v, p) {
				return true
			}
		}

		return occurs(s, v, tt.Result)
	case *TTuple:
		for _, e := range tt.Elements {
			if occurs(s, v, e) {
				return true
			}
		}

		return false
	default:
		return false
	}
}

// Unify attempts to make a and b equal under s, returning an extended
// substitution. It is the core of Hindley-Milner inference (spec.md
// section 4.4).
func Unify(s Subst, a, b Type) (Subst, error) {
	a = s.Apply(a)
	b = s.Apply(b)

	if av, ok := a.(*TVar); ok {
		if bv, ok := b.(*TVar); ok && av.ID == bv.ID {
			return s, nil
		}

		if occurs(s, av, b) {
			return nil, &Error{Kind: InferenceError, Message: "infinite type: " + av.String() + " occurs in " + b.String()}
		}

		return bind(s, av, b), nil
	}

	if bv, ok := b.(*TVar); ok {
		if occurs(s, bv, a) {
			return nil, &Error{Kind: InferenceError, Message: "infinite type: " + bv.String() + " occurs in " + a.String()}
		}

		return bind(s, bv, a), nil
	}

	switch at := a.(type) {
	case *TCon:
		bt, ok := b.(*TCon)
		if !ok || at.Name != bt.Name || len(at.Args) != len(bt.Args) {
			return nil, &Error{Kind: TypeMismatch, Message: "expected " + a.String() + ", found " + b.String()}
		}

		cur := s

		for i := range at.Args {
			next, err := Unify(cur, at.Args[i], bt.Args[i])
			if err != nil {
				return nil, err
			}

			cur = next
		}

		return cur, nil
	case *TFunc:
		bt, ok := b.(*TFunc)
		if !ok || len(at.Params) != len(bt.Params) {
			return nil, &Error{Kind: TypeMismatch, Message: "expected " + a.String() + ", found " + b.String()}
		}

		cur := s

		for i := range at.Params {
			next, err := Unify(cur, at.Params[i], bt.Params[i])
			if err != nil {
				return nil, err
			}

			cur = next
		}

		return Unify(cur, at.Result, bt.Result)
	case *TTuple:
		bt, ok := b.(*TTuple)
		if !ok || len(at.Elements) != len(bt.Elements) {
			return nil, &Error{Kind: TypeMismatch, Message: "expected " + a.String() + ", found " + b.String()}
		}

		cur := s

		for i := range at.Elements {
			next, err := Unify(cur, at.Elements[i], bt.Elements[i])
			if err != nil {
				return nil, err
			}

			cur = next
		}

		return cur, nil
	default:
		return nil, &Error{Kind: TypeMismatch, Message: "cannot unify " + a.String() + " and " + b.String()}
	}
}

func bind(s Subst, v *TVar, t Type) Subst {
	next := make(Subst, len(s)+1)

	for k, vv := range s {
		next[k] = vv
	}

	next[v.ID] = t

	return next
}
