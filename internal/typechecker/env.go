package typechecker

// Env is a chained lexical scope over four separate namespaces: values
// (let bindings, function names), types (struct/enum/alias names),
// effects (effect declarations), and traits (trait declarations). Each
// namespace is resolved independently, so e.g. a struct and a function
// may share a name (spec.md section 4.4).
type Env struct {
	parent  *Env
	values  map[string]Type
	types   map[string]Type
	effects map[string]*EffectInfo
	traits  map[string]*TraitInfo
}

// EffectInfo records an effect's operations and their signatures.
type EffectInfo struct {
	Name       string
	Operations map[string]*TFunc
}

// TraitInfo records a trait's method signatures.
type TraitInfo struct {
	Name    string
	Methods map[string]*TFunc
}

// NewEnv creates a root environment with no parent.
func NewEnv() *Env {
	return &Env{
		values:  map[string]Type{},
		types:   map[string]Type{},
		effects: map[string]*EffectInfo{},
		traits:  map[string]*TraitInfo{},
	}
}

// Child creates a nested scope.
func (e *Env) Child() *Env {
	return &Env{
		parent:  e,
		values:  map[string]Type{},
		types:   map[string]Type{},
		effects: map[string]*EffectInfo{},
		traits:  map[string]*TraitInfo{},
	}
}

// DefineValue binds name in the value namespace of this scope.
func (e *Env) DefineValue(name string, t Type) { e.values[name] = t }

// LookupValue searches this scope and its ancestors for name.
func (e *Env) LookupValue(name string) (Type, bool) {
	for s := e; s != nil; s = s.parent {
		if t, ok := s.values[name]; ok {
			return t, true
		}
	}

	return nil, false
}

// DefineType binds name in the type namespace of this scope.
func (e *Env) DefineType(name string, t Type) { e.types[name] = t }

// LookupType searches this scope and its ancestors for name.
func (e *Env) LookupType(name string) (Type, bool) {
	for s := e; s != nil; s = s.parent {
		if t, ok := s.types[name]; ok {
			return t, true
		}
	}

	return nil, false
}

// DefineEffect binds name in the effect namespace of this scope.
func (e *Env) DefineEffect(info *EffectInfo) { e.effects[info.Name] = info }

// LookupEffect searches this scope and its ancestors for an effect.
func (e *Env) LookupEffect(name string) (*EffectInfo, bool) {
	for s := e; s != nil; s = s.parent {
		if info, ok := s.effects[name]; ok {
			return info, true
		}
	}

	return nil, false
}

// DefineTrait binds name in the trait namespace of this scope.
func (e *Env) DefineTrait(info *TraitInfo) { e.traits[info.Name] = info }

// LookupTrait searches this scope and its ancestors for a trait.
func (e *Env) LookupTrait(name string) (*TraitInfo, bool) {
	for s := e; s != nil; s = s.parent {
		if info, ok := s.traits[name]; ok {
			return info, true
		}
	}

	return nil, false
}

// EffectStack tracks the effects the currently-checked function is
// permitted to perform. The checker pushes one frame per function with
// its declared effects; `try`/handler blocks push no frame of their own.
type EffectStack struct {
	frames [][]string
}

// Push enters a new permitted-effects frame.
func (s *EffectStack) Push(effects []string) { s.frames = append(s.frames, effects) }

// Pop leaves the innermost frame.
func (s *EffectStack) Pop() {
	if len(s.frames) > 0 {
		s.frames = s.frames[:len(s.frames)-1]
	}
}

// Permits reports whether name is listed in any active frame. With no
// frames at all every effect is permitted; an empty frame permits none.
func (s *EffectStack) Permits(name string) bool {
	if len(s.frames) == 0 {
		return true
	}

	for _, frame := range s.frames {
		for _, e := range frame {
			if e == name {
				return true
			}
		}
	}

	return false
}
