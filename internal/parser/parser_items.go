package parser

import (
	"github.com/zulon-lang/zulon/internal/lexer"
	"github.com/zulon-lang/zulon/internal/position"
)

// parseItem parses one top-level or nested item: attributes, visibility,
// and the item itself (spec.md section 3's Declaration node list).
func (p *Parser) parseItem() (Declaration, error) {
	attrs, err := p.parseAttributes()
	if err != nil {
		return nil, err
	}

	start := p.cur().Span

	if _, ok := p.accept(lexer.KwPub); ok {
		start = p.toks[p.pos-1].Span
	}

	if p.curIsIdentLiteral("extern") {
		return p.parseExternItem(start, attrs)
	}

	switch p.cur().Kind {
	case lexer.KwFn:
		return p.parseFunction(start, attrs, false, false)
	case lexer.KwStruct:
		return p.parseStruct(start)
	case lexer.KwEnum:
		return p.parseEnum(start)
	case lexer.KwTrait:
		return p.parseTrait(start)
	case lexer.KwImpl:
		return p.parseImpl(start)
	case lexer.KwType:
		return p.parseTypeAlias(start)
	case lexer.KwConst:
		return p.parseConst(start)
	case lexer.KwStatic:
		return p.parseStatic(start)
	case lexer.KwMod:
		return p.parseModule(start)
	case lexer.KwUse:
		return p.parseUse(start)
	case lexer.KwEffect:
		return p.parseEffectDecl(start)
	default:
		return nil, &Error{Kind: UnexpectedToken, Expected: "item", Found: p.cur().Kind.String(), Span: p.cur().Span}
	}
}

func (p *Parser) curIsIdentLiteral(lit string) bool {
	return p.cur().Kind == lexer.Identifier && p.cur().Literal == lit
}

// parseAttributes parses zero or more `#[name]` / `#[name(args)]` /
// `#[name(key = "value", ...)]` annotations.
func (p *Parser) parseAttributes() ([]Attribute, error) {
	var attrs []Attribute

	for p.at(lexer.Hash) {
		start := p.advance().Span // #

		if _, err := p.expect(lexer.LBracket); err != nil {
			return nil, err
		}

		name, err := p.expect(lexer.Identifier)
		if err != nil {
			return nil, err
		}

		attr := Attribute{Name: name.Literal, Args: map[string]string{}}

		if _, ok := p.accept(lexer.LParen); ok {
			for !p.at(lexer.RParen) {
				key, err := p.expect(lexer.Identifier)
				if err != nil {
					return nil, err
				}

				if _, ok := p.accept(lexer.Assign); ok {
					val, err := p.expect(lexer.String)
					if err != nil {
						return nil, err
					}

					attr.Args[key.Literal] = val.Literal
				} else {
					attr.Args[key.Literal] = ""
				}

				if !p.at(lexer.RParen) {
					if _, err := p.expect(lexer.Comma); err != nil {
						return nil, err
					}
				}
			}

			if _, err := p.expect(lexer.RParen); err != nil {
				return nil, err
			}
		}

		end, err := p.expect(lexer.RBracket)
		if err != nil {
			return nil, err
		}

		attr.Span = position.Span{Start: start.Start, End: end.Span.End}
		attrs = append(attrs, attr)
	}

	return attrs, nil
}

// parseExternItem parses `extern crate name;` or `extern fn name(...) -> T;`
// (spec.md section 1's variadic-extern supplement; extern crate is a stub
// recognized and otherwise ignored per spec.md section 1's non-goals).
func (p *Parser) parseExternItem(start position.Span, attrs []Attribute) (Declaration, error) {
	p.advance() // extern

	if p.curIsIdentLiteral("crate") {
		p.advance()

		name, err := p.expect(lexer.Identifier)
		if err != nil {
			return nil, err
		}

		end, err := p.expect(lexer.Semicolon)
		if err != nil {
			return nil, err
		}

		return &ExternCrateDecl{base: base{Span: position.Span{Start: start.Start, End: end.Span.End}}, Name: name.Literal}, nil
	}

	return p.parseFunction(start, attrs, true, true)
}

// parseFunction parses a `fn` item. declOnly functions declare a
// signature only, ending in `;` instead of a body (extern functions and
// effect operations); they may be variadic (trailing `...` parameter,
// spec.md section 1's ambient-stack supplement for variadic extern
// functions). isExtern additionally marks FunctionDecl.IsExtern.
func (p *Parser) parseFunction(start position.Span, attrs []Attribute, isExtern, declOnly bool) (*FunctionDecl, error) {
	if _, err := p.expect(lexer.KwFn); err != nil {
		return nil, err
	}

	name, err := p.expect(lexer.Identifier)
	if err != nil {
		return nil, err
	}

	generics, err := p.parseOptionalGenerics()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(lexer.LParen); err != nil {
		return nil, err
	}

	var params []Param

	variadic := false

	for !p.at(lexer.RParen) {
		if p.at(lexer.DotDotDot) {
			p.advance()

			variadic = true

			break
		}

		pname, err := p.expect(lexer.Identifier)
		if err != nil {
			return nil, err
		}

		param := Param{Name: pname.Literal, Span: pname.Span}

		if _, ok := p.accept(lexer.Colon); ok {
			ty, err := p.parseType()
			if err != nil {
				return nil, err
			}

			param.Type = ty
		}

		if _, ok := p.accept(lexer.Assign); ok {
			def, err := p.parseExpr()
			if err != nil {
				return nil, err
			}

			param.Default = def
		}

		params = append(params, param)

		if !p.at(lexer.RParen) {
			if _, err := p.expect(lexer.Comma); err != nil {
				return nil, err
			}
		}
	}

	if _, err := p.expect(lexer.RParen); err != nil {
		return nil, err
	}

	var (
		returnType Type
		errorType  Type
		effects    []Type
	)

	// `-> ReturnType` followed by zero or more `| T` clauses: the first
	// `| T` is the declared error/throw type, any further ones name
	// effects the function may perform (spec.md section 4.3).
	if _, ok := p.accept(lexer.Arrow); ok {
		returnType, err = p.parseTypePostfix()
		if err != nil {
			return nil, err
		}

		for p.at(lexer.Pipe) {
			p.advance()

			t, err := p.parseTypePostfix()
			if err != nil {
				return nil, err
			}

			if errorType == nil {
				errorType = t
			} else {
				effects = append(effects, t)
			}
		}
	}

	var body *BlockExpr

	end := p.cur().Span

	if declOnly {
		semi, err := p.expect(lexer.Semicolon)
		if err != nil {
			return nil, err
		}

		end = semi.Span
	} else {
		body, err = p.parseBlock()
		if err != nil {
			return nil, err
		}

		end = body.GetSpan()
	}

	return &FunctionDecl{
		base:       base{Span: position.Span{Start: start.Start, End: end.End}},
		Name:       name.Literal,
		Generics:   generics,
		Params:     params,
		ReturnType: returnType,
		ErrorType:  errorType,
		Effects:    effects,
		Variadic:   variadic,
		IsExtern:   isExtern,
		Attributes: attrs,
		Body:       body,
	}, nil
}

// parseOptionalGenerics parses a `<T, U, ...>` generic parameter list.
func (p *Parser) parseOptionalGenerics() ([]string, error) {
	if !p.at(lexer.Lt) {
		return nil, nil
	}

	p.advance()

	var names []string

	for !p.atGenericClose() {
		name, err := p.expect(lexer.Identifier)
		if err != nil {
			return nil, err
		}

		names = append(names, name.Literal)

		if !p.atGenericClose() {
			if _, err := p.expect(lexer.Comma); err != nil {
				return nil, err
			}
		}
	}

	if err := p.closeAngle(); err != nil {
		return nil, err
	}

	return names, nil
}

func (p *Parser) parseStruct(start position.Span) (*StructDecl, error) {
	p.advance() // struct

	name, err := p.expect(lexer.Identifier)
	if err != nil {
		return nil, err
	}

	generics, err := p.parseOptionalGenerics()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(lexer.LBrace); err != nil {
		return nil, err
	}

	var fields []Param

	for !p.at(lexer.RBrace) {
		p.accept(lexer.KwPub)

		fname, err := p.expect(lexer.Identifier)
		if err != nil {
			return nil, err
		}

		if _, err := p.expect(lexer.Colon); err != nil {
			return nil, err
		}

		ty, err := p.parseType()
		if err != nil {
			return nil, err
		}

		fields = append(fields, Param{Name: fname.Literal, Type: ty, Span: fname.Span})

		if !p.at(lexer.RBrace) {
			if _, err := p.expect(lexer.Comma); err != nil {
				return nil, err
			}
		}
	}

	end, err := p.expect(lexer.RBrace)
	if err != nil {
		return nil, err
	}

	return &StructDecl{
		base:     base{Span: position.Span{Start: start.Start, End: end.Span.End}},
		Name:     name.Literal,
		Generics: generics,
		Fields:   fields,
	}, nil
}

func (p *Parser) parseEnum(start position.Span) (*EnumDecl, error) {
	p.advance() // enum

	name, err := p.expect(lexer.Identifier)
	if err != nil {
		return nil, err
	}

	generics, err := p.parseOptionalGenerics()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(lexer.LBrace); err != nil {
		return nil, err
	}

	var variants []EnumVariant

	for !p.at(lexer.RBrace) {
		vname, err := p.expect(lexer.Identifier)
		if err != nil {
			return nil, err
		}

		variant := EnumVariant{Name: vname.Literal, Span: vname.Span}

		if _, ok := p.accept(lexer.LParen); ok {
			for !p.at(lexer.RParen) {
				ty, err := p.parseType()
				if err != nil {
					return nil, err
				}

				variant.Fields = append(variant.Fields, Param{Type: ty, Span: ty.GetSpan()})

				if !p.at(lexer.RParen) {
					if _, err := p.expect(lexer.Comma); err != nil {
						return nil, err
					}
				}
			}

			end, err := p.expect(lexer.RParen)
			if err != nil {
				return nil, err
			}

			variant.Span.End = end.Span.End
		}

		variants = append(variants, variant)

		if !p.at(lexer.RBrace) {
			if _, err := p.expect(lexer.Comma); err != nil {
				return nil, err
			}
		}
	}

	end, err := p.expect(lexer.RBrace)
	if err != nil {
		return nil, err
	}

	return &EnumDecl{
		base:     base{Span: position.Span{Start: start.Start, End: end.Span.End}},
		Name:     name.Literal,
		Generics: generics,
		Variants: variants,
	}, nil
}

func (p *Parser) parseTrait(start position.Span) (*TraitDecl, error) {
	p.advance() // trait

	name, err := p.expect(lexer.Identifier)
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(lexer.LBrace); err != nil {
		return nil, err
	}

	var methods []*FunctionDecl

	for !p.at(lexer.RBrace) {
		attrs, err := p.parseAttributes()
		if err != nil {
			return nil, err
		}

		mstart := p.cur().Span

		m, err := p.parseFunction(mstart, attrs, false, true)
		if err != nil {
			return nil, err
		}

		methods = append(methods, m)
	}

	end, err := p.expect(lexer.RBrace)
	if err != nil {
		return nil, err
	}

	return &TraitDecl{base: base{Span: position.Span{Start: start.Start, End: end.Span.End}}, Name: name.Literal, Methods: methods}, nil
}

func (p *Parser) parseImpl(start position.Span) (*ImplDecl, error) {
	p.advance() // impl

	first, err := p.expect(lexer.Identifier)
	if err != nil {
		return nil, err
	}

	traitName := ""
	typeName := first.Literal

	if _, ok := p.accept(lexer.KwFor); ok {
		ty, err := p.expect(lexer.Identifier)
		if err != nil {
			return nil, err
		}

		traitName = first.Literal
		typeName = ty.Literal
	}

	if _, err := p.expect(lexer.LBrace); err != nil {
		return nil, err
	}

	var methods []*FunctionDecl

	for !p.at(lexer.RBrace) {
		attrs, err := p.parseAttributes()
		if err != nil {
			return nil, err
		}

		mstart := p.cur().Span
		p.accept(lexer.KwPub)

		m, err := p.parseFunction(mstart, attrs, false, false)
		if err != nil {
			return nil, err
		}

		methods = append(methods, m)
	}

	end, err := p.expect(lexer.RBrace)
	if err != nil {
		return nil, err
	}

	return &ImplDecl{
		base:      base{Span: position.Span{Start: start.Start, End: end.Span.End}},
		TraitName: traitName,
		TypeName:  typeName,
		Methods:   methods,
	}, nil
}

func (p *Parser) parseTypeAlias(start position.Span) (*TypeAliasDecl, error) {
	p.advance() // type

	name, err := p.expect(lexer.Identifier)
	if err != nil {
		return nil, err
	}

	if _, _, err := p.skipOptionalGenericsUnused(); err != nil {
		return nil, err
	}

	if _, err := p.expect(lexer.Assign); err != nil {
		return nil, err
	}

	ty, err := p.parseType()
	if err != nil {
		return nil, err
	}

	end, err := p.expect(lexer.Semicolon)
	if err != nil {
		return nil, err
	}

	return &TypeAliasDecl{base: base{Span: position.Span{Start: start.Start, End: end.Span.End}}, Name: name.Literal, Type: ty}, nil
}

// skipOptionalGenericsUnused consumes an optional `<...>` generics list
// on a type alias; ZULON type aliases don't carry the parameter names
// through as a separate AST field (spec.md section 3's TypeAliasDecl has
// none), so the names are discarded.
func (p *Parser) skipOptionalGenericsUnused() (bool, []string, error) {
	names, err := p.parseOptionalGenerics()
	return names != nil, names, err
}

func (p *Parser) parseConst(start position.Span) (*ConstDecl, error) {
	p.advance() // const

	name, err := p.expect(lexer.Identifier)
	if err != nil {
		return nil, err
	}

	var ty Type

	if _, ok := p.accept(lexer.Colon); ok {
		ty, err = p.parseType()
		if err != nil {
			return nil, err
		}
	}

	if _, err := p.expect(lexer.Assign); err != nil {
		return nil, err
	}

	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	end, err := p.expect(lexer.Semicolon)
	if err != nil {
		return nil, err
	}

	return &ConstDecl{base: base{Span: position.Span{Start: start.Start, End: end.Span.End}}, Name: name.Literal, Type: ty, Value: val}, nil
}

func (p *Parser) parseStatic(start position.Span) (*StaticDecl, error) {
	p.advance() // static

	mut := false
	if _, ok := p.accept(lexer.KwMut); ok {
		mut = true
	}

	name, err := p.expect(lexer.Identifier)
	if err != nil {
		return nil, err
	}

	var ty Type

	if _, ok := p.accept(lexer.Colon); ok {
		ty, err = p.parseType()
		if err != nil {
			return nil, err
		}
	}

	if _, err := p.expect(lexer.Assign); err != nil {
		return nil, err
	}

	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	end, err := p.expect(lexer.Semicolon)
	if err != nil {
		return nil, err
	}

	return &StaticDecl{base: base{Span: position.Span{Start: start.Start, End: end.Span.End}}, Name: name.Literal, Mut: mut, Type: ty, Value: val}, nil
}

func (p *Parser) parseModule(start position.Span) (*ModuleDecl, error) {
	p.advance() // mod

	name, err := p.expect(lexer.Identifier)
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(lexer.LBrace); err != nil {
		return nil, err
	}

	var items []Declaration

	for !p.at(lexer.RBrace) {
		item, err := p.parseItem()
		if err != nil {
			return nil, err
		}

		items = append(items, item)
	}

	end, err := p.expect(lexer.RBrace)
	if err != nil {
		return nil, err
	}

	return &ModuleDecl{base: base{Span: position.Span{Start: start.Start, End: end.Span.End}}, Name: name.Literal, Items: items}, nil
}

func (p *Parser) parseUse(start position.Span) (*UseDecl, error) {
	p.advance() // use

	first, err := p.expect(lexer.Identifier)
	if err != nil {
		return nil, err
	}

	path := []string{first.Literal}

	for p.at(lexer.ColonColon) {
		p.advance()

		seg, err := p.expect(lexer.Identifier)
		if err != nil {
			return nil, err
		}

		path = append(path, seg.Literal)
	}

	end, err := p.expect(lexer.Semicolon)
	if err != nil {
		return nil, err
	}

	return &UseDecl{base: base{Span: position.Span{Start: start.Start, End: end.Span.End}}, Path: path}, nil
}

func (p *Parser) parseEffectDecl(start position.Span) (*EffectDecl, error) {
	p.advance() // effect

	name, err := p.expect(lexer.Identifier)
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(lexer.LBrace); err != nil {
		return nil, err
	}

	var ops []*FunctionDecl

	for !p.at(lexer.RBrace) {
		opStart := p.cur().Span

		op, err := p.parseFunction(opStart, nil, false, true)
		if err != nil {
			return nil, err
		}

		ops = append(ops, op)
	}

	end, err := p.expect(lexer.RBrace)
	if err != nil {
		return nil, err
	}

	return &EffectDecl{base: base{Span: position.Span{Start: start.Start, End: end.Span.End}}, Name: name.Literal, Operations: ops}, nil
}
