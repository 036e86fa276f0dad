package parser

import (
	"github.com/zulon-lang/zulon/internal/lexer"
	"github.com/zulon-lang/zulon/internal/position"
)

// parseType parses a type expression, including the postfix `?` optional
// marker and the infix `|` error-union marker (spec.md section 4.3: `T | E`
// desugars to Outcome<T,E> at type-checking time; the parser keeps both
// sides as an ErrorUnionType).
func (p *Parser) parseType() (Type, error) {
	left, err := p.parseTypePostfix()
	if err != nil {
		return nil, err
	}

	if p.at(lexer.Pipe) {
		p.advance()

		errType, err := p.parseTypePostfix()
		if err != nil {
			return nil, err
		}

		return &ErrorUnionType{base: base{Span: position.Span{Start: left.GetSpan().Start, End: errType.GetSpan().End}}, Value: left, Error: errType}, nil
	}

	return left, nil
}

func (p *Parser) parseTypePostfix() (Type, error) {
	t, err := p.parseTypePrimary()
	if err != nil {
		return nil, err
	}

	for p.at(lexer.Question) {
		end := p.advance().Span
		t = &OptionalType{base: base{Span: position.Span{Start: t.GetSpan().Start, End: end.End}}, Elem: t}
	}

	return t, nil
}

func (p *Parser) parseTypePrimary() (Type, error) {
	tok := p.cur()

	switch tok.Kind {
	case lexer.Amp:
		p.advance()

		mut := false
		if _, ok := p.accept(lexer.KwMut); ok {
			mut = true
		}

		elem, err := p.parseTypePostfix()
		if err != nil {
			return nil, err
		}

		return &RefType{base: base{Span: position.Span{Start: tok.Span.Start, End: elem.GetSpan().End}}, Mut: mut, Elem: elem}, nil
	case lexer.Star:
		p.advance()

		mut := false
		if _, ok := p.accept(lexer.KwMut); ok {
			mut = true
		}

		elem, err := p.parseTypePostfix()
		if err != nil {
			return nil, err
		}

		return &PointerType{base: base{Span: position.Span{Start: tok.Span.Start, End: elem.GetSpan().End}}, Mut: mut, Elem: elem}, nil
	case lexer.Bang:
		p.advance()
		return &NeverType{base: base{Span: tok.Span}}, nil
	case lexer.LBracket:
		return p.parseArrayOrSliceType()
	case lexer.LParen:
		return p.parseTupleOrUnitType()
	case lexer.KwFn:
		return p.parseFunctionType()
	case lexer.Identifier:
		switch tok.Literal {
		case "dyn":
			p.advance()

			name, err := p.expect(lexer.Identifier)
			if err != nil {
				return nil, err
			}

			return &TraitObjectType{base: base{Span: position.Span{Start: tok.Span.Start, End: name.Span.End}}, TraitName: name.Literal}, nil
		case "impl":
			p.advance()

			name, err := p.expect(lexer.Identifier)
			if err != nil {
				return nil, err
			}

			return &ImplTraitType{base: base{Span: position.Span{Start: tok.Span.Start, End: name.Span.End}}, TraitName: name.Literal}, nil
		}

		return p.parsePathOrSimpleType()
	default:
		return nil, &Error{Kind: UnexpectedToken, Expected: "type", Found: tok.Kind.String(), Span: tok.Span}
	}
}

func (p *Parser) parsePathOrSimpleType() (Type, error) {
	first, err := p.expect(lexer.Identifier)
	if err != nil {
		return nil, err
	}

	segments := []string{first.Literal}
	span := first.Span

	for p.at(lexer.ColonColon) {
		p.advance()

		seg, err := p.expect(lexer.Identifier)
		if err != nil {
			return nil, err
		}

		segments = append(segments, seg.Literal)
		span.End = seg.Span.End
	}

	var args []Type

	if p.at(lexer.Lt) {
		p.advance()

		for !p.atGenericClose() {
			arg, err := p.parseType()
			if err != nil {
				return nil, err
			}

			args = append(args, arg)

			if !p.atGenericClose() {
				if _, err := p.expect(lexer.Comma); err != nil {
					return nil, err
				}
			}
		}

		end := p.cur().Span
		if err := p.closeAngle(); err != nil {
			return nil, err
		}

		span.End = end.End
	}

	if len(segments) > 1 {
		return &PathType{base: base{Span: span}, Segments: segments, Args: args}, nil
	}

	return &SimpleType{base: base{Span: span}, Name: first.Literal, Args: args}, nil
}

// atGenericClose reports whether the current token could close a generic
// argument list, either a plain `>` or a `>>`/`>=` that a closeAngle split
// will carve one `>` off of.
func (p *Parser) atGenericClose() bool {
	return p.at(lexer.Gt) || p.at(lexer.Shr)
}

// closeAngle consumes one level of a generic argument list's closing `>`.
// Because the lexer performs maximal munch, `Vec<Vec<T>>` tokenizes its
// closing pair as a single Shr (">>"); closeAngle splits it into two
// virtual `>` tokens by rewriting the token in place so a second call can
// consume the remainder (spec.md section 4.2 discusses maximal munch;
// generic closing is the parser-side consequence).
func (p *Parser) closeAngle() error {
	tok := p.cur()

	switch tok.Kind {
	case lexer.Gt:
		p.advance()
		return nil
	case lexer.Shr:
		p.toks[p.pos] = lexer.Token{
			Kind:    lexer.Gt,
			Literal: ">",
			Span: position.Span{
				Start: position.Position{
					Filename: tok.Span.Start.Filename,
					Line:     tok.Span.Start.Line,
					Column:   tok.Span.Start.Column + 1,
					Offset:   tok.Span.Start.Offset + 1,
				},
				End: tok.Span.End,
			},
		}

		return nil
	default:
		return &Error{Kind: UnexpectedToken, Expected: ">", Found: tok.Kind.String(), Span: tok.Span}
	}
}

func (p *Parser) parseArrayOrSliceType() (Type, error) {
	start := p.advance().Span // [

	elem, err := p.parseType()
	if err != nil {
		return nil, err
	}

	if p.at(lexer.Semicolon) {
		p.advance()

		size, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		end, err := p.expect(lexer.RBracket)
		if err != nil {
			return nil, err
		}

		return &ArrayType{base: base{Span: position.Span{Start: start.Start, End: end.Span.End}}, Elem: elem, Size: size}, nil
	}

	end, err := p.expect(lexer.RBracket)
	if err != nil {
		return nil, err
	}

	return &SliceType{base: base{Span: position.Span{Start: start.Start, End: end.Span.End}}, Elem: elem}, nil
}

func (p *Parser) parseTupleOrUnitType() (Type, error) {
	start := p.advance().Span // (

	if p.at(lexer.RParen) {
		end := p.advance().Span
		return &UnitType{base: base{Span: position.Span{Start: start.Start, End: end.End}}}, nil
	}

	first, err := p.parseType()
	if err != nil {
		return nil, err
	}

	if p.at(lexer.RParen) {
		p.advance()
		return first, nil // parenthesized type
	}

	elements := []Type{first}

	for p.at(lexer.Comma) {
		p.advance()

		if p.at(lexer.RParen) {
			break
		}

		el, err := p.parseType()
		if err != nil {
			return nil, err
		}

		elements = append(elements, el)
	}

	end, err := p.expect(lexer.RParen)
	if err != nil {
		return nil, err
	}

	return &TupleType{base: base{Span: position.Span{Start: start.Start, End: end.Span.End}}, Elements: elements}, nil
}

func (p *Parser) parseFunctionType() (Type, error) {
	start := p.advance().Span // fn

	if _, err := p.expect(lexer.LParen); err != nil {
		return nil, err
	}

	var params []Type

	for !p.at(lexer.RParen) {
		ty, err := p.parseType()
		if err != nil {
			return nil, err
		}

		params = append(params, ty)

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

	span := position.Span{Start: start.Start, End: end.Span.End}

	var result Type = &UnitType{base: base{Span: end.Span}}

	if _, ok := p.accept(lexer.Arrow); ok {
		result, err = p.parseTypePostfix()
		if err != nil {
			return nil, err
		}

		span.End = result.GetSpan().End
	}

	return &FunctionType{base: base{Span: span}, Params: params, Result: result}, nil
}
