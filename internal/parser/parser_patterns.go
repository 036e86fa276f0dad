package parser

import (
	"github.com/zulon-lang/zulon/internal/lexer"
	"github.com/zulon-lang/zulon/internal/position"
)

// parsePattern parses a full pattern, including top-level `|` alternatives
// (spec.md section 3's pattern node list).
func (p *Parser) parsePattern() (Pattern, error) {
	first, err := p.parsePatternPrimary()
	if err != nil {
		return nil, err
	}

	if !p.at(lexer.Pipe) {
		return first, nil
	}

	alts := []Pattern{first}

	for p.at(lexer.Pipe) {
		p.advance()

		next, err := p.parsePatternPrimary()
		if err != nil {
			return nil, err
		}

		alts = append(alts, next)
	}

	return &OrPattern{base: base{Span: position.Span{Start: first.GetSpan().Start, End: alts[len(alts)-1].GetSpan().End}}, Alternatives: alts}, nil
}

func (p *Parser) parsePatternPrimary() (Pattern, error) {
	tok := p.cur()

	switch tok.Kind {
	case lexer.Identifier:
		if tok.Literal == "_" {
			p.advance()
			return &WildcardPattern{base: base{Span: tok.Span}}, nil
		}

		return p.parsePathOrBindingPattern()
	case lexer.KwMut:
		p.advance()

		name, err := p.expect(lexer.Identifier)
		if err != nil {
			return nil, err
		}

		return &IdentPattern{base: base{Span: position.Span{Start: tok.Span.Start, End: name.Span.End}}, Name: name.Literal, Mut: true}, nil
	case lexer.LParen:
		return p.parseTuplePattern()
	case lexer.LBracket:
		return p.parseArrayOrSlicePattern()
	case lexer.Integer, lexer.Float, lexer.String, lexer.Char, lexer.KwTrue, lexer.KwFalse, lexer.Minus:
		return p.parseLiteralOrRangePattern()
	default:
		return nil, &Error{Kind: UnexpectedToken, Expected: "pattern", Found: tok.Kind.String(), Span: tok.Span}
	}
}

func (p *Parser) parseLiteralOrRangePattern() (Pattern, error) {
	start := p.cur().Span

	lit, err := p.parsePatternLiteralExpr()
	if err != nil {
		return nil, err
	}

	if p.at(lexer.DotDot) || p.at(lexer.DotDotEq) {
		inclusive := p.at(lexer.DotDotEq)

		p.advance()

		end, err := p.parsePatternLiteralExpr()
		if err != nil {
			return nil, err
		}

		return &RangePattern{base: base{Span: position.Span{Start: start.Start, End: end.GetSpan().End}}, Start: lit, End: end, Inclusive: inclusive}, nil
	}

	return &LiteralPattern{base: base{Span: lit.GetSpan()}, Value: lit}, nil
}

// parsePatternLiteralExpr parses a single literal (with optional unary
// minus) as used inside a pattern, without pulling in the full expression
// grammar.
func (p *Parser) parsePatternLiteralExpr() (Expression, error) {
	neg := false

	start := p.cur().Span
	if p.at(lexer.Minus) {
		neg = true

		p.advance()
	}

	tok := p.cur()

	switch tok.Kind {
	case lexer.Integer:
		p.advance()

		lit, err := p.finishIntegerLit(tok)
		if err != nil {
			return nil, err
		}

		if neg {
			il := lit.(*IntegerLit)
			il.Value = -il.Value
			il.Span = position.Span{Start: start.Start, End: il.Span.End}
		}

		return lit, nil
	case lexer.Float:
		p.advance()

		lit, err := p.finishFloatLit(tok)
		if err != nil {
			return nil, err
		}

		if neg {
			fl := lit.(*FloatLit)
			fl.Value = -fl.Value
			fl.Span = position.Span{Start: start.Start, End: fl.Span.End}
		}

		return lit, nil
	case lexer.String:
		p.advance()
		return &StringLit{base: base{Span: tok.Span}, Value: tok.Literal}, nil
	case lexer.Char:
		p.advance()

		r := rune(0)
		if len(tok.Literal) > 0 {
			r = []rune(tok.Literal)[0]
		}

		return &CharLit{base: base{Span: tok.Span}, Value: r}, nil
	case lexer.KwTrue:
		p.advance()
		return &BoolLit{base: base{Span: tok.Span}, Value: true}, nil
	case lexer.KwFalse:
		p.advance()
		return &BoolLit{base: base{Span: tok.Span}, Value: false}, nil
	default:
		return nil, &Error{Kind: UnexpectedToken, Expected: "literal", Found: tok.Kind.String(), Span: tok.Span}
	}
}

func (p *Parser) parsePathOrBindingPattern() (Pattern, error) {
	first, err := p.expect(lexer.Identifier)
	if err != nil {
		return nil, err
	}

	if !p.at(lexer.ColonColon) && !p.at(lexer.LParen) && !p.at(lexer.LBrace) {
		return &IdentPattern{base: base{Span: first.Span}, Name: first.Literal}, nil
	}

	enumName := ""
	variantName := first.Literal
	span := first.Span

	if p.at(lexer.ColonColon) {
		p.advance()

		variant, err := p.expect(lexer.Identifier)
		if err != nil {
			return nil, err
		}

		enumName = first.Literal
		variantName = variant.Literal
		span.End = variant.Span.End
	}

	switch {
	case p.at(lexer.LParen):
		p.advance()

		var elements []Pattern

		for !p.at(lexer.RParen) {
			el, err := p.parsePattern()
			if err != nil {
				return nil, err
			}

			elements = append(elements, el)

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

		return &TupleVariantPattern{
			base: base{Span: position.Span{Start: span.Start, End: end.Span.End}},
			EnumName: enumName, VariantName: variantName, Elements: elements,
		}, nil
	case p.at(lexer.LBrace):
		p.advance()

		var fields []FieldPattern

		for !p.at(lexer.RBrace) {
			fname, err := p.expect(lexer.Identifier)
			if err != nil {
				return nil, err
			}

			var fpat Pattern = &IdentPattern{base: base{Span: fname.Span}, Name: fname.Literal}

			if _, ok := p.accept(lexer.Colon); ok {
				fpat, err = p.parsePattern()
				if err != nil {
					return nil, err
				}
			}

			fields = append(fields, FieldPattern{Name: fname.Literal, Pattern: fpat})

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

		name := variantName
		if enumName != "" {
			name = enumName + "::" + variantName
		}

		return &StructPattern{base: base{Span: position.Span{Start: span.Start, End: end.Span.End}}, Name: name, Fields: fields}, nil
	default:
		// Only a `::`-qualified path reaches here: a payload-less variant.
		return &TupleVariantPattern{base: base{Span: span}, EnumName: enumName, VariantName: variantName}, nil
	}
}

func (p *Parser) parseTuplePattern() (Pattern, error) {
	start := p.advance().Span // (

	var elements []Pattern

	for !p.at(lexer.RParen) {
		el, err := p.parsePattern()
		if err != nil {
			return nil, err
		}

		elements = append(elements, el)

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

	return &TuplePattern{base: base{Span: position.Span{Start: start.Start, End: end.Span.End}}, Elements: elements}, nil
}

// parseArrayOrSlicePattern parses `[a, b, c]` as an ArrayPattern, or, when
// a `..` rest marker is present, a SlicePattern recording its index.
func (p *Parser) parseArrayOrSlicePattern() (Pattern, error) {
	start := p.advance().Span // [

	var elements []Pattern

	restIndex := -1

	for !p.at(lexer.RBracket) {
		if p.at(lexer.DotDot) {
			p.advance()

			restIndex = len(elements)
			elements = append(elements, &WildcardPattern{base: base{Span: p.cur().Span}})
		} else {
			el, err := p.parsePattern()
			if err != nil {
				return nil, err
			}

			elements = append(elements, el)
		}

		if !p.at(lexer.RBracket) {
			if _, err := p.expect(lexer.Comma); err != nil {
				return nil, err
			}
		}
	}

	end, err := p.expect(lexer.RBracket)
	if err != nil {
		return nil, err
	}

	span := position.Span{Start: start.Start, End: end.Span.End}

	if restIndex >= 0 {
		return &SlicePattern{base: base{Span: span}, Elements: elements, RestIndex: restIndex}, nil
	}

	return &ArrayPattern{base: base{Span: span}, Elements: elements}, nil
}
