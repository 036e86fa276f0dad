package parser

import (
	"github.com/zulon-lang/zulon/internal/lexer"
	"github.com/zulon-lang/zulon/internal/position"
)

// withStructLitDisallowed runs fn with struct-literal parsing suppressed,
// restoring the previous setting afterward — used while parsing the
// condition of if/while/for so a following `{` is never mistaken for a
// struct literal (spec.md section 4.3's block-vs-expression rule).
func (p *Parser) withStructLitDisallowed(fn func() (Expression, error)) (Expression, error) {
	prev := p.structLitAllowed
	p.structLitAllowed = false

	e, err := fn()

	p.structLitAllowed = prev

	return e, err
}

// parseBlock parses `{ stmt* trailing? }`. Each statement-position
// expression followed by `;` becomes an ExprStmt; an expression
// immediately followed by `}` becomes the block's trailing value
// (spec.md section 4.3).
func (p *Parser) parseBlock() (*BlockExpr, error) {
	start, err := p.expect(lexer.LBrace)
	if err != nil {
		return nil, err
	}

	prevAllowed := p.structLitAllowed
	p.structLitAllowed = true

	var stmts []Statement

	var trailing Expression

	for !p.at(lexer.RBrace) {
		if p.at(lexer.KwLet) {
			s, err := p.parseLetStmt()
			if err != nil {
				p.structLitAllowed = prevAllowed
				return nil, err
			}

			stmts = append(stmts, s)

			continue
		}

		if decl, ok := p.tryParseItemStatement(); ok {
			d, err := decl()
			if err != nil {
				p.structLitAllowed = prevAllowed
				return nil, err
			}

			stmts = append(stmts, d)

			continue
		}

		exprStart := p.cur().Span

		expr, err := p.parseExpr()
		if err != nil {
			p.structLitAllowed = prevAllowed
			return nil, err
		}

		if p.at(lexer.Semicolon) {
			end := p.advance().Span
			stmts = append(stmts, &ExprStmt{base: base{Span: position.Span{Start: exprStart.Start, End: end.End}}, Expr: expr, HasSemicolon: true})

			continue
		}

		if p.at(lexer.RBrace) {
			trailing = expr
			break
		}

		// A block-like expression (if/match/loop/while/for/block) may be
		// used as a statement without a trailing semicolon when another
		// statement follows it.
		if isBlockLikeExpr(expr) {
			stmts = append(stmts, &ExprStmt{base: base{Span: expr.GetSpan()}, Expr: expr, HasSemicolon: false})
			continue
		}

		p.structLitAllowed = prevAllowed

		return nil, p.errorf(p.cur().Span, "expected ';' or '}' after expression, found %s", p.cur().Kind)
	}

	end, err := p.expect(lexer.RBrace)
	if err != nil {
		p.structLitAllowed = prevAllowed
		return nil, err
	}

	p.structLitAllowed = prevAllowed

	return &BlockExpr{
		base:       base{Span: position.Span{Start: start.Span.Start, End: end.Span.End}},
		Statements: stmts,
		Trailing:   trailing,
	}, nil
}

func isBlockLikeExpr(e Expression) bool {
	switch e.(type) {
	case *IfExpr, *MatchExpr, *LoopExpr, *WhileExpr, *ForExpr, *BlockExpr, *TryHandlerExpr:
		return true
	default:
		return false
	}
}

func (p *Parser) parseLetStmt() (Statement, error) {
	start := p.advance().Span // let

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

	var value Expression

	if _, ok := p.accept(lexer.Assign); ok {
		value, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}

	end, err := p.expect(lexer.Semicolon)
	if err != nil {
		return nil, err
	}

	return &LetStmt{
		base:  base{Span: position.Span{Start: start.Start, End: end.Span.End}},
		Name:  name.Literal,
		Mut:   mut,
		Type:  ty,
		Value: value,
	}, nil
}

// tryParseItemStatement recognizes a nested item declaration at statement
// position (e.g. a local `fn` or `struct`), returning a thunk to parse it
// when the current token starts one.
func (p *Parser) tryParseItemStatement() (func() (Statement, error), bool) {
	switch p.cur().Kind {
	case lexer.KwFn, lexer.KwStruct, lexer.KwEnum, lexer.KwConst, lexer.KwStatic, lexer.KwUse:
		return func() (Statement, error) { return p.parseItem() }, true
	default:
		return nil, false
	}
}

func (p *Parser) parseIf() (Expression, error) {
	start := p.advance().Span // if

	cond, err := p.withStructLitDisallowed(p.parseExpr)
	if err != nil {
		return nil, err
	}

	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	span := position.Span{Start: start.Start, End: then.GetSpan().End}

	var elseExpr Expression

	if _, ok := p.accept(lexer.KwElse); ok {
		if p.at(lexer.KwIf) {
			elseExpr, err = p.parseIf()
		} else {
			elseExpr, err = p.parseBlock()
		}

		if err != nil {
			return nil, err
		}

		span.End = elseExpr.GetSpan().End
	}

	return &IfExpr{base: base{Span: span}, Cond: cond, Then: then, Else: elseExpr}, nil
}

func (p *Parser) parseMatch() (Expression, error) {
	start := p.advance().Span // match

	scrutinee, err := p.withStructLitDisallowed(p.parseExpr)
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(lexer.LBrace); err != nil {
		return nil, err
	}

	var arms []MatchArm

	for !p.at(lexer.RBrace) {
		pat, err := p.parsePattern()
		if err != nil {
			return nil, err
		}

		var guard Expression

		if _, ok := p.accept(lexer.KwIf); ok {
			guard, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}

		if _, err := p.expect(lexer.FatArrow); err != nil {
			return nil, err
		}

		body, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		arms = append(arms, MatchArm{Pattern: pat, Guard: guard, Body: body})

		if p.at(lexer.Comma) {
			p.advance()
		}
	}

	end, err := p.expect(lexer.RBrace)
	if err != nil {
		return nil, err
	}

	return &MatchExpr{base: base{Span: position.Span{Start: start.Start, End: end.Span.End}}, Scrutinee: scrutinee, Arms: arms}, nil
}

func (p *Parser) parseLoop() (Expression, error) {
	start := p.advance().Span // loop

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	return &LoopExpr{base: base{Span: position.Span{Start: start.Start, End: body.GetSpan().End}}, Body: body}, nil
}

func (p *Parser) parseWhile() (Expression, error) {
	start := p.advance().Span // while

	cond, err := p.withStructLitDisallowed(p.parseExpr)
	if err != nil {
		return nil, err
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	return &WhileExpr{base: base{Span: position.Span{Start: start.Start, End: body.GetSpan().End}}, Cond: cond, Body: body}, nil
}

func (p *Parser) parseFor() (Expression, error) {
	start := p.advance().Span // for

	pat, err := p.parsePattern()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(lexer.KwIn); err != nil {
		return nil, err
	}

	iter, err := p.withStructLitDisallowed(p.parseExpr)
	if err != nil {
		return nil, err
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	return &ForExpr{base: base{Span: position.Span{Start: start.Start, End: body.GetSpan().End}}, Pattern: pat, Iter: iter, Body: body}, nil
}

func (p *Parser) parseBreak() (Expression, error) {
	tok := p.advance() // break

	if p.atExprEnd() {
		return &BreakExpr{base: base{Span: tok.Span}}, nil
	}

	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	return &BreakExpr{base: base{Span: position.Span{Start: tok.Span.Start, End: val.GetSpan().End}}, Value: val}, nil
}

func (p *Parser) parseReturn() (Expression, error) {
	tok := p.advance() // return

	if p.atExprEnd() {
		return &ReturnExpr{base: base{Span: tok.Span}}, nil
	}

	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	return &ReturnExpr{base: base{Span: position.Span{Start: tok.Span.Start, End: val.GetSpan().End}}, Value: val}, nil
}

func (p *Parser) parseThrow() (Expression, error) {
	tok := p.advance() // throw

	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	return &ThrowExpr{base: base{Span: position.Span{Start: tok.Span.Start, End: val.GetSpan().End}}, Value: val}, nil
}

func (p *Parser) parsePerform() (Expression, error) {
	tok := p.advance() // perform

	effect, err := p.expect(lexer.Identifier)
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(lexer.ColonColon); err != nil {
		return nil, err
	}

	op, err := p.expect(lexer.Identifier)
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(lexer.LParen); err != nil {
		return nil, err
	}

	var args []Expression

	for !p.at(lexer.RParen) {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		args = append(args, arg)

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

	return &PerformExpr{
		base:       base{Span: position.Span{Start: tok.Span.Start, End: end.Span.End}},
		EffectName: effect.Literal, Operation: op.Literal, Args: args,
	}, nil
}

// parseTryHandler parses `try { body } with { Effect::op(params) => body, ... }`
// (spec.md section 3's Handler node, algebraic-effect handling).
func (p *Parser) parseTryHandler() (Expression, error) {
	start := p.advance().Span // try

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	span := position.Span{Start: start.Start, End: body.GetSpan().End}

	var handlers []Handler

	if _, ok := p.accept(lexer.KwWith); ok {
		if _, err := p.expect(lexer.LBrace); err != nil {
			return nil, err
		}

		for !p.at(lexer.RBrace) {
			h, err := p.parseHandler()
			if err != nil {
				return nil, err
			}

			handlers = append(handlers, h)

			if p.at(lexer.Comma) {
				p.advance()
			}
		}

		end, err := p.expect(lexer.RBrace)
		if err != nil {
			return nil, err
		}

		span.End = end.Span.End
	}

	return &TryHandlerExpr{base: base{Span: span}, Body: body, Handlers: handlers}, nil
}

func (p *Parser) parseHandler() (Handler, error) {
	effect, err := p.expect(lexer.Identifier)
	if err != nil {
		return Handler{}, err
	}

	if _, err := p.expect(lexer.ColonColon); err != nil {
		return Handler{}, err
	}

	op, err := p.expect(lexer.Identifier)
	if err != nil {
		return Handler{}, err
	}

	if _, err := p.expect(lexer.LParen); err != nil {
		return Handler{}, err
	}

	var params []string

	for !p.at(lexer.RParen) {
		name, err := p.expect(lexer.Identifier)
		if err != nil {
			return Handler{}, err
		}

		params = append(params, name.Literal)

		if !p.at(lexer.RParen) {
			if _, err := p.expect(lexer.Comma); err != nil {
				return Handler{}, err
			}
		}
	}

	if _, err := p.expect(lexer.RParen); err != nil {
		return Handler{}, err
	}

	if _, err := p.expect(lexer.FatArrow); err != nil {
		return Handler{}, err
	}

	body, err := p.parseExpr()
	if err != nil {
		return Handler{}, err
	}

	return Handler{EffectName: effect.Literal, Operation: op.Literal, Params: params, Body: body}, nil
}

// parseClosure parses `|params| body` or `|params| -> RetType body`, as
// well as the empty-param `|| body` spelling the lexer tokenizes as a
// single OrOr token.
func (p *Parser) parseClosure() (Expression, error) {
	start := p.cur().Span

	var params []Param

	if p.at(lexer.OrOr) {
		p.advance()
	} else {
		p.advance() // first |

		for !p.at(lexer.Pipe) {
			name, err := p.expect(lexer.Identifier)
			if err != nil {
				return nil, err
			}

			param := Param{Name: name.Literal, Span: name.Span}

			if _, ok := p.accept(lexer.Colon); ok {
				ty, err := p.parseTypePostfix()
				if err != nil {
					return nil, err
				}

				param.Type = ty
			}

			params = append(params, param)

			if !p.at(lexer.Pipe) {
				if _, err := p.expect(lexer.Comma); err != nil {
					return nil, err
				}
			}
		}

		p.advance() // closing |
	}

	var retType Type

	if _, ok := p.accept(lexer.Arrow); ok {
		ty, err := p.parseTypePostfix()
		if err != nil {
			return nil, err
		}

		retType = ty
	}

	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	return &ClosureExpr{
		base:       base{Span: position.Span{Start: start.Start, End: body.GetSpan().End}},
		Params:     params,
		ReturnType: retType,
		Body:       body,
	}, nil
}
