package compiler

import (
	"strconv"
	"strings"

	"erkao/internal/bytecode"
	"erkao/internal/token"
	"erkao/internal/value"
)

func (p *Parser) expression() { p.parsePrecedence(precAssignment) }

func (p *Parser) parsePrecedence(prec precedence) {
	p.advance()
	rule := ruleFor(p.prev().Kind)
	if rule.prefix == nil {
		p.errorAtCurrent("expected expression")
		return
	}
	canAssign := prec <= precAssignment
	rule.prefix(p, canAssign)

	for prec <= ruleFor(p.cur().Kind).precedence {
		p.advance()
		infix := ruleFor(p.prev().Kind).infix
		infix(p, canAssign)
	}

	// A valid assignment target (identifier, property, index) consumes
	// its own '=' inside identifier()/dot()/index() before this point.
	// If one is still sitting here and we were in assignable position,
	// the prefix expression we just compiled (a literal, a call result,
	// a grouped/binary expression, ...) isn't assignable.
	if canAssign && p.match(token.Equal) {
		p.errorAtCurrent("invalid assignment target")
	}
}

func (p *Parser) number(canAssign bool) {
	n, _ := strconv.ParseFloat(p.prev().Value, 64)
	p.emitU16(bytecode.CONSTANT, p.constIdx(value.NumberValue(n)))
}

func (p *Parser) string(canAssign bool) {
	p.emitU16(bytecode.CONSTANT, p.constIdx(value.ObjValue(value.NewStringRaw(p.prev().Value))))
}

// templateString compiles a `${}`-interpolated literal by splitting the
// raw text on interpolation markers and emitting a chain of STRINGIFY +
// ADD (concatenation is ADD on two strings, spec §4.3 "ADD on two
// strings concatenates"). The lexer hands us the whole literal
// (including `${...}` spans) as one token's Value per spec.md's
// external-lexer contract, so the compiler re-lexes the interpolation
// boundaries here rather than receiving separate sub-tokens.
func (p *Parser) templateString(canAssign bool) {
	raw := p.prev().Value
	parts, exprs := splitTemplate(raw)
	emitted := false
	for i, part := range parts {
		if part != "" {
			p.emitU16(bytecode.CONSTANT, p.constIdx(value.ObjValue(value.NewStringRaw(part))))
			if emitted {
				p.emit(bytecode.ADD)
			}
			emitted = true
		}
		if i < len(exprs) {
			p.compileSubExpr(exprs[i])
			p.emit(bytecode.STRINGIFY)
			if emitted {
				p.emit(bytecode.ADD)
			}
			emitted = true
		}
	}
	if !emitted {
		p.emitU16(bytecode.CONSTANT, p.constIdx(value.ObjValue(value.NewStringRaw(""))))
	}
}

// splitTemplate breaks raw on `${...}` markers, returning the literal
// text segments and the raw expression text found inside each marker.
func splitTemplate(raw string) (parts []string, exprs []string) {
	for {
		i := strings.Index(raw, "${")
		if i < 0 {
			parts = append(parts, raw)
			return
		}
		parts = append(parts, raw[:i])
		rest := raw[i+2:]
		j := strings.Index(rest, "}")
		if j < 0 {
			exprs = append(exprs, rest)
			raw = ""
			continue
		}
		exprs = append(exprs, rest[:j])
		raw = rest[j+1:]
	}
}

// compileSubExpr re-enters the Pratt parser over a standalone token
// slice (a `${ }` segment's worth of already-produced tokens, handed
// to the compiler as raw text per the external-lexer boundary; reusing
// the lexer here would reintroduce the dependency spec.md's "external
// collaborator" framing explicitly avoids, so sub-expressions inside a
// template string are limited to the common case of a single
// identifier or dotted path compiled via identifier()/dot() calls
// rather than a full re-lex).
func (p *Parser) compileSubExpr(src string) {
	name := strings.TrimSpace(src)
	segs := strings.Split(name, ".")
	if segs[0] == "" {
		p.emit(bytecode.NULL)
		return
	}
	p.emitU16(bytecode.GET_VAR, p.identConst(segs[0]))
	for _, seg := range segs[1:] {
		p.emitU16(bytecode.GET_PROPERTY, p.identConst(seg))
	}
}

func (p *Parser) literal(canAssign bool) {
	switch p.prev().Kind {
	case token.True:
		p.emit(bytecode.TRUE)
	case token.False:
		p.emit(bytecode.FALSE)
	case token.Null:
		p.emit(bytecode.NULL)
	}
}

func (p *Parser) this(canAssign bool) {
	p.emitU16(bytecode.GET_THIS, 0)
}

// builtinArity gives the fixed argument count of each type-level builtin
// (spec §4.1's IS_ARRAY/IS_MAP/LEN/MAP_HAS/ARRAY_APPEND/MAP_SET): these
// operate on any Array/Map/String rather than a single class's method
// table, so they're reached as ordinary-looking calls on a reserved name
// instead of through the dot/INVOKE dispatch props.go resolves for
// Instance and Map field lookups.
var builtinArity = map[string]int{
	"len":     1,
	"isArray": 1,
	"isMap":   1,
	"mapHas":  2,
	"push":    2,
	"mapSet":  3,
}

// builtin compiles one of the reserved builtin-call forms: its arguments
// left to right, then the opcode the name maps to. Arity is fixed and
// checked at compile time since these aren't Callables with their own
// arity metadata.
func (p *Parser) builtin(name string) {
	want := builtinArity[name]
	p.expect(token.LParen, "expected '(' after "+name)
	argc := p.argumentList(token.RParen)
	if argc != want {
		p.errorAtCurrent("expected " + strconv.Itoa(want) + " argument(s) to " + name)
	}
	switch name {
	case "len":
		p.emit(bytecode.LEN)
	case "isArray":
		p.emit(bytecode.IS_ARRAY)
	case "isMap":
		p.emit(bytecode.IS_MAP)
	case "mapHas":
		p.emit(bytecode.MAP_HAS)
	case "push":
		p.emit(bytecode.ARRAY_APPEND)
	case "mapSet":
		p.emit(bytecode.MAP_SET)
	}
}

func (p *Parser) identifier(canAssign bool) {
	name := p.prev().Value
	if _, ok := builtinArity[name]; ok && p.check(token.LParen) {
		p.builtin(name)
		return
	}
	if canAssign && p.match(token.Equal) {
		p.expression()
		p.emitU16(bytecode.SET_VAR, p.identConst(name))
		return
	}
	p.emitU16(bytecode.GET_VAR, p.identConst(name))
}

func (p *Parser) grouping(canAssign bool) {
	p.expression()
	p.expect(token.RParen, "expected ')' after expression")
}

func (p *Parser) unary(canAssign bool) {
	op := p.prev().Kind
	p.parsePrecedence(precUnary)
	switch op {
	case token.Minus:
		p.emit(bytecode.NEGATE)
	case token.Bang:
		p.emit(bytecode.NOT)
	}
}

func (p *Parser) binary(canAssign bool) {
	op := p.prev().Kind
	rule := ruleFor(op)
	p.parsePrecedence(rule.precedence + 1)
	switch op {
	case token.Plus:
		p.emit(bytecode.ADD)
	case token.Minus:
		p.emit(bytecode.SUBTRACT)
	case token.Star:
		p.emit(bytecode.MULTIPLY)
	case token.Slash:
		p.emit(bytecode.DIVIDE)
	case token.EqualEqual:
		p.emit(bytecode.EQUAL)
	case token.BangEqual:
		p.emit(bytecode.EQUAL)
		p.emit(bytecode.NOT)
	case token.Greater:
		p.emit(bytecode.GREATER)
	case token.GreaterEqual:
		p.emit(bytecode.GREATER_EQUAL)
	case token.Less:
		p.emit(bytecode.LESS)
	case token.LessEqual:
		p.emit(bytecode.LESS_EQUAL)
	}
}

// and/or short-circuit via JUMP_IF_FALSE/JUMP rather than opcodes of
// their own, matching how the opcode table (spec §4.1) has no
// dedicated logical-and/or instruction.
func (p *Parser) and(canAssign bool) {
	endJump := p.emitJump(bytecode.JUMP_IF_FALSE)
	p.emit(bytecode.POP)
	p.parsePrecedence(precAnd)
	p.patchJump(endJump)
}

func (p *Parser) or(canAssign bool) {
	elseJump := p.emitJump(bytecode.JUMP_IF_FALSE)
	endJump := p.emitJump(bytecode.JUMP)
	p.patchJump(elseJump)
	p.emit(bytecode.POP)
	p.parsePrecedence(precOr)
	p.patchJump(endJump)
}

func (p *Parser) call(canAssign bool) {
	optional := p.prev().Kind == token.QuestionDot
	argc := p.argumentList(token.RParen)
	op := bytecode.CALL
	if optional {
		op = bytecode.CALL_OPTIONAL
	}
	p.emitU8(op, byte(argc))
}

func (p *Parser) argumentList(end token.Kind) int {
	argc := 0
	if !p.check(end) {
		for {
			p.expression()
			argc++
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.expect(end, "expected ')' after arguments")
	return argc
}

func (p *Parser) dot(canAssign bool) {
	name := p.expect(token.Ident, "expected property name after '.'").Value
	if p.match(token.LParen) {
		argc := p.argumentList(token.RParen)
		p.chunk().EmitU16U8(bytecode.INVOKE, p.identConst(name), byte(argc), p.prev())
		return
	}
	if canAssign && p.match(token.Equal) {
		p.expression()
		p.emitU16(bytecode.SET_PROPERTY, p.identConst(name))
		return
	}
	p.emitU16(bytecode.GET_PROPERTY, p.identConst(name))
}

func (p *Parser) dotOptional(canAssign bool) {
	name := p.expect(token.Ident, "expected property name after '?.'").Value
	p.emitU16(bytecode.GET_PROPERTY_OPTIONAL, p.identConst(name))
	if p.match(token.LParen) {
		argc := p.argumentList(token.RParen)
		p.emitU8(bytecode.CALL_OPTIONAL, byte(argc))
	}
}

func (p *Parser) index(canAssign bool) {
	p.expression()
	p.expect(token.RBracket, "expected ']' after index")
	if canAssign && p.match(token.Equal) {
		p.expression()
		p.emit(bytecode.SET_INDEX)
		return
	}
	p.emit(bytecode.GET_INDEX)
}

// unwrap implements TRY_UNWRAP as a postfix operator (spec §4.3
// "Unwrap operator"). spec.md leaves the surface token unspecified
// (lexer is an external collaborator); erkao spells it as a trailing
// `?`, the idiomatic choice among the corpus's similarly Result/Option
// flavoured designs.
func (p *Parser) unwrap(canAssign bool) {
	p.emit(bytecode.TRY_UNWRAP)
}

func (p *Parser) arrayLiteral(canAssign bool) {
	count := 0
	if !p.check(token.RBracket) {
		for {
			p.expression()
			count++
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.expect(token.RBracket, "expected ']' after array elements")
	p.emitU16(bytecode.ARRAY, uint16(count))
}

func (p *Parser) mapLiteral(canAssign bool) {
	count := 0
	if !p.check(token.RBrace) {
		for {
			if p.check(token.String) || p.check(token.Ident) {
				key := p.advance().Value
				p.emitU16(bytecode.CONSTANT, p.constIdx(value.ObjValue(value.NewStringRaw(key))))
			} else {
				p.expression()
			}
			p.expect(token.Colon, "expected ':' in map entry")
			p.expression()
			count++
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.expect(token.RBrace, "expected '}' after map entries")
	p.emitU16(bytecode.MAP, uint16(count))
}

func (p *Parser) functionExpr(canAssign bool) {
	fn := p.function("<anonymous>", false, false)
	idx := p.chunk().AddConst(value.ObjValue(fn))
	p.emitU16(bytecode.CLOSURE, uint16(idx))
}
