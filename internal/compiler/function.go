package compiler

import (
	"erkao/internal/bytecode"
	"erkao/internal/token"
	"erkao/internal/value"
)

type paramInfo struct {
	name           string
	hasDefault     bool
	defaultTokFrom int
	defaultTokTo   int // exclusive
}

func (p *Parser) funDecl() {
	name := p.expect(token.Ident, "expected function name").Value
	fn := p.function(name, false, false)
	idx := p.chunk().AddConst(value.ObjValue(fn))
	p.emitU16(bytecode.CLOSURE, uint16(idx))
	p.emitU16(bytecode.DEFINE_CONST, p.identConst(name))
}

// function compiles `(params) { body }` (the 'fun' keyword and any name
// token must already be consumed by the caller) into a standalone
// *bytecode.Function, leaving the enclosing parser state untouched.
// Parameters with a `= expr` default are not compiled inline — their
// token span is recorded and rewound into after entering the function's
// own funcState, per spec.md §4.2's "default-argument deferred
// compilation" (so default expressions see the function's own parameter
// environment instead of the declaration site's). The calling
// convention (package vm) pre-binds every parameter — supplied value or
// a `null` pad — before the chunk runs, so the prologue emitted below
// only needs to overwrite a defaulted parameter's binding (SET_VAR, not
// DEFINE_VAR — it's already declared) when the caller didn't supply it.
func (p *Parser) function(name string, isMethod, isInit bool) *bytecode.Function {
	p.expect(token.LParen, "expected '(' after function name")

	var params []paramInfo
	if !p.check(token.RParen) {
		for {
			pname := p.expect(token.Ident, "expected parameter name").Value
			info := paramInfo{name: pname}
			if p.match(token.Equal) {
				info.hasDefault = true
				info.defaultTokFrom = p.pos
				p.skipBalancedUntil(token.Comma, token.RParen)
				info.defaultTokTo = p.pos
			} else if len(params) > 0 && params[len(params)-1].hasDefault {
				p.errorAtCurrent("parameter without a default cannot follow one with a default")
			}
			params = append(params, info)
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.expect(token.RParen, "expected ')' after parameters")

	minArity := len(params)
	for i, prm := range params {
		if prm.hasDefault {
			minArity = i
			break
		}
	}

	names := make([]string, len(params))
	for i, prm := range params {
		names[i] = prm.name
	}

	fn := bytecode.NewFunction(name, names, minArity)
	fn.IsInitializer = isInit
	fn.Program = p.fn.fn.Program

	enclosing := p.fn
	p.fn = &funcState{fn: fn, enclosing: enclosing, isMethod: isMethod, isInit: isInit}

	for i, prm := range params {
		if !prm.hasDefault {
			continue
		}
		p.emit(bytecode.ARG_COUNT)
		p.emitU16(bytecode.CONSTANT, p.constIdx(value.NumberValue(float64(i))))
		p.emit(bytecode.GREATER)
		suppliedJump := p.emitJump(bytecode.JUMP_IF_FALSE)
		p.emit(bytecode.POP)
		skipDefault := p.emitJump(bytecode.JUMP)
		p.patchJump(suppliedJump)
		p.emit(bytecode.POP)

		saved := p.pos
		p.pos = prm.defaultTokFrom
		p.expression()
		p.pos = saved

		p.emitU16(bytecode.SET_VAR, p.identConst(prm.name))
		p.emit(bytecode.POP) // SET_VAR leaves the assigned value on the stack
		p.patchJump(skipDefault)
	}

	p.expect(token.LBrace, "expected '{' before function body")
	for !p.check(token.RBrace) && !p.isAtEnd() {
		p.declaration()
	}
	p.expect(token.RBrace, "expected '}' after function body")

	if isInit {
		p.emitU16(bytecode.GET_THIS, 0)
	} else {
		p.emit(bytecode.NULL)
	}
	p.emit(bytecode.RETURN)

	foldConstants(fn.Chunk)
	p.fn = enclosing
	return fn
}

// skipBalancedUntil advances the token stream past a default-parameter
// expression, stopping at the first occurrence of any of stop at
// nesting depth 0 (tracking parens/brackets/braces so a default like
// `f(a = g(1, 2))` isn't split at the inner comma).
func (p *Parser) skipBalancedUntil(stop ...token.Kind) {
	depth := 0
	for !p.isAtEnd() {
		k := p.cur().Kind
		if depth == 0 {
			for _, s := range stop {
				if k == s {
					return
				}
			}
		}
		switch k {
		case token.LParen, token.LBracket, token.LBrace:
			depth++
		case token.RParen, token.RBracket, token.RBrace:
			if depth == 0 {
				return
			}
			depth--
		}
		p.advance()
	}
}

// classDecl compiles `class Name { [init|method](params) { ... } ... }`.
// Each method compiles to its own Function template, closed over the
// class declaration's enclosing scope exactly like a `fun` literal (so a
// method can see outer globals/locals, not just `this`); CLASS then
// assembles the closures into a value.Class at runtime (spec §3's
// Class/Instance model).
func (p *Parser) classDecl() {
	name := p.expect(token.Ident, "expected class name").Value
	p.expect(token.LBrace, "expected '{' after class name")

	type methodRef struct {
		nameIdx uint16
		fnIdx   int
	}
	var methods []methodRef
	for !p.check(token.RBrace) && !p.isAtEnd() {
		mname := p.expect(token.Ident, "expected method name").Value
		isInit := mname == value.InitMethodName
		fn := p.function(mname, true, isInit)
		idx := p.chunk().AddConst(value.ObjValue(fn))
		methods = append(methods, methodRef{nameIdx: p.identConst(mname), fnIdx: idx})
	}
	p.expect(token.RBrace, "expected '}' to close class body")

	for _, m := range methods {
		p.emitU16(bytecode.CLOSURE, uint16(m.fnIdx))
	}
	p.chunk().EmitU16U16(bytecode.CLASS, p.identConst(name), uint16(len(methods)), p.prev())
	p.emitU16(bytecode.DEFINE_CONST, p.identConst(name))
}

// enumDecl compiles `enum Name { Variant1, Variant2(a, b), ... }`. Every
// variant's (enumName, variantName, arity) triple is fully known at
// compile time, so each becomes a value.EnumConstructor built once and
// placed directly in the constant pool — no runtime construction opcode
// is needed, the same way a `fun` literal's *bytecode.Function template
// is a compile-time constant. The constructors are collected into one
// namespace map bound to Name, so `Name.Variant(args)` compiles through
// the ordinary dot-call path (GET_VAR Name; INVOKE Variant argc) like
// any other method call on a map-shaped value (spec §3
// EnumConstructor/BuildVariant).
func (p *Parser) enumDecl() {
	name := p.expect(token.Ident, "expected enum name").Value
	p.expect(token.LBrace, "expected '{' after enum name")

	namespace := value.NewMapRaw()
	for !p.check(token.RBrace) && !p.isAtEnd() {
		vname := p.expect(token.Ident, "expected variant name").Value
		arity := 0
		if p.match(token.LParen) {
			if !p.check(token.RParen) {
				for {
					p.expect(token.Ident, "expected field name")
					arity++
					if !p.match(token.Comma) {
						break
					}
				}
			}
			p.expect(token.RParen, "expected ')' after variant fields")
		}
		ctor := value.NewEnumConstructor(name, vname, arity)
		namespace.Set(value.NewStringRaw(vname), value.ObjValue(ctor))
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RBrace, "expected '}' to close enum body")

	idx := p.chunk().AddConst(value.ObjValue(namespace))
	p.emitU16(bytecode.CONSTANT, uint16(idx))
	p.emitU16(bytecode.DEFINE_CONST, p.identConst(name))
}

// importDecl compiles both of spec.md §4.2's import forms:
// `import "path" as name` binds the module instance under name in the
// importing scope (IMPORT); `import name from "path"` pushes the
// instance directly for name to capture (IMPORT_MODULE), the form used
// when the importer wants the whole module as one value rather than a
// namespaced alias.
func (p *Parser) importDecl() {
	if p.check(token.Ident) {
		name := p.advance().Value
		p.expect(token.From, "expected 'from' after import binding name")
		path := p.expect(token.String, "expected module path string").Value
		p.consumeStatementEnd()
		p.emitU16(bytecode.CONSTANT, p.identConst(path))
		p.emit(bytecode.IMPORT_MODULE)
		p.emitU16(bytecode.DEFINE_CONST, p.identConst(name))
		return
	}

	path := p.expect(token.String, "expected module path string").Value
	pathIdx := p.identConst(path)
	hasAlias := byte(0)
	aliasIdx := uint16(0)
	if p.match(token.As) {
		hasAlias = 1
		aliasIdx = p.identConst(p.expect(token.Ident, "expected alias name after 'as'").Value)
	}
	p.consumeStatementEnd()
	p.emitU16(bytecode.CONSTANT, pathIdx)
	p.chunk().EmitU16U8(bytecode.IMPORT, aliasIdx, hasAlias, p.prev())
}

// exportDecl compiles every spec.md §4.2 export form: a fresh
// `export let/const NAME = expr` declaration, a plain `export NAME`
// re-export of an already-declared local binding (EXPORT is a runtime
// no-op either way — `private` is the sole exclusion mechanism, spec
// §4.1), `export default expr` (EXPORT_VALUE under the synthetic name
// "default"), and the from-a-module forms `export {a, b as c} from
// "path"` / `export * from "path"` (EXPORT_FROM, after an IMPORT_MODULE
// pushes the source module's instance).
func (p *Parser) exportDecl() {
	if p.match(token.Default) {
		p.expression()
		p.consumeStatementEnd()
		p.emitU16(bytecode.EXPORT_VALUE, p.identConst("default"))
		return
	}

	if p.match(token.Star) {
		p.expect(token.From, "expected 'from' after 'export *'")
		path := p.expect(token.String, "expected module path string").Value
		p.consumeStatementEnd()
		p.emitU16(bytecode.CONSTANT, p.identConst(path))
		p.emit(bytecode.IMPORT_MODULE)
		p.chunk().EmitU16(bytecode.EXPORT_FROM, 0, p.prev())
		return
	}

	if p.match(token.LBrace) {
		type namePair struct{ src, as uint16 }
		var pairs []namePair
		if !p.check(token.RBrace) {
			for {
				src := p.expect(token.Ident, "expected exported name").Value
				as := src
				if p.match(token.As) {
					as = p.expect(token.Ident, "expected alias name after 'as'").Value
				}
				pairs = append(pairs, namePair{p.identConst(src), p.identConst(as)})
				if !p.match(token.Comma) {
					break
				}
			}
		}
		p.expect(token.RBrace, "expected '}' to close export list")
		p.expect(token.From, "expected 'from' after export list")
		path := p.expect(token.String, "expected module path string").Value
		p.consumeStatementEnd()
		p.emitU16(bytecode.CONSTANT, p.identConst(path))
		p.emit(bytecode.IMPORT_MODULE)
		tok := p.prev()
		p.chunk().EmitU16(bytecode.EXPORT_FROM, uint16(len(pairs)), tok)
		for _, pr := range pairs {
			p.chunk().AppendU16(pr.src, tok)
			p.chunk().AppendU16(pr.as, tok)
		}
		return
	}

	if p.match(token.Let) || p.match(token.Const) {
		isConst := p.prev().Kind == token.Const
		name := p.expect(token.Ident, "expected variable name").Value
		if p.match(token.Equal) {
			p.expression()
		} else {
			p.emit(bytecode.NULL)
		}
		p.consumeStatementEnd()
		op := bytecode.DEFINE_VAR
		if isConst {
			op = bytecode.DEFINE_CONST
		}
		p.emitU16(op, p.identConst(name))
		p.emitU16(bytecode.EXPORT, p.identConst(name))
		return
	}
	name := p.expect(token.Ident, "expected exported name").Value
	p.consumeStatementEnd()
	p.emitU16(bytecode.EXPORT, p.identConst(name))
}

func (p *Parser) privateDecl() {
	name := p.expect(token.Ident, "expected identifier after 'private'").Value
	p.consumeStatementEnd()
	p.emitU16(bytecode.PRIVATE, p.identConst(name))
}
