package compiler

import (
	"github.com/samber/lo"

	"erkao/internal/bytecode"
	"erkao/internal/token"
	"erkao/internal/value"
)

// patchBreaks patches every recorded break jump in lc to land here
// (just past the loop), once the loop's exit point is known.
func (p *Parser) patchBreaks(lc *loopContext) {
	lo.ForEach(lc.breakJumps, func(j int, _ int) { p.patchJump(j) })
}

func (p *Parser) declaration() {
	switch {
	case p.match(token.Let):
		p.varDecl(false)
	case p.match(token.Const):
		p.varDecl(true)
	case p.match(token.Fun):
		p.funDecl()
	case p.match(token.Class):
		p.classDecl()
	case p.match(token.Enum):
		p.enumDecl()
	case p.match(token.Import):
		p.importDecl()
	case p.match(token.Export):
		p.exportDecl()
	case p.match(token.Private):
		p.privateDecl()
	default:
		p.statement()
	}
	if p.panicMode {
		p.synchronize()
	}
}

func (p *Parser) varDecl(isConst bool) {
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
}

func (p *Parser) consumeStatementEnd() {
	p.match(token.Semicolon)
}

func (p *Parser) statement() {
	switch {
	case p.match(token.If):
		p.ifStmt()
	case p.match(token.While):
		p.whileStmt()
	case p.match(token.For):
		p.forStmt()
	case p.match(token.Foreach):
		p.foreachStmt()
	case p.match(token.Return):
		p.returnStmt()
	case p.match(token.Try):
		p.tryStmt()
	case p.match(token.Throw):
		p.throwStmt()
	case p.match(token.Match):
		p.matchStmt()
	case p.match(token.Switch):
		p.switchStmt()
	case p.match(token.Break):
		p.breakStmt()
	case p.match(token.Continue):
		p.continueStmt()
	case p.match(token.LBrace):
		p.beginScope()
		p.blockBody()
		p.endScope()
	default:
		p.expressionStmt()
	}
}

func (p *Parser) blockBody() {
	for !p.check(token.RBrace) && !p.isAtEnd() {
		p.declaration()
	}
	p.expect(token.RBrace, "expected '}' to close block")
}

func (p *Parser) expressionStmt() {
	p.expression()
	p.consumeStatementEnd()
	p.emit(bytecode.POP)
}

func (p *Parser) ifStmt() {
	p.expect(token.LParen, "expected '(' after 'if'")
	p.expression()
	p.expect(token.RParen, "expected ')' after condition")

	thenJump := p.emitJump(bytecode.JUMP_IF_FALSE)
	p.emit(bytecode.POP)
	p.statement()
	elseJump := p.emitJump(bytecode.JUMP)
	p.patchJump(thenJump)
	p.emit(bytecode.POP)
	if p.match(token.Else) {
		p.statement()
	}
	p.patchJump(elseJump)
}

func (p *Parser) pushLoop(continueTarget int) *loopContext {
	lc := &loopContext{continueTarget: continueTarget}
	p.fn.loops = append(p.fn.loops, lc)
	return lc
}

// pushSwitchContext pushes a break-only context for switchStmt: it has
// no meaningful continue target of its own, and continueStmt skips over
// it to find the nearest enclosing real loop.
func (p *Parser) pushSwitchContext() *loopContext {
	lc := &loopContext{isSwitch: true}
	p.fn.loops = append(p.fn.loops, lc)
	return lc
}

func (p *Parser) popLoop() *loopContext {
	n := len(p.fn.loops)
	lc := p.fn.loops[n-1]
	p.fn.loops = p.fn.loops[:n-1]
	return lc
}

func (p *Parser) whileStmt() {
	loopStart := p.chunk().Len()
	lc := p.pushLoop(loopStart)

	p.expect(token.LParen, "expected '(' after 'while'")
	p.expression()
	p.expect(token.RParen, "expected ')' after condition")

	exitJump := p.emitJump(bytecode.JUMP_IF_FALSE)
	p.emit(bytecode.POP)
	p.statement()
	p.emitLoop(loopStart)

	p.patchJump(exitJump)
	p.emit(bytecode.POP)
	p.patchBreaks(lc)
	p.popLoop()
}

// forStmt compiles the classic three-clause form: for (init; cond; post)
// body. Grounded in shape on Dev-Dami-DYMS-Lang/runtime/compiler.go's
// range-based ForStatement, generalized to the explicit clause form
// since erkao resolves variables by name rather than by reserved loop
// slot.
func (p *Parser) forStmt() {
	p.expect(token.LParen, "expected '(' after 'for'")
	p.beginScope()
	switch {
	case p.match(token.Semicolon):
	case p.match(token.Let):
		p.varDecl(false)
	default:
		p.expressionStmt()
	}

	loopStart := p.chunk().Len()
	exitJump := -1
	if !p.check(token.Semicolon) {
		p.expression()
		exitJump = p.emitJump(bytecode.JUMP_IF_FALSE)
		p.emit(bytecode.POP)
	}
	p.expect(token.Semicolon, "expected ';' after loop condition")

	if !p.check(token.RParen) {
		bodyJump := p.emitJump(bytecode.JUMP)
		incrStart := p.chunk().Len()
		p.expression()
		p.emit(bytecode.POP)
		p.expect(token.RParen, "expected ')' after for clauses")
		p.emitLoop(loopStart)
		loopStart = incrStart
		p.patchJump(bodyJump)
	} else {
		p.expect(token.RParen, "expected ')' after for clauses")
	}

	lc := p.pushLoop(loopStart)
	p.statement()
	p.emitLoop(loopStart)

	if exitJump != -1 {
		p.patchJump(exitJump)
		p.emit(bytecode.POP)
	}
	p.patchBreaks(lc)
	p.popLoop()
	p.endScope()
}

// foreachStmt compiles `foreach (x in arr) body` over an array or map,
// using LEN/GET_INDEX rather than a dedicated iterator opcode (spec's
// opcode table has none), matching the teacher's habit of lowering
// sugar to existing primitives (compileFunction's math-call fast path
// does the same kind of lowering).
func (p *Parser) foreachStmt() {
	p.expect(token.LParen, "expected '(' after 'foreach'")
	itemName := p.expect(token.Ident, "expected loop variable name").Value
	p.expect(token.In, "expected 'in' in foreach")

	p.beginScope()
	p.expression() // the iterable
	p.emitU16(bytecode.DEFINE_CONST, p.identConst("@iter"))
	p.emitU16(bytecode.CONSTANT, p.constIdx(value.NumberValue(0)))
	p.emitU16(bytecode.DEFINE_VAR, p.identConst("@idx"))
	p.expect(token.RParen, "expected ')' after foreach clause")

	loopStart := p.chunk().Len()
	p.emitU16(bytecode.GET_VAR, p.identConst("@idx"))
	p.emitU16(bytecode.GET_VAR, p.identConst("@iter"))
	p.emit(bytecode.LEN)
	p.emit(bytecode.LESS)
	exitJump := p.emitJump(bytecode.JUMP_IF_FALSE)
	p.emit(bytecode.POP)

	p.beginScope()
	p.emitU16(bytecode.GET_VAR, p.identConst("@iter"))
	p.emitU16(bytecode.GET_VAR, p.identConst("@idx"))
	p.emit(bytecode.GET_INDEX)
	p.emitU16(bytecode.DEFINE_VAR, p.identConst(itemName))

	lc := p.pushLoop(loopStart)
	p.statement()

	p.emitU16(bytecode.GET_VAR, p.identConst("@idx"))
	p.emitU16(bytecode.CONSTANT, p.constIdx(value.NumberValue(1)))
	p.emit(bytecode.ADD)
	p.emitU16(bytecode.SET_VAR, p.identConst("@idx"))
	p.emit(bytecode.POP)
	p.endScope()

	p.emitLoop(loopStart)
	p.patchJump(exitJump)
	p.emit(bytecode.POP)
	p.patchBreaks(lc)
	p.popLoop()
	p.endScope()
}

func (p *Parser) breakStmt() {
	if len(p.fn.loops) == 0 {
		p.errorAtCurrent("'break' outside of a loop")
		p.consumeStatementEnd()
		return
	}
	p.consumeStatementEnd()
	lc := p.fn.loops[len(p.fn.loops)-1]
	lc.breakJumps = append(lc.breakJumps, p.emitJump(bytecode.JUMP))
}

func (p *Parser) continueStmt() {
	var lc *loopContext
	for i := len(p.fn.loops) - 1; i >= 0; i-- {
		if !p.fn.loops[i].isSwitch {
			lc = p.fn.loops[i]
			break
		}
	}
	if lc == nil {
		p.errorAtCurrent("'continue' outside of a loop")
		p.consumeStatementEnd()
		return
	}
	p.consumeStatementEnd()
	p.emitLoop(lc.continueTarget)
}

func (p *Parser) returnStmt() {
	if p.match(token.Semicolon) {
		p.emit(bytecode.NULL)
		p.emit(bytecode.RETURN)
		return
	}
	p.expression()
	p.consumeStatementEnd()
	p.emit(bytecode.RETURN)
}

// tryStmt compiles try/catch using the TRY/END_TRY bracketing opcodes
// (spec §4.3 exception model): TRY pushes a handler frame targeting the
// catch block; if the try body completes normally, END_TRY pops it.
func (p *Parser) tryStmt() {
	tryJump := p.emitJump(bytecode.TRY)
	p.expect(token.LBrace, "expected '{' after 'try'")
	p.beginScope()
	p.blockBody()
	p.endScope()
	p.emit(bytecode.END_TRY)
	doneJump := p.emitJump(bytecode.JUMP)

	p.patchJump(tryJump)
	p.expect(token.Catch, "expected 'catch' after try block")
	p.expect(token.LParen, "expected '(' after 'catch'")
	errName := p.expect(token.Ident, "expected error binding name").Value
	p.expect(token.RParen, "expected ')' after catch binding")
	p.beginScope()
	p.emitU16(bytecode.DEFINE_VAR, p.identConst(errName))
	p.expect(token.LBrace, "expected '{' after catch clause")
	p.blockBody()
	p.endScope()

	p.patchJump(doneJump)
}

func (p *Parser) throwStmt() {
	p.expression()
	p.consumeStatementEnd()
	p.emit(bytecode.THROW)
}

// switchStmt compiles a C-style `switch (expr) { case v: stmt...
// default: stmt... }`. The discriminant is bound once to a hidden
// scoped constant (the opcode table has no DUP, the same reason
// matchStmt below binds its scrutinee once), and each `case` arm
// compares it with EQUAL. Cases do not fall through into one another:
// each arm's statement list ends with its own unconditional jump to
// the switch's exit, and `break` (switchStmt pushes its own break-only
// context, see pushSwitchContext) exits early from inside one.
func (p *Parser) switchStmt() {
	p.expect(token.LParen, "expected '(' after 'switch'")
	p.beginScope()
	p.expression()
	p.emitU16(bytecode.DEFINE_CONST, p.identConst("@switch"))
	p.expect(token.RParen, "expected ')' after switch discriminant")
	p.expect(token.LBrace, "expected '{' to open switch body")

	lc := p.pushSwitchContext()
	var endJumps []int
	defaultSeen := false

	armBody := func() {
		p.beginScope()
		for !p.check(token.Case) && !p.check(token.Default) && !p.check(token.RBrace) && !p.isAtEnd() {
			p.declaration()
		}
		p.endScope()
		endJumps = append(endJumps, p.emitJump(bytecode.JUMP))
	}

	for !p.check(token.RBrace) && !p.isAtEnd() {
		switch {
		case p.match(token.Case):
			if defaultSeen {
				p.errorAtCurrent("'case' after 'default' is unreachable")
			}
			p.emitU16(bytecode.GET_VAR, p.identConst("@switch"))
			p.expression()
			p.emit(bytecode.EQUAL)
			p.expect(token.Colon, "expected ':' after case value")
			nextArm := p.emitJump(bytecode.JUMP_IF_FALSE)
			p.emit(bytecode.POP)
			armBody()
			p.patchJump(nextArm)
			p.emit(bytecode.POP)
		case p.match(token.Default):
			if defaultSeen {
				p.errorAtCurrent("duplicate 'default' in switch")
			}
			defaultSeen = true
			p.expect(token.Colon, "expected ':' after 'default'")
			armBody()
		default:
			p.errorAtCurrent("expected 'case' or 'default' in switch body")
			p.advance()
		}
	}
	p.expect(token.RBrace, "expected '}' to close switch body")
	for _, j := range endJumps {
		p.patchJump(j)
	}
	p.patchBreaks(lc)
	p.popLoop()
	p.endScope()
}

// matchStmt compiles `match (expr) { EnumName.Variant(binds) case stmt ... }`
// using MATCH_ENUM to test the scrutinee's tag against each arm's
// (enumName, variantName) constant pair, per spec §3's enum-variant
// _tag field and spec.md's opcode table entry `MATCH_ENUM u16 u16`.
// The opcode table has no DUP, so the scrutinee can't be copied on the
// value stack for each arm's test; instead it's bound once to a hidden
// scoped name and every arm re-fetches it with GET_VAR, both for the
// MATCH_ENUM test and for reading bound fields out of _values.
func (p *Parser) matchStmt() {
	p.expect(token.LParen, "expected '(' after 'match'")
	p.beginScope()
	p.expression()
	p.emitU16(bytecode.DEFINE_CONST, p.identConst("@match"))
	p.expect(token.RParen, "expected ')' after match scrutinee")
	p.expect(token.LBrace, "expected '{' to open match body")

	var endJumps []int
	for !p.check(token.RBrace) && !p.isAtEnd() {
		enumName := p.expect(token.Ident, "expected enum name in match arm").Value
		p.expect(token.Dot, "expected '.' between enum and variant")
		variantName := p.expect(token.Ident, "expected variant name in match arm").Value

		var binds []string
		if p.match(token.LParen) {
			if !p.check(token.RParen) {
				for {
					binds = append(binds, p.expect(token.Ident, "expected binding name").Value)
					if !p.match(token.Comma) {
						break
					}
				}
			}
			p.expect(token.RParen, "expected ')' after match-arm bindings")
		}
		p.expect(token.Case, "expected '=>' spelled as 'case' before arm body")

		p.emitU16(bytecode.GET_VAR, p.identConst("@match"))
		nameIdx := p.identConst(enumName)
		variantIdx := p.identConst(variantName)
		p.chunk().EmitU16U16(bytecode.MATCH_ENUM, nameIdx, variantIdx, p.prev())
		nextArm := p.emitJump(bytecode.JUMP_IF_FALSE)
		p.emit(bytecode.POP)

		p.beginScope()
		for i, b := range binds {
			p.emitU16(bytecode.GET_VAR, p.identConst("@match"))
			p.emitU16(bytecode.GET_PROPERTY, p.identConst(value.VariantFieldVals))
			p.emitU16(bytecode.CONSTANT, p.constIdx(value.NumberValue(float64(i))))
			p.emit(bytecode.GET_INDEX)
			p.emitU16(bytecode.DEFINE_VAR, p.identConst(b))
		}
		p.statement()
		p.endScope()
		endJumps = append(endJumps, p.emitJump(bytecode.JUMP))
		p.patchJump(nextArm)
		p.emit(bytecode.POP)
	}
	p.expect(token.RBrace, "expected '}' to close match body")
	for _, j := range endJumps {
		p.patchJump(j)
	}
	p.endScope()
}
