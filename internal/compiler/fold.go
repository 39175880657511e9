package compiler

import (
	"erkao/internal/bytecode"
	"erkao/internal/token"
	"erkao/internal/value"
)

// foldConstants is the trailing peephole pass of spec §4.2: a linear
// scan rewriting constant-only instruction spans into a single folded
// constant push. Grounded on
// Dev-Dami-DYMS-Lang/runtime/compiler.go's optimize() (same "walk the
// finished code array, splice shorter" technique run once compilation
// is done), generalized from its load-0/load-1/true/false fast-opcode
// rewrites (erkao has no such opcodes) to literal NEGATE/NOT/STRINGIFY
// folding and same-kind binary-arithmetic folding spec.md calls for.
// Folding only ever shrinks the instruction stream, so every jump and
// loop operand recorded elsewhere in the chunk is walked and adjusted
// to compensate.
func foldConstants(c *bytecode.Chunk) {
	for i := 0; i+3 <= len(c.Code); {
		if bytecode.OpCode(c.Code[i]) != bytecode.CONSTANT {
			i++
			continue
		}
		idx := c.ReadU16(i + 1)
		if int(idx) >= len(c.Consts) {
			i++
			continue
		}
		v := c.Consts[idx]

		if folded, span, ok := tryFoldUnary(c, i, v); ok && replaceSpan(c, i, span, folded) {
			continue
		}
		if folded, span, ok := tryFoldBinary(c, i, v); ok && replaceSpan(c, i, span, folded) {
			continue
		}
		i++
	}
}

func tryFoldUnary(c *bytecode.Chunk, i int, v value.Value) (value.Value, int, bool) {
	if i+3 >= len(c.Code) {
		return value.Value{}, 0, false
	}
	switch bytecode.OpCode(c.Code[i+3]) {
	case bytecode.NEGATE:
		if v.IsNumber() {
			return value.NumberValue(-v.AsNumber()), 4, true
		}
	case bytecode.NOT:
		return value.BoolValue(!v.Truthy()), 4, true
	case bytecode.STRINGIFY:
		return value.ObjValue(value.NewStringRaw(v.String())), 4, true
	}
	return value.Value{}, 0, false
}

func tryFoldBinary(c *bytecode.Chunk, i int, a value.Value) (value.Value, int, bool) {
	if i+6 >= len(c.Code) || bytecode.OpCode(c.Code[i+3]) != bytecode.CONSTANT {
		return value.Value{}, 0, false
	}
	idx2 := c.ReadU16(i + 4)
	if int(idx2) >= len(c.Consts) {
		return value.Value{}, 0, false
	}
	b := c.Consts[idx2]
	op := bytecode.OpCode(c.Code[i+6])
	folded, ok := foldBinary(a, b, op)
	if !ok {
		return value.Value{}, 0, false
	}
	return folded, 7, true
}

func foldBinary(a, b value.Value, op bytecode.OpCode) (value.Value, bool) {
	switch op {
	case bytecode.ADD:
		if a.IsNumber() && b.IsNumber() {
			return value.NumberValue(a.AsNumber() + b.AsNumber()), true
		}
		if a.IsObj() && b.IsObj() {
			if s1, ok := a.AsObject().(*value.String); ok {
				if s2, ok2 := b.AsObject().(*value.String); ok2 {
					return value.ObjValue(value.NewStringRaw(s1.Chars + s2.Chars)), true
				}
			}
		}
	case bytecode.SUBTRACT:
		if a.IsNumber() && b.IsNumber() {
			return value.NumberValue(a.AsNumber() - b.AsNumber()), true
		}
	case bytecode.MULTIPLY:
		if a.IsNumber() && b.IsNumber() {
			return value.NumberValue(a.AsNumber() * b.AsNumber()), true
		}
	case bytecode.DIVIDE:
		if a.IsNumber() && b.IsNumber() && b.AsNumber() != 0 {
			return value.NumberValue(a.AsNumber() / b.AsNumber()), true
		}
	}
	return value.Value{}, false
}

// jumpSite describes one control-flow instruction's operand position,
// discovered by a structural walk (spec §4.1 opcodes each have a fixed
// operand width, so the walk never misinterprets operand bytes as
// opcodes).
type jumpSite struct {
	instrPos   int
	operandPos int
	isLoop     bool
}

func findJumpSites(c *bytecode.Chunk) []jumpSite {
	var sites []jumpSite
	code := c.Code
	for ip := 0; ip < len(code); {
		op := bytecode.OpCode(code[ip])
		switch op {
		case bytecode.JUMP, bytecode.JUMP_IF_FALSE, bytecode.TRY:
			sites = append(sites, jumpSite{instrPos: ip, operandPos: ip + 1})
		case bytecode.LOOP:
			sites = append(sites, jumpSite{instrPos: ip, operandPos: ip + 1, isLoop: true})
		}
		ip += 1 + operandWidth(c, ip)
	}
	return sites
}

// operandWidth mirrors OpCode.operandBytes (unexported in package
// bytecode) for the subset of opcodes the fold pass needs to skip over
// correctly; every opcode not listed here is zero-operand or otherwise
// irrelevant to jump-site discovery, so it is safe to fall through
// using the chunk's own disassembly width via a round-trip through
// String() would be overkill — this pass only needs byte widths.
func operandWidth(c *bytecode.Chunk, ip int) int {
	switch bytecode.OpCode(c.Code[ip]) {
	case bytecode.CONSTANT, bytecode.GET_VAR, bytecode.SET_VAR, bytecode.DEFINE_VAR,
		bytecode.DEFINE_CONST, bytecode.GET_THIS, bytecode.GET_PROPERTY,
		bytecode.GET_PROPERTY_OPTIONAL, bytecode.SET_PROPERTY,
		bytecode.JUMP, bytecode.JUMP_IF_FALSE, bytecode.LOOP, bytecode.TRY,
		bytecode.CLOSURE, bytecode.EXPORT, bytecode.PRIVATE, bytecode.EXPORT_VALUE,
		bytecode.ARRAY, bytecode.MAP:
		return 2
	case bytecode.INVOKE:
		return 3
	case bytecode.MATCH_ENUM:
		return 4
	case bytecode.CALL, bytecode.CALL_OPTIONAL:
		return 1
	case bytecode.CLASS:
		return 4
	case bytecode.IMPORT:
		return 3
	default:
		return 0
	}
}

// replaceSpan overwrites the instruction span [at, at+spanLen) with a
// single CONSTANT push of folded, adjusting every jump/loop operand
// elsewhere in the chunk to compensate for the shrink before splicing
// the bytes. It reports false, leaving the instruction stream as it was,
// when the folded constant's pool index does not fit CONSTANT's u16
// operand.
func replaceSpan(c *bytecode.Chunk, at, spanLen int, folded value.Value) bool {
	idx := c.AddConst(folded)
	if idx > 0xFFFF {
		return false
	}
	newInstr := []byte{byte(bytecode.CONSTANT), byte(idx >> 8), byte(idx)}
	delta := spanLen - len(newInstr)
	if delta == 0 {
		copy(c.Code[at:], newInstr)
		return true
	}
	if delta < 0 {
		return false // folding never grows code
	}

	sites := findJumpSites(c)
	for _, s := range sites {
		if s.instrPos >= at && s.instrPos < at+spanLen {
			continue // the site itself is inside the folded span (can't happen in practice)
		}
		if s.isLoop {
			loopStart := s.instrPos + 3 - int(c.ReadU16(s.operandPos))
			if loopStart <= at && at+spanLen <= s.instrPos {
				newOperand := int(c.ReadU16(s.operandPos)) - delta
				c.PatchU16(s.operandPos, uint16(newOperand))
			}
			continue
		}
		target := int(c.ReadU16(s.operandPos))
		if target >= at+spanLen {
			c.PatchU16(s.operandPos, uint16(target-delta))
		}
	}

	tok := c.Tokens[at]
	tailCode := append([]byte{}, c.Code[at+spanLen:]...)
	tailToks := append([]token.Token{}, c.Tokens[at+spanLen:]...)

	c.Code = append(c.Code[:at:at], append(newInstr, tailCode...)...)
	newToks := make([]token.Token, len(newInstr))
	for i := range newToks {
		newToks[i] = tok
	}
	c.Tokens = append(c.Tokens[:at:at], append(newToks, tailToks...)...)
	return true
}
