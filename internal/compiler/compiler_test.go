package compiler

import (
	"strings"
	"testing"

	"erkao/internal/bytecode"
	"erkao/internal/lexer"
)

func compileSrc(t *testing.T, src string) *bytecode.Function {
	t.Helper()
	toks := lexer.Tokenize(src)
	fn, errs := Compile(toks, "<test>", src)
	for _, e := range errs {
		t.Fatalf("unexpected compile error: %s", e.WireFormat())
	}
	return fn
}

func TestCompileLetAndExpression(t *testing.T) {
	fn := compileSrc(t, `let x = 1 + 2;`)
	if len(fn.Chunk.Code) == 0 {
		t.Fatal("expected non-empty bytecode")
	}
}

func TestConstantFoldingCollapsesArithmetic(t *testing.T) {
	fn := compileSrc(t, `let x = 1 + 2;`)
	count := 0
	for _, b := range fn.Chunk.Code {
		if bytecode.OpCode(b) == bytecode.ADD {
			count++
		}
	}
	if count != 0 {
		t.Fatalf("expected constant folding to eliminate the ADD, found %d", count)
	}
}

func TestCompileIfElseEmitsJumps(t *testing.T) {
	fn := compileSrc(t, `if (true) { let a = 1; } else { let b = 2; }`)
	sawJump := false
	for _, b := range fn.Chunk.Code {
		if bytecode.OpCode(b) == bytecode.JUMP || bytecode.OpCode(b) == bytecode.JUMP_IF_FALSE {
			sawJump = true
		}
	}
	if !sawJump {
		t.Fatal("expected at least one jump instruction for if/else")
	}
}

func TestCompileFunctionWithDefaultParam(t *testing.T) {
	fn := compileSrc(t, `fun greet(name = "world") { return name; }`)
	foundClosure := false
	for i := 0; i < len(fn.Chunk.Code); i++ {
		if bytecode.OpCode(fn.Chunk.Code[i]) == bytecode.CLOSURE {
			foundClosure = true
		}
	}
	if !foundClosure {
		t.Fatal("expected a CLOSURE instruction for the function declaration")
	}
}

func TestCompileClassWithInit(t *testing.T) {
	fn := compileSrc(t, `class Point { init(x, y) { this.x = x; this.y = y; } }`)
	sawClass := false
	for _, b := range fn.Chunk.Code {
		if bytecode.OpCode(b) == bytecode.CLASS {
			sawClass = true
		}
	}
	if !sawClass {
		t.Fatal("expected a CLASS instruction")
	}
}

func TestCompileEnumDeclaration(t *testing.T) {
	fn := compileSrc(t, `enum Result { Ok(value), Err(message) }`)
	if len(fn.Chunk.Consts) == 0 {
		t.Fatal("expected enum variant metadata in the constant pool")
	}
}

func TestSyntaxErrorReported(t *testing.T) {
	toks := lexer.Tokenize(`let x = ;`)
	_, errs := Compile(toks, "<test>", `let x = ;`)
	if len(errs) == 0 {
		t.Fatal("expected a syntax error for a missing expression")
	}
}

func TestInvalidAssignmentTargetReported(t *testing.T) {
	src := `1 + 2 = 3;`
	toks := lexer.Tokenize(src)
	_, errs := Compile(toks, "<test>", src)
	if len(errs) == 0 {
		t.Fatal("expected an error assigning to a non-assignable expression")
	}
	found := false
	for _, e := range errs {
		if strings.Contains(e.Message, "invalid assignment target") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an 'invalid assignment target' diagnostic, got %v", errs)
	}
}

func TestCompileSwitchEmitsJumpsAndEquality(t *testing.T) {
	fn := compileSrc(t, `
		switch (1) {
		case 1:
			let a = 1;
		default:
			let b = 2;
		}
	`)
	sawEqual, sawJump := false, false
	for _, b := range fn.Chunk.Code {
		switch bytecode.OpCode(b) {
		case bytecode.EQUAL:
			sawEqual = true
		case bytecode.JUMP, bytecode.JUMP_IF_FALSE:
			sawJump = true
		}
	}
	if !sawEqual {
		t.Fatal("expected an EQUAL instruction comparing the discriminant")
	}
	if !sawJump {
		t.Fatal("expected jump instructions patching case arms")
	}
}
