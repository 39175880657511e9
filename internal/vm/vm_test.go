package vm_test

import (
	"os"
	"path/filepath"
	"testing"

	"erkao/internal/compiler"
	"erkao/internal/lexer"
	"erkao/internal/resolver"
	"erkao/internal/value"
	"erkao/internal/vm"
)

// run compiles and executes source on a fresh VM, failing the test on
// any compile or runtime diagnostic.
func run(t *testing.T, source string) value.Value {
	t.Helper()
	tokens := lexer.Tokenize(source)
	root, diags := compiler.Compile(tokens, "<test>", source)
	if len(diags) > 0 {
		t.Fatalf("compile error: %s", diags[0].WireFormat())
	}
	machine := vm.New(nil)
	result, err := machine.Interpret(root)
	if err != nil {
		t.Fatalf("runtime error: %s", err.WireFormat())
	}
	return result
}

func TestArithmeticAndVariables(t *testing.T) {
	got := run(t, `
		let a = 3;
		let b = 4;
		const c = a * a + b * b;
		return c;
	`)
	if got.String() != "25" {
		t.Fatalf("got %s, want 25", got.String())
	}
}

func TestStringConcatAndTemplate(t *testing.T) {
	got := run(t, `
		let name = "world";
		return "hello " + name + "!";
	`)
	if got.String() != "hello world!" {
		t.Fatalf("got %q, want %q", got.String(), "hello world!")
	}
}

func TestRecursiveFunction(t *testing.T) {
	got := run(t, `
		fun fib(n) {
			if (n < 2) {
				return n;
			}
			return fib(n - 1) + fib(n - 2);
		}
		return fib(10);
	`)
	if got.String() != "55" {
		t.Fatalf("got %s, want 55", got.String())
	}
}

func TestWhileLoopAndBreakContinue(t *testing.T) {
	got := run(t, `
		let total = 0;
		let i = 0;
		while (i < 10) {
			i = i + 1;
			if (i == 5) {
				continue;
			}
			if (i > 8) {
				break;
			}
			total = total + i;
		}
		return total;
	`)
	// 1+2+3+4 (skip 5) +6+7+8 = 31
	if got.String() != "31" {
		t.Fatalf("got %s, want 31", got.String())
	}
}

func TestClassMethodsAndThis(t *testing.T) {
	got := run(t, `
		class Counter {
			init(start) {
				this.n = start;
			}
			inc() {
				this.n = this.n + 1;
				return this.n;
			}
		}
		let c = Counter(5);
		c.inc();
		return c.inc();
	`)
	if got.String() != "7" {
		t.Fatalf("got %s, want 7", got.String())
	}
}

func TestClassMethodSeesOuterGlobal(t *testing.T) {
	// A method closes over the class declaration's enclosing scope, not
	// just `this` — it must be able to read a function declared before
	// the class (classDecl emits CLOSURE per method precisely so this
	// works).
	got := run(t, `
		fun bonus() {
			return 100;
		}
		class Account {
			init(balance) {
				this.balance = balance;
			}
			withBonus() {
				return this.balance + bonus();
			}
		}
		let a = Account(1);
		return a.withBonus();
	`)
	if got.String() != "101" {
		t.Fatalf("got %s, want 101", got.String())
	}
}

func TestEnumMatchAndUnwrap(t *testing.T) {
	got := run(t, `
		enum Option {
			Some(value),
			None,
		}
		fun classify(x) {
			match (x) {
				Option.Some(value) case return value;
				Option.None case return -1;
			}
			return -2;
		}
		let present = Option.Some(42);
		let absent = Option.None();
		return classify(present) + classify(absent);
	`)
	if got.String() != "41" {
		t.Fatalf("got %s, want 41", got.String())
	}
}

func TestUnwrapOperatorShortCircuits(t *testing.T) {
	got := run(t, `
		enum Result {
			Ok(value),
			Err(reason),
		}
		fun safeDiv(a, b) {
			if (b == 0) {
				return Result.Err("division by zero");
			}
			return Result.Ok(a / b);
		}
		fun compute(a, b) {
			let v = safeDiv(a, b)?;
			return v + 1;
		}
		return compute(10, 2);
	`)
	if got.String() != "6" {
		t.Fatalf("got %s, want 6", got.String())
	}
}

func TestTryThrowCatch(t *testing.T) {
	got := run(t, `
		fun risky(x) {
			if (x < 0) {
				throw "negative input";
			}
			return x * 2;
		}
		let result = 0;
		try {
			result = risky(-1);
		} catch (e) {
			result = -99;
		}
		return result;
	`)
	if got.String() != "-99" {
		t.Fatalf("got %s, want -99", got.String())
	}
}

func TestArrayAndMapBuiltins(t *testing.T) {
	got := run(t, `
		let arr = [1, 2, 3];
		push(arr, 4);
		let m = {a: 1, b: 2};
		mapSet(m, "c", 3);
		return len(arr) + len(m) + m["c"];
	`)
	if got.String() != "10" {
		t.Fatalf("got %s, want 10", got.String())
	}
}

// TestReturnInsideTryThenLaterThrow reproduces a function whose try body
// returns instead of reaching END_TRY, leaving its try-frame's handler
// stale once the call has returned; a later, unrelated throw must be
// uncaught (or caught by whatever handler is actually still live) rather
// than resuming at that dead handler's IP/env.
func TestReturnInsideTryThenLaterThrow(t *testing.T) {
	source := `
		fun f() {
			try {
				return 1;
			} catch (e) {
				return -1;
			}
		}
		f();
		throw "boom";
	`
	tokens := lexer.Tokenize(source)
	root, diags := compiler.Compile(tokens, "<test>", source)
	if len(diags) > 0 {
		t.Fatalf("compile error: %s", diags[0].WireFormat())
	}
	machine := vm.New(nil)
	_, err := machine.Interpret(root)
	if err == nil {
		t.Fatal("expected the trailing throw to surface as an uncaught runtime error")
	}
}

func TestSwitchStatementSelectsMatchingCase(t *testing.T) {
	got := run(t, `
		let x = 2;
		let result = 0;
		switch (x) {
		case 1:
			result = 10;
		case 2:
			result = 20;
		default:
			result = 30;
		}
		return result;
	`)
	if got.String() != "20" {
		t.Fatalf("got %s, want 20", got.String())
	}
}

func TestSwitchStatementFallsBackToDefault(t *testing.T) {
	got := run(t, `
		let x = 99;
		let result = 0;
		switch (x) {
		case 1:
			result = 10;
		case 2:
			result = 20;
		default:
			result = 30;
		}
		return result;
	`)
	if got.String() != "30" {
		t.Fatalf("got %s, want 30", got.String())
	}
}

func TestSwitchStatementNoFallthroughBetweenCases(t *testing.T) {
	got := run(t, `
		let x = 1;
		let result = 0;
		switch (x) {
		case 1:
			result = result + 1;
		case 2:
			result = result + 100;
		}
		return result;
	`)
	if got.String() != "1" {
		t.Fatalf("got %s, want 1 (case 2's body must not run)", got.String())
	}
}

func TestBreakInsideSwitchExitsEarly(t *testing.T) {
	got := run(t, `
		let x = 1;
		let result = 0;
		switch (x) {
		case 1:
			result = 1;
			break;
			result = 2;
		}
		return result;
	`)
	if got.String() != "1" {
		t.Fatalf("got %s, want 1", got.String())
	}
}

// TestContinueInsideSwitchContinuesEnclosingLoop confirms that a switch's
// break-context is skipped by continueStmt: the loop should keep
// iterating past the switch rather than continue targeting the switch
// itself (which has no loop semantics of its own).
func TestContinueInsideSwitchContinuesEnclosingLoop(t *testing.T) {
	got := run(t, `
		let total = 0;
		let i = 0;
		while (i < 5) {
			i = i + 1;
			switch (i) {
			case 3:
				continue;
			default:
				total = total + i;
			}
		}
		return total;
	`)
	if got.String() != "12" {
		t.Fatalf("got %s, want 12 (1+2+4+5, skipping 3)", got.String())
	}
}

func TestDefaultParameters(t *testing.T) {
	got := run(t, `
		fun greet(times, step = 2) {
			return times * step;
		}
		return greet(5) + greet(5, 10);
	`)
	if got.String() != "60" {
		t.Fatalf("got %s, want 60", got.String())
	}
}

func TestAnonymousFunctionExpression(t *testing.T) {
	got := run(t, `
		let add = fun(a, b) {
			return a + b;
		};
		return add(3, 4);
	`)
	if got.String() != "7" {
		t.Fatalf("got %s, want 7", got.String())
	}
}

func TestModuleImport(t *testing.T) {
	dir := t.TempDir()
	libPath := filepath.Join(dir, "mathlib.ek")
	if err := os.WriteFile(libPath, []byte(`
		export let PI = 3;
		fun square(x) {
			return x * x;
		}
		export square;
	`), 0o644); err != nil {
		t.Fatal(err)
	}

	mainPath := filepath.Join(dir, "main.ek")
	source := `
		import "./mathlib" as math;
		return math.square(4) + math.PI;
	`
	if err := os.WriteFile(mainPath, []byte(source), 0o644); err != nil {
		t.Fatal(err)
	}

	tokens := lexer.Tokenize(source)
	root, diags := compiler.Compile(tokens, mainPath, source)
	if len(diags) > 0 {
		t.Fatalf("compile error: %s", diags[0].WireFormat())
	}
	machine := vm.New(resolver.NewFileResolver())
	result, err := machine.Interpret(root)
	if err != nil {
		t.Fatalf("runtime error: %s", err.WireFormat())
	}
	if result.String() != "19" {
		t.Fatalf("got %s, want 19", result.String())
	}
}
