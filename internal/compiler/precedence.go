package compiler

import "erkao/internal/token"

// precedence mirrors the classic Pratt ladder; higher binds tighter.
// Grounded on other_examples/3fe95aab_funvibe-funxy's compiler.go
// precedence table, extended with the OR/AND tiers erkao's `or`/`and`
// keywords need (the teacher's DYMS compiler has no Pratt table at all
// — it walks an already-built AST — so this ladder and the prefix/infix
// rule table below are new, grounded on funxy's shape instead).
type precedence int

const (
	precNone       precedence = iota
	precAssignment            // =
	precOr                    // or
	precAnd                   // and
	precEquality              // == !=
	precComparison            // < > <= >=
	precTerm                  // + -
	precFactor                // * /
	precUnary                 // ! -
	precUnwrap                // postfix ?
	precCall                  // . () [] ?.
	precPrimary
)

type (
	prefixParseFn func(p *Parser, canAssign bool)
	infixParseFn  func(p *Parser, canAssign bool)
)

type parseRule struct {
	prefix     prefixParseFn
	infix      infixParseFn
	precedence precedence
}

var rules map[token.Kind]parseRule

func init() {
	rules = map[token.Kind]parseRule{
		token.LParen:        {prefix: (*Parser).grouping, infix: (*Parser).call, precedence: precCall},
		token.LBracket:      {prefix: (*Parser).arrayLiteral, infix: (*Parser).index, precedence: precCall},
		token.LBrace:        {prefix: (*Parser).mapLiteral},
		token.Dot:           {infix: (*Parser).dot, precedence: precCall},
		token.QuestionDot:   {infix: (*Parser).dotOptional, precedence: precCall},
		token.Question:      {infix: (*Parser).unwrap, precedence: precUnwrap},
		token.Minus:         {prefix: (*Parser).unary, infix: (*Parser).binary, precedence: precTerm},
		token.Plus:          {infix: (*Parser).binary, precedence: precTerm},
		token.Slash:         {infix: (*Parser).binary, precedence: precFactor},
		token.Star:          {infix: (*Parser).binary, precedence: precFactor},
		token.Bang:          {prefix: (*Parser).unary},
		token.BangEqual:     {infix: (*Parser).binary, precedence: precEquality},
		token.EqualEqual:    {infix: (*Parser).binary, precedence: precEquality},
		token.Greater:       {infix: (*Parser).binary, precedence: precComparison},
		token.GreaterEqual:  {infix: (*Parser).binary, precedence: precComparison},
		token.Less:          {infix: (*Parser).binary, precedence: precComparison},
		token.LessEqual:     {infix: (*Parser).binary, precedence: precComparison},
		token.Number:        {prefix: (*Parser).number},
		token.String:        {prefix: (*Parser).string},
		token.TemplateString: {prefix: (*Parser).templateString},
		token.True:          {prefix: (*Parser).literal},
		token.False:         {prefix: (*Parser).literal},
		token.Null:          {prefix: (*Parser).literal},
		token.This:          {prefix: (*Parser).this},
		token.Ident:         {prefix: (*Parser).identifier},
		token.And:           {infix: (*Parser).and, precedence: precAnd},
		token.Or:            {infix: (*Parser).or, precedence: precOr},
		token.Fun:           {prefix: (*Parser).functionExpr},
	}
}

func ruleFor(k token.Kind) parseRule { return rules[k] }
