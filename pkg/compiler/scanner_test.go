package compiler

import "testing"

func TestNextTokenBasicPunctuation(t *testing.T) {
	input := `( ) { } , . ; :`
	tests := []TokenType{
		TokenLeftParen, TokenRightParen, TokenLeftBrace, TokenRightBrace,
		TokenComma, TokenDot, TokenSemicolon, TokenColon, TokenEOF,
	}

	s := NewScanner(input)
	for i, want := range tests {
		tok := s.NextToken()
		if tok.Type != want {
			t.Fatalf("tests[%d]: type = %v, want %v", i, tok.Type, want)
		}
	}
}

func TestNextTokenOperatorsAndCompoundAssign(t *testing.T) {
	input := `+ += ++ - -= -- * *= ** **= / /= % %=`
	tests := []TokenType{
		TokenPlus, TokenPlusEqual, TokenPlusPlus,
		TokenMinus, TokenMinusEqual, TokenMinusMinus,
		TokenStar, TokenStarEqual, TokenStarStar, TokenStarStar,
		TokenSlash, TokenSlashEqual,
		TokenPercent, TokenPercentEqual,
		TokenEOF,
	}

	s := NewScanner(input)
	for i, want := range tests {
		tok := s.NextToken()
		if tok.Type != want {
			t.Fatalf("tests[%d]: type = %v, want %v (lexeme %q)", i, tok.Type, want, tok.Lexeme)
		}
	}
}

func TestNextTokenStarStarEqualLexeme(t *testing.T) {
	s := NewScanner(`**=`)
	tok := s.NextToken()
	if tok.Type != TokenStarStar {
		t.Fatalf("type = %v, want TokenStarStar", tok.Type)
	}
	if tok.Lexeme != "**=" {
		t.Errorf("lexeme = %q, want **=", tok.Lexeme)
	}
}

func TestNextTokenComparisonAndShift(t *testing.T) {
	input := `< <= << > >= >> = == !=`
	tests := []TokenType{
		TokenLess, TokenLessEqual, TokenLessLess,
		TokenGreater, TokenGreaterEqual, TokenGreaterGreater,
		TokenEqual, TokenEqualEqual, TokenBangEqual,
		TokenEOF,
	}

	s := NewScanner(input)
	for i, want := range tests {
		tok := s.NextToken()
		if tok.Type != want {
			t.Fatalf("tests[%d]: type = %v, want %v", i, tok.Type, want)
		}
	}
}

func TestNextTokenKeywords(t *testing.T) {
	input := `and class const else false for fun if nil or print return super this true var while exit`
	tests := []TokenType{
		TokenAnd, TokenClass, TokenConst, TokenElse, TokenFalse, TokenFor,
		TokenFun, TokenIf, TokenNil, TokenOr, TokenPrint, TokenReturn,
		TokenSuper, TokenThis, TokenTrue, TokenVar, TokenWhile, TokenExit,
		TokenEOF,
	}

	s := NewScanner(input)
	for i, want := range tests {
		tok := s.NextToken()
		if tok.Type != want {
			t.Fatalf("tests[%d]: type = %v, want %v (lexeme %q)", i, tok.Type, want, tok.Lexeme)
		}
	}
}

func TestNextTokenIdentifierNotKeywordPrefix(t *testing.T) {
	s := NewScanner(`classic`)
	tok := s.NextToken()
	if tok.Type != TokenIdentifier {
		t.Errorf("type = %v, want TokenIdentifier (classic should not match class)", tok.Type)
	}
	if tok.Lexeme != "classic" {
		t.Errorf("lexeme = %q, want classic", tok.Lexeme)
	}
}

func TestNextTokenNumbers(t *testing.T) {
	tests := []string{"123", "3.14", "0"}
	for _, src := range tests {
		s := NewScanner(src)
		tok := s.NextToken()
		if tok.Type != TokenNumber {
			t.Errorf("%q: type = %v, want TokenNumber", src, tok.Type)
		}
		if tok.Lexeme != src {
			t.Errorf("%q: lexeme = %q", src, tok.Lexeme)
		}
	}
}

func TestNextTokenNumberDotWithoutDigitStopsAtDot(t *testing.T) {
	s := NewScanner(`123.foo`)
	tok := s.NextToken()
	if tok.Type != TokenNumber || tok.Lexeme != "123" {
		t.Fatalf("got type=%v lexeme=%q, want TokenNumber 123", tok.Type, tok.Lexeme)
	}
	dot := s.NextToken()
	if dot.Type != TokenDot {
		t.Errorf("expected a separate TokenDot, got %v", dot.Type)
	}
}

func TestNextTokenString(t *testing.T) {
	s := NewScanner(`"hello world"`)
	tok := s.NextToken()
	if tok.Type != TokenString {
		t.Fatalf("type = %v, want TokenString", tok.Type)
	}
	if tok.Lexeme != `"hello world"` {
		t.Errorf("lexeme = %q, want quoted source text", tok.Lexeme)
	}
}

func TestNextTokenUnterminatedString(t *testing.T) {
	s := NewScanner(`"oops`)
	tok := s.NextToken()
	if tok.Type != TokenError {
		t.Fatalf("type = %v, want TokenError", tok.Type)
	}
}

func TestNextTokenSkipsLineComments(t *testing.T) {
	s := NewScanner("// a comment\nvar")
	tok := s.NextToken()
	if tok.Type != TokenVar {
		t.Fatalf("type = %v, want TokenVar after skipping comment", tok.Type)
	}
}

func TestNextTokenTracksLineNumber(t *testing.T) {
	s := NewScanner("var\nvar\nvar")
	var lines []int
	for {
		tok := s.NextToken()
		if tok.Type == TokenEOF {
			break
		}
		lines = append(lines, tok.Line)
	}
	want := []int{1, 2, 3}
	if len(lines) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(lines), len(want))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("token %d: line = %d, want %d", i, lines[i], want[i])
		}
	}
}

func TestNextTokenUnexpectedCharacter(t *testing.T) {
	s := NewScanner(`@`)
	tok := s.NextToken()
	if tok.Type != TokenError {
		t.Errorf("type = %v, want TokenError for unrecognized character", tok.Type)
	}
}
