// Package compiler implements ember's front end: a hand-written scanner
// (scanner.go), a Pratt expression parser, and a single-pass code
// generator that emits directly into a bytecode.Chunk with no
// intermediate syntax tree — the same approach the bytecode contract it
// satisfies (pkg/object.Function / pkg/bytecode.Chunk) was designed
// around, where the "compiler" is just another caller of the chunk's
// Write/AddConstant API.
package compiler

import (
	"fmt"

	"github.com/emberlang/ember/pkg/bytecode"
	"github.com/emberlang/ember/pkg/object"
	"github.com/emberlang/ember/pkg/value"
)

// maxLocalsOrUpvalues mirrors UINT8_COUNT: every GET_LOCAL/SET_LOCAL,
// GET_UPVALUE/SET_UPVALUE operand is a single byte, so a function may
// declare at most this many locals or upvalues.
const maxLocalsOrUpvalues = 256

// funcType distinguishes the compile-time context a function body is
// compiled in, since it changes what `this`/`return`/implicit-init
// behavior is legal.
type funcType int

const (
	typeFunction funcType = iota
	typeScript
	typeMethod
	typeInitializer
)

type local struct {
	name       string
	depth      int // -1 while the declaring initializer is still being compiled
	isCaptured bool
	isConst    bool
}

type upvalueRef struct {
	index   byte
	isLocal bool
	isConst bool
}

// funcCompiler tracks one function's locals/upvalues while its body is
// being compiled; funcCompilers nest one per enclosing function, exactly
// mirroring the call stack of compile-time scopes.
type funcCompiler struct {
	enclosing  *funcCompiler
	function   *object.Function
	kind       funcType
	locals     []local
	upvalues   []upvalueRef
	scopeDepth int
}

type classCompiler struct {
	enclosing      *classCompiler
	hasSuperclass  bool
}

// Compiler drives the single pass from source text to a finished
// object.Function. It is not safe for concurrent use and is discarded
// after Compile returns.
type Compiler struct {
	scanner *Scanner
	strings *object.Strings

	previous Token
	current  Token

	hadError  bool
	panicMode bool
	errs      []string

	fc    *funcCompiler
	class *classCompiler
}

// Compile parses source and emits bytecode for it, returning the
// top-level script Function, the accumulated diagnostic messages (empty on
// success), and whether compilation succeeded. On failure, the caller
// should surface COMPILE_ERROR and the returned messages rather than try to
// run the partially-built function.
func Compile(source string, strings *object.Strings) (*object.Function, []string, bool) {
	c := &Compiler{scanner: NewScanner(source), strings: strings}
	c.fc = &funcCompiler{function: object.NewFunction(), kind: typeScript}
	// Slot 0 of every frame is reserved for the callee itself (or `this`
	// inside a method); give it an empty, un-referenceable name.
	c.fc.locals = append(c.fc.locals, local{name: "", depth: 0})

	c.advance()
	for !c.match(TokenEOF) {
		c.declaration()
	}
	fn := c.endFunction()
	return fn, c.errs, !c.hadError
}

// Errors returns the accumulated compile-error diagnostics in source
// order, for callers that want to print more than the first failure.
func (c *Compiler) Errors() []string { return c.errs }

// ---- token stream helpers ---------------------------------------------

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.scanner.NextToken()
		if c.current.Type != TokenError {
			break
		}
		c.errorAtCurrent(c.current.Lexeme)
	}
}

func (c *Compiler) check(t TokenType) bool { return c.current.Type == t }

func (c *Compiler) match(t TokenType) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t TokenType, msg string) {
	if c.current.Type == t {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

func (c *Compiler) errorAtCurrent(msg string) { c.errorAt(c.current, msg) }
func (c *Compiler) error(msg string)          { c.errorAt(c.previous, msg) }

func (c *Compiler) errorAt(t Token, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	where := ""
	switch t.Type {
	case TokenEOF:
		where = " at end"
	case TokenError:
		// lexeme already is the message
	default:
		where = fmt.Sprintf(" at '%s'", t.Lexeme)
	}
	c.errs = append(c.errs, fmt.Sprintf("[line %d] Error%s: %s", t.Line, where, msg))
	c.hadError = true
}

// synchronize discards tokens until it reaches a plausible statement
// boundary, so one error doesn't cascade into a wall of spurious ones.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.current.Type != TokenEOF {
		if c.previous.Type == TokenSemicolon {
			return
		}
		switch c.current.Type {
		case TokenClass, TokenFun, TokenVar, TokenConst, TokenFor, TokenIf,
			TokenWhile, TokenPrint, TokenReturn, TokenExit:
			return
		}
		c.advance()
	}
}

// ---- emission helpers ---------------------------------------------------

func (c *Compiler) chunk() *bytecode.Chunk { return c.fc.function.Chunk }

func (c *Compiler) emitByte(b byte)    { c.chunk().Write(b, c.previous.Line) }
func (c *Compiler) emitOp(op bytecode.Op) { c.chunk().WriteOp(op, c.previous.Line) }

func (c *Compiler) emitBytes(op bytecode.Op, b byte) {
	c.emitOp(op)
	c.emitByte(b)
}

func (c *Compiler) emitJump(op bytecode.Op) int {
	c.emitOp(op)
	return c.chunk().WriteU16(0xFFFF, c.previous.Line)
}

func (c *Compiler) patchJump(offset int) {
	jump := c.chunk().Len() - (offset + 2)
	if jump > 0xFFFF {
		c.error("too much code to jump over")
	}
	c.chunk().PatchU16(offset, uint16(jump))
}

func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(bytecode.OpLoop)
	offset := c.chunk().Len() - loopStart + 2
	if offset > 0xFFFF {
		c.error("loop body too large")
	}
	c.chunk().WriteU16(uint16(offset), c.previous.Line)
}

func (c *Compiler) makeConstant(v value.Value) byte {
	idx := c.chunk().AddConstant(v)
	if idx > 255 {
		c.error("too many constants in one chunk")
		return 0
	}
	return byte(idx)
}

func (c *Compiler) emitConstant(v value.Value) {
	c.emitBytes(bytecode.OpConstant, c.makeConstant(v))
}

func (c *Compiler) identifierConstant(name string) byte {
	return c.makeConstant(value.NewObj(c.strings.Intern(name)))
}

func (c *Compiler) emitReturn() {
	if c.fc.kind == typeInitializer {
		// `init` methods implicitly return `this`, which lives in slot 0.
		c.emitBytes(bytecode.OpGetLocal, 0)
	} else {
		c.emitOp(bytecode.OpNil)
	}
	c.emitOp(bytecode.OpReturn)
}

func (c *Compiler) endFunction() *object.Function {
	c.emitReturn()
	fn := c.fc.function
	fn.UpvalueCountVal = len(c.fc.upvalues)
	c.fc = c.fc.enclosing
	return fn
}

// ---- scope / locals ------------------------------------------------------

func (c *Compiler) beginScope() { c.fc.scopeDepth++ }

func (c *Compiler) endScope() {
	c.fc.scopeDepth--
	for len(c.fc.locals) > 0 && c.fc.locals[len(c.fc.locals)-1].depth > c.fc.scopeDepth {
		if c.fc.locals[len(c.fc.locals)-1].isCaptured {
			c.emitOp(bytecode.OpCloseUpvalue)
		} else {
			c.emitOp(bytecode.OpPop)
		}
		c.fc.locals = c.fc.locals[:len(c.fc.locals)-1]
	}
}

func (c *Compiler) addLocal(name string, isConst bool) {
	if len(c.fc.locals) >= maxLocalsOrUpvalues {
		c.error("too many local variables in function")
		return
	}
	c.fc.locals = append(c.fc.locals, local{name: name, depth: -1, isConst: isConst})
}

func (c *Compiler) declareVariable(name Token, isConst bool) {
	if c.fc.scopeDepth == 0 {
		return
	}
	for i := len(c.fc.locals) - 1; i >= 0; i-- {
		l := c.fc.locals[i]
		if l.depth != -1 && l.depth < c.fc.scopeDepth {
			break
		}
		if l.name == name.Lexeme {
			c.error("a variable with this name already declared in this scope")
		}
	}
	c.addLocal(name.Lexeme, isConst)
}

func (c *Compiler) markInitialized() {
	if c.fc.scopeDepth == 0 {
		return
	}
	c.fc.locals[len(c.fc.locals)-1].depth = c.fc.scopeDepth
}

func resolveLocal(fc *funcCompiler, name string) int {
	for i := len(fc.locals) - 1; i >= 0; i-- {
		if fc.locals[i].name == name {
			if fc.locals[i].depth == -1 {
				return -2 // sentinel: read-before-initialized
			}
			return i
		}
	}
	return -1
}

func addUpvalue(fc *funcCompiler, index byte, isLocal bool, isConst bool) int {
	for i, u := range fc.upvalues {
		if u.index == index && u.isLocal == isLocal {
			return i
		}
	}
	if len(fc.upvalues) >= maxLocalsOrUpvalues {
		return -1
	}
	fc.upvalues = append(fc.upvalues, upvalueRef{index: index, isLocal: isLocal, isConst: isConst})
	return len(fc.upvalues) - 1
}

func resolveUpvalue(fc *funcCompiler, name string) int {
	if fc.enclosing == nil {
		return -1
	}
	if local := resolveLocal(fc.enclosing, name); local >= 0 {
		fc.enclosing.locals[local].isCaptured = true
		return addUpvalue(fc, byte(local), true, fc.enclosing.locals[local].isConst)
	}
	if up := resolveUpvalue(fc.enclosing, name); up >= 0 {
		return addUpvalue(fc, byte(up), false, fc.enclosing.upvalues[up].isConst)
	}
	return -1
}

// ---- declarations and statements ----------------------------------------

func (c *Compiler) declaration() {
	switch {
	case c.match(TokenClass):
		c.classDeclaration()
	case c.match(TokenFun):
		c.funDeclaration()
	case c.match(TokenVar):
		c.varDeclaration(false)
	case c.match(TokenConst):
		c.varDeclaration(true)
	default:
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) parseVariable(msg string, isConst bool) byte {
	c.consume(TokenIdentifier, msg)
	name := c.previous
	c.declareVariable(name, isConst)
	if c.fc.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(name.Lexeme)
}

func (c *Compiler) defineVariable(global byte, isConst bool) {
	if c.fc.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	if isConst {
		c.emitBytes(bytecode.OpDefineConstant, global)
	} else {
		c.emitBytes(bytecode.OpDefineGlobal, global)
	}
}

func (c *Compiler) varDeclaration(isConst bool) {
	global := c.parseVariable("expect variable name", isConst)
	if c.match(TokenEqual) {
		c.expression()
	} else {
		if isConst {
			c.error("const declaration requires an initializer")
		}
		c.emitOp(bytecode.OpNil)
	}
	c.consume(TokenSemicolon, "expect ';' after variable declaration")
	c.defineVariable(global, isConst)
}

func (c *Compiler) funDeclaration() {
	global := c.parseVariable("expect function name", false)
	c.markInitialized()
	c.function(typeFunction)
	c.defineVariable(global, false)
}

func (c *Compiler) function(kind funcType) {
	fc := &funcCompiler{enclosing: c.fc, function: object.NewFunction(), kind: kind}
	fc.locals = append(fc.locals, local{name: "", depth: 0})
	if kind != typeFunction && kind != typeScript {
		fc.locals[0].name = "this"
	}
	if kind != typeScript {
		fc.function.Name = c.strings.Intern(c.previous.Lexeme)
	}
	c.fc = fc
	c.beginScope()

	c.consume(TokenLeftParen, "expect '(' after function name")
	if !c.check(TokenRightParen) {
		for {
			c.fc.function.Arity++
			if c.fc.function.Arity > 255 {
				c.errorAtCurrent("can't have more than 255 parameters")
			}
			constant := c.parseVariable("expect parameter name", false)
			c.defineVariable(constant, false)
			if !c.match(TokenComma) {
				break
			}
		}
	}
	c.consume(TokenRightParen, "expect ')' after parameters")
	c.consume(TokenLeftBrace, "expect '{' before function body")
	c.block()

	innerUpvalues := c.fc.upvalues
	fn := c.endFunction()

	c.emitBytes(bytecode.OpClosure, c.makeConstant(value.NewObj(fn)))
	for _, u := range innerUpvalues {
		if u.isLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(u.index)
	}
}

func (c *Compiler) classDeclaration() {
	c.consume(TokenIdentifier, "expect class name")
	nameTok := c.previous
	nameConstant := c.identifierConstant(nameTok.Lexeme)
	c.declareVariable(nameTok, false)

	c.emitBytes(bytecode.OpClass, nameConstant)
	c.defineVariable(nameConstant, false)

	cc := &classCompiler{enclosing: c.class}
	c.class = cc

	if c.match(TokenLess) {
		c.consume(TokenIdentifier, "expect superclass name")
		c.variable(false)
		if c.previous.Lexeme == nameTok.Lexeme {
			c.error("a class can't inherit from itself")
		}
		c.beginScope()
		c.addLocal("super", true)
		c.markInitialized()

		c.namedVariableByName(nameTok.Lexeme, false)
		c.emitOp(bytecode.OpInherit)
		cc.hasSuperclass = true
	}

	c.namedVariableByName(nameTok.Lexeme, false)
	c.consume(TokenLeftBrace, "expect '{' before class body")
	for !c.check(TokenRightBrace) && !c.check(TokenEOF) {
		c.method()
	}
	c.consume(TokenRightBrace, "expect '}' after class body")
	c.emitOp(bytecode.OpPop) // pop the class itself

	if cc.hasSuperclass {
		c.endScope()
	}
	c.class = cc.enclosing
}

func (c *Compiler) method() {
	c.consume(TokenIdentifier, "expect method name")
	name := c.previous.Lexeme
	constant := c.identifierConstant(name)

	kind := typeMethod
	if name == "init" {
		kind = typeInitializer
	}
	c.function(kind)
	c.emitBytes(bytecode.OpMethod, constant)
}

func (c *Compiler) statement() {
	switch {
	case c.match(TokenPrint):
		c.printStatement()
	case c.match(TokenIf):
		c.ifStatement()
	case c.match(TokenWhile):
		c.whileStatement()
	case c.match(TokenFor):
		c.forStatement()
	case c.match(TokenReturn):
		c.returnStatement()
	case c.match(TokenExit):
		c.consume(TokenSemicolon, "expect ';' after exit")
		c.emitOp(bytecode.OpExit)
	case c.match(TokenLeftBrace):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) block() {
	for !c.check(TokenRightBrace) && !c.check(TokenEOF) {
		c.declaration()
	}
	c.consume(TokenRightBrace, "expect '}' after block")
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(TokenSemicolon, "expect ';' after value")
	c.emitOp(bytecode.OpPrint)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(TokenSemicolon, "expect ';' after expression")
	c.emitOp(bytecode.OpPop)
}

func (c *Compiler) ifStatement() {
	c.consume(TokenLeftParen, "expect '(' after 'if'")
	c.expression()
	c.consume(TokenRightParen, "expect ')' after condition")

	thenJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emitOp(bytecode.OpPop)
	c.statement()

	elseJump := c.emitJump(bytecode.OpJump)
	c.patchJump(thenJump)
	c.emitOp(bytecode.OpPop)

	if c.match(TokenElse) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileStatement() {
	loopStart := c.chunk().Len()
	c.consume(TokenLeftParen, "expect '(' after 'while'")
	c.expression()
	c.consume(TokenRightParen, "expect ')' after condition")

	exitJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emitOp(bytecode.OpPop)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(bytecode.OpPop)
}

// forStatement desugars `for (init; cond; post) body` into the equivalent
// `{ init; while (cond) { body; post; } }`, matching the classic Lox-family
// desugaring rather than adding dedicated loop opcodes.
func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(TokenLeftParen, "expect '(' after 'for'")

	switch {
	case c.match(TokenSemicolon):
		// no initializer
	case c.match(TokenVar):
		c.varDeclaration(false)
	default:
		c.expressionStatement()
	}

	loopStart := c.chunk().Len()
	exitJump := -1
	if !c.match(TokenSemicolon) {
		c.expression()
		c.consume(TokenSemicolon, "expect ';' after loop condition")
		exitJump = c.emitJump(bytecode.OpJumpIfFalse)
		c.emitOp(bytecode.OpPop)
	}

	if !c.match(TokenRightParen) {
		bodyJump := c.emitJump(bytecode.OpJump)
		incrementStart := c.chunk().Len()
		c.expression()
		c.emitOp(bytecode.OpPop)
		c.consume(TokenRightParen, "expect ')' after for clauses")

		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	}

	c.statement()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(bytecode.OpPop)
	}
	c.endScope()
}

func (c *Compiler) returnStatement() {
	if c.fc.kind == typeScript {
		c.error("can't return from top-level code")
	}
	if c.match(TokenSemicolon) {
		c.emitReturn()
		return
	}
	if c.fc.kind == typeInitializer {
		c.error("can't return a value from an initializer")
	}
	c.expression()
	c.consume(TokenSemicolon, "expect ';' after return value")
	c.emitOp(bytecode.OpReturn)
}

// ---- expressions (Pratt parser) -----------------------------------------

type precedence int

const (
	precNone       precedence = iota
	precAssignment            // =
	precOr                    // or
	precAnd                   // and
	precEquality              // == !=
	precComparison            // < > <= >=
	precShift                 // << >>
	precTerm                  // + -
	precFactor                // * / %
	precPower                 // **
	precUnary                 // ! - ++ --
	precCall                  // . ()
	precPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

var rules map[TokenType]parseRule

func init() {
	rules = map[TokenType]parseRule{
		TokenLeftParen:      {(*Compiler).grouping, (*Compiler).call, precCall},
		TokenDot:            {nil, (*Compiler).dot, precCall},
		TokenMinus:          {(*Compiler).unary, (*Compiler).binary, precTerm},
		TokenPlus:           {nil, (*Compiler).binary, precTerm},
		TokenSlash:          {nil, (*Compiler).binary, precFactor},
		TokenStar:           {nil, (*Compiler).binary, precFactor},
		TokenStarStar:       {nil, (*Compiler).binary, precPower},
		TokenPercent:        {nil, (*Compiler).binary, precFactor},
		TokenBang:           {(*Compiler).unary, nil, precNone},
		TokenBangEqual:      {nil, (*Compiler).binary, precEquality},
		TokenEqualEqual:     {nil, (*Compiler).binary, precEquality},
		TokenGreater:        {nil, (*Compiler).binary, precComparison},
		TokenGreaterEqual:   {nil, (*Compiler).binary, precComparison},
		TokenGreaterGreater: {nil, (*Compiler).binary, precShift},
		TokenLess:           {nil, (*Compiler).binary, precComparison},
		TokenLessEqual:      {nil, (*Compiler).binary, precComparison},
		TokenLessLess:       {nil, (*Compiler).binary, precShift},
		TokenPlusPlus:       {(*Compiler).prefixIncDec, nil, precUnary},
		TokenMinusMinus:     {(*Compiler).prefixIncDec, nil, precUnary},
		TokenIdentifier:     {(*Compiler).variablePrefix, nil, precNone},
		TokenString:         {(*Compiler).stringLiteral, nil, precNone},
		TokenNumber:         {(*Compiler).number, nil, precNone},
		TokenAnd:            {nil, (*Compiler).and, precAnd},
		TokenOr:              {nil, (*Compiler).or, precOr},
		TokenFalse:          {(*Compiler).literal, nil, precNone},
		TokenTrue:           {(*Compiler).literal, nil, precNone},
		TokenNil:            {(*Compiler).literal, nil, precNone},
		TokenThis:           {(*Compiler).this, nil, precNone},
		TokenSuper:          {(*Compiler).super, nil, precNone},
	}
}

func getRule(t TokenType) parseRule {
	if r, ok := rules[t]; ok {
		return r
	}
	return parseRule{}
}

func (c *Compiler) expression() { c.parsePrecedence(precAssignment) }

func (c *Compiler) parsePrecedence(prec precedence) {
	c.advance()
	prefix := getRule(c.previous.Type).prefix
	if prefix == nil {
		c.error("expect expression")
		return
	}
	canAssign := prec <= precAssignment
	prefix(c, canAssign)

	for prec <= getRule(c.current.Type).precedence {
		c.advance()
		infix := getRule(c.previous.Type).infix
		infix(c, canAssign)
	}

	if canAssign && c.matchAnyAssignOp() {
		c.error("invalid assignment target")
	}
}

func (c *Compiler) matchAnyAssignOp() bool {
	switch c.current.Type {
	case TokenEqual, TokenPlusEqual, TokenMinusEqual, TokenStarEqual, TokenSlashEqual, TokenPercentEqual:
		return true
	}
	if c.current.Type == TokenStarStar && c.current.Lexeme == "**=" {
		return true
	}
	return false
}

func (c *Compiler) number(canAssign bool) {
	var f float64
	fmt.Sscanf(c.previous.Lexeme, "%g", &f)
	c.emitConstant(value.NewNumber(f))
}

func (c *Compiler) stringLiteral(canAssign bool) {
	raw := c.previous.Lexeme
	s := raw[1 : len(raw)-1]
	c.emitConstant(value.NewObj(c.strings.Intern(s)))
}

func (c *Compiler) literal(canAssign bool) {
	switch c.previous.Type {
	case TokenFalse:
		c.emitOp(bytecode.OpFalse)
	case TokenTrue:
		c.emitOp(bytecode.OpTrue)
	case TokenNil:
		c.emitOp(bytecode.OpNil)
	}
}

func (c *Compiler) grouping(canAssign bool) {
	c.expression()
	c.consume(TokenRightParen, "expect ')' after expression")
}

func (c *Compiler) unary(canAssign bool) {
	op := c.previous.Type
	c.parsePrecedence(precUnary)
	switch op {
	case TokenBang:
		c.emitOp(bytecode.OpNot)
	case TokenMinus:
		c.emitOp(bytecode.OpNegate)
	}
}

// assignOpFor maps a compound-assignment or increment/decrement token to
// the binary opcode its desugaring reuses.
func assignOpFor(t Token) bytecode.Op {
	switch t.Type {
	case TokenPlusEqual, TokenPlusPlus:
		return bytecode.OpAdd
	case TokenMinusEqual, TokenMinusMinus:
		return bytecode.OpSubtract
	case TokenStarEqual:
		return bytecode.OpMultiply
	case TokenSlashEqual:
		return bytecode.OpDivide
	case TokenPercentEqual:
		return bytecode.OpModulo
	case TokenStarStar: // only reached when lexeme is "**="
		return bytecode.OpPower
	}
	return bytecode.OpAdd
}

// prefixIncDec handles `++x`/`--x`: desugars to `x = x + 1` / `x = x - 1`
// and leaves the new value on the stack, matching how the compound
// assignment desugaring already works. Postfix `x++`/`x--` (handled in
// namedVariable) also leaves the new value, not the old one.
func (c *Compiler) prefixIncDec(canAssign bool) {
	op := assignOpFor(c.previous)
	c.consume(TokenIdentifier, "expect variable after increment/decrement operator")
	name := c.previous
	c.compoundAssignVariable(name, op, func() { c.emitConstant(value.NewNumber(1)) })
}

func (c *Compiler) binary(canAssign bool) {
	opType := c.previous.Type
	rule := getRule(opType)
	c.parsePrecedence(rule.precedence + 1)

	switch opType {
	case TokenBangEqual:
		c.emitOp(bytecode.OpEqual)
		c.emitOp(bytecode.OpNot)
	case TokenEqualEqual:
		c.emitOp(bytecode.OpEqual)
	case TokenGreater:
		c.emitOp(bytecode.OpGreater)
	case TokenGreaterEqual:
		c.emitOp(bytecode.OpLess)
		c.emitOp(bytecode.OpNot)
	case TokenLess:
		c.emitOp(bytecode.OpLess)
	case TokenLessEqual:
		c.emitOp(bytecode.OpGreater)
		c.emitOp(bytecode.OpNot)
	case TokenGreaterGreater:
		c.emitOp(bytecode.OpShiftRight)
	case TokenLessLess:
		c.emitOp(bytecode.OpShiftLeft)
	case TokenPlus:
		c.emitOp(bytecode.OpAdd)
	case TokenMinus:
		c.emitOp(bytecode.OpSubtract)
	case TokenStar:
		c.emitOp(bytecode.OpMultiply)
	case TokenStarStar:
		c.emitOp(bytecode.OpPower)
	case TokenSlash:
		c.emitOp(bytecode.OpDivide)
	case TokenPercent:
		c.emitOp(bytecode.OpModulo)
	}
}

func (c *Compiler) and(canAssign bool) {
	endJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emitOp(bytecode.OpPop)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

func (c *Compiler) or(canAssign bool) {
	elseJump := c.emitJump(bytecode.OpJumpIfFalse)
	endJump := c.emitJump(bytecode.OpJump)
	c.patchJump(elseJump)
	c.emitOp(bytecode.OpPop)
	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

func (c *Compiler) call(canAssign bool) {
	argc := c.argumentList()
	c.emitBytes(bytecode.OpCall, argc)
}

func (c *Compiler) argumentList() byte {
	var argc int
	if !c.check(TokenRightParen) {
		for {
			c.expression()
			if argc == 255 {
				c.error("can't have more than 255 arguments")
			}
			argc++
			if !c.match(TokenComma) {
				break
			}
		}
	}
	c.consume(TokenRightParen, "expect ')' after arguments")
	return byte(argc)
}

func (c *Compiler) dot(canAssign bool) {
	c.consume(TokenIdentifier, "expect property name after '.'")
	name := c.previous.Lexeme
	nameConstant := c.identifierConstant(name)

	switch {
	case canAssign && c.match(TokenEqual):
		c.expression()
		c.emitBytes(bytecode.OpSetProperty, nameConstant)
	case c.match(TokenLeftParen):
		argc := c.argumentList()
		c.emitBytes(bytecode.OpInvoke, nameConstant)
		c.emitByte(argc)
	default:
		c.emitBytes(bytecode.OpGetProperty, nameConstant)
	}
}

func (c *Compiler) this(canAssign bool) {
	if c.class == nil {
		c.error("can't use 'this' outside of a class")
		return
	}
	c.variable(false)
}

func (c *Compiler) super(canAssign bool) {
	if c.class == nil {
		c.error("can't use 'super' outside of a class")
	} else if !c.class.hasSuperclass {
		c.error("can't use 'super' in a class with no superclass")
	}
	c.consume(TokenDot, "expect '.' after 'super'")
	c.consume(TokenIdentifier, "expect superclass method name")
	name := c.identifierConstant(c.previous.Lexeme)

	c.namedVariableByName("this", false)
	if c.match(TokenLeftParen) {
		argc := c.argumentList()
		c.namedVariableByName("super", false)
		c.emitBytes(bytecode.OpSuperInvoke, name)
		c.emitByte(argc)
	} else {
		c.namedVariableByName("super", false)
		c.emitBytes(bytecode.OpGetSuper, name)
	}
}

// variablePrefix is the parse-table entry for a bare identifier: it
// dispatches to variable(); a following assignment, compound assignment or
// postfix ++/-- is handled by namedVariable.
func (c *Compiler) variablePrefix(canAssign bool) {
	c.variable(canAssign)
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.previous, canAssign)
}

func (c *Compiler) namedVariable(name Token, canAssign bool) {
	getOp, setOp, arg, isConst := c.resolveTarget(name)

	switch {
	case canAssign && c.match(TokenEqual):
		if isConst {
			c.error("cannot assign to a constant")
		}
		c.expression()
		c.emitBytes(setOp, arg)
	case canAssign && c.matchCompoundOp():
		if isConst {
			c.error("cannot assign to a constant")
		}
		op := assignOpFor(c.previous)
		c.emitBytes(getOp, arg)
		c.expression()
		c.emitOp(op)
		c.emitBytes(setOp, arg)
	case canAssign && (c.match(TokenPlusPlus) || c.match(TokenMinusMinus)):
		if isConst {
			c.error("cannot assign to a constant")
		}
		op := assignOpFor(c.previous)
		c.emitBytes(getOp, arg)
		c.emitConstant(value.NewNumber(1))
		c.emitOp(op)
		c.emitBytes(setOp, arg)
	default:
		c.emitBytes(getOp, arg)
	}
}

// compoundAssignVariable implements the shared get/rhs/op/set desugaring
// used by prefix `++x`/`--x` (whose rhs is always the literal 1).
func (c *Compiler) compoundAssignVariable(name Token, op bytecode.Op, rhs func()) {
	getOp, setOp, arg, isConst := c.resolveTarget(name)
	if isConst {
		c.error("cannot assign to a constant")
	}
	c.emitBytes(getOp, arg)
	rhs()
	c.emitOp(op)
	c.emitBytes(setOp, arg)
}

func (c *Compiler) namedVariableByName(name string, canAssign bool) {
	c.namedVariable(Token{Type: TokenIdentifier, Lexeme: name, Line: c.previous.Line}, canAssign)
}

// resolveTarget determines which get/set opcode pair and operand index a
// variable reference compiles to: a local slot, an upvalue index, or a
// global name constant, in that preference order, and whether the target
// is a const binding (so the caller can reject a write at compile time).
// This compile-time check is the only protection for local and upvalue
// consts: SET_LOCAL and SET_UPVALUE do no constness check at runtime.
func (c *Compiler) resolveTarget(name Token) (getOp, setOp bytecode.Op, arg byte, isConst bool) {
	if slot := resolveLocal(c.fc, name.Lexeme); slot >= 0 {
		return bytecode.OpGetLocal, bytecode.OpSetLocal, byte(slot), c.fc.locals[slot].isConst
	} else if slot == -2 {
		c.error("can't read local variable in its own initializer")
		return bytecode.OpGetLocal, bytecode.OpSetLocal, 0, false
	}
	if up := resolveUpvalue(c.fc, name.Lexeme); up >= 0 {
		return bytecode.OpGetUpvalue, bytecode.OpSetUpvalue, byte(up), c.fc.upvalues[up].isConst
	}
	return bytecode.OpGetGlobal, bytecode.OpSetGlobal, c.identifierConstant(name.Lexeme), false
}

func (c *Compiler) matchCompoundOp() bool {
	switch c.current.Type {
	case TokenPlusEqual, TokenMinusEqual, TokenStarEqual, TokenSlashEqual, TokenPercentEqual:
		c.advance()
		return true
	case TokenStarStar:
		if c.current.Lexeme == "**=" {
			c.advance()
			return true
		}
	}
	return false
}
