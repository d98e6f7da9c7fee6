// Package parser implements the sscript recursive-descent parser.
package parser

import (
	"fmt"
	"strconv"

	"github.com/sscript-lang/sscript/pkg/ast"
	"github.com/sscript-lang/sscript/pkg/diagnostics"
	"github.com/sscript-lang/sscript/pkg/lexer"
)

type parser struct {
	tokens []lexer.Token
	pos    int
	diags  []diagnostics.Diagnostic
}

// ParseSource tokenizes source and parses it into a program.
func ParseSource(source, filename string) (*ast.Program, []diagnostics.Diagnostic) {
	tokens, err := lexer.Tokenize(source, filename)
	if err != nil {
		if le, ok := err.(*lexer.LexError); ok {
			return nil, []diagnostics.Diagnostic{le.Diag}
		}
		return nil, []diagnostics.Diagnostic{diagnostics.MakeDiag(diagnostics.ELex, err.Error(), nil, "")}
	}
	return Parse(tokens)
}

// Parse parses a token stream (terminated by EOF) into a program.
// On failure it returns the diagnostics and no tree; a partial tree is
// never produced.
func Parse(tokens []lexer.Token) (*ast.Program, []diagnostics.Diagnostic) {
	p := &parser{tokens: tokens}
	prog := p.parseProgram()
	if len(p.diags) > 0 {
		return nil, p.diags
	}
	return prog, nil
}

func (p *parser) current() lexer.Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1] // EOF
	}
	return p.tokens[p.pos]
}

func (p *parser) peek() lexer.TokenType {
	return p.current().Type
}

func (p *parser) advance() lexer.Token {
	tok := p.current()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *parser) expect(typ lexer.TokenType) (lexer.Token, bool) {
	tok := p.current()
	if tok.Type != typ {
		p.addError(fmt.Sprintf("expected %s, got %s", tokenName(typ), describe(tok)), &tok.Span)
		return tok, false
	}
	return p.advance(), true
}

func (p *parser) addError(msg string, span *ast.Span) {
	p.diags = append(p.diags, diagnostics.MakeDiag(diagnostics.EParse, msg, span, ""))
}

func tokenName(t lexer.TokenType) string {
	switch t {
	case lexer.TokLParen:
		return "'('"
	case lexer.TokRParen:
		return "')'"
	case lexer.TokLBracket:
		return "'['"
	case lexer.TokRBracket:
		return "']'"
	case lexer.TokComma:
		return "','"
	case lexer.TokArrow:
		return "'->'"
	case lexer.TokEquals:
		return "'='"
	case lexer.TokIdent:
		return "identifier"
	case lexer.TokThen:
		return "'then'"
	case lexer.TokDo:
		return "'do'"
	case lexer.TokEnd:
		return "'end'"
	case lexer.TokTo:
		return "'to'"
	case lexer.TokNewline:
		return "newline"
	case lexer.TokEOF:
		return "end of input"
	default:
		return fmt.Sprintf("token(%d)", t)
	}
}

func describe(tok lexer.Token) string {
	if tok.Type == lexer.TokEOF {
		return "end of input"
	}
	if tok.Type == lexer.TokNewline {
		return "newline"
	}
	return fmt.Sprintf("'%s'", tok.Value)
}

// canStartExpr reports whether a token can begin an expression.
func canStartExpr(t lexer.TokenType) bool {
	switch t {
	case lexer.TokIntLit, lexer.TokFloatLit, lexer.TokStringLit, lexer.TokIdent,
		lexer.TokLParen, lexer.TokLBracket, lexer.TokVar, lexer.TokNot,
		lexer.TokPlus, lexer.TokMinus,
		lexer.TokIf, lexer.TokFor, lexer.TokWhile, lexer.TokFunc:
		return true
	}
	return false
}

func (p *parser) skipNewlines() {
	for p.peek() == lexer.TokNewline {
		p.advance()
	}
}

// --- Program ---

func (p *parser) parseProgram() *ast.Program {
	startSpan := p.current().Span

	var stmts []ast.Stmt
	p.skipNewlines()
	for p.peek() != lexer.TokEOF {
		stmt := p.parseStatement()
		if stmt == nil {
			return nil
		}
		stmts = append(stmts, stmt)

		if p.peek() == lexer.TokNewline {
			p.skipNewlines()
		} else if p.peek() != lexer.TokEOF {
			tok := p.current()
			p.addError(fmt.Sprintf("expected newline or ';', got %s", describe(tok)), &tok.Span)
			return nil
		}
	}

	span := startSpan
	for _, s := range stmts {
		span = span.Join(s.NodeSpan())
	}
	return &ast.Program{Span: span, Statements: stmts}
}

// --- Statements ---

func (p *parser) parseStatement() ast.Stmt {
	tok := p.current()
	switch tok.Type {
	case lexer.TokReturn:
		p.advance()
		if !canStartExpr(p.peek()) {
			return &ast.ReturnStmt{Span: tok.Span}
		}
		value := p.parseExpr()
		if value == nil {
			return nil
		}
		return &ast.ReturnStmt{Span: tok.Span.Join(value.NodeSpan()), Value: value}

	case lexer.TokContinue:
		p.advance()
		return &ast.ContinueStmt{Span: tok.Span}

	case lexer.TokBreak:
		p.advance()
		return &ast.BreakStmt{Span: tok.Span}
	}

	expr := p.parseExpr()
	if expr == nil {
		return nil
	}
	return &ast.ExprStmt{Span: expr.NodeSpan(), X: expr}
}

// --- Expressions ---

// parseExpr handles `var IDENT = expr` and the boolean connectives, the
// two lowest precedence levels.
func (p *parser) parseExpr() ast.Expr {
	if p.peek() == lexer.TokVar {
		varTok := p.advance()
		nameTok, ok := p.expect(lexer.TokIdent)
		if !ok {
			return nil
		}
		if _, ok := p.expect(lexer.TokEquals); !ok {
			return nil
		}
		value := p.parseExpr()
		if value == nil {
			return nil
		}
		return &ast.AssignExpr{
			Span:  varTok.Span.Join(value.NodeSpan()),
			Name:  nameTok.Value,
			Value: value,
		}
	}

	left := p.parseCompExpr()
	if left == nil {
		return nil
	}
	for p.peek() == lexer.TokAnd || p.peek() == lexer.TokOr {
		opTok := p.advance()
		op := ast.OpAnd
		if opTok.Type == lexer.TokOr {
			op = ast.OpOr
		}
		right := p.parseCompExpr()
		if right == nil {
			return nil
		}
		left = &ast.BinaryExpr{
			Span:   left.NodeSpan().Join(right.NodeSpan()),
			Op:     op,
			OpSpan: opTok.Span,
			Left:   left,
			Right:  right,
		}
	}
	return left
}

var compOps = map[lexer.TokenType]ast.BinaryOp{
	lexer.TokEqEq:   ast.OpEqEq,
	lexer.TokBangEq: ast.OpNeq,
	lexer.TokLt:     ast.OpLt,
	lexer.TokGt:     ast.OpGt,
	lexer.TokLtEq:   ast.OpLtEq,
	lexer.TokGtEq:   ast.OpGtEq,
}

func (p *parser) parseCompExpr() ast.Expr {
	if p.peek() == lexer.TokNot {
		notTok := p.advance()
		operand := p.parseCompExpr()
		if operand == nil {
			return nil
		}
		return &ast.UnaryExpr{
			Span:    notTok.Span.Join(operand.NodeSpan()),
			Op:      ast.OpNot,
			Operand: operand,
		}
	}

	left := p.parseArithExpr()
	if left == nil {
		return nil
	}
	for {
		op, ok := compOps[p.peek()]
		if !ok {
			return left
		}
		opTok := p.advance()
		right := p.parseArithExpr()
		if right == nil {
			return nil
		}
		left = &ast.BinaryExpr{
			Span:   left.NodeSpan().Join(right.NodeSpan()),
			Op:     op,
			OpSpan: opTok.Span,
			Left:   left,
			Right:  right,
		}
	}
}

func (p *parser) parseArithExpr() ast.Expr {
	left := p.parseTerm()
	if left == nil {
		return nil
	}
	for p.peek() == lexer.TokPlus || p.peek() == lexer.TokMinus {
		opTok := p.advance()
		op := ast.OpAdd
		if opTok.Type == lexer.TokMinus {
			op = ast.OpSub
		}
		right := p.parseTerm()
		if right == nil {
			return nil
		}
		left = &ast.BinaryExpr{
			Span:   left.NodeSpan().Join(right.NodeSpan()),
			Op:     op,
			OpSpan: opTok.Span,
			Left:   left,
			Right:  right,
		}
	}
	return left
}

func (p *parser) parseTerm() ast.Expr {
	left := p.parseFactor()
	if left == nil {
		return nil
	}
	for p.peek() == lexer.TokStar || p.peek() == lexer.TokSlash {
		opTok := p.advance()
		op := ast.OpMul
		if opTok.Type == lexer.TokSlash {
			op = ast.OpDiv
		}
		right := p.parseFactor()
		if right == nil {
			return nil
		}
		left = &ast.BinaryExpr{
			Span:   left.NodeSpan().Join(right.NodeSpan()),
			Op:     op,
			OpSpan: opTok.Span,
			Left:   left,
			Right:  right,
		}
	}
	return left
}

func (p *parser) parseFactor() ast.Expr {
	if p.peek() == lexer.TokPlus || p.peek() == lexer.TokMinus {
		opTok := p.advance()
		op := ast.OpPos
		if opTok.Type == lexer.TokMinus {
			op = ast.OpNeg
		}
		operand := p.parseFactor()
		if operand == nil {
			return nil
		}
		return &ast.UnaryExpr{
			Span:    opTok.Span.Join(operand.NodeSpan()),
			Op:      op,
			Operand: operand,
		}
	}
	return p.parsePower()
}

// parsePower parses `^`. The right operand re-enters parseFactor, which
// makes the operator right-associative: 2 ^ 3 ^ 2 is 2 ^ (3 ^ 2).
func (p *parser) parsePower() ast.Expr {
	left := p.parseCall()
	if left == nil {
		return nil
	}
	if p.peek() != lexer.TokCaret {
		return left
	}
	opTok := p.advance()
	right := p.parseFactor()
	if right == nil {
		return nil
	}
	return &ast.BinaryExpr{
		Span:   left.NodeSpan().Join(right.NodeSpan()),
		Op:     ast.OpPow,
		OpSpan: opTok.Span,
		Left:   left,
		Right:  right,
	}
}

// parseCall parses an atom with at most one call suffix. Chained call
// suffixes (`f(1)(2)`) are not part of the grammar.
func (p *parser) parseCall() ast.Expr {
	atom := p.parseAtom()
	if atom == nil {
		return nil
	}
	if p.peek() != lexer.TokLParen {
		return atom
	}
	p.advance()

	var args []ast.Expr
	if p.peek() != lexer.TokRParen {
		for {
			arg := p.parseExpr()
			if arg == nil {
				return nil
			}
			args = append(args, arg)
			if p.peek() != lexer.TokComma {
				break
			}
			p.advance()
		}
	}
	closeTok, ok := p.expect(lexer.TokRParen)
	if !ok {
		return nil
	}
	return &ast.CallExpr{
		Span:   atom.NodeSpan().Join(closeTok.Span),
		Callee: atom,
		Args:   args,
	}
}

func (p *parser) parseAtom() ast.Expr {
	tok := p.current()
	switch tok.Type {
	case lexer.TokIntLit:
		p.advance()
		v, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			p.addError(fmt.Sprintf("invalid integer literal '%s'", tok.Value), &tok.Span)
			return nil
		}
		return &ast.IntLit{Span: tok.Span, Value: v}

	case lexer.TokFloatLit:
		p.advance()
		v, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			p.addError(fmt.Sprintf("invalid number literal '%s'", tok.Value), &tok.Span)
			return nil
		}
		return &ast.FloatLit{Span: tok.Span, Value: v}

	case lexer.TokStringLit:
		p.advance()
		return &ast.StrLit{Span: tok.Span, Value: tok.Value}

	case lexer.TokIdent:
		p.advance()
		return &ast.Ident{Span: tok.Span, Name: tok.Value}

	case lexer.TokLParen:
		p.advance()
		expr := p.parseExpr()
		if expr == nil {
			return nil
		}
		if _, ok := p.expect(lexer.TokRParen); !ok {
			return nil
		}
		return expr

	case lexer.TokLBracket:
		return p.parseListLit()

	case lexer.TokIf:
		return p.parseIfExpr()

	case lexer.TokFor:
		return p.parseForExpr()

	case lexer.TokWhile:
		return p.parseWhileExpr()

	case lexer.TokFunc:
		return p.parseFuncLit()
	}

	p.addError(fmt.Sprintf("expected expression, got %s", describe(tok)), &tok.Span)
	return nil
}

func (p *parser) parseListLit() ast.Expr {
	openTok := p.advance() // consume '['

	var elems []ast.Expr
	if p.peek() != lexer.TokRBracket {
		for {
			elem := p.parseExpr()
			if elem == nil {
				return nil
			}
			elems = append(elems, elem)
			if p.peek() != lexer.TokComma {
				break
			}
			p.advance()
		}
	}
	closeTok, ok := p.expect(lexer.TokRBracket)
	if !ok {
		return nil
	}
	return &ast.ListLit{
		Span:     openTok.Span.Join(closeTok.Span),
		Elements: elems,
	}
}

// --- Bodies ---

// parseBlockStatements parses newline-separated statements until one of
// the stop token types is reached. The stop token is left unconsumed.
func (p *parser) parseBlockStatements(stop ...lexer.TokenType) ([]ast.Stmt, bool) {
	isStop := func(t lexer.TokenType) bool {
		for _, s := range stop {
			if t == s {
				return true
			}
		}
		return false
	}

	var stmts []ast.Stmt
	p.skipNewlines()
	for !isStop(p.peek()) {
		if p.peek() == lexer.TokEOF {
			tok := p.current()
			p.addError(fmt.Sprintf("expected %s before end of input", tokenName(stop[len(stop)-1])), &tok.Span)
			return nil, false
		}
		stmt := p.parseStatement()
		if stmt == nil {
			return nil, false
		}
		stmts = append(stmts, stmt)

		if p.peek() == lexer.TokNewline {
			p.skipNewlines()
		} else if !isStop(p.peek()) {
			tok := p.current()
			p.addError(fmt.Sprintf("expected newline or ';', got %s", describe(tok)), &tok.Span)
			return nil, false
		}
	}
	return stmts, true
}

// parseLoopBody parses either a single-statement expression-form body or
// a newline-introduced block terminated by `end`. Returns the body and
// the span that closes it: the `end` token for a block, the single
// statement otherwise.
func (p *parser) parseLoopBody() (ast.Body, ast.Span, bool) {
	if p.peek() == lexer.TokNewline {
		stmts, ok := p.parseBlockStatements(lexer.TokEnd)
		if !ok {
			return ast.Body{}, ast.Span{}, false
		}
		endTok, ok := p.expect(lexer.TokEnd)
		if !ok {
			return ast.Body{}, ast.Span{}, false
		}
		return ast.Body{Statements: stmts, Block: true}, endTok.Span, true
	}

	stmt := p.parseStatement()
	if stmt == nil {
		return ast.Body{}, ast.Span{}, false
	}
	return ast.Body{Statements: []ast.Stmt{stmt}}, stmt.NodeSpan(), true
}

// --- Control flow ---

func (p *parser) parseIfExpr() ast.Expr {
	ifTok := p.advance() // consume 'if'
	return p.parseIfCases(ifTok.Span)
}

// parseIfCases parses `cond then body` plus any elif/else continuation.
// It is entered with 'if' or 'elif' already consumed.
func (p *parser) parseIfCases(startSpan ast.Span) ast.Expr {
	cond := p.parseExpr()
	if cond == nil {
		return nil
	}
	if _, ok := p.expect(lexer.TokThen); !ok {
		return nil
	}

	caseSpan := startSpan.Join(cond.NodeSpan())

	if p.peek() == lexer.TokNewline {
		// Block form: statements until elif/else/end.
		stmts, ok := p.parseBlockStatements(lexer.TokElif, lexer.TokElse, lexer.TokEnd)
		if !ok {
			return nil
		}
		body := ast.Body{Statements: stmts, Block: true}
		first := ast.IfCase{Span: caseSpan, Cond: cond, Body: body}

		switch p.peek() {
		case lexer.TokEnd:
			endTok := p.advance()
			return &ast.IfExpr{
				Span:  startSpan.Join(endTok.Span),
				Cases: []ast.IfCase{first},
			}
		case lexer.TokElif:
			elifTok := p.advance()
			rest := p.parseIfCases(elifTok.Span)
			if rest == nil {
				return nil
			}
			restIf := rest.(*ast.IfExpr)
			return &ast.IfExpr{
				Span:  startSpan.Join(restIf.Span),
				Cases: append([]ast.IfCase{first}, restIf.Cases...),
				Else:  restIf.Else,
			}
		default: // TokElse
			p.advance()
			elseBody, endSpan, ok := p.parseElseBody()
			if !ok {
				return nil
			}
			return &ast.IfExpr{
				Span:  startSpan.Join(endSpan),
				Cases: []ast.IfCase{first},
				Else:  &elseBody,
			}
		}
	}

	// Expression form: a single statement on the same line.
	stmt := p.parseStatement()
	if stmt == nil {
		return nil
	}
	body := ast.Body{Statements: []ast.Stmt{stmt}}
	first := ast.IfCase{Span: caseSpan.Join(stmt.NodeSpan()), Cond: cond, Body: body}

	switch p.peek() {
	case lexer.TokElif:
		elifTok := p.advance()
		rest := p.parseIfCases(elifTok.Span)
		if rest == nil {
			return nil
		}
		restIf := rest.(*ast.IfExpr)
		return &ast.IfExpr{
			Span:  startSpan.Join(restIf.Span),
			Cases: append([]ast.IfCase{first}, restIf.Cases...),
			Else:  restIf.Else,
		}
	case lexer.TokElse:
		p.advance()
		elseBody, endSpan, ok := p.parseElseBody()
		if !ok {
			return nil
		}
		return &ast.IfExpr{
			Span:  startSpan.Join(endSpan),
			Cases: []ast.IfCase{first},
			Else:  &elseBody,
		}
	}
	return &ast.IfExpr{
		Span:  startSpan.Join(first.Span),
		Cases: []ast.IfCase{first},
	}
}

func (p *parser) parseElseBody() (ast.Body, ast.Span, bool) {
	if p.peek() == lexer.TokNewline {
		stmts, ok := p.parseBlockStatements(lexer.TokEnd)
		if !ok {
			return ast.Body{}, ast.Span{}, false
		}
		endTok, ok := p.expect(lexer.TokEnd)
		if !ok {
			return ast.Body{}, ast.Span{}, false
		}
		return ast.Body{Statements: stmts, Block: true}, endTok.Span, true
	}

	stmt := p.parseStatement()
	if stmt == nil {
		return ast.Body{}, ast.Span{}, false
	}
	return ast.Body{Statements: []ast.Stmt{stmt}}, stmt.NodeSpan(), true
}

func (p *parser) parseForExpr() ast.Expr {
	forTok := p.advance() // consume 'for'

	nameTok, ok := p.expect(lexer.TokIdent)
	if !ok {
		return nil
	}
	if _, ok := p.expect(lexer.TokEquals); !ok {
		return nil
	}
	from := p.parseExpr()
	if from == nil {
		return nil
	}
	if _, ok := p.expect(lexer.TokTo); !ok {
		return nil
	}
	to := p.parseExpr()
	if to == nil {
		return nil
	}

	var step ast.Expr
	if p.peek() == lexer.TokStep {
		p.advance()
		step = p.parseExpr()
		if step == nil {
			return nil
		}
	}

	if _, ok := p.expect(lexer.TokDo); !ok {
		return nil
	}
	body, endSpan, ok := p.parseLoopBody()
	if !ok {
		return nil
	}
	return &ast.ForExpr{
		Span:    forTok.Span.Join(endSpan),
		VarName: nameTok.Value,
		From:    from,
		To:      to,
		Step:    step,
		Body:    body,
	}
}

func (p *parser) parseWhileExpr() ast.Expr {
	whileTok := p.advance() // consume 'while'

	cond := p.parseExpr()
	if cond == nil {
		return nil
	}
	if _, ok := p.expect(lexer.TokDo); !ok {
		return nil
	}
	body, endSpan, ok := p.parseLoopBody()
	if !ok {
		return nil
	}
	return &ast.WhileExpr{
		Span: whileTok.Span.Join(endSpan),
		Cond: cond,
		Body: body,
	}
}

func (p *parser) parseFuncLit() ast.Expr {
	funcTok := p.advance() // consume 'func'

	name := ""
	if p.peek() == lexer.TokIdent {
		name = p.advance().Value
	}

	if _, ok := p.expect(lexer.TokLParen); !ok {
		return nil
	}
	var params []string
	if p.peek() != lexer.TokRParen {
		for {
			paramTok, ok := p.expect(lexer.TokIdent)
			if !ok {
				return nil
			}
			params = append(params, paramTok.Value)
			if p.peek() != lexer.TokComma {
				break
			}
			p.advance()
		}
	}
	if _, ok := p.expect(lexer.TokRParen); !ok {
		return nil
	}

	if p.peek() == lexer.TokArrow {
		p.advance()
		expr := p.parseExpr()
		if expr == nil {
			return nil
		}
		body := ast.Body{Statements: []ast.Stmt{&ast.ExprStmt{Span: expr.NodeSpan(), X: expr}}}
		return &ast.FuncLit{
			Span:   funcTok.Span.Join(expr.NodeSpan()),
			Name:   name,
			Params: params,
			Body:   body,
		}
	}

	if _, ok := p.expect(lexer.TokNewline); !ok {
		return nil
	}
	stmts, ok := p.parseBlockStatements(lexer.TokEnd)
	if !ok {
		return nil
	}
	endTok, ok := p.expect(lexer.TokEnd)
	if !ok {
		return nil
	}
	return &ast.FuncLit{
		Span:   funcTok.Span.Join(endTok.Span),
		Name:   name,
		Params: params,
		Body:   ast.Body{Statements: stmts, Block: true},
	}
}
