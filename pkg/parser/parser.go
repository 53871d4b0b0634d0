// Package parser turns a token stream from pkg/lexer into the pkg/ast tree,
// using a Pratt expression parser layered over a recursive-descent
// statement parser, built around significant-indentation blocks instead
// of brace delimiters.
package parser

import (
	"fmt"
	"strconv"

	"wisp/pkg/ast"
	"wisp/pkg/errors"
	"wisp/pkg/lexer"
	"wisp/pkg/source"
)

type precedence int

const (
	_ precedence = iota
	LOWEST
	NULLISH    // ??
	LOGIC_OR   // or
	LOGIC_AND  // and
	EQUALITY   // == !=
	COMPARISON // < > <= >=
	RANGE      // .. ..=
	ADDITIVE   // + -
	MULTIPLY   // * / %
	UNARY      // - not
	POWER      // ** (right assoc)
	POSTFIX    // call / index / member
)

var precedences = map[lexer.TokenType]precedence{
	lexer.QQ:       NULLISH,
	lexer.OR:       LOGIC_OR,
	lexer.AND:      LOGIC_AND,
	lexer.EQ:       EQUALITY,
	lexer.NOT_EQ:   EQUALITY,
	lexer.LT:       COMPARISON,
	lexer.GT:       COMPARISON,
	lexer.LT_EQ:    COMPARISON,
	lexer.GT_EQ:    COMPARISON,
	lexer.DOTDOT:   RANGE,
	lexer.DOTDOTEQ: RANGE,
	lexer.PLUS:     ADDITIVE,
	lexer.MINUS:    ADDITIVE,
	lexer.STAR:     MULTIPLY,
	lexer.SLASH:    MULTIPLY,
	lexer.PERCENT:  MULTIPLY,
	lexer.STARSTAR: POWER,
	lexer.LPAREN:   POSTFIX,
	lexer.LBRACKET: POSTFIX,
	lexer.DOT:      POSTFIX,
	lexer.QDOT:     POSTFIX,
	lexer.QBRACKET: POSTFIX,
}

var assignTokens = map[lexer.TokenType]bool{
	lexer.ASSIGN:   true,
	lexer.PLUS_EQ:  true,
	lexer.MINUS_EQ: true,
	lexer.STAR_EQ:  true,
	lexer.SLASH_EQ: true,
	lexer.QQ_EQ:    true,
}

type Parser struct {
	lex *lexer.Lexer
	src *source.File

	cur  lexer.Token
	peek lexer.Token

	errs []*errors.SyntaxError
}

func New(src *source.File) *Parser {
	p := &Parser{lex: lexer.New(src), src: src}
	p.next()
	p.next()
	return p
}

func (p *Parser) Errors() []*errors.SyntaxError { return p.errs }

func (p *Parser) next() {
	p.cur = p.peek
	p.peek = p.lex.NextToken()
}

func (p *Parser) pos(tok lexer.Token) errors.Position {
	return errors.Position{Line: tok.Line, Column: tok.Column, StartPos: tok.StartPos, EndPos: tok.EndPos, Source: p.src}
}

func (p *Parser) errorf(tok lexer.Token, format string, args ...interface{}) {
	p.errs = append(p.errs, &errors.SyntaxError{Position: p.pos(tok), Msg: fmt.Sprintf(format, args...)})
}

func (p *Parser) curIs(t lexer.TokenType) bool  { return p.cur.Type == t }
func (p *Parser) peekIs(t lexer.TokenType) bool { return p.peek.Type == t }

func (p *Parser) expect(t lexer.TokenType) bool {
	if p.peekIs(t) {
		p.next()
		return true
	}
	p.errorf(p.peek, "expected %s, got %s (%q)", t, p.peek.Type, p.peek.Literal)
	return false
}

func (p *Parser) skipNewlines() {
	for p.curIs(lexer.NEWLINE) {
		p.next()
	}
}

// ParseProgram parses the whole token stream into a Program node.
func (p *Parser) ParseProgram() *ast.Program {
	prog := &ast.Program{}
	prog.Pos = p.pos(p.cur)
	p.skipNewlines()
	for !p.curIs(lexer.EOF) {
		if stmt := p.parseStatement(); stmt != nil {
			prog.Statements = append(prog.Statements, stmt)
		}
		p.next()
		p.skipNewlines()
	}
	return prog
}

// ---------------------------------------------------------------- statements

func (p *Parser) parseStatement() ast.Statement {
	switch p.cur.Type {
	case lexer.IF:
		return p.parseIf()
	case lexer.WHILE:
		return p.parseWhile("")
	case lexer.LOOP:
		return p.parseLoop("")
	case lexer.FOR:
		return p.parseFor("")
	case lexer.BREAK:
		return p.parseBreak()
	case lexer.CONTINUE:
		return p.parseContinue()
	case lexer.RETURN:
		return p.parseReturn()
	case lexer.PRINT:
		return p.parsePrint()
	case lexer.IMPORT:
		return p.parseImport()
	case lexer.CLASS:
		return p.parseClass()
	case lexer.FN:
		return p.parseFunctionStatement()
	case lexer.IDENT:
		if p.peekIs(lexer.COLON) {
			// labeled loop: `label: while ...` / `label: loop:` / `label: for ...`
			return p.parseLabeled()
		}
		if p.peekIs(lexer.WALRUS) {
			return p.parseLet()
		}
		return p.parseExpressionStatement()
	default:
		return p.parseExpressionStatement()
	}
}

func (p *Parser) parseLabeled() ast.Statement {
	label := p.cur.Literal
	p.next() // consume IDENT
	p.next() // consume COLON
	switch p.cur.Type {
	case lexer.WHILE:
		return p.parseWhile(label)
	case lexer.LOOP:
		return p.parseLoop(label)
	case lexer.FOR:
		return p.parseFor(label)
	default:
		p.errorf(p.cur, "expected a loop after label %q", label)
		return nil
	}
}

func (p *Parser) parseLet() *ast.LetStatement {
	tok := p.cur
	name := &ast.Identifier{Name: p.cur.Literal}
	name.Pos = p.pos(p.cur)
	p.next() // consume IDENT
	p.next() // consume :=
	val := p.parseExpression(LOWEST)
	stmt := &ast.LetStatement{Name: name, Value: val}
	stmt.Pos = p.pos(tok)
	return stmt
}

func (p *Parser) parsePrint() *ast.PrintStatement {
	tok := p.cur
	stmt := &ast.PrintStatement{}
	stmt.Pos = p.pos(tok)
	p.next() // consume 'print'
	if p.curIs(lexer.LPAREN) {
		p.next()
		if !p.curIs(lexer.RPAREN) {
			stmt.Args = append(stmt.Args, p.parseExpression(LOWEST))
			for p.peekIs(lexer.COMMA) {
				p.next()
				p.next()
				stmt.Args = append(stmt.Args, p.parseExpression(LOWEST))
			}
		}
		p.expect(lexer.RPAREN)
	} else if !p.curIs(lexer.NEWLINE) && !p.curIs(lexer.EOF) {
		stmt.Args = append(stmt.Args, p.parseExpression(LOWEST))
		for p.peekIs(lexer.COMMA) {
			p.next()
			p.next()
			stmt.Args = append(stmt.Args, p.parseExpression(LOWEST))
		}
	}
	return stmt
}

func (p *Parser) parseBreak() *ast.BreakStatement {
	tok := p.cur
	stmt := &ast.BreakStatement{}
	stmt.Pos = p.pos(tok)
	if p.peekIs(lexer.IDENT) {
		p.next()
		stmt.Label = p.cur.Literal
	}
	return stmt
}

func (p *Parser) parseContinue() *ast.ContinueStatement {
	tok := p.cur
	stmt := &ast.ContinueStatement{}
	stmt.Pos = p.pos(tok)
	if p.peekIs(lexer.IDENT) {
		p.next()
		stmt.Label = p.cur.Literal
	}
	return stmt
}

func (p *Parser) parseReturn() *ast.ReturnStatement {
	tok := p.cur
	stmt := &ast.ReturnStatement{}
	stmt.Pos = p.pos(tok)
	if !p.peekIs(lexer.NEWLINE) && !p.peekIs(lexer.EOF) && !p.peekIs(lexer.DEDENT) {
		p.next()
		stmt.Value = p.parseExpression(LOWEST)
	}
	return stmt
}

func (p *Parser) parseImport() *ast.ImportStatement {
	tok := p.cur
	stmt := &ast.ImportStatement{}
	stmt.Pos = p.pos(tok)
	if !p.expect(lexer.IDENT) {
		return stmt
	}
	stmt.Path = append(stmt.Path, p.cur.Literal)
	for p.peekIs(lexer.DOT) {
		p.next()
		if !p.expect(lexer.IDENT) {
			return stmt
		}
		stmt.Path = append(stmt.Path, p.cur.Literal)
	}
	if p.peekIs(lexer.AS) {
		p.next()
		if p.expect(lexer.IDENT) {
			stmt.Alias = p.cur.Literal
		}
	}
	return stmt
}

func (p *Parser) parseExpressionStatement() *ast.ExpressionStatement {
	tok := p.cur
	expr := p.parseExpression(LOWEST)
	if assignTokens[p.peek.Type] {
		p.next()
		op := string(p.cur.Type)
		p.next()
		val := p.parseExpression(LOWEST)
		assign := &ast.AssignmentExpression{Operator: op, Target: expr, Value: val}
		assign.Pos = p.pos(tok)
		expr = assign
	}
	stmt := &ast.ExpressionStatement{Expr: expr}
	stmt.Pos = p.pos(tok)
	return stmt
}

// parseBlock expects the next token to be COLON, consumes it plus the
// NEWLINE/INDENT that open the suite, and stops at the matching DEDENT.
func (p *Parser) parseBlock() *ast.BlockStatement {
	tok := p.cur
	block := &ast.BlockStatement{}
	block.Pos = p.pos(tok)
	if !p.expect(lexer.COLON) {
		return block
	}
	if !p.expect(lexer.NEWLINE) {
		return block
	}
	if !p.expect(lexer.INDENT) {
		return block
	}
	p.next()
	p.skipNewlines()
	for !p.curIs(lexer.DEDENT) && !p.curIs(lexer.EOF) {
		if stmt := p.parseStatement(); stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		p.next()
		p.skipNewlines()
	}
	return block
}

func (p *Parser) parseIf() *ast.IfStatement {
	tok := p.cur
	stmt := &ast.IfStatement{}
	stmt.Pos = p.pos(tok)
	p.next() // consume if/elif
	stmt.Condition = p.parseExpression(LOWEST)
	stmt.Consequence = p.parseBlock()
	if p.curIs(lexer.DEDENT) && p.peekIs(lexer.ELIF) {
		p.next()
		stmt.Alternative = p.parseIf()
	} else if p.curIs(lexer.DEDENT) && p.peekIs(lexer.ELSE) {
		p.next() // 'else' becomes current
		stmt.Alternative = p.parseBlock()
	}
	return stmt
}

func (p *Parser) parseWhile(label string) *ast.WhileStatement {
	tok := p.cur
	stmt := &ast.WhileStatement{Label: label}
	stmt.Pos = p.pos(tok)
	p.next() // consume 'while'
	stmt.Condition = p.parseExpression(LOWEST)
	stmt.Body = p.parseBlock()
	return stmt
}

func (p *Parser) parseLoop(label string) *ast.LoopStatement {
	tok := p.cur
	stmt := &ast.LoopStatement{Label: label}
	stmt.Pos = p.pos(tok)
	stmt.Body = p.parseBlock()
	return stmt
}

func (p *Parser) parseFor(label string) ast.Statement {
	tok := p.cur
	p.next() // consume 'for'
	if !p.curIs(lexer.IDENT) {
		p.errorf(p.cur, "expected identifier after 'for'")
	}
	name := &ast.Identifier{Name: p.cur.Literal}
	name.Pos = p.pos(p.cur)
	if !p.expect(lexer.IN) {
		return nil
	}
	p.next() // first token of iterable expr
	start := p.parseExpression(RANGE + 1)
	if p.peekIs(lexer.DOTDOT) || p.peekIs(lexer.DOTDOTEQ) {
		inclusive := p.peekIs(lexer.DOTDOTEQ)
		p.next()
		p.next()
		end := p.parseExpression(RANGE + 1)
		stmt := &ast.ForRangeStatement{Label: label, Var: name, Start: start, End: end, Inclusive: inclusive}
		stmt.Pos = p.pos(tok)
		stmt.Body = p.parseBlock()
		return stmt
	}
	stmt := &ast.ForInStatement{Label: label, Var: name, Iter: start}
	stmt.Pos = p.pos(tok)
	stmt.Body = p.parseBlock()
	return stmt
}

func (p *Parser) parseParams() []*ast.Param {
	var params []*ast.Param
	if !p.expect(lexer.LPAREN) {
		return params
	}
	keywordOnly := false
	if p.peekIs(lexer.RPAREN) {
		p.next()
		return params
	}
	for {
		p.next()
		param := &ast.Param{}
		if p.curIs(lexer.STARSTAR) { // "**"
			p.next()
			param.IsKwarg = true
			param.Name = &ast.Identifier{Name: p.cur.Literal}
			param.Name.Pos = p.pos(p.cur)
			params = append(params, param)
			break
		}
		if p.curIs(lexer.STAR) {
			p.next()
			if p.curIs(lexer.RPAREN) || p.curIs(lexer.COMMA) {
				keywordOnly = true
				if p.curIs(lexer.COMMA) {
					continue
				}
				break
			}
			param.IsVararg = true
			param.Name = &ast.Identifier{Name: p.cur.Literal}
			param.Name.Pos = p.pos(p.cur)
			keywordOnly = true
		} else {
			param.Keyword = keywordOnly
			param.Name = &ast.Identifier{Name: p.cur.Literal}
			param.Name.Pos = p.pos(p.cur)
			if p.peekIs(lexer.ASSIGN) {
				p.next()
				p.next()
				param.Default = p.parseExpression(LOWEST)
			}
		}
		params = append(params, param)
		if p.peekIs(lexer.COMMA) {
			p.next()
			continue
		}
		break
	}
	p.expect(lexer.RPAREN)
	return params
}

func (p *Parser) parseFunctionStatement() ast.Statement {
	tok := p.cur
	fn := &ast.FunctionLiteral{}
	fn.Pos = p.pos(tok)
	if !p.expect(lexer.IDENT) {
		return nil
	}
	fn.Name = &ast.Identifier{Name: p.cur.Literal}
	fn.Name.Pos = p.pos(p.cur)
	fn.Params = p.parseParams()
	fn.Body = p.parseBlock()
	stmt := &ast.ExpressionStatement{Expr: fn}
	stmt.Pos = fn.Pos
	return stmt
}

func (p *Parser) parseClass() ast.Statement {
	tok := p.cur
	decl := &ast.ClassDeclaration{}
	decl.Pos = p.pos(tok)
	if !p.expect(lexer.IDENT) {
		return nil
	}
	decl.Name = &ast.Identifier{Name: p.cur.Literal}
	decl.Name.Pos = p.pos(p.cur)
	if p.peekIs(lexer.LPAREN) {
		p.next()
		p.next()
		if !p.curIs(lexer.RPAREN) {
			decl.Parent = &ast.Identifier{Name: p.cur.Literal}
			decl.Parent.Pos = p.pos(p.cur)
		}
		p.expect(lexer.RPAREN)
	}
	if !p.expect(lexer.COLON) {
		return decl
	}
	if !p.expect(lexer.NEWLINE) {
		return decl
	}
	if !p.expect(lexer.INDENT) {
		return decl
	}
	p.next()
	p.skipNewlines()
	for !p.curIs(lexer.DEDENT) && !p.curIs(lexer.EOF) {
		if p.curIs(lexer.FN) {
			tok := p.cur
			fn := &ast.FunctionLiteral{}
			fn.Pos = p.pos(tok)
			if p.expect(lexer.IDENT) {
				fn.Name = &ast.Identifier{Name: p.cur.Literal}
				fn.Name.Pos = p.pos(p.cur)
			}
			fn.Params = p.parseParams()
			fn.Body = p.parseBlock()
			decl.Methods = append(decl.Methods, fn)
		} else if p.curIs(lexer.IDENT) {
			field := &ast.ClassField{Name: &ast.Identifier{Name: p.cur.Literal}}
			field.Name.Pos = p.pos(p.cur)
			if p.peekIs(lexer.ASSIGN) {
				p.next()
				p.next()
				field.Default = p.parseExpression(LOWEST)
			}
			decl.Fields = append(decl.Fields, field)
		} else {
			p.errorf(p.cur, "unexpected token %s in class body", p.cur.Type)
			p.next()
			continue
		}
		p.next()
		p.skipNewlines()
	}
	return decl
}

// ---------------------------------------------------------------- expressions

func (p *Parser) parseExpression(prec precedence) ast.Expression {
	left := p.parsePrefix()
	for !p.peekIs(lexer.NEWLINE) && prec < p.peekPrecedence() {
		switch p.peek.Type {
		case lexer.LPAREN:
			p.next()
			left = p.parseCall(left)
		case lexer.LBRACKET, lexer.QBRACKET:
			p.next()
			left = p.parseIndex(left)
		case lexer.DOT, lexer.QDOT:
			p.next()
			left = p.parseMember(left)
		case lexer.AND, lexer.OR, lexer.QQ:
			p.next()
			left = p.parseLogical(left)
		case lexer.DOTDOT, lexer.DOTDOTEQ:
			return left // ranges are only parsed specially inside `for`
		default:
			p.next()
			left = p.parseInfix(left)
		}
	}
	return left
}

func (p *Parser) peekPrecedence() precedence {
	if pr, ok := precedences[p.peek.Type]; ok {
		return pr
	}
	return LOWEST
}

func (p *Parser) curPrecedence() precedence {
	if pr, ok := precedences[p.cur.Type]; ok {
		return pr
	}
	return LOWEST
}

func (p *Parser) parsePrefix() ast.Expression {
	switch p.cur.Type {
	case lexer.IDENT:
		id := &ast.Identifier{Name: p.cur.Literal}
		id.Pos = p.pos(p.cur)
		return id
	case lexer.INT:
		return p.parseInteger()
	case lexer.FLOAT:
		return p.parseFloat()
	case lexer.STRING:
		lit := &ast.StringLiteral{Value: p.cur.Literal}
		lit.Pos = p.pos(p.cur)
		return lit
	case lexer.TRUE, lexer.FALSE:
		lit := &ast.BoolLiteral{Value: p.cur.Type == lexer.TRUE}
		lit.Pos = p.pos(p.cur)
		return lit
	case lexer.NONE:
		lit := &ast.NoneLiteral{}
		lit.Pos = p.pos(p.cur)
		return lit
	case lexer.SELF:
		e := &ast.SelfExpression{}
		e.Pos = p.pos(p.cur)
		return e
	case lexer.SUPER:
		e := &ast.SuperExpression{}
		e.Pos = p.pos(p.cur)
		return e
	case lexer.MINUS, lexer.NOT:
		return p.parsePrefixOp()
	case lexer.LPAREN:
		return p.parseGrouped()
	case lexer.LBRACKET:
		return p.parseList()
	case lexer.LBRACE:
		return p.parseTable()
	case lexer.FN:
		return p.parseFunctionLiteral()
	default:
		p.errorf(p.cur, "unexpected token %s (%q) in expression", p.cur.Type, p.cur.Literal)
		lit := &ast.NoneLiteral{}
		lit.Pos = p.pos(p.cur)
		return lit
	}
}

func (p *Parser) parseInteger() ast.Expression {
	tok := p.cur
	v, err := strconv.ParseInt(tok.Literal, 10, 32)
	if err != nil {
		p.errorf(tok, "invalid integer literal %q", tok.Literal)
	}
	lit := &ast.IntegerLiteral{Value: int32(v)}
	lit.Pos = p.pos(tok)
	return lit
}

func (p *Parser) parseFloat() ast.Expression {
	tok := p.cur
	v, err := strconv.ParseFloat(tok.Literal, 64)
	if err != nil {
		p.errorf(tok, "invalid float literal %q", tok.Literal)
	}
	lit := &ast.FloatLiteral{Value: v}
	lit.Pos = p.pos(tok)
	return lit
}

func (p *Parser) parsePrefixOp() ast.Expression {
	tok := p.cur
	op := "-"
	if tok.Type == lexer.NOT {
		op = "not"
	}
	p.next()
	right := p.parseExpression(UNARY)
	e := &ast.PrefixExpression{Operator: op, Right: right}
	e.Pos = p.pos(tok)
	return e
}

func (p *Parser) parseGrouped() ast.Expression {
	p.next() // consume '('
	expr := p.parseExpression(LOWEST)
	p.expect(lexer.RPAREN)
	return expr
}

func (p *Parser) parseList() ast.Expression {
	tok := p.cur
	lit := &ast.ListLiteral{}
	lit.Pos = p.pos(tok)
	if p.peekIs(lexer.RBRACKET) {
		p.next()
		return lit
	}
	p.next()
	lit.Elements = append(lit.Elements, p.parseExpression(LOWEST))
	for p.peekIs(lexer.COMMA) {
		p.next()
		p.next()
		lit.Elements = append(lit.Elements, p.parseExpression(LOWEST))
	}
	p.expect(lexer.RBRACKET)
	return lit
}

func (p *Parser) parseTable() ast.Expression {
	tok := p.cur
	lit := &ast.TableLiteral{}
	lit.Pos = p.pos(tok)
	if p.peekIs(lexer.RBRACE) {
		p.next()
		return lit
	}
	p.next()
	lit.Entries = append(lit.Entries, p.parseTableEntry())
	for p.peekIs(lexer.COMMA) {
		p.next()
		p.next()
		lit.Entries = append(lit.Entries, p.parseTableEntry())
	}
	p.expect(lexer.RBRACE)
	return lit
}

func (p *Parser) parseTableEntry() *ast.TableEntry {
	var key ast.Expression
	if p.curIs(lexer.STRING) {
		s := &ast.StringLiteral{Value: p.cur.Literal}
		s.Pos = p.pos(p.cur)
		key = s
	} else {
		id := &ast.Identifier{Name: p.cur.Literal}
		id.Pos = p.pos(p.cur)
		key = id
	}
	p.expect(lexer.COLON)
	p.next()
	val := p.parseExpression(LOWEST)
	return &ast.TableEntry{Key: key, Value: val}
}

func (p *Parser) parseFunctionLiteral() ast.Expression {
	tok := p.cur
	fn := &ast.FunctionLiteral{}
	fn.Pos = p.pos(tok)
	fn.Params = p.parseParams()
	fn.Body = p.parseBlock()
	return fn
}

func (p *Parser) parseInfix(left ast.Expression) ast.Expression {
	tok := p.cur
	op := string(tok.Type)
	prec := p.curPrecedence()
	if tok.Type == lexer.STARSTAR {
		prec-- // right-associative: the right side may hold another **
	}
	p.next()
	right := p.parseExpression(prec)
	e := &ast.InfixExpression{Operator: op, Left: left, Right: right}
	e.Pos = p.pos(tok)
	return e
}

func (p *Parser) parseLogical(left ast.Expression) ast.Expression {
	tok := p.cur
	op := string(tok.Type)
	if tok.Type == lexer.AND {
		op = "and"
	} else if tok.Type == lexer.OR {
		op = "or"
	} else {
		op = "??"
	}
	prec := p.curPrecedence()
	p.next()
	right := p.parseExpression(prec)
	e := &ast.LogicalExpression{Operator: op, Left: left, Right: right}
	e.Pos = p.pos(tok)
	return e
}

func (p *Parser) parseCall(callee ast.Expression) ast.Expression {
	tok := p.cur
	call := &ast.CallExpression{Callee: callee}
	call.Pos = p.pos(tok)
	if p.peekIs(lexer.RPAREN) {
		p.next()
		return call
	}
	p.next()
	call.Args = append(call.Args, p.parseCallArg())
	for p.peekIs(lexer.COMMA) {
		p.next()
		p.next()
		call.Args = append(call.Args, p.parseCallArg())
	}
	p.expect(lexer.RPAREN)
	return call
}

func (p *Parser) parseCallArg() *ast.CallArgument {
	if p.curIs(lexer.IDENT) && p.peekIs(lexer.ASSIGN) {
		name := p.cur.Literal
		p.next()
		p.next()
		return &ast.CallArgument{Name: name, Value: p.parseExpression(LOWEST)}
	}
	return &ast.CallArgument{Value: p.parseExpression(LOWEST)}
}

func (p *Parser) parseIndex(obj ast.Expression) ast.Expression {
	tok := p.cur
	optional := tok.Type == lexer.QBRACKET
	p.next()
	idx := p.parseExpression(LOWEST)
	p.expect(lexer.RBRACKET)
	e := &ast.IndexExpression{Object: obj, Index: idx, Optional: optional}
	e.Pos = p.pos(tok)
	return e
}

func (p *Parser) parseMember(obj ast.Expression) ast.Expression {
	tok := p.cur
	optional := tok.Type == lexer.QDOT
	if !p.expect(lexer.IDENT) {
		e := &ast.MemberExpression{Object: obj, Optional: optional}
		e.Pos = p.pos(tok)
		return e
	}
	e := &ast.MemberExpression{Object: obj, Property: p.cur.Literal, Optional: optional}
	e.Pos = p.pos(tok)
	return e
}
