package syntax

import (
	"fmt"
	"strconv"
	"strings"

	"minicc/pkg/ast"
	"minicc/pkg/ops"
	"minicc/pkg/types"
)

// Parser consumes the flat token slice produced by the Lexer and builds an AST.
//
// Grammar:
//
//	program     = (funcDecl | declStmt)* EOF
//	funcDecl    = type IDENTIFIER "(" params ")" (block | ";")
//	params      = "void" | [ type IDENTIFIER ("," type IDENTIFIER)* ]
//	declStmt    = type declarator ("," declarator)* ";"
//	declarator  = IDENTIFIER ["[" ["-"] [INTEGER] "]"] ["=" (initList | expression)]
//	statement   = block | if | while | for | return | break | continue
//	            | declStmt | simpleStmt ";" | ";"
//	simpleStmt  = lvalue assignOp expression | lvalue ("++" | "--") | expression
//	expression  = logical_or
//	logical_or  = logical_and ("||" logical_and)*
//	logical_and = bitwise_or ("&&" bitwise_or)*
//	bitwise_or  = bitwise_xor ("|" bitwise_xor)*
//	bitwise_xor = bitwise_and ("^" bitwise_and)*
//	bitwise_and = equality ("&" equality)*
//	equality    = relational (("==" | "!=") relational)*
//	relational  = shift (("<" | ">" | "<=" | ">=") shift)*
//	shift       = additive (("<<" | ">>") additive)*
//	additive    = multiplicative (("+" | "-") multiplicative)*
//	multiplicative = unary (("*" | "/" | "%") unary)*
//	unary       = ("-" | "+" | "!" | "~") unary | postfix
//	postfix     = primary ["[" expression "]" | "(" args ")"]
//	primary     = INTEGER | FLOAT | IDENTIFIER | "(" expression ")"
type Parser struct {
	tokens      []Token
	pos         int
	sourceLines []string
}

func NewParser(tokens []Token, rawSource string) *Parser {
	return &Parser{tokens: tokens, sourceLines: strings.Split(rawSource, "\n")}
}

// fmtError wraps an error message with the source line where the token appears.
func (p *Parser) fmtError(tok Token, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	lineIdx := tok.Line - 1

	snippet := "<source unavailable>"
	if lineIdx >= 0 && lineIdx < len(p.sourceLines) {
		snippet = strings.TrimSpace(p.sourceLines[lineIdx])
	}

	return fmt.Errorf("line %d: %s\n  |> %s", tok.Line, msg, snippet)
}

// peek returns the current token without consuming it.
func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: EOF}
	}
	return p.tokens[p.pos]
}

// peekAt returns the token at the given offset from the current position.
func (p *Parser) peekAt(offset int) Token {
	if p.pos+offset >= len(p.tokens) {
		return Token{Type: EOF}
	}
	return p.tokens[p.pos+offset]
}

// advance consumes and returns the current token.
func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// expect consumes the current token if it matches tt, otherwise returns an error.
func (p *Parser) expect(tt TokenType) (Token, error) {
	tok := p.advance()
	if tok.Type != tt {
		return tok, p.fmtError(tok, "expected %s, got %s (%q)", tt, tok.Type, tok.Lexeme)
	}
	return tok, nil
}

func isTypeKeyword(tt TokenType) bool {
	return tt == INT || tt == CHAR || tt == VOID || tt == DOUBLE
}

var binaryOps = map[TokenType]ops.Op{
	PLUS:       ops.Add,
	MINUS:      ops.Sub,
	STAR:       ops.Mul,
	SLASH:      ops.Div,
	PERCENT:    ops.Mod,
	AND:        ops.BitAnd,
	PIPE:       ops.BitOr,
	CARET:      ops.BitXor,
	SHL_OP:     ops.Shl,
	SHR_OP:     ops.Shr,
	EQUALS:     ops.Eq,
	NOT_EQ:     ops.Ne,
	LESS:       ops.Lt,
	LESS_EQ:    ops.Le,
	GREATER:    ops.Gt,
	GREATER_EQ: ops.Ge,
}

var compoundOps = map[TokenType]ops.Op{
	PLUS_ASSIGN:    ops.Add,
	MINUS_ASSIGN:   ops.Sub,
	STAR_ASSIGN:    ops.Mul,
	SLASH_ASSIGN:   ops.Div,
	PERCENT_ASSIGN: ops.Mod,
	AND_ASSIGN:     ops.BitAnd,
	OR_ASSIGN:      ops.BitOr,
	XOR_ASSIGN:     ops.BitXor,
	SHL_ASSIGN:     ops.Shl,
	SHR_ASSIGN:     ops.Shr,
}

// parseBinaryLevel parses one left-associative precedence level.
func (p *Parser) parseBinaryLevel(next func() (ast.Expr, error), tts ...TokenType) (ast.Expr, error) {
	expr, err := next()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		matched := false
		for _, tt := range tts {
			if tok.Type == tt {
				matched = true
				break
			}
		}
		if !matched {
			return expr, nil
		}
		p.advance()
		right, err := next()
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case AND_LOGICAL:
			expr = &ast.LogicalExpr{Op: ops.LogAnd, Left: expr, Right: right, Line: tok.Line}
		case OR_LOGICAL:
			expr = &ast.LogicalExpr{Op: ops.LogOr, Left: expr, Right: right, Line: tok.Line}
		default:
			expr = &ast.BinaryExpr{Op: binaryOps[tok.Type], Left: expr, Right: right, Line: tok.Line}
		}
	}
}

// parseExpression is the entry point for expression parsing.
func (p *Parser) parseExpression() (ast.Expr, error) {
	return p.parseLogicalOr()
}

func (p *Parser) parseLogicalOr() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseLogicalAnd, OR_LOGICAL)
}

func (p *Parser) parseLogicalAnd() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseBitwiseOr, AND_LOGICAL)
}

func (p *Parser) parseBitwiseOr() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseBitwiseXor, PIPE)
}

func (p *Parser) parseBitwiseXor() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseBitwiseAnd, CARET)
}

func (p *Parser) parseBitwiseAnd() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseEquality, AND)
}

func (p *Parser) parseEquality() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseRelational, EQUALS, NOT_EQ)
}

func (p *Parser) parseRelational() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseShift, LESS, GREATER, LESS_EQ, GREATER_EQ)
}

func (p *Parser) parseShift() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseAdditive, SHL_OP, SHR_OP)
}

func (p *Parser) parseAdditive() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseMultiplicative, PLUS, MINUS)
}

func (p *Parser) parseMultiplicative() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseUnary, STAR, SLASH, PERCENT)
}

// parseUnary handles prefix -, +, ! and ~.
func (p *Parser) parseUnary() (ast.Expr, error) {
	tok := p.peek()
	var op ops.Op
	switch tok.Type {
	case MINUS:
		op = ops.Neg
	case NOT:
		op = ops.Not
	case TILDE:
		op = ops.BitNot
	case PLUS:
		p.advance()
		return p.parseUnary()
	case PLUS_PLUS, MINUS_MINUS:
		return nil, p.fmtError(tok, "%s is only supported as a statement suffix", tok.Lexeme)
	default:
		return p.parsePostfix()
	}
	p.advance()
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &ast.UnaryExpr{Op: op, Operand: operand, Line: tok.Line}, nil
}

// parsePostfix handles array indexing and function calls.
func (p *Parser) parsePostfix() (ast.Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	ref, isRef := expr.(*ast.VarRef)
	switch p.peek().Type {
	case LBRACKET:
		if !isRef {
			return nil, p.fmtError(p.peek(), "only named arrays can be indexed")
		}
		p.advance()
		index, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RBRACKET); err != nil {
			return nil, err
		}
		if p.peek().Type == LBRACKET {
			return nil, p.fmtError(p.peek(), "multi-dimensional arrays are not supported")
		}
		return &ast.IndexExpr{Name: ref.Name, Index: index, Line: ref.Line}, nil
	case LPAREN:
		if !isRef {
			return nil, p.fmtError(p.peek(), "expected function name before '('")
		}
		p.advance()
		args, err := p.parseCallArgs()
		if err != nil {
			return nil, err
		}
		return &ast.CallExpr{Name: ref.Name, Args: args, Line: ref.Line}, nil
	}
	return expr, nil
}

func (p *Parser) parseCallArgs() ([]ast.Expr, error) {
	var args []ast.Expr
	if p.peek().Type != RPAREN {
		for {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)

			if p.peek().Type != COMMA {
				break
			}
			p.advance()
		}
	}

	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return args, nil
}

// parseIntLexeme accepts any literal that fits in 32 bits, signed or not,
// and reinterprets it as a two's-complement int32.
func (p *Parser) parseIntLexeme(tok Token) (int32, error) {
	val, err := strconv.ParseInt(tok.Lexeme, 0, 64)
	if err != nil || val > 0xFFFFFFFF {
		return 0, p.fmtError(tok, "integer %q out of 32-bit range", tok.Lexeme)
	}
	return int32(uint32(val)), nil
}

// parsePrimary handles literals, variables, and parenthesised expressions.
func (p *Parser) parsePrimary() (ast.Expr, error) {
	tok := p.peek()
	switch tok.Type {
	case INTEGER:
		p.advance()
		v, err := p.parseIntLexeme(tok)
		if err != nil {
			return nil, err
		}
		return &ast.IntLit{Value: v, Line: tok.Line}, nil

	case FLOAT:
		p.advance()
		return &ast.FloatLit{Text: tok.Lexeme, Line: tok.Line}, nil

	case IDENTIFIER:
		p.advance()
		return &ast.VarRef{Name: tok.Lexeme, Line: tok.Line}, nil

	case LPAREN:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return expr, nil

	default:
		return nil, p.fmtError(tok, "expected expression, got %s (%q)", tok.Type, tok.Lexeme)
	}
}

func (p *Parser) parseInitializerList() ([]ast.Expr, error) {
	if _, err := p.expect(LBRACE); err != nil {
		return nil, err
	}

	var elements []ast.Expr
	for p.peek().Type != RBRACE {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		elements = append(elements, expr)

		if p.peek().Type != COMMA {
			break
		}
		p.advance()
	}

	if _, err := p.expect(RBRACE); err != nil {
		return nil, err
	}
	return elements, nil
}

func (p *Parser) parseType() (types.Type, Token, error) {
	tok := p.advance()
	if !isTypeKeyword(tok.Type) {
		return types.Undefined, tok, p.fmtError(tok, "expected type (int, char, void or double), got %q", tok.Lexeme)
	}
	return types.Parse(tok.Lexeme), tok, nil
}

// parseDeclarator parses one name of a declaration with its optional array
// size and initializer. Size validation is left to the checker.
func (p *Parser) parseDeclarator() (ast.Declarator, error) {
	nameTok, err := p.expect(IDENTIFIER)
	if err != nil {
		return ast.Declarator{}, err
	}
	d := ast.Declarator{Name: nameTok.Lexeme, Line: nameTok.Line}

	if p.peek().Type == LBRACKET {
		p.advance()
		d.IsArray = true
		if p.peek().Type != RBRACKET {
			negative := false
			if p.peek().Type == MINUS {
				p.advance()
				negative = true
			}
			sizeTok, err := p.expect(INTEGER)
			if err != nil {
				return d, err
			}
			size, err := p.parseIntLexeme(sizeTok)
			if err != nil {
				return d, err
			}
			if negative {
				size = -size
			}
			d.Size = int(size)
			d.SizeGiven = true
		}
		if _, err := p.expect(RBRACKET); err != nil {
			return d, err
		}
		if p.peek().Type == LBRACKET {
			return d, p.fmtError(p.peek(), "multi-dimensional arrays are not supported")
		}
	}

	if p.peek().Type == ASSIGN {
		p.advance()
		if p.peek().Type == LBRACE {
			list, err := p.parseInitializerList()
			if err != nil {
				return d, err
			}
			d.InitList = list
			d.HasList = true
		} else {
			init, err := p.parseExpression()
			if err != nil {
				return d, err
			}
			d.Init = init
		}
	}
	return d, nil
}

// parseDeclStmt parses  type a, b[3] = {...}, c = expr ;
func (p *Parser) parseDeclStmt() (ast.Stmt, error) {
	typ, typeTok, err := p.parseType()
	if err != nil {
		return nil, err
	}
	decl := &ast.DeclStmt{Type: typ, Line: typeTok.Line}
	for {
		d, err := p.parseDeclarator()
		if err != nil {
			return nil, err
		}
		decl.Vars = append(decl.Vars, d)
		if p.peek().Type != COMMA {
			break
		}
		p.advance()
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return decl, nil
}

// parseSimpleStmt parses an assignment, an increment or an expression
// statement, without the trailing semicolon.
func (p *Parser) parseSimpleStmt() (ast.Stmt, error) {
	start := p.peek()
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	tok := p.peek()
	isAssign := tok.Type == ASSIGN || tok.Type == PLUS_PLUS || tok.Type == MINUS_MINUS
	op, isCompound := compoundOps[tok.Type]
	if !isAssign && !isCompound {
		return &ast.ExprStmt{X: expr, Line: start.Line}, nil
	}

	switch expr.(type) {
	case *ast.VarRef, *ast.IndexExpr:
	default:
		return nil, p.fmtError(tok, "left side of %s is not assignable", tok.Lexeme)
	}
	p.advance()

	switch tok.Type {
	case ASSIGN:
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return &ast.AssignStmt{Target: expr, Value: value, Line: tok.Line}, nil
	case PLUS_PLUS, MINUS_MINUS:
		op = ops.Add
		if tok.Type == MINUS_MINUS {
			op = ops.Sub
		}
		one := &ast.IntLit{Value: 1, Line: tok.Line}
		value := &ast.BinaryExpr{Op: op, Left: expr, Right: one, Line: tok.Line}
		return &ast.AssignStmt{Target: expr, Value: value, Line: tok.Line}, nil
	}

	rhs, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	value := &ast.BinaryExpr{Op: op, Left: expr, Right: rhs, Line: tok.Line}
	return &ast.AssignStmt{Target: expr, Value: value, Line: tok.Line}, nil
}

// parseReturn parses  return [expr] ;
// The leading RETURN token has already been consumed by parseStatement.
func (p *Parser) parseReturn(line int) (ast.Stmt, error) {
	if p.peek().Type == SEMICOLON {
		p.advance()
		return &ast.ReturnStmt{Line: line}, nil
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return &ast.ReturnStmt{Value: expr, Line: line}, nil
}

// parseBlock parses { stmt1; stmt2; ... }
// The leading LBRACE token has already been consumed.
func (p *Parser) parseBlock(line int) (*ast.BlockStmt, error) {
	block := &ast.BlockStmt{Line: line}
	for p.peek().Type != RBRACE && p.peek().Type != EOF {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
	}
	if _, err := p.expect(RBRACE); err != nil {
		return nil, err
	}
	return block, nil
}

// parseCondition parses ( expr ).
func (p *Parser) parseCondition() (ast.Expr, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return cond, nil
}

// parseBody parses a loop or branch body. A lone ";" yields an empty block.
func (p *Parser) parseBody() (ast.Stmt, error) {
	if p.peek().Type == SEMICOLON {
		tok := p.advance()
		return &ast.BlockStmt{Line: tok.Line}, nil
	}
	return p.parseStatement()
}

// parseIf parses if ( cond ) body [ else elseBody ]
func (p *Parser) parseIf(line int) (ast.Stmt, error) {
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBody()
	if err != nil {
		return nil, err
	}

	stmt := &ast.IfStmt{Cond: cond, Then: then, Line: line}
	if p.peek().Type == ELSE {
		p.advance()
		stmt.Else, err = p.parseBody()
		if err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

// parseWhile parses while ( cond ) body
func (p *Parser) parseWhile(line int) (ast.Stmt, error) {
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	return &ast.WhileStmt{Cond: cond, Body: body, Line: line}, nil
}

// parseForStmt parses for ( init; cond; post ) body
func (p *Parser) parseForStmt(line int) (ast.Stmt, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}

	stmt := &ast.ForStmt{Line: line}
	var err error
	switch {
	case p.peek().Type == SEMICOLON:
		p.advance()
	case isTypeKeyword(p.peek().Type):
		if stmt.Init, err = p.parseDeclStmt(); err != nil {
			return nil, err
		}
	default:
		if stmt.Init, err = p.parseSimpleStmt(); err != nil {
			return nil, err
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
	}

	if p.peek().Type != SEMICOLON {
		if stmt.Cond, err = p.parseExpression(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}

	if p.peek().Type != RPAREN {
		if stmt.Post, err = p.parseSimpleStmt(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}

	if stmt.Body, err = p.parseBody(); err != nil {
		return nil, err
	}
	return stmt, nil
}

// parseStatement dispatches to the correct sub-parser based on the leading token.
func (p *Parser) parseStatement() (ast.Stmt, error) {
	tok := p.peek()
	switch tok.Type {
	case LBRACE:
		p.advance()
		return p.parseBlock(tok.Line)

	case IF:
		p.advance()
		return p.parseIf(tok.Line)

	case WHILE:
		p.advance()
		return p.parseWhile(tok.Line)

	case FOR:
		p.advance()
		return p.parseForStmt(tok.Line)

	case BREAK, CONTINUE:
		p.advance()
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		if tok.Type == BREAK {
			return &ast.BreakStmt{Line: tok.Line}, nil
		}
		return &ast.ContinueStmt{Line: tok.Line}, nil

	case RETURN:
		p.advance()
		return p.parseReturn(tok.Line)

	case INT, CHAR, VOID, DOUBLE:
		return p.parseDeclStmt()

	case SEMICOLON:
		p.advance()
		return nil, nil

	case IDENTIFIER, LPAREN, MINUS, PLUS, NOT, TILDE, INTEGER, FLOAT:
		stmt, err := p.parseSimpleStmt()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return stmt, nil

	default:
		p.advance()
		return nil, p.fmtError(tok, "unexpected token %s (%q)", tok.Type, tok.Lexeme)
	}
}

// parseFunctionDecl parses  type name ( params ) { ... }  or a prototype
// ending in ";".
func (p *Parser) parseFunctionDecl() (ast.Stmt, error) {
	retType, typeTok, err := p.parseType()
	if err != nil {
		return nil, err
	}
	nameTok, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}

	fn := &ast.FuncDecl{Name: nameTok.Lexeme, ReturnType: retType, Line: typeTok.Line}

	if p.peek().Type == VOID && p.peekAt(1).Type == RPAREN {
		p.advance()
	} else if p.peek().Type != RPAREN {
		for {
			ptype, _, err := p.parseType()
			if err != nil {
				return nil, err
			}
			paramName, err := p.expect(IDENTIFIER)
			if err != nil {
				return nil, err
			}
			fn.Params = append(fn.Params, ast.Param{Name: paramName.Lexeme, Type: ptype, Line: paramName.Line})

			if p.peek().Type != COMMA {
				break
			}
			p.advance()
		}
	}

	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}

	if p.peek().Type == SEMICOLON {
		p.advance()
		return fn, nil
	}

	brace, err := p.expect(LBRACE)
	if err != nil {
		return nil, err
	}
	fn.Body, err = p.parseBlock(brace.Line)
	if err != nil {
		return nil, err
	}
	return fn, nil
}

// Parse builds a Program. Only function and variable declarations are
// allowed at the top level.
func Parse(tokens []Token, rawSource string) (*ast.Program, error) {
	p := NewParser(tokens, rawSource)
	prog := &ast.Program{}
	for p.peek().Type != EOF {
		tok := p.peek()
		if !isTypeKeyword(tok.Type) {
			return nil, p.fmtError(tok, "executable statement %q found outside of function body", tok.Lexeme)
		}

		var item ast.Stmt
		var err error
		if p.peekAt(1).Type == IDENTIFIER && p.peekAt(2).Type == LPAREN {
			item, err = p.parseFunctionDecl()
		} else {
			item, err = p.parseDeclStmt()
		}
		if err != nil {
			return nil, err
		}
		prog.Items = append(prog.Items, item)
	}
	return prog, nil
}
