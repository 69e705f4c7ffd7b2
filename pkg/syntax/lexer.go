package syntax

import (
	"fmt"
	"unicode"
)

// keywords maps source text to its keyword TokenType.
var keywords = map[string]TokenType{
	"int":      INT,
	"char":     CHAR,
	"void":     VOID,
	"double":   DOUBLE,
	"if":       IF,
	"else":     ELSE,
	"while":    WHILE,
	"for":      FOR,
	"return":   RETURN,
	"break":    BREAK,
	"continue": CONTINUE,
}

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	src  []rune
	pos  int // index of the next rune to consume
	line int // current 1-based source line
}

func newLexer(src string) *Lexer {
	return &Lexer{src: []rune(src), pos: 0, line: 1}
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peek2() rune {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

// advance consumes one rune and returns it.
func (l *Lexer) advance() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
	}
	return r
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.src) && unicode.IsSpace(l.peek()) {
		l.advance()
	}
}

// skipLineComment discards everything from the current position to end-of-line.
// The opening "//" must already have been consumed.
func (l *Lexer) skipLineComment() {
	for l.pos < len(l.src) && l.peek() != '\n' {
		l.advance()
	}
}

// skipBlockComment discards everything up to and including the closing "*/".
// The opening "/*" must already have been consumed.
func (l *Lexer) skipBlockComment() error {
	startLine := l.line
	for l.pos < len(l.src) {
		if l.peek() == '*' && l.peek2() == '/' {
			l.advance()
			l.advance()
			return nil
		}
		l.advance()
	}
	return fmt.Errorf("unterminated block comment (opened on line %d)", startLine)
}

// scanIdent collects a full identifier or keyword token.
func (l *Lexer) scanIdent() Token {
	line := l.line
	start := l.pos
	for l.pos < len(l.src) {
		r := l.peek()
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			break
		}
		l.advance()
	}
	lexeme := string(l.src[start:l.pos])
	tt := IDENTIFIER
	if kw, ok := keywords[lexeme]; ok {
		tt = kw
	}
	return Token{Type: tt, Lexeme: lexeme, Line: line}
}

func isHexDigit(r rune) bool {
	return unicode.IsDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// scanNumber collects a decimal or hex integer literal, or a decimal
// floating-point literal with a fractional part and optional exponent.
func (l *Lexer) scanNumber() (Token, error) {
	line := l.line
	start := l.pos

	if l.peek() == '0' && (l.peek2() == 'x' || l.peek2() == 'X') {
		l.advance()
		l.advance()
		digits := l.pos
		for l.pos < len(l.src) && isHexDigit(l.peek()) {
			l.advance()
		}
		if l.pos == digits {
			return Token{}, fmt.Errorf("malformed hex literal on line %d", line)
		}
		return Token{Type: INTEGER, Lexeme: string(l.src[start:l.pos]), Line: line}, nil
	}

	for l.pos < len(l.src) && unicode.IsDigit(l.peek()) {
		l.advance()
	}

	isFloat := false
	if l.peek() == '.' && unicode.IsDigit(l.peek2()) {
		isFloat = true
		l.advance()
		for l.pos < len(l.src) && unicode.IsDigit(l.peek()) {
			l.advance()
		}
	}
	if l.peek() == 'e' || l.peek() == 'E' {
		isFloat = true
		l.advance()
		if l.peek() == '+' || l.peek() == '-' {
			l.advance()
		}
		if !unicode.IsDigit(l.peek()) {
			return Token{}, fmt.Errorf("malformed exponent on line %d", line)
		}
		for l.pos < len(l.src) && unicode.IsDigit(l.peek()) {
			l.advance()
		}
	}

	if unicode.IsLetter(l.peek()) || l.peek() == '_' {
		return Token{}, fmt.Errorf("invalid suffix %q on numeric literal on line %d", l.peek(), line)
	}

	tt := INTEGER
	if isFloat {
		tt = FLOAT
	}
	return Token{Type: tt, Lexeme: string(l.src[start:l.pos]), Line: line}, nil
}

// scanChar collects a character literal 'c'.
func (l *Lexer) scanChar() (Token, error) {
	line := l.line
	l.advance() // consume opening '

	r := l.peek()
	var val rune

	if r == '\'' {
		return Token{}, fmt.Errorf("empty character literal on line %d", line)
	}

	if r == '\\' {
		l.advance()
		next := l.peek()
		switch next {
		case 'n':
			val = '\n'
		case 'r':
			val = '\r'
		case 't':
			val = '\t'
		case '0':
			val = 0
		case '\\':
			val = '\\'
		case '\'':
			val = '\''
		case '"':
			val = '"'
		default:
			return Token{}, fmt.Errorf("unknown escape sequence \\%c on line %d", next, line)
		}
		l.advance()
	} else {
		val = r
		l.advance()
	}

	if l.peek() != '\'' {
		return Token{}, fmt.Errorf("unterminated character literal on line %d", line)
	}
	l.advance()

	// Character literals are emitted as INTEGER tokens with their code point.
	return Token{Type: INTEGER, Lexeme: fmt.Sprintf("%d", val), Line: line}, nil
}

// twoChar returns withEq when the next rune is '=', otherwise plain.
func (l *Lexer) twoChar(plain, withEq TokenType, line int, lexeme string) Token {
	if l.peek() == '=' {
		l.advance()
		return Token{withEq, lexeme + "=", line}
	}
	return Token{plain, lexeme, line}
}

// nextToken skips whitespace/comments and returns the next Token.
func (l *Lexer) nextToken() (Token, error) {
	for {
		l.skipWhitespace()
		if l.pos >= len(l.src) {
			return Token{Type: EOF, Lexeme: "", Line: l.line}, nil
		}
		if l.peek() == '/' && l.peek2() == '/' {
			l.advance()
			l.advance()
			l.skipLineComment()
			continue
		}
		if l.peek() == '/' && l.peek2() == '*' {
			l.advance()
			l.advance()
			if err := l.skipBlockComment(); err != nil {
				return Token{}, err
			}
			continue
		}
		break
	}

	ch := l.peek()
	line := l.line

	if unicode.IsLetter(ch) || ch == '_' {
		return l.scanIdent(), nil
	}
	if unicode.IsDigit(ch) {
		return l.scanNumber()
	}
	if ch == '\'' {
		return l.scanChar()
	}

	l.advance()
	switch ch {
	case '{':
		return Token{LBRACE, "{", line}, nil
	case '}':
		return Token{RBRACE, "}", line}, nil
	case '(':
		return Token{LPAREN, "(", line}, nil
	case ')':
		return Token{RPAREN, ")", line}, nil
	case '[':
		return Token{LBRACKET, "[", line}, nil
	case ']':
		return Token{RBRACKET, "]", line}, nil
	case ';':
		return Token{SEMICOLON, ";", line}, nil
	case ',':
		return Token{COMMA, ",", line}, nil

	case '+':
		if l.peek() == '+' {
			l.advance()
			return Token{PLUS_PLUS, "++", line}, nil
		}
		return l.twoChar(PLUS, PLUS_ASSIGN, line, "+"), nil
	case '-':
		if l.peek() == '-' {
			l.advance()
			return Token{MINUS_MINUS, "--", line}, nil
		}
		return l.twoChar(MINUS, MINUS_ASSIGN, line, "-"), nil
	case '*':
		return l.twoChar(STAR, STAR_ASSIGN, line, "*"), nil
	case '/':
		return l.twoChar(SLASH, SLASH_ASSIGN, line, "/"), nil
	case '%':
		return l.twoChar(PERCENT, PERCENT_ASSIGN, line, "%"), nil
	case '^':
		return l.twoChar(CARET, XOR_ASSIGN, line, "^"), nil
	case '~':
		return Token{TILDE, "~", line}, nil
	case '&':
		if l.peek() == '&' {
			l.advance()
			return Token{AND_LOGICAL, "&&", line}, nil
		}
		return l.twoChar(AND, AND_ASSIGN, line, "&"), nil
	case '|':
		if l.peek() == '|' {
			l.advance()
			return Token{OR_LOGICAL, "||", line}, nil
		}
		return l.twoChar(PIPE, OR_ASSIGN, line, "|"), nil
	case '!':
		return l.twoChar(NOT, NOT_EQ, line, "!"), nil
	case '=':
		return l.twoChar(ASSIGN, EQUALS, line, "="), nil
	case '<':
		if l.peek() == '<' {
			l.advance()
			return l.twoChar(SHL_OP, SHL_ASSIGN, line, "<<"), nil
		}
		return l.twoChar(LESS, LESS_EQ, line, "<"), nil
	case '>':
		if l.peek() == '>' {
			l.advance()
			return l.twoChar(SHR_OP, SHR_ASSIGN, line, ">>"), nil
		}
		return l.twoChar(GREATER, GREATER_EQ, line, ">"), nil
	default:
		return Token{}, fmt.Errorf("unexpected character %q on line %d", ch, line)
	}
}

// Lex tokenises src and returns all tokens including the final EOF token.
// It returns a non-nil error on the first illegal character or unterminated comment.
func Lex(src string) ([]Token, error) {
	l := newLexer(src)
	var tokens []Token
	for {
		tok, err := l.nextToken()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}
