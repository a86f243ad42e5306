package gateway

import (
	"fmt"
	"strings"
)

// tokenKind is the coarse lexical class of a token. Classification only
// needs to tell words, literals and a few punctuation marks apart.
type tokenKind int

const (
	tokWord   tokenKind = iota // keyword or bare identifier
	tokQuoted                  // "ident", [ident] or `ident`
	tokString                  // 'literal'
	tokNumber
	tokSemicolon
	tokLParen
	tokRParen
	tokEquals
	tokOther
)

type token struct {
	kind  tokenKind
	text  string
	start int // byte offset of the first character
	end   int // byte offset after the last character
}

// upper returns the token text upper-cased for keyword comparison.
func (t token) upper() string {
	return strings.ToUpper(t.text)
}

func (t token) isWord(keyword string) bool {
	return t.kind == tokWord && strings.EqualFold(t.text, keyword)
}

// lexer splits query text into tokens, dropping whitespace and comments.
//
// It understands just enough SQLite syntax to never mistake the inside of a
// string, quoted identifier or comment for structure.
type lexer struct {
	input    string
	pos      int
	comments int // number of comments skipped
}

func newLexer(input string) *lexer {
	return &lexer{input: input}
}

// tokenize returns all significant tokens. Unterminated strings, quoted
// identifiers and block comments are errors.
func tokenize(input string) ([]token, int, error) {
	l := newLexer(input)
	var toks []token
	for {
		tok, ok, err := l.next()
		if err != nil {
			return nil, l.comments, err
		}
		if !ok {
			return toks, l.comments, nil
		}
		toks = append(toks, tok)
	}
}

func (l *lexer) peek(offset int) byte {
	if l.pos+offset >= len(l.input) {
		return 0
	}
	return l.input[l.pos+offset]
}

func (l *lexer) next() (token, bool, error) {
	if err := l.skipWhitespaceAndComments(); err != nil {
		return token{}, false, err
	}
	if l.pos >= len(l.input) {
		return token{}, false, nil
	}

	start := l.pos
	ch := l.input[l.pos]

	switch {
	case ch == '\'':
		if err := l.skipQuoted('\'', '\''); err != nil {
			return token{}, false, err
		}
		return l.emit(tokString, start), true, nil
	case ch == '"':
		if err := l.skipQuoted('"', '"'); err != nil {
			return token{}, false, err
		}
		return l.emit(tokQuoted, start), true, nil
	case ch == '`':
		if err := l.skipQuoted('`', '`'); err != nil {
			return token{}, false, err
		}
		return l.emit(tokQuoted, start), true, nil
	case ch == '[':
		if err := l.skipQuoted('[', ']'); err != nil {
			return token{}, false, err
		}
		return l.emit(tokQuoted, start), true, nil
	case isWordStart(ch):
		for l.pos < len(l.input) && isWordPart(l.input[l.pos]) {
			l.pos++
		}
		return l.emit(tokWord, start), true, nil
	case isDigit(ch):
		for l.pos < len(l.input) && (isWordPart(l.input[l.pos]) || l.input[l.pos] == '.') {
			l.pos++
		}
		return l.emit(tokNumber, start), true, nil
	}

	l.pos++
	switch ch {
	case ';':
		return l.emit(tokSemicolon, start), true, nil
	case '(':
		return l.emit(tokLParen, start), true, nil
	case ')':
		return l.emit(tokRParen, start), true, nil
	case '=':
		return l.emit(tokEquals, start), true, nil
	default:
		return l.emit(tokOther, start), true, nil
	}
}

func (l *lexer) emit(kind tokenKind, start int) token {
	return token{kind: kind, text: l.input[start:l.pos], start: start, end: l.pos}
}

// skipQuoted consumes a quoted run starting at the opening quote.
// A doubled closing quote is an escaped quote.
func (l *lexer) skipQuoted(open, close byte) error {
	start := l.pos
	l.pos++ // opening quote
	for l.pos < len(l.input) {
		if l.input[l.pos] == close {
			if open == close && l.peek(1) == close {
				l.pos += 2
				continue
			}
			l.pos++
			return nil
		}
		l.pos++
	}
	return fmt.Errorf("unterminated %c at offset %d", open, start)
}

func (l *lexer) skipWhitespaceAndComments() error {
	for l.pos < len(l.input) {
		switch ch := l.input[l.pos]; {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f' || ch == '\v':
			l.pos++
		case ch == '-' && l.peek(1) == '-':
			l.comments++
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.pos++
			}
		case ch == '/' && l.peek(1) == '*':
			l.comments++
			start := l.pos
			end := strings.Index(l.input[l.pos+2:], "*/")
			if end < 0 {
				return fmt.Errorf("unterminated comment at offset %d", start)
			}
			l.pos += 2 + end + 2
		default:
			return nil
		}
	}
	return nil
}

// isWordStart accepts ASCII letters, underscore and any non-ASCII byte,
// since SQLite allows UTF-8 identifiers.
func isWordStart(ch byte) bool {
	return ch == '_' || ch == '$' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch >= 0x80
}

func isWordPart(ch byte) bool {
	return isWordStart(ch) || isDigit(ch)
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
