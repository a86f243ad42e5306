package gateway

import (
	"strconv"
	"strings"
)

// Classification is the gateway's verdict on whether a query may run.
type Classification string

const (
	ReadOnly    Classification = "read_only"
	Mutating    Classification = "mutating"
	Unparseable Classification = "unparseable"
)

// mutatingKeywords start statements that change data, schema or the
// connection.
var mutatingKeywords = map[string]bool{
	"INSERT":  true,
	"UPDATE":  true,
	"DELETE":  true,
	"DROP":    true,
	"ALTER":   true,
	"CREATE":  true,
	"REPLACE": true,
	"ATTACH":  true,
	"DETACH":  true,
	"VACUUM":  true,
	"REINDEX": true,
	"ANALYZE": true,
}

// embeddedDML are reserved words that can only mean a data change when
// they appear inside a single SELECT, e.g. in a CTE body.
var embeddedDML = map[string]bool{
	"INSERT": true,
	"UPDATE": true,
	"DELETE": true,
}

// readPragmas are the PRAGMAs that only report schema information.
// Any other PRAGMA, or any PRAGMA with an assignment, is treated as mutating.
var readPragmas = map[string]bool{
	"TABLE_INFO":       true,
	"TABLE_XINFO":      true,
	"TABLE_LIST":       true,
	"INDEX_LIST":       true,
	"INDEX_INFO":       true,
	"INDEX_XINFO":      true,
	"FOREIGN_KEY_LIST": true,
	"DATABASE_LIST":    true,
	"COLLATION_LIST":   true,
	"FUNCTION_LIST":    true,
}

// statement is a lexed query together with its verdict.
type statement struct {
	text     string
	tokens   []token
	comments int
	class    Classification
	detail   string
	pragma   bool
}

// Classify reports whether req may reach the store. Filter requests are
// ReadOnly by construction; raw text is classified by ClassifyText.
func Classify(req QueryRequest) Classification {
	switch r := req.(type) {
	case FilterRequest:
		return ReadOnly
	case RawRequest:
		class, _ := ClassifyText(r.Text)
		return class
	default:
		return Unparseable
	}
}

// ClassifyText reports whether text is a single read-only statement.
//
// The check is lexical: a keyword inside a string literal, quoted identifier
// or comment never counts. Empty text, text that fails to lex, several
// statements, and statements other than SELECT or an informational PRAGMA
// are not ReadOnly. The returned detail explains any other verdict.
func ClassifyText(text string) (Classification, string) {
	st := classify(text)
	return st.class, st.detail
}

func classify(text string) statement {
	st := statement{text: text}

	toks, comments, err := tokenize(text)
	st.comments = comments
	if err != nil {
		st.class, st.detail = Unparseable, err.Error()
		return st
	}
	st.tokens = toks
	if len(significant(toks)) == 0 {
		st.class, st.detail = Unparseable, "query is empty"
		return st
	}

	if i := trailingStatement(toks); i >= 0 {
		st.class, st.detail = Unparseable, "multiple statements are not allowed"
		return st
	}

	first := toks[0]
	switch {
	case first.isWord("SELECT"):
		st.class = ReadOnly
		if word, ok := findEmbeddedDML(toks); ok {
			st.class, st.detail = Mutating, word+" statements are not allowed; only SELECT is permitted"
		}
	case first.kind == tokWord && mutatingKeywords[first.upper()]:
		st.class = Mutating
		st.detail = first.upper() + " statements are not allowed; only SELECT is permitted"
	case first.isWord("PRAGMA"):
		st.pragma = true
		if name, ok := pragmaName(toks); ok && readPragmas[name] {
			st.class = ReadOnly
		} else {
			st.class, st.detail = Mutating, "only informational PRAGMAs are allowed"
		}
	default:
		st.class = Unparseable
		st.detail = "unsupported statement " + strconv.Quote(first.text) + "; only SELECT is permitted"
	}
	return st
}

// findEmbeddedDML returns the first bare INSERT, UPDATE or DELETE word.
func findEmbeddedDML(toks []token) (string, bool) {
	for _, tok := range toks {
		if tok.kind == tokWord && embeddedDML[tok.upper()] {
			return tok.upper(), true
		}
	}
	return "", false
}

// significant drops trailing semicolons.
func significant(toks []token) []token {
	n := len(toks)
	for n > 0 && toks[n-1].kind == tokSemicolon {
		n--
	}
	return toks[:n]
}

// trailingStatement returns the index of the first token after a semicolon
// that is not itself a semicolon, or -1 when there is a single statement.
func trailingStatement(toks []token) int {
	seenSemi := false
	for i, tok := range toks {
		if tok.kind == tokSemicolon {
			seenSemi = true
			continue
		}
		if seenSemi {
			return i
		}
	}
	return -1
}

// pragmaName extracts the upper-cased pragma name from "PRAGMA [schema.]name ..."
// and reports false when the pragma assigns a value.
func pragmaName(toks []token) (string, bool) {
	for _, tok := range toks {
		if tok.kind == tokEquals {
			return "", false
		}
	}
	if len(toks) < 2 || toks[1].kind != tokWord {
		return "", false
	}
	name := toks[1].upper()
	if len(toks) >= 4 && toks[2].text == "." && toks[3].kind == tokWord {
		name = toks[3].upper()
	}
	return name, true
}

// hasTopLevel reports whether keyword appears outside parentheses.
func hasTopLevel(toks []token, keyword string) bool {
	depth := 0
	for _, tok := range toks {
		switch tok.kind {
		case tokLParen:
			depth++
		case tokRParen:
			if depth > 0 {
				depth--
			}
		case tokWord:
			if depth == 0 && tok.isWord(keyword) {
				return true
			}
		}
	}
	return false
}

func hasWord(toks []token, keyword string) bool {
	for _, tok := range toks {
		if tok.isWord(keyword) {
			return true
		}
	}
	return false
}

// enforceLimit appends "LIMIT n" to a read-only SELECT that has no
// top-level LIMIT. Trailing semicolons and comments are cut first.
// Text that already limits itself is returned unchanged; the store's row
// cap still applies to it.
func enforceLimit(st statement, n int) string {
	if st.class != ReadOnly || st.pragma || n <= 0 {
		return st.text
	}
	toks := significant(st.tokens)
	if hasTopLevel(toks, "LIMIT") {
		return st.text
	}
	end := toks[len(toks)-1].end
	return strings.TrimRight(st.text[:end], " \t\r\n") + " LIMIT " + strconv.Itoa(n)
}
