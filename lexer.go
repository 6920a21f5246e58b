package resultset

import (
	"fmt"
	"strings"
)

// location of the token in source code
type location struct {
	line uint
	col  uint
}

// for storing SQL reserved keywords
type keyword string

const (
	selectKeyword           keyword = "select"
	fromKeyword             keyword = "from"
	asKeyword               keyword = "as"
	tableKeyword            keyword = "table"
	createKeyword           keyword = "create"
	dropKeyword             keyword = "drop"
	insertKeyword           keyword = "insert"
	intoKeyword             keyword = "into"
	valuesKeyword           keyword = "values"
	nullKeyword             keyword = "null"
	notKeyword              keyword = "not"
	sparseKeyword           keyword = "sparse"
	collateKeyword          keyword = "collate"
	defaultKeyword          keyword = "default"
	castKeyword             keyword = "cast"
	columnSetKeyword        keyword = "column_set"
	forKeyword              keyword = "for"
	allSparseColumnsKeyword keyword = "all_sparse_columns"
)

var keywords = []keyword{
	selectKeyword,
	fromKeyword,
	asKeyword,
	tableKeyword,
	createKeyword,
	dropKeyword,
	insertKeyword,
	intoKeyword,
	valuesKeyword,
	nullKeyword,
	notKeyword,
	sparseKeyword,
	collateKeyword,
	defaultKeyword,
	castKeyword,
	columnSetKeyword,
	forKeyword,
	allSparseColumnsKeyword,
}

// for storing SQL syntax
type symbol string

const (
	semicolonSymbol  symbol = ";"
	asteriskSymbol   symbol = "*"
	commaSymbol      symbol = ","
	leftParenSymbol  symbol = "("
	rightParenSymbol symbol = ")"
	minusSymbol      symbol = "-"
)

var symbols = []symbol{
	semicolonSymbol,
	asteriskSymbol,
	commaSymbol,
	leftParenSymbol,
	rightParenSymbol,
	minusSymbol,
}

type tokenKind uint

const (
	keywordKind tokenKind = iota
	symbolKind
	identifierKind
	stringKind
	// N'...' literals
	nstringKind
	numericKind
	// 0x... literals
	hexKind
	nullKind
)

type token struct {
	value string
	kind  tokenKind
	loc   location
}

func (t *token) equals(other *token) bool {
	return t.value == other.value && t.kind == other.kind
}

// cursor indicates the current position of the lexer
type cursor struct {
	pointer uint
	loc     location
}

func (c cursor) advance(n uint) cursor {
	c.pointer += n
	c.loc.col += n
	return c
}

func isIdentifierStart(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '_' || c == '@' || c == '#'
}

func isIdentifierPart(c byte) bool {
	return isIdentifierStart(c) || (c >= '0' && c <= '9') || c == '$'
}

// longestMatch iterates through a source string starting at the given
// cursor to find the longest matching substring among the provided
// options
func longestMatch(source string, ic cursor, options []string) string {
	var value []byte
	var skipList []int
	var match string

	cur := ic

	for cur.pointer < uint(len(source)) {

		value = append(value, strings.ToLower(string(source[cur.pointer]))...)
		cur.pointer++

	match:
		for i, option := range options {
			for _, skip := range skipList {
				if i == skip {
					continue match
				}
			}

			if option == string(value) {
				skipList = append(skipList, i)
				if len(option) > len(match) {
					match = option
				}

				continue
			}

			tooLong := len(value) > len(option)
			if tooLong || string(value) != option[:len(value)] {
				skipList = append(skipList, i)
			}
		}

		if len(skipList) == len(options) {
			break
		}
	}

	return match
}

func lexWhitespace(source string, ic cursor) (*token, cursor, bool) {
	switch source[ic.pointer] {
	case '\n':
		cur := ic
		cur.pointer++
		cur.loc.line++
		cur.loc.col = 0
		return nil, cur, true
	case '\t', '\r', ' ':
		return nil, ic.advance(1), true
	}
	return nil, ic, false
}

// lexComment skips a -- comment up to the end of the line.
func lexComment(source string, ic cursor) (*token, cursor, bool) {
	if !strings.HasPrefix(source[ic.pointer:], "--") {
		return nil, ic, false
	}

	cur := ic
	for cur.pointer < uint(len(source)) && source[cur.pointer] != '\n' {
		cur = cur.advance(1)
	}
	return nil, cur, true
}

func lexSymbol(source string, ic cursor) (*token, cursor, bool) {
	var options []string
	for _, s := range symbols {
		options = append(options, string(s))
	}

	match := longestMatch(source, ic, options)
	if match == "" {
		return nil, ic, false
	}

	return &token{
		value: match,
		loc:   ic.loc,
		kind:  symbolKind,
	}, ic.advance(uint(len(match))), true
}

func lexKeyword(source string, ic cursor) (*token, cursor, bool) {
	var options []string
	for _, k := range keywords {
		options = append(options, string(k))
	}

	match := longestMatch(source, ic, options)
	if match == "" {
		return nil, ic, false
	}

	// NOTES is an identifier, not NOT followed by ES
	end := ic.pointer + uint(len(match))
	if end < uint(len(source)) && isIdentifierPart(source[end]) {
		return nil, ic, false
	}

	kind := keywordKind
	if match == string(nullKeyword) {
		kind = nullKind
	}

	return &token{
		value: match,
		kind:  kind,
		loc:   ic.loc,
	}, ic.advance(uint(len(match))), true
}

func lexNumeric(source string, ic cursor) (*token, cursor, bool) {
	cur := ic

	periodFound := false
	expMarkerFound := false

	for ; cur.pointer < uint(len(source)); cur.pointer++ {
		c := source[cur.pointer]
		cur.loc.col++

		isDigit := c >= '0' && c <= '9'
		isPeriod := c == '.'
		isExpMarker := c == 'e' || c == 'E'

		// Must start with a digit or period
		if cur.pointer == ic.pointer {
			if !isDigit && !isPeriod {
				return nil, ic, false
			}

			periodFound = isPeriod
			continue
		}

		if isPeriod {
			if periodFound {
				return nil, ic, false
			}

			periodFound = true
			continue
		}

		if isExpMarker {
			if expMarkerFound {
				return nil, ic, false
			}

			// No periods allowed after expMarker
			periodFound = true
			expMarkerFound = true

			// expMarker must be followed by digits
			if cur.pointer == uint(len(source)-1) {
				return nil, ic, false
			}

			cNext := source[cur.pointer+1]
			if cNext == '-' || cNext == '+' {
				cur.pointer++
				cur.loc.col++
			}
			continue
		}

		if !isDigit {
			cur.loc.col--
			break
		}
	}

	value := source[ic.pointer:cur.pointer]
	if value == "" || value == "." {
		return nil, ic, false
	}

	return &token{
		value: value,
		loc:   ic.loc,
		kind:  numericKind,
	}, cur, true
}

// lexHex reads a binary literal such as 0x0A0B. The token keeps the digits
// only.
func lexHex(source string, ic cursor) (*token, cursor, bool) {
	rest := source[ic.pointer:]
	if len(rest) < 2 || rest[0] != '0' || (rest[1] != 'x' && rest[1] != 'X') {
		return nil, ic, false
	}

	n := 2
	for n < len(rest) && strings.IndexByte("0123456789abcdefABCDEF", rest[n]) >= 0 {
		n++
	}

	return &token{
		value: rest[2:n],
		loc:   ic.loc,
		kind:  hexKind,
	}, ic.advance(uint(n)), true
}

// lexDelimited looks through a source string starting at the given cursor
// to find a start- and end- delimiter. The end delimiter can be escaped by
// doubling it.
func lexDelimited(source string, ic cursor, open, close byte, kind tokenKind) (*token, cursor, bool) {
	cur := ic

	if cur.pointer >= uint(len(source)) || source[cur.pointer] != open {
		return nil, ic, false
	}
	cur = cur.advance(1)

	var value []byte
	for cur.pointer < uint(len(source)) {
		c := source[cur.pointer]

		if c == close {
			// SQL escapes are via double characters, not backslash.
			if cur.pointer+1 >= uint(len(source)) || source[cur.pointer+1] != close {
				return &token{
					value: string(value),
					loc:   ic.loc,
					kind:  kind,
				}, cur.advance(1), true
			}
			value = append(value, close)
			cur = cur.advance(2)
			continue
		}

		value = append(value, c)
		if c == '\n' {
			cur.pointer++
			cur.loc.line++
			cur.loc.col = 0
			continue
		}
		cur = cur.advance(1)
	}

	return nil, ic, false
}

func lexString(source string, ic cursor) (*token, cursor, bool) {
	c := source[ic.pointer]
	if (c == 'N' || c == 'n') && ic.pointer+1 < uint(len(source)) && source[ic.pointer+1] == '\'' {
		t, cur, ok := lexDelimited(source, ic.advance(1), '\'', '\'', nstringKind)
		if !ok {
			return nil, ic, false
		}
		t.loc = ic.loc
		return t, cur, true
	}
	return lexDelimited(source, ic, '\'', '\'', stringKind)
}

func lexIdentifier(source string, ic cursor) (*token, cursor, bool) {
	// Quoted identifiers keep whatever they enclose
	if token, newCursor, ok := lexDelimited(source, ic, '"', '"', identifierKind); ok {
		return token, newCursor, true
	}
	if token, newCursor, ok := lexDelimited(source, ic, '[', ']', identifierKind); ok {
		return token, newCursor, true
	}

	if !isIdentifierStart(source[ic.pointer]) {
		return nil, ic, false
	}

	cur := ic.advance(1)
	for cur.pointer < uint(len(source)) && isIdentifierPart(source[cur.pointer]) {
		cur = cur.advance(1)
	}

	return &token{
		// Names keep their declared case; lookups decide how to compare
		value: source[ic.pointer:cur.pointer],
		loc:   ic.loc,
		kind:  identifierKind,
	}, cur, true
}

type lexer func(string, cursor) (*token, cursor, bool)

// lex splits an input string into a list of tokens. This process
// can be divided into following tasks:
//
// 1. Instantiating a cursor with pointing to the start of the string
//
// 2. Execute all the lexers in series.
//
// 3. If any of the lexer generate a token then add the token to the
// token slice, update the cursor and restart the process from the new
// cursor location.
func lex(source string) ([]*token, error) {
	var tokens []*token
	cur := cursor{}

lex:
	for cur.pointer < uint(len(source)) {
		lexers := []lexer{lexWhitespace, lexComment, lexKeyword, lexString, lexHex, lexNumeric, lexSymbol, lexIdentifier}
		for _, l := range lexers {
			if token, newCursor, ok := l(source, cur); ok {
				cur = newCursor

				// Omit nil tokens for valid, but empty syntax like newlines
				if token != nil {
					tokens = append(tokens, token)
				}

				continue lex
			}
		}

		near := ""
		if len(tokens) > 0 {
			near = tokens[len(tokens)-1].value
		}
		return nil, &SyntaxError{
			Line: cur.loc.line,
			Col:  cur.loc.col,
			Near: near,
			Msg:  fmt.Sprintf("unable to lex token %q", source[cur.pointer]),
		}
	}

	return tokens, nil
}
