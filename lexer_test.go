package resultset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToken_lexNumeric(t *testing.T) {
	tests := []struct {
		number bool
		value  string
	}{
		{
			number: true,
			value:  "105",
		},
		{
			number: true,
			value:  "105 ",
		},
		{
			number: true,
			value:  "123.",
		},
		{
			number: true,
			value:  "123.145",
		},
		{
			number: true,
			value:  "1e5",
		},
		{
			number: true,
			value:  "1.e21",
		},
		{
			number: true,
			value:  "1.1e-2",
		},
		{
			number: true,
			value:  "1.1e+2",
		},
		{
			number: true,
			value:  ".1",
		},
		{
			number: true,
			value:  "4)",
		},
		// false tests
		{
			number: false,
			value:  "e4",
		},
		{
			number: false,
			value:  "1..",
		},
		{
			number: false,
			value:  "1ee4",
		},
		{
			number: false,
			value:  " 1",
		},
		{
			number: false,
			value:  ".",
		},
	}

	for _, test := range tests {
		tok, _, ok := lexNumeric(test.value, cursor{})
		assert.Equal(t, test.number, ok, test.value)
		if ok {
			assert.Equal(t, strings.TrimRight(test.value, " )"), tok.value, test.value)
		}
	}
}

func TestToken_lexString(t *testing.T) {
	tests := []struct {
		string bool
		input  string
		value  string
		kind   tokenKind
	}{
		{
			string: true,
			input:  "'abc'",
			value:  "abc",
			kind:   stringKind,
		},
		{
			string: true,
			input:  "'a b' ",
			value:  "a b",
			kind:   stringKind,
		},
		{
			string: true,
			input:  "'a '' b'",
			value:  "a ' b",
			kind:   stringKind,
		},
		{
			string: true,
			input:  "''",
			value:  "",
			kind:   stringKind,
		},
		{
			string: true,
			input:  "N'three'",
			value:  "three",
			kind:   nstringKind,
		},
		{
			string: true,
			input:  "n'it''s'",
			value:  "it's",
			kind:   nstringKind,
		},
		// false tests
		{
			string: false,
			input:  "a",
		},
		{
			string: false,
			input:  "'",
		},
		{
			string: false,
			input:  "'abc",
		},
		{
			string: false,
			input:  "N",
		},
		{
			string: false,
			input:  " 'foo'",
		},
	}

	for _, test := range tests {
		tok, _, ok := lexString(test.input, cursor{})
		assert.Equal(t, test.string, ok, test.input)
		if ok {
			assert.Equal(t, test.value, tok.value, test.input)
			assert.Equal(t, test.kind, tok.kind, test.input)
		}
	}
}

func TestToken_lexHex(t *testing.T) {
	tok, cur, ok := lexHex("0x0aFF,", cursor{})
	assert.True(t, ok)
	assert.Equal(t, "0aFF", tok.value)
	assert.Equal(t, hexKind, tok.kind)
	assert.Equal(t, uint(6), cur.pointer)

	tok, _, ok = lexHex("0x", cursor{})
	assert.True(t, ok)
	assert.Equal(t, "", tok.value)

	for _, input := range []string{"0", "01", "x0A", "0.5"} {
		_, _, ok := lexHex(input, cursor{})
		assert.False(t, ok, input)
	}
}

func TestToken_lexSymbol(t *testing.T) {
	tests := []struct {
		symbol bool
		value  string
	}{
		{
			symbol: true,
			value:  "( ",
		},
		{
			symbol: true,
			value:  ";",
		},
		{
			symbol: true,
			value:  "-1",
		},
		{
			symbol: true,
			value:  "*",
		},
		// false tests
		{
			symbol: false,
			value:  "=",
		},
		{
			symbol: false,
			value:  "||",
		},
	}

	for _, test := range tests {
		tok, _, ok := lexSymbol(test.value, cursor{})
		assert.Equal(t, test.symbol, ok, test.value)
		if ok {
			assert.Equal(t, test.value[:1], tok.value, test.value)
		}
	}
}

func TestToken_lexIdentifier(t *testing.T) {
	tests := []struct {
		identifier bool
		input      string
		value      string
	}{
		{
			identifier: true,
			input:      "a",
			value:      "a",
		},
		{
			identifier: true,
			input:      "abc ",
			value:      "abc",
		},
		{
			identifier: true,
			input:      `" abc "`,
			value:      ` abc `,
		},
		{
			identifier: true,
			input:      `"a""b"`,
			value:      `a"b`,
		},
		{
			identifier: true,
			input:      "[order details]",
			value:      "order details",
		},
		{
			identifier: true,
			input:      "a9$",
			value:      "a9$",
		},
		{
			identifier: true,
			input:      "userName",
			value:      "userName",
		},
		{
			identifier: true,
			input:      "_sadsfa",
			value:      "_sadsfa",
		},
		{
			identifier: true,
			input:      "#temp",
			value:      "#temp",
		},
		// false tests
		{
			identifier: false,
			input:      `"`,
		},
		{
			identifier: false,
			input:      "[abc",
		},
		{
			identifier: false,
			input:      "9sadsfa",
		},
		{
			identifier: false,
			input:      " abc",
		},
	}

	for _, test := range tests {
		tok, _, ok := lexIdentifier(test.input, cursor{})
		assert.Equal(t, test.identifier, ok, test.input)
		if ok {
			assert.Equal(t, test.value, tok.value, test.input)
			assert.Equal(t, identifierKind, tok.kind, test.input)
		}
	}
}

func TestToken_lexKeyword(t *testing.T) {
	tests := []struct {
		keyword bool
		value   string
	}{
		{
			keyword: true,
			value:   "select ",
		},
		{
			keyword: true,
			value:   "SELECT",
		},
		{
			keyword: true,
			value:   "into(",
		},
		{
			keyword: true,
			value:   "Sparse",
		},
		{
			keyword: true,
			value:   "column_set",
		},
		{
			keyword: true,
			value:   "ALL_SPARSE_COLUMNS)",
		},
		// false tests
		{
			keyword: false,
			value:   " into",
		},
		{
			keyword: false,
			value:   "flubbrety",
		},
		{
			keyword: false,
			value:   "notes",
		},
		{
			keyword: false,
			value:   "ascii",
		},
	}

	for _, test := range tests {
		tok, _, ok := lexKeyword(test.value, cursor{})
		assert.Equal(t, test.keyword, ok, test.value)
		if ok {
			value := strings.TrimRight(test.value, " ()")
			assert.Equal(t, strings.ToLower(value), tok.value, test.value)
			assert.Equal(t, keywordKind, tok.kind, test.value)
		}
	}

	tok, _, ok := lexKeyword("NULL", cursor{})
	assert.True(t, ok)
	assert.Equal(t, nullKind, tok.kind)
}

func TestLex(t *testing.T) {
	tests := []struct {
		input  string
		tokens []token
		err    error
	}{
		{
			input: "select a",
			tokens: []token{
				{
					loc:   location{col: 0, line: 0},
					value: string(selectKeyword),
					kind:  keywordKind,
				},
				{
					loc:   location{col: 7, line: 0},
					value: "a",
					kind:  identifierKind,
				},
			},
		},
		{
			input: "select null",
			tokens: []token{
				{
					loc:   location{col: 0, line: 0},
					value: string(selectKeyword),
					kind:  keywordKind,
				},
				{
					loc:   location{col: 7, line: 0},
					value: "null",
					kind:  nullKind,
				},
			},
		},
		{
			input: "SELECT N'abc', 0x0A;",
			tokens: []token{
				{
					loc:   location{col: 0, line: 0},
					value: string(selectKeyword),
					kind:  keywordKind,
				},
				{
					loc:   location{col: 7, line: 0},
					value: "abc",
					kind:  nstringKind,
				},
				{
					loc:   location{col: 13, line: 0},
					value: ",",
					kind:  symbolKind,
				},
				{
					loc:   location{col: 15, line: 0},
					value: "0A",
					kind:  hexKind,
				},
				{
					loc:   location{col: 19, line: 0},
					value: string(semicolonSymbol),
					kind:  symbolKind,
				},
			},
		},
		{
			input: "CREATE TABLE u (id INT SPARSE NULL)",
			tokens: []token{
				{
					loc:   location{col: 0, line: 0},
					value: string(createKeyword),
					kind:  keywordKind,
				},
				{
					loc:   location{col: 7, line: 0},
					value: string(tableKeyword),
					kind:  keywordKind,
				},
				{
					loc:   location{col: 13, line: 0},
					value: "u",
					kind:  identifierKind,
				},
				{
					loc:   location{col: 15, line: 0},
					value: "(",
					kind:  symbolKind,
				},
				{
					loc:   location{col: 16, line: 0},
					value: "id",
					kind:  identifierKind,
				},
				{
					loc:   location{col: 19, line: 0},
					value: "INT",
					kind:  identifierKind,
				},
				{
					loc:   location{col: 23, line: 0},
					value: string(sparseKeyword),
					kind:  keywordKind,
				},
				{
					loc:   location{col: 30, line: 0},
					value: string(nullKeyword),
					kind:  nullKind,
				},
				{
					loc:   location{col: 34, line: 0},
					value: ")",
					kind:  symbolKind,
				},
			},
		},
		{
			input: "insert into users values (105, 233)",
			tokens: []token{
				{
					loc:   location{col: 0, line: 0},
					value: string(insertKeyword),
					kind:  keywordKind,
				},
				{
					loc:   location{col: 7, line: 0},
					value: string(intoKeyword),
					kind:  keywordKind,
				},
				{
					loc:   location{col: 12, line: 0},
					value: "users",
					kind:  identifierKind,
				},
				{
					loc:   location{col: 18, line: 0},
					value: string(valuesKeyword),
					kind:  keywordKind,
				},
				{
					loc:   location{col: 25, line: 0},
					value: "(",
					kind:  symbolKind,
				},
				{
					loc:   location{col: 26, line: 0},
					value: "105",
					kind:  numericKind,
				},
				{
					loc:   location{col: 29, line: 0},
					value: ",",
					kind:  symbolKind,
				},
				{
					loc:   location{col: 31, line: 0},
					value: "233",
					kind:  numericKind,
				},
				{
					loc:   location{col: 34, line: 0},
					value: ")",
					kind:  symbolKind,
				},
			},
			err: nil,
		},
		{
			input: "select a -- trailing\nfrom t",
			tokens: []token{
				{
					loc:   location{col: 0, line: 0},
					value: string(selectKeyword),
					kind:  keywordKind,
				},
				{
					loc:   location{col: 7, line: 0},
					value: "a",
					kind:  identifierKind,
				},
				{
					loc:   location{col: 0, line: 1},
					value: string(fromKeyword),
					kind:  keywordKind,
				},
				{
					loc:   location{col: 5, line: 1},
					value: "t",
					kind:  identifierKind,
				},
			},
		},
		{
			input: "select `a`",
			err: &SyntaxError{
				Line: 0,
				Col:  7,
				Near: "select",
				Msg:  "unable to lex token '`'",
			},
		},
	}

	for _, test := range tests {
		tokens, err := lex(test.input)
		assert.Equal(t, test.err, err, test.input)
		assert.Equal(t, len(test.tokens), len(tokens), test.input)

		for i, tok := range tokens {
			assert.Equal(t, &test.tokens[i], tok, test.input)
		}
	}
}
