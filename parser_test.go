package resultset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func boolPtr(b bool) *bool {
	return &b
}

func TestParse(t *testing.T) {
	tests := []struct {
		source string
		ast    *Ast
	}{
		{
			source: "INSERT INTO users VALUES (105, 233)",
			ast: &Ast{
				Statements: []*Statement{
					{
						Kind: InsertKind,
						InsertStatement: &InsertStatement{
							table: token{
								loc:   location{col: 12, line: 0},
								kind:  identifierKind,
								value: "users",
							},
							values: []*[]*expression{
								&[]*expression{
									{
										literal: &token{
											loc:   location{col: 26, line: 0},
											kind:  numericKind,
											value: "105",
										},
										kind: literalKind,
									},
									{
										literal: &token{
											loc:   location{col: 31, line: 0},
											kind:  numericKind,
											value: "233",
										},
										kind: literalKind,
									},
								},
							},
						},
					},
				},
			},
		},
		{
			source: "CREATE TABLE t (a INT NOT NULL, b NVARCHAR(MAX) SPARSE NULL)",
			ast: &Ast{
				Statements: []*Statement{
					{
						Kind: CreateTableKind,
						CreateTableStatement: &CreateTableStatement{
							name: token{
								loc:   location{col: 13, line: 0},
								kind:  identifierKind,
								value: "t",
							},
							cols: &[]*columnDefinition{
								{
									name: token{
										loc:   location{col: 16, line: 0},
										kind:  identifierKind,
										value: "a",
									},
									typ: typeName{
										name: token{
											loc:   location{col: 18, line: 0},
											kind:  identifierKind,
											value: "INT",
										},
									},
									nullable: boolPtr(false),
								},
								{
									name: token{
										loc:   location{col: 32, line: 0},
										kind:  identifierKind,
										value: "b",
									},
									typ: typeName{
										name: token{
											loc:   location{col: 34, line: 0},
											kind:  identifierKind,
											value: "NVARCHAR",
										},
										max: true,
									},
									nullable: boolPtr(true),
									sparse:   true,
								},
							},
						},
					},
				},
			},
		},
		{
			source: "SELECT *, exclusive",
			ast: &Ast{
				Statements: []*Statement{
					{
						Kind: SelectKind,
						SelectStatement: &SelectStatement{
							item: &[]*selectItem{
								{
									asterisk: true,
								},
								{
									exp: &expression{
										kind: columnKind,
										literal: &token{
											loc:   location{col: 10, line: 0},
											kind:  identifierKind,
											value: "exclusive",
										},
									},
								},
							},
						},
					},
				},
			},
		},
		{
			source: "SELECT id, name AS fullname FROM users",
			ast: &Ast{
				Statements: []*Statement{
					{
						Kind: SelectKind,
						SelectStatement: &SelectStatement{
							item: &[]*selectItem{
								{
									exp: &expression{
										kind: columnKind,
										literal: &token{
											loc:   location{col: 7, line: 0},
											kind:  identifierKind,
											value: "id",
										},
									},
								},
								{
									exp: &expression{
										kind: columnKind,
										literal: &token{
											loc:   location{col: 11, line: 0},
											kind:  identifierKind,
											value: "name",
										},
									},
									as: &token{
										loc:   location{col: 19, line: 0},
										kind:  identifierKind,
										value: "fullname",
									},
								},
							},
							from: &fromItem{
								table: &token{
									loc:   location{col: 33, line: 0},
									kind:  identifierKind,
									value: "users",
								},
							},
						},
					},
				},
			},
		},
		{
			source: "DROP TABLE users;",
			ast: &Ast{
				Statements: []*Statement{
					{
						Kind: DropTableKind,
						DropTableStatement: &DropTableStatement{
							name: token{
								loc:   location{col: 11, line: 0},
								kind:  identifierKind,
								value: "users",
							},
						},
					},
				},
			},
		},
	}

	for _, test := range tests {
		ast, err := Parse(test.source)
		assert.Nil(t, err, test.source)
		assert.Equal(t, test.ast, ast, test.source)
	}
}

func TestParse_batch(t *testing.T) {
	ast, err := Parse("SELECT 1 AS ColInteger SELECT 'STRING' AS ColString;;")
	assert.Nil(t, err)
	assert.Len(t, ast.Statements, 2)
	for _, stmt := range ast.Statements {
		assert.Equal(t, SelectKind, stmt.Kind)
	}

	ast, err = Parse("-- nothing but a comment\n;")
	assert.Nil(t, err)
	assert.Empty(t, ast.Statements)

	ast, err = Parse("INSERT INTO t (a, b) VALUES (-1, NULL), (CAST('2' AS DECIMAL(5, 2)), N'x')")
	assert.Nil(t, err)
	assert.Len(t, ast.Statements, 1)
	insert := ast.Statements[0].InsertStatement
	assert.Len(t, *insert.cols, 2)
	assert.Len(t, insert.values, 2)
	first := *insert.values[0]
	assert.Equal(t, "-1", first[0].literal.value)
	assert.Equal(t, numericKind, first[0].literal.kind)
	assert.Equal(t, nullKind, first[1].literal.kind)
	second := *insert.values[1]
	assert.Equal(t, castKind, second[0].kind)
	assert.Equal(t, []uint32{5, 2}, second[0].cast.typ.args)
}

func TestParse_errors(t *testing.T) {
	tests := []struct {
		source string
		err    *SyntaxError
	}{
		{
			source: "SELECT FROM t",
			err:    &SyntaxError{Line: 0, Col: 7, Near: "from", Msg: "Expected select item"},
		},
		{
			source: "CREATE TABLE t (a INT NOT)",
			err:    &SyntaxError{Line: 0, Col: 25, Near: ")", Msg: "Expected NULL after NOT"},
		},
		{
			source: "INSERT INTO t VALUES (1, 2",
			err:    &SyntaxError{Line: 0, Col: 25, Near: "2", Msg: "Expected )"},
		},
		{
			source: "t",
			err:    &SyntaxError{Line: 0, Col: 0, Near: "t", Msg: "Expected statement"},
		},
	}

	for _, test := range tests {
		ast, err := Parse(test.source)
		assert.Nil(t, ast, test.source)
		assert.Equal(t, test.err, err, test.source)
	}
}
