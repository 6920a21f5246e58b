package resultset

import (
	"fmt"
	"strconv"
	"strings"
)

// SyntaxError reports where a batch stopped making sense.
type SyntaxError struct {
	Line uint
	Col  uint
	Near string
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("[%d,%d]: %s, near: %q", e.Line, e.Col, e.Msg, e.Near)
}

func tokenFromKeyword(k keyword) token {
	kind := keywordKind
	if k == nullKeyword {
		kind = nullKind
	}
	return token{
		kind:  kind,
		value: string(k),
	}
}

func tokenFromSymbol(s symbol) token {
	return token{
		kind:  symbolKind,
		value: string(s),
	}
}

type parser struct {
	tokens []*token
	err    *SyntaxError
}

func (p *parser) expectToken(cursor uint, t token) bool {
	if cursor >= uint(len(p.tokens)) {
		return false
	}

	return t.equals(p.tokens[cursor])
}

// helpMessage records the first complaint; it is the innermost one since
// callers only complain after their callee failed.
func (p *parser) helpMessage(cursor uint, msg string) {
	if p.err != nil {
		return
	}

	var c *token
	if cursor < uint(len(p.tokens)) {
		c = p.tokens[cursor]
	} else {
		c = p.tokens[len(p.tokens)-1]
	}

	p.err = &SyntaxError{Line: c.loc.line, Col: c.loc.col, Near: c.value, Msg: msg}
}

func (p *parser) parseToken(initialCursor uint, kind tokenKind) (*token, uint, bool) {
	cursor := initialCursor

	if cursor >= uint(len(p.tokens)) {
		return nil, initialCursor, false
	}

	current := p.tokens[cursor]
	if current.kind == kind {
		return current, cursor + 1, true
	}

	return nil, initialCursor, false
}

// literal | -numeric | column | CAST(expression AS type)
func (p *parser) parseExpression(initialCursor uint) (*expression, uint, bool) {
	cursor := initialCursor

	if p.expectToken(cursor, tokenFromSymbol(minusSymbol)) {
		num, newCursor, ok := p.parseToken(cursor+1, numericKind)
		if !ok {
			p.helpMessage(cursor+1, "Expected number after minus")
			return nil, initialCursor, false
		}
		negative := *num
		negative.value = "-" + num.value
		negative.loc = p.tokens[cursor].loc
		return &expression{literal: &negative, kind: literalKind}, newCursor, true
	}

	if p.expectToken(cursor, tokenFromKeyword(castKeyword)) {
		return p.parseCast(cursor)
	}

	kinds := []tokenKind{numericKind, stringKind, nstringKind, hexKind, nullKind}
	for _, kind := range kinds {
		t, newCursor, ok := p.parseToken(cursor, kind)
		if ok {
			return &expression{
				literal: t,
				kind:    literalKind,
			}, newCursor, true
		}
	}

	if t, newCursor, ok := p.parseToken(cursor, identifierKind); ok {
		return &expression{literal: t, kind: columnKind}, newCursor, true
	}

	return nil, initialCursor, false
}

func (p *parser) parseCast(initialCursor uint) (*expression, uint, bool) {
	cursor := initialCursor + 1

	if !p.expectToken(cursor, tokenFromSymbol(leftParenSymbol)) {
		p.helpMessage(cursor, "Expected left paren after CAST")
		return nil, initialCursor, false
	}
	cursor++

	exp, newCursor, ok := p.parseExpression(cursor)
	if !ok {
		p.helpMessage(cursor, "Expected expression")
		return nil, initialCursor, false
	}
	cursor = newCursor

	if !p.expectToken(cursor, tokenFromKeyword(asKeyword)) {
		p.helpMessage(cursor, "Expected AS")
		return nil, initialCursor, false
	}
	cursor++

	typ, newCursor, ok := p.parseTypeName(cursor)
	if !ok {
		return nil, initialCursor, false
	}
	cursor = newCursor

	if !p.expectToken(cursor, tokenFromSymbol(rightParenSymbol)) {
		p.helpMessage(cursor, "Expected right paren")
		return nil, initialCursor, false
	}
	cursor++

	return &expression{
		cast: &castExpression{exp: exp, typ: typ},
		kind: castKind,
	}, cursor, true
}

// ident [ ( MAX | numeric [, numeric] ) ]
func (p *parser) parseTypeName(initialCursor uint) (*typeName, uint, bool) {
	cursor := initialCursor

	name, newCursor, ok := p.parseToken(cursor, identifierKind)
	if !ok {
		p.helpMessage(cursor, "Expected type name")
		return nil, initialCursor, false
	}
	cursor = newCursor
	typ := typeName{name: *name}

	if !p.expectToken(cursor, tokenFromSymbol(leftParenSymbol)) {
		return &typ, cursor, true
	}
	cursor++

	for {
		if len(typ.args) > 0 || typ.max {
			if p.expectToken(cursor, tokenFromSymbol(rightParenSymbol)) {
				cursor++
				break
			}
			if !p.expectToken(cursor, tokenFromSymbol(commaSymbol)) || typ.max {
				p.helpMessage(cursor, "Expected right paren")
				return nil, initialCursor, false
			}
			cursor++
		}

		if id, newCursor, ok := p.parseToken(cursor, identifierKind); ok && strings.EqualFold(id.value, "max") && len(typ.args) == 0 {
			typ.max = true
			cursor = newCursor
			continue
		}

		num, newCursor, ok := p.parseToken(cursor, numericKind)
		if !ok {
			p.helpMessage(cursor, "Expected type length")
			return nil, initialCursor, false
		}
		n, err := strconv.ParseUint(num.value, 10, 32)
		if err != nil {
			p.helpMessage(cursor, "Expected whole number")
			return nil, initialCursor, false
		}
		typ.args = append(typ.args, uint32(n))
		cursor = newCursor
	}

	return &typ, cursor, true
}

// expression [AS ident] [, ...]
func (p *parser) parseSelectItem(initialCursor uint, delimiters []token) (*[]*selectItem, uint, bool) {
	cursor := initialCursor

	s := []*selectItem{}
outer:
	for {
		if cursor >= uint(len(p.tokens)) {
			break
		}

		current := p.tokens[cursor]
		for _, delimiter := range delimiters {
			if delimiter.equals(current) {
				break outer
			}
		}

		if len(s) > 0 {
			// T-SQL lets the next statement follow without a semicolon
			if !p.expectToken(cursor, tokenFromSymbol(commaSymbol)) {
				break
			}

			cursor++
		}

		var si selectItem
		if p.expectToken(cursor, tokenFromSymbol(asteriskSymbol)) {
			si = selectItem{asterisk: true}
			cursor++
		} else {
			exp, newCursor, ok := p.parseExpression(cursor)
			if !ok {
				p.helpMessage(cursor, "Expected expression")
				return nil, initialCursor, false
			}

			cursor = newCursor
			si.exp = exp

			if p.expectToken(cursor, tokenFromKeyword(asKeyword)) {
				cursor++

				id, newCursor, ok := p.parseToken(cursor, identifierKind)
				if !ok {
					p.helpMessage(cursor, "Expected identifier after AS")
					return nil, initialCursor, false
				}

				cursor = newCursor
				si.as = id
			}
		}

		s = append(s, &si)
	}

	if len(s) == 0 {
		p.helpMessage(cursor, "Expected select item")
		return nil, initialCursor, false
	}

	return &s, cursor, true
}

func (p *parser) parseFromItem(initialCursor uint) (*fromItem, uint, bool) {
	ident, newCursor, ok := p.parseToken(initialCursor, identifierKind)
	if !ok {
		return nil, initialCursor, false
	}

	return &fromItem{table: ident}, newCursor, true
}

// SELECT item [, ...] [FROM ident]
func (p *parser) parseSelectStatement(initialCursor uint, delimiter token) (*SelectStatement, uint, bool) {
	cursor := initialCursor
	if !p.expectToken(cursor, tokenFromKeyword(selectKeyword)) {
		return nil, initialCursor, false
	}
	cursor++

	slct := SelectStatement{}

	item, newCursor, ok := p.parseSelectItem(cursor, []token{tokenFromKeyword(fromKeyword), delimiter})
	if !ok {
		return nil, initialCursor, false
	}

	slct.item = item
	cursor = newCursor

	if p.expectToken(cursor, tokenFromKeyword(fromKeyword)) {
		cursor++

		from, newCursor, ok := p.parseFromItem(cursor)
		if !ok {
			p.helpMessage(cursor, "Expected FROM item")
			return nil, initialCursor, false
		}

		slct.from = from
		cursor = newCursor
	}

	return &slct, cursor, true
}

func (p *parser) parseExpressions(initialCursor uint, delimiter token) (*[]*expression, uint, bool) {
	cursor := initialCursor

	exps := []*expression{}
	for {
		if cursor >= uint(len(p.tokens)) {
			p.helpMessage(cursor, "Expected "+delimiter.value)
			return nil, initialCursor, false
		}

		current := p.tokens[cursor]
		if delimiter.equals(current) {
			break
		}

		if len(exps) > 0 {
			if !p.expectToken(cursor, tokenFromSymbol(commaSymbol)) {
				p.helpMessage(cursor, "Expected comma")
				return nil, initialCursor, false
			}

			cursor++
		}

		exp, newCursor, ok := p.parseExpression(cursor)
		if !ok {
			p.helpMessage(cursor, "Expected expression")
			return nil, initialCursor, false
		}
		cursor = newCursor

		exps = append(exps, exp)
	}

	return &exps, cursor, true
}

func (p *parser) parseIdentifiers(initialCursor uint, delimiter token) (*[]*token, uint, bool) {
	cursor := initialCursor

	ids := []*token{}
	for {
		if cursor >= uint(len(p.tokens)) {
			p.helpMessage(cursor, "Expected "+delimiter.value)
			return nil, initialCursor, false
		}

		if delimiter.equals(p.tokens[cursor]) {
			break
		}

		if len(ids) > 0 {
			if !p.expectToken(cursor, tokenFromSymbol(commaSymbol)) {
				p.helpMessage(cursor, "Expected comma")
				return nil, initialCursor, false
			}

			cursor++
		}

		id, newCursor, ok := p.parseToken(cursor, identifierKind)
		if !ok {
			p.helpMessage(cursor, "Expected column name")
			return nil, initialCursor, false
		}
		cursor = newCursor

		ids = append(ids, id)
	}

	return &ids, cursor, true
}

// INSERT INTO ident [(ident [, ...])] VALUES (expression [, ...]) [, ...]
func (p *parser) parseInsertStatement(initialCursor uint) (*InsertStatement, uint, bool) {
	cursor := initialCursor

	if !p.expectToken(cursor, tokenFromKeyword(insertKeyword)) {
		return nil, initialCursor, false
	}
	cursor++

	if !p.expectToken(cursor, tokenFromKeyword(intoKeyword)) {
		p.helpMessage(cursor, "Expected into")
		return nil, initialCursor, false
	}
	cursor++

	table, newCursor, ok := p.parseToken(cursor, identifierKind)
	if !ok {
		p.helpMessage(cursor, "Expected table name")
		return nil, initialCursor, false
	}
	cursor = newCursor

	insert := InsertStatement{table: *table}

	if p.expectToken(cursor, tokenFromSymbol(leftParenSymbol)) {
		cursor++

		cols, newCursor, ok := p.parseIdentifiers(cursor, tokenFromSymbol(rightParenSymbol))
		if !ok {
			return nil, initialCursor, false
		}
		cursor = newCursor + 1
		insert.cols = cols
	}

	if !p.expectToken(cursor, tokenFromKeyword(valuesKeyword)) {
		p.helpMessage(cursor, "Expected VALUES")
		return nil, initialCursor, false
	}
	cursor++

	for {
		if len(insert.values) > 0 {
			if !p.expectToken(cursor, tokenFromSymbol(commaSymbol)) {
				break
			}
			cursor++
		}

		if !p.expectToken(cursor, tokenFromSymbol(leftParenSymbol)) {
			p.helpMessage(cursor, "Expected left paren")
			return nil, initialCursor, false
		}
		cursor++

		values, newCursor, ok := p.parseExpressions(cursor, tokenFromSymbol(rightParenSymbol))
		if !ok {
			return nil, initialCursor, false
		}
		cursor = newCursor + 1

		insert.values = append(insert.values, values)
	}

	return &insert, cursor, true
}

func (p *parser) parseColumnDefinition(initialCursor uint) (*columnDefinition, uint, bool) {
	cursor := initialCursor

	id, newCursor, ok := p.parseToken(cursor, identifierKind)
	if !ok {
		p.helpMessage(cursor, "Expected column name")
		return nil, initialCursor, false
	}
	cursor = newCursor

	typ, newCursor, ok := p.parseTypeName(cursor)
	if !ok {
		return nil, initialCursor, false
	}
	cursor = newCursor

	cd := columnDefinition{name: *id, typ: *typ}
	setNullable := func(n bool) {
		cd.nullable = &n
	}

	for cursor < uint(len(p.tokens)) {
		switch {
		case p.expectToken(cursor, tokenFromKeyword(sparseKeyword)):
			cd.sparse = true
			cursor++
		case p.expectToken(cursor, tokenFromKeyword(nullKeyword)):
			setNullable(true)
			cursor++
		case p.expectToken(cursor, tokenFromKeyword(notKeyword)):
			if !p.expectToken(cursor+1, tokenFromKeyword(nullKeyword)) {
				p.helpMessage(cursor+1, "Expected NULL after NOT")
				return nil, initialCursor, false
			}
			setNullable(false)
			cursor += 2
		case p.expectToken(cursor, tokenFromKeyword(collateKeyword)):
			name, newCursor, ok := p.parseToken(cursor+1, identifierKind)
			if !ok {
				p.helpMessage(cursor+1, "Expected collation name")
				return nil, initialCursor, false
			}
			cd.collation = name
			cursor = newCursor
		case p.expectToken(cursor, tokenFromKeyword(defaultKeyword)):
			exp, newCursor, ok := p.parseExpression(cursor + 1)
			if !ok {
				p.helpMessage(cursor+1, "Expected default value")
				return nil, initialCursor, false
			}
			cd.def = exp
			cursor = newCursor
		case p.expectToken(cursor, tokenFromKeyword(columnSetKeyword)):
			if !p.expectToken(cursor+1, tokenFromKeyword(forKeyword)) ||
				!p.expectToken(cursor+2, tokenFromKeyword(allSparseColumnsKeyword)) {
				p.helpMessage(cursor+1, "Expected FOR ALL_SPARSE_COLUMNS")
				return nil, initialCursor, false
			}
			cd.columnSet = true
			cursor += 3
		default:
			return &cd, cursor, true
		}
	}

	return &cd, cursor, true
}

func (p *parser) parseColumnDefinitions(initialCursor uint, delimiter token) (*[]*columnDefinition, uint, bool) {
	cursor := initialCursor

	cds := []*columnDefinition{}
	for {
		if cursor >= uint(len(p.tokens)) {
			p.helpMessage(cursor, "Expected right parenthesis")
			return nil, initialCursor, false
		}

		current := p.tokens[cursor]
		if delimiter.equals(current) {
			break
		}

		if len(cds) > 0 {
			if !p.expectToken(cursor, tokenFromSymbol(commaSymbol)) {
				p.helpMessage(cursor, "Expected comma")
				return nil, initialCursor, false
			}

			cursor++
		}

		cd, newCursor, ok := p.parseColumnDefinition(cursor)
		if !ok {
			return nil, initialCursor, false
		}
		cursor = newCursor

		cds = append(cds, cd)
	}

	return &cds, cursor, true
}

func (p *parser) parseCreateTableStatement(initialCursor uint) (*CreateTableStatement, uint, bool) {
	cursor := initialCursor

	if !p.expectToken(cursor, tokenFromKeyword(createKeyword)) {
		return nil, initialCursor, false
	}
	cursor++

	if !p.expectToken(cursor, tokenFromKeyword(tableKeyword)) {
		p.helpMessage(cursor, "Expected TABLE")
		return nil, initialCursor, false
	}
	cursor++

	name, newCursor, ok := p.parseToken(cursor, identifierKind)
	if !ok {
		p.helpMessage(cursor, "Expected table name")
		return nil, initialCursor, false
	}
	cursor = newCursor

	if !p.expectToken(cursor, tokenFromSymbol(leftParenSymbol)) {
		p.helpMessage(cursor, "Expected left parenthesis")
		return nil, initialCursor, false
	}
	cursor++

	cols, newCursor, ok := p.parseColumnDefinitions(cursor, tokenFromSymbol(rightParenSymbol))
	if !ok {
		return nil, initialCursor, false
	}
	cursor = newCursor

	if len(*cols) == 0 {
		p.helpMessage(cursor, "Expected column definition")
		return nil, initialCursor, false
	}
	cursor++

	return &CreateTableStatement{
		name: *name,
		cols: cols,
	}, cursor, true
}

func (p *parser) parseDropTableStatement(initialCursor uint) (*DropTableStatement, uint, bool) {
	cursor := initialCursor

	if !p.expectToken(cursor, tokenFromKeyword(dropKeyword)) {
		return nil, initialCursor, false
	}
	cursor++

	if !p.expectToken(cursor, tokenFromKeyword(tableKeyword)) {
		p.helpMessage(cursor, "Expected TABLE")
		return nil, initialCursor, false
	}
	cursor++

	name, newCursor, ok := p.parseToken(cursor, identifierKind)
	if !ok {
		p.helpMessage(cursor, "Expected table name")
		return nil, initialCursor, false
	}

	return &DropTableStatement{name: *name}, newCursor, true
}

func (p *parser) parseStatement(initialCursor uint) (*Statement, uint, bool) {
	cursor := initialCursor

	semicolonToken := tokenFromSymbol(semicolonSymbol)
	slct, newCursor, ok := p.parseSelectStatement(cursor, semicolonToken)
	if ok {
		return &Statement{
			Kind:            SelectKind,
			SelectStatement: slct,
		}, newCursor, true
	}

	inst, newCursor, ok := p.parseInsertStatement(cursor)
	if ok {
		return &Statement{
			Kind:            InsertKind,
			InsertStatement: inst,
		}, newCursor, true
	}

	crtTbl, newCursor, ok := p.parseCreateTableStatement(cursor)
	if ok {
		return &Statement{
			Kind:                 CreateTableKind,
			CreateTableStatement: crtTbl,
		}, newCursor, true
	}

	drpTbl, newCursor, ok := p.parseDropTableStatement(cursor)
	if ok {
		return &Statement{
			Kind:               DropTableKind,
			DropTableStatement: drpTbl,
		}, newCursor, true
	}

	return nil, initialCursor, false
}

// Parse turns a batch into its statements. Semicolons between statements
// are optional, as in T-SQL.
func Parse(source string) (*Ast, error) {
	tokens, err := lex(source)
	if err != nil {
		return nil, err
	}

	p := parser{tokens: tokens}
	a := Ast{}
	cursor := uint(0)
	for cursor < uint(len(tokens)) {
		if p.expectToken(cursor, tokenFromSymbol(semicolonSymbol)) {
			cursor++
			continue
		}

		stmt, newCursor, ok := p.parseStatement(cursor)
		if !ok {
			p.helpMessage(cursor, "Expected statement")
			return nil, p.err
		}
		cursor = newCursor

		a.Statements = append(a.Statements, stmt)
	}

	return &a, nil
}
