// Package parser - SQL Parser implementation
//
// EDUCATIONAL NOTES:
// ------------------
// A parser reads tokens from the lexer and builds an Abstract Syntax Tree (AST).
// This is the second phase of compilation/interpretation, after lexing.
//
// We use a "recursive descent" parser, which is one of the simplest and most
// intuitive parsing techniques. Each grammar rule becomes a function:
// - parseStatement() handles SELECT, INSERT, UPDATE, etc.
// - parseExpression() handles expressions with proper operator precedence
// - parseSelectStatement() handles the SELECT grammar specifically
//
// The parser maintains a "current token" and can "peek" at the next token.
// This allows it to make decisions about what to parse next.

package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/relicdb/relicdb/internal/sql/lexer"
)

// Parser parses SQL tokens into an AST.
type Parser struct {
	lexer     *lexer.Lexer
	curToken  lexer.Token
	peekToken lexer.Token
	errors    []string
}

// New creates a new Parser for the given lexer.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{
		lexer:  l,
		errors: []string{},
	}
	// Read two tokens to initialize curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses the input and returns the AST.
func (p *Parser) Parse() (Statement, error) {
	stmt := p.parseStatement()
	if len(p.errors) > 0 {
		return nil, fmt.Errorf("parse errors: %s", strings.Join(p.errors, "; "))
	}
	return stmt, nil
}

// Errors returns any parsing errors encountered.
func (p *Parser) Errors() []string {
	return p.errors
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t lexer.TokenType) bool {
	return p.curToken.Type == t
}

// peekTokenIs checks if the next token is of the given type.
func (p *Parser) peekTokenIs(t lexer.TokenType) bool {
	return p.peekToken.Type == t
}

// expectPeek advances if the next token is of the expected type.
func (p *Parser) expectPeek(t lexer.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

// peekError records an error for unexpected token type.
func (p *Parser) peekError(t lexer.TokenType) {
	msg := fmt.Sprintf("expected next token to be %d, got %d instead (literal: %q)",
		t, p.peekToken.Type, p.peekToken.Literal)
	p.errors = append(p.errors, msg)
}

// peekKeywordIdent reports whether the peek token is an identifier whose
// upper-cased literal equals kw; used for soft keywords (KEY in "PRIMARY
// KEY") that the lexer does not reserve.
func (p *Parser) peekKeywordIdent(kw string) bool {
	return p.peekTokenIs(lexer.TokenIdent) && strings.EqualFold(p.peekToken.Literal, kw)
}

// parseStatement parses a SQL statement.
func (p *Parser) parseStatement() Statement {
	switch p.curToken.Type {
	case lexer.TokenSelect:
		return p.parseSelectStatement()
	case lexer.TokenInsert:
		return p.parseInsertStatement()
	case lexer.TokenUpdate:
		return p.parseUpdateStatement()
	case lexer.TokenDelete:
		return p.parseDeleteStatement()
	case lexer.TokenCreate:
		return p.parseCreateStatement()
	case lexer.TokenDrop:
		return p.parseDropStatement()
	case lexer.TokenAlter:
		return p.parseAlterStatement()
	case lexer.TokenTruncate:
		return p.parseTruncateStatement()
	case lexer.TokenExplain:
		return p.parseExplainStatement()
	case lexer.TokenAnalyze:
		return p.parseAnalyzeStatement()
	default:
		p.errors = append(p.errors, fmt.Sprintf("unexpected token: %s", p.curToken.Literal))
		return nil
	}
}

// parseSelectStatement parses:
//
//	SELECT [DISTINCT] columns FROM table [alias] [JOIN t [alias] ON pred]*
//	  [WHERE condition] [ORDER BY ...] [LIMIT n [OFFSET m]]
func (p *Parser) parseSelectStatement() *SelectStatement {
	stmt := &SelectStatement{}

	p.nextToken() // move past SELECT
	if p.curTokenIs(lexer.TokenDistinct) {
		stmt.Distinct = true
		p.nextToken()
	}
	stmt.Columns = p.parseSelectItemList()

	if !p.expectPeek(lexer.TokenFrom) {
		return nil
	}
	if !p.expectPeek(lexer.TokenIdent) {
		return nil
	}
	stmt.From = p.curToken.Literal

	if p.peekTokenIs(lexer.TokenIdent) {
		p.nextToken()
		stmt.FromAlias = p.curToken.Literal
	}

	for p.peekTokenIs(lexer.TokenJoin) {
		p.nextToken() // move to JOIN
		join := JoinClause{}
		if !p.expectPeek(lexer.TokenIdent) {
			return nil
		}
		join.Table = p.curToken.Literal
		if p.peekTokenIs(lexer.TokenIdent) {
			p.nextToken()
			join.Alias = p.curToken.Literal
		}
		if !p.expectPeek(lexer.TokenOn) {
			return nil
		}
		p.nextToken()
		join.On = p.parseExpression(PrecedenceLowest)
		stmt.Joins = append(stmt.Joins, join)
	}

	if p.peekTokenIs(lexer.TokenWhere) {
		p.nextToken() // move to WHERE
		p.nextToken() // move past WHERE
		stmt.Where = p.parseExpression(PrecedenceLowest)
	}

	if p.peekTokenIs(lexer.TokenOrder) {
		p.nextToken() // move to ORDER
		if !p.expectPeek(lexer.TokenBy) {
			return nil
		}
		stmt.OrderBy = p.parseOrderByClause()
	}

	if p.peekTokenIs(lexer.TokenLimit) {
		p.nextToken() // move to LIMIT
		p.nextToken() // move past LIMIT
		limit, err := strconv.Atoi(p.curToken.Literal)
		if err != nil {
			p.errors = append(p.errors, "LIMIT must be an integer")
			return nil
		}
		stmt.Limit = &limit

		if p.peekTokenIs(lexer.TokenOffset) {
			p.nextToken() // move to OFFSET
			p.nextToken() // move past OFFSET
			offset, err := strconv.Atoi(p.curToken.Literal)
			if err != nil {
				p.errors = append(p.errors, "OFFSET must be an integer")
				return nil
			}
			stmt.Offset = &offset
		}
	}

	return stmt
}

// parseSelectItemList parses a comma-separated projection list, handling
// `*`, qualified columns, and aggregate calls.
func (p *Parser) parseSelectItemList() []Expression {
	var items []Expression
	for {
		items = append(items, p.parseSelectItem())
		if !p.peekTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken() // move to comma
		p.nextToken() // move past comma
	}
	return items
}

func (p *Parser) parseSelectItem() Expression {
	if p.curTokenIs(lexer.TokenAsterisk) {
		return &StarExpression{}
	}
	if p.curTokenIs(lexer.TokenIdent) {
		if fn, ok := aggregateFuncs[strings.ToUpper(p.curToken.Literal)]; ok && p.peekTokenIs(lexer.TokenLeftParen) {
			return p.parseAggregateExpr(fn)
		}
	}
	return p.parseExpression(PrecedenceLowest)
}

func (p *Parser) parseAggregateExpr(fn AggregateFunc) Expression {
	agg := &AggregateExpr{Func: fn}
	p.nextToken() // (
	p.nextToken() // first token of argument (or * or DISTINCT)
	if p.curTokenIs(lexer.TokenAsterisk) {
		agg.Star = true
		if !p.expectPeek(lexer.TokenRightParen) {
			return nil
		}
		return agg
	}
	if p.curTokenIs(lexer.TokenDistinct) {
		agg.Distinct = true
		p.nextToken()
	}
	agg.Arg = p.parseExpression(PrecedenceLowest)
	if !p.expectPeek(lexer.TokenRightParen) {
		return nil
	}
	return agg
}

// parseOrderByClause parses: ORDER BY column [ASC|DESC], ...
func (p *Parser) parseOrderByClause() []OrderByClause {
	var clauses []OrderByClause

	for {
		p.nextToken()
		ref := p.parseColumnRefFromCurrent()
		if ref == nil {
			p.errors = append(p.errors, "expected column name in ORDER BY")
			return nil
		}

		clause := OrderByClause{
			Column:     ref.String(),
			Descending: false,
		}

		if p.peekTokenIs(lexer.TokenAsc) {
			p.nextToken()
		} else if p.peekTokenIs(lexer.TokenDesc) {
			p.nextToken()
			clause.Descending = true
		}

		clauses = append(clauses, clause)

		if !p.peekTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken() // consume comma
	}

	return clauses
}

// parseColumnRefFromCurrent parses an (optionally qualified) column
// reference starting at curToken, which must already be an identifier.
func (p *Parser) parseColumnRefFromCurrent() *Identifier {
	if !p.curTokenIs(lexer.TokenIdent) {
		return nil
	}
	ref := &Identifier{Name: p.curToken.Literal}
	if p.peekTokenIs(lexer.TokenDot) {
		p.nextToken() // move to .
		if !p.expectPeek(lexer.TokenIdent) {
			return nil
		}
		ref.Table = ref.Name
		ref.Name = p.curToken.Literal
	}
	return ref
}

// parseInsertStatement parses:
//
//	INSERT INTO table [(columns)] VALUES (values), (values), ...
func (p *Parser) parseInsertStatement() *InsertStatement {
	stmt := &InsertStatement{}

	if !p.expectPeek(lexer.TokenInto) {
		return nil
	}
	if !p.expectPeek(lexer.TokenIdent) {
		return nil
	}
	stmt.Table = p.curToken.Literal

	if p.peekTokenIs(lexer.TokenLeftParen) {
		p.nextToken() // move to (
		stmt.Columns = p.parseIdentifierList()
		if !p.expectPeek(lexer.TokenRightParen) {
			return nil
		}
	}

	if !p.expectPeek(lexer.TokenValues) {
		return nil
	}

	for {
		if !p.expectPeek(lexer.TokenLeftParen) {
			return nil
		}
		p.nextToken() // move past (
		row := p.parseExpressionList()
		if !p.expectPeek(lexer.TokenRightParen) {
			return nil
		}
		stmt.ValueRows = append(stmt.ValueRows, row)

		if !p.peekTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken() // consume comma
	}

	return stmt
}

// parseUpdateStatement parses: UPDATE table SET column = value, ... [WHERE condition]
func (p *Parser) parseUpdateStatement() *UpdateStatement {
	stmt := &UpdateStatement{}

	if !p.expectPeek(lexer.TokenIdent) {
		return nil
	}
	stmt.Table = p.curToken.Literal

	if !p.expectPeek(lexer.TokenSet) {
		return nil
	}

	stmt.Assignments = p.parseAssignmentList()

	if p.peekTokenIs(lexer.TokenWhere) {
		p.nextToken() // move to WHERE
		p.nextToken() // move past WHERE
		stmt.Where = p.parseExpression(PrecedenceLowest)
	}

	return stmt
}

// parseAssignmentList parses: column = value, column = value, ...
func (p *Parser) parseAssignmentList() []Assignment {
	var assignments []Assignment

	for {
		p.nextToken()
		if !p.curTokenIs(lexer.TokenIdent) {
			p.errors = append(p.errors, "expected column name")
			return nil
		}
		column := p.curToken.Literal

		if !p.expectPeek(lexer.TokenEquals) {
			return nil
		}

		p.nextToken()
		value := p.parseExpression(PrecedenceLowest)

		assignments = append(assignments, Assignment{
			Column: column,
			Value:  value,
		})

		if !p.peekTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken() // consume comma
	}

	return assignments
}

// parseDeleteStatement parses: DELETE FROM table [WHERE condition]
func (p *Parser) parseDeleteStatement() *DeleteStatement {
	stmt := &DeleteStatement{}

	if !p.expectPeek(lexer.TokenFrom) {
		return nil
	}
	if !p.expectPeek(lexer.TokenIdent) {
		return nil
	}
	stmt.Table = p.curToken.Literal

	if p.peekTokenIs(lexer.TokenWhere) {
		p.nextToken() // move to WHERE
		p.nextToken() // move past WHERE
		stmt.Where = p.parseExpression(PrecedenceLowest)
	}

	return stmt
}

// parseCreateStatement parses CREATE TABLE ... or CREATE [UNIQUE] INDEX ...
func (p *Parser) parseCreateStatement() Statement {
	if p.peekTokenIs(lexer.TokenUnique) {
		p.nextToken() // move to UNIQUE
		if !p.expectPeek(lexer.TokenIndex) {
			return nil
		}
		return p.parseCreateIndexStatement(true)
	}

	if p.peekTokenIs(lexer.TokenIndex) {
		p.nextToken() // move to INDEX
		return p.parseCreateIndexStatement(false)
	}

	if !p.expectPeek(lexer.TokenTable) {
		return nil
	}

	return p.parseCreateTableStatement()
}

// parseCreateTableStatement parses: CREATE TABLE name (column_definitions)
func (p *Parser) parseCreateTableStatement() *CreateTableStatement {
	stmt := &CreateTableStatement{}

	if !p.expectPeek(lexer.TokenIdent) {
		return nil
	}
	stmt.Table = p.curToken.Literal

	if !p.expectPeek(lexer.TokenLeftParen) {
		return nil
	}

	stmt.Columns = p.parseColumnDefinitions()

	if !p.expectPeek(lexer.TokenRightParen) {
		return nil
	}

	for _, col := range stmt.Columns {
		if col.PrimaryKey {
			stmt.PrimaryKey = col.Name
			break
		}
	}

	return stmt
}

// parseColumnDefinitions parses column definitions in CREATE TABLE.
func (p *Parser) parseColumnDefinitions() []ColumnDefinition {
	var columns []ColumnDefinition

	for {
		p.nextToken()
		if !p.curTokenIs(lexer.TokenIdent) {
			p.errors = append(p.errors, "expected column name")
			return nil
		}

		col := p.parseOneColumnDefinition()
		columns = append(columns, col)

		if !p.peekTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken() // consume comma
	}

	return columns
}

// parseOneColumnDefinition parses `name TYPE [(n)] [PRIMARY KEY] [NOT NULL]
// [UNIQUE] [DEFAULT literal]`, with curToken on the column name.
func (p *Parser) parseOneColumnDefinition() ColumnDefinition {
	col := ColumnDefinition{Name: p.curToken.Literal}

	p.nextToken()
	col.Type, col.Length = p.parseDataType()

	for {
		if p.peekTokenIs(lexer.TokenPrimaryKey) {
			p.nextToken()
			if p.peekKeywordIdent("KEY") {
				p.nextToken()
			}
			col.PrimaryKey = true
			continue
		}
		if p.peekTokenIs(lexer.TokenNot) {
			p.nextToken()
			if p.peekTokenIs(lexer.TokenNull) {
				p.nextToken()
				col.NotNull = true
			}
			continue
		}
		if p.peekTokenIs(lexer.TokenUnique) {
			p.nextToken()
			col.Unique = true
			continue
		}
		if p.peekTokenIs(lexer.TokenDefault) {
			p.nextToken() // move to DEFAULT
			p.nextToken() // move to literal
			col.Default = p.parsePrefixExpression()
			continue
		}
		break
	}

	return col
}

// parseDataType parses a SQL data type, returning its declared length for
// VARCHAR(n) (0 otherwise).
func (p *Parser) parseDataType() (DataType, uint32) {
	switch p.curToken.Type {
	case lexer.TokenInt, lexer.TokenInteger:
		return TypeInteger, 0
	case lexer.TokenBigInt:
		return TypeBigInt, 0
	case lexer.TokenReal, lexer.TokenFloat:
		return TypeReal, 0
	case lexer.TokenDouble:
		return TypeDouble, 0
	case lexer.TokenDate:
		return TypeDate, 0
	case lexer.TokenTimestamp:
		return TypeTimestamp, 0
	case lexer.TokenText:
		return TypeText, 0
	case lexer.TokenVarchar:
		var length uint32
		if p.peekTokenIs(lexer.TokenLeftParen) {
			p.nextToken() // (
			p.nextToken() // size
			if n, err := strconv.ParseUint(p.curToken.Literal, 10, 32); err == nil {
				length = uint32(n)
			}
			p.nextToken() // )
		}
		return TypeVarchar, length
	case lexer.TokenBool:
		return TypeBoolean, 0
	default:
		switch strings.ToUpper(p.curToken.Literal) {
		case "INT", "INTEGER":
			return TypeInteger, 0
		case "BIGINT":
			return TypeBigInt, 0
		case "REAL", "FLOAT":
			return TypeReal, 0
		case "DOUBLE":
			return TypeDouble, 0
		case "TEXT", "STRING":
			return TypeText, 0
		case "VARCHAR":
			return TypeVarchar, 0
		case "BOOL", "BOOLEAN":
			return TypeBoolean, 0
		case "DATE":
			return TypeDate, 0
		case "TIMESTAMP":
			return TypeTimestamp, 0
		default:
			p.errors = append(p.errors, fmt.Sprintf("unknown data type: %s", p.curToken.Literal))
			return TypeUnknown, 0
		}
	}
}

// parseCreateIndexStatement parses: CREATE [UNIQUE] INDEX name ON table (columns)
func (p *Parser) parseCreateIndexStatement(unique bool) *CreateIndexStatement {
	stmt := &CreateIndexStatement{
		Unique: unique,
	}

	if !p.expectPeek(lexer.TokenIdent) {
		return nil
	}
	stmt.IndexName = p.curToken.Literal

	if !p.expectPeek(lexer.TokenOn) {
		return nil
	}

	if !p.expectPeek(lexer.TokenIdent) {
		return nil
	}
	stmt.Table = p.curToken.Literal

	if !p.expectPeek(lexer.TokenLeftParen) {
		return nil
	}

	stmt.Columns = p.parseIndexColumnList()

	if !p.expectPeek(lexer.TokenRightParen) {
		return nil
	}

	return stmt
}

// parseIndexColumnList parses a list of column names for an index.
func (p *Parser) parseIndexColumnList() []string {
	var columns []string

	for {
		if !p.expectPeek(lexer.TokenIdent) {
			return nil
		}
		columns = append(columns, p.curToken.Literal)

		if !p.peekTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken() // consume comma
	}

	return columns
}

// parseDropStatement parses DROP TABLE ... or DROP INDEX ...
func (p *Parser) parseDropStatement() Statement {
	if p.peekTokenIs(lexer.TokenIndex) {
		p.nextToken() // move to INDEX
		return p.parseDropIndexStatement()
	}

	if !p.expectPeek(lexer.TokenTable) {
		return nil
	}

	stmt := &DropTableStatement{}

	if p.peekTokenIs(lexer.TokenIfKw) {
		p.nextToken() // move to IF
		if !p.expectPeek(lexer.TokenExists) {
			return nil
		}
		stmt.IfExists = true
	}

	if !p.expectPeek(lexer.TokenIdent) {
		return nil
	}
	stmt.Table = p.curToken.Literal

	if p.peekTokenIs(lexer.TokenCascade) {
		p.nextToken()
		stmt.Cascade = true
	}

	return stmt
}

// parseDropIndexStatement parses: DROP INDEX [IF EXISTS] name
func (p *Parser) parseDropIndexStatement() *DropIndexStatement {
	stmt := &DropIndexStatement{}

	if p.peekTokenIs(lexer.TokenIfKw) {
		p.nextToken() // move to IF
		if !p.expectPeek(lexer.TokenExists) {
			return nil
		}
		stmt.IfExists = true
	}

	if !p.expectPeek(lexer.TokenIdent) {
		return nil
	}
	stmt.IndexName = p.curToken.Literal

	return stmt
}

// parseAlterStatement parses: ALTER TABLE t ADD COLUMN ... | DROP COLUMN ...
func (p *Parser) parseAlterStatement() *AlterTableStatement {
	stmt := &AlterTableStatement{}

	if !p.expectPeek(lexer.TokenTable) {
		return nil
	}
	if !p.expectPeek(lexer.TokenIdent) {
		return nil
	}
	stmt.Table = p.curToken.Literal

	switch {
	case p.peekTokenIs(lexer.TokenAdd):
		p.nextToken() // ADD
		if p.peekTokenIs(lexer.TokenColumn) {
			p.nextToken()
		}
		if !p.expectPeek(lexer.TokenIdent) {
			return nil
		}
		col := p.parseOneColumnDefinition()
		stmt.AddColumn = &col
	case p.peekTokenIs(lexer.TokenDrop):
		p.nextToken() // DROP
		if p.peekTokenIs(lexer.TokenColumn) {
			p.nextToken()
		}
		if !p.expectPeek(lexer.TokenIdent) {
			return nil
		}
		stmt.DropColumn = p.curToken.Literal
	default:
		p.errors = append(p.errors, "expected ADD or DROP after ALTER TABLE name")
		return nil
	}

	return stmt
}

// parseTruncateStatement parses: TRUNCATE TABLE t
func (p *Parser) parseTruncateStatement() *TruncateStatement {
	stmt := &TruncateStatement{}

	if !p.expectPeek(lexer.TokenTable) {
		return nil
	}
	if !p.expectPeek(lexer.TokenIdent) {
		return nil
	}
	stmt.Table = p.curToken.Literal

	return stmt
}

// parseExplainStatement parses: EXPLAIN <statement>
func (p *Parser) parseExplainStatement() *ExplainStatement {
	stmt := &ExplainStatement{}

	p.nextToken() // move past EXPLAIN

	inner := p.parseStatement()
	if inner == nil {
		return nil
	}
	stmt.Statement = inner

	return stmt
}

// parseAnalyzeStatement parses: ANALYZE [tablename]
func (p *Parser) parseAnalyzeStatement() Statement {
	stmt := &AnalyzeStatement{}

	if p.peekTokenIs(lexer.TokenIdent) {
		p.nextToken()
		stmt.Table = p.curToken.Literal
	}

	return stmt
}

// parseIdentifierList parses: ident, ident, ident
func (p *Parser) parseIdentifierList() []string {
	var identifiers []string

	p.nextToken() // move past (
	for !p.curTokenIs(lexer.TokenRightParen) && !p.curTokenIs(lexer.TokenEOF) {
		if p.curTokenIs(lexer.TokenIdent) {
			identifiers = append(identifiers, p.curToken.Literal)
		}
		if p.peekTokenIs(lexer.TokenComma) {
			p.nextToken() // move to comma
			p.nextToken() // move past comma
		} else {
			break
		}
	}

	return identifiers
}

// parseExpressionList parses a comma-separated list of expressions.
func (p *Parser) parseExpressionList() []Expression {
	var expressions []Expression

	if p.curTokenIs(lexer.TokenAsterisk) {
		expressions = append(expressions, &StarExpression{})
		return expressions
	}

	for {
		expr := p.parseExpression(PrecedenceLowest)
		if expr != nil {
			expressions = append(expressions, expr)
		}

		if !p.peekTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken() // move to comma
		p.nextToken() // move past comma
	}

	return expressions
}

// ============================================================================
// Expression Parsing with Operator Precedence
// ============================================================================

// Precedence levels
const (
	PrecedenceLowest = iota
	PrecedenceOr          // OR
	PrecedenceAnd         // AND
	PrecedenceNot         // NOT
	PrecedenceComparison  // =, !=, <, >, <=, >=, IS [NOT] NULL
	PrecedenceAddSub      // +, -
	PrecedenceMulDiv      // *, /
	PrecedenceUnary       // -x, NOT x
	PrecedenceHighest
)

// precedences maps token types to their precedence levels.
var precedences = map[lexer.TokenType]int{
	lexer.TokenOr:             PrecedenceOr,
	lexer.TokenAnd:            PrecedenceAnd,
	lexer.TokenEquals:         PrecedenceComparison,
	lexer.TokenNotEquals:      PrecedenceComparison,
	lexer.TokenLessThan:       PrecedenceComparison,
	lexer.TokenGreaterThan:    PrecedenceComparison,
	lexer.TokenLessOrEqual:    PrecedenceComparison,
	lexer.TokenGreaterOrEqual: PrecedenceComparison,
	lexer.TokenIs:             PrecedenceComparison,
	lexer.TokenPlus:           PrecedenceAddSub,
	lexer.TokenMinus:          PrecedenceAddSub,
	lexer.TokenAsterisk:       PrecedenceMulDiv,
	lexer.TokenSlash:          PrecedenceMulDiv,
}

// peekPrecedence returns the precedence of the next token.
func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return PrecedenceLowest
}

// curPrecedence returns the precedence of the current token.
func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return PrecedenceLowest
}

// parseExpression parses an expression using Pratt parsing.
func (p *Parser) parseExpression(precedence int) Expression {
	left := p.parsePrefixExpression()
	if left == nil {
		return nil
	}

	for !p.peekTokenIs(lexer.TokenEOF) && precedence < p.peekPrecedence() {
		if p.peekTokenIs(lexer.TokenIs) {
			p.nextToken()
			left = p.parseIsNullExpression(left)
			continue
		}
		if _, ok := precedences[p.peekToken.Type]; !ok {
			return left
		}

		p.nextToken()
		left = p.parseInfixExpression(left)
	}

	return left
}

// parseIsNullExpression parses `expr IS [NOT] NULL`, with curToken on IS.
func (p *Parser) parseIsNullExpression(left Expression) Expression {
	e := &IsNullExpression{Operand: left}
	if p.peekTokenIs(lexer.TokenNot) {
		p.nextToken()
		e.Not = true
	}
	if !p.expectPeek(lexer.TokenNull) {
		return nil
	}
	return e
}

// parsePrefixExpression parses prefix expressions (literals, identifiers, unary ops).
func (p *Parser) parsePrefixExpression() Expression {
	switch p.curToken.Type {
	case lexer.TokenIdent:
		if fn, ok := aggregateFuncs[strings.ToUpper(p.curToken.Literal)]; ok && p.peekTokenIs(lexer.TokenLeftParen) {
			return p.parseAggregateExpr(fn)
		}
		return p.parseColumnRefFromCurrent()

	case lexer.TokenNumber:
		return p.parseNumberLiteral()

	case lexer.TokenString:
		return &StringLiteral{Value: p.curToken.Literal}

	case lexer.TokenBoolean:
		return &BooleanLiteral{Value: strings.ToUpper(p.curToken.Literal) == "TRUE"}

	case lexer.TokenNull:
		return &NullLiteral{}

	case lexer.TokenAsterisk:
		return &StarExpression{}

	case lexer.TokenMinus:
		return p.parseUnaryExpression(UnaryOpNegate)

	case lexer.TokenNot:
		return p.parseUnaryExpression(UnaryOpNot)

	case lexer.TokenLeftParen:
		return p.parseGroupedExpression()

	default:
		return nil
	}
}

// parseNumberLiteral parses an integer or real literal.
func (p *Parser) parseNumberLiteral() Expression {
	literal := p.curToken.Literal

	if intVal, err := strconv.ParseInt(literal, 10, 64); err == nil {
		return &IntegerLiteral{Value: intVal}
	}

	if floatVal, err := strconv.ParseFloat(literal, 64); err == nil {
		return &RealLiteral{Value: floatVal}
	}

	p.errors = append(p.errors, fmt.Sprintf("could not parse %q as number", literal))
	return nil
}

// parseUnaryExpression parses unary expressions (NOT x, -x).
func (p *Parser) parseUnaryExpression(op UnaryOp) Expression {
	p.nextToken()
	operand := p.parseExpression(PrecedenceUnary)
	return &UnaryExpression{
		Operator: op,
		Operand:  operand,
	}
}

// parseGroupedExpression parses expressions in parentheses.
func (p *Parser) parseGroupedExpression() Expression {
	p.nextToken() // consume (
	expr := p.parseExpression(PrecedenceLowest)
	if !p.expectPeek(lexer.TokenRightParen) {
		return nil
	}
	return expr
}

// parseInfixExpression parses binary expressions (a + b, a = b, etc.).
func (p *Parser) parseInfixExpression(left Expression) Expression {
	expr := &BinaryExpression{
		Left:     left,
		Operator: p.tokenToOperator(p.curToken.Type),
	}

	precedence := p.curPrecedence()
	p.nextToken()
	expr.Right = p.parseExpression(precedence)

	return expr
}

// tokenToOperator converts a token type to a binary operator.
func (p *Parser) tokenToOperator(t lexer.TokenType) BinaryOp {
	switch t {
	case lexer.TokenEquals:
		return OpEquals
	case lexer.TokenNotEquals:
		return OpNotEquals
	case lexer.TokenLessThan:
		return OpLessThan
	case lexer.TokenGreaterThan:
		return OpGreaterThan
	case lexer.TokenLessOrEqual:
		return OpLessOrEqual
	case lexer.TokenGreaterOrEqual:
		return OpGreaterOrEqual
	case lexer.TokenAnd:
		return OpAnd
	case lexer.TokenOr:
		return OpOr
	case lexer.TokenPlus:
		return OpAdd
	case lexer.TokenMinus:
		return OpSubtract
	case lexer.TokenAsterisk:
		return OpMultiply
	case lexer.TokenSlash:
		return OpDivide
	default:
		return OpUnknown
	}
}
