package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relicdb/relicdb/internal/sql/lexer"
)

func parse(t *testing.T, input string) Statement {
	t.Helper()
	l := lexer.New(input)
	p := New(l)
	stmt, err := p.Parse()
	require.NoError(t, err)
	return stmt
}

func TestParseSelect(t *testing.T) {
	tests := []struct {
		input      string
		expectCols int
		expectFrom string
	}{
		{"SELECT * FROM users", 1, "users"},
		{"SELECT name FROM users", 1, "users"},
		{"SELECT name, age FROM users", 2, "users"},
		{"SELECT id, name, age FROM people", 3, "people"},
	}

	for _, tt := range tests {
		sel, ok := parse(t, tt.input).(*SelectStatement)
		require.Truef(t, ok, "Parse(%q)", tt.input)
		assert.Lenf(t, sel.Columns, tt.expectCols, "Parse(%q)", tt.input)
		assert.Equalf(t, tt.expectFrom, sel.From, "Parse(%q)", tt.input)
	}
}

func TestParseSelectDistinct(t *testing.T) {
	sel := parse(t, "SELECT DISTINCT name FROM users").(*SelectStatement)
	assert.True(t, sel.Distinct)
}

func TestParseSelectWithAlias(t *testing.T) {
	sel := parse(t, "SELECT u.name FROM users u").(*SelectStatement)
	assert.Equal(t, "u", sel.FromAlias)
	ident, ok := sel.Columns[0].(*Identifier)
	require.True(t, ok)
	assert.Equal(t, "u", ident.Table)
	assert.Equal(t, "name", ident.Name)
}

func TestParseSelectJoin(t *testing.T) {
	input := "SELECT o.id, c.name FROM orders o JOIN customers c ON o.customer_id = c.id"
	sel := parse(t, input).(*SelectStatement)
	require.Len(t, sel.Joins, 1)
	assert.Equal(t, "customers", sel.Joins[0].Table)
	assert.Equal(t, "c", sel.Joins[0].Alias)
	require.NotNil(t, sel.Joins[0].On)
	binExpr, ok := sel.Joins[0].On.(*BinaryExpression)
	require.True(t, ok)
	assert.Equal(t, OpEquals, binExpr.Operator)
}

func TestParseSelectAggregate(t *testing.T) {
	sel := parse(t, "SELECT COUNT(*) FROM orders").(*SelectStatement)
	agg, ok := sel.Columns[0].(*AggregateExpr)
	require.True(t, ok)
	assert.True(t, agg.Star)
	assert.Equal(t, AggCount, agg.Func)

	sel = parse(t, "SELECT SUM(DISTINCT amount) FROM orders").(*SelectStatement)
	agg, ok = sel.Columns[0].(*AggregateExpr)
	require.True(t, ok)
	assert.Equal(t, AggSum, agg.Func)
	assert.True(t, agg.Distinct)
	ident, ok := agg.Arg.(*Identifier)
	require.True(t, ok)
	assert.Equal(t, "amount", ident.Name)
}

func TestParseSelectIsNull(t *testing.T) {
	sel := parse(t, "SELECT * FROM users WHERE email IS NOT NULL").(*SelectStatement)
	isNull, ok := sel.Where.(*IsNullExpression)
	require.True(t, ok)
	assert.True(t, isNull.Not)
}

func TestParseSelectWithWhere(t *testing.T) {
	sel := parse(t, "SELECT name FROM users WHERE age > 18").(*SelectStatement)
	require.NotNil(t, sel.Where)
	binExpr, ok := sel.Where.(*BinaryExpression)
	require.True(t, ok)
	assert.Equal(t, OpGreaterThan, binExpr.Operator)
}

func TestParseSelectOrderBy(t *testing.T) {
	sel := parse(t, "SELECT * FROM users ORDER BY name DESC, age ASC").(*SelectStatement)
	require.Len(t, sel.OrderBy, 2)
	assert.Equal(t, "name", sel.OrderBy[0].Column)
	assert.True(t, sel.OrderBy[0].Descending)
	assert.Equal(t, "age", sel.OrderBy[1].Column)
	assert.False(t, sel.OrderBy[1].Descending)
}

func TestParseSelectLimit(t *testing.T) {
	sel := parse(t, "SELECT * FROM users LIMIT 10 OFFSET 5").(*SelectStatement)
	require.NotNil(t, sel.Limit)
	assert.Equal(t, 10, *sel.Limit)
	require.NotNil(t, sel.Offset)
	assert.Equal(t, 5, *sel.Offset)
}

func TestParseInsertSingleRow(t *testing.T) {
	ins := parse(t, "INSERT INTO users (name, age) VALUES ('Alice', 30)").(*InsertStatement)
	assert.Equal(t, "users", ins.Table)
	require.Len(t, ins.Columns, 2)
	require.Len(t, ins.ValueRows, 1)
	require.Len(t, ins.ValueRows[0], 2)

	strVal, ok := ins.ValueRows[0][0].(*StringLiteral)
	require.True(t, ok)
	assert.Equal(t, "Alice", strVal.Value)

	intVal, ok := ins.ValueRows[0][1].(*IntegerLiteral)
	require.True(t, ok)
	assert.Equal(t, int64(30), intVal.Value)
}

func TestParseInsertMultiRow(t *testing.T) {
	input := "INSERT INTO users (name, age) VALUES ('Alice', 30), ('Bob', 40)"
	ins := parse(t, input).(*InsertStatement)
	require.Len(t, ins.ValueRows, 2)

	row1name := ins.ValueRows[0][0].(*StringLiteral)
	assert.Equal(t, "Alice", row1name.Value)
	row2name := ins.ValueRows[1][0].(*StringLiteral)
	assert.Equal(t, "Bob", row2name.Value)
}

func TestParseCreateTable(t *testing.T) {
	input := "CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR(32) NOT NULL, age INTEGER DEFAULT 0)"
	create := parse(t, input).(*CreateTableStatement)

	assert.Equal(t, "users", create.Table)
	require.Len(t, create.Columns, 3)

	assert.Equal(t, "id", create.Columns[0].Name)
	assert.Equal(t, TypeInteger, create.Columns[0].Type)
	assert.True(t, create.Columns[0].PrimaryKey)
	assert.Equal(t, "users", create.Table)
	assert.Equal(t, "id", create.PrimaryKey)

	assert.Equal(t, TypeVarchar, create.Columns[1].Type)
	assert.Equal(t, uint32(32), create.Columns[1].Length)
	assert.True(t, create.Columns[1].NotNull)

	require.NotNil(t, create.Columns[2].Default)
	defLit, ok := create.Columns[2].Default.(*IntegerLiteral)
	require.True(t, ok)
	assert.Equal(t, int64(0), defLit.Value)
}

func TestParseCreateIndex(t *testing.T) {
	idx := parse(t, "CREATE UNIQUE INDEX users_email ON users(email)").(*CreateIndexStatement)
	assert.Equal(t, "users_email", idx.IndexName)
	assert.Equal(t, "users", idx.Table)
	assert.Equal(t, []string{"email"}, idx.Columns)
	assert.True(t, idx.Unique)
}

func TestParseDropIndexIfExists(t *testing.T) {
	drop := parse(t, "DROP INDEX IF EXISTS users_email").(*DropIndexStatement)
	assert.Equal(t, "users_email", drop.IndexName)
	assert.True(t, drop.IfExists)
}

func TestParseAlterTableAddColumn(t *testing.T) {
	alter := parse(t, "ALTER TABLE users ADD COLUMN nickname TEXT").(*AlterTableStatement)
	assert.Equal(t, "users", alter.Table)
	require.NotNil(t, alter.AddColumn)
	assert.Equal(t, "nickname", alter.AddColumn.Name)
	assert.Equal(t, TypeText, alter.AddColumn.Type)
}

func TestParseAlterTableDropColumn(t *testing.T) {
	alter := parse(t, "ALTER TABLE users DROP COLUMN nickname").(*AlterTableStatement)
	assert.Equal(t, "users", alter.Table)
	assert.Equal(t, "nickname", alter.DropColumn)
}

func TestParseTruncate(t *testing.T) {
	trunc := parse(t, "TRUNCATE TABLE users").(*TruncateStatement)
	assert.Equal(t, "users", trunc.Table)
}

func TestParseUpdate(t *testing.T) {
	upd := parse(t, "UPDATE users SET age = 31 WHERE name = 'Alice'").(*UpdateStatement)
	assert.Equal(t, "users", upd.Table)
	require.Len(t, upd.Assignments, 1)
	assert.Equal(t, "age", upd.Assignments[0].Column)
	assert.NotNil(t, upd.Where)
}

func TestParseDelete(t *testing.T) {
	del := parse(t, "DELETE FROM users WHERE age < 18").(*DeleteStatement)
	assert.Equal(t, "users", del.Table)
	assert.NotNil(t, del.Where)
}

func TestParseDropTableIfExistsCascade(t *testing.T) {
	drop := parse(t, "DROP TABLE IF EXISTS users CASCADE").(*DropTableStatement)
	assert.Equal(t, "users", drop.Table)
	assert.True(t, drop.IfExists)
	assert.True(t, drop.Cascade)
}

func TestParseExpressionPrecedence(t *testing.T) {
	sel := parse(t, "SELECT * FROM t WHERE x = 1 + 2 * 3").(*SelectStatement)
	binExpr := sel.Where.(*BinaryExpression)

	assert.Equal(t, OpEquals, binExpr.Operator)

	addExpr, ok := binExpr.Right.(*BinaryExpression)
	require.True(t, ok)
	assert.Equal(t, OpAdd, addExpr.Operator)

	mulExpr, ok := addExpr.Right.(*BinaryExpression)
	require.True(t, ok)
	assert.Equal(t, OpMultiply, mulExpr.Operator)
}

func TestParseComplexWhere(t *testing.T) {
	input := "SELECT * FROM users WHERE age >= 18 AND (name = 'Alice' OR name = 'Bob')"
	sel := parse(t, input).(*SelectStatement)
	require.NotNil(t, sel.Where)

	andExpr, ok := sel.Where.(*BinaryExpression)
	require.True(t, ok)
	assert.Equal(t, OpAnd, andExpr.Operator)
}

func TestParseExplain(t *testing.T) {
	exp := parse(t, "EXPLAIN SELECT * FROM users").(*ExplainStatement)
	_, ok := exp.Statement.(*SelectStatement)
	assert.True(t, ok)
}
