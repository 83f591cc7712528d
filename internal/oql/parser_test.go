package oql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Select(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		class      string
		instanceOf bool
		binding    string
		hasWhere   bool
	}{
		{"plain", "select s from java.lang.String s", "java.lang.String", false, "s", false},
		{"where", "select s from java.lang.String s where s.count > 100", "java.lang.String", false, "s", true},
		{"instanceof", "select c from instanceof java.lang.ClassLoader c", "java.lang.ClassLoader", true, "c", false},
		{"upper case keywords", "SELECT s FROM java.lang.String s WHERE s.count > 0", "java.lang.String", false, "s", true},
		{"inner class", "select e from java.util.HashMap$Entry e", "java.util.HashMap$Entry", false, "e", false},
		{"array suffix", "select a from java.lang.Object[] a", "java.lang.Object[]", false, "a", false},
		{"descriptor array", "select a from [Ljava/lang/Object; a", "[Ljava/lang/Object;", false, "a", false},
		{"short array", "select a from [java.lang.String a", "[java.lang.String", false, "a", false},
		{"trailing semicolon", "select s from java.lang.String s where s.count > 0;", "java.lang.String", false, "s", true},
		{"multiline", "select {\n  n: s.count\n}\nfrom java.lang.String s\nwhere s.count > 0", "java.lang.String", false, "s", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Parse(tt.query)
			require.NoError(t, err)
			require.True(t, q.IsSelect())
			require.NotNil(t, q.From)
			assert.Equal(t, tt.class, q.From.ClassName)
			assert.Equal(t, tt.instanceOf, q.From.InstanceOf)
			assert.Equal(t, tt.binding, q.From.Binding)
			assert.Equal(t, tt.hasWhere, q.where != nil)
		})
	}
}

func TestParse_PrimitiveArrayAliases(t *testing.T) {
	for _, alias := range []string{"[I", "[B", "[C", "[S", "[J", "[F", "[Z", "[D"} {
		t.Run(alias, func(t *testing.T) {
			q, err := Parse("select a from " + alias + " a where a.length > 1")
			require.NoError(t, err)
			assert.Equal(t, alias, q.From.ClassName)
		})
	}
}

func TestParse_SelectWithoutFrom(t *testing.T) {
	q, err := Parse("select heap.findClass('java.io.File')")
	require.NoError(t, err)
	assert.True(t, q.IsSelect())
	assert.Nil(t, q.From)

	q, err = Parse("select  1 + 2 ;")
	require.NoError(t, err)
	assert.Nil(t, q.From)
}

func TestParse_Script(t *testing.T) {
	q, err := Parse(`
		function fact(n) { return n <= 1 ? 1 : n * fact(n - 1); }
		var xs = [];
		for (var i = 0; i < 3; i++) { xs.push(fact(i + 1)); }
		xs`)
	require.NoError(t, err)
	assert.False(t, q.IsSelect())
	assert.Nil(t, q.From)
	assert.Len(t, q.script, 4)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"nested array", "select a from [[I a"},
		{"missing binding", "select s from java.lang.String"},
		{"keyword binding", "select s from java.lang.String where"},
		{"missing class", "select s from"},
		{"bad class token", "select s from java..String s"},
		{"misspelled where", "select s from java.lang.String s wher s.count > 1"},
		{"incomplete where", "select s from java.lang.String s where s.count >"},
		{"trailing garbage", "select s from java.lang.String s where s.count > 1 2"},
		{"unbalanced projection", "select (1 + 2"},
		{"script syntax", "var = 3"},
		{"unterminated string", `select "abc`},
		{"bad object literal", "select { a 1 }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.query)
			var pe *ParseError
			require.ErrorAs(t, err, &pe, "query %q", tt.query)
			assert.NotEmpty(t, pe.Msg)
		})
	}
}

func TestParseExpressionSource(t *testing.T) {
	x, err := parseExpressionSource("it.count > 10 && index < 3;")
	require.NoError(t, err)
	assert.NotNil(t, x)

	_, err = parseExpressionSource("it.count > 10 extra")
	var pe *ParseError
	assert.ErrorAs(t, err, &pe)
}
