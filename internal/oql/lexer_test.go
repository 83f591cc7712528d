package oql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexAll(t *testing.T, src string) []token {
	t.Helper()
	l := newLexer(src, 0)
	var toks []token
	for {
		tok, err := l.next()
		require.NoError(t, err)
		if tok.kind == tokEOF {
			return toks
		}
		toks = append(toks, tok)
	}
}

func TestLexer_Tokens(t *testing.T) {
	toks := lexAll(t, `s.count >= 0x1F && name !== 'a\'b' // trailing`)

	var texts []string
	for _, tok := range toks {
		texts = append(texts, tok.text)
	}
	assert.Equal(t, []string{"s", ".", "count", ">=", "0x1F", "&&", "name", "!==", "a'b"}, texts)
	assert.Equal(t, tokNumber, toks[4].kind)
	assert.Equal(t, float64(31), toks[4].num)
	assert.Equal(t, tokString, toks[8].kind)
	assert.Equal(t, 2, toks[2].pos)
}

func TestLexer_Numbers(t *testing.T) {
	tests := []struct {
		src  string
		want float64
	}{
		{"42", 42},
		{"3.25", 3.25},
		{".5", 0.5},
		{"1e3", 1000},
		{"2E-1", 0.2},
		{"0xff", 255},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			toks := lexAll(t, tt.src)
			require.Len(t, toks, 1)
			assert.Equal(t, tt.want, toks[0].num)
		})
	}
}

func TestLexer_StringEscapes(t *testing.T) {
	toks := lexAll(t, `"tab\there\nAB"`)
	require.Len(t, toks, 1)
	assert.Equal(t, "tab\there\nAB", toks[0].text)
}

func TestLexer_Comments(t *testing.T) {
	toks := lexAll(t, "a /* block\ncomment */ + // line\n b")
	require.Len(t, toks, 3)
	assert.Equal(t, "b", toks[2].text)
}

func TestLexer_Errors(t *testing.T) {
	for _, src := range []string{`"open`, `'line` + "\n'", "/* open", "a # b", `"\u12"`} {
		t.Run(src, func(t *testing.T) {
			l := newLexer(src, 0)
			var err error
			for err == nil {
				var tok token
				tok, err = l.next()
				if tok.kind == tokEOF && err == nil {
					break
				}
			}
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, 1, pe.Line)
		})
	}
}

func TestParseError_Position(t *testing.T) {
	err := newParseError("select x\nfrom ?", 14, "invalid class name")
	assert.Equal(t, 2, err.Line)
	assert.Equal(t, 6, err.Column)
	assert.Equal(t, "2:6: invalid class name", err.Error())
}
