package oql

import (
	"regexp"
	"strings"
	"unicode"
)

// Query is a parsed OQL statement: either a select query or a plain script.
type Query struct {
	Source string
	// From is nil for select queries without a from clause and for scripts.
	From *FromClause

	projection expr
	where      expr
	script     []stmt
}

// FromClause binds a variable over the instances of a class.
type FromClause struct {
	ClassName  string
	InstanceOf bool
	Binding    string
}

// IsSelect reports whether the query is a select statement.
func (q *Query) IsSelect() bool { return q.projection != nil }

var keywords = map[string]bool{
	"var": true, "let": true, "const": true, "if": true, "else": true, "for": true,
	"while": true, "break": true, "continue": true, "return": true, "function": true,
	"true": true, "false": true, "null": true, "typeof": true, "throw": true,
	"try": true, "catch": true, "in": true,
}

var (
	primitiveArrayAlias = regexp.MustCompile(`^\[[ZBCSIJFD]$`)
	descriptorArray     = regexp.MustCompile(`^\[L[\w$]+(?:[./][\w$]+)*;$`)
	shortArray          = regexp.MustCompile(`^\[[\w$]+(?:\.[\w$]+)*$`)
	plainClass          = regexp.MustCompile(`^[\w$]+(?:\.[\w$]+)*(?:\[\])*$`)
)

// Parse parses an OQL query. Queries starting with "select" are select
// statements; anything else is parsed as a script.
func Parse(src string) (q *Query, err error) {
	defer recoverParse(&err)

	q = &Query{Source: src}
	start := len(src) - len(strings.TrimLeftFunc(src, unicode.IsSpace))
	if hasKeywordAt(src, start, "select") {
		parseSelect(q, start+len("select"))
		return q, nil
	}
	p := newParser(src, start)
	q.script = p.parseProgram()
	return q, nil
}

// parseExpressionSource compiles a callback expression such as 'it.size > 10'.
func parseExpressionSource(src string) (x expr, err error) {
	defer recoverParse(&err)
	p := newParser(src, 0)
	x = p.parseExpression()
	p.accept(";")
	p.expectEOF()
	return x, nil
}

type bailout struct{ err *ParseError }

func recoverParse(errp *error) {
	if r := recover(); r != nil {
		b, ok := r.(bailout)
		if !ok {
			panic(r)
		}
		*errp = b.err
	}
}

func hasKeywordAt(src string, pos int, kw string) bool {
	if len(src)-pos < len(kw) || !strings.EqualFold(src[pos:pos+len(kw)], kw) {
		return false
	}
	rest := src[pos+len(kw):]
	return rest == "" || !isIdentPart(rune(rest[0]))
}

func parseSelect(q *Query, pos int) {
	src := q.Source
	p := newParser(src, pos)
	q.projection = p.parseExpression()

	if p.tok.kind == tokIdent && strings.EqualFold(p.tok.text, "from") {
		parseFrom(q, p.tok.pos+len("from"))
		return
	}
	p.accept(";")
	p.expectEOF()
}

func parseFrom(q *Query, pos int) {
	src := q.Source
	fc := &FromClause{}

	word, wordPos, next := scanWord(src, pos)
	if strings.EqualFold(word, "instanceof") {
		fc.InstanceOf = true
		word, wordPos, next = scanWord(src, next)
	}
	if word == "" {
		fail(src, wordPos, "class name expected after from")
	}
	if strings.HasPrefix(word, "[[") {
		fail(src, wordPos, "multi-dimensional array type %s is not supported", word)
	}
	if !primitiveArrayAlias.MatchString(word) && !descriptorArray.MatchString(word) &&
		!shortArray.MatchString(word) && !plainClass.MatchString(word) {
		fail(src, wordPos, "invalid class name %q", word)
	}
	fc.ClassName = word

	word, wordPos, next = scanWord(src, next)
	if !isIdentifier(word) || strings.EqualFold(word, "where") {
		fail(src, wordPos, "identifier expected after class name, found %q", word)
	}
	fc.Binding = word
	q.From = fc

	word, wordPos, next = scanWord(src, next)
	switch {
	case word == "" || word == ";":
		return
	case hasKeywordAt(src, wordPos, "where"):
		p := newParser(src, wordPos+len("where"))
		q.where = p.parseExpression()
		p.accept(";")
		p.expectEOF()
	default:
		fail(src, wordPos, "where expected, found %q", word)
	}
}

// scanWord returns the next run of non-space characters.
func scanWord(src string, pos int) (string, int, int) {
	for pos < len(src) && unicode.IsSpace(rune(src[pos])) {
		pos++
	}
	start := pos
	for pos < len(src) && !unicode.IsSpace(rune(src[pos])) {
		pos++
	}
	return src[start:pos], start, pos
}

func isIdentifier(s string) bool {
	if s == "" || keywords[s] {
		return false
	}
	for i, r := range s {
		if i == 0 && !isIdentStart(r) || !isIdentPart(r) {
			return false
		}
	}
	return true
}

func fail(src string, pos int, format string, args ...interface{}) {
	l := &lexer{src: src}
	panic(bailout{l.errorf(pos, format, args...)})
}

type parser struct {
	lx  *lexer
	tok token
}

func newParser(src string, start int) *parser {
	p := &parser{lx: newLexer(src, start)}
	p.advance()
	return p
}

func (p *parser) advance() {
	t, err := p.lx.next()
	if err != nil {
		panic(bailout{err.(*ParseError)})
	}
	p.tok = t
}

func (p *parser) errorf(format string, args ...interface{}) {
	panic(bailout{p.lx.errorf(p.tok.pos, format, args...)})
}

func (p *parser) accept(text string) bool {
	if p.tok.kind != tokString && p.tok.kind != tokNumber && p.tok.text == text {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expect(text string) {
	if !p.accept(text) {
		p.errorf("expected '%s', found %s", text, p.tok)
	}
}

func (p *parser) expectEOF() {
	if p.tok.kind != tokEOF {
		p.errorf("unexpected %s", p.tok)
	}
}

func (p *parser) ident() string {
	if p.tok.kind != tokIdent || keywords[p.tok.text] {
		p.errorf("identifier expected, found %s", p.tok)
	}
	name := p.tok.text
	p.advance()
	return name
}

// peek returns the token after the current one without consuming anything.
func (p *parser) peek() token {
	saved := *p.lx
	t, err := p.lx.next()
	*p.lx = saved
	if err != nil {
		return token{kind: tokEOF}
	}
	return t
}

func (p *parser) parseProgram() []stmt {
	var body []stmt
	for p.tok.kind != tokEOF {
		body = append(body, p.parseStatement())
	}
	return body
}

func (p *parser) parseBlock() *blockStmt {
	p.expect("{")
	b := &blockStmt{}
	for !p.tok.is("}") {
		if p.tok.kind == tokEOF {
			p.errorf("expected '}', found end of input")
		}
		b.body = append(b.body, p.parseStatement())
	}
	p.advance()
	return b
}

func (p *parser) endStatement() {
	p.accept(";")
}

func (p *parser) parseStatement() stmt {
	t := p.tok
	if t.kind == tokPunct {
		switch t.text {
		case "{":
			return p.parseBlock()
		case ";":
			p.advance()
			return &emptyStmt{}
		}
	}
	if t.kind == tokIdent {
		switch t.text {
		case "var", "let", "const":
			p.advance()
			d := p.parseVarDecl()
			p.endStatement()
			return d
		case "if":
			return p.parseIf()
		case "for":
			return p.parseFor()
		case "while":
			p.advance()
			p.expect("(")
			test := p.parseExpression()
			p.expect(")")
			return &whileStmt{test: test, body: p.parseStatement()}
		case "break":
			p.advance()
			p.endStatement()
			return &breakStmt{}
		case "continue":
			p.advance()
			p.endStatement()
			return &continueStmt{}
		case "return":
			p.advance()
			r := &returnStmt{}
			if !p.tok.is(";") && !p.tok.is("}") && p.tok.kind != tokEOF {
				r.x = p.parseExpression()
			}
			p.endStatement()
			return r
		case "throw":
			p.advance()
			x := p.parseExpression()
			p.endStatement()
			return &throwStmt{x: x}
		case "try":
			p.advance()
			s := &tryStmt{body: p.parseBlock()}
			if !p.tok.is("catch") {
				p.errorf("expected 'catch', found %s", p.tok)
			}
			p.advance()
			p.expect("(")
			s.param = p.ident()
			p.expect(")")
			s.handler = p.parseBlock()
			return s
		case "function":
			if next := p.peek(); next.kind == tokIdent {
				p.advance()
				return &funcDecl{fn: p.parseFunction()}
			}
		}
	}
	x := p.parseExpression()
	p.endStatement()
	return &exprStmt{x: x}
}

func (p *parser) parseVarDecl() *varDecl {
	d := &varDecl{}
	for {
		d.names = append(d.names, p.ident())
		var init expr
		if p.accept("=") {
			init = p.parseAssign()
		}
		d.inits = append(d.inits, init)
		if !p.accept(",") {
			return d
		}
	}
}

func (p *parser) parseIf() stmt {
	p.advance()
	p.expect("(")
	s := &ifStmt{test: p.parseExpression()}
	p.expect(")")
	s.then = p.parseStatement()
	if p.tok.is("else") {
		p.advance()
		s.els = p.parseStatement()
	}
	return s
}

func (p *parser) parseFor() stmt {
	p.advance()
	p.expect("(")

	declared := false
	if p.tok.is("var") || p.tok.is("let") || p.tok.is("const") {
		declared = true
		p.advance()
	}
	if p.tok.kind == tokIdent {
		if next := p.peek(); next.is("in") || next.is("of") {
			name := p.ident()
			of := p.tok.is("of")
			p.advance()
			obj := p.parseExpression()
			p.expect(")")
			return &forInStmt{name: name, of: of, obj: obj, body: p.parseStatement()}
		}
	}

	s := &forStmt{}
	if declared {
		s.init = p.parseVarDecl()
	} else if !p.tok.is(";") {
		s.init = &exprStmt{x: p.parseExpression()}
	}
	p.expect(";")
	if !p.tok.is(";") {
		s.test = p.parseExpression()
	}
	p.expect(";")
	if !p.tok.is(")") {
		s.update = p.parseExpression()
	}
	p.expect(")")
	s.body = p.parseStatement()
	return s
}

// parseFunction parses an optional name, parameter list and body; the
// "function" keyword has been consumed.
func (p *parser) parseFunction() *funcLit {
	fn := &funcLit{}
	if p.tok.kind == tokIdent && !p.tok.is("(") {
		fn.name = p.ident()
	}
	p.expect("(")
	for !p.tok.is(")") {
		fn.params = append(fn.params, p.ident())
		if !p.accept(",") {
			break
		}
	}
	p.expect(")")
	fn.body = p.parseBlock().body
	return fn
}

func (p *parser) parseExpression() expr {
	return p.parseAssign()
}

var assignOps = map[string]bool{"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true}

func (p *parser) parseAssign() expr {
	left := p.parseConditional()
	if p.tok.kind == tokPunct && assignOps[p.tok.text] {
		op := p.tok.text
		switch left.(type) {
		case *ident, *memberExpr, *indexExpr:
		default:
			p.errorf("invalid assignment target")
		}
		p.advance()
		return &assignExpr{op: op, target: left, value: p.parseAssign()}
	}
	return left
}

func (p *parser) parseConditional() expr {
	test := p.parseLogical("||")
	if !p.accept("?") {
		return test
	}
	then := p.parseAssign()
	p.expect(":")
	return &condExpr{test: test, then: then, els: p.parseAssign()}
}

func (p *parser) parseLogical(op string) expr {
	next := func() expr { return p.parseLogical("&&") }
	if op == "&&" {
		next = p.parseEquality
	}
	left := next()
	for p.tok.kind == tokPunct && p.tok.text == op {
		p.advance()
		left = &logicalExpr{op: op, l: left, r: next()}
	}
	return left
}

func (p *parser) parseBinaryLevel(ops map[string]bool, next func() expr) expr {
	left := next()
	for p.tok.kind == tokPunct && ops[p.tok.text] {
		op := p.tok.text
		p.advance()
		left = &binaryExpr{op: op, l: left, r: next()}
	}
	return left
}

var (
	equalityOps       = map[string]bool{"==": true, "!=": true, "===": true, "!==": true}
	relationalOps     = map[string]bool{"<": true, "<=": true, ">": true, ">=": true}
	additiveOps       = map[string]bool{"+": true, "-": true}
	multiplicativeOps = map[string]bool{"*": true, "/": true, "%": true}
)

func (p *parser) parseEquality() expr {
	return p.parseBinaryLevel(equalityOps, p.parseRelational)
}

func (p *parser) parseRelational() expr {
	return p.parseBinaryLevel(relationalOps, p.parseAdditive)
}

func (p *parser) parseAdditive() expr {
	return p.parseBinaryLevel(additiveOps, p.parseMultiplicative)
}

func (p *parser) parseMultiplicative() expr {
	return p.parseBinaryLevel(multiplicativeOps, p.parseUnary)
}

func (p *parser) parseUnary() expr {
	t := p.tok
	switch {
	case t.kind == tokPunct && (t.text == "!" || t.text == "-" || t.text == "+"):
		p.advance()
		return &unaryExpr{op: t.text, x: p.parseUnary()}
	case t.is("typeof"):
		p.advance()
		return &unaryExpr{op: "typeof", x: p.parseUnary()}
	case t.kind == tokPunct && (t.text == "++" || t.text == "--"):
		p.advance()
		return &updateExpr{op: t.text, prefix: true, target: p.parseUnary()}
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() expr {
	x := p.parseCallMember()
	if p.tok.kind == tokPunct && (p.tok.text == "++" || p.tok.text == "--") {
		switch x.(type) {
		case *ident, *memberExpr, *indexExpr:
			op := p.tok.text
			p.advance()
			return &updateExpr{op: op, target: x}
		}
	}
	return x
}

func (p *parser) parseCallMember() expr {
	x := p.parsePrimary()
	for {
		switch {
		case p.tok.is("."):
			p.advance()
			if p.tok.kind != tokIdent {
				p.errorf("property name expected, found %s", p.tok)
			}
			x = &memberExpr{obj: x, name: p.tok.text}
			p.advance()
		case p.tok.is("["):
			p.advance()
			key := p.parseExpression()
			p.expect("]")
			x = &indexExpr{obj: x, key: key}
		case p.tok.is("("):
			p.advance()
			call := &callExpr{callee: x}
			for !p.tok.is(")") {
				call.args = append(call.args, p.parseAssign())
				if !p.accept(",") {
					break
				}
			}
			p.expect(")")
			x = call
		default:
			return x
		}
	}
}

func (p *parser) parsePrimary() expr {
	t := p.tok
	switch t.kind {
	case tokNumber:
		p.advance()
		return &numberLit{value: t.num}
	case tokString:
		p.advance()
		return &stringLit{value: t.text}
	case tokIdent:
		switch t.text {
		case "true", "false":
			p.advance()
			return &boolLit{value: t.text == "true"}
		case "null":
			p.advance()
			return &nullLit{}
		case "function":
			p.advance()
			return p.parseFunction()
		}
		if keywords[t.text] {
			p.errorf("unexpected %s", t)
		}
		p.advance()
		return &ident{name: t.text}
	case tokPunct:
		switch t.text {
		case "(":
			p.advance()
			x := p.parseExpression()
			p.expect(")")
			return x
		case "[":
			p.advance()
			arr := &arrayLit{}
			for !p.tok.is("]") {
				arr.elems = append(arr.elems, p.parseAssign())
				if !p.accept(",") {
					break
				}
			}
			p.expect("]")
			return arr
		case "{":
			return p.parseObjectLiteral()
		}
	}
	p.errorf("unexpected %s", t)
	return nil
}

func (p *parser) parseObjectLiteral() expr {
	p.expect("{")
	obj := &objectLit{}
	for !p.tok.is("}") {
		var key string
		switch p.tok.kind {
		case tokIdent, tokString:
			key = p.tok.text
		case tokNumber:
			key = formatNumber(p.tok.num)
		default:
			p.errorf("property name expected, found %s", p.tok)
		}
		p.advance()
		p.expect(":")
		obj.keys = append(obj.keys, key)
		obj.values = append(obj.values, p.parseAssign())
		if !p.accept(",") {
			break
		}
	}
	p.expect("}")
	return obj
}
