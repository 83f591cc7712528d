package oql

// expr is an expression node of the script language.
type expr interface{ exprNode() }

// stmt is a statement node of the script language.
type stmt interface{ stmtNode() }

type (
	numberLit struct{ value float64 }
	stringLit struct{ value string }
	boolLit   struct{ value bool }
	nullLit   struct{}

	ident struct{ name string }

	arrayLit struct{ elems []expr }

	objectLit struct {
		keys   []string
		values []expr
	}

	funcLit struct {
		name   string
		params []string
		body   []stmt
	}

	unaryExpr struct {
		op string // "!", "-", "+", "typeof"
		x  expr
	}

	updateExpr struct {
		op     string // "++" or "--"
		prefix bool
		target expr
	}

	binaryExpr struct {
		op   string
		l, r expr
	}

	logicalExpr struct {
		op   string // "&&" or "||"
		l, r expr
	}

	condExpr struct {
		test, then, els expr
	}

	assignExpr struct {
		op     string // "=", "+=", ...
		target expr
		value  expr
	}

	memberExpr struct {
		obj  expr
		name string
	}

	indexExpr struct {
		obj, key expr
	}

	callExpr struct {
		callee expr
		args   []expr
	}
)

func (*numberLit) exprNode()   {}
func (*stringLit) exprNode()   {}
func (*boolLit) exprNode()     {}
func (*nullLit) exprNode()     {}
func (*ident) exprNode()       {}
func (*arrayLit) exprNode()    {}
func (*objectLit) exprNode()   {}
func (*funcLit) exprNode()     {}
func (*unaryExpr) exprNode()   {}
func (*updateExpr) exprNode()  {}
func (*binaryExpr) exprNode()  {}
func (*logicalExpr) exprNode() {}
func (*condExpr) exprNode()    {}
func (*assignExpr) exprNode()  {}
func (*memberExpr) exprNode()  {}
func (*indexExpr) exprNode()   {}
func (*callExpr) exprNode()    {}

type (
	exprStmt struct{ x expr }

	varDecl struct {
		names []string
		inits []expr // nil entries for declarations without initializer
	}

	blockStmt struct{ body []stmt }

	ifStmt struct {
		test expr
		then stmt
		els  stmt
	}

	forStmt struct {
		init   stmt
		test   expr
		update expr
		body   stmt
	}

	// forInStmt covers both "for (x in o)" (keys) and "for (x of o)" (values).
	forInStmt struct {
		name string
		of   bool
		obj  expr
		body stmt
	}

	whileStmt struct {
		test expr
		body stmt
	}

	breakStmt    struct{}
	continueStmt struct{}
	returnStmt   struct{ x expr }
	funcDecl     struct{ fn *funcLit }
	throwStmt    struct{ x expr }

	tryStmt struct {
		body    *blockStmt
		param   string
		handler *blockStmt
	}

	emptyStmt struct{}
)

func (*exprStmt) stmtNode()     {}
func (*varDecl) stmtNode()      {}
func (*blockStmt) stmtNode()    {}
func (*ifStmt) stmtNode()       {}
func (*forStmt) stmtNode()      {}
func (*forInStmt) stmtNode()    {}
func (*whileStmt) stmtNode()    {}
func (*breakStmt) stmtNode()    {}
func (*continueStmt) stmtNode() {}
func (*returnStmt) stmtNode()   {}
func (*funcDecl) stmtNode()     {}
func (*throwStmt) stmtNode()    {}
func (*tryStmt) stmtNode()      {}
func (*emptyStmt) stmtNode()    {}

// mentions reports whether name is referenced anywhere below node, which is
// an expr, a stmt or nil. Nested functions count, even if they shadow name.
func mentions(node interface{}, name string) bool {
	either := func(nodes ...interface{}) bool {
		for _, n := range nodes {
			if mentions(n, name) {
				return true
			}
		}
		return false
	}
	switch n := node.(type) {
	case *ident:
		return n.name == name
	case *arrayLit:
		for _, e := range n.elems {
			if mentions(e, name) {
				return true
			}
		}
	case *objectLit:
		for _, v := range n.values {
			if mentions(v, name) {
				return true
			}
		}
	case *funcLit:
		for _, s := range n.body {
			if mentions(s, name) {
				return true
			}
		}
	case *unaryExpr:
		return mentions(n.x, name)
	case *updateExpr:
		return mentions(n.target, name)
	case *binaryExpr:
		return either(n.l, n.r)
	case *logicalExpr:
		return either(n.l, n.r)
	case *condExpr:
		return either(n.test, n.then, n.els)
	case *assignExpr:
		return either(n.target, n.value)
	case *memberExpr:
		return mentions(n.obj, name)
	case *indexExpr:
		return either(n.obj, n.key)
	case *callExpr:
		if mentions(n.callee, name) {
			return true
		}
		for _, a := range n.args {
			if mentions(a, name) {
				return true
			}
		}
	case *exprStmt:
		return mentions(n.x, name)
	case *varDecl:
		for _, e := range n.inits {
			if e != nil && mentions(e, name) {
				return true
			}
		}
	case *blockStmt:
		if n == nil {
			return false
		}
		for _, s := range n.body {
			if mentions(s, name) {
				return true
			}
		}
	case *ifStmt:
		return either(n.test, n.then, n.els)
	case *forStmt:
		return either(n.init, n.test, n.update, n.body)
	case *forInStmt:
		return either(n.obj, n.body)
	case *whileStmt:
		return either(n.test, n.body)
	case *returnStmt:
		return mentions(n.x, name)
	case *funcDecl:
		return mentions(n.fn, name)
	case *throwStmt:
		return mentions(n.x, name)
	case *tryStmt:
		return either(n.body, n.handler)
	}
	return false
}
