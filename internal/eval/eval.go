// Package eval implements the sandboxed expression language embedded in
// narrative text and conditions. Author syntax is tokenized directly (the
// word operators and `has`/`hasnt`/`?`/`!?` rewrites happen in the scanner)
// and interpreted over a small AST rather than synthesized into a host
// runtime, keeping evaluation deterministic and sandboxed.
package eval

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"sync"

	"github.com/propapanda/dinky/pkg/domain"
	"github.com/propapanda/dinky/pkg/lists"
)

// Env is what an expression can see: the session's variable scopes, the list
// registry, visit counters, host functions, and the session RNG.
type Env interface {
	// LookupVar resolves temp, then variables, then constants.
	LookupVar(name string) (any, bool)
	// Registry exposes the story's LIST declarations.
	Registry() *lists.Registry
	// VisitCount resolves name as an address and returns its visit count.
	VisitCount(name string) (int, bool)
	// CallHost invokes a bound host function; ok is false when unknown.
	CallHost(name string, args []any) (any, bool, error)
	// RNG returns the session's random source.
	RNG() *rand.Rand
	// SeedRandom reseeds the session's random source.
	SeedRandom(seed int64)
}

// Evaluator caches compiled expressions. Safe for use by a single session;
// the cache itself is guarded so compiled stories can share one instance.
type Evaluator struct {
	mu    sync.Mutex
	cache map[string]node
}

// New creates an evaluator with an empty compilation cache.
func New() *Evaluator {
	return &Evaluator{cache: make(map[string]node)}
}

// Eval evaluates an author expression against env. Errors wrap the source
// expression as a domain.EvalError.
func (ev *Evaluator) Eval(src string, env Env) (any, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, nil
	}
	ev.mu.Lock()
	n, ok := ev.cache[src]
	ev.mu.Unlock()
	if !ok {
		var err error
		n, err = parse(src)
		if err != nil {
			return nil, &domain.EvalError{Expr: src, Err: err}
		}
		ev.mu.Lock()
		ev.cache[src] = n
		ev.mu.Unlock()
	}
	v, err := evalNode(n, env)
	if err != nil {
		if _, ok := err.(*domain.EvalError); ok {
			return nil, err
		}
		return nil, &domain.EvalError{Expr: src, Err: err}
	}
	return v, nil
}

// Truthy evaluates an expression as a condition: evaluation errors count as
// false, matching the error policy for conditions.
func (ev *Evaluator) Truthy(src string, env Env) bool {
	v, err := ev.Eval(src, env)
	if err != nil {
		return false
	}
	return IsTruthy(v)
}

func evalNode(n node, env Env) (any, error) {
	switch t := n.(type) {
	case *numberLit:
		return t.val, nil
	case *stringLit:
		return t.val, nil
	case *boolLit:
		return t.val, nil
	case *nilLit:
		return nil, nil
	case *identRef:
		return resolveIdent(t.name, env), nil
	case *itemList:
		out := lists.New()
		for _, ref := range t.refs {
			v, ok := env.Registry().Resolve(ref)
			if !ok {
				return nil, fmt.Errorf("unknown list item %q", ref)
			}
			out = out.Union(v)
		}
		return out, nil
	case *callExpr:
		return evalCall(t, env)
	case *unaryExpr:
		x, err := evalNode(t.x, env)
		if err != nil {
			return nil, err
		}
		switch t.op {
		case "!":
			return !IsTruthy(x), nil
		case "-":
			return -toNumber(x), nil
		}
		return nil, fmt.Errorf("unknown unary %q", t.op)
	case *binaryExpr:
		return evalBinary(t, env)
	}
	return nil, fmt.Errorf("unknown expression node")
}

// resolveIdent applies the lookup order: temp/variables/constants, then a
// list item by that name, then a visit count for the address string.
// Unresolved names are undefined (nil), not errors.
func resolveIdent(name string, env Env) any {
	if v, ok := env.LookupVar(name); ok {
		return v
	}
	if v, ok := env.Registry().Resolve(name); ok {
		return v
	}
	if n, ok := env.VisitCount(name); ok {
		return float64(n)
	}
	return nil
}

func evalBinary(b *binaryExpr, env Env) (any, error) {
	// Logical operators short-circuit.
	switch b.op {
	case "&&":
		x, err := evalNode(b.x, env)
		if err != nil {
			return nil, err
		}
		if !IsTruthy(x) {
			return false, nil
		}
		y, err := evalNode(b.y, env)
		if err != nil {
			return nil, err
		}
		return IsTruthy(y), nil
	case "||":
		x, err := evalNode(b.x, env)
		if err != nil {
			return nil, err
		}
		if IsTruthy(x) {
			return true, nil
		}
		y, err := evalNode(b.y, env)
		if err != nil {
			return nil, err
		}
		return IsTruthy(y), nil
	}

	x, err := evalNode(b.x, env)
	if err != nil {
		return nil, err
	}
	y, err := evalNode(b.y, env)
	if err != nil {
		return nil, err
	}

	reg := env.Registry()
	lx, xIsList := asList(x, reg)
	ly, yIsList := asList(y, reg)

	switch b.op {
	case "+":
		if xIsList && yIsList {
			return lx.Union(ly), nil
		}
		if xs, ok := x.(string); ok {
			return xs + Format(y, reg), nil
		}
		if ys, ok := y.(string); ok {
			return Format(x, reg) + ys, nil
		}
		return toNumber(x) + toNumber(y), nil
	case "-":
		if xIsList && yIsList {
			return lx.Minus(ly), nil
		}
		return toNumber(x) - toNumber(y), nil
	case "^":
		if xIsList && yIsList {
			return lx.Intersect(ly), nil
		}
		return math.Pow(toNumber(x), toNumber(y)), nil
	case "*":
		return toNumber(x) * toNumber(y), nil
	case "/":
		return toNumber(x) / toNumber(y), nil
	case "%":
		return math.Mod(toNumber(x), toNumber(y)), nil
	case "==":
		return looseEqual(x, y, reg), nil
	case "!=":
		return !looseEqual(x, y, reg), nil
	case "<", "<=", ">", ">=":
		return compare(b.op, x, y, reg), nil
	case "has", "?":
		return contains(x, y, reg), nil
	case "hasnt", "!?":
		return !contains(x, y, reg), nil
	}
	return nil, fmt.Errorf("unknown operator %q", b.op)
}

// contains is `a has b` / `a ? b`: subset when the left side is a list
// value, substring containment otherwise.
func contains(x, y any, reg *lists.Registry) bool {
	if lx, ok := asList(x, reg); ok {
		ly, ok := asList(y, reg)
		return ok && lx.Contains(ly)
	}
	return strings.Contains(Format(x, reg), Format(y, reg))
}

func looseEqual(x, y any, reg *lists.Registry) bool {
	lx, xIsList := asList(x, reg)
	ly, yIsList := asList(y, reg)
	if xIsList || yIsList {
		return xIsList && yIsList && lx.Equal(ly)
	}
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	xs, xStr := x.(string)
	ys, yStr := y.(string)
	if xStr && yStr {
		return xs == ys
	}
	if xStr || yStr {
		return Format(x, reg) == Format(y, reg)
	}
	return toNumber(x) == toNumber(y)
}

// compare orders numbers numerically, strings lexically, and list values by
// raw ordinal extremes: the strict forms compare min against min and max
// against max, the inclusive forms are their non-strict counterparts.
func compare(op string, x, y any, reg *lists.Registry) bool {
	lx, xIsList := asList(x, reg)
	ly, yIsList := asList(y, reg)
	if xIsList && yIsList {
		switch op {
		case "<":
			return reg.MinOrdinal(lx) < reg.MinOrdinal(ly)
		case "<=":
			return reg.MinOrdinal(lx) <= reg.MinOrdinal(ly)
		case ">":
			return reg.MaxOrdinal(lx) > reg.MaxOrdinal(ly)
		case ">=":
			return reg.MaxOrdinal(lx) >= reg.MaxOrdinal(ly)
		}
	}
	if xs, ok := x.(string); ok {
		if ys, ok := y.(string); ok {
			switch op {
			case "<":
				return xs < ys
			case "<=":
				return xs <= ys
			case ">":
				return xs > ys
			case ">=":
				return xs >= ys
			}
		}
	}
	a, b := toNumber(x), toNumber(y)
	switch op {
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	}
	return false
}

// asList converts a value to a list value. A string converts when it names a
// declared item, which is how scalars participate in list arithmetic.
func asList(v any, reg *lists.Registry) (lists.Value, bool) {
	switch t := v.(type) {
	case lists.Value:
		return t, true
	case map[string]map[string]bool:
		return lists.Value(t), true
	case string:
		return reg.Resolve(t)
	}
	return nil, false
}

// IsTruthy implements condition truth: non-zero numbers, true, non-empty
// strings and non-empty list values.
func IsTruthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case string:
		return t != ""
	case lists.Value:
		return !t.Empty()
	case map[string]map[string]bool:
		return !lists.Value(t).Empty()
	}
	return true
}

func toNumber(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		if n, err := strconv.ParseFloat(t, 64); err == nil {
			return n
		}
	}
	return 0
}

// Format renders a value for embedding in narrative text: booleans coerce to
// 1/0, undefined to the empty string, whole numbers lose the decimal point,
// list values render comma-separated in declaration order.
func Format(v any, reg *lists.Registry) string {
	switch t := v.(type) {
	case nil:
		return ""
	case bool:
		if t {
			return "1"
		}
		return "0"
	case string:
		return t
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int:
		return strconv.Itoa(t)
	case lists.Value:
		return reg.String(t)
	case map[string]map[string]bool:
		return reg.String(lists.Value(t))
	}
	return fmt.Sprintf("%v", v)
}
