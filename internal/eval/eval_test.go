package eval

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propapanda/dinky/pkg/domain"
	"github.com/propapanda/dinky/pkg/lists"
)

// stubEnv is a minimal Env for evaluator tests.
type stubEnv struct {
	vars   map[string]any
	visits map[string]int
	funcs  map[string]func(args []any) (any, error)
	reg    *lists.Registry
	rng    *rand.Rand
}

func newStubEnv() *stubEnv {
	decls := map[string]*domain.ListDecl{
		"colors": {Name: "colors", Items: []string{"red", "green", "blue"}},
	}
	return &stubEnv{
		vars:   map[string]any{},
		visits: map[string]int{},
		funcs:  map[string]func(args []any) (any, error){},
		reg:    lists.NewRegistry(decls, []string{"colors"}),
		rng:    rand.New(rand.NewSource(1)),
	}
}

func (s *stubEnv) LookupVar(name string) (any, bool) {
	v, ok := s.vars[name]
	return v, ok
}
func (s *stubEnv) Registry() *lists.Registry { return s.reg }
func (s *stubEnv) VisitCount(name string) (int, bool) {
	n, ok := s.visits[name]
	return n, ok
}
func (s *stubEnv) CallHost(name string, args []any) (any, bool, error) {
	fn, ok := s.funcs[name]
	if !ok {
		return nil, false, nil
	}
	out, err := fn(args)
	return out, true, err
}
func (s *stubEnv) RNG() *rand.Rand { return s.rng }
func (s *stubEnv) SeedRandom(seed int64) {
	s.rng = rand.New(rand.NewSource(seed))
}

func TestArithmetic(t *testing.T) {
	env := newStubEnv()
	ev := New()

	cases := map[string]float64{
		"1 + 2":           3,
		"2 * 3 + 4":       10,
		"2 + 3 * 4":       14,
		"(2 + 3) * 4":     20,
		"10 / 4":          2.5,
		"7 % 3":           1,
		"7 mod 3":         1,
		"-3 + 5":          2,
		"2 * (1 + 1) - 1": 3,
	}
	for expr, want := range cases {
		v, err := ev.Eval(expr, env)
		require.NoError(t, err, expr)
		assert.Equal(t, want, v, expr)
	}
}

func TestComparisonAndLogic(t *testing.T) {
	env := newStubEnv()
	env.vars["x"] = float64(2)
	ev := New()

	cases := map[string]bool{
		"x == 2":           true,
		"x != 2":           false,
		"x < 3":            true,
		"x >= 2":           true,
		"x == 1 || x == 2": true,
		"x == 1 && x == 2": false,
		"x == 1 or x == 2": true,
		"not (x == 1)":     true,
		"!(x == 2)":        false,
		"true and x == 2":  true,
	}
	for expr, want := range cases {
		v, err := ev.Eval(expr, env)
		require.NoError(t, err, expr)
		assert.Equal(t, want, v, expr)
	}
}

func TestStringOps(t *testing.T) {
	env := newStubEnv()
	env.vars["name"] = "Alice"
	ev := New()

	v, err := ev.Eval(`"Hello " + name`, env)
	require.NoError(t, err)
	assert.Equal(t, "Hello Alice", v)

	v, err = ev.Eval(`name == "Alice"`, env)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	// Pattern match on strings is substring containment.
	v, err = ev.Eval(`name ? "lic"`, env)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = ev.Eval(`name !? "bob"`, env)
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestLookupOrder(t *testing.T) {
	env := newStubEnv()
	env.vars["red"] = float64(99) // variables shadow list items
	ev := New()

	v, err := ev.Eval("red", env)
	require.NoError(t, err)
	assert.Equal(t, float64(99), v)

	// Unshadowed names fall through to list items...
	v, err = ev.Eval("green", env)
	require.NoError(t, err)
	assert.True(t, v.(lists.Value).Equal(lists.FromItem("colors", "green")))

	// ...then to visit counts...
	env.visits["park.gate"] = 3
	v, err = ev.Eval("park.gate", env)
	require.NoError(t, err)
	assert.Equal(t, float64(3), v)

	// ...and finally to undefined.
	v, err = ev.Eval("nonsense", env)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestListOperators(t *testing.T) {
	env := newStubEnv()
	env.vars["held"] = lists.FromItem("colors", "red").Union(lists.FromItem("colors", "green"))
	ev := New()

	cases := map[string]any{
		"held has green":         true,
		"held has blue":          false,
		"held hasnt blue":        true,
		"held ? (red, green)":    true,
		"held !? (red, blue)":    true,
		"LIST_COUNT(held)":       float64(2),
		"LIST_VALUE(LIST_MAX(held))": float64(2),
	}
	for expr, want := range cases {
		v, err := ev.Eval(expr, env)
		require.NoError(t, err, expr)
		assert.Equal(t, want, v, expr)
	}

	v, err := ev.Eval("held - green", env)
	require.NoError(t, err)
	assert.True(t, v.(lists.Value).Equal(lists.FromItem("colors", "red")))

	v, err = ev.Eval("held + blue", env)
	require.NoError(t, err)
	assert.Equal(t, 3, v.(lists.Value).Count())

	v, err = ev.Eval("held ^ (green, blue)", env)
	require.NoError(t, err)
	assert.True(t, v.(lists.Value).Equal(lists.FromItem("colors", "green")))
}

func TestListBuiltins(t *testing.T) {
	env := newStubEnv()
	env.vars["held"] = lists.FromItem("colors", "green")
	ev := New()

	v, err := ev.Eval("LIST_ALL(held)", env)
	require.NoError(t, err)
	assert.Equal(t, 3, v.(lists.Value).Count())

	v, err = ev.Eval("LIST_INVERT(held)", env)
	require.NoError(t, err)
	assert.True(t, v.(lists.Value).Equal(
		lists.FromItem("colors", "red").Union(lists.FromItem("colors", "blue"))))

	v, err = ev.Eval("LIST_RANGE(held, 1, 2)", env)
	require.NoError(t, err)
	assert.True(t, v.(lists.Value).Equal(
		lists.FromItem("colors", "red").Union(lists.FromItem("colors", "green"))))

	// List constructor: colors(2) is the second declared item.
	v, err = ev.Eval("colors(2)", env)
	require.NoError(t, err)
	assert.True(t, v.(lists.Value).Equal(lists.FromItem("colors", "green")))
}

func TestHostFunctions(t *testing.T) {
	env := newStubEnv()
	env.funcs["damage"] = func(args []any) (any, error) {
		return args[0].(float64) * 2, nil
	}
	env.funcs["boom"] = func(args []any) (any, error) {
		return nil, fmt.Errorf("kaboom")
	}
	ev := New()

	v, err := ev.Eval("damage(21)", env)
	require.NoError(t, err)
	assert.Equal(t, float64(42), v)

	_, err = ev.Eval("boom()", env)
	require.Error(t, err)
	var evalErr *domain.EvalError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, "boom()", evalErr.Expr)
}

func TestRandomBuiltins(t *testing.T) {
	env := newStubEnv()
	ev := New()

	_, err := ev.Eval("SEED_RANDOM(42)", env)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		v, err := ev.Eval("RANDOM(1, 6)", env)
		require.NoError(t, err)
		n := v.(float64)
		assert.GreaterOrEqual(t, n, float64(1))
		assert.LessOrEqual(t, n, float64(6))
	}
}

func TestTruthy(t *testing.T) {
	env := newStubEnv()
	ev := New()

	assert.True(t, ev.Truthy("1 + 1", env))
	assert.False(t, ev.Truthy("0", env))
	assert.False(t, ev.Truthy("missing", env))
	// Malformed conditions evaluate false rather than erroring.
	assert.False(t, ev.Truthy("1 +", env))
}

func TestSyntaxErrors(t *testing.T) {
	env := newStubEnv()
	ev := New()

	for _, expr := range []string{"1 +", `"unterminated`, "(a,b", ")", "@x"} {
		_, err := ev.Eval(expr, env)
		assert.Error(t, err, expr)
	}
}

func TestFormat(t *testing.T) {
	env := newStubEnv()

	assert.Equal(t, "1", Format(true, env.reg))
	assert.Equal(t, "0", Format(false, env.reg))
	assert.Equal(t, "", Format(nil, env.reg))
	assert.Equal(t, "3", Format(float64(3), env.reg))
	assert.Equal(t, "2.5", Format(2.5, env.reg))
	assert.Equal(t, "red, green", Format(
		lists.FromItem("colors", "green").Union(lists.FromItem("colors", "red")), env.reg))
}
