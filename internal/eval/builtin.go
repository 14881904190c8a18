package eval

import (
	"fmt"
	"math"

	"github.com/propapanda/dinky/pkg/lists"
)

// evalCall dispatches a call: builtin, then bound host function, then the
// list-constructor form `List(n)` yielding the n-th declared item.
func evalCall(c *callExpr, env Env) (any, error) {
	args := make([]any, len(c.args))
	for i, a := range c.args {
		v, err := evalNode(a, env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	if fn, ok := builtins[c.name]; ok {
		return fn(env, args)
	}

	if out, ok, err := env.CallHost(c.name, args); ok || err != nil {
		return out, err
	}

	if env.Registry().Has(c.name) && len(args) == 1 {
		n := int(toNumber(args[0]))
		if v, ok := env.Registry().Nth(c.name, n); ok {
			return v, nil
		}
		return lists.New(), nil
	}

	return nil, fmt.Errorf("unknown function %q", c.name)
}

type builtinFunc func(Env, []any) (any, error)

var builtins = map[string]builtinFunc{
	"LIST_COUNT": func(env Env, args []any) (any, error) {
		v, err := listArg("LIST_COUNT", env, args, 0)
		if err != nil {
			return nil, err
		}
		return float64(v.Count()), nil
	},
	"LIST_MIN": func(env Env, args []any) (any, error) {
		v, err := listArg("LIST_MIN", env, args, 0)
		if err != nil {
			return nil, err
		}
		return env.Registry().Min(v), nil
	},
	"LIST_MAX": func(env Env, args []any) (any, error) {
		v, err := listArg("LIST_MAX", env, args, 0)
		if err != nil {
			return nil, err
		}
		return env.Registry().Max(v), nil
	},
	"LIST_RANDOM": func(env Env, args []any) (any, error) {
		v, err := listArg("LIST_RANDOM", env, args, 0)
		if err != nil {
			return nil, err
		}
		return env.Registry().Random(v, env.RNG()), nil
	},
	"LIST_ALL": func(env Env, args []any) (any, error) {
		v, err := listArg("LIST_ALL", env, args, 0)
		if err != nil {
			return nil, err
		}
		return env.Registry().All(v), nil
	},
	"LIST_VALUE": func(env Env, args []any) (any, error) {
		v, err := listArg("LIST_VALUE", env, args, 0)
		if err != nil {
			return nil, err
		}
		return float64(env.Registry().RawValue(v)), nil
	},
	"LIST_RANGE": func(env Env, args []any) (any, error) {
		v, err := listArg("LIST_RANGE", env, args, 0)
		if err != nil {
			return nil, err
		}
		if len(args) < 3 {
			return nil, fmt.Errorf("LIST_RANGE needs (list, min, max)")
		}
		return env.Registry().Range(v, ordinalArg(env, args[1]), ordinalArg(env, args[2])), nil
	},
	"LIST_INVERT": func(env Env, args []any) (any, error) {
		v, err := listArg("LIST_INVERT", env, args, 0)
		if err != nil {
			return nil, err
		}
		return env.Registry().Invert(v), nil
	},
	"RANDOM": func(env Env, args []any) (any, error) {
		if len(args) < 2 {
			return nil, fmt.Errorf("RANDOM needs (min, max)")
		}
		lo := int(toNumber(args[0]))
		hi := int(toNumber(args[1]))
		if hi < lo {
			lo, hi = hi, lo
		}
		return float64(lo + env.RNG().Intn(hi-lo+1)), nil
	},
	"SEED_RANDOM": func(env Env, args []any) (any, error) {
		if len(args) < 1 {
			return nil, fmt.Errorf("SEED_RANDOM needs a seed")
		}
		env.SeedRandom(int64(toNumber(args[0])))
		return nil, nil
	},
	"FLOOR": func(env Env, args []any) (any, error) {
		if len(args) < 1 {
			return nil, fmt.Errorf("FLOOR needs a number")
		}
		return math.Floor(toNumber(args[0])), nil
	},
	"INT": func(env Env, args []any) (any, error) {
		if len(args) < 1 {
			return nil, fmt.Errorf("INT needs a number")
		}
		return math.Trunc(toNumber(args[0])), nil
	},
}

func listArg(name string, env Env, args []any, i int) (lists.Value, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("%s needs a list argument", name)
	}
	if v, ok := asList(args[i], env.Registry()); ok {
		return v, nil
	}
	return nil, fmt.Errorf("%s: argument is not a list value", name)
}

// ordinalArg converts a range bound: numbers pass through, single-element
// list values contribute their raw ordinal.
func ordinalArg(env Env, v any) int {
	if lv, ok := asList(v, env.Registry()); ok {
		return env.Registry().RawValue(lv)
	}
	return int(toNumber(v))
}
