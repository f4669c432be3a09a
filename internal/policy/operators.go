package policy

import (
	"fmt"
	"reflect"
	"slices"
)

type Operator func(ctx RequestContext, args []any) (EvalResult, error)

var operators = make(map[string]Operator)

func init() {
	operators["And"] = opAnd
	operators["Or"] = opOr
	operators["Not"] = opNot
	operators["Eq"] = opEq
	operators["Contains"] = opContains
	operators["Load"] = opLoad
}

func opAnd(ctx RequestContext, args []any) (EvalResult, error) {
	for i, arg := range args {
		evaluated, ok := arg.(bool)
		if !ok {
			err := fmt.Errorf("bad argument type for AND at index %d. Expected bool but got %s", i, reflect.TypeOf(arg))
			return EvalResult{Operator: "And", Error: err.Error()}, err
		}
		if !evaluated {
			return EvalResult{Operator: "And", Result: false}, nil
		}
	}
	return EvalResult{Operator: "And", Result: true}, nil
}

func opOr(ctx RequestContext, args []any) (EvalResult, error) {
	for i, arg := range args {
		evaluated, ok := arg.(bool)
		if !ok {
			err := fmt.Errorf("bad argument type for OR at index %d. Expected bool but got %s", i, reflect.TypeOf(arg))
			return EvalResult{Operator: "Or", Error: err.Error()}, err
		}
		if evaluated {
			return EvalResult{Operator: "Or", Result: true}, nil
		}
	}
	return EvalResult{Operator: "Or", Result: false}, nil
}

func opNot(ctx RequestContext, args []any) (EvalResult, error) {
	if len(args) != 1 {
		err := fmt.Errorf("bad argument length for NOT. Expected 1 but got %d", len(args))
		return EvalResult{Operator: "Not", Error: err.Error()}, err
	}

	evaluated, ok := args[0].(bool)
	if !ok {
		err := fmt.Errorf("bad argument type for NOT. Expected bool but got %s", reflect.TypeOf(args[0]))
		return EvalResult{Operator: "Not", Error: err.Error()}, err
	}

	return EvalResult{Operator: "Not", Result: !evaluated}, nil
}

func opEq(ctx RequestContext, args []any) (EvalResult, error) {
	if len(args) != 2 {
		err := fmt.Errorf("bad argument length for EQ. Expected 2 but got %d", len(args))
		return EvalResult{Operator: "Eq", Error: err.Error()}, err
	}

	return EvalResult{
		Operator: "Eq",
		Result:   normalize(args[0]) == normalize(args[1]),
	}, nil
}

func opContains(ctx RequestContext, args []any) (EvalResult, error) {
	if len(args) != 2 {
		err := fmt.Errorf("bad argument length for CONTAINS. Expected 2 but got %d", len(args))
		return EvalResult{Operator: "Contains", Error: err.Error()}, err
	}

	var haystack []any
	switch list := args[0].(type) {
	case []any:
		haystack = list
	case []string:
		for _, s := range list {
			haystack = append(haystack, s)
		}
	default:
		err := fmt.Errorf("bad argument type for CONTAINS. Expected []any but got %s", reflect.TypeOf(args[0]))
		return EvalResult{Operator: "Contains", Error: err.Error()}, err
	}

	needle := normalize(args[1])
	return EvalResult{
		Operator: "Contains",
		Result: slices.ContainsFunc(haystack, func(v any) bool {
			return normalize(v) == needle
		}),
	}, nil
}

func opLoad(ctx RequestContext, args []any) (EvalResult, error) {
	if len(args) != 1 {
		err := fmt.Errorf("bad argument length for Load. Expected 1 but got %d", len(args))
		return EvalResult{Operator: "Load", Error: err.Error()}, err
	}

	key, ok := args[0].(string)
	if !ok {
		err := fmt.Errorf("bad argument type for Load. Expected string but got %s", reflect.TypeOf(args[0]))
		return EvalResult{Operator: "Load", Error: err.Error()}, err
	}

	mappedCtx := structToMap(ctx)
	value, ok := resolveDotNotation(mappedCtx, key)
	if !ok {
		err := fmt.Errorf("key not found: %s", key)
		return EvalResult{Operator: "Load", Error: err.Error()}, err
	}

	return EvalResult{Operator: "Load", Result: value}, nil
}
