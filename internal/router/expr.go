package router

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
)

// IfExpr compiles a CEL boolean expression into a predicate. Available
// variables:
//
//	channel, unit, title  string
//	value                 dyn (JSON-decoded event value)
//	timestamp_ms, now_ms  int
//	previous              dyn (null or {"value": dyn, "timestamp_ms": int})
//	actual                map(string, dyn) of channel to value
//	changed, newer        bool (IfChanged / IfNewer)
//
// An expression that fails at evaluation time or yields a non-bool is false.
func IfExpr(expr string) (Predicate, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Always, nil
	}
	env, err := cel.NewEnv(
		cel.CrossTypeNumericComparisons(true),
		cel.Variable("channel", cel.StringType),
		cel.Variable("unit", cel.StringType),
		cel.Variable("title", cel.StringType),
		cel.Variable("value", cel.DynType),
		cel.Variable("timestamp_ms", cel.IntType),
		cel.Variable("now_ms", cel.IntType),
		cel.Variable("previous", cel.DynType),
		cel.Variable("actual", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("changed", cel.BoolType),
		cel.Variable("newer", cel.BoolType),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	prog, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	return func(d Delivery) bool {
		out, _, err := prog.Eval(activation(d))
		if err != nil {
			return false
		}
		b, ok := out.Value().(bool)
		return ok && b
	}, nil
}

func activation(d Delivery) map[string]any {
	var previous any
	if d.Previous != nil {
		previous = map[string]any{
			"value":        jsonValue(d.Previous.Value),
			"timestamp_ms": d.Previous.Timestamp.UnixMilli(),
		}
	}
	actual := make(map[string]any, len(d.Actual))
	for ch, e := range d.Actual {
		actual[ch] = jsonValue(e.Value)
	}
	return map[string]any{
		"channel":      d.Event.Channel,
		"unit":         string(d.Event.Unit),
		"title":        d.Event.Title,
		"value":        jsonValue(d.Event.Value),
		"timestamp_ms": d.Event.Timestamp.UnixMilli(),
		"now_ms":       time.Now().UnixMilli(),
		"previous":     previous,
		"actual":       actual,
		"changed":      IfChanged(d),
		"newer":        IfNewer(d),
	}
}

// jsonValue maps arbitrary Go values onto the JSON types CEL understands.
func jsonValue(v any) any {
	switch v.(type) {
	case nil, bool, string, float64:
		return v
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	if json.Unmarshal(b, &out) != nil {
		return nil
	}
	return out
}
