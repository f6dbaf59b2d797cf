package seqstore

import (
	"strings"

	"github.com/google/cel-go/cel"
)

// eventFilter wraps a compiled CEL program evaluated against lifecycle
// events. When disabled (empty expression), Eval always returns true.
type eventFilter struct {
	prog    cel.Program
	enabled bool
}

func newEventFilter(expr string) (eventFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return eventFilter{}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("kind", cel.StringType),
		cel.Variable("topic", cel.StringType),
	)
	if err != nil {
		return eventFilter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return eventFilter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return eventFilter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return eventFilter{}, err
	}
	return eventFilter{prog: prog, enabled: true}, nil
}

// Eval evaluates the expression against an event's kind and topic. Synced
// and enabled events carry an empty topic.
func (f eventFilter) Eval(kind EventKind, topic string) bool {
	if !f.enabled {
		return true
	}
	out, _, err := f.prog.Eval(map[string]any{
		"kind":  string(kind),
		"topic": topic,
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
