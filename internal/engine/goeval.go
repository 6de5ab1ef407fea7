package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"flowtap/internal/execctx"
	"flowtap/internal/script"
)

// GoEvalRunner interprets a section body as Go statements. Each step gets a
// fresh interpreter; bindings flow in through a generated prelude for the
// step's signature variables and flow back out for its changed variables, as
// recorded on the execution context by section analysis.
type GoEvalRunner struct{}

// RunStep evaluates the section and returns the value of its last statement.
func (GoEvalRunner) RunStep(ctx context.Context, section script.Section, ectx *execctx.Context) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return Result{}, fmt.Errorf("engine: load stdlib symbols: %w", err)
	}
	if prelude := bindingPrelude(ectx); prelude != "" {
		if _, err := i.Eval(prelude); err != nil {
			return Result{}, fmt.Errorf("engine: bind step variables: %w", err)
		}
	}
	v, err := i.Eval(section.Body)
	if err != nil {
		return Result{}, fmt.Errorf("engine: step %s: %w", section.Name, err)
	}
	harvestChanged(i, ectx)
	res := Result{Report: map[string]any{"step": section.Name}}
	if v.IsValid() {
		res.LastValue = v.Interface()
	}
	return res, nil
}

// bindingPrelude renders the context's signature variables as declarations so
// the snippet sees values from earlier invocations. Only literal-renderable
// kinds are carried across the interpreter boundary.
func bindingPrelude(ectx *execctx.Context) string {
	var b strings.Builder
	for _, name := range ectx.Invocation.SignatureVars {
		value, ok := ectx.Get(name)
		if !ok {
			continue
		}
		lit, ok := renderLiteral(value)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s := %s\n_ = %s\n", name, lit, name)
	}
	return b.String()
}

func harvestChanged(i *interp.Interpreter, ectx *execctx.Context) {
	for _, name := range ectx.Invocation.ChangedVars {
		v, err := i.Eval(name)
		if err != nil || !v.IsValid() {
			continue
		}
		ectx.Set(name, v.Interface())
	}
}

func renderLiteral(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return strconv.Quote(v), true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), true
	default:
		return "", false
	}
}
