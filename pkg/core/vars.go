package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/arnavsurve/crawlstep/pkg/actions"
)

const (
	placeholderKey = "attr"
	functionKey    = "function"
	argsKey        = "args"
)

// UnresolvedPlaceholderError lists the placeholder keys missing from the user parameters.
type UnresolvedPlaceholderError struct {
	Keys []string
}

func (e *UnresolvedPlaceholderError) Error() string {
	return fmt.Sprintf("some user attributes [%s] specified in configuration are not present in \"user_parameters\"", strings.Join(e.Keys, ", "))
}

// ResolveUserParameters evaluates every function call among the user
// parameters. Scalars and lists are kept as they are.
func ResolveUserParameters(params map[string]any) (map[string]any, error) {
	resolved := make(map[string]any, len(params))
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := params[key]
		call, ok := value.(map[string]any)
		if !ok {
			resolved[key] = value
			continue
		}
		v, err := evaluateFunction(call)
		if err != nil {
			return nil, fmt.Errorf("resolving user parameter %q: %w", key, err)
		}
		resolved[key] = v
	}
	return resolved, nil
}

// evaluateFunction evaluates the arguments first, depth first, then the call.
func evaluateFunction(call map[string]any) (any, error) {
	name, ok := call[functionKey].(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("object is not a valid function call, expected {%s, %s}: %v", functionKey, argsKey, call)
	}
	for k := range call {
		if k != functionKey && k != argsKey {
			return nil, fmt.Errorf("function call %q has unexpected key %q", name, k)
		}
	}

	var rawArgs []any
	switch a := call[argsKey].(type) {
	case nil:
	case []any:
		rawArgs = a
	default:
		return nil, fmt.Errorf("function call %q: args must be a list, got %T", name, a)
	}

	args := make([]any, len(rawArgs))
	for i, arg := range rawArgs {
		switch v := arg.(type) {
		case map[string]any:
			if _, isPlaceholder := placeholderName(v); isPlaceholder {
				return nil, fmt.Errorf("function call %q: placeholders are not allowed as arguments", name)
			}
			nested, err := evaluateFunction(v)
			if err != nil {
				return nil, fmt.Errorf("function call %q argument %d: %w", name, i, err)
			}
			args[i] = nested
		case []any:
			return nil, fmt.Errorf("function call %q argument %d: lists are not allowed as arguments", name, i)
		default:
			args[i] = v
		}
	}
	return callFunction(name, args)
}

// ResolveSteps returns a copy of steps with every placeholder replaced by the
// string form of its user parameter. All missing keys are reported together.
func ResolveSteps(steps []Step, params map[string]any) ([]Step, error) {
	missing := map[string]struct{}{}
	resolved := make([]Step, len(steps))
	for i, step := range steps {
		resolved[i] = Step{Description: step.Description, Actions: make([]ActionDefinition, len(step.Actions))}
		for j, a := range step.Actions {
			resolved[i].Actions[j] = ActionDefinition{
				Description: a.Description,
				Name:        a.Name,
				Parameters:  substitute(a.Parameters, params, missing),
			}
		}
	}

	if len(missing) == 0 {
		for _, step := range resolved {
			for _, a := range step.Actions {
				collectPlaceholders(a.Parameters, missing)
			}
		}
	}
	if len(missing) > 0 {
		keys := make([]string, 0, len(missing))
		for k := range missing {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return nil, &UnresolvedPlaceholderError{Keys: keys}
	}
	return resolved, nil
}

func substitute(value any, params map[string]any, missing map[string]struct{}) any {
	switch v := value.(type) {
	case map[string]any:
		if key, ok := placeholderName(v); ok {
			p, found := params[key]
			if !found {
				missing[key] = struct{}{}
				return v
			}
			return stringify(p)
		}
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = substitute(item, params, missing)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = substitute(item, params, missing)
		}
		return out
	default:
		return v
	}
}

func collectPlaceholders(value any, found map[string]struct{}) {
	switch v := value.(type) {
	case map[string]any:
		if key, ok := placeholderName(v); ok {
			found[key] = struct{}{}
			return
		}
		for _, item := range v {
			collectPlaceholders(item, found)
		}
	case []any:
		for _, item := range v {
			collectPlaceholders(item, found)
		}
	}
}

// placeholderName reports whether m is a {"attr": key} node.
func placeholderName(m map[string]any) (string, bool) {
	if len(m) != 1 {
		return "", false
	}
	v, ok := m[placeholderKey]
	if !ok {
		return "", false
	}
	return stringify(v), true
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// BuildPlan builds every action of every step. It runs before the browser starts.
func BuildPlan(steps []Step) (Plan, error) {
	plan := make(Plan, len(steps))
	for i, step := range steps {
		plan[i] = PlannedStep{Description: step.Description, Actions: make([]PlannedAction, len(step.Actions))}
		for j, def := range step.Actions {
			params, err := actions.NormalizeParameters(def.Parameters)
			if err != nil {
				return nil, fmt.Errorf("step %d (%q) action %d: %w", i, step.Description, j, err)
			}
			built, err := actions.Build(def.Name, params)
			if err != nil {
				return nil, fmt.Errorf("step %d (%q) action %d: %w", i, step.Description, j, err)
			}
			plan[i].Actions[j] = PlannedAction{Description: def.Description, Built: built}
		}
	}
	return plan, nil
}
