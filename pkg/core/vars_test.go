package core_test

import (
	"errors"
	"testing"

	"github.com/arnavsurve/crawlstep/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveUserParameters(t *testing.T) {
	resolved, err := core.ResolveUserParameters(map[string]any{
		"login": "jdoe",
		"count": 5,
		"url": map[string]any{
			"function": "concat",
			"args": []any{
				"https://example.com/?d=",
				map[string]any{"function": "string_to_date", "args": []any{"2024-01-31", "%Y%m%d"}},
				"&n=", 3,
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "jdoe", resolved["login"])
	assert.Equal(t, 5, resolved["count"])
	assert.Equal(t, "https://example.com/?d=20240131&n=3", resolved["url"])
}

func TestResolveUserParameters_Errors(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		errMsg string
	}{
		{"object without function", map[string]any{"args": []any{1}}, "not a valid function call"},
		{"unexpected key", map[string]any{"function": "concat", "kwargs": 1}, "unexpected key"},
		{"args not a list", map[string]any{"function": "concat", "args": "x"}, "args must be a list"},
		{"placeholder as argument", map[string]any{"function": "concat", "args": []any{map[string]any{"attr": "x"}}}, "placeholders"},
		{"bad nested call", map[string]any{"function": "concat", "args": []any{map[string]any{"function": "string_to_date", "args": []any{"someday"}}}}, "someday"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := core.ResolveUserParameters(map[string]any{"p": tt.value})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.Contains(t, err.Error(), `"p"`)
		})
	}
}

func TestResolveUserParameters_UnsupportedFunction(t *testing.T) {
	_, err := core.ResolveUserParameters(map[string]any{
		"p": map[string]any{"function": "concat", "args": []any{map[string]any{"function": "uppercase", "args": []any{"a"}}}},
	})
	require.Error(t, err)

	var unsupported *core.UnsupportedFunctionError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "uppercase", unsupported.Name)
	assert.Equal(t, []string{"concat", "string_to_date"}, unsupported.Supported)
}

func paramsOf(steps []core.Step, step, action int) map[string]any {
	return steps[step].Actions[action].Parameters.(map[string]any)
}

func TestResolveSteps(t *testing.T) {
	steps := []core.Step{{
		Description: "login",
		Actions: []core.ActionDefinition{
			{
				Name: "GenericElementAction",
				Parameters: map[string]any{
					"xpath":                "//input",
					"method_name":          "send_keys",
					"positional_arguments": []any{map[string]any{"attr": "login"}},
				},
			},
			{
				Name: "ConditionalAction",
				Parameters: map[string]any{
					"test_action": map[string]any{
						"action_name": "WaitForElement",
						"action_parameters": map[string]any{
							"xpath": map[string]any{"attr": "marker"},
							"delay": map[string]any{"attr": "delay"},
						},
					},
				},
			},
			{Name: "BreakBlockExecution", Parameters: []any{}},
		},
	}}
	original := paramsOf(steps, 0, 0)["positional_arguments"].([]any)[0]

	resolved, err := core.ResolveSteps(steps, map[string]any{"login": "jdoe", "marker": "//div", "delay": 7})
	require.NoError(t, err)

	assert.Equal(t, []any{"jdoe"}, paramsOf(resolved, 0, 0)["positional_arguments"])
	nested := paramsOf(resolved, 0, 1)["test_action"].(map[string]any)["action_parameters"].(map[string]any)
	assert.Equal(t, "//div", nested["xpath"])
	assert.Equal(t, "7", nested["delay"])
	assert.Equal(t, []any{}, resolved[0].Actions[2].Parameters)

	assert.Equal(t, map[string]any{"attr": "login"}, original, "input steps are not modified")
}

func TestResolveSteps_ReportsAllMissingKeys(t *testing.T) {
	steps := []core.Step{
		{Actions: []core.ActionDefinition{{
			Name:       "TypeText",
			Parameters: map[string]any{"positional_arguments": []any{map[string]any{"attr": "zeta"}, map[string]any{"attr": "alpha"}}},
		}}},
		{Actions: []core.ActionDefinition{{
			Name:       "TypeText",
			Parameters: map[string]any{"positional_arguments": []any{map[string]any{"attr": "alpha"}, map[string]any{"attr": "known"}}},
		}}},
	}

	_, err := core.ResolveSteps(steps, map[string]any{"known": "x"})
	require.Error(t, err)

	var unresolved *core.UnresolvedPlaceholderError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, []string{"alpha", "zeta"}, unresolved.Keys)
	assert.Contains(t, err.Error(), "alpha, zeta")
}

func TestResolveSteps_AttrWithSiblingsIsNotAPlaceholder(t *testing.T) {
	steps := []core.Step{{Actions: []core.ActionDefinition{{
		Name:       "GenericElementAction",
		Parameters: map[string]any{"value": map[string]any{"attr": "x", "other": 1}},
	}}}}

	resolved, err := core.ResolveSteps(steps, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"attr": "x", "other": 1}, paramsOf(resolved, 0, 0)["value"])
}

func TestBuildPlan(t *testing.T) {
	plan, err := core.BuildPlan([]core.Step{
		{Description: "one", Actions: []core.ActionDefinition{
			{Description: "wait", Name: "Wait", Parameters: map[string]any{"seconds": 1}},
			{Name: "BreakBlockExecution", Parameters: []any{}},
		}},
		{Description: "two", Actions: []core.ActionDefinition{{Name: "SwitchToMainWindow"}}},
	})
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, "wait", plan[0].Actions[0].Description)
	assert.Equal(t, "Wait", plan[0].Actions[0].Name)
	assert.Equal(t, "SwitchToMainWindow", plan[1].Actions[0].Name)

	_, err = core.BuildPlan([]core.Step{{Description: "bad", Actions: []core.ActionDefinition{{Name: "Nope"}}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `step 0 ("bad") action 0`)

	_, err = core.BuildPlan([]core.Step{{Actions: []core.ActionDefinition{{Name: "Wait", Parameters: "soon"}}}})
	require.Error(t, err)
}

func TestLoadResolveAndBuildFixture(t *testing.T) {
	cfg, err := core.LoadConfigFromFile("test_fixtures/config.json")
	require.NoError(t, err)

	params, err := core.ResolveUserParameters(cfg.UserParameters)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/export?from=10.03.2024", params["export_url"])

	steps, err := core.ResolveSteps(cfg.Steps, params)
	require.NoError(t, err)
	assert.Equal(t, []any{"secret"}, paramsOf(steps, 0, 1)["positional_arguments"])

	plan, err := core.BuildPlan(steps)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Len(t, plan[0].Actions, 3)
}
