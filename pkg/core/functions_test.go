package core_test

import (
	"testing"
	"time"

	"github.com/arnavsurve/crawlstep/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringToDate(t *testing.T) {
	now := time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		expr   string
		format string
		want   string
	}{
		{"today", "%Y-%m-%d", "2024-03-15"},
		{"now", "%Y-%m-%d %H:%M", "2024-03-15 10:30"},
		{"yesterday", "%Y-%m-%d", "2024-03-14"},
		{"Tomorrow", "%Y-%m-%d", "2024-03-16"},
		{"7 days ago", "%Y-%m-%d", "2024-03-08"},
		{"1 day ago", "%d.%m.%Y", "14.03.2024"},
		{"2 weeks ago", "%Y-%m-%d", "2024-03-01"},
		{"1 month ago", "%Y-%m", "2024-02"},
		{"1 year ago", "%Y", "2023"},
		{"-3 hours", "%H", "07"},
		{"3 days", "%Y-%m-%d", "2024-03-18"},
		{"2024-01-05", "%d/%m/%y", "05/01/24"},
		{"2024-01-05 08:09:10", "%H:%M:%S", "08:09:10"},
		{"2024-01-05", "%B %d", "January 05"},
	}
	for _, tt := range tests {
		t.Run(tt.expr+" "+tt.format, func(t *testing.T) {
			got, err := core.StringToDate(tt.expr, tt.format, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStringToDate_Invalid(t *testing.T) {
	_, err := core.StringToDate("next blue moon", "%Y", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "next blue moon")
}

func TestStringToDateFunctionDefaults(t *testing.T) {
	resolved, err := core.ResolveUserParameters(map[string]any{
		"d": map[string]any{"function": "string_to_date", "args": []any{"2024-02-29"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", resolved["d"])

	_, err = core.ResolveUserParameters(map[string]any{
		"d": map[string]any{"function": "string_to_date", "args": []any{}},
	})
	require.Error(t, err)

	_, err = core.ResolveUserParameters(map[string]any{
		"d": map[string]any{"function": "string_to_date", "args": []any{20240101}},
	})
	require.Error(t, err)
}

func TestSupportedFunctions(t *testing.T) {
	assert.Equal(t, []string{"concat", "string_to_date"}, core.SupportedFunctions())
}
