package session_test

import (
	"testing"

	"github.com/arnavsurve/crawlstep/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArguments(t *testing.T) {
	a := session.Arguments{
		Method: "set_window_size",
		Args:   []any{800, "600", "x"},
		Kwargs: map[string]any{"windowHandle": "current"},
	}

	w, err := a.Int(0, "width")
	require.NoError(t, err)
	assert.Equal(t, 800, w)

	h, err := a.Float(1, "height")
	require.NoError(t, err)
	assert.Equal(t, 600.0, h)

	_, err = a.Int(2, "depth")
	require.Error(t, err)

	handle, err := a.String(5, "windowHandle")
	require.NoError(t, err)
	assert.Equal(t, "current", handle)

	_, err = a.String(5, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "set_window_size")

	assert.True(t, a.Has(0, "width"))
	assert.False(t, a.Has(9, "nope"))
	assert.Equal(t, "800600x", a.Joined())
	assert.Equal(t, []any{"600", "x"}, a.Rest(1))
	assert.Nil(t, a.Rest(3))
}
