package session_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/arnavsurve/crawlstep/pkg/log"
	"github.com/arnavsurve/crawlstep/pkg/session"
	"github.com/arnavsurve/crawlstep/pkg/session/sessiontest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T, d *sessiontest.Driver, opts session.Options) (*session.Session, *[]time.Duration) {
	t.Helper()
	s := session.New(opts, d.Factory(), nil, log.Nop())
	var slept []time.Duration
	s.SetSleeper(func(ctx context.Context, dur time.Duration) error {
		slept = append(slept, dur)
		return nil
	})
	return s, &slept
}

func TestSession_StartCapturesMainWindowAndNavigates(t *testing.T) {
	d := sessiontest.NewDriver()
	d.Current = "window-1"
	d.Handles = []string{"window-1"}
	s, _ := newSession(t, d, session.Options{RunID: "42", DownloadDir: "/dl", DataDir: "/data"})

	require.NoError(t, s.Start(context.Background(), "https://example.com"))

	env := s.Env()
	assert.Equal(t, "window-1", env.MainWindow)
	assert.Equal(t, "/dl", env.DownloadDir)
	assert.Equal(t, "/data", env.DataDir)
	assert.Equal(t, "42", env.RunID)
	assert.Same(t, d, env.Driver)
	assert.Equal(t, []string{"https://example.com"}, d.Visited)
}

func TestSession_StartRejectsBadResolution(t *testing.T) {
	d := sessiontest.NewDriver()
	s, _ := newSession(t, d, session.Options{Resolution: "wide"})

	err := s.Start(context.Background(), "https://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WIDTHxHEIGHT")
	assert.Empty(t, d.Visited)
}

func TestSession_StopIsIdempotent(t *testing.T) {
	d := sessiontest.NewDriver()
	s, _ := newSession(t, d, session.Options{})
	require.NoError(t, s.Start(context.Background(), "https://example.com"))

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	assert.Equal(t, 1, d.QuitCount)
}

func TestSession_StopBeforeStart(t *testing.T) {
	d := sessiontest.NewDriver()
	s, _ := newSession(t, d, session.Options{})

	require.NoError(t, s.Stop())
	assert.Equal(t, 0, d.QuitCount)
}

func TestSession_Cookies(t *testing.T) {
	d := sessiontest.NewDriver()
	s, _ := newSession(t, d, session.Options{})

	_, err := s.Cookies()
	require.Error(t, err)

	require.NoError(t, s.Start(context.Background(), "https://example.com"))
	require.NoError(t, s.LoadCookies([]map[string]any{{"name": "sid", "value": "1"}}))
	require.NoError(t, s.LoadCookies(nil))

	cookies, err := s.Cookies()
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"name": "sid", "value": "1"}}, cookies)

	d.Errors["add_cookie"] = sessiontest.ErrBoom
	err = s.LoadCookies([]map[string]any{{"name": "bad"}})
	require.Error(t, err)
	assert.True(t, session.IsDriverFailure(err))
}

func TestSession_WaitRandom(t *testing.T) {
	d := sessiontest.NewDriver()

	s, slept := newSession(t, d, session.Options{})
	require.NoError(t, s.WaitRandom(context.Background()))
	assert.Empty(t, *slept, "no range configured, no wait")

	s, slept = newSession(t, d, session.Options{RandomWait: &session.WaitRange{Min: 2, Max: 4}})
	for i := 0; i < 20; i++ {
		require.NoError(t, s.WaitRandom(context.Background()))
	}
	require.Len(t, *slept, 20)
	for _, dur := range *slept {
		assert.GreaterOrEqual(t, dur, 2*time.Second)
		assert.LessOrEqual(t, dur, 4*time.Second)
	}

	s, slept = newSession(t, d, session.Options{RandomWait: &session.WaitRange{Min: 3, Max: 3}})
	require.NoError(t, s.WaitRandom(context.Background()))
	assert.Equal(t, []time.Duration{3 * time.Second}, *slept)
}

func TestSleep_HonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := session.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseResolution(t *testing.T) {
	tests := []struct {
		in     string
		w, h   int
		hasErr bool
	}{
		{"2560x1440", 2560, 1440, false},
		{" 800X600 ", 800, 600, false},
		{"800", 0, 0, true},
		{"axb", 0, 0, true},
		{"0x600", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			w, h, err := session.ParseResolution(tt.in)
			if tt.hasErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.w, w)
			assert.Equal(t, tt.h, h)
		})
	}
}

func TestIsDriverFailure(t *testing.T) {
	assert.True(t, session.IsDriverFailure(session.Fail("click", sessiontest.ErrBoom)))
	assert.True(t, session.IsDriverFailure(fmt.Errorf("wrapped: %w", &session.TimeoutError{Op: "download", Timeout: time.Second})))
	assert.False(t, session.IsDriverFailure(errors.New("bad parameter")))
	assert.Nil(t, session.Fail("noop", nil))

	timeout := &session.TimeoutError{Op: "download", Timeout: time.Second}
	assert.ErrorIs(t, timeout, session.ErrTimeout)
}
