package actions_test

import (
	"context"
	"testing"

	"github.com/arnavsurve/crawlstep/pkg/actions"
	"github.com/arnavsurve/crawlstep/pkg/log"
	"github.com/arnavsurve/crawlstep/pkg/session"
	"github.com/arnavsurve/crawlstep/pkg/session/sessiontest"
	"github.com/stretchr/testify/require"
)

func newEnv(t *testing.T, d *sessiontest.Driver) *session.Env {
	t.Helper()
	return &session.Env{
		Driver:      d,
		DownloadDir: t.TempDir(),
		DataDir:     t.TempDir(),
		RunID:       "123",
		MainWindow:  "main",
		Logger:      log.Nop(),
	}
}

func mustBuild(t *testing.T, name string, params map[string]any) *actions.Built {
	t.Helper()
	b, err := actions.Build(name, params)
	require.NoError(t, err)
	return b
}

func run(t *testing.T, env *session.Env, name string, params map[string]any) (actions.Outcome, error) {
	t.Helper()
	return mustBuild(t, name, params).Execute(context.Background(), env)
}
