package core_test

import (
	"testing"

	"github.com/arnavsurve/crawlstep/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFixture(t *testing.T) {
	cfg, err := core.LoadConfigFromFile("test_fixtures/config.json")
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/login", cfg.StartURL)
	assert.True(t, cfg.StoreCookies)
	assert.True(t, cfg.DockerMode, "docker_mode defaults to true")
	assert.Equal(t, 300, cfg.PageLoadTimeout)
	assert.Equal(t, core.DriverWebDriver, cfg.Driver)
	assert.Equal(t, []int{1, 2}, cfg.RandomWaitRange)
	require.Len(t, cfg.Steps, 2)
	assert.Equal(t, "Log in", cfg.Steps[0].Description)
	require.Len(t, cfg.Steps[0].Actions, 3)
	assert.Equal(t, "GenericElementAction", cfg.Steps[0].Actions[0].Name)
	assert.Equal(t, []any{}, cfg.Steps[0].Actions[2].Parameters)
	assert.Equal(t, "secret", cfg.UserParameters["#password"])
}

func TestLoadConfigYAML(t *testing.T) {
	cfg, err := core.LoadConfigFromFile("test_fixtures/crawler.yml")
	require.NoError(t, err)
	assert.Equal(t, core.DriverCDP, cfg.Driver)
	assert.False(t, cfg.DockerMode)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := core.LoadConfigFromFile("test_fixtures/nope.yml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")

	_, err = core.LoadConfigFromFile("test_fixtures/missing_steps.yml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps")
}

func TestParseConfigInvalidYAML(t *testing.T) {
	_, err := core.ParseConfig([]byte("start_url: [unterminated"))
	require.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	valid := func() *core.Config {
		cfg := core.DefaultConfig()
		cfg.StartURL = "https://example.com"
		cfg.Steps = []core.Step{{Actions: []core.ActionDefinition{{Name: "Wait"}}}}
		return &cfg
	}

	tests := []struct {
		name   string
		mutate func(*core.Config)
		errMsg string
	}{
		{"valid", func(*core.Config) {}, ""},
		{"empty steps list is allowed", func(c *core.Config) { c.Steps = []core.Step{} }, ""},
		{"missing start url", func(c *core.Config) { c.StartURL = "" }, "start_url"},
		{"missing both", func(c *core.Config) {
			c.StartURL = ""
			c.Steps = nil
		}, "start_url, steps"},
		{"missing action name", func(c *core.Config) { c.Steps[0].Actions[0].Name = "" }, "action_name"},
		{"bad resolution", func(c *core.Config) { c.Resolution = "big" }, "WIDTHxHEIGHT"},
		{"bad wait range length", func(c *core.Config) { c.RandomWaitRange = []int{1} }, "exactly two"},
		{"unordered wait range", func(c *core.Config) { c.RandomWaitRange = []int{3, 1} }, "ordered"},
		{"negative timeout", func(c *core.Config) { c.PageLoadTimeout = -1 }, "page_load_timeout"},
		{"unknown driver", func(c *core.Config) { c.Driver = "firefox" }, "firefox"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := core.ValidateConfig(cfg)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestResolvePath(t *testing.T) {
	assert.Equal(t, "/data/out/metrics.prom", core.ResolvePath("/data", "out/metrics.prom"))
	assert.Equal(t, "/tmp/m.prom", core.ResolvePath("/data", "/tmp/m.prom"))
	assert.Equal(t, "", core.ResolvePath("/data", ""))
}
