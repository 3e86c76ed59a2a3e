package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/arnavsurve/crawlstep/pkg/core"
	"github.com/arnavsurve/crawlstep/pkg/kbc"
	"github.com/arnavsurve/crawlstep/pkg/log"
	"github.com/arnavsurve/crawlstep/pkg/log/sinks"
	"github.com/arnavsurve/crawlstep/pkg/security"
	"github.com/arnavsurve/crawlstep/pkg/types"
)

// DataFlags are shared by every command that reads a configuration.
type DataFlags struct {
	Data    string `help:"The data folder (config.json, in/, out/)." env:"KBC_DATADIR" default:"data"`
	Config  string `help:"The configuration file. Defaults to <data>/config.json."`
	Debug   bool   `help:"Enable debug logging."`
	LogFile string `help:"Also write JSON log lines to this file."`
}

func (f *DataFlags) configPath() string {
	if f.Config != "" {
		return f.Config
	}
	return (&kbc.Environment{DataDir: f.Data}).ConfigPath()
}

// newLogger wires the zerolog adapter to a router with a console sink on
// console and, when requested, a JSON file sink.
func (f *DataFlags) newLogger(console io.Writer) (types.Logger, *log.Router, error) {
	logRouter := log.NewRouter(sinks.NewConsoleSinkTo(console))
	if f.LogFile != "" {
		if dir := filepath.Dir(f.LogFile); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, nil, fmt.Errorf("creating logs directory %q: %w", dir, err)
			}
		}
		fileSink, err := sinks.NewFileSink(f.LogFile)
		if err != nil {
			return nil, nil, fmt.Errorf("creating file log sink: %w", err)
		}
		logRouter.AddSink(fileSink)
	}
	if f.Debug {
		logRouter.SetMinLevel(types.DebugLevel)
	}

	base := zerolog.New(logRouter).With().Timestamp().Logger()
	return log.NewZerologAdapter(base), logRouter, nil
}

func loadEnv(logger types.Logger) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Err(err).Msg("No .env file found, relying on existing ENV")
	}
}

// secretSource gathers everything that may hold '#'-prefixed keys.
func secretSource(cfg *core.Config) map[string]any {
	params := make([]any, 0)
	for _, step := range cfg.Steps {
		for _, action := range step.Actions {
			params = append(params, action.Parameters)
		}
	}
	return map[string]any{
		"user_parameters":   cfg.UserParameters,
		"action_parameters": params,
	}
}

// prepare loads the configuration and turns it into an executable plan.
// Nothing here touches the browser.
func prepare(path string, logger types.Logger, logRouter *log.Router) (*core.Config, core.Plan, error) {
	cfg, err := core.LoadConfigFromFile(path)
	if err != nil {
		logger.Error().Err(err).Msgf("Failed to load configuration %s", path)
		return nil, nil, fmt.Errorf("loading configuration %q: %w", path, err)
	}
	if cfg.Debug {
		logRouter.SetMinLevel(types.DebugLevel)
	}
	redactor := security.NewRedactor(secretSource(cfg))
	logRouter.SetRedactor(redactor)
	logger.Info().Msgf("Loaded configuration with %d steps", len(cfg.Steps))

	params, err := core.ResolveUserParameters(cfg.UserParameters)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to evaluate user parameters")
		return nil, nil, fmt.Errorf("evaluating user parameters: %w", err)
	}
	// Secrets computed by functions are only known now.
	redactor.AddSecrets(params)

	steps, err := core.ResolveSteps(cfg.Steps, params)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fill in user parameters")
		return nil, nil, fmt.Errorf("filling in user parameters: %w", err)
	}

	plan, err := core.BuildPlan(steps)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build actions")
		return nil, nil, fmt.Errorf("building actions: %w", err)
	}
	return cfg, plan, nil
}
