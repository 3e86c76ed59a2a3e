package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/arnavsurve/crawlstep/pkg/core"
	"github.com/arnavsurve/crawlstep/pkg/driver/devtools"
	"github.com/arnavsurve/crawlstep/pkg/driver/playwright"
	"github.com/arnavsurve/crawlstep/pkg/driver/webdriver"
	"github.com/arnavsurve/crawlstep/pkg/kbc"
	"github.com/arnavsurve/crawlstep/pkg/metrics"
	"github.com/arnavsurve/crawlstep/pkg/session"
	"github.com/arnavsurve/crawlstep/pkg/types"
)

// RunCmd executes the configured steps in a browser.
type RunCmd struct {
	DataFlags `embed:""`
}

func (r *RunCmd) Run() error {
	runID := os.Getenv("KBC_RUNID")
	if runID == "" {
		runID = uuid.New().String()
	}

	cmdLogger, logRouter, err := r.newLogger(os.Stdout)
	if err != nil {
		return err
	}
	cmdLogger = cmdLogger.With().Str("run_id", runID).Logger()
	defer func() {
		cmdLogger.Debug().Msg("Shutting down logger...")
		if err := logRouter.Close(); err != nil {
			fmt.Printf("Error during log shutdown: %v", err)
		}
	}()

	cmdLogger.Info().Msgf("Starting crawler run with ID: %s", runID)
	loadEnv(cmdLogger)

	env, err := kbc.NewEnvironment(r.Data, runID)
	if err != nil {
		return err
	}

	cfg, plan, err := prepare(r.configPath(), cmdLogger, logRouter)
	if err != nil {
		return err
	}

	factory, err := driverFactory(cfg.Driver, cmdLogger)
	if err != nil {
		return err
	}
	sess := session.New(sessionOptions(cfg, env), factory, env, cmdLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	engine := core.NewWorkflowEngine(cmdLogger, m)
	_, runErr := engine.ExecuteRun(ctx, cfg, plan, sess, env)

	if cfg.MetricsFile != "" {
		path := core.ResolvePath(env.DataDir, cfg.MetricsFile)
		if err := m.WriteTextfile(path); err != nil {
			cmdLogger.Warn().Err(err).Msgf("Failed to write metrics to %q", path)
		}
	}
	if runErr != nil {
		cmdLogger.Error().Err(runErr).Msg("Crawler run failed")
		return runErr
	}
	return nil
}

func driverFactory(name string, logger types.Logger) (session.DriverFactory, error) {
	switch name {
	case "", core.DriverWebDriver:
		return webdriver.NewFactory(logger), nil
	case core.DriverCDP:
		return devtools.NewFactory(logger), nil
	case core.DriverPlaywright:
		return playwright.NewFactory(logger), nil
	}
	return nil, fmt.Errorf("unsupported driver %q", name)
}

func sessionOptions(cfg *core.Config, env *kbc.Environment) session.Options {
	opts := session.Options{
		DownloadDir:     env.TablesOutPath(),
		DataDir:         env.DataDir,
		RunID:           env.RunID,
		Resolution:      cfg.Resolution,
		Headless:        cfg.DockerMode,
		PageLoadTimeout: time.Duration(cfg.PageLoadTimeout) * time.Second,
		DriverURL:       cfg.DriverURL,
		DriverPath:      cfg.DriverPath,
		ExtraArgs:       cfg.DriverOptions,
	}
	if len(cfg.RandomWaitRange) == 2 {
		opts.RandomWait = &session.WaitRange{Min: cfg.RandomWaitRange[0], Max: cfg.RandomWaitRange[1]}
	}
	return opts
}
